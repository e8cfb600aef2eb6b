package tree

import (
	"hash/fnv"
	"math/bits"
)

// owner marks trie nodes and child lists a transient may edit in place.
// A nil owner means "persistent": every write copies.
type owner struct{ _ byte }

const (
	hamtBits  = 5
	hamtWidth = 1 << hamtBits
	hamtMask  = hamtWidth - 1
	// maxShift is the last shift that still consumes hash bits; below it
	// keys with identical 64-bit hashes share a collision bucket.
	maxShift = 60
)

// hamt is a persistent hash array mapped trie keyed by string.
// The zero value is an empty map. Values are copied in and out.
type hamt[V any] struct {
	root *hnode[V]
	size int
}

type hentry[V any] struct {
	hash  uint64
	key   string
	value V
	child *hnode[V]
}

type hnode[V any] struct {
	owner   *owner
	bitmap  uint32
	entries []hentry[V]
	// bucket nodes hold colliding keys in insertion order and ignore bitmap.
	bucket bool
}

func hashKey(key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}

func (m hamt[V]) Len() int { return m.size }

func (m hamt[V]) Get(key string) (V, bool) {
	var zero V
	n := m.root
	h := hashKey(key)
	for shift := uint(0); n != nil; shift += hamtBits {
		if n.bucket {
			for _, e := range n.entries {
				if e.key == key {
					return e.value, true
				}
			}
			return zero, false
		}
		bit := uint32(1) << ((h >> shift) & hamtMask)
		if n.bitmap&bit == 0 {
			return zero, false
		}
		e := n.entries[bits.OnesCount32(n.bitmap&(bit-1))]
		if e.child == nil {
			if e.key == key {
				return e.value, true
			}
			return zero, false
		}
		n = e.child
	}
	return zero, false
}

// Set returns a map with key bound to value. Nodes owned by o are edited
// in place; pass a nil owner for a fully persistent update.
func (m hamt[V]) Set(o *owner, key string, value V) hamt[V] {
	added := false
	root := m.root
	if root == nil {
		root = &hnode[V]{owner: o}
	}
	root = root.set(o, 0, hentry[V]{hash: hashKey(key), key: key, value: value}, &added)
	if added {
		m.size++
	}
	m.root = root
	return m
}

// Delete returns a map without key and whether the key was present.
func (m hamt[V]) Delete(o *owner, key string) (hamt[V], bool) {
	if m.root == nil {
		return m, false
	}
	removed := false
	root := m.root.delete(o, 0, hashKey(key), key, &removed)
	if !removed {
		return m, false
	}
	m.root = root
	m.size--
	return m, true
}

// Range calls fn for every entry until fn returns false. Order follows the
// hash layout and is stable for a given set of keys.
func (m hamt[V]) Range(fn func(key string, value V) bool) {
	if m.root != nil {
		m.root.rangeEntries(fn)
	}
}

func (n *hnode[V]) rangeEntries(fn func(string, V) bool) bool {
	for _, e := range n.entries {
		if e.child != nil {
			if !e.child.rangeEntries(fn) {
				return false
			}
			continue
		}
		if !fn(e.key, e.value) {
			return false
		}
	}
	return true
}

// editable returns n itself when o owns it, otherwise a shallow copy
// owned by o.
func (n *hnode[V]) editable(o *owner) *hnode[V] {
	if o != nil && n.owner == o {
		return n
	}
	entries := make([]hentry[V], len(n.entries), len(n.entries)+1)
	copy(entries, n.entries)
	return &hnode[V]{owner: o, bitmap: n.bitmap, entries: entries, bucket: n.bucket}
}

func (n *hnode[V]) set(o *owner, shift uint, leaf hentry[V], added *bool) *hnode[V] {
	if n.bucket {
		for i, e := range n.entries {
			if e.key == leaf.key {
				out := n.editable(o)
				out.entries[i].value = leaf.value
				return out
			}
		}
		out := n.editable(o)
		out.entries = append(out.entries, leaf)
		*added = true
		return out
	}

	bit := uint32(1) << ((leaf.hash >> shift) & hamtMask)
	idx := bits.OnesCount32(n.bitmap & (bit - 1))

	if n.bitmap&bit == 0 {
		out := n.editable(o)
		out.entries = append(out.entries, hentry[V]{})
		copy(out.entries[idx+1:], out.entries[idx:])
		out.entries[idx] = leaf
		out.bitmap |= bit
		*added = true
		return out
	}

	cur := n.entries[idx]
	out := n.editable(o)
	switch {
	case cur.child != nil:
		out.entries[idx].child = cur.child.set(o, shift+hamtBits, leaf, added)
	case cur.key == leaf.key:
		out.entries[idx].value = leaf.value
	default:
		out.entries[idx] = hentry[V]{
			hash:  cur.hash,
			child: mergeLeaves(o, shift+hamtBits, cur, leaf),
		}
		*added = true
	}
	return out
}

// mergeLeaves builds the smallest subtree holding two distinct keys.
func mergeLeaves[V any](o *owner, shift uint, a, b hentry[V]) *hnode[V] {
	if shift > maxShift || a.hash == b.hash {
		return &hnode[V]{owner: o, bucket: true, entries: []hentry[V]{a, b}}
	}
	ai := (a.hash >> shift) & hamtMask
	bi := (b.hash >> shift) & hamtMask
	if ai == bi {
		return &hnode[V]{
			owner:   o,
			bitmap:  uint32(1) << ai,
			entries: []hentry[V]{{hash: a.hash, child: mergeLeaves(o, shift+hamtBits, a, b)}},
		}
	}
	entries := []hentry[V]{a, b}
	if bi < ai {
		entries[0], entries[1] = b, a
	}
	return &hnode[V]{owner: o, bitmap: uint32(1)<<ai | uint32(1)<<bi, entries: entries}
}

func (n *hnode[V]) delete(o *owner, shift uint, hash uint64, key string, removed *bool) *hnode[V] {
	if n.bucket {
		for i, e := range n.entries {
			if e.key != key {
				continue
			}
			*removed = true
			out := n.editable(o)
			out.entries = append(out.entries[:i], out.entries[i+1:]...)
			return out
		}
		return n
	}

	bit := uint32(1) << ((hash >> shift) & hamtMask)
	if n.bitmap&bit == 0 {
		return n
	}
	idx := bits.OnesCount32(n.bitmap & (bit - 1))
	cur := n.entries[idx]

	if cur.child == nil {
		if cur.key != key {
			return n
		}
		*removed = true
		out := n.editable(o)
		out.entries = append(out.entries[:idx], out.entries[idx+1:]...)
		out.bitmap &^= bit
		return out
	}

	child := cur.child.delete(o, shift+hamtBits, hash, key, removed)
	if !*removed {
		return n
	}
	out := n.editable(o)
	switch {
	case len(child.entries) == 0:
		out.entries = append(out.entries[:idx], out.entries[idx+1:]...)
		out.bitmap &^= bit
	case len(child.entries) == 1 && child.entries[0].child == nil:
		// Collapse a single remaining leaf into this level.
		out.entries[idx] = child.entries[0]
	default:
		out.entries[idx].child = child
	}
	return out
}
