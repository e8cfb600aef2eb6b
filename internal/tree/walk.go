package tree

import (
	"fmt"
	"strings"

	"github.com/roach88/statetree/internal/ir"
)

// Walk visits every transform reachable from the root in pre-order,
// children in order. depth is 0 for the root. Returning false from fn stops
// the walk.
func (v *view) Walk(fn func(tr ir.Transform, depth int) bool) {
	v.walkFrom(v.root, fn)
}

func (v *view) walkFrom(start ir.Ref, fn func(ir.Transform, int) bool) {
	type frame struct {
		ref   ir.Ref
		depth int
	}
	stack := []frame{{ref: start}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		tr, ok := v.Get(f.ref)
		if !ok {
			continue
		}
		if !fn(tr, f.depth) {
			return
		}
		kids := v.childRefs(f.ref)
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{ref: kids[i], depth: f.depth + 1})
		}
	}
}

// Subtree returns ref followed by all of its descendants in pre-order.
// It returns nil when ref is absent.
func (v *view) Subtree(ref ir.Ref) []ir.Ref {
	var out []ir.Ref
	v.walkFrom(ref, func(tr ir.Transform, _ int) bool {
		out = append(out, tr.Ref)
		return true
	})
	return out
}

// Validate checks the structural invariants: the root is present and is
// its own parent, every other node's parent is present and lists the node
// exactly once, every listed child points back at the listing parent, and
// every node is reachable from the root.
func (v *view) Validate() error {
	root, ok := v.Get(v.root)
	if !ok {
		return invariant(v.root, "root is missing")
	}
	if root.Parent != root.Ref {
		return invariant(v.root, "root parent is "+string(root.Parent))
	}

	var err error
	v.transforms.Range(func(key string, tr ir.Transform) bool {
		ref := ir.Ref(key)
		if tr.Ref != ref {
			err = invariant(ref, "stored under a different ref "+string(tr.Ref))
			return false
		}
		if _, ok := v.children.Get(key); !ok {
			err = invariant(ref, "no children entry")
			return false
		}
		if ref == v.root {
			return true
		}
		if !v.Has(tr.Parent) {
			err = invariant(ref, "parent "+string(tr.Parent)+" is missing")
			return false
		}
		seen := 0
		for _, c := range v.childRefs(tr.Parent) {
			if c == ref {
				seen++
			}
		}
		if seen != 1 {
			err = invariant(ref, fmt.Sprintf("listed %d times by parent %s", seen, tr.Parent))
			return false
		}
		return true
	})
	if err != nil {
		return err
	}

	v.children.Range(func(key string, cl *childList) bool {
		parent := ir.Ref(key)
		if !v.Has(parent) {
			err = invariant(parent, "children entry for a missing node")
			return false
		}
		for _, c := range cl.refs {
			tr, ok := v.Get(c)
			if !ok {
				err = invariant(parent, "lists missing child "+string(c))
				return false
			}
			if tr.Parent != parent {
				err = invariant(c, "listed by "+string(parent)+" but parent is "+string(tr.Parent))
				return false
			}
		}
		return true
	})
	if err != nil {
		return err
	}

	reached := 0
	v.Walk(func(ir.Transform, int) bool {
		reached++
		return reached <= v.Len()
	})
	if reached != v.Len() {
		return invariant(v.root, fmt.Sprintf("%d of %d nodes reachable from the root", reached, v.Len()))
	}
	return nil
}

func invariant(ref ir.Ref, msg string) *Error {
	return &Error{Code: CodeInvariant, Op: "validate", Ref: ref, Message: msg}
}

// Dump renders the tree as a pre-order list of transforms, children in
// order. The result is deterministic for a given tree content and is what
// golden snapshots and digests are computed from.
func (v *view) Dump() ir.IRArray {
	out := make(ir.IRArray, 0, v.Len())
	v.Walk(func(tr ir.Transform, _ int) bool {
		out = append(out, tr.IRObject())
		return true
	})
	return out
}

// Digest returns the content digest of Dump.
func (v *view) Digest() (string, error) {
	return ir.TreeDigest(v.Dump())
}

// Outline renders r as nested "ref(child,child)" text, children in order.
func Outline(r Reader) string {
	var buf strings.Builder
	outline(r, r.RootRef(), &buf)
	return buf.String()
}

func outline(r Reader, ref ir.Ref, buf *strings.Builder) {
	buf.WriteString(string(ref))
	kids := r.Children(ref)
	if len(kids) == 0 {
		return
	}
	buf.WriteByte('(')
	for i, k := range kids {
		if i > 0 {
			buf.WriteByte(',')
		}
		outline(r, k, buf)
	}
	buf.WriteByte(')')
}
