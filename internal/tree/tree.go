package tree

import (
	"slices"

	"github.com/roach88/statetree/internal/ir"
)

// childList is an ordered list of child refs. Lists stamped with a
// transient's owner are appended to in place; all others are copied first.
type childList struct {
	owner *owner
	refs  []ir.Ref
}

func (c *childList) editable(o *owner) *childList {
	if c != nil && o != nil && c.owner == o {
		return c
	}
	out := &childList{owner: o}
	if c != nil {
		out.refs = make([]ir.Ref, len(c.refs), len(c.refs)+1)
		copy(out.refs, c.refs)
	}
	return out
}

// Reader is the read-only surface shared by Tree and Transient.
type Reader interface {
	Root() ir.Transform
	RootRef() ir.Ref
	Len() int
	Has(ref ir.Ref) bool
	Get(ref ir.Ref) (ir.Transform, bool)
	Children(ref ir.Ref) []ir.Ref
	Walk(fn func(tr ir.Transform, depth int) bool)
	Subtree(ref ir.Ref) []ir.Ref
}

var (
	_ Reader = (*Tree)(nil)
	_ Reader = (*Transient)(nil)
)

// view is the read side shared by Tree and Transient: a ref->transform
// map, a ref->children index and the root ref. Relationships are stored
// only as ref-to-ref edges; the children index is maintained as the exact
// inverse of Transform.Parent.
type view struct {
	transforms hamt[ir.Transform]
	children   hamt[*childList]
	root       ir.Ref
}

// Root returns the root transform.
func (v *view) Root() ir.Transform {
	tr, _ := v.transforms.Get(string(v.root))
	return tr
}

// RootRef returns the root's ref.
func (v *view) RootRef() ir.Ref { return v.root }

// Len returns the number of transforms, root included.
func (v *view) Len() int { return v.transforms.Len() }

// Has reports whether ref is present.
func (v *view) Has(ref ir.Ref) bool {
	_, ok := v.transforms.Get(string(ref))
	return ok
}

// Get returns the transform for ref.
func (v *view) Get(ref ir.Ref) (ir.Transform, bool) {
	return v.transforms.Get(string(ref))
}

// Children returns a copy of ref's child refs in order. It returns nil
// when ref is absent or has no children.
func (v *view) Children(ref ir.Ref) []ir.Ref {
	cl, ok := v.children.Get(string(ref))
	if !ok || cl == nil || len(cl.refs) == 0 {
		return nil
	}
	return slices.Clone(cl.refs)
}

func (v *view) childRefs(ref ir.Ref) []ir.Ref {
	cl, ok := v.children.Get(string(ref))
	if !ok || cl == nil {
		return nil
	}
	return cl.refs
}

// Tree is an immutable snapshot of the state tree.
//
// A Tree never changes after it is published: every edit goes through a
// Transient, and freezing a Transient yields a new Tree that shares all
// untouched structure with its predecessor. Trees are safe for any number
// of concurrent readers.
//
// The *Tree pointer is the snapshot's identity. Two different pointers may
// hold equal content; the builder's conflict detection compares pointers.
type Tree struct {
	view
}

// New returns a tree holding only the default root transform.
func New() *Tree {
	return NewWithRoot(ir.NewRootTransform())
}

// NewWithRoot returns a tree holding only root. The root's parent is
// forced to its own ref.
func NewWithRoot(root ir.Transform) *Tree {
	root.Parent = root.Ref
	root.Tags = ir.NormalizeTags(root.Tags)
	t := &Tree{}
	t.root = root.Ref
	t.transforms = t.transforms.Set(nil, string(root.Ref), root)
	t.children = t.children.Set(nil, string(root.Ref), &childList{})
	return t
}

// AsTransient opens a working copy over the tree. Nothing done to the
// working copy is visible through t.
func (t *Tree) AsTransient() *Transient {
	return &Transient{
		view:   t.view,
		owner:  &owner{},
		frozen: t,
	}
}
