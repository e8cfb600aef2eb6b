package tree

import (
	"slices"

	"github.com/roach88/statetree/internal/ir"
)

// Transient is a mutable working copy of a Tree.
//
// Edits are applied in place to structure the transient owns and copied
// on first write otherwise, so opening a transient and freezing it again
// both cost O(1), and each edit costs O(log n) plus the size of the one
// child list it touches.
//
// A Transient is owned by a single goroutine. It is not safe for
// concurrent use.
type Transient struct {
	view
	owner *owner

	// frozen is the last Tree published from (or opened over) this
	// transient; returned again by AsImmutable while nothing changed.
	frozen *Tree
	dirty  bool
}

// AsImmutable publishes the current state as a Tree.
//
// Later edits to the transient never affect the returned tree: the owner
// token is rotated so every structure reachable from the published tree
// is copied before it is written again. When nothing changed since the
// previous call (or since the transient was opened) the same *Tree is
// returned.
func (t *Transient) AsImmutable() *Tree {
	if !t.dirty && t.frozen != nil {
		return t.frozen
	}
	t.frozen = &Tree{view: t.view}
	t.owner = &owner{}
	t.dirty = false
	return t.frozen
}

// Changed reports whether the transient was edited since it was opened or
// last frozen.
func (t *Transient) Changed() bool { return t.dirty }

func (t *Transient) setTransform(tr ir.Transform) {
	t.transforms = t.transforms.Set(t.owner, string(tr.Ref), tr)
	t.dirty = true
}

func (t *Transient) setChildren(ref ir.Ref, cl *childList) {
	t.children = t.children.Set(t.owner, string(ref), cl)
	t.dirty = true
}

func (t *Transient) appendChild(parent, child ir.Ref) {
	cl, _ := t.children.Get(string(parent))
	cl = cl.editable(t.owner)
	cl.refs = append(cl.refs, child)
	t.setChildren(parent, cl)
}

func (t *Transient) removeChild(parent, child ir.Ref) {
	cl, ok := t.children.Get(string(parent))
	if !ok {
		return
	}
	idx := slices.Index(cl.refs, child)
	if idx < 0 {
		return
	}
	cl = cl.editable(t.owner)
	cl.refs = slices.Delete(cl.refs, idx, idx+1)
	t.setChildren(parent, cl)
}

// Add inserts tr as the last child of tr.Parent.
//
// It fails with DUPLICATE_REF if tr.Ref is already present and with
// NODE_NOT_FOUND if the parent is absent. On failure the transient is
// unchanged.
func (t *Transient) Add(tr ir.Transform) error {
	if t.Has(tr.Ref) {
		return &Error{Code: CodeDuplicateRef, Op: "add", Ref: tr.Ref}
	}
	if !t.Has(tr.Parent) {
		return &Error{Code: CodeNodeNotFound, Op: "add", Ref: tr.Parent, Message: "parent of " + string(tr.Ref)}
	}
	tr.Tags = ir.NormalizeTags(tr.Tags)
	t.setTransform(tr)
	t.setChildren(tr.Ref, &childList{owner: t.owner})
	t.appendChild(tr.Parent, tr.Ref)
	return nil
}

// Remove deletes ref together with its whole subtree and reports whether
// anything was removed. Removing an absent ref is a no-op. Removing the
// root deletes every descendant and keeps the root itself.
func (t *Transient) Remove(ref ir.Ref) bool {
	tr, ok := t.Get(ref)
	if !ok {
		return false
	}

	doomed := t.Subtree(ref)
	if ref == t.root {
		doomed = doomed[1:]
		if len(doomed) == 0 {
			return false
		}
		t.setChildren(ref, &childList{owner: t.owner})
	} else {
		t.removeChild(tr.Parent, ref)
	}

	for _, r := range doomed {
		t.transforms, _ = t.transforms.Delete(t.owner, string(r))
		t.children, _ = t.children.Delete(t.owner, string(r))
	}
	t.dirty = true
	return true
}

// SetParams replaces ref's params. It reports whether anything changed:
// params equal by value to the current ones are a no-op.
func (t *Transient) SetParams(ref ir.Ref, params ir.IRValue) (bool, error) {
	tr, ok := t.Get(ref)
	if !ok {
		return false, notFound("set-params", ref)
	}
	if ir.Equal(tr.Params, params) {
		return false, nil
	}
	t.setTransform(tr.WithParams(params))
	return true, nil
}

// SetTags replaces ref's tags with a normalized copy of tags. It reports
// whether the normalized list differs from the current one.
func (t *Transient) SetTags(ref ir.Ref, tags []string) (bool, error) {
	tr, ok := t.Get(ref)
	if !ok {
		return false, notFound("set-tags", ref)
	}
	if ir.TagsEqual(tr.Tags, tags) {
		return false, nil
	}
	t.setTransform(tr.WithTags(tags))
	return true, nil
}

// ChangeParent detaches ref from its parent and appends it to newParent's
// children. Moving the root, or moving a node under its own subtree,
// fails with INVALID_MOVE.
func (t *Transient) ChangeParent(ref, newParent ir.Ref) error {
	tr, ok := t.Get(ref)
	if !ok {
		return notFound("change-parent", ref)
	}
	if !t.Has(newParent) {
		return notFound("change-parent", newParent)
	}
	if ref == t.root {
		return &Error{Code: CodeInvalidMove, Op: "change-parent", Ref: ref, Message: "cannot move the root"}
	}
	for p := newParent; ; {
		if p == ref {
			return &Error{Code: CodeInvalidMove, Op: "change-parent", Ref: ref, Message: "target " + string(newParent) + " is inside the moved subtree"}
		}
		if p == t.root {
			break
		}
		parent, _ := t.Get(p)
		p = parent.Parent
	}

	t.removeChild(tr.Parent, ref)
	t.setTransform(tr.WithParent(newParent))
	t.appendChild(newParent, ref)
	return nil
}
