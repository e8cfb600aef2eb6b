package builder

import (
	"fmt"

	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/tree"
)

// Cursor is a builder positioned at one node. Apply-like operations return
// a cursor at the node they created or touched; Update and Delete return the
// Root, since edits are conventionally chained from the top again.
//
// Every operation first checks that the cursor's node is still in the
// working copy. A cursor whose node was deleted fails with NODE_NOT_FOUND
// instead of silently editing elsewhere.
type Cursor struct {
	root *Root
	ref  ir.Ref
}

// Ref returns the ref the cursor points at.
func (c *Cursor) Ref() ir.Ref { return c.ref }

// Root returns the cursor's builder.
func (c *Cursor) Root() *Root { return c.root }

func (c *Cursor) node(op string) (ir.Transform, error) {
	tr, ok := c.root.working.Get(c.ref)
	if !ok {
		return ir.Transform{}, tree.NewNotFoundError(op, c.ref)
	}
	return tr, nil
}

// Apply adds a new child running transformer under the cursor's node and
// returns a cursor at it. The ref comes from opts.Ref or the ref generator.
func (c *Cursor) Apply(transformer string, params ir.IRValue, opts ir.Options) (*Cursor, error) {
	parent, err := c.node("apply")
	if err != nil {
		return nil, err
	}
	return c.root.add(parent, transformer, params, opts.Ref, opts.Tags)
}

// Group is Apply for a transformer meant to be treated as having the same
// capabilities as the node it is applied to. It behaves exactly like Apply.
func (c *Cursor) Group(transformer string, params ir.IRValue, opts ir.Options) (*Cursor, error) {
	parent, err := c.node("group")
	if err != nil {
		return nil, err
	}
	return c.root.add(parent, transformer, params, opts.Ref, opts.Tags)
}

// ApplyOrUpdate updates ref's params when ref already exists, keeping its
// transformer, and otherwise applies transformer under the cursor's node
// with ref as the new node's ref. ref always names the node: opts.Ref is
// ignored, and opts.Tags only apply when a node is created.
func (c *Cursor) ApplyOrUpdate(ref ir.Ref, transformer string, params ir.IRValue, opts ir.Options) (*Cursor, error) {
	parent, err := c.node("apply-or-update")
	if err != nil {
		return nil, err
	}
	if existing, ok := c.root.working.Get(ref); ok {
		if err := c.root.update(existing, params); err != nil {
			return nil, err
		}
		return &Cursor{root: c.root, ref: ref}, nil
	}
	return c.root.add(parent, transformer, params, ref, opts.Tags)
}

// ApplyOrUpdateTagged looks for the first direct child carrying any of tags.
// If there is one, its params are replaced and its tags become the union of
// its own tags, tags and opts.Tags. Otherwise a new child is applied with
// the union of tags and opts.Tags. Calling it repeatedly with the same tags
// never creates more than one such child.
func (c *Cursor) ApplyOrUpdateTagged(tags []string, transformer string, params ir.IRValue, opts ir.Options) (*Cursor, error) {
	parent, err := c.node("apply-or-update-tagged")
	if err != nil {
		return nil, err
	}
	for _, ref := range c.root.working.Children(c.ref) {
		child, _ := c.root.working.Get(ref)
		if !child.HasTags(tags...) {
			continue
		}
		if err := c.root.updateTagged(child, params, TagsUnion(child.Tags, tags, opts.Tags)); err != nil {
			return nil, err
		}
		return &Cursor{root: c.root, ref: ref}, nil
	}
	return c.root.add(parent, transformer, params, opts.Ref, TagsUnion(tags, opts.Tags))
}

// Insert places a new node between the cursor's node and all of its current
// children, which move under the new node in their original order. It
// returns a cursor at the new node.
func (c *Cursor) Insert(transformer string, params ir.IRValue, opts ir.Options) (*Cursor, error) {
	parent, err := c.node("insert")
	if err != nil {
		return nil, err
	}
	r := c.root
	params, err = r.checkApply(parent, transformer, params, true)
	if err != nil {
		return nil, err
	}
	ref := opts.Ref
	if ref == "" {
		ref = r.newRef()
	}
	tr := ir.Transform{
		Ref:         ref,
		Parent:      parent.Ref,
		Transformer: transformer,
		Params:      params,
		Tags:        ir.NormalizeTags(opts.Tags),
	}
	if err := insertBelow(r.working, parent.Ref, tr); err != nil {
		return nil, fmt.Errorf("insert %s: %w", ref, err)
	}
	r.record(ir.InsertAction{Parent: parent.Ref, Transform: tr}, ref)
	return &Cursor{root: r, ref: ref}, nil
}

// Update replaces the node's params. Nothing is recorded when params equal
// the current ones.
func (c *Cursor) Update(params ir.IRValue) (*Root, error) {
	tr, err := c.node("update")
	if err != nil {
		return nil, err
	}
	if err := c.root.update(tr, params); err != nil {
		return nil, err
	}
	return c.root, nil
}

// UpdateWith replaces the node's params with fn applied to a copy of the
// current params.
func (c *Cursor) UpdateWith(fn func(old ir.IRValue) ir.IRValue) (*Root, error) {
	tr, err := c.node("update")
	if err != nil {
		return nil, err
	}
	if err := c.root.update(tr, fn(ir.Clone(tr.Params))); err != nil {
		return nil, err
	}
	return c.root, nil
}

// To returns a cursor at ref.
func (c *Cursor) To(ref ir.Ref) (*Cursor, error) {
	if _, err := c.node("to"); err != nil {
		return nil, err
	}
	return c.root.To(ref)
}

// ToRoot returns a cursor at the tree root.
func (c *Cursor) ToRoot() (*Cursor, error) {
	if _, err := c.node("to-root"); err != nil {
		return nil, err
	}
	return c.root.ToRoot(), nil
}

// Delete removes ref and its subtree; see Root.Delete.
func (c *Cursor) Delete(ref ir.Ref) (*Root, error) {
	if _, err := c.node("delete"); err != nil {
		return nil, err
	}
	return c.root.Delete(ref), nil
}

// GetTree reconciles the session; see Root.GetTree.
func (c *Cursor) GetTree() (*tree.Tree, error) {
	if _, err := c.node("get-tree"); err != nil {
		return nil, err
	}
	return c.root.GetTree()
}

func (r *Root) add(parent ir.Transform, transformer string, params ir.IRValue, ref ir.Ref, tags []string) (*Cursor, error) {
	params, err := r.checkApply(parent, transformer, params, false)
	if err != nil {
		return nil, err
	}
	if ref == "" {
		ref = r.newRef()
	}
	tr := ir.Transform{
		Ref:         ref,
		Parent:      parent.Ref,
		Transformer: transformer,
		Params:      params,
		Tags:        ir.NormalizeTags(tags),
	}
	if err := r.working.Add(tr); err != nil {
		return nil, err
	}
	r.record(ir.AddAction{Transform: tr}, ref)
	return &Cursor{root: r, ref: ref}, nil
}

func (r *Root) update(tr ir.Transform, params ir.IRValue) error {
	params, err := r.checkUpdate(tr, params)
	if err != nil {
		return err
	}
	changed, err := r.working.SetParams(tr.Ref, params)
	if err != nil {
		return err
	}
	if changed {
		r.record(ir.UpdateAction{Ref: tr.Ref, Params: params}, tr.Ref)
	}
	return nil
}

// updateTagged sets params and tags together and records a single update
// when either changed.
func (r *Root) updateTagged(tr ir.Transform, params ir.IRValue, tags []string) error {
	params, err := r.checkUpdate(tr, params)
	if err != nil {
		return err
	}
	paramsChanged, err := r.working.SetParams(tr.Ref, params)
	if err != nil {
		return err
	}
	tagsChanged, err := r.working.SetTags(tr.Ref, tags)
	if err != nil {
		return err
	}
	if paramsChanged || tagsChanged {
		updated, _ := r.working.Get(tr.Ref)
		r.record(ir.UpdateAction{Ref: tr.Ref, Params: updated.Params, Tags: updated.Tags}, tr.Ref)
	}
	return nil
}
