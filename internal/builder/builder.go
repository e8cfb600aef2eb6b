// Package builder records edits against a private working copy of a tree
// and reconciles them with the owner's live tree at commit time.
//
// A Root is opened over a snapshot. Cursors positioned at nodes issue
// edits; each edit is applied to the working copy immediately and appended
// to an ordered action log. GetTree (or Commit) either freezes the working
// copy as is or, when the owner's tree moved on in the meantime, replays
// the log onto the newer tree. See reconcile.go.
//
// A Root and its cursors belong to one goroutine. Trees are the only values
// that cross goroutines.
package builder

import (
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/tree"
)

// Source is the owner's live-state handle. Tree returns the tree the owner
// currently considers current.
type Source interface {
	Tree() *tree.Tree
}

// Registry resolves transformer names to their declarations.
type Registry interface {
	Lookup(name string) (ir.TransformerSpec, bool)
}

// EditInfo describes a builder session.
type EditInfo struct {
	// SourceTree is the snapshot the working copy is based on. Its pointer
	// is compared against the owner's live tree at commit time.
	SourceTree *tree.Tree

	// Count is the number of recorded actions.
	Count int

	// LastUpdate is the ref most recently added or updated, or "".
	LastUpdate ir.Ref
}

// Commit is the outcome of reconciling a builder.
type Commit struct {
	Tree *tree.Tree

	// Replayed is true when the action log was replayed onto a newer live
	// tree instead of freezing the working copy directly.
	Replayed bool
}

// Root is the entry point of a builder session. It owns the working copy
// and the action log.
//
// A Root is meant for one commit. After the owner installs its tree, open a
// new Root from the owner for further edits.
type Root struct {
	working *tree.Transient
	info    EditInfo
	actions []ir.Action

	// committed is the tree the last successful commit returned.
	committed *tree.Tree

	source   Source
	registry Registry
	refs     RefGenerator
	logger   *slog.Logger
}

// Option configures a Root.
type Option func(*Root)

// WithSource sets the owner's live-state handle. Without one, commits
// always freeze the working copy directly.
func WithSource(s Source) Option {
	return func(r *Root) {
		r.source = s
	}
}

// WithRegistry enables capability and params checks against reg.
func WithRegistry(reg Registry) Option {
	return func(r *Root) {
		r.registry = reg
	}
}

// WithRefGenerator sets the generator used for refs not given explicitly.
//
// Default: UUIDv7Generator.
func WithRefGenerator(g RefGenerator) Option {
	return func(r *Root) {
		r.refs = g
	}
}

// WithLogger sets the logger used for replay diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Root) {
		r.logger = l
	}
}

// NewRoot opens a builder session over t.
func NewRoot(t *tree.Tree, opts ...Option) *Root {
	r := &Root{
		working: t.AsTransient(),
		info:    EditInfo{SourceTree: t},
		refs:    UUIDv7Generator{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EditInfo returns the session's bookkeeping.
func (r *Root) EditInfo() EditInfo { return r.info }

// Actions returns a copy of the action log in issue order.
func (r *Root) Actions() []ir.Action { return slices.Clone(r.actions) }

// CurrentTree gives read access to the working copy.
func (r *Root) CurrentTree() tree.Reader { return r.working }

// To returns a cursor at ref. It fails with NODE_NOT_FOUND if ref is not in
// the working copy.
func (r *Root) To(ref ir.Ref) (*Cursor, error) {
	if !r.working.Has(ref) {
		return nil, tree.NewNotFoundError("to", ref)
	}
	return &Cursor{root: r, ref: ref}, nil
}

// ToRoot returns a cursor at the tree root.
func (r *Root) ToRoot() *Cursor {
	return &Cursor{root: r, ref: r.working.RootRef()}
}

// Delete removes ref and its subtree. Deleting an absent ref is a no-op
// and records nothing. Deleting the root clears its descendants.
func (r *Root) Delete(ref ir.Ref) *Root {
	if !r.working.Remove(ref) {
		return r
	}
	r.record(ir.DeleteAction{Ref: ref}, "")
	return r
}

// GetTree reconciles the session and returns the resulting tree.
func (r *Root) GetTree() (*tree.Tree, error) {
	c, err := r.Commit()
	if err != nil {
		return nil, err
	}
	return c.Tree, nil
}

// Commit reconciles the session like GetTree and also reports whether the
// action log had to be replayed.
func (r *Root) Commit() (Commit, error) {
	return r.buildTree()
}

func (r *Root) record(a ir.Action, last ir.Ref) {
	r.actions = append(r.actions, a)
	r.info.Count++
	if last != "" {
		r.info.LastUpdate = last
	}
}

func (r *Root) newRef() ir.Ref {
	return ir.Ref(r.refs.Generate())
}
