package builder

// # Reconciliation
//
// A builder edits a private working copy opened over the snapshot the owner
// held when the builder was created (EditInfo.SourceTree). By the time the
// builder commits, other sessions may have installed newer trees. The
// reconciler has exactly two outcomes.
//
// ## Direct
//
// No source was configured, or the source still returns the very same
// *tree.Tree the session started from, or the tree this builder's last
// successful commit produced:
//
//	source.Tree() == info.SourceTree   →  working.AsImmutable()
//	source.Tree() == last commit result →  working.AsImmutable()
//
// The working copy already holds every edit of such a tree, so the log is
// not replayed onto it.
//
// Identity is pointer identity. Equal content installed by someone else
// still counts as a change.
//
// ## Replayed
//
// The live tree moved on. A fresh working copy is opened over it and the
// action log is applied in issue order:
//
//	Add     → Add                 (DUPLICATE_REF or missing parent: conflict)
//	Update  → SetParams [+SetTags] (missing node: conflict)
//	Delete  → Remove              (missing node: conflict)
//	Insert  → capture children of Parent, Add, ChangeParent each capture
//
// Order matters: later actions may target refs created by earlier ones.
// Every action is a deterministic function of (recorded data, tree state),
// so replaying onto a tree that only differs in unrelated nodes yields the
// same edits the session saw. Refs minted by the session must be globally
// unique for this to hold.
//
// After a successful replay the builder adopts the replayed working copy and
// its frozen result becomes the new SourceTree. Whichever path produced it,
// once the owner installs a builder's result, calling GetTree again takes
// the Direct path and returns the same pointer.
//
// A conflict is returned as *ConflictError naming the action and ref. The
// builder is left as it was, so the caller can inspect it, but it cannot
// succeed against that live tree; retrying means opening a new builder from
// a fresh snapshot.

import (
	"errors"
	"fmt"

	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/tree"
)

func (r *Root) buildTree() (Commit, error) {
	if r.source == nil {
		return r.freeze(), nil
	}
	live := r.source.Tree()
	if live == r.info.SourceTree || (r.committed != nil && live == r.committed) {
		return r.freeze(), nil
	}

	r.logger.Debug("replaying builder actions",
		"actions", len(r.actions),
		"live_size", live.Len(),
	)
	working, err := Replay(live, r.actions)
	if err != nil {
		r.logger.Debug("replay conflict", "error", err)
		return Commit{}, err
	}
	r.working = working
	frozen := working.AsImmutable()
	r.info.SourceTree = frozen
	r.committed = frozen
	return Commit{Tree: frozen, Replayed: true}, nil
}

func (r *Root) freeze() Commit {
	r.committed = r.working.AsImmutable()
	return Commit{Tree: r.committed}
}

// Replay applies actions in order to a working copy opened over base. The
// first action that cannot be applied stops the replay with a
// *ConflictError.
func Replay(base *tree.Tree, actions []ir.Action) (*tree.Transient, error) {
	w := base.AsTransient()
	for i, a := range actions {
		if err := applyAction(w, a); err != nil {
			ref := a.Target()
			var te *tree.Error
			if errors.As(err, &te) {
				ref = te.Ref
			}
			return nil, &ConflictError{Index: i, Action: a, Ref: ref, Err: err}
		}
	}
	return w, nil
}

func applyAction(w *tree.Transient, a ir.Action) error {
	switch act := a.(type) {
	case ir.AddAction:
		return w.Add(act.Transform)

	case ir.UpdateAction:
		if _, err := w.SetParams(act.Ref, act.Params); err != nil {
			return err
		}
		if act.Tags != nil {
			if _, err := w.SetTags(act.Ref, act.Tags); err != nil {
				return err
			}
		}
		return nil

	case ir.DeleteAction:
		if !w.Has(act.Ref) {
			return tree.NewNotFoundError("delete", act.Ref)
		}
		w.Remove(act.Ref)
		return nil

	case ir.InsertAction:
		return insertBelow(w, act.Parent, act.Transform)
	}
	return fmt.Errorf("unknown action kind %q", a.Kind())
}

// insertBelow adds tr under parent and moves parent's previous children
// under tr, keeping their order.
func insertBelow(w *tree.Transient, parent ir.Ref, tr ir.Transform) error {
	if !w.Has(parent) {
		return tree.NewNotFoundError("insert", parent)
	}
	captured := w.Children(parent)
	tr.Parent = parent
	if err := w.Add(tr); err != nil {
		return err
	}
	for _, child := range captured {
		if err := w.ChangeParent(child, tr.Ref); err != nil {
			return err
		}
	}
	return nil
}
