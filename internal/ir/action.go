package ir

import "fmt"

// ActionKind names a builder action variant.
type ActionKind string

// The closed set of action kinds. A new builder primitive needs a new kind
// here and a replay case in the builder; there is no generic action.
const (
	ActionAdd    ActionKind = "add"
	ActionUpdate ActionKind = "update"
	ActionDelete ActionKind = "delete"
	ActionInsert ActionKind = "insert"
)

// Action is one recorded edit in a builder's action log.
// Only AddAction, UpdateAction, DeleteAction and InsertAction implement it.
type Action interface {
	Kind() ActionKind

	// Target is the ref the action is about: the new transform for add
	// and insert, the edited or deleted node otherwise.
	Target() Ref

	action()
}

// AddAction records a transform added as the last child of its parent.
type AddAction struct {
	Transform Transform
}

func (AddAction) action()          {}
func (AddAction) Kind() ActionKind { return ActionAdd }
func (a AddAction) Target() Ref    { return a.Transform.Ref }
func (a AddAction) String() string {
	return fmt.Sprintf("add %s under %s", a.Transform.Ref, a.Transform.Parent)
}

// UpdateAction records new params for an existing transform. Tags is nil
// for plain updates; tagged updates also carry the tag set they wrote.
type UpdateAction struct {
	Ref    Ref
	Params IRValue
	Tags   []string
}

func (UpdateAction) action()          {}
func (UpdateAction) Kind() ActionKind { return ActionUpdate }
func (a UpdateAction) Target() Ref    { return a.Ref }
func (a UpdateAction) String() string { return fmt.Sprintf("update %s", a.Ref) }

// DeleteAction records removal of a transform and its subtree.
type DeleteAction struct {
	Ref Ref
}

func (DeleteAction) action()          {}
func (DeleteAction) Kind() ActionKind { return ActionDelete }
func (a DeleteAction) Target() Ref    { return a.Ref }
func (a DeleteAction) String() string { return fmt.Sprintf("delete %s", a.Ref) }

// InsertAction records a transform placed between Parent and all of the
// children Parent had at the time; those children are moved under the new
// transform in their original order.
type InsertAction struct {
	Parent    Ref
	Transform Transform
}

func (InsertAction) action()          {}
func (InsertAction) Kind() ActionKind { return ActionInsert }
func (a InsertAction) Target() Ref    { return a.Transform.Ref }
func (a InsertAction) String() string {
	return fmt.Sprintf("insert %s below %s", a.Transform.Ref, a.Parent)
}

// ActionIRObject renders an action for traces and golden snapshots.
func ActionIRObject(a Action) IRObject {
	obj := IRObject{"kind": IRString(a.Kind())}
	switch act := a.(type) {
	case AddAction:
		obj["transform"] = act.Transform.IRObject()
	case UpdateAction:
		obj["ref"] = IRString(act.Ref)
		if act.Params != nil {
			obj["params"] = act.Params
		}
		if act.Tags != nil {
			tags := make(IRArray, len(act.Tags))
			for i, tag := range act.Tags {
				tags[i] = IRString(tag)
			}
			obj["tags"] = tags
		}
	case DeleteAction:
		obj["ref"] = IRString(act.Ref)
	case InsertAction:
		obj["parent"] = IRString(act.Parent)
		obj["transform"] = act.Transform.IRObject()
	}
	return obj
}
