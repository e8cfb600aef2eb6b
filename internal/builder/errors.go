package builder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/tree"
)

// CodeConflict is the error code reported for replay conflicts.
const CodeConflict = "CONFLICT"

var (
	// ErrUnknownTransformer is returned when a registry is configured and
	// does not know the requested transformer.
	ErrUnknownTransformer = errors.New("unknown transformer")

	// ErrInvalidParams is returned when params do not match the
	// transformer's declared param types.
	ErrInvalidParams = errors.New("invalid params")
)

// ConflictError reports that the action log could not be replayed onto the
// owner's newer tree: a node the session expected was removed concurrently,
// or a ref the session minted is now taken.
//
// ConflictError is never recovered from inside the builder. Callers that
// want to retry open a new builder from a fresh snapshot and re-issue their
// edits (see state.Update).
type ConflictError struct {
	// Index is the position of the failing action in the log.
	Index int

	// Action is the action that failed.
	Action ir.Action

	// Ref is the ref the failure is about. For an add under a vanished
	// parent this is the parent, not the new node.
	Ref ir.Ref

	// Err is the underlying tree error (NODE_NOT_FOUND or DUPLICATE_REF).
	Err error
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: replaying action %d (%s) on %q: %v", CodeConflict, e.Index, e.Action.Kind(), e.Ref, e.Err)
}

// Unwrap returns the underlying tree error.
func (e *ConflictError) Unwrap() error { return e.Err }

// IsConflict reports whether err is or wraps a *ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// TypeMismatchError reports a transformer applied under a node whose output
// type it does not accept. It is recoverable: the working copy is unchanged.
type TypeMismatchError struct {
	Transformer string
	Parent      ir.Ref
	ParentType  string

	// Accepts lists the types the transformer can be applied under.
	Accepts []string

	// Produces is set for insert, which must preserve the parent's type.
	Produces string
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	if e.Produces != "" {
		return fmt.Sprintf("TYPE_MISMATCH: insert %s under %q: produces %s, parent is %s",
			e.Transformer, e.Parent, e.Produces, e.ParentType)
	}
	return fmt.Sprintf("TYPE_MISMATCH: %s under %q: parent type %s not in [%s]",
		e.Transformer, e.Parent, e.ParentType, strings.Join(e.Accepts, ", "))
}

// IsTypeMismatch reports whether err is or wraps a *TypeMismatchError.
func IsTypeMismatch(err error) bool {
	var te *TypeMismatchError
	return errors.As(err, &te)
}

// CodeOf maps err to a short code for traces and scenario expectations:
// CONFLICT, TYPE_MISMATCH, UNKNOWN_TRANSFORMER, INVALID_PARAMS or a tree
// error code. It returns "" for nil and "ERROR" for anything else.
func CodeOf(err error) string {
	switch {
	case err == nil:
		return ""
	case IsConflict(err):
		return CodeConflict
	case IsTypeMismatch(err):
		return "TYPE_MISMATCH"
	case errors.Is(err, ErrUnknownTransformer):
		return "UNKNOWN_TRANSFORMER"
	case errors.Is(err, ErrInvalidParams):
		return "INVALID_PARAMS"
	}
	if code := tree.CodeOf(err); code != "" {
		return string(code)
	}
	return "ERROR"
}
