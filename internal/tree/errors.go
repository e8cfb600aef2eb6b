package tree

import (
	"errors"
	"fmt"

	"github.com/roach88/statetree/internal/ir"
)

// ErrorCode categorizes structural errors.
type ErrorCode string

const (
	// CodeNodeNotFound: an operation referenced a ref that is not in the tree.
	CodeNodeNotFound ErrorCode = "NODE_NOT_FOUND"

	// CodeDuplicateRef: an add targeted a ref that is already in the tree.
	CodeDuplicateRef ErrorCode = "DUPLICATE_REF"

	// CodeInvalidMove: a reparent would detach the root or create a cycle.
	CodeInvalidMove ErrorCode = "INVALID_MOVE"

	// CodeInvariant: Validate found a structural inconsistency.
	CodeInvariant ErrorCode = "INVARIANT_VIOLATION"
)

// Sentinel errors for errors.Is matching. *Error values match the sentinel
// of their code.
var (
	ErrNodeNotFound = errors.New("node not found")
	ErrDuplicateRef = errors.New("duplicate ref")
	ErrInvalidMove  = errors.New("invalid move")
	ErrInvariant    = errors.New("invariant violation")
)

// Error is a structural error raised by tree operations.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Ref is the offending ref.
	Ref ir.Ref

	// Op names the operation that failed (add, set-params, ...).
	Op string

	// Message adds context, if any.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s %q: %s", e.Code, e.Op, e.Ref, e.Message)
	}
	return fmt.Sprintf("%s: %s %q", e.Code, e.Op, e.Ref)
}

// Is matches the sentinel error for e's code.
func (e *Error) Is(target error) bool {
	switch e.Code {
	case CodeNodeNotFound:
		return target == ErrNodeNotFound
	case CodeDuplicateRef:
		return target == ErrDuplicateRef
	case CodeInvalidMove:
		return target == ErrInvalidMove
	case CodeInvariant:
		return target == ErrInvariant
	}
	return false
}

func notFound(op string, ref ir.Ref) *Error {
	return &Error{Code: CodeNodeNotFound, Op: op, Ref: ref}
}

// NewNotFoundError returns a NODE_NOT_FOUND error for ref. Packages that
// validate refs before touching a tree use it to report the same error a
// tree operation would.
func NewNotFoundError(op string, ref ir.Ref) *Error {
	return notFound(op, ref)
}

// IsNotFound reports whether err is or wraps a NODE_NOT_FOUND error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}

// IsDuplicate reports whether err is or wraps a DUPLICATE_REF error.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateRef)
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}
