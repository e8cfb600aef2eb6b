package harness

import (
	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/tree"
)

// TraceEvent records one executed timeline step.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Session string `json:"session"`
	Op      string `json:"op"`
	At      string `json:"at,omitempty"`
	// Ref is the node the step produced or targeted.
	Ref string `json:"ref,omitempty"`
	// Error is the error code of a failed step.
	Error    string `json:"error,omitempty"`
	Replayed bool   `json:"replayed,omitempty"`
	// Version is the owner's version after a commit step.
	Version uint64 `json:"version,omitempty"`
}

// irObject renders the event for canonical snapshots, omitting empty fields.
func (e TraceEvent) irObject() ir.IRObject {
	obj := ir.IRObject{
		"seq":     ir.IRInt(e.Seq),
		"session": ir.IRString(e.Session),
		"op":      ir.IRString(e.Op),
	}
	if e.At != "" {
		obj["at"] = ir.IRString(e.At)
	}
	if e.Ref != "" {
		obj["ref"] = ir.IRString(e.Ref)
	}
	if e.Error != "" {
		obj["error"] = ir.IRString(e.Error)
	}
	if e.Replayed {
		obj["replayed"] = ir.IRBool(true)
	}
	if e.Version != 0 {
		obj["version"] = ir.IRInt(int64(e.Version))
	}
	return obj
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Tree is the final live tree.
	Tree *tree.Tree `json:"-"`

	// Version is the owner's final version.
	Version uint64 `json:"version"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace.
func (r *Result) AddTrace(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}
