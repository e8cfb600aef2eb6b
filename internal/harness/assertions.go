package harness

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/tree"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Ref      string
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Outline  string // Final tree for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Ref != "" {
		fmt.Fprintf(&buf, " %s", e.Ref)
	}
	buf.WriteString("\n")

	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Outline != "" {
		fmt.Fprintf(&buf, "\nTree: %s\n", e.Outline)
	}

	return buf.String()
}

// EvaluateAssertions evaluates all assertions against the final tree.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(t tree.Reader, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(t, a); err != nil {
			var ae *AssertionError
			if errors.As(err, &ae) {
				ae.Outline = tree.Outline(t)
			}
			errs = append(errs, fmt.Sprintf("assertions[%d]: %s", i, err.Error()))
		}
	}
	return errs
}

func evaluate(t tree.Reader, a Assertion) error {
	ref := ir.Ref(a.Ref)
	fail := func(expected, actual string) error {
		return &AssertionError{Type: a.Type, Ref: a.Ref, Expected: expected, Actual: actual}
	}

	switch a.Type {
	case AssertExists:
		if !t.Has(ref) {
			return fail("node present", "node not found")
		}
		return nil

	case AssertAbsent:
		if t.Has(ref) {
			return fail("node absent", "node present")
		}
		return nil

	case AssertCount:
		got := t.Len()
		if a.Ref != "" {
			got = len(t.Subtree(ref))
		}
		if got != *a.Count {
			return fail(fmt.Sprintf("%d nodes", *a.Count), fmt.Sprintf("%d nodes", got))
		}
		return nil
	}

	node, ok := t.Get(ref)
	if !ok {
		return fail("node present", "node not found")
	}

	switch a.Type {
	case AssertParent:
		if string(node.Parent) != a.Parent {
			return fail("parent "+a.Parent, "parent "+string(node.Parent))
		}

	case AssertChildren:
		got := make([]string, 0)
		for _, c := range t.Children(ref) {
			got = append(got, string(c))
		}
		want := a.Children
		if want == nil {
			want = []string{}
		}
		if !slices.Equal(got, want) {
			return fail(fmt.Sprintf("children %v", want), fmt.Sprintf("children %v", got))
		}

	case AssertTags:
		want := ir.NormalizeTags(a.Tags)
		if !ir.TagsEqual(node.Tags, want) {
			return fail(fmt.Sprintf("tags %v", want), fmt.Sprintf("tags %v", node.Tags))
		}

	case AssertParams:
		want, err := paramsValue(a.Params)
		if err != nil {
			return fmt.Errorf("params assertion on %s: %w", a.Ref, err)
		}
		if !ir.Equal(node.Params, want) {
			return fail("params "+describe(want), "params "+describe(node.Params))
		}

	case AssertTransformer:
		if node.Transformer != a.Transformer {
			return fail("transformer "+a.Transformer, "transformer "+node.Transformer)
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// describe renders params as canonical JSON for messages.
func describe(v ir.IRValue) string {
	if v == nil {
		return "<none>"
	}
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
