package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statetree/internal/compiler"
	"github.com/roach88/statetree/internal/ir"
)

func boolPtr(b bool) *bool { return &b }

func pipelineRegistry(t *testing.T) *compiler.Registry {
	t.Helper()
	reg, err := LoadRegistry(filepath.Join("testdata", "registry", "pipeline.cue"))
	require.NoError(t, err)
	return reg
}

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "one session adds one node",
		Timeline: []Step{
			{Session: "a", Op: OpOpen},
			{Session: "a", Op: OpApply, Transformer: "anything"},
			{Session: "a", Op: OpCommit},
		},
		Assertions: []Assertion{
			{Type: AssertExists, Ref: "n1"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)
	assert.Len(t, result.Trace, 3)
	assert.Equal(t, "n1", result.Trace[1].Ref)
	assert.Equal(t, uint64(1), result.Version)
	assert.Equal(t, 2, result.Tree.Len())
}

func TestRun_RefPrefix(t *testing.T) {
	scenario := &Scenario{
		Name:        "prefix",
		Description: "generated refs use the prefix",
		RefPrefix:   "node-",
		Timeline: []Step{
			{Session: "a", Op: OpOpen},
			{Session: "a", Op: OpApply, Transformer: "x"},
			{Session: "a", Op: OpCommit},
		},
		Assertions: []Assertion{{Type: AssertExists, Ref: "node-1"}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "unexpected",
		Description: "update of a missing node",
		Timeline: []Step{
			{Session: "a", Op: OpOpen},
			{Session: "a", Op: OpUpdate, At: "missing", Params: map[string]any{"k": 1}},
		},
		Assertions: []Assertion{{Type: AssertCount, Count: intPtr(1)}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "timeline[1] a update: unexpected error")
	assert.Equal(t, "NODE_NOT_FOUND", result.Trace[1].Error)
}

func TestRun_ExpectedErrorMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "expect clauses are checked",
		Timeline: []Step{
			{Session: "a", Op: OpOpen},
			{Session: "a", Op: OpApply, Transformer: "x", Expect: &Expect{Error: "CONFLICT"}},
			{Session: "a", Op: OpDelete, Ref: "missing", Expect: &Expect{Edits: intPtr(5)}},
			{Session: "a", Op: OpCommit, Expect: &Expect{Replayed: boolPtr(true)}},
		},
		Assertions: []Assertion{{Type: AssertCount, Count: intPtr(2)}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "expected error CONFLICT, got success")
	assert.Contains(t, result.Errors[1], "expected 5 edits, got 1")
	assert.Contains(t, result.Errors[2], "expected replayed=true, got false")
}

func TestRun_SessionLifecycle(t *testing.T) {
	scenario := &Scenario{
		Name:        "lifecycle",
		Description: "sessions must be open to be used and end at commit",
		Timeline: []Step{
			{Session: "a", Op: OpApply, Transformer: "x", Expect: &Expect{Error: "ERROR"}},
			{Session: "a", Op: OpOpen},
			{Session: "a", Op: OpOpen, Expect: &Expect{Error: "ERROR"}},
			{Session: "a", Op: OpCommit},
			{Session: "a", Op: OpCommit, Expect: &Expect{Error: "ERROR"}},
		},
		Assertions: []Assertion{{Type: AssertCount, Count: intPtr(1)}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, uint64(0), result.Version)
}

func TestRun_AllOps(t *testing.T) {
	scenario := &Scenario{
		Name:        "all_ops",
		Description: "every op against one session",
		Tree: []NodeSpec{
			{Ref: "data", Transformer: "download", Params: map[string]any{"url": "a"}},
			{Ref: "model", Parent: "data", Transformer: "parse"},
		},
		Timeline: []Step{
			{Session: "a", Op: OpOpen},
			{Session: "a", Op: OpGroup, At: "data", Transformer: "cache", Ref: "grouped"},
			{Session: "a", Op: OpInsert, At: "data", Transformer: "cache", Ref: "cached"},
			{Session: "a", Op: OpApplyOrUpdate, At: "model", Ref: "view", Transformer: "render"},
			{Session: "a", Op: OpApplyOrUpdate, At: "model", Ref: "view", Transformer: "ignored", Params: map[string]any{"layers": []any{"base"}}},
			{Session: "a", Op: OpApplyOrUpdateTagged, At: "model", Tags: []string{"thumb"}, Transformer: "render"},
			{Session: "a", Op: OpUpdate, At: "model", Params: map[string]any{"mode": "fast"}},
			{Session: "a", Op: OpDelete, Ref: "grouped"},
			{Session: "a", Op: OpCommit, Expect: &Expect{Edits: intPtr(7)}},
		},
		Assertions: []Assertion{
			{Type: AssertChildren, Ref: "data", Children: []string{"cached"}},
			{Type: AssertChildren, Ref: "cached", Children: []string{"model"}},
			{Type: AssertChildren, Ref: "model", Children: []string{"view", "n1"}},
			{Type: AssertTransformer, Ref: "view", Transformer: "render"},
			{Type: AssertParams, Ref: "view", Params: map[string]any{"layers": []any{"base"}}},
			{Type: AssertTags, Ref: "n1", Tags: []string{"thumb"}},
			{Type: AssertParams, Ref: "model", Params: map[string]any{"mode": "fast"}},
			{Type: AssertAbsent, Ref: "grouped"},
		},
	}

	result, err := Run(scenario, WithRegistry(pipelineRegistry(t)))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.NoError(t, result.Tree.Validate())
}

func TestRun_RegistryFromScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "registry",
		Description: "capability errors need the scenario registry",
		Registry:    []string{filepath.Join("testdata", "registry", "pipeline.cue")},
		Timeline: []Step{
			{Session: "a", Op: OpOpen},
			{Session: "a", Op: OpApply, Transformer: "parse", Expect: &Expect{Error: "TYPE_MISMATCH"}},
			{Session: "a", Op: OpApply, Transformer: "nope", Expect: &Expect{Error: "UNKNOWN_TRANSFORMER"}},
			{Session: "a", Op: OpApply, Transformer: "download", Params: map[string]any{"retries": "x"}, Expect: &Expect{Error: "INVALID_PARAMS"}},
			{Session: "a", Op: OpCommit, Expect: &Expect{Edits: intPtr(0)}},
		},
		Assertions: []Assertion{{Type: AssertCount, Count: intPtr(1)}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_MissingRegistryFile(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad",
		Description: "registry file does not exist",
		Registry:    []string{filepath.Join(t.TempDir(), "missing.cue")},
		Timeline:    []Step{{Session: "a", Op: OpOpen}},
		Assertions:  []Assertion{{Type: AssertCount, Count: intPtr(1)}},
	}

	_, err := Run(scenario)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load registry")
}

func TestRun_BadInitialTree(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_tree",
		Description: "child listed before its parent",
		Tree: []NodeSpec{
			{Ref: "child", Parent: "parent", Transformer: "x"},
		},
		Timeline:   []Step{{Session: "a", Op: OpOpen}},
		Assertions: []Assertion{{Type: AssertCount, Count: intPtr(1)}},
	}

	_, err := Run(scenario)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "tree[0]")
}

func TestBuildTree(t *testing.T) {
	tr, err := BuildTree([]NodeSpec{
		{Ref: "a", Transformer: "download", Params: map[string]any{"n": 1}, Tags: []string{"t"}},
		{Ref: "b", Parent: "a", Transformer: "parse"},
	})
	require.NoError(t, err)

	a, ok := tr.Get("a")
	require.True(t, ok)
	assert.Equal(t, ir.RootRef, a.Parent)
	assert.Equal(t, ir.IRObject{"n": ir.IRInt(1)}, a.Params)
	assert.Equal(t, []string{"t"}, a.Tags)
	b, _ := tr.Get("b")
	assert.Nil(t, b.Params)
	assert.NoError(t, tr.Validate())
}
