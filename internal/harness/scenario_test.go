package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "disjoint.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "disjoint_concurrent_edit", scenario.Name)
	assert.Equal(t, []string{filepath.Join("testdata", "registry", "pipeline.cue")}, scenario.Registry)
	require.Len(t, scenario.Tree, 2)
	assert.Equal(t, "data", scenario.Tree[1].Parent)
	assert.Equal(t, map[string]any{"url": "a"}, scenario.Tree[0].Params)

	require.Len(t, scenario.Timeline, 7)
	last := scenario.Timeline[6]
	assert.Equal(t, OpCommit, last.Op)
	require.NotNil(t, last.Expect)
	require.NotNil(t, last.Expect.Replayed)
	assert.True(t, *last.Expect.Replayed)
	require.NotNil(t, last.Expect.Edits)
	assert.Equal(t, 2, *last.Expect.Edits)

	require.Len(t, scenario.Assertions, 5)
	assert.Equal(t, []string{"model", "model2"}, scenario.Assertions[1].Children)
	require.NotNil(t, scenario.Assertions[4].Count)
	assert.Equal(t, 5, *scenario.Assertions[4].Count)
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MissingRegistryFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), `
name: s
description: d
registry: [nope.cue]
timeline:
  - {session: a, op: open}
assertions:
  - {type: count, count: 1}
`)

	_, err := LoadScenario(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry file not found")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: s
description: d
timeline:
  - {session: a, op: open}
assertion:
  - {type: count, count: 1}
`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	const header = "name: s\ndescription: d\n"
	const okTimeline = "timeline:\n  - {session: a, op: open}\n"
	const okAssertions = "assertions:\n  - {type: count, count: 1}\n"

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"missing name", "description: d\n" + okTimeline + okAssertions, "name is required"},
		{"missing description", "name: s\n" + okTimeline + okAssertions, "description is required"},
		{"empty timeline", header + okAssertions, "timeline list is required"},
		{"empty assertions", header + okTimeline, "assertions list is required"},
		{"tree without ref", header + "tree:\n  - {transformer: x}\n" + okTimeline + okAssertions, "tree[0]: ref is required"},
		{"tree without transformer", header + "tree:\n  - {ref: x}\n" + okTimeline + okAssertions, "tree[0]: transformer is required"},
		{"step without session", header + "timeline:\n  - {op: open}\n" + okAssertions, "timeline[0]: session is required"},
		{"step without op", header + "timeline:\n  - {session: a}\n" + okAssertions, "timeline[0]: op is required"},
		{"unknown op", header + "timeline:\n  - {session: a, op: fly}\n" + okAssertions, `unknown op "fly"`},
		{"apply without transformer", header + "timeline:\n  - {session: a, op: apply}\n" + okAssertions, "transformer is required for apply"},
		{"apply_or_update without ref", header + "timeline:\n  - {session: a, op: apply_or_update, transformer: x}\n" + okAssertions, "ref is required for apply_or_update"},
		{"tagged without tags", header + "timeline:\n  - {session: a, op: apply_or_update_tagged, transformer: x}\n" + okAssertions, "tags are required"},
		{"update without at", header + "timeline:\n  - {session: a, op: update}\n" + okAssertions, "at is required for update"},
		{"delete without ref", header + "timeline:\n  - {session: a, op: delete}\n" + okAssertions, "ref is required for delete"},
		{"assertion without type", header + okTimeline + "assertions:\n  - {ref: x}\n", "type is required"},
		{"unknown assertion", header + okTimeline + "assertions:\n  - {type: shiny}\n", `unknown assertion type "shiny"`},
		{"exists without ref", header + okTimeline + "assertions:\n  - {type: exists}\n", "ref is required for exists"},
		{"parent without parent", header + okTimeline + "assertions:\n  - {type: parent, ref: x}\n", "ref and parent are required"},
		{"transformer without name", header + okTimeline + "assertions:\n  - {type: transformer, ref: x}\n", "ref and transformer are required"},
		{"count without count", header + okTimeline + "assertions:\n  - {type: count}\n", "count must be non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_StepFields(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: s
description: d
timeline:
  - session: a
    op: apply_or_update_tagged
    at: data
    ref: fixed
    transformer: render
    tags: [thumb]
    params:
      layers: [base, top]
      size: 3
    expect:
      error: TYPE_MISMATCH
assertions:
  - {type: count, count: 1}
`))
	require.NoError(t, err)

	step := scenario.Timeline[0]
	assert.Equal(t, "data", step.At)
	assert.Equal(t, "fixed", step.Ref)
	assert.Equal(t, []string{"thumb"}, step.Tags)
	assert.Equal(t, map[string]any{"layers": []any{"base", "top"}, "size": 3}, step.Params)
	assert.Equal(t, "TYPE_MISMATCH", step.Expect.Error)
	assert.Nil(t, step.Expect.Replayed)
}

func TestOps(t *testing.T) {
	assert.Contains(t, Ops(), "apply_or_update_tagged")
	assert.Contains(t, Ops(), "commit")
}
