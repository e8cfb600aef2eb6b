package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario describes an initial tree, a timeline of interleaved builder
// sessions and the assertions the final tree must satisfy.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Registry lists CUE files declaring the transformers the scenario uses.
	// Paths are relative to the scenario file. Without a registry, builders
	// skip capability checks.
	Registry []string `yaml:"registry,omitempty"`

	// Tree lists the nodes of the initial tree. Parents must precede their
	// children; an empty parent means the root.
	Tree []NodeSpec `yaml:"tree,omitempty"`

	// Timeline is executed in order. Steps of different sessions may
	// interleave freely.
	Timeline []Step `yaml:"timeline"`

	// Assertions are evaluated against the final live tree.
	Assertions []Assertion `yaml:"assertions"`

	// RefPrefix prefixes generated refs ("n1", "n2", ...). Defaults to "n".
	RefPrefix string `yaml:"ref_prefix,omitempty"`
}

// NodeSpec is one node of the initial tree.
type NodeSpec struct {
	Ref         string   `yaml:"ref"`
	Parent      string   `yaml:"parent,omitempty"`
	Transformer string   `yaml:"transformer"`
	Params      any      `yaml:"params,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
}

// Step is one timeline entry: an operation performed by a session.
type Step struct {
	// Session names the builder session. "open" starts it and "commit"
	// ends it.
	Session string `yaml:"session"`

	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// At is the ref the cursor is positioned on. Defaults to the root.
	At string `yaml:"at,omitempty"`

	// Ref is the ref of the new node for apply-like ops, or the target of
	// apply_or_update and delete.
	Ref string `yaml:"ref,omitempty"`

	Transformer string   `yaml:"transformer,omitempty"`
	Params      any      `yaml:"params,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`

	// Expect checks the step outcome. Without it the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Error is the expected error code, e.g. CONFLICT or NODE_NOT_FOUND.
	Error string `yaml:"error,omitempty"`

	// Replayed is checked on commit steps.
	Replayed *bool `yaml:"replayed,omitempty"`

	// Edits is the session's recorded action count after the step.
	Edits *int `yaml:"edits,omitempty"`
}

// Assertion validates the final tree.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	Ref         string   `yaml:"ref,omitempty"`
	Parent      string   `yaml:"parent,omitempty"`
	Children    []string `yaml:"children,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
	Params      any      `yaml:"params,omitempty"`
	Transformer string   `yaml:"transformer,omitempty"`

	// Count is the expected number of nodes: the whole tree, or the
	// subtree of Ref when set.
	Count *int `yaml:"count,omitempty"`
}

// Timeline operations.
const (
	OpOpen                = "open"
	OpApply               = "apply"
	OpGroup               = "group"
	OpApplyOrUpdate       = "apply_or_update"
	OpApplyOrUpdateTagged = "apply_or_update_tagged"
	OpInsert              = "insert"
	OpUpdate              = "update"
	OpDelete              = "delete"
	OpCommit              = "commit"
)

// Assertion type constants.
const (
	AssertExists      = "exists"
	AssertAbsent      = "absent"
	AssertParent      = "parent"
	AssertChildren    = "children"
	AssertTags        = "tags"
	AssertParams      = "params"
	AssertTransformer = "transformer"
	AssertCount       = "count"
)

// LoadScenario reads and parses a scenario YAML file. Registry paths are
// resolved relative to the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for i, p := range scenario.Registry {
		if !filepath.IsAbs(p) {
			scenario.Registry[i] = filepath.Join(base, p)
		}
	}
	for _, p := range scenario.Registry {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: registry file not found: %s", p)
		}
	}

	return scenario, nil
}

// ParseScenario parses scenario YAML. Registry paths are left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Timeline) == 0 {
		return fmt.Errorf("timeline list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, n := range s.Tree {
		if n.Ref == "" {
			return fmt.Errorf("tree[%d]: ref is required", i)
		}
		if n.Transformer == "" {
			return fmt.Errorf("tree[%d]: transformer is required", i)
		}
	}

	for i, step := range s.Timeline {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks the fields each op needs.
func validateStep(index int, s *Step) error {
	if s.Session == "" {
		return fmt.Errorf("timeline[%d]: session is required", index)
	}

	need := func(field, value string) error {
		if value == "" {
			return fmt.Errorf("timeline[%d]: %s is required for %s", index, field, s.Op)
		}
		return nil
	}

	switch s.Op {
	case OpOpen, OpCommit:
		return nil
	case OpApply, OpGroup, OpInsert:
		return need("transformer", s.Transformer)
	case OpApplyOrUpdate:
		if err := need("ref", s.Ref); err != nil {
			return err
		}
		return need("transformer", s.Transformer)
	case OpApplyOrUpdateTagged:
		if len(s.Tags) == 0 {
			return fmt.Errorf("timeline[%d]: tags are required for %s", index, s.Op)
		}
		return need("transformer", s.Transformer)
	case OpUpdate:
		return need("at", s.At)
	case OpDelete:
		return need("ref", s.Ref)
	case "":
		return fmt.Errorf("timeline[%d]: op is required", index)
	default:
		return fmt.Errorf("timeline[%d]: unknown op %q", index, s.Op)
	}
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertExists, AssertAbsent, AssertChildren, AssertTags, AssertParams:
		if a.Ref == "" {
			return fmt.Errorf("assertions[%d]: ref is required for %s", index, a.Type)
		}
	case AssertParent:
		if a.Ref == "" || a.Parent == "" {
			return fmt.Errorf("assertions[%d]: ref and parent are required for parent", index)
		}
	case AssertTransformer:
		if a.Ref == "" || a.Transformer == "" {
			return fmt.Errorf("assertions[%d]: ref and transformer are required for transformer", index)
		}
	case AssertCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// Ops returns the supported timeline operations, for help text.
func Ops() string {
	return strings.Join([]string{
		OpOpen, OpApply, OpGroup, OpApplyOrUpdate, OpApplyOrUpdateTagged,
		OpInsert, OpUpdate, OpDelete, OpCommit,
	}, ", ")
}
