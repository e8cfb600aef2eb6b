package ir

import "slices"

// Ref identifies a transform. Refs are opaque, assigned once at creation
// and stable for the node's lifetime.
type Ref string

const (
	// RootRef is the ref of every tree's root transform.
	RootRef Ref = "-=root=-"

	// RootTransformer is the transformer name of the root transform.
	RootTransformer = "build-in.root"

	// RootType is the output type produced by the root transformer.
	RootType = "root"
)

// Transform is one node of the state tree: its identity, its parent, the
// operation it represents and that operation's params.
//
// Transform is a value. Once placed in a tree it is never mutated; edits
// replace it with a modified copy. Params and Tags must not be modified
// through a Transform obtained from a tree.
type Transform struct {
	Ref         Ref      `json:"ref" yaml:"ref"`
	Parent      Ref      `json:"parent" yaml:"parent"`
	Transformer string   `json:"transformer" yaml:"transformer"`
	Params      IRValue  `json:"params,omitempty" yaml:"-"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// NewRootTransform returns the root transform. Its parent is itself.
func NewRootTransform() Transform {
	return Transform{
		Ref:         RootRef,
		Parent:      RootRef,
		Transformer: RootTransformer,
	}
}

// IsRoot reports whether t is a root transform.
func (t Transform) IsRoot() bool {
	return t.Ref == t.Parent
}

// HasTags reports whether t carries at least one of tags.
func (t Transform) HasTags(tags ...string) bool {
	for _, tag := range tags {
		if slices.Contains(t.Tags, tag) {
			return true
		}
	}
	return false
}

// WithParams returns a copy of t with params replaced.
func (t Transform) WithParams(params IRValue) Transform {
	t.Params = params
	return t
}

// WithTags returns a copy of t with tags replaced by a normalized copy.
func (t Transform) WithTags(tags []string) Transform {
	t.Tags = NormalizeTags(tags)
	return t
}

// WithParent returns a copy of t under a different parent.
func (t Transform) WithParent(parent Ref) Transform {
	t.Parent = parent
	return t
}

// IRObject renders the transform as an IRObject. Params are omitted when
// nil and tags when empty, so the result is always canonically marshalable.
func (t Transform) IRObject() IRObject {
	obj := IRObject{
		"ref":         IRString(t.Ref),
		"parent":      IRString(t.Parent),
		"transformer": IRString(t.Transformer),
	}
	if t.Params != nil {
		obj["params"] = t.Params
	}
	if len(t.Tags) > 0 {
		tags := make(IRArray, len(t.Tags))
		for i, tag := range t.Tags {
			tags[i] = IRString(tag)
		}
		obj["tags"] = tags
	}
	return obj
}

// NormalizeTags drops empty strings and duplicates, keeping first
// occurrences in order. It returns nil for an empty result.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == "" || slices.Contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// TagsEqual reports whether two tag lists are identical after
// normalization.
func TagsEqual(a, b []string) bool {
	return slices.Equal(NormalizeTags(a), NormalizeTags(b))
}

// Options tweak how a builder creates a transform.
type Options struct {
	// Ref pins the new transform's ref. A fresh ref is minted when empty.
	Ref Ref

	// Tags are attached to the new transform.
	Tags []string
}

// TransformerSpec describes an operation kind: which node types it can be
// applied under, which type it produces, and its params schema.
type TransformerSpec struct {
	// Name is the transformer identifier stored in Transform.Transformer.
	Name string `json:"name"`

	// Description is free text for tooling.
	Description string `json:"description,omitempty"`

	// From lists the output types of parents this transformer accepts.
	From []string `json:"from"`

	// To is the type of the object this transformer produces.
	To string `json:"to"`

	// Params maps param names to IR type names (string, int, bool,
	// array, object). Empty means params are not checked.
	Params map[string]string `json:"params,omitempty"`

	// Defaults are used when a builder applies the transformer with nil
	// params.
	Defaults IRObject `json:"defaults,omitempty"`
}

// Accepts reports whether the transformer may be applied under a node
// whose output type is from.
func (s TransformerSpec) Accepts(from string) bool {
	return slices.Contains(s.From, from)
}

// ValidTypes lists the IR type names allowed in param schemas.
var ValidTypes = map[string]bool{
	"string": true,
	"int":    true,
	"bool":   true,
	"array":  true,
	"object": true,
}

// TypeName returns the IR type name of v, or "null" for nil and IRNull.
func TypeName(v IRValue) string {
	switch v.(type) {
	case IRString:
		return "string"
	case IRInt:
		return "int"
	case IRBool:
		return "bool"
	case IRArray:
		return "array"
	case IRObject:
		return "object"
	}
	return "null"
}
