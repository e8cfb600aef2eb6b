package compiler

import (
	"fmt"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/statetree/internal/ir"
)

// Registry is a compiled set of transformer declarations. It implements
// builder.Registry. A Registry is immutable after construction and safe for
// concurrent use.
type Registry struct {
	specs map[string]ir.TransformerSpec
	names []string
}

// NewRegistry builds a registry from specs. Duplicate names are an error.
func NewRegistry(specs ...ir.TransformerSpec) (*Registry, error) {
	r := &Registry{specs: make(map[string]ir.TransformerSpec, len(specs))}
	for _, spec := range specs {
		if _, dup := r.specs[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate transformer %q", spec.Name)
		}
		r.specs[spec.Name] = spec
		r.names = append(r.names, spec.Name)
	}
	slices.Sort(r.names)
	return r, nil
}

// Lookup returns the declaration for name.
func (r *Registry) Lookup(name string) (ir.TransformerSpec, bool) {
	spec, ok := r.specs[name]
	return spec, ok
}

// Names returns transformer names in sorted order.
func (r *Registry) Names() []string { return slices.Clone(r.names) }

// Len returns the number of transformers.
func (r *Registry) Len() int { return len(r.names) }

// Specs returns all declarations sorted by name.
func (r *Registry) Specs() []ir.TransformerSpec {
	out := make([]ir.TransformerSpec, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.specs[name])
	}
	return out
}

// CompileRegistry compiles every field of the top-level "transformer"
// struct in v.
//
//	transformer: download: { from: ["root"], to: "bytes" }
//	transformer: parse:    { from: ["bytes"], to: "model" }
func CompileRegistry(v cue.Value) (*Registry, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	tVal := v.LookupPath(cue.ParsePath("transformer"))
	if !tVal.Exists() {
		return NewRegistry()
	}

	iter, err := tVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []ir.TransformerSpec
	for iter.Next() {
		spec, err := CompileTransformer(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("transformer %s: %w", iter.Label(), err)
		}
		specs = append(specs, *spec)
	}
	return NewRegistry(specs...)
}

// Source is one CUE file to compile.
type Source struct {
	Filename string
	Data     []byte
}

// CompileSources compiles and unifies CUE sources, then compiles the
// resulting registry. Declarations of the same transformer in different
// files unify field by field; conflicting values are a compile error.
func CompileSources(sources ...Source) (*Registry, error) {
	ctx := cuecontext.New()
	var unified cue.Value
	for i, src := range sources {
		v := ctx.CompileBytes(src.Data, cue.Filename(src.Filename))
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		if i == 0 {
			unified = v
			continue
		}
		unified = unified.Unify(v)
	}
	if len(sources) == 0 {
		return NewRegistry()
	}
	return CompileRegistry(unified)
}
