package builder

import (
	"fmt"

	"github.com/roach88/statetree/internal/ir"
)

// outputType returns the type produced by tr's transformer. The root
// produces ir.RootType regardless of registry content.
func (r *Root) outputType(tr ir.Transform) (string, error) {
	if tr.IsRoot() {
		return ir.RootType, nil
	}
	spec, ok := r.registry.Lookup(tr.Transformer)
	if !ok {
		return "", fmt.Errorf("%w: %s (node %s)", ErrUnknownTransformer, tr.Transformer, tr.Ref)
	}
	return spec.To, nil
}

// checkApply verifies transformer may be applied under parent and returns
// the params to store: a private copy of params, or the declared defaults
// when params is nil. With preserve set the transformer must also produce
// the parent's type, as insert requires. Without a registry only the copy
// is made.
func (r *Root) checkApply(parent ir.Transform, transformer string, params ir.IRValue, preserve bool) (ir.IRValue, error) {
	if r.registry == nil {
		return ir.Clone(params), nil
	}
	spec, ok := r.registry.Lookup(transformer)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransformer, transformer)
	}
	parentType, err := r.outputType(parent)
	if err != nil {
		return nil, err
	}
	if !spec.Accepts(parentType) {
		return nil, &TypeMismatchError{
			Transformer: transformer,
			Parent:      parent.Ref,
			ParentType:  parentType,
			Accepts:     spec.From,
		}
	}
	if preserve && spec.To != parentType {
		return nil, &TypeMismatchError{
			Transformer: transformer,
			Parent:      parent.Ref,
			ParentType:  parentType,
			Accepts:     spec.From,
			Produces:    spec.To,
		}
	}

	if params == nil && len(spec.Defaults) > 0 {
		return ir.Clone(spec.Defaults), nil
	}
	if err := checkParams(spec, params); err != nil {
		return nil, err
	}
	return ir.Clone(params), nil
}

// checkUpdate validates new params for an existing node and returns the
// params to store. As in checkApply, nil params resolve to the declared
// defaults. Nodes whose transformer the registry does not know, the root
// included, are not checked.
func (r *Root) checkUpdate(tr ir.Transform, params ir.IRValue) (ir.IRValue, error) {
	if r.registry == nil {
		return ir.Clone(params), nil
	}
	spec, ok := r.registry.Lookup(tr.Transformer)
	if !ok {
		return ir.Clone(params), nil
	}
	if params == nil && len(spec.Defaults) > 0 {
		return ir.Clone(spec.Defaults), nil
	}
	if err := checkParams(spec, params); err != nil {
		return nil, err
	}
	return ir.Clone(params), nil
}

// checkParams checks params against the declared param types. Declared
// params are optional; undeclared ones are rejected.
func checkParams(spec ir.TransformerSpec, params ir.IRValue) error {
	if len(spec.Params) == 0 || params == nil {
		return nil
	}
	if _, isNull := params.(ir.IRNull); isNull {
		return nil
	}
	obj, ok := params.(ir.IRObject)
	if !ok {
		return fmt.Errorf("%w: %s expects an object, got %s", ErrInvalidParams, spec.Name, ir.TypeName(params))
	}
	for _, key := range obj.SortedKeys() {
		want, declared := spec.Params[key]
		if !declared {
			return fmt.Errorf("%w: %s has no param %q", ErrInvalidParams, spec.Name, key)
		}
		if got := ir.TypeName(obj[key]); got != want {
			return fmt.Errorf("%w: %s param %q must be %s, got %s", ErrInvalidParams, spec.Name, key, want, got)
		}
	}
	return nil
}
