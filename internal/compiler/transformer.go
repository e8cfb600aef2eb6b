package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/statetree/internal/ir"
)

// CompileTransformer parses a CUE value into a TransformerSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the transformer struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`transformer: download: { from: ["root"], to: "bytes" }`)
//	spec, err := CompileTransformer(v.LookupPath(cue.ParsePath("transformer.download")))
//
// Param fields declare a type and optionally a default:
//
//	params: {
//		url:     string
//		retries: int | *3
//	}
func CompileTransformer(v cue.Value) (*ir.TransformerSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.TransformerSpec{}

	// Name comes from the struct label (the last path selector).
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	descVal := v.LookupPath(cue.ParsePath("description"))
	if descVal.Exists() {
		desc, err := descVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.Description = desc
	}

	from, err := parseFrom(v)
	if err != nil {
		return nil, err
	}
	spec.From = from

	toVal := v.LookupPath(cue.ParsePath("to"))
	if !toVal.Exists() {
		return nil, &CompileError{
			Field:   "to",
			Message: "to is required",
			Pos:     v.Pos(),
		}
	}
	to, err := toVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	spec.To = to

	spec.Params, spec.Defaults, err = parseParams(v)
	if err != nil {
		return nil, err
	}

	return spec, nil
}

// parseFrom reads the accepted parent types. A single string is accepted
// as shorthand for a one-element list.
func parseFrom(v cue.Value) ([]string, error) {
	fromVal := v.LookupPath(cue.ParsePath("from"))
	if !fromVal.Exists() {
		return nil, &CompileError{
			Field:   "from",
			Message: "from is required",
			Pos:     v.Pos(),
		}
	}

	if single, err := fromVal.String(); err == nil {
		return []string{single}, nil
	}

	iter, err := fromVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var from []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		from = append(from, s)
	}
	return from, nil
}

// parseParams extracts param types and defaults.
func parseParams(v cue.Value) (map[string]string, ir.IRObject, error) {
	paramsVal := v.LookupPath(cue.ParsePath("params"))
	if !paramsVal.Exists() {
		return nil, nil, nil
	}

	iter, err := paramsVal.Fields(cue.Optional(true))
	if err != nil {
		return nil, nil, formatCUEError(err)
	}

	params := make(map[string]string)
	var defaults ir.IRObject
	for iter.Next() {
		name := iter.Label()
		field := iter.Value()

		typeName, err := extractTypeName(field)
		if err != nil {
			return nil, nil, err
		}
		params[name] = typeName

		def, ok := field.Default()
		if !ok {
			continue
		}
		value, err := cueToIR(def)
		if err != nil {
			return nil, nil, err
		}
		if defaults == nil {
			defaults = ir.IRObject{}
		}
		defaults[name] = value
	}
	return params, defaults, nil
}

// extractTypeName converts CUE type to IR type string.
// Floats are forbidden: params must stay canonically hashable.
func extractTypeName(v cue.Value) (string, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		return "string", nil
	case cue.IntKind:
		return "int", nil
	case cue.BoolKind:
		return "bool", nil
	case cue.ListKind:
		return "array", nil
	case cue.StructKind:
		return "object", nil
	case cue.FloatKind, cue.NumberKind:
		return "", &CompileError{
			Field:   "type",
			Message: "float types are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// cueToIR converts a concrete CUE value to an IRValue.
func cueToIR(v cue.Value) (ir.IRValue, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.IRNull{}, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRInt(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.IRArray{}
		for iter.Next() {
			elem, err := cueToIR(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.IRObject{}
		for iter.Next() {
			elem, err := cueToIR(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = elem
		}
		return obj, nil
	case cue.FloatKind:
		return nil, &CompileError{
			Field:   "default",
			Message: "float defaults are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "default",
			Message: "default value must be concrete",
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
