package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/statetree/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// TransformerSpec errors (E101-E109)
	ErrTransformerNameEmpty = "E101" // name is required
	ErrTransformerNoFrom    = "E102" // at least one accepted parent type
	ErrTransformerNoTo      = "E103" // output type is required
	ErrInvalidFieldType     = "E104" // invalid type string
	ErrDuplicateName        = "E105" // duplicate from entry
	ErrFloatTypeForbidden   = "E106" // float types not allowed
	ErrDefaultTypeMismatch  = "E107" // default does not match declared type
	ErrReservedName         = "E108" // name collides with the root transformer

	// Registry errors (E110-E119)
	ErrUnproducedType = "E110" // from type that nothing produces
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled declarations against schema rules.
// Returns all errors found (does not fail-fast).
// Supports TransformerSpec and Registry.
func Validate(v any) []ValidationError {
	switch val := v.(type) {
	case *ir.TransformerSpec:
		return validateTransformer(val, "")
	case ir.TransformerSpec:
		return validateTransformer(&val, "")
	case *Registry:
		return validateRegistry(val)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// validateTransformer validates one declaration. prefix qualifies field
// paths when validating a whole registry.
func validateTransformer(spec *ir.TransformerSpec, prefix string) []ValidationError {
	var errs []ValidationError
	field := func(name string) string { return prefix + name }

	// E101: name is required
	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   field("name"),
			Message: "name is required and must be non-empty",
			Code:    ErrTransformerNameEmpty,
		})
	}

	// E108: the root transformer name is reserved
	if spec.Name == ir.RootTransformer {
		errs = append(errs, ValidationError{
			Field:   field("name"),
			Message: fmt.Sprintf("%q is reserved for the root transform", spec.Name),
			Code:    ErrReservedName,
		})
	}

	// E102: at least one accepted parent type
	if len(spec.From) == 0 {
		errs = append(errs, ValidationError{
			Field:   field("from"),
			Message: "at least one accepted parent type is required",
			Code:    ErrTransformerNoFrom,
		})
	}
	seen := make(map[string]bool)
	for i, from := range spec.From {
		if strings.TrimSpace(from) == "" {
			errs = append(errs, ValidationError{
				Field:   field(fmt.Sprintf("from[%d]", i)),
				Message: "parent type must be non-empty",
				Code:    ErrTransformerNoFrom,
			})
		}
		// E105: duplicate from entry
		if seen[from] {
			errs = append(errs, ValidationError{
				Field:   field(fmt.Sprintf("from[%d]", i)),
				Message: fmt.Sprintf("duplicate parent type: %q", from),
				Code:    ErrDuplicateName,
			})
		}
		seen[from] = true
	}

	// E103: output type is required
	if strings.TrimSpace(spec.To) == "" {
		errs = append(errs, ValidationError{
			Field:   field("to"),
			Message: "output type is required",
			Code:    ErrTransformerNoTo,
		})
	}

	names := make([]string, 0, len(spec.Params))
	for name := range spec.Params {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		errs = append(errs, validateFieldType(spec.Params[name], field("params."+name), name)...)
	}

	// E107: defaults must be declared and match their declared type
	for _, name := range spec.Defaults.SortedKeys() {
		want, declared := spec.Params[name]
		got := ir.TypeName(spec.Defaults[name])
		switch {
		case !declared:
			errs = append(errs, ValidationError{
				Field:   field("defaults." + name),
				Message: fmt.Sprintf("default for undeclared param %q", name),
				Code:    ErrDefaultTypeMismatch,
			})
		case got != want:
			errs = append(errs, ValidationError{
				Field:   field("defaults." + name),
				Message: fmt.Sprintf("default for %q is %s, declared %s", name, got, want),
				Code:    ErrDefaultTypeMismatch,
			})
		}
	}

	return errs
}

// validateFieldType validates a type string, returning errors for invalid types and floats.
func validateFieldType(fieldType, fieldPath, fieldName string) []ValidationError {
	var errs []ValidationError

	// E104: check for valid type
	if !ir.ValidTypes[fieldType] {
		errs = append(errs, ValidationError{
			Field:   fieldPath,
			Message: fmt.Sprintf("invalid type %q for field %q", fieldType, fieldName),
			Code:    ErrInvalidFieldType,
		})
	}

	// E106: float forbidden (explicit check even if not in valid types)
	if isFloatType(fieldType) {
		errs = append(errs, ValidationError{
			Field:   fieldPath,
			Message: fmt.Sprintf("float type forbidden for field %q, use int instead", fieldName),
			Code:    ErrFloatTypeForbidden,
		})
	}

	return errs
}

// validateRegistry validates every declaration and checks that each
// accepted parent type is the root type or produced by some transformer.
func validateRegistry(r *Registry) []ValidationError {
	var errs []ValidationError

	produced := map[string]bool{ir.RootType: true}
	for _, spec := range r.Specs() {
		produced[spec.To] = true
	}

	for _, spec := range r.Specs() {
		prefix := "transformer." + spec.Name + "."
		errs = append(errs, validateTransformer(&spec, prefix)...)

		// E110: unproduced parent type
		for i, from := range spec.From {
			if from != "" && !produced[from] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%sfrom[%d]", prefix, i),
					Message: fmt.Sprintf("no transformer produces type %q", from),
					Code:    ErrUnproducedType,
				})
			}
		}
	}
	return errs
}

// isFloatType checks if a type string represents a float type.
func isFloatType(t string) bool {
	floatTypes := map[string]bool{
		"float":   true,
		"float32": true,
		"float64": true,
		"number":  true,
		"double":  true,
	}
	return floatTypes[t]
}
