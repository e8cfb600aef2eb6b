package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/statetree/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid        bool                       `json:"valid"`
	Transformers []string                   `json:"transformers,omitempty"`
	Errors       []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <registry-dir>",
		Short: "Compile and validate transformer declarations",
		Long: `Compile the CUE transformer declarations in a directory and validate them.

Checks declaration syntax and schema rules: every transformer needs accepted
parent types and an output type, param types must be string, int, bool,
array or object, defaults must match their declared types, and every
accepted parent type must be the root type or produced by some transformer.

Exit codes:
  0 - Registry valid
  1 - Validation errors found
  2 - Command error (directory missing, CUE does not compile, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, registryDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loaded, err := LoadRegistry(registryDir)
	if err != nil {
		code := loadErrorCode(err)
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load registry", err)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, registryDir)
	for _, name := range loaded.Registry.Names() {
		formatter.VerboseLog("Validating transformer: %s", name)
	}

	errs := compiler.Validate(loaded.Registry)
	if loaded.Registry.Len() == 0 {
		errs = append(errs, compiler.ValidationError{
			Field:   "transformer",
			Message: "no transformers declared",
			Code:    ErrCodeGeneric,
		})
	}
	if len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	return outputValidateSuccess(formatter, loaded.Registry.Names())
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, names []string) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Transformers: names})
	}

	fmt.Fprintf(formatter.Writer, "✓ %d transformer(s) valid\n", len(names))
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}
		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
