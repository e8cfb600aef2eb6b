package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/statetree/internal/harness"
	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/tree"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Registry string // registry directory, overrides the scenario's registry files
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Scenario string               `json:"scenario"`
	Pass     bool                 `json:"pass"`
	Errors   []string             `json:"errors,omitempty"`
	Trace    []harness.TraceEvent `json:"trace"`
	Version  uint64               `json:"version"`
	Tree     any                  `json:"tree"`
	Digest   string               `json:"digest"`

	DumpVersion string `json:"dump_version"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Execute one scenario and print its trace",
		Long: `Execute a scenario file and print the step trace and final tree.

The scenario's sessions run against a fresh owner. Each step is traced with
the ref it produced or the error code it failed with; commit steps record
whether the session was replayed and the owner's version afterwards.

Exit codes:
  0 - Every expectation and assertion held
  1 - One or more expectations or assertions failed
  2 - Command error (scenario unreadable, registry does not compile, etc.)

Examples:
  statetree run ./scenarios/conflict.yaml
  statetree run ./scenarios/conflict.yaml --registry ./registry
  statetree run ./scenarios/conflict.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Registry, "registry", "", "directory of CUE transformer declarations")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	runOpts := []harness.Option{harness.WithLogger(formatter.Logger())}
	if opts.Registry != "" {
		loaded, err := LoadRegistry(opts.Registry)
		if err != nil {
			_ = formatter.Error(loadErrorCode(err), err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to load registry", err)
		}
		formatter.VerboseLog("Loaded %d transformer(s) from %d file(s)", loaded.Registry.Len(), loaded.FileCount)
		runOpts = append(runOpts, harness.WithRegistry(loaded.Registry))
	}

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	if opts.Format == "json" {
		if err := outputRunJSON(formatter, scenario.Name, result); err != nil {
			return err
		}
	} else {
		outputRunText(formatter.Writer, scenario.Name, result)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed with %d error(s)", scenario.Name, len(result.Errors)))
	}
	return nil
}

func outputRunJSON(formatter *OutputFormatter, name string, result *harness.Result) error {
	dump := result.Tree.Dump()
	digest, err := ir.TreeDigest(dump)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to digest tree", err)
	}

	out := RunResult{
		Scenario: name,
		Pass:     result.Pass,
		Errors:   result.Errors,
		Trace:    result.Trace,
		Version:  result.Version,
		Tree:     ir.ToAny(dump),
		Digest:   digest,

		DumpVersion: ir.DumpVersion,
	}
	if result.Pass {
		return formatter.Success(out)
	}
	return formatter.encode(CLIResponse{
		Status: "error",
		Data:   out,
		Error: &CLIError{
			Code:    ErrCodeScenario,
			Message: fmt.Sprintf("%d expectation(s) failed", len(result.Errors)),
		},
	})
}

func outputRunText(w io.Writer, name string, result *harness.Result) {
	fmt.Fprintf(w, "Scenario: %s\n\n", name)
	for _, e := range result.Trace {
		fmt.Fprintf(w, "  %3d %-8s %s", e.Seq, e.Session, e.Op)
		if e.At != "" {
			fmt.Fprintf(w, " @%s", e.At)
		}
		if e.Ref != "" {
			fmt.Fprintf(w, " -> %s", e.Ref)
		}
		if e.Error != "" {
			fmt.Fprintf(w, " [%s]", e.Error)
		}
		if e.Replayed {
			fmt.Fprint(w, " (replayed)")
		}
		if e.Version != 0 {
			fmt.Fprintf(w, " v%d", e.Version)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\nTree (version %d): %s\n", result.Version, tree.Outline(result.Tree))

	if result.Pass {
		fmt.Fprintln(w, "✓ Scenario passed")
		return
	}
	fmt.Fprintln(w, "✗ Scenario failed")
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
