package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/statetree/internal/builder"
	"github.com/roach88/statetree/internal/compiler"
	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/state"
	"github.com/roach88/statetree/internal/testutil"
	"github.com/roach88/statetree/internal/tree"
)

// Harness executes one scenario timeline against a fresh owner.
type Harness struct {
	state    *state.State
	sessions map[string]*builder.Root
	seq      int64
	logger   *slog.Logger
}

// Option configures Run.
type Option func(*config)

type config struct {
	registry builder.Registry
	logger   *slog.Logger
}

// WithRegistry sets the transformer registry, overriding the scenario's
// registry files.
func WithRegistry(reg builder.Registry) Option {
	return func(c *config) {
		c.registry = reg
	}
}

// WithLogger sets the logger passed to the owner and builders.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh owner whose ref generator is a
// deterministic sequence, so identical scenarios yield identical trees.
//
// Execution flow:
// 1. Load the registry, if any
// 2. Build the initial tree
// 3. Execute timeline steps, checking expect clauses and tree invariants
// 4. Evaluate assertions against the final tree
//
// A returned error means the scenario could not be executed at all.
// Failed expectations are reported through Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	reg := cfg.registry
	if reg == nil && len(scenario.Registry) > 0 {
		loaded, err := LoadRegistry(scenario.Registry...)
		if err != nil {
			return nil, fmt.Errorf("failed to load registry: %w", err)
		}
		reg = loaded
	}

	initial, err := BuildTree(scenario.Tree)
	if err != nil {
		return nil, fmt.Errorf("failed to build initial tree: %w", err)
	}

	stateOpts := []state.Option{
		state.WithRefGenerator(testutil.NewRefSequence(scenario.RefPrefix)),
		state.WithLogger(cfg.logger),
	}
	if reg != nil {
		stateOpts = append(stateOpts, state.WithRegistry(reg))
	}

	h := &Harness{
		state:    state.New(initial, stateOpts...),
		sessions: make(map[string]*builder.Root),
		logger:   cfg.logger,
	}

	result := NewResult()
	for i, step := range scenario.Timeline {
		h.executeStep(i, step, result)
	}
	for name := range h.sessions {
		h.logger.Debug("session left open", "session", name)
	}

	final := h.state.Tree()
	result.Tree = final
	result.Version = h.state.Version()
	for _, msg := range EvaluateAssertions(final, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// LoadRegistry reads and compiles CUE transformer declarations.
func LoadRegistry(paths ...string) (*compiler.Registry, error) {
	sources := make([]compiler.Source, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		sources = append(sources, compiler.Source{Filename: p, Data: data})
	}
	return compiler.CompileSources(sources...)
}

// BuildTree builds an initial tree from node specs. Parents must precede
// their children.
func BuildTree(nodes []NodeSpec) (*tree.Tree, error) {
	w := tree.New().AsTransient()
	for i, n := range nodes {
		params, err := paramsValue(n.Params)
		if err != nil {
			return nil, fmt.Errorf("tree[%d] params: %w", i, err)
		}
		parent := ir.Ref(n.Parent)
		if parent == "" {
			parent = ir.RootRef
		}
		err = w.Add(ir.Transform{
			Ref:         ir.Ref(n.Ref),
			Parent:      parent,
			Transformer: n.Transformer,
			Params:      params,
			Tags:        n.Tags,
		})
		if err != nil {
			return nil, fmt.Errorf("tree[%d]: %w", i, err)
		}
	}
	return w.AsImmutable(), nil
}

// executeStep runs one timeline step, records it in the trace and checks
// its expect clause.
func (h *Harness) executeStep(i int, step Step, result *Result) {
	h.seq++
	event := TraceEvent{
		Seq:     h.seq,
		Session: step.Session,
		Op:      step.Op,
		At:      step.At,
	}

	ref, commit, err := h.perform(step)
	event.Ref = string(ref)
	if err != nil {
		event.Error = builder.CodeOf(err)
	}
	if commit != nil {
		event.Replayed = commit.Replayed
		event.Version = h.state.Version()
	}
	result.AddTrace(event)

	h.logger.Debug("timeline step",
		"step", i,
		"session", step.Session,
		"op", step.Op,
		"ref", ref,
		"error", err,
	)

	prefix := fmt.Sprintf("timeline[%d] %s %s", i, step.Session, step.Op)
	expect := step.Expect
	switch {
	case expect != nil && expect.Error != "":
		if err == nil {
			result.AddError(fmt.Sprintf("%s: expected error %s, got success", prefix, expect.Error))
		} else if event.Error != expect.Error {
			result.AddError(fmt.Sprintf("%s: expected error %s, got %s (%v)", prefix, expect.Error, event.Error, err))
		}
	case err != nil:
		result.AddError(fmt.Sprintf("%s: unexpected error: %v", prefix, err))
	}

	if expect != nil && expect.Replayed != nil {
		got := commit != nil && commit.Replayed
		if got != *expect.Replayed {
			result.AddError(fmt.Sprintf("%s: expected replayed=%t, got %t", prefix, *expect.Replayed, got))
		}
	}
	if expect != nil && expect.Edits != nil {
		got := 0
		if commit != nil {
			got = commit.Edits
		} else if b, open := h.sessions[step.Session]; open {
			got = b.EditInfo().Count
		}
		if got != *expect.Edits {
			result.AddError(fmt.Sprintf("%s: expected %d edits, got %d", prefix, *expect.Edits, got))
		}
	}

	if commit != nil && err == nil {
		if verr := h.state.Tree().Validate(); verr != nil {
			result.AddError(fmt.Sprintf("%s: tree invariant broken: %v", prefix, verr))
		}
	}
}

// commitOutcome describes a finished commit step.
type commitOutcome struct {
	Replayed bool
	Edits    int
}

var errNoSession = errors.New("session is not open")

// perform executes step and returns the ref it produced or targeted.
func (h *Harness) perform(step Step) (ir.Ref, *commitOutcome, error) {
	if step.Op == OpOpen {
		if _, open := h.sessions[step.Session]; open {
			return "", nil, fmt.Errorf("session %q is already open", step.Session)
		}
		h.sessions[step.Session] = h.state.Build()
		return "", nil, nil
	}

	b, ok := h.sessions[step.Session]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", errNoSession, step.Session)
	}

	if step.Op == OpCommit {
		delete(h.sessions, step.Session)
		out := &commitOutcome{Edits: b.EditInfo().Count}
		c, err := h.state.CommitDetail(b)
		if err != nil {
			return "", out, err
		}
		out.Replayed = c.Replayed
		return "", out, nil
	}

	params, err := paramsValue(step.Params)
	if err != nil {
		return "", nil, fmt.Errorf("params: %w", err)
	}
	opts := ir.Options{Ref: ir.Ref(step.Ref), Tags: step.Tags}

	if step.Op == OpDelete {
		b.Delete(ir.Ref(step.Ref))
		return ir.Ref(step.Ref), nil, nil
	}

	cur := b.ToRoot()
	if step.At != "" {
		cur, err = b.To(ir.Ref(step.At))
		if err != nil {
			return "", nil, err
		}
	}

	var next *builder.Cursor
	switch step.Op {
	case OpApply:
		next, err = cur.Apply(step.Transformer, params, opts)
	case OpGroup:
		next, err = cur.Group(step.Transformer, params, opts)
	case OpInsert:
		next, err = cur.Insert(step.Transformer, params, opts)
	case OpApplyOrUpdate:
		next, err = cur.ApplyOrUpdate(ir.Ref(step.Ref), step.Transformer, params, ir.Options{Tags: step.Tags})
	case OpApplyOrUpdateTagged:
		next, err = cur.ApplyOrUpdateTagged(step.Tags, step.Transformer, params, ir.Options{Ref: ir.Ref(step.Ref)})
	case OpUpdate:
		_, err = cur.Update(params)
		return cur.Ref(), nil, err
	default:
		return "", nil, fmt.Errorf("unknown op %q", step.Op)
	}
	if err != nil {
		return "", nil, err
	}
	return next.Ref(), nil, nil
}

// paramsValue converts YAML-decoded params to an IRValue. Absent params
// stay nil so builders apply declared defaults.
func paramsValue(v any) (ir.IRValue, error) {
	if v == nil {
		return nil, nil
	}
	return ir.FromAny(v)
}
