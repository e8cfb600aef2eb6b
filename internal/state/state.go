// Package state is the owner of a live tree.
//
// A State holds the current immutable tree behind an atomic pointer, so
// readers never block. Edits go through builders opened with Build; Commit
// reconciles a builder against whatever tree is live at that moment and
// installs the result. Commits are serialized, builder sessions are not:
// any number of sessions may be open at once, and the reconciler replays a
// session's actions when another commit got in first.
package state

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/statetree/internal/builder"
	"github.com/roach88/statetree/internal/tree"
)

// DefaultMaxRetries is how many times Update restarts after a conflict.
const DefaultMaxRetries = 3

// State owns the live tree.
type State struct {
	// mu serializes Commit. Reads use current directly.
	mu      sync.Mutex
	current atomic.Pointer[tree.Tree]
	version atomic.Uint64

	registry   builder.Registry
	refs       builder.RefGenerator
	logger     *slog.Logger
	metrics    *Metrics
	maxRetries int
}

// Option configures a State.
type Option func(*State)

// WithRegistry passes reg to every builder the state opens.
func WithRegistry(reg builder.Registry) Option {
	return func(s *State) {
		s.registry = reg
	}
}

// WithRefGenerator passes g to every builder the state opens.
//
// Default: builder.UUIDv7Generator.
func WithRefGenerator(g builder.RefGenerator) Option {
	return func(s *State) {
		s.refs = g
	}
}

// WithLogger sets the logger for commit diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *State) {
		s.logger = l
	}
}

// WithMetrics sets the Prometheus instruments to update.
func WithMetrics(m *Metrics) Option {
	return func(s *State) {
		s.metrics = m
	}
}

// WithMaxRetries sets how many times Update restarts after a conflict.
//
// Default: 3 (DefaultMaxRetries). Zero disables retries.
func WithMaxRetries(n int) Option {
	return func(s *State) {
		s.maxRetries = n
	}
}

// New creates a State holding initial, or a root-only tree when initial is
// nil.
func New(initial *tree.Tree, opts ...Option) *State {
	if initial == nil {
		initial = tree.New()
	}
	s := &State{
		refs:       builder.UUIDv7Generator{},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:    NewMetrics(nil),
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(initial)
	s.metrics.TreeNodes.Set(float64(initial.Len()))
	return s
}

// Tree returns the live tree. It implements builder.Source.
func (s *State) Tree() *tree.Tree {
	return s.current.Load()
}

// Version counts installed trees. It starts at 0 and increases by one
// each time Commit installs a tree different from the live one.
func (s *State) Version() uint64 {
	return s.version.Load()
}

// Build opens a builder over the live tree with the state as its source.
func (s *State) Build() *builder.Root {
	opts := []builder.Option{
		builder.WithSource(s),
		builder.WithRefGenerator(s.refs),
		builder.WithLogger(s.logger),
	}
	if s.registry != nil {
		opts = append(opts, builder.WithRegistry(s.registry))
	}
	return builder.NewRoot(s.Tree(), opts...)
}

// Commit reconciles b against the live tree and installs the result.
//
// b must have been opened by Build on this state: a builder without the
// state as its source would freeze its working copy without checking for
// concurrent commits. On conflict the live tree is left untouched and the
// *builder.ConflictError is returned.
func (s *State) Commit(b *builder.Root) (*tree.Tree, error) {
	c, err := s.CommitDetail(b)
	if err != nil {
		return nil, err
	}
	return c.Tree, nil
}

// CommitDetail is Commit, also reporting whether the builder's actions
// were replayed onto a newer tree.
func (s *State) CommitDetail(b *builder.Root) (builder.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.current.Load()
	c, err := b.Commit()
	if err != nil {
		if builder.IsConflict(err) {
			s.metrics.ConflictsTotal.Inc()
			s.logger.Warn("commit conflict", "version", s.version.Load(), "error", err)
		}
		return builder.Commit{}, err
	}

	if c.Tree != live {
		s.current.Store(c.Tree)
		s.version.Add(1)
	}

	path := pathDirect
	if c.Replayed {
		path = pathReplayed
	}
	actions := b.EditInfo().Count
	s.metrics.CommitsTotal.WithLabelValues(path).Inc()
	s.metrics.ActionsPerCommit.Observe(float64(actions))
	s.metrics.TreeNodes.Set(float64(c.Tree.Len()))
	s.logger.Debug("commit installed",
		"path", path,
		"actions", actions,
		"version", s.version.Load(),
		"nodes", c.Tree.Len(),
	)
	return c, nil
}

// Update runs fn against a fresh builder and commits it. When the commit
// conflicts, the whole session is discarded and fn runs again against the
// newer tree, up to the configured number of retries. Errors returned by fn
// abort without committing.
//
// fn may run more than once and must derive its edits from the builder it
// is given, not from state captured in an earlier attempt.
func (s *State) Update(fn func(b *builder.Root) error) (*tree.Tree, error) {
	for attempt := 0; ; attempt++ {
		b := s.Build()
		if err := fn(b); err != nil {
			return nil, err
		}
		out, err := s.Commit(b)
		if err == nil {
			return out, nil
		}
		if !builder.IsConflict(err) || attempt >= s.maxRetries {
			return nil, fmt.Errorf("update failed after %d attempt(s): %w", attempt+1, err)
		}
		s.metrics.RetriesTotal.Inc()
		s.logger.Warn("retrying update after conflict", "attempt", attempt+1)
	}
}
