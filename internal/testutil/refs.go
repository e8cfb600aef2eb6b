package testutil

import (
	"fmt"
	"sync"
)

// RefSequence mints deterministic refs for tests: prefix followed by a
// counter, "n1", "n2", ...
//
// Unlike builder.FixedGenerator, RefSequence never runs out and can be
// reset, so the same scenario run twice mints identical refs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RefSequence struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewRefSequence creates a sequence with the given prefix. An empty
// prefix defaults to "n".
//
// The first call to Generate() returns prefix + "1".
func NewRefSequence(prefix string) *RefSequence {
	if prefix == "" {
		prefix = "n"
	}
	return &RefSequence{prefix: prefix}
}

// Generate increments the counter and returns the next ref.
//
// Implements builder.RefGenerator.
func (s *RefSequence) Generate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("%s%d", s.prefix, s.seq)
}

// Current returns how many refs were minted since creation or the last
// Reset.
func (s *RefSequence) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Reset restarts the counter. After Reset(), the next call to Generate()
// returns prefix + "1" again.
func (s *RefSequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
}
