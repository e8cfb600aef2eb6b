package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefSequence_StartsAtOne(t *testing.T) {
	seq := NewRefSequence("x")
	assert.Equal(t, int64(0), seq.Current())

	assert.Equal(t, "x1", seq.Generate())
	assert.Equal(t, "x2", seq.Generate())
	assert.Equal(t, int64(2), seq.Current())
}

func TestRefSequence_DefaultPrefix(t *testing.T) {
	seq := NewRefSequence("")

	assert.Equal(t, "n1", seq.Generate())
}

func TestRefSequence_Reset(t *testing.T) {
	seq := NewRefSequence("n")
	seq.Generate()
	seq.Generate()

	seq.Reset()

	assert.Equal(t, int64(0), seq.Current())
	assert.Equal(t, "n1", seq.Generate())
}

func TestRefSequence_ConcurrentRefsAreUnique(t *testing.T) {
	seq := NewRefSequence("n")

	var mu sync.Mutex
	seen := map[string]bool{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ref := seq.Generate()
				mu.Lock()
				seen[ref] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, 1000)
	assert.Equal(t, int64(1000), seq.Current())
}
