package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_Next_Format(t *testing.T) {
	g := New()

	id := g.Next("LOAN")

	require.True(t, strings.HasPrefix(id, "LOAN_"), id)
	suffix := strings.TrimPrefix(id, "LOAN_")
	assert.Len(t, suffix, 32)
	assert.Equal(t, strings.ToUpper(suffix), suffix)
}

func TestGenerator_Next_UniqueInTightLoop(t *testing.T) {
	g := New()
	seen := make(map[string]struct{}, 10000)

	// Most of these land in the same millisecond.
	for i := 0; i < 10000; i++ {
		id := g.Next("PAYMENT")
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s after %d calls", id, i)
		seen[id] = struct{}{}
	}
}

func TestGenerator_Next_UniqueAcrossGoroutines(t *testing.T) {
	g := New()
	const workers, perWorker = 16, 500

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, g.Next("PAYMENT"))
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestGenerator_Next_SortsByCreation(t *testing.T) {
	g := New()

	first := g.Next("LOAN")
	second := g.Next("LOAN")

	assert.Less(t, first, second)
}
