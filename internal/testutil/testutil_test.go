package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialIDs_Sequence(t *testing.T) {
	ids := NewSequentialIDs("derive")

	assert.Equal(t, "derive-1", ids.Generate())
	assert.Equal(t, "derive-2", ids.Generate())
	assert.Equal(t, int64(2), ids.Current())

	ids.Reset()
	assert.Equal(t, "derive-1", ids.Generate())
}

func TestSequentialIDs_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "run-1", NewSequentialIDs("").Generate())
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	ids := NewSequentialIDs("q")
	const goroutines = 50

	var wg sync.WaitGroup
	out := make(chan string, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out <- ids.Generate()
		}()
	}
	wg.Wait()
	close(out)

	seen := make(map[string]bool)
	for id := range out {
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, goroutines)
}

func TestBuilder_Terms(t *testing.T) {
	b := NewBuilder()

	goal := b.C("parent", b.A("alice"), b.V("X"))
	assert.Equal(t, "parent(alice,X)", b.Format(goal))
	assert.Equal(t, b.V("X"), b.V("X"), "same name, same variable")
	assert.NotEqual(t, b.V("X"), b.V("Y"))

	assert.Equal(t, "[1,2,3]", b.Format(b.Ints(1, 2, 3)))
	assert.Equal(t, "[a,b]", b.Format(b.Atoms("a", "b")))
	assert.Equal(t, "done", b.Format(b.C("done")))
}
