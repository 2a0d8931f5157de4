package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sweep/internal/ir"
)

func TestUUIDv7Generator_Version(t *testing.T) {
	id := UUIDv7Generator{}.Generate()

	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, id)
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestUUIDv7Generator_Concurrent(t *testing.T) {
	gen := UUIDv7Generator{}
	const goroutines = 100

	ids := make(chan string, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- gen.Generate()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate id generated")
		seen[id] = true
	}
	assert.Len(t, seen, goroutines)
}

func TestFixedGenerator_Sequential(t *testing.T) {
	gen := NewFixedGenerator("run-a", "run-b")

	assert.Equal(t, "run-a", gen.Generate())
	assert.Equal(t, "run-b", gen.Generate())
	assert.Panics(t, func() { gen.Generate() }, "should panic when all ids are consumed")
}

func TestEngine_RunIDsFromGenerator(t *testing.T) {
	e := New(WithTaskIDs(NewFixedGenerator("first", "second")))
	t.Cleanup(e.Close)

	var ids []string
	cb := func(_ Element, c *Context) (any, error) {
		ids = append(ids, c.RunID())
		return nil, nil
	}
	_, err := e.Run(context.Background(), ints(1), cb)
	require.NoError(t, err)
	_, err = e.Run(context.Background(), ints(1), cb, Cooperative(ir.PriorityNormal))
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, ids)
}
