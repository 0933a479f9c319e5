package storage

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	in := doc{Name: "alpha", Count: 3}
	require.NoError(t, store.Put(ctx, []string{"sessions", "s1"}, in))

	var out doc
	require.NoError(t, store.Get(ctx, []string{"sessions", "s1"}, &out))
	assert.Equal(t, in, out)
	assert.True(t, store.Exists(ctx, []string{"sessions", "s1"}))
}

func TestStore_GetMissing(t *testing.T) {
	store := New(t.TempDir())

	var out doc
	err := store.Get(context.Background(), []string{"sessions", "nope"}, &out)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, []string{"state", "app"}, doc{Name: "x"}))
	require.NoError(t, store.Delete(ctx, []string{"state", "app"}))
	require.NoError(t, store.Delete(ctx, []string{"state", "app"}))
	assert.False(t, store.Exists(ctx, []string{"state", "app"}))
}

func TestStore_ListSorted(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"charlie", "alpha", "bravo"} {
		require.NoError(t, store.Put(ctx, []string{"sessions", id}, doc{Name: id}))
	}

	keys, err := store.List(ctx, []string{"sessions"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, keys)

	empty, err := store.List(ctx, []string{"does-not-exist"})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_Scan(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, []string{"sessions", "a"}, doc{Name: "a", Count: 1}))
	require.NoError(t, store.Put(ctx, []string{"sessions", "b"}, doc{Name: "b", Count: 2}))

	seen := map[string]int{}
	err := store.Scan(ctx, []string{"sessions"}, func(key string, data json.RawMessage) error {
		var d doc
		if err := json.Unmarshal(data, &d); err != nil {
			return err
		}
		seen[key] = d.Count
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, seen)
}

func TestStore_ConcurrentWritersSameKey(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, store.Put(ctx, []string{"sessions", "shared"}, doc{Count: n}))
		}(i)
	}
	wg.Wait()

	// Whichever writer won, the document must be intact.
	var out doc
	require.NoError(t, store.Get(ctx, []string{"sessions", "shared"}, &out))
	assert.GreaterOrEqual(t, out.Count, 0)
	assert.Less(t, out.Count, 10)
}
