package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_SetGet(t *testing.T) {
	c, err := NewTTL[string](context.Background(), 100*time.Millisecond, 20*time.Millisecond)
	require.NoError(t, err)
	defer c.Close()

	created, err := c.Set("schema/osdu", "introspection-doc")
	require.NoError(t, err)
	assert.True(t, created)

	got, ok := c.Get("schema/osdu")
	assert.True(t, ok)
	assert.Equal(t, "introspection-doc", got)

	// Overwrite is not a new entry
	created, err = c.Set("schema/osdu", "updated")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestTTLCache_Expiry(t *testing.T) {
	c, err := NewTTL[int](context.Background(), 30*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Set("k", 1)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok, "entry should have expired")
	assert.GreaterOrEqual(t, c.Stats().Evictions(), int64(1))
}

func TestTTLCache_EmptyKey(t *testing.T) {
	c, err := NewTTL[int](context.Background(), time.Minute, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Set("", 1)
	assert.Error(t, err)
}

func TestTTLCache_EvictionCallback(t *testing.T) {
	evicted := make(chan string, 1)
	c, err := NewTTL[int](context.Background(), 20*time.Millisecond, 5*time.Millisecond,
		WithEvictionCallback[int](func(key string, _ int) {
			select {
			case evicted <- key:
			default:
			}
		}))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Set("doomed", 1)
	require.NoError(t, err)

	select {
	case key := <-evicted:
		assert.Equal(t, "doomed", key)
	case <-time.After(time.Second):
		t.Fatal("eviction callback never fired")
	}
}

func TestTTLCache_InvalidTTL(t *testing.T) {
	_, err := NewTTL[int](context.Background(), 0, time.Second)
	assert.Error(t, err)
}

func TestLRUCache_Eviction(t *testing.T) {
	c, err := NewLRU[string](2)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Set("a", "1")
	require.NoError(t, err)
	_, err = c.Set("b", "2")
	require.NoError(t, err)

	// Touch "a" so "b" becomes least recently used
	_, ok := c.Get("a")
	require.True(t, ok)

	_, err = c.Set("c", "3")
	require.NoError(t, err)

	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCache_KeysOrder(t *testing.T) {
	c, err := NewLRU[int](3)
	require.NoError(t, err)
	defer c.Close()

	for i, k := range []string{"x", "y", "z"} {
		_, err := c.Set(k, i)
		require.NoError(t, err)
	}

	// Most recently used first
	assert.Equal(t, []string{"z", "y", "x"}, c.Keys())
}

func TestLRUCache_DeleteAndClear(t *testing.T) {
	c, err := NewLRU[int](10)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Set("k", 1)
	require.NoError(t, err)

	deleted, err := c.Delete("k")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = c.Delete("missing")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = c.Set("k2", 2)
	require.NoError(t, err)
	require.NoError(t, c.Clear())
	assert.Equal(t, 0, c.Size())
}

func TestStatistics_HitRate(t *testing.T) {
	c, err := NewLRU[int](4)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Set("hit", 1)
	require.NoError(t, err)

	c.Get("hit")
	c.Get("hit")
	c.Get("miss")

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits())
	assert.Equal(t, int64(1), stats.Misses())
	assert.InDelta(t, 0.666, stats.HitRate(), 0.01)
}
