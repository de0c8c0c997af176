package memory

import (
	"context"
	"testing"
	"time"

	"github.com/leafsii/stability-vault/pkg/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreBasics(t *testing.T) {
	store := New(0) // Disable janitor for deterministic tests
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1")))
	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	n, err := store.Exists(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ttl, err := store.TTL(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl)

	ttl, err = store.TTL(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-2), ttl)

	deleted, err := store.Del(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	store := New(0)
	defer store.Close()
	ctx := context.Background()

	buf := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", buf))
	buf[0] = 'z'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestMemoryStoreLazyExpiry(t *testing.T) {
	store := New(0)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestMemoryStoreWithJanitor(t *testing.T) {
	store := New(10 * time.Millisecond)
	defer store.Close()

	ctx := context.Background()
	key := "test:janitor"

	require.NoError(t, store.Set(ctx, key, []byte("test"), 20*time.Millisecond))

	_, err := store.Get(ctx, key)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	store.mu.RLock()
	_, present := store.values[key]
	store.mu.RUnlock()
	assert.False(t, present, "expected janitor to evict expired key")
}
