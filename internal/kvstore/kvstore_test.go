package kvstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runKVContract exercises the behavior every backend shares.
func runKVContract(t *testing.T, kv contract.KVStore) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		v, ok, err := kv.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, v)
	})

	t.Run("set get delete", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "k", []byte("v"), 0))
		v, ok, err := kv.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("v"), v)

		require.NoError(t, kv.Delete(ctx, "k"))
		_, ok, err = kv.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("incr", func(t *testing.T) {
		for want := int64(1); want <= 3; want++ {
			n, err := kv.Incr(ctx, "counter", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, want, n)
		}
	})

	t.Run("decr", func(t *testing.T) {
		_, err := kv.Incr(ctx, "slots", time.Minute)
		require.NoError(t, err)
		_, err = kv.Incr(ctx, "slots", time.Minute)
		require.NoError(t, err)

		n, err := kv.Decr(ctx, "slots")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		n, err = kv.Decr(ctx, "slots")
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		n, err = kv.Decr(ctx, "never-set")
		require.NoError(t, err)
		assert.Equal(t, int64(-1), n)
	})

	t.Run("concurrent incr and decr", func(t *testing.T) {
		var wg sync.WaitGroup
		for range 10 {
			_, err := kv.Incr(ctx, "balanced", time.Minute)
			require.NoError(t, err)
		}
		for range 10 {
			wg.Go(func() {
				_, err := kv.Incr(ctx, "balanced", time.Minute)
				assert.NoError(t, err)
			})
			wg.Go(func() {
				_, err := kv.Decr(ctx, "balanced")
				assert.NoError(t, err)
			})
		}
		wg.Wait()
		v, ok, err := kv.Get(ctx, "balanced")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "10", string(v))
	})

	t.Run("concurrent incr", func(t *testing.T) {
		var wg sync.WaitGroup
		for range 20 {
			wg.Go(func() {
				_, err := kv.Incr(ctx, "concurrent", time.Minute)
				assert.NoError(t, err)
			})
		}
		wg.Wait()
		v, ok, err := kv.Get(ctx, "concurrent")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "20", string(v))
	})
}

func TestMemory(t *testing.T) {
	runKVContract(t, NewMemory())
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "short", []byte("x"), time.Second))
	n, err := m.Incr(ctx, "window", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	now = now.Add(30 * time.Second)
	_, ok, _ := m.Get(ctx, "short")
	assert.False(t, ok)

	// An existing counter keeps its original expiry
	n, err = m.Incr(ctx, "window", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Decr keeps the expiry too
	n, err = m.Decr(ctx, "window")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	now = now.Add(31 * time.Second)
	n, err = m.Incr(ctx, "window", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestBadger(t *testing.T) {
	kv, err := NewBadgerInMemory()
	require.NoError(t, err)
	defer func() { _ = kv.Close() }()
	runKVContract(t, kv)
}

func TestNew(t *testing.T) {
	kv, err := New(schema.MemoryKV, "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, kv)

	kv, err = New(schema.BadgerKV, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &Badger{}, kv)
	assert.NoError(t, kv.Close())

	_, err = New("etcd", "")
	assert.Error(t, err)
}
