package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/steve/internal/config"
	"github.com/soyeahso/steve/internal/logging"
)

func silentLog() *logging.Logger { return logging.New(nil, "silent") }

func TestMemoryGetSet(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	_, ok, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Hour))
	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	v[0] = 'x'
	v2, _, _ := m.Get(ctx, "k")
	assert.Equal(t, []byte("v"), v2, "returned slices are copies")
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "short", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, "forever", []byte("2"), 0))

	now = now.Add(2 * time.Minute)
	_, ok, _ := m.Get(ctx, "short")
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "forever")
	assert.True(t, ok)
}

func TestMemorySweep(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	now := time.Now()
	m.now = func() time.Time { return now }
	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), time.Hour))

	now = now.Add(time.Minute)
	m.sweep()
	assert.Equal(t, 1, m.Len())
}

func TestMemoryCloseTwice(t *testing.T) {
	m := NewMemory()
	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}

func TestNewSelectsBackend(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, config.CacheConfig{Backend: "memory"}, silentLog())
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)
	c.Close()

	c, err = New(ctx, config.CacheConfig{Backend: "none"}, silentLog())
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Hour))
	_, ok, _ := c.Get(ctx, "k")
	assert.False(t, ok)

	_, err = New(ctx, config.CacheConfig{Backend: "memcached"}, silentLog())
	assert.Error(t, err)
}

func TestNewRedisBadURL(t *testing.T) {
	_, err := NewRedis(context.Background(), RedisConfig{URL: "not-a-redis-url"}, silentLog())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing redis url")
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, 3*time.Second, orDefault(0, 3*time.Second))
	assert.Equal(t, time.Second, orDefault(time.Second, 3*time.Second))
}
