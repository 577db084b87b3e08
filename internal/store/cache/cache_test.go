package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Text string `json:"text"`
}

func exerciseCache(t *testing.T, c CacheService) {
	t.Helper()
	ctx := context.Background()

	var got entry
	assert.ErrorIs(t, c.Get(ctx, "missing", &got), ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", entry{Text: "hello"}, time.Minute))
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, "hello", got.Text)

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Close()

	exerciseCache(t, c)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", entry{Text: "x"}, time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var got entry
	assert.ErrorIs(t, c.Get(ctx, "short", &got), ErrCacheMiss)
}

func TestMemoryCache_Sweep(t *testing.T) {
	c := NewMemoryCache(time.Millisecond)
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "short", entry{Text: "x"}, time.Millisecond))

	assert.Eventually(t, func() bool {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return len(c.items) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryCache_CloseIsIdempotent(t *testing.T) {
	c := NewMemoryCache(time.Second)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestNewRedisCache_RequiresAddr(t *testing.T) {
	_, err := NewRedisCache(context.Background(), RedisConfig{})
	assert.Error(t, err)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	c, err := NewRedisCache(context.Background(), RedisConfig{Addr: addr, Prefix: "ai-sdk-gateway-test:"})
	require.NoError(t, err)
	defer c.Close()

	exerciseCache(t, c)
}
