package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	key := GenerateKey(PrefixSettings, "change_window")
	assert.Equal(t, "settings:v1::change_window", key)

	c.Set(ctx, key, 3, time.Minute)
	v, ok := c.Get(ctx, key)
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	c.Delete(ctx, key)
	_, ok = c.Get(ctx, key)
	assert.False(t, ok)
}

func TestInMemoryCache_Expiration(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCacheWithExpiration(20 * time.Millisecond)

	c.Set(ctx, "k", "v", 0)
	_, ok := c.Get(ctx, "k")
	assert.True(t, ok)

	time.Sleep(50 * time.Millisecond)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestFetch(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()
	c.Set(ctx, "count", 7, 0)

	n, ok := Fetch[int](ctx, c, "count")
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	_, ok = Fetch[string](ctx, c, "count")
	assert.False(t, ok, "wrong type is a miss")

	_, ok = Fetch[int](ctx, c, "missing")
	assert.False(t, ok)

	_, ok = Fetch[int](ctx, nil, "count")
	assert.False(t, ok, "nil cache is a miss")
}
