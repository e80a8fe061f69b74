package cache

import (
	"context"
	"time"

	goCache "github.com/patrickmn/go-cache"
)

const (
	DefaultExpiration      = 30 * time.Minute
	DefaultCleanupInterval = 1 * time.Hour
)

// InMemoryCache is a process local Cache backed by patrickmn/go-cache.
// Replicas converge on a changed value after the entry TTL.
type InMemoryCache struct {
	cache *goCache.Cache
}

func NewInMemoryCache() Cache {
	return NewInMemoryCacheWithExpiration(DefaultExpiration)
}

// NewInMemoryCacheWithExpiration sets the default entry lifetime. A
// non-positive value falls back to DefaultExpiration.
func NewInMemoryCacheWithExpiration(expiration time.Duration) Cache {
	if expiration <= 0 {
		expiration = DefaultExpiration
	}
	return &InMemoryCache{
		cache: goCache.New(expiration, DefaultCleanupInterval),
	}
}

func (c *InMemoryCache) Get(_ context.Context, key string) (interface{}, bool) {
	return c.cache.Get(key)
}

func (c *InMemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) {
	if expiration == 0 {
		expiration = goCache.DefaultExpiration
	}
	c.cache.Set(key, value, expiration)
}

func (c *InMemoryCache) Delete(_ context.Context, key string) {
	c.cache.Delete(key)
}
