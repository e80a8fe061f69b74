package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Cache is the read-through cache in front of the settings and product tables
type Cache interface {
	// Get returns the value and whether the key was present
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores value. A zero expiration uses the cache default.
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration)

	Delete(ctx context.Context, key string)
}

const (
	PrefixSettings = "settings:v1:"
	PrefixProduct  = "product:v1:"
)

// GenerateKey joins prefix and params with ":"
func GenerateKey(prefix string, params ...interface{}) string {
	parts := make([]string, len(params)+1)
	parts[0] = prefix

	for i, param := range params {
		parts[i+1] = fmt.Sprintf("%v", param)
	}

	return strings.Join(parts, ":")
}

// Fetch returns the cached value under key when it has type T.
// A nil cache always misses.
func Fetch[T any](ctx context.Context, c Cache, key string) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	value, found := c.Get(ctx, key)
	if !found {
		return zero, false
	}
	typed, ok := value.(T)
	return typed, ok
}
