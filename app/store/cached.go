package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/lcw/v2"
)

// Preferences is the storage interface wrapped by Cached.
type Preferences interface {
	Get(ctx context.Context, visitor, key string) (string, error)
	Set(ctx context.Context, visitor, key, value string) error
	Delete(ctx context.Context, visitor, key string) error
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
	Close() error
}

// Cached wraps Preferences with a loading cache and satisfies the interface itself.
// Cache is populated on reads via loader function, invalidated on writes.
type Cached struct {
	store Preferences
	cache lcw.LoadingCache[string]
}

// NewCached creates a new cached store wrapper.
// maxKeys sets the maximum number of entries in the cache.
func NewCached(store Preferences, maxKeys int) (*Cached, error) {
	cache, err := lcw.NewLruCache(lcw.NewOpts[string]().MaxKeys(maxKeys))
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return &Cached{store: store, cache: cache}, nil
}

// Get retrieves the preference, using cache with load-through. Misses are not cached.
func (c *Cached) Get(ctx context.Context, visitor, key string) (string, error) {
	val, err := c.cache.Get(cacheKey(visitor, key), func() (string, error) {
		v, loadErr := c.store.Get(ctx, visitor, key)
		if loadErr != nil {
			return "", loadErr
		}
		return v, nil
	})
	if errors.Is(err, ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("cache get: %w", err)
	}
	return val, nil
}

// Set stores a value and invalidates the cache entry.
func (c *Cached) Set(ctx context.Context, visitor, key, value string) error {
	if err := c.store.Set(ctx, visitor, key, value); err != nil {
		return fmt.Errorf("store set: %w", err)
	}
	ck := cacheKey(visitor, key)
	c.cache.Invalidate(func(k string) bool { return k == ck })
	return nil
}

// Delete removes a preference and invalidates the cache entry.
func (c *Cached) Delete(ctx context.Context, visitor, key string) error {
	// invalidate regardless of error - key might have been cached
	ck := cacheKey(visitor, key)
	c.cache.Invalidate(func(k string) bool { return k == ck })
	if err := c.store.Delete(ctx, visitor, key); err != nil {
		return fmt.Errorf("store delete: %w", err)
	}
	return nil
}

// Cleanup removes stale preferences and purges the whole cache.
func (c *Cached) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := c.store.Cleanup(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("store cleanup: %w", err)
	}
	if n > 0 {
		c.cache.Purge()
	}
	return n, nil
}

// Close closes the cache and underlying store.
func (c *Cached) Close() error {
	_ = c.cache.Close()
	if err := c.store.Close(); err != nil {
		return fmt.Errorf("store close: %w", err)
	}
	return nil
}

// Stats returns cache statistics.
func (c *Cached) Stats() lcw.CacheStat {
	return c.cache.Stat()
}

func cacheKey(visitor, key string) string {
	return visitor + "\x00" + NormalizeKey(key)
}

