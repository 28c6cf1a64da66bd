package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/logger"
)

// IndexCache memoises loaded index stores by identity.
//
// A store is loaded at most once per key even under concurrent first use.
// Failed loads are not cached, so a query after a rebuild retries the load.
// The cache is owned by the caller (a CLI run or an MCP server) and must be
// closed by it.
type IndexCache struct {
	mu      sync.RWMutex
	entries map[string]io.Closer
	retired []io.Closer
	closed  bool
	group   singleflight.Group
}

// NewIndexCache creates an empty cache.
func NewIndexCache() *IndexCache {
	return &IndexCache{entries: make(map[string]io.Closer)}
}

// IndexKey returns the cache key for an index artifact.
func IndexKey(kind domain.IndexKind, path string) string {
	return string(kind) + "@" + path
}

var errCacheClosed = errors.New("index cache closed")

// Get returns the cached value for key, calling load on a miss.
func (c *IndexCache) Get(ctx context.Context, key string, load func(ctx context.Context) (io.Closer, error)) (io.Closer, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, errCacheClosed
	}
	if v, ok := c.entries[key]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		if v, ok := c.entries[key]; ok {
			c.mu.RUnlock()
			return v, nil
		}
		c.mu.RUnlock()

		logger.Debug("index cache: loading %s", key)
		loaded, err := load(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			_ = loaded.Close()
			return nil, errCacheClosed
		}
		c.entries[key] = loaded
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(io.Closer), nil
}

// Invalidate drops the entry for key so the next Get reloads it.
// The old value stays open until Close: in-flight queries may still use it.
func (c *IndexCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.entries[key]; ok {
		logger.Debug("index cache: invalidating %s", key)
		c.retired = append(c.retired, v)
		delete(c.entries, key)
	}
	c.group.Forget(key)
}

// Len returns the number of cached entries.
func (c *IndexCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close closes every cached and retired value. The cache is unusable afterwards.
func (c *IndexCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	for key, v := range c.entries {
		if err := v.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", key, err))
		}
	}
	for _, v := range c.retired {
		if err := v.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.entries = nil
	c.retired = nil
	return errors.Join(errs...)
}

// cacheLoad is a typed wrapper over IndexCache.Get.
func cacheLoad[T io.Closer](ctx context.Context, c *IndexCache, key string, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.Get(ctx, key, func(ctx context.Context) (io.Closer, error) {
		return load(ctx)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("index cache: unexpected type %T for %s", v, key)
	}
	return typed, nil
}
