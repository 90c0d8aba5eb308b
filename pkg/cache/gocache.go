package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type goCacheWrapper struct {
	cache *gocache.Cache
}

// NewGoCache creates an in-process cache backed by go-cache.
func NewGoCache(config LocalConfig) Cache {
	if config.DefaultExpiration <= 0 {
		config.DefaultExpiration = 10 * time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 10 * time.Minute
	}
	return &goCacheWrapper{
		cache: gocache.New(config.DefaultExpiration, config.CleanupInterval),
	}
}

func (gc *goCacheWrapper) Get(ctx context.Context, key string) (interface{}, bool) {
	return gc.cache.Get(key)
}

func (gc *goCacheWrapper) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	gc.cache.Set(key, value, expiration)
	return nil
}

// SetNX relies on go-cache's Add, which fails when a live item exists.
func (gc *goCacheWrapper) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	if err := gc.cache.Add(key, value, expiration); err != nil {
		return false, nil
	}
	return true, nil
}

func (gc *goCacheWrapper) Delete(ctx context.Context, key string) error {
	gc.cache.Delete(key)
	return nil
}

func (gc *goCacheWrapper) Exists(ctx context.Context, key string) bool {
	_, found := gc.cache.Get(key)
	return found
}

// Close is a no-op; go-cache's janitor stops when the cache is collected.
func (gc *goCacheWrapper) Close() error {
	return nil
}
