package cache

import (
	"context"
	"errors"
	"time"
)

// LayeredCache is a two-level cache: L1 in memory, optional L2 shared (Redis).
type LayeredCache struct {
	mem    *MemoryCache
	remote Service
	l1TTL  time.Duration
}

// NewLayeredCache wraps remote with an in-memory L1. remote may be nil,
// in which case the cache is memory only. l1TTL caps how long a value
// read from L2 lives in L1.
func NewLayeredCache(mem *MemoryCache, remote Service, l1TTL time.Duration) *LayeredCache {
	return &LayeredCache{mem: mem, remote: remote, l1TTL: l1TTL}
}

// Set writes through to L2 first, then L1.
func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if lc.remote != nil {
		if err := lc.remote.Set(ctx, key, value, expiration); err != nil {
			return err
		}
	}
	return lc.mem.Set(ctx, key, value, expiration)
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.mem.Get(ctx, key, dest); err == nil {
		return nil
	} else if !errors.Is(err, ErrCacheMiss) {
		return err
	}
	if lc.remote == nil {
		return ErrCacheMiss
	}
	if err := lc.remote.Get(ctx, key, dest); err != nil {
		return err
	}
	_ = lc.mem.Set(ctx, key, dest, lc.l1TTL)
	return nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.mem.Delete(ctx, keys...)
	if lc.remote == nil {
		return nil
	}
	return lc.remote.Delete(ctx, keys...)
}

// Close closes both layers.
func (lc *LayeredCache) Close() error {
	_ = lc.mem.Close()
	if lc.remote == nil {
		return nil
	}
	return lc.remote.Close()
}
