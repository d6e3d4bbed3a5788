// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultComputeTimeout bounds a shared GetOrSet computation.
const DefaultComputeTimeout = 30 * time.Second

// TypedCache stores JSON-encoded values of type T in a Cacher.
type TypedCache[T any] struct {
	cache          Cacher
	defaultTTL     time.Duration
	computeTimeout time.Duration
	group          singleflight.Group

	// mu orders stores from GetOrSet against DeleteByPrefix; gen counts
	// invalidations so results computed before one are never stored.
	mu  sync.RWMutex
	gen uint64
}

// NewTypedCache creates a new TypedCache wrapping the given cache implementation.
func NewTypedCache[T any](cache Cacher, defaultTTL time.Duration) *TypedCache[T] {
	return &TypedCache[T]{
		cache:          cache,
		defaultTTL:     defaultTTL,
		computeTimeout: DefaultComputeTimeout,
	}
}

// WithComputeTimeout sets the deadline of shared GetOrSet computations.
// Non-positive values keep the current timeout.
func (c *TypedCache[T]) WithComputeTimeout(d time.Duration) *TypedCache[T] {
	if d > 0 {
		c.computeTimeout = d
	}
	return c
}

// Get returns the decoded value and true if found. Undecodable entries count as misses.
func (c *TypedCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, false
	}

	return &value, true
}

// Set stores a value in the cache with the default TTL.
func (c *TypedCache[T]) Set(ctx context.Context, key string, value *T) error {
	return c.SetWithTTL(ctx, key, value, c.defaultTTL)
}

// SetWithTTL stores a value in the cache with a custom TTL.
func (c *TypedCache[T]) SetWithTTL(ctx context.Context, key string, value *T, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.cache.Set(ctx, key, data, ttl)
}

// DeleteByPrefix removes every key starting with prefix. GetOrSet
// computations already running when it is called still return their
// result to their callers but no longer store it, and later callers start
// a fresh computation instead of joining them.
func (c *TypedCache[T]) DeleteByPrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	return c.cache.DeleteByPrefix(ctx, prefix)
}

// Has checks if a key exists in the cache.
func (c *TypedCache[T]) Has(ctx context.Context, key string) bool {
	has, _ := c.cache.Has(ctx, key)
	return has
}

// GetOrSet returns the cached value for key or computes and stores it.
// Concurrent misses on the same key share a single call to fn. fn runs on a
// context that keeps ctx's values but not its cancellation, bounded by the
// compute timeout, so one caller going away does not fail the others.
func (c *TypedCache[T]) GetOrSet(ctx context.Context, key string, fn func(ctx context.Context) (*T, error)) (*T, error) {
	return c.GetOrSetWithTTL(ctx, key, c.defaultTTL, fn)
}

// GetOrSetWithTTL is GetOrSet with a custom TTL.
func (c *TypedCache[T]) GetOrSetWithTTL(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) (*T, error)) (*T, error) {
	if value, ok := c.Get(ctx, key); ok {
		return value, nil
	}

	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	flightKey := strconv.FormatUint(gen, 10) + ":" + key
	ch := c.group.DoChan(flightKey, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.computeTimeout)
		defer cancel()

		value, err := fn(fctx)
		if err != nil {
			return nil, err
		}
		c.store(fctx, gen, key, value, ttl)
		return value, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*T), nil
	}
}

// store writes value unless the cache was invalidated after gen was read.
// A failed store is ignored; the caller still gets a valid value.
func (c *TypedCache[T]) store(ctx context.Context, gen uint64, key string, value *T, ttl time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.gen != gen {
		return
	}
	_ = c.SetWithTTL(ctx, key, value, ttl)
}
