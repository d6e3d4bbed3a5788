// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryCache_BasicOperations(t *testing.T) {
	cache := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = cache.Close() }()

	ctx := context.Background()

	if err := cache.Set(ctx, "tree:0", []byte(`[{"key":10}]`), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := cache.Get(ctx, "tree:0")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `[{"key":10}]` {
		t.Errorf("Get = %q", got)
	}

	has, err := cache.Has(ctx, "tree:0")
	if err != nil || !has {
		t.Errorf("Has = %v, %v; want true, nil", has, err)
	}

	if err := cache.Delete(ctx, "tree:0"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := cache.Get(ctx, "tree:0"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get after Delete error = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCache_Expiration(t *testing.T) {
	cache := NewMemoryCache(MemoryCacheOptions{DefaultTTL: 20 * time.Millisecond})
	defer func() { _ = cache.Close() }()

	ctx := context.Background()
	_ = cache.Set(ctx, "short", []byte("v"), 0)
	_ = cache.Set(ctx, "long", []byte("v"), time.Hour)

	time.Sleep(40 * time.Millisecond)

	if _, err := cache.Get(ctx, "short"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expired key error = %v, want ErrCacheMiss", err)
	}
	if has, _ := cache.Has(ctx, "short"); has {
		t.Error("Has(short) = true after expiry")
	}
	if _, err := cache.Get(ctx, "long"); err != nil {
		t.Errorf("long-lived key error = %v", err)
	}
	if items := cache.Stats().Items; items != 1 {
		t.Errorf("Items = %d, want 1", items)
	}
}

func TestMemoryCache_DeleteByPrefix(t *testing.T) {
	cache := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = cache.Close() }()

	ctx := context.Background()
	_ = cache.Set(ctx, "tree:country:1", []byte("a"), 0)
	_ = cache.Set(ctx, "tree:country:2", []byte("b"), 0)
	_ = cache.Set(ctx, "tree:root:0", []byte("c"), 0)

	if err := cache.DeleteByPrefix(ctx, "tree:country:"); err != nil {
		t.Fatalf("DeleteByPrefix failed: %v", err)
	}

	if has, _ := cache.Has(ctx, "tree:country:1"); has {
		t.Error("tree:country:1 should be deleted")
	}
	if has, _ := cache.Has(ctx, "tree:root:0"); !has {
		t.Error("tree:root:0 should remain")
	}
}

func TestMemoryCache_DeleteByPrefixEmptyRemovesAll(t *testing.T) {
	cache := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = cache.Close() }()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = cache.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), 0)
	}

	if err := cache.DeleteByPrefix(ctx, ""); err != nil {
		t.Fatalf("DeleteByPrefix failed: %v", err)
	}

	stats := cache.Stats()
	if stats.Items != 0 || stats.Size != 0 {
		t.Errorf("after DeleteByPrefix Items = %d, Size = %d; want 0, 0", stats.Items, stats.Size)
	}
}

func TestMemoryCache_MaxSizeEvictsSoonestExpiry(t *testing.T) {
	cache := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Hour, MaxSize: 2})
	defer func() { _ = cache.Close() }()

	ctx := context.Background()
	_ = cache.Set(ctx, "a", []byte("1"), time.Minute)
	_ = cache.Set(ctx, "b", []byte("2"), time.Hour)
	_ = cache.Set(ctx, "c", []byte("3"), time.Hour)

	if has, _ := cache.Has(ctx, "a"); has {
		t.Error("a should have been evicted")
	}
	for _, k := range []string{"b", "c"} {
		if has, _ := cache.Has(ctx, k); !has {
			t.Errorf("%s should remain", k)
		}
	}

	// Overwriting an existing key never evicts.
	_ = cache.Set(ctx, "b", []byte("22"), time.Hour)
	if has, _ := cache.Has(ctx, "c"); !has {
		t.Error("c evicted by overwrite of b")
	}
	if items := cache.Stats().Items; items != 2 {
		t.Errorf("Items = %d, want 2", items)
	}
}

func TestMemoryCache_Stats(t *testing.T) {
	cache := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = cache.Close() }()

	ctx := context.Background()
	_ = cache.Set(ctx, "k", []byte("abcd"), 0)
	_, _ = cache.Get(ctx, "k")
	_, _ = cache.Get(ctx, "k")
	_, _ = cache.Get(ctx, "missing")

	stats := cache.Stats()
	if stats.Hits != 2 || stats.Misses != 1 || stats.Sets != 1 {
		t.Errorf("stats = %+v, want 2 hits, 1 miss, 1 set", stats)
	}
	if stats.Size != 4 {
		t.Errorf("Size = %d, want 4", stats.Size)
	}
	if stats.HitRate < 66 || stats.HitRate > 67 {
		t.Errorf("HitRate = %v, want ~66.7", stats.HitRate)
	}
}

func TestMemoryCache_ValueCopy(t *testing.T) {
	cache := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = cache.Close() }()

	ctx := context.Background()
	value := []byte("original")
	_ = cache.Set(ctx, "k", value, 0)
	value[0] = 'X'

	got, _ := cache.Get(ctx, "k")
	if string(got) != "original" {
		t.Errorf("stored value mutated through caller slice: %q", got)
	}

	got[0] = 'Y'
	again, _ := cache.Get(ctx, "k")
	if string(again) != "original" {
		t.Errorf("stored value mutated through returned slice: %q", again)
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	cache := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Hour, MaxSize: 50})
	defer func() { _ = cache.Close() }()

	ctx := context.Background()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*200+i)%100)
				_ = cache.Set(ctx, key, []byte("v"), 0)
				_, _ = cache.Get(ctx, key)
				if i%10 == 0 {
					_ = cache.Delete(ctx, key)
				}
			}
		}(g)
	}
	wg.Wait()

	if items := cache.Stats().Items; items > 50 || items < 0 {
		t.Errorf("Items = %d, want within [0, 50]", items)
	}
}

func TestMemoryCache_Close(t *testing.T) {
	cache := NewSimpleMemoryCache(time.Hour)
	if err := cache.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	ctx := context.Background()
	if err := cache.Set(ctx, "k", []byte("v"), 0); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Set after Close = %v, want ErrCacheClosed", err)
	}
	if _, err := cache.Get(ctx, "k"); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Get after Close = %v, want ErrCacheClosed", err)
	}
}
