// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type testNode struct {
	Key      int64      `json:"key"`
	Title    string     `json:"title"`
	Children []testNode `json:"children,omitempty"`
}

func TestTypedCache_BasicOperations(t *testing.T) {
	memCache := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = memCache.Close() }()

	cache := NewTypedCache[[]testNode](memCache, time.Hour)
	ctx := context.Background()

	forest := []testNode{{Key: 10, Title: "Hokkaido", Children: []testNode{{Key: 1001, Title: "Sapporo-area"}}}}
	if err := cache.Set(ctx, "tree:0", &forest); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, found := cache.Get(ctx, "tree:0")
	if !found {
		t.Fatal("expected to find tree:0")
	}
	if len(*got) != 1 || (*got)[0].Children[0].Title != "Sapporo-area" {
		t.Errorf("got %+v", *got)
	}

	if !cache.Has(ctx, "tree:0") {
		t.Error("Has(tree:0) = false")
	}
	if cache.Has(ctx, "tree:1") {
		t.Error("Has(tree:1) = true for a key never set")
	}
}

func TestTypedCache_CorruptEntryIsMiss(t *testing.T) {
	memCache := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = memCache.Close() }()

	ctx := context.Background()
	_ = memCache.Set(ctx, "tree:0", []byte("{not json"), 0)

	cache := NewTypedCache[[]testNode](memCache, time.Hour)
	if _, found := cache.Get(ctx, "tree:0"); found {
		t.Error("corrupt entry should be reported as a miss")
	}
}

func TestTypedCache_GetOrSet(t *testing.T) {
	memCache := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = memCache.Close() }()

	cache := NewTypedCache[[]testNode](memCache, time.Hour)
	ctx := context.Background()

	calls := 0
	build := func(context.Context) (*[]testNode, error) {
		calls++
		forest := []testNode{{Key: 20, Title: "Tohoku"}}
		return &forest, nil
	}

	for i := 0; i < 3; i++ {
		got, err := cache.GetOrSet(ctx, "tree:0", build)
		if err != nil {
			t.Fatalf("GetOrSet failed: %v", err)
		}
		if (*got)[0].Key != 20 {
			t.Errorf("got %+v", *got)
		}
	}
	if calls != 1 {
		t.Errorf("build called %d times, want 1", calls)
	}
}

func TestTypedCache_GetOrSetError(t *testing.T) {
	memCache := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = memCache.Close() }()

	cache := NewTypedCache[[]testNode](memCache, time.Hour)
	ctx := context.Background()

	wantErr := errors.New("database down")
	_, err := cache.GetOrSet(ctx, "tree:0", func(context.Context) (*[]testNode, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
	if cache.Has(ctx, "tree:0") {
		t.Error("failed computation must not be cached")
	}
}

func TestTypedCache_GetOrSetDeduplicatesConcurrentMisses(t *testing.T) {
	memCache := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = memCache.Close() }()

	cache := NewTypedCache[[]testNode](memCache, time.Hour)
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	build := func(context.Context) (*[]testNode, error) {
		calls.Add(1)
		<-release
		forest := []testNode{{Key: 1}}
		return &forest, nil
	}

	var wg sync.WaitGroup
	var started sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		started.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			if _, err := cache.GetOrSet(ctx, "tree:0", build); err != nil {
				t.Errorf("GetOrSet failed: %v", err)
			}
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n < 1 || n > 10 {
		t.Fatalf("build called %d times", n)
	}
	if n := calls.Load(); n != 1 {
		t.Logf("build called %d times; some goroutines started after the first build finished", n)
	}
}

func TestTypedCache_DeleteByPrefix(t *testing.T) {
	memCache := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = memCache.Close() }()

	cache := NewTypedCache[[]testNode](memCache, time.Hour)
	ctx := context.Background()

	empty := []testNode{}
	_ = cache.Set(ctx, "tree:a", &empty)
	_ = cache.Set(ctx, "tree:b", &empty)
	_ = cache.Set(ctx, "other", &empty)

	if err := cache.DeleteByPrefix(ctx, "tree:"); err != nil {
		t.Fatalf("DeleteByPrefix failed: %v", err)
	}
	if cache.Has(ctx, "tree:a") || cache.Has(ctx, "tree:b") {
		t.Error("tree:* keys should be gone")
	}
	if !cache.Has(ctx, "other") {
		t.Error("other should remain")
	}
}

func TestTypedCache_GetOrSetSurvivesFirstCallerCancel(t *testing.T) {
	memCache := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = memCache.Close() }()

	cache := NewTypedCache[[]testNode](memCache, time.Hour)

	var calls atomic.Int32
	var enterOnce sync.Once
	entered := make(chan struct{})
	release := make(chan struct{})
	build := func(ctx context.Context) (*[]testNode, error) {
		calls.Add(1)
		enterOnce.Do(func() { close(entered) })
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
		}
		forest := []testNode{{Key: 10, Title: "Hokkaido"}}
		return &forest, nil
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := cache.GetOrSet(ctxA, "tree:root:0", build)
		errA <- err
	}()
	<-entered

	type result struct {
		nodes *[]testNode
		err   error
	}
	resB := make(chan result, 1)
	go func() {
		nodes, err := cache.GetOrSet(context.Background(), "tree:root:0", build)
		resB <- result{nodes, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("canceled caller err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("canceled caller did not return")
	}

	close(release)
	b := <-resB
	if b.err != nil {
		t.Fatalf("live caller err = %v, want nil", b.err)
	}
	if (*b.nodes)[0].Title != "Hokkaido" {
		t.Errorf("live caller got %+v", *b.nodes)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("build called %d times, want 1", n)
	}
	if !cache.Has(context.Background(), "tree:root:0") {
		t.Error("result of the shared build should be cached")
	}
}

func TestTypedCache_GetOrSetComputeTimeout(t *testing.T) {
	memCache := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = memCache.Close() }()

	cache := NewTypedCache[[]testNode](memCache, time.Hour).WithComputeTimeout(20 * time.Millisecond)

	_, err := cache.GetOrSet(context.Background(), "tree:0", func(ctx context.Context) (*[]testNode, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestTypedCache_DeleteByPrefixDiscardsInFlightResult(t *testing.T) {
	memCache := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = memCache.Close() }()

	cache := NewTypedCache[[]testNode](memCache, time.Hour)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	oldBuild := func(context.Context) (*[]testNode, error) {
		close(entered)
		<-release
		forest := []testNode{{Key: 1, Title: "old"}}
		return &forest, nil
	}
	newBuild := func(context.Context) (*[]testNode, error) {
		forest := []testNode{{Key: 1, Title: "new"}}
		return &forest, nil
	}

	oldDone := make(chan *[]testNode, 1)
	go func() {
		nodes, err := cache.GetOrSet(ctx, "tree:root:0", oldBuild)
		if err != nil {
			t.Errorf("GetOrSet(old) failed: %v", err)
		}
		oldDone <- nodes
	}()
	<-entered

	if err := cache.DeleteByPrefix(ctx, "tree:"); err != nil {
		t.Fatalf("DeleteByPrefix failed: %v", err)
	}

	// A caller after the invalidation must not join the running build.
	got, err := cache.GetOrSet(ctx, "tree:root:0", newBuild)
	if err != nil {
		t.Fatalf("GetOrSet(new) failed: %v", err)
	}
	if (*got)[0].Title != "new" {
		t.Errorf("post-invalidation caller got %q, want new", (*got)[0].Title)
	}

	close(release)
	if old := <-oldDone; (*old)[0].Title != "old" {
		t.Errorf("in-flight caller got %q, want old", (*old)[0].Title)
	}

	cached, ok := cache.Get(ctx, "tree:root:0")
	if !ok {
		t.Fatal("tree:root:0 should be cached")
	}
	if (*cached)[0].Title != "new" {
		t.Errorf("cached %q after invalidation, want new", (*cached)[0].Title)
	}
}

func TestTypedCache_DeleteByPrefixBeforeStoreLeavesKeyEmpty(t *testing.T) {
	memCache := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = memCache.Close() }()

	cache := NewTypedCache[[]testNode](memCache, time.Hour)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = cache.GetOrSet(ctx, "tree:root:0", func(context.Context) (*[]testNode, error) {
			close(entered)
			<-release
			forest := []testNode{{Key: 1, Title: "old"}}
			return &forest, nil
		})
	}()
	<-entered

	if err := cache.DeleteByPrefix(ctx, "tree:"); err != nil {
		t.Fatalf("DeleteByPrefix failed: %v", err)
	}
	close(release)
	<-done

	if cache.Has(ctx, "tree:root:0") {
		t.Error("build started before the invalidation was stored after it")
	}
}
