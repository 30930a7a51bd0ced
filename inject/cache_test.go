// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package inject

import (
	"testing"
	"time"

	"github.com/gitchain-foundation/gitchain/lib/clock"
	"github.com/gitchain-foundation/gitchain/store"
)

func TestCacheGetSet(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	cache := NewCache(5*time.Minute, clk)

	if _, ok := cache.Get("product:tools:drill-11:0711:product:tools:drill-11:latest"); ok {
		t.Fatal("empty cache should miss")
	}

	container := store.Container{Message: "v1"}
	cache.Set("product:tools:drill-11:0711:product:tools:drill-11:latest", container)

	got, ok := cache.Get("product:tools:drill-11:0711:product:tools:drill-11:latest")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Message != "v1" {
		t.Errorf("Message = %q, want v1", got.Message)
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	cache := NewCache(5*time.Minute, clk)
	cache.Set("k", store.Container{})

	clk.Advance(5 * time.Minute)
	if _, ok := cache.Get("k"); !ok {
		t.Error("entry should still be fresh at exactly the TTL")
	}

	clk.Advance(time.Second)
	if _, ok := cache.Get("k"); ok {
		t.Error("entry should have expired")
	}
	if cache.Len() != 0 {
		t.Errorf("Len = %d after expiry collection, want 0", cache.Len())
	}
}

func TestCacheInvalidatePrefix(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	cache := NewCache(5*time.Minute, clk)

	cache.Set("product:tools:drill-11:0711:product:tools:drill-11:latest", store.Container{})
	cache.Set("product:tools:drill-11:0711:product:tools:drill-11:v2", store.Container{})
	cache.Set("product:tools:saw-3:0711:product:tools:saw-3:latest", store.Container{})

	if removed := cache.Invalidate("product:tools:drill-11"); removed != 2 {
		t.Errorf("Invalidate removed %d, want 2", removed)
	}
	if _, ok := cache.Get("product:tools:saw-3:0711:product:tools:saw-3:latest"); !ok {
		t.Error("unrelated identifier should survive invalidation")
	}
	if cache.Len() != 1 {
		t.Errorf("Len = %d, want 1", cache.Len())
	}
}

func TestNilCacheIsSafe(t *testing.T) {
	var cache *Cache
	if _, ok := cache.Get("k"); ok {
		t.Error("nil cache should miss")
	}
	cache.Set("k", store.Container{})
	if n := cache.Invalidate("k"); n != 0 {
		t.Errorf("Invalidate on nil = %d, want 0", n)
	}
	if cache.Len() != 0 {
		t.Error("nil cache should be empty")
	}
}
