package client

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func TestURLCacheGetSetEvict(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cache := NewURLCache(clock.Now)

	expiry := clock.now.Add(time.Hour)
	cache.Set("clip-1", "https://cdn.example.com/v.mp4?sig=a", expiry)

	url, ok := cache.Get("clip-1")
	if !ok || url != "https://cdn.example.com/v.mp4?sig=a" {
		t.Fatalf("Get = %q, %v", url, ok)
	}

	cache.Evict("clip-1")
	if _, ok := cache.Get("clip-1"); ok {
		t.Error("expected the entry to be evicted")
	}
}

func TestURLCacheExpiresBeforeURLDoes(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cache := NewURLCache(clock.Now)

	expiry := clock.now.Add(time.Minute)
	cache.Set("clip-1", "https://cdn.example.com/v.mp4", expiry)

	// Still fresh just inside the safety buffer boundary.
	clock.Advance(time.Minute - urlExpiryBuffer - time.Second)
	if _, ok := cache.Get("clip-1"); !ok {
		t.Fatal("expected a hit before the buffer window")
	}

	// Inside the buffer the URL is treated as stale even though it is
	// technically still valid.
	clock.Advance(2 * time.Second)
	if _, ok := cache.Get("clip-1"); ok {
		t.Error("expected a miss inside the safety buffer")
	}
}

func TestURLCacheRejectsNearlyExpiredURL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cache := NewURLCache(clock.Now)

	cache.Set("clip-1", "https://cdn.example.com/v.mp4", clock.now.Add(urlExpiryBuffer/2))
	if _, ok := cache.Get("clip-1"); ok {
		t.Error("URL inside the buffer window should not be cached")
	}
	if cache.Len() != 0 {
		t.Errorf("len = %d, want 0", cache.Len())
	}
}

func TestURLCacheSweep(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cache := NewURLCache(clock.Now)

	cache.Set("clip-1", "https://cdn.example.com/a.mp4", clock.now.Add(time.Minute))
	cache.Set("clip-2", "https://cdn.example.com/b.mp4", clock.now.Add(time.Hour))

	clock.Advance(2 * time.Minute)
	cache.sweep()

	if _, ok := cache.Get("clip-1"); ok {
		t.Error("clip-1 should have been swept")
	}
	if _, ok := cache.Get("clip-2"); !ok {
		t.Error("clip-2 should survive the sweep")
	}
	if cache.Len() != 1 {
		t.Errorf("len = %d, want 1", cache.Len())
	}
}
