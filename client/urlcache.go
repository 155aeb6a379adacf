package client

import (
	"strings"
	"sync"
	"time"
)

// Signed URLs are treated as stale this long before their real expiry so a
// cached URL handed to a player still has time to be fetched.
const urlExpiryBuffer = 30 * time.Second

type cachedURL struct {
	url       string
	staleAt   time.Time
	expiresAt time.Time
}

// URLCache remembers signed playback URLs keyed by clip id so callers do not
// hit the status endpoint for every render. Entries drop out ahead of the
// URL's own expiry. Safe for concurrent use.
type URLCache struct {
	mu      sync.Mutex
	entries map[string]cachedURL
	now     func() time.Time

	sweepStop chan struct{}
	sweepOnce sync.Once
}

// NewURLCache builds an empty cache. A nil clock means time.Now.
func NewURLCache(clock func() time.Time) *URLCache {
	if clock == nil {
		clock = time.Now
	}
	return &URLCache{
		entries:   make(map[string]cachedURL),
		now:       clock,
		sweepStop: make(chan struct{}),
	}
}

// Get returns the cached URL for the key, or "" when absent or stale.
func (c *URLCache) Get(key string) (string, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if !c.now().Before(entry.staleAt) {
		delete(c.entries, key)
		return "", false
	}
	return entry.url, true
}

// Set stores a URL that expires at the given time. URLs already inside the
// safety buffer are not cached.
func (c *URLCache) Set(key, url string, expiresAt time.Time) {
	key = strings.TrimSpace(key)
	if key == "" || url == "" {
		return
	}
	staleAt := expiresAt.Add(-urlExpiryBuffer)
	if !c.now().Before(staleAt) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedURL{url: url, staleAt: staleAt, expiresAt: expiresAt}
}

// Evict drops one key.
func (c *URLCache) Evict(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, strings.TrimSpace(key))
}

// Len reports the number of live entries, sweeping stale ones first.
func (c *URLCache) Len() int {
	c.sweep()
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// StartSweeper removes stale entries on the given interval until Close is
// called. Calling it more than once is a no-op.
func (c *URLCache) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	c.sweepOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-c.sweepStop:
					return
				case <-ticker.C:
					c.sweep()
				}
			}
		}()
	})
}

// Close stops the background sweeper if one is running.
func (c *URLCache) Close() {
	select {
	case <-c.sweepStop:
	default:
		close(c.sweepStop)
	}
}

func (c *URLCache) sweep() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if !now.Before(entry.staleAt) {
			delete(c.entries, key)
		}
	}
}
