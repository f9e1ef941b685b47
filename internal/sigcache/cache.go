// Package sigcache maps short identifiers to full transaction signatures.
// Telegram callback payloads are capped at 64 bytes, far below a Solana
// signature, so explorer buttons carry a short id resolved through this cache.
package sigcache

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTTL is how long a signature stays resolvable after its reply was sent.
	DefaultTTL = 24 * time.Hour

	sweepInterval = 10 * time.Minute
)

type entry struct {
	signature string
	expiresAt time.Time
}

// Cache is an in-memory short-id to signature map with TTL eviction.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
	log     *slog.Logger
}

// New constructs a Cache. The sweep loop does not start until Run is called.
func New(log *slog.Logger, ttl time.Duration) *Cache {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
		log:     log,
	}
}

// Put stores a signature and returns the short id to embed in a callback.
func (c *Cache) Put(signature string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[id] = entry{
		signature: signature,
		expiresAt: c.now().Add(c.ttl),
	}

	return id
}

// Get resolves a short id. Expired entries are removed on read.
func (c *Cache) Get(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return "", false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, id)
		return "", false
	}

	return e.signature, true
}

// Run executes the eviction loop until the context is cancelled.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("signature cache sweeper stopped")
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	c.mu.Lock()
	now := c.now()
	evicted := 0
	for id, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, id)
			evicted++
		}
	}
	c.mu.Unlock()

	if evicted > 0 {
		c.log.Info("evicted expired signatures", slog.Int("count", evicted))
	}
}
