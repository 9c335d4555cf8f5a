// Package memory provides in-memory storage adapters.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/ansa/internal/core/domain"
	"github.com/custodia-labs/ansa/internal/core/ports/driven"
)

// Ensure AnswerCache implements the interface.
var _ driven.AnswerCache = (*AnswerCache)(nil)

// cacheEntry holds one stored answer and its expiry.
type cacheEntry struct {
	answer    domain.Answer
	expiresAt time.Time
}

// AnswerCache is an in-memory implementation of driven.AnswerCache.
// Entries expire lazily on read; an optional background sweep reclaims
// memory for entries that are never read again.
type AnswerCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
	done    chan struct{}
	closed  sync.Once
}

// Option configures the cache.
type Option func(*AnswerCache)

// WithClock overrides the time source. Useful for testing expiry.
func WithClock(now func() time.Time) Option {
	return func(c *AnswerCache) {
		c.now = now
	}
}

// WithSweepInterval starts a background goroutine that evicts expired
// entries every interval. Stopped by Close.
func WithSweepInterval(interval time.Duration) Option {
	return func(c *AnswerCache) {
		go c.sweepLoop(interval)
	}
}

// NewAnswerCache creates a new in-memory answer cache.
func NewAnswerCache(opts ...Option) *AnswerCache {
	c := &AnswerCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached answer or domain.ErrNotFound on miss or expiry.
// Expired entries are evicted on read.
func (c *AnswerCache) Get(_ context.Context, question, providerID string) (*domain.Answer, error) {
	key := domain.CacheKey(question, providerID)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, domain.ErrNotFound
	}

	answer := entry.answer
	return &answer, nil
}

// Put stores an answer, replacing any previous entry for the same key.
func (c *AnswerCache) Put(
	_ context.Context, question, providerID string, answer *domain.Answer, ttl time.Duration,
) error {
	key := domain.CacheKey(question, providerID)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		answer:    *answer,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// Len returns the number of live entries, counting unswept expired ones.
func (c *AnswerCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the background sweep, if any.
func (c *AnswerCache) Close() error {
	c.closed.Do(func() {
		close(c.done)
	})
	return nil
}

// sweepLoop evicts expired entries until Close is called.
func (c *AnswerCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep removes every expired entry.
func (c *AnswerCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}
