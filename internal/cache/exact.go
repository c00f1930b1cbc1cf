// Package cache holds the two result-cache tiers: a strict exact-key cache
// and a similarity cache keyed by embedding distance. Both are volatile and
// live only for the process lifetime.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/domain"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/observability"
)

const sweepInterval = 10 * time.Minute

// exactEntry is immutable after creation; a fresher value replaces the whole
// entry rather than mutating it in place.
type exactEntry struct {
	result    *domain.SearchResult
	createdAt time.Time
	expiresAt time.Time
}

// ExactCache is an in-memory key/value cache with per-entry expiry.
type ExactCache struct {
	mu      sync.RWMutex
	entries map[string]exactEntry
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// ExactOption customises an ExactCache.
type ExactOption func(*ExactCache)

// WithClock replaces the cache clock, used by tests to control expiry.
func WithClock(now func() time.Time) ExactOption {
	return func(c *ExactCache) {
		c.now = now
	}
}

// NewExactCache creates an exact-key cache and starts its background sweep.
func NewExactCache(opts ...ExactOption) *ExactCache {
	c := &ExactCache{
		entries: make(map[string]exactEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	go c.sweepLoop()

	return c
}

// Get returns the cached result for the query and options, or ErrCacheMiss
// when the key is absent or the entry has expired.
func (c *ExactCache) Get(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResult, error) {
	key := ExactKey(query, opts)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, domain.ErrCacheMiss
	}

	if c.now().After(entry.expiresAt) {
		// Expired entries are never returned; the sweep removes them later.
		observability.FromContext(ctx).Debug("exact cache entry expired",
			observability.String("cache_key", key))
		return nil, domain.ErrCacheMiss
	}

	return entry.result, nil
}

// Set stores result with the given TTL, replacing any prior entry.
func (c *ExactCache) Set(
	_ context.Context,
	query string,
	opts domain.SearchOptions,
	result *domain.SearchResult,
	ttl time.Duration,
) {
	if result == nil || ttl <= 0 {
		return
	}

	now := c.now()
	c.mu.Lock()
	c.entries[ExactKey(query, opts)] = exactEntry{
		result:    result,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	c.mu.Unlock()
}

// Clear drops all entries.
func (c *ExactCache) Clear(_ context.Context) {
	c.mu.Lock()
	c.entries = make(map[string]exactEntry)
	c.mu.Unlock()
}

// Len returns the current entry count, including not-yet-swept expired entries.
func (c *ExactCache) Len(_ context.Context) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the background sweep.
func (c *ExactCache) Close() {
	c.once.Do(func() {
		close(c.stop)
	})
}

func (c *ExactCache) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep removes expired entries. Reads are never blocked for the full scan:
// expired keys are collected under a read lock first.
func (c *ExactCache) sweep() {
	now := c.now()

	var expired []string
	c.mu.RLock()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			expired = append(expired, key)
		}
	}
	c.mu.RUnlock()

	if len(expired) == 0 {
		return
	}

	c.mu.Lock()
	for _, key := range expired {
		if entry, ok := c.entries[key]; ok && now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// ExactKey derives a deterministic cache key from the normalized query text
// and the options that affect the result.
func ExactKey(query string, opts domain.SearchOptions) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))

	optsJSON, err := json.Marshal(opts)
	if err != nil {
		optsJSON = nil
	}

	hash := sha256.Sum256([]byte(normalized + "|" + string(optsJSON)))
	return fmt.Sprintf("exact:%s", hex.EncodeToString(hash[:]))
}
