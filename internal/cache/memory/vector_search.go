// Package memory implements vector similarity search over an in-process
// store. It is the default backend for the similarity cache: the cache is
// volatile by design, so no external store is required.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/domain"
)

const defaultCapacity = 500

type vectorEntry struct {
	key       string
	embedding []float64
	data      []byte
	indexedAt time.Time
	expiresAt time.Time
	hitCount  int
}

// VectorSearch implements domain.SimilaritySearch in process memory.
// Eviction is by lowest hit count once capacity is exceeded, so frequently
// reused entries survive longer than recency would allow.
type VectorSearch struct {
	mu       sync.Mutex
	entries  map[string]*vectorEntry
	capacity int
	now      func() time.Time
}

// Option customises a VectorSearch.
type Option func(*VectorSearch)

// WithClock replaces the store clock, used by tests to control expiry.
func WithClock(now func() time.Time) Option {
	return func(v *VectorSearch) {
		v.now = now
	}
}

// NewVectorSearch creates an in-memory vector store holding at most capacity
// entries. A non-positive capacity falls back to the default.
func NewVectorSearch(capacity int, opts ...Option) *VectorSearch {
	if capacity <= 0 {
		capacity = defaultCapacity
	}

	v := &VectorSearch{
		entries:  make(map[string]*vectorEntry),
		capacity: capacity,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Search returns up to limit entries whose cosine similarity to embedding is
// at or above threshold, best first. Matches returned to the caller have
// their hit count incremented.
func (v *VectorSearch) Search(
	_ context.Context,
	embedding []float64,
	threshold float64,
	limit int,
) ([]*domain.VectorMatch, error) {
	if limit <= 0 {
		limit = 1
	}

	now := v.now()

	v.mu.Lock()
	defer v.mu.Unlock()

	type scored struct {
		entry      *vectorEntry
		similarity float64
	}

	var candidates []scored
	for key, entry := range v.entries {
		if now.After(entry.expiresAt) {
			delete(v.entries, key)
			continue
		}

		similarity := cosineSimilarity(embedding, entry.embedding)
		if similarity < threshold {
			continue
		}

		candidates = append(candidates, scored{entry: entry, similarity: similarity})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].similarity > candidates[j].similarity
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	matches := make([]*domain.VectorMatch, 0, len(candidates))
	for _, c := range candidates {
		c.entry.hitCount++
		matches = append(matches, &domain.VectorMatch{
			Key:        c.entry.key,
			Similarity: c.similarity,
			Data:       c.entry.data,
			IndexedAt:  c.entry.indexedAt,
		})
	}

	return matches, nil
}

// Index stores a vector with associated data, evicting the least-used entry
// when the store is full.
func (v *VectorSearch) Index(
	_ context.Context,
	key string,
	embedding []float64,
	data []byte,
	ttl time.Duration,
) error {
	if ttl <= 0 {
		return nil
	}

	now := v.now()

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.entries[key]; !exists && len(v.entries) >= v.capacity {
		v.evictLeastUsed()
	}

	v.entries[key] = &vectorEntry{
		key:       key,
		embedding: embedding,
		data:      data,
		indexedAt: now,
		expiresAt: now.Add(ttl),
	}

	return nil
}

// Clear drops all indexed entries.
func (v *VectorSearch) Clear(_ context.Context) error {
	v.mu.Lock()
	v.entries = make(map[string]*vectorEntry)
	v.mu.Unlock()
	return nil
}

// Len returns the number of indexed entries.
func (v *VectorSearch) Len(_ context.Context) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.entries), nil
}

// evictLeastUsed removes the entry with the lowest hit count. Caller holds
// the lock.
func (v *VectorSearch) evictLeastUsed() {
	var victim string
	lowest := math.MaxInt

	for key, entry := range v.entries {
		if entry.hitCount < lowest {
			lowest = entry.hitCount
			victim = key
		}
	}

	if victim != "" {
		delete(v.entries, victim)
	}
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched dimensions or zero vectors score 0.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
