package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/domain"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/observability"
)

// embedPrefixLimit bounds how much query text is embedded. Long questions
// carry their meaning up front and embedding cost scales with input size.
const embedPrefixLimit = 512

// SemanticCache caches search results keyed by embedding similarity.
//
// It must not be consulted for live web lookups: near-duplicate entity names
// ("Smith John" vs "Smith James") score high enough to return a wrong-entity
// hit. The pipeline restricts it to document-only requests.
type SemanticCache struct {
	embeddingGen domain.EmbeddingGenerator
	search       domain.SimilaritySearch
	threshold    float64
}

// NewSemanticCache creates a semantic cache over the given vector backend.
func NewSemanticCache(
	embeddingGen domain.EmbeddingGenerator,
	search domain.SimilaritySearch,
	threshold float64,
) *SemanticCache {
	return &SemanticCache{
		embeddingGen: embeddingGen,
		search:       search,
		threshold:    threshold,
	}
}

// Get retrieves a cached result for a semantically similar query.
func (s *SemanticCache) Get(ctx context.Context, query string) (*domain.SearchResult, error) {
	logger := observability.FromContext(ctx)

	if query == "" {
		return nil, errors.New("query cannot be empty")
	}

	embedding, err := s.embeddingGen.Generate(ctx, truncateForEmbedding(query))
	if err != nil {
		logger.Warn("failed to generate embedding for cache lookup",
			observability.Error(err))
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	matches, err := s.search.Search(ctx, embedding, s.threshold, 1)
	if err != nil {
		logger.Warn("similarity search failed",
			observability.Error(err),
			observability.Float64("threshold", s.threshold))
		return nil, fmt.Errorf("failed to search similar vectors: %w", err)
	}

	if len(matches) == 0 {
		return nil, domain.ErrCacheMiss
	}

	logger.Info("semantic cache hit",
		observability.Float64("similarity", matches[0].Similarity),
		observability.String("cache_key", matches[0].Key))

	var result *domain.SearchResult
	if unmarshalErr := json.Unmarshal(matches[0].Data, &result); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal cached result: %w", unmarshalErr)
	}

	return result, nil
}

// Set stores a result under the query's embedding.
func (s *SemanticCache) Set(
	ctx context.Context,
	query string,
	result *domain.SearchResult,
	ttl time.Duration,
) error {
	logger := observability.FromContext(ctx)

	if query == "" {
		return errors.New("query cannot be empty")
	}

	if result == nil {
		return errors.New("result cannot be nil")
	}

	embedded := truncateForEmbedding(query)

	embedding, err := s.embeddingGen.Generate(ctx, embedded)
	if err != nil {
		logger.Warn("failed to generate embedding for cache storage",
			observability.Error(err))
		return fmt.Errorf("failed to generate embedding: %w", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	key := semanticKey(embedded)
	if indexErr := s.search.Index(ctx, key, embedding, data, ttl); indexErr != nil {
		logger.Warn("failed to index result in semantic cache",
			observability.Error(indexErr),
			observability.String("cache_key", key))
		return fmt.Errorf("failed to index in cache: %w", indexErr)
	}

	logger.Debug("indexed result in semantic cache",
		observability.String("cache_key", key),
		observability.Int("data_size", len(data)))
	return nil
}

// Clear drops all entries from the vector backend.
func (s *SemanticCache) Clear(ctx context.Context) error {
	return s.search.Clear(ctx)
}

// Len returns the number of entries in the vector backend.
func (s *SemanticCache) Len(ctx context.Context) (int, error) {
	return s.search.Len(ctx)
}

// semanticKey creates a unique storage key from the embedded query text.
func semanticKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return fmt.Sprintf("sem:%s", hex.EncodeToString(hash[:]))
}

// truncateForEmbedding bounds the embedded text to a fixed prefix without
// splitting a multi-byte rune at the cut.
func truncateForEmbedding(query string) string {
	if len(query) <= embedPrefixLimit {
		return query
	}
	cut := embedPrefixLimit
	for cut > 0 && !utf8.RuneStart(query[cut]) {
		cut--
	}
	return query[:cut]
}
