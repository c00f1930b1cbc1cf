package domain

import (
	"context"
	"time"
)

// Provider represents any LLM provider.
type Provider interface {
	// Complete sends a completion request and returns the full response.
	// Implementations clamp MaxTokens to their own per-model ceiling.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider identifier.
	Name() string
}

// ProviderRegistry manages available providers.
type ProviderRegistry interface {
	// Register adds a provider to the registry.
	Register(ctx context.Context, provider Provider) error

	// Get retrieves a provider by name.
	Get(ctx context.Context, providerName string) (Provider, error)

	// List returns all available providers.
	List(ctx context.Context) ([]string, error)
}

// SearchClient issues one query against the external web-search/answer API.
type SearchClient interface {
	Search(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error)
}

// EmbeddingGenerator creates vector embeddings from text.
type EmbeddingGenerator interface {
	// Generate creates a vector embedding from text.
	Generate(ctx context.Context, text string) ([]float64, error)

	// Name returns the generator identifier.
	Name() string

	// Dimension returns the vector dimension.
	Dimension() int
}

// SimilaritySearch performs vector similarity search operations.
type SimilaritySearch interface {
	// Search finds similar vectors above the threshold.
	Search(ctx context.Context, embedding []float64, threshold float64, limit int) ([]*VectorMatch, error)

	// Index stores a vector with associated data.
	Index(ctx context.Context, key string, embedding []float64, data []byte, ttl time.Duration) error

	// Clear drops all indexed entries.
	Clear(ctx context.Context) error

	// Len returns the number of indexed entries.
	Len(ctx context.Context) (int, error)
}

// VectorMatch is a vector search result.
type VectorMatch struct {
	Key        string
	Similarity float64
	Data       []byte
	IndexedAt  time.Time
}

// Throttler bounds concurrency and spacing of calls to one external dependency.
type Throttler interface {
	// Do runs fn once a concurrency slot is admitted and the minimum
	// inter-call spacing has elapsed. The slot is released on every exit
	// path, including panics and context cancellation inside fn.
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// ExactResultCache is the strict cache tier, keyed by a deterministic hash
// of the normalized query and its options.
type ExactResultCache interface {
	// Get returns the cached result or ErrCacheMiss.
	Get(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error)

	// Set stores the result with the given TTL.
	Set(ctx context.Context, query string, opts SearchOptions, result *SearchResult, ttl time.Duration)

	// Clear drops all entries.
	Clear(ctx context.Context)

	// Len returns the current entry count.
	Len(ctx context.Context) int
}

// SemanticResultCache is the approximate cache tier, keyed by embedding
// similarity. It is only consulted for document-only requests.
type SemanticResultCache interface {
	// Get returns a result cached under a semantically similar query, or
	// ErrCacheMiss. Embedding failures surface as errors and are absorbed
	// by the caller.
	Get(ctx context.Context, query string) (*SearchResult, error)

	// Set stores the result under the query's embedding.
	Set(ctx context.Context, query string, result *SearchResult, ttl time.Duration) error

	// Clear drops all entries.
	Clear(ctx context.Context) error

	// Len returns the current entry count.
	Len(ctx context.Context) (int, error)
}

// DocumentRetriever supplies ranked document chunks for a question.
// The vector index behind it is an external collaborator.
type DocumentRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]DocumentChunk, error)
}

// HistoryStore receives the final answer plus provenance for persistence.
// The pipeline never reads this state back.
type HistoryStore interface {
	Save(ctx context.Context, sessionID, question string, answer *Answer) error
}
