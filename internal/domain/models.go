package domain

import "time"

// Complexity classifies how much work a question needs before searching.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// ComplexityAnalysis is the classifier's verdict for one question.
// It is produced once per request and never cached.
type ComplexityAnalysis struct {
	Complexity      Complexity `json:"complexity"`
	ShouldDecompose bool       `json:"should_decompose"`
	MaxSubQueries   int        `json:"max_sub_queries"`
	Reason          string     `json:"reason"`
}

// Priority orders sub-queries by how much they matter to the final answer.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// SubQuery is one targeted search derived from a compound question.
type SubQuery struct {
	Text        string   `json:"text"`
	Purpose     string   `json:"purpose,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
	SearchMode  string   `json:"search_mode,omitempty"`
	DomainHints []string `json:"domain_hints,omitempty"`
}

// OptimizedQuery is the decomposition result for one question.
// SubQueries is never empty: when decomposition fails or produces nothing
// usable, it holds a single sub-query wrapping the original question.
type OptimizedQuery struct {
	Original   string     `json:"original"`
	SubQueries []SubQuery `json:"sub_queries"`
}

// WebSource is one cited reference from a web search answer.
type WebSource struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// SearchResult is the parsed answer for one (sub-)query.
type SearchResult struct {
	Answer           string      `json:"answer"`
	Sources          []WebSource `json:"sources,omitempty"`
	Images           []string    `json:"images,omitempty"`
	RelatedQuestions []string    `json:"related_questions,omitempty"`
	ModelUsed        string      `json:"model_used"`
}

// SearchOptions controls model selection for one search call.
type SearchOptions struct {
	// Role hints at the caller's intent; analytical roles select a
	// reasoning model with a longer timeout.
	Role string `json:"role,omitempty"`

	// SearchMode is a per-sub-query override ("reasoning" or "fast").
	SearchMode string `json:"search_mode,omitempty"`

	// DomainHints restricts the search to the given domains when supported.
	DomainHints []string `json:"domain_hints,omitempty"`
}

// AskOptions carries per-request flags into the answer pipeline.
type AskOptions struct {
	Role string `json:"role,omitempty"`

	// UseWebSearch enables live web search. When false the answer is
	// generated from document context alone.
	UseWebSearch bool `json:"use_web_search"`

	// DocumentOnly marks the request as touching only ingested documents.
	// Only document-only requests may consult the similarity cache: live
	// web lookups risk wrong-entity hits on near-identical names.
	DocumentOnly bool `json:"document_only"`

	SessionID string `json:"session_id,omitempty"`
}

// DocumentChunk is one ranked record from the document retrieval collaborator.
type DocumentChunk struct {
	Text            string  `json:"text"`
	SimilarityScore float64 `json:"similarity_score"`
	SourceID        string  `json:"source_id"`
}

// Answer is the final pipeline output handed to the caller and to history.
type Answer struct {
	Text             string      `json:"text"`
	Sources          []string    `json:"sources,omitempty"`
	WebSources       []WebSource `json:"web_sources,omitempty"`
	RelatedQuestions []string    `json:"related_questions,omitempty"`
	UsedWebSearch    bool        `json:"used_web_search"`
	ModelUsed        string      `json:"model_used,omitempty"`
	Warnings         []string    `json:"warnings,omitempty"`
	FinishTime       time.Time   `json:"finish_time"`
}

// Message is a chat message sent to a model provider.
type Message struct {
	Role    string `json:"role"` // user, assistant, system
	Content string `json:"content"`
}

// CompletionRequest is a unified request to any model provider.
type CompletionRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// CompletionResponse is a unified response from a model provider.
type CompletionResponse struct {
	ID         string    `json:"id"`
	Model      string    `json:"model"`
	Provider   string    `json:"provider"`
	Content    string    `json:"content"`
	Usage      Usage     `json:"usage"`
	FinishTime time.Time `json:"finish_time"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CacheStats reports entry counts for the operator surface.
type CacheStats struct {
	ExactEntries    int `json:"exact_entries"`
	SemanticEntries int `json:"semantic_entries"`
}
