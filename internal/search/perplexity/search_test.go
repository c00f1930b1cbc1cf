package perplexity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/domain"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/search/perplexity"
)

type capturedRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	SearchDomainFilter []string `json:"search_domain_filter"`
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []capturedRequest

	status    int
	answer    string
	citations []string
	related   []string

	// delayFor maps a model name to an artificial response delay.
	delayFor map[string]time.Duration
}

func (f *fakeAPI) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req capturedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		f.requests = append(f.requests, req)
		delay := f.delayFor[req.Model]
		f.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}

		if f.status != 0 && f.status != http.StatusOK {
			w.WriteHeader(f.status)
			return
		}

		resp := map[string]any{
			"id":    "resp-1",
			"model": req.Model,
			"choices": []map[string]any{
				{"message": map[string]any{"content": f.answer}},
			},
			"citations":         f.citations,
			"related_questions": f.related,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (f *fakeAPI) models() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	models := make([]string, 0, len(f.requests))
	for _, r := range f.requests {
		models = append(models, r.Model)
	}
	return models
}

func newService(t *testing.T, api *fakeAPI, mutate func(*perplexity.Config)) *perplexity.SearchService {
	t.Helper()

	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)

	cfg := perplexity.Config{
		APIKey:           "test-key",
		BaseURL:          server.URL,
		ReasoningModel:   "sonar-reasoning-pro",
		DefaultModel:     "sonar-pro",
		FastModel:        "sonar",
		ReasoningTimeout: 30,
		DefaultTimeout:   30,
		FastTimeout:      30,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	return perplexity.NewSearchService(perplexity.NewClient(cfg), cfg)
}

func TestSearchService_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("should return the parsed answer with absolute citations only", func(t *testing.T) {
		api := &fakeAPI{
			answer: "Paris is the capital of France.",
			citations: []string{
				"https://example.com/paris",
				"not a url at all",
				"/relative/path",
				"mailto:",
				"  https://example.org/geo  ",
			},
			related: []string{"What is the population of Paris?"},
		}
		svc := newService(t, api, nil)

		result, err := svc.Search(ctx, "What is the capital of France?", domain.SearchOptions{})

		require.NoError(t, err)
		require.Equal(t, "Paris is the capital of France.", result.Answer)
		require.Equal(t, "sonar-pro", result.ModelUsed)
		require.Len(t, result.Sources, 2)
		require.Equal(t, "https://example.com/paris", result.Sources[0].URL)
		require.Equal(t, "https://example.org/geo", result.Sources[1].URL)
		require.Equal(t, []string{"What is the population of Paris?"}, result.RelatedQuestions)
	})

	t.Run("should use the default model for plain requests", func(t *testing.T) {
		api := &fakeAPI{answer: "ok"}
		svc := newService(t, api, nil)

		_, err := svc.Search(ctx, "query", domain.SearchOptions{})

		require.NoError(t, err)
		require.Equal(t, []string{"sonar-pro"}, api.models())
	})

	t.Run("should use the reasoning model for analytical roles", func(t *testing.T) {
		api := &fakeAPI{answer: "ok"}
		svc := newService(t, api, nil)

		_, err := svc.Search(ctx, "query", domain.SearchOptions{Role: "financial analyst"})

		require.NoError(t, err)
		require.Equal(t, []string{"sonar-reasoning-pro"}, api.models())
	})

	t.Run("should honour an explicit fast mode", func(t *testing.T) {
		api := &fakeAPI{answer: "ok"}
		svc := newService(t, api, nil)

		_, err := svc.Search(ctx, "query", domain.SearchOptions{SearchMode: "fast", Role: "analyst"})

		require.NoError(t, err)
		require.Equal(t, []string{"sonar"}, api.models())
	})

	t.Run("should forward domain hints", func(t *testing.T) {
		api := &fakeAPI{answer: "ok"}
		svc := newService(t, api, nil)

		_, err := svc.Search(ctx, "query", domain.SearchOptions{DomainHints: []string{"example.com"}})

		require.NoError(t, err)
		require.Equal(t, []string{"example.com"}, api.requests[0].SearchDomainFilter)
	})

	t.Run("should retry once with the fast model after a timeout", func(t *testing.T) {
		api := &fakeAPI{
			answer:   "late but fast",
			delayFor: map[string]time.Duration{"sonar-pro": 2 * time.Second},
		}
		svc := newService(t, api, func(cfg *perplexity.Config) {
			cfg.DefaultTimeout = 1
		})

		result, err := svc.Search(ctx, "query", domain.SearchOptions{})

		require.NoError(t, err)
		require.Equal(t, "late but fast", result.Answer)
		require.Equal(t, "sonar", result.ModelUsed)
		require.Equal(t, []string{"sonar-pro", "sonar"}, api.models())
	})

	t.Run("should surface rate limits as ErrRateLimited", func(t *testing.T) {
		api := &fakeAPI{status: http.StatusTooManyRequests}
		svc := newService(t, api, nil)

		_, err := svc.Search(ctx, "query", domain.SearchOptions{})

		require.ErrorIs(t, err, domain.ErrRateLimited)
	})

	t.Run("should fail on non-200 responses", func(t *testing.T) {
		api := &fakeAPI{status: http.StatusInternalServerError}
		svc := newService(t, api, nil)

		_, err := svc.Search(ctx, "query", domain.SearchOptions{})

		require.Error(t, err)
	})

	t.Run("should reject empty queries", func(t *testing.T) {
		api := &fakeAPI{answer: "ok"}
		svc := newService(t, api, nil)

		_, err := svc.Search(ctx, "   ", domain.SearchOptions{})

		require.Error(t, err)
		require.Empty(t, api.models())
	})
}
