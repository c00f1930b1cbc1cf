package anthropic_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/domain"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/provider/anthropic"
)

type capturedMessages struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	System    string `json:"system"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

type fakeMessagesAPI struct {
	mu       sync.Mutex
	requests []capturedMessages
	headers  []http.Header
	status   int
	text     string
}

func (f *fakeMessagesAPI) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req capturedMessages
		_ = json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.headers = append(f.headers, r.Header.Clone())
		f.mu.Unlock()

		if f.status != 0 && f.status != http.StatusOK {
			w.WriteHeader(f.status)
			return
		}

		resp := map[string]any{
			"id":    "msg-1",
			"model": req.Model,
			"content": []map[string]any{
				{"type": "text", "text": f.text},
			},
			"usage": map[string]any{"input_tokens": 12, "output_tokens": 34},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func newProvider(t *testing.T, api *fakeMessagesAPI, maxTokens int) *anthropic.Provider {
	t.Helper()

	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)

	provider, err := anthropic.NewProvider(anthropic.Config{
		APIKey:    "test-key",
		BaseURL:   server.URL,
		Model:     "claude-3-5-haiku-latest",
		Timeout:   5,
		MaxTokens: maxTokens,
	})
	require.NoError(t, err)

	return provider
}

func TestProvider_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("should return the response content and usage", func(t *testing.T) {
		api := &fakeMessagesAPI{text: "Two years."}
		provider := newProvider(t, api, 4096)

		resp, err := provider.Complete(ctx, &domain.CompletionRequest{
			Messages:  []domain.Message{{Role: "user", Content: "How long is the warranty?"}},
			MaxTokens: 200,
		})

		require.NoError(t, err)
		require.Equal(t, "Two years.", resp.Content)
		require.Equal(t, "anthropic", resp.Provider)
		require.Equal(t, 12, resp.Usage.PromptTokens)
		require.Equal(t, 34, resp.Usage.CompletionTokens)
		require.Equal(t, 46, resp.Usage.TotalTokens)
	})

	t.Run("should hoist system messages into the system field", func(t *testing.T) {
		api := &fakeMessagesAPI{text: "ok"}
		provider := newProvider(t, api, 4096)

		_, err := provider.Complete(ctx, &domain.CompletionRequest{
			Messages: []domain.Message{
				{Role: "system", Content: "Answer briefly."},
				{Role: "user", Content: "How long is the warranty?"},
			},
			MaxTokens: 200,
		})

		require.NoError(t, err)
		require.Len(t, api.requests, 1)
		require.Equal(t, "Answer briefly.", api.requests[0].System)
		require.Len(t, api.requests[0].Messages, 1)
		require.Equal(t, "user", api.requests[0].Messages[0].Role)
	})

	t.Run("should clamp the token budget to the provider ceiling", func(t *testing.T) {
		api := &fakeMessagesAPI{text: "ok"}
		provider := newProvider(t, api, 1000)

		_, err := provider.Complete(ctx, &domain.CompletionRequest{
			Messages:  []domain.Message{{Role: "user", Content: "hi"}},
			MaxTokens: 99999,
		})

		require.NoError(t, err)
		require.Equal(t, 1000, api.requests[0].MaxTokens)
	})

	t.Run("should default the model when none is requested", func(t *testing.T) {
		api := &fakeMessagesAPI{text: "ok"}
		provider := newProvider(t, api, 4096)

		_, err := provider.Complete(ctx, &domain.CompletionRequest{
			Messages: []domain.Message{{Role: "user", Content: "hi"}},
		})

		require.NoError(t, err)
		require.Equal(t, "claude-3-5-haiku-latest", api.requests[0].Model)
	})

	t.Run("should send the API key and version headers", func(t *testing.T) {
		api := &fakeMessagesAPI{text: "ok"}
		provider := newProvider(t, api, 4096)

		_, err := provider.Complete(ctx, &domain.CompletionRequest{
			Messages: []domain.Message{{Role: "user", Content: "hi"}},
		})

		require.NoError(t, err)
		require.Equal(t, "test-key", api.headers[0].Get("x-api-key"))
		require.Equal(t, "2023-06-01", api.headers[0].Get("anthropic-version"))
	})

	t.Run("should fail on API errors", func(t *testing.T) {
		api := &fakeMessagesAPI{status: http.StatusInternalServerError}
		provider := newProvider(t, api, 4096)

		_, err := provider.Complete(ctx, &domain.CompletionRequest{
			Messages: []domain.Message{{Role: "user", Content: "hi"}},
		})

		require.Error(t, err)
	})

	t.Run("should reject nil requests", func(t *testing.T) {
		provider := newProvider(t, &fakeMessagesAPI{text: "ok"}, 4096)

		_, err := provider.Complete(ctx, nil)

		require.Error(t, err)
	})
}

func TestNewProvider(t *testing.T) {
	t.Run("should require an API key", func(t *testing.T) {
		_, err := anthropic.NewProvider(anthropic.Config{})

		require.Error(t, err)
	})
}
