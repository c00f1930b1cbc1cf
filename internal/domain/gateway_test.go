package domain_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/domain"
)

// mockRegistry is a mock implementation of ProviderRegistry for testing.
type mockRegistry struct {
	providers map[string]domain.Provider
	getError  error
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{
		providers: make(map[string]domain.Provider),
		getError:  nil,
	}
}

func (m *mockRegistry) Register(_ context.Context, provider domain.Provider) error {
	m.providers[provider.Name()] = provider
	return nil
}

func (m *mockRegistry) Get(_ context.Context, providerName string) (domain.Provider, error) {
	if m.getError != nil {
		return nil, m.getError
	}

	provider, exists := m.providers[providerName]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", providerName)
	}
	return provider, nil
}

func (m *mockRegistry) List(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	return names, nil
}

// mockProvider is a mock implementation of Provider for testing.
type mockProvider struct {
	name         string
	calls        int
	completeFunc func(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error)
}

func (m *mockProvider) Complete(
	ctx context.Context,
	req *domain.CompletionRequest,
) (*domain.CompletionResponse, error) {
	m.calls++
	if m.completeFunc != nil {
		return m.completeFunc(ctx, req)
	}
	return &domain.CompletionResponse{
		ID:         "test-id",
		Model:      "test-model",
		Provider:   m.name,
		Content:    "test response",
		Usage:      domain.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		FinishTime: time.Now(),
	}, nil
}

func (m *mockProvider) Name() string {
	return m.name
}

func newGateway(order []string, providers ...*mockProvider) *domain.ModelGateway {
	registry := newMockRegistry()
	for _, p := range providers {
		_ = registry.Register(context.Background(), p)
	}
	return domain.NewModelGateway(registry, order)
}

func TestModelGateway_Complete(t *testing.T) {
	t.Run("should return primary provider response when it succeeds", func(t *testing.T) {
		primary := &mockProvider{name: "primary"}
		secondary := &mockProvider{name: "secondary"}
		gateway := newGateway([]string{"primary", "secondary"}, primary, secondary)

		content, err := gateway.Complete(context.Background(), "system", "hello", 100)

		require.NoError(t, err)
		require.Equal(t, "test response", content)
		require.Equal(t, 1, primary.calls)
		require.Equal(t, 0, secondary.calls)
	})

	t.Run("should fall back to next provider on failure", func(t *testing.T) {
		primary := &mockProvider{
			name: "primary",
			completeFunc: func(_ context.Context, _ *domain.CompletionRequest) (*domain.CompletionResponse, error) {
				return nil, errors.New("primary down")
			},
		}
		secondary := &mockProvider{name: "secondary"}
		gateway := newGateway([]string{"primary", "secondary"}, primary, secondary)

		content, err := gateway.Complete(context.Background(), "system", "hello", 100)

		require.NoError(t, err)
		require.Equal(t, "test response", content)
		require.Equal(t, 1, primary.calls)
		require.Equal(t, 1, secondary.calls)
	})

	t.Run("should treat empty completion as a failure", func(t *testing.T) {
		primary := &mockProvider{
			name: "primary",
			completeFunc: func(_ context.Context, _ *domain.CompletionRequest) (*domain.CompletionResponse, error) {
				return &domain.CompletionResponse{Content: "   "}, nil
			},
		}
		secondary := &mockProvider{name: "secondary"}
		gateway := newGateway([]string{"primary", "secondary"}, primary, secondary)

		content, err := gateway.Complete(context.Background(), "system", "hello", 100)

		require.NoError(t, err)
		require.Equal(t, "test response", content)
		require.Equal(t, 1, secondary.calls)
	})

	t.Run("should aggregate all causes when every provider fails", func(t *testing.T) {
		primary := &mockProvider{
			name: "primary",
			completeFunc: func(_ context.Context, _ *domain.CompletionRequest) (*domain.CompletionResponse, error) {
				return nil, errors.New("primary down")
			},
		}
		secondary := &mockProvider{
			name: "secondary",
			completeFunc: func(_ context.Context, _ *domain.CompletionRequest) (*domain.CompletionResponse, error) {
				return &domain.CompletionResponse{Content: ""}, nil
			},
		}
		gateway := newGateway([]string{"primary", "secondary"}, primary, secondary)

		_, err := gateway.Complete(context.Background(), "system", "hello", 100)

		require.Error(t, err)
		var provErr *domain.ProviderError
		require.ErrorAs(t, err, &provErr)
		require.Len(t, provErr.Causes, 2)
		require.ErrorIs(t, err, domain.ErrEmptyCompletion)

		// Every provider is tried exactly once, never retried.
		require.Equal(t, 1, primary.calls)
		require.Equal(t, 1, secondary.calls)
	})

	t.Run("should record unknown providers as causes", func(t *testing.T) {
		secondary := &mockProvider{name: "secondary"}
		gateway := newGateway([]string{"missing", "secondary"}, secondary)

		content, err := gateway.Complete(context.Background(), "system", "hello", 100)

		require.NoError(t, err)
		require.Equal(t, "test response", content)
	})

	t.Run("should reject empty user content", func(t *testing.T) {
		primary := &mockProvider{name: "primary"}
		gateway := newGateway([]string{"primary"}, primary)

		_, err := gateway.Complete(context.Background(), "system", "  ", 100)

		require.Error(t, err)
		var validationErr *domain.ValidationError
		require.ErrorAs(t, err, &validationErr)
		require.Equal(t, 0, primary.calls)
	})

	t.Run("should fail when no providers are configured", func(t *testing.T) {
		gateway := newGateway(nil)

		_, err := gateway.Complete(context.Background(), "system", "hello", 100)

		require.Error(t, err)
	})
}

func TestModelGateway_CompleteRequest(t *testing.T) {
	t.Run("should return the full response with usage", func(t *testing.T) {
		primary := &mockProvider{name: "primary"}
		gateway := newGateway([]string{"primary"}, primary)

		resp, err := gateway.CompleteRequest(context.Background(), &domain.CompletionRequest{
			Messages:  []domain.Message{{Role: "user", Content: "hello"}},
			MaxTokens: 100,
		})

		require.NoError(t, err)
		require.Equal(t, 30, resp.Usage.TotalTokens)
		require.Equal(t, "primary", resp.Provider)
	})

	t.Run("should reject nil request", func(t *testing.T) {
		gateway := newGateway([]string{"primary"}, &mockProvider{name: "primary"})

		_, err := gateway.CompleteRequest(context.Background(), nil)

		require.Error(t, err)
	})
}
