package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/observability"
)

// ModelGateway invokes the configured providers in order, falling back to
// the next on failure or empty output. It is the single capability every
// LLM-backed component (decomposer, synthesizer, final answer generation)
// goes through.
type ModelGateway struct {
	registry ProviderRegistry
	order    []string
}

// NewModelGateway creates a gateway trying providers in the given order,
// primary first.
func NewModelGateway(registry ProviderRegistry, order []string) *ModelGateway {
	return &ModelGateway{
		registry: registry,
		order:    order,
	}
}

// Complete sends a system+user prompt through the provider chain and returns
// the completion text. It fails with a ProviderError only when every
// configured provider has failed; no provider is ever called twice.
func (g *ModelGateway) Complete(ctx context.Context, system, userContent string, maxTokens int) (string, error) {
	if strings.TrimSpace(userContent) == "" {
		return "", NewValidationError("user content", "cannot be empty")
	}

	req := &CompletionRequest{
		Messages:  buildMessages(system, userContent),
		MaxTokens: maxTokens,
	}

	resp, err := g.complete(ctx, req)
	if err != nil {
		return "", err
	}

	return resp.Content, nil
}

// CompleteRequest runs a prepared request through the provider chain. Used
// by callers that need usage metadata alongside the text.
func (g *ModelGateway) CompleteRequest(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if req == nil {
		return nil, NewValidationError("request", "cannot be nil")
	}

	return g.complete(ctx, req)
}

func (g *ModelGateway) complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	logger := observability.FromContext(ctx)

	if len(g.order) == 0 {
		return nil, errors.New("no providers configured")
	}

	var causes []error

	for _, name := range g.order {
		provider, err := g.registry.Get(ctx, name)
		if err != nil {
			causes = append(causes, fmt.Errorf("%s: %w", name, err))
			continue
		}

		resp, err := provider.Complete(ctx, req)
		if err != nil {
			logger.Warn("provider call failed, trying next",
				observability.String("provider", name),
				observability.Error(err))
			causes = append(causes, fmt.Errorf("%s: %w", name, err))
			continue
		}

		if strings.TrimSpace(resp.Content) == "" {
			logger.Warn("provider returned empty completion, trying next",
				observability.String("provider", name))
			causes = append(causes, fmt.Errorf("%s: %w", name, ErrEmptyCompletion))
			continue
		}

		return resp, nil
	}

	return nil, &ProviderError{Causes: causes}
}

func buildMessages(system, userContent string) []Message {
	var messages []Message
	if system != "" {
		messages = append(messages, Message{Role: "system", Content: system})
	}
	messages = append(messages, Message{Role: "user", Content: userContent})
	return messages
}
