// Package anthropic provides the fallback model provider over the Anthropic
// Messages API. It implements the domain.Provider interface with a plain
// HTTP client.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/domain"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/observability"
)

// Provider implements the domain.Provider interface for Anthropic.
type Provider struct {
	client    *Client
	name      string
	model     string
	maxTokens int
}

// NewProvider creates a new Anthropic provider.
func NewProvider(config Config) (*Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &Provider{
		client:    NewClient(config),
		name:      "anthropic",
		model:     config.Model,
		maxTokens: maxTokens,
	}, nil
}

// Complete sends a completion request and returns the full response.
// The request's token budget is clamped to this provider's ceiling.
func (p *Provider) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	logger := observability.FromContext(ctx)
	logger.Debug("calling Anthropic API")

	resp, err := p.client.Messages(ctx, p.toAPIRequest(req))
	if err != nil {
		logger.Error("Anthropic API call failed", observability.Error(err))
		return nil, fmt.Errorf("Anthropic API call failed: %w", err)
	}

	logger.Debug("Anthropic API call succeeded",
		observability.Int("input_tokens", resp.Usage.InputTokens),
		observability.Int("output_tokens", resp.Usage.OutputTokens),
	)

	return &domain.CompletionResponse{
		ID:       resp.ID,
		Model:    resp.Model,
		Provider: p.name,
		Content:  resp.Text(),
		Usage: domain.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		FinishTime: time.Now(),
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// toAPIRequest converts a domain request to the Messages API shape. System
// messages are hoisted into the dedicated system field.
func (p *Provider) toAPIRequest(req *domain.CompletionRequest) messagesRequest {
	var system string
	messages := make([]anthropicMessage, 0, len(req.Messages))

	for _, msg := range req.Messages {
		if msg.Role == "system" {
			if system != "" {
				system += "\n"
			}
			system += msg.Content
			continue
		}
		messages = append(messages, anthropicMessage{Role: msg.Role, Content: msg.Content})
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	tokens := req.MaxTokens
	if tokens <= 0 || tokens > p.maxTokens {
		tokens = p.maxTokens
	}

	return messagesRequest{
		Model:     model,
		MaxTokens: tokens,
		System:    system,
		Messages:  messages,
	}
}
