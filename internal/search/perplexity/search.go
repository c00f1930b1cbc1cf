// Package perplexity implements the search execution client against a
// Perplexity-style web-search/answer API.
package perplexity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/domain"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/observability"
)

const searchSystemPrompt = `Answer the user's query using current web ` +
	`sources. Be factual and concise, and cite your sources.`

// SearchService implements domain.SearchClient. It selects a model from the
// caller's role hints, applies a per-model timeout and retries once against
// the fast model when the slower one times out. It never retries the same
// slow model twice.
type SearchService struct {
	client *Client
	cfg    Config
}

// NewSearchService creates the search execution client.
func NewSearchService(client *Client, cfg Config) *SearchService {
	return &SearchService{
		client: client,
		cfg:    cfg,
	}
}

// Search issues the query and parses the answer with its citations.
func (s *SearchService) Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.NewValidationError("query", "cannot be empty")
	}

	logger := observability.FromContext(ctx)

	model, timeout := s.selectModel(opts)
	logger.Debug("executing search",
		observability.String("model", model),
		observability.Duration("timeout", timeout))

	resp, err := s.searchOnce(ctx, query, opts, model, timeout)
	if err != nil && s.isTimeout(err) && model != s.cfg.FastModel {
		// One bounded retry against the fast model; failing fast beats
		// waiting out the slow model a second time.
		logger.Warn("search timed out, retrying once with fast model",
			observability.String("slow_model", model))
		model = s.cfg.FastModel
		resp, err = s.searchOnce(ctx, query, opts, model, time.Duration(s.cfg.FastTimeout)*time.Second)
	}

	if err != nil {
		if s.isTimeout(err) {
			return nil, fmt.Errorf("search for %q: %w", query, domain.ErrSearchTimeout)
		}
		return nil, err
	}

	result := &domain.SearchResult{
		Answer:           resp.Answer(),
		Sources:          parseCitations(resp.Citations),
		Images:           resp.Images,
		RelatedQuestions: resp.RelatedQuestions,
		ModelUsed:        model,
	}

	logger.Info("search completed",
		observability.String("model", model),
		observability.Int("sources", len(result.Sources)))

	return result, nil
}

func (s *SearchService) searchOnce(
	ctx context.Context,
	query string,
	opts domain.SearchOptions,
	model string,
	timeout time.Duration,
) (*Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return s.client.Complete(callCtx, searchRequest{
		Model: model,
		Messages: []searchMessage{
			{Role: "system", Content: searchSystemPrompt},
			{Role: "user", Content: query},
		},
		SearchDomainFilter: opts.DomainHints,
		ReturnImages:       true,
		ReturnRelated:      true,
	})
}

// selectModel picks a model tier and its timeout from the role hints.
func (s *SearchService) selectModel(opts domain.SearchOptions) (string, time.Duration) {
	if opts.SearchMode == "fast" {
		return s.cfg.FastModel, time.Duration(s.cfg.FastTimeout) * time.Second
	}

	if opts.SearchMode == "reasoning" || isAnalyticalRole(opts.Role) {
		return s.cfg.ReasoningModel, time.Duration(s.cfg.ReasoningTimeout) * time.Second
	}

	return s.cfg.DefaultModel, time.Duration(s.cfg.DefaultTimeout) * time.Second
}

func (s *SearchService) isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func isAnalyticalRole(role string) bool {
	lowered := strings.ToLower(role)
	for _, marker := range []string{"analyst", "research", "scientist", "engineer"} {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// parseCitations keeps only well-formed absolute URLs; anything else is
// dropped rather than surfaced.
func parseCitations(citations []string) []domain.WebSource {
	var sources []domain.WebSource

	for _, raw := range citations {
		parsed, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || !parsed.IsAbs() || parsed.Host == "" {
			continue
		}

		sources = append(sources, domain.WebSource{
			Title: parsed.Host,
			URL:   parsed.String(),
		})
	}

	return sources
}
