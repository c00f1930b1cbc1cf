package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/observability"
)

const synthesizeMaxTokens = 1500

const synthesizeSystemPrompt = `You are a research assistant. You are given ` +
	`the answers to several targeted searches derived from one question. ` +
	`Write a single coherent answer to the original question, reconciling ` +
	`overlaps and contradictions between the partial answers. Do not invent ` +
	`facts that appear in none of them.`

// SubQueryResult pairs an executed sub-query with its search result.
type SubQueryResult struct {
	Query  SubQuery
	Result *SearchResult
}

// Synthesizer merges multiple sub-query results into one coherent answer.
type Synthesizer struct {
	gateway *ModelGateway
}

// NewSynthesizer creates a synthesizer over the given gateway.
func NewSynthesizer(gateway *ModelGateway) *Synthesizer {
	return &Synthesizer{gateway: gateway}
}

// Synthesize combines the sub-query results. A single result is passed
// through unchanged, saving a model invocation. On synthesis failure the
// sub-answers are concatenated in their original order so no information is
// dropped.
func (s *Synthesizer) Synthesize(
	ctx context.Context,
	original string,
	results []SubQueryResult,
	docContext string,
) (string, error) {
	if len(results) == 0 {
		return "", NewValidationError("results", "cannot be empty")
	}

	if len(results) == 1 {
		return results[0].Result.Answer, nil
	}

	logger := observability.FromContext(ctx)

	text, err := s.gateway.Complete(ctx,
		synthesizeSystemPrompt,
		s.buildUserPrompt(original, results, docContext),
		synthesizeMaxTokens,
	)
	if err != nil {
		logger.Warn("synthesis model call failed, concatenating sub-answers",
			observability.Error(err))
		return s.concatenate(results), nil
	}

	return text, nil
}

func (s *Synthesizer) buildUserPrompt(original string, results []SubQueryResult, docContext string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Original question: %s\n\n", original)

	if docContext != "" {
		fmt.Fprintf(&b, "Document context:\n%s\n\n", docContext)
	}

	for i, r := range results {
		fmt.Fprintf(&b, "Search %d (%s):\n%s\n", i+1, r.Query.Text, r.Result.Answer)
		for _, src := range r.Result.Sources {
			fmt.Fprintf(&b, "- source: %s (%s)\n", src.Title, src.URL)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func (s *Synthesizer) concatenate(results []SubQueryResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Result.Answer)
	}
	return strings.Join(parts, "\n\n")
}
