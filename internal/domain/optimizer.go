package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/jsonutil"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/observability"
)

const decomposeMaxTokens = 600

const decomposeSystemPrompt = `You are a search query planner. Break the ` +
	`user's question into targeted web search queries.

Rules:
- Produce at most %d sub-queries.
- Every sub-query must be specific and self-contained.
- Every sub-query MUST retain the named entities (people, companies, products) from the original question verbatim.
- Do not restate the original question as a sub-query.
- Respond with JSON only, in this shape:
{"sub_queries":[{"text":"...","purpose":"...","priority":"high|medium|low"}]}`

// QueryOptimizer decomposes compound questions into targeted sub-queries via
// the model gateway. Invoked only when the classifier asks for decomposition.
type QueryOptimizer struct {
	gateway *ModelGateway
}

// NewQueryOptimizer creates an optimizer over the given gateway.
func NewQueryOptimizer(gateway *ModelGateway) *QueryOptimizer {
	return &QueryOptimizer{gateway: gateway}
}

type decomposition struct {
	SubQueries []SubQuery `json:"sub_queries"`
}

// Decompose produces sub-queries for a compound question. It never fails:
// when the model call errors or nothing survives validation, the result is a
// single sub-query wrapping the original question verbatim.
func (o *QueryOptimizer) Decompose(
	ctx context.Context,
	question string,
	roleHint string,
	docContextSummary string,
	maxSubQueries int,
) OptimizedQuery {
	logger := observability.FromContext(ctx)

	if maxSubQueries < 2 {
		maxSubQueries = 2
	} else if maxSubQueries > 3 {
		maxSubQueries = 3
	}

	fallback := OptimizedQuery{
		Original:   question,
		SubQueries: []SubQuery{{Text: question, Priority: PriorityHigh}},
	}

	raw, err := o.gateway.Complete(ctx,
		fmt.Sprintf(decomposeSystemPrompt, maxSubQueries),
		o.buildUserPrompt(question, roleHint, docContextSummary),
		decomposeMaxTokens,
	)
	if err != nil {
		logger.Warn("decomposition model call failed, falling back to original query",
			observability.Error(err))
		return fallback
	}

	var parsed decomposition
	if err := jsonutil.ExtractObject(raw, &parsed); err != nil {
		logger.Warn("decomposition output is not parseable JSON, falling back",
			observability.Error(err))
		return fallback
	}

	valid := make([]SubQuery, 0, maxSubQueries)
	for _, candidate := range parsed.SubQueries {
		if len(valid) == maxSubQueries {
			break
		}

		candidate.Text = strings.TrimSpace(candidate.Text)
		if reason := rejectSubQuery(question, candidate.Text); reason != "" {
			logger.Debug("discarding degenerate sub-query",
				observability.String("sub_query", candidate.Text),
				observability.String("reason", reason))
			continue
		}

		if candidate.Priority == "" {
			candidate.Priority = PriorityMedium
		}
		valid = append(valid, candidate)
	}

	if len(valid) == 0 {
		logger.Warn("no sub-queries survived validation, falling back to original query")
		return fallback
	}

	logger.Info("question decomposed",
		observability.Int("sub_queries", len(valid)))

	return OptimizedQuery{Original: question, SubQueries: valid}
}

func (o *QueryOptimizer) buildUserPrompt(question, roleHint, docContextSummary string) string {
	var b strings.Builder
	if roleHint != "" {
		fmt.Fprintf(&b, "Answering as: %s\n", roleHint)
	}
	if docContextSummary != "" {
		fmt.Fprintf(&b, "Available document context: %s\n", docContextSummary)
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}

// rejectSubQuery returns a non-empty reason when the candidate is degenerate:
// empty, identical to the original, or a near-duplicate that adds nothing.
func rejectSubQuery(original, candidate string) string {
	if candidate == "" {
		return "empty"
	}

	if strings.EqualFold(strings.TrimSpace(original), candidate) {
		return "identical to original"
	}

	origLower := strings.ToLower(strings.TrimSpace(original))
	candLower := strings.ToLower(candidate)

	shorter, longer := origLower, candLower
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}

	if !strings.Contains(longer, shorter) {
		return ""
	}

	ratio := float64(len(shorter)) / float64(len(longer))
	if ratio <= 0.9 {
		return ""
	}

	// Containment at near-equal length: a duplicate unless the candidate
	// introduces tokens the original lacks.
	origTokens := make(map[string]struct{})
	for _, tok := range strings.Fields(origLower) {
		origTokens[tok] = struct{}{}
	}
	for _, tok := range strings.Fields(candLower) {
		if _, ok := origTokens[tok]; !ok {
			return ""
		}
	}

	return "near-duplicate of original with no added specificity"
}
