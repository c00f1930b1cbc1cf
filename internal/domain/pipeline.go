package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/observability"
)

const (
	answerMaxTokens = 1500

	// fallbackAnswer is the only text surfaced on a request-level failure.
	// Provider error details never reach the user.
	fallbackAnswer = "I wasn't able to find an answer this time. Please try again in a moment."

	ragSystemPrompt = `You are a careful assistant answering from the ` +
		`provided document context. Answer the question using the context; ` +
		`say so plainly when the context does not cover it.`
)

// PipelineConfig carries the orchestration knobs, read once at start.
type PipelineConfig struct {
	CacheTTL       time.Duration
	RequestTimeout time.Duration
	DocTopK        int
}

// AnswerService is the query orchestration pipeline: classification,
// decomposition, cache lookups, throttled search execution and synthesis.
type AnswerService struct {
	classifier  *ComplexityClassifier
	optimizer   *QueryOptimizer
	synthesizer *Synthesizer
	gateway     *ModelGateway

	search          SearchClient
	searchThrottler Throttler

	exactCache    ExactResultCache
	semanticCache SemanticResultCache

	documents DocumentRetriever
	history   HistoryStore

	cfg PipelineConfig
}

// NewAnswerService wires the pipeline (DI constructor). documents and
// history are optional collaborators and may be nil.
func NewAnswerService(
	classifier *ComplexityClassifier,
	optimizer *QueryOptimizer,
	synthesizer *Synthesizer,
	gateway *ModelGateway,
	search SearchClient,
	searchThrottler Throttler,
	exactCache ExactResultCache,
	semanticCache SemanticResultCache,
	documents DocumentRetriever,
	history HistoryStore,
	cfg PipelineConfig,
) *AnswerService {
	return &AnswerService{
		classifier:      classifier,
		optimizer:       optimizer,
		synthesizer:     synthesizer,
		gateway:         gateway,
		search:          search,
		searchThrottler: searchThrottler,
		exactCache:      exactCache,
		semanticCache:   semanticCache,
		documents:       documents,
		history:         history,
		cfg:             cfg,
	}
}

// Answer runs the full pipeline for one question.
func (s *AnswerService) Answer(ctx context.Context, question string, opts AskOptions) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, NewValidationError("question", "cannot be empty")
	}

	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	if opts.SessionID != "" {
		ctx = observability.WithSessionID(ctx, opts.SessionID)
	}

	logger := observability.FromContext(ctx)

	docs := s.retrieveDocuments(ctx, question)
	docContext := formatDocContext(docs)

	analysis := s.classifier.Analyze(question)
	logger.Info("question classified",
		observability.String("complexity", string(analysis.Complexity)),
		observability.Bool("should_decompose", analysis.ShouldDecompose),
		observability.String("reason", analysis.Reason))

	var answer *Answer
	if opts.UseWebSearch {
		answer = s.answerWithWebSearch(ctx, question, analysis, docContext, opts)
	} else {
		answer = s.answerFromDocuments(ctx, question, docContext, opts)
	}

	answer.Sources = docSourceIDs(docs)
	answer.FinishTime = time.Now()

	s.saveHistory(ctx, question, opts, answer)

	return answer, nil
}

// answerWithWebSearch decomposes when warranted, executes each sub-query
// under the search throttler and synthesizes the survivors.
func (s *AnswerService) answerWithWebSearch(
	ctx context.Context,
	question string,
	analysis ComplexityAnalysis,
	docContext string,
	opts AskOptions,
) *Answer {
	logger := observability.FromContext(ctx)

	optimized := OptimizedQuery{
		Original:   question,
		SubQueries: []SubQuery{{Text: question, Priority: PriorityHigh}},
	}
	if analysis.ShouldDecompose {
		optimized = s.optimizer.Decompose(ctx, question, opts.Role, summarize(docContext), analysis.MaxSubQueries)
	}

	results := make([]*SearchResult, len(optimized.SubQueries))

	var mu sync.Mutex
	var warnings []string
	addWarning := func(w string) {
		mu.Lock()
		warnings = append(warnings, w)
		mu.Unlock()
	}

	// Sub-queries run concurrently; admission order and spacing are the
	// throttler's concern. Synthesis waits for every dispatched call to
	// settle before running.
	g, gctx := errgroup.WithContext(ctx)
	for i, sq := range optimized.SubQueries {
		g.Go(func() error {
			result, warning := s.executeSubQuery(gctx, sq, opts)
			mu.Lock()
			results[i] = result
			mu.Unlock()
			if warning != "" {
				addWarning(warning)
			}
			return nil
		})
	}
	_ = g.Wait()

	collected := make([]SubQueryResult, 0, len(results))
	for i, result := range results {
		if result != nil {
			collected = append(collected, SubQueryResult{
				Query:  optimized.SubQueries[i],
				Result: result,
			})
		}
	}

	if len(collected) == 0 {
		// Soft-degrade: answer from document context when any exists.
		if docContext != "" {
			logger.Warn("all sub-queries failed, degrading to document-only answer")
			answer := s.answerFromDocuments(ctx, question, docContext, opts)
			answer.Warnings = append(answer.Warnings, warnings...)
			return answer
		}

		logger.Error("all sub-queries failed and no document context available")
		return &Answer{Text: fallbackAnswer, Warnings: warnings}
	}

	text, err := s.synthesizer.Synthesize(ctx, question, collected, docContext)
	if err != nil {
		logger.Error("synthesis failed", observability.Error(err))
		return &Answer{Text: fallbackAnswer, Warnings: warnings}
	}

	answer := &Answer{
		Text:          text,
		UsedWebSearch: true,
		Warnings:      warnings,
	}
	mergeProvenance(answer, collected)

	return answer
}

// executeSubQuery resolves one sub-query through the exact cache or a
// throttled search call. Failures degrade this sub-query only: the returned
// warning is attached to the final answer and the result is nil.
func (s *AnswerService) executeSubQuery(ctx context.Context, sq SubQuery, opts AskOptions) (*SearchResult, string) {
	logger := observability.FromContext(ctx)

	searchOpts := SearchOptions{
		Role:        opts.Role,
		SearchMode:  sq.SearchMode,
		DomainHints: sq.DomainHints,
	}

	if cached, err := s.exactCache.Get(ctx, sq.Text, searchOpts); err == nil {
		logger.Info("exact cache hit for sub-query")
		return cached, ""
	}

	// The similarity cache is deliberately not consulted here: live web
	// lookups are entity-ambiguity territory.

	var result *SearchResult
	err := s.searchThrottler.Do(ctx, func(ctx context.Context) error {
		r, searchErr := s.search.Search(ctx, sq.Text, searchOpts)
		result = r
		return searchErr
	})

	switch {
	case err == nil:
		s.exactCache.Set(ctx, sq.Text, searchOpts, result, s.cfg.CacheTTL)
		return result, ""
	case errors.Is(err, ErrRateLimited):
		logger.Warn("sub-query rate limited, continuing with available context",
			observability.String("sub_query", sq.Text))
		return nil, fmt.Sprintf("search was rate limited for %q; the answer may be incomplete", sq.Text)
	case errors.Is(err, ErrSearchTimeout), errors.Is(err, context.DeadlineExceeded):
		logger.Warn("sub-query timed out",
			observability.String("sub_query", sq.Text))
		return nil, fmt.Sprintf("search timed out for %q; the answer may be incomplete", sq.Text)
	default:
		logger.Warn("sub-query failed",
			observability.String("sub_query", sq.Text),
			observability.Error(err))
		return nil, fmt.Sprintf("search failed for %q; the answer may be incomplete", sq.Text)
	}
}

// answerFromDocuments generates the answer from document context alone.
// Document-only requests are the one place the similarity cache applies:
// the underlying data is static, so near-duplicate questions can safely
// share an answer.
func (s *AnswerService) answerFromDocuments(ctx context.Context, question, docContext string, opts AskOptions) *Answer {
	logger := observability.FromContext(ctx)

	if opts.DocumentOnly && s.semanticCache != nil {
		cached, err := s.semanticCache.Get(ctx, question)
		switch {
		case err == nil:
			logger.Info("semantic cache hit for document-only question")
			return &Answer{Text: cached.Answer, ModelUsed: cached.ModelUsed}
		case !errors.Is(err, ErrCacheMiss):
			// Embedding or lookup failure is absorbed, never propagated.
			logger.Warn("semantic cache lookup failed, continuing without cache",
				observability.Error(err))
		}
	}

	prompt := fmt.Sprintf("Question: %s", question)
	if docContext != "" {
		prompt = fmt.Sprintf("Document context:\n%s\n\nQuestion: %s", docContext, question)
	}

	resp, err := s.gateway.CompleteRequest(ctx, &CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: ragSystemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens: answerMaxTokens,
	})
	if err != nil {
		var provErr *ProviderError
		if errors.As(err, &provErr) {
			logger.Error("all model providers exhausted", observability.Error(err))
		} else {
			logger.Error("answer generation failed", observability.Error(err))
		}
		return &Answer{Text: fallbackAnswer}
	}

	answer := &Answer{Text: resp.Content, ModelUsed: resp.Model}

	if opts.DocumentOnly && s.semanticCache != nil {
		result := &SearchResult{Answer: resp.Content, ModelUsed: resp.Model}
		if setErr := s.semanticCache.Set(ctx, question, result, s.cfg.CacheTTL); setErr != nil {
			logger.Warn("failed to store answer in semantic cache",
				observability.Error(setErr))
		}
	}

	return answer
}

// CacheStats reports entry counts for both cache tiers.
func (s *AnswerService) CacheStats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{ExactEntries: s.exactCache.Len(ctx)}

	if s.semanticCache != nil {
		n, err := s.semanticCache.Len(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count semantic cache entries: %w", err)
		}
		stats.SemanticEntries = n
	}

	return stats, nil
}

// ClearCaches drops all entries in both cache tiers.
func (s *AnswerService) ClearCaches(ctx context.Context) error {
	s.exactCache.Clear(ctx)

	if s.semanticCache != nil {
		if err := s.semanticCache.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear semantic cache: %w", err)
		}
	}

	return nil
}

func (s *AnswerService) retrieveDocuments(ctx context.Context, question string) []DocumentChunk {
	if s.documents == nil {
		return nil
	}

	docs, err := s.documents.Retrieve(ctx, question, s.cfg.DocTopK)
	if err != nil {
		observability.FromContext(ctx).Warn("document retrieval failed, continuing without documents",
			observability.Error(err))
		return nil
	}

	return docs
}

func (s *AnswerService) saveHistory(ctx context.Context, question string, opts AskOptions, answer *Answer) {
	if s.history == nil {
		return
	}

	if err := s.history.Save(ctx, opts.SessionID, question, answer); err != nil {
		observability.FromContext(ctx).Warn("failed to persist answer to history",
			observability.Error(err))
	}
}

// mergeProvenance folds web sources, related questions and the model name
// from the collected results into the answer, deduplicating sources by URL.
func mergeProvenance(answer *Answer, collected []SubQueryResult) {
	seen := make(map[string]struct{})

	for _, r := range collected {
		for _, src := range r.Result.Sources {
			if _, ok := seen[src.URL]; ok {
				continue
			}
			seen[src.URL] = struct{}{}
			answer.WebSources = append(answer.WebSources, src)
		}

		answer.RelatedQuestions = append(answer.RelatedQuestions, r.Result.RelatedQuestions...)

		if answer.ModelUsed == "" {
			answer.ModelUsed = r.Result.ModelUsed
		}
	}
}

func formatDocContext(docs []DocumentChunk) string {
	if len(docs) == 0 {
		return ""
	}

	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, fmt.Sprintf("[%s] %s", doc.SourceID, doc.Text))
	}
	return strings.Join(parts, "\n\n")
}

func docSourceIDs(docs []DocumentChunk) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, doc := range docs {
		if _, ok := seen[doc.SourceID]; ok {
			continue
		}
		seen[doc.SourceID] = struct{}{}
		ids = append(ids, doc.SourceID)
	}
	return ids
}

// summarize bounds the document context passed into the decomposition
// prompt, cutting on a rune boundary.
func summarize(docContext string) string {
	const limit = 400
	if len(docContext) <= limit {
		return docContext
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(docContext[cut]) {
		cut--
	}
	return docContext[:cut]
}
