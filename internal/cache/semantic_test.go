package cache_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/cache"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/cache/memory"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/domain"
)

// mockEmbedder maps known texts to fixed vectors.
type mockEmbedder struct {
	vectors map[string][]float64
	err     error
	calls   int
	texts   []string
}

func (m *mockEmbedder) Generate(_ context.Context, text string) ([]float64, error) {
	m.calls++
	m.texts = append(m.texts, text)
	if m.err != nil {
		return nil, m.err
	}
	if vec, ok := m.vectors[text]; ok {
		return vec, nil
	}
	return []float64{0, 0, 1}, nil
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Dimension() int { return 3 }

func TestSemanticCache(t *testing.T) {
	ctx := context.Background()

	newCache := func(embedder *mockEmbedder) *cache.SemanticCache {
		return cache.NewSemanticCache(embedder, memory.NewVectorSearch(10), 0.95)
	}

	t.Run("should hit on a semantically similar query", func(t *testing.T) {
		embedder := &mockEmbedder{vectors: map[string][]float64{
			"How long is the warranty?":       {1, 0, 0},
			"What is the warranty duration?":  {0.999, 0.0447, 0},
			"What colour is the enclosure?":   {0, 1, 0},
		}}
		c := newCache(embedder)

		stored := &domain.SearchResult{Answer: "Two years.", ModelUsed: "gpt-4o-mini"}
		require.NoError(t, c.Set(ctx, "How long is the warranty?", stored, time.Hour))

		got, err := c.Get(ctx, "What is the warranty duration?")
		require.NoError(t, err)
		require.Equal(t, "Two years.", got.Answer)
		require.Equal(t, "gpt-4o-mini", got.ModelUsed)

		_, err = c.Get(ctx, "What colour is the enclosure?")
		require.ErrorIs(t, err, domain.ErrCacheMiss)
	})

	t.Run("should surface embedding failures as errors, not misses", func(t *testing.T) {
		embedder := &mockEmbedder{err: errors.New("embedding service down")}
		c := newCache(embedder)

		_, err := c.Get(ctx, "How long is the warranty?")

		require.Error(t, err)
		require.NotErrorIs(t, err, domain.ErrCacheMiss)
	})

	t.Run("should fail to store when embedding fails", func(t *testing.T) {
		embedder := &mockEmbedder{err: errors.New("embedding service down")}
		c := newCache(embedder)

		err := c.Set(ctx, "How long is the warranty?", &domain.SearchResult{Answer: "Two years."}, time.Hour)

		require.Error(t, err)
	})

	t.Run("should reject empty queries and nil results", func(t *testing.T) {
		c := newCache(&mockEmbedder{})

		_, err := c.Get(ctx, "")
		require.Error(t, err)

		require.Error(t, c.Set(ctx, "", &domain.SearchResult{}, time.Hour))
		require.Error(t, c.Set(ctx, "query", nil, time.Hour))
	})

	t.Run("should embed only a bounded prefix of long queries", func(t *testing.T) {
		long := strings.Repeat("warranty ", 200)
		embedder := &mockEmbedder{vectors: map[string][]float64{
			long[:512]: {1, 0, 0},
		}}
		c := newCache(embedder)

		require.NoError(t, c.Set(ctx, long, &domain.SearchResult{Answer: "Two years."}, time.Hour))

		// Queries sharing the same 512-byte prefix resolve to the same
		// entry; the tail never reaches the embedder.
		got, err := c.Get(ctx, long+" and what about returns")
		require.NoError(t, err)
		require.Equal(t, "Two years.", got.Answer)
	})

	t.Run("should not split a multi-byte rune when truncating", func(t *testing.T) {
		long := strings.Repeat("a", 511) + "日本語の質問"
		embedder := &mockEmbedder{vectors: map[string][]float64{
			strings.Repeat("a", 511): {1, 0, 0},
		}}
		c := newCache(embedder)

		require.NoError(t, c.Set(ctx, long, &domain.SearchResult{Answer: "Two years."}, time.Hour))

		// The prefix limit lands inside the first kanji; the cut must back
		// up to the previous rune boundary instead of emitting invalid UTF-8.
		require.NotEmpty(t, embedder.texts)
		for _, text := range embedder.texts {
			require.True(t, utf8.ValidString(text))
		}
		require.Equal(t, strings.Repeat("a", 511), embedder.texts[0])
	})

	t.Run("should round-trip results through JSON intact", func(t *testing.T) {
		embedder := &mockEmbedder{vectors: map[string][]float64{"q": {1, 0, 0}}}
		c := newCache(embedder)

		stored := &domain.SearchResult{
			Answer:           "Two years.",
			Sources:          []domain.WebSource{{Title: "example.com", URL: "https://example.com/w"}},
			RelatedQuestions: []string{"What voids the warranty?"},
			ModelUsed:        "sonar-pro",
		}
		require.NoError(t, c.Set(ctx, "q", stored, time.Hour))

		got, err := c.Get(ctx, "q")
		require.NoError(t, err)

		want, _ := json.Marshal(stored)
		have, _ := json.Marshal(got)
		require.JSONEq(t, string(want), string(have))
	})

	t.Run("should report and clear backend entries", func(t *testing.T) {
		embedder := &mockEmbedder{vectors: map[string][]float64{"q": {1, 0, 0}}}
		c := newCache(embedder)

		require.NoError(t, c.Set(ctx, "q", &domain.SearchResult{Answer: "a"}, time.Hour))

		n, err := c.Len(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		require.NoError(t, c.Clear(ctx))

		n, err = c.Len(ctx)
		require.NoError(t, err)
		require.Equal(t, 0, n)
	})
}
