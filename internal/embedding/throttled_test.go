package embedding_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/embedding"
)

type countingThrottler struct {
	calls int
}

func (c *countingThrottler) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	c.calls++
	return fn(ctx)
}

type fakeGenerator struct {
	embedding []float64
	err       error
}

func (f *fakeGenerator) Generate(_ context.Context, _ string) ([]float64, error) {
	return f.embedding, f.err
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Dimension() int { return 3 }

func TestThrottled_Generate(t *testing.T) {
	t.Run("should route every call through the throttler", func(t *testing.T) {
		throttler := &countingThrottler{}
		gen := embedding.NewThrottled(&fakeGenerator{embedding: []float64{1, 0, 0}}, throttler)

		vec, err := gen.Generate(context.Background(), "warranty question")

		require.NoError(t, err)
		require.Equal(t, []float64{1, 0, 0}, vec)
		require.Equal(t, 1, throttler.calls)
	})

	t.Run("should propagate generator errors", func(t *testing.T) {
		throttler := &countingThrottler{}
		gen := embedding.NewThrottled(&fakeGenerator{err: errors.New("quota exceeded")}, throttler)

		_, err := gen.Generate(context.Background(), "warranty question")

		require.Error(t, err)
	})

	t.Run("should delegate identity to the wrapped generator", func(t *testing.T) {
		gen := embedding.NewThrottled(&fakeGenerator{}, &countingThrottler{})

		require.Equal(t, "fake", gen.Name())
		require.Equal(t, 3, gen.Dimension())
	})
}
