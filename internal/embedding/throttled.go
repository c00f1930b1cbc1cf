// Package embedding decorates embedding generators with cross-cutting
// behaviour shared by all backends.
package embedding

import (
	"context"

	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/domain"
)

// Throttled wraps an EmbeddingGenerator so every call goes through its own
// throttler. The embedding API gets a separate, looser throttler than the
// search API; sharing one queue would let search backpressure starve cache
// lookups.
type Throttled struct {
	generator domain.EmbeddingGenerator
	throttler domain.Throttler
}

// NewThrottled decorates generator with throttler.
func NewThrottled(generator domain.EmbeddingGenerator, throttler domain.Throttler) *Throttled {
	return &Throttled{
		generator: generator,
		throttler: throttler,
	}
}

// Generate creates a vector embedding from text under the throttler.
func (t *Throttled) Generate(ctx context.Context, text string) ([]float64, error) {
	var embedding []float64
	err := t.throttler.Do(ctx, func(ctx context.Context) error {
		var genErr error
		embedding, genErr = t.generator.Generate(ctx, text)
		return genErr
	})
	if err != nil {
		return nil, err
	}
	return embedding, nil
}

// Name returns the wrapped generator identifier.
func (t *Throttled) Name() string {
	return t.generator.Name()
}

// Dimension returns the wrapped generator's vector dimension.
func (t *Throttled) Dimension() int {
	return t.generator.Dimension()
}
