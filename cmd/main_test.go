package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/observability"
)

func TestBuildContainer(t *testing.T) {
	t.Run("should leave the context logger enabled after wiring", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "test-api-key")

		buildContainer()

		logger := observability.FromContext(context.Background())
		require.True(t, logger.Core().Enabled(zapcore.InfoLevel),
			"container wiring must initialize the global logger")
	})
}
