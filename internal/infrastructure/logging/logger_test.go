package logging

import (
	"context"
	"log/slog"
	"testing"

	"credit-engine/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	ctx := context.Background()

	t.Run("honors the configured level", func(t *testing.T) {
		logger := NewLogger(config.LoggerConfig{Level: "warn", Encoding: "text"})
		require.NotNil(t, logger)

		assert.True(t, logger.Enabled(ctx, slog.LevelWarn))
		assert.True(t, logger.Enabled(ctx, slog.LevelError))
		assert.False(t, logger.Enabled(ctx, slog.LevelInfo))
	})

	t.Run("falls back to info for unknown levels", func(t *testing.T) {
		logger := NewLogger(config.LoggerConfig{Level: "verbose", Encoding: "json"})
		require.NotNil(t, logger)

		assert.True(t, logger.Enabled(ctx, slog.LevelInfo))
		assert.False(t, logger.Enabled(ctx, slog.LevelDebug))
	})
}
