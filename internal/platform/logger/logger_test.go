package logger

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/cadence/internal/config"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		debugOn  bool
		errorsOn bool
	}{
		{"debug level", "debug", true, true},
		{"info level", "info", false, true},
		{"error level", "error", false, true},
		{"invalid level falls back to info", "verbose", false, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logger, err := Setup(config.ServerConfig{Port: 8080, LogLevel: tc.level})
			require.NoError(t, err)
			require.NotNil(t, logger)

			assert.Equal(t, tc.debugOn, logger.Enabled(context.Background(), slog.LevelDebug))
			assert.Equal(t, tc.errorsOn, logger.Enabled(context.Background(), slog.LevelError))
		})
	}
}

func TestSetup_SetsDefaultLogger(t *testing.T) {
	logger, err := Setup(config.ServerConfig{Port: 8080, LogLevel: "warn"})
	require.NoError(t, err)
	assert.Equal(t, logger, slog.Default())
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := WithContext(context.Background(), custom)

	assert.Equal(t, custom, FromContext(ctx))
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Default(), FromContext(context.Background()))
}
