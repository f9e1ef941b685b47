package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solmate-labs/solmate-bot/pkg/config"
)

func TestNew_SentryFanoutLogsWithoutInit(t *testing.T) {
	// sentry is not initialized here; the handler must still accept records
	log := New(config.LoggingConfig{Level: "warn", Format: "json"}, true)
	require.NotNil(t, log)

	log.Warn("rpc degraded", slog.String("endpoint", "mainnet"))
	log.Error("rpc down", slog.String("endpoint", "mainnet"))

	assert.True(t, log.Enabled(context.Background(), slog.LevelWarn))
	assert.False(t, log.Enabled(context.Background(), slog.LevelInfo))
}

func TestNew_WritesToRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")

	log := New(config.LoggingConfig{Level: "info", Format: "text", File: path}, false)
	log.Info("started")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "started")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}
