package obslog_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bwalkerl/moodle-schemasync/internal/obslog"
)

func TestInitDefaultsToInfoLevel(t *testing.T) {
	require.NoError(t, os.Unsetenv("LOG_LEVEL"))
	obslog.Init()

	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
}

func TestInitHonorsLogLevelEnvVar(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	obslog.Init()
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
}

func TestInitIsCaseInsensitive(t *testing.T) {
	t.Setenv("LOG_LEVEL", "ERROR")
	obslog.Init()
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelError))
}
