package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("console only", func(t *testing.T) {
		logger, err := New(Config{Level: "info", Console: true})
		require.NoError(t, err)
		require.NotNil(t, logger)
		logger.Close()
	})

	t.Run("file output writes json lines", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "recall.log")

		logger, err := New(Config{Level: "debug", File: logFile})
		require.NoError(t, err)

		logger.Info().Str("component", "store").Msg("project saved")
		require.NoError(t, logger.Close())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(data, &entry))
		assert.Equal(t, "project saved", entry["message"])
		assert.Equal(t, "store", entry["component"])
		assert.Equal(t, "info", entry["level"])
	})

	t.Run("creates missing log directory", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "nested", "dir", "recall.log")

		logger, err := New(Config{File: logFile})
		require.NoError(t, err)
		logger.Close()

		_, err = os.Stat(logFile)
		assert.NoError(t, err)
	})

	t.Run("empty level means info", func(t *testing.T) {
		logger, err := New(Config{})
		require.NoError(t, err)
		defer logger.Close()

		assert.Equal(t, zerolog.InfoLevel, logger.GetZerolog().GetLevel())
	})

	t.Run("invalid level rejected", func(t *testing.T) {
		_, err := New(Config{Level: "loud"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestLevelFiltering(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "recall.log")

	logger, err := New(Config{Level: "warn", File: logFile})
	require.NoError(t, err)

	logger.Debug().Msg("dropped")
	logger.Info().Msg("dropped too")
	logger.Warn().Msg("kept")
	logger.Error().Msg("also kept")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)

	text := string(data)
	assert.NotContains(t, text, "dropped")
	assert.Contains(t, text, "kept")
	assert.Contains(t, text, "also kept")
}

func TestWithComponentContext(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "recall.log")

	logger, err := New(Config{Level: "info", File: logFile})
	require.NoError(t, err)

	child := logger.With().Str("component", "automation").Logger()
	child.Info().Msg("check finished")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"automation"`)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Empty(t, cfg.File)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Pretty)
}
