package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreLogger(t *testing.T) {
	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
}

func TestSetupFile(t *testing.T) {
	restoreLogger(t)
	path := filepath.Join(t.TempDir(), "chat.log")

	closer, err := Setup("warn", path)
	require.NoError(t, err)

	log.Info().Msg("hidden")
	log.Warn().Str("thread_id", "abc123").Msg("chat turn failed")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), `"thread_id":"abc123"`)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestSetupConsole(t *testing.T) {
	restoreLogger(t)
	closer, err := Setup("debug", "")
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestSetupRejectsBadLevel(t *testing.T) {
	restoreLogger(t)
	_, err := Setup("chatty", "")
	assert.Error(t, err)
}

func TestSetupBadFile(t *testing.T) {
	restoreLogger(t)
	_, err := Setup("info", filepath.Join(t.TempDir(), "missing", "dir", "chat.log"))
	assert.Error(t, err)
}
