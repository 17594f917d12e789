package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tui.log")
	logger, cleanup, err := New(Config{Level: "debug", File: path})
	require.NoError(t, err)

	logger.Debug("hello")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestNewLevel(t *testing.T) {
	logger, cleanup, err := New(Config{Level: "warn", Console: true})
	require.NoError(t, err)
	defer cleanup()
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger, cleanup, err = New(Config{})
	require.NoError(t, err)
	defer cleanup()
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	logger, cleanup, err := New(Config{Level: "loud"})
	require.Error(t, err)
	assert.NotNil(t, logger)
	cleanup()
}

func TestDefaultFile(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	assert.Equal(t, "/home/tester/.local/state/slowdigest/tui.log", DefaultFile("tui"))
}
