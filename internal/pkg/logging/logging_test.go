package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "debug.log")

	logger, err := New("debug", file)
	require.NoError(t, err)

	logger.Debug("hello from test")
	_ = logger.Sync()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("verbose", "")
	assert.Error(t, err)
}

func TestNewRespectsLevel(t *testing.T) {
	file := filepath.Join(t.TempDir(), "debug.log")

	logger, err := New("warn", file)
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept")
	_ = logger.Sync()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}
