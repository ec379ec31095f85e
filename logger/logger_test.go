package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeConsole(t *testing.T) {
	require.NoError(t, Initialize(false))
	assert.False(t, JSONOutput)
	assert.NotNil(t, Logger)

	// Must not panic
	Logger.Infow("console logger ready", "mode", "test")
}

func TestInitializeJSON(t *testing.T) {
	require.NoError(t, Initialize(true))
	assert.True(t, JSONOutput)
	Logger.Infow("json logger ready", "mode", "test")
}

func TestNopBeforeInitialize(t *testing.T) {
	// The package-level init installs a no-op logger; calling it must be safe.
	assert.NotPanics(t, func() {
		Logger.Debugw("pre-init call")
	})
}
