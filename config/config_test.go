package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, 2*time.Second, cfg.LockTimeout)
		assert.Equal(t, 4, cfg.MaxAttempts)
		assert.Equal(t, 4, cfg.RescanParallelism)
		assert.Equal(t, 64, cfg.EventBuffer)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, "json", cfg.LogFormat)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("GROUPMESH_LOCK_TIMEOUT", "500ms")
		t.Setenv("GROUPMESH_MAX_ATTEMPTS", "8")
		t.Setenv("GROUPMESH_RESCAN_PARALLELISM", "16")
		t.Setenv("GROUPMESH_LOG_LEVEL", "debug")
		t.Setenv("GROUPMESH_LOG_FORMAT", "text")

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, 500*time.Millisecond, cfg.LockTimeout)
		assert.Equal(t, 8, cfg.MaxAttempts)
		assert.Equal(t, 16, cfg.RescanParallelism)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "text", cfg.LogFormat)
	})

	t.Run("invalid duration", func(t *testing.T) {
		t.Setenv("GROUPMESH_LOCK_TIMEOUT", "soon")
		_, err := FromEnv()
		assert.Error(t, err)
	})

	t.Run("attempts must be positive", func(t *testing.T) {
		t.Setenv("GROUPMESH_MAX_ATTEMPTS", "0")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "GROUPMESH_MAX_ATTEMPTS")
	})

	t.Run("unknown log level", func(t *testing.T) {
		t.Setenv("GROUPMESH_LOG_LEVEL", "verbose")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "GROUPMESH_LOG_LEVEL")
	})
}

func TestCoordinatorMapping(t *testing.T) {
	cfg := Engine{LockTimeout: time.Second, MaxAttempts: 3, RescanParallelism: 2, EventBuffer: 32}
	mapped := cfg.Coordinator()
	assert.Equal(t, time.Second, mapped.LockTimeout)
	assert.Equal(t, 3, mapped.MaxAttempts)
	assert.Equal(t, 2, mapped.RescanParallelism)
	assert.Equal(t, 32, mapped.EventBuffer)
}
