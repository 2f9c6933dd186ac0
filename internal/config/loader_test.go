package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()

	// Keep the loader away from any real user config.
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SLURM_LONGRUN_CONFIG", "")

	t.Run("LoadDefaults", func(t *testing.T) {
		cfg, err := Load(ctx, "")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, 10, cfg.Run.MaxRestarts)

		assert.Equal(t, 5*time.Second, cfg.Poll.Floor)
		assert.Equal(t, 120*time.Second, cfg.Poll.Ceiling)
		assert.Equal(t, 10, cfg.Poll.Divisor)

		assert.Equal(t, 5, cfg.Query.RetryLimit)
		assert.Equal(t, 10*time.Second, cfg.Query.RetryBackoff)

		assert.Equal(t, 5*time.Second, cfg.Scheduler.RegistrationDelay)
		assert.Equal(t, 2.0, cfg.Scheduler.RateLimit)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)

		assert.NotEmpty(t, cfg.DataDir)
		assert.Equal(t, filepath.Join(cfg.DataDir, "runs"), cfg.RunsDir())
	})

	t.Run("EnvironmentOverrides", func(t *testing.T) {
		t.Setenv("SLURM_LONGRUN_RUN_MAX_RESTARTS", "3")
		t.Setenv("SLURM_LONGRUN_POLL_CEILING", "300s")
		t.Setenv("SLURM_LONGRUN_QUERY_RETRY_BACKOFF", "2s")

		cfg, err := Load(ctx, "")
		require.NoError(t, err)

		assert.Equal(t, 3, cfg.Run.MaxRestarts)
		assert.Equal(t, 300*time.Second, cfg.Poll.Ceiling)
		assert.Equal(t, 2*time.Second, cfg.Query.RetryBackoff)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		content := []byte("run:\n  max_restarts: 7\npoll:\n  floor: 1s\nserver:\n  port: 9090\n")
		require.NoError(t, os.WriteFile(path, content, 0644))

		cfg, err := Load(ctx, path)
		require.NoError(t, err)

		assert.Equal(t, 7, cfg.Run.MaxRestarts)
		assert.Equal(t, time.Second, cfg.Poll.Floor)
		assert.Equal(t, 9090, cfg.Server.Port)
		// Untouched keys keep their defaults.
		assert.Equal(t, 120*time.Second, cfg.Poll.Ceiling)
	})

	t.Run("MissingExplicitFile", func(t *testing.T) {
		_, err := Load(ctx, filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
