package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/shotline/internal/grid"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 50*time.Millisecond, cfg.TickPeriod())
	assert.Equal(t, 300*time.Millisecond, cfg.LockWindow())
	assert.Equal(t, 2*time.Second, cfg.DriftPeriod())
	assert.Equal(t, 10*time.Second, cfg.ReadyTimeout())
	assert.True(t, cfg.Playback.AutoSync)
}

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "shotline.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
frame_rate: 25
playback:
  lock_ms: 500
  drift_tolerance: 1.5
magnet:
  type: half-second
  strength: 1
store:
  db_path: from-yaml.db
`), 0o644))

	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("SHOTLINE_DB_PATH=from-dotenv.db\nSHOTLINE_LOCK_MS=400\n"), 0o644))

	t.Setenv("SHOTLINE_LOCK_MS", "350")
	t.Setenv("SHOTLINE_AUTOSYNC", "false")

	cfg, err := Load(yamlPath, envPath)
	require.NoError(t, err)

	assert.Equal(t, 25.0, cfg.FrameRate)
	assert.Equal(t, 1.5, cfg.Playback.DriftTolerance)
	assert.Equal(t, "from-dotenv.db", cfg.Store.DBPath)
	assert.Equal(t, 350*time.Millisecond, cfg.LockWindow())
	assert.False(t, cfg.Playback.AutoSync)
	// untouched defaults survive a partial file
	assert.Equal(t, 50, cfg.Playback.TickMS)

	m, err := cfg.MagnetSpec()
	require.NoError(t, err)
	assert.Equal(t, grid.PointHalfSecond, m.Type)
	assert.Equal(t, 25.0, m.FrameRate)
}

func TestLoadMissingFiles(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "")
	assert.Error(t, err)

	cfg, err := Load("", filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	assert.Equal(t, Default().Store, cfg.Store)
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("SHOTLINE_FPS", "fast")
	_, err := Load("", "")
	assert.ErrorContains(t, err, "SHOTLINE_FPS")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero fps", func(c *Config) { c.FrameRate = 0 }},
		{"slow tick", func(c *Config) { c.Playback.TickMS = 5000 }},
		{"negative lock", func(c *Config) { c.Playback.LockMS = -1 }},
		{"no retries", func(c *Config) { c.Playback.MaxRetries = 0 }},
		{"magnet type", func(c *Config) { c.Magnet.Type = "bar" }},
		{"magnet strength", func(c *Config) { c.Magnet.Strength = 2 }},
		{"log level", func(c *Config) { c.Log.Level = "chatty" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "DEBUG"
	lvl, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", lvl.String())
}
