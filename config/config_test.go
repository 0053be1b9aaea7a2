package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
postgres:
  dsn: postgres://localhost/frag
nats:
  url: nats://localhost:4222
matchmaking:
  tick_interval: 3s
  modes:
    - name: wingman
      team_size: 2
      maps: [de_inferno, de_nuke, de_vertigo]
      locations: [frankfurt]
match:
  rating_model: elo
  rating_k: 32
`), 0o600))

	t.Setenv("NATS_URL", "nats://override:4222")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/frag", cfg.Postgres.DSN)
	assert.Equal(t, "nats://override:4222", cfg.NATS.URL)
	assert.Equal(t, 3*time.Second, cfg.Matchmaking.TickInterval)
	assert.Equal(t, 20*time.Second, cfg.Matchmaking.ConfirmationWindow)
	assert.Equal(t, 60*time.Second, cfg.Matchmaking.Cooldown)
	assert.Equal(t, "elo", cfg.Match.RatingModel)
	assert.Equal(t, 32, cfg.Match.RatingK)
	assert.Equal(t, 5*time.Minute, cfg.Match.WarmupWindow)
	assert.Equal(t, 5*time.Minute, cfg.Match.ProvisioningTimeout)

	mode, ok := cfg.Matchmaking.Mode("wingman")
	require.True(t, ok)
	assert.Equal(t, 2, mode.TeamSize)
	assert.Len(t, mode.Maps, 3)

	_, ok = cfg.Matchmaking.Mode("missing")
	assert.False(t, ok)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/frag")
	t.Setenv("NATS_URL", "nats://env:4222")
	t.Setenv("RATING_K", "16")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/frag", cfg.Postgres.DSN)
	assert.Equal(t, 16, cfg.Match.RatingK)
	assert.Equal(t, "fixed", cfg.Match.RatingModel)
	require.Len(t, cfg.Matchmaking.Modes, 1)
	assert.Equal(t, "duel", cfg.Matchmaking.Modes[0].Name)
}

func TestLoadConfigFromEnvRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("NATS_URL", "nats://env:4222")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/frag")
	t.Setenv("NATS_URL", "nats://env:4222")
	t.Setenv("JWT_DEFAULT_TTL", "soon")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
