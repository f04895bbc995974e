package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 3, cfg.Game.MaxReprompts)
	assert.Equal(t, state.DefaultConfig(), cfg.Game.StateConfig())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  address: "127.0.0.1:9000"
  ping_interval: 5s
logging:
  level: debug
  format: console
game:
  random_seed: 42
  max_rounds_count: 5
storage:
  driver: none
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.Server.PingInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)

	sc := cfg.Game.StateConfig()
	assert.Equal(t, uint64(42), sc.RandomSeed)
	assert.Equal(t, 5, sc.MaxRoundsCount)
	// untouched keys keep their defaults
	assert.Equal(t, 8, sc.InitialDiceCount)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GITCG_SERVER_ADDRESS", ":7000")
	t.Setenv("GITCG_GAME_MAX_REPROMPTS", "1")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Address)
	assert.Equal(t, 1, cfg.Game.MaxReprompts)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	tests := []struct {
		name    string
		content string
	}{
		{"bad driver", "storage:\n  driver: mongo\n"},
		{"bad format", "logging:\n  format: xml\n"},
		{"too many dice", "game:\n  initial_dice_count: 20\n"},
		{"postgres without dsn", "storage:\n  driver: postgres\n  dsn: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
