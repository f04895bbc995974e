// Package config loads the server configuration from YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// EnvPrefix prefixes every environment override, e.g. GITCG_SERVER_ADDRESS.
const EnvPrefix = "GITCG"

// Config is the root configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Game    GameConfig    `mapstructure:"game"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Replay  ReplayConfig  `mapstructure:"replay"`
	Storage StorageConfig `mapstructure:"storage"`
}

// ServerConfig configures the websocket host.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	MaxRooms        int           `mapstructure:"max_rooms"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// LoggingConfig selects the zap level and encoder.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GameConfig holds the rule set limits and orchestration knobs.
type GameConfig struct {
	RandomSeed        uint64        `mapstructure:"random_seed"`
	InitialDiceCount  int           `mapstructure:"initial_dice_count"`
	InitialHandsCount int           `mapstructure:"initial_hands_count"`
	MaxDiceCount      int           `mapstructure:"max_dice_count"`
	MaxHandsCount     int           `mapstructure:"max_hands_count"`
	MaxPileCount      int           `mapstructure:"max_pile_count"`
	MaxRoundsCount    int           `mapstructure:"max_rounds_count"`
	MaxSummonsCount   int           `mapstructure:"max_summons_count"`
	MaxSupportsCount  int           `mapstructure:"max_supports_count"`
	MaxReprompts      int           `mapstructure:"max_reprompts"`
	RPCTimeout        time.Duration `mapstructure:"rpc_timeout"`
}

// StateConfig converts the limits into the engine's config.
func (g GameConfig) StateConfig() state.Config {
	return state.Config{
		RandomSeed:        g.RandomSeed,
		InitialDiceCount:  g.InitialDiceCount,
		InitialHandsCount: g.InitialHandsCount,
		MaxDiceCount:      g.MaxDiceCount,
		MaxHandsCount:     g.MaxHandsCount,
		MaxPileCount:      g.MaxPileCount,
		MaxRoundsCount:    g.MaxRoundsCount,
		MaxSummonsCount:   g.MaxSummonsCount,
		MaxSupportsCount:  g.MaxSupportsCount,
	}
}

// CatalogConfig lists extra catalogue files loaded next to the builtin one.
type CatalogConfig struct {
	Files []string `mapstructure:"files"`
	// Version pins the catalogue new games use; empty means the latest.
	Version string `mapstructure:"version"`
}

// ReplayConfig controls where finished game logs and exports are written.
type ReplayConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
	Export    bool   `mapstructure:"export"`
}

// StorageConfig selects the game store.
type StorageConfig struct {
	// Driver is "sqlite", "postgres" or "none".
	Driver string `mapstructure:"driver"`
	// DSN is a file path for sqlite and a connection string for postgres.
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

func setDefaults(v *viper.Viper) {
	def := state.DefaultConfig()

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.max_rooms", 100)
	v.SetDefault("server.read_timeout", 5*time.Minute)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.ping_interval", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("game.random_seed", 0)
	v.SetDefault("game.initial_dice_count", def.InitialDiceCount)
	v.SetDefault("game.initial_hands_count", def.InitialHandsCount)
	v.SetDefault("game.max_dice_count", def.MaxDiceCount)
	v.SetDefault("game.max_hands_count", def.MaxHandsCount)
	v.SetDefault("game.max_pile_count", def.MaxPileCount)
	v.SetDefault("game.max_rounds_count", def.MaxRoundsCount)
	v.SetDefault("game.max_summons_count", def.MaxSummonsCount)
	v.SetDefault("game.max_supports_count", def.MaxSupportsCount)
	v.SetDefault("game.max_reprompts", 3)
	v.SetDefault("game.rpc_timeout", 2*time.Minute)

	v.SetDefault("catalog.files", []string{})
	v.SetDefault("catalog.version", "")

	v.SetDefault("replay.enabled", true)
	v.SetDefault("replay.directory", "replays")
	v.SetDefault("replay.export", false)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "gitcg.db")
	v.SetDefault("storage.max_conns", 10)
	v.SetDefault("storage.min_conns", 1)
	v.SetDefault("storage.max_conn_lifetime", time.Hour)
}

// Load reads path (optional when empty) and applies GITCG_ overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration with no file and no environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// defaults always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if err := c.Game.StateConfig().Validate(); err != nil {
		return fmt.Errorf("game: %w", err)
	}
	if c.Game.MaxReprompts < 0 {
		return errors.New("game: max_reprompts must not be negative")
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage: %s needs a dsn", c.Storage.Driver)
		}
	case "none", "":
	default:
		return fmt.Errorf("storage: unknown driver %q", c.Storage.Driver)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging: unknown format %q", c.Logging.Format)
	}
	if c.Replay.Enabled && c.Replay.Directory == "" {
		return errors.New("replay: directory required when enabled")
	}
	return nil
}
