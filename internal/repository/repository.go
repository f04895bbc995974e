// Package repository stores finished games: who played, who won, the
// match statistics and the encoded game log.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gi-tcg/gitcg-server-go/internal/config"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
	"github.com/gi-tcg/gitcg-server-go/internal/game/watchers"
)

var (
	// ErrNotFound indicates a requested game is missing.
	ErrNotFound = errors.New("repository: game not found")
	// ErrAlreadyExists indicates a game id was saved twice.
	ErrAlreadyExists = errors.New("repository: game already exists")
	// ErrDisabled is returned by Open when storage is turned off.
	ErrDisabled = errors.New("repository: storage disabled")
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

// GameRecord is one finished game.
type GameRecord struct {
	ID      string
	Version string
	Players [2]string
	// Winner is state.NoOne for a draw.
	Winner state.Who
	// Reason is how the game ended: "finished", "surrender", "forfeit" or
	// "terminated".
	Reason     string
	Rounds     int
	Stats      watchers.Summary
	Log        []byte
	StartedAt  time.Time
	FinishedAt time.Time
}

// GameSummary is a GameRecord without its log.
type GameSummary struct {
	ID         string    `json:"id"`
	Version    string    `json:"version"`
	Players    [2]string `json:"players"`
	Winner     state.Who `json:"winner"`
	Reason     string    `json:"reason"`
	Rounds     int       `json:"rounds"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Store persists game records.
type Store interface {
	SaveGame(ctx context.Context, rec *GameRecord) error
	GetGame(ctx context.Context, id string) (*GameRecord, error)
	// ListGames returns the most recently finished games first.
	ListGames(ctx context.Context, limit int) ([]GameSummary, error)
	// PlayerRecord counts the wins and losses of one player name.
	PlayerRecord(ctx context.Context, player string) (wins, losses int, err error)
	Close() error
}

// Open connects to the configured store and applies its migrations.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return OpenSQLite(ctx, cfg.DSN, logger)
	case "postgres":
		return OpenPostgres(ctx, cfg, logger)
	case "none", "":
		return nil, ErrDisabled
	}
	return nil, fmt.Errorf("repository: unknown driver %q", cfg.Driver)
}

func (r *GameRecord) validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("game id is required")
	}
	if r.Winner != state.NoOne && !r.Winner.Valid() {
		return fmt.Errorf("invalid winner %d", r.Winner)
	}
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now().UTC()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = r.FinishedAt
	}
	return nil
}

// Summary drops the log and statistics.
func (r *GameRecord) Summary() GameSummary {
	return GameSummary{
		ID:         r.ID,
		Version:    r.Version,
		Players:    r.Players,
		Winner:     r.Winner,
		Reason:     r.Reason,
		Rounds:     r.Rounds,
		FinishedAt: r.FinishedAt,
	}
}

type migration struct {
	name string
	up   string
}

// migrations returns the Up sections of one driver's files in name order.
func migrations(driver string) ([]migration, error) {
	root := "migrations/" + driver
	entries, err := fs.ReadDir(migrationFS, root)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]migration, 0, len(names))
	for _, name := range names {
		content, err := fs.ReadFile(migrationFS, root+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		up := extractUp(string(content))
		if strings.TrimSpace(up) == "" {
			continue
		}
		out = append(out, migration{name: name, up: up})
	}
	return out, nil
}

func extractUp(content string) string {
	const upMark, downMark = "-- +migrate Up", "-- +migrate Down"
	upIdx := strings.Index(content, upMark)
	if upIdx == -1 {
		return content
	}
	rest := content[upIdx+len(upMark):]
	if downIdx := strings.Index(rest, downMark); downIdx != -1 {
		return rest[:downIdx]
	}
	return rest
}
