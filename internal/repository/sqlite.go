package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// SQLiteStore keeps games in a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLite opens path, creating it and its directory when missing.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer keeps WAL mode free of SQLITE_BUSY
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if logger != nil {
		logger.Info("sqlite game store opened", zap.String("path", path))
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	ms, err := migrations("sqlite")
	if err != nil {
		return err
	}
	for _, m := range ms {
		var n int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE name = ?`, m.name).Scan(&n); err != nil {
			return fmt.Errorf("check migration %s: %w", m.name, err)
		}
		if n > 0 {
			continue
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.name, err)
		}
		if _, err := tx.ExecContext(ctx, m.up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", m.name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`,
			m.name, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.name, err)
		}
	}
	return nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveGame inserts rec.
func (s *SQLiteStore) SaveGame(ctx context.Context, rec *GameRecord) error {
	if err := rec.validate(); err != nil {
		return err
	}
	stats, err := json.Marshal(rec.Stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games WHERE id = ?`, rec.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check game %s: %w", rec.ID, err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, rec.ID)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO games (
		   id, version, player_one, player_two, winner, reason, rounds,
		   stats, log, started_at, finished_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Version, rec.Players[0], rec.Players[1], int(rec.Winner),
		rec.Reason, rec.Rounds, string(stats), rec.Log,
		rec.StartedAt.UTC().UnixMilli(), rec.FinishedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert game %s: %w", rec.ID, err)
	}
	if s.logger != nil {
		s.logger.Debug("game saved", zap.String("game_id", rec.ID), zap.Int("log_bytes", len(rec.Log)))
	}
	return nil
}

// GetGame loads one game with its log.
func (s *SQLiteStore) GetGame(ctx context.Context, id string) (*GameRecord, error) {
	var (
		rec               GameRecord
		winner            int
		stats             string
		started, finished int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, version, player_one, player_two, winner, reason, rounds,
		        stats, log, started_at, finished_at
		   FROM games WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Version, &rec.Players[0], &rec.Players[1], &winner,
		&rec.Reason, &rec.Rounds, &stats, &rec.Log, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query game %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(stats), &rec.Stats); err != nil {
		return nil, fmt.Errorf("decode stats of %s: %w", id, err)
	}
	rec.Winner = state.Who(winner)
	rec.StartedAt = time.UnixMilli(started).UTC()
	rec.FinishedAt = time.UnixMilli(finished).UTC()
	return &rec, nil
}

// ListGames returns up to limit summaries, newest first.
func (s *SQLiteStore) ListGames(ctx context.Context, limit int) ([]GameSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, version, player_one, player_two, winner, reason, rounds, finished_at
		   FROM games ORDER BY finished_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var out []GameSummary
	for rows.Next() {
		var (
			g        GameSummary
			winner   int
			finished int64
		)
		if err := rows.Scan(&g.ID, &g.Version, &g.Players[0], &g.Players[1], &winner,
			&g.Reason, &g.Rounds, &finished); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		g.Winner = state.Who(winner)
		g.FinishedAt = time.UnixMilli(finished).UTC()
		out = append(out, g)
	}
	return out, rows.Err()
}

// PlayerRecord counts decided games player took part in.
func (s *SQLiteStore) PlayerRecord(ctx context.Context, player string) (int, int, error) {
	var wins, losses sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT
		   SUM(CASE WHEN (player_one = ?1 AND winner = 0) OR (player_two = ?1 AND winner = 1) THEN 1 ELSE 0 END),
		   SUM(CASE WHEN (player_one = ?1 AND winner = 1) OR (player_two = ?1 AND winner = 0) THEN 1 ELSE 0 END)
		 FROM games WHERE player_one = ?1 OR player_two = ?1`, player,
	).Scan(&wins, &losses)
	if err != nil {
		return 0, 0, fmt.Errorf("player record %s: %w", player, err)
	}
	return int(wins.Int64), int(losses.Int64), nil
}

var _ Store = (*SQLiteStore)(nil)
