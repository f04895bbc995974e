package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/gi-tcg/gitcg-server-go/internal/config"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// uniqueViolation is the postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// PostgresStore keeps games in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// OpenPostgres connects a pool and applies the migrations.
func OpenPostgres(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PostgresStore{pool: pool, logger: logger}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if logger != nil {
		stats := pool.Stat()
		logger.Info("postgres game store opened",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	ms, err := migrations("postgres")
	if err != nil {
		return err
	}
	for _, m := range ms {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.name, err)
		}
		tag, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1) ON CONFLICT DO NOTHING`, m.name)
		if err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("record migration %s: %w", m.name, err)
		}
		if tag.RowsAffected() == 0 {
			_ = tx.Rollback(ctx)
			continue
		}
		if _, err := tx.Exec(ctx, m.up); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("exec migration %s: %w", m.name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.name, err)
		}
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// SaveGame inserts rec.
func (s *PostgresStore) SaveGame(ctx context.Context, rec *GameRecord) error {
	if err := rec.validate(); err != nil {
		return err
	}
	stats, err := json.Marshal(rec.Stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO games (
		   id, version, player_one, player_two, winner, reason, rounds,
		   stats, log, started_at, finished_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.Version, rec.Players[0], rec.Players[1], int(rec.Winner),
		rec.Reason, rec.Rounds, stats, rec.Log, rec.StartedAt, rec.FinishedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, rec.ID)
	}
	if err != nil {
		return fmt.Errorf("insert game %s: %w", rec.ID, err)
	}
	return nil
}

// GetGame loads one game with its log.
func (s *PostgresStore) GetGame(ctx context.Context, id string) (*GameRecord, error) {
	var (
		rec    GameRecord
		winner int
		stats  []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, version, player_one, player_two, winner, reason, rounds,
		        stats, log, started_at, finished_at
		   FROM games WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.Version, &rec.Players[0], &rec.Players[1], &winner,
		&rec.Reason, &rec.Rounds, &stats, &rec.Log, &rec.StartedAt, &rec.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query game %s: %w", id, err)
	}
	if err := json.Unmarshal(stats, &rec.Stats); err != nil {
		return nil, fmt.Errorf("decode stats of %s: %w", id, err)
	}
	rec.Winner = state.Who(winner)
	rec.StartedAt = rec.StartedAt.UTC()
	rec.FinishedAt = rec.FinishedAt.UTC()
	return &rec, nil
}

// ListGames returns up to limit summaries, newest first.
func (s *PostgresStore) ListGames(ctx context.Context, limit int) ([]GameSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, version, player_one, player_two, winner, reason, rounds, finished_at
		   FROM games ORDER BY finished_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var out []GameSummary
	for rows.Next() {
		var (
			g      GameSummary
			winner int
		)
		if err := rows.Scan(&g.ID, &g.Version, &g.Players[0], &g.Players[1], &winner,
			&g.Reason, &g.Rounds, &g.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		g.Winner = state.Who(winner)
		g.FinishedAt = g.FinishedAt.UTC()
		out = append(out, g)
	}
	return out, rows.Err()
}

// PlayerRecord counts decided games player took part in.
func (s *PostgresStore) PlayerRecord(ctx context.Context, player string) (int, int, error) {
	var wins, losses int
	err := s.pool.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE (player_one = $1 AND winner = 0) OR (player_two = $1 AND winner = 1)),
		   COUNT(*) FILTER (WHERE (player_one = $1 AND winner = 1) OR (player_two = $1 AND winner = 0))
		 FROM games WHERE player_one = $1 OR player_two = $1`, player,
	).Scan(&wins, &losses)
	if err != nil {
		return 0, 0, fmt.Errorf("player record %s: %w", player, err)
	}
	return wins, losses, nil
}

var _ Store = (*PostgresStore)(nil)
