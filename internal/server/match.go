package server

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gi-tcg/gitcg-server-go/internal/catalog"
	"github.com/gi-tcg/gitcg-server-go/internal/game"
	"github.com/gi-tcg/gitcg-server-go/internal/game/mutation"
	"github.com/gi-tcg/gitcg-server-go/internal/game/rpc"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
	"github.com/gi-tcg/gitcg-server-go/internal/game/view"
	"github.com/gi-tcg/gitcg-server-go/internal/game/watchers"
	"github.com/gi-tcg/gitcg-server-go/internal/repository"
	"github.com/gi-tcg/gitcg-server-go/internal/room"
)

// Reasons a game ended, as stored in the repository.
const (
	ReasonFinished   = "finished"
	ReasonSurrender  = "surrender"
	ReasonTerminated = "terminated"
)

// match binds a room to the game played in it.
type match struct {
	srv    *Server
	room   *room.Room
	logger *zap.Logger

	mu         sync.Mutex
	players    [2]rpc.PlayerIO
	game       *game.Game
	stats      *watchers.Set
	exporter   *game.Exporter
	version    string
	spectators map[*client]string
	gaveUp     bool
	startedAt  time.Time
}

func newMatch(s *Server, r *room.Room) *match {
	logger := s.logger
	if logger != nil {
		logger = logger.With(zap.String("room_id", r.ID))
	}
	return &match{
		srv:        s,
		room:       r,
		logger:     logger,
		spectators: make(map[*client]string),
	}
}

func (m *match) setPlayer(who state.Who, io rpc.PlayerIO) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[who] = io
}

func (m *match) currentGame() *game.Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.game
}

func (m *match) addSpectator(c *client, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spectators[c] = name
}

func (m *match) removeSpectator(c *client) {
	m.mu.Lock()
	name, ok := m.spectators[c]
	delete(m.spectators, c)
	m.mu.Unlock()
	if ok {
		m.room.RemoveWatcher(name)
	}
}

// audience returns the seated websocket clients and the spectators.
func (m *match) audience() []*client {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*client, 0, len(m.spectators)+2)
	for _, io := range m.players {
		if p, ok := io.(*wsPlayer); ok {
			out = append(out, p.client)
		}
	}
	for c := range m.spectators {
		out = append(out, c)
	}
	return out
}

func (m *match) spectatorClients() []*client {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*client, 0, len(m.spectators))
	for c := range m.spectators {
		out = append(out, c)
	}
	return out
}

func (m *match) broadcastError(err error) {
	for _, c := range m.audience() {
		c.sendError(m.room.ID, err)
	}
}

// prepare claims the room and builds its game. It reports false when
// another caller already started the room.
func (m *match) prepare(lib *catalog.Data) (bool, error) {
	id := uuid.NewString()
	if err := m.room.Start(id); err != nil {
		if errors.Is(err, room.ErrAlreadyStarted) {
			return false, nil
		}
		return false, err
	}

	cfg := m.srv.cfg
	stats := watchers.NewSet()
	hooks := []game.PauseFunc{stats.OnPause, m.spectate}

	var exporter *game.Exporter
	if cfg.Replay.Export && cfg.Replay.Directory != "" {
		var err error
		exporter, err = game.NewExporter(filepath.Join(cfg.Replay.Directory, id+".spectator.jsonl.zst"), state.NoOne)
		if err != nil {
			m.room.Finish(nil)
			return false, err
		}
		hooks = append(hooks, exporter.OnPause)
	}

	m.mu.Lock()
	players := m.players
	m.mu.Unlock()

	g, err := game.New(lib, game.Options{
		ID:           id,
		Config:       cfg.Game.StateConfig(),
		Decks:        m.room.Decks(),
		Players:      players,
		OnPause:      chainPause(hooks...),
		MaxReprompts: cfg.Game.MaxReprompts,
		Logger:       m.logger,
	})
	if err != nil {
		if exporter != nil {
			_ = exporter.Close()
		}
		m.room.Finish(nil)
		return false, err
	}

	m.mu.Lock()
	m.game, m.stats, m.exporter = g, stats, exporter
	m.version = lib.Version()
	m.startedAt = time.Now().UTC()
	m.mu.Unlock()
	return true, nil
}

func chainPause(hooks ...game.PauseFunc) game.PauseFunc {
	return func(snapshot *state.GameState, batch []mutation.Mutation, canResume bool) error {
		for _, h := range hooks {
			if err := h(snapshot, batch, canResume); err != nil {
				return err
			}
		}
		return nil
	}
}

// spectate forwards the pause point, redacted for both sides, to every
// spectator.
func (m *match) spectate(snapshot *state.GameState, batch []mutation.Mutation, _ bool) error {
	specs := m.spectatorClients()
	if len(specs) == 0 {
		return nil
	}
	envs, err := encodeBatch(view.ExposeBatch(state.NoOne, batch))
	if err != nil {
		return err
	}
	data := NotificationData{Who: state.NoOne, State: view.ExposeState(state.NoOne, snapshot), Mutations: envs}
	for _, c := range specs {
		_ = c.send(MsgNotification, m.room.ID, 0, data)
	}
	return nil
}

func (m *match) giveUp(who state.Who) error {
	m.mu.Lock()
	g := m.game
	if g != nil {
		m.gaveUp = true
	}
	m.mu.Unlock()
	if g == nil {
		return errors.New("game has not started")
	}
	g.GiveUp(who)
	return nil
}

// run plays the game to the end, stores the result and tells everyone.
func (m *match) run(ctx context.Context) {
	m.mu.Lock()
	g, stats, exporter := m.game, m.stats, m.exporter
	m.mu.Unlock()

	final, err := g.Start(ctx)
	if exporter != nil {
		if cerr := exporter.Close(); cerr != nil && m.logger != nil {
			m.logger.Warn("close export", zap.Error(cerr))
		}
	}

	m.mu.Lock()
	gaveUp := m.gaveUp
	m.mu.Unlock()
	reason := ReasonFinished
	switch {
	case errors.Is(err, game.ErrTerminated):
		reason = ReasonTerminated
	case gaveUp:
		reason = ReasonSurrender
	case err != nil:
		reason = ReasonTerminated
		if m.logger != nil {
			m.logger.Error("game failed", zap.String("game_id", g.ID()), zap.Error(err))
		}
	}

	var winner *state.Who
	if final != nil {
		winner = final.Winner
	}
	m.room.Finish(winner)
	summary := stats.Summary()

	m.record(g, winner, reason, summary)

	end := GameEndData{GameID: g.ID(), Winner: winner, Reason: reason, Stats: summary}
	for _, c := range m.audience() {
		_ = c.send(MsgGameEnd, m.room.ID, 0, end)
	}
}

func (m *match) record(g *game.Game, winner *state.Who, reason string, summary watchers.Summary) {
	srv := m.srv
	if srv.recorder != nil {
		if err := srv.recorder.Record(g); err == nil {
			err = srv.recorder.SaveReplay(g.ID())
			if err != nil && m.logger != nil {
				m.logger.Warn("save replay", zap.String("game_id", g.ID()), zap.Error(err))
			}
		} else if m.logger != nil {
			m.logger.Warn("record replay", zap.String("game_id", g.ID()), zap.Error(err))
		}
	}
	if srv.store == nil {
		return
	}

	rec := &repository.GameRecord{
		ID:         g.ID(),
		Players:    m.room.Names(),
		Winner:     state.NoOne,
		Reason:     reason,
		Rounds:     summary.Rounds,
		Stats:      summary,
		FinishedAt: time.Now().UTC(),
	}
	if winner != nil {
		rec.Winner = *winner
	}
	m.mu.Lock()
	rec.Version, rec.StartedAt = m.version, m.startedAt
	m.mu.Unlock()

	if l, err := g.Log(); err == nil {
		if rec.Log, err = l.Bytes(); err != nil && m.logger != nil {
			m.logger.Warn("encode game log", zap.String("game_id", g.ID()), zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.store.SaveGame(ctx, rec); err != nil && m.logger != nil {
		m.logger.Error("save game", zap.String("game_id", g.ID()), zap.Error(err))
	}
}
