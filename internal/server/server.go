// Package server hosts games over websockets: players open or join rooms,
// receive exposed pause-point updates and answer the game's requests.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gi-tcg/gitcg-server-go/internal/catalog"
	"github.com/gi-tcg/gitcg-server-go/internal/config"
	"github.com/gi-tcg/gitcg-server-go/internal/game"
	"github.com/gi-tcg/gitcg-server-go/internal/game/rpc"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
	"github.com/gi-tcg/gitcg-server-go/internal/repository"
	"github.com/gi-tcg/gitcg-server-go/internal/room"
)

// Server is the websocket game host.
type Server struct {
	cfg      *config.Config
	registry *catalog.Registry
	rooms    *room.Manager
	store    repository.Store
	recorder *game.ReplayRecorder
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	matches map[string]*match // room id -> match
	wg      sync.WaitGroup
	baseCtx context.Context
	stop    context.CancelFunc
}

// NewServer wires the host. store and recorder may be nil.
func NewServer(cfg *config.Config, registry *catalog.Registry, store repository.Store, recorder *game.ReplayRecorder, logger *zap.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		registry: registry,
		rooms:    room.NewManager(cfg.Server.MaxRooms, logger),
		store:    store,
		recorder: recorder,
		logger:   logger,
		matches:  make(map[string]*match),
		baseCtx:  ctx,
		stop:     cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	allowed := s.cfg.Server.AllowedOrigins
	if len(allowed) == 0 {
		return true
	}
	return slices.Contains(allowed, r.Header.Get("Origin"))
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.serveWS)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /rooms", s.handleRooms)
	mux.HandleFunc("GET /games", s.handleGames)
	mux.HandleFunc("GET /games/{id}", s.handleGame)
	mux.HandleFunc("GET /games/{id}/replay", s.handleReplay)
	return mux
}

// Run serves until ctx is cancelled, then stops every running game and
// waits for their results to be stored.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.Info("websocket server listening", zap.String("address", srv.Addr))
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	prune := time.NewTicker(time.Minute)
	defer prune.Stop()
	for {
		select {
		case err, ok := <-errCh:
			if ok {
				return err
			}
			return nil
		case <-prune.C:
			s.rooms.PruneFinished(time.Now().Add(-10 * time.Minute))
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
			defer cancel()
			err := srv.Shutdown(shutdownCtx)
			s.Close()
			return err
		}
	}
}

// Close terminates running games and waits for them to be recorded.
func (s *Server) Close() {
	s.stop()
	s.mu.Lock()
	for _, m := range s.matches {
		if g := m.currentGame(); g != nil {
			g.Terminate()
		}
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("websocket upgrade failed", zap.Error(err))
		}
		return
	}
	c := newClient(conn, s)
	go c.writePump()
	go c.readPump()
}

func (s *Server) handleMessage(c *client, msg Message) {
	var err error
	switch msg.Type {
	case MsgCreateRoom:
		var data CreateRoomData
		if err = json.Unmarshal(msg.Data, &data); err == nil {
			err = s.createRoom(c, data)
		}
	case MsgJoinRoom:
		var data JoinRoomData
		if err = json.Unmarshal(msg.Data, &data); err == nil {
			err = s.joinRoom(c, msg.RoomID, data)
		}
	case MsgWatchRoom:
		var data WatchRoomData
		if err = json.Unmarshal(msg.Data, &data); err == nil {
			err = s.watchRoom(c, msg.RoomID, data)
		}
	case MsgResponse:
		err = s.respond(c, msg)
	case MsgGiveUp:
		err = s.giveUp(c)
	default:
		err = fmt.Errorf("unknown message type %q", msg.Type)
	}
	if err != nil {
		if s.logger != nil {
			s.logger.Debug("message rejected",
				zap.String("type", string(msg.Type)),
				zap.String("room_id", msg.RoomID),
				zap.Error(err),
			)
		}
		c.sendError(msg.RoomID, err)
	}
}

func (s *Server) createRoom(c *client, data CreateRoomData) error {
	if p, _ := c.seat(); p != nil {
		return errors.New("already seated")
	}
	if data.Name == "" {
		data.Name = data.Player
	}
	r, err := s.rooms.CreateRoom(data.Name)
	if err != nil {
		return err
	}
	m := newMatch(s, r)
	s.mu.Lock()
	s.matches[r.ID] = m
	s.mu.Unlock()

	if err := s.seatClient(c, m, data.Player, data.Deck); err != nil {
		s.rooms.RemoveRoom(r.ID)
		s.dropMatch(r.ID)
		return err
	}
	if data.VsBot {
		deck := data.Deck
		if data.BotDeck != nil {
			deck = *data.BotDeck
		}
		who, err := r.Join("bot", deck, true)
		if err != nil {
			return err
		}
		seed := data.BotSeed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		m.setPlayer(who, game.NewNullPlayer(seed, s.logger))
	}
	s.maybeStart(m)
	return nil
}

func (s *Server) joinRoom(c *client, roomID string, data JoinRoomData) error {
	if p, _ := c.seat(); p != nil {
		return errors.New("already seated")
	}
	m, err := s.match(roomID)
	if err != nil {
		return err
	}
	if err := s.seatClient(c, m, data.Player, data.Deck); err != nil {
		return err
	}
	s.maybeStart(m)
	return nil
}

func (s *Server) seatClient(c *client, m *match, name string, deck state.Deck) error {
	who, err := m.room.Join(name, deck, false)
	if err != nil {
		return err
	}
	p := newWSPlayer(who, m.room.ID, c, s.cfg.Game.RPCTimeout, s.logger)
	m.setPlayer(who, p)
	c.setSeat(p, m)
	return c.send(MsgJoined, m.room.ID, 0, JoinedData{RoomID: m.room.ID, Who: who})
}

func (s *Server) watchRoom(c *client, roomID string, data WatchRoomData) error {
	m, err := s.match(roomID)
	if err != nil {
		return err
	}
	m.room.AddWatcher(data.Name)
	m.addSpectator(c, data.Name)
	return c.send(MsgJoined, roomID, 0, JoinedData{RoomID: roomID, Who: state.NoOne})
}

func (s *Server) respond(c *client, msg Message) error {
	p, _ := c.seat()
	if p == nil {
		return errors.New("not seated")
	}
	var resp rpc.Response
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return err
	}
	return p.deliver(msg.RequestID, resp)
}

func (s *Server) giveUp(c *client) error {
	p, m := c.seat()
	if p == nil {
		return errors.New("not seated")
	}
	return m.giveUp(p.who)
}

// disconnect runs when a connection closes. A seated player who leaves a
// waiting room frees the seat; one who leaves a running game stays seated
// and forfeits through the failing RPC.
func (s *Server) disconnect(c *client) {
	p, m := c.seat()
	if m == nil {
		s.mu.Lock()
		for _, m := range s.matches {
			m.removeSpectator(c)
		}
		s.mu.Unlock()
		return
	}
	if m.room.GetState() == room.RoomStateWaiting {
		_ = m.room.Leave(p.who)
		m.setPlayer(p.who, nil)
	}
}

func (s *Server) match(roomID string) (*match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", room.ErrNotFound, roomID)
	}
	return m, nil
}

func (s *Server) dropMatch(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.matches, roomID)
}

func (s *Server) maybeStart(m *match) {
	if !m.room.Ready() {
		return
	}
	lib, err := s.registry.Data(s.cfg.Catalog.Version)
	started := false
	if err == nil {
		started, err = m.prepare(lib)
	}
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to start game", zap.String("room_id", m.room.ID), zap.Error(err))
		}
		m.broadcastError(err)
		return
	}
	if !started {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		m.run(s.baseCtx)
		s.dropMatch(m.room.ID)
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorData{Message: err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"rooms":    s.rooms.GetActiveRoomCount(),
		"catalogs": s.registry.Versions(),
	})
}

func (s *Server) handleRooms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.rooms.GetAllRooms())
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, repository.ErrDisabled)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	games, err := s.store.ListGames(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *Server) loadGame(w http.ResponseWriter, r *http.Request) (*repository.GameRecord, bool) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, repository.ErrDisabled)
		return nil, false
	}
	rec, err := s.store.GetGame(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
		return nil, false
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return rec, true
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadGame(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, struct {
		repository.GameSummary
		Stats any `json:"stats"`
	}{rec.Summary(), rec.Stats})
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadGame(w, r)
	if !ok {
		return
	}
	if len(rec.Log) == 0 {
		writeError(w, http.StatusNotFound, errors.New("game has no log"))
		return
	}
	w.Header().Set("Content-Type", "application/zstd")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.ID+".replay.zst"))
	_, _ = w.Write(rec.Log)
}
