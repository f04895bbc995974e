// Package game runs one match: the phase state machine, the player
// decisions, the pause points and the replay log.
package game

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gi-tcg/gitcg-server-go/internal/game/mutation"
	"github.com/gi-tcg/gitcg-server-go/internal/game/rpc"
	"github.com/gi-tcg/gitcg-server-go/internal/game/rules"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
	"github.com/gi-tcg/gitcg-server-go/internal/game/view"
)

// DefaultMaxReprompts is how many invalid responses in a row a player may
// send before forfeiting.
const DefaultMaxReprompts = 8

var (
	// ErrTerminated is returned by Start when the game was stopped without
	// a result.
	ErrTerminated = errors.New("game: terminated")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("game: already started")
	// ErrNotResumable is returned for log entries taken mid-resolution.
	ErrNotResumable = errors.New("game: log entry cannot be resumed")
	// ErrTooManyInvalid is wrapped in the PlayerError of a player who kept
	// sending invalid responses.
	ErrTooManyInvalid = errors.New("game: too many invalid responses")
)

// PlayerError is a failure caused by one player: an I/O error, a cancelled
// wait or too many invalid responses. The player forfeits.
type PlayerError struct {
	Who state.Who
	Err error
}

func (e *PlayerError) Error() string {
	return fmt.Sprintf("player %s: %v", e.Who, e.Err)
}

func (e *PlayerError) Unwrap() error {
	return e.Err
}

// PauseFunc is called at every pause point with a snapshot and the batch of
// mutations applied since the previous pause. An error stops the game.
type PauseFunc func(snapshot *state.GameState, batch []mutation.Mutation, canResume bool) error

// Options configures a game.
type Options struct {
	// ID defaults to a random uuid.
	ID     string
	Config state.Config
	Decks  [2]state.Deck
	// Players decide for PlayerOne and PlayerTwo.
	Players      [2]rpc.PlayerIO
	OnPause      PauseFunc
	MaxReprompts int
	Logger       *zap.Logger
}

// Game is one match between two players.
type Game struct {
	id           string
	lib          rules.Library
	logger       *zap.Logger
	decks        [2]state.Deck
	players      [2]rpc.PlayerIO
	onPause      PauseFunc
	maxReprompts int

	stream *mutation.Stream
	engine *rules.Engine

	logMu sync.Mutex
	log   *GameLog

	started   atomic.Bool
	terminate chan struct{}
	stopOnce  sync.Once
	stopMu    sync.Mutex
	stopped   bool
	quitter   state.Who
}

// New prepares a game from two decks. The game does not run until Start.
func New(lib rules.Library, opts Options) (*Game, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("game config: %w", err)
	}
	for who, deck := range opts.Decks {
		if err := deck.Validate(); err != nil {
			return nil, fmt.Errorf("deck of %s: %w", state.Who(who), err)
		}
		if err := checkDeck(lib, deck); err != nil {
			return nil, fmt.Errorf("deck of %s: %w", state.Who(who), err)
		}
	}
	if cfg.RandomSeed == 0 {
		seed, err := randomSeed()
		if err != nil {
			return nil, err
		}
		cfg.RandomSeed = seed
	}
	initial, err := initialState(lib, cfg, opts.Decks)
	if err != nil {
		return nil, err
	}
	return newGame(lib, initial, opts)
}

// Resume continues a recorded game from one of its resumable entries.
func Resume(lib rules.Library, log *GameLog, index int, opts Options) (*Game, error) {
	if index < 0 || index >= len(log.Entries) {
		return nil, fmt.Errorf("resume: entry %d of %d", index, len(log.Entries))
	}
	entry := log.Entries[index]
	if !entry.CanResume {
		return nil, fmt.Errorf("%w: entry %d", ErrNotResumable, index)
	}
	if log.Version != lib.Version() {
		return nil, fmt.Errorf("resume: log version %q, catalogue version %q", log.Version, lib.Version())
	}
	if opts.ID == "" {
		opts.ID = log.GameID
	}
	opts.Decks = log.Decks
	return newGame(lib, entry.State, opts)
}

func newGame(lib rules.Library, initial *state.GameState, opts Options) (*Game, error) {
	for who, io := range opts.Players {
		if io == nil {
			return nil, fmt.Errorf("game: no player io for %s", state.Who(who))
		}
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	reprompts := opts.MaxReprompts
	if reprompts <= 0 {
		reprompts = DefaultMaxReprompts
	}
	logger := opts.Logger
	if logger != nil {
		logger = logger.With(zap.String("game_id", id))
	}
	g := &Game{
		id:           id,
		lib:          lib,
		logger:       logger,
		decks:        opts.Decks,
		players:      opts.Players,
		onPause:      opts.OnPause,
		maxReprompts: reprompts,
		stream:       mutation.NewStream(initial, logger),
		terminate:    make(chan struct{}),
		quitter:      state.NoOne,
		log: &GameLog{
			Format:  LogFormatVersion,
			GameID:  id,
			Version: lib.Version(),
			Decks:   opts.Decks,
			Initial: initial.Clone(),
		},
	}
	g.engine = rules.NewEngine(lib, g.stream, decider{g}, logger)
	return g, nil
}

func randomSeed() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("random seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]) | 1, nil
}

func checkDeck(lib rules.Library, deck state.Deck) error {
	for _, id := range deck.Characters {
		if _, ok := lib.Character(id); !ok {
			return fmt.Errorf("%w: character %d", rules.ErrUnknownDefinition, id)
		}
	}
	for _, id := range deck.Cards {
		if _, ok := lib.Card(id); !ok {
			return fmt.Errorf("%w: card %d", rules.ErrUnknownDefinition, id)
		}
	}
	return nil
}

// initialState is the state before any mutation: limits, seed, installed
// extensions and the deck lists. Characters and cards are created by the
// first phase so they are part of the log.
func initialState(lib rules.Library, cfg state.Config, decks [2]state.Deck) (*state.GameState, error) {
	g := &state.GameState{
		Version:     lib.Version(),
		Config:      cfg,
		Iterators:   state.Iterators{Random: cfg.RandomSeed},
		Phase:       state.PhaseInitHands,
		CurrentTurn: state.PlayerOne,
	}
	for i := range g.Players {
		p := &g.Players[i]
		p.Who = state.Who(i)
		for _, id := range decks[i].Cards {
			p.InitialPile = append(p.InitialPile, state.CardState{DefinitionID: id})
		}
	}
	for _, id := range lib.Extensions() {
		def, ok := lib.Extension(id)
		if !ok {
			return nil, fmt.Errorf("%w: extension %d", rules.ErrUnknownDefinition, id)
		}
		g.Extensions = append(g.Extensions, state.ExtensionState{DefinitionID: id, Value: append([]byte(nil), def.Initial...)})
	}
	return g, nil
}

// ID returns the game id.
func (g *Game) ID() string {
	return g.id
}

// Snapshot returns a copy of the current state.
func (g *Game) Snapshot() *state.GameState {
	return g.stream.Snapshot()
}

// Start runs the game to the end and returns the final state. Forfeits end
// the game normally with the opponent as winner. Terminate without a loser
// returns ErrTerminated; defects in the rules or content are returned
// wrapped.
func (g *Game) Start(ctx context.Context) (*state.GameState, error) {
	if !g.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-g.terminate:
			cancel()
		case <-ctx.Done():
		}
	}()

	if g.logger != nil {
		g.logger.Info("game started",
			zap.String("version", g.lib.Version()),
			zap.String("phase", g.stream.State().Phase.String()),
			zap.Int("round", g.stream.State().RoundNumber),
		)
	}
	err := g.pause(true)
	if err == nil {
		err = g.run(ctx)
	}
	return g.conclude(err)
}

// Terminate stops the game without a winner.
func (g *Game) Terminate() {
	g.stop(state.NoOne)
}

// GiveUp stops the game with who's opponent as the winner.
func (g *Game) GiveUp(who state.Who) {
	g.stop(who)
}

func (g *Game) stop(quitter state.Who) {
	g.stopOnce.Do(func() {
		g.stopMu.Lock()
		g.stopped, g.quitter = true, quitter
		g.stopMu.Unlock()
		close(g.terminate)
	})
}

func (g *Game) stopInfo() (bool, state.Who) {
	g.stopMu.Lock()
	defer g.stopMu.Unlock()
	return g.stopped, g.quitter
}

// conclude turns the outcome of run into the final state and error, and
// closes the log with a GameEnd phase.
func (g *Game) conclude(runErr error) (*state.GameState, error) {
	var (
		winner *state.Who
		result error
		perr   *PlayerError
	)
	stopped, quitter := g.stopInfo()
	switch {
	case stopped && quitter.Valid():
		w := quitter.Opp()
		winner = &w
	case stopped:
		result = ErrTerminated
	case runErr == nil:
	case errors.As(runErr, &perr):
		w := perr.Who.Opp()
		winner = &w
		if g.logger != nil {
			g.logger.Warn("player forfeits", zap.String("who", perr.Who.String()), zap.Error(perr.Err))
		}
	case errors.Is(runErr, ErrTerminated), errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		result = fmt.Errorf("%w: %v", ErrTerminated, runErr)
	default:
		result = fmt.Errorf("game %s: %w", g.id, runErr)
	}

	if err := g.end(winner); err != nil && result == nil {
		result = fmt.Errorf("game %s: close: %w", g.id, err)
	}
	final := g.stream.Snapshot()
	if g.logger != nil {
		fields := []zap.Field{zap.Int("round", final.RoundNumber), zap.Int("mutations", g.stream.Len())}
		if final.Winner != nil {
			fields = append(fields, zap.String("winner", final.Winner.String()))
		}
		if result != nil {
			fields = append(fields, zap.Error(result))
		}
		g.logger.Info("game ended", fields...)
	}
	return final, result
}

// end brings an interrupted or finished game to GameEnd.
func (g *Game) end(winner *state.Who) error {
	st := g.stream.State()
	var muts []mutation.Mutation
	if len(st.Deferred) > 0 {
		muts = append(muts, mutation.ClearDeferred{})
	}
	if winner != nil && st.Winner == nil {
		muts = append(muts, mutation.SetWinner{Winner: *winner})
	}
	if st.Phase != state.PhaseGameEnd {
		muts = append(muts, mutation.ChangePhase{Phase: state.PhaseGameEnd})
	}
	for _, m := range muts {
		if err := g.stream.Apply(m); err != nil {
			return err
		}
	}
	for _, io := range g.players {
		io.CancelRPC()
	}
	return g.notifyAll(false)
}

// pause is a pause point: the pending batch goes to both players, exposed
// for each, the snapshot is recorded and the host hook runs.
func (g *Game) pause(canResume bool) error {
	if err := g.notifyAll(canResume); err != nil {
		return fmt.Errorf("%w: pause hook: %v", ErrTerminated, err)
	}
	return nil
}

func (g *Game) notifyAll(canResume bool) error {
	batch := g.stream.Flush()
	snapshot := g.stream.Snapshot()
	canResume = canResume && len(snapshot.Deferred) == 0

	g.logMu.Lock()
	g.log.Entries = append(g.log.Entries, LogEntry{State: snapshot, CanResume: canResume})
	g.logMu.Unlock()

	for i, io := range g.players {
		who := state.Who(i)
		io.Notify(rpc.Notification{
			Who:       who,
			State:     view.ExposeState(who, snapshot),
			Mutations: view.ExposeBatch(who, batch),
		})
	}
	if g.onPause != nil {
		return g.onPause(snapshot, batch, canResume)
	}
	return nil
}

// Log returns a copy of the replay log recorded so far. The checksum is
// taken from the live state; call it once the game has stopped.
func (g *Game) Log() (*GameLog, error) {
	g.logMu.Lock()
	defer g.logMu.Unlock()
	envs, err := mutation.EncodeLog(g.stream.Log())
	if err != nil {
		return nil, err
	}
	sum, err := Checksum(g.stream.Snapshot())
	if err != nil {
		return nil, err
	}
	out := *g.log
	out.Entries = append([]LogEntry(nil), g.log.Entries...)
	out.Mutations = envs
	out.Checksum = sum.Hash
	return &out, nil
}
