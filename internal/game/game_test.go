package game_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gi-tcg/gitcg-server-go/internal/catalog"
	"github.com/gi-tcg/gitcg-server-go/internal/game"
	"github.com/gi-tcg/gitcg-server-go/internal/game/mutation"
	"github.com/gi-tcg/gitcg-server-go/internal/game/rpc"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

var deckCards = []int{311001, 321001, 321002, 321003, 321004, 332001, 332002, 332003, 332004, 332005,
	332006, 332007, 332008, 332009, 332010, 332011}

func testDecks() [2]state.Deck {
	cards := make([]int, 0, state.DeckCards)
	for i := 0; len(cards) < state.DeckCards; i++ {
		cards = append(cards, deckCards[i%len(deckCards)])
	}
	return [2]state.Deck{
		{Characters: []int{1101, 1201, 1301}, Cards: cards},
		{Characters: []int{1401, 1501, 1701}, Cards: cards},
	}
}

func builtin(t *testing.T) *catalog.Data {
	t.Helper()
	d, err := catalog.Builtin()
	require.NoError(t, err)
	return d
}

func newGame(t *testing.T, seed uint64, players [2]rpc.PlayerIO, onPause game.PauseFunc) *game.Game {
	t.Helper()
	cfg := state.DefaultConfig()
	cfg.RandomSeed = seed
	g, err := game.New(builtin(t), game.Options{
		Config:       cfg,
		Decks:        testDecks(),
		Players:      players,
		OnPause:      onPause,
		MaxReprompts: 3,
		Logger:       zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return g
}

func bots(t *testing.T, seed uint64) [2]rpc.PlayerIO {
	return [2]rpc.PlayerIO{
		game.NewNullPlayer(seed, zaptest.NewLogger(t)),
		game.NewNullPlayer(seed+1, zaptest.NewLogger(t)),
	}
}

func start(t *testing.T, g *game.Game) (*state.GameState, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return g.Start(ctx)
}

func TestSelfPlay(t *testing.T) {
	players := bots(t, 7)
	g := newGame(t, 42, players, nil)

	final, err := start(t, g)
	require.NoError(t, err)
	assert.Equal(t, state.PhaseGameEnd, final.Phase)
	assert.Positive(t, final.RoundNumber)
	assert.LessOrEqual(t, final.RoundNumber, final.Config.MaxRoundsCount)
	assert.Positive(t, players[0].(*game.NullPlayer).Notified())

	log, err := g.Log()
	require.NoError(t, err)
	require.NoError(t, log.Verify())
	assert.Equal(t, game.LogFormatVersion, log.Format)
	assert.Equal(t, "builtin-1", log.Version)
	assert.NotEmpty(t, log.Checksum)

	replayed, err := log.Final()
	require.NoError(t, err)
	want, err := game.Checksum(final)
	require.NoError(t, err)
	ok, err := game.VerifyChecksum(replayed, want)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = g.Start(context.Background())
	assert.ErrorIs(t, err, game.ErrAlreadyStarted)
}

func TestSelfPlayIsDeterministic(t *testing.T) {
	play := func() string {
		g := newGame(t, 1234, bots(t, 99), nil)
		final, err := start(t, g)
		require.NoError(t, err)
		sum, err := game.Checksum(final)
		require.NoError(t, err)
		return sum.Hash
	}
	assert.Equal(t, play(), play())
}

func TestPlayersSeeOwnHandsOnly(t *testing.T) {
	players := bots(t, 3)
	g := newGame(t, 5, players, nil)
	_, err := start(t, g)
	require.NoError(t, err)

	note := players[0].(*game.NullPlayer).Last()
	require.NotNil(t, note.State)
	assert.Equal(t, state.PlayerOne, note.Who)
	for _, c := range note.State.Players[state.PlayerTwo].Hands {
		assert.Zero(t, c.DefinitionID)
	}
}

type invalidPlayer struct {
	calls atomic.Int32
}

func (p *invalidPlayer) Notify(rpc.Notification) {}

func (p *invalidPlayer) RPC(context.Context, rpc.Request) (rpc.Response, error) {
	p.calls.Add(1)
	return rpc.Response{RemovedHands: []int{-7}, ChosenActionIndex: -1}, nil
}

func (p *invalidPlayer) CancelRPC() {}

func TestInvalidResponsesForfeit(t *testing.T) {
	bad := &invalidPlayer{}
	g := newGame(t, 11, [2]rpc.PlayerIO{bad, game.NewNullPlayer(1, nil)}, nil)

	final, err := start(t, g)
	require.NoError(t, err)
	require.NotNil(t, final.Winner)
	assert.Equal(t, state.PlayerTwo, *final.Winner)
	assert.Equal(t, state.PhaseGameEnd, final.Phase)
	assert.EqualValues(t, 3, bad.calls.Load())

	log, err := g.Log()
	require.NoError(t, err)
	assert.NoError(t, log.Verify())
}

// actionCall is what a scripted player saw when asked for an action.
type actionCall struct {
	round    int
	notified int
	actions  []rpc.ActionInfo
}

// scriptedPlayer answers action requests through answer when it returns
// true and leaves everything else to a bot.
type scriptedPlayer struct {
	bot    *game.NullPlayer
	answer func(n int, req rpc.Request) (rpc.Response, bool)

	mu    sync.Mutex
	notes []rpc.Notification
	calls []actionCall
}

func (p *scriptedPlayer) Notify(n rpc.Notification) {
	p.mu.Lock()
	p.notes = append(p.notes, n)
	p.mu.Unlock()
	p.bot.Notify(n)
}

func (p *scriptedPlayer) RPC(ctx context.Context, req rpc.Request) (rpc.Response, error) {
	if req.Method == rpc.MethodAction {
		p.mu.Lock()
		call := actionCall{notified: len(p.notes), actions: req.Actions}
		if len(p.notes) > 0 {
			call.round = p.notes[len(p.notes)-1].State.RoundNumber
		}
		p.calls = append(p.calls, call)
		n := len(p.calls)
		p.mu.Unlock()
		if p.answer != nil {
			if resp, ok := p.answer(n, req); ok {
				return resp, nil
			}
		}
	}
	return p.bot.RPC(ctx, req)
}

func (p *scriptedPlayer) CancelRPC() {}

func (p *scriptedPlayer) actionCalls() []actionCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]actionCall(nil), p.calls...)
}

func TestInvalidActionIsAskedAgain(t *testing.T) {
	picky := &scriptedPlayer{
		bot: game.NewNullPlayer(4, nil),
		answer: func(n int, req rpc.Request) (rpc.Response, bool) {
			switch n {
			case 1:
				return rpc.Response{ChosenActionIndex: len(req.Actions)}, true
			case 2:
				for i, a := range req.Actions {
					if a.Valid && a.Cost.DiceCount() > 0 {
						return rpc.Response{ChosenActionIndex: i}, true
					}
				}
				return rpc.Response{ChosenActionIndex: -1}, true
			}
			return rpc.Response{}, false
		},
	}
	pauses := 0
	g := newGame(t, 31, [2]rpc.PlayerIO{picky, game.NewNullPlayer(2, nil)}, func(*state.GameState, []mutation.Mutation, bool) error {
		pauses++
		return nil
	})

	final, err := start(t, g)
	require.NoError(t, err)
	assert.Equal(t, state.PhaseGameEnd, final.Phase)

	calls := picky.actionCalls()
	require.GreaterOrEqual(t, len(calls), 3)
	// Both rejected answers were asked again with nothing applied in between.
	assert.Equal(t, calls[0].notified, calls[1].notified)
	assert.Equal(t, calls[1].notified, calls[2].notified)
	assert.Equal(t, calls[0].actions, calls[2].actions)
	assert.Positive(t, pauses)

	log, err := g.Log()
	require.NoError(t, err)
	assert.NoError(t, log.Verify())
}

func TestBothDeclareEnd(t *testing.T) {
	declareEnd := func(_ int, req rpc.Request) (rpc.Response, bool) {
		for i, a := range req.Actions {
			if a.Kind == rpc.ActionDeclareEnd && a.Valid {
				return rpc.Response{ChosenActionIndex: i}, true
			}
		}
		return rpc.Response{}, false
	}
	players := [2]*scriptedPlayer{
		{bot: game.NewNullPlayer(1, nil), answer: declareEnd},
		{bot: game.NewNullPlayer(2, nil), answer: declareEnd},
	}
	g := newGame(t, 32, [2]rpc.PlayerIO{players[0], players[1]}, nil)

	final, err := start(t, g)
	require.NoError(t, err)
	assert.Equal(t, state.PhaseGameEnd, final.Phase)
	assert.Nil(t, final.Winner)
	assert.Equal(t, final.Config.MaxRoundsCount, final.RoundNumber)

	// One action request per player per round, then straight to the end
	// phase.
	for _, p := range players {
		calls := p.actionCalls()
		require.Len(t, calls, final.RoundNumber-1)
		for i, c := range calls {
			assert.Equal(t, i+1, c.round)
		}
	}
}

func TestPileOrderIsHidden(t *testing.T) {
	spy := &scriptedPlayer{bot: game.NewNullPlayer(6, nil)}
	g := newGame(t, 33, [2]rpc.PlayerIO{spy, game.NewNullPlayer(7, nil)}, nil)
	_, err := start(t, g)
	require.NoError(t, err)

	spy.mu.Lock()
	defer spy.mu.Unlock()
	piled := 0
	for _, note := range spy.notes {
		for _, m := range note.Mutations {
			switch m := m.(type) {
			case mutation.CreateCard:
				if m.Target == state.ZonePile {
					piled++
					assert.Zero(t, m.Value.DefinitionID)
				}
			case mutation.MoveCard:
				if m.To == state.ZonePile {
					assert.Nil(t, m.TargetIndex)
				}
			}
		}
		for _, p := range note.State.Players {
			for _, c := range p.Pile {
				assert.Zero(t, c.ID)
			}
		}
	}
	assert.GreaterOrEqual(t, piled, 2*state.DeckCards)
}

// blockingPlayer never answers until the wait is abandoned.
type blockingPlayer struct {
	asked     chan struct{}
	once      sync.Once
	cancelled atomic.Int32
}

func newBlockingPlayer() *blockingPlayer {
	return &blockingPlayer{asked: make(chan struct{})}
}

func (p *blockingPlayer) Notify(rpc.Notification) {}

func (p *blockingPlayer) RPC(ctx context.Context, _ rpc.Request) (rpc.Response, error) {
	p.once.Do(func() { close(p.asked) })
	<-ctx.Done()
	return rpc.Response{}, ctx.Err()
}

func (p *blockingPlayer) CancelRPC() {
	p.cancelled.Add(1)
}

func TestGiveUp(t *testing.T) {
	waiting := newBlockingPlayer()
	g := newGame(t, 21, [2]rpc.PlayerIO{game.NewNullPlayer(1, nil), waiting}, nil)

	go func() {
		<-waiting.asked
		g.GiveUp(state.PlayerTwo)
	}()
	final, err := start(t, g)
	require.NoError(t, err)
	require.NotNil(t, final.Winner)
	assert.Equal(t, state.PlayerOne, *final.Winner)
	assert.Equal(t, state.PhaseGameEnd, final.Phase)
	assert.Positive(t, waiting.cancelled.Load())
}

func TestTerminate(t *testing.T) {
	waiting := newBlockingPlayer()
	g := newGame(t, 22, [2]rpc.PlayerIO{waiting, game.NewNullPlayer(1, nil)}, nil)

	go func() {
		<-waiting.asked
		g.Terminate()
	}()
	final, err := start(t, g)
	assert.ErrorIs(t, err, game.ErrTerminated)
	assert.Nil(t, final.Winner)
	assert.Equal(t, state.PhaseGameEnd, final.Phase)
}

func TestContextCancel(t *testing.T) {
	waiting := newBlockingPlayer()
	g := newGame(t, 23, [2]rpc.PlayerIO{waiting, game.NewNullPlayer(1, nil)}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-waiting.asked
		cancel()
	}()
	final, err := g.Start(ctx)
	assert.ErrorIs(t, err, game.ErrTerminated)
	assert.Nil(t, final.Winner)
}

func TestPauseHookErrorStops(t *testing.T) {
	pauses := 0
	g := newGame(t, 24, bots(t, 1), func(*state.GameState, []mutation.Mutation, bool) error {
		pauses++
		if pauses == 3 {
			return os.ErrClosed
		}
		return nil
	})
	_, err := start(t, g)
	assert.ErrorIs(t, err, game.ErrTerminated)
}

func TestResume(t *testing.T) {
	lib := builtin(t)
	g := newGame(t, 77, bots(t, 5), nil)
	_, err := start(t, g)
	require.NoError(t, err)
	log, err := g.Log()
	require.NoError(t, err)

	index := -1
	for i, e := range log.Entries {
		if e.CanResume && e.State.Phase == state.PhaseAction && e.State.RoundNumber >= 2 {
			index = i
			break
		}
	}
	require.GreaterOrEqual(t, index, 0, "no resumable action phase entry")

	resumed, err := game.Resume(lib, log, index, game.Options{Players: bots(t, 6), Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	assert.Equal(t, g.ID(), resumed.ID())
	final, err := start(t, resumed)
	require.NoError(t, err)
	assert.Equal(t, state.PhaseGameEnd, final.Phase)

	rlog, err := resumed.Log()
	require.NoError(t, err)
	assert.NoError(t, rlog.Verify())

	_, err = game.Resume(lib, log, len(log.Entries), game.Options{Players: bots(t, 6)})
	assert.Error(t, err)
}

func TestLogEncoding(t *testing.T) {
	g := newGame(t, 31, bots(t, 2), nil)
	_, err := start(t, g)
	require.NoError(t, err)
	log, err := g.Log()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, log.Encode(&buf))
	decoded, err := game.DecodeLog(&buf)
	require.NoError(t, err)
	assert.Equal(t, log.GameID, decoded.GameID)
	assert.Len(t, decoded.Entries, len(log.Entries))
	require.NoError(t, decoded.Verify())

	decoded.Checksum = "00"
	assert.ErrorIs(t, decoded.Verify(), game.ErrChecksumMismatch)
}

func TestReplayRecorder(t *testing.T) {
	dir := t.TempDir()
	rec := game.NewReplayRecorder(zaptest.NewLogger(t), dir)
	g := newGame(t, 41, bots(t, 8), nil)
	_, err := start(t, g)
	require.NoError(t, err)

	require.NoError(t, rec.Record(g))
	recorded, ok := rec.Get(g.ID())
	require.True(t, ok)
	require.NoError(t, rec.SaveReplay(g.ID()))
	_, ok = rec.Get(g.ID())
	assert.False(t, ok)
	assert.FileExists(t, filepath.Join(dir, g.ID()+".replay.zst"))

	loaded, err := rec.LoadReplay(g.ID())
	require.NoError(t, err)
	assert.Equal(t, recorded.Checksum, loaded.Checksum)

	replay := game.NewReplay(loaded)
	assert.Equal(t, len(loaded.Entries), replay.Size())
	first := replay.Next()
	require.NotNil(t, first)
	assert.Equal(t, state.PhaseInitHands, first.Phase)
	last := replay.Skip(replay.Size() * 2)
	assert.Equal(t, state.PhaseGameEnd, last.Phase)
	assert.Nil(t, replay.StateAt(-1))

	assert.Error(t, rec.SaveReplay("missing"))
}

func TestExporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export", "p1.jsonl.zst")
	exp, err := game.NewExporter(path, state.PlayerOne)
	require.NoError(t, err)
	g := newGame(t, 51, bots(t, 4), exp.OnPause)
	_, err = start(t, g)
	require.NoError(t, err)
	require.NoError(t, exp.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	lines, err := game.ReadExport(f)
	require.NoError(t, err)
	require.NotEmpty(t, lines)
	for i := 1; i < len(lines); i++ {
		assert.GreaterOrEqual(t, lines[i].Pause, lines[i-1].Pause)
	}
	assert.NotEmpty(t, lines[0].Mutation.Type)
}

func TestChecksumDetectsChanges(t *testing.T) {
	g := newGame(t, 61, bots(t, 9), nil)
	final, err := start(t, g)
	require.NoError(t, err)
	require.NoError(t, game.ValidateRoundTrip(final))

	sum, err := game.Checksum(final)
	require.NoError(t, err)
	changed := final.Clone()
	changed.RoundNumber++
	ok, err := game.VerifyChecksum(changed, sum)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = game.VerifyChecksum(final, &game.SerializationChecksum{Hash: sum.Hash, Version: 99})
	assert.Error(t, err)
}

func TestNewRejectsBadDecks(t *testing.T) {
	decks := testDecks()
	decks[1].Characters = decks[1].Characters[:2]
	_, err := game.New(builtin(t), game.Options{Config: state.DefaultConfig(), Decks: decks, Players: bots(t, 1)})
	assert.ErrorIs(t, err, state.ErrInvalidDeck)

	decks = testDecks()
	decks[0].Cards[0] = 999999
	_, err = game.New(builtin(t), game.Options{Config: state.DefaultConfig(), Decks: decks, Players: bots(t, 1)})
	assert.Error(t, err)
}
