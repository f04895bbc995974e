package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gi-tcg/gitcg-server-go/internal/catalog"
	"github.com/gi-tcg/gitcg-server-go/internal/game/mutation"
	"github.com/gi-tcg/gitcg-server-go/internal/game/rpc"
	"github.com/gi-tcg/gitcg-server-go/internal/game/rules"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// seatedGame returns a game whose characters, piles, hands and actives are
// set up, stopped before the first roll.
func seatedGame(t *testing.T, cfg state.Config) *Game {
	t.Helper()
	lib, err := catalog.Builtin()
	require.NoError(t, err)

	cards := []int{311001, 321001, 321002, 332001, 332002, 332003}
	deck := state.Deck{Characters: []int{1101, 1201, 1301}}
	for len(deck.Cards) < state.DeckCards {
		deck.Cards = append(deck.Cards, cards[len(deck.Cards)%len(cards)])
	}
	g, err := New(lib, Options{
		Config:  cfg,
		Decks:   [2]state.Deck{deck, deck},
		Players: [2]rpc.PlayerIO{NewNullPlayer(1, nil), NewNullPlayer(2, nil)},
		Logger:  zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, g.initHands(ctx))
	require.NoError(t, g.initActives(ctx))
	return g
}

func types(batch []mutation.Mutation) []mutation.Type {
	out := make([]mutation.Type, len(batch))
	for i, m := range batch {
		out[i] = m.Type()
	}
	return out
}

func TestSkippedTurnAlwaysSwitches(t *testing.T) {
	g := seatedGame(t, state.DefaultConfig())
	ctx := context.Background()
	who := g.stream.State().CurrentTurn

	require.NoError(t, g.engine.Run(ctx, func(c *rules.Context) error {
		if err := c.Apply(mutation.ChangePhase{Phase: state.PhaseAction}); err != nil {
			return err
		}
		if err := c.SetFlag(who, state.FlagSkipNextTurn, true); err != nil {
			return err
		}
		return c.SetFlag(who.Opp(), state.FlagDeclaredEnd, true)
	}))
	g.stream.Flush()

	require.NoError(t, g.actionStep(ctx))
	assert.Contains(t, types(g.stream.Flush()), mutation.TypeSwitchTurn)
	assert.Equal(t, who.Opp(), g.stream.State().CurrentTurn)
	assert.False(t, g.stream.State().Player(who).SkipNextTurn)

	// The opponent has declared the end, so the turn comes straight back.
	require.NoError(t, g.actionStep(ctx))
	assert.Equal(t, []mutation.Type{mutation.TypeSwitchTurn}, types(g.stream.Flush()))
	assert.Equal(t, who, g.stream.State().CurrentTurn)
	assert.Equal(t, state.PhaseAction, g.stream.State().Phase)
}

func TestRoundCapCountsAfterStep(t *testing.T) {
	cfg := state.DefaultConfig()
	cfg.MaxRoundsCount = 2
	g := seatedGame(t, cfg)
	ctx := context.Background()
	require.Equal(t, 1, g.stream.State().RoundNumber)

	require.NoError(t, g.engine.Run(ctx, func(c *rules.Context) error {
		return c.Apply(mutation.ChangePhase{Phase: state.PhaseEnd})
	}))
	require.NoError(t, g.endPhase(ctx))

	st := g.stream.State()
	assert.Equal(t, 2, st.RoundNumber)
	assert.Equal(t, state.PhaseGameEnd, st.Phase)
	assert.Nil(t, st.Winner)
}
