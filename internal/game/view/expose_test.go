package view

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gi-tcg/gitcg-server-go/internal/game/dice"
	"github.com/gi-tcg/gitcg-server-go/internal/game/mutation"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

func randomState(r *rand.Rand) *state.GameState {
	g := &state.GameState{Iterators: state.Iterators{ID: 100, Random: r.Uint64()}}
	id := 0
	for w := state.PlayerOne; w <= state.PlayerTwo; w++ {
		p := g.Player(w)
		p.Who = w
		hands, pile, held := r.IntN(8), r.IntN(30), r.IntN(9)
		for i := 0; i < hands; i++ {
			id++
			p.Hands = append(p.Hands, state.CardState{ID: id, DefinitionID: 300 + r.IntN(20)})
		}
		for i := 0; i < pile; i++ {
			id++
			p.Pile = append(p.Pile, state.CardState{ID: id, DefinitionID: 300 + r.IntN(20)})
		}
		p.InitialPile = append([]state.CardState(nil), p.Pile...)
		for i := 0; i < held; i++ {
			p.Dice = append(p.Dice, dice.Type(1+r.IntN(8)))
		}
	}
	return g
}

func TestExposeStateHidesOpponentCards(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	for i := 0; i < 200; i++ {
		g := randomState(r)
		for _, who := range []state.Who{state.PlayerOne, state.PlayerTwo} {
			out := ExposeState(who, g)
			opp := out.Player(who.Opp())
			orig := g.Player(who.Opp())

			require.Len(t, opp.Hands, len(orig.Hands))
			for _, c := range opp.Hands {
				assert.Zero(t, c.DefinitionID)
			}
			require.Len(t, opp.Pile, len(orig.Pile))
			for _, c := range opp.Pile {
				assert.Equal(t, state.CardState{}, c)
			}
			for _, d := range opp.Dice {
				assert.Equal(t, dice.Void, d)
			}
			assert.Zero(t, out.Iterators.Random)

			mine := out.Player(who)
			assert.Equal(t, g.Player(who).Hands, mine.Hands)
			for j := 1; j < len(mine.Pile); j++ {
				assert.LessOrEqual(t, mine.Pile[j-1].DefinitionID, mine.Pile[j].DefinitionID)
				assert.Zero(t, mine.Pile[j].ID)
			}
		}
		// The source state is untouched.
		assert.NotZero(t, g.Iterators.Random)
	}
}

func TestExposeMutationHidesOpponentDraws(t *testing.T) {
	idx := 3
	draw := mutation.MoveCard{Who: state.PlayerTwo, ID: 9, DefinitionID: 311, From: state.ZonePile, To: state.ZoneHands, Reason: mutation.ReasonDraw, TargetIndex: &idx}

	mine, ok := ExposeMutation(state.PlayerTwo, draw)
	require.True(t, ok)
	assert.Equal(t, draw, mine)

	theirs, ok := ExposeMutation(state.PlayerOne, draw)
	require.True(t, ok)
	mc := theirs.(mutation.MoveCard)
	assert.Zero(t, mc.DefinitionID)
	assert.Nil(t, mc.TargetIndex)
	assert.Equal(t, 9, mc.ID)

	play := draw
	play.From, play.To, play.Reason, play.TargetIndex = state.ZoneHands, state.ZoneRemoved, mutation.ReasonPlay, nil
	exposed, _ := ExposeMutation(state.PlayerOne, play)
	assert.Equal(t, 311, exposed.(mutation.MoveCard).DefinitionID, "played cards are public")
}

func TestExposeMutationHidesOwnPile(t *testing.T) {
	created := mutation.CreateCard{Who: state.PlayerOne, Value: state.CardState{ID: 4, DefinitionID: 330}, Target: state.ZonePile}
	for _, viewer := range []state.Who{state.PlayerOne, state.PlayerTwo, state.NoOne} {
		out, ok := ExposeMutation(viewer, created)
		require.True(t, ok)
		cc := out.(mutation.CreateCard)
		assert.Zero(t, cc.Value.DefinitionID)
		assert.Equal(t, 4, cc.Value.ID)
	}

	toHand := created
	toHand.Target = state.ZoneHands
	out, _ := ExposeMutation(state.PlayerOne, toHand)
	assert.Equal(t, 330, out.(mutation.CreateCard).Value.DefinitionID)

	at := 7
	undraw := mutation.MoveCard{Who: state.PlayerOne, ID: 4, DefinitionID: 330, From: state.ZoneHands, To: state.ZonePile, Reason: mutation.ReasonUndraw, TargetIndex: &at}
	mine, _ := ExposeMutation(state.PlayerOne, undraw)
	mc := mine.(mutation.MoveCard)
	assert.Equal(t, 330, mc.DefinitionID, "the owner knows which card went back")
	assert.Nil(t, mc.TargetIndex)
	assert.Equal(t, &at, undraw.TargetIndex)

	theirs, _ := ExposeMutation(state.PlayerTwo, undraw)
	assert.Zero(t, theirs.(mutation.MoveCard).DefinitionID)
	assert.Nil(t, theirs.(mutation.MoveCard).TargetIndex)
}

func TestExposeMutationRedactions(t *testing.T) {
	_, ok := ExposeMutation(state.PlayerOne, mutation.StepRandom{Value: 1})
	assert.False(t, ok)

	rd := mutation.ResetDice{Who: state.PlayerOne, Dice: []dice.Type{dice.Pyro, dice.Omni}}
	out, ok := ExposeMutation(state.PlayerTwo, rd)
	require.True(t, ok)
	assert.Equal(t, []dice.Type{dice.Void, dice.Void}, out.(mutation.ResetDice).Dice)
	assert.Equal(t, []dice.Type{dice.Pyro, dice.Omni}, rd.Dice)

	cc, _ := ExposeMutation(state.PlayerTwo, mutation.CreateCard{Who: state.PlayerOne, Value: state.CardState{ID: 4, DefinitionID: 330}})
	assert.Zero(t, cc.(mutation.CreateCard).Value.DefinitionID)

	done, _ := ExposeMutation(state.PlayerTwo, mutation.SwitchHandsDone{Who: state.PlayerOne, Count: 2})
	assert.Zero(t, done.(mutation.SwitchHandsDone).Count)
	done, _ = ExposeMutation(state.PlayerOne, mutation.SwitchHandsDone{Who: state.PlayerOne, Count: 2})
	assert.Equal(t, 2, done.(mutation.SwitchHandsDone).Count)

	batch := ExposeBatch(state.PlayerOne, []mutation.Mutation{
		mutation.StepRandom{Value: 5},
		mutation.SwitchTurn{},
		mutation.PushDeferred{},
	})
	assert.Equal(t, []mutation.Mutation{mutation.SwitchTurn{}}, batch)
}
