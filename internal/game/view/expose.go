// Package view projects game state and mutations onto what one player is
// allowed to see.
package view

import (
	"slices"

	"github.com/gi-tcg/gitcg-server-go/internal/game/dice"
	"github.com/gi-tcg/gitcg-server-go/internal/game/mutation"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// ExposeState returns a redacted copy of g for viewer. The opponent's hand
// and pile identities, every pile order, the opponent's dice faces and the
// random cursor are removed. A viewer of NoOne sees both sides redacted.
func ExposeState(viewer state.Who, g *state.GameState) *state.GameState {
	out := g.Clone()
	out.Iterators.Random = 0
	out.Config.RandomSeed = 0
	out.Deferred = nil
	for i := range out.Players {
		p := &out.Players[i]
		if p.Who == viewer {
			p.Pile = sortedPile(p.Pile)
			p.InitialPile = sortedPile(p.InitialPile)
			continue
		}
		p.Pile = placeholders(p.Pile)
		p.InitialPile = placeholders(p.InitialPile)
		for j := range p.Hands {
			p.Hands[j].DefinitionID = 0
		}
		for j := range p.Dice {
			p.Dice[j] = dice.Void
		}
		p.RemovedEntities = nil
	}
	return out
}

// sortedPile keeps the contents of a pile but not its order.
func sortedPile(cards []state.CardState) []state.CardState {
	if cards == nil {
		return nil
	}
	out := make([]state.CardState, len(cards))
	for i, c := range cards {
		out[i] = state.CardState{DefinitionID: c.DefinitionID}
	}
	slices.SortFunc(out, func(a, b state.CardState) int { return a.DefinitionID - b.DefinitionID })
	return out
}

func placeholders(cards []state.CardState) []state.CardState {
	if cards == nil {
		return nil
	}
	return make([]state.CardState, len(cards))
}

// hiddenCardMoves are the opponent card moves whose card identity is secret.
var hiddenCardMoves = map[mutation.MoveReason]bool{
	mutation.ReasonDraw:            true,
	mutation.ReasonUndraw:          true,
	mutation.ReasonOverflow:        true,
	mutation.ReasonElementalTuning: true,
}

// ExposeMutation returns the form of m that viewer may see. The boolean is
// false for bookkeeping mutations that are not sent at all.
func ExposeMutation(viewer state.Who, m mutation.Mutation) (mutation.Mutation, bool) {
	switch m := m.(type) {
	case mutation.StepRandom,
		mutation.SkillUsed,
		mutation.ClearSkillLog,
		mutation.ClearRemovedEntities,
		mutation.SetExtensionState,
		mutation.PushDeferred,
		mutation.ClearDeferred:
		return nil, false
	case mutation.MoveCard:
		// No one learns where a card lands in a pile.
		if m.To == state.ZonePile {
			m.TargetIndex = nil
		}
		if m.Who != viewer && (hiddenCardMoves[m.Reason] || m.To == state.ZonePile) {
			m.DefinitionID = 0
			m.TargetIndex = nil
		}
		return m, true
	case mutation.CreateCard:
		if m.Who != viewer || m.Target == state.ZonePile {
			m.Value.DefinitionID = 0
			m.TargetIndex = nil
		}
		return m, true
	case mutation.ResetDice:
		if m.Who != viewer {
			hidden := make([]dice.Type, len(m.Dice))
			for i := range hidden {
				hidden[i] = dice.Void
			}
			m.Dice = hidden
		} else {
			m.Dice = slices.Clone(m.Dice)
		}
		return m, true
	case mutation.RerollDone:
		if m.Who != viewer {
			m.Count = 0
		}
		return m, true
	case mutation.SwitchHandsDone:
		if m.Who != viewer {
			m.Count = 0
		}
		return m, true
	case mutation.ChooseActiveDone:
		if m.Who != viewer {
			m.CharacterID = 0
		}
		return m, true
	case mutation.SelectCardDone:
		if m.Who != viewer {
			m.DefinitionID = 0
		}
		return m, true
	}
	return m, true
}

// ExposeBatch filters a batch of mutations for viewer.
func ExposeBatch(viewer state.Who, batch []mutation.Mutation) []mutation.Mutation {
	out := make([]mutation.Mutation, 0, len(batch))
	for _, m := range batch {
		if exposed, ok := ExposeMutation(viewer, m); ok {
			out = append(out, exposed)
		}
	}
	return out
}
