package game

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/gi-tcg/gitcg-server-go/internal/game/dice"
	"github.com/gi-tcg/gitcg-server-go/internal/game/mutation"
	"github.com/gi-tcg/gitcg-server-go/internal/game/rpc"
	"github.com/gi-tcg/gitcg-server-go/internal/game/rules"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// run advances the phase state machine one step at a time. Every step ends
// at a resumable pause point.
func (g *Game) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		st := g.stream.State()
		if st.Phase == state.PhaseGameEnd {
			return nil
		}
		var err error
		switch st.Phase {
		case state.PhaseInitHands:
			err = g.initHands(ctx)
		case state.PhaseInitActives:
			err = g.initActives(ctx)
		case state.PhaseRoll:
			err = g.rollPhase(ctx)
		case state.PhaseAction:
			err = g.actionStep(ctx)
		case state.PhaseEnd:
			err = g.endPhase(ctx)
		default:
			err = fmt.Errorf("unknown phase %s", st.Phase)
		}
		if errors.Is(err, rules.ErrGameOver) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := g.pause(true); err != nil {
			return err
		}
	}
}

func (g *Game) initHands(ctx context.Context) error {
	err := g.engine.Run(ctx, func(c *rules.Context) error {
		for _, who := range state.Seats(state.PlayerOne) {
			if err := g.createCharacters(c, who); err != nil {
				return err
			}
			if err := g.createPile(c, who); err != nil {
				return err
			}
		}
		for _, who := range state.Seats(state.PlayerOne) {
			if err := c.DrawCards(who, c.State().Config.InitialHandsCount); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := g.switchHands(ctx); err != nil {
		return err
	}
	return g.engine.Run(ctx, func(c *rules.Context) error {
		return c.Apply(mutation.ChangePhase{Phase: state.PhaseInitActives})
	})
}

func (g *Game) createCharacters(c *rules.Context, who state.Who) error {
	for _, defID := range g.decks[who].Characters {
		def, ok := g.lib.Character(defID)
		if !ok {
			return fmt.Errorf("%w: character %d", rules.ErrUnknownDefinition, defID)
		}
		err := c.Apply(mutation.CreateCharacter{
			Who: who,
			Value: state.CharacterState{
				ID:           c.State().Iterators.ID + 1,
				DefinitionID: defID,
				Vars: state.CharacterVariables{
					Health:    def.MaxHealth,
					MaxHealth: def.MaxHealth,
					MaxEnergy: def.MaxEnergy,
					Alive:     true,
					Custom:    def.Vars.Initial(),
				},
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// createPile shuffles the deck into the pile. Legend cards are not dealt
// differently.
func (g *Game) createPile(c *rules.Context, who state.Who) error {
	cards := slices.Clone(g.decks[who].Cards)
	if limit := c.State().Config.MaxPileCount; len(cards) > limit {
		cards = cards[:limit]
	}
	for i := len(cards) - 1; i > 0; i-- {
		j, err := c.RandomIntN(i + 1)
		if err != nil {
			return err
		}
		cards[i], cards[j] = cards[j], cards[i]
	}
	for _, defID := range cards {
		err := c.Apply(mutation.CreateCard{
			Who:    who,
			Value:  state.CardState{ID: c.State().Iterators.ID + 1, DefinitionID: defID},
			Target: state.ZonePile,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *Game) switchHands(ctx context.Context) error {
	reqs := make(map[state.Who]rpc.Request)
	for _, who := range state.Seats(state.PlayerOne) {
		reqs[who] = rpc.Request{Method: rpc.MethodSwitchHands, Who: who}
	}
	resps, err := g.requestAll(ctx, reqs, func(who state.Who, resp rpc.Response) error {
		p := g.stream.State().Player(who)
		for _, id := range resp.RemovedHands {
			if p.HandIndex(id) < 0 {
				return fmt.Errorf("card %d is not in hand", id)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return g.engine.Run(ctx, func(c *rules.Context) error {
		for _, who := range state.Seats(state.PlayerOne) {
			removed := resps[who].RemovedHands
			for _, id := range removed {
				card, _, err := c.State().Card(who, id)
				if err != nil {
					return err
				}
				at, err := c.RandomIntN(len(c.State().Player(who).Pile) + 1)
				if err != nil {
					return err
				}
				err = c.Apply(mutation.MoveCard{
					Who:          who,
					ID:           id,
					DefinitionID: card.DefinitionID,
					From:         state.ZoneHands,
					To:           state.ZonePile,
					Reason:       mutation.ReasonUndraw,
					TargetIndex:  &at,
				})
				if err != nil {
					return err
				}
			}
			if err := c.DrawCards(who, len(removed)); err != nil {
				return err
			}
			if err := c.Apply(mutation.SwitchHandsDone{Who: who, Count: len(removed)}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (g *Game) initActives(ctx context.Context) error {
	candidates := make(map[state.Who][]int)
	for _, who := range state.Seats(state.PlayerOne) {
		candidates[who] = g.stream.State().Player(who).AliveCharacters()
	}
	chosen, err := decider{g}.ChooseActive(ctx, candidates)
	if err != nil {
		return err
	}
	return g.engine.Run(ctx, func(c *rules.Context) error {
		for _, who := range state.Seats(state.PlayerOne) {
			id := chosen[who]
			if err := c.Apply(mutation.ChooseActiveDone{Who: who, CharacterID: id}); err != nil {
				return err
			}
			if err := c.Apply(mutation.SwitchActive{Who: who, CharacterID: id}); err != nil {
				return err
			}
		}
		if err := c.Apply(mutation.ChangePhase{Phase: state.PhaseRoll}); err != nil {
			return err
		}
		if err := c.Apply(mutation.StepRound{}); err != nil {
			return err
		}
		return c.Emit(rules.EventBattleBegin, &rules.PhaseArg{Round: c.State().RoundNumber})
	})
}

// rollPhase rolls every player's dice, offers the rerolls and opens the
// action phase.
func (g *Game) rollPhase(ctx context.Context) error {
	rerolls := make(map[state.Who]int)
	err := g.engine.Run(ctx, func(c *rules.Context) error {
		if err := c.Emit(rules.EventRoundBegin, &rules.PhaseArg{Round: c.State().RoundNumber}); err != nil {
			return err
		}
		for _, who := range state.Seats(c.State().CurrentTurn) {
			arg := &rules.RollArg{Who: who, RerollTimes: 1}
			if _, err := c.Intercept(rules.EventModifyRoll, arg); err != nil {
				return err
			}
			count := c.State().Config.InitialDiceCount
			fixed := arg.FixedDice
			if len(fixed) > count {
				fixed = fixed[:count]
			}
			random, err := c.RollDice(count - len(fixed))
			if err != nil {
				return err
			}
			if err := c.SetDice(who, append(slices.Clone(fixed), random...), mutation.DiceRoll); err != nil {
				return err
			}
			rerolls[who] = arg.RerollTimes
		}
		return nil
	})
	if err != nil {
		return err
	}
	for round := 0; ; round++ {
		reqs := make(map[state.Who]rpc.Request)
		for who, times := range rerolls {
			if round < times && len(g.stream.State().Player(who).Dice) > 0 {
				reqs[who] = rpc.Request{Method: rpc.MethodRerollDice, Who: who}
			}
		}
		if len(reqs) == 0 {
			break
		}
		if err := g.reroll(ctx, reqs, rerolls); err != nil {
			return err
		}
	}
	return g.engine.Run(ctx, func(c *rules.Context) error {
		if err := c.Apply(mutation.ChangePhase{Phase: state.PhaseAction}); err != nil {
			return err
		}
		return c.Emit(rules.EventActionPhase, &rules.PhaseArg{Round: c.State().RoundNumber})
	})
}

func (g *Game) reroll(ctx context.Context, reqs map[state.Who]rpc.Request, rerolls map[state.Who]int) error {
	resps, err := g.requestAll(ctx, reqs, func(who state.Who, resp rpc.Response) error {
		held := len(g.stream.State().Player(who).Dice)
		for _, idx := range resp.RerollIndexes {
			if idx < 0 || idx >= held {
				return fmt.Errorf("dice index %d out of range", idx)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return g.engine.Run(ctx, func(c *rules.Context) error {
		for _, who := range state.Seats(c.State().CurrentTurn) {
			resp, ok := resps[who]
			if !ok {
				continue
			}
			if len(resp.RerollIndexes) == 0 {
				// Nothing rerolled: no further reroll is offered this round.
				rerolls[who] = 0
			}
			held := c.State().Player(who).Dice
			kept := make([]dice.Type, 0, len(held))
			for i, d := range held {
				if !slices.Contains(resp.RerollIndexes, i) {
					kept = append(kept, d)
				}
			}
			rolled, err := c.RollDice(len(resp.RerollIndexes))
			if err != nil {
				return err
			}
			if len(rolled) > 0 {
				if err := c.SetDice(who, append(kept, rolled...), mutation.DiceReroll); err != nil {
					return err
				}
			}
			if err := c.Apply(mutation.RerollDone{Who: who, Count: len(resp.RerollIndexes)}); err != nil {
				return err
			}
		}
		return nil
	})
}

// actionStep lets the current player do one action. Both players having
// declared the end closes the action phase; the first to declare moves
// first next round.
func (g *Game) actionStep(ctx context.Context) error {
	st := g.stream.State()
	who := st.CurrentTurn
	p, opp := st.Player(who), st.Player(who.Opp())

	if p.DeclaredEnd && opp.DeclaredEnd {
		return g.engine.Run(ctx, func(c *rules.Context) error {
			if err := c.Apply(mutation.SwitchTurn{}); err != nil {
				return err
			}
			return c.Apply(mutation.ChangePhase{Phase: state.PhaseEnd})
		})
	}
	if p.DeclaredEnd {
		return g.engine.Run(ctx, func(c *rules.Context) error {
			return c.Apply(mutation.SwitchTurn{})
		})
	}
	if p.SkipNextTurn {
		return g.engine.Run(ctx, func(c *rules.Context) error {
			if err := c.SetFlag(who, state.FlagSkipNextTurn, false); err != nil {
				return err
			}
			return c.Apply(mutation.SwitchTurn{})
		})
	}

	err := g.engine.Run(ctx, func(c *rules.Context) error {
		return c.SetFlag(who, state.FlagCanCharged, len(c.State().Player(who).Dice)%2 == 0)
	})
	if err != nil {
		return err
	}
	actions, err := g.listActions(ctx, who)
	if err != nil {
		return err
	}
	chosen, used, err := g.askAction(ctx, who, actions)
	if err != nil {
		return err
	}
	if g.logger != nil {
		g.logger.Debug("action",
			zap.String("who", who.String()),
			zap.String("kind", string(chosen.Info.Kind)),
			zap.Int("round", st.RoundNumber),
		)
	}
	return g.engine.Run(ctx, func(c *rules.Context) error {
		fast, err := g.perform(c, who, chosen, used)
		if err != nil {
			return err
		}
		if fast || c.State().Player(who.Opp()).DeclaredEnd {
			return nil
		}
		return c.Apply(mutation.SwitchTurn{})
	})
}

// endPhase resolves the end of the round: endPhase handlers, two draws,
// roundEnd handlers, then duration and usage bookkeeping.
func (g *Game) endPhase(ctx context.Context) error {
	err := g.engine.Run(ctx, func(c *rules.Context) error {
		return c.Emit(rules.EventEndPhase, &rules.PhaseArg{Round: c.State().RoundNumber})
	})
	if err != nil {
		return err
	}
	err = g.engine.Run(ctx, func(c *rules.Context) error {
		for _, who := range state.Seats(c.State().CurrentTurn) {
			if err := c.DrawCards(who, 2); err != nil {
				return err
			}
		}
		return c.Emit(rules.EventRoundEnd, &rules.PhaseArg{Round: c.State().RoundNumber})
	})
	if err != nil {
		return err
	}
	return g.engine.Run(ctx, func(c *rules.Context) error {
		if err := c.RoundEndCleanup(); err != nil {
			return err
		}
		for _, who := range state.Seats(c.State().CurrentTurn) {
			if len(c.State().Player(who).Dice) > 0 {
				if err := c.SetDice(who, nil, mutation.DiceConsume); err != nil {
					return err
				}
			}
			for _, f := range []state.PlayerFlag{state.FlagDeclaredEnd, state.FlagCanPlunging, state.FlagHasDefeated} {
				if err := c.SetFlag(who, f, false); err != nil {
					return err
				}
			}
			if len(c.State().Player(who).SkillLog) > 0 {
				if err := c.Apply(mutation.ClearSkillLog{Who: who}); err != nil {
					return err
				}
			}
		}
		if err := c.Apply(mutation.StepRound{}); err != nil {
			return err
		}
		if c.State().RoundNumber >= c.State().Config.MaxRoundsCount {
			if g.logger != nil {
				g.logger.Info("round limit reached", zap.Int("round", c.State().RoundNumber))
			}
			return c.Apply(mutation.ChangePhase{Phase: state.PhaseGameEnd})
		}
		return c.Apply(mutation.ChangePhase{Phase: state.PhaseRoll})
	})
}
