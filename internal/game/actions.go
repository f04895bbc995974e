package game

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/gi-tcg/gitcg-server-go/internal/game/dice"
	"github.com/gi-tcg/gitcg-server-go/internal/game/mutation"
	"github.com/gi-tcg/gitcg-server-go/internal/game/rpc"
	"github.com/gi-tcg/gitcg-server-go/internal/game/rules"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// action pairs the unmodified description of an action with the one shown
// to the player, after modifyAction handlers and validity checks.
type action struct {
	base rpc.ActionInfo
	Info rpc.ActionInfo
}

var switchCost = dice.Requirement{{Type: dice.Void, Count: 1}}

// listActions enumerates every action of who and annotates it on a preview
// engine.
func (g *Game) listActions(ctx context.Context, who state.Who) ([]action, error) {
	base := g.baseActions(who)
	out := make([]action, 0, len(base))
	for _, info := range base {
		annotated, err := g.annotate(ctx, info)
		if err != nil {
			return nil, err
		}
		out = append(out, action{base: info, Info: annotated})
	}
	return out, nil
}

func (g *Game) baseActions(who state.Who) []rpc.ActionInfo {
	st := g.stream.State()
	p := st.Player(who)
	var out []rpc.ActionInfo

	if active := p.ActiveCharacter(); active != nil && active.Vars.Alive {
		if def, ok := g.lib.Character(active.DefinitionID); ok {
			for _, id := range def.Skills {
				skill, ok := g.lib.Skill(id)
				if !ok || skill.Kind != rules.KindInitiative {
					continue
				}
				out = append(out, rpc.ActionInfo{
					Kind:        rpc.ActionUseSkill,
					Who:         who,
					CharacterID: active.ID,
					SkillID:     id,
					Cost:        skill.Cost.Clone(),
				})
			}
		}
	}

	for _, card := range p.Hands {
		def, ok := g.lib.Card(card.DefinitionID)
		if !ok {
			continue
		}
		for _, targets := range cardTargets(st, who, def.Target) {
			out = append(out, rpc.ActionInfo{
				Kind:             rpc.ActionPlayCard,
				Who:              who,
				CardID:           card.ID,
				CardDefinitionID: def.ID,
				Targets:          targets,
				Cost:             def.Cost.Clone(),
				Fast:             !def.HasTag(state.TagAction),
			})
		}
	}

	for _, id := range p.AliveCharacters() {
		if id == p.ActiveCharacterID {
			continue
		}
		out = append(out, rpc.ActionInfo{
			Kind:        rpc.ActionSwitchActive,
			Who:         who,
			CharacterID: id,
			Cost:        switchCost.Clone(),
		})
	}

	for _, card := range p.Hands {
		out = append(out, rpc.ActionInfo{
			Kind:             rpc.ActionElementalTuning,
			Who:              who,
			CardID:           card.ID,
			CardDefinitionID: card.DefinitionID,
			Cost:             switchCost.Clone(),
			Fast:             true,
		})
	}

	return append(out, rpc.ActionInfo{Kind: rpc.ActionDeclareEnd, Who: who})
}

// cardTargets lists the target sets a card can be played with.
func cardTargets(st *state.GameState, who state.Who, kind state.TargetKind) [][]int {
	var ids []int
	switch kind {
	case state.TargetNone:
		return [][]int{nil}
	case state.TargetMyCharacter:
		ids = st.Player(who).AliveCharacters()
	case state.TargetOppCharacter:
		ids = st.Player(who.Opp()).AliveCharacters()
	case state.TargetMySummon:
		for _, e := range st.Player(who).Summons {
			ids = append(ids, e.ID)
		}
	}
	out := make([][]int, 0, len(ids))
	for _, id := range ids {
		out = append(out, []int{id})
	}
	return out
}

// annotate runs modifyAction for info on a fork, then decides validity and
// a suggested payment.
func (g *Game) annotate(ctx context.Context, info rpc.ActionInfo) (rpc.ActionInfo, error) {
	info.Cost = info.Cost.Clone()
	if info.Kind == rpc.ActionDeclareEnd {
		info.Valid = true
		return info, nil
	}
	fork := g.engine.Fork()
	allowed := true
	err := fork.Run(ctx, func(c *rules.Context) error {
		ok, err := c.Intercept(rules.EventModifyAction, &rules.ActionArg{Action: &info})
		allowed = ok
		return err
	})
	if err != nil && !errors.Is(err, rules.ErrNoDecider) && !errors.Is(err, rules.ErrGameOver) {
		return info, fmt.Errorf("annotate %s: %w", info.Kind, err)
	}
	if !allowed {
		return info, nil
	}

	st := g.stream.State()
	p := st.Player(info.Who)
	opts := rules.DiceOptions(g.lib, st, info.Who)
	switch info.Kind {
	case rpc.ActionElementalTuning:
		info.AutoDice = tuningDie(p.Dice, opts)
		info.Valid = info.AutoDice != nil
		return info, nil
	case rpc.ActionUseSkill:
		ch := p.Character(info.CharacterID)
		if ch == nil || ch.Vars.Energy < info.Cost.Energy() {
			return info, nil
		}
		if !g.engine.SkillUsable(skillArg(info, p)) {
			return info, nil
		}
	case rpc.ActionPlayCard:
		def, ok := g.lib.Card(info.CardDefinitionID)
		if !ok || (def.HasTag(state.TagLegend) && p.LegendUsed) {
			return info, nil
		}
		if !g.engine.CardPlayable(cardArg(info)) {
			return info, nil
		}
	}
	if info.Cost.DiceCount() > 0 {
		sel := dice.ChooseDice(info.Cost, p.Dice, opts)
		if sel.Count() == 0 {
			return info, nil
		}
		info.AutoDice = sel.Dice(p.Dice)
	}
	info.Valid = true
	return info, nil
}

// tuningDie picks the cheapest die that can be converted, nil if none.
func tuningDie(held []dice.Type, opts dice.Options) []dice.Type {
	sorted := dice.SortDice(held, opts)
	for i := len(sorted) - 1; i >= 0; i-- {
		d := sorted[i]
		if d != dice.Omni && d != opts.Active {
			return []dice.Type{d}
		}
	}
	return nil
}

func skillArg(info rpc.ActionInfo, p *state.PlayerState) *rules.SkillArg {
	return &rules.SkillArg{
		Who:         info.Who,
		CharacterID: info.CharacterID,
		SkillID:     info.SkillID,
		Charged:     p.CanCharged,
		Plunging:    p.CanPlunging,
		Targets:     info.Targets,
	}
}

func cardArg(info rpc.ActionInfo) *rules.CardArg {
	return &rules.CardArg{
		Who:          info.Who,
		CardID:       info.CardID,
		DefinitionID: info.CardDefinitionID,
		Targets:      info.Targets,
	}
}

// askAction asks who to pick one of the valid actions and the dice to pay
// with.
func (g *Game) askAction(ctx context.Context, who state.Who, actions []action) (action, []dice.Type, error) {
	if err := g.pause(false); err != nil {
		return action{}, nil, err
	}
	infos := make([]rpc.ActionInfo, len(actions))
	for i, a := range actions {
		infos[i] = a.Info
	}
	req := rpc.Request{Method: rpc.MethodAction, Who: who, Actions: infos}
	resp, err := g.request(ctx, who, req, func(who state.Who, resp rpc.Response) error {
		return g.checkPayment(who, infos[resp.ChosenActionIndex], resp.UsedDice)
	})
	if err != nil {
		return action{}, nil, err
	}
	return actions[resp.ChosenActionIndex], resp.UsedDice, nil
}

// checkPayment verifies the dice a player offered for an action.
func (g *Game) checkPayment(who state.Who, info rpc.ActionInfo, used []dice.Type) error {
	st := g.stream.State()
	p := st.Player(who)
	if !dice.Contains(p.Dice, used) {
		return errors.New("used dice are not held")
	}
	switch info.Kind {
	case rpc.ActionDeclareEnd:
		if len(used) > 0 {
			return errors.New("declaring the end costs no dice")
		}
	case rpc.ActionElementalTuning:
		active := rules.DiceOptions(g.lib, st, who).Active
		if len(used) != 1 || used[0] == dice.Omni || used[0] == active {
			return fmt.Errorf("cannot tune %v", used)
		}
	default:
		if !dice.CheckDice(info.Cost, used) {
			return fmt.Errorf("dice %v do not pay %s", used, info.Cost)
		}
	}
	return nil
}

// perform carries out a chosen action and reports whether it was fast.
func (g *Game) perform(c *rules.Context, who state.Who, a action, used []dice.Type) (bool, error) {
	info := a.base
	info.Cost = info.Cost.Clone()
	if info.Kind != rpc.ActionDeclareEnd {
		if _, err := c.Intercept(rules.EventModifyAction, &rules.ActionArg{Action: &info}); err != nil {
			return false, err
		}
	}
	done := &rules.ActionDoneArg{Who: who, Kind: info.Kind, CharacterID: info.CharacterID, SkillID: info.SkillID, CardID: info.CardID}

	switch info.Kind {
	case rpc.ActionUseSkill:
		p := c.State().Player(who)
		arg := skillArg(info, p)
		if err := c.PayDice(who, used); err != nil {
			return false, err
		}
		if err := c.UseSkill(arg); err != nil {
			return false, err
		}
		if err := c.SetFlag(who, state.FlagCanPlunging, false); err != nil {
			return false, err
		}
	case rpc.ActionPlayCard:
		def, ok := g.lib.Card(info.CardDefinitionID)
		if !ok {
			return false, fmt.Errorf("%w: card %d", rules.ErrUnknownDefinition, info.CardDefinitionID)
		}
		if err := c.PayDice(who, used); err != nil {
			return false, err
		}
		err := c.Apply(mutation.MoveCard{
			Who:          who,
			ID:           info.CardID,
			DefinitionID: def.ID,
			From:         state.ZoneHands,
			To:           state.ZoneRemoved,
			Reason:       mutation.ReasonPlay,
		})
		if err != nil {
			return false, err
		}
		if def.HasTag(state.TagLegend) {
			if err := c.SetFlag(who, state.FlagLegendUsed, true); err != nil {
				return false, err
			}
		}
		if err := c.PlayCard(cardArg(info)); err != nil {
			return false, err
		}
		if err := c.SetFlag(who, state.FlagCanPlunging, false); err != nil {
			return false, err
		}
	case rpc.ActionSwitchActive:
		if err := c.PayDice(who, used); err != nil {
			return false, err
		}
		if err := c.SwitchByAction(who, info.CharacterID); err != nil {
			return false, err
		}
		if err := c.SetFlag(who, state.FlagCanPlunging, true); err != nil {
			return false, err
		}
	case rpc.ActionElementalTuning:
		err := c.Apply(mutation.MoveCard{
			Who:          who,
			ID:           info.CardID,
			DefinitionID: info.CardDefinitionID,
			From:         state.ZoneHands,
			To:           state.ZoneRemoved,
			Reason:       mutation.ReasonElementalTuning,
		})
		if err != nil {
			return false, err
		}
		rest, ok := dice.Remove(c.State().Player(who).Dice, used)
		if !ok {
			return false, fmt.Errorf("tuning: dice %v not held", used)
		}
		active := c.Options(who).Active
		if err := c.SetDice(who, append(slices.Clone(rest), active), mutation.DiceElementalTuning); err != nil {
			return false, err
		}
	case rpc.ActionDeclareEnd:
		if err := c.SetFlag(who, state.FlagDeclaredEnd, true); err != nil {
			return false, err
		}
	default:
		return false, fmt.Errorf("unknown action %q", info.Kind)
	}
	if err := c.Emit(rules.EventAction, done); err != nil {
		return false, err
	}
	return info.Fast, nil
}
