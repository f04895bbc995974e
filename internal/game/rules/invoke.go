package rules

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gi-tcg/gitcg-server-go/internal/game/mutation"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// UseSkill runs an initiative skill of a character. Bursts spend the
// character's energy first; normal and elemental skills charge one energy
// afterwards. The useSkill event is queued on c.
func (c *Context) UseSkill(arg *SkillArg) error {
	if c.sync {
		return fmt.Errorf("%w: use skill", ErrSyncContext)
	}
	skill, ok := c.engine.lib.Skill(arg.SkillID)
	if !ok || skill.Kind != KindInitiative {
		return fmt.Errorf("%w: skill %d", ErrUnknownDefinition, arg.SkillID)
	}
	ch, who, err := c.State().Character(arg.CharacterID)
	if err != nil {
		return err
	}
	if who != arg.Who || !ch.Vars.Alive {
		return fmt.Errorf("rules: %s cannot use skill of character %d", arg.Who, arg.CharacterID)
	}
	arg.SkillType = skill.Type
	if skill.Type == SkillBurst {
		if err := c.SetVar(ch.ID, state.Energy, 0); err != nil {
			return err
		}
	}
	if c.engine.logger != nil {
		c.engine.logger.Debug("use skill",
			zap.String("who", who.String()),
			zap.Int("character", ch.ID),
			zap.Int("skill", skill.ID),
		)
	}
	self := state.Ref{
		Kind:         state.RefCharacter,
		Who:          who,
		ID:           ch.ID,
		DefinitionID: ch.DefinitionID,
		MasterID:     ch.ID,
		Area:         state.Area{Type: state.AreaCharacters, Who: who},
	}
	child := c.engine.newContext(c.ctx, c)
	child.self, child.skill, child.using = self, skill, arg
	if skill.Action != nil {
		if err := skill.Action(child, self, arg); err != nil {
			return fmt.Errorf("skill %d: %w", skill.ID, err)
		}
	}
	if err := child.finish(); err != nil {
		return err
	}
	if err := c.Apply(mutation.SkillUsed{Who: who, CharacterID: ch.ID, SkillID: skill.ID}); err != nil {
		return err
	}
	if skill.Type == SkillNormal || skill.Type == SkillElemental {
		if after, _, err := c.State().Character(ch.ID); err == nil && after.Vars.Alive {
			if err := c.GainEnergy(ch.ID, 1); err != nil {
				return err
			}
		}
	}
	return c.Emit(EventUseSkill, arg)
}

// PlayCard runs the skill of a card that has already left the hand. The
// playCard event is queued on c.
func (c *Context) PlayCard(arg *CardArg) error {
	if c.sync {
		return fmt.Errorf("%w: play card", ErrSyncContext)
	}
	def, ok := c.engine.lib.Card(arg.DefinitionID)
	if !ok {
		return fmt.Errorf("%w: card %d", ErrUnknownDefinition, arg.DefinitionID)
	}
	self := state.Ref{Kind: state.RefCard, Who: arg.Who, ID: arg.CardID, DefinitionID: def.ID}
	if def.Skill != 0 {
		skill, ok := c.engine.lib.Skill(def.Skill)
		if !ok {
			return fmt.Errorf("%w: skill %d of card %d", ErrUnknownDefinition, def.Skill, def.ID)
		}
		child := c.engine.newContext(c.ctx, c)
		child.self, child.skill = self, skill
		if skill.Action != nil {
			if err := skill.Action(child, self, arg); err != nil {
				return fmt.Errorf("card %d: %w", def.ID, err)
			}
		}
		if err := child.finish(); err != nil {
			return err
		}
	}
	return c.Emit(EventPlayCard, arg)
}

// CardPlayable evaluates the filter of a card's skill against arg.
func (e *Engine) CardPlayable(arg *CardArg) bool {
	def, ok := e.lib.Card(arg.DefinitionID)
	if !ok {
		return false
	}
	if def.Skill == 0 {
		return true
	}
	skill, ok := e.lib.Skill(def.Skill)
	if !ok {
		return false
	}
	if skill.Filter == nil {
		return true
	}
	self := state.Ref{Kind: state.RefCard, Who: arg.Who, ID: arg.CardID, DefinitionID: def.ID}
	root := e.newContext(nil, nil)
	return skill.Filter(root.readOnly(self, skill), self, arg)
}

// SkillUsable evaluates the filter of an initiative skill against arg.
func (e *Engine) SkillUsable(arg *SkillArg) bool {
	skill, ok := e.lib.Skill(arg.SkillID)
	if !ok || skill.Kind != KindInitiative {
		return false
	}
	if skill.Filter == nil {
		return true
	}
	g := e.stream.State()
	ch, who, err := g.Character(arg.CharacterID)
	if err != nil {
		return false
	}
	self := state.Ref{Kind: state.RefCharacter, Who: who, ID: ch.ID, DefinitionID: ch.DefinitionID, MasterID: ch.ID}
	root := e.newContext(nil, nil)
	return skill.Filter(root.readOnly(self, skill), self, arg)
}
