package rules

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/gi-tcg/gitcg-server-go/internal/game/dice"
	"github.com/gi-tcg/gitcg-server-go/internal/game/mutation"
	"github.com/gi-tcg/gitcg-server-go/internal/game/reaction"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// Active returns who's active character.
func (c *Context) Active(who state.Who) *state.CharacterState {
	return c.State().Player(who).ActiveCharacter()
}

// Character returns a character by id.
func (c *Context) Character(id int) (*state.CharacterState, state.Who, error) {
	return c.State().Character(id)
}

// Entity returns an entity by id.
func (c *Context) Entity(id int) (*state.EntityState, state.Area, error) {
	return c.State().Entity(id)
}

// Random advances the game's random sequence and returns the new value.
func (c *Context) Random() (uint64, error) {
	v := mutation.NextRandom(c.State().Iterators.Random)
	if err := c.Apply(mutation.StepRandom{Value: v}); err != nil {
		return 0, err
	}
	return v, nil
}

// RandomIntN returns a value in [0, n).
func (c *Context) RandomIntN(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("rules: random bound %d", n)
	}
	v, err := c.Random()
	if err != nil {
		return 0, err
	}
	return int(v % uint64(n)), nil
}

// RollDice draws n random dice faces, omni included.
func (c *Context) RollDice(n int) ([]dice.Type, error) {
	out := make([]dice.Type, 0, n)
	for i := 0; i < n; i++ {
		v, err := c.Random()
		if err != nil {
			return nil, err
		}
		out = append(out, dice.Type(v%8+1))
	}
	return out, nil
}

// SetDice replaces who's dice, capped and sorted.
func (c *Context) SetDice(who state.Who, held []dice.Type, reason mutation.DiceReason) error {
	held = slices.Clone(held)
	if limit := c.State().Config.MaxDiceCount; len(held) > limit {
		held = held[:limit]
	}
	return c.Apply(mutation.ResetDice{Who: who, Dice: dice.SortDice(held, c.Options(who)), Reason: reason})
}

// GenerateDice adds dice to who's pool.
func (c *Context) GenerateDice(who state.Who, types ...dice.Type) error {
	held := append(slices.Clone(c.State().Player(who).Dice), types...)
	return c.SetDice(who, held, mutation.DiceGenerate)
}

// AbsorbDice removes up to n dice, least valuable first.
func (c *Context) AbsorbDice(who state.Who, n int) error {
	held := dice.SortDice(c.State().Player(who).Dice, c.Options(who))
	n = min(n, len(held))
	if n == 0 {
		return nil
	}
	return c.SetDice(who, held[:len(held)-n], mutation.DiceAbsorb)
}

// PayDice removes the used dice from who's pool.
func (c *Context) PayDice(who state.Who, used []dice.Type) error {
	if len(used) == 0 {
		return nil
	}
	rest, ok := dice.Remove(c.State().Player(who).Dice, used)
	if !ok {
		return fmt.Errorf("rules: %s does not hold %v", who, used)
	}
	return c.SetDice(who, rest, mutation.DiceConsume)
}

// Damage deals damage from the running skill's carrier.
func (c *Context) Damage(targetID int, typ reaction.DamageType, value int) error {
	arg := &DamageArg{
		SourceID:          c.self.ID,
		SourceWho:         c.self.Who,
		SourceCharacterID: c.self.MasterID,
		SkillID:           c.SkillID(),
		TargetID:          targetID,
		Type:              typ,
		Value:             value,
	}
	if c.using != nil && c.using.SkillType == SkillNormal {
		arg.Charged, arg.Plunging = c.using.Charged, c.using.Plunging
	}
	return c.DealDamage(arg)
}

// DealDamage runs the full damage pipeline for arg: type, increase,
// multiply and decrease stages (skipped for piercing), the reaction lookup,
// the damage and aura mutations, then reaction side effects.
func (c *Context) DealDamage(arg *DamageArg) error {
	if c.sync {
		return fmt.Errorf("%w: damage", ErrSyncContext)
	}
	if arg.Type == reaction.Heal {
		return fmt.Errorf("rules: heal dealt as damage")
	}
	g := c.State()
	ch, who, err := g.Character(arg.TargetID)
	if err != nil {
		return fmt.Errorf("damage target: %w", err)
	}
	if !ch.Vars.Alive {
		return nil
	}
	arg.TargetWho = who
	arg.OldAura = ch.Vars.Aura

	var tr reaction.Transition
	elemental := false
	if arg.Type != reaction.Piercing {
		ok, err := c.Intercept(EventModifyDamageType, arg)
		if err != nil || !ok {
			return err
		}
		if arg.Type == reaction.Heal || arg.Type == reaction.Piercing {
			return fmt.Errorf("rules: damage type changed to %s", arg.Type)
		}
		if arg.Type.IsElemental() {
			if arg.OldAura, err = c.aura(arg.TargetID); err != nil {
				return err
			}
			tr, err = reaction.Lookup(arg.OldAura, arg.Type)
			if err != nil {
				return fmt.Errorf("reaction lookup: %w", err)
			}
			elemental = true
			arg.Reaction = tr.Reaction
			arg.Value += reaction.DamageBonus(tr.Reaction)
		}
		for _, stage := range []EventType{EventModifyDamageAdd, EventModifyDamageMul, EventModifyDamageSub} {
			ok, err := c.Intercept(stage, arg)
			if err != nil || !ok {
				return err
			}
		}
		// A modifier may have changed the target's aura; react with what
		// is there now.
		if elemental {
			aura, err := c.aura(arg.TargetID)
			if err != nil {
				return err
			}
			if aura != arg.OldAura {
				next, err := reaction.Lookup(aura, arg.Type)
				if err != nil {
					return fmt.Errorf("reaction lookup: %w", err)
				}
				arg.Value += reaction.DamageBonus(next.Reaction) - reaction.DamageBonus(tr.Reaction)
				arg.OldAura, arg.Reaction, tr = aura, next.Reaction, next
			}
		}
	}
	arg.Value = max(arg.Value, 0)

	if err := c.Apply(mutation.Damage{
		SourceID:   arg.SourceID,
		TargetID:   arg.TargetID,
		DamageType: arg.Type,
		Value:      arg.Value,
		Reaction:   arg.Reaction,
	}); err != nil {
		return err
	}
	if elemental {
		if err := c.Apply(mutation.ApplyAura{
			TargetID: arg.TargetID,
			Element:  arg.Type,
			OldAura:  arg.OldAura,
			NewAura:  tr.Next,
			Reaction: tr.Reaction,
		}); err != nil {
			return err
		}
	}
	if err := c.Emit(EventDamage, arg); err != nil {
		return err
	}
	if arg.Reaction == reaction.None {
		return nil
	}
	if err := c.Emit(EventReaction, &ReactionArg{Reaction: arg.Reaction, Damage: arg}); err != nil {
		return err
	}
	return c.reactionSideEffects(arg)
}

func (c *Context) aura(id int) (reaction.Aura, error) {
	ch, _, err := c.State().Character(id)
	if err != nil {
		return reaction.AuraNone, fmt.Errorf("damage target: %w", err)
	}
	return ch.Vars.Aura, nil
}

func (c *Context) reactionSideEffects(arg *DamageArg) error {
	p := c.State().Player(arg.TargetWho)
	var others []int
	for _, ch := range p.CharactersFromActive() {
		if ch.ID != arg.TargetID && ch.Vars.Alive {
			others = append(others, ch.ID)
		}
	}
	spread := func(typ reaction.DamageType) error {
		for _, id := range others {
			err := c.DealDamage(&DamageArg{
				SourceID:          arg.SourceID,
				SourceWho:         arg.SourceWho,
				SourceCharacterID: arg.SourceCharacterID,
				SkillID:           arg.SkillID,
				TargetID:          id,
				Type:              typ,
				Value:             1,
			})
			if err != nil {
				return err
			}
		}
		return nil
	}
	switch arg.Reaction {
	case reaction.Superconduct, reaction.ElectroCharged:
		return spread(reaction.Piercing)
	case reaction.Overloaded:
		if p.ActiveCharacterID != arg.TargetID {
			return nil
		}
		if next := nextAlive(p, arg.TargetID); next != 0 {
			return c.switchActive(arg.TargetWho, next, false)
		}
		return nil
	}
	if element, ok := reaction.SwirlElement(arg.Reaction); ok {
		return spread(element)
	}
	return nil
}

func nextAlive(p *state.PlayerState, from int) int {
	n := len(p.Characters)
	start := p.CharacterIndex(from)
	for i := 1; i < n; i++ {
		ch := p.Characters[(start+i)%n]
		if ch.Vars.Alive {
			return ch.ID
		}
	}
	return 0
}

// ApplyElement applies an element without dealing damage.
func (c *Context) ApplyElement(targetID int, element reaction.DamageType) error {
	ch, who, err := c.State().Character(targetID)
	if err != nil {
		return err
	}
	if !ch.Vars.Alive {
		return nil
	}
	tr, err := reaction.Lookup(ch.Vars.Aura, element)
	if err != nil {
		return err
	}
	old := ch.Vars.Aura
	if err := c.Apply(mutation.ApplyAura{TargetID: targetID, Element: element, OldAura: old, NewAura: tr.Next, Reaction: tr.Reaction}); err != nil {
		return err
	}
	if tr.Reaction == reaction.None {
		return nil
	}
	arg := &DamageArg{
		SourceID:          c.self.ID,
		SourceWho:         c.self.Who,
		SourceCharacterID: c.self.MasterID,
		TargetID:          targetID,
		TargetWho:         who,
		Type:              element,
		OldAura:           old,
		Reaction:          tr.Reaction,
	}
	return c.Emit(EventReaction, &ReactionArg{Reaction: tr.Reaction, Damage: arg})
}

// Heal restores health to a living character.
func (c *Context) Heal(targetID, value int) error {
	if c.sync {
		return fmt.Errorf("%w: heal", ErrSyncContext)
	}
	ch, who, err := c.State().Character(targetID)
	if err != nil {
		return fmt.Errorf("heal target: %w", err)
	}
	if !ch.Vars.Alive {
		return nil
	}
	arg := &HealArg{SourceID: c.self.ID, TargetID: targetID, TargetWho: who, Value: value}
	ok, err := c.Intercept(EventModifyHeal, arg)
	if err != nil || !ok {
		return err
	}
	arg.Value = max(arg.Value, 0)
	if err := c.Apply(mutation.Damage{SourceID: arg.SourceID, TargetID: targetID, DamageType: reaction.Heal, Value: arg.Value}); err != nil {
		return err
	}
	return c.Emit(EventHeal, arg)
}

// Revive brings a defeated character back with the given health.
func (c *Context) Revive(targetID, health int) error {
	ch, who, err := c.State().Character(targetID)
	if err != nil {
		return err
	}
	if ch.Vars.Alive {
		return nil
	}
	health = min(max(health, 1), ch.Vars.MaxHealth)
	if err := c.Apply(mutation.ModifyVar{ID: targetID, Var: state.Alive, Value: 1}); err != nil {
		return err
	}
	if err := c.Apply(mutation.ModifyVar{ID: targetID, Var: state.Health, Value: health}); err != nil {
		return err
	}
	return c.Emit(EventRevive, &CharacterArg{Who: who, CharacterID: targetID})
}

// GainEnergy adds energy to a character, up to its maximum.
func (c *Context) GainEnergy(characterID, n int) error {
	ch, _, err := c.State().Character(characterID)
	if err != nil {
		return err
	}
	next := min(max(ch.Vars.Energy+n, 0), ch.Vars.MaxEnergy)
	if next == ch.Vars.Energy {
		return nil
	}
	return c.Apply(mutation.ModifyVar{ID: characterID, Var: state.Energy, Value: next})
}

// SetVar sets a variable of a character or entity.
func (c *Context) SetVar(id int, v state.Var, value int) error {
	return c.Apply(mutation.ModifyVar{ID: id, Var: v, Value: value})
}

// Var reads a variable of a character or entity.
func (c *Context) Var(id int, v state.Var) (int, error) {
	g := c.State()
	if ch, _, err := g.Character(id); err == nil {
		return ch.Vars.Get(v)
	}
	e, _, err := g.Entity(id)
	if err != nil {
		return 0, err
	}
	return e.Vars.Get(v)
}

// AddVar adds delta to a variable.
func (c *Context) AddVar(id int, v state.Var, delta int) error {
	cur, err := c.Var(id, v)
	if err != nil {
		return err
	}
	return c.SetVar(id, v, cur+delta)
}

// CreateEntity creates an entity in area. An entity of the same definition
// already there is refreshed instead. Full summon and support zones reject
// the entity and 0 is returned.
func (c *Context) CreateEntity(definitionID int, area state.Area) (int, error) {
	def, ok := c.engine.lib.Entity(definitionID)
	if !ok {
		return 0, fmt.Errorf("%w: entity %d", ErrUnknownDefinition, definitionID)
	}
	g := c.State()
	list, err := g.EntityList(area)
	if err != nil {
		return 0, err
	}
	for _, e := range *list {
		if e.DefinitionID != definitionID {
			continue
		}
		return e.ID, c.refresh(e, def)
	}
	switch area.Type {
	case state.AreaSummons:
		if len(*list) >= g.Config.MaxSummonsCount {
			return 0, nil
		}
	case state.AreaSupports:
		if len(*list) >= g.Config.MaxSupportsCount {
			return 0, nil
		}
	}
	id := g.Iterators.ID + 1
	if err := c.Apply(mutation.CreateEntity{
		Where: area,
		Value: state.EntityState{ID: id, DefinitionID: definitionID, Vars: def.InitialVars()},
	}); err != nil {
		return 0, err
	}
	return id, c.Emit(EventEnter, &EntityArg{Who: area.Who, EntityID: id, DefinitionID: definitionID, MasterID: area.CharacterID, Area: area})
}

func (c *Context) refresh(e state.EntityState, def *state.EntityDefinition) error {
	updates := []struct {
		v       state.Var
		cur, to int
	}{
		{state.Usage, e.Vars.Usage, def.Usage},
		{state.Duration, e.Vars.Duration, def.Duration},
		{state.Shield, e.Vars.Shield, def.Shield},
	}
	for _, u := range updates {
		if u.to > u.cur {
			if err := c.SetVar(e.ID, u.v, u.to); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddStatus attaches a status to a character.
func (c *Context) AddStatus(characterID, definitionID int) (int, error) {
	_, who, err := c.State().Character(characterID)
	if err != nil {
		return 0, err
	}
	return c.CreateEntity(definitionID, state.Area{Type: state.AreaCharacter, Who: who, CharacterID: characterID})
}

// AddCombatStatus creates a combat status for who.
func (c *Context) AddCombatStatus(who state.Who, definitionID int) (int, error) {
	return c.CreateEntity(definitionID, state.Area{Type: state.AreaCombatStatuses, Who: who})
}

// Summon creates a summon for who.
func (c *Context) Summon(who state.Who, definitionID int) (int, error) {
	return c.CreateEntity(definitionID, state.Area{Type: state.AreaSummons, Who: who})
}

// Dispose removes an entity from the game.
func (c *Context) Dispose(entityID int) error {
	e, area, err := c.State().Entity(entityID)
	if err != nil {
		return err
	}
	arg := &EntityArg{Who: area.Who, EntityID: e.ID, DefinitionID: e.DefinitionID, MasterID: area.CharacterID, Area: area}
	if err := c.Apply(mutation.RemoveEntity{ID: entityID}); err != nil {
		return err
	}
	return c.Emit(EventDispose, arg)
}

// ConsumeUsage lowers an entity's usage and disposes it when used up and its
// definition asks for it.
func (c *Context) ConsumeUsage(entityID, n int) error {
	e, _, err := c.State().Entity(entityID)
	if err != nil {
		return err
	}
	next := max(e.Vars.Usage-n, 0)
	if err := c.SetVar(entityID, state.Usage, next); err != nil {
		return err
	}
	def, ok := c.engine.lib.Entity(e.DefinitionID)
	if ok && next == 0 && def.DisposeWhenUsedUp {
		return c.Dispose(entityID)
	}
	return nil
}

// RoundEndCleanup decrements durations, disposing expired entities, and
// restores per-round usages.
func (c *Context) RoundEndCleanup() error {
	for _, ref := range c.State().AllRefs() {
		if ref.Kind != state.RefEntity {
			continue
		}
		e, _, err := c.State().Entity(ref.ID)
		if err != nil {
			continue
		}
		def, ok := c.engine.lib.Entity(e.DefinitionID)
		if !ok {
			return fmt.Errorf("%w: entity %d", ErrUnknownDefinition, e.DefinitionID)
		}
		if def.UsagePerRound > 0 && e.Vars.UsagePerRound != def.UsagePerRound {
			if err := c.SetVar(e.ID, state.UsagePerRound, def.UsagePerRound); err != nil {
				return err
			}
		}
		if def.Duration > 0 {
			if e.Vars.Duration <= 1 {
				if err := c.Dispose(e.ID); err != nil {
					return err
				}
				continue
			}
			if err := c.SetVar(e.ID, state.Duration, e.Vars.Duration-1); err != nil {
				return err
			}
		}
	}
	return nil
}

// Transform swaps the definition of a character or entity in place.
func (c *Context) Transform(id, newDefinitionID int) error {
	return c.Apply(mutation.TransformDefinition{ID: id, NewDefinitionID: newDefinitionID})
}

// SetFlag sets a player flag if it changes.
func (c *Context) SetFlag(who state.Who, flag state.PlayerFlag, value bool) error {
	if c.State().Player(who).Flag(flag) == value {
		return nil
	}
	return c.Apply(mutation.SetPlayerFlag{Who: who, Flag: flag, Value: value})
}

// SwitchActive makes another living character of who active.
func (c *Context) SwitchActive(who state.Who, characterID int) error {
	return c.switchActive(who, characterID, false)
}

// SwitchByAction is the player's switch action.
func (c *Context) SwitchByAction(who state.Who, characterID int) error {
	return c.switchActive(who, characterID, true)
}

func (c *Context) switchActive(who state.Who, to int, fromAction bool) error {
	p := c.State().Player(who)
	ch := p.Character(to)
	if ch == nil || !ch.Vars.Alive {
		return fmt.Errorf("rules: cannot switch %s to %d", who, to)
	}
	from := p.ActiveCharacterID
	if from == to {
		return nil
	}
	if err := c.Apply(mutation.SwitchActive{Who: who, CharacterID: to}); err != nil {
		return err
	}
	return c.Emit(EventSwitchActive, &SwitchArg{Who: who, From: from, To: to, FromAction: fromAction})
}

// DrawCards moves cards from the top of who's pile to the hand. Cards drawn
// into a full hand are discarded.
func (c *Context) DrawCards(who state.Who, n int) error {
	for i := 0; i < n; i++ {
		g := c.State()
		p := g.Player(who)
		if len(p.Pile) == 0 {
			return nil
		}
		top := p.Pile[0]
		m := mutation.MoveCard{Who: who, ID: top.ID, DefinitionID: top.DefinitionID, From: state.ZonePile, To: state.ZoneHands, Reason: mutation.ReasonDraw}
		if len(p.Hands) >= g.Config.MaxHandsCount {
			m.To, m.Reason = state.ZoneRemoved, mutation.ReasonOverflow
		}
		if err := c.Apply(m); err != nil {
			return err
		}
	}
	return nil
}

// CreateHandCard puts a new card into who's hand, if there is room.
func (c *Context) CreateHandCard(who state.Who, definitionID int) (int, error) {
	if _, ok := c.engine.lib.Card(definitionID); !ok {
		return 0, fmt.Errorf("%w: card %d", ErrUnknownDefinition, definitionID)
	}
	g := c.State()
	if len(g.Player(who).Hands) >= g.Config.MaxHandsCount {
		return 0, nil
	}
	id := g.Iterators.ID + 1
	err := c.Apply(mutation.CreateCard{Who: who, Value: state.CardState{ID: id, DefinitionID: definitionID}, Target: state.ZoneHands})
	return id, err
}

// DisposeCard discards a hand card.
func (c *Context) DisposeCard(who state.Who, cardID int) error {
	card, zone, err := c.State().Card(who, cardID)
	if err != nil {
		return err
	}
	return c.Apply(mutation.MoveCard{Who: who, ID: cardID, DefinitionID: card.DefinitionID, From: zone, To: state.ZoneRemoved, Reason: mutation.ReasonDispose})
}

// SelectCard asks who to pick one of the card definitions.
func (c *Context) SelectCard(who state.Who, definitions []int) (int, error) {
	if c.sync {
		return 0, fmt.Errorf("%w: select card", ErrSyncContext)
	}
	if c.engine.decider == nil {
		return 0, ErrNoDecider
	}
	id, err := c.engine.decider.SelectCard(c.ctx, who, definitions)
	if err != nil {
		return 0, err
	}
	if !slices.Contains(definitions, id) {
		return 0, fmt.Errorf("rules: %s selected %d, not a candidate", who, id)
	}
	return id, c.Apply(mutation.SelectCardDone{Who: who, DefinitionID: id})
}

// ExtensionState decodes the state of an installed extension into v.
func (c *Context) ExtensionState(definitionID int, v any) error {
	ext := c.State().Extension(definitionID)
	if ext == nil {
		return fmt.Errorf("%w: extension %d", ErrUnknownDefinition, definitionID)
	}
	if len(ext.Value) == 0 {
		return nil
	}
	return json.Unmarshal(ext.Value, v)
}

// SetExtensionState stores v as the state of an installed extension.
func (c *Context) SetExtensionState(definitionID int, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode extension %d: %w", definitionID, err)
	}
	return c.Apply(mutation.SetExtensionState{DefinitionID: definitionID, Value: raw})
}
