package rules

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/gi-tcg/gitcg-server-go/internal/game/dice"
	"github.com/gi-tcg/gitcg-server-go/internal/game/mutation"
	"github.com/gi-tcg/gitcg-server-go/internal/game/reaction"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// Context is handed to every skill body. It exposes the game read-only and
// offers the primitives that change it.
type Context struct {
	ctx    context.Context
	engine *Engine
	parent *Context
	self   state.Ref
	skill  *Skill
	using  *SkillArg
	queue  eventQueue
	root   bool
	sync   bool
	noop   bool
}

// Ctx returns the cancellation context of the resolution.
func (c *Context) Ctx() context.Context {
	return c.ctx
}

// Engine returns the engine running this context.
func (c *Context) Engine() *Engine {
	return c.engine
}

// State returns the live game state. Skills must not write it.
func (c *Context) State() *state.GameState {
	return c.engine.stream.State()
}

// Library returns the content of the game.
func (c *Context) Library() Library {
	return c.engine.lib
}

// Self returns the carrier of the running skill.
func (c *Context) Self() state.Ref {
	return c.self
}

// SkillID returns the id of the running skill, or 0 for root contexts.
func (c *Context) SkillID() int {
	if c.skill == nil {
		return 0
	}
	return c.skill.ID
}

// IsPreview reports whether the resolution happens on a forked engine.
func (c *Context) IsPreview() bool {
	return c.engine.preview
}

func (c *Context) readOnly(self state.Ref, skill *Skill) *Context {
	return &Context{ctx: c.ctx, engine: c.engine, self: self, skill: skill, sync: true, noop: true}
}

// Apply commits one mutation.
func (c *Context) Apply(m mutation.Mutation) error {
	if c.noop {
		return ErrReadOnly
	}
	return c.engine.stream.Apply(m)
}

// Emit queues an event. It is resolved when the current skill body has
// finished, after any defeat checks.
func (c *Context) Emit(event EventType, arg Arg) error {
	if c.noop {
		return ErrReadOnly
	}
	if !event.Known() || event.IsSync() {
		return fmt.Errorf("rules: cannot emit %q", event)
	}
	target := c
	for target.sync && target.parent != nil {
		target = target.parent
	}
	if err := c.Apply(mutation.PushDeferred{Event: deferred(event, arg)}); err != nil {
		return err
	}
	target.queue.Push(pendingEvent{Event: event, Arg: arg})
	return nil
}

// Handle resolves event immediately.
func (c *Context) Handle(event EventType, arg Arg) error {
	if c.sync {
		return fmt.Errorf("%w: handle %s", ErrSyncContext, event)
	}
	return c.engine.handle(c, event, arg)
}

// Intercept runs the synchronous handlers of event. It returns false when a
// handler cancelled the pending effect.
func (c *Context) Intercept(event EventType, arg Arg) (bool, error) {
	return c.engine.intercept(c, event, arg)
}

// finish runs the zero-health checks and resolves the queued events. Root
// contexts also replace defeated active characters and clear the deferred
// list once everything is resolved.
func (c *Context) finish() error {
	for {
		if err := c.checkZeroHealth(); err != nil {
			return err
		}
		for {
			item, ok := c.queue.Pop()
			if !ok {
				break
			}
			if err := c.engine.handle(c, item.Event, item.Arg); err != nil {
				return err
			}
			if err := c.checkZeroHealth(); err != nil {
				return err
			}
		}
		if !c.root {
			return nil
		}
		switched, err := c.replaceDefeatedActives()
		if err != nil {
			return err
		}
		if !switched {
			break
		}
	}
	if len(c.State().Deferred) > 0 {
		return c.Apply(mutation.ClearDeferred{})
	}
	return nil
}

// checkZeroHealth gives immunity effects a chance to save characters at
// zero health and defeats the rest.
func (c *Context) checkZeroHealth() error {
	g := c.State()
	type dying struct {
		who state.Who
		id  int
	}
	var candidates []dying
	for _, ref := range g.AllRefs() {
		if ref.Kind != state.RefCharacter {
			continue
		}
		ch, _, _ := g.Character(ref.ID)
		if ch.Vars.Alive && ch.Vars.Health <= 0 {
			candidates = append(candidates, dying{who: ref.Who, id: ref.ID})
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	for _, d := range candidates {
		arg := &ZeroHealthArg{Who: d.who, CharacterID: d.id}
		if _, err := c.Intercept(EventModifyZeroHealth, arg); err != nil {
			return err
		}
		if arg.Immune {
			if err := c.Apply(mutation.ModifyVar{ID: d.id, Var: state.Health, Value: max(arg.HealTo, 1)}); err != nil {
				return err
			}
			continue
		}
		if err := c.defeat(d.who, d.id); err != nil {
			return err
		}
	}
	return c.checkWinner()
}

func (c *Context) defeat(who state.Who, id int) error {
	ch, _, err := c.State().Character(id)
	if err != nil {
		return err
	}
	if c.engine.logger != nil {
		c.engine.logger.Debug("character defeated", zap.String("who", who.String()), zap.Int("character", id))
	}
	attached := make([]int, 0, len(ch.Entities))
	for _, e := range ch.Entities {
		attached = append(attached, e.ID)
	}
	muts := []mutation.Mutation{
		mutation.ModifyVar{ID: id, Var: state.Alive, Value: 0},
		mutation.ModifyVar{ID: id, Var: state.Health, Value: 0},
	}
	if ch.Vars.Energy != 0 {
		muts = append(muts, mutation.ModifyVar{ID: id, Var: state.Energy, Value: 0})
	}
	if ch.Vars.Aura != reaction.AuraNone {
		muts = append(muts, mutation.ModifyVar{ID: id, Var: state.AuraVar, Value: int(reaction.AuraNone)})
	}
	for _, m := range muts {
		if err := c.Apply(m); err != nil {
			return err
		}
	}
	for _, eid := range attached {
		if err := c.Dispose(eid); err != nil {
			return err
		}
	}
	if err := c.SetFlag(who, state.FlagHasDefeated, true); err != nil {
		return err
	}
	return c.Emit(EventDefeated, &CharacterArg{Who: who, CharacterID: id})
}

func (c *Context) checkWinner() error {
	g := c.State()
	one, two := g.Player(state.PlayerOne).Defeated(), g.Player(state.PlayerTwo).Defeated()
	if !one && !two {
		return nil
	}
	if one != two {
		winner := state.PlayerOne
		if one {
			winner = state.PlayerTwo
		}
		if err := c.Apply(mutation.SetWinner{Winner: winner}); err != nil {
			return err
		}
	}
	return ErrGameOver
}

// replaceDefeatedActives asks every player whose active character is
// defeated to choose a new one, both at once.
func (c *Context) replaceDefeatedActives() (bool, error) {
	g := c.State()
	candidates := make(map[state.Who][]int)
	for _, who := range state.Seats(g.CurrentTurn) {
		p := g.Player(who)
		active := p.ActiveCharacter()
		if active == nil || active.Vars.Alive {
			continue
		}
		if alive := p.AliveCharacters(); len(alive) > 0 {
			candidates[who] = alive
		}
	}
	if len(candidates) == 0 {
		return false, nil
	}
	if c.engine.decider == nil {
		return false, ErrNoDecider
	}
	chosen, err := c.engine.decider.ChooseActive(c.ctx, candidates)
	if err != nil {
		return false, err
	}
	for _, who := range state.Seats(g.CurrentTurn) {
		id, ok := chosen[who]
		if !ok {
			continue
		}
		if !slices.Contains(candidates[who], id) {
			return false, fmt.Errorf("rules: %s chose %d, not a candidate", who, id)
		}
		if err := c.Apply(mutation.ChooseActiveDone{Who: who, CharacterID: id}); err != nil {
			return false, err
		}
		if err := c.switchActive(who, id, false); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Options returns the dice keep-priority inputs for who's party.
func (c *Context) Options(who state.Who) dice.Options {
	return DiceOptions(c.engine.lib, c.State(), who)
}

// DiceOptions returns the keep-priority inputs for who's party.
func DiceOptions(lib Library, g *state.GameState, who state.Who) dice.Options {
	var opts dice.Options
	p := g.Player(who)
	for _, ch := range p.Characters {
		def, ok := lib.Character(ch.DefinitionID)
		if !ok {
			continue
		}
		if ch.ID == p.ActiveCharacterID {
			opts.Active = def.Element
		} else {
			opts.Party = append(opts.Party, def.Element)
		}
	}
	return opts
}
