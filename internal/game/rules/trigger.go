package rules

import (
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// Trigger pairs a skill with the carrier it would run for.
type Trigger struct {
	Self  state.Ref
	Skill *Skill
}

// scopeMatches reports whether a carrier with the given scope hears arg.
func scopeMatches(scope Scope, self state.Ref, arg Arg) bool {
	switch scope {
	case ScopeAll:
		return true
	case ScopeMaster:
		if self.MasterID != 0 {
			return arg.Involves(self.Who, self.MasterID)
		}
	}
	if !self.Who.Valid() {
		return true
	}
	return arg.Involves(self.Who, 0)
}

// candidates lists, in resolution order, the trigger skills listening to
// event, without evaluating their filters.
func (e *Engine) candidates(event EventType, refs []state.Ref) []Trigger {
	var out []Trigger
	g := e.stream.State()
	for _, ref := range refs {
		for _, id := range skillsOf(e.lib, g, ref) {
			skill, ok := e.lib.Skill(id)
			if !ok || skill.Kind != KindTrigger || skill.On != event {
				continue
			}
			out = append(out, Trigger{Self: ref, Skill: skill})
		}
	}
	return out
}

// eligible reports whether t should run now: its carrier is still in play
// (and alive, for characters), it hears arg, and its filter passes.
func (e *Engine) eligible(c *Context, t Trigger, arg Arg) bool {
	g := e.stream.State()
	if !g.Exists(t.Self) {
		return false
	}
	if t.Self.Kind == state.RefCharacter {
		ch, _, _ := g.Character(t.Self.ID)
		if !ch.Vars.Alive {
			return false
		}
	}
	if !scopeMatches(t.Skill.Scope, t.Self, arg) {
		return false
	}
	if t.Skill.Filter != nil && !t.Skill.Filter(c.readOnly(t.Self, t.Skill), t.Self, arg) {
		return false
	}
	return true
}

// WouldFire returns the triggers that would run for event right now. It has
// no side effects.
func (e *Engine) WouldFire(event EventType, arg Arg) []Trigger {
	root := e.newContext(nil, nil)
	var out []Trigger
	for _, t := range e.candidates(event, e.stream.State().AllRefs()) {
		if e.eligible(root, t, arg) {
			out = append(out, t)
		}
	}
	return out
}
