package state

import (
	"bytes"
	"slices"
)

// Clone returns a deep copy that shares no memory with g. Nil slices stay nil.
func (g *GameState) Clone() *GameState {
	if g == nil {
		return nil
	}
	out := *g
	if g.Winner != nil {
		w := *g.Winner
		out.Winner = &w
	}
	for i := range g.Players {
		out.Players[i] = g.Players[i].clone()
	}
	if g.Extensions != nil {
		out.Extensions = make([]ExtensionState, len(g.Extensions))
		for i, ext := range g.Extensions {
			out.Extensions[i] = ExtensionState{DefinitionID: ext.DefinitionID, Value: bytes.Clone(ext.Value)}
		}
	}
	out.Deferred = slices.Clone(g.Deferred)
	return &out
}

func (p PlayerState) clone() PlayerState {
	out := p
	out.InitialPile = slices.Clone(p.InitialPile)
	out.Pile = slices.Clone(p.Pile)
	out.Hands = slices.Clone(p.Hands)
	if p.Characters != nil {
		out.Characters = make([]CharacterState, len(p.Characters))
		for i, ch := range p.Characters {
			out.Characters[i] = ch.Clone()
		}
	}
	out.CombatStatuses = cloneEntities(p.CombatStatuses)
	out.Summons = cloneEntities(p.Summons)
	out.Supports = cloneEntities(p.Supports)
	out.Dice = slices.Clone(p.Dice)
	out.RemovedEntities = slices.Clone(p.RemovedEntities)
	out.SkillLog = slices.Clone(p.SkillLog)
	return out
}

// Clone returns a deep copy of the character and its attached entities.
func (c CharacterState) Clone() CharacterState {
	out := c
	out.Vars.Custom = slices.Clone(c.Vars.Custom)
	out.Entities = cloneEntities(c.Entities)
	return out
}

// Clone returns a deep copy of the entity.
func (e EntityState) Clone() EntityState {
	out := e
	out.Vars.Custom = slices.Clone(e.Vars.Custom)
	return out
}

func cloneEntities(in []EntityState) []EntityState {
	if in == nil {
		return nil
	}
	out := make([]EntityState, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}
