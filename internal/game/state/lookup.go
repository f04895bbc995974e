package state

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an id does not reference anything in the game.
var ErrNotFound = errors.New("state: id not found")

// Character returns the character with the given id.
func (p *PlayerState) Character(id int) *CharacterState {
	for i := range p.Characters {
		if p.Characters[i].ID == id {
			return &p.Characters[i]
		}
	}
	return nil
}

// CharacterIndex returns the position of a character, or -1.
func (p *PlayerState) CharacterIndex(id int) int {
	for i := range p.Characters {
		if p.Characters[i].ID == id {
			return i
		}
	}
	return -1
}

// ActiveCharacter returns the active character, or nil before one is chosen.
func (p *PlayerState) ActiveCharacter() *CharacterState {
	return p.Character(p.ActiveCharacterID)
}

// AliveCharacters returns the ids of the living characters in board order.
func (p *PlayerState) AliveCharacters() []int {
	var ids []int
	for _, ch := range p.Characters {
		if ch.Vars.Alive {
			ids = append(ids, ch.ID)
		}
	}
	return ids
}

// CharactersFromActive returns the characters ordered starting at the
// active one and wrapping around.
func (p *PlayerState) CharactersFromActive() []*CharacterState {
	n := len(p.Characters)
	start := p.CharacterIndex(p.ActiveCharacterID)
	if start < 0 {
		start = 0
	}
	out := make([]*CharacterState, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &p.Characters[(start+i)%n])
	}
	return out
}

// Defeated reports whether every character of the player is defeated.
func (p *PlayerState) Defeated() bool {
	return len(p.Characters) > 0 && len(p.AliveCharacters()) == 0
}

// HandIndex returns the position of a hand card, or -1.
func (p *PlayerState) HandIndex(id int) int {
	for i, c := range p.Hands {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Character finds a character by id in either player.
func (g *GameState) Character(id int) (*CharacterState, Who, error) {
	for w := PlayerOne; w <= PlayerTwo; w++ {
		if ch := g.Players[w].Character(id); ch != nil {
			return ch, w, nil
		}
	}
	return nil, NoOne, fmt.Errorf("%w: character %d", ErrNotFound, id)
}

// EntityList returns the list an area refers to.
func (g *GameState) EntityList(area Area) (*[]EntityState, error) {
	if !area.Who.Valid() {
		return nil, fmt.Errorf("%w: area owner %s", ErrNotFound, area.Who)
	}
	p := g.Player(area.Who)
	switch area.Type {
	case AreaCharacter:
		ch := p.Character(area.CharacterID)
		if ch == nil {
			return nil, fmt.Errorf("%w: character %d", ErrNotFound, area.CharacterID)
		}
		return &ch.Entities, nil
	case AreaCombatStatuses:
		return &p.CombatStatuses, nil
	case AreaSummons:
		return &p.Summons, nil
	case AreaSupports:
		return &p.Supports, nil
	}
	return nil, fmt.Errorf("%w: area type %d has no entity list", ErrNotFound, area.Type)
}

// Entity finds an entity by id and reports where it sits.
func (g *GameState) Entity(id int) (*EntityState, Area, error) {
	for w := PlayerOne; w <= PlayerTwo; w++ {
		p := g.Player(w)
		for ci := range p.Characters {
			ch := &p.Characters[ci]
			for ei := range ch.Entities {
				if ch.Entities[ei].ID == id {
					return &ch.Entities[ei], Area{Type: AreaCharacter, Who: w, CharacterID: ch.ID}, nil
				}
			}
		}
		lists := []struct {
			typ  AreaType
			list []EntityState
		}{
			{AreaCombatStatuses, p.CombatStatuses},
			{AreaSummons, p.Summons},
			{AreaSupports, p.Supports},
		}
		for _, l := range lists {
			for ei := range l.list {
				if l.list[ei].ID == id {
					return &l.list[ei], Area{Type: l.typ, Who: w}, nil
				}
			}
		}
	}
	return nil, Area{}, fmt.Errorf("%w: entity %d", ErrNotFound, id)
}

// Card finds a card in a player's pile or hand.
func (g *GameState) Card(who Who, id int) (CardState, CardZone, error) {
	p := g.Player(who)
	for _, c := range p.Hands {
		if c.ID == id {
			return c, ZoneHands, nil
		}
	}
	for _, c := range p.Pile {
		if c.ID == id {
			return c, ZonePile, nil
		}
	}
	return CardState{}, ZoneRemoved, fmt.Errorf("%w: card %d of %s", ErrNotFound, id, who)
}

// Extension returns the state of an extension definition, or nil.
func (g *GameState) Extension(definitionID int) *ExtensionState {
	for i := range g.Extensions {
		if g.Extensions[i].DefinitionID == definitionID {
			return &g.Extensions[i]
		}
	}
	return nil
}

// RefKind classifies a Ref.
type RefKind int

const (
	RefCharacter RefKind = iota
	RefEntity
	RefExtension
	RefCard
)

// Ref identifies something that can carry skills. MasterID is the owning
// character for characters and attached entities, and 0 otherwise. Card refs
// only live while the card is being played.
type Ref struct {
	Kind         RefKind
	Who          Who
	ID           int
	DefinitionID int
	MasterID     int
	Area         Area
}

// AllRefs lists every skill carrier in resolution order: the current turn
// player first (active character and its entities, the other characters in
// rotation, then combat statuses, summons and supports), then the other
// player, then extensions.
func (g *GameState) AllRefs() []Ref {
	var refs []Ref
	first := g.CurrentTurn
	if !first.Valid() {
		first = PlayerOne
	}
	for _, w := range Seats(first) {
		p := g.Player(w)
		for _, ch := range p.CharactersFromActive() {
			refs = append(refs, Ref{Kind: RefCharacter, Who: w, ID: ch.ID, DefinitionID: ch.DefinitionID, MasterID: ch.ID})
			area := Area{Type: AreaCharacter, Who: w, CharacterID: ch.ID}
			for _, e := range ch.Entities {
				refs = append(refs, Ref{Kind: RefEntity, Who: w, ID: e.ID, DefinitionID: e.DefinitionID, MasterID: ch.ID, Area: area})
			}
		}
		for _, l := range []struct {
			typ  AreaType
			list []EntityState
		}{
			{AreaCombatStatuses, p.CombatStatuses},
			{AreaSummons, p.Summons},
			{AreaSupports, p.Supports},
		} {
			area := Area{Type: l.typ, Who: w}
			for _, e := range l.list {
				refs = append(refs, Ref{Kind: RefEntity, Who: w, ID: e.ID, DefinitionID: e.DefinitionID, Area: area})
			}
		}
	}
	for _, ext := range g.Extensions {
		refs = append(refs, Ref{Kind: RefExtension, Who: NoOne, DefinitionID: ext.DefinitionID, Area: Area{Type: AreaExtensions, Who: NoOne}})
	}
	return refs
}

// Exists reports whether the carrier is still in the game.
func (g *GameState) Exists(r Ref) bool {
	switch r.Kind {
	case RefCharacter:
		_, _, err := g.Character(r.ID)
		return err == nil
	case RefEntity:
		_, _, err := g.Entity(r.ID)
		return err == nil
	case RefExtension:
		return g.Extension(r.DefinitionID) != nil
	}
	return false
}
