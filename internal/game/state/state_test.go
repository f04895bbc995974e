package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gi-tcg/gitcg-server-go/internal/game/dice"
	"github.com/gi-tcg/gitcg-server-go/internal/game/reaction"
)

func sampleState() *GameState {
	g := &GameState{
		Config:      DefaultConfig(),
		CurrentTurn: PlayerTwo,
		Phase:       PhaseAction,
	}
	id := 0
	next := func() int { id++; return id }
	for w := PlayerOne; w <= PlayerTwo; w++ {
		p := g.Player(w)
		p.Who = w
		for i := 0; i < 3; i++ {
			p.Characters = append(p.Characters, CharacterState{
				ID:           next(),
				DefinitionID: 1101 + i,
				Vars:         CharacterVariables{Health: 10, MaxHealth: 10, MaxEnergy: 2, Alive: true, Custom: []int{0}},
			})
		}
		p.ActiveCharacterID = p.Characters[1].ID
		p.Characters[1].Entities = []EntityState{{ID: next(), DefinitionID: 111, Vars: EntityVariables{Usage: 2}}}
		p.CombatStatuses = []EntityState{{ID: next(), DefinitionID: 112}}
		p.Summons = []EntityState{{ID: next(), DefinitionID: 113, Vars: EntityVariables{Usage: 1}}}
		p.Hands = []CardState{{ID: next(), DefinitionID: 332001}}
		p.Dice = []dice.Type{dice.Omni, dice.Pyro}
	}
	g.Iterators.ID = id
	g.Extensions = []ExtensionState{{DefinitionID: 9001, Value: []byte(`{"n":1}`)}}
	return g
}

func TestCloneIsDeep(t *testing.T) {
	g := sampleState()
	c := g.Clone()
	require.Equal(t, g, c)

	c.Player(PlayerOne).Characters[0].Vars.Health = 3
	c.Player(PlayerOne).Characters[0].Vars.Custom[0] = 7
	c.Player(PlayerOne).Characters[1].Entities[0].Vars.Usage = 0
	c.Player(PlayerTwo).Dice[0] = dice.Void
	c.Extensions[0].Value[0] = '['
	w := PlayerOne
	c.Winner = &w

	p := g.Player(PlayerOne)
	assert.Equal(t, 10, p.Characters[0].Vars.Health)
	assert.Equal(t, 0, p.Characters[0].Vars.Custom[0])
	assert.Equal(t, 2, p.Characters[1].Entities[0].Vars.Usage)
	assert.Equal(t, dice.Omni, g.Player(PlayerTwo).Dice[0])
	assert.Equal(t, byte('{'), g.Extensions[0].Value[0])
	assert.Nil(t, g.Winner)
}

func TestClonePreservesNil(t *testing.T) {
	g := &GameState{}
	c := g.Clone()
	assert.Nil(t, c.Players[0].Hands)
	assert.Nil(t, c.Players[0].Characters)
	assert.Nil(t, c.Extensions)
	assert.Nil(t, (*GameState)(nil).Clone())
}

func TestLookup(t *testing.T) {
	g := sampleState()

	ch, who, err := g.Character(9)
	require.NoError(t, err)
	assert.Equal(t, PlayerTwo, who)
	assert.Equal(t, 9, ch.ID)

	_, _, err = g.Character(5)
	assert.ErrorIs(t, err, ErrNotFound)

	e, area, err := g.Entity(4)
	require.NoError(t, err)
	assert.Equal(t, 111, e.DefinitionID)
	assert.Equal(t, Area{Type: AreaCharacter, Who: PlayerOne, CharacterID: 2}, area)

	_, area, err = g.Entity(6)
	require.NoError(t, err)
	assert.Equal(t, AreaSummons, area.Type)

	_, _, err = g.Entity(999)
	assert.True(t, errors.Is(err, ErrNotFound))

	list, err := g.EntityList(Area{Type: AreaSummons, Who: PlayerTwo})
	require.NoError(t, err)
	assert.Len(t, *list, 1)

	_, err = g.EntityList(Area{Type: AreaCharacter, Who: PlayerOne, CharacterID: 999})
	assert.ErrorIs(t, err, ErrNotFound)

	card, zone, err := g.Card(PlayerOne, 7)
	require.NoError(t, err)
	assert.Equal(t, ZoneHands, zone)
	assert.Equal(t, 332001, card.DefinitionID)
}

func TestAllRefsOrder(t *testing.T) {
	g := sampleState()
	refs := g.AllRefs()

	var ids []int
	for _, r := range refs {
		if r.Kind != RefExtension {
			ids = append(ids, r.ID)
		}
	}
	// Current turn is P2; each side's active is its second character.
	assert.Equal(t, []int{9, 11, 10, 8, 12, 13, 2, 4, 3, 1, 5, 6}, ids)
	last := refs[len(refs)-1]
	assert.Equal(t, RefExtension, last.Kind)
	assert.Equal(t, 9001, last.DefinitionID)

	for _, r := range refs {
		if r.Kind == RefEntity && r.Area.Type == AreaCharacter {
			assert.Equal(t, r.Area.CharacterID, r.MasterID)
		}
		assert.True(t, g.Exists(r))
	}
}

func TestPlayerHelpers(t *testing.T) {
	g := sampleState()
	p := g.Player(PlayerOne)
	assert.Equal(t, 2, p.ActiveCharacter().ID)
	assert.Equal(t, []int{1, 2, 3}, p.AliveCharacters())
	assert.False(t, p.Defeated())

	for i := range p.Characters {
		p.Characters[i].Vars.Alive = false
	}
	assert.True(t, p.Defeated())

	assert.True(t, p.SetFlag(FlagCanPlunging, true))
	assert.True(t, p.Flag(FlagCanPlunging))
	assert.False(t, p.SetFlag(PlayerFlag(42), true))
}

func TestVariables(t *testing.T) {
	v := CharacterVariables{Health: 5, Custom: []int{1, 2}}
	require.NoError(t, v.Set(AuraVar, int(reaction.AuraCryoDendro)))
	assert.Equal(t, reaction.AuraCryoDendro, v.Aura)

	n, err := v.Get(Custom(1))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = v.Get(Custom(2))
	assert.ErrorIs(t, err, ErrUnknownVariable)
	assert.ErrorIs(t, v.Set(Usage, 1), ErrUnknownVariable)

	ev := EntityVariables{}
	require.NoError(t, ev.Set(Shield, 2))
	assert.Equal(t, 2, ev.Shield)
	_, err = ev.Get(Health)
	assert.ErrorIs(t, err, ErrUnknownVariable)
}

func TestDeckValidate(t *testing.T) {
	d := Deck{Characters: []int{1101, 1102, 1103}}
	for i := 0; i < DeckCards; i++ {
		d.Cards = append(d.Cards, 332001)
	}
	require.NoError(t, d.Validate())

	d.Cards = d.Cards[:29]
	assert.ErrorIs(t, d.Validate(), ErrInvalidDeck)

	d.Cards = append(d.Cards, 0)
	assert.ErrorIs(t, d.Validate(), ErrInvalidDeck)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	c := DefaultConfig()
	c.InitialDiceCount = 20
	assert.Error(t, c.Validate())
}
