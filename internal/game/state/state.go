package state

import (
	"encoding/json"

	"github.com/gi-tcg/gitcg-server-go/internal/game/dice"
)

// Iterators are the monotonic counters the game advances through mutations.
type Iterators struct {
	// ID is the last id handed out.
	ID int `json:"id"`
	// Random is the cursor of the deterministic random sequence.
	Random uint64 `json:"random"`
}

// GameState is the canonical state of one game. It is owned by the game
// orchestrator and only changed by applying mutations.
type GameState struct {
	Version     string           `json:"version"`
	Config      Config           `json:"config"`
	Iterators   Iterators        `json:"iterators"`
	Phase       Phase            `json:"phase"`
	CurrentTurn Who              `json:"currentTurn"`
	RoundNumber int              `json:"roundNumber"`
	Winner      *Who             `json:"winner"`
	Players     [2]PlayerState   `json:"players"`
	Extensions  []ExtensionState `json:"extensions,omitempty"`
	Deferred    []DeferredEvent  `json:"deferred,omitempty"`
}

// Player returns the state of seat w.
func (g *GameState) Player(w Who) *PlayerState {
	return &g.Players[w]
}

// PlayerState is everything one seat owns.
type PlayerState struct {
	Who               Who              `json:"who"`
	InitialPile       []CardState      `json:"initialPile"`
	Pile              []CardState      `json:"pile"`
	Hands             []CardState      `json:"hands"`
	Characters        []CharacterState `json:"characters"`
	ActiveCharacterID int              `json:"activeCharacterId"`
	CombatStatuses    []EntityState    `json:"combatStatuses"`
	Summons           []EntityState    `json:"summons"`
	Supports          []EntityState    `json:"supports"`
	Dice              []dice.Type      `json:"dice"`
	RemovedEntities   []RemovedEntity  `json:"removedEntities,omitempty"`
	SkillLog          []SkillLogEntry  `json:"skillLog,omitempty"`

	DeclaredEnd  bool `json:"declaredEnd"`
	LegendUsed   bool `json:"legendUsed"`
	CanCharged   bool `json:"canCharged"`
	CanPlunging  bool `json:"canPlunging"`
	HasDefeated  bool `json:"hasDefeated"`
	SkipNextTurn bool `json:"skipNextTurn"`
}

// Flag reads a per-player flag.
func (p *PlayerState) Flag(f PlayerFlag) bool {
	switch f {
	case FlagDeclaredEnd:
		return p.DeclaredEnd
	case FlagLegendUsed:
		return p.LegendUsed
	case FlagCanCharged:
		return p.CanCharged
	case FlagCanPlunging:
		return p.CanPlunging
	case FlagHasDefeated:
		return p.HasDefeated
	case FlagSkipNextTurn:
		return p.SkipNextTurn
	}
	return false
}

// SetFlag writes a per-player flag and reports whether the flag exists.
func (p *PlayerState) SetFlag(f PlayerFlag, v bool) bool {
	switch f {
	case FlagDeclaredEnd:
		p.DeclaredEnd = v
	case FlagLegendUsed:
		p.LegendUsed = v
	case FlagCanCharged:
		p.CanCharged = v
	case FlagCanPlunging:
		p.CanPlunging = v
	case FlagHasDefeated:
		p.HasDefeated = v
	case FlagSkipNextTurn:
		p.SkipNextTurn = v
	default:
		return false
	}
	return true
}

// CharacterState is one of the three characters of a player.
type CharacterState struct {
	ID           int                `json:"id"`
	DefinitionID int                `json:"definitionId"`
	Vars         CharacterVariables `json:"vars"`
	// Entities are the statuses and equipment attached to the character.
	Entities []EntityState `json:"entities"`
}

// EntityState is a status, combat status, summon, support or equipment.
type EntityState struct {
	ID           int             `json:"id"`
	DefinitionID int             `json:"definitionId"`
	Vars         EntityVariables `json:"vars"`
}

// CardState is an action card in the pile or in hand.
type CardState struct {
	ID           int `json:"id"`
	DefinitionID int `json:"definitionId"`
}

// RemovedEntity records an entity or card that left the game.
type RemovedEntity struct {
	ID           int `json:"id"`
	DefinitionID int `json:"definitionId"`
}

// SkillLogEntry records a skill use during the current round.
type SkillLogEntry struct {
	CharacterID int `json:"characterId"`
	SkillID     int `json:"skillId"`
}

// ExtensionState is the game-wide state of an extension definition.
type ExtensionState struct {
	DefinitionID int             `json:"definitionId"`
	Value        json.RawMessage `json:"value,omitempty"`
}

// DeferredEvent is an event argument waiting to be resolved.
type DeferredEvent struct {
	Event    string `json:"event"`
	Who      Who    `json:"who"`
	TargetID int    `json:"targetId"`
	Value    int    `json:"value"`
}

// CardZone is where a card sits.
type CardZone int

const (
	ZonePile CardZone = iota
	ZoneHands
	ZoneRemoved
)

var zoneNames = map[CardZone]string{
	ZonePile:    "pile",
	ZoneHands:   "hands",
	ZoneRemoved: "removed",
}

func (z CardZone) String() string {
	return zoneNames[z]
}

// AreaType is where an entity sits.
type AreaType int

const (
	AreaCharacters AreaType = iota
	AreaCharacter
	AreaCombatStatuses
	AreaSummons
	AreaSupports
	AreaExtensions
)

// Area locates an entity list. CharacterID is only used with AreaCharacter.
type Area struct {
	Type        AreaType `json:"type"`
	Who         Who      `json:"who"`
	CharacterID int      `json:"characterId,omitempty"`
}

// AreaFor returns the natural area of an entity type.
func AreaFor(t EntityType, who Who, characterID int) Area {
	switch t {
	case EntityCombatStatus:
		return Area{Type: AreaCombatStatuses, Who: who}
	case EntitySummon:
		return Area{Type: AreaSummons, Who: who}
	case EntitySupport:
		return Area{Type: AreaSupports, Who: who}
	default:
		return Area{Type: AreaCharacter, Who: who, CharacterID: characterID}
	}
}
