package state

import (
	"slices"

	"github.com/gi-tcg/gitcg-server-go/internal/game/dice"
)

// VarSpec declares a custom variable slot of a definition.
type VarSpec struct {
	Name    string `json:"name" yaml:"name"`
	Initial int    `json:"initial" yaml:"initial"`
}

// Schema is the ordered list of custom variables of a definition.
type Schema []VarSpec

// Slot returns the index of the named custom variable.
func (s Schema) Slot(name string) (int, bool) {
	idx := slices.IndexFunc(s, func(v VarSpec) bool { return v.Name == name })
	return idx, idx >= 0
}

// Initial returns the initial values of every slot.
func (s Schema) Initial() []int {
	if len(s) == 0 {
		return nil
	}
	out := make([]int, len(s))
	for i, v := range s {
		out[i] = v.Initial
	}
	return out
}

// CharacterDefinition is the immutable catalogue entry of a character.
type CharacterDefinition struct {
	ID        int
	Name      string
	Tags      []string
	Element   dice.Type
	MaxHealth int
	MaxEnergy int
	Skills    []int
	Vars      Schema
}

// HasTag reports whether the definition carries tag.
func (d *CharacterDefinition) HasTag(tag string) bool {
	return slices.Contains(d.Tags, tag)
}

// EntityType classifies entity definitions by where they live.
type EntityType int

const (
	EntityStatus EntityType = iota
	EntityCombatStatus
	EntitySummon
	EntitySupport
	EntityEquipment
)

var entityTypeNames = map[EntityType]string{
	EntityStatus:       "status",
	EntityCombatStatus: "combatStatus",
	EntitySummon:       "summon",
	EntitySupport:      "support",
	EntityEquipment:    "equipment",
}

func (t EntityType) String() string {
	return entityTypeNames[t]
}

// ParseEntityType resolves an entity type from its catalogue name.
func ParseEntityType(s string) (EntityType, bool) {
	for t, name := range entityTypeNames {
		if name == s {
			return t, true
		}
	}
	return EntityStatus, false
}

// EntityDefinition is the immutable catalogue entry of a status, combat
// status, summon, support or equipment. Zero counters are not tracked.
type EntityDefinition struct {
	ID            int
	Name          string
	Type          EntityType
	Tags          []string
	Usage         int
	UsagePerRound int
	Duration      int
	Shield        int
	// DisposeWhenUsedUp disposes the entity when its usage reaches zero.
	DisposeWhenUsedUp bool
	Skills            []int
	Vars              Schema
}

// HasTag reports whether the definition carries tag.
func (d *EntityDefinition) HasTag(tag string) bool {
	return slices.Contains(d.Tags, tag)
}

// InitialVars returns a fresh variable bag.
func (d *EntityDefinition) InitialVars() EntityVariables {
	return EntityVariables{
		Usage:         d.Usage,
		UsagePerRound: d.UsagePerRound,
		Duration:      d.Duration,
		Shield:        d.Shield,
		Custom:        d.Vars.Initial(),
	}
}

// CardType classifies action cards.
type CardType int

const (
	CardEvent CardType = iota
	CardSupport
	CardEquipment
)

var cardTypeNames = map[CardType]string{
	CardEvent:     "event",
	CardSupport:   "support",
	CardEquipment: "equipment",
}

func (t CardType) String() string {
	return cardTypeNames[t]
}

// ParseCardType resolves a card type from its catalogue name.
func ParseCardType(s string) (CardType, bool) {
	for t, name := range cardTypeNames {
		if name == s {
			return t, true
		}
	}
	return CardEvent, false
}

// TargetKind is what a card must be played on.
type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetMyCharacter
	TargetOppCharacter
	TargetMySummon
)

// Well-known card tags.
const (
	TagLegend = "legend"
	TagAction = "action"
	TagFood   = "food"
)

// CardDefinition is the immutable catalogue entry of an action card.
type CardDefinition struct {
	ID     int
	Name   string
	Type   CardType
	Tags   []string
	Cost   dice.Requirement
	Target TargetKind
	// Skill is the effect run when the card is played.
	Skill int
}

// HasTag reports whether the definition carries tag.
func (d *CardDefinition) HasTag(tag string) bool {
	return slices.Contains(d.Tags, tag)
}

// ExtensionDefinition is a game-wide rule module with its own state.
type ExtensionDefinition struct {
	ID      int
	Name    string
	Initial []byte
	Skills  []int
}
