package rules

import (
	"fmt"

	"github.com/gi-tcg/gitcg-server-go/internal/game/dice"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// SkillKind says how a skill is started.
type SkillKind int

const (
	// KindInitiative skills are used by the player as an action.
	KindInitiative SkillKind = iota
	// KindTrigger skills run when their event fires.
	KindTrigger
	// KindCard skills run when the card carrying them is played.
	KindCard
)

// SkillType classifies initiative skills.
type SkillType int

const (
	SkillNone SkillType = iota
	SkillNormal
	SkillElemental
	SkillBurst
	SkillTechnique
)

var skillTypeNames = map[SkillType]string{
	SkillNone:      "none",
	SkillNormal:    "normal",
	SkillElemental: "elemental",
	SkillBurst:     "burst",
	SkillTechnique: "technique",
}

func (t SkillType) String() string {
	if name, ok := skillTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("SkillType(%d)", int(t))
}

// ParseSkillType resolves a skill type from its catalogue name.
func ParseSkillType(s string) (SkillType, bool) {
	for t, name := range skillTypeNames {
		if name == s {
			return t, true
		}
	}
	return SkillNone, false
}

// Scope limits which event occurrences a trigger skill listens to.
type Scope int

const (
	// ScopeMaster only hears events about the carrier's own character.
	ScopeMaster Scope = iota
	// ScopeMy hears events about any of the carrier's player.
	ScopeMy
	// ScopeAll hears every occurrence.
	ScopeAll
)

var scopeNames = map[Scope]string{
	ScopeMaster: "master",
	ScopeMy:     "my",
	ScopeAll:    "all",
}

func (s Scope) String() string {
	return scopeNames[s]
}

// ParseScope resolves a scope from its catalogue name.
func ParseScope(s string) (Scope, bool) {
	for sc, name := range scopeNames {
		if name == s {
			return sc, true
		}
	}
	return ScopeMy, false
}

// Skill is the behaviour attached to a definition. Trigger skills set On and
// either Sync (synchronous events) or Action (asynchronous ones).
type Skill struct {
	ID    int
	Name  string
	Kind  SkillKind
	Type  SkillType
	On    EventType
	Scope Scope
	Cost  dice.Requirement

	// Filter is evaluated before the body, without side effects.
	Filter func(c *Context, self state.Ref, arg Arg) bool
	// Action is the body of initiative, card and asynchronous trigger skills.
	Action func(c *Context, self state.Ref, arg Arg) error
	// Sync is the body of synchronous trigger skills. Returning false cancels
	// the pending effect.
	Sync func(c *Context, self state.Ref, arg Arg) (bool, error)
}

// Library is the frozen content a game is played with.
type Library interface {
	Version() string
	Character(id int) (*state.CharacterDefinition, bool)
	Entity(id int) (*state.EntityDefinition, bool)
	Card(id int) (*state.CardDefinition, bool)
	Extension(id int) (*state.ExtensionDefinition, bool)
	Skill(id int) (*Skill, bool)
	// Extensions lists the extensions installed in every game.
	Extensions() []int
}

// skillsOf returns the skill ids carried by the definition behind ref.
func skillsOf(lib Library, g *state.GameState, ref state.Ref) []int {
	switch ref.Kind {
	case state.RefCharacter:
		ch, _, err := g.Character(ref.ID)
		if err != nil {
			return nil
		}
		if def, ok := lib.Character(ch.DefinitionID); ok {
			return def.Skills
		}
	case state.RefEntity:
		e, _, err := g.Entity(ref.ID)
		if err != nil {
			return nil
		}
		if def, ok := lib.Entity(e.DefinitionID); ok {
			return def.Skills
		}
	case state.RefExtension:
		if def, ok := lib.Extension(ref.DefinitionID); ok {
			return def.Skills
		}
	}
	return nil
}
