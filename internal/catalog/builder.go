package catalog

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gi-tcg/gitcg-server-go/internal/game/rules"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// Builder assembles a Data. Problems are collected and reported by Build.
type Builder struct {
	data *Data
	errs []error
}

// NewBuilder starts a catalogue version.
func NewBuilder(version string) *Builder {
	return &Builder{data: &Data{
		version:    version,
		characters: make(map[int]*state.CharacterDefinition),
		entities:   make(map[int]*state.EntityDefinition),
		cards:      make(map[int]*state.CardDefinition),
		extensions: make(map[int]*state.ExtensionDefinition),
		skills:     make(map[int]*rules.Skill),
	}}
}

func (b *Builder) fail(format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
}

// Skill adds a skill that a definition refers to by id.
func (b *Builder) Skill(s *rules.Skill) *Builder {
	if s == nil {
		b.fail("nil skill")
		return b
	}
	if _, dup := b.data.skills[s.ID]; dup {
		b.fail("duplicate skill %d", s.ID)
		return b
	}
	b.data.skills[s.ID] = s
	return b
}

func (b *Builder) attach(ids []int, skills []*rules.Skill) []int {
	out := slices.Clone(ids)
	for _, s := range skills {
		b.Skill(s)
		if s != nil && !slices.Contains(out, s.ID) {
			out = append(out, s.ID)
		}
	}
	return out
}

// Character adds a character with its skills.
func (b *Builder) Character(def state.CharacterDefinition, skills ...*rules.Skill) *Builder {
	if _, dup := b.data.characters[def.ID]; dup {
		b.fail("duplicate character %d", def.ID)
		return b
	}
	def.Skills = b.attach(def.Skills, skills)
	b.data.characters[def.ID] = &def
	return b
}

// Entity adds a status, combat status, summon, support or equipment.
func (b *Builder) Entity(def state.EntityDefinition, skills ...*rules.Skill) *Builder {
	if _, dup := b.data.entities[def.ID]; dup {
		b.fail("duplicate entity %d", def.ID)
		return b
	}
	def.Skills = b.attach(def.Skills, skills)
	b.data.entities[def.ID] = &def
	return b
}

// Card adds an action card. skill is its effect and may be nil.
func (b *Builder) Card(def state.CardDefinition, skill *rules.Skill) *Builder {
	if _, dup := b.data.cards[def.ID]; dup {
		b.fail("duplicate card %d", def.ID)
		return b
	}
	if skill != nil {
		b.Skill(skill)
		def.Skill = skill.ID
	}
	b.data.cards[def.ID] = &def
	return b
}

// Extension adds an extension. Installed extensions are part of every game.
func (b *Builder) Extension(def state.ExtensionDefinition, installed bool, skills ...*rules.Skill) *Builder {
	if _, dup := b.data.extensions[def.ID]; dup {
		b.fail("duplicate extension %d", def.ID)
		return b
	}
	def.Skills = b.attach(def.Skills, skills)
	b.data.extensions[def.ID] = &def
	if installed {
		b.data.installed = append(b.data.installed, def.ID)
	}
	return b
}

// Build checks every reference and freezes the catalogue.
func (b *Builder) Build() (*Data, error) {
	d := b.data
	errs := slices.Clone(b.errs)
	check := func(owner string, ids []int, want rules.SkillKind) {
		for _, id := range ids {
			s, ok := d.skills[id]
			if !ok {
				errs = append(errs, fmt.Errorf("%s: unknown skill %d", owner, id))
				continue
			}
			if err := checkSkill(s); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", owner, err))
			}
			if s.Kind == rules.KindCard && want != rules.KindCard {
				errs = append(errs, fmt.Errorf("%s: card skill %d attached to a carrier", owner, id))
			}
		}
	}
	for id, def := range d.characters {
		if def.MaxHealth <= 0 {
			errs = append(errs, fmt.Errorf("character %d: max health must be positive", id))
		}
		if !def.Element.IsElemental() {
			errs = append(errs, fmt.Errorf("character %d: element %s", id, def.Element))
		}
		check(fmt.Sprintf("character %d", id), def.Skills, rules.KindInitiative)
	}
	for id, def := range d.entities {
		check(fmt.Sprintf("entity %d", id), def.Skills, rules.KindTrigger)
		for _, s := range def.Skills {
			if sk, ok := d.skills[s]; ok && sk.Kind == rules.KindInitiative {
				errs = append(errs, fmt.Errorf("entity %d: initiative skill %d", id, s))
			}
		}
	}
	for id, def := range d.cards {
		if def.Skill == 0 {
			continue
		}
		s, ok := d.skills[def.Skill]
		if !ok || s.Kind != rules.KindCard {
			errs = append(errs, fmt.Errorf("card %d: skill %d is not a card skill", id, def.Skill))
		}
	}
	for id, def := range d.extensions {
		check(fmt.Sprintf("extension %d", id), def.Skills, rules.KindTrigger)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return d, nil
}

func checkSkill(s *rules.Skill) error {
	switch s.Kind {
	case rules.KindInitiative:
		if s.Type == rules.SkillNone {
			return fmt.Errorf("skill %d: initiative skill without a type", s.ID)
		}
	case rules.KindTrigger:
		if !s.On.Known() {
			return fmt.Errorf("skill %d: unknown event %q", s.ID, s.On)
		}
		if s.On.IsSync() && s.Sync == nil {
			return fmt.Errorf("skill %d: %s needs a synchronous body", s.ID, s.On)
		}
		if !s.On.IsSync() && s.Action == nil {
			return fmt.Errorf("skill %d: %s needs a body", s.ID, s.On)
		}
	}
	return nil
}
