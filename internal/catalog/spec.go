package catalog

import "github.com/gi-tcg/gitcg-server-go/internal/game/state"

// File is the YAML form of a catalogue version.
type File struct {
	Version    string          `yaml:"version" json:"version"`
	Extensions []string        `yaml:"extensions,omitempty" json:"extensions,omitempty"`
	Characters []CharacterSpec `yaml:"characters" json:"characters"`
	Entities   []EntitySpec    `yaml:"entities" json:"entities"`
	Cards      []CardSpec      `yaml:"cards" json:"cards"`
}

type CharacterSpec struct {
	ID        int             `yaml:"id" json:"id"`
	Name      string          `yaml:"name" json:"name"`
	Element   string          `yaml:"element" json:"element"`
	MaxHealth int             `yaml:"maxHealth" json:"maxHealth"`
	MaxEnergy int             `yaml:"maxEnergy" json:"maxEnergy"`
	Tags      []string        `yaml:"tags,omitempty" json:"tags,omitempty"`
	Vars      []state.VarSpec `yaml:"vars,omitempty" json:"vars,omitempty"`
	Skills    []SkillSpec     `yaml:"skills" json:"skills"`
}

type EntitySpec struct {
	ID                int             `yaml:"id" json:"id"`
	Name              string          `yaml:"name" json:"name"`
	Type              string          `yaml:"type" json:"type"`
	Tags              []string        `yaml:"tags,omitempty" json:"tags,omitempty"`
	Usage             int             `yaml:"usage,omitempty" json:"usage,omitempty"`
	UsagePerRound     int             `yaml:"usagePerRound,omitempty" json:"usagePerRound,omitempty"`
	Duration          int             `yaml:"duration,omitempty" json:"duration,omitempty"`
	Shield            int             `yaml:"shield,omitempty" json:"shield,omitempty"`
	DisposeWhenUsedUp bool            `yaml:"disposeWhenUsedUp,omitempty" json:"disposeWhenUsedUp,omitempty"`
	Vars              []state.VarSpec `yaml:"vars,omitempty" json:"vars,omitempty"`
	Skills            []SkillSpec     `yaml:"skills,omitempty" json:"skills,omitempty"`
}

type CardSpec struct {
	ID     int         `yaml:"id" json:"id"`
	Name   string      `yaml:"name" json:"name"`
	Type   string      `yaml:"type" json:"type"`
	Tags   []string    `yaml:"tags,omitempty" json:"tags,omitempty"`
	Cost   string      `yaml:"cost,omitempty" json:"cost,omitempty"`
	Target string      `yaml:"target,omitempty" json:"target,omitempty"`
	Filter *FilterSpec `yaml:"filter,omitempty" json:"filter,omitempty"`
	Ops    []OpSpec    `yaml:"ops,omitempty" json:"ops,omitempty"`
}

// SkillSpec is an initiative skill when On is empty, a trigger skill
// otherwise.
type SkillSpec struct {
	ID     int         `yaml:"id" json:"id"`
	Name   string      `yaml:"name" json:"name"`
	Type   string      `yaml:"type,omitempty" json:"type,omitempty"`
	Cost   string      `yaml:"cost,omitempty" json:"cost,omitempty"`
	On     string      `yaml:"on,omitempty" json:"on,omitempty"`
	Scope  string      `yaml:"scope,omitempty" json:"scope,omitempty"`
	Filter *FilterSpec `yaml:"filter,omitempty" json:"filter,omitempty"`
	Ops    []OpSpec    `yaml:"ops" json:"ops"`
}

// FilterSpec restricts when a skill runs. Every field set must match.
type FilterSpec struct {
	SkillType  string `yaml:"skillType,omitempty" json:"skillType,omitempty"`
	DamageType string `yaml:"damageType,omitempty" json:"damageType,omitempty"`
	Reaction   string `yaml:"reaction,omitempty" json:"reaction,omitempty"`
	Source     string `yaml:"source,omitempty" json:"source,omitempty"`
	Target     string `yaml:"target,omitempty" json:"target,omitempty"`
	ActionKind string `yaml:"actionKind,omitempty" json:"actionKind,omitempty"`
	CardTag    string `yaml:"cardTag,omitempty" json:"cardTag,omitempty"`
	Charged    bool   `yaml:"charged,omitempty" json:"charged,omitempty"`
	Plunging   bool   `yaml:"plunging,omitempty" json:"plunging,omitempty"`
	// Damaged requires the skill's character to be below max health.
	Damaged bool `yaml:"damaged,omitempty" json:"damaged,omitempty"`
}

// OpSpec is one step of a skill body.
type OpSpec struct {
	Op     string `yaml:"op" json:"op"`
	Target string `yaml:"target,omitempty" json:"target,omitempty"`
	Type   string `yaml:"type,omitempty" json:"type,omitempty"`
	Value  int    `yaml:"value,omitempty" json:"value,omitempty"`
	Entity int    `yaml:"entity,omitempty" json:"entity,omitempty"`
	Card   int    `yaml:"card,omitempty" json:"card,omitempty"`
	Var    string `yaml:"var,omitempty" json:"var,omitempty"`
	Flag   string `yaml:"flag,omitempty" json:"flag,omitempty"`
}
