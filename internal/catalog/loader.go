package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/gi-tcg/gitcg-server-go/internal/game/dice"
	"github.com/gi-tcg/gitcg-server-go/internal/game/rules"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

//go:embed schema.json
var schemaJSON []byte

//go:embed builtin.yaml
var builtinYAML []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func fileSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("catalog.schema.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("catalog.schema.json")
	})
	return schema, schemaErr
}

// Parse decodes a YAML catalogue file and checks it against the catalogue
// schema.
func Parse(raw []byte) (*File, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("catalog yaml: %w", err)
	}
	// the validator wants JSON values
	js, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("catalog yaml: %w", err)
	}
	var generic any
	if err := json.Unmarshal(js, &generic); err != nil {
		return nil, err
	}
	sch, err := fileSchema()
	if err != nil {
		return nil, fmt.Errorf("catalog schema: %w", err)
	}
	if err := sch.Validate(generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("catalog yaml: %w", err)
	}
	return &f, nil
}

// Load reads, validates and compiles the catalogue at path.
func Load(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	d, err := Compile(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// LoadRegistry builds a registry holding the builtin catalogue followed by
// files, so the last file is the latest version. Files are compiled in
// parallel.
func LoadRegistry(ctx context.Context, files []string, logger *zap.Logger) (*Registry, error) {
	builtin, err := Builtin()
	if err != nil {
		return nil, err
	}
	loaded := make([]*Data, len(files))
	eg, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := Load(path)
			if err != nil {
				return err
			}
			loaded[i] = d
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	r := NewRegistry(logger)
	for _, d := range append([]*Data{builtin}, loaded...) {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Builtin returns the catalogue shipped with the server.
func Builtin() (*Data, error) {
	f, err := Parse(builtinYAML)
	if err != nil {
		return nil, fmt.Errorf("builtin: %w", err)
	}
	return Compile(f)
}

var cardTargets = map[string]state.TargetKind{
	"":             state.TargetNone,
	"none":         state.TargetNone,
	"myCharacter":  state.TargetMyCharacter,
	"oppCharacter": state.TargetOppCharacter,
	"mySummon":     state.TargetMySummon,
}

// Compile turns a parsed file into a frozen catalogue.
func Compile(f *File) (*Data, error) {
	if strings.TrimSpace(f.Version) == "" {
		return nil, fmt.Errorf("%w: version required", ErrInvalid)
	}
	b := NewBuilder(f.Version)
	for _, ext := range f.Extensions {
		install, ok := extensions[ext]
		if !ok {
			b.fail("unknown extension %q", ext)
			continue
		}
		install(b)
	}
	for _, spec := range f.Characters {
		element, err := dice.ParseType(spec.Element)
		if err != nil {
			b.fail("character %d: %v", spec.ID, err)
			continue
		}
		skills, ok := compileSkills(b, fmt.Sprintf("character %d", spec.ID), spec.Skills, true)
		if !ok {
			continue
		}
		b.Character(state.CharacterDefinition{
			ID:        spec.ID,
			Name:      spec.Name,
			Tags:      spec.Tags,
			Element:   element,
			MaxHealth: spec.MaxHealth,
			MaxEnergy: spec.MaxEnergy,
			Vars:      spec.Vars,
		}, skills...)
	}
	for _, spec := range f.Entities {
		typ, ok := state.ParseEntityType(spec.Type)
		if !ok {
			b.fail("entity %d: unknown type %q", spec.ID, spec.Type)
			continue
		}
		skills, ok := compileSkills(b, fmt.Sprintf("entity %d", spec.ID), spec.Skills, false)
		if !ok {
			continue
		}
		b.Entity(state.EntityDefinition{
			ID:                spec.ID,
			Name:              spec.Name,
			Type:              typ,
			Tags:              spec.Tags,
			Usage:             spec.Usage,
			UsagePerRound:     spec.UsagePerRound,
			Duration:          spec.Duration,
			Shield:            spec.Shield,
			DisposeWhenUsedUp: spec.DisposeWhenUsedUp,
			Vars:              spec.Vars,
		}, skills...)
	}
	for _, spec := range f.Cards {
		def, skill, err := compileCard(spec)
		if err != nil {
			b.fail("card %d: %v", spec.ID, err)
			continue
		}
		b.Card(def, skill)
	}
	return b.Build()
}

func compileSkills(b *Builder, owner string, specs []SkillSpec, character bool) ([]*rules.Skill, bool) {
	out := make([]*rules.Skill, 0, len(specs))
	ok := true
	for _, spec := range specs {
		s, err := compileSkill(spec, character)
		if err != nil {
			b.fail("%s: skill %d: %v", owner, spec.ID, err)
			ok = false
			continue
		}
		out = append(out, s)
	}
	return out, ok
}

// compileSkill builds an initiative skill for characters with no event, a
// trigger skill otherwise.
func compileSkill(spec SkillSpec, character bool) (*rules.Skill, error) {
	cost, err := dice.ParseRequirement(spec.Cost)
	if err != nil {
		return nil, err
	}
	s := &rules.Skill{ID: spec.ID, Name: spec.Name, Cost: cost}
	if spec.On == "" {
		if !character {
			return nil, fmt.Errorf("entity skills need an event")
		}
		t, ok := rules.ParseSkillType(spec.Type)
		if !ok || t == rules.SkillNone {
			return nil, fmt.Errorf("unknown skill type %q", spec.Type)
		}
		ops, err := compileOps(spec.Ops, false)
		if err != nil {
			return nil, err
		}
		s.Kind, s.Type, s.Action = rules.KindInitiative, t, actionBody(ops)
		return s, nil
	}
	s.Kind, s.On = rules.KindTrigger, rules.EventType(spec.On)
	if !s.On.Known() {
		return nil, fmt.Errorf("unknown event %q", spec.On)
	}
	if spec.Scope != "" {
		sc, ok := rules.ParseScope(spec.Scope)
		if !ok {
			return nil, fmt.Errorf("unknown scope %q", spec.Scope)
		}
		s.Scope = sc
	}
	if s.Filter, err = compileFilter(spec.Filter); err != nil {
		return nil, err
	}
	ops, err := compileOps(spec.Ops, s.On.IsSync())
	if err != nil {
		return nil, err
	}
	if s.On.IsSync() {
		s.Sync = syncBody(ops)
	} else {
		s.Action = actionBody(ops)
	}
	return s, nil
}

// compileCard builds a card definition. Its effect skill shares the card id.
func compileCard(spec CardSpec) (state.CardDefinition, *rules.Skill, error) {
	def := state.CardDefinition{ID: spec.ID, Name: spec.Name, Tags: spec.Tags}
	typ, ok := state.ParseCardType(spec.Type)
	if !ok {
		return def, nil, fmt.Errorf("unknown type %q", spec.Type)
	}
	def.Type = typ
	target, ok := cardTargets[spec.Target]
	if !ok {
		return def, nil, fmt.Errorf("unknown target %q", spec.Target)
	}
	def.Target = target
	cost, err := dice.ParseRequirement(spec.Cost)
	if err != nil {
		return def, nil, err
	}
	def.Cost = cost
	if len(spec.Ops) == 0 {
		return def, nil, nil
	}
	ops, err := compileOps(spec.Ops, false)
	if err != nil {
		return def, nil, err
	}
	skill := &rules.Skill{ID: spec.ID, Name: spec.Name, Kind: rules.KindCard, Action: actionBody(ops)}
	if spec.Filter != nil {
		if skill.Filter, err = compileFilter(spec.Filter); err != nil {
			return def, nil, err
		}
	}
	return def, skill, nil
}
