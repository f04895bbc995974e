package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gi-tcg/gitcg-server-go/internal/game/dice"
	"github.com/gi-tcg/gitcg-server-go/internal/game/rules"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

func TestBuiltin(t *testing.T) {
	d, err := Builtin()
	require.NoError(t, err)

	assert.Equal(t, "builtin-1", d.Version())
	assert.Len(t, d.CharacterIDs(), 7)
	assert.Equal(t, []int{ReactionsExtensionID}, d.Extensions())

	ganyu, ok := d.Character(1101)
	require.True(t, ok)
	assert.Equal(t, dice.Cryo, ganyu.Element)
	assert.Equal(t, []int{11011, 11012, 11013}, ganyu.Skills)

	burst, ok := d.Skill(11013)
	require.True(t, ok)
	assert.Equal(t, rules.KindInitiative, burst.Kind)
	assert.Equal(t, rules.SkillBurst, burst.Type)
	assert.Equal(t, 3, burst.Cost.Energy())

	diluc, _ := d.Character(1301)
	slot, ok := diluc.Vars.Slot("onslaught")
	assert.True(t, ok)
	assert.Equal(t, 0, slot)

	card, ok := d.Card(332008)
	require.True(t, ok)
	assert.Equal(t, state.TargetMyCharacter, card.Target)
	assert.Equal(t, card.ID, card.Skill)
	legend, _ := d.Card(332006)
	assert.True(t, legend.HasTag(state.TagLegend))

	kath, ok := d.Entity(321002)
	require.True(t, ok)
	assert.Equal(t, state.EntitySupport, kath.Type)
	s, ok := d.Skill(kath.Skills[0])
	require.True(t, ok)
	assert.Equal(t, rules.EventModifyAction, s.On)
	assert.NotNil(t, s.Sync)
	assert.Nil(t, s.Action)
}

func TestParseSchema(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no version", "characters: []\n"},
		{"unknown field", "version: x\nbogus: 1\n"},
		{"bad element", "version: x\ncharacters:\n  - {id: 1, name: a, element: Light, maxHealth: 10, skills: []}\n"},
		{"bad entity type", "version: x\nentities:\n  - {id: 1, name: a, type: weapon}\n"},
		{"negative id", "version: x\ncards:\n  - {id: -4, name: a, type: event}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	_, err := Parse([]byte("version: [unterminated"))
	assert.Error(t, err)
}

func TestCompileErrors(t *testing.T) {
	base := func(extra string) string {
		return "version: x\n" + extra
	}
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			"unknown op",
			base("cards:\n  - {id: 1, name: a, type: event, ops: [{op: explode}]}\n"),
			"unknown op",
		},
		{
			"sync op in action",
			base("cards:\n  - {id: 1, name: a, type: event, ops: [{op: increaseDamage, value: 1}]}\n"),
			"only runs in a synchronous handler",
		},
		{
			"async op in sync handler",
			base("entities:\n  - id: 1\n    name: a\n    type: status\n    skills:\n      - {id: 5, name: s, on: modifyDamage1, ops: [{op: damage, value: 1}]}\n"),
			"cannot run in a synchronous handler",
		},
		{
			"entity skill without event",
			base("entities:\n  - id: 1\n    name: a\n    type: status\n    skills:\n      - {id: 5, name: s, ops: []}\n"),
			"need an event",
		},
		{
			"unknown extension",
			"version: x\nextensions: [gravity]\n",
			"unknown extension",
		},
		{
			"duplicate skill",
			base("cards:\n  - {id: 7, name: a, type: event, ops: [{op: drawCards, value: 1}]}\n  - {id: 7, name: b, type: event}\n"),
			"duplicate card 7",
		},
		{
			"missing entity id",
			base("cards:\n  - {id: 1, name: a, type: event, ops: [{op: summon}]}\n"),
			"entity id required",
		},
		{
			"bad target",
			base("cards:\n  - {id: 1, name: a, type: event, ops: [{op: heal, value: 1, target: everyone}]}\n"),
			"unknown target",
		},
		{
			"bad flag",
			base("cards:\n  - {id: 1, name: a, type: event, ops: [{op: setFlag, flag: sleepy}]}\n"),
			"unknown flag",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = Compile(f)
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mini.yaml")
	content := `version: mini
characters:
  - id: 1
    name: Dummy
    element: Geo
    maxHealth: 5
    skills:
      - id: 10
        name: Poke
        type: normal
        cost: "{Void:1}"
        ops:
          - { op: damage, value: 1 }
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mini", d.Version())
	assert.Equal(t, 1, d.SkillCount())
	assert.Empty(t, d.Extensions())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))

	_, err := r.Data("")
	assert.ErrorIs(t, err, ErrUnknownVersion)

	builtin, err := Builtin()
	require.NoError(t, err)
	require.NoError(t, r.Register(builtin))
	assert.Error(t, r.Register(builtin))

	f, err := Parse([]byte("version: extra\n"))
	require.NoError(t, err)
	extra, err := Compile(f)
	require.NoError(t, err)
	require.NoError(t, r.Register(extra))

	latest, err := r.Data("")
	require.NoError(t, err)
	assert.Equal(t, "extra", latest.Version())

	got, err := r.Data("builtin-1")
	require.NoError(t, err)
	assert.Same(t, builtin, got)
	assert.Equal(t, []string{"builtin-1", "extra"}, r.Versions())
}

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for _, v := range []string{"extra-1", "extra-2"} {
		path := filepath.Join(dir, v+".yaml")
		require.NoError(t, os.WriteFile(path, []byte("version: "+v+"\n"), 0o600))
		files = append(files, path)
	}

	r, err := LoadRegistry(context.Background(), files, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"builtin-1", "extra-1", "extra-2"}, r.Versions())
	latest, err := r.Data("")
	require.NoError(t, err)
	assert.Equal(t, "extra-2", latest.Version())

	_, err = LoadRegistry(context.Background(), append(files, filepath.Join(dir, "missing.yaml")), zaptest.NewLogger(t))
	assert.Error(t, err)

	// a file repeating the builtin version collides
	dup := filepath.Join(dir, "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte("version: builtin-1\n"), 0o600))
	_, err = LoadRegistry(context.Background(), []string{dup}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
