package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gi-tcg/gitcg-server-go/internal/game/mutation"
	"github.com/gi-tcg/gitcg-server-go/internal/game/reaction"
	"github.com/gi-tcg/gitcg-server-go/internal/game/rpc"
	"github.com/gi-tcg/gitcg-server-go/internal/game/rules"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// newBuiltinEngine seats Ganyu (1) and Xingqiu (2) for player one, Diluc
// (3) and Fischl (4) for player two; 1 and 3 are active.
func newBuiltinEngine(t *testing.T) (*rules.Engine, *Data) {
	t.Helper()
	d, err := Builtin()
	require.NoError(t, err)
	ext, _ := d.Extension(ReactionsExtensionID)

	initial := &state.GameState{
		Config:     state.DefaultConfig(),
		Extensions: []state.ExtensionState{{DefinitionID: ReactionsExtensionID, Value: ext.Initial}},
	}
	var log []mutation.Mutation
	log = append(log, mutation.ChangePhase{Phase: state.PhaseAction})
	seats := []struct {
		who state.Who
		def int
	}{{state.PlayerOne, 1101}, {state.PlayerOne, 1201}, {state.PlayerTwo, 1301}, {state.PlayerTwo, 1401}}
	for i, s := range seats {
		def, ok := d.Character(s.def)
		require.True(t, ok)
		log = append(log, mutation.CreateCharacter{Who: s.who, Value: state.CharacterState{
			ID:           i + 1,
			DefinitionID: s.def,
			Vars: state.CharacterVariables{
				Health:    def.MaxHealth,
				MaxHealth: def.MaxHealth,
				MaxEnergy: def.MaxEnergy,
				Alive:     true,
				Custom:    def.Vars.Initial(),
			},
		}})
	}
	log = append(log,
		mutation.SwitchActive{Who: state.PlayerOne, CharacterID: 1},
		mutation.SwitchActive{Who: state.PlayerTwo, CharacterID: 3},
	)
	g, err := mutation.Replay(initial, log)
	require.NoError(t, err)
	return rules.NewEngine(d, mutation.NewStream(g, zaptest.NewLogger(t)), nil, zaptest.NewLogger(t)), d
}

func runOn(t *testing.T, e *rules.Engine, fn func(c *rules.Context) error) {
	t.Helper()
	require.NoError(t, e.Run(context.Background(), fn))
}

func character(t *testing.T, e *rules.Engine, id int) *state.CharacterState {
	t.Helper()
	ch, _, err := e.State().Character(id)
	require.NoError(t, err)
	return ch
}

func useSkill(who state.Who, characterID, skillID int) func(c *rules.Context) error {
	return func(c *rules.Context) error {
		return c.UseSkill(&rules.SkillArg{Who: who, CharacterID: characterID, SkillID: skillID})
	}
}

func TestNormalAttack(t *testing.T) {
	e, _ := newBuiltinEngine(t)
	runOn(t, e, useSkill(state.PlayerOne, 1, 11011))

	assert.Equal(t, 8, character(t, e, 3).Vars.Health)
	assert.Equal(t, 1, character(t, e, 1).Vars.Energy)
}

func TestBurstHitsStandby(t *testing.T) {
	e, _ := newBuiltinEngine(t)
	runOn(t, e, func(c *rules.Context) error {
		return c.SetVar(1, state.Energy, 3)
	})
	runOn(t, e, useSkill(state.PlayerOne, 1, 11013))

	assert.Equal(t, 8, character(t, e, 3).Vars.Health)
	assert.Equal(t, 9, character(t, e, 4).Vars.Health)
	assert.Equal(t, 0, character(t, e, 1).Vars.Energy)
}

func TestCombatStatusBarrier(t *testing.T) {
	e, _ := newBuiltinEngine(t)
	// Ganyu creates Ice Lotus for player one.
	runOn(t, e, useSkill(state.PlayerOne, 1, 11012))
	p1 := e.State().Player(state.PlayerOne)
	require.Len(t, p1.CombatStatuses, 1)
	lotus := p1.CombatStatuses[0].ID

	// Diluc's normal attack is reduced by one.
	runOn(t, e, useSkill(state.PlayerTwo, 3, 13011))
	assert.Equal(t, 9, character(t, e, 1).Vars.Health)
	e1, _, err := e.State().Entity(lotus)
	require.NoError(t, err)
	assert.Equal(t, 1, e1.Vars.Usage)

	runOn(t, e, useSkill(state.PlayerTwo, 3, 13011))
	assert.Equal(t, 8, character(t, e, 1).Vars.Health)
	assert.Empty(t, e.State().Player(state.PlayerOne).CombatStatuses)
}

func TestCustomVariable(t *testing.T) {
	e, _ := newBuiltinEngine(t)
	runOn(t, e, useSkill(state.PlayerTwo, 3, 13012))
	runOn(t, e, useSkill(state.PlayerTwo, 3, 13012))

	assert.Equal(t, []int{2}, character(t, e, 3).Vars.Custom)
	assert.Equal(t, 4, character(t, e, 1).Vars.Health)
}

func TestInfusionChangesDamageType(t *testing.T) {
	e, _ := newBuiltinEngine(t)
	runOn(t, e, func(c *rules.Context) error {
		_, err := c.AddStatus(3, 113011)
		return err
	})
	runOn(t, e, useSkill(state.PlayerTwo, 3, 13011))

	ganyu := character(t, e, 1)
	assert.Equal(t, 8, ganyu.Vars.Health)
	assert.Equal(t, reaction.AuraPyro, ganyu.Vars.Aura)
}

func TestFrozenReaction(t *testing.T) {
	e, _ := newBuiltinEngine(t)
	runOn(t, e, func(c *rules.Context) error {
		return c.ApplyElement(3, reaction.Hydro)
	})
	runOn(t, e, useSkill(state.PlayerOne, 1, 11012))

	diluc := character(t, e, 3)
	require.Len(t, diluc.Entities, 1)
	assert.Equal(t, FrozenStatusID, diluc.Entities[0].DefinitionID)
	assert.Equal(t, 10-1-reaction.DamageBonus(reaction.Frozen), diluc.Vars.Health)

	// A frozen character cannot use skills.
	info := &rpc.ActionInfo{Kind: rpc.ActionUseSkill, Who: state.PlayerTwo, CharacterID: 3, SkillID: 13011}
	var allowed bool
	runOn(t, e, func(c *rules.Context) error {
		var err error
		allowed, err = c.Intercept(rules.EventModifyAction, &rules.ActionArg{Action: info})
		return err
	})
	assert.False(t, allowed)

	// Physical damage shatters the ice for two extra.
	before := character(t, e, 3).Vars.Health
	runOn(t, e, useSkill(state.PlayerOne, 1, 11011))
	after := character(t, e, 3)
	assert.Equal(t, before-4, after.Vars.Health)
	assert.Empty(t, after.Entities)

	var counts ReactionCounts
	require.NoError(t, e.Run(context.Background(), func(c *rules.Context) error {
		return c.ExtensionState(ReactionsExtensionID, &counts)
	}))
	assert.Equal(t, 1, counts.ByPlayer[state.PlayerOne]["Frozen"])
}

func TestCardWithTarget(t *testing.T) {
	e, d := newBuiltinEngine(t)
	arg := &rules.CardArg{Who: state.PlayerOne, CardID: 99, DefinitionID: 332001, Targets: []int{1}}

	// Food needs a damaged character.
	assert.False(t, e.CardPlayable(arg))

	runOn(t, e, useSkill(state.PlayerTwo, 3, 13012))
	assert.True(t, e.CardPlayable(arg))
	runOn(t, e, func(c *rules.Context) error { return c.PlayCard(arg) })
	assert.Equal(t, 8, character(t, e, 1).Vars.Health)

	card, _ := d.Card(332008)
	runOn(t, e, func(c *rules.Context) error {
		return c.PlayCard(&rules.CardArg{Who: state.PlayerOne, CardID: 100, DefinitionID: card.ID, Targets: []int{1}})
	})
	require.Len(t, character(t, e, 1).Entities, 1)
	runOn(t, e, func(c *rules.Context) error {
		return c.Damage(1, reaction.Piercing, 20)
	})
	ganyu := character(t, e, 1)
	assert.True(t, ganyu.Vars.Alive)
	assert.Equal(t, 1, ganyu.Vars.Health)
	assert.Empty(t, ganyu.Entities)
}

func TestSupportModifiesActions(t *testing.T) {
	e, _ := newBuiltinEngine(t)
	runOn(t, e, func(c *rules.Context) error {
		return c.PlayCard(&rules.CardArg{Who: state.PlayerOne, CardID: 50, DefinitionID: 321002})
	})
	require.Len(t, e.State().Player(state.PlayerOne).Supports, 1)

	info := &rpc.ActionInfo{Kind: rpc.ActionSwitchActive, Who: state.PlayerOne, CharacterID: 2}
	runOn(t, e, func(c *rules.Context) error {
		_, err := c.Intercept(rules.EventModifyAction, &rules.ActionArg{Action: info})
		return err
	})
	assert.True(t, info.Fast)

	// Once per round.
	again := &rpc.ActionInfo{Kind: rpc.ActionSwitchActive, Who: state.PlayerOne, CharacterID: 2}
	runOn(t, e, func(c *rules.Context) error {
		_, err := c.Intercept(rules.EventModifyAction, &rules.ActionArg{Action: again})
		return err
	})
	assert.False(t, again.Fast)

	// The opponent's support does not touch player one's actions.
	other := &rpc.ActionInfo{Kind: rpc.ActionSwitchActive, Who: state.PlayerTwo, CharacterID: 4}
	runOn(t, e, func(c *rules.Context) error {
		_, err := c.Intercept(rules.EventModifyAction, &rules.ActionArg{Action: other})
		return err
	})
	assert.False(t, other.Fast)
}

func TestSwitchOpponent(t *testing.T) {
	e, _ := newBuiltinEngine(t)
	f, err := Parse([]byte(`version: swap
characters:
  - id: 1
    name: Pusher
    element: Anemo
    maxHealth: 10
    skills:
      - id: 10
        name: Push
        type: elemental
        ops:
          - { op: switchActive, target: oppNext }
          - { op: createHandCard, card: 332002, target: opp }
`))
	require.NoError(t, err)
	swap, err := Compile(f)
	require.NoError(t, err)
	skill, ok := swap.Skill(10)
	require.True(t, ok)

	runOn(t, e, func(c *rules.Context) error {
		self := state.Ref{Kind: state.RefCharacter, Who: state.PlayerOne, ID: 1, DefinitionID: 1101, MasterID: 1}
		return skill.Action(c, self, &rules.SkillArg{Who: state.PlayerOne, CharacterID: 1, SkillID: 10})
	})
	p2 := e.State().Player(state.PlayerTwo)
	assert.Equal(t, 4, p2.ActiveCharacterID)
	require.Len(t, p2.Hands, 1)
	assert.Equal(t, 332002, p2.Hands[0].DefinitionID)
}
