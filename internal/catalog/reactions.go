package catalog

import (
	"github.com/gi-tcg/gitcg-server-go/internal/game/reaction"
	"github.com/gi-tcg/gitcg-server-go/internal/game/rpc"
	"github.com/gi-tcg/gitcg-server-go/internal/game/rules"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// Ids reserved by the reactions extension.
const (
	ReactionsExtensionID = 900001

	FrozenStatusID       = 900101
	CrystallizeShieldID  = 900102
	BurningFlameID       = 900103
	DendroCoreID         = 900104
	CatalyzingFieldID    = 900105
	reactionsSkillBase   = 900200
	reactionsCountSkill  = reactionsSkillBase + 1
	frozenBlockSkill     = reactionsSkillBase + 2
	frozenShatterSkill   = reactionsSkillBase + 3
	crystallizeSkill     = reactionsSkillBase + 4
	burningFlameSkill    = reactionsSkillBase + 5
	dendroCoreSkill      = reactionsSkillBase + 6
	catalyzingFieldSkill = reactionsSkillBase + 7
)

// ReactionCounts is the state of the reactions extension: how many
// reactions each player has triggered, by reaction name.
type ReactionCounts struct {
	ByPlayer [2]map[string]int `json:"byPlayer"`
}

// extensions maps the names usable in a catalogue file's extensions list
// to their installers.
var extensions = map[string]func(b *Builder){
	"reactions": installReactions,
}

// installReactions adds the entities elemental reactions leave behind.
func installReactions(b *Builder) {
	b.Extension(state.ExtensionDefinition{
		ID:      ReactionsExtensionID,
		Name:    "Elemental reactions",
		Initial: []byte(`{"byPlayer":[{},{}]}`),
	}, true, &rules.Skill{
		ID:     reactionsCountSkill,
		Name:   "Reaction aftermath",
		Kind:   rules.KindTrigger,
		On:     rules.EventReaction,
		Scope:  rules.ScopeAll,
		Action: reactionAftermath,
	})

	b.Entity(state.EntityDefinition{
		ID:       FrozenStatusID,
		Name:     "Frozen",
		Type:     state.EntityStatus,
		Duration: 1,
	}, &rules.Skill{
		ID:     frozenBlockSkill,
		Name:   "Frozen",
		Kind:   rules.KindTrigger,
		On:     rules.EventModifyAction,
		Scope:  rules.ScopeMaster,
		Filter: func(_ *rules.Context, self state.Ref, arg rules.Arg) bool {
			a, ok := arg.(*rules.ActionArg)
			return ok && a.Action.Kind == rpc.ActionUseSkill && a.Action.CharacterID == self.MasterID
		},
		Sync: func(*rules.Context, state.Ref, rules.Arg) (bool, error) { return false, nil },
	}, &rules.Skill{
		ID:     frozenShatterSkill,
		Name:   "Shatter",
		Kind:   rules.KindTrigger,
		On:     rules.EventModifyDamageAdd,
		Scope:  rules.ScopeAll,
		Filter: func(_ *rules.Context, self state.Ref, arg rules.Arg) bool {
			d, ok := arg.(*rules.DamageArg)
			return ok && d.TargetID == self.MasterID && (d.Type == reaction.Physical || d.Type == reaction.Pyro)
		},
		Sync: func(c *rules.Context, self state.Ref, arg rules.Arg) (bool, error) {
			arg.(*rules.DamageArg).Value += 2
			return true, c.Dispose(self.ID)
		},
	})

	b.Entity(state.EntityDefinition{
		ID:                CrystallizeShieldID,
		Name:              "Crystallize",
		Type:              state.EntityCombatStatus,
		Shield:            1,
		DisposeWhenUsedUp: true,
	}, &rules.Skill{
		ID:     crystallizeSkill,
		Name:   "Crystallize",
		Kind:   rules.KindTrigger,
		On:     rules.EventModifyDamageSub,
		Scope:  rules.ScopeAll,
		Filter: activeTakesDamage,
		Sync:   syncBody(mustOps(compileShield(OpSpec{}))),
	})

	b.Entity(state.EntityDefinition{
		ID:                BurningFlameID,
		Name:              "Burning Flame",
		Type:              state.EntitySummon,
		Usage:             1,
		DisposeWhenUsedUp: true,
	}, &rules.Skill{
		ID:    burningFlameSkill,
		Name:  "Burning Flame",
		Kind:  rules.KindTrigger,
		On:    rules.EventEndPhase,
		Scope: rules.ScopeAll,
		Action: func(c *rules.Context, self state.Ref, _ rules.Arg) error {
			if target := c.Active(self.Who.Opp()); target != nil {
				if err := c.Damage(target.ID, reaction.Pyro, 1); err != nil {
					return err
				}
			}
			return c.ConsumeUsage(self.ID, 1)
		},
	})

	b.Entity(state.EntityDefinition{
		ID:                DendroCoreID,
		Name:              "Dendro Core",
		Type:              state.EntityCombatStatus,
		Usage:             1,
		DisposeWhenUsedUp: true,
	}, &rules.Skill{
		ID:     dendroCoreSkill,
		Name:   "Dendro Core",
		Kind:   rules.KindTrigger,
		On:     rules.EventModifyDamageAdd,
		Scope:  rules.ScopeAll,
		Filter: ownDamageOf(reaction.Pyro, reaction.Electro),
		Sync:   boostAndConsume(2),
	})

	b.Entity(state.EntityDefinition{
		ID:                CatalyzingFieldID,
		Name:              "Catalyzing Field",
		Type:              state.EntityCombatStatus,
		Usage:             2,
		DisposeWhenUsedUp: true,
	}, &rules.Skill{
		ID:     catalyzingFieldSkill,
		Name:   "Catalyzing Field",
		Kind:   rules.KindTrigger,
		On:     rules.EventModifyDamageAdd,
		Scope:  rules.ScopeAll,
		Filter: ownDamageOf(reaction.Electro, reaction.Dendro),
		Sync:   boostAndConsume(1),
	})
}

func mustOps(fn opFunc, err error) []opFunc {
	if err != nil {
		panic(err)
	}
	return []opFunc{fn}
}

func reactionAftermath(c *rules.Context, self state.Ref, arg rules.Arg) error {
	a, ok := arg.(*rules.ReactionArg)
	if !ok || a.Damage == nil {
		return nil
	}
	d := a.Damage
	var counts ReactionCounts
	if err := c.ExtensionState(self.DefinitionID, &counts); err != nil {
		return err
	}
	if d.SourceWho.Valid() {
		if counts.ByPlayer[d.SourceWho] == nil {
			counts.ByPlayer[d.SourceWho] = make(map[string]int)
		}
		counts.ByPlayer[d.SourceWho][a.Reaction.String()]++
		if err := c.SetExtensionState(self.DefinitionID, counts); err != nil {
			return err
		}
	}

	switch {
	case a.Reaction == reaction.Frozen:
		_, err := c.AddStatus(d.TargetID, FrozenStatusID)
		return err
	case reaction.IsCrystallize(a.Reaction):
		if !d.SourceWho.Valid() {
			return nil
		}
		_, err := c.AddCombatStatus(d.SourceWho, CrystallizeShieldID)
		return err
	case a.Reaction == reaction.Burning:
		if !d.SourceWho.Valid() {
			return nil
		}
		_, err := c.Summon(d.SourceWho, BurningFlameID)
		return err
	case a.Reaction == reaction.Bloom:
		if !d.SourceWho.Valid() {
			return nil
		}
		_, err := c.AddCombatStatus(d.SourceWho, DendroCoreID)
		return err
	case a.Reaction == reaction.Quicken:
		if !d.SourceWho.Valid() {
			return nil
		}
		_, err := c.AddCombatStatus(d.SourceWho, CatalyzingFieldID)
		return err
	}
	return nil
}

func activeTakesDamage(c *rules.Context, self state.Ref, arg rules.Arg) bool {
	d, ok := arg.(*rules.DamageArg)
	if !ok || d.TargetWho != self.Who || d.Value <= 0 {
		return false
	}
	active := c.Active(self.Who)
	return active != nil && active.ID == d.TargetID
}

func ownDamageOf(types ...reaction.DamageType) func(*rules.Context, state.Ref, rules.Arg) bool {
	return func(_ *rules.Context, self state.Ref, arg rules.Arg) bool {
		d, ok := arg.(*rules.DamageArg)
		if !ok || d.SourceWho != self.Who || d.TargetWho == self.Who {
			return false
		}
		for _, t := range types {
			if d.Type == t {
				return true
			}
		}
		return false
	}
}

func boostAndConsume(n int) func(*rules.Context, state.Ref, rules.Arg) (bool, error) {
	return func(c *rules.Context, self state.Ref, arg rules.Arg) (bool, error) {
		arg.(*rules.DamageArg).Value += n
		return true, c.ConsumeUsage(self.ID, 1)
	}
}
