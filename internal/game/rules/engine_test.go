package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gi-tcg/gitcg-server-go/internal/game/dice"
	"github.com/gi-tcg/gitcg-server-go/internal/game/mutation"
	"github.com/gi-tcg/gitcg-server-go/internal/game/reaction"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

type fakeLibrary struct {
	characters map[int]*state.CharacterDefinition
	entities   map[int]*state.EntityDefinition
	cards      map[int]*state.CardDefinition
	skills     map[int]*Skill
}

func newFakeLibrary() *fakeLibrary {
	lib := &fakeLibrary{
		characters: map[int]*state.CharacterDefinition{},
		entities:   map[int]*state.EntityDefinition{},
		cards:      map[int]*state.CardDefinition{},
		skills:     map[int]*Skill{},
	}
	for i, el := range []dice.Type{dice.Pyro, dice.Hydro, dice.Cryo, dice.Electro} {
		id := 1001 + i
		lib.characters[id] = &state.CharacterDefinition{ID: id, Element: el, MaxHealth: 10, MaxEnergy: 3}
	}
	return lib
}

func (l *fakeLibrary) Version() string { return "test" }
func (l *fakeLibrary) Character(id int) (*state.CharacterDefinition, bool) {
	d, ok := l.characters[id]
	return d, ok
}
func (l *fakeLibrary) Entity(id int) (*state.EntityDefinition, bool) {
	d, ok := l.entities[id]
	return d, ok
}
func (l *fakeLibrary) Card(id int) (*state.CardDefinition, bool) {
	d, ok := l.cards[id]
	return d, ok
}
func (l *fakeLibrary) Extension(int) (*state.ExtensionDefinition, bool) { return nil, false }
func (l *fakeLibrary) Skill(id int) (*Skill, bool) {
	s, ok := l.skills[id]
	return s, ok
}
func (l *fakeLibrary) Extensions() []int { return nil }

// addSkill registers s and attaches it to a character or entity definition.
func (l *fakeLibrary) addSkill(carrier int, s *Skill) {
	l.skills[s.ID] = s
	if d, ok := l.characters[carrier]; ok {
		d.Skills = append(d.Skills, s.ID)
	}
	if d, ok := l.entities[carrier]; ok {
		d.Skills = append(d.Skills, s.ID)
	}
}

type fakeDecider struct {
	asked  map[state.Who][]int
	choose func(state.Who, []int) int
}

func (d *fakeDecider) ChooseActive(_ context.Context, candidates map[state.Who][]int) (map[state.Who]int, error) {
	d.asked = candidates
	out := make(map[state.Who]int)
	for who, ids := range candidates {
		if d.choose != nil {
			out[who] = d.choose(who, ids)
		} else {
			out[who] = ids[0]
		}
	}
	return out, nil
}

func (d *fakeDecider) SelectCard(_ context.Context, _ state.Who, defs []int) (int, error) {
	return defs[len(defs)-1], nil
}

// newTestEngine starts a game with characters 1, 2 (player one) and 3, 4
// (player two); 1 and 3 are active.
func newTestEngine(t *testing.T, lib *fakeLibrary, d Decider) *Engine {
	t.Helper()
	character := func(id int) state.CharacterState {
		return state.CharacterState{
			ID:           id,
			DefinitionID: 1000 + id,
			Vars:         state.CharacterVariables{Health: 10, MaxHealth: 10, MaxEnergy: 3, Alive: true},
		}
	}
	g, err := mutation.Replay(&state.GameState{Config: state.DefaultConfig()}, []mutation.Mutation{
		mutation.ChangePhase{Phase: state.PhaseAction},
		mutation.CreateCharacter{Who: state.PlayerOne, Value: character(1)},
		mutation.CreateCharacter{Who: state.PlayerOne, Value: character(2)},
		mutation.CreateCharacter{Who: state.PlayerTwo, Value: character(3)},
		mutation.CreateCharacter{Who: state.PlayerTwo, Value: character(4)},
		mutation.SwitchActive{Who: state.PlayerOne, CharacterID: 1},
		mutation.SwitchActive{Who: state.PlayerTwo, CharacterID: 3},
	})
	require.NoError(t, err)
	return NewEngine(lib, mutation.NewStream(g, zaptest.NewLogger(t)), d, zaptest.NewLogger(t))
}

func run(t *testing.T, e *Engine, fn func(c *Context) error) {
	t.Helper()
	require.NoError(t, e.Run(context.Background(), fn))
}

func health(t *testing.T, e *Engine, id int) int {
	t.Helper()
	ch, _, err := e.State().Character(id)
	require.NoError(t, err)
	return ch.Vars.Health
}

func TestDamageTriggersReaction(t *testing.T) {
	lib := newFakeLibrary()
	var seen []reaction.Reaction
	lib.addSkill(1003, &Skill{
		ID: 1, Kind: KindTrigger, On: EventReaction, Scope: ScopeMaster,
		Action: func(c *Context, self state.Ref, arg Arg) error {
			seen = append(seen, arg.(*ReactionArg).Reaction)
			return nil
		},
	})
	e := newTestEngine(t, lib, nil)

	run(t, e, func(c *Context) error {
		if err := c.SetVar(3, state.AuraVar, int(reaction.AuraPyro)); err != nil {
			return err
		}
		return c.Damage(3, reaction.Hydro, 1)
	})

	assert.Equal(t, 7, health(t, e, 3))
	ch, _, _ := e.State().Character(3)
	assert.Equal(t, reaction.AuraNone, ch.Vars.Aura)
	assert.Equal(t, []reaction.Reaction{reaction.Vaporize}, seen)
	assert.Empty(t, e.State().Deferred)
}

func TestDamageModifiersAndCancel(t *testing.T) {
	lib := newFakeLibrary()
	lib.addSkill(1001, &Skill{
		ID: 1, Kind: KindTrigger, On: EventModifyDamageAdd, Scope: ScopeMaster,
		Sync: func(c *Context, self state.Ref, arg Arg) (bool, error) {
			arg.(*DamageArg).Value += 2
			return true, nil
		},
	})
	lib.addSkill(1004, &Skill{
		ID: 2, Kind: KindTrigger, On: EventModifyDamageType, Scope: ScopeMaster,
		Sync: func(c *Context, self state.Ref, arg Arg) (bool, error) {
			return false, nil
		},
	})
	e := newTestEngine(t, lib, nil)

	run(t, e, func(c *Context) error {
		c.self = state.Ref{Kind: state.RefCharacter, Who: state.PlayerOne, ID: 1, MasterID: 1}
		if err := c.Damage(3, reaction.Physical, 1); err != nil {
			return err
		}
		// character 4 cancels everything aimed at it
		if err := c.Damage(4, reaction.Physical, 5); err != nil {
			return err
		}
		return c.Damage(4, reaction.Piercing, 1)
	})

	assert.Equal(t, 7, health(t, e, 3))
	assert.Equal(t, 9, health(t, e, 4))
}

func TestModifierChangingAuraReacts(t *testing.T) {
	lib := newFakeLibrary()
	lib.addSkill(1003, &Skill{
		ID: 1, Kind: KindTrigger, On: EventModifyDamageAdd, Scope: ScopeMaster,
		Sync: func(c *Context, self state.Ref, arg Arg) (bool, error) {
			return true, c.SetVar(3, state.AuraVar, int(reaction.AuraCryo))
		},
	})
	var seen []reaction.Reaction
	lib.addSkill(1003, &Skill{
		ID: 2, Kind: KindTrigger, On: EventReaction, Scope: ScopeMaster,
		Action: func(c *Context, self state.Ref, arg Arg) error {
			seen = append(seen, arg.(*ReactionArg).Reaction)
			return nil
		},
	})
	e := newTestEngine(t, lib, nil)

	run(t, e, func(c *Context) error {
		c.self = state.Ref{Kind: state.RefCharacter, Who: state.PlayerOne, ID: 1, MasterID: 1}
		return c.Damage(3, reaction.Hydro, 1)
	})

	assert.Equal(t, 8, health(t, e, 3))
	ch, _, _ := e.State().Character(3)
	assert.Equal(t, reaction.AuraNone, ch.Vars.Aura)
	assert.Equal(t, []reaction.Reaction{reaction.Frozen}, seen)
}

func TestSuperconductSpreadsPiercing(t *testing.T) {
	e := newTestEngine(t, newFakeLibrary(), nil)
	run(t, e, func(c *Context) error {
		if err := c.ApplyElement(3, reaction.Cryo); err != nil {
			return err
		}
		return c.Damage(3, reaction.Electro, 1)
	})
	assert.Equal(t, 8, health(t, e, 3))
	assert.Equal(t, 9, health(t, e, 4))
}

func TestOverloadedSwitchesTarget(t *testing.T) {
	e := newTestEngine(t, newFakeLibrary(), nil)
	run(t, e, func(c *Context) error {
		if err := c.ApplyElement(3, reaction.Pyro); err != nil {
			return err
		}
		return c.Damage(3, reaction.Electro, 1)
	})
	assert.Equal(t, 7, health(t, e, 3))
	assert.Equal(t, 4, e.State().Player(state.PlayerTwo).ActiveCharacterID)
}

func TestHealCapsAtMax(t *testing.T) {
	e := newTestEngine(t, newFakeLibrary(), nil)
	run(t, e, func(c *Context) error {
		if err := c.Damage(1, reaction.Physical, 3); err != nil {
			return err
		}
		return c.Heal(1, 5)
	})
	assert.Equal(t, 10, health(t, e, 1))
}

func TestDefeatReplacesActive(t *testing.T) {
	d := &fakeDecider{}
	e := newTestEngine(t, newFakeLibrary(), d)

	run(t, e, func(c *Context) error {
		if err := c.GainEnergy(3, 2); err != nil {
			return err
		}
		return c.Damage(3, reaction.Physical, 12)
	})

	ch, _, _ := e.State().Character(3)
	assert.False(t, ch.Vars.Alive)
	assert.Equal(t, 0, ch.Vars.Energy)
	assert.Equal(t, map[state.Who][]int{state.PlayerTwo: {4}}, d.asked)
	p2 := e.State().Player(state.PlayerTwo)
	assert.Equal(t, 4, p2.ActiveCharacterID)
	assert.True(t, p2.HasDefeated)
	assert.Nil(t, e.State().Winner)
}

func TestZeroHealthImmunity(t *testing.T) {
	lib := newFakeLibrary()
	lib.addSkill(1003, &Skill{
		ID: 1, Kind: KindTrigger, On: EventModifyZeroHealth, Scope: ScopeMaster,
		Sync: func(c *Context, self state.Ref, arg Arg) (bool, error) {
			z := arg.(*ZeroHealthArg)
			z.Immune, z.HealTo = true, 2
			return true, nil
		},
	})
	e := newTestEngine(t, lib, &fakeDecider{})
	run(t, e, func(c *Context) error {
		return c.Damage(3, reaction.Physical, 20)
	})
	assert.Equal(t, 2, health(t, e, 3))
}

func TestWipeEndsGame(t *testing.T) {
	e := newTestEngine(t, newFakeLibrary(), &fakeDecider{})
	err := e.Run(context.Background(), func(c *Context) error {
		if err := c.Damage(3, reaction.Piercing, 10); err != nil {
			return err
		}
		return c.Damage(4, reaction.Piercing, 10)
	})
	require.ErrorIs(t, err, ErrGameOver)
	require.NotNil(t, e.State().Winner)
	assert.Equal(t, state.PlayerOne, *e.State().Winner)
}

func TestDefeatWithoutDeciderFails(t *testing.T) {
	e := newTestEngine(t, newFakeLibrary(), nil).Fork()
	err := e.Run(context.Background(), func(c *Context) error {
		return c.Damage(3, reaction.Piercing, 10)
	})
	assert.ErrorIs(t, err, ErrNoDecider)
}

func TestFilterIsReadOnly(t *testing.T) {
	lib := newFakeLibrary()
	var filterErr error
	fired := 0
	lib.addSkill(1003, &Skill{
		ID: 1, Kind: KindTrigger, On: EventDamage, Scope: ScopeMaster,
		Filter: func(c *Context, self state.Ref, arg Arg) bool {
			filterErr = c.SetVar(self.ID, state.Energy, 1)
			return true
		},
		Action: func(c *Context, self state.Ref, arg Arg) error {
			fired++
			return nil
		},
	})
	e := newTestEngine(t, lib, nil)
	run(t, e, func(c *Context) error {
		return c.Damage(3, reaction.Physical, 1)
	})
	assert.ErrorIs(t, filterErr, ErrReadOnly)
	assert.Equal(t, 1, fired)
	ch, _, _ := e.State().Character(3)
	assert.Equal(t, 0, ch.Vars.Energy)
}

func TestSyncHandlerCannotDamage(t *testing.T) {
	lib := newFakeLibrary()
	lib.addSkill(1003, &Skill{
		ID: 1, Kind: KindTrigger, On: EventModifyDamageSub, Scope: ScopeMaster,
		Sync: func(c *Context, self state.Ref, arg Arg) (bool, error) {
			return true, c.Damage(1, reaction.Physical, 1)
		},
	})
	e := newTestEngine(t, lib, nil)
	err := e.Run(context.Background(), func(c *Context) error {
		return c.Damage(3, reaction.Physical, 1)
	})
	assert.ErrorIs(t, err, ErrSyncContext)
}

func TestEntityLifecycle(t *testing.T) {
	lib := newFakeLibrary()
	lib.entities[200] = &state.EntityDefinition{ID: 200, Type: state.EntityCombatStatus, Usage: 2, DisposeWhenUsedUp: true}
	lib.entities[201] = &state.EntityDefinition{ID: 201, Type: state.EntitySummon, Usage: 1, Duration: 2}
	var entered, disposed []int
	lib.addSkill(1001, &Skill{
		ID: 1, Kind: KindTrigger, On: EventEnter, Scope: ScopeAll,
		Action: func(c *Context, self state.Ref, arg Arg) error {
			entered = append(entered, arg.(*EntityArg).DefinitionID)
			return nil
		},
	})
	lib.addSkill(1002, &Skill{
		ID: 2, Kind: KindTrigger, On: EventDispose, Scope: ScopeAll,
		Action: func(c *Context, self state.Ref, arg Arg) error {
			disposed = append(disposed, arg.(*EntityArg).DefinitionID)
			return nil
		},
	})
	e := newTestEngine(t, lib, nil)

	var status int
	run(t, e, func(c *Context) error {
		var err error
		if status, err = c.AddCombatStatus(state.PlayerOne, 200); err != nil {
			return err
		}
		if err := c.ConsumeUsage(status, 1); err != nil {
			return err
		}
		again, err := c.AddCombatStatus(state.PlayerOne, 200)
		if err != nil {
			return err
		}
		if again != status {
			return errors.New("status not refreshed")
		}
		_, err = c.Summon(state.PlayerOne, 201)
		return err
	})
	es, _, err := e.State().Entity(status)
	require.NoError(t, err)
	assert.Equal(t, 2, es.Vars.Usage)
	assert.Equal(t, []int{200, 201}, entered)

	run(t, e, func(c *Context) error { return c.ConsumeUsage(status, 2) })
	assert.Equal(t, []int{200}, disposed)
	assert.Empty(t, e.State().Player(state.PlayerOne).CombatStatuses)

	run(t, e, func(c *Context) error { return c.RoundEndCleanup() })
	require.Len(t, e.State().Player(state.PlayerOne).Summons, 1)
	run(t, e, func(c *Context) error { return c.RoundEndCleanup() })
	assert.Empty(t, e.State().Player(state.PlayerOne).Summons)
	assert.Equal(t, []int{200, 201}, disposed)
}

func TestSummonLimit(t *testing.T) {
	lib := newFakeLibrary()
	e := newTestEngine(t, lib, nil)
	limit := e.State().Config.MaxSummonsCount
	run(t, e, func(c *Context) error {
		for i := 0; i <= limit; i++ {
			lib.entities[300+i] = &state.EntityDefinition{ID: 300 + i, Type: state.EntitySummon, Usage: 1}
			id, err := c.Summon(state.PlayerTwo, 300+i)
			if err != nil {
				return err
			}
			if i == limit && id != 0 {
				return errors.New("summon over the limit")
			}
		}
		return nil
	})
	assert.Len(t, e.State().Player(state.PlayerTwo).Summons, limit)
}

func TestUseSkill(t *testing.T) {
	lib := newFakeLibrary()
	lib.addSkill(1001, &Skill{
		ID: 10, Kind: KindInitiative, Type: SkillNormal,
		Action: func(c *Context, self state.Ref, arg Arg) error {
			opp := c.Active(self.Who.Opp())
			return c.Damage(opp.ID, reaction.Physical, 2)
		},
	})
	lib.addSkill(1001, &Skill{
		ID: 11, Kind: KindInitiative, Type: SkillBurst,
		Action: func(c *Context, self state.Ref, arg Arg) error {
			return c.Damage(c.Active(self.Who.Opp()).ID, reaction.Pyro, 3)
		},
	})
	var charged []bool
	lib.addSkill(1003, &Skill{
		ID: 12, Kind: KindTrigger, On: EventDamage, Scope: ScopeMaster,
		Action: func(c *Context, self state.Ref, arg Arg) error {
			charged = append(charged, arg.(*DamageArg).Charged)
			return nil
		},
	})
	e := newTestEngine(t, lib, nil)

	run(t, e, func(c *Context) error {
		return c.UseSkill(&SkillArg{Who: state.PlayerOne, CharacterID: 1, SkillID: 10, Charged: true})
	})
	ch, _, _ := e.State().Character(1)
	assert.Equal(t, 1, ch.Vars.Energy)
	assert.Equal(t, 8, health(t, e, 3))
	assert.Equal(t, []bool{true}, charged)
	require.Len(t, e.State().Player(state.PlayerOne).SkillLog, 1)

	run(t, e, func(c *Context) error {
		return c.UseSkill(&SkillArg{Who: state.PlayerOne, CharacterID: 1, SkillID: 11})
	})
	ch, _, _ = e.State().Character(1)
	assert.Equal(t, 0, ch.Vars.Energy)
	assert.Equal(t, 5, health(t, e, 3))
}

func TestRandomIsDeterministic(t *testing.T) {
	a := newTestEngine(t, newFakeLibrary(), nil)
	b := newTestEngine(t, newFakeLibrary(), nil)
	var ra, rb []dice.Type
	run(t, a, func(c *Context) (err error) { ra, err = c.RollDice(8); return err })
	run(t, b, func(c *Context) (err error) { rb, err = c.RollDice(8); return err })
	assert.Equal(t, ra, rb)
	for _, d := range ra {
		assert.True(t, d >= dice.Cryo && d <= dice.Omni, "die %v", d)
	}
}

func TestDrawCardsOverflow(t *testing.T) {
	e := newTestEngine(t, newFakeLibrary(), nil)
	p1 := e.State().Player(state.PlayerOne)
	limit := e.State().Config.MaxHandsCount
	run(t, e, func(c *Context) error {
		for i := 0; i < limit+2; i++ {
			id := c.State().Iterators.ID + 1
			if err := c.Apply(mutation.CreateCard{Who: state.PlayerOne, Value: state.CardState{ID: id, DefinitionID: 500}, Target: state.ZonePile}); err != nil {
				return err
			}
		}
		return c.DrawCards(state.PlayerOne, limit+1)
	})
	assert.Len(t, p1.Hands, limit)
	assert.Len(t, p1.Pile, 1)
}

func TestWouldFireHasNoSideEffects(t *testing.T) {
	lib := newFakeLibrary()
	lib.addSkill(1003, &Skill{
		ID: 1, Kind: KindTrigger, On: EventSwitchActive, Scope: ScopeMy,
		Action: func(c *Context, self state.Ref, arg Arg) error { return nil },
	})
	e := newTestEngine(t, lib, nil)
	before := e.Stream().Len()
	got := e.WouldFire(EventSwitchActive, &SwitchArg{Who: state.PlayerTwo, From: 3, To: 4})
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].Self.ID)
	assert.Empty(t, e.WouldFire(EventSwitchActive, &SwitchArg{Who: state.PlayerOne, From: 1, To: 2}))
	assert.Equal(t, before, e.Stream().Len())
}

func TestEventQueueFIFO(t *testing.T) {
	var q eventQueue
	q.Push(pendingEvent{Event: EventDamage})
	q.Push(pendingEvent{Event: EventHeal})
	var other eventQueue
	other.Push(pendingEvent{Event: EventDefeated})
	q.Drain(&other)

	if q.Len() != 3 || !other.IsEmpty() {
		t.Fatalf("unexpected lengths %d/%d", q.Len(), other.Len())
	}
	for _, want := range []EventType{EventDamage, EventHeal, EventDefeated} {
		got, ok := q.Pop()
		if !ok || got.Event != want {
			t.Fatalf("expected %s, got %s", want, got.Event)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestEventTypeClassification(t *testing.T) {
	if !EventModifyDamageAdd.IsSync() || EventDamage.IsSync() {
		t.Fatalf("sync classification is wrong")
	}
	if EventType("nope").Known() {
		t.Fatalf("unknown event reported as known")
	}
}
