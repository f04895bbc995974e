package watchers

import (
	"testing"

	"github.com/gi-tcg/gitcg-server-go/internal/game/mutation"
	"github.com/gi-tcg/gitcg-server-go/internal/game/reaction"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// snapshot seats characters 1 and 2 for player one, 3 for player two, and a
// summon 10 for player two.
func snapshot() *state.GameState {
	g := &state.GameState{RoundNumber: 2}
	g.Players[state.PlayerOne] = state.PlayerState{
		Who:        state.PlayerOne,
		Characters: []state.CharacterState{{ID: 1}, {ID: 2}},
	}
	g.Players[state.PlayerTwo] = state.PlayerState{
		Who:        state.PlayerTwo,
		Characters: []state.CharacterState{{ID: 3}},
		Summons:    []state.EntityState{{ID: 10}},
	}
	return g
}

func TestSkillsUsedWatcher(t *testing.T) {
	watcher := NewSkillsUsedWatcher()
	st := snapshot()

	if watcher.ConditionMet() {
		t.Fatal("watcher should not have condition met initially")
	}

	watcher.Watch(st, mutation.SkillUsed{Who: state.PlayerOne, CharacterID: 1, SkillID: 11011})
	watcher.Watch(st, mutation.SkillUsed{Who: state.PlayerOne, CharacterID: 1, SkillID: 11011})
	watcher.Watch(st, mutation.SkillUsed{Who: state.PlayerTwo, CharacterID: 3, SkillID: 13012})

	if !watcher.ConditionMet() {
		t.Fatal("watcher should have condition met after a skill")
	}
	if got := watcher.GetCount(state.PlayerOne); got != 2 {
		t.Fatalf("expected 2 skills for player one, got %d", got)
	}
	if got := watcher.GetSkillCount(state.PlayerTwo, 13012); got != 1 {
		t.Fatalf("expected 1 use of 13012, got %d", got)
	}

	// Other mutations are ignored
	watcher.Watch(st, mutation.SwitchTurn{})
	if got := watcher.GetCount(state.PlayerTwo); got != 1 {
		t.Fatalf("expected 1 skill for player two, got %d", got)
	}

	watcher.Reset()
	if watcher.ConditionMet() {
		t.Fatal("watcher should not have condition met after reset")
	}
	if got := watcher.GetCount(state.PlayerOne); got != 0 {
		t.Fatalf("expected 0 skills after reset, got %d", got)
	}
}

func TestDamageWatcher(t *testing.T) {
	watcher := NewDamageWatcher()
	st := snapshot()

	watcher.Watch(st, mutation.Damage{SourceID: 1, TargetID: 3, DamageType: reaction.Cryo, Value: 3, Reaction: reaction.Melt})
	// The summon belongs to player two
	watcher.Watch(st, mutation.Damage{SourceID: 10, TargetID: 1, DamageType: reaction.Electro, Value: 1})
	// A source that left play counts for the target's opponent
	watcher.Watch(st, mutation.Damage{SourceID: 99, TargetID: 2, DamageType: reaction.Piercing, Value: 1})
	watcher.Watch(st, mutation.Damage{SourceID: 3, TargetID: 3, DamageType: reaction.Heal, Value: 2})

	if got := watcher.GetDealt(state.PlayerOne); got != 3 {
		t.Fatalf("expected player one to deal 3, got %d", got)
	}
	if got := watcher.GetDealt(state.PlayerTwo); got != 2 {
		t.Fatalf("expected player two to deal 2, got %d", got)
	}
	if got := watcher.GetTaken(state.PlayerOne); got != 2 {
		t.Fatalf("expected player one to take 2, got %d", got)
	}
	if got := watcher.GetHealed(state.PlayerTwo); got != 2 {
		t.Fatalf("expected player two to heal 2, got %d", got)
	}
	if got := watcher.GetReactions(state.PlayerOne); got != 1 {
		t.Fatalf("expected 1 reaction, got %d", got)
	}

	// Damage to something that is not in the snapshot is skipped
	watcher.Watch(st, mutation.Damage{SourceID: 1, TargetID: 42, Value: 5})
	if got := watcher.GetDealt(state.PlayerOne); got != 3 {
		t.Fatalf("expected player one to still deal 3, got %d", got)
	}
}

func TestDefeatsWatcher(t *testing.T) {
	watcher := NewDefeatsWatcher()
	st := snapshot()

	watcher.Watch(st, mutation.ModifyVar{ID: 3, Var: state.Health, Value: 0})
	if watcher.ConditionMet() {
		t.Fatal("health alone is not a defeat")
	}
	watcher.Watch(st, mutation.ModifyVar{ID: 3, Var: state.Alive, Value: 0})
	watcher.Watch(st, mutation.ModifyVar{ID: 2, Var: state.Alive, Value: 1})

	if got := watcher.GetCount(state.PlayerTwo); got != 1 {
		t.Fatalf("expected 1 defeat for player two, got %d", got)
	}
	if got := watcher.GetCount(state.PlayerOne); got != 0 {
		t.Fatalf("a revive is not a defeat, got %d", got)
	}
}

func TestCardsWatcher(t *testing.T) {
	watcher := NewCardsWatcher()
	st := snapshot()

	watcher.Watch(st, mutation.MoveCard{Who: state.PlayerOne, ID: 5, DefinitionID: 332001, From: state.ZonePile, To: state.ZoneHands, Reason: mutation.ReasonDraw})
	watcher.Watch(st, mutation.MoveCard{Who: state.PlayerOne, ID: 6, DefinitionID: 332001, From: state.ZonePile, To: state.ZoneHands, Reason: mutation.ReasonDraw})
	watcher.Watch(st, mutation.MoveCard{Who: state.PlayerOne, ID: 5, DefinitionID: 332001, From: state.ZoneHands, To: state.ZoneRemoved, Reason: mutation.ReasonPlay})
	watcher.Watch(st, mutation.MoveCard{Who: state.PlayerTwo, ID: 7, DefinitionID: 332002, From: state.ZoneHands, To: state.ZoneRemoved, Reason: mutation.ReasonElementalTuning})
	watcher.Watch(st, mutation.MoveCard{Who: state.PlayerTwo, ID: 8, DefinitionID: 332002, From: state.ZoneHands, To: state.ZonePile, Reason: mutation.ReasonUndraw})

	if got := watcher.GetDrawn(state.PlayerOne); got != 2 {
		t.Fatalf("expected 2 drawn, got %d", got)
	}
	if got := watcher.GetPlayed(state.PlayerOne); got != 1 {
		t.Fatalf("expected 1 played, got %d", got)
	}
	if got := watcher.GetTuned(state.PlayerTwo); got != 1 {
		t.Fatalf("expected 1 tuned, got %d", got)
	}
	if got := watcher.GetDrawn(state.PlayerTwo); got != 0 {
		t.Fatalf("expected 0 drawn for player two, got %d", got)
	}
}

func TestWatcherCopy(t *testing.T) {
	watcher := NewCardsWatcher()
	st := snapshot()
	watcher.Watch(st, mutation.MoveCard{Who: state.PlayerOne, ID: 5, DefinitionID: 332001, Reason: mutation.ReasonPlay})

	copied := watcher.Copy().(*CardsWatcher)
	if copied.Key() != watcher.Key() {
		t.Fatalf("expected key %s, got %s", watcher.Key(), copied.Key())
	}
	if !copied.ConditionMet() {
		t.Fatal("copy should keep the condition")
	}

	// Modifying the copy leaves the original alone
	copied.Watch(st, mutation.MoveCard{Who: state.PlayerOne, ID: 6, DefinitionID: 332001, Reason: mutation.ReasonPlay})
	if got := watcher.GetPlayed(state.PlayerOne); got != 1 {
		t.Fatalf("original should have 1 played, got %d", got)
	}
	if got := copied.GetPlayed(state.PlayerOne); got != 2 {
		t.Fatalf("copy should have 2 played, got %d", got)
	}
}

func TestSetSummary(t *testing.T) {
	set := NewSet()
	st := snapshot()
	batch := []mutation.Mutation{
		mutation.SkillUsed{Who: state.PlayerOne, CharacterID: 1, SkillID: 11011},
		mutation.Damage{SourceID: 1, TargetID: 3, DamageType: reaction.Physical, Value: 2},
		mutation.MoveCard{Who: state.PlayerTwo, ID: 7, DefinitionID: 332002, Reason: mutation.ReasonDraw},
		mutation.ModifyVar{ID: 3, Var: state.Alive, Value: 0},
	}
	if err := set.OnPause(st, batch, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sum := set.Summary()
	if sum.Rounds != 2 {
		t.Fatalf("expected round 2, got %d", sum.Rounds)
	}
	want := PlayerStats{SkillsUsed: 1, DamageDealt: 2}
	if sum.Players[state.PlayerOne] != want {
		t.Fatalf("unexpected player one stats: %+v", sum.Players[state.PlayerOne])
	}
	want = PlayerStats{CardsDrawn: 1, DamageTaken: 2, Defeated: 1}
	if sum.Players[state.PlayerTwo] != want {
		t.Fatalf("unexpected player two stats: %+v", sum.Players[state.PlayerTwo])
	}

	set.Reset()
	if sum := set.Summary(); sum != (Summary{}) {
		t.Fatalf("expected empty summary after reset, got %+v", sum)
	}
}
