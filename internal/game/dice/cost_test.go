package dice

import (
	"testing"
)

func TestParseRequirement(t *testing.T) {
	req, err := ParseRequirement("{Pyro}{Pyro}{Void:2}{Energy:3}")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if req.Count(Pyro) != 2 {
		t.Fatalf("expected 2 pyro, got %d", req.Count(Pyro))
	}
	if req.Count(Void) != 2 {
		t.Fatalf("expected 2 void, got %d", req.Count(Void))
	}
	if req.Energy() != 3 {
		t.Fatalf("expected 3 energy, got %d", req.Energy())
	}
	if req.DiceCount() != 4 {
		t.Fatalf("expected 4 dice, got %d", req.DiceCount())
	}
	if req.IsAligned() {
		t.Fatalf("expected non-aligned requirement")
	}
	if got := req.String(); got != "{Pyro:2}{Void:2}{Energy:3}" {
		t.Fatalf("unexpected string %q", got)
	}
}

func TestParseRequirementErrors(t *testing.T) {
	for _, in := range []string{"{Fire}", "{Pyro:x}", "Pyro", "{Pyro:-1}"} {
		if _, err := ParseRequirement(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
	req, err := ParseRequirement("")
	if err != nil || len(req) != 0 {
		t.Fatalf("expected empty requirement, got %v %v", req, err)
	}
}

func TestDemandsOrder(t *testing.T) {
	req := Requirement{{Void, 1}, {Omni, 1}, {Energy, 2}, {Hydro, 2}}
	got := req.Demands()
	want := []Type{Hydro, Hydro, Omni, Void}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestReduceAny(t *testing.T) {
	req := MustParse("{Cryo:1}{Void:2}{Energy:2}")

	reduced, n := req.ReduceAny(1)
	if n != 1 || reduced.Count(Void) != 1 || reduced.Count(Cryo) != 1 {
		t.Fatalf("unexpected reduction %v (%d)", reduced, n)
	}
	if req.Count(Void) != 2 {
		t.Fatalf("reduction must not modify the original")
	}

	reduced, n = req.ReduceAny(5)
	if n != 3 || reduced.DiceCount() != 0 || reduced.Energy() != 2 {
		t.Fatalf("unexpected reduction %v (%d)", reduced, n)
	}

	reduced, n = MustParse("{Aligned:3}").ReduceAny(1)
	if n != 1 || reduced.Count(Aligned) != 2 {
		t.Fatalf("unexpected aligned reduction %v (%d)", reduced, n)
	}

	reduced, n = req.ReduceEnergy(5)
	if n != 2 || reduced.Energy() != 0 {
		t.Fatalf("unexpected energy reduction %v (%d)", reduced, n)
	}
}

func TestSortDiceAndRemove(t *testing.T) {
	held := []Type{Hydro, Cryo, Omni, Pyro, Geo}
	sorted := SortDice(held, Options{Active: Pyro, Party: []Type{Geo}})
	want := []Type{Omni, Pyro, Geo, Cryo, Hydro}
	for i := range want {
		if sorted[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, sorted)
		}
	}

	rest, ok := Remove(held, []Type{Omni, Cryo})
	if !ok || len(rest) != 3 {
		t.Fatalf("unexpected remove result %v %v", rest, ok)
	}
	if _, ok := Remove(held, []Type{Dendro}); ok {
		t.Fatalf("expected missing die to fail")
	}
	if Contains(held, []Type{Omni, Omni}) {
		t.Fatalf("expected multiset containment to count duplicates")
	}
}
