package dice

import (
	"fmt"
	"slices"
	"strings"
)

// Type represents a die face. Energy and Aligned only appear in requirements.
type Type int

const (
	Void Type = iota
	Cryo
	Hydro
	Pyro
	Electro
	Anemo
	Geo
	Dendro
	Omni
	Energy
	Aligned
)

var typeNames = map[Type]string{
	Void:    "Void",
	Cryo:    "Cryo",
	Hydro:   "Hydro",
	Pyro:    "Pyro",
	Electro: "Electro",
	Anemo:   "Anemo",
	Geo:     "Geo",
	Dendro:  "Dendro",
	Omni:    "Omni",
	Energy:  "Energy",
	Aligned: "Aligned",
}

// String returns the display name of the die type.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// IsElemental reports whether t is one of the seven element faces.
func (t Type) IsElemental() bool {
	return t >= Cryo && t <= Dendro
}

// ParseType resolves a die type from its name (case-insensitive).
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	for t, name := range typeNames {
		if strings.EqualFold(name, s) {
			return t, nil
		}
	}
	return Void, fmt.Errorf("unknown dice type: %q", s)
}

// Options describes the team the dice belong to.
type Options struct {
	Active Type
	Party  []Type
}

// KeepPriority ranks how valuable a die is to keep. Lower values are spent last.
func KeepPriority(d Type, opts Options) int {
	switch {
	case d == Omni:
		return 0
	case opts.Active.IsElemental() && d == opts.Active:
		return 1
	case d.IsElemental() && slices.Contains(opts.Party, d):
		return 2
	case d.IsElemental():
		return 3
	default:
		return 4
	}
}

// SortDice returns held dice in storage order: omni, active element,
// party elements, then the remaining faces by type.
func SortDice(held []Type, opts Options) []Type {
	sorted := slices.Clone(held)
	slices.SortStableFunc(sorted, func(a, b Type) int {
		pa, pb := KeepPriority(a, opts), KeepPriority(b, opts)
		if pa != pb {
			return pa - pb
		}
		return int(a) - int(b)
	})
	return sorted
}

// Count returns how many dice of type t are held.
func Count(held []Type, t Type) int {
	n := 0
	for _, d := range held {
		if d == t {
			n++
		}
	}
	return n
}

// Remove removes the given dice (as a multiset) from held.
// It returns false and leaves held untouched when a die is missing.
func Remove(held, used []Type) ([]Type, bool) {
	rest := slices.Clone(held)
	for _, d := range used {
		idx := slices.Index(rest, d)
		if idx < 0 {
			return held, false
		}
		rest = slices.Delete(rest, idx, idx+1)
	}
	return rest, true
}

// Contains reports whether used is a sub-multiset of held.
func Contains(held, used []Type) bool {
	_, ok := Remove(held, used)
	return ok
}
