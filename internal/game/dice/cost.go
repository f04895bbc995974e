package dice

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Entry is one line of a requirement, e.g. three Pyro dice.
type Entry struct {
	Type  Type `json:"type"`
	Count int  `json:"count"`
}

// Requirement is an ordered dice cost. Each type appears at most once.
type Requirement []Entry

var symbolPattern = regexp.MustCompile(`\{([^}]+)\}`)

// ParseRequirement parses a cost string such as "{Pyro:1}{Void:2}" or
// "{Aligned:3}{Energy:2}". A symbol without a count stands for one die,
// so "{Pyro}{Pyro}" equals "{Pyro:2}".
func ParseRequirement(s string) (Requirement, error) {
	var req Requirement
	if strings.TrimSpace(s) == "" {
		return req, nil
	}
	matches := symbolPattern.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("invalid requirement: %q", s)
	}
	for _, match := range matches {
		symbol := strings.TrimSpace(match[1])
		count := 1
		if name, n, ok := strings.Cut(symbol, ":"); ok {
			parsed, err := strconv.Atoi(strings.TrimSpace(n))
			if err != nil || parsed < 0 {
				return nil, fmt.Errorf("invalid count in symbol {%s}", symbol)
			}
			symbol, count = name, parsed
		}
		t, err := ParseType(symbol)
		if err != nil {
			return nil, err
		}
		req = req.Add(t, count)
	}
	return req, nil
}

// MustParse is ParseRequirement for static costs.
func MustParse(s string) Requirement {
	req, err := ParseRequirement(s)
	if err != nil {
		panic(err)
	}
	return req
}

// Add returns a copy of r with n more dice of type t.
func (r Requirement) Add(t Type, n int) Requirement {
	out := r.Clone()
	for i := range out {
		if out[i].Type == t {
			out[i].Count += n
			return out
		}
	}
	return append(out, Entry{Type: t, Count: n})
}

// Clone returns an independent copy.
func (r Requirement) Clone() Requirement {
	if r == nil {
		return nil
	}
	out := make(Requirement, len(r))
	copy(out, r)
	return out
}

// Count returns the demand for type t.
func (r Requirement) Count(t Type) int {
	for _, e := range r {
		if e.Type == t {
			return e.Count
		}
	}
	return 0
}

// Energy returns the energy part of the cost.
func (r Requirement) Energy() int {
	return r.Count(Energy)
}

// IsAligned reports whether the cost is a same-color cost.
func (r Requirement) IsAligned() bool {
	for _, e := range r {
		if e.Type == Aligned {
			return true
		}
	}
	return false
}

// DiceCount returns the number of dice to pay, energy excluded.
func (r Requirement) DiceCount() int {
	n := 0
	for _, e := range r {
		if e.Type != Energy {
			n += e.Count
		}
	}
	return n
}

// Demands expands a non-aligned requirement into single-die demands.
// Specific elements come first, then omni, then void; energy is dropped.
func (r Requirement) Demands() []Type {
	var specific, omni, void []Type
	for _, e := range r {
		for i := 0; i < e.Count; i++ {
			switch {
			case e.Type == Void:
				void = append(void, Void)
			case e.Type == Omni:
				omni = append(omni, Omni)
			case e.Type.IsElemental():
				specific = append(specific, e.Type)
			}
		}
	}
	out := make([]Type, 0, len(specific)+len(omni)+len(void))
	out = append(out, specific...)
	out = append(out, omni...)
	return append(out, void...)
}

// String renders the requirement in the ParseRequirement format.
func (r Requirement) String() string {
	var sb strings.Builder
	for _, e := range r {
		if e.Count == 0 {
			continue
		}
		fmt.Fprintf(&sb, "{%s:%d}", e.Type, e.Count)
	}
	return sb.String()
}
