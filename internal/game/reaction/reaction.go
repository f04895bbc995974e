package reaction

import (
	"errors"
	"fmt"
)

// Aura is the elemental application carried by a character.
type Aura int

const (
	AuraNone Aura = iota
	AuraCryo
	AuraHydro
	AuraPyro
	AuraElectro
	AuraDendro
	AuraCryoDendro
)

var auraNames = map[Aura]string{
	AuraNone:       "None",
	AuraCryo:       "Cryo",
	AuraHydro:      "Hydro",
	AuraPyro:       "Pyro",
	AuraElectro:    "Electro",
	AuraDendro:     "Dendro",
	AuraCryoDendro: "CryoDendro",
}

func (a Aura) String() string {
	if name, ok := auraNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Aura(%d)", int(a))
}

// Auras lists every aura value.
func Auras() []Aura {
	return []Aura{AuraNone, AuraCryo, AuraHydro, AuraPyro, AuraElectro, AuraDendro, AuraCryoDendro}
}

// DamageType is the element of a damage or heal. The elemental values share
// their numbering with dice.Type.
type DamageType int

const (
	Physical DamageType = iota
	Cryo
	Hydro
	Pyro
	Electro
	Anemo
	Geo
	Dendro
	Piercing
	Heal
)

var damageNames = map[DamageType]string{
	Physical: "Physical",
	Cryo:     "Cryo",
	Hydro:    "Hydro",
	Pyro:     "Pyro",
	Electro:  "Electro",
	Anemo:    "Anemo",
	Geo:      "Geo",
	Dendro:   "Dendro",
	Piercing: "Piercing",
	Heal:     "Heal",
}

func (d DamageType) String() string {
	if name, ok := damageNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DamageType(%d)", int(d))
}

// ParseDamageType resolves a damage type from its name.
func ParseDamageType(s string) (DamageType, error) {
	for d, name := range damageNames {
		if name == s {
			return d, nil
		}
	}
	return Physical, fmt.Errorf("unknown damage type: %q", s)
}

// IsElemental reports whether d can read or write aura.
func (d DamageType) IsElemental() bool {
	return d >= Cryo && d <= Dendro
}

// Elements lists the seven damage types that interact with aura.
func Elements() []DamageType {
	return []DamageType{Cryo, Hydro, Pyro, Electro, Anemo, Geo, Dendro}
}

// Reaction names an elemental interaction. None means no reaction happened.
type Reaction int

const (
	None Reaction = iota
	Melt
	Vaporize
	Overloaded
	Superconduct
	ElectroCharged
	Frozen
	SwirlCryo
	SwirlHydro
	SwirlPyro
	SwirlElectro
	CrystallizeCryo
	CrystallizeHydro
	CrystallizePyro
	CrystallizeElectro
	Burning
	Bloom
	Quicken
)

var reactionNames = map[Reaction]string{
	None:               "None",
	Melt:               "Melt",
	Vaporize:           "Vaporize",
	Overloaded:         "Overloaded",
	Superconduct:       "Superconduct",
	ElectroCharged:     "ElectroCharged",
	Frozen:             "Frozen",
	SwirlCryo:          "SwirlCryo",
	SwirlHydro:         "SwirlHydro",
	SwirlPyro:          "SwirlPyro",
	SwirlElectro:       "SwirlElectro",
	CrystallizeCryo:    "CrystallizeCryo",
	CrystallizeHydro:   "CrystallizeHydro",
	CrystallizePyro:    "CrystallizePyro",
	CrystallizeElectro: "CrystallizeElectro",
	Burning:            "Burning",
	Bloom:              "Bloom",
	Quicken:            "Quicken",
}

func (r Reaction) String() string {
	if name, ok := reactionNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Reaction(%d)", int(r))
}

// ParseReaction resolves a reaction from its name.
func ParseReaction(s string) (Reaction, error) {
	for r, name := range reactionNames {
		if name == s {
			return r, nil
		}
	}
	return None, fmt.Errorf("unknown reaction: %q", s)
}

var (
	// ErrNotElemental is returned for physical, piercing and heal damage.
	ErrNotElemental = errors.New("reaction: damage type does not interact with aura")
	// ErrUnknownAura is returned for an aura value outside the enum.
	ErrUnknownAura = errors.New("reaction: unknown aura")
)

// Transition is the result of applying an element to an aura.
type Transition struct {
	Next     Aura
	Reaction Reaction
}

func keep(a Aura) Transition              { return Transition{Next: a} }
func react(a Aura, r Reaction) Transition { return Transition{Next: a, Reaction: r} }

// Lookup returns the aura left behind and the reaction triggered when
// element hits a character carrying aura.
func Lookup(aura Aura, element DamageType) (Transition, error) {
	if !element.IsElemental() {
		return Transition{Next: aura}, fmt.Errorf("%w: %s", ErrNotElemental, element)
	}
	var (
		t   Transition
		err error
	)
	switch aura {
	case AuraNone:
		t, err = fromNone(element)
	case AuraCryo:
		t, err = fromCryo(element)
	case AuraHydro:
		t, err = fromHydro(element)
	case AuraPyro:
		t, err = fromPyro(element)
	case AuraElectro:
		t, err = fromElectro(element)
	case AuraDendro:
		t, err = fromDendro(element)
	case AuraCryoDendro:
		t, err = fromCryoDendro(element)
	default:
		return Transition{}, fmt.Errorf("%w: %d", ErrUnknownAura, int(aura))
	}
	if err != nil {
		return Transition{}, fmt.Errorf("lookup %s on %s: %w", element, aura, err)
	}
	return t, nil
}

func fromNone(e DamageType) (Transition, error) {
	switch e {
	case Cryo:
		return keep(AuraCryo), nil
	case Hydro:
		return keep(AuraHydro), nil
	case Pyro:
		return keep(AuraPyro), nil
	case Electro:
		return keep(AuraElectro), nil
	case Anemo:
		return keep(AuraNone), nil
	case Geo:
		return keep(AuraNone), nil
	case Dendro:
		return keep(AuraDendro), nil
	}
	return Transition{}, ErrNotElemental
}

func fromCryo(e DamageType) (Transition, error) {
	switch e {
	case Cryo:
		return keep(AuraCryo), nil
	case Hydro:
		return react(AuraNone, Frozen), nil
	case Pyro:
		return react(AuraNone, Melt), nil
	case Electro:
		return react(AuraNone, Superconduct), nil
	case Anemo:
		return react(AuraNone, SwirlCryo), nil
	case Geo:
		return react(AuraNone, CrystallizeCryo), nil
	case Dendro:
		return keep(AuraCryoDendro), nil
	}
	return Transition{}, ErrNotElemental
}

func fromHydro(e DamageType) (Transition, error) {
	switch e {
	case Cryo:
		return react(AuraNone, Frozen), nil
	case Hydro:
		return keep(AuraHydro), nil
	case Pyro:
		return react(AuraNone, Vaporize), nil
	case Electro:
		return react(AuraNone, ElectroCharged), nil
	case Anemo:
		return react(AuraNone, SwirlHydro), nil
	case Geo:
		return react(AuraNone, CrystallizeHydro), nil
	case Dendro:
		return react(AuraNone, Bloom), nil
	}
	return Transition{}, ErrNotElemental
}

func fromPyro(e DamageType) (Transition, error) {
	switch e {
	case Cryo:
		return react(AuraNone, Melt), nil
	case Hydro:
		return react(AuraNone, Vaporize), nil
	case Pyro:
		return keep(AuraPyro), nil
	case Electro:
		return react(AuraNone, Overloaded), nil
	case Anemo:
		return react(AuraNone, SwirlPyro), nil
	case Geo:
		return react(AuraNone, CrystallizePyro), nil
	case Dendro:
		return react(AuraNone, Burning), nil
	}
	return Transition{}, ErrNotElemental
}

func fromElectro(e DamageType) (Transition, error) {
	switch e {
	case Cryo:
		return react(AuraNone, Superconduct), nil
	case Hydro:
		return react(AuraNone, ElectroCharged), nil
	case Pyro:
		return react(AuraNone, Overloaded), nil
	case Electro:
		return keep(AuraElectro), nil
	case Anemo:
		return react(AuraNone, SwirlElectro), nil
	case Geo:
		return react(AuraNone, CrystallizeElectro), nil
	case Dendro:
		return react(AuraNone, Quicken), nil
	}
	return Transition{}, ErrNotElemental
}

func fromDendro(e DamageType) (Transition, error) {
	switch e {
	case Cryo:
		return keep(AuraCryoDendro), nil
	case Hydro:
		return react(AuraNone, Bloom), nil
	case Pyro:
		return react(AuraNone, Burning), nil
	case Electro:
		return react(AuraNone, Quicken), nil
	case Anemo:
		return keep(AuraDendro), nil
	case Geo:
		return keep(AuraDendro), nil
	case Dendro:
		return keep(AuraDendro), nil
	}
	return Transition{}, ErrNotElemental
}

func fromCryoDendro(e DamageType) (Transition, error) {
	switch e {
	case Cryo:
		return keep(AuraCryoDendro), nil
	case Hydro:
		return react(AuraDendro, Frozen), nil
	case Pyro:
		return react(AuraDendro, Melt), nil
	case Electro:
		return react(AuraDendro, Superconduct), nil
	case Anemo:
		return react(AuraDendro, SwirlCryo), nil
	case Geo:
		return react(AuraDendro, CrystallizeCryo), nil
	case Dendro:
		return keep(AuraCryoDendro), nil
	}
	return Transition{}, ErrNotElemental
}

// Relatives returns the two elements that produce reaction r.
func Relatives(r Reaction) (DamageType, DamageType, bool) {
	switch r {
	case Melt:
		return Pyro, Cryo, true
	case Vaporize:
		return Pyro, Hydro, true
	case Overloaded:
		return Pyro, Electro, true
	case Superconduct:
		return Cryo, Electro, true
	case ElectroCharged:
		return Hydro, Electro, true
	case Frozen:
		return Cryo, Hydro, true
	case SwirlCryo:
		return Cryo, Anemo, true
	case SwirlHydro:
		return Hydro, Anemo, true
	case SwirlPyro:
		return Pyro, Anemo, true
	case SwirlElectro:
		return Electro, Anemo, true
	case CrystallizeCryo:
		return Cryo, Geo, true
	case CrystallizeHydro:
		return Hydro, Geo, true
	case CrystallizePyro:
		return Pyro, Geo, true
	case CrystallizeElectro:
		return Electro, Geo, true
	case Burning:
		return Pyro, Dendro, true
	case Bloom:
		return Dendro, Hydro, true
	case Quicken:
		return Dendro, Electro, true
	}
	return Physical, Physical, false
}

// IsRelatedTo reports whether element took part in reaction r.
func IsRelatedTo(r Reaction, element DamageType) bool {
	a, b, ok := Relatives(r)
	return ok && (a == element || b == element)
}

// SwirlElement returns the element a Swirl reaction spreads.
func SwirlElement(r Reaction) (DamageType, bool) {
	switch r {
	case SwirlCryo:
		return Cryo, true
	case SwirlHydro:
		return Hydro, true
	case SwirlPyro:
		return Pyro, true
	case SwirlElectro:
		return Electro, true
	}
	return Physical, false
}

// IsCrystallize reports whether r is one of the Crystallize reactions.
func IsCrystallize(r Reaction) bool {
	return r >= CrystallizeCryo && r <= CrystallizeElectro
}

// Elements returns the elements an aura is made of.
func (a Aura) Elements() []DamageType {
	switch a {
	case AuraCryo:
		return []DamageType{Cryo}
	case AuraHydro:
		return []DamageType{Hydro}
	case AuraPyro:
		return []DamageType{Pyro}
	case AuraElectro:
		return []DamageType{Electro}
	case AuraDendro:
		return []DamageType{Dendro}
	case AuraCryoDendro:
		return []DamageType{Cryo, Dendro}
	}
	return nil
}

// DamageBonus is the flat damage increase a reaction grants to the damage
// that triggered it.
func DamageBonus(r Reaction) int {
	switch r {
	case None, SwirlCryo, SwirlHydro, SwirlPyro, SwirlElectro:
		return 0
	case Melt, Vaporize, Overloaded:
		return 2
	default:
		return 1
	}
}
