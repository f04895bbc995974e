package state

import (
	"errors"
	"fmt"

	"github.com/gi-tcg/gitcg-server-go/internal/game/reaction"
)

// ErrUnknownVariable is returned when a variable does not exist on the target.
var ErrUnknownVariable = errors.New("state: unknown variable")

// VarKind selects a field of a variable bag.
type VarKind int

const (
	VarHealth VarKind = iota
	VarMaxHealth
	VarEnergy
	VarMaxEnergy
	VarAura
	VarAlive
	VarUsage
	VarUsagePerRound
	VarDuration
	VarShield
	VarCustom
)

var varNames = map[VarKind]string{
	VarHealth:        "health",
	VarMaxHealth:     "maxHealth",
	VarEnergy:        "energy",
	VarMaxEnergy:     "maxEnergy",
	VarAura:          "aura",
	VarAlive:         "alive",
	VarUsage:         "usage",
	VarUsagePerRound: "usagePerRound",
	VarDuration:      "duration",
	VarShield:        "shield",
	VarCustom:        "custom",
}

func (k VarKind) String() string {
	return varNames[k]
}

// Var addresses one variable; Slot is only used by VarCustom.
type Var struct {
	Kind VarKind `json:"kind"`
	Slot int     `json:"slot,omitempty"`
}

var (
	Health        = Var{Kind: VarHealth}
	MaxHealth     = Var{Kind: VarMaxHealth}
	Energy        = Var{Kind: VarEnergy}
	MaxEnergy     = Var{Kind: VarMaxEnergy}
	AuraVar       = Var{Kind: VarAura}
	Alive         = Var{Kind: VarAlive}
	Usage         = Var{Kind: VarUsage}
	UsagePerRound = Var{Kind: VarUsagePerRound}
	Duration      = Var{Kind: VarDuration}
	Shield        = Var{Kind: VarShield}
)

// Custom addresses a definition-declared slot.
func Custom(slot int) Var {
	return Var{Kind: VarCustom, Slot: slot}
}

func (v Var) String() string {
	if v.Kind == VarCustom {
		return fmt.Sprintf("custom[%d]", v.Slot)
	}
	return v.Kind.String()
}

// CharacterVariables is the variable bag of a character.
type CharacterVariables struct {
	Health    int           `json:"health"`
	MaxHealth int           `json:"maxHealth"`
	Energy    int           `json:"energy"`
	MaxEnergy int           `json:"maxEnergy"`
	Aura      reaction.Aura `json:"aura"`
	Alive     bool          `json:"alive"`
	Custom    []int         `json:"custom,omitempty"`
}

// Get reads a variable.
func (v *CharacterVariables) Get(x Var) (int, error) {
	switch x.Kind {
	case VarHealth:
		return v.Health, nil
	case VarMaxHealth:
		return v.MaxHealth, nil
	case VarEnergy:
		return v.Energy, nil
	case VarMaxEnergy:
		return v.MaxEnergy, nil
	case VarAura:
		return int(v.Aura), nil
	case VarAlive:
		if v.Alive {
			return 1, nil
		}
		return 0, nil
	case VarCustom:
		if x.Slot >= 0 && x.Slot < len(v.Custom) {
			return v.Custom[x.Slot], nil
		}
	}
	return 0, fmt.Errorf("%w: character %s", ErrUnknownVariable, x)
}

// Set writes a variable.
func (v *CharacterVariables) Set(x Var, value int) error {
	switch x.Kind {
	case VarHealth:
		v.Health = value
	case VarMaxHealth:
		v.MaxHealth = value
	case VarEnergy:
		v.Energy = value
	case VarMaxEnergy:
		v.MaxEnergy = value
	case VarAura:
		v.Aura = reaction.Aura(value)
	case VarAlive:
		v.Alive = value != 0
	case VarCustom:
		if x.Slot < 0 || x.Slot >= len(v.Custom) {
			return fmt.Errorf("%w: character %s", ErrUnknownVariable, x)
		}
		v.Custom[x.Slot] = value
	default:
		return fmt.Errorf("%w: character %s", ErrUnknownVariable, x)
	}
	return nil
}

// EntityVariables is the variable bag of an entity.
type EntityVariables struct {
	Usage         int   `json:"usage"`
	UsagePerRound int   `json:"usagePerRound"`
	Duration      int   `json:"duration"`
	Shield        int   `json:"shield"`
	Custom        []int `json:"custom,omitempty"`
}

// Get reads a variable.
func (v *EntityVariables) Get(x Var) (int, error) {
	switch x.Kind {
	case VarUsage:
		return v.Usage, nil
	case VarUsagePerRound:
		return v.UsagePerRound, nil
	case VarDuration:
		return v.Duration, nil
	case VarShield:
		return v.Shield, nil
	case VarCustom:
		if x.Slot >= 0 && x.Slot < len(v.Custom) {
			return v.Custom[x.Slot], nil
		}
	}
	return 0, fmt.Errorf("%w: entity %s", ErrUnknownVariable, x)
}

// Set writes a variable.
func (v *EntityVariables) Set(x Var, value int) error {
	switch x.Kind {
	case VarUsage:
		v.Usage = value
	case VarUsagePerRound:
		v.UsagePerRound = value
	case VarDuration:
		v.Duration = value
	case VarShield:
		v.Shield = value
	case VarCustom:
		if x.Slot < 0 || x.Slot >= len(v.Custom) {
			return fmt.Errorf("%w: entity %s", ErrUnknownVariable, x)
		}
		v.Custom[x.Slot] = value
	default:
		return fmt.Errorf("%w: entity %s", ErrUnknownVariable, x)
	}
	return nil
}
