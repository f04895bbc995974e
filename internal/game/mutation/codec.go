package mutation

import (
	"encoding/json"
	"fmt"
)

// Envelope is the tagged wire form of a mutation.
type Envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

var factories = map[Type]func() Mutation{
	TypeChangePhase:          func() Mutation { return &ChangePhase{} },
	TypeStepRound:            func() Mutation { return &StepRound{} },
	TypeStepRandom:           func() Mutation { return &StepRandom{} },
	TypeSwitchTurn:           func() Mutation { return &SwitchTurn{} },
	TypeSetWinner:            func() Mutation { return &SetWinner{} },
	TypeCreateCharacter:      func() Mutation { return &CreateCharacter{} },
	TypeCreateEntity:         func() Mutation { return &CreateEntity{} },
	TypeRemoveEntity:         func() Mutation { return &RemoveEntity{} },
	TypeCreateCard:           func() Mutation { return &CreateCard{} },
	TypeMoveCard:             func() Mutation { return &MoveCard{} },
	TypeMoveEntity:           func() Mutation { return &MoveEntity{} },
	TypeModifyVar:            func() Mutation { return &ModifyVar{} },
	TypeDamage:               func() Mutation { return &Damage{} },
	TypeApplyAura:            func() Mutation { return &ApplyAura{} },
	TypeResetDice:            func() Mutation { return &ResetDice{} },
	TypeSwitchActive:         func() Mutation { return &SwitchActive{} },
	TypeTransformDefinition:  func() Mutation { return &TransformDefinition{} },
	TypeSkillUsed:            func() Mutation { return &SkillUsed{} },
	TypeClearSkillLog:        func() Mutation { return &ClearSkillLog{} },
	TypeSetPlayerFlag:        func() Mutation { return &SetPlayerFlag{} },
	TypeRerollDone:           func() Mutation { return &RerollDone{} },
	TypeSwitchHandsDone:      func() Mutation { return &SwitchHandsDone{} },
	TypeChooseActiveDone:     func() Mutation { return &ChooseActiveDone{} },
	TypeSelectCardDone:       func() Mutation { return &SelectCardDone{} },
	TypeClearRemovedEntities: func() Mutation { return &ClearRemovedEntities{} },
	TypeSetExtensionState:    func() Mutation { return &SetExtensionState{} },
	TypePushDeferred:         func() Mutation { return &PushDeferred{} },
	TypeClearDeferred:        func() Mutation { return &ClearDeferred{} },
}

// Encode wraps m into its envelope.
func Encode(m Mutation) (Envelope, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s: %w", m.Type(), err)
	}
	return Envelope{Type: m.Type(), Data: data}, nil
}

// Decode unwraps an envelope into the value mutation it carries.
func Decode(env Envelope) (Mutation, error) {
	factory, ok := factories[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown mutation type %q", ErrMalformed, env.Type)
	}
	ptr := factory()
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, ptr); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", env.Type, err)
		}
	}
	return deref(ptr), nil
}

// deref turns the decoding pointer back into the value type Apply expects.
func deref(m Mutation) Mutation {
	switch m := m.(type) {
	case *ChangePhase:
		return *m
	case *StepRound:
		return *m
	case *StepRandom:
		return *m
	case *SwitchTurn:
		return *m
	case *SetWinner:
		return *m
	case *CreateCharacter:
		return *m
	case *CreateEntity:
		return *m
	case *RemoveEntity:
		return *m
	case *CreateCard:
		return *m
	case *MoveCard:
		return *m
	case *MoveEntity:
		return *m
	case *ModifyVar:
		return *m
	case *Damage:
		return *m
	case *ApplyAura:
		return *m
	case *ResetDice:
		return *m
	case *SwitchActive:
		return *m
	case *TransformDefinition:
		return *m
	case *SkillUsed:
		return *m
	case *ClearSkillLog:
		return *m
	case *SetPlayerFlag:
		return *m
	case *RerollDone:
		return *m
	case *SwitchHandsDone:
		return *m
	case *ChooseActiveDone:
		return *m
	case *SelectCardDone:
		return *m
	case *ClearRemovedEntities:
		return *m
	case *SetExtensionState:
		return *m
	case *PushDeferred:
		return *m
	case *ClearDeferred:
		return *m
	}
	return m
}

// EncodeLog wraps every mutation of a log.
func EncodeLog(log []Mutation) ([]Envelope, error) {
	out := make([]Envelope, 0, len(log))
	for _, m := range log {
		env, err := Encode(m)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, nil
}

// DecodeLog unwraps a log.
func DecodeLog(envs []Envelope) ([]Mutation, error) {
	out := make([]Mutation, 0, len(envs))
	for i, env := range envs {
		m, err := Decode(env)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}
