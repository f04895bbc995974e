// Package mutation defines the closed set of atomic state changes. Every
// change to a state.GameState goes through Apply.
package mutation

import (
	"encoding/json"

	"github.com/gi-tcg/gitcg-server-go/internal/game/dice"
	"github.com/gi-tcg/gitcg-server-go/internal/game/reaction"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// Type tags a mutation in logs and on the wire.
type Type string

const (
	TypeChangePhase          Type = "changePhase"
	TypeStepRound            Type = "stepRound"
	TypeStepRandom           Type = "stepRandom"
	TypeSwitchTurn           Type = "switchTurn"
	TypeSetWinner            Type = "setWinner"
	TypeCreateCharacter      Type = "createCharacter"
	TypeCreateEntity         Type = "createEntity"
	TypeRemoveEntity         Type = "removeEntity"
	TypeCreateCard           Type = "createCard"
	TypeMoveCard             Type = "moveCard"
	TypeMoveEntity           Type = "moveEntity"
	TypeModifyVar            Type = "modifyVar"
	TypeDamage               Type = "damage"
	TypeApplyAura            Type = "applyAura"
	TypeResetDice            Type = "resetDice"
	TypeSwitchActive         Type = "switchActive"
	TypeTransformDefinition  Type = "transformDefinition"
	TypeSkillUsed            Type = "skillUsed"
	TypeClearSkillLog        Type = "clearSkillLog"
	TypeSetPlayerFlag        Type = "setPlayerFlag"
	TypeRerollDone           Type = "rerollDone"
	TypeSwitchHandsDone      Type = "switchHandsDone"
	TypeChooseActiveDone     Type = "chooseActiveDone"
	TypeSelectCardDone       Type = "selectCardDone"
	TypeClearRemovedEntities Type = "clearRemovedEntities"
	TypeSetExtensionState    Type = "setExtensionState"
	TypePushDeferred         Type = "pushDeferred"
	TypeClearDeferred        Type = "clearDeferred"
)

// Mutation is one atomic state change. The set of implementations is closed.
type Mutation interface {
	Type() Type
}

// MoveReason tags why a card changed zone.
type MoveReason string

const (
	ReasonDraw            MoveReason = "draw"
	ReasonUndraw          MoveReason = "undraw"
	ReasonPlay            MoveReason = "play"
	ReasonDispose         MoveReason = "dispose"
	ReasonElementalTuning MoveReason = "elementalTuning"
	ReasonOverflow        MoveReason = "overflow"
	ReasonReplaced        MoveReason = "replaced"
)

// DiceReason tags why a player's dice were reset.
type DiceReason string

const (
	DiceRoll            DiceReason = "roll"
	DiceReroll          DiceReason = "reroll"
	DiceConsume         DiceReason = "consume"
	DiceElementalTuning DiceReason = "elementalTuning"
	DiceGenerate        DiceReason = "generate"
	DiceAbsorb          DiceReason = "absorb"
)

type ChangePhase struct {
	Phase state.Phase `json:"phase"`
}

type StepRound struct{}

// StepRandom advances the random cursor to Value, which is also the drawn
// random number.
type StepRandom struct {
	Value uint64 `json:"value"`
}

type SwitchTurn struct{}

type SetWinner struct {
	Winner state.Who `json:"winner"`
}

// CreateCharacter adds a character. Value.ID must be the next id.
type CreateCharacter struct {
	Who   state.Who            `json:"who"`
	Value state.CharacterState `json:"value"`
}

// CreateEntity adds an entity to an area. Value.ID must be the next id.
type CreateEntity struct {
	Where state.Area        `json:"where"`
	Value state.EntityState `json:"value"`
}

// RemoveEntity disposes an entity and records it in the owner's removed
// history.
type RemoveEntity struct {
	ID int `json:"id"`
}

// CreateCard adds a card to a pile or hand. A nil TargetIndex appends.
type CreateCard struct {
	Who         state.Who       `json:"who"`
	Value       state.CardState `json:"value"`
	Target      state.CardZone  `json:"target"`
	TargetIndex *int            `json:"targetIndex,omitempty"`
}

// MoveCard moves a card between zones. Moving to ZoneRemoved records it in
// the removed history. DefinitionID is informational, for observers.
type MoveCard struct {
	Who          state.Who      `json:"who"`
	ID           int            `json:"id"`
	DefinitionID int            `json:"definitionId"`
	From         state.CardZone `json:"from"`
	To           state.CardZone `json:"to"`
	Reason       MoveReason     `json:"reason"`
	TargetIndex  *int           `json:"targetIndex,omitempty"`
}

// MoveEntity moves an entity to another area of the same kind.
type MoveEntity struct {
	ID int        `json:"id"`
	To state.Area `json:"to"`
}

// ModifyVar sets a variable of the character or entity with the given id.
type ModifyVar struct {
	ID    int       `json:"id"`
	Var   state.Var `json:"var"`
	Value int       `json:"value"`
}

// Damage changes the target's health. Heal raises it up to the maximum,
// every other type lowers it down to zero.
type Damage struct {
	SourceID   int                 `json:"sourceId"`
	TargetID   int                 `json:"targetId"`
	DamageType reaction.DamageType `json:"damageType"`
	Value      int                 `json:"value"`
	Reaction   reaction.Reaction   `json:"reaction,omitempty"`
}

// ApplyAura writes the aura transition computed for one elemental damage.
type ApplyAura struct {
	TargetID int                 `json:"targetId"`
	Element  reaction.DamageType `json:"element"`
	OldAura  reaction.Aura       `json:"oldAura"`
	NewAura  reaction.Aura       `json:"newAura"`
	Reaction reaction.Reaction   `json:"reaction,omitempty"`
}

type ResetDice struct {
	Who    state.Who   `json:"who"`
	Dice   []dice.Type `json:"dice"`
	Reason DiceReason  `json:"reason"`
}

type SwitchActive struct {
	Who         state.Who `json:"who"`
	CharacterID int       `json:"characterId"`
}

// TransformDefinition replaces the definition of a character or entity in
// place. Variables are kept.
type TransformDefinition struct {
	ID              int `json:"id"`
	NewDefinitionID int `json:"newDefinitionId"`
}

type SkillUsed struct {
	Who         state.Who `json:"who"`
	CharacterID int       `json:"characterId"`
	SkillID     int       `json:"skillId"`
}

type ClearSkillLog struct {
	Who state.Who `json:"who"`
}

type SetPlayerFlag struct {
	Who   state.Who        `json:"who"`
	Flag  state.PlayerFlag `json:"flag"`
	Value bool             `json:"value"`
}

// RerollDone and the other *Done mutations mark the completion of a player
// decision. They carry no state change.
type RerollDone struct {
	Who   state.Who `json:"who"`
	Count int       `json:"count"`
}

type SwitchHandsDone struct {
	Who   state.Who `json:"who"`
	Count int       `json:"count"`
}

type ChooseActiveDone struct {
	Who         state.Who `json:"who"`
	CharacterID int       `json:"characterId"`
}

type SelectCardDone struct {
	Who          state.Who `json:"who"`
	DefinitionID int       `json:"definitionId"`
}

type ClearRemovedEntities struct {
	Who state.Who `json:"who"`
}

type SetExtensionState struct {
	DefinitionID int             `json:"definitionId"`
	Value        json.RawMessage `json:"value"`
}

type PushDeferred struct {
	Event state.DeferredEvent `json:"event"`
}

type ClearDeferred struct{}

func (ChangePhase) Type() Type          { return TypeChangePhase }
func (StepRound) Type() Type            { return TypeStepRound }
func (StepRandom) Type() Type           { return TypeStepRandom }
func (SwitchTurn) Type() Type           { return TypeSwitchTurn }
func (SetWinner) Type() Type            { return TypeSetWinner }
func (CreateCharacter) Type() Type      { return TypeCreateCharacter }
func (CreateEntity) Type() Type         { return TypeCreateEntity }
func (RemoveEntity) Type() Type         { return TypeRemoveEntity }
func (CreateCard) Type() Type           { return TypeCreateCard }
func (MoveCard) Type() Type             { return TypeMoveCard }
func (MoveEntity) Type() Type           { return TypeMoveEntity }
func (ModifyVar) Type() Type            { return TypeModifyVar }
func (Damage) Type() Type               { return TypeDamage }
func (ApplyAura) Type() Type            { return TypeApplyAura }
func (ResetDice) Type() Type            { return TypeResetDice }
func (SwitchActive) Type() Type         { return TypeSwitchActive }
func (TransformDefinition) Type() Type  { return TypeTransformDefinition }
func (SkillUsed) Type() Type            { return TypeSkillUsed }
func (ClearSkillLog) Type() Type        { return TypeClearSkillLog }
func (SetPlayerFlag) Type() Type        { return TypeSetPlayerFlag }
func (RerollDone) Type() Type           { return TypeRerollDone }
func (SwitchHandsDone) Type() Type      { return TypeSwitchHandsDone }
func (ChooseActiveDone) Type() Type     { return TypeChooseActiveDone }
func (SelectCardDone) Type() Type       { return TypeSelectCardDone }
func (ClearRemovedEntities) Type() Type { return TypeClearRemovedEntities }
func (SetExtensionState) Type() Type    { return TypeSetExtensionState }
func (PushDeferred) Type() Type         { return TypePushDeferred }
func (ClearDeferred) Type() Type        { return TypeClearDeferred }
