package rules

import (
	"github.com/gi-tcg/gitcg-server-go/internal/game/dice"
	"github.com/gi-tcg/gitcg-server-go/internal/game/reaction"
	"github.com/gi-tcg/gitcg-server-go/internal/game/rpc"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// EventType names an event skills can listen to.
type EventType string

const (
	// Synchronous events. Handlers never suspend and may cancel.
	EventModifyAction     EventType = "modifyAction"
	EventModifyRoll       EventType = "modifyRoll"
	EventModifyDamageType EventType = "modifyDamage0"
	EventModifyDamageAdd  EventType = "modifyDamage1"
	EventModifyDamageMul  EventType = "modifyDamage2"
	EventModifyDamageSub  EventType = "modifyDamage3"
	EventModifyHeal       EventType = "modifyHeal"
	EventModifyZeroHealth EventType = "modifyZeroHealth"

	// Asynchronous events.
	EventBattleBegin  EventType = "battleBegin"
	EventRoundBegin   EventType = "roundBegin"
	EventActionPhase  EventType = "actionPhase"
	EventEndPhase     EventType = "endPhase"
	EventRoundEnd     EventType = "roundEnd"
	EventUseSkill     EventType = "useSkill"
	EventPlayCard     EventType = "playCard"
	EventSwitchActive EventType = "switchActive"
	EventAction       EventType = "action"
	EventDamage       EventType = "damage"
	EventHeal         EventType = "heal"
	EventReaction     EventType = "reaction"
	EventDefeated     EventType = "defeated"
	EventRevive       EventType = "revive"
	EventEnter        EventType = "enter"
	EventDispose      EventType = "dispose"
)

var syncEvents = map[EventType]bool{
	EventModifyAction:     true,
	EventModifyRoll:       true,
	EventModifyDamageType: true,
	EventModifyDamageAdd:  true,
	EventModifyDamageMul:  true,
	EventModifyDamageSub:  true,
	EventModifyHeal:       true,
	EventModifyZeroHealth: true,
}

var asyncEvents = map[EventType]bool{
	EventBattleBegin:  true,
	EventRoundBegin:   true,
	EventActionPhase:  true,
	EventEndPhase:     true,
	EventRoundEnd:     true,
	EventUseSkill:     true,
	EventPlayCard:     true,
	EventSwitchActive: true,
	EventAction:       true,
	EventDamage:       true,
	EventHeal:         true,
	EventReaction:     true,
	EventDefeated:     true,
	EventRevive:       true,
	EventEnter:        true,
	EventDispose:      true,
}

// IsSync reports whether handlers of e run without suspension.
func (e EventType) IsSync() bool {
	return syncEvents[e]
}

// Known reports whether e is one of the event types above.
func (e EventType) Known() bool {
	return syncEvents[e] || asyncEvents[e]
}

// Arg is the typed payload of an event. Involves reports whether the event
// concerns a player (characterID 0) or one of its characters.
type Arg interface {
	Involves(who state.Who, characterID int) bool
}

func involves(who state.Who, characterID int, argWho state.Who, argCharacterID int) bool {
	if who != argWho {
		return false
	}
	return characterID == 0 || characterID == argCharacterID
}

// PhaseArg is the payload of phase events. It concerns both players.
type PhaseArg struct {
	Round int
}

func (*PhaseArg) Involves(state.Who, int) bool { return true }

// ActionArg is the payload of modifyAction. Handlers may lower Action.Cost
// or make the action fast.
type ActionArg struct {
	Action *rpc.ActionInfo
}

func (a *ActionArg) Involves(who state.Who, characterID int) bool {
	return involves(who, characterID, a.Action.Who, a.Action.CharacterID)
}

// ActionDoneArg is the payload of the action event fired after every action.
type ActionDoneArg struct {
	Who         state.Who
	Kind        rpc.ActionKind
	CharacterID int
	SkillID     int
	CardID      int
}

func (a *ActionDoneArg) Involves(who state.Who, characterID int) bool {
	return involves(who, characterID, a.Who, a.CharacterID)
}

// RollArg is the payload of modifyRoll.
type RollArg struct {
	Who         state.Who
	FixedDice   []dice.Type
	RerollTimes int
}

func (a *RollArg) Involves(who state.Who, characterID int) bool {
	return who == a.Who && characterID == 0
}

// DamageArg is the payload of the modifyDamage stages and of damage. During
// the modify stages Type and Value can be changed in place.
type DamageArg struct {
	SourceID          int
	SourceWho         state.Who
	SourceCharacterID int
	SkillID           int
	TargetID          int
	TargetWho         state.Who
	Type              reaction.DamageType
	Value             int
	Reaction          reaction.Reaction
	OldAura           reaction.Aura
	// Charged and Plunging mark damage from a charged or plunging attack.
	Charged  bool
	Plunging bool
}

func (a *DamageArg) Involves(who state.Who, characterID int) bool {
	return involves(who, characterID, a.TargetWho, a.TargetID) ||
		involves(who, characterID, a.SourceWho, a.SourceCharacterID)
}

// IsElemental reports whether the damage interacts with aura.
func (a *DamageArg) IsElemental() bool {
	return a.Type.IsElemental()
}

// HealArg is the payload of modifyHeal and heal.
type HealArg struct {
	SourceID  int
	TargetID  int
	TargetWho state.Who
	Value     int
}

func (a *HealArg) Involves(who state.Who, characterID int) bool {
	return involves(who, characterID, a.TargetWho, a.TargetID)
}

// ZeroHealthArg is the payload of modifyZeroHealth. A handler saves the
// character by setting Immune and the health it is restored to.
type ZeroHealthArg struct {
	Who         state.Who
	CharacterID int
	Immune      bool
	HealTo      int
}

func (a *ZeroHealthArg) Involves(who state.Who, characterID int) bool {
	return involves(who, characterID, a.Who, a.CharacterID)
}

// SkillArg is the payload of useSkill and the argument initiative skills
// run with.
type SkillArg struct {
	Who         state.Who
	CharacterID int
	SkillID     int
	SkillType   SkillType
	Charged     bool
	Plunging    bool
	Targets     []int
}

func (a *SkillArg) Involves(who state.Who, characterID int) bool {
	return involves(who, characterID, a.Who, a.CharacterID)
}

// CardArg is the payload of playCard and the argument card skills run with.
type CardArg struct {
	Who          state.Who
	CardID       int
	DefinitionID int
	Targets      []int
}

func (a *CardArg) Involves(who state.Who, characterID int) bool {
	return who == a.Who && characterID == 0
}

// SwitchArg is the payload of switchActive.
type SwitchArg struct {
	Who  state.Who
	From int
	To   int
	// FromAction is set when the switch is the player's action.
	FromAction bool
}

func (a *SwitchArg) Involves(who state.Who, characterID int) bool {
	return involves(who, characterID, a.Who, a.From) || involves(who, characterID, a.Who, a.To)
}

// ReactionArg is the payload of reaction.
type ReactionArg struct {
	Reaction reaction.Reaction
	Damage   *DamageArg
}

func (a *ReactionArg) Involves(who state.Who, characterID int) bool {
	return a.Damage.Involves(who, characterID)
}

// CharacterArg is the payload of defeated and revive.
type CharacterArg struct {
	Who         state.Who
	CharacterID int
}

func (a *CharacterArg) Involves(who state.Who, characterID int) bool {
	return involves(who, characterID, a.Who, a.CharacterID)
}

// EntityArg is the payload of enter and dispose.
type EntityArg struct {
	Who          state.Who
	EntityID     int
	DefinitionID int
	MasterID     int
	Area         state.Area
}

func (a *EntityArg) Involves(who state.Who, characterID int) bool {
	return who == a.Who && (characterID == 0 || characterID == a.MasterID)
}

// deferred encodes an arg for the state's outstanding event list.
func deferred(event EventType, arg Arg) state.DeferredEvent {
	d := state.DeferredEvent{Event: string(event), Who: state.NoOne}
	switch a := arg.(type) {
	case *DamageArg:
		d.Who, d.TargetID, d.Value = a.TargetWho, a.TargetID, a.Value
	case *HealArg:
		d.Who, d.TargetID, d.Value = a.TargetWho, a.TargetID, a.Value
	case *ReactionArg:
		d.Who, d.TargetID, d.Value = a.Damage.TargetWho, a.Damage.TargetID, int(a.Reaction)
	case *CharacterArg:
		d.Who, d.TargetID = a.Who, a.CharacterID
	case *EntityArg:
		d.Who, d.TargetID, d.Value = a.Who, a.EntityID, a.DefinitionID
	case *SwitchArg:
		d.Who, d.TargetID = a.Who, a.To
	case *SkillArg:
		d.Who, d.TargetID, d.Value = a.Who, a.CharacterID, a.SkillID
	case *CardArg:
		d.Who, d.TargetID, d.Value = a.Who, a.CardID, a.DefinitionID
	case *ActionDoneArg:
		d.Who, d.TargetID = a.Who, a.CharacterID
	case *PhaseArg:
		d.Value = a.Round
	}
	return d
}
