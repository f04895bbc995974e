// Package rpc defines the request/response protocol between the game and
// the agents that decide for each player.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/gi-tcg/gitcg-server-go/internal/game/dice"
	"github.com/gi-tcg/gitcg-server-go/internal/game/mutation"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// Method names a decision the game can ask for.
type Method string

const (
	MethodSwitchHands  Method = "switchHands"
	MethodChooseActive Method = "chooseActive"
	MethodRerollDice   Method = "rerollDice"
	MethodSelectCard   Method = "selectCard"
	MethodAction       Method = "action"
)

// ErrInvalidResponse is returned by Verify for responses that do not answer
// the request.
var ErrInvalidResponse = errors.New("rpc: invalid response")

// ActionKind classifies the entries of an action request.
type ActionKind string

const (
	ActionUseSkill        ActionKind = "useSkill"
	ActionPlayCard        ActionKind = "playCard"
	ActionSwitchActive    ActionKind = "switchActive"
	ActionElementalTuning ActionKind = "elementalTuning"
	ActionDeclareEnd      ActionKind = "declareEnd"
)

// ActionInfo describes one currently possible action with its cost.
// CharacterID is the skill user or the switch target, CardID the card played
// or tuned. AutoDice is a suggested payment, nil when none exists.
type ActionInfo struct {
	Kind             ActionKind       `json:"kind"`
	Who              state.Who        `json:"who"`
	CharacterID      int              `json:"characterId,omitempty"`
	SkillID          int              `json:"skillId,omitempty"`
	CardID           int              `json:"cardId,omitempty"`
	CardDefinitionID int              `json:"cardDefinitionId,omitempty"`
	Targets          []int            `json:"targets,omitempty"`
	Cost             dice.Requirement `json:"cost"`
	Fast             bool             `json:"fast"`
	Valid            bool             `json:"valid"`
	AutoDice         []dice.Type      `json:"autoDice,omitempty"`
}

// Request is sent to one player. Only the fields of its Method are set.
type Request struct {
	Method Method    `json:"method"`
	Who    state.Who `json:"who"`
	// chooseActive
	Candidates []int `json:"candidates,omitempty"`
	// selectCard
	CardDefinitions []int `json:"cardDefinitions,omitempty"`
	// action
	Actions []ActionInfo `json:"actions,omitempty"`
}

// Response answers a Request.
type Response struct {
	// switchHands: ids of hand cards to put back.
	RemovedHands []int `json:"removedHands,omitempty"`
	// chooseActive
	CharacterID int `json:"characterId,omitempty"`
	// rerollDice: indexes into the held dice.
	RerollIndexes []int `json:"rerollIndexes,omitempty"`
	// selectCard
	SelectedDefinitionID int `json:"selectedDefinitionId,omitempty"`
	// action
	ChosenActionIndex int         `json:"chosenActionIndex"`
	UsedDice          []dice.Type `json:"usedDice,omitempty"`
}

// Notification carries a state snapshot and the batch of mutations that led
// to it, both already exposed for the receiving player.
type Notification struct {
	Who       state.Who           `json:"who"`
	State     *state.GameState    `json:"state"`
	Mutations []mutation.Mutation `json:"-"`
}

// PlayerIO is implemented by whatever decides for a player: a network
// session, a bot, a test script.
type PlayerIO interface {
	// Notify delivers a pause-point update. It must not block the game.
	Notify(n Notification)
	// RPC asks for one decision and returns exactly one response.
	RPC(ctx context.Context, req Request) (Response, error)
	// CancelRPC aborts the outstanding RPC, if any.
	CancelRPC()
}

// Verify checks that resp has the shape req asks for. It does not check the
// game rules (dice held, action validity); the game does that.
func Verify(req Request, resp Response) error {
	switch req.Method {
	case MethodSwitchHands:
		if hasDuplicates(resp.RemovedHands) {
			return fmt.Errorf("%w: duplicate hand ids", ErrInvalidResponse)
		}
	case MethodChooseActive:
		if !slices.Contains(req.Candidates, resp.CharacterID) {
			return fmt.Errorf("%w: character %d is not a candidate", ErrInvalidResponse, resp.CharacterID)
		}
	case MethodRerollDice:
		if hasDuplicates(resp.RerollIndexes) {
			return fmt.Errorf("%w: duplicate dice indexes", ErrInvalidResponse)
		}
	case MethodSelectCard:
		if !slices.Contains(req.CardDefinitions, resp.SelectedDefinitionID) {
			return fmt.Errorf("%w: card %d is not a candidate", ErrInvalidResponse, resp.SelectedDefinitionID)
		}
	case MethodAction:
		if resp.ChosenActionIndex < 0 || resp.ChosenActionIndex >= len(req.Actions) {
			return fmt.Errorf("%w: action index %d out of range", ErrInvalidResponse, resp.ChosenActionIndex)
		}
		if !req.Actions[resp.ChosenActionIndex].Valid {
			return fmt.Errorf("%w: action %d is not valid", ErrInvalidResponse, resp.ChosenActionIndex)
		}
	default:
		return fmt.Errorf("%w: unknown method %q", ErrInvalidResponse, req.Method)
	}
	return nil
}

func hasDuplicates(xs []int) bool {
	seen := make(map[int]struct{}, len(xs))
	for _, x := range xs {
		if _, ok := seen[x]; ok {
			return true
		}
		seen[x] = struct{}{}
	}
	return false
}
