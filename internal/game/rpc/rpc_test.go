package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerify(t *testing.T) {
	action := Request{Method: MethodAction, Actions: []ActionInfo{
		{Kind: ActionUseSkill, Valid: false},
		{Kind: ActionDeclareEnd, Valid: true},
	}}

	tests := []struct {
		name string
		req  Request
		resp Response
		ok   bool
	}{
		{"valid action", action, Response{ChosenActionIndex: 1}, true},
		{"invalid action", action, Response{ChosenActionIndex: 0}, false},
		{"out of range", action, Response{ChosenActionIndex: 2}, false},
		{"choose candidate", Request{Method: MethodChooseActive, Candidates: []int{2, 3}}, Response{CharacterID: 3}, true},
		{"choose non candidate", Request{Method: MethodChooseActive, Candidates: []int{2, 3}}, Response{CharacterID: 1}, false},
		{"switch none", Request{Method: MethodSwitchHands}, Response{}, true},
		{"switch duplicates", Request{Method: MethodSwitchHands}, Response{RemovedHands: []int{4, 4}}, false},
		{"reroll", Request{Method: MethodRerollDice}, Response{RerollIndexes: []int{0, 3}}, true},
		{"select", Request{Method: MethodSelectCard, CardDefinitions: []int{301}}, Response{SelectedDefinitionID: 301}, true},
		{"select missing", Request{Method: MethodSelectCard, CardDefinitions: []int{301}}, Response{}, false},
		{"unknown", Request{Method: "dance"}, Response{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(tt.req, tt.resp)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidResponse)
			}
		})
	}
}
