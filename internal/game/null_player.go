package game

import (
	"context"
	"math/rand/v2"
	"sync"

	"go.uber.org/zap"

	"github.com/gi-tcg/gitcg-server-go/internal/game/rpc"
)

// NullPlayer is a bot that answers every request with the simplest valid
// response. It keeps its hand, never rerolls, and prefers skills over cards.
type NullPlayer struct {
	logger *zap.Logger

	mu       sync.Mutex
	rng      *rand.Rand
	last     rpc.Notification
	notified int
}

// NewNullPlayer creates a bot whose choices are determined by seed.
func NewNullPlayer(seed uint64, logger *zap.Logger) *NullPlayer {
	return &NullPlayer{
		logger: logger,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Notify records the latest update.
func (n *NullPlayer) Notify(note rpc.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last = note
	n.notified++
}

// Notified returns how many updates were delivered.
func (n *NullPlayer) Notified() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.notified
}

// Last returns the latest update.
func (n *NullPlayer) Last() rpc.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

// RPC answers req immediately.
func (n *NullPlayer) RPC(ctx context.Context, req rpc.Request) (rpc.Response, error) {
	if err := ctx.Err(); err != nil {
		return rpc.Response{}, err
	}
	var resp rpc.Response
	switch req.Method {
	case rpc.MethodChooseActive:
		if len(req.Candidates) > 0 {
			resp.CharacterID = req.Candidates[0]
		}
	case rpc.MethodSelectCard:
		if len(req.CardDefinitions) > 0 {
			resp.SelectedDefinitionID = req.CardDefinitions[0]
		}
	case rpc.MethodAction:
		resp = n.chooseAction(req.Actions)
	}
	if n.logger != nil {
		n.logger.Debug("null player response",
			zap.String("who", req.Who.String()),
			zap.String("method", string(req.Method)),
			zap.Int("action", resp.ChosenActionIndex),
		)
	}
	return resp, nil
}

// CancelRPC is a no-op: responses are never outstanding.
func (n *NullPlayer) CancelRPC() {}

func (n *NullPlayer) chooseAction(actions []rpc.ActionInfo) rpc.Response {
	var skills, cards []int
	end := -1
	for i, a := range actions {
		if !a.Valid {
			continue
		}
		switch a.Kind {
		case rpc.ActionUseSkill:
			skills = append(skills, i)
		case rpc.ActionPlayCard:
			cards = append(cards, i)
		case rpc.ActionDeclareEnd:
			end = i
		}
	}

	n.mu.Lock()
	playCard := len(cards) > 0 && (len(skills) == 0 || n.rng.IntN(3) == 0)
	pick := 0
	if playCard {
		pick = cards[n.rng.IntN(len(cards))]
	}
	n.mu.Unlock()

	switch {
	case playCard:
	case len(skills) > 0:
		pick = skills[0]
	default:
		pick = end
	}
	if pick < 0 {
		return rpc.Response{}
	}
	return rpc.Response{ChosenActionIndex: pick, UsedDice: actions[pick].AutoDice}
}
