package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gi-tcg/gitcg-server-go/internal/game/rpc"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

var (
	// ErrDisconnected is returned by RPC once the player's connection is gone.
	ErrDisconnected = errors.New("server: player disconnected")
	// ErrCancelled is returned by RPC after CancelRPC.
	ErrCancelled = errors.New("server: request cancelled")
)

type pendingCall struct {
	resp   chan rpc.Response
	cancel chan struct{}
}

// wsPlayer decides for one seat through a websocket client.
type wsPlayer struct {
	who     state.Who
	roomID  string
	client  *client
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	nextID  int64
	pending map[int64]*pendingCall
}

func newWSPlayer(who state.Who, roomID string, c *client, timeout time.Duration, logger *zap.Logger) *wsPlayer {
	return &wsPlayer{
		who:     who,
		roomID:  roomID,
		client:  c,
		timeout: timeout,
		logger:  logger,
		pending: make(map[int64]*pendingCall),
	}
}

// Notify forwards the update; a slow client loses it rather than stalling
// the game.
func (p *wsPlayer) Notify(n rpc.Notification) {
	envs, err := encodeBatch(n.Mutations)
	if err != nil {
		if p.logger != nil {
			p.logger.Error("encode notification", zap.String("room_id", p.roomID), zap.Error(err))
		}
		return
	}
	err = p.client.send(MsgNotification, p.roomID, 0, NotificationData{Who: n.Who, State: n.State, Mutations: envs})
	if err != nil && p.logger != nil {
		p.logger.Warn("notification dropped",
			zap.String("room_id", p.roomID),
			zap.String("who", p.who.String()),
			zap.Error(err),
		)
	}
}

// RPC sends req and waits for the matching response.
func (p *wsPlayer) RPC(ctx context.Context, req rpc.Request) (rpc.Response, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	p.mu.Lock()
	p.nextID++
	id := p.nextID
	call := &pendingCall{resp: make(chan rpc.Response, 1), cancel: make(chan struct{})}
	p.pending[id] = call
	p.mu.Unlock()
	defer p.forget(id)

	if err := p.client.send(MsgRPC, p.roomID, id, req); err != nil {
		return rpc.Response{}, fmt.Errorf("send request: %w", err)
	}

	select {
	case resp := <-call.resp:
		return resp, nil
	case <-call.cancel:
		return rpc.Response{}, ErrCancelled
	case <-p.client.done:
		return rpc.Response{}, ErrDisconnected
	case <-ctx.Done():
		return rpc.Response{}, ctx.Err()
	}
}

// CancelRPC aborts every outstanding request.
func (p *wsPlayer) CancelRPC() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, call := range p.pending {
		close(call.cancel)
		delete(p.pending, id)
	}
}

func (p *wsPlayer) forget(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, id)
}

// deliver hands a client response to the waiting RPC.
func (p *wsPlayer) deliver(id int64, resp rpc.Response) error {
	p.mu.Lock()
	call, ok := p.pending[id]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("no outstanding request %d", id)
	}
	select {
	case call.resp <- resp:
		return nil
	default:
		return fmt.Errorf("request %d already answered", id)
	}
}

var _ rpc.PlayerIO = (*wsPlayer)(nil)
