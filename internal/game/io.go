package game

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gi-tcg/gitcg-server-go/internal/game/rpc"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// checkFunc validates a shape-checked response against the current state.
type checkFunc func(who state.Who, resp rpc.Response) error

// request asks who until a valid response arrives. Invalid responses are
// logged and asked again; too many of them forfeit the game.
func (g *Game) request(ctx context.Context, who state.Who, req rpc.Request, check checkFunc) (rpc.Response, error) {
	for attempt := 1; ; attempt++ {
		resp, err := g.call(ctx, who, req)
		if err != nil {
			return rpc.Response{}, err
		}
		err = rpc.Verify(req, resp)
		if err == nil && check != nil {
			err = check(who, resp)
		}
		if err == nil {
			return resp, nil
		}
		if g.logger != nil {
			g.logger.Warn("invalid response",
				zap.String("who", who.String()),
				zap.String("method", string(req.Method)),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		if attempt >= g.maxReprompts {
			return rpc.Response{}, &PlayerError{Who: who, Err: fmt.Errorf("%w: %s: %v", ErrTooManyInvalid, req.Method, err)}
		}
	}
}

// call performs one RPC. The wait ends early when the game is terminated
// or ctx is done, in which case the outstanding RPC is cancelled.
func (g *Game) call(ctx context.Context, who state.Who, req rpc.Request) (rpc.Response, error) {
	io := g.players[who]
	type result struct {
		resp rpc.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := io.RPC(ctx, req)
		done <- result{resp, err}
	}()
	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, context.Canceled) && ctx.Err() != nil {
				return rpc.Response{}, ctx.Err()
			}
			return rpc.Response{}, &PlayerError{Who: who, Err: fmt.Errorf("%s: %w", req.Method, r.err)}
		}
		return r.resp, nil
	case <-g.terminate:
		io.CancelRPC()
		return rpc.Response{}, ErrTerminated
	case <-ctx.Done():
		io.CancelRPC()
		return rpc.Response{}, ctx.Err()
	}
}

// requestAll asks several players at once. The batch so far is flushed to
// them first so every decision is made on fresh state.
func (g *Game) requestAll(ctx context.Context, reqs map[state.Who]rpc.Request, check checkFunc) (map[state.Who]rpc.Response, error) {
	if err := g.pause(false); err != nil {
		return nil, err
	}
	var (
		mu    sync.Mutex
		resps = make(map[state.Who]rpc.Response, len(reqs))
	)
	eg, ctx := errgroup.WithContext(ctx)
	for who, req := range reqs {
		eg.Go(func() error {
			resp, err := g.request(ctx, who, req, check)
			if err != nil {
				return err
			}
			mu.Lock()
			resps[who] = resp
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return resps, nil
}

// decider answers the rules engine's mid-resolution questions through the
// players.
type decider struct {
	g *Game
}

func (d decider) ChooseActive(ctx context.Context, candidates map[state.Who][]int) (map[state.Who]int, error) {
	reqs := make(map[state.Who]rpc.Request, len(candidates))
	for who, ids := range candidates {
		reqs[who] = rpc.Request{Method: rpc.MethodChooseActive, Who: who, Candidates: ids}
	}
	resps, err := d.g.requestAll(ctx, reqs, nil)
	if err != nil {
		return nil, err
	}
	chosen := make(map[state.Who]int, len(resps))
	for who, resp := range resps {
		chosen[who] = resp.CharacterID
	}
	return chosen, nil
}

func (d decider) SelectCard(ctx context.Context, who state.Who, definitions []int) (int, error) {
	if err := d.g.pause(false); err != nil {
		return 0, err
	}
	req := rpc.Request{Method: rpc.MethodSelectCard, Who: who, CardDefinitions: definitions}
	resp, err := d.g.request(ctx, who, req, nil)
	if err != nil {
		return 0, err
	}
	return resp.SelectedDefinitionID, nil
}
