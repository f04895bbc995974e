// Package rules resolves skills and events on top of the mutation stream.
package rules

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gi-tcg/gitcg-server-go/internal/game/mutation"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

var (
	// ErrGameOver unwinds resolution once a winner is decided.
	ErrGameOver = errors.New("rules: game over")
	// ErrReadOnly is returned when a filter tries to change the game.
	ErrReadOnly = errors.New("rules: context is read-only")
	// ErrSyncContext is returned for operations a synchronous handler may not do.
	ErrSyncContext = errors.New("rules: not allowed in a synchronous handler")
	// ErrNoDecider is returned for player decisions on a preview engine.
	ErrNoDecider = errors.New("rules: no decider")
	// ErrUnknownDefinition is returned for ids missing from the library.
	ErrUnknownDefinition = errors.New("rules: unknown definition")
)

// Decider obtains player decisions needed in the middle of a resolution.
type Decider interface {
	// ChooseActive asks every player in candidates, in parallel, to pick a new
	// active character among the given ids.
	ChooseActive(ctx context.Context, candidates map[state.Who][]int) (map[state.Who]int, error)
	// SelectCard asks who to pick one of the card definitions.
	SelectCard(ctx context.Context, who state.Who, definitions []int) (int, error)
}

// Engine runs skills against one game's mutation stream. It is used by a
// single goroutine.
type Engine struct {
	lib     Library
	stream  *mutation.Stream
	decider Decider
	logger  *zap.Logger
	preview bool
}

// NewEngine creates an engine over stream.
func NewEngine(lib Library, stream *mutation.Stream, decider Decider, logger *zap.Logger) *Engine {
	return &Engine{
		lib:     lib,
		stream:  stream,
		decider: decider,
		logger:  logger,
	}
}

// Library returns the content the engine resolves against.
func (e *Engine) Library() Library {
	return e.lib
}

// State returns the live state; callers must not write it.
func (e *Engine) State() *state.GameState {
	return e.stream.State()
}

// Stream returns the underlying mutation stream.
func (e *Engine) Stream() *mutation.Stream {
	return e.stream
}

// Fork returns a preview engine over a copy of the current state. Player
// decisions fail on it and nothing it does reaches the real game.
func (e *Engine) Fork() *Engine {
	return &Engine{
		lib:     e.lib,
		stream:  e.stream.Fork(),
		preview: true,
	}
}

// IsPreview reports whether the engine is a fork.
func (e *Engine) IsPreview() bool {
	return e.preview
}

// Run executes fn in a root context and then finishes it: zero-health
// checks, queued events, and new active characters for defeated ones.
func (e *Engine) Run(ctx context.Context, fn func(c *Context) error) error {
	c := e.newContext(ctx, nil)
	c.root = true
	if err := fn(c); err != nil {
		return err
	}
	return c.finish()
}

func (e *Engine) newContext(ctx context.Context, parent *Context) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{
		ctx:    ctx,
		engine: e,
		parent: parent,
	}
}

// handle runs every eligible asynchronous trigger of event in order. Each
// trigger's own queued events are resolved before the next trigger runs.
func (e *Engine) handle(parent *Context, event EventType, arg Arg) error {
	if event.IsSync() {
		return fmt.Errorf("rules: %s is synchronous", event)
	}
	triggers := e.candidates(event, e.stream.State().AllRefs())
	for _, t := range triggers {
		if err := parent.ctx.Err(); err != nil {
			return err
		}
		if t.Skill.Action == nil || !e.eligible(parent, t, arg) {
			continue
		}
		if e.logger != nil {
			e.logger.Debug("trigger",
				zap.String("event", string(event)),
				zap.Int("skill", t.Skill.ID),
				zap.Int("carrier", t.Self.ID),
				zap.Int("definition", t.Self.DefinitionID),
			)
		}
		child := e.newContext(parent.ctx, parent)
		child.self, child.skill = t.Self, t.Skill
		if err := t.Skill.Action(child, t.Self, arg); err != nil {
			return fmt.Errorf("skill %d on %s: %w", t.Skill.ID, event, err)
		}
		if err := child.finish(); err != nil {
			return err
		}
	}
	return nil
}

// intercept runs the synchronous triggers of event until one cancels.
func (e *Engine) intercept(parent *Context, event EventType, arg Arg) (bool, error) {
	if !event.IsSync() {
		return false, fmt.Errorf("rules: %s is asynchronous", event)
	}
	for _, t := range e.candidates(event, e.stream.State().AllRefs()) {
		if t.Skill.Sync == nil || !e.eligible(parent, t, arg) {
			continue
		}
		child := e.newContext(parent.ctx, parent)
		child.self, child.skill, child.sync = t.Self, t.Skill, true
		ok, err := t.Skill.Sync(child, t.Self, arg)
		if err != nil {
			return false, fmt.Errorf("skill %d on %s: %w", t.Skill.ID, event, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
