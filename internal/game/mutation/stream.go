package mutation

import (
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// Stream owns the live state of one game. It applies mutations one at a
// time, keeps the full ordered log and buffers the batch not yet sent to
// observers.
type Stream struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	state   *state.GameState
	log     []Mutation
	pending []Mutation
}

// NewStream starts a stream from a copy of initial.
func NewStream(initial *state.GameState, logger *zap.Logger) *Stream {
	return &Stream{
		logger: logger,
		state:  initial.Clone(),
	}
}

// State returns the live state. It must only be read by the goroutine that
// applies mutations.
func (s *Stream) State() *state.GameState {
	return s.state
}

// Snapshot returns a deep copy of the current state. Safe for any goroutine.
func (s *Stream) Snapshot() *state.GameState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Apply applies m, appends it to the log and to the pending batch.
func (s *Stream) Apply(m Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := Apply(s.state, m); err != nil {
		if s.logger != nil {
			s.logger.Error("failed to apply mutation",
				zap.String("type", string(m.Type())),
				zap.Error(err),
			)
		}
		return err
	}
	s.log = append(s.log, m)
	s.pending = append(s.pending, m)

	if s.logger != nil {
		s.logger.Debug("mutation applied",
			zap.Int("seq", len(s.log)),
			zap.String("type", string(m.Type())),
			zap.Any("data", m),
		)
	}
	return nil
}

// Flush returns the pending batch and starts a new one.
func (s *Stream) Flush() []Mutation {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.pending
	s.pending = nil
	return batch
}

// Log returns a copy of every mutation applied so far.
func (s *Stream) Log() []Mutation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.log)
}

// Len returns the number of applied mutations.
func (s *Stream) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.log)
}

// Fork returns an unlogged stream over a copy of the current state, for
// previews that must not touch the real game.
func (s *Stream) Fork() *Stream {
	return &Stream{state: s.Snapshot()}
}
