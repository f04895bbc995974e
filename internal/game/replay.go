package game

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/gi-tcg/gitcg-server-go/internal/game/mutation"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// LogFormatVersion is bumped whenever the encoded GameLog layout changes.
const LogFormatVersion = 1

// ErrChecksumMismatch is returned by Verify when replaying the mutations
// does not reproduce the recorded final state.
var ErrChecksumMismatch = errors.New("game: replay checksum mismatch")

// LogEntry is the state at one pause point.
type LogEntry struct {
	State     *state.GameState `json:"state"`
	CanResume bool             `json:"canResume"`
}

// GameLog is everything needed to replay, inspect or resume a game.
type GameLog struct {
	Format    int                 `json:"format"`
	GameID    string              `json:"gameId"`
	Version   string              `json:"version"`
	Decks     [2]state.Deck       `json:"decks"`
	Initial   *state.GameState    `json:"initial"`
	Entries   []LogEntry          `json:"entries"`
	Mutations []mutation.Envelope `json:"mutations"`
	Checksum  string              `json:"checksum,omitempty"`
}

// Final replays the mutations over the initial state.
func (l *GameLog) Final() (*state.GameState, error) {
	muts, err := mutation.DecodeLog(l.Mutations)
	if err != nil {
		return nil, err
	}
	return mutation.Replay(l.Initial, muts)
}

// Verify replays the log and compares the result with the recorded
// checksum.
func (l *GameLog) Verify() error {
	final, err := l.Final()
	if err != nil {
		return err
	}
	if l.Checksum == "" {
		return nil
	}
	sum, err := Checksum(final)
	if err != nil {
		return err
	}
	if sum.Hash != l.Checksum {
		return fmt.Errorf("%w: got %s, recorded %s", ErrChecksumMismatch, sum.Hash, l.Checksum)
	}
	return nil
}

// Encode writes the log as zstd-compressed JSON.
func (l *GameLog) Encode(w io.Writer) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(l); err != nil {
		enc.Close()
		return fmt.Errorf("failed to encode log: %w", err)
	}
	return enc.Close()
}

// DecodeLog reads a log written by Encode.
func DecodeLog(r io.Reader) (*GameLog, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer dec.Close()
	var l GameLog
	if err := json.NewDecoder(dec).Decode(&l); err != nil {
		return nil, fmt.Errorf("failed to decode log: %w", err)
	}
	if l.Format != LogFormatVersion {
		return nil, fmt.Errorf("unsupported log format: %d", l.Format)
	}
	return &l, nil
}

// Bytes returns the encoded log.
func (l *GameLog) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := l.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func logPath(directory, gameID string) string {
	return filepath.Join(directory, gameID+".replay.zst")
}

// SaveToFile writes the log to <directory>/<game id>.replay.zst.
func (l *GameLog) SaveToFile(directory string) error {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(logPath(directory, l.GameID))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := l.Encode(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// LoadLogFromFile reads the log of gameID from directory.
func LoadLogFromFile(directory, gameID string) (*GameLog, error) {
	file, err := os.Open(logPath(directory, gameID))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return DecodeLog(file)
}

// Replay steps through the pause-point states of a log.
type Replay struct {
	GameID       string
	States       []*state.GameState
	CurrentIndex int
	mu           sync.RWMutex
}

// NewReplay creates a playback cursor over the entries of l.
func NewReplay(l *GameLog) *Replay {
	r := &Replay{GameID: l.GameID, States: make([]*state.GameState, 0, len(l.Entries))}
	for _, e := range l.Entries {
		r.States = append(r.States, e.State)
	}
	return r
}

// Start resets the replay to the beginning.
func (r *Replay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.CurrentIndex = 0
}

// Next returns the state under the cursor and moves forward.
func (r *Replay) Next() *state.GameState {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex < len(r.States) {
		st := r.States[r.CurrentIndex]
		r.CurrentIndex++
		return st
	}
	return nil
}

// Previous moves back and returns that state.
func (r *Replay) Previous() *state.GameState {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex > 0 {
		r.CurrentIndex--
		return r.States[r.CurrentIndex]
	}
	return nil
}

// Skip moves by count states, clamped to the recorded range.
func (r *Replay) Skip(count int) *state.GameState {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.States) == 0 {
		return nil
	}
	r.CurrentIndex = min(max(r.CurrentIndex+count, 0), len(r.States)-1)
	return r.States[r.CurrentIndex]
}

// Size returns the number of recorded states.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.States)
}

// StateAt returns the state at index, or nil.
func (r *Replay) StateAt(index int) *state.GameState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index >= 0 && index < len(r.States) {
		return r.States[index]
	}
	return nil
}

// ReplayRecorder keeps the logs of finished games until they are saved.
type ReplayRecorder struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	logs    map[string]*GameLog // gameID -> log
	saveDir string
}

// NewReplayRecorder creates a recorder saving into saveDir.
func NewReplayRecorder(logger *zap.Logger, saveDir string) *ReplayRecorder {
	return &ReplayRecorder{
		logger:  logger,
		logs:    make(map[string]*GameLog),
		saveDir: saveDir,
	}
}

// Record takes the current log of g.
func (rr *ReplayRecorder) Record(g *Game) error {
	l, err := g.Log()
	if err != nil {
		return err
	}
	rr.mu.Lock()
	rr.logs[l.GameID] = l
	rr.mu.Unlock()

	if rr.logger != nil {
		rr.logger.Debug("recorded game log",
			zap.String("game_id", l.GameID),
			zap.Int("entries", len(l.Entries)),
			zap.Int("mutations", len(l.Mutations)),
		)
	}
	return nil
}

// Get returns the recorded log of a game.
func (rr *ReplayRecorder) Get(gameID string) (*GameLog, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	l, ok := rr.logs[gameID]
	return l, ok
}

// SaveReplay saves a log to disk and removes it from memory.
func (rr *ReplayRecorder) SaveReplay(gameID string) error {
	rr.mu.Lock()
	l, ok := rr.logs[gameID]
	if !ok {
		rr.mu.Unlock()
		return fmt.Errorf("no replay found for game %s", gameID)
	}
	delete(rr.logs, gameID)
	rr.mu.Unlock()

	if err := l.SaveToFile(rr.saveDir); err != nil {
		return fmt.Errorf("failed to save replay: %w", err)
	}

	if rr.logger != nil {
		rr.logger.Info("saved replay to disk",
			zap.String("game_id", gameID),
			zap.Int("entries", len(l.Entries)),
			zap.String("directory", rr.saveDir),
		)
	}
	return nil
}

// LoadReplay loads a log from disk and verifies it.
func (rr *ReplayRecorder) LoadReplay(gameID string) (*GameLog, error) {
	l, err := LoadLogFromFile(rr.saveDir, gameID)
	if err != nil {
		return nil, err
	}
	if err := l.Verify(); err != nil {
		return nil, err
	}

	if rr.logger != nil {
		rr.logger.Info("loaded replay from disk",
			zap.String("game_id", gameID),
			zap.Int("entries", len(l.Entries)),
		)
	}
	return l, nil
}

// ClearReplay drops a log without saving it.
func (rr *ReplayRecorder) ClearReplay(gameID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	delete(rr.logs, gameID)
}
