// Package room tracks the lobbies in which two players gather before a
// game starts, and the game that runs there.
package room

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

var (
	ErrRoomFull       = errors.New("room: room is full")
	ErrAlreadyStarted = errors.New("room: game already started")
	ErrAlreadyJoined  = errors.New("room: player already joined")
	ErrNotFound       = errors.New("room: not found")
	ErrTooManyRooms   = errors.New("room: too many rooms")
)

// RoomState represents the state of a room
type RoomState int

const (
	RoomStateWaiting RoomState = iota
	RoomStateInProgress
	RoomStateFinished
)

func (s RoomState) String() string {
	switch s {
	case RoomStateWaiting:
		return "WAITING"
	case RoomStateInProgress:
		return "IN_PROGRESS"
	case RoomStateFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// Seat is one of the two player places of a room.
type Seat struct {
	Name   string
	Deck   state.Deck
	Bot    bool
	Joined time.Time
}

// SeatSnapshot captures seat data for external use.
type SeatSnapshot struct {
	Name string `json:"name"`
	Bot  bool   `json:"bot"`
}

// RoomSnapshot captures a consistent view of a room.
type RoomSnapshot struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	State      string           `json:"state"`
	GameID     string           `json:"gameId,omitempty"`
	Seats      [2]*SeatSnapshot `json:"seats"`
	Watchers   int              `json:"watchers"`
	Winner     *state.Who       `json:"winner,omitempty"`
	CreateTime time.Time        `json:"createTime"`
	StartTime  *time.Time       `json:"startTime,omitempty"`
	EndTime    *time.Time       `json:"endTime,omitempty"`
}

// Room is a two-seat lobby.
type Room struct {
	ID         string
	Name       string
	State      RoomState
	Seats      [2]*Seat
	GameID     string
	Winner     *state.Who
	Watchers   map[string]bool
	CreateTime time.Time
	StartTime  *time.Time
	EndTime    *time.Time
	mu         sync.RWMutex
}

// NewRoom creates a new room
func NewRoom(name string) *Room {
	return &Room{
		ID:         uuid.New().String(),
		Name:       name,
		State:      RoomStateWaiting,
		Watchers:   make(map[string]bool),
		CreateTime: time.Now(),
	}
}

// Join seats a player in the first free seat and returns it.
func (r *Room) Join(name string, deck state.Deck, bot bool) (state.Who, error) {
	if err := deck.Validate(); err != nil {
		return state.NoOne, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State != RoomStateWaiting {
		return state.NoOne, ErrAlreadyStarted
	}
	free := state.NoOne
	for i := len(r.Seats) - 1; i >= 0; i-- {
		seat := r.Seats[i]
		if seat == nil {
			free = state.Who(i)
			continue
		}
		if !bot && !seat.Bot && seat.Name == name {
			return state.NoOne, ErrAlreadyJoined
		}
	}
	if free == state.NoOne {
		return state.NoOne, ErrRoomFull
	}
	r.Seats[free] = &Seat{Name: name, Deck: deck, Bot: bot, Joined: time.Now()}
	return free, nil
}

// Leave frees the seat of who before the game starts.
func (r *Room) Leave(who state.Who) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State != RoomStateWaiting {
		return ErrAlreadyStarted
	}
	if !who.Valid() || r.Seats[who] == nil {
		return fmt.Errorf("seat %s is empty", who)
	}
	r.Seats[who] = nil
	return nil
}

// Ready reports whether both seats are taken.
func (r *Room) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Seats[0] != nil && r.Seats[1] != nil
}

// Decks returns the decks of both seats.
func (r *Room) Decks() [2]state.Deck {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out [2]state.Deck
	for i, seat := range r.Seats {
		if seat != nil {
			out[i] = seat.Deck
		}
	}
	return out
}

// Names returns the player names of both seats.
func (r *Room) Names() [2]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out [2]string
	for i, seat := range r.Seats {
		if seat != nil {
			out[i] = seat.Name
		}
	}
	return out
}

// AddWatcher registers a spectator.
func (r *Room) AddWatcher(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Watchers[name] = true
}

// RemoveWatcher removes a spectator.
func (r *Room) RemoveWatcher(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.Watchers[name]; exists {
		delete(r.Watchers, name)
		return true
	}
	return false
}

// Start marks the room as playing gameID.
func (r *Room) Start(gameID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State != RoomStateWaiting {
		return ErrAlreadyStarted
	}
	if r.Seats[0] == nil || r.Seats[1] == nil {
		return fmt.Errorf("not enough players")
	}
	now := time.Now()
	r.StartTime = &now
	r.State = RoomStateInProgress
	r.GameID = gameID
	return nil
}

// Finish records the outcome. winner is nil for a draw or a terminated game.
func (r *Room) Finish(winner *state.Who) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.EndTime = &now
	r.State = RoomStateFinished
	r.Winner = cloneWho(winner)
}

// GetState returns the current room state
func (r *Room) GetState() RoomState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.State
}

// Snapshot returns a consistent copy of the room state.
func (r *Room) Snapshot() RoomSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var seats [2]*SeatSnapshot
	for i, seat := range r.Seats {
		if seat != nil {
			seats[i] = &SeatSnapshot{Name: seat.Name, Bot: seat.Bot}
		}
	}
	return RoomSnapshot{
		ID:         r.ID,
		Name:       r.Name,
		State:      r.State.String(),
		GameID:     r.GameID,
		Seats:      seats,
		Watchers:   len(r.Watchers),
		Winner:     cloneWho(r.Winner),
		CreateTime: r.CreateTime,
		StartTime:  cloneTime(r.StartTime),
		EndTime:    cloneTime(r.EndTime),
	}
}

func cloneTime(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	cp := *src
	return &cp
}

func cloneWho(src *state.Who) *state.Who {
	if src == nil {
		return nil
	}
	cp := *src
	return &cp
}

// Manager manages rooms
type Manager struct {
	rooms    map[string]*Room
	maxRooms int
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewManager creates a new room manager. maxRooms <= 0 means no limit.
func NewManager(maxRooms int, logger *zap.Logger) *Manager {
	return &Manager{
		rooms:    make(map[string]*Room),
		maxRooms: maxRooms,
		logger:   logger,
	}
}

// CreateRoom creates a new room
func (m *Manager) CreateRoom(name string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxRooms > 0 && m.activeLocked() >= m.maxRooms {
		return nil, ErrTooManyRooms
	}
	room := NewRoom(name)
	m.rooms[room.ID] = room

	if m.logger != nil {
		m.logger.Info("room created",
			zap.String("room_id", room.ID),
			zap.String("name", name),
		)
	}
	return room, nil
}

// GetRoom retrieves a room by ID
func (m *Manager) GetRoom(roomID string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, roomID)
	}
	return room, nil
}

// RemoveRoom removes a room
func (m *Manager) RemoveRoom(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.rooms, roomID)

	if m.logger != nil {
		m.logger.Info("room removed", zap.String("room_id", roomID))
	}
}

// GetAllRooms returns snapshots of all rooms, oldest first.
func (m *Manager) GetAllRooms() []RoomSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RoomSnapshot, 0, len(m.rooms))
	for _, room := range m.rooms {
		out = append(out, room.Snapshot())
	}
	slices.SortFunc(out, func(a, b RoomSnapshot) int {
		return a.CreateTime.Compare(b.CreateTime)
	})
	return out
}

// GetActiveRoomCount returns the count of rooms that have not finished
func (m *Manager) GetActiveRoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeLocked()
}

func (m *Manager) activeLocked() int {
	count := 0
	for _, room := range m.rooms {
		if room.GetState() != RoomStateFinished {
			count++
		}
	}
	return count
}

// PruneFinished drops rooms that finished before cutoff and returns how many
// were removed.
func (m *Manager) PruneFinished(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, room := range m.rooms {
		snap := room.Snapshot()
		if snap.EndTime != nil && snap.EndTime.Before(cutoff) {
			delete(m.rooms, id)
			removed++
		}
	}
	if removed > 0 && m.logger != nil {
		m.logger.Debug("pruned finished rooms", zap.Int("count", removed))
	}
	return removed
}
