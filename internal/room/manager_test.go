package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

func testDeck() state.Deck {
	d := state.Deck{Characters: []int{1101, 1201, 1301}}
	for i := 0; i < state.DeckCards; i++ {
		d.Cards = append(d.Cards, 332001)
	}
	return d
}

func TestRoomJoin(t *testing.T) {
	r := NewRoom("casual")
	assert.Equal(t, RoomStateWaiting, r.GetState())
	assert.False(t, r.Ready())

	who, err := r.Join("ann", testDeck(), false)
	require.NoError(t, err)
	assert.Equal(t, state.PlayerOne, who)

	_, err = r.Join("ann", testDeck(), false)
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	_, err = r.Join("bob", state.Deck{}, false)
	assert.ErrorIs(t, err, state.ErrInvalidDeck)

	who, err = r.Join("bot", testDeck(), true)
	require.NoError(t, err)
	assert.Equal(t, state.PlayerTwo, who)
	assert.True(t, r.Ready())

	_, err = r.Join("cid", testDeck(), false)
	assert.ErrorIs(t, err, ErrRoomFull)

	assert.Equal(t, [2]string{"ann", "bot"}, r.Names())
	assert.Equal(t, testDeck(), r.Decks()[1])
}

func TestRoomLeaveRefillsSeat(t *testing.T) {
	r := NewRoom("casual")
	_, err := r.Join("ann", testDeck(), false)
	require.NoError(t, err)
	_, err = r.Join("bob", testDeck(), false)
	require.NoError(t, err)

	require.NoError(t, r.Leave(state.PlayerOne))
	assert.Error(t, r.Leave(state.PlayerOne))

	who, err := r.Join("cid", testDeck(), false)
	require.NoError(t, err)
	assert.Equal(t, state.PlayerOne, who)
}

func TestRoomLifecycle(t *testing.T) {
	r := NewRoom("ranked")
	assert.Error(t, r.Start("g1"))

	_, _ = r.Join("ann", testDeck(), false)
	_, _ = r.Join("bob", testDeck(), false)
	require.NoError(t, r.Start("g1"))
	assert.ErrorIs(t, r.Start("g1"), ErrAlreadyStarted)
	assert.ErrorIs(t, r.Leave(state.PlayerTwo), ErrAlreadyStarted)
	_, err := r.Join("cid", testDeck(), false)
	assert.ErrorIs(t, err, ErrAlreadyStarted)

	r.AddWatcher("cid")
	snap := r.Snapshot()
	assert.Equal(t, "IN_PROGRESS", snap.State)
	assert.Equal(t, "g1", snap.GameID)
	assert.Equal(t, 1, snap.Watchers)
	assert.NotNil(t, snap.StartTime)
	assert.Nil(t, snap.EndTime)
	assert.True(t, r.RemoveWatcher("cid"))
	assert.False(t, r.RemoveWatcher("cid"))

	winner := state.PlayerTwo
	r.Finish(&winner)
	winner = state.PlayerOne
	snap = r.Snapshot()
	assert.Equal(t, RoomStateFinished, r.GetState())
	require.NotNil(t, snap.Winner)
	assert.Equal(t, state.PlayerTwo, *snap.Winner)
	assert.NotNil(t, snap.EndTime)
}

func TestManager(t *testing.T) {
	m := NewManager(2, zaptest.NewLogger(t))

	a, err := m.CreateRoom("a")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	b, err := m.CreateRoom("b")
	require.NoError(t, err)
	_, err = m.CreateRoom("c")
	assert.ErrorIs(t, err, ErrTooManyRooms)
	assert.Equal(t, 2, m.GetActiveRoomCount())

	got, err := m.GetRoom(a.ID)
	require.NoError(t, err)
	assert.Same(t, a, got)
	_, err = m.GetRoom("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	all := m.GetAllRooms()
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)
	assert.Equal(t, b.ID, all[1].ID)

	// Finished rooms free a slot and can be pruned.
	b.Finish(nil)
	assert.Equal(t, 1, m.GetActiveRoomCount())
	_, err = m.CreateRoom("c")
	require.NoError(t, err)

	assert.Equal(t, 0, m.PruneFinished(time.Now().Add(-time.Hour)))
	assert.Equal(t, 1, m.PruneFinished(time.Now().Add(time.Second)))
	_, err = m.GetRoom(b.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	m.RemoveRoom(a.ID)
	assert.Len(t, m.GetAllRooms(), 1)
}
