package server

import (
	"encoding/json"

	"github.com/gi-tcg/gitcg-server-go/internal/game/mutation"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
	"github.com/gi-tcg/gitcg-server-go/internal/game/watchers"
)

// MessageType tags every websocket frame.
type MessageType string

// Client to server.
const (
	MsgCreateRoom MessageType = "createRoom"
	MsgJoinRoom   MessageType = "joinRoom"
	MsgWatchRoom  MessageType = "watchRoom"
	MsgResponse   MessageType = "response"
	MsgGiveUp     MessageType = "giveUp"
)

// Server to client.
const (
	MsgJoined       MessageType = "joined"
	MsgNotification MessageType = "notification"
	MsgRPC          MessageType = "rpc"
	MsgGameEnd      MessageType = "gameEnd"
	MsgError        MessageType = "error"
)

// Message is one websocket frame. Data depends on Type.
type Message struct {
	Type      MessageType     `json:"type"`
	RoomID    string          `json:"roomId,omitempty"`
	RequestID int64           `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// CreateRoomData opens a room and takes its first seat. With VsBot the
// second seat goes to a bot playing BotDeck, or Deck when BotDeck is empty.
type CreateRoomData struct {
	Name    string      `json:"name"`
	Player  string      `json:"player"`
	Deck    state.Deck  `json:"deck"`
	VsBot   bool        `json:"vsBot"`
	BotDeck *state.Deck `json:"botDeck,omitempty"`
	BotSeed uint64      `json:"botSeed,omitempty"`
}

// JoinRoomData takes the free seat of an existing room.
type JoinRoomData struct {
	Player string     `json:"player"`
	Deck   state.Deck `json:"deck"`
}

// WatchRoomData subscribes to the spectator view of a room.
type WatchRoomData struct {
	Name string `json:"name"`
}

// JoinedData confirms a seat. Who is NoOne for spectators.
type JoinedData struct {
	RoomID string    `json:"roomId"`
	Who    state.Who `json:"who"`
}

// NotificationData is one pause point as seen by the receiver.
type NotificationData struct {
	Who       state.Who           `json:"who"`
	State     *state.GameState    `json:"state"`
	Mutations []mutation.Envelope `json:"mutations"`
}

// GameEndData reports the outcome of a game.
type GameEndData struct {
	GameID string           `json:"gameId"`
	Winner *state.Who       `json:"winner"`
	Reason string           `json:"reason"`
	Stats  watchers.Summary `json:"stats"`
}

// ErrorData carries a human readable failure.
type ErrorData struct {
	Message string `json:"message"`
}

func newMessage(t MessageType, roomID string, requestID int64, data any) (Message, error) {
	msg := Message{Type: t, RoomID: roomID, RequestID: requestID}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return msg, err
		}
		msg.Data = raw
	}
	return msg, nil
}

func encodeBatch(batch []mutation.Mutation) ([]mutation.Envelope, error) {
	if len(batch) == 0 {
		return []mutation.Envelope{}, nil
	}
	return mutation.EncodeLog(batch)
}
