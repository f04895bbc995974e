package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gi-tcg/gitcg-server-go/internal/game"
	"github.com/gi-tcg/gitcg-server-go/internal/game/rpc"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
	"github.com/gi-tcg/gitcg-server-go/internal/server"
)

// playOptions configure a remote session.
type playOptions struct {
	url    string
	name   string
	roomID string
	vsBot  bool
	seed   uint64
}

func newPlayCmd(a *app) *cobra.Command {
	var (
		opts      playOptions
		decksPath string
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Join a server as a bot player",
		RunE: func(cmd *cobra.Command, _ []string) error {
			decks := defaultDecks()
			if decksPath != "" {
				var err error
				if decks, err = loadDecks(decksPath); err != nil {
					return err
				}
			}
			end, err := play(cmd.Context(), opts, decks[0], decks[1], a.logger)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(end)
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "ws://localhost:8080/ws", "server websocket url")
	cmd.Flags().StringVar(&opts.name, "name", "", "player name, defaults to the host name")
	cmd.Flags().StringVar(&opts.roomID, "room", "", "room to join; a new room is opened when empty")
	cmd.Flags().BoolVar(&opts.vsBot, "vs-bot", true, "fill the second seat of a new room with a server bot")
	cmd.Flags().Uint64Var(&opts.seed, "seed", uint64(time.Now().UnixNano()), "bot seed")
	cmd.Flags().StringVar(&decksPath, "decks", "", "YAML file with two decks; the first is played, the second goes to the server bot")
	return cmd
}

// play seats a local bot on a server and answers its requests until the
// game ends.
func play(ctx context.Context, opts playOptions, deck, botDeck state.Deck, logger *zap.Logger) (*server.GameEndData, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, opts.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.url, err)
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	name := opts.name
	if name == "" {
		name, _ = os.Hostname()
	}
	send := func(t server.MessageType, roomID string, requestID int64, data any) error {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		return conn.WriteJSON(server.Message{Type: t, RoomID: roomID, RequestID: requestID, Data: raw})
	}

	if opts.roomID == "" {
		err = send(server.MsgCreateRoom, "", 0, server.CreateRoomData{
			Player:  name,
			Deck:    deck,
			VsBot:   opts.vsBot,
			BotDeck: &botDeck,
			BotSeed: opts.seed + 1,
		})
	} else {
		err = send(server.MsgJoinRoom, opts.roomID, 0, server.JoinRoomData{Player: name, Deck: deck})
	}
	if err != nil {
		return nil, err
	}

	bot := game.NewNullPlayer(opts.seed, logger)
	for {
		var msg server.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		switch msg.Type {
		case server.MsgJoined:
			var joined server.JoinedData
			if err := json.Unmarshal(msg.Data, &joined); err != nil {
				return nil, err
			}
			if logger != nil {
				logger.Info("seated", zap.String("room_id", joined.RoomID), zap.String("who", joined.Who.String()))
			}
		case server.MsgRPC:
			var req rpc.Request
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				return nil, err
			}
			resp, err := bot.RPC(ctx, req)
			if err != nil {
				return nil, err
			}
			if err := send(server.MsgResponse, msg.RoomID, msg.RequestID, resp); err != nil {
				return nil, err
			}
		case server.MsgGameEnd:
			var end server.GameEndData
			if err := json.Unmarshal(msg.Data, &end); err != nil {
				return nil, err
			}
			return &end, nil
		case server.MsgError:
			var e server.ErrorData
			_ = json.Unmarshal(msg.Data, &e)
			return nil, errors.New(e.Message)
		}
	}
}
