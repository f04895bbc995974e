package server

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

var (
	errClientClosed = errors.New("client closed")
	errSlowClient   = errors.New("client send buffer full")
)

// client is one websocket connection. It may hold a seat, watch a room, or
// both over its lifetime.
type client struct {
	conn   *websocket.Conn
	srv    *Server
	logger *zap.Logger

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	player *wsPlayer
	match  *match
}

func newClient(conn *websocket.Conn, srv *Server) *client {
	return &client{
		conn:   conn,
		srv:    srv,
		logger: srv.logger,
		out:    make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

// send queues a message without blocking.
func (c *client) send(t MessageType, roomID string, requestID int64, data any) error {
	msg, err := newMessage(t, roomID, requestID, data)
	if err != nil {
		return err
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return errClientClosed
	default:
	}
	select {
	case c.out <- b:
		return nil
	case <-c.done:
		return errClientClosed
	default:
		return errSlowClient
	}
}

func (c *client) sendError(roomID string, err error) {
	_ = c.send(MsgError, roomID, 0, ErrorData{Message: err.Error()})
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) seat() (*wsPlayer, *match) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.player, c.match
}

func (c *client) setSeat(p *wsPlayer, m *match) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.player, c.match = p, m
}

func (c *client) readPump() {
	defer func() {
		c.srv.disconnect(c)
		c.close()
	}()

	cfg := c.srv.cfg.Server
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && c.logger != nil {
				c.logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("", err)
			continue
		}
		c.srv.handleMessage(c, msg)
	}
}

func (c *client) writePump() {
	cfg := c.srv.cfg.Server
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case b := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
