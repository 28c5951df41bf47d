package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

// Client is one live websocket session. A single writePump goroutine is the
// only writer on the connection, which preserves per-connection event order.
type Client struct {
	id      string
	userID  string
	conn    *websocket.Conn
	send    chan []byte
	session *Session

	ctx    context.Context
	cancel context.CancelFunc
	closed int32
}

func NewClient(session *Session, conn *websocket.Conn, userID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		id:      uuid.New().String(),
		userID:  userID,
		conn:    conn,
		send:    make(chan []byte, 256),
		session: session,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) UserID() string {
	return c.userID
}

func (c *Client) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

func (c *Client) close() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		c.cancel()
	}
}

// SendEvent enqueues an event for the write pump. It fails instead of
// blocking: a full buffer means the client cannot keep up and the connection
// is torn down so the hub can prune it.
func (c *Client) SendEvent(evt *Event) error {
	if c.isClosed() {
		return ErrClientDisconnected
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	case <-c.ctx.Done():
		return ErrClientDisconnected
	default:
		slog.Warn("Send buffer full, closing client", "connID", c.id, "userID", c.userID)
		c.close()
		return ErrClientDisconnected
	}
}

func (c *Client) readPump() {
	defer func() {
		c.close()
		c.session.HandleDisconnect(c)
		if err := c.conn.Close(); err != nil {
			slog.Debug("Error closing connection", "connID", c.id, "error", err)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		if c.isClosed() {
			return websocket.ErrCloseSent
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "connID", c.id, "userID", c.userID, "error", err)
			} else {
				slog.Debug("WebSocket connection closed", "connID", c.id, "userID", c.userID)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(messageBytes, &cmd); err != nil {
			slog.Error("Failed to unmarshal command", "connID", c.id, "userID", c.userID, "error", err)
			c.SendEvent(NewErrorEvent(uuid.New().String(), "INVALID_MESSAGE", "invalid message format"))
			continue
		}
		if cmd.ID == "" {
			cmd.ID = uuid.New().String()
		}

		ack := c.session.HandleCommand(c, &cmd)
		if err := c.SendEvent(ack); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Debug("Error writing message", "connID", c.id, "userID", c.userID, "error", err)
				return
			}

		case <-ticker.C:
			if c.isClosed() {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("Error sending ping", "connID", c.id, "userID", c.userID, "error", err)
				return
			}

		case <-c.ctx.Done():
			// Best-effort close frame; the peer may already be gone.
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
