package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"sqlite-browser/internal/grid"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Client is one connected browser. Everything written to its connection
// goes through its Loop, which also owns the client's grids.
type Client struct {
	ID   string
	conn *websocket.Conn
	loop *grid.Loop

	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn) *Client {
	id := uuid.New().String()
	return &Client{
		ID:   id,
		conn: conn,
		loop: grid.NewLoop(256, slog.With("client_id", id)),
	}
}

// Loop is the client's execution context.
func (c *Client) Loop() *grid.Loop {
	return c.loop
}

// Send writes msg to the connection. It must run on the client's Loop.
func (c *Client) Send(msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Post queues msg for sending from outside the Loop.
func (c *Client) Post(msg Message) error {
	return c.loop.Post(func() {
		if err := c.Send(msg); err != nil {
			slog.Debug("Send to client failed", "client_id", c.ID, "error", err)
		}
	})
}

// Close stops the loop and closes the connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.loop.Stop()
		_ = c.conn.Close()
	})
}
