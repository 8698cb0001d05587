package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Client is one subscriber connection. It only receives snapshots; frames it
// sends are read and dropped so control frames keep flowing.
type Client struct {
	id     string
	remote string
	hub    *Hub
	conn   *ws.Conn
	send   chan []byte
	feeds  map[string]bool // nil receives every type
}

// NewClient builds a client subscribed to feeds, or to everything when feeds
// is empty.
func NewClient(hub *Hub, conn *ws.Conn, remote string, feeds []string) *Client {
	c := &Client{
		id:     uuid.NewString(),
		remote: remote,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
	if len(feeds) > 0 {
		c.feeds = make(map[string]bool, len(feeds))
		for _, f := range feeds {
			c.feeds[f] = true
		}
	}
	return c
}

func (c *Client) wants(typ string) bool {
	return c.feeds == nil || c.feeds[typ]
}

// Run registers the client and pumps until the connection drops.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)
	c.hub.logger.Debug("client connected", "client_id", c.id, "remote", c.remote)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx, cancel)
	c.readPump(ctx)
	c.hub.logger.Debug("client disconnected", "client_id", c.id)
}

func (c *Client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

// writePump stops the read side via cancel when a write or ping fails.
func (c *Client) writePump(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case msg, ok := <-c.send:
			if !ok {
				c.conn.Close(ws.StatusNormalClosure, "")
				return
			}
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, ws.MessageText, msg)
			wcancel()
			if err != nil {
				c.hub.logger.Warn("websocket write", "client_id", c.id, "error", err)
				c.conn.Close(ws.StatusGoingAway, "write failed")
				return
			}
		}
	}
}
