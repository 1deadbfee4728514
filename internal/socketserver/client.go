package socketserver

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/logger"
)

const (
	// writeWait is the deadline for one outbound frame
	writeWait = 10 * time.Second
	// pongWait is how long a connection may stay silent
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait
	pingPeriod = (pongWait * 9) / 10
	// maxInboundBytes bounds inbound frames; the browser only sends pings
	maxInboundBytes = 4096
	// sendBufferSize is the per-client outbound queue
	sendBufferSize = 64
)

// Client is one WebSocket connection registered with the hub.
type Client struct {
	ID   string
	hub  *Hub
	conn *websocket.Conn
	send chan *Frame
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan *Frame, sendBufferSize),
	}
}

// readPump drains the connection so control frames are processed. Inbound
// data frames are ignored; the chat path is HTTP.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WebSocket read error on %s: %v", c.ID, err)
			}
			return
		}
	}
}

// writePump pushes queued frames to the connection and keeps it alive with
// pings. It exits when the hub closes the send channel.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				logger.Debug("WebSocket write error on %s: %v", c.ID, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
