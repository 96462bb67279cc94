package realtime

import (
	"time"

	"github.com/gorilla/websocket"

	"jiranbackend/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one live transport session for a user. A user may hold several
// clients at once (multi-device).
type Client struct {
	SessionID   string
	UserID      string
	Conn        *websocket.Conn
	Send        chan []byte
	ConnectedAt time.Time
}

func NewClient(sessionID, userID string, conn *websocket.Conn) *Client {
	return &Client{
		SessionID:   sessionID,
		UserID:      userID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		ConnectedAt: time.Now(),
	}
}

// ReadPump reads frames off the socket and hands them to handle. It owns the
// read side of the connection and unregisters the session on any read error.
func (c *Client) ReadPump(registry *Registry, handle func(*Client, []byte)) {
	defer func() {
		registry.UnregisterClient(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("session %s read error: %v", c.SessionID, err)
			}
			break
		}
		handle(c, message)
	}
}

// WritePump drains the Send channel onto the socket, pinging on an interval.
// Closing Send terminates the pump and the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("session %s write error: %v", c.SessionID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
