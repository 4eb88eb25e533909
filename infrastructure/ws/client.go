package ws

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// UserClient is one websocket connection of one authenticated user.
type UserClient struct {
	UserId string

	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(userId string, conn *websocket.Conn) *UserClient {
	return &UserClient{
		UserId: userId,
		conn:   conn,
		send:   make(chan []byte, 256),
	}
}

// Send queues a payload for delivery. It reports false when the buffer
// is full or the client has been unregistered; a subscription callback
// racing a disconnect drops its event instead of hitting a closed
// channel.
func (c *UserClient) Send(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// closeSend shuts the delivery queue exactly once. Only the hub calls
// it, when removing the client from its registry.
func (c *UserClient) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump reads frames from the connection and hands them to handler.
// It blocks until the connection drops. The caller owns teardown: it
// must cancel any subscriptions feeding Send before unregistering the
// client from the hub.
func (c *UserClient) ReadPump(handler func(data []byte)) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("read error from %s: %v", c.UserId, err)
			}
			break
		}
		handler(data)
	}
}

// WritePump drains the send queue into the connection and keeps the
// connection alive with pings.
func (c *UserClient) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
