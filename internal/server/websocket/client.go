package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"trust-platform/backend/internal/protocol"

	"github.com/gorilla/websocket"
)

// Client represents one websocket connection. ClientID and PlayerID are
// assigned by the REGISTER handler; until then the connection is anonymous
// and only REGISTER is accepted.
type Client struct {
	ConnID   string // transport identity, unique per connection
	ClientID string // session identity, set at REGISTER
	PlayerID string // tournament-player-id alias, optional
	Conn     *websocket.Conn
	Send     chan []byte

	closeOnce sync.Once
}

// Close closes the send channel, releasing the write pump. Safe to call more
// than once and from any goroutine.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.Send != nil {
			close(c.Send)
		}
	})
}

// ReadPump decodes inbound frames and hands them to onMessage. It exits on
// any read error (including oversized frames, which gorilla turns into a
// close), invokes onClose exactly once, and closes the send channel so the
// write pump exits with it.
func (c *Client) ReadPump(onMessage func(*Client, protocol.Envelope), onClose func(*Client)) {
	defer func() {
		onClose(c)
		c.Close()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(protocol.MaxFrameSize)

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			SendMessage(c, protocol.NewError(protocol.CodeInvalidRequest, "malformed message frame"))
			continue
		}

		onMessage(c, env)
	}
}

// WritePump drains the send channel onto the wire.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// SendMessage queues an outbound message for a client, dropping it if the
// client's buffer is full or the channel is closed.
func SendMessage(c *Client, msg protocol.Message) {
	if c == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WS] marshal %s failed: %v", msg.Type, err)
		return
	}
	defer func() {
		// Send channel may be closed by a concurrent teardown.
		recover()
	}()
	select {
	case c.Send <- data:
	default:
	}
}
