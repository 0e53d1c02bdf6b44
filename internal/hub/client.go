package hub

import (
	"log"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/botdeck/botdeck/internal/protocol"
)

// Client is one connected websocket peer.
type Client struct {
	ID   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
}

// SendEvent queues a named event for this client only. Drops if the client's
// buffer is full.
func (c *Client) SendEvent(id string, value any) {
	data, err := protocol.EncodeEvent(id, value)
	if err != nil {
		log.Printf("hub: cannot encode %q event for client %s: %v", id, c.ID, err)
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// WritePump moves queued messages onto the websocket until the send channel
// closes or a write fails.
func (c *Client) WritePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
}

// ReadPump decodes inbound command envelopes and hands them to the
// dispatcher. Malformed envelopes are logged and dropped; they never end the
// connection.
func (c *Client) ReadPump(d *Dispatcher) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		env, err := protocol.DecodeEnvelope(message)
		if err != nil {
			log.Printf("hub: discarding malformed envelope from %s: %v", c.ID, err)
			continue
		}
		d.Dispatch(c, env)
	}
}
