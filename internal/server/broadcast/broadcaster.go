package broadcast

import (
	"log"

	"trust-platform/backend/internal/protocol"
	"trust-platform/backend/internal/server/session"
	ws "trust-platform/backend/internal/server/websocket"
)

// Broadcaster delivers outbound messages by recipient id, resolving
// tournament-player-id aliases through the session registry. Delivery to a
// disconnected recipient is dropped, not an error; state transitions never
// depend on delivery succeeding.
type Broadcaster struct {
	registry *session.Registry
}

func New(registry *session.Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// ToClient sends one message to one recipient. Returns false if the recipient
// has no live connection.
func (b *Broadcaster) ToClient(id string, msgType string, payload interface{}) bool {
	client, ok := b.registry.ClientFor(id)
	if !ok {
		return false
	}
	ws.SendMessage(client, protocol.Message{Type: msgType, Payload: payload})
	return true
}

// ToClients fans a message out to a recipient list, skipping anyone offline.
func (b *Broadcaster) ToClients(ids []string, msgType string, payload interface{}) {
	delivered := 0
	for _, id := range ids {
		if b.ToClient(id, msgType, payload) {
			delivered++
		}
	}
	if delivered < len(ids) {
		log.Printf("[BROADCAST] %s delivered to %d/%d recipients", msgType, delivered, len(ids))
	}
}

// Error sends an ERROR frame straight to a connection, bypassing id
// resolution. Used before REGISTER completes.
func (b *Broadcaster) Error(client *ws.Client, code, message string) {
	ws.SendMessage(client, protocol.NewError(code, message))
}

// ErrorTo sends an ERROR frame to a recipient id.
func (b *Broadcaster) ErrorTo(id string, code, message string) {
	b.ToClient(id, protocol.TypeError, protocol.ErrorPayload{Code: code, Message: message})
}
