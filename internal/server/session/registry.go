package session

import (
	"log"
	"time"

	"trust-platform/backend/internal/presence"
	"trust-platform/backend/internal/protocol"
	ws "trust-platform/backend/internal/server/websocket"

	"github.com/google/uuid"
)

// Connection status values for a session record.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// DisconnectedSessionTTL is how long a disconnected session survives before
// garbage collection. Matches the longest reconnection grace (tournament).
const DisconnectedSessionTTL = 5 * time.Minute

// Session is the per-connection soft state kept between REGISTER and
// teardown. It survives a connection swap so reconnecting clients keep their
// identity.
type Session struct {
	ClientID      string
	UserID        string
	Token         string
	Authenticated bool
	Status        string
	LastSeen      time.Time
	Preferences   protocol.QueuePreferences
}

// Registry tracks live connections by client id plus the bidirectional
// mapping between client ids and tournament-player-id aliases. All mutation
// happens on the dispatcher loop.
type Registry struct {
	clients       map[string]*ws.Client // clientID -> live connection
	sessions      map[string]*Session   // clientID -> session record
	aliasByClient map[string]string     // clientID -> tournament player id
	clientByAlias map[string]string     // tournament player id -> clientID
	presence      *presence.Tracker
}

func NewRegistry(tracker *presence.Tracker) *Registry {
	return &Registry{
		clients:       make(map[string]*ws.Client),
		sessions:      make(map[string]*Session),
		aliasByClient: make(map[string]string),
		clientByAlias: make(map[string]string),
		presence:      tracker,
	}
}

// Register binds a connection to a client id, replacing any previous
// connection for the same id. The session record is preserved across the
// swap with its status flipped back to connected.
func (r *Registry) Register(client *ws.Client, token, userID string, authenticated bool, playerID string) string {
	clientID := token
	if clientID == "" {
		clientID = uuid.New().String()
	}

	if prior, exists := r.clients[clientID]; exists && prior != client {
		log.Printf("[SESSION] Replacing connection for client %s", clientID)
		prior.Close()
		if prior.Conn != nil {
			prior.Conn.Close()
		}
	}

	client.ClientID = clientID
	r.clients[clientID] = client

	sess, exists := r.sessions[clientID]
	if !exists {
		sess = &Session{ClientID: clientID}
		r.sessions[clientID] = sess
	}
	sess.Status = StatusConnected
	sess.LastSeen = time.Now()
	sess.Token = token
	sess.UserID = userID
	sess.Authenticated = authenticated

	if playerID != "" && playerID != clientID {
		client.PlayerID = playerID
		r.SetAlias(clientID, playerID)
	}

	r.presence.Touch(clientID)
	return clientID
}

// SetAlias records a client's tournament-player-id alias, displacing any
// stale mapping either id held.
func (r *Registry) SetAlias(clientID, playerID string) {
	if old, ok := r.aliasByClient[clientID]; ok {
		delete(r.clientByAlias, old)
	}
	if old, ok := r.clientByAlias[playerID]; ok {
		delete(r.aliasByClient, old)
	}
	r.aliasByClient[clientID] = playerID
	r.clientByAlias[playerID] = clientID
}

// ResolveClientID maps an id that may be either a client id or a
// tournament-player-id alias to the canonical client id.
func (r *Registry) ResolveClientID(id string) string {
	if _, ok := r.clients[id]; ok {
		return id
	}
	if clientID, ok := r.clientByAlias[id]; ok {
		return clientID
	}
	return id
}

// AliasOf returns the tournament-player-id alias for a client, if any.
func (r *Registry) AliasOf(clientID string) (string, bool) {
	alias, ok := r.aliasByClient[clientID]
	return alias, ok
}

// ClientFor returns the live connection for an id (client id or alias).
func (r *Registry) ClientFor(id string) (*ws.Client, bool) {
	client, ok := r.clients[r.ResolveClientID(id)]
	return client, ok
}

// SessionFor returns the session record for an id (client id or alias).
func (r *Registry) SessionFor(id string) (*Session, bool) {
	sess, ok := r.sessions[r.ResolveClientID(id)]
	return sess, ok
}

// IsRegistered reports whether the connection has completed REGISTER.
func (r *Registry) IsRegistered(client *ws.Client) bool {
	if client.ClientID == "" {
		return false
	}
	current, ok := r.clients[client.ClientID]
	return ok && current == client
}

// Touch updates the session activity timestamp.
func (r *Registry) Touch(client *ws.Client) {
	if sess, ok := r.sessions[client.ClientID]; ok {
		sess.LastSeen = time.Now()
	}
}

// Disconnect marks a client's session disconnected. The session and alias
// mapping are retained for the reconnection window; only the connection map
// entry is dropped, and only if this connection is still the current one.
func (r *Registry) Disconnect(client *ws.Client) bool {
	if client.ClientID == "" {
		return false
	}
	current, ok := r.clients[client.ClientID]
	if !ok || current != client {
		return false
	}

	delete(r.clients, client.ClientID)
	if sess, ok := r.sessions[client.ClientID]; ok {
		sess.Status = StatusDisconnected
		sess.LastSeen = time.Now()
	}
	r.presence.MarkDisconnected(client.ClientID)
	return true
}

// CollectStale removes disconnected sessions older than the reconnection
// window and returns the reclaimed client ids.
func (r *Registry) CollectStale(now time.Time) []string {
	var reclaimed []string
	for clientID, sess := range r.sessions {
		if sess.Status != StatusDisconnected {
			continue
		}
		if now.Sub(sess.LastSeen) < DisconnectedSessionTTL {
			continue
		}
		delete(r.sessions, clientID)
		if alias, ok := r.aliasByClient[clientID]; ok {
			delete(r.clientByAlias, alias)
			delete(r.aliasByClient, clientID)
		}
		r.presence.Forget(clientID)
		reclaimed = append(reclaimed, clientID)
	}
	if len(reclaimed) > 0 {
		log.Printf("[SESSION] Collected %d stale sessions", len(reclaimed))
	}
	return reclaimed
}

// ConnectedCount returns the number of live connections.
func (r *Registry) ConnectedCount() int {
	return len(r.clients)
}
