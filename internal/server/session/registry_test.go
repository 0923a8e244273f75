package session

import (
	"testing"
	"time"

	ws "trust-platform/backend/internal/server/websocket"
)

func newConn(connID string) *ws.Client {
	return &ws.Client{ConnID: connID, Send: make(chan []byte, 8)}
}

func TestRegisterWithToken(t *testing.T) {
	r := NewRegistry(nil)
	c := newConn("conn1")

	clientID := r.Register(c, "tok-123", "user-1", true, "")
	if clientID != "tok-123" {
		t.Errorf("clientID = %q, want the session token", clientID)
	}
	if c.ClientID != clientID {
		t.Errorf("client not stamped with its id")
	}

	sess, ok := r.SessionFor(clientID)
	if !ok {
		t.Fatal("no session recorded")
	}
	if sess.UserID != "user-1" || !sess.Authenticated || sess.Status != StatusConnected {
		t.Errorf("session = %+v, want connected authenticated user-1", sess)
	}
	if r.ConnectedCount() != 1 {
		t.Errorf("connected = %d, want 1", r.ConnectedCount())
	}
}

func TestRegisterWithoutTokenMintsID(t *testing.T) {
	r := NewRegistry(nil)
	a := r.Register(newConn("c1"), "", "", false, "")
	b := r.Register(newConn("c2"), "", "", false, "")
	if a == "" || b == "" || a == b {
		t.Errorf("minted ids %q/%q, want two distinct ids", a, b)
	}
}

func TestReconnectReplacesConnection(t *testing.T) {
	r := NewRegistry(nil)
	first := newConn("c1")
	r.Register(first, "tok", "user-1", true, "")

	second := newConn("c2")
	r.Register(second, "tok", "user-1", true, "")

	got, ok := r.ClientFor("tok")
	if !ok || got != second {
		t.Fatal("registry still serves the old connection")
	}
	select {
	case _, open := <-first.Send:
		if open {
			t.Error("displaced connection's send channel still open")
		}
	default:
		t.Error("displaced connection's send channel never closed")
	}
	if r.ConnectedCount() != 1 {
		t.Errorf("connected = %d, want 1", r.ConnectedCount())
	}

	// The stale connection's close must not evict the replacement.
	if r.Disconnect(first) {
		t.Error("stale connection close reported as a disconnect")
	}
	if _, ok := r.ClientFor("tok"); !ok {
		t.Error("replacement connection evicted by the stale close")
	}
	if !r.IsRegistered(second) || r.IsRegistered(first) {
		t.Error("IsRegistered does not track the current connection")
	}
}

func TestAliasResolution(t *testing.T) {
	r := NewRegistry(nil)
	c := newConn("c1")
	r.Register(c, "tok", "user-1", true, "tp-9")

	if got := r.ResolveClientID("tp-9"); got != "tok" {
		t.Errorf("ResolveClientID(alias) = %q, want tok", got)
	}
	if got := r.ResolveClientID("tok"); got != "tok" {
		t.Errorf("ResolveClientID(clientID) = %q, want tok", got)
	}
	if alias, ok := r.AliasOf("tok"); !ok || alias != "tp-9" {
		t.Errorf("AliasOf = %q/%v, want tp-9", alias, ok)
	}
	if got, ok := r.ClientFor("tp-9"); !ok || got != c {
		t.Error("ClientFor does not resolve the alias")
	}
	if c.PlayerID != "tp-9" {
		t.Error("client not stamped with its alias")
	}
}

func TestSetAliasDisplacesStaleMappings(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(newConn("c1"), "tok-a", "", false, "")
	r.Register(newConn("c2"), "tok-b", "", false, "")

	r.SetAlias("tok-a", "tp-1")
	r.SetAlias("tok-b", "tp-1")

	if got := r.ResolveClientID("tp-1"); got != "tok-b" {
		t.Errorf("alias resolves to %q, want the newer tok-b", got)
	}
	if _, ok := r.AliasOf("tok-a"); ok {
		t.Error("displaced client kept its alias")
	}
}

func TestDisconnectKeepsSessionForGrace(t *testing.T) {
	r := NewRegistry(nil)
	c := newConn("c1")
	r.Register(c, "tok", "user-1", true, "tp-9")

	if !r.Disconnect(c) {
		t.Fatal("disconnect failed")
	}
	if r.ConnectedCount() != 0 {
		t.Errorf("connected = %d after disconnect, want 0", r.ConnectedCount())
	}

	sess, ok := r.SessionFor("tok")
	if !ok || sess.Status != StatusDisconnected {
		t.Fatalf("session = %+v, want retained as disconnected", sess)
	}
	if got := r.ResolveClientID("tp-9"); got != "tok" {
		t.Error("alias mapping dropped during the grace window")
	}
}

func TestCollectStale(t *testing.T) {
	r := NewRegistry(nil)
	gone := newConn("c1")
	r.Register(gone, "tok-gone", "", false, "tp-1")
	r.Disconnect(gone)

	fresh := newConn("c2")
	r.Register(fresh, "tok-fresh", "", false, "")
	r.Disconnect(fresh)

	live := newConn("c3")
	r.Register(live, "tok-live", "", false, "")

	// Backdate only the first disconnect past the TTL.
	sess, _ := r.SessionFor("tok-gone")
	sess.LastSeen = time.Now().Add(-DisconnectedSessionTTL - time.Minute)

	reclaimed := r.CollectStale(time.Now())
	if len(reclaimed) != 1 || reclaimed[0] != "tok-gone" {
		t.Fatalf("reclaimed = %v, want only tok-gone", reclaimed)
	}
	if _, ok := r.SessionFor("tok-gone"); ok {
		t.Error("stale session survived collection")
	}
	if got := r.ResolveClientID("tp-1"); got != "tp-1" {
		t.Error("stale alias survived collection")
	}
	if _, ok := r.SessionFor("tok-fresh"); !ok {
		t.Error("in-window session collected")
	}
	if _, ok := r.ClientFor("tok-live"); !ok {
		t.Error("connected client collected")
	}
}
