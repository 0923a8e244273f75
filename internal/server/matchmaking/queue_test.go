package matchmaking

import (
	"testing"
	"time"

	"trust-platform/backend/internal/protocol"
	"trust-platform/backend/internal/server/dispatch"
)

func entry(id string, trust, games int, joined time.Time) *Entry {
	return &Entry{
		PlayerID: id,
		Player:   protocol.Player{ID: id, TrustScore: trust, GamesPlayed: games},
		JoinedAt: joined,
	}
}

func TestQueueFIFOPairing(t *testing.T) {
	q := NewQueue()
	now := time.Now()
	q.Add(entry("a", 50, 0, now))
	q.Add(entry("b", 50, 0, now))
	q.Add(entry("c", 50, 0, now))

	a, b := q.PopPair()
	if a.PlayerID != "a" || b.PlayerID != "b" {
		t.Errorf("popped %s/%s, want the two oldest a/b", a.PlayerID, b.PlayerID)
	}
	if q.Len() != 1 || !q.Contains("c") {
		t.Errorf("queue after pop = %d entries, want c alone", q.Len())
	}

	if a, b := q.PopPair(); a != nil || b != nil {
		t.Error("PopPair paired a single waiting player")
	}
}

func TestQueueRejoinKeepsPosition(t *testing.T) {
	q := NewQueue()
	now := time.Now()
	q.Add(entry("a", 50, 0, now))
	q.Add(entry("b", 50, 0, now))

	again := entry("a", 80, 5, now.Add(time.Minute))
	again.Preferences.MaxWaitSeconds = 30
	q.Add(again)

	if q.Len() != 2 {
		t.Fatalf("rejoin grew the queue to %d", q.Len())
	}
	a, _ := q.PopPair()
	if a.PlayerID != "a" {
		t.Errorf("rejoin lost queue position")
	}
	if a.Player.TrustScore != 80 || a.Preferences.MaxWaitSeconds != 30 {
		t.Errorf("rejoin did not refresh player and preferences")
	}
}

func TestQueueExpiry(t *testing.T) {
	q := NewQueue()
	now := time.Now()

	patient := entry("patient", 50, 0, now.Add(-time.Minute))
	hasty := entry("hasty", 50, 0, now.Add(-time.Minute))
	hasty.Preferences.MaxWaitSeconds = 30
	q.Add(patient)
	q.Add(hasty)

	expired := q.Expired(now)
	if len(expired) != 1 || expired[0].PlayerID != "hasty" {
		t.Fatalf("expired = %v, want only hasty past its 30s budget", expired)
	}
	if !q.Contains("patient") || q.Contains("hasty") {
		t.Error("queue membership wrong after expiry")
	}

	// The default budget is five minutes.
	if got := q.Expired(now.Add(6 * time.Minute)); len(got) != 1 || got[0].PlayerID != "patient" {
		t.Errorf("default-budget expiry = %v, want patient", got)
	}
}

func TestCompatibilityScore(t *testing.T) {
	now := time.Now()

	t.Run("identical players just joined", func(t *testing.T) {
		a := entry("a", 50, 10, now)
		b := entry("b", 50, 10, now)
		if got := CompatibilityScore(a, b, now); got != 100 {
			t.Errorf("score = %f, want the 100 baseline", got)
		}
	})

	t.Run("trust gap beyond tolerance penalised", func(t *testing.T) {
		a := entry("a", 20, 10, now)
		b := entry("b", 80, 10, now)
		a.Preferences.TrustTolerance = 10
		b.Preferences.TrustTolerance = 10
		// Gap 60, tolerance 10, penalty (60-10)*2 = 100.
		if got := CompatibilityScore(a, b, now); got != 0 {
			t.Errorf("score = %f, want clamped to 0", got)
		}
	})

	t.Run("wait time rewarded up to 50", func(t *testing.T) {
		a := entry("a", 50, 10, now.Add(-2*time.Minute))
		b := entry("b", 50, 10, now.Add(-2*time.Minute))
		if got := CompatibilityScore(a, b, now); got != 150 {
			t.Errorf("score = %f, want 100 + the 50 wait cap", got)
		}
	})

	t.Run("experience gap costs half a point each", func(t *testing.T) {
		a := entry("a", 50, 0, now)
		b := entry("b", 50, 30, now)
		// Gap 30, free allowance 10, penalty 0.5*20 = 10.
		if got := CompatibilityScore(a, b, now); got != 90 {
			t.Errorf("score = %f, want 90", got)
		}
	})
}

func TestServicePairsOnJoin(t *testing.T) {
	s := NewService(dispatch.NewLoop())

	var pairs [][2]string
	s.SetOnPairCallback(func(a, b *Entry) {
		pairs = append(pairs, [2]string{a.PlayerID, b.PlayerID})
	})

	s.Join("a", protocol.Player{ID: "a"}, protocol.QueuePreferences{})
	if len(pairs) != 0 {
		t.Fatal("paired with only one player queued")
	}
	if !s.InQueue("a") || s.QueueDepth() != 1 {
		t.Fatal("join did not enqueue")
	}

	s.Join("b", protocol.Player{ID: "b"}, protocol.QueuePreferences{})
	if len(pairs) != 1 || pairs[0] != [2]string{"a", "b"} {
		t.Fatalf("pairs = %v, want a single a/b pairing", pairs)
	}
	if s.QueueDepth() != 0 {
		t.Errorf("queue depth = %d after pairing, want 0", s.QueueDepth())
	}
}

func TestServiceLeave(t *testing.T) {
	s := NewService(dispatch.NewLoop())
	s.Join("a", protocol.Player{ID: "a"}, protocol.QueuePreferences{})

	if !s.Leave("a") {
		t.Error("leave failed for a queued player")
	}
	if s.Leave("a") {
		t.Error("leave succeeded twice")
	}
}
