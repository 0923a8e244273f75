package matchmaking

import (
	"math"
	"time"

	"trust-platform/backend/internal/protocol"
)

// DefaultMaxWait is how long an entry stays queued before it expires.
const DefaultMaxWait = 5 * time.Minute

// Entry is one queued player waiting for an opponent.
type Entry struct {
	PlayerID    string
	Player      protocol.Player
	JoinedAt    time.Time
	Preferences protocol.QueuePreferences
}

// maxWait returns the entry's expiry budget, falling back to the default.
func (e *Entry) maxWait() time.Duration {
	if e.Preferences.MaxWaitSeconds > 0 {
		return time.Duration(e.Preferences.MaxWaitSeconds) * time.Second
	}
	return DefaultMaxWait
}

// Queue is a join-time ordered matchmaking queue. Not safe for concurrent
// use; callers run on the dispatcher loop.
type Queue struct {
	entries []*Entry
	byID    map[string]*Entry
}

func NewQueue() *Queue {
	return &Queue{byID: make(map[string]*Entry)}
}

// Add enqueues a player. Re-joining refreshes the existing entry's
// preferences without losing queue position.
func (q *Queue) Add(entry *Entry) {
	if existing, ok := q.byID[entry.PlayerID]; ok {
		existing.Preferences = entry.Preferences
		existing.Player = entry.Player
		return
	}
	q.entries = append(q.entries, entry)
	q.byID[entry.PlayerID] = entry
}

// Remove withdraws a player. Returns false if they were not queued.
func (q *Queue) Remove(playerID string) bool {
	if _, ok := q.byID[playerID]; !ok {
		return false
	}
	delete(q.byID, playerID)
	for i, e := range q.entries {
		if e.PlayerID == playerID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether a player is queued.
func (q *Queue) Contains(playerID string) bool {
	_, ok := q.byID[playerID]
	return ok
}

// Len returns the queue depth.
func (q *Queue) Len() int {
	return len(q.entries)
}

// PopPair removes and returns the two oldest entries, or nil if fewer than
// two players are waiting.
func (q *Queue) PopPair() (*Entry, *Entry) {
	if len(q.entries) < 2 {
		return nil, nil
	}
	a, b := q.entries[0], q.entries[1]
	q.entries = q.entries[2:]
	delete(q.byID, a.PlayerID)
	delete(q.byID, b.PlayerID)
	return a, b
}

// Expired removes and returns every entry older than its max wait.
func (q *Queue) Expired(now time.Time) []*Entry {
	var expired []*Entry
	kept := q.entries[:0]
	for _, e := range q.entries {
		if now.Sub(e.JoinedAt) > e.maxWait() {
			expired = append(expired, e)
			delete(q.byID, e.PlayerID)
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept
	return expired
}

// CompatibilityScore rates a candidate pairing. Higher is better; the score
// never goes below zero. Trust-score distance beyond the combined tolerance
// is penalised, accumulated wait is rewarded, and a large games-played gap
// costs a little.
func CompatibilityScore(a, b *Entry, now time.Time) float64 {
	trustDelta := math.Abs(float64(a.Player.TrustScore - b.Player.TrustScore))
	tolerance := float64(a.Preferences.TrustTolerance+b.Preferences.TrustTolerance) / 2

	avgWait := (now.Sub(a.JoinedAt).Seconds() + now.Sub(b.JoinedAt).Seconds()) / 2
	gamesDelta := math.Abs(float64(a.Player.GamesPlayed - b.Player.GamesPlayed))

	score := 100.0
	score -= math.Max(0, trustDelta-tolerance) * 2
	score += math.Min(avgWait, 50)
	score -= 0.5 * math.Max(0, gamesDelta-10)

	return math.Max(0, score)
}
