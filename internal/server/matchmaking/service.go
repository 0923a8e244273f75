package matchmaking

import (
	"log"
	"time"

	"trust-platform/backend/internal/protocol"
	"trust-platform/backend/internal/server/dispatch"
)

// pairInterval is how often the periodic pairing pass runs.
const pairInterval = 5 * time.Second

// Service owns the matchmaking queue and drives pairing. All methods run on
// the dispatcher loop; the periodic tick reschedules itself through it.
type Service struct {
	loop  *dispatch.Loop
	queue *Queue

	onPair    func(a, b *Entry)
	onTimeout func(e *Entry)

	tick    *dispatch.Timer
	stopped bool
}

func NewService(loop *dispatch.Loop) *Service {
	return &Service{
		loop:  loop,
		queue: NewQueue(),
	}
}

// SetOnPairCallback registers the pairing handler, invoked with both removed
// entries when a match should be created.
func (s *Service) SetOnPairCallback(fn func(a, b *Entry)) {
	s.onPair = fn
}

// SetOnTimeoutCallback registers the expiry handler.
func (s *Service) SetOnTimeoutCallback(fn func(e *Entry)) {
	s.onTimeout = fn
}

// Start kicks off the periodic pairing pass.
func (s *Service) Start() {
	s.scheduleTick()
}

// Stop cancels the periodic pass.
func (s *Service) Stop() {
	s.stopped = true
	s.tick.Stop()
}

func (s *Service) scheduleTick() {
	s.tick = s.loop.After(pairInterval, func() {
		if s.stopped {
			return
		}
		s.expire(time.Now())
		s.pair()
		s.scheduleTick()
	})
}

// Join enqueues a player and immediately attempts a pairing pass.
func (s *Service) Join(playerID string, player protocol.Player, prefs protocol.QueuePreferences) {
	s.queue.Add(&Entry{
		PlayerID:    playerID,
		Player:      player,
		JoinedAt:    time.Now(),
		Preferences: prefs,
	})
	log.Printf("[MATCH] Player %s joined queue (depth %d)", playerID, s.queue.Len())
	s.pair()
}

// Leave withdraws a player. Returns false if they were not queued.
func (s *Service) Leave(playerID string) bool {
	if !s.queue.Remove(playerID) {
		return false
	}
	log.Printf("[MATCH] Player %s left queue (depth %d)", playerID, s.queue.Len())
	return true
}

// InQueue reports whether a player is currently queued.
func (s *Service) InQueue(playerID string) bool {
	return s.queue.Contains(playerID)
}

// QueueDepth returns the number of waiting players.
func (s *Service) QueueDepth() int {
	return s.queue.Len()
}

// pair matches the two oldest waiting players until fewer than two remain.
func (s *Service) pair() {
	for {
		a, b := s.queue.PopPair()
		if a == nil {
			return
		}
		score := CompatibilityScore(a, b, time.Now())
		log.Printf("[MATCH] Paired %s vs %s (compatibility %.1f)", a.PlayerID, b.PlayerID, score)
		if s.onPair != nil {
			s.onPair(a, b)
		}
	}
}

// expire removes overdue entries and notifies their owners.
func (s *Service) expire(now time.Time) {
	for _, e := range s.queue.Expired(now) {
		log.Printf("[MATCH] Queue entry for %s expired after %s", e.PlayerID, now.Sub(e.JoinedAt).Round(time.Second))
		if s.onTimeout != nil {
			s.onTimeout(e)
		}
	}
}
