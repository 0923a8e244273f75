package tournament

import (
	"time"

	"trust-platform/backend/internal/protocol"
)

// Tournament states.
const (
	StatusStarting   = "starting"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Player states within a tournament.
const (
	PlayerActive     = "active"
	PlayerEliminated = "eliminated"
)

// PlayerStats is the running per-player scoreboard. Cooperation and betrayal
// rates are match-count-weighted running averages of the per-match ratios.
type PlayerStats struct {
	Player            protocol.Player `json:"player"`
	MatchesPlayed     int             `json:"matchesPlayed"`
	MatchesWon        int             `json:"matchesWon"`
	MatchesLost       int             `json:"matchesLost"`
	TotalPoints       int             `json:"totalPoints"`
	CooperationRate   float64         `json:"cooperationRate"`
	BetrayalRate      float64         `json:"betrayalRate"`
	AverageMatchScore float64         `json:"averageMatchScore"`
	Rank              int             `json:"rank"`
	Eliminated        bool            `json:"eliminated"`
	Status            string          `json:"status"`
	Losses            int             `json:"losses"` // double elimination bookkeeping
}

// recordMatch folds one finished match into the running aggregates.
func (s *PlayerStats) recordMatch(score, cooperations, betrayals int, won, lost bool) {
	s.MatchesPlayed++
	if won {
		s.MatchesWon++
	}
	if lost {
		s.MatchesLost++
	}
	s.TotalPoints += score
	s.AverageMatchScore = float64(s.TotalPoints) / float64(s.MatchesPlayed)

	if cooperations+betrayals > 0 {
		coopRatio := float64(cooperations) / float64(cooperations+betrayals)
		n := float64(s.MatchesPlayed)
		s.CooperationRate = (s.CooperationRate*(n-1) + coopRatio) / n
		s.BetrayalRate = 1 - s.CooperationRate
	}
}

// Tournament is one running bracket competition spawned from a lobby.
type Tournament struct {
	ID           string                 `json:"id"`
	LobbyID      string                 `json:"lobbyId"`
	Format       string                 `json:"format"`
	Players      []*PlayerStats         `json:"players"`
	CurrentRound int                    `json:"currentRound"` // 1-based
	TotalRounds  int                    `json:"totalRounds"`
	Status       string                 `json:"status"`
	StartedAt    time.Time              `json:"startedAt"`
	EndedAt      *time.Time             `json:"endedAt,omitempty"`
	Settings     protocol.LobbySettings `json:"settings"`
	Bracket      *Bracket               `json:"bracket"`

	playersByID map[string]*PlayerStats
	slotByMatch map[string]*BracketMatch // engine match id -> slot
	matchBySlot map[string]string        // slot id -> engine match id

	// Advancement bookkeeping, reset every round. Winners are recorded in
	// match completion order.
	pendingWinners      []string
	pendingLoserWinners []string
	pendingDropdowns    []string // double elim: winners-bracket losers still alive
	byeWinners          string
	byeLosers           string
	grandFinal          bool
}

// stats returns the scoreboard entry for a tournament player id.
func (t *Tournament) stats(playerID string) *PlayerStats {
	return t.playersByID[playerID]
}

// PlayerIDs returns all tournament player ids in seating order.
func (t *Tournament) PlayerIDs() []string {
	ids := make([]string, len(t.Players))
	for i, p := range t.Players {
		ids[i] = p.Player.ID
	}
	return ids
}

// activeCount counts players not yet eliminated.
func (t *Tournament) activeCount() int {
	n := 0
	for _, p := range t.Players {
		if !p.Eliminated {
			n++
		}
	}
	return n
}

// eliminate flags a player out of the competition.
func (t *Tournament) eliminate(playerID string) {
	p := t.stats(playerID)
	if p == nil || p.Eliminated {
		return
	}
	p.Eliminated = true
	p.Status = PlayerEliminated
	t.Bracket.EliminatedPlayers = append(t.Bracket.EliminatedPlayers, playerID)
}

// currentRounds returns the playable round(s) at the current index: the
// winners round plus, for double elimination, the parallel losers round.
func (t *Tournament) currentRounds() []*Round {
	var rounds []*Round
	for _, r := range t.Bracket.Rounds {
		if r.Number == t.CurrentRound {
			rounds = append(rounds, r)
		}
	}
	for _, r := range t.Bracket.LosersRounds {
		if r.Number == t.CurrentRound {
			rounds = append(rounds, r)
		}
	}
	return rounds
}

// roundComplete reports whether every playable slot at the current index is
// done.
func (t *Tournament) roundComplete() bool {
	for _, r := range t.currentRounds() {
		if !r.Complete() {
			return false
		}
	}
	return true
}
