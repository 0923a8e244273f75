package tournament

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ByePlayerID is the placeholder inserted by the round-robin scheduler for
// odd player counts. Matches against it are never played.
const ByePlayerID = "BYE"

// Bracket slot states.
const (
	SlotScheduled  = "scheduled"
	SlotInProgress = "in_progress"
	SlotCompleted  = "completed"
)

// BracketMatch is a lightweight bracket slot, distinct from the volatile
// engine match that plays it out.
type BracketMatch struct {
	ID            string         `json:"id"`
	Round         int            `json:"round"`
	Player1ID     string         `json:"player1Id"`
	Player2ID     string         `json:"player2Id"`
	Status        string         `json:"status"`
	LosersBracket bool           `json:"losersBracket,omitempty"`
	GrandFinal    bool           `json:"grandFinal,omitempty"`
	Result        *BracketResult `json:"result,omitempty"`
}

// BracketResult records the outcome written back onto a slot.
type BracketResult struct {
	WinnerID     string    `json:"winnerId"` // empty on tie (non-elimination)
	Player1Score int       `json:"player1Score"`
	Player2Score int       `json:"player2Score"`
	CompletedAt  time.Time `json:"completedAt"`
}

// IsBye reports whether the slot involves the round-robin placeholder.
func (bm *BracketMatch) IsBye() bool {
	return bm.Player1ID == ByePlayerID || bm.Player2ID == ByePlayerID
}

// Round is one bracket round of ordered slots.
type Round struct {
	Number  int             `json:"number"`
	Matches []*BracketMatch `json:"matches"`
}

// Complete reports whether every playable slot in the round finished.
func (r *Round) Complete() bool {
	for _, bm := range r.Matches {
		if bm.IsBye() {
			continue
		}
		if bm.Status != SlotCompleted {
			return false
		}
	}
	return true
}

// Bracket holds the full tournament schedule. For double elimination the
// losers rounds run in parallel with the winners rounds.
type Bracket struct {
	Rounds            []*Round `json:"rounds"`
	LosersRounds      []*Round `json:"losersRounds,omitempty"`
	EliminatedPlayers []string `json:"eliminatedPlayers"`
	ByePlayerID       string   `json:"byePlayerId,omitempty"`
}

func newSlotID(tournamentID string, round, index int, losers bool) string {
	side := "w"
	if losers {
		side = "l"
	}
	return fmt.Sprintf("%s-r%d%s-m%d", tournamentID, round, side, index)
}

// shufflePlayers returns a uniformly shuffled copy of ids.
func shufflePlayers(ids []string) []string {
	shuffled := make([]string, len(ids))
	copy(shuffled, ids)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}

// pairRound pairs ids sequentially into slots for one round. If the count is
// odd the last player is returned as the round's bye.
func pairRound(tournamentID string, roundNumber int, ids []string, losers bool) (*Round, string) {
	bye := ""
	if len(ids)%2 == 1 {
		bye = ids[len(ids)-1]
		ids = ids[:len(ids)-1]
	}

	round := &Round{Number: roundNumber}
	for i := 0; i+1 < len(ids); i += 2 {
		round.Matches = append(round.Matches, &BracketMatch{
			ID:            newSlotID(tournamentID, roundNumber, i/2, losers),
			Round:         roundNumber,
			Player1ID:     ids[i],
			Player2ID:     ids[i+1],
			Status:        SlotScheduled,
			LosersBracket: losers,
		})
	}
	return round, bye
}

// generateEliminationBracket shuffles the field and pairs the opening round.
func generateEliminationBracket(tournamentID string, playerIDs []string) *Bracket {
	shuffled := shufflePlayers(playerIDs)
	round, bye := pairRound(tournamentID, 1, shuffled, false)
	return &Bracket{
		Rounds:      []*Round{round},
		ByePlayerID: bye,
	}
}

// generateRoundRobinBracket pre-generates the full all-play-all schedule via
// the circle method. Odd fields get a BYE placeholder; slots against it are
// skipped at play time.
func generateRoundRobinBracket(tournamentID string, playerIDs []string) *Bracket {
	ids := make([]string, len(playerIDs))
	copy(ids, playerIDs)
	if len(ids)%2 == 1 {
		ids = append(ids, ByePlayerID)
	}

	n := len(ids)
	bracket := &Bracket{}
	for r := 0; r < n-1; r++ {
		round := &Round{Number: r + 1}
		for i := 0; i < n/2; i++ {
			p1, p2 := ids[i], ids[n-1-i]
			round.Matches = append(round.Matches, &BracketMatch{
				ID:        newSlotID(tournamentID, r+1, i, false),
				Round:     r + 1,
				Player1ID: p1,
				Player2ID: p2,
				Status:    SlotScheduled,
			})
		}
		bracket.Rounds = append(bracket.Rounds, round)

		// Rotate everyone but the first seat.
		rotated := make([]string, n)
		rotated[0] = ids[0]
		rotated[1] = ids[n-1]
		copy(rotated[2:], ids[1:n-1])
		ids = rotated
	}
	return bracket
}

// totalRoundsFor computes the advertised round count per format.
func totalRoundsFor(format string, playerCount int) int {
	switch format {
	case "single_elimination":
		return int(math.Ceil(math.Log2(float64(playerCount))))
	case "double_elimination":
		w := int(math.Ceil(math.Log2(float64(playerCount))))
		return w + (w - 1) + 1
	case "round_robin":
		if playerCount%2 == 1 {
			return playerCount
		}
		return playerCount - 1
	}
	return 0
}

// roundRobinMatchCount is the playable match total for N players.
func roundRobinMatchCount(playerCount int) int {
	return playerCount * (playerCount - 1) / 2
}
