package match

import (
	"time"

	"trust-platform/backend/internal/protocol"
	"trust-platform/backend/internal/server/dispatch"
)

// Match states.
const (
	StateWaitingForPlayers         = "WAITING_FOR_PLAYERS"
	StateWaitingForDecisions       = "WAITING_FOR_DECISIONS"
	StateShowingResults            = "SHOWING_RESULTS"
	StateAwaitingReversalResponses = "AWAITING_REVERSAL_RESPONSES"
	StateReversalSelection         = "REVERSAL_SELECTION"
	StateCompleted                 = "COMPLETED"
)

// Game modes recorded on history rows.
const (
	ModeRanked     = "ranked"
	ModePrivate    = "private"
	ModeTournament = "tournament"
)

// Timing constants for the match state machine.
const (
	DefaultMaxRounds = 10
	TiebreakerRounds = 3

	RoundTimeout             = 30 * time.Second
	ResultsDisplay           = 3 * time.Second
	ReversalWindow           = 60 * time.Second
	TournamentReversalWindow = 30 * time.Second
	ReconnectGrace           = 30 * time.Second
	TournamentReconnectGrace = 5 * time.Minute
	PostMatchRetention       = 30 * time.Second
	startDelay               = time.Second
)

// ForfeitPointsPerRound is awarded to the opponent for every round a
// forfeiting player leaves unplayed.
const ForfeitPointsPerRound = 3

// Endpoint is one side of a match.
type Endpoint struct {
	ClientID     string
	Player       protocol.Player
	Disconnected bool
}

// Match is the volatile state of one head-to-head game. Mutated only on the
// dispatcher loop.
type Match struct {
	ID           string
	GameMode     string
	P1           *Endpoint
	P2           *Endpoint
	CurrentRound int
	MaxRounds    int
	Rounds       map[int]*RoundDecisions
	ScoreP1      int
	ScoreP2      int
	State        string
	TournamentID string
	IsTiebreaker bool
	ResultsSaved bool
	StartedAt    time.Time

	roundTimer     *dispatch.Timer
	resultsTimer   *dispatch.Timer
	reversalTimer  *dispatch.Timer
	retentionTimer *dispatch.Timer
	graceTimers    map[string]*dispatch.Timer

	reversalResponses map[string]bool
	changesComplete   map[string]bool
}

// endpoint returns the side owned by clientID.
func (m *Match) endpoint(clientID string) (*Endpoint, bool) {
	switch clientID {
	case m.P1.ClientID:
		return m.P1, true
	case m.P2.ClientID:
		return m.P2, true
	}
	return nil, false
}

// opponentOf returns the other side.
func (m *Match) opponentOf(clientID string) *Endpoint {
	if m.P1.ClientID == clientID {
		return m.P2
	}
	return m.P1
}

func (m *Match) isP1(clientID string) bool {
	return m.P1.ClientID == clientID
}

// HasParticipant reports whether the id owns either side of the match.
func (m *Match) HasParticipant(id string) bool {
	_, ok := m.endpoint(id)
	return ok
}

// Active reports whether the match still accepts gameplay events.
func (m *Match) Active() bool {
	return m.State != StateCompleted
}

// currentRoundRecord returns the decisions bucket for the current round,
// creating it if needed.
func (m *Match) currentRoundRecord() *RoundDecisions {
	r, ok := m.Rounds[m.CurrentRound]
	if !ok {
		r = &RoundDecisions{}
		m.Rounds[m.CurrentRound] = r
	}
	return r
}

// stopTimers cancels every pending timer except retention.
func (m *Match) stopTimers() {
	m.roundTimer.Stop()
	m.resultsTimer.Stop()
	m.reversalTimer.Stop()
	for _, t := range m.graceTimers {
		t.Stop()
	}
}

// winnerTag returns "player1", "player2" or "tie" from the current totals.
func (m *Match) winnerTag() string {
	switch {
	case m.ScoreP1 > m.ScoreP2:
		return "player1"
	case m.ScoreP2 > m.ScoreP1:
		return "player2"
	default:
		return "tie"
	}
}

// Result is the terminal outcome handed to the persistence bridge and the
// tournament engine.
type Result struct {
	MatchID        string
	TournamentID   string
	GameMode       string
	Player1ID      string
	Player2ID      string
	Player1Score   int
	Player2Score   int
	Winner         string // "player1", "player2", "tie"
	WinnerClientID string // empty on tie
	RoundsPlayed   int
	Duration       time.Duration
	Forfeit        bool
	IsTiebreaker   bool
	P1Cooperations int
	P1Betrayals    int
	P2Cooperations int
	P2Betrayals    int
}
