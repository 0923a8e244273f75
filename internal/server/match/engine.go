package match

import (
	"log"
	"math/rand"
	"time"

	"trust-platform/backend/internal/protocol"
	"trust-platform/backend/internal/server/broadcast"
	"trust-platform/backend/internal/server/dispatch"

	"github.com/google/uuid"
)

// Engine owns every active match and drives the round state machine. All
// entry points run on the dispatcher loop; timers fire back into it and
// re-check state before acting.
type Engine struct {
	loop    *dispatch.Loop
	bc      *broadcast.Broadcaster
	matches map[string]*Match

	onResult           func(result Result)
	onTournamentResult func(m *Match, result Result)
	tieCheck           func(m *Match) bool
	tournamentActive   func(tournamentID string) bool
}

func NewEngine(loop *dispatch.Loop, bc *broadcast.Broadcaster) *Engine {
	return &Engine{
		loop:    loop,
		bc:      bc,
		matches: make(map[string]*Match),
	}
}

// SetOnResultCallback registers the persistence hook, invoked once per
// terminal match.
func (e *Engine) SetOnResultCallback(fn func(result Result)) {
	e.onResult = fn
}

// SetOnTournamentResultCallback registers the tournament progression hook.
func (e *Engine) SetOnTournamentResultCallback(fn func(m *Match, result Result)) {
	e.onTournamentResult = fn
}

// SetTieCheckCallback registers the hook consulted when a tournament match
// ends tied; returning true starts a best-of-3 tiebreaker instead of
// completing the match.
func (e *Engine) SetTieCheckCallback(fn func(m *Match) bool) {
	e.tieCheck = fn
}

// SetTournamentActiveCallback registers the hook that reports whether a
// tournament is still running. Rejoins skip matches whose tournament has
// already completed.
func (e *Engine) SetTournamentActiveCallback(fn func(tournamentID string) bool) {
	e.tournamentActive = fn
}

// Get returns an active match by id.
func (e *Engine) Get(matchID string) (*Match, bool) {
	m, ok := e.matches[matchID]
	return m, ok
}

// ActiveCount returns the number of live matches.
func (e *Engine) ActiveCount() int {
	return len(e.matches)
}

// CreateMatch starts a head-to-head match from the queue or a private room.
// Both sides receive MATCH_FOUND immediately and NEW_ROUND after a short
// delay.
func (e *Engine) CreateMatch(gameMode, p1ID string, p1 protocol.Player, p2ID string, p2 protocol.Player) *Match {
	m := e.newMatch(gameMode, p1ID, p1, p2ID, p2, DefaultMaxRounds, "")

	e.bc.ToClient(p1ID, protocol.TypeMatchFound, protocol.MatchFoundPayload{
		MatchID: m.ID, Opponent: p2, IsPlayer1: true,
	})
	e.bc.ToClient(p2ID, protocol.TypeMatchFound, protocol.MatchFoundPayload{
		MatchID: m.ID, Opponent: p1, IsPlayer1: false,
	})

	e.loop.After(startDelay, func() {
		e.startRound(m.ID, 0)
	})
	return m
}

// CreateTournamentMatch registers a match driven by the tournament engine.
// The caller announces it (TOURNAMENT_MATCH_READY) and then calls Start.
func (e *Engine) CreateTournamentMatch(tournamentID, p1ID string, p1 protocol.Player, p2ID string, p2 protocol.Player, maxRounds int) *Match {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return e.newMatch(ModeTournament, p1ID, p1, p2ID, p2, maxRounds, tournamentID)
}

// Start schedules round 0 for a match created in WAITING_FOR_PLAYERS.
func (e *Engine) Start(matchID string, delay time.Duration) {
	e.loop.After(delay, func() {
		e.startRound(matchID, 0)
	})
}

func (e *Engine) newMatch(gameMode, p1ID string, p1 protocol.Player, p2ID string, p2 protocol.Player, maxRounds int, tournamentID string) *Match {
	m := &Match{
		ID:                uuid.New().String(),
		GameMode:          gameMode,
		P1:                &Endpoint{ClientID: p1ID, Player: p1},
		P2:                &Endpoint{ClientID: p2ID, Player: p2},
		MaxRounds:         maxRounds,
		Rounds:            make(map[int]*RoundDecisions),
		State:             StateWaitingForPlayers,
		TournamentID:      tournamentID,
		StartedAt:         time.Now(),
		graceTimers:       make(map[string]*dispatch.Timer),
		reversalResponses: make(map[string]bool),
		changesComplete:   make(map[string]bool),
	}
	e.matches[m.ID] = m
	log.Printf("[GAME] Match %s created (%s): %s vs %s, %d rounds", m.ID, gameMode, p1ID, p2ID, maxRounds)
	return m
}

// startRound opens a decision window. Stale timer firings bail on the state
// check.
func (e *Engine) startRound(matchID string, round int) {
	m, ok := e.matches[matchID]
	if !ok || m.State == StateCompleted {
		return
	}
	if m.State != StateWaitingForPlayers && m.State != StateShowingResults && m.State != StateWaitingForDecisions {
		return
	}

	m.CurrentRound = round
	m.State = StateWaitingForDecisions
	m.currentRoundRecord()

	payload := protocol.NewRoundPayload{Round: round, TimerDuration: int(RoundTimeout.Seconds())}
	e.bc.ToClient(m.P1.ClientID, protocol.TypeNewRound, payload)
	e.bc.ToClient(m.P2.ClientID, protocol.TypeNewRound, payload)

	m.roundTimer.Stop()
	m.roundTimer = e.loop.After(RoundTimeout, func() {
		e.roundTimeout(matchID, round)
	})
}

// HandleDecision records one side's decision for the current round.
func (e *Engine) HandleDecision(actorID, matchID string, round int, decision string) {
	m, ok := e.matches[matchID]
	if !ok {
		e.bc.ErrorTo(actorID, protocol.CodeMatchNotFound, "match not found")
		return
	}
	side, ok := m.endpoint(actorID)
	if !ok {
		e.bc.ErrorTo(actorID, protocol.CodeMatchNotFound, "not a participant in this match")
		return
	}
	if !protocol.ValidDecision(decision) {
		e.bc.ErrorTo(actorID, protocol.CodeInvalidRequest, "decision must be COOPERATE or BETRAY")
		return
	}
	if m.State != StateWaitingForDecisions || round != m.CurrentRound {
		// Late decisions after a timeout-triggered scoring are dropped.
		e.bc.ErrorTo(actorID, protocol.CodeWrongPhase, "not accepting decisions for this round")
		return
	}

	r := m.currentRoundRecord()
	if m.isP1(side.ClientID) {
		if r.P1Decision != "" {
			e.bc.ErrorTo(actorID, protocol.CodeAlreadyDecided, "decision already recorded")
			return
		}
		r.P1Decision = decision
	} else {
		if r.P2Decision != "" {
			e.bc.ErrorTo(actorID, protocol.CodeAlreadyDecided, "decision already recorded")
			return
		}
		r.P2Decision = decision
	}

	if r.Complete() {
		e.scoreCurrentRound(m)
	}
}

// roundTimeout defaults missing decisions to COOPERATE and scores the round.
func (e *Engine) roundTimeout(matchID string, round int) {
	m, ok := e.matches[matchID]
	if !ok || m.State != StateWaitingForDecisions || m.CurrentRound != round {
		return
	}

	r := m.currentRoundRecord()
	if r.P1Decision == "" {
		r.P1Decision = protocol.DecisionCooperate
	}
	if r.P2Decision == "" {
		r.P2Decision = protocol.DecisionCooperate
	}
	log.Printf("[GAME] Match %s round %d timed out, defaulting to cooperate", m.ID, round)
	e.scoreCurrentRound(m)
}

// scoreCurrentRound applies the payoff matrix, reports the result to both
// sides, and schedules the next phase.
func (e *Engine) scoreCurrentRound(m *Match) {
	m.roundTimer.Stop()

	r := m.Rounds[m.CurrentRound]
	r.P1Score, r.P2Score = ScoreRound(r.P1Decision, r.P2Decision)
	m.ScoreP1 += r.P1Score
	m.ScoreP2 += r.P2Score

	e.bc.ToClient(m.P1.ClientID, protocol.TypeRoundResult, map[string]interface{}{
		"matchId":          m.ID,
		"round":            m.CurrentRound,
		"yourDecision":     r.P1Decision,
		"opponentDecision": r.P2Decision,
		"yourPoints":       r.P1Score,
		"opponentPoints":   r.P2Score,
		"yourTotal":        m.ScoreP1,
		"opponentTotal":    m.ScoreP2,
	})
	e.bc.ToClient(m.P2.ClientID, protocol.TypeRoundResult, map[string]interface{}{
		"matchId":          m.ID,
		"round":            m.CurrentRound,
		"yourDecision":     r.P2Decision,
		"opponentDecision": r.P1Decision,
		"yourPoints":       r.P2Score,
		"opponentPoints":   r.P1Score,
		"yourTotal":        m.ScoreP2,
		"opponentTotal":    m.ScoreP1,
	})

	m.State = StateShowingResults
	matchID := m.ID
	next := m.CurrentRound + 1
	m.resultsTimer = e.loop.After(ResultsDisplay, func() {
		mm, ok := e.matches[matchID]
		if !ok || mm.State != StateShowingResults {
			return
		}
		if next < mm.MaxRounds {
			e.startRound(matchID, next)
		} else if mm.IsTiebreaker {
			// Tiebreaker blocks do not get a reversal window.
			e.finish(mm, finishOpts{})
		} else {
			e.openReversal(mm)
		}
	})
}

// openReversal ends regulation play and arms the reversal window.
func (e *Engine) openReversal(m *Match) {
	m.State = StateAwaitingReversalResponses

	e.broadcastToMatch(m, protocol.TypeGameOver, map[string]interface{}{
		"matchId":     m.ID,
		"winner":      m.winnerTag(),
		"finalScores": map[string]int{"player1": m.ScoreP1, "player2": m.ScoreP2},
		"totalRounds": m.MaxRounds,
	})

	window := ReversalWindow
	if m.TournamentID != "" {
		window = TournamentReversalWindow
	}
	matchID := m.ID
	m.reversalTimer = e.loop.After(window, func() {
		mm, ok := e.matches[matchID]
		if !ok || mm.State != StateAwaitingReversalResponses {
			return
		}
		log.Printf("[GAME] Match %s reversal window expired", matchID)
		e.finish(mm, finishOpts{})
	})
}

// HandleReversalResponse records an accept/decline for the reversal
// protocol. Duplicates after both sides responded are ignored.
func (e *Engine) HandleReversalResponse(actorID, matchID string, accept bool) {
	m, ok := e.matches[matchID]
	if !ok {
		e.bc.ErrorTo(actorID, protocol.CodeMatchNotFound, "match not found")
		return
	}
	side, ok := m.endpoint(actorID)
	if !ok {
		e.bc.ErrorTo(actorID, protocol.CodeMatchNotFound, "not a participant in this match")
		return
	}
	if len(m.reversalResponses) >= 2 {
		return
	}
	if m.State != StateAwaitingReversalResponses {
		e.bc.ErrorTo(actorID, protocol.CodeWrongPhase, "no reversal pending")
		return
	}

	m.reversalResponses[side.ClientID] = accept
	if len(m.reversalResponses) < 2 {
		e.bc.ToClient(actorID, protocol.TypeWaitingForOtherPlayer, map[string]interface{}{
			"matchId": m.ID,
		})
		return
	}

	m.reversalTimer.Stop()
	bothAccept := m.reversalResponses[m.P1.ClientID] && m.reversalResponses[m.P2.ClientID]
	if bothAccept {
		m.State = StateReversalSelection
		e.broadcastToMatch(m, protocol.TypeReversalApproved, map[string]interface{}{
			"matchId": m.ID,
		})
		return
	}

	e.broadcastToMatch(m, protocol.TypeReversalRejected, map[string]interface{}{
		"matchId": m.ID,
	})
	e.finish(m, finishOpts{})
}

// HandleDecisionChange mutates one of the sender's past decisions during
// reversal selection. Scores are recomputed from scratch and the change is
// acknowledged to the sender only; the opponent learns the outcome at
// FINAL_SCORES_UPDATE.
func (e *Engine) HandleDecisionChange(actorID, matchID string, roundNumber int, newDecision string) {
	m, ok := e.matches[matchID]
	if !ok {
		e.bc.ErrorTo(actorID, protocol.CodeMatchNotFound, "match not found")
		return
	}
	side, ok := m.endpoint(actorID)
	if !ok {
		e.bc.ErrorTo(actorID, protocol.CodeMatchNotFound, "not a participant in this match")
		return
	}
	if m.State != StateReversalSelection {
		e.bc.ErrorTo(actorID, protocol.CodeWrongPhase, "reversal selection is not open")
		return
	}
	if !protocol.ValidDecision(newDecision) {
		e.bc.ErrorTo(actorID, protocol.CodeInvalidRequest, "decision must be COOPERATE or BETRAY")
		return
	}
	r, ok := m.Rounds[roundNumber]
	if !ok || !r.Complete() {
		e.bc.ErrorTo(actorID, protocol.CodeInvalidRequest, "no such round")
		return
	}

	if m.isP1(side.ClientID) {
		r.P1Decision = newDecision
	} else {
		r.P2Decision = newDecision
	}
	m.ScoreP1, m.ScoreP2 = RecomputeScores(m.Rounds)

	e.bc.ToClient(actorID, protocol.TypeDecisionChangeAccepted, map[string]interface{}{
		"matchId":     m.ID,
		"roundNumber": roundNumber,
		"newDecision": newDecision,
	})
}

// HandleChangesComplete marks one side done with reversal selection. When
// both are done the recomputed totals are broadcast and the match finishes.
func (e *Engine) HandleChangesComplete(actorID, matchID string) {
	m, ok := e.matches[matchID]
	if !ok {
		e.bc.ErrorTo(actorID, protocol.CodeMatchNotFound, "match not found")
		return
	}
	side, ok := m.endpoint(actorID)
	if !ok {
		e.bc.ErrorTo(actorID, protocol.CodeMatchNotFound, "not a participant in this match")
		return
	}
	if m.State != StateReversalSelection {
		e.bc.ErrorTo(actorID, protocol.CodeWrongPhase, "reversal selection is not open")
		return
	}

	m.changesComplete[side.ClientID] = true
	if !m.changesComplete[m.P1.ClientID] || !m.changesComplete[m.P2.ClientID] {
		e.bc.ToClient(actorID, protocol.TypeWaitingForOtherPlayer, map[string]interface{}{
			"matchId": m.ID,
		})
		return
	}

	e.broadcastToMatch(m, protocol.TypeFinalScoresUpdate, map[string]interface{}{
		"matchId":     m.ID,
		"winner":      m.winnerTag(),
		"finalScores": map[string]int{"player1": m.ScoreP1, "player2": m.ScoreP2},
	})
	e.finish(m, finishOpts{})
}

// Forfeit ends a match in the opponent's favour with a bonus of 3 points per
// unplayed round.
func (e *Engine) Forfeit(actorID, matchID string) {
	m, ok := e.matches[matchID]
	if !ok {
		e.bc.ErrorTo(actorID, protocol.CodeMatchNotFound, "match not found")
		return
	}
	e.forfeitBy(m, actorID)
}

// ForfeitByClient forfeits whichever active match the client is in. Used for
// FORFEIT_MATCH, which carries no match id.
func (e *Engine) ForfeitByClient(actorID string) bool {
	for _, m := range e.matches {
		if !m.Active() {
			continue
		}
		if _, ok := m.endpoint(actorID); ok {
			e.forfeitBy(m, actorID)
			return true
		}
	}
	return false
}

func (e *Engine) forfeitBy(m *Match, actorID string) {
	forfeiter, ok := m.endpoint(actorID)
	if !ok {
		e.bc.ErrorTo(actorID, protocol.CodeMatchNotFound, "not a participant in this match")
		return
	}
	if !m.Active() {
		return
	}

	opponent := m.opponentOf(forfeiter.ClientID)
	remaining := m.MaxRounds - m.CurrentRound
	bonus := ForfeitPointsPerRound * remaining
	if m.isP1(opponent.ClientID) {
		m.ScoreP1 += bonus
	} else {
		m.ScoreP2 += bonus
	}
	log.Printf("[GAME] Match %s forfeited by %s, %d bonus points to %s", m.ID, actorID, bonus, opponent.ClientID)

	yourScore, oppScore := m.ScoreP1, m.ScoreP2
	if !m.isP1(opponent.ClientID) {
		yourScore, oppScore = m.ScoreP2, m.ScoreP1
	}
	e.bc.ToClient(opponent.ClientID, protocol.TypeShowStatistics, map[string]interface{}{
		"matchId":       m.ID,
		"yourScore":     yourScore,
		"opponentScore": oppScore,
		"winner":        "you",
		"forfeit":       true,
		"immediate":     true,
	})
	e.bc.ToClient(forfeiter.ClientID, protocol.TypeForfeitConfirmed, map[string]interface{}{
		"matchId": m.ID,
	})

	e.finish(m, finishOpts{forfeit: true, winner: opponent, silent: true})
}

// HandleDisconnect marks the player disconnected in any active match and
// arms the reconnection grace timer. Expiry forfeits the match.
func (e *Engine) HandleDisconnect(clientID string) {
	for _, m := range e.matches {
		if !m.Active() {
			continue
		}
		side, ok := m.endpoint(clientID)
		if !ok || side.Disconnected {
			continue
		}
		side.Disconnected = true

		grace := ReconnectGrace
		notice := protocol.TypeOpponentDisconnected
		if m.TournamentID != "" {
			grace = TournamentReconnectGrace
			notice = protocol.TypeTournamentOpponentDisconnected
		}
		e.bc.ToClient(m.opponentOf(clientID).ClientID, notice, map[string]interface{}{
			"matchId":      m.ID,
			"graceSeconds": int(grace.Seconds()),
		})

		matchID := m.ID
		m.graceTimers[clientID] = e.loop.After(grace, func() {
			mm, ok := e.matches[matchID]
			if !ok || !mm.Active() {
				return
			}
			s, ok := mm.endpoint(clientID)
			if !ok || !s.Disconnected {
				return
			}
			log.Printf("[GAME] Match %s: %s did not reconnect in time, forfeiting", matchID, clientID)
			e.forfeitBy(mm, clientID)
		})
	}
}

// HandleReconnect clears the disconnected flag in any active match the
// client belongs to. For tournament matches, the reconnector receives the
// full match snapshot and the opponent is notified. Returns true if a
// tournament match was rejoined.
func (e *Engine) HandleReconnect(clientID string) bool {
	rejoined := false
	for _, m := range e.matches {
		if !m.Active() {
			continue
		}
		side, ok := m.endpoint(clientID)
		if !ok {
			continue
		}
		if m.TournamentID != "" && e.tournamentActive != nil && !e.tournamentActive(m.TournamentID) {
			continue
		}

		side.Disconnected = false
		if t, ok := m.graceTimers[clientID]; ok {
			t.Stop()
			delete(m.graceTimers, clientID)
		}
		if m.TournamentID == "" {
			continue
		}

		opponent := m.opponentOf(clientID)
		yourScore, oppScore := m.ScoreP1, m.ScoreP2
		if !m.isP1(clientID) {
			yourScore, oppScore = m.ScoreP2, m.ScoreP1
		}
		e.bc.ToClient(clientID, protocol.TypeTournamentMatchReconnected, map[string]interface{}{
			"matchId":       m.ID,
			"tournamentId":  m.TournamentID,
			"opponent":      opponent.Player,
			"currentRound":  m.CurrentRound,
			"yourScore":     yourScore,
			"opponentScore": oppScore,
			"gameState":     m.State,
		})
		e.bc.ToClient(opponent.ClientID, protocol.TypeTournamentOpponentReconnected, map[string]interface{}{
			"matchId": m.ID,
		})
		log.Printf("[GAME] %s reconnected to tournament match %s", clientID, m.ID)
		rejoined = true
	}
	return rejoined
}

// RelayMessage forwards an in-match chat line to the opponent.
func (e *Engine) RelayMessage(actorID, matchID, text, timestamp string) {
	m, ok := e.matches[matchID]
	if !ok {
		e.bc.ErrorTo(actorID, protocol.CodeMatchNotFound, "match not found")
		return
	}
	side, ok := m.endpoint(actorID)
	if !ok {
		e.bc.ErrorTo(actorID, protocol.CodeMatchNotFound, "not a participant in this match")
		return
	}

	e.bc.ToClient(m.opponentOf(side.ClientID).ClientID, protocol.TypeGameMessageRelay, map[string]interface{}{
		"matchId":   m.ID,
		"from":      side.Player.Name,
		"message":   text,
		"timestamp": timestamp,
	})
}

type finishOpts struct {
	forfeit bool
	winner  *Endpoint // forfeit winner; nil otherwise
	silent  bool      // statistics already sent (forfeit path)
}

// finish runs terminal processing exactly once: tiebreaker consult,
// statistics, persistence, tournament propagation, and delayed cleanup.
func (e *Engine) finish(m *Match, opts finishOpts) {
	if m.State == StateCompleted {
		return
	}

	if m.TournamentID != "" && !opts.forfeit && !m.IsTiebreaker &&
		m.ScoreP1 == m.ScoreP2 && e.tieCheck != nil && e.tieCheck(m) {
		e.startTiebreaker(m)
		return
	}

	m.stopTimers()
	m.State = StateCompleted

	winner := m.winnerTag()
	if opts.forfeit && opts.winner != nil {
		winner = "player2"
		if m.isP1(opts.winner.ClientID) {
			winner = "player1"
		}
	}
	if m.IsTiebreaker && winner == "tie" {
		// Tied tiebreaker resolves by coin flip.
		if rand.Intn(2) == 0 {
			winner = "player1"
		} else {
			winner = "player2"
		}
		log.Printf("[GAME] Match %s tiebreaker still tied, random winner: %s", m.ID, winner)
	}

	if !opts.silent {
		e.sendStatistics(m, winner)
	}

	result := e.buildResult(m, winner, opts.forfeit)
	if !m.ResultsSaved {
		m.ResultsSaved = true
		if e.onResult != nil {
			e.onResult(result)
		}
	}
	if m.TournamentID != "" && e.onTournamentResult != nil {
		e.onTournamentResult(m, result)
	}

	matchID := m.ID
	m.retentionTimer = e.loop.After(PostMatchRetention, func() {
		delete(e.matches, matchID)
		log.Printf("[GAME] Match %s cleaned up", matchID)
	})
}

func (e *Engine) sendStatistics(m *Match, winner string) {
	p1Outcome, p2Outcome := "tie", "tie"
	switch winner {
	case "player1":
		p1Outcome, p2Outcome = "you", "opponent"
	case "player2":
		p1Outcome, p2Outcome = "opponent", "you"
	}

	e.bc.ToClient(m.P1.ClientID, protocol.TypeShowStatistics, map[string]interface{}{
		"matchId":       m.ID,
		"yourScore":     m.ScoreP1,
		"opponentScore": m.ScoreP2,
		"winner":        p1Outcome,
		"roundsPlayed":  len(m.Rounds),
	})
	e.bc.ToClient(m.P2.ClientID, protocol.TypeShowStatistics, map[string]interface{}{
		"matchId":       m.ID,
		"yourScore":     m.ScoreP2,
		"opponentScore": m.ScoreP1,
		"winner":        p2Outcome,
		"roundsPlayed":  len(m.Rounds),
	})
}

func (e *Engine) buildResult(m *Match, winner string, forfeit bool) Result {
	p1Coop, p1Betray, p2Coop, p2Betray := DecisionCounts(m.Rounds)

	winnerClientID := ""
	switch winner {
	case "player1":
		winnerClientID = m.P1.ClientID
	case "player2":
		winnerClientID = m.P2.ClientID
	}

	return Result{
		MatchID:        m.ID,
		TournamentID:   m.TournamentID,
		GameMode:       m.GameMode,
		Player1ID:      m.P1.ClientID,
		Player2ID:      m.P2.ClientID,
		Player1Score:   m.ScoreP1,
		Player2Score:   m.ScoreP2,
		Winner:         winner,
		WinnerClientID: winnerClientID,
		RoundsPlayed:   len(m.Rounds),
		Duration:       time.Since(m.StartedAt),
		Forfeit:        forfeit,
		IsTiebreaker:   m.IsTiebreaker,
		P1Cooperations: p1Coop,
		P1Betrayals:    p1Betray,
		P2Cooperations: p2Coop,
		P2Betrayals:    p2Betray,
	}
}

// startTiebreaker resets the match into a fresh best-of-3 block.
func (e *Engine) startTiebreaker(m *Match) {
	m.stopTimers()
	m.IsTiebreaker = true
	m.ScoreP1, m.ScoreP2 = 0, 0
	m.Rounds = make(map[int]*RoundDecisions)
	m.CurrentRound = 0
	m.MaxRounds = TiebreakerRounds
	m.State = StateWaitingForPlayers
	m.reversalResponses = make(map[string]bool)
	m.changesComplete = make(map[string]bool)

	log.Printf("[GAME] Match %s tied, starting best-of-%d tiebreaker", m.ID, TiebreakerRounds)
	e.broadcastToMatch(m, protocol.TypeTiebreakerStarted, map[string]interface{}{
		"matchId":   m.ID,
		"maxRounds": TiebreakerRounds,
	})

	matchID := m.ID
	e.loop.After(startDelay, func() {
		e.startRound(matchID, 0)
	})
}

func (e *Engine) broadcastToMatch(m *Match, msgType string, payload interface{}) {
	e.bc.ToClient(m.P1.ClientID, msgType, payload)
	e.bc.ToClient(m.P2.ClientID, msgType, payload)
}
