package match

import (
	"testing"

	"trust-platform/backend/internal/protocol"
	"trust-platform/backend/internal/server/broadcast"
	"trust-platform/backend/internal/server/dispatch"
	"trust-platform/backend/internal/server/session"
)

// newTestEngine builds an engine whose dispatcher loop is never run, so timer
// callbacks stay queued and tests drive every phase transition directly.
func newTestEngine(t *testing.T) (*Engine, *[]Result) {
	t.Helper()
	loop := dispatch.NewLoop()
	bc := broadcast.New(session.NewRegistry(nil))
	e := NewEngine(loop, bc)

	results := &[]Result{}
	e.SetOnResultCallback(func(r Result) {
		*results = append(*results, r)
	})
	return e, results
}

func testPlayer(name string) protocol.Player {
	return protocol.Player{ID: name, Name: name, TrustScore: 50}
}

// playRound submits both decisions for the current round and advances to the
// next decision window if one remains.
func playRound(t *testing.T, e *Engine, m *Match, d1, d2 string) {
	t.Helper()
	round := m.CurrentRound
	e.HandleDecision(m.P1.ClientID, m.ID, round, d1)
	e.HandleDecision(m.P2.ClientID, m.ID, round, d2)
	if m.State != StateShowingResults {
		t.Fatalf("round %d: state = %s after both decisions, want %s", round, m.State, StateShowingResults)
	}
	if round+1 < m.MaxRounds {
		e.startRound(m.ID, round+1)
	}
}

// playFullMatch plays every regulation round with fixed decisions and opens
// the reversal window.
func playFullMatch(t *testing.T, e *Engine, m *Match, d1, d2 string) {
	t.Helper()
	e.startRound(m.ID, 0)
	for i := 0; i < m.MaxRounds; i++ {
		playRound(t, e, m, d1, d2)
	}
	e.openReversal(m)
}

func declineReversal(e *Engine, m *Match) {
	e.HandleReversalResponse(m.P1.ClientID, m.ID, false)
	e.HandleReversalResponse(m.P2.ClientID, m.ID, false)
}

func TestMutualCooperationEndsTied(t *testing.T) {
	e, results := newTestEngine(t)
	m := e.CreateMatch(ModeRanked, "p1", testPlayer("p1"), "p2", testPlayer("p2"))

	playFullMatch(t, e, m, protocol.DecisionCooperate, protocol.DecisionCooperate)
	declineReversal(e, m)

	if m.State != StateCompleted {
		t.Fatalf("state = %s, want %s", m.State, StateCompleted)
	}
	if m.ScoreP1 != 30 || m.ScoreP2 != 30 {
		t.Errorf("scores = %d/%d, want 30/30", m.ScoreP1, m.ScoreP2)
	}
	if len(*results) != 1 {
		t.Fatalf("got %d results, want 1", len(*results))
	}
	r := (*results)[0]
	if r.Winner != "tie" || r.WinnerClientID != "" {
		t.Errorf("winner = %q (%q), want tie", r.Winner, r.WinnerClientID)
	}
	if r.RoundsPlayed != 10 {
		t.Errorf("rounds played = %d, want 10", r.RoundsPlayed)
	}
	if r.P1Cooperations != 10 || r.P2Cooperations != 10 {
		t.Errorf("cooperations = %d/%d, want 10/10", r.P1Cooperations, r.P2Cooperations)
	}
}

func TestConsistentBetrayalWins(t *testing.T) {
	e, results := newTestEngine(t)
	m := e.CreateMatch(ModeRanked, "p1", testPlayer("p1"), "p2", testPlayer("p2"))

	playFullMatch(t, e, m, protocol.DecisionCooperate, protocol.DecisionBetray)
	declineReversal(e, m)

	if m.ScoreP1 != 0 || m.ScoreP2 != 50 {
		t.Errorf("scores = %d/%d, want 0/50", m.ScoreP1, m.ScoreP2)
	}
	r := (*results)[0]
	if r.Winner != "player2" || r.WinnerClientID != "p2" {
		t.Errorf("winner = %q (%q), want player2 (p2)", r.Winner, r.WinnerClientID)
	}
	if r.P2Betrayals != 10 {
		t.Errorf("p2 betrayals = %d, want 10", r.P2Betrayals)
	}
}

func TestReversalFlipRescoresFromScratch(t *testing.T) {
	e, results := newTestEngine(t)
	m := e.CreateMatch(ModeRanked, "p1", testPlayer("p1"), "p2", testPlayer("p2"))

	e.startRound(m.ID, 0)
	playRound(t, e, m, protocol.DecisionBetray, protocol.DecisionCooperate)
	for i := 1; i < m.MaxRounds; i++ {
		playRound(t, e, m, protocol.DecisionCooperate, protocol.DecisionCooperate)
	}
	if m.ScoreP1 != 32 || m.ScoreP2 != 27 {
		t.Fatalf("regulation scores = %d/%d, want 32/27", m.ScoreP1, m.ScoreP2)
	}

	e.openReversal(m)
	e.HandleReversalResponse(m.P1.ClientID, m.ID, true)
	e.HandleReversalResponse(m.P2.ClientID, m.ID, true)
	if m.State != StateReversalSelection {
		t.Fatalf("state = %s, want %s", m.State, StateReversalSelection)
	}

	e.HandleDecisionChange(m.P1.ClientID, m.ID, 0, protocol.DecisionCooperate)
	if m.ScoreP1 != 30 || m.ScoreP2 != 30 {
		t.Errorf("scores after flip = %d/%d, want 30/30", m.ScoreP1, m.ScoreP2)
	}

	e.HandleChangesComplete(m.P1.ClientID, m.ID)
	if m.State != StateReversalSelection {
		t.Fatalf("match finished with only one side done")
	}
	e.HandleChangesComplete(m.P2.ClientID, m.ID)

	if m.State != StateCompleted {
		t.Fatalf("state = %s, want %s", m.State, StateCompleted)
	}
	if len(*results) != 1 || (*results)[0].Winner != "tie" {
		t.Errorf("result = %+v, want a single tie", *results)
	}
}

func TestRejectedReversalFinishesWithRegulationScores(t *testing.T) {
	e, results := newTestEngine(t)
	m := e.CreateMatch(ModeRanked, "p1", testPlayer("p1"), "p2", testPlayer("p2"))

	playFullMatch(t, e, m, protocol.DecisionBetray, protocol.DecisionCooperate)
	e.HandleReversalResponse(m.P1.ClientID, m.ID, true)
	e.HandleReversalResponse(m.P2.ClientID, m.ID, false)

	if m.State != StateCompleted {
		t.Fatalf("state = %s, want %s", m.State, StateCompleted)
	}
	if (*results)[0].Winner != "player1" {
		t.Errorf("winner = %q, want player1", (*results)[0].Winner)
	}

	// A straggling duplicate response after completion is ignored.
	e.HandleReversalResponse(m.P2.ClientID, m.ID, true)
	if len(*results) != 1 {
		t.Errorf("duplicate response produced another result")
	}
}

func TestForfeitAwardsRemainingRoundBonus(t *testing.T) {
	e, results := newTestEngine(t)
	m := e.CreateMatch(ModeRanked, "p1", testPlayer("p1"), "p2", testPlayer("p2"))

	e.startRound(m.ID, 0)
	for i := 0; i < 4; i++ {
		playRound(t, e, m, protocol.DecisionCooperate, protocol.DecisionCooperate)
	}
	if m.CurrentRound != 4 {
		t.Fatalf("current round = %d, want 4", m.CurrentRound)
	}

	e.Forfeit("p1", m.ID)

	// 6 unplayed rounds at 3 points each on top of 12/12.
	if m.ScoreP1 != 12 || m.ScoreP2 != 30 {
		t.Errorf("scores = %d/%d, want 12/30", m.ScoreP1, m.ScoreP2)
	}
	if len(*results) != 1 {
		t.Fatalf("got %d results, want 1", len(*results))
	}
	r := (*results)[0]
	if !r.Forfeit || r.Winner != "player2" || r.WinnerClientID != "p2" {
		t.Errorf("result = %+v, want forfeit win for p2", r)
	}
}

func TestForfeitByClientFindsActiveMatch(t *testing.T) {
	e, _ := newTestEngine(t)
	m := e.CreateMatch(ModeRanked, "p1", testPlayer("p1"), "p2", testPlayer("p2"))
	e.startRound(m.ID, 0)

	if e.ForfeitByClient("stranger") {
		t.Error("ForfeitByClient matched a non-participant")
	}
	if !e.ForfeitByClient("p2") {
		t.Error("ForfeitByClient missed an active match")
	}
	if m.State != StateCompleted {
		t.Errorf("state = %s, want %s", m.State, StateCompleted)
	}
}

func TestRoundTimeoutDefaultsToCooperate(t *testing.T) {
	e, _ := newTestEngine(t)
	m := e.CreateMatch(ModeRanked, "p1", testPlayer("p1"), "p2", testPlayer("p2"))

	e.startRound(m.ID, 0)
	e.HandleDecision("p1", m.ID, 0, protocol.DecisionBetray)
	e.roundTimeout(m.ID, 0)

	r := m.Rounds[0]
	if r.P2Decision != protocol.DecisionCooperate {
		t.Errorf("p2 decision = %q, want default cooperate", r.P2Decision)
	}
	if m.ScoreP1 != 5 || m.ScoreP2 != 0 {
		t.Errorf("scores = %d/%d, want 5/0", m.ScoreP1, m.ScoreP2)
	}
	if m.State != StateShowingResults {
		t.Errorf("state = %s, want %s", m.State, StateShowingResults)
	}
}

func TestDecisionGuards(t *testing.T) {
	e, _ := newTestEngine(t)
	m := e.CreateMatch(ModeRanked, "p1", testPlayer("p1"), "p2", testPlayer("p2"))
	e.startRound(m.ID, 0)

	t.Run("duplicate decision keeps the first", func(t *testing.T) {
		e.HandleDecision("p1", m.ID, 0, protocol.DecisionBetray)
		e.HandleDecision("p1", m.ID, 0, protocol.DecisionCooperate)
		if m.Rounds[0].P1Decision != protocol.DecisionBetray {
			t.Errorf("decision = %q, want the first BETRAY kept", m.Rounds[0].P1Decision)
		}
	})

	t.Run("invalid decision ignored", func(t *testing.T) {
		e.HandleDecision("p2", m.ID, 0, "SHRUG")
		if m.Rounds[0].P2Decision != "" {
			t.Errorf("invalid decision was recorded: %q", m.Rounds[0].P2Decision)
		}
	})

	t.Run("late decision for a scored round dropped", func(t *testing.T) {
		e.HandleDecision("p2", m.ID, 0, protocol.DecisionCooperate)
		if m.State != StateShowingResults {
			t.Fatalf("state = %s, want %s", m.State, StateShowingResults)
		}
		e.startRound(m.ID, 1)
		e.HandleDecision("p1", m.ID, 0, protocol.DecisionCooperate)
		if m.Rounds[1].P1Decision != "" {
			t.Errorf("stale round decision landed on the current round")
		}
	})

	t.Run("non-participant rejected", func(t *testing.T) {
		e.HandleDecision("stranger", m.ID, 1, protocol.DecisionCooperate)
		r := m.Rounds[1]
		if r.P1Decision != "" || r.P2Decision != "" {
			t.Errorf("stranger's decision was recorded")
		}
	})
}

func TestTournamentTieStartsTiebreaker(t *testing.T) {
	e, results := newTestEngine(t)
	var tournamentResults []Result
	e.SetOnTournamentResultCallback(func(_ *Match, r Result) {
		tournamentResults = append(tournamentResults, r)
	})
	e.SetTieCheckCallback(func(_ *Match) bool { return true })

	m := e.CreateTournamentMatch("t1", "p1", testPlayer("p1"), "p2", testPlayer("p2"), 10)
	playFullMatch(t, e, m, protocol.DecisionCooperate, protocol.DecisionCooperate)
	declineReversal(e, m)

	if !m.IsTiebreaker {
		t.Fatal("tied terminal tournament match did not enter a tiebreaker")
	}
	if m.State == StateCompleted {
		t.Fatal("match completed instead of starting a tiebreaker")
	}
	if m.ScoreP1 != 0 || m.ScoreP2 != 0 || m.MaxRounds != TiebreakerRounds {
		t.Errorf("tiebreaker block = %d/%d over %d rounds, want 0/0 over %d", m.ScoreP1, m.ScoreP2, m.MaxRounds, TiebreakerRounds)
	}
	if len(*results) != 0 {
		t.Fatalf("tie produced a result before the tiebreaker resolved")
	}

	e.startRound(m.ID, 0)
	playRound(t, e, m, protocol.DecisionBetray, protocol.DecisionCooperate)
	playRound(t, e, m, protocol.DecisionCooperate, protocol.DecisionCooperate)
	playRound(t, e, m, protocol.DecisionCooperate, protocol.DecisionCooperate)
	e.finish(m, finishOpts{})

	if len(*results) != 1 {
		t.Fatalf("got %d results, want 1", len(*results))
	}
	r := (*results)[0]
	if !r.IsTiebreaker || r.Winner != "player1" {
		t.Errorf("result = %+v, want player1 tiebreaker win", r)
	}
	if len(tournamentResults) != 1 {
		t.Errorf("tournament callback fired %d times, want 1", len(tournamentResults))
	}
}

func TestTiedTiebreakerResolvesByCoinFlip(t *testing.T) {
	e, results := newTestEngine(t)
	e.SetTieCheckCallback(func(_ *Match) bool { return true })

	m := e.CreateTournamentMatch("t1", "p1", testPlayer("p1"), "p2", testPlayer("p2"), 10)
	playFullMatch(t, e, m, protocol.DecisionCooperate, protocol.DecisionCooperate)
	declineReversal(e, m)

	e.startRound(m.ID, 0)
	for i := 0; i < TiebreakerRounds; i++ {
		playRound(t, e, m, protocol.DecisionCooperate, protocol.DecisionCooperate)
	}
	e.finish(m, finishOpts{})

	r := (*results)[0]
	if r.Winner != "player1" && r.Winner != "player2" {
		t.Errorf("winner = %q, want a coin-flip winner", r.Winner)
	}
	if r.WinnerClientID == "" {
		t.Error("coin-flip winner has no client id")
	}
}

func TestDisconnectAndReconnect(t *testing.T) {
	e, _ := newTestEngine(t)
	m := e.CreateMatch(ModeRanked, "p1", testPlayer("p1"), "p2", testPlayer("p2"))
	e.startRound(m.ID, 0)

	e.HandleDisconnect("p1")
	if !m.P1.Disconnected {
		t.Fatal("p1 not marked disconnected")
	}
	if _, ok := m.graceTimers["p1"]; !ok {
		t.Fatal("no grace timer armed for p1")
	}

	if e.HandleReconnect("p1") {
		t.Error("ranked reconnect reported a tournament rejoin")
	}
	if m.P1.Disconnected {
		t.Error("p1 still marked disconnected after reconnect")
	}
	if _, ok := m.graceTimers["p1"]; ok {
		t.Error("grace timer survived the reconnect")
	}
}

func TestTournamentReconnectRestoresState(t *testing.T) {
	e, _ := newTestEngine(t)
	m := e.CreateTournamentMatch("t1", "p1", testPlayer("p1"), "p2", testPlayer("p2"), 10)
	e.startRound(m.ID, 0)

	e.HandleDisconnect("p2")
	if !e.HandleReconnect("p2") {
		t.Error("tournament reconnect not reported")
	}
	if m.P2.Disconnected {
		t.Error("p2 still marked disconnected")
	}
}

func TestReconnectSkipsCompletedTournament(t *testing.T) {
	e, _ := newTestEngine(t)
	e.SetTournamentActiveCallback(func(string) bool { return false })
	m := e.CreateTournamentMatch("t1", "p1", testPlayer("p1"), "p2", testPlayer("p2"), 10)
	e.startRound(m.ID, 0)

	e.HandleDisconnect("p2")
	if e.HandleReconnect("p2") {
		t.Error("rejoined a match whose tournament already completed")
	}
	if !m.P2.Disconnected {
		t.Error("disconnected flag cleared for a dead tournament match")
	}
	if _, ok := m.graceTimers["p2"]; !ok {
		t.Error("grace timer disarmed for a dead tournament match")
	}
}

func TestMatchResultSavedOnce(t *testing.T) {
	e, results := newTestEngine(t)
	m := e.CreateMatch(ModeRanked, "p1", testPlayer("p1"), "p2", testPlayer("p2"))

	playFullMatch(t, e, m, protocol.DecisionCooperate, protocol.DecisionBetray)
	declineReversal(e, m)
	e.finish(m, finishOpts{})
	e.finish(m, finishOpts{})

	if len(*results) != 1 {
		t.Errorf("result callback fired %d times, want 1", len(*results))
	}
}
