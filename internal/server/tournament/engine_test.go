package tournament

import (
	"errors"
	"fmt"
	"testing"

	"trust-platform/backend/internal/protocol"
	"trust-platform/backend/internal/server/broadcast"
	"trust-platform/backend/internal/server/dispatch"
	"trust-platform/backend/internal/server/lobby"
	"trust-platform/backend/internal/server/match"
	"trust-platform/backend/internal/server/session"
)

// testHarness wires a tournament engine whose dispatcher loop is never run;
// tests call startCurrentRound and report results directly.
type testHarness struct {
	engine  *Engine
	matches *match.Engine
	lobbies *lobby.Manager
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	loop := dispatch.NewLoop()
	bc := broadcast.New(session.NewRegistry(nil))
	matches := match.NewEngine(loop, bc)
	lobbies := lobby.NewManager()
	return &testHarness{
		engine:  NewEngine(loop, bc, matches, lobbies),
		matches: matches,
		lobbies: lobbies,
	}
}

// makeLobby creates a lobby with n members, host first.
func (h *testHarness) makeLobby(t *testing.T, n int, format string) *lobby.Lobby {
	t.Helper()
	settings := lobby.DefaultSettings()
	settings.TournamentFormat = format
	settings.MaxPlayers = 16

	lb, err := h.lobbies.Create("p1", "p1", settings)
	if err != nil {
		t.Fatalf("create lobby: %v", err)
	}
	for i := 2; i <= n; i++ {
		id := fmt.Sprintf("p%d", i)
		if _, _, err := h.lobbies.Join(lb.Code, id, id); err != nil {
			t.Fatalf("join lobby: %v", err)
		}
	}
	return lb
}

// beginRound moves the tournament into its current round, creating engine
// matches for every scheduled slot.
func (h *testHarness) beginRound(t *Tournament) {
	t.Status = StatusInProgress
	h.engine.startCurrentRound(t)
}

// reportSlot completes a slot's engine match with the given winner.
func (h *testHarness) reportSlot(t *testing.T, trn *Tournament, slot *BracketMatch, winnerID string, s1, s2 int) {
	t.Helper()
	matchID, ok := trn.matchBySlot[slot.ID]
	if !ok {
		t.Fatalf("slot %s has no engine match", slot.ID)
	}
	m, ok := h.matches.Get(matchID)
	if !ok {
		t.Fatalf("engine match %s missing", matchID)
	}

	winner := ""
	switch winnerID {
	case slot.Player1ID:
		winner = "player1"
	case slot.Player2ID:
		winner = "player2"
	case "":
		winner = "tie"
	}
	h.engine.handleMatchResult(m, match.Result{
		MatchID:        matchID,
		TournamentID:   trn.ID,
		Player1ID:      slot.Player1ID,
		Player2ID:      slot.Player2ID,
		Player1Score:   s1,
		Player2Score:   s2,
		Winner:         winner,
		WinnerClientID: winnerID,
		RoundsPlayed:   10,
	})
}

func TestStartValidation(t *testing.T) {
	t.Run("non-host rejected", func(t *testing.T) {
		h := newHarness(t)
		lb := h.makeLobby(t, 4, protocol.FormatSingleElimination)
		if _, err := h.engine.Start("p2", lb.ID); !errors.Is(err, ErrNotHost) {
			t.Errorf("err = %v, want ErrNotHost", err)
		}
	})

	t.Run("elimination needs a power-of-two field", func(t *testing.T) {
		h := newHarness(t)
		lb := h.makeLobby(t, 5, protocol.FormatSingleElimination)
		if _, err := h.engine.Start("p1", lb.ID); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("err = %v, want ErrInvalidSize", err)
		}
	})

	t.Run("round robin accepts odd fields", func(t *testing.T) {
		h := newHarness(t)
		lb := h.makeLobby(t, 5, protocol.FormatRoundRobin)
		if _, err := h.engine.Start("p1", lb.ID); err != nil {
			t.Errorf("start failed: %v", err)
		}
	})

	t.Run("double start rejected", func(t *testing.T) {
		h := newHarness(t)
		lb := h.makeLobby(t, 4, protocol.FormatSingleElimination)
		if _, err := h.engine.Start("p1", lb.ID); err != nil {
			t.Fatalf("first start failed: %v", err)
		}
		if _, err := h.engine.Start("p1", lb.ID); !errors.Is(err, ErrTournamentInProgress) {
			t.Errorf("err = %v, want ErrTournamentInProgress", err)
		}
	})

	t.Run("unknown lobby", func(t *testing.T) {
		h := newHarness(t)
		if _, err := h.engine.Start("p1", "nope"); !errors.Is(err, ErrLobbyNotFound) {
			t.Errorf("err = %v, want ErrLobbyNotFound", err)
		}
	})
}

func TestSingleEliminationRunsToChampion(t *testing.T) {
	h := newHarness(t)
	var completed *Tournament
	h.engine.SetOnCompleteCallback(func(trn *Tournament) { completed = trn })

	lb := h.makeLobby(t, 4, protocol.FormatSingleElimination)
	trn, err := h.engine.Start("p1", lb.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if trn.TotalRounds != 2 {
		t.Errorf("total rounds = %d, want 2", trn.TotalRounds)
	}
	if lb.Status != lobby.StatusTournamentInProgress {
		t.Errorf("lobby status = %s, want tournament in progress", lb.Status)
	}

	h.beginRound(trn)
	opening := trn.Bracket.Rounds[0].Matches
	if len(opening) != 2 {
		t.Fatalf("opening round has %d slots, want 2", len(opening))
	}

	// First seats win their semifinals.
	h.reportSlot(t, trn, opening[0], opening[0].Player1ID, 30, 12)
	h.reportSlot(t, trn, opening[1], opening[1].Player1ID, 27, 20)

	if trn.CurrentRound != 2 {
		t.Fatalf("current round = %d, want the final", trn.CurrentRound)
	}
	if trn.activeCount() != 2 {
		t.Errorf("active players = %d, want 2", trn.activeCount())
	}

	h.engine.startCurrentRound(trn)
	final := trn.Bracket.Rounds[1].Matches[0]
	h.reportSlot(t, trn, final, final.Player1ID, 33, 28)

	if trn.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", trn.Status)
	}
	if completed == nil {
		t.Fatal("completion callback not invoked")
	}
	champion := trn.stats(final.Player1ID)
	if champion.Rank != 1 || champion.MatchesWon != 2 {
		t.Errorf("champion rank %d with %d wins, want rank 1 with 2 wins", champion.Rank, champion.MatchesWon)
	}
	if lb.Status == lobby.StatusTournamentInProgress {
		t.Error("lobby not released after the tournament")
	}
}

func TestSingleEliminationFinalGetsTiebreak(t *testing.T) {
	h := newHarness(t)
	lb := h.makeLobby(t, 4, protocol.FormatSingleElimination)
	trn, err := h.engine.Start("p1", lb.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	h.beginRound(trn)
	opening := trn.Bracket.Rounds[0].Matches
	semiMatch, _ := h.matches.Get(trn.matchBySlot[opening[0].ID])
	if h.engine.shouldTiebreak(semiMatch) {
		t.Error("semifinal offered a tiebreaker")
	}

	h.reportSlot(t, trn, opening[0], opening[0].Player1ID, 30, 12)
	h.reportSlot(t, trn, opening[1], opening[1].Player1ID, 27, 20)
	h.engine.startCurrentRound(trn)

	final := trn.Bracket.Rounds[1].Matches[0]
	finalMatch, _ := h.matches.Get(trn.matchBySlot[final.ID])
	if !h.engine.shouldTiebreak(finalMatch) {
		t.Error("terminal match with two survivors denied a tiebreaker")
	}
}

func TestTiedEliminationMatchAdvancesSomeone(t *testing.T) {
	h := newHarness(t)
	lb := h.makeLobby(t, 4, protocol.FormatSingleElimination)
	trn, err := h.engine.Start("p1", lb.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	h.beginRound(trn)

	slot := trn.Bracket.Rounds[0].Matches[0]
	h.reportSlot(t, trn, slot, "", 30, 30)

	if slot.Result.WinnerID != slot.Player1ID && slot.Result.WinnerID != slot.Player2ID {
		t.Errorf("tied slot advanced %q, want one of the two seats", slot.Result.WinnerID)
	}
	if len(trn.pendingWinners) != 1 {
		t.Errorf("pending winners = %v, want exactly one", trn.pendingWinners)
	}
}

func TestDoubleEliminationGrandFinal(t *testing.T) {
	h := newHarness(t)
	var completed *Tournament
	h.engine.SetOnCompleteCallback(func(trn *Tournament) { completed = trn })

	lb := h.makeLobby(t, 4, protocol.FormatDoubleElimination)
	trn, err := h.engine.Start("p1", lb.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	h.beginRound(trn)
	opening := trn.Bracket.Rounds[0].Matches
	a, b := opening[0].Player1ID, opening[0].Player2ID
	c, d := opening[1].Player1ID, opening[1].Player2ID

	h.reportSlot(t, trn, opening[0], a, 30, 12)
	h.reportSlot(t, trn, opening[1], c, 27, 20)

	// Round 2: winners final a vs c in parallel with losers match b vs d.
	if trn.CurrentRound != 2 {
		t.Fatalf("current round = %d, want 2", trn.CurrentRound)
	}
	if len(trn.Bracket.LosersRounds) != 1 {
		t.Fatalf("losers bracket not created")
	}
	h.engine.startCurrentRound(trn)

	winnersFinal := trn.Bracket.Rounds[1].Matches[0]
	losersMatch := trn.Bracket.LosersRounds[0].Matches[0]
	if losersMatch.Player1ID != b || losersMatch.Player2ID != d {
		t.Fatalf("losers match seats %s vs %s, want %s vs %s", losersMatch.Player1ID, losersMatch.Player2ID, b, d)
	}

	h.reportSlot(t, trn, winnersFinal, a, 33, 25)
	h.reportSlot(t, trn, losersMatch, b, 29, 18)

	if trn.stats(d) == nil || !trn.stats(d).Eliminated {
		t.Error("second loss did not eliminate the losers-bracket loser")
	}
	if trn.stats(c).Eliminated {
		t.Error("first loss eliminated a winners-bracket player")
	}

	// Round 3: losers final b vs c, a waits on a bye.
	h.engine.startCurrentRound(trn)
	losersFinal := trn.Bracket.LosersRounds[1].Matches[0]
	h.reportSlot(t, trn, losersFinal, b, 31, 22)

	// Round 4: grand final a vs b, winner takes all.
	if !trn.grandFinal {
		t.Fatal("grand final not armed")
	}
	h.engine.startCurrentRound(trn)
	grandFinal := trn.Bracket.Rounds[2].Matches[0]
	if !grandFinal.GrandFinal {
		t.Fatal("final slot not flagged as grand final")
	}
	if grandFinal.Player1ID != a || grandFinal.Player2ID != b {
		t.Fatalf("grand final seats %s vs %s, want %s vs %s", grandFinal.Player1ID, grandFinal.Player2ID, a, b)
	}

	h.reportSlot(t, trn, grandFinal, b, 24, 30)

	if trn.Status != StatusCompleted || completed == nil {
		t.Fatal("tournament did not complete after the grand final")
	}
	if trn.stats(b).Rank != 1 {
		t.Errorf("grand final winner rank = %d, want 1", trn.stats(b).Rank)
	}
}

func TestRoundRobinStandings(t *testing.T) {
	h := newHarness(t)
	lb := h.makeLobby(t, 4, protocol.FormatRoundRobin)
	trn, err := h.engine.Start("p1", lb.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if trn.TotalRounds != 3 {
		t.Errorf("total rounds = %d, want 3", trn.TotalRounds)
	}

	h.beginRound(trn)
	for round := 0; round < 3; round++ {
		for _, slot := range trn.Bracket.Rounds[round].Matches {
			// Lexicographically smaller seat always wins.
			winner := slot.Player1ID
			if slot.Player2ID < winner {
				winner = slot.Player2ID
			}
			s1, s2 := 30, 15
			if winner == slot.Player2ID {
				s1, s2 = 15, 30
			}
			h.reportSlot(t, trn, slot, winner, s1, s2)
		}
		if round < 2 {
			if trn.CurrentRound != round+2 {
				t.Fatalf("after round %d current round = %d, want %d", round+1, trn.CurrentRound, round+2)
			}
			h.engine.startCurrentRound(trn)
		}
	}

	if trn.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", trn.Status)
	}
	if got := trn.stats("p1").Rank; got != 1 {
		t.Errorf("p1 rank = %d, want 1 with three wins", got)
	}
	for _, p := range trn.Players {
		if p.Eliminated {
			t.Errorf("round robin eliminated %s", p.Player.ID)
		}
		if p.MatchesPlayed != 3 {
			t.Errorf("%s played %d matches, want 3", p.Player.ID, p.MatchesPlayed)
		}
	}
}
