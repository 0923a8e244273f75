package tournament

import (
	"fmt"
	"testing"
)

func playerIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%d", i+1)
	}
	return ids
}

func TestGenerateEliminationBracket(t *testing.T) {
	for _, n := range []int{4, 8, 16} {
		t.Run(fmt.Sprintf("%d players", n), func(t *testing.T) {
			b := generateEliminationBracket("t1", playerIDs(n))
			if len(b.Rounds) != 1 {
				t.Fatalf("got %d rounds, want only the opening round", len(b.Rounds))
			}
			if got := len(b.Rounds[0].Matches); got != n/2 {
				t.Errorf("opening round has %d slots, want %d", got, n/2)
			}
			if b.ByePlayerID != "" {
				t.Errorf("even field produced a bye: %s", b.ByePlayerID)
			}

			seen := make(map[string]bool)
			for _, slot := range b.Rounds[0].Matches {
				if seen[slot.Player1ID] || seen[slot.Player2ID] {
					t.Errorf("player seated twice in the opening round")
				}
				seen[slot.Player1ID] = true
				seen[slot.Player2ID] = true
			}
			if len(seen) != n {
				t.Errorf("%d players seated, want %d", len(seen), n)
			}
		})
	}
}

func TestGenerateRoundRobinBracket(t *testing.T) {
	for _, n := range []int{4, 5, 8} {
		t.Run(fmt.Sprintf("%d players", n), func(t *testing.T) {
			b := generateRoundRobinBracket("t1", playerIDs(n))

			wantRounds := n - 1
			if n%2 == 1 {
				wantRounds = n
			}
			if len(b.Rounds) != wantRounds {
				t.Fatalf("got %d rounds, want %d", len(b.Rounds), wantRounds)
			}

			// Every pair meets exactly once, counting only playable slots.
			pairs := make(map[string]int)
			playable := 0
			for _, round := range b.Rounds {
				inRound := make(map[string]bool)
				for _, slot := range round.Matches {
					if inRound[slot.Player1ID] || inRound[slot.Player2ID] {
						t.Errorf("round %d seats a player twice", round.Number)
					}
					inRound[slot.Player1ID] = true
					inRound[slot.Player2ID] = true
					if slot.IsBye() {
						continue
					}
					playable++
					key := slot.Player1ID + "|" + slot.Player2ID
					if slot.Player2ID < slot.Player1ID {
						key = slot.Player2ID + "|" + slot.Player1ID
					}
					pairs[key]++
				}
			}
			if playable != roundRobinMatchCount(n) {
				t.Errorf("%d playable slots, want %d", playable, roundRobinMatchCount(n))
			}
			for key, count := range pairs {
				if count != 1 {
					t.Errorf("pair %s scheduled %d times", key, count)
				}
			}
		})
	}
}

func TestPairRoundOddCount(t *testing.T) {
	round, bye := pairRound("t1", 2, []string{"a", "b", "c"}, false)
	if bye != "c" {
		t.Errorf("bye = %q, want the trailing player", bye)
	}
	if len(round.Matches) != 1 {
		t.Fatalf("got %d slots, want 1", len(round.Matches))
	}
	slot := round.Matches[0]
	if slot.Player1ID != "a" || slot.Player2ID != "b" {
		t.Errorf("slot seats %s vs %s, want a vs b", slot.Player1ID, slot.Player2ID)
	}
}

func TestTotalRoundsFor(t *testing.T) {
	tests := []struct {
		format  string
		players int
		want    int
	}{
		{"single_elimination", 4, 2},
		{"single_elimination", 8, 3},
		{"single_elimination", 16, 4},
		{"double_elimination", 4, 4},
		{"double_elimination", 8, 6},
		{"round_robin", 4, 3},
		{"round_robin", 5, 5},
		{"round_robin", 8, 7},
		{"unknown", 8, 0},
	}
	for _, tt := range tests {
		if got := totalRoundsFor(tt.format, tt.players); got != tt.want {
			t.Errorf("totalRoundsFor(%s, %d) = %d, want %d", tt.format, tt.players, got, tt.want)
		}
	}
}

func TestRoundCompleteSkipsByes(t *testing.T) {
	round := &Round{
		Number: 1,
		Matches: []*BracketMatch{
			{Player1ID: "a", Player2ID: "b", Status: SlotCompleted},
			{Player1ID: "c", Player2ID: ByePlayerID, Status: SlotScheduled},
		},
	}
	if !round.Complete() {
		t.Error("round with only a bye outstanding reported incomplete")
	}
}

func TestPlayerStatsRecordMatch(t *testing.T) {
	s := &PlayerStats{}
	s.recordMatch(30, 10, 0, true, false)
	if s.CooperationRate != 1 || s.BetrayalRate != 0 {
		t.Errorf("rates = %f/%f, want 1/0", s.CooperationRate, s.BetrayalRate)
	}
	s.recordMatch(20, 5, 5, false, true)
	if s.MatchesPlayed != 2 || s.MatchesWon != 1 || s.MatchesLost != 1 {
		t.Errorf("record = %d played %d won %d lost", s.MatchesPlayed, s.MatchesWon, s.MatchesLost)
	}
	if s.CooperationRate != 0.75 {
		t.Errorf("cooperation rate = %f, want the match-weighted 0.75", s.CooperationRate)
	}
	if s.AverageMatchScore != 25 {
		t.Errorf("average score = %f, want 25", s.AverageMatchScore)
	}
}
