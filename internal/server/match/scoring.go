package match

import "trust-platform/backend/internal/protocol"

// RoundDecisions holds both decisions and scores for one round. Decisions
// only mutate during the reversal selection phase; after any mutation the
// whole match is rescored from scratch.
type RoundDecisions struct {
	P1Decision string `json:"p1Decision"`
	P2Decision string `json:"p2Decision"`
	P1Score    int    `json:"p1Score"`
	P2Score    int    `json:"p2Score"`
}

// Complete reports whether both sides have decided.
func (r *RoundDecisions) Complete() bool {
	return r.P1Decision != "" && r.P2Decision != ""
}

// ScoreRound applies the payoff matrix to one decision pair.
//
//	C/C -> 3/3   C/B -> 0/5
//	B/C -> 5/0   B/B -> 1/1
func ScoreRound(p1, p2 string) (int, int) {
	switch {
	case p1 == protocol.DecisionCooperate && p2 == protocol.DecisionCooperate:
		return 3, 3
	case p1 == protocol.DecisionCooperate && p2 == protocol.DecisionBetray:
		return 0, 5
	case p1 == protocol.DecisionBetray && p2 == protocol.DecisionCooperate:
		return 5, 0
	default:
		return 1, 1
	}
}

// RecomputeScores rescores every stored round from the payoff matrix and
// returns the new match totals. Used after reversal mutations, where an
// incremental delta would drift if a round were edited twice.
func RecomputeScores(rounds map[int]*RoundDecisions) (int, int) {
	totalP1, totalP2 := 0, 0
	for _, r := range rounds {
		if !r.Complete() {
			continue
		}
		r.P1Score, r.P2Score = ScoreRound(r.P1Decision, r.P2Decision)
		totalP1 += r.P1Score
		totalP2 += r.P2Score
	}
	return totalP1, totalP2
}

// DecisionCounts tallies cooperations and betrayals per side across all
// completed rounds, feeding tournament and user statistics.
func DecisionCounts(rounds map[int]*RoundDecisions) (p1Coop, p1Betray, p2Coop, p2Betray int) {
	for _, r := range rounds {
		switch r.P1Decision {
		case protocol.DecisionCooperate:
			p1Coop++
		case protocol.DecisionBetray:
			p1Betray++
		}
		switch r.P2Decision {
		case protocol.DecisionCooperate:
			p2Coop++
		case protocol.DecisionBetray:
			p2Betray++
		}
	}
	return
}
