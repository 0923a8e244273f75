package tournament

import (
	"errors"
	"log"
	"math/rand"
	"sort"
	"time"

	"trust-platform/backend/internal/protocol"
	"trust-platform/backend/internal/server/broadcast"
	"trust-platform/backend/internal/server/dispatch"
	"trust-platform/backend/internal/server/lobby"
	"trust-platform/backend/internal/server/match"

	"github.com/google/uuid"
)

// Timing constants for tournament progression.
const (
	phaseStagger    = 100 * time.Millisecond
	interRoundPause = 10 * time.Second
	matchStartDelay = time.Second
	retention       = 5 * time.Minute
)

var (
	ErrLobbyNotFound        = errors.New("lobby not found")
	ErrNotHost              = errors.New("only the host can start the tournament")
	ErrTournamentInProgress = errors.New("tournament already in progress")
	ErrFormatUnsupported    = errors.New("unsupported tournament format")
	ErrInvalidSize          = errors.New("invalid tournament size")
	ErrInsufficientPlayers  = errors.New("not enough players")
)

var eliminationSizes = map[int]bool{4: true, 8: true, 16: true}

// Engine runs tournaments from bracket generation to final ranking. It
// drives the match engine for individual games and reports progress through
// the broadcaster, addressing players by their tournament player ids.
type Engine struct {
	loop    *dispatch.Loop
	bc      *broadcast.Broadcaster
	matches *match.Engine
	lobbies *lobby.Manager

	tournaments map[string]*Tournament

	onComplete func(t *Tournament)
}

func NewEngine(loop *dispatch.Loop, bc *broadcast.Broadcaster, matches *match.Engine, lobbies *lobby.Manager) *Engine {
	e := &Engine{
		loop:        loop,
		bc:          bc,
		matches:     matches,
		lobbies:     lobbies,
		tournaments: make(map[string]*Tournament),
	}
	matches.SetOnTournamentResultCallback(e.handleMatchResult)
	matches.SetTieCheckCallback(e.shouldTiebreak)
	matches.SetTournamentActiveCallback(func(tournamentID string) bool {
		t, ok := e.tournaments[tournamentID]
		return ok && t.Status != StatusCompleted
	})
	return e
}

// SetOnCompleteCallback registers the persistence hook invoked when a
// tournament finishes.
func (e *Engine) SetOnCompleteCallback(fn func(t *Tournament)) {
	e.onComplete = fn
}

// Get returns a tournament by id.
func (e *Engine) Get(tournamentID string) (*Tournament, bool) {
	t, ok := e.tournaments[tournamentID]
	return t, ok
}

// Start validates the lobby and launches a tournament. TOURNAMENT_STARTED
// reaches every participant before any TOURNAMENT_MATCH_READY; a scheduler
// stagger enforces the ordering.
func (e *Engine) Start(hostClientID, lobbyID string) (*Tournament, error) {
	lb, ok := e.lobbies.Get(lobbyID)
	if !ok {
		return nil, ErrLobbyNotFound
	}
	if lb.HostClientID != hostClientID {
		return nil, ErrNotHost
	}
	if lb.Status == lobby.StatusTournamentInProgress {
		return nil, ErrTournamentInProgress
	}

	n := lb.PlayerCount()
	if n < 4 {
		return nil, ErrInsufficientPlayers
	}
	switch lb.Settings.TournamentFormat {
	case protocol.FormatSingleElimination, protocol.FormatDoubleElimination:
		if !eliminationSizes[n] {
			return nil, ErrInvalidSize
		}
	case protocol.FormatRoundRobin:
		if n < 4 || n > 16 {
			return nil, ErrInvalidSize
		}
	default:
		return nil, ErrFormatUnsupported
	}

	t := &Tournament{
		ID:           uuid.New().String(),
		LobbyID:      lobbyID,
		Format:       lb.Settings.TournamentFormat,
		CurrentRound: 1,
		TotalRounds:  totalRoundsFor(lb.Settings.TournamentFormat, n),
		Status:       StatusStarting,
		StartedAt:    time.Now(),
		Settings:     lb.Settings,
		playersByID:  make(map[string]*PlayerStats),
		slotByMatch:  make(map[string]*BracketMatch),
		matchBySlot:  make(map[string]string),
	}
	for _, p := range lb.Participants {
		stats := &PlayerStats{
			Player: protocol.Player{ID: p.ID, Name: p.Name},
			Status: PlayerActive,
		}
		t.Players = append(t.Players, stats)
		t.playersByID[p.ID] = stats
	}

	switch t.Format {
	case protocol.FormatRoundRobin:
		t.Bracket = generateRoundRobinBracket(t.ID, t.PlayerIDs())
	default:
		t.Bracket = generateEliminationBracket(t.ID, t.PlayerIDs())
		if t.Format == protocol.FormatDoubleElimination {
			t.byeWinners = t.Bracket.ByePlayerID
			t.Bracket.ByePlayerID = ""
		}
	}

	e.tournaments[t.ID] = t
	e.lobbies.MarkTournamentStarted(lobbyID, t.ID)
	log.Printf("[TOURNAMENT] %s started: %s, %d players, %d rounds", t.ID, t.Format, n, t.TotalRounds)

	e.bc.ToClients(t.PlayerIDs(), protocol.TypeTournamentStarted, map[string]interface{}{
		"tournament": t,
		"lobbyId":    lobbyID,
	})

	tournamentID := t.ID
	e.loop.After(phaseStagger, func() {
		tt, ok := e.tournaments[tournamentID]
		if !ok || tt.Status == StatusCompleted {
			return
		}
		tt.Status = StatusInProgress
		e.startCurrentRound(tt)
	})
	return t, nil
}

// startCurrentRound instantiates engine matches for every scheduled slot at
// the current round index.
func (e *Engine) startCurrentRound(t *Tournament) {
	e.bc.ToClients(t.PlayerIDs(), protocol.TypeTournamentRoundStarted, map[string]interface{}{
		"tournamentId": t.ID,
		"round":        t.CurrentRound,
		"totalRounds":  t.TotalRounds,
	})

	for _, round := range t.currentRounds() {
		for _, slot := range round.Matches {
			if slot.Status != SlotScheduled || slot.IsBye() {
				continue
			}
			e.startSlot(t, slot)
		}
	}
}

func (e *Engine) startSlot(t *Tournament, slot *BracketMatch) {
	p1 := t.stats(slot.Player1ID)
	p2 := t.stats(slot.Player2ID)
	if p1 == nil || p2 == nil {
		log.Printf("[TOURNAMENT] %s slot %s references unknown players", t.ID, slot.ID)
		return
	}

	m := e.matches.CreateTournamentMatch(t.ID, p1.Player.ID, p1.Player, p2.Player.ID, p2.Player, t.Settings.RoundCount)
	slot.Status = SlotInProgress
	t.slotByMatch[m.ID] = slot
	t.matchBySlot[slot.ID] = m.ID

	e.bc.ToClient(p1.Player.ID, protocol.TypeTournamentMatchReady, map[string]interface{}{
		"matchId":      m.ID,
		"tournamentId": t.ID,
		"round":        t.CurrentRound,
		"opponent":     p2.Player,
		"maxRounds":    t.Settings.RoundCount,
	})
	e.bc.ToClient(p2.Player.ID, protocol.TypeTournamentMatchReady, map[string]interface{}{
		"matchId":      m.ID,
		"tournamentId": t.ID,
		"round":        t.CurrentRound,
		"opponent":     p1.Player,
		"maxRounds":    t.Settings.RoundCount,
	})

	e.matches.Start(m.ID, matchStartDelay)
}

// shouldTiebreak is consulted by the match engine when a tournament match
// ends tied. Only the terminal single-elimination match gets a best-of-3
// block; other formats permit ties.
func (e *Engine) shouldTiebreak(m *match.Match) bool {
	t, ok := e.tournaments[m.TournamentID]
	if !ok {
		return false
	}
	return t.Format == protocol.FormatSingleElimination && t.activeCount() == 2
}

// handleMatchResult writes the outcome back onto the bracket slot, updates
// the scoreboard, and advances the round if it is now complete.
func (e *Engine) handleMatchResult(m *match.Match, result match.Result) {
	t, ok := e.tournaments[m.TournamentID]
	if !ok || t.Status == StatusCompleted {
		return
	}
	slot, ok := t.slotByMatch[m.ID]
	if !ok || slot.Status == SlotCompleted {
		return
	}

	winnerID := result.WinnerClientID
	if winnerID == "" && t.Format != protocol.FormatRoundRobin {
		// Elimination brackets need someone to advance from a tied
		// non-terminal match.
		if rand.Intn(2) == 0 {
			winnerID = result.Player1ID
		} else {
			winnerID = result.Player2ID
		}
		log.Printf("[TOURNAMENT] %s slot %s tied, advancing %s by draw", t.ID, slot.ID, winnerID)
	}

	slot.Status = SlotCompleted
	slot.Result = &BracketResult{
		WinnerID:     winnerID,
		Player1Score: result.Player1Score,
		Player2Score: result.Player2Score,
		CompletedAt:  time.Now(),
	}

	e.updateStats(t, result, winnerID)
	e.recordAdvancement(t, slot, winnerID)

	e.bc.ToClients(t.PlayerIDs(), protocol.TypeTournamentMatchCompleted, map[string]interface{}{
		"tournamentId": t.ID,
		"matchId":      slot.ID,
		"winnerId":     winnerID,
		"scores": map[string]int{
			slot.Player1ID: result.Player1Score,
			slot.Player2ID: result.Player2Score,
		},
	})

	if slot.GrandFinal {
		e.complete(t, winnerID)
		return
	}
	if t.roundComplete() {
		e.advanceRound(t)
	}
}

func (e *Engine) updateStats(t *Tournament, result match.Result, winnerID string) {
	p1 := t.stats(result.Player1ID)
	p2 := t.stats(result.Player2ID)
	if p1 != nil {
		p1.recordMatch(result.Player1Score, result.P1Cooperations, result.P1Betrayals,
			winnerID == result.Player1ID, winnerID == result.Player2ID)
	}
	if p2 != nil {
		p2.recordMatch(result.Player2Score, result.P2Cooperations, result.P2Betrayals,
			winnerID == result.Player2ID, winnerID == result.Player1ID)
	}
}

// recordAdvancement applies per-format elimination bookkeeping for one
// completed slot.
func (e *Engine) recordAdvancement(t *Tournament, slot *BracketMatch, winnerID string) {
	loserID := slot.Player1ID
	if loserID == winnerID {
		loserID = slot.Player2ID
	}

	switch t.Format {
	case protocol.FormatSingleElimination:
		t.pendingWinners = append(t.pendingWinners, winnerID)
		t.eliminate(loserID)

	case protocol.FormatDoubleElimination:
		if slot.LosersBracket {
			t.pendingLoserWinners = append(t.pendingLoserWinners, winnerID)
			loser := t.stats(loserID)
			if loser != nil {
				loser.Losses++
			}
			t.eliminate(loserID)
		} else {
			t.pendingWinners = append(t.pendingWinners, winnerID)
			loser := t.stats(loserID)
			if loser != nil {
				loser.Losses++
				if loser.Losses >= 2 {
					t.eliminate(loserID)
				} else {
					t.pendingDropdowns = append(t.pendingDropdowns, loserID)
				}
			}
		}

	case protocol.FormatRoundRobin:
		// No elimination; standings decide at the end.
	}
}

// advanceRound builds and schedules the next round, or completes the
// tournament when the format says it is over.
func (e *Engine) advanceRound(t *Tournament) {
	switch t.Format {
	case protocol.FormatSingleElimination:
		e.advanceSingleElim(t)
	case protocol.FormatDoubleElimination:
		e.advanceDoubleElim(t)
	case protocol.FormatRoundRobin:
		e.advanceRoundRobin(t)
	}
}

func (e *Engine) advanceSingleElim(t *Tournament) {
	next := t.pendingWinners
	t.pendingWinners = nil
	if t.Bracket.ByePlayerID != "" {
		next = append(next, t.Bracket.ByePlayerID)
		t.Bracket.ByePlayerID = ""
	}

	if len(next) == 1 {
		e.complete(t, next[0])
		return
	}

	round, bye := pairRound(t.ID, t.CurrentRound+1, next, false)
	t.Bracket.Rounds = append(t.Bracket.Rounds, round)
	t.Bracket.ByePlayerID = bye
	t.CurrentRound++
	e.scheduleRoundStart(t)
}

func (e *Engine) advanceDoubleElim(t *Tournament) {
	winnersNext := t.pendingWinners
	t.pendingWinners = nil
	if t.byeWinners != "" {
		winnersNext = append(winnersNext, t.byeWinners)
		t.byeWinners = ""
	}

	losersNext := append(t.pendingLoserWinners, t.pendingDropdowns...)
	t.pendingLoserWinners = nil
	t.pendingDropdowns = nil
	if t.byeLosers != "" {
		losersNext = append(losersNext, t.byeLosers)
		t.byeLosers = ""
	}

	if len(winnersNext) == 1 && len(losersNext) == 0 {
		e.complete(t, winnersNext[0])
		return
	}
	if len(winnersNext) == 1 && len(losersNext) == 1 {
		// Grand final, winner takes all.
		t.grandFinal = true
		round := &Round{Number: t.CurrentRound + 1}
		round.Matches = append(round.Matches, &BracketMatch{
			ID:         newSlotID(t.ID, t.CurrentRound+1, 0, false),
			Round:      t.CurrentRound + 1,
			Player1ID:  winnersNext[0],
			Player2ID:  losersNext[0],
			Status:     SlotScheduled,
			GrandFinal: true,
		})
		t.Bracket.Rounds = append(t.Bracket.Rounds, round)
		t.CurrentRound++
		e.scheduleRoundStart(t)
		return
	}

	nextRound := t.CurrentRound + 1
	if len(winnersNext) >= 2 {
		round, bye := pairRound(t.ID, nextRound, winnersNext, false)
		t.Bracket.Rounds = append(t.Bracket.Rounds, round)
		t.byeWinners = bye
	} else if len(winnersNext) == 1 {
		t.byeWinners = winnersNext[0]
	}
	if len(losersNext) >= 2 {
		round, bye := pairRound(t.ID, nextRound, losersNext, true)
		t.Bracket.LosersRounds = append(t.Bracket.LosersRounds, round)
		t.byeLosers = bye
	} else if len(losersNext) == 1 {
		t.byeLosers = losersNext[0]
	}
	t.CurrentRound = nextRound
	e.scheduleRoundStart(t)
}

func (e *Engine) advanceRoundRobin(t *Tournament) {
	if t.CurrentRound >= len(t.Bracket.Rounds) {
		e.completeRoundRobin(t)
		return
	}
	t.CurrentRound++
	e.scheduleRoundStart(t)
}

func (e *Engine) scheduleRoundStart(t *Tournament) {
	tournamentID := t.ID
	log.Printf("[TOURNAMENT] %s advancing to round %d in %s", t.ID, t.CurrentRound, interRoundPause)
	e.loop.After(interRoundPause, func() {
		tt, ok := e.tournaments[tournamentID]
		if !ok || tt.Status != StatusInProgress {
			return
		}
		e.startCurrentRound(tt)
	})
}

// complete finishes an elimination tournament with the given champion.
// Remaining ranks are assigned by descending match wins.
func (e *Engine) complete(t *Tournament, championID string) {
	champion := t.stats(championID)
	if champion != nil {
		champion.Rank = 1
	}

	rest := make([]*PlayerStats, 0, len(t.Players))
	for _, p := range t.Players {
		if p.Player.ID != championID {
			rest = append(rest, p)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].MatchesWon > rest[j].MatchesWon
	})
	for i, p := range rest {
		p.Rank = i + 2
	}

	e.finish(t, champion, nil)
}

// completeRoundRobin ranks the field by wins then total score.
func (e *Engine) completeRoundRobin(t *Tournament) {
	standings := make([]*PlayerStats, len(t.Players))
	copy(standings, t.Players)
	sort.SliceStable(standings, func(i, j int) bool {
		if standings[i].MatchesWon != standings[j].MatchesWon {
			return standings[i].MatchesWon > standings[j].MatchesWon
		}
		return standings[i].TotalPoints > standings[j].TotalPoints
	})
	for i, p := range standings {
		p.Rank = i + 1
	}

	e.finish(t, standings[0], standings)
}

func (e *Engine) finish(t *Tournament, winner *PlayerStats, standings []*PlayerStats) {
	now := time.Now()
	t.Status = StatusCompleted
	t.EndedAt = &now

	payload := map[string]interface{}{
		"tournament": t,
	}
	if winner != nil {
		payload["winner"] = winner
		log.Printf("[TOURNAMENT] %s completed, winner %s", t.ID, winner.Player.ID)
	}
	if standings != nil {
		payload["standings"] = standings
	}
	e.bc.ToClients(t.PlayerIDs(), protocol.TypeTournamentCompleted, payload)

	e.lobbies.MarkTournamentFinished(t.LobbyID)
	if e.onComplete != nil {
		e.onComplete(t)
	}

	tournamentID := t.ID
	e.loop.After(retention, func() {
		delete(e.tournaments, tournamentID)
	})
}
