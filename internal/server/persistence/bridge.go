package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"trust-platform/backend/internal/auth"
	"trust-platform/backend/internal/models"
	"trust-platform/backend/internal/server/lobby"
	"trust-platform/backend/internal/server/match"
	"trust-platform/backend/internal/server/tournament"
	"trust-platform/backend/internal/stats"

	"github.com/google/uuid"
)

// writeTimeout bounds one persistence operation including its retries.
const writeTimeout = 2 * time.Minute

// statsDeltaOp is the offline-queue encoding of a stats update.
type statsDeltaOp struct {
	UserID string           `json:"userId"`
	Delta  stats.MatchDelta `json:"delta"`
}

// tournamentOp is the offline-queue encoding of a tournament record write.
type tournamentOp struct {
	Record models.TournamentRecord        `json:"record"`
	Slots  []models.TournamentMatchRecord `json:"slots"`
}

// Bridge translates terminal game events into persistent records. All entry
// points return immediately; writes run on their own goroutines with retry
// and fall back to the durable offline queue, so the game loop never waits
// on the database.
type Bridge struct {
	store   Store
	offline *OfflineQueue
}

func NewBridge(store Store, offline *OfflineQueue) *Bridge {
	b := &Bridge{store: store, offline: offline}
	if offline != nil {
		offline.SetReplayHandler(b.replayOperation)
	}
	return b
}

// SaveMatchResult records a finished match. Client ids double as session
// tokens; guests and unresolvable tokens are skipped, and the row is written
// only when both sides resolve to persistent users.
func (b *Bridge) SaveMatchResult(result match.Result) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		p1UserID := b.resolveUser(ctx, result.Player1ID)
		p2UserID := b.resolveUser(ctx, result.Player2ID)
		if p1UserID == "" || p2UserID == "" {
			log.Printf("[PERSIST] Match %s involves guests, skipping history write", result.MatchID)
			return
		}

		var winnerID *string
		switch result.Winner {
		case "player1":
			winnerID = &p1UserID
		case "player2":
			winnerID = &p2UserID
		}

		rec := &models.GameHistory{
			ID:           uuid.New().String(),
			Player1ID:    p1UserID,
			Player2ID:    p2UserID,
			Player1Score: result.Player1Score,
			Player2Score: result.Player2Score,
			WinnerID:     winnerID,
			GameMode:     result.GameMode,
			RoundsPlayed: result.RoundsPlayed,
			GameDuration: result.Duration.Milliseconds(),
		}
		b.writeOrQueue(ctx, OpGameHistory, fmt.Sprintf("game history %s", rec.ID), rec, func(ctx context.Context) error {
			return b.store.SaveGameHistory(ctx, rec)
		})

		deltas := []statsDeltaOp{
			{UserID: p1UserID, Delta: stats.MatchDelta{
				Score:        result.Player1Score,
				Won:          result.Winner == "player1",
				Lost:         result.Winner == "player2",
				Cooperations: result.P1Cooperations,
				Betrayals:    result.P1Betrayals,
			}},
			{UserID: p2UserID, Delta: stats.MatchDelta{
				Score:        result.Player2Score,
				Won:          result.Winner == "player2",
				Lost:         result.Winner == "player1",
				Cooperations: result.P2Cooperations,
				Betrayals:    result.P2Betrayals,
			}},
		}
		for _, d := range deltas {
			d := d
			b.writeOrQueue(ctx, OpStatsDelta, fmt.Sprintf("stats delta %s", d.UserID), d, func(ctx context.Context) error {
				return b.store.ApplyStatsDelta(ctx, d.UserID, d.Delta)
			})
		}
	}()
}

// SaveTournament snapshots a tournament and its bracket slots.
func (b *Bridge) SaveTournament(t *tournament.Tournament, lobbyCode string) {
	rec := models.TournamentRecord{
		ID:          t.ID,
		LobbyCode:   lobbyCode,
		Format:      t.Format,
		Status:      t.Status,
		PlayerCount: len(t.Players),
		TotalRounds: t.TotalRounds,
		StartedAt:   t.StartedAt,
		CompletedAt: t.EndedAt,
	}
	if t.Status == tournament.StatusCompleted {
		for _, p := range t.Players {
			if p.Rank == 1 {
				id := p.Player.ID
				rec.WinnerID = &id
				break
			}
		}
	}

	var slots []models.TournamentMatchRecord
	for _, round := range append(append([]*tournament.Round{}, t.Bracket.Rounds...), t.Bracket.LosersRounds...) {
		for _, bm := range round.Matches {
			if bm.IsBye() {
				continue
			}
			slot := models.TournamentMatchRecord{
				ID:           bm.ID,
				TournamentID: t.ID,
				RoundNumber:  bm.Round,
				Player1ID:    bm.Player1ID,
				Player2ID:    bm.Player2ID,
				Status:       bm.Status,
			}
			if bm.Result != nil {
				slot.Player1Score = bm.Result.Player1Score
				slot.Player2Score = bm.Result.Player2Score
				if bm.Result.WinnerID != "" {
					w := bm.Result.WinnerID
					slot.WinnerID = &w
				}
				completedAt := bm.Result.CompletedAt
				slot.CompletedAt = &completedAt
			}
			slots = append(slots, slot)
		}
	}

	op := tournamentOp{Record: rec, Slots: slots}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		b.writeOrQueue(ctx, OpTournament, fmt.Sprintf("tournament %s", rec.ID), op, func(ctx context.Context) error {
			return b.store.SaveTournament(ctx, &op.Record, op.Slots)
		})
	}()
}

// SaveChatMessage records one lobby chat line.
func (b *Bridge) SaveChatMessage(lobbyCode, senderID, message string) {
	msg := models.TournamentChatMessage{
		LobbyCode: lobbyCode,
		SenderID:  senderID,
		Message:   message,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		b.writeOrQueue(ctx, OpChatMessage, "chat message", msg, func(ctx context.Context) error {
			return b.store.SaveChatMessage(ctx, &msg)
		})
	}()
}

// SaveLobbySnapshot mirrors a lobby's live state into the database. Each
// snapshot supersedes the previous one, so a failed write is logged rather
// than queued; replaying a stale snapshot after downtime would resurrect
// lobbies that no longer exist.
func (b *Bridge) SaveLobbySnapshot(lb *lobby.Lobby) {
	rec := &models.PartyLobby{
		Code:        lb.Code,
		HostID:      lb.HostClientID,
		Status:      lb.Status,
		MaxPlayers:  lb.Settings.MaxPlayers,
		RoundCount:  lb.Settings.RoundCount,
		Format:      lb.Settings.TournamentFormat,
		PlayerCount: lb.PlayerCount(),
	}
	participants := make([]models.PartyLobbyParticipant, 0, len(lb.Participants))
	for _, p := range lb.Participants {
		participants = append(participants, models.PartyLobbyParticipant{
			LobbyCode: lb.Code,
			PlayerID:  p.ID,
			Name:      p.Name,
			IsHost:    p.IsHost,
			Status:    p.Status,
		})
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		err := withRetry(ctx, fmt.Sprintf("lobby snapshot %s", rec.Code), func(ctx context.Context) error {
			return b.store.SaveLobbySnapshot(ctx, rec, participants)
		})
		if err != nil {
			log.Printf("[PERSIST] Dropping lobby snapshot %s: %v", rec.Code, err)
		}
	}()
}

// ReleaseLobby removes a deleted lobby's snapshot.
func (b *Bridge) ReleaseLobby(code string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		err := withRetry(ctx, fmt.Sprintf("lobby release %s", code), func(ctx context.Context) error {
			return b.store.ReleaseLobby(ctx, code)
		})
		if err != nil {
			log.Printf("[PERSIST] Failed to release lobby %s: %v", code, err)
		}
	}()
}

// resolveUser maps a client id (session token) to a user id, or "" for
// guests and unknown tokens.
func (b *Bridge) resolveUser(ctx context.Context, clientID string) string {
	if clientID == "" || auth.IsGuestToken(clientID) {
		return ""
	}
	userID, err := b.store.ResolveUserID(ctx, clientID)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			log.Printf("[PERSIST] Failed to resolve session for %s: %v", clientID, err)
		}
		return ""
	}
	return userID
}

// writeOrQueue runs one write under the retry policy, falling back to the
// offline queue when retries are exhausted.
func (b *Bridge) writeOrQueue(ctx context.Context, kind, desc string, payload interface{}, fn func(ctx context.Context) error) {
	if err := withRetry(ctx, desc, fn); err != nil {
		if b.offline == nil {
			log.Printf("[PERSIST] Dropping %s after exhausted retries: %v", desc, err)
			return
		}
		if qerr := b.offline.Enqueue(kind, payload); qerr != nil {
			log.Printf("[PERSIST] Failed to queue %s offline: %v", desc, qerr)
		}
	}
}

// replayOperation re-applies one offline-queued write.
func (b *Bridge) replayOperation(kind string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	switch kind {
	case OpGameHistory:
		var rec models.GameHistory
		if err := json.Unmarshal(payload, &rec); err != nil {
			return fmt.Errorf("corrupt %s payload: %w", kind, err)
		}
		return b.store.SaveGameHistory(ctx, &rec)
	case OpStatsDelta:
		var op statsDeltaOp
		if err := json.Unmarshal(payload, &op); err != nil {
			return fmt.Errorf("corrupt %s payload: %w", kind, err)
		}
		return b.store.ApplyStatsDelta(ctx, op.UserID, op.Delta)
	case OpTournament:
		var op tournamentOp
		if err := json.Unmarshal(payload, &op); err != nil {
			return fmt.Errorf("corrupt %s payload: %w", kind, err)
		}
		return b.store.SaveTournament(ctx, &op.Record, op.Slots)
	case OpChatMessage:
		var msg models.TournamentChatMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("corrupt %s payload: %w", kind, err)
		}
		return b.store.SaveChatMessage(ctx, &msg)
	}
	return fmt.Errorf("unknown offline operation kind %q", kind)
}
