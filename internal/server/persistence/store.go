package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trust-platform/backend/internal/models"
	"trust-platform/backend/internal/stats"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrSessionNotFound marks a session token with no backing user, which the
// bridge treats the same as a guest.
var ErrSessionNotFound = errors.New("session not found")

// Store is the data-access surface the bridge writes through. A GORM
// implementation backs production; tests supply a fake.
type Store interface {
	ResolveUserID(ctx context.Context, sessionToken string) (string, error)
	SaveGameHistory(ctx context.Context, rec *models.GameHistory) error
	ApplyStatsDelta(ctx context.Context, userID string, delta stats.MatchDelta) error
	SaveTournament(ctx context.Context, rec *models.TournamentRecord, slots []models.TournamentMatchRecord) error
	SaveChatMessage(ctx context.Context, msg *models.TournamentChatMessage) error
	SaveLobbySnapshot(ctx context.Context, lb *models.PartyLobby, participants []models.PartyLobbyParticipant) error
	ReleaseLobby(ctx context.Context, code string) error
}

// GormStore implements Store on the platform database.
type GormStore struct {
	db    *gorm.DB
	stats *stats.Service
}

func NewGormStore(db *gorm.DB, statsService *stats.Service) *GormStore {
	return &GormStore{db: db, stats: statsService}
}

// ResolveUserID maps a live session token to its user id.
func (s *GormStore) ResolveUserID(ctx context.Context, sessionToken string) (string, error) {
	var session models.Session
	err := s.db.WithContext(ctx).
		Where("token = ? AND expires_at > ?", sessionToken, time.Now()).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("failed to resolve session: %w", err)
	}
	return session.UserID, nil
}

func (s *GormStore) SaveGameHistory(ctx context.Context, rec *models.GameHistory) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to save game history: %w", err)
	}
	return nil
}

func (s *GormStore) ApplyStatsDelta(ctx context.Context, userID string, delta stats.MatchDelta) error {
	return s.stats.ApplyMatchResult(ctx, userID, delta)
}

func (s *GormStore) SaveTournament(ctx context.Context, rec *models.TournamentRecord, slots []models.TournamentMatchRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(rec).Error; err != nil {
			return fmt.Errorf("failed to save tournament: %w", err)
		}
		for i := range slots {
			if err := tx.Save(&slots[i]).Error; err != nil {
				return fmt.Errorf("failed to save tournament match: %w", err)
			}
		}
		return nil
	})
}

func (s *GormStore) SaveChatMessage(ctx context.Context, msg *models.TournamentChatMessage) error {
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to save chat message: %w", err)
	}
	return nil
}

// SaveLobbySnapshot upserts the lobby row and rewrites its member list.
func (s *GormStore) SaveLobbySnapshot(ctx context.Context, lb *models.PartyLobby, participants []models.PartyLobbyParticipant) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(lb).Error; err != nil {
			return fmt.Errorf("failed to save lobby snapshot: %w", err)
		}
		if err := tx.Where("lobby_code = ?", lb.Code).Delete(&models.PartyLobbyParticipant{}).Error; err != nil {
			return fmt.Errorf("failed to clear lobby participants: %w", err)
		}
		if len(participants) == 0 {
			return nil
		}
		if err := tx.Create(&participants).Error; err != nil {
			return fmt.Errorf("failed to save lobby participants: %w", err)
		}
		return nil
	})
}

// ReleaseLobby soft-deletes a lobby snapshot and removes its members.
func (s *GormStore) ReleaseLobby(ctx context.Context, code string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lobby_code = ?", code).Delete(&models.PartyLobbyParticipant{}).Error; err != nil {
			return fmt.Errorf("failed to clear lobby participants: %w", err)
		}
		if err := tx.Where("code = ?", code).Delete(&models.PartyLobby{}).Error; err != nil {
			return fmt.Errorf("failed to release lobby: %w", err)
		}
		return nil
	})
}
