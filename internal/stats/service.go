package stats

import (
	"context"
	"errors"
	"fmt"

	"trust-platform/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrUserNotFound = errors.New("user not found")

// MatchDelta is one finished match from a single player's perspective.
type MatchDelta struct {
	Score        int
	Won          bool
	Lost         bool
	Cooperations int
	Betrayals    int
}

// Service maintains per-user aggregate statistics. Every update runs in a
// transaction with a row lock so concurrent match completions for the same
// user cannot lose increments.
type Service struct {
	db *gorm.DB
}

// NewService creates a new stats service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ApplyMatchResult folds one match outcome into a user's aggregates.
func (s *Service) ApplyMatchResult(ctx context.Context, userID string, delta MatchDelta) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.applyInTx(tx, userID, delta)
	})
}

func (s *Service) applyInTx(tx *gorm.DB, userID string, delta MatchDelta) error {
	// SQLite serialises writers on its own and rejects FOR UPDATE.
	q := tx
	if tx.Dialector.Name() == "mysql" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var stats models.UserStats
	err := q.First(&stats, "user_id = ?", userID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to lock stats row: %w", err)
		}
		stats = models.UserStats{UserID: userID, TrustScore: 50}
		if err := tx.Create(&stats).Error; err != nil {
			return fmt.Errorf("failed to create stats row: %w", err)
		}
	}

	// Weekly and monthly counters reset when the period rolls over relative
	// to the previous update.
	now := tx.NowFunc()
	if !stats.UpdatedAt.IsZero() {
		py, pw := stats.UpdatedAt.ISOWeek()
		cy, cw := now.ISOWeek()
		if py != cy || pw != cw {
			stats.GamesThisWeek = 0
		}
		if stats.UpdatedAt.Year() != now.Year() || stats.UpdatedAt.Month() != now.Month() {
			stats.GamesThisMonth = 0
		}
	}

	stats.TotalGames++
	stats.TotalScore += delta.Score
	stats.Cooperations += delta.Cooperations
	stats.Betrayals += delta.Betrayals
	stats.GamesThisWeek++
	stats.GamesThisMonth++

	switch {
	case delta.Won:
		stats.Wins++
		stats.CurrentWinStreak++
		if stats.CurrentWinStreak > stats.LongestWinStreak {
			stats.LongestWinStreak = stats.CurrentWinStreak
		}
	case delta.Lost:
		stats.Losses++
		stats.CurrentWinStreak = 0
	default:
		// Ties break the streak without counting as a loss.
		stats.CurrentWinStreak = 0
	}

	stats.WinRate = float64(stats.Wins) / float64(stats.TotalGames)
	stats.AverageScore = float64(stats.TotalScore) / float64(stats.TotalGames)
	if total := stats.Cooperations + stats.Betrayals; total > 0 {
		stats.BetrayalRate = float64(stats.Betrayals) / float64(total)
		stats.TrustScore = 100 * float64(stats.Cooperations) / float64(total)
	}

	if err := tx.Save(&stats).Error; err != nil {
		return fmt.Errorf("failed to update stats: %w", err)
	}
	return nil
}

// GetStats retrieves a user's aggregate statistics.
func (s *Service) GetStats(ctx context.Context, userID string) (*models.UserStats, error) {
	var stats models.UserStats
	if err := s.db.WithContext(ctx).First(&stats, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &stats, nil
}

// Leaderboard returns the top users by win rate, then total score.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]models.UserStats, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var rows []models.UserStats
	err := s.db.WithContext(ctx).
		Where("total_games > 0").
		Order("win_rate DESC, total_score DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return rows, nil
}
