package stats

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"trust-platform/backend/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "stats.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.UserStats{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewService(db)
}

func TestApplyMatchResultCreatesRow(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	err := s.ApplyMatchResult(ctx, "u1", MatchDelta{Score: 30, Won: true, Cooperations: 10})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, err := s.GetStats(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalGames != 1 || got.Wins != 1 || got.TotalScore != 30 {
		t.Errorf("stats = %+v, want one win worth 30", got)
	}
	if got.TrustScore != 100 {
		t.Errorf("trust score = %v, want 100 for all-cooperate", got.TrustScore)
	}
	if got.GamesThisWeek != 1 || got.GamesThisMonth != 1 {
		t.Errorf("period counters = %d/%d, want 1/1", got.GamesThisWeek, got.GamesThisMonth)
	}
}

func TestApplyMatchResultStreaks(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	apply := func(d MatchDelta) {
		t.Helper()
		if err := s.ApplyMatchResult(ctx, "u1", d); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	apply(MatchDelta{Score: 30, Won: true})
	apply(MatchDelta{Score: 25, Won: true})

	got, _ := s.GetStats(ctx, "u1")
	if got.CurrentWinStreak != 2 || got.LongestWinStreak != 2 {
		t.Fatalf("streaks = %d/%d after two wins, want 2/2", got.CurrentWinStreak, got.LongestWinStreak)
	}

	// A tie breaks the streak without counting as a loss.
	apply(MatchDelta{Score: 30})
	got, _ = s.GetStats(ctx, "u1")
	if got.CurrentWinStreak != 0 || got.Losses != 0 {
		t.Errorf("after tie: streak = %d, losses = %d, want 0/0", got.CurrentWinStreak, got.Losses)
	}

	apply(MatchDelta{Score: 12, Lost: true})
	apply(MatchDelta{Score: 30, Won: true})
	got, _ = s.GetStats(ctx, "u1")
	if got.CurrentWinStreak != 1 || got.LongestWinStreak != 2 || got.Losses != 1 {
		t.Errorf("stats = %+v, want streak 1, longest 2, one loss", got)
	}
	if got.TotalGames != 5 || got.Wins != 3 {
		t.Errorf("totals = %d games / %d wins, want 5/3", got.TotalGames, got.Wins)
	}
}

func TestApplyMatchResultDerivedRates(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	s.ApplyMatchResult(ctx, "u1", MatchDelta{Score: 40, Won: true, Cooperations: 2, Betrayals: 8})
	s.ApplyMatchResult(ctx, "u1", MatchDelta{Score: 10, Lost: true, Cooperations: 4, Betrayals: 6})

	got, err := s.GetStats(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.WinRate != 0.5 {
		t.Errorf("win rate = %v, want 0.5", got.WinRate)
	}
	if got.AverageScore != 25 {
		t.Errorf("average score = %v, want 25", got.AverageScore)
	}
	if got.BetrayalRate != 0.7 {
		t.Errorf("betrayal rate = %v, want 0.7", got.BetrayalRate)
	}
	if got.TrustScore != 30 {
		t.Errorf("trust score = %v, want 30", got.TrustScore)
	}
}

func TestGetStatsUnknownUser(t *testing.T) {
	s := newTestService(t)
	if _, err := s.GetStats(context.Background(), "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	// u1: 2/2 wins. u2: 1/2 wins. u3: 2/2 wins but lower total score.
	s.ApplyMatchResult(ctx, "u1", MatchDelta{Score: 30, Won: true})
	s.ApplyMatchResult(ctx, "u1", MatchDelta{Score: 30, Won: true})
	s.ApplyMatchResult(ctx, "u2", MatchDelta{Score: 50, Won: true})
	s.ApplyMatchResult(ctx, "u2", MatchDelta{Score: 0, Lost: true})
	s.ApplyMatchResult(ctx, "u3", MatchDelta{Score: 25, Won: true})
	s.ApplyMatchResult(ctx, "u3", MatchDelta{Score: 25, Won: true})

	rows, err := s.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].UserID != "u1" || rows[1].UserID != "u3" || rows[2].UserID != "u2" {
		t.Errorf("order = %s, %s, %s, want u1, u3, u2", rows[0].UserID, rows[1].UserID, rows[2].UserID)
	}
}

func TestLeaderboardSkipsIdleUsersAndClampsLimit(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	// A row with no games on record must not appear.
	if err := s.db.Create(&models.UserStats{UserID: "idle", TrustScore: 50}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	s.ApplyMatchResult(ctx, "active", MatchDelta{Score: 30, Won: true})

	rows, err := s.Leaderboard(ctx, 0)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 1 || rows[0].UserID != "active" {
		t.Errorf("rows = %+v, want only the active user", rows)
	}
}
