package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"trust-platform/backend/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "store.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.PartyLobby{}, &models.PartyLobbyParticipant{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewGormStore(db, nil)
}

func TestGormStoreLobbySnapshotUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lb := &models.PartyLobby{
		Code:        "AAA111",
		HostID:      "host",
		Status:      "waiting_for_players",
		MaxPlayers:  8,
		RoundCount:  10,
		Format:      "single_elimination",
		PlayerCount: 1,
	}
	err := s.SaveLobbySnapshot(ctx, lb, []models.PartyLobbyParticipant{
		{LobbyCode: "AAA111", PlayerID: "host", Name: "Host", IsHost: true, Status: "ready"},
	})
	if err != nil {
		t.Fatalf("first snapshot: %v", err)
	}

	// A later snapshot replaces the row and the member list, not duplicates.
	lb.PlayerCount = 2
	lb.Status = "ready_to_start"
	err = s.SaveLobbySnapshot(ctx, lb, []models.PartyLobbyParticipant{
		{LobbyCode: "AAA111", PlayerID: "host", Name: "Host", IsHost: true, Status: "ready"},
		{LobbyCode: "AAA111", PlayerID: "p2", Name: "Two", Status: "waiting"},
	})
	if err != nil {
		t.Fatalf("second snapshot: %v", err)
	}

	var rows int64
	s.db.Model(&models.PartyLobby{}).Count(&rows)
	if rows != 1 {
		t.Errorf("lobby rows = %d, want 1", rows)
	}
	var got models.PartyLobby
	if err := s.db.First(&got, "code = ?", "AAA111").Error; err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if got.PlayerCount != 2 || got.Status != "ready_to_start" {
		t.Errorf("snapshot = %+v, want the updated state", got)
	}
	s.db.Model(&models.PartyLobbyParticipant{}).Count(&rows)
	if rows != 2 {
		t.Errorf("participant rows = %d, want 2", rows)
	}

	if err := s.ReleaseLobby(ctx, "AAA111"); err != nil {
		t.Fatalf("release: %v", err)
	}
	s.db.Model(&models.PartyLobby{}).Count(&rows)
	if rows != 0 {
		t.Errorf("lobby rows = %d after release, want 0", rows)
	}
	s.db.Model(&models.PartyLobbyParticipant{}).Count(&rows)
	if rows != 0 {
		t.Errorf("participant rows = %d after release, want 0", rows)
	}
}
