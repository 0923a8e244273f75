package migrations

import (
	"fmt"
	"log"

	"trust-platform/backend/internal/models"

	_ "github.com/go-sql-driver/mysql" // register the MySQL driver for DSN-based tooling
	"gorm.io/gorm"
)

// Run applies the schema for all platform models.
func Run(db *gorm.DB) error {
	targets := []interface{}{
		&models.User{},
		&models.Session{},
		&models.GameHistory{},
		&models.UserStats{},
		&models.TournamentRecord{},
		&models.TournamentMatchRecord{},
		&models.PartyLobby{},
		&models.PartyLobbyParticipant{},
		&models.TournamentChatMessage{},
		&models.OfflineOperation{},
	}

	for _, target := range targets {
		if err := db.AutoMigrate(target); err != nil {
			return fmt.Errorf("automigrate %T: %w", target, err)
		}
	}

	log.Printf("Applied schema for %d models", len(targets))
	return nil
}
