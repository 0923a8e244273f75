package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"trust-platform/backend/internal/db"
	"trust-platform/backend/internal/models"
	"trust-platform/backend/internal/stats"

	"github.com/gin-gonic/gin"
)

// HandleGetStats returns the authenticated user's aggregate statistics. A
// user with no games yet gets a zeroed scoreboard instead of a 404.
func HandleGetStats(c *gin.Context, statsService *stats.Service) {
	userID := c.GetString("user_id")

	userStats, err := statsService.GetStats(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, stats.ErrUserNotFound) {
			c.JSON(http.StatusOK, models.UserStats{UserID: userID, TrustScore: 50})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, userStats)
}

// HandleLeaderboard returns the top players by win rate.
func HandleLeaderboard(c *gin.Context, statsService *stats.Service) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	rows, err := statsService.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": rows})
}

// HandleGetHistory returns the authenticated user's recent matches, newest
// first.
func HandleGetHistory(c *gin.Context, database *db.DB) {
	userID := c.GetString("user_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var rows []models.GameHistory
	err := database.
		Where("player1_id = ? OR player2_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": rows})
}
