package handlers

import (
	"net/http"
	"time"

	"trust-platform/backend/internal/auth"
	"trust-platform/backend/internal/db"
	"trust-platform/backend/internal/models"
	"trust-platform/backend/internal/validation"

	"github.com/gin-gonic/gin"
)

// sessionLifetime matches the JWT expiry so the sessions table and the token
// itself age out together.
const sessionLifetime = 24 * time.Hour

// HandleRegister handles user registration
func HandleRegister(c *gin.Context, database *db.DB, authService *auth.Service) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := validation.ValidateUsername(req.Username); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validation.ValidateEmail(req.Email); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := authService.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	userID := auth.GenerateID()
	user := models.User{
		ID:           userID,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	}

	if err := database.Create(&user).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username or email already exists"})
		return
	}

	token, err := issueSession(database, authService, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	user.PasswordHash = ""

	c.JSON(http.StatusCreated, models.AuthResponse{Token: token, User: user})
}

// HandleLogin handles user login
func HandleLogin(c *gin.Context, database *db.DB, authService *auth.Service) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var user models.User
	if err := database.Where("username = ?", req.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if !authService.CheckPassword(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := issueSession(database, authService, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	user.PasswordHash = ""

	c.JSON(http.StatusOK, models.AuthResponse{Token: token, User: user})
}

// issueSession mints a JWT and records it in the sessions table. The
// websocket REGISTER path and the persistence bridge both resolve tokens
// through that table.
func issueSession(database *db.DB, authService *auth.Service, userID string) (string, error) {
	token, err := authService.GenerateToken(userID)
	if err != nil {
		return "", err
	}
	session := models.Session{
		ID:        auth.GenerateID(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: time.Now().Add(sessionLifetime),
	}
	if err := database.Create(&session).Error; err != nil {
		return "", err
	}
	return token, nil
}

// HandleGetCurrentUser returns the current authenticated user
func HandleGetCurrentUser(c *gin.Context, database *db.DB) {
	userID := c.GetString("user_id")

	var user models.User
	if err := database.Where("id = ?", userID).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	user.PasswordHash = ""
	c.JSON(http.StatusOK, user)
}

// AuthMiddleware validates JWT tokens and sets user_id in context
func AuthMiddleware(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		token := authHeader[7:]
		userID, err := authService.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}
