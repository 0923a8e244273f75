package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// GuestPrefix marks session tokens that never hit the token validator.
const GuestPrefix = "guest_"

var ErrInvalidToken = errors.New("invalid token")

// Service issues and validates session tokens and password hashes.
type Service struct {
	jwtSecret []byte
}

func NewService(secret string) *Service {
	return &Service{jwtSecret: []byte(secret)}
}

func (s *Service) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

func (s *Service) CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func (s *Service) GenerateToken(userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	})
	return token.SignedString(s.jwtSecret)
}

func (s *Service) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		userID, ok := claims["user_id"].(string)
		if !ok {
			return "", errors.New("invalid token claims")
		}
		return userID, nil
	}

	return "", ErrInvalidToken
}

// IsGuestToken reports whether a session token identifies a guest. Guest
// tokens are accepted at REGISTER without a validator lookup.
func IsGuestToken(token string) bool {
	return strings.HasPrefix(token, GuestPrefix)
}

// ResolveSessionToken maps a REGISTER session token to a user id. Guests
// resolve to an empty user id without error.
func (s *Service) ResolveSessionToken(token string) (userID string, authenticated bool, err error) {
	if token == "" || IsGuestToken(token) {
		return "", false, nil
	}
	userID, err = s.ValidateToken(token)
	if err != nil {
		return "", false, err
	}
	return userID, true, nil
}

func GenerateID() string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
