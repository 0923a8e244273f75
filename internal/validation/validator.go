package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Common validation errors
var (
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrInvalidUsername = errors.New("invalid username format")
	ErrWeakPassword    = errors.New("password too weak")
	ErrInvalidRange    = errors.New("value out of valid range")
	ErrInvalidEnum     = errors.New("invalid enum value")
	ErrInvalidCode     = errors.New("invalid game code format")
	ErrStringTooLong   = errors.New("string exceeds maximum length")
	ErrStringTooShort  = errors.New("string below minimum length")
)

// Regex patterns for validation
var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)
	codeRegex     = regexp.MustCompile(`^[A-Z0-9]{6}$`)
)

// Lobby and match configuration bounds
const (
	MinLobbyPlayers = 4
	MaxLobbyPlayers = 16
	MinRoundCount   = 5
	MaxRoundCount   = 20
	MaxChatLength   = 500
)

// ValidTournamentFormats lists the supported bracket formats
var ValidTournamentFormats = []string{"single_elimination", "double_elimination", "round_robin"}

// ValidateEmail validates email format
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	if len(email) > 100 {
		return fmt.Errorf("%w: email must be <= 100 characters", ErrStringTooLong)
	}
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateUsername validates username format
func ValidateUsername(username string) error {
	if username == "" {
		return errors.New("username is required")
	}
	if len(username) < 3 {
		return fmt.Errorf("%w: username must be >= 3 characters", ErrStringTooShort)
	}
	if len(username) > 20 {
		return fmt.Errorf("%w: username must be <= 20 characters", ErrStringTooLong)
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("%w: username can only contain letters, numbers, underscore, and hyphen", ErrInvalidUsername)
	}
	return nil
}

// ValidatePassword validates password strength
func ValidatePassword(password string) error {
	if password == "" {
		return errors.New("password is required")
	}
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrWeakPassword)
	}
	if len(password) > 128 {
		return fmt.Errorf("%w: password must be <= 128 characters", ErrStringTooLong)
	}

	var hasUpper, hasLower, hasNumber bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}

	if !hasUpper || !hasLower || !hasNumber {
		return fmt.Errorf("%w: password must contain at least one uppercase letter, one lowercase letter, and one number", ErrWeakPassword)
	}

	return nil
}

// ValidateGameCode validates a private room or lobby code
func ValidateGameCode(code string) error {
	if !codeRegex.MatchString(code) {
		return ErrInvalidCode
	}
	return nil
}

// ValidateIntRange validates integer is within range
func ValidateIntRange(value, min, max int, fieldName string) error {
	if value < min || value > max {
		return fmt.Errorf("%w: %s must be between %d and %d", ErrInvalidRange, fieldName, min, max)
	}
	return nil
}

// ValidateEnum validates value is in allowed list
func ValidateEnum(value string, allowed []string, fieldName string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be one of %v", ErrInvalidEnum, fieldName, allowed)
}

// ValidateMaxPlayers validates a lobby's player cap
func ValidateMaxPlayers(maxPlayers int) error {
	return ValidateIntRange(maxPlayers, MinLobbyPlayers, MaxLobbyPlayers, "max players")
}

// ValidateRoundCount validates the configured rounds per match
func ValidateRoundCount(roundCount int) error {
	return ValidateIntRange(roundCount, MinRoundCount, MaxRoundCount, "round count")
}

// ValidateTournamentFormat validates a lobby's bracket format
func ValidateTournamentFormat(format string) error {
	return ValidateEnum(format, ValidTournamentFormats, "tournament format")
}

// ValidateChatMessage validates a lobby or match chat message. Returns the
// trimmed message on success.
func ValidateChatMessage(message string) (string, error) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(message, "\x00", ""))
	if trimmed == "" {
		return "", fmt.Errorf("%w: message is empty", ErrStringTooShort)
	}
	if len(trimmed) > MaxChatLength {
		return "", fmt.Errorf("%w: message must be <= %d characters", ErrStringTooLong, MaxChatLength)
	}
	return trimmed, nil
}

// ValidatePlayerName validates a display name, trimming whitespace
func ValidatePlayerName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("%w: player name is required", ErrStringTooShort)
	}
	if len(trimmed) > 50 {
		return "", fmt.Errorf("%w: player name must be <= 50 characters", ErrStringTooLong)
	}
	return trimmed, nil
}
