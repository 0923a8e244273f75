package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a trust game platform user
type User struct {
	ID           string    `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Username     string    `gorm:"column:username;type:varchar(50);uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"column:email;type:varchar(100);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// Session represents a user session token
type Session struct {
	ID        string         `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	UserID    string         `gorm:"column:user_id;type:varchar(36);not null;index:idx_user" json:"user_id"`
	Token     string         `gorm:"column:token;type:varchar(255);uniqueIndex;not null" json:"token"`
	ExpiresAt time.Time      `gorm:"column:expires_at;not null" json:"expires_at"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

// TableName specifies the table name for Session model
func (Session) TableName() string {
	return "sessions"
}

// GameHistory represents one completed match between two players
type GameHistory struct {
	ID           string    `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Player1ID    string    `gorm:"column:player1_id;type:varchar(36);not null;index:idx_player1" json:"player1_id"`
	Player2ID    string    `gorm:"column:player2_id;type:varchar(36);not null;index:idx_player2" json:"player2_id"`
	Player1Score int       `gorm:"column:player1_score;not null" json:"player1_score"`
	Player2Score int       `gorm:"column:player2_score;not null" json:"player2_score"`
	WinnerID     *string   `gorm:"column:winner_id;type:varchar(36)" json:"winner_id,omitempty"`
	GameMode     string    `gorm:"column:game_mode;type:varchar(30);not null" json:"game_mode"`
	RoundsPlayed int       `gorm:"column:rounds_played;not null" json:"rounds_played"`
	GameDuration int64     `gorm:"column:game_duration_ms;not null" json:"game_duration_ms"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for GameHistory model
func (GameHistory) TableName() string {
	return "game_history"
}

// UserStats represents a user's aggregate gameplay statistics
type UserStats struct {
	UserID           string    `gorm:"column:user_id;type:varchar(36);primaryKey" json:"user_id"`
	TotalGames       int       `gorm:"column:total_games;default:0" json:"totalGames"`
	Wins             int       `gorm:"column:wins;default:0" json:"wins"`
	Losses           int       `gorm:"column:losses;default:0" json:"losses"`
	Cooperations     int       `gorm:"column:cooperations;default:0" json:"cooperations"`
	Betrayals        int       `gorm:"column:betrayals;default:0" json:"betrayals"`
	TotalScore       int       `gorm:"column:total_score;default:0" json:"totalScore"`
	WinRate          float64   `gorm:"column:win_rate;default:0" json:"winRate"`
	TrustScore       float64   `gorm:"column:trust_score;default:50" json:"trustScore"`
	BetrayalRate     float64   `gorm:"column:betrayal_rate;default:0" json:"betrayalRate"`
	AverageScore     float64   `gorm:"column:average_score;default:0" json:"averageScore"`
	LongestWinStreak int       `gorm:"column:longest_win_streak;default:0" json:"longestWinStreak"`
	CurrentWinStreak int       `gorm:"column:current_win_streak;default:0" json:"currentWinStreak"`
	GamesThisWeek    int       `gorm:"column:games_this_week;default:0" json:"gamesThisWeek"`
	GamesThisMonth   int       `gorm:"column:games_this_month;default:0" json:"gamesThisMonth"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for UserStats model
func (UserStats) TableName() string {
	return "user_stats"
}

// TournamentRecord represents a completed or running tournament
type TournamentRecord struct {
	ID          string         `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	LobbyCode   string         `gorm:"column:lobby_code;type:varchar(6);index:idx_lobby_code" json:"lobby_code"`
	Format      string         `gorm:"column:format;type:varchar(30);not null" json:"format"`
	Status      string         `gorm:"column:status;type:varchar(20);default:starting" json:"status"`
	PlayerCount int            `gorm:"column:player_count;not null" json:"player_count"`
	TotalRounds int            `gorm:"column:total_rounds;not null" json:"total_rounds"`
	WinnerID    *string        `gorm:"column:winner_id;type:varchar(36)" json:"winner_id,omitempty"`
	StartedAt   time.Time      `gorm:"column:started_at;autoCreateTime" json:"started_at"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

// TableName specifies the table name for TournamentRecord model
func (TournamentRecord) TableName() string {
	return "tournaments"
}

// TournamentMatchRecord represents one bracket slot outcome
type TournamentMatchRecord struct {
	ID           string     `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	TournamentID string     `gorm:"column:tournament_id;type:varchar(36);not null;index:idx_tournament" json:"tournament_id"`
	RoundNumber  int        `gorm:"column:round_number;not null" json:"round_number"`
	Player1ID    string     `gorm:"column:player1_id;type:varchar(36);not null" json:"player1_id"`
	Player2ID    string     `gorm:"column:player2_id;type:varchar(36);not null" json:"player2_id"`
	Player1Score int        `gorm:"column:player1_score;default:0" json:"player1_score"`
	Player2Score int        `gorm:"column:player2_score;default:0" json:"player2_score"`
	WinnerID     *string    `gorm:"column:winner_id;type:varchar(36)" json:"winner_id,omitempty"`
	Status       string     `gorm:"column:status;type:varchar(20);default:scheduled" json:"status"`
	CompletedAt  *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

// TableName specifies the table name for TournamentMatchRecord model
func (TournamentMatchRecord) TableName() string {
	return "tournament_matches"
}

// PartyLobby represents a party lobby snapshot
type PartyLobby struct {
	Code        string         `gorm:"column:code;type:varchar(6);primaryKey" json:"code"`
	HostID      string         `gorm:"column:host_id;type:varchar(64);not null" json:"host_id"`
	Status      string         `gorm:"column:status;type:varchar(30);default:waiting_for_players" json:"status"`
	MaxPlayers  int            `gorm:"column:max_players;not null" json:"max_players"`
	RoundCount  int            `gorm:"column:round_count;not null" json:"round_count"`
	Format      string         `gorm:"column:format;type:varchar(30);not null" json:"format"`
	PlayerCount int            `gorm:"column:player_count;default:1" json:"player_count"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

// TableName specifies the table name for PartyLobby model
func (PartyLobby) TableName() string {
	return "party_lobbies"
}

// PartyLobbyParticipant represents a member of a party lobby
type PartyLobbyParticipant struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	LobbyCode string    `gorm:"column:lobby_code;type:varchar(6);not null;index:idx_lobby" json:"lobby_code"`
	PlayerID  string    `gorm:"column:player_id;type:varchar(64);not null" json:"player_id"`
	Name      string    `gorm:"column:name;type:varchar(50);not null" json:"name"`
	IsHost    bool      `gorm:"column:is_host;default:false" json:"is_host"`
	Status    string    `gorm:"column:status;type:varchar(20);default:waiting" json:"status"`
	JoinedAt  time.Time `gorm:"column:joined_at;autoCreateTime" json:"joined_at"`
}

// TableName specifies the table name for PartyLobbyParticipant model
func (PartyLobbyParticipant) TableName() string {
	return "party_lobby_participants"
}

// TournamentChatMessage represents a chat line in a tournament lobby
type TournamentChatMessage struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	LobbyCode string    `gorm:"column:lobby_code;type:varchar(6);not null;index:idx_lobby_chat" json:"lobby_code"`
	SenderID  string    `gorm:"column:sender_id;type:varchar(64);not null" json:"sender_id"`
	Message   string    `gorm:"column:message;type:varchar(500);not null" json:"message"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for TournamentChatMessage model
func (TournamentChatMessage) TableName() string {
	return "tournament_chat_messages"
}

// OfflineOperation represents a persistence write waiting for replay after a
// database outage
type OfflineOperation struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Kind      string    `gorm:"column:kind;type:varchar(30);not null" json:"kind"`
	Payload   string    `gorm:"column:payload;type:text;not null" json:"payload"`
	Attempts  int       `gorm:"column:attempts;default:0" json:"attempts"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for OfflineOperation model
func (OfflineOperation) TableName() string {
	return "offline_operations"
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
