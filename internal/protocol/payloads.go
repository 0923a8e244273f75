package protocol

import "time"

// Player is the gameplay snapshot attached to queue entries, rooms, lobbies
// and matches. It is a wire object, not a persistence record.
type Player struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	IsAI        bool      `json:"isAI,omitempty"`
	TrustScore  int       `json:"trustScore"`
	GamesPlayed int       `json:"gamesPlayed"`
	CreatedAt   time.Time `json:"createdAt"`
}

// QueuePreferences tunes matchmaking pairing for one entry.
type QueuePreferences struct {
	GameMode        string `json:"gameMode,omitempty"`
	TrustScoreMin   int    `json:"trustScoreMin,omitempty"`
	TrustScoreMax   int    `json:"trustScoreMax,omitempty"`
	MaxWaitSeconds  int    `json:"maxWaitSeconds,omitempty"`
	GamesTolerance  int    `json:"gamesTolerance,omitempty"`
	TrustTolerance  int    `json:"trustTolerance,omitempty"`
}

// LobbySettings configures a party lobby and the tournament it launches.
type LobbySettings struct {
	MaxPlayers        int    `json:"maxPlayers"`
	RoundCount        int    `json:"roundCount"`
	TournamentFormat  string `json:"tournamentFormat"`
	AllowSpectators   bool   `json:"allowSpectators"`
	ChatEnabled       bool   `json:"chatEnabled"`
	AutoStartWhenFull bool   `json:"autoStartWhenFull"`
}

// LobbySettingsPatch carries a partial settings update; nil fields are
// left unchanged by the merge.
type LobbySettingsPatch struct {
	MaxPlayers        *int    `json:"maxPlayers,omitempty"`
	RoundCount        *int    `json:"roundCount,omitempty"`
	TournamentFormat  *string `json:"tournamentFormat,omitempty"`
	AllowSpectators   *bool   `json:"allowSpectators,omitempty"`
	ChatEnabled       *bool   `json:"chatEnabled,omitempty"`
	AutoStartWhenFull *bool   `json:"autoStartWhenFull,omitempty"`
}

// Inbound payloads, one struct per wire type.

type RegisterPayload struct {
	SessionToken string `json:"sessionToken,omitempty"`
	PlayerID     string `json:"playerId,omitempty"`
}

type JoinQueuePayload struct {
	Player      Player            `json:"player"`
	Preferences *QueuePreferences `json:"preferences,omitempty"`
}

type PrivateGamePayload struct {
	GameCode string `json:"gameCode"`
	Player   Player `json:"player"`
}

type CreateLobbyPayload struct {
	Player         *Player        `json:"player,omitempty"`
	HostPlayerName string         `json:"hostPlayerName,omitempty"`
	Settings       *LobbySettings `json:"settings,omitempty"`
}

type JoinLobbyPayload struct {
	LobbyCode  string  `json:"lobbyCode"`
	Player     *Player `json:"player,omitempty"`
	PlayerName string  `json:"playerName,omitempty"`
}

type LeaveLobbyPayload struct {
	LobbyCode string `json:"lobbyCode"`
}

type UpdateLobbySettingsPayload struct {
	LobbyID  string             `json:"lobbyId"`
	Settings LobbySettingsPatch `json:"settings"`
}

type KickPlayerPayload struct {
	TargetPlayerID string `json:"targetPlayerId"`
}

type StartTournamentPayload struct {
	LobbyID string `json:"lobbyId"`
}

type GameDecisionPayload struct {
	MatchID  string `json:"matchId"`
	Round    int    `json:"round"`
	Decision string `json:"decision"`
}

type GameMessagePayload struct {
	MatchID   string `json:"matchId"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

type TournamentForfeitPayload struct {
	MatchID string `json:"matchId"`
}

type ReversalResponsePayload struct {
	MatchID string `json:"matchId"`
	Accept  bool   `json:"accept"`
}

type DecisionChangePayload struct {
	MatchID     string `json:"matchId"`
	RoundNumber int    `json:"roundNumber"`
	NewDecision string `json:"newDecision"`
}

type DecisionChangesCompletePayload struct {
	MatchID string `json:"matchId"`
}

type LobbyChatPayload struct {
	LobbyCode string `json:"lobbyCode"`
	Message   string `json:"message"`
}

// Outbound payloads that benefit from a fixed shape. Broadcast-heavy events
// keep the teacher-style map payloads at the call site.

type RegisteredPayload struct {
	ClientID      string `json:"clientId"`
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"userId,omitempty"`
}

type MatchFoundPayload struct {
	MatchID   string `json:"matchId"`
	Opponent  Player `json:"opponent"`
	IsPlayer1 bool   `json:"isPlayer1"`
}

type NewRoundPayload struct {
	Round         int `json:"round"`
	TimerDuration int `json:"timerDuration"`
}
