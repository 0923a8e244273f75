package lobby

import (
	"time"

	"trust-platform/backend/internal/protocol"
)

// Lobby status values.
const (
	StatusWaitingForPlayers    = "waiting_for_players"
	StatusReadyToStart         = "ready_to_start"
	StatusTournamentInProgress = "tournament_in_progress"
	StatusClosed               = "closed"
)

// Participant status values.
const (
	ParticipantWaiting    = "waiting"
	ParticipantReady      = "ready"
	ParticipantInGame     = "in_game"
	ParticipantEliminated = "eliminated"
)

// SystemSenderID marks chat messages generated by the server.
const SystemSenderID = "system"

// Participant is one player inside a lobby.
type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
	Status string `json:"status"`
}

// Lobby is a party room that can launch a tournament.
type Lobby struct {
	ID           string                 `json:"id"`
	Code         string                 `json:"code"`
	HostClientID string                 `json:"hostClientId"`
	Participants []*Participant         `json:"participants"`
	Settings     protocol.LobbySettings `json:"settings"`
	Status       string                 `json:"status"`
	TournamentID string                 `json:"tournamentId,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}

// ChatMessage is one lobby chat entry.
type ChatMessage struct {
	LobbyID    string    `json:"lobbyId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// participant returns the member with the given id, or nil.
func (l *Lobby) participant(id string) *Participant {
	for _, p := range l.Participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// HasParticipant reports membership.
func (l *Lobby) HasParticipant(id string) bool {
	return l.participant(id) != nil
}

// ParticipantIDs returns the member ids in join order.
func (l *Lobby) ParticipantIDs() []string {
	ids := make([]string, len(l.Participants))
	for i, p := range l.Participants {
		ids[i] = p.ID
	}
	return ids
}

// PlayerCount returns the current membership size.
func (l *Lobby) PlayerCount() int {
	return len(l.Participants)
}

// IsFull reports whether the lobby is at capacity.
func (l *Lobby) IsFull() bool {
	return len(l.Participants) >= l.Settings.MaxPlayers
}

// recomputeStatus derives the lobby status from membership size. The
// tournament_in_progress state is sticky until the tournament releases it.
func (l *Lobby) recomputeStatus(minPlayers int) {
	if l.Status == StatusTournamentInProgress || l.Status == StatusClosed {
		return
	}
	if len(l.Participants) >= minPlayers {
		l.Status = StatusReadyToStart
	} else {
		l.Status = StatusWaitingForPlayers
	}
}
