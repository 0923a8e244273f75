package lobby

import (
	"crypto/rand"
	"errors"
	"log"
	"math/big"
	"strings"
	"time"

	"trust-platform/backend/internal/protocol"
	"trust-platform/backend/internal/validation"

	"github.com/google/uuid"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	ErrLobbyNotFound        = errors.New("lobby not found")
	ErrLobbyFull            = errors.New("lobby is full")
	ErrTournamentInProgress = errors.New("tournament already in progress")
	ErrNotHost              = errors.New("only the host can do this")
	ErrAlreadyInLobby       = errors.New("already in this lobby")
	ErrNotInLobby           = errors.New("not a member of this lobby")
	ErrChatDisabled         = errors.New("chat is disabled in this lobby")
)

// DefaultSettings are applied when CREATE_PARTY_LOBBY omits settings fields.
func DefaultSettings() protocol.LobbySettings {
	return protocol.LobbySettings{
		MaxPlayers:       8,
		RoundCount:       10,
		TournamentFormat: protocol.FormatSingleElimination,
		AllowSpectators:  false,
		ChatEnabled:      true,
	}
}

// Manager owns all live lobbies. Mutated only on the dispatcher loop.
type Manager struct {
	lobbies map[string]*Lobby // lobby id -> lobby
	byCode  map[string]string // code -> lobby id

	onChat    func(lobby *Lobby, msg ChatMessage)
	onUpdate  func(lobby *Lobby)
	onRelease func(lobby *Lobby)
}

func NewManager() *Manager {
	return &Manager{
		lobbies: make(map[string]*Lobby),
		byCode:  make(map[string]string),
	}
}

// SetOnChatCallback registers the hook invoked after a chat message is
// accepted, used for persistence.
func (m *Manager) SetOnChatCallback(fn func(lobby *Lobby, msg ChatMessage)) {
	m.onChat = fn
}

// SetOnUpdateCallback registers the hook invoked after any surviving lobby
// mutation, used for snapshot persistence.
func (m *Manager) SetOnUpdateCallback(fn func(lobby *Lobby)) {
	m.onUpdate = fn
}

// SetOnReleaseCallback registers the hook invoked when a lobby is deleted.
func (m *Manager) SetOnReleaseCallback(fn func(lobby *Lobby)) {
	m.onRelease = fn
}

func (m *Manager) notifyUpdate(lobby *Lobby) {
	if m.onUpdate != nil {
		m.onUpdate(lobby)
	}
}

// generateCode produces a share code unique across live lobbies.
func (m *Manager) generateCode() string {
	for {
		var b strings.Builder
		for i := 0; i < 6; i++ {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
			if err != nil {
				n = big.NewInt(int64(time.Now().UnixNano() % int64(len(codeAlphabet))))
			}
			b.WriteByte(codeAlphabet[n.Int64()])
		}
		code := b.String()
		if _, taken := m.byCode[code]; !taken {
			return code
		}
	}
}

// Create opens a lobby with the creator as host. The host joins ready.
func (m *Manager) Create(hostClientID, hostName string, settings protocol.LobbySettings) (*Lobby, error) {
	if err := validation.ValidateMaxPlayers(settings.MaxPlayers); err != nil {
		return nil, err
	}
	if err := validation.ValidateRoundCount(settings.RoundCount); err != nil {
		return nil, err
	}
	if err := validation.ValidateTournamentFormat(settings.TournamentFormat); err != nil {
		return nil, err
	}

	// A client hosts at most one lobby; creating a new one leaves the rest.
	m.removeFromAll(hostClientID)

	now := time.Now()
	lobby := &Lobby{
		ID:           uuid.New().String(),
		Code:         m.generateCode(),
		HostClientID: hostClientID,
		Participants: []*Participant{{
			ID:     hostClientID,
			Name:   hostName,
			IsHost: true,
			Status: ParticipantReady,
		}},
		Settings:  settings,
		Status:    StatusWaitingForPlayers,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.lobbies[lobby.ID] = lobby
	m.byCode[lobby.Code] = lobby.ID
	log.Printf("[LOBBY] Lobby %s (%s) created by %s", lobby.ID, lobby.Code, hostClientID)
	m.notifyUpdate(lobby)
	return lobby, nil
}

// Join adds a player to the lobby with the given code. The joiner is silently
// removed from any other lobby first; the vacated lobbies are returned so the
// caller can broadcast their updates.
func (m *Manager) Join(code, clientID, name string) (*Lobby, []*Lobby, error) {
	lobby, ok := m.ByCode(code)
	if !ok {
		return nil, nil, ErrLobbyNotFound
	}
	if lobby.Status == StatusTournamentInProgress {
		return nil, nil, ErrTournamentInProgress
	}
	if lobby.HasParticipant(clientID) {
		return nil, nil, ErrAlreadyInLobby
	}
	if lobby.IsFull() {
		return nil, nil, ErrLobbyFull
	}

	vacated := m.removeFromAll(clientID)

	lobby.Participants = append(lobby.Participants, &Participant{
		ID:     clientID,
		Name:   name,
		Status: ParticipantWaiting,
	})
	lobby.recomputeStatus(validation.MinLobbyPlayers)
	lobby.UpdatedAt = time.Now()

	log.Printf("[LOBBY] %s joined lobby %s (%d/%d)", clientID, lobby.Code, lobby.PlayerCount(), lobby.Settings.MaxPlayers)
	m.notifyUpdate(lobby)
	return lobby, vacated, nil
}

// Leave removes a player. If the host leaves and members remain, the host
// role transfers to the next participant in join order. An emptied lobby is
// deleted; the second return value reports whether the lobby survives.
func (m *Manager) Leave(lobbyID, clientID string) (*Lobby, bool, error) {
	lobby, ok := m.lobbies[lobbyID]
	if !ok {
		return nil, false, ErrLobbyNotFound
	}
	if !lobby.HasParticipant(clientID) {
		return nil, false, ErrNotInLobby
	}

	m.removeParticipant(lobby, clientID)
	if lobby.PlayerCount() == 0 {
		m.delete(lobby)
		return lobby, false, nil
	}
	m.notifyUpdate(lobby)
	return lobby, true, nil
}

// Kick removes a target player at the host's request.
func (m *Manager) Kick(lobbyID, hostID, targetID string) (*Lobby, error) {
	lobby, ok := m.lobbies[lobbyID]
	if !ok {
		return nil, ErrLobbyNotFound
	}
	if lobby.HostClientID != hostID {
		return nil, ErrNotHost
	}
	if !lobby.HasParticipant(targetID) {
		return nil, ErrNotInLobby
	}

	m.removeParticipant(lobby, targetID)
	if lobby.PlayerCount() == 0 {
		m.delete(lobby)
	} else {
		m.notifyUpdate(lobby)
	}
	return lobby, nil
}

// UpdateSettings merges a partial settings patch, host-only.
func (m *Manager) UpdateSettings(lobbyID, hostID string, patch protocol.LobbySettingsPatch) (*Lobby, error) {
	lobby, ok := m.lobbies[lobbyID]
	if !ok {
		return nil, ErrLobbyNotFound
	}
	if lobby.HostClientID != hostID {
		return nil, ErrNotHost
	}
	if lobby.Status == StatusTournamentInProgress {
		return nil, ErrTournamentInProgress
	}

	next := lobby.Settings
	if patch.MaxPlayers != nil {
		if err := validation.ValidateMaxPlayers(*patch.MaxPlayers); err != nil {
			return nil, err
		}
		next.MaxPlayers = *patch.MaxPlayers
	}
	if patch.RoundCount != nil {
		if err := validation.ValidateRoundCount(*patch.RoundCount); err != nil {
			return nil, err
		}
		next.RoundCount = *patch.RoundCount
	}
	if patch.TournamentFormat != nil {
		if err := validation.ValidateTournamentFormat(*patch.TournamentFormat); err != nil {
			return nil, err
		}
		next.TournamentFormat = *patch.TournamentFormat
	}
	if patch.AllowSpectators != nil {
		next.AllowSpectators = *patch.AllowSpectators
	}
	if patch.ChatEnabled != nil {
		next.ChatEnabled = *patch.ChatEnabled
	}
	if patch.AutoStartWhenFull != nil {
		next.AutoStartWhenFull = *patch.AutoStartWhenFull
	}

	lobby.Settings = next
	lobby.UpdatedAt = time.Now()
	m.notifyUpdate(lobby)
	return lobby, nil
}

// Close deletes a lobby at the host's request and returns it so the caller
// can notify members.
func (m *Manager) Close(lobbyID, hostID string) (*Lobby, error) {
	lobby, ok := m.lobbies[lobbyID]
	if !ok {
		return nil, ErrLobbyNotFound
	}
	if lobby.HostClientID != hostID {
		return nil, ErrNotHost
	}

	lobby.Status = StatusClosed
	m.delete(lobby)
	return lobby, nil
}

// Chat validates and stamps a chat message. System messages bypass the
// membership check.
func (m *Manager) Chat(lobbyID, senderID, senderName, text string) (*Lobby, *ChatMessage, error) {
	lobby, ok := m.lobbies[lobbyID]
	if !ok {
		return nil, nil, ErrLobbyNotFound
	}
	if !lobby.Settings.ChatEnabled {
		return nil, nil, ErrChatDisabled
	}
	if senderID != SystemSenderID && !lobby.HasParticipant(senderID) {
		return nil, nil, ErrNotInLobby
	}

	trimmed, err := validation.ValidateChatMessage(text)
	if err != nil {
		return nil, nil, err
	}

	msg := &ChatMessage{
		LobbyID:    lobbyID,
		SenderID:   senderID,
		SenderName: senderName,
		Message:    trimmed,
		Timestamp:  time.Now(),
	}
	if m.onChat != nil {
		m.onChat(lobby, *msg)
	}
	return lobby, msg, nil
}

// MarkTournamentStarted flips the lobby into tournament mode.
func (m *Manager) MarkTournamentStarted(lobbyID, tournamentID string) {
	if lobby, ok := m.lobbies[lobbyID]; ok {
		lobby.Status = StatusTournamentInProgress
		lobby.TournamentID = tournamentID
		lobby.UpdatedAt = time.Now()
		for _, p := range lobby.Participants {
			p.Status = ParticipantInGame
		}
		m.notifyUpdate(lobby)
	}
}

// MarkTournamentFinished releases the lobby back to its membership-derived
// status.
func (m *Manager) MarkTournamentFinished(lobbyID string) {
	if lobby, ok := m.lobbies[lobbyID]; ok {
		lobby.TournamentID = ""
		lobby.Status = StatusWaitingForPlayers
		for _, p := range lobby.Participants {
			p.Status = ParticipantWaiting
		}
		lobby.recomputeStatus(validation.MinLobbyPlayers)
		lobby.UpdatedAt = time.Now()
		m.notifyUpdate(lobby)
	}
}

// Get returns a lobby by id.
func (m *Manager) Get(lobbyID string) (*Lobby, bool) {
	lobby, ok := m.lobbies[lobbyID]
	return lobby, ok
}

// ByCode returns a lobby by share code.
func (m *Manager) ByCode(code string) (*Lobby, bool) {
	id, ok := m.byCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, false
	}
	return m.lobbies[id], true
}

// FindByParticipant returns the lobby a player belongs to, if any.
func (m *Manager) FindByParticipant(clientID string) (*Lobby, bool) {
	for _, lobby := range m.lobbies {
		if lobby.HasParticipant(clientID) {
			return lobby, true
		}
	}
	return nil, false
}

// Count returns the number of live lobbies.
func (m *Manager) Count() int {
	return len(m.lobbies)
}

// removeParticipant drops a member and transfers the host role if needed.
func (m *Manager) removeParticipant(lobby *Lobby, clientID string) {
	wasHost := lobby.HostClientID == clientID
	for i, p := range lobby.Participants {
		if p.ID == clientID {
			lobby.Participants = append(lobby.Participants[:i], lobby.Participants[i+1:]...)
			break
		}
	}
	if wasHost && len(lobby.Participants) > 0 {
		next := lobby.Participants[0]
		next.IsHost = true
		lobby.HostClientID = next.ID
		log.Printf("[LOBBY] Host of %s transferred to %s", lobby.Code, next.ID)
	}
	lobby.recomputeStatus(validation.MinLobbyPlayers)
	lobby.UpdatedAt = time.Now()
}

// RemoveEverywhere drops a player from every lobby they belong to, deleting
// lobbies that empty out. Returns the surviving lobbies so the caller can
// broadcast their updates.
func (m *Manager) RemoveEverywhere(clientID string) []*Lobby {
	return m.removeFromAll(clientID)
}

// removeFromAll silently removes a player from every lobby they are in and
// returns the lobbies that still exist afterwards.
func (m *Manager) removeFromAll(clientID string) []*Lobby {
	var touched []*Lobby
	for _, lobby := range m.lobbies {
		if !lobby.HasParticipant(clientID) {
			continue
		}
		m.removeParticipant(lobby, clientID)
		if lobby.PlayerCount() == 0 {
			m.delete(lobby)
			continue
		}
		m.notifyUpdate(lobby)
		touched = append(touched, lobby)
	}
	return touched
}

func (m *Manager) delete(lobby *Lobby) {
	delete(m.lobbies, lobby.ID)
	delete(m.byCode, lobby.Code)
	log.Printf("[LOBBY] Lobby %s (%s) deleted", lobby.ID, lobby.Code)
	if m.onRelease != nil {
		m.onRelease(lobby)
	}
}
