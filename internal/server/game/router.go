package game

import (
	"encoding/json"
	"errors"
	"log"
	"strings"

	"trust-platform/backend/internal/protocol"
	"trust-platform/backend/internal/server/lobby"
	"trust-platform/backend/internal/server/match"
	"trust-platform/backend/internal/server/privategame"
	"trust-platform/backend/internal/server/tournament"
	"trust-platform/backend/internal/validation"
	ws "trust-platform/backend/internal/server/websocket"
)

// route dispatches one decoded frame. Runs on the dispatcher loop.
func (s *Server) route(client *ws.Client, env protocol.Envelope) {
	if env.Type == protocol.TypeRegister {
		s.handleRegister(client, env.Payload)
		return
	}
	if env.Type == protocol.TypePing {
		ws.SendMessage(client, protocol.Message{Type: protocol.TypePong})
		return
	}
	if env.Type == protocol.TypePong {
		return
	}

	if !s.Registry.IsRegistered(client) {
		s.Broadcaster.Error(client, protocol.CodeNotRegistered, "send REGISTER first")
		return
	}
	if !s.limiter.Allow(client.ClientID) {
		s.Broadcaster.Error(client, protocol.CodeInvalidRequest, "too many messages, slow down")
		return
	}
	s.Registry.Touch(client)

	switch env.Type {
	case protocol.TypeJoinQueue:
		s.handleJoinQueue(client, env.Payload)
	case protocol.TypeLeaveQueue:
		s.handleLeaveQueue(client)
	case protocol.TypeCreatePrivateGame:
		s.handleCreatePrivateGame(client, env.Payload)
	case protocol.TypeJoinPrivateGame:
		s.handleJoinPrivateGame(client, env.Payload)
	case protocol.TypeCreatePartyLobby:
		s.handleCreateLobby(client, env.Payload)
	case protocol.TypeJoinPartyLobby:
		s.handleJoinLobby(client, env.Payload)
	case protocol.TypeLeavePartyLobby:
		s.handleLeaveLobby(client, env.Payload)
	case protocol.TypeUpdateLobbySettings:
		s.handleUpdateLobbySettings(client, env.Payload)
	case protocol.TypeKickPlayer:
		s.handleKickPlayer(client, env.Payload)
	case protocol.TypeCloseLobby:
		s.handleCloseLobby(client)
	case protocol.TypeLobbyChatMessage:
		s.handleLobbyChat(client, env.Payload)
	case protocol.TypeStartTournament:
		s.handleStartTournament(client, env.Payload)
	case protocol.TypeGameDecision:
		s.handleGameDecision(client, env.Payload)
	case protocol.TypeGameMessage:
		s.handleGameMessage(client, env.Payload)
	case protocol.TypeForfeitMatch:
		s.handleForfeit(client)
	case protocol.TypeTournamentForfeit:
		s.handleTournamentForfeit(client, env.Payload)
	case protocol.TypeDecisionReversalResponse:
		s.handleReversalResponse(client, env.Payload)
	case protocol.TypeDecisionChangeRequest:
		s.handleDecisionChange(client, env.Payload)
	case protocol.TypeDecisionChangesComplete:
		s.handleChangesComplete(client, env.Payload)
	default:
		log.Printf("[SERVER] Unknown message type %q from %s", env.Type, client.ClientID)
	}
}

// decode parses a payload, reporting INVALID_REQUEST on malformed JSON.
func (s *Server) decode(client *ws.Client, raw json.RawMessage, dst interface{}) bool {
	if len(raw) == 0 {
		return true
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.Broadcaster.Error(client, protocol.CodeInvalidRequest, "malformed payload")
		return false
	}
	return true
}

func (s *Server) handleRegister(client *ws.Client, raw json.RawMessage) {
	var payload protocol.RegisterPayload
	if !s.decode(client, raw, &payload) {
		return
	}

	userID, authenticated, err := s.auth.ResolveSessionToken(payload.SessionToken)
	if err != nil {
		s.Broadcaster.Error(client, protocol.CodeInvalidRequest, "invalid session token")
		return
	}

	clientID := s.Registry.Register(client, payload.SessionToken, userID, authenticated, payload.PlayerID)
	ws.SendMessage(client, protocol.Message{
		Type: protocol.TypeRegistered,
		Payload: protocol.RegisteredPayload{
			ClientID:      clientID,
			Authenticated: authenticated,
			UserID:        userID,
		},
	})

	// Rejoin any live tournament match this identity belongs to.
	s.Matches.HandleReconnect(clientID)
	if alias, ok := s.Registry.AliasOf(clientID); ok {
		s.Matches.HandleReconnect(alias)
	}
}

func (s *Server) handleJoinQueue(client *ws.Client, raw json.RawMessage) {
	var payload protocol.JoinQueuePayload
	if !s.decode(client, raw, &payload) {
		return
	}
	if _, inLobby := s.Lobbies.FindByParticipant(client.ClientID); inLobby {
		s.Broadcaster.Error(client, protocol.CodeQueueConflict, "leave your lobby before joining the queue")
		return
	}

	player := payload.Player
	player.ID = client.ClientID
	if player.Name == "" {
		player.Name = "Player"
	}
	prefs := protocol.QueuePreferences{}
	if payload.Preferences != nil {
		prefs = *payload.Preferences
	}

	s.Queue.Join(client.ClientID, player, prefs)
	ws.SendMessage(client, protocol.Message{
		Type: protocol.TypeQueueStatus,
		Payload: map[string]interface{}{
			"status":   "queued",
			"depth":    s.Queue.QueueDepth(),
			"gameMode": prefs.GameMode,
		},
	})
}

func (s *Server) handleLeaveQueue(client *ws.Client) {
	if !s.Queue.Leave(client.ClientID) {
		s.Broadcaster.Error(client, protocol.CodeNotInQueue, "you are not in the queue")
		return
	}
	ws.SendMessage(client, protocol.Message{
		Type:    protocol.TypeQueueStatus,
		Payload: map[string]interface{}{"status": "left"},
	})
}

func (s *Server) handleCreatePrivateGame(client *ws.Client, raw json.RawMessage) {
	var payload protocol.PrivateGamePayload
	if !s.decode(client, raw, &payload) {
		return
	}

	player := payload.Player
	player.ID = client.ClientID
	room, err := s.Rooms.Create(payload.GameCode, client.ClientID, player)
	if err != nil {
		s.Broadcaster.Error(client, protocol.CodeInvalidRequest, err.Error())
		return
	}
	ws.SendMessage(client, protocol.Message{
		Type: protocol.TypePrivateGameCreated,
		Payload: map[string]interface{}{
			"gameCode": room.Code,
		},
	})
}

func (s *Server) handleJoinPrivateGame(client *ws.Client, raw json.RawMessage) {
	var payload protocol.PrivateGamePayload
	if !s.decode(client, raw, &payload) {
		return
	}

	guest := payload.Player
	guest.ID = client.ClientID
	room, err := s.Rooms.Join(payload.GameCode, client.ClientID, guest)
	if err != nil {
		code := protocol.CodeInvalidRequest
		if errors.Is(err, privategame.ErrRoomNotFound) {
			code = protocol.CodeMatchNotFound
		}
		s.Broadcaster.Error(client, code, err.Error())
		return
	}

	s.Matches.CreateMatch(match.ModePrivate, room.HostClientID, room.HostPlayer, client.ClientID, guest)
}

func (s *Server) handleCreateLobby(client *ws.Client, raw json.RawMessage) {
	var payload protocol.CreateLobbyPayload
	if !s.decode(client, raw, &payload) {
		return
	}

	name := payload.HostPlayerName
	if payload.Player != nil && payload.Player.Name != "" {
		name = payload.Player.Name
	}
	name, err := validation.ValidatePlayerName(name)
	if err != nil {
		s.Broadcaster.Error(client, protocol.CodeInvalidRequest, err.Error())
		return
	}

	settings := lobby.DefaultSettings()
	if payload.Settings != nil {
		settings = *payload.Settings
		if settings.MaxPlayers == 0 {
			settings.MaxPlayers = lobby.DefaultSettings().MaxPlayers
		}
		if settings.RoundCount == 0 {
			settings.RoundCount = lobby.DefaultSettings().RoundCount
		}
		if settings.TournamentFormat == "" {
			settings.TournamentFormat = protocol.FormatSingleElimination
		}
	}

	lb, err := s.Lobbies.Create(client.ClientID, name, settings)
	if err != nil {
		s.Broadcaster.Error(client, protocol.CodeInvalidRequest, err.Error())
		return
	}
	ws.SendMessage(client, protocol.Message{
		Type:    protocol.TypeLobbyCreated,
		Payload: map[string]interface{}{"lobby": lb},
	})
}

func (s *Server) handleJoinLobby(client *ws.Client, raw json.RawMessage) {
	var payload protocol.JoinLobbyPayload
	if !s.decode(client, raw, &payload) {
		return
	}

	name := payload.PlayerName
	if payload.Player != nil && payload.Player.Name != "" {
		name = payload.Player.Name
	}
	name, err := validation.ValidatePlayerName(name)
	if err != nil {
		s.Broadcaster.Error(client, protocol.CodeInvalidRequest, err.Error())
		return
	}

	lb, vacated, err := s.Lobbies.Join(payload.LobbyCode, client.ClientID, name)
	if err != nil {
		s.sendLobbyError(client, err)
		return
	}
	for _, old := range vacated {
		s.broadcastLobbyUpdate(old)
	}

	ws.SendMessage(client, protocol.Message{
		Type:    protocol.TypeLobbyJoined,
		Payload: map[string]interface{}{"lobby": lb},
	})
	s.broadcastLobbyUpdate(lb)
}

func (s *Server) handleLeaveLobby(client *ws.Client, raw json.RawMessage) {
	var payload protocol.LeaveLobbyPayload
	if !s.decode(client, raw, &payload) {
		return
	}

	lb, ok := s.Lobbies.ByCode(payload.LobbyCode)
	if !ok {
		s.Broadcaster.Error(client, protocol.CodeLobbyNotFound, "lobby not found")
		return
	}
	lb, alive, err := s.Lobbies.Leave(lb.ID, client.ClientID)
	if err != nil {
		s.sendLobbyError(client, err)
		return
	}
	if alive {
		s.broadcastLobbyUpdate(lb)
	}
}

func (s *Server) handleUpdateLobbySettings(client *ws.Client, raw json.RawMessage) {
	var payload protocol.UpdateLobbySettingsPayload
	if !s.decode(client, raw, &payload) {
		return
	}

	lb, err := s.Lobbies.UpdateSettings(payload.LobbyID, client.ClientID, payload.Settings)
	if err != nil {
		s.sendLobbyError(client, err)
		return
	}
	s.broadcastLobbyUpdate(lb)
}

func (s *Server) handleKickPlayer(client *ws.Client, raw json.RawMessage) {
	var payload protocol.KickPlayerPayload
	if !s.decode(client, raw, &payload) {
		return
	}

	lb, ok := s.Lobbies.FindByParticipant(client.ClientID)
	if !ok {
		s.Broadcaster.Error(client, protocol.CodeLobbyNotFound, "you are not in a lobby")
		return
	}
	lb, err := s.Lobbies.Kick(lb.ID, client.ClientID, payload.TargetPlayerID)
	if err != nil {
		s.sendLobbyError(client, err)
		return
	}

	s.Broadcaster.ToClient(payload.TargetPlayerID, protocol.TypeKickedFromLobby, map[string]interface{}{
		"lobbyCode": lb.Code,
	})
	s.broadcastLobbyUpdate(lb)
}

func (s *Server) handleCloseLobby(client *ws.Client) {
	lb, ok := s.Lobbies.FindByParticipant(client.ClientID)
	if !ok {
		s.Broadcaster.Error(client, protocol.CodeLobbyNotFound, "you are not in a lobby")
		return
	}

	members := lb.ParticipantIDs()
	lb, err := s.Lobbies.Close(lb.ID, client.ClientID)
	if err != nil {
		s.sendLobbyError(client, err)
		return
	}
	s.Broadcaster.ToClients(members, protocol.TypeLobbyClosed, map[string]interface{}{
		"lobbyCode": lb.Code,
	})
}

func (s *Server) handleLobbyChat(client *ws.Client, raw json.RawMessage) {
	var payload protocol.LobbyChatPayload
	if !s.decode(client, raw, &payload) {
		return
	}

	lb, ok := s.Lobbies.ByCode(payload.LobbyCode)
	if !ok {
		s.Broadcaster.Error(client, protocol.CodeLobbyNotFound, "lobby not found")
		return
	}

	senderName := client.ClientID
	for _, p := range lb.Participants {
		if p.ID == client.ClientID {
			senderName = p.Name
			break
		}
	}
	lb, msg, err := s.Lobbies.Chat(lb.ID, client.ClientID, senderName, payload.Message)
	if err != nil {
		s.sendLobbyError(client, err)
		return
	}

	s.Broadcaster.ToClients(lb.ParticipantIDs(), protocol.TypeTournamentChatMessage, map[string]interface{}{
		"lobbyCode":  lb.Code,
		"senderId":   msg.SenderID,
		"senderName": msg.SenderName,
		"message":    msg.Message,
		"timestamp":  msg.Timestamp,
	})
}

func (s *Server) handleStartTournament(client *ws.Client, raw json.RawMessage) {
	var payload protocol.StartTournamentPayload
	if !s.decode(client, raw, &payload) {
		return
	}

	lobbyID := payload.LobbyID
	if lobbyID == "" {
		if lb, ok := s.Lobbies.FindByParticipant(client.ClientID); ok {
			lobbyID = lb.ID
		}
	}

	if _, err := s.Tournaments.Start(client.ClientID, lobbyID); err != nil {
		s.sendTournamentError(client, err)
	}
}

func (s *Server) handleGameDecision(client *ws.Client, raw json.RawMessage) {
	var payload protocol.GameDecisionPayload
	if !s.decode(client, raw, &payload) {
		return
	}
	actor := s.matchActor(client.ClientID, payload.MatchID)
	s.Matches.HandleDecision(actor, payload.MatchID, payload.Round, strings.ToUpper(payload.Decision))
}

func (s *Server) handleGameMessage(client *ws.Client, raw json.RawMessage) {
	var payload protocol.GameMessagePayload
	if !s.decode(client, raw, &payload) {
		return
	}
	trimmed, err := validation.ValidateChatMessage(payload.Message)
	if err != nil {
		s.Broadcaster.Error(client, chatErrorCode(err), err.Error())
		return
	}
	actor := s.matchActor(client.ClientID, payload.MatchID)
	s.Matches.RelayMessage(actor, payload.MatchID, trimmed, payload.Timestamp)
}

func (s *Server) handleForfeit(client *ws.Client) {
	if s.Matches.ForfeitByClient(client.ClientID) {
		return
	}
	if alias, ok := s.Registry.AliasOf(client.ClientID); ok && s.Matches.ForfeitByClient(alias) {
		return
	}
	s.Broadcaster.Error(client, protocol.CodeMatchNotFound, "no active match to forfeit")
}

func (s *Server) handleTournamentForfeit(client *ws.Client, raw json.RawMessage) {
	var payload protocol.TournamentForfeitPayload
	if !s.decode(client, raw, &payload) {
		return
	}
	actor := s.matchActor(client.ClientID, payload.MatchID)
	s.Matches.Forfeit(actor, payload.MatchID)
}

func (s *Server) handleReversalResponse(client *ws.Client, raw json.RawMessage) {
	var payload protocol.ReversalResponsePayload
	if !s.decode(client, raw, &payload) {
		return
	}
	actor := s.matchActor(client.ClientID, payload.MatchID)
	s.Matches.HandleReversalResponse(actor, payload.MatchID, payload.Accept)
}

func (s *Server) handleDecisionChange(client *ws.Client, raw json.RawMessage) {
	var payload protocol.DecisionChangePayload
	if !s.decode(client, raw, &payload) {
		return
	}
	actor := s.matchActor(client.ClientID, payload.MatchID)
	s.Matches.HandleDecisionChange(actor, payload.MatchID, payload.RoundNumber, strings.ToUpper(payload.NewDecision))
}

func (s *Server) handleChangesComplete(client *ws.Client, raw json.RawMessage) {
	var payload protocol.DecisionChangesCompletePayload
	if !s.decode(client, raw, &payload) {
		return
	}
	actor := s.matchActor(client.ClientID, payload.MatchID)
	s.Matches.HandleChangesComplete(actor, payload.MatchID)
}

// matchActor resolves which of the connection's identities (client id or
// tournament-player-id alias) owns a side of the match.
func (s *Server) matchActor(clientID, matchID string) string {
	m, ok := s.Matches.Get(matchID)
	if !ok || m.HasParticipant(clientID) {
		return clientID
	}
	if alias, ok := s.Registry.AliasOf(clientID); ok && m.HasParticipant(alias) {
		return alias
	}
	return clientID
}

func (s *Server) broadcastLobbyUpdate(lb *lobby.Lobby) {
	s.Broadcaster.ToClients(lb.ParticipantIDs(), protocol.TypeLobbyUpdated, map[string]interface{}{
		"lobby": lb,
	})
}

// sendLobbyError maps lobby manager errors onto wire codes.
func (s *Server) sendLobbyError(client *ws.Client, err error) {
	code := protocol.CodeInvalidRequest
	switch {
	case errors.Is(err, lobby.ErrLobbyNotFound):
		code = protocol.CodeLobbyNotFound
	case errors.Is(err, lobby.ErrLobbyFull):
		code = protocol.CodeLobbyFull
	case errors.Is(err, lobby.ErrTournamentInProgress):
		code = protocol.CodeTournamentInProgress
	case errors.Is(err, lobby.ErrNotHost):
		code = protocol.CodeNotHost
	case errors.Is(err, lobby.ErrChatDisabled):
		code = protocol.CodeChatDisabled
	case errors.Is(err, validation.ErrStringTooShort):
		code = protocol.CodeMessageEmpty
	case errors.Is(err, validation.ErrStringTooLong):
		code = protocol.CodeMessageTooLong
	}
	s.Broadcaster.Error(client, code, err.Error())
}

// sendTournamentError maps tournament engine errors onto wire codes.
func (s *Server) sendTournamentError(client *ws.Client, err error) {
	code := protocol.CodeInvalidRequest
	switch {
	case errors.Is(err, tournament.ErrLobbyNotFound):
		code = protocol.CodeLobbyNotFound
	case errors.Is(err, tournament.ErrNotHost):
		code = protocol.CodeNotHost
	case errors.Is(err, tournament.ErrTournamentInProgress):
		code = protocol.CodeTournamentInProgress
	case errors.Is(err, tournament.ErrFormatUnsupported):
		code = protocol.CodeFormatUnsupported
	case errors.Is(err, tournament.ErrInvalidSize):
		code = protocol.CodeInvalidTournamentSize
	case errors.Is(err, tournament.ErrInsufficientPlayers):
		code = protocol.CodeInsufficientPlayers
	}
	s.Broadcaster.Error(client, code, err.Error())
}

func chatErrorCode(err error) string {
	switch {
	case errors.Is(err, validation.ErrStringTooShort):
		return protocol.CodeMessageEmpty
	case errors.Is(err, validation.ErrStringTooLong):
		return protocol.CodeMessageTooLong
	}
	return protocol.CodeInvalidRequest
}
