package game

import (
	"log"
	"time"

	"trust-platform/backend/internal/auth"
	"trust-platform/backend/internal/middleware"
	"trust-platform/backend/internal/presence"
	"trust-platform/backend/internal/protocol"
	"trust-platform/backend/internal/server/broadcast"
	"trust-platform/backend/internal/server/dispatch"
	"trust-platform/backend/internal/server/lobby"
	"trust-platform/backend/internal/server/match"
	"trust-platform/backend/internal/server/matchmaking"
	"trust-platform/backend/internal/server/persistence"
	"trust-platform/backend/internal/server/privategame"
	"trust-platform/backend/internal/server/session"
	"trust-platform/backend/internal/server/tournament"
	ws "trust-platform/backend/internal/server/websocket"
)

// sessionGCInterval is how often stale disconnected sessions are reclaimed.
const sessionGCInterval = time.Minute

// Server is the coordination engine: it owns the dispatcher loop and every
// game-state registry, and routes inbound messages to the right subsystem.
// All shared state is mutated exclusively on the loop.
type Server struct {
	Loop        *dispatch.Loop
	Registry    *session.Registry
	Broadcaster *broadcast.Broadcaster
	Queue       *matchmaking.Service
	Rooms       *privategame.Registry
	Lobbies     *lobby.Manager
	Matches     *match.Engine
	Tournaments *tournament.Engine

	auth    *auth.Service
	bridge  *persistence.Bridge
	limiter *middleware.RateLimiter
}

// NewServer wires the subsystems together. The persistence bridge may be nil
// in tests; every hook tolerates that.
func NewServer(authService *auth.Service, bridge *persistence.Bridge, tracker *presence.Tracker) *Server {
	loop := dispatch.NewLoop()
	registry := session.NewRegistry(tracker)
	bc := broadcast.New(registry)
	matches := match.NewEngine(loop, bc)
	lobbies := lobby.NewManager()

	s := &Server{
		Loop:        loop,
		Registry:    registry,
		Broadcaster: bc,
		Queue:       matchmaking.NewService(loop),
		Rooms:       privategame.NewRegistry(loop),
		Lobbies:     lobbies,
		Matches:     matches,
		Tournaments: tournament.NewEngine(loop, bc, matches, lobbies),
		auth:        authService,
		bridge:      bridge,
		limiter:     middleware.NewRateLimiter(middleware.MessageRateConfig),
	}

	s.Queue.SetOnPairCallback(func(a, b *matchmaking.Entry) {
		s.Matches.CreateMatch(match.ModeRanked, a.PlayerID, a.Player, b.PlayerID, b.Player)
	})
	s.Queue.SetOnTimeoutCallback(func(e *matchmaking.Entry) {
		bc.ErrorTo(e.PlayerID, protocol.CodeQueueTimeout, "no opponent found, try joining again")
	})
	s.Rooms.SetOnExpireCallback(func(room *privategame.Room) {
		bc.ErrorTo(room.HostClientID, protocol.CodeInvalidRequest, "private game expired before anyone joined")
	})

	if bridge != nil {
		s.Matches.SetOnResultCallback(bridge.SaveMatchResult)
		s.Tournaments.SetOnCompleteCallback(func(t *tournament.Tournament) {
			code := ""
			if lb, ok := lobbies.Get(t.LobbyID); ok {
				code = lb.Code
			}
			bridge.SaveTournament(t, code)
		})
		s.Lobbies.SetOnChatCallback(func(lb *lobby.Lobby, msg lobby.ChatMessage) {
			bridge.SaveChatMessage(lb.Code, msg.SenderID, msg.Message)
		})
		s.Lobbies.SetOnUpdateCallback(bridge.SaveLobbySnapshot)
		s.Lobbies.SetOnReleaseCallback(func(lb *lobby.Lobby) {
			bridge.ReleaseLobby(lb.Code)
		})
	}

	return s
}

// Run starts the dispatcher loop and background passes. Blocks until Stop.
func (s *Server) Run() {
	s.Loop.Post(func() {
		s.Queue.Start()
		s.scheduleSessionGC()
	})
	s.Loop.Run()
}

// Stop shuts the engine down.
func (s *Server) Stop() {
	s.Queue.Stop()
	s.limiter.Stop()
	s.Loop.Stop()
}

func (s *Server) scheduleSessionGC() {
	s.Loop.After(sessionGCInterval, func() {
		for _, clientID := range s.Registry.CollectStale(time.Now()) {
			for _, lb := range s.Lobbies.RemoveEverywhere(clientID) {
				s.broadcastLobbyUpdate(lb)
			}
		}
		s.scheduleSessionGC()
	})
}

// OnMessage is the transport callback for decoded frames. It hops onto the
// dispatcher loop; routing and all state mutation happen there.
func (s *Server) OnMessage(client *ws.Client, env protocol.Envelope) {
	s.Loop.Post(func() {
		s.route(client, env)
	})
}

// OnClose is the transport callback for dropped connections.
func (s *Server) OnClose(client *ws.Client) {
	s.Loop.Post(func() {
		s.handleClose(client)
	})
}

func (s *Server) handleClose(client *ws.Client) {
	if !s.Registry.Disconnect(client) {
		return
	}
	clientID := client.ClientID
	log.Printf("[SERVER] Client %s disconnected", clientID)

	s.Queue.Leave(clientID)
	s.Rooms.CancelByHost(clientID)
	s.Matches.HandleDisconnect(clientID)
	if alias, ok := s.Registry.AliasOf(clientID); ok {
		s.Matches.HandleDisconnect(alias)
	}
	// Lobby membership survives the reconnection window; the session GC
	// owns the final cleanup.
}
