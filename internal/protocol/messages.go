package protocol

import "encoding/json"

// MaxFrameSize is the largest accepted websocket frame in bytes.
const MaxFrameSize = 64 * 1024

// Envelope is the framing for every message in both directions. The payload
// schema depends on Type; inbound payloads are decoded defensively and
// unknown fields are ignored.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message is an outbound frame before encoding.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Inbound message types.
const (
	TypeRegister                 = "REGISTER"
	TypeJoinQueue                = "JOIN_QUEUE"
	TypeLeaveQueue               = "LEAVE_QUEUE"
	TypeCreatePrivateGame        = "CREATE_PRIVATE_GAME"
	TypeJoinPrivateGame          = "JOIN_PRIVATE_GAME"
	TypeCreatePartyLobby         = "CREATE_PARTY_LOBBY"
	TypeJoinPartyLobby           = "JOIN_PARTY_LOBBY"
	TypeLeavePartyLobby          = "LEAVE_PARTY_LOBBY"
	TypeUpdateLobbySettings      = "UPDATE_LOBBY_SETTINGS"
	TypeKickPlayer               = "KICK_PLAYER"
	TypeCloseLobby               = "CLOSE_LOBBY"
	TypeStartTournament          = "START_TOURNAMENT"
	TypeGameDecision             = "GAME_DECISION"
	TypeGameMessage              = "GAME_MESSAGE"
	TypeForfeitMatch             = "FORFEIT_MATCH"
	TypeTournamentForfeit        = "TOURNAMENT_FORFEIT"
	TypeDecisionReversalResponse = "DECISION_REVERSAL_RESPONSE"
	TypeDecisionChangeRequest    = "DECISION_CHANGE_REQUEST"
	TypeDecisionChangesComplete  = "DECISION_CHANGES_COMPLETE"
	TypeLobbyChatMessage         = "LOBBY_CHAT_MESSAGE"
	TypePing                     = "PING"
	TypePong                     = "PONG"
)

// Outbound message types.
const (
	TypeRegistered                     = "REGISTERED"
	TypeError                          = "ERROR"
	TypeQueueStatus                    = "QUEUE_STATUS"
	TypeMatchFound                     = "MATCH_FOUND"
	TypeNewRound                       = "NEW_ROUND"
	TypeRoundResult                    = "ROUND_RESULT"
	TypeGameOver                       = "GAME_OVER"
	TypeShowStatistics                 = "SHOW_STATISTICS"
	TypeReversalApproved               = "REVERSAL_APPROVED"
	TypeReversalRejected               = "REVERSAL_REJECTED"
	TypeWaitingForOtherPlayer          = "WAITING_FOR_OTHER_PLAYER"
	TypeFinalScoresUpdate              = "FINAL_SCORES_UPDATE"
	TypeForfeitConfirmed               = "FORFEIT_CONFIRMED"
	TypeOpponentDisconnected           = "OPPONENT_DISCONNECTED"
	TypeTournamentOpponentDisconnected = "TOURNAMENT_OPPONENT_DISCONNECTED"
	TypeTournamentOpponentReconnected  = "TOURNAMENT_OPPONENT_RECONNECTED"
	TypeTournamentMatchReconnected     = "TOURNAMENT_MATCH_RECONNECTED"
	TypeTournamentStarted              = "TOURNAMENT_STARTED"
	TypeTournamentMatchReady           = "TOURNAMENT_MATCH_READY"
	TypeTournamentRoundStarted         = "TOURNAMENT_ROUND_STARTED"
	TypeTournamentMatchCompleted       = "TOURNAMENT_MATCH_COMPLETED"
	TypeTournamentCompleted            = "TOURNAMENT_COMPLETED"
	TypeTournamentChatMessage          = "TOURNAMENT_CHAT_MESSAGE"
	TypeLobbyCreated                   = "LOBBY_CREATED"
	TypeLobbyJoined                    = "LOBBY_JOINED"
	TypeLobbyUpdated                   = "LOBBY_UPDATED"
	TypeLobbyClosed                    = "LOBBY_CLOSED"
	TypeKickedFromLobby                = "KICKED_FROM_LOBBY"
	TypeDecisionChangeAccepted         = "DECISION_CHANGE_ACCEPTED"
	TypeTiebreakerStarted              = "TIEBREAKER_STARTED"
	TypePrivateGameCreated             = "PRIVATE_GAME_CREATED"
	TypeGameMessageRelay               = "GAME_MESSAGE"
)

// Error codes carried in ERROR frames.
const (
	CodeNotRegistered         = "NOT_REGISTERED"
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeLobbyNotFound         = "LOBBY_NOT_FOUND"
	CodeLobbyFull             = "LOBBY_FULL"
	CodeTournamentInProgress  = "TOURNAMENT_IN_PROGRESS"
	CodeNotHost               = "NOT_HOST"
	CodeChatDisabled          = "CHAT_DISABLED"
	CodeMessageTooLong        = "MESSAGE_TOO_LONG"
	CodeMessageEmpty          = "MESSAGE_EMPTY"
	CodeQueueTimeout          = "QUEUE_TIMEOUT"
	CodeNotInQueue            = "NOT_IN_QUEUE"
	CodeMatchNotFound         = "MATCH_NOT_FOUND"
	CodeWrongPhase            = "WRONG_PHASE"
	CodeAlreadyDecided        = "ALREADY_DECIDED"
	CodeFormatUnsupported     = "FORMAT_UNSUPPORTED"
	CodeInvalidTournamentSize = "INVALID_TOURNAMENT_SIZE"
	CodeInsufficientPlayers   = "INSUFFICIENT_PLAYERS"
	CodeQueueConflict         = "QUEUE_CONFLICT"
	CodeReconnectionFailed    = "RECONNECTION_FAILED"
	CodeInternal              = "INTERNAL"
)

// Decision values for a trust round.
const (
	DecisionCooperate = "COOPERATE"
	DecisionBetray    = "BETRAY"
)

// ValidDecision reports whether s is a legal round decision.
func ValidDecision(s string) bool {
	return s == DecisionCooperate || s == DecisionBetray
}

// Tournament formats.
const (
	FormatSingleElimination = "single_elimination"
	FormatDoubleElimination = "double_elimination"
	FormatRoundRobin        = "round_robin"
)

// ErrorPayload is the payload of an ERROR frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewError builds an ERROR frame.
func NewError(code, message string) Message {
	return Message{Type: TypeError, Payload: ErrorPayload{Code: code, Message: message}}
}
