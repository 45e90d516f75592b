package app

import "absorbchess/internal/domain"

// EventKind identifies an outbound message the Match Controller asks the
// Session Layer to fan out. Values match the server -> client `type` field
// verbatim so a broadcaster can marshal Event.Payload straight onto the
// wire under that type.
type EventKind string

const (
	EventSessionEstablished     EventKind = "session_established"
	EventValidateServerResponse EventKind = "validate_server_response"
	EventLobbyCreated           EventKind = "lobby_created"
	EventLobbyJoined            EventKind = "lobby_joined"
	EventLobbyUpdate            EventKind = "lobby_update"
	EventLobbyClosed            EventKind = "lobby_closed"
	EventGameStarted            EventKind = "game_started"
	EventMoveMade               EventKind = "move_made"
	EventInvalidMove            EventKind = "invalid_move"
	EventPromotionPending       EventKind = "promotion_pending"
	EventPromotionApplied       EventKind = "promotion_applied"
	EventPromotionCanceled      EventKind = "promotion_canceled"
	EventValidMoves             EventKind = "valid_moves"
	EventGameOver               EventKind = "game_over"
	EventDrawOffered            EventKind = "draw_offered"
	EventDrawOfferAck           EventKind = "draw_offer_ack"
	EventDrawDeclined           EventKind = "draw_declined"
	EventDrawOfferRateLimited   EventKind = "draw_offer_rate_limited"
	EventPlayerDisconnected     EventKind = "player_disconnected"
	EventPlayerReconnected      EventKind = "player_reconnected"
	EventSearchStarted          EventKind = "search_started"
	EventSearchGameFound        EventKind = "search_game_found"
	EventSearchGameCancelled    EventKind = "search_game_cancelled"
	EventError                  EventKind = "error"
)

// GameOverReason enumerates the reason field on a game_over event.
type GameOverReason string

const (
	ReasonCheckmate  GameOverReason = "checkmate"
	ReasonStalemate  GameOverReason = "stalemate"
	ReasonResign     GameOverReason = "resign"
	ReasonDraw       GameOverReason = "draw"
	ReasonTimeout    GameOverReason = "timeout"
	ReasonDisconnect GameOverReason = "disconnect"
)

// Event is an app-layer outcome with optional targeted recipients; nil
// Recipients means broadcast to every seat in the lobby (the session layer
// sends an event with a non-nil empty list to the acting client only).
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string
}

// MoveMadePayload is broadcast after a move that did not trigger a pending
// promotion. GameState carries the full wire-shaped position.
type MoveMadePayload struct {
	Move  domain.MoveRecord `json:"move"`
	State *domain.GameState `json:"game_state"`
}

// PromotionPendingPayload is sent only to the promoting player.
type PromotionPendingPayload struct {
	Square Square `json:"square"`
	Color  string `json:"color"`
}

type Square struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type PromotionAppliedPayload struct {
	Move  domain.MoveRecord `json:"move"`
	State *domain.GameState `json:"game_state"`
}

type PromotionCanceledPayload struct {
	State *domain.GameState `json:"game_state"`
}

type GameOverPayload struct {
	Reason GameOverReason    `json:"reason"`
	Winner string            `json:"winner,omitempty"`
	State  *domain.GameState `json:"game_state"`
}

type GameStartedPayload struct {
	State *domain.GameState `json:"game_state"`
	Color string            `json:"your_color"`
}

type ValidMovesPayload struct {
	ValidMoves map[string][][2]int `json:"valid_moves"`
}

type DrawOfferedPayload struct {
	FromColor string `json:"from_color"`
}

type DrawOfferRateLimitedPayload struct {
	RetryAfterSeconds int `json:"retry_after"`
}

type PlayerDisconnectedPayload struct {
	Color          string `json:"color"`
	AbortTimeEpoch int64  `json:"abort_time"`
}

type PlayerReconnectedPayload struct {
	Color string `json:"color"`
}

type ErrorPayload struct {
	Reason string `json:"reason"`
}

// InvalidMovePayload answers a rejected move_piece, sent only to the
// sender (spec.md §7: "never echoed to opponents; does not change turn or
// clock").
type InvalidMovePayload struct {
	Reason  string   `json:"reason"`
	Details []string `json:"details,omitempty"`
}

// SessionEstablishedPayload is sent once, right after a socket is accepted,
// carrying the client_id the rest of the protocol addresses and a signed
// credential the client must present to reattach to the same seat after a
// disconnect (spec.md §4.7).
type SessionEstablishedPayload struct {
	ClientID       string `json:"client_id"`
	ReconnectToken string `json:"reconnect_token"`
}

// ValidateServerResponsePayload answers the validate_server handshake
// probe (spec.md §6 / supplemented feature C.4).
type ValidateServerResponsePayload struct {
	IsChessServer bool `json:"isChessServer"`
}

// LobbySeat mirrors one lobby.Seat on the wire.
type LobbySeat struct {
	ClientID    string `json:"client_id"`
	DisplayName string `json:"display_name"`
	Color       string `json:"color"`
	IsBot       bool   `json:"is_bot"`
}

// LobbySettings mirrors lobby.Settings on the wire.
type LobbySettings struct {
	TimeMinutes            int  `json:"time_minutes"`
	TimeIncrementSeconds   int  `json:"time_increment_seconds"`
	PromotionCancelAllowed bool `json:"promotion_cancel_allowed"`
	WithBot                bool `json:"with_bot"`
}

// LobbyStatePayload is the common shape shared by lobby_created,
// lobby_joined, and lobby_update.
type LobbyStatePayload struct {
	LobbyCode string        `json:"lobby_code"`
	OwnerID   string        `json:"owner_id"`
	Seats     []LobbySeat   `json:"seats"`
	Settings  LobbySettings `json:"settings"`
}

type LobbyClosedPayload struct {
	LobbyCode string `json:"lobby_code"`
}

type SearchStartedPayload struct{}

// SearchGameFoundPayload is sent once per recipient with their own color
// and the opponent's display name (spec.md §4.5 / scenario 6).
type SearchGameFoundPayload struct {
	LobbyCode    string `json:"lobby_code"`
	PlayerColor  string `json:"player_color"`
	OpponentName string `json:"opponent_name"`
}

type SearchGameCancelledPayload struct{}
