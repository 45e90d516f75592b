// Package match implements the Match Controller: the per-lobby
// Forming -> Running lifecycle that owns a domain.Game,
// dispatches inbound client messages to the app-layer use-cases, schedules
// bot turns, and fans the resulting Events out through a Broadcaster.
package match

import (
	"errors"
	"sync"

	"absorbchess/internal/app"
	"absorbchess/internal/domain"
	"absorbchess/internal/lobby"
)

// Status is the Match's own lifecycle, independent of domain.Game's
// game_over flag. A Match is Forming until Start and Running after it;
// Ended is declared but never assigned by this package. A finished game
// leaves Status at Running with Game.GameOver set, and IsRunning reports
// false for it.
type Status int

const (
	Forming Status = iota
	Running
	Ended
)

// Bot is the seam to the AI Adapter: given the current position and the
// color to move, it returns a chosen move (or a promotion choice, if the
// position has a pending promotion to resolve for that color).
type Bot interface {
	ChooseMove(game *domain.Game, color domain.Color) (from, to domain.Square, ok bool)
	ChoosePromotion(game *domain.Game, color domain.Color) domain.PieceKind
}

// Broadcaster delivers app.Events to the clients attached to a lobby code.
// Implemented by internal/session; kept as an interface here so match never
// imports the transport layer.
type Broadcaster interface {
	Send(clientID string, event app.Event)
	Broadcast(lobbyCode string, event app.Event)
}

// ClientMessage is the parsed shape of an inbound client_message (move_piece
// /promotion_choice/.../get_valid_moves); the transport layer decodes the
// wire JSON into this before calling Dispatch.
type ClientMessage struct {
	Type            string
	From            domain.Square
	To              domain.Square
	PromotionChoice string
}

var (
	ErrNotRunning   = errors.New("match is not running")
	ErrUnknownType  = errors.New("unknown message type")
	ErrUnknownActor = errors.New("actor is not seated in this match")
)

// Match is one lobby's live game plus its bookkeeping: seats, draw-offer
// rate limiting, and status.
type Match struct {
	mu sync.Mutex

	Code      string
	Status    Status
	Lobby     *lobby.Lobby
	Game      *domain.Game
	drawOffer *app.DrawOfferTracker

	svc *app.Service
	bot Bot

	botPending bool
}

// TryClaimBotTurn reports whether the caller may schedule an AI move right
// now, and marks one as outstanding if so. Guarantees at most one
// outstanding AI request per game (spec.md §4.9), since the Match's own
// mutex serializes every caller.
func (m *Match) TryClaimBotTurn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.botPending || m.Status != Running {
		return false
	}
	m.botPending = true
	return true
}

// ReleaseBotTurn clears the outstanding-AI-request flag once the scheduled
// move has been applied (or abandoned because the game ended first).
func (m *Match) ReleaseBotTurn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.botPending = false
}

// NewMatch creates a Forming match for lobby l.
func NewMatch(l *lobby.Lobby, svc *app.Service, bot Bot) *Match {
	return &Match{
		Code:      l.Code,
		Status:    Forming,
		Lobby:     l,
		drawOffer: app.NewDrawOfferTracker(),
		svc:       svc,
		bot:       bot,
	}
}

// Restore reconstructs a Match for a lobby recovered from the durable
// snapshot (spec.md §4.10/§7). game is nil if the lobby never started a
// Game (still Forming); otherwise the match comes back Running so the
// Clock Scanner and disconnect-grace flow settle it exactly like any other
// in-progress match. Used only on cold start.
func Restore(l *lobby.Lobby, svc *app.Service, bot Bot, game *domain.Game) *Match {
	status := Forming
	if game != nil {
		status = Running
	}
	return &Match{
		Code:      l.Code,
		Status:    status,
		Lobby:     l,
		Game:      game,
		drawOffer: app.NewDrawOfferTracker(),
		svc:       svc,
		bot:       bot,
	}
}

// Start transitions Forming -> Running, creating the Game from the lobby's
// settings, and returns the game_started events (one per human seat, each
// carrying that seat's color).
func (m *Match) Start(now int64) []app.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	settings := m.Lobby.Settings
	whiteMs := int64(settings.TimeMinutes) * 60_000
	blackMs := whiteMs
	incrementMs := int64(settings.TimeIncrementSeconds) * 1000

	m.Game = m.svc.NewGame(whiteMs, blackMs, incrementMs, settings.PromotionCancelAllowed, now)
	m.Status = Running
	m.Lobby.Started = true

	var events []app.Event
	for _, seat := range m.Lobby.Seats {
		if seat == nil || seat.IsBot {
			continue
		}
		events = append(events, app.Event{
			Kind: app.EventGameStarted,
			Payload: app.GameStartedPayload{
				State: m.Game.Serialize(true),
				Color: seat.Color.String(),
			},
			Recipients: []string{seat.ClientID},
		})
	}
	return events
}

// colorForClient finds which color clientID is playing, or false if they
// hold no seat in this match.
func (m *Match) colorForClient(clientID string) (domain.Color, bool) {
	for _, seat := range m.Lobby.Seats {
		if seat != nil && seat.ClientID == clientID {
			return seat.Color, true
		}
	}
	return 0, false
}

// Dispatch routes one inbound message from clientID through the
// appropriate app-layer use-case and returns the events to broadcast. The
// caller (internal/session) is responsible for actually delivering them and
// for invoking MaybeAdvanceBot afterward.
func (m *Match) Dispatch(clientID string, msg ClientMessage, now int64) ([]app.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Status != Running {
		return nil, ErrNotRunning
	}
	actor, ok := m.colorForClient(clientID)
	if !ok {
		return nil, ErrUnknownActor
	}

	switch msg.Type {
	case "move_piece":
		// The mover's flag may have fallen between scanner passes; a move
		// arriving after that adjudicates the timeout instead of applying.
		if actor == m.Game.Turn && m.Game.PromotionPending == nil &&
			m.Game.Clock.RemainingToMove(m.Game.Turn, now) <= 0 {
			return []app.Event{*m.timeoutLocked()}, nil
		}
		events, err := m.svc.MovePiece(m.Game, actor, msg.From, msg.To, now)
		if err == nil {
			// An outstanding draw offer expires implicitly on the next
			// applied move of either player.
			m.drawOffer.ExpireDrawOffer()
		}
		return events, err
	case "promotion_choice":
		kind, ok := domain.ParsePieceKind(msg.PromotionChoice)
		if !ok {
			return nil, domain.ErrInvalidPromotionChoice
		}
		events, err := m.svc.PromotionChoice(m.Game, actor, kind, now)
		if err == nil {
			m.drawOffer.ExpireDrawOffer()
		}
		return events, err
	case "promotion_cancel":
		return m.svc.CancelPromotion(m.Game, actor)
	case "resign":
		return m.svc.Resign(m.Game, actor)
	case "offer_draw":
		return m.svc.OfferDraw(m.drawOffer, m.Game, actor, now)
	case "accept_draw":
		return m.svc.AcceptDraw(m.drawOffer, m.Game)
	case "decline_draw":
		return m.svc.DeclineDraw(m.drawOffer, m.Game)
	case "get_valid_moves":
		return m.svc.GetValidMoves(m.Game), nil
	default:
		return nil, ErrUnknownType
	}
}

// MaybeAdvanceBot lets the bot seat act if it is the side to move (or has a
// pending promotion to resolve) and the match is still running. Returns the
// resulting events, if the bot acted.
func (m *Match) MaybeAdvanceBot(now int64) []app.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Status != Running || m.bot == nil {
		return nil
	}

	if m.Game.PromotionPending != nil {
		seat := m.Lobby.SeatByColor(m.Game.PromotionPending.Color)
		if seat == nil || !seat.IsBot {
			return nil
		}
		choice := m.bot.ChoosePromotion(m.Game, m.Game.PromotionPending.Color)
		events, err := m.svc.PromotionChoice(m.Game, m.Game.PromotionPending.Color, choice, now)
		if err != nil {
			return nil
		}
		m.drawOffer.ExpireDrawOffer()
		return events
	}

	seat := m.Lobby.SeatByColor(m.Game.Turn)
	if seat == nil || !seat.IsBot {
		return nil
	}
	from, to, ok := m.bot.ChooseMove(m.Game, m.Game.Turn)
	if !ok {
		return nil
	}
	events, err := m.svc.MovePiece(m.Game, m.Game.Turn, from, to, now)
	if err != nil {
		return nil
	}
	m.drawOffer.ExpireDrawOffer()
	return events
}

// Timeout is called by the Clock Scanner once it observes
// remaining_to_move <= 0 for the side to move. It is idempotent: a second
// call after the game is already over is a no-op.
func (m *Match) Timeout() *app.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Game == nil || m.Game.GameOver {
		return nil
	}
	return m.timeoutLocked()
}

// timeoutLocked ends the game with the side to move flagged; callers hold
// m.mu and have verified the game is still live.
func (m *Match) timeoutLocked() *app.Event {
	winner := m.Game.Turn.Opposite()
	m.Game.GameOver = true
	m.Game.Winner = &winner
	return &app.Event{
		Kind: app.EventGameOver,
		Payload: app.GameOverPayload{
			Reason: app.ReasonTimeout,
			Winner: winner.String(),
			State:  m.Game.Serialize(false),
		},
	}
}

// RemainingToMoveMs reports the side-to-move's remaining time, or the
// positive placeholder 1 if the match isn't running.
func (m *Match) RemainingToMoveMs(now int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Status != Running || m.Game == nil || m.Game.GameOver {
		return 1 // any positive value tells the scanner to leave this match alone
	}
	return m.Game.Clock.RemainingToMove(m.Game.Turn, now)
}

// IsRunning reports whether the match's Game is still live.
func (m *Match) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Status == Running && m.Game != nil && !m.Game.GameOver
}

// Disconnect ends the game in the opponent's favor, used once a
// disconnect-grace period in internal/session expires without a reconnect.
func (m *Match) Disconnect(color domain.Color) *app.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Game == nil || m.Game.GameOver {
		return nil
	}
	winner := color.Opposite()
	m.Game.GameOver = true
	m.Game.Winner = &winner
	return &app.Event{
		Kind: app.EventGameOver,
		Payload: app.GameOverPayload{
			Reason: app.ReasonDisconnect,
			Winner: winner.String(),
			State:  m.Game.Serialize(false),
		},
	}
}
