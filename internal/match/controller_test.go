package match

import (
	"testing"

	"absorbchess/internal/app"
	"absorbchess/internal/domain"
	"absorbchess/internal/lobby"
)

func newTwoSeatLobby(t *testing.T) *lobby.Lobby {
	t.Helper()
	r := lobby.NewRegistry()
	l, err := r.Create("white-client", "Alice", lobby.Settings{TimeMinutes: 10, TimeIncrementSeconds: 0, PromotionCancelAllowed: true})
	if err != nil {
		t.Fatalf("create lobby: %v", err)
	}
	if _, _, err := r.Join(l.Code, "black-client", "Bob"); err != nil {
		t.Fatalf("join lobby: %v", err)
	}
	return l
}

func TestMatchStartTransitionsToRunningAndEmitsPerSeatEvents(t *testing.T) {
	l := newTwoSeatLobby(t)
	m := NewMatch(l, app.NewService(), nil)

	events := m.Start(0)
	if m.Status != Running {
		t.Fatalf("expected Running after Start, got %v", m.Status)
	}
	if len(events) != 2 {
		t.Fatalf("expected one game_started event per human seat, got %d", len(events))
	}
	seen := map[string]bool{}
	for _, ev := range events {
		if ev.Kind != app.EventGameStarted {
			t.Fatalf("expected game_started, got %v", ev.Kind)
		}
		seen[ev.Recipients[0]] = true
	}
	if !seen["white-client"] || !seen["black-client"] {
		t.Fatalf("expected both seats addressed, got %v", seen)
	}
}

func TestDispatchRejectsBeforeRunning(t *testing.T) {
	l := newTwoSeatLobby(t)
	m := NewMatch(l, app.NewService(), nil)

	_, err := m.Dispatch("white-client", ClientMessage{Type: "move_piece"}, 0)
	if err != ErrNotRunning {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestDispatchRejectsUnseatedActor(t *testing.T) {
	l := newTwoSeatLobby(t)
	m := NewMatch(l, app.NewService(), nil)
	m.Start(0)

	_, err := m.Dispatch("stranger", ClientMessage{Type: "move_piece"}, 0)
	if err != ErrUnknownActor {
		t.Fatalf("expected ErrUnknownActor, got %v", err)
	}
}

func TestDispatchMovePieceAppliesAndAdvancesTurn(t *testing.T) {
	l := newTwoSeatLobby(t)
	m := NewMatch(l, app.NewService(), nil)
	m.Start(0)

	events, err := m.Dispatch("white-client", ClientMessage{
		Type: "move_piece",
		From: domain.Square{Row: 6, Col: 4},
		To:   domain.Square{Row: 4, Col: 4},
	}, 1_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Kind != app.EventMoveMade {
		t.Fatalf("expected move_made, got %+v", events)
	}
	if m.Game.Turn != domain.Black {
		t.Fatalf("expected turn to pass to black")
	}
}

func TestDispatchMovePieceRejectsOutOfTurn(t *testing.T) {
	l := newTwoSeatLobby(t)
	m := NewMatch(l, app.NewService(), nil)
	m.Start(0)

	_, err := m.Dispatch("black-client", ClientMessage{
		Type: "move_piece",
		From: domain.Square{Row: 1, Col: 4},
		To:   domain.Square{Row: 3, Col: 4},
	}, 0)
	if err == nil {
		t.Fatalf("expected an error moving out of turn")
	}
}

func TestSwapColorsOwnerOnlyAndForming(t *testing.T) {
	l := newTwoSeatLobby(t)
	m := NewMatch(l, app.NewService(), nil)

	if _, err := m.SwapColors("black-client"); err != lobby.ErrNotOwner {
		t.Fatalf("expected ErrNotOwner for a non-owner swap, got %v", err)
	}

	events, err := m.SwapColors("white-client")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if events[0].Kind != app.EventLobbyUpdate {
		t.Fatalf("expected lobby_update, got %v", events[0].Kind)
	}
	if l.SeatByClient("white-client").Color != domain.Black {
		t.Fatalf("expected owner to now hold black after swap")
	}

	m.Start(0)
	if _, err := m.SwapColors("white-client"); err != ErrNotForming {
		t.Fatalf("expected ErrNotForming once running, got %v", err)
	}
}

func TestCanStartRequiresOwnerAndFullSeats(t *testing.T) {
	r := lobby.NewRegistry()
	l, _ := r.Create("white-client", "Alice", lobby.Settings{})
	m := NewMatch(l, app.NewService(), nil)

	if err := m.CanStart("white-client"); err != ErrSeatsNotFull {
		t.Fatalf("expected ErrSeatsNotFull, got %v", err)
	}

	if _, _, err := r.Join(l.Code, "black-client", "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := m.CanStart("black-client"); err != lobby.ErrNotOwner {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := m.CanStart("white-client"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// stubBot always moves the first legal move it finds, deterministically.
type stubBot struct{}

func (stubBot) ChooseMove(game *domain.Game, color domain.Color) (domain.Square, domain.Square, bool) {
	for from, dests := range game.LegalMoves(color) {
		if len(dests) > 0 {
			return from, dests[0], true
		}
	}
	return domain.Square{}, domain.Square{}, false
}

func (stubBot) ChoosePromotion(game *domain.Game, color domain.Color) domain.PieceKind {
	return domain.Queen
}

func TestMaybeAdvanceBotMovesForBotSeat(t *testing.T) {
	r := lobby.NewRegistry()
	l, _ := r.Create("white-client", "Alice", lobby.Settings{VsBot: true, TimeMinutes: 10})
	m := NewMatch(l, app.NewService(), stubBot{})
	m.Start(0)

	if m.Game.Turn != domain.White {
		t.Fatalf("expected white to move first")
	}
	// White is human; nothing should happen until it's black's (bot's) turn.
	if events := m.MaybeAdvanceBot(0); events != nil {
		t.Fatalf("expected no bot move while it's the human's turn, got %+v", events)
	}

	if _, err := m.Dispatch("white-client", ClientMessage{
		Type: "move_piece",
		From: domain.Square{Row: 6, Col: 4},
		To:   domain.Square{Row: 4, Col: 4},
	}, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := m.MaybeAdvanceBot(0)
	if len(events) == 0 {
		t.Fatalf("expected the bot to move for black")
	}
	if m.Game.Turn != domain.White {
		t.Fatalf("expected turn back to white after the bot moves")
	}
}

func TestTryClaimBotTurnIsExclusive(t *testing.T) {
	l := newTwoSeatLobby(t)
	m := NewMatch(l, app.NewService(), stubBot{})
	m.Start(0)

	if !m.TryClaimBotTurn() {
		t.Fatalf("expected first claim to succeed")
	}
	if m.TryClaimBotTurn() {
		t.Fatalf("expected second concurrent claim to fail")
	}
	m.ReleaseBotTurn()
	if !m.TryClaimBotTurn() {
		t.Fatalf("expected claim to succeed again after release")
	}
}

func TestDispatchMoveAfterFlagFallAdjudicatesTimeout(t *testing.T) {
	l := newTwoSeatLobby(t)
	m := NewMatch(l, app.NewService(), nil)
	m.Start(0)

	// White's clock (10 minutes) has long since run out by the time the
	// move arrives; the controller must flag white, not apply the move.
	events, err := m.Dispatch("white-client", ClientMessage{
		Type: "move_piece",
		From: domain.Square{Row: 6, Col: 4},
		To:   domain.Square{Row: 4, Col: 4},
	}, 700_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Kind != app.EventGameOver {
		t.Fatalf("expected game_over, got %+v", events)
	}
	payload := events[0].Payload.(app.GameOverPayload)
	if payload.Reason != app.ReasonTimeout || payload.Winner != "black" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if g := m.Game.Board.At(domain.Square{Row: 4, Col: 4}); g != nil {
		t.Fatalf("expected the late move not to be applied")
	}
}

func TestDispatchDrawOfferSurvivesUntilAccepted(t *testing.T) {
	l := newTwoSeatLobby(t)
	m := NewMatch(l, app.NewService(), nil)
	m.Start(0)

	events, err := m.Dispatch("white-client", ClientMessage{Type: "offer_draw"}, 0)
	if err != nil || len(events) != 2 || events[0].Kind != app.EventDrawOffered || events[1].Kind != app.EventDrawOfferAck {
		t.Fatalf("expected draw_offered + draw_offer_ack, got %+v err=%v", events, err)
	}

	events, err = m.Dispatch("black-client", ClientMessage{Type: "accept_draw"}, 0)
	if err != nil {
		t.Fatalf("accept_draw after an offer must succeed, got %v", err)
	}
	if events[0].Kind != app.EventGameOver {
		t.Fatalf("expected game_over on accept, got %v", events[0].Kind)
	}
	if !m.Game.GameOver || m.Game.Winner != nil {
		t.Fatalf("expected drawn game with no winner")
	}
}

func TestDispatchDrawOfferExpiresOnNextMove(t *testing.T) {
	l := newTwoSeatLobby(t)
	m := NewMatch(l, app.NewService(), nil)
	m.Start(0)

	if _, err := m.Dispatch("white-client", ClientMessage{Type: "offer_draw"}, 0); err != nil {
		t.Fatalf("offer_draw: %v", err)
	}
	if _, err := m.Dispatch("white-client", ClientMessage{
		Type: "move_piece",
		From: domain.Square{Row: 6, Col: 4},
		To:   domain.Square{Row: 4, Col: 4},
	}, 0); err != nil {
		t.Fatalf("move_piece: %v", err)
	}

	if _, err := m.Dispatch("black-client", ClientMessage{Type: "accept_draw"}, 0); err != app.ErrNoDrawOffer {
		t.Fatalf("expected the offer expired by the move, got %v", err)
	}
}

func TestTimeoutIsIdempotent(t *testing.T) {
	l := newTwoSeatLobby(t)
	m := NewMatch(l, app.NewService(), nil)
	m.Start(0)

	ev := m.Timeout()
	if ev == nil || ev.Kind != app.EventGameOver {
		t.Fatalf("expected game_over event, got %+v", ev)
	}
	payload := ev.Payload.(app.GameOverPayload)
	if payload.Reason != app.ReasonTimeout || payload.Winner != "black" {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	if ev := m.Timeout(); ev != nil {
		t.Fatalf("expected second Timeout call to be a no-op, got %+v", ev)
	}
}

func TestDisconnectEndsGameForOpponent(t *testing.T) {
	l := newTwoSeatLobby(t)
	m := NewMatch(l, app.NewService(), nil)
	m.Start(0)

	ev := m.Disconnect(domain.White)
	if ev == nil {
		t.Fatalf("expected a game_over event")
	}
	payload := ev.Payload.(app.GameOverPayload)
	if payload.Reason != app.ReasonDisconnect || payload.Winner != "black" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if !m.Game.GameOver {
		t.Fatalf("expected game to be over")
	}
}
