package app

import (
	"errors"
	"fmt"

	"absorbchess/internal/domain"
)

// Service holds the chess use-cases that operate on a live domain.Game and
// emit the Events a Match Controller fans out. It carries no game-specific
// state itself (that lives on domain.Game and on the caller's Match); a
// single Service is shared across every running match.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

var (
	ErrNotYourColor = errors.New("actor does not hold this color")
	ErrNoDrawOffer  = errors.New("no draw offer outstanding")
)

// NewGame builds a fresh standard-position Game from the lobby's settings.
func (s *Service) NewGame(whiteMs, blackMs, incrementMs int64, promotionCancelAllowed bool, now int64) *domain.Game {
	return domain.NewGame(whiteMs, blackMs, incrementMs, now, promotionCancelAllowed)
}

// MovePiece validates actor's color against the game's turn before
// delegating to domain.ApplyMove, then builds the broadcast events: either
// move_made (to everyone, with the next side's valid_moves attached) or, if
// the move set up a pending promotion, promotion_pending to the promoter
// alone. A terminal result (checkmate/stalemate/king-capture) appends a
// game_over event.
func (s *Service) MovePiece(game *domain.Game, actor domain.Color, from, to domain.Square, now int64) ([]Event, error) {
	if game.Turn != actor && game.PromotionPending == nil {
		// Surfaces on the wire as invalid_move reason=wrong_turn, the same
		// tag ApplyMove uses when the piece at `from` isn't the actor's.
		return nil, domain.ErrWrongTurn
	}

	rec, err := game.ApplyMove(from, to, now)
	if err != nil {
		return nil, err
	}

	if game.PromotionPending != nil {
		return []Event{
			{
				Kind: EventPromotionPending,
				Payload: PromotionPendingPayload{
					Square: Square{Row: game.PromotionPending.Square.Row, Col: game.PromotionPending.Square.Col},
					Color:  game.PromotionPending.Color.String(),
				},
				Recipients: []string{}, // caller fills in the promoter's session id
			},
		}, nil
	}

	events := []Event{
		{
			Kind: EventMoveMade,
			Payload: MoveMadePayload{
				Move:  *rec,
				State: game.Serialize(true),
			},
		},
	}
	return append(events, terminalEvents(game)...), nil
}

// PromotionChoice resolves a pending promotion.
func (s *Service) PromotionChoice(game *domain.Game, actor domain.Color, choice domain.PieceKind, now int64) ([]Event, error) {
	if game.PromotionPending == nil {
		return nil, domain.ErrNoPendingPromotion
	}
	if game.PromotionPending.Color != actor {
		return nil, ErrNotYourColor
	}

	rec, err := game.ApplyPromotion(choice, now)
	if err != nil {
		return nil, err
	}

	events := []Event{
		{
			Kind: EventPromotionApplied,
			Payload: PromotionAppliedPayload{
				Move:  *rec,
				State: game.Serialize(true),
			},
		},
	}
	return append(events, terminalEvents(game)...), nil
}

// CancelPromotion unwinds a pending promotion, when the server's
// promotion_cancel_allowed setting permits it.
func (s *Service) CancelPromotion(game *domain.Game, actor domain.Color) ([]Event, error) {
	if game.PromotionPending == nil {
		return nil, domain.ErrNoPendingPromotion
	}
	if game.PromotionPending.Color != actor {
		return nil, ErrNotYourColor
	}
	if err := game.CancelPromotion(); err != nil {
		return nil, err
	}
	return []Event{
		{
			Kind:    EventPromotionCanceled,
			Payload: PromotionCanceledPayload{State: game.Serialize(true)},
		},
	}, nil
}

// Resign ends the game in the opponent's favor.
func (s *Service) Resign(game *domain.Game, actor domain.Color) ([]Event, error) {
	if game.GameOver {
		return nil, domain.ErrGameOver
	}
	winner := actor.Opposite()
	game.GameOver = true
	game.Winner = &winner
	return []Event{
		{
			Kind: EventGameOver,
			Payload: GameOverPayload{
				Reason: ReasonResign,
				Winner: winner.String(),
				State:  game.Serialize(false),
			},
		},
	}, nil
}

// GetValidMoves answers get_valid_moves for the side to move.
func (s *Service) GetValidMoves(game *domain.Game) []Event {
	return []Event{
		{
			Kind:       EventValidMoves,
			Payload:    ValidMovesPayload{ValidMoves: encodeValidMoves(game.LegalMoves(game.Turn))},
			Recipients: []string{}, // caller fills in the requester's session id
		},
	}
}

// encodeValidMoves mirrors domain.GameState's valid_moves encoding
// ("row,col" keys, [r,c] destination pairs) for the standalone
// get_valid_moves reply, which carries no other game_state fields.
func encodeValidMoves(moves map[domain.Square][]domain.Square) map[string][][2]int {
	out := make(map[string][][2]int, len(moves))
	for from, dests := range moves {
		pairs := make([][2]int, len(dests))
		for i, d := range dests {
			pairs[i] = [2]int{d.Row, d.Col}
		}
		out[fmt.Sprintf("%d,%d", from.Row, from.Col)] = pairs
	}
	return out
}

// terminalEvents appends a game_over event when the just-applied move ended
// the game (checkmate, stalemate, or the king-capture safety net).
func terminalEvents(game *domain.Game) []Event {
	if !game.GameOver {
		return nil
	}
	reason := ReasonStalemate
	if game.Winner != nil {
		reason = ReasonCheckmate
	}
	payload := GameOverPayload{Reason: reason, State: game.Serialize(false)}
	if game.Winner != nil {
		payload.Winner = game.Winner.String()
	}
	return []Event{{Kind: EventGameOver, Payload: payload}}
}
