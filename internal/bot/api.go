// Package bot implements the AI Adapter seam spec.md §4.9 describes as a
// black box: bestMove(position, depthHint, timeBudget) -> move. The
// interface here keeps that seam narrow so a future out-of-process search
// engine can be swapped in without touching the Match Controller; the
// default Brain is an in-process material/positional evaluator grounded on
// chessvariantengine-lib/search.go's weighting shape, simplified to fit the
// "black box" framing (no UCI, no opening book).
package bot

import "absorbchess/internal/domain"

// Move is the bot's chosen from/to move. Pending promotions are resolved
// separately through Brain.ChoosePromotion.
type Move struct {
	From, To domain.Square
}

// Brain is the interface every bot strategy implements, mirroring the
// teacher's bot.Brain (CalculateMove(game, player)) generalized from card
// combinations to chess moves.
type Brain interface {
	// ChooseMove picks a move for color to play, given the depth hint and
	// time budget spec.md's bestMove signature specifies. ok is false only
	// if color has no legal move (the Match Controller should not have
	// asked in that case; terminal adjudication already ended the game).
	ChooseMove(game *domain.Game, color domain.Color, depthHint int, timeBudget int64) (Move, bool)

	// ChoosePromotion resolves a pending promotion for color. Always
	// returns a valid promotion kind (queen, rook, bishop, or knight).
	ChoosePromotion(game *domain.Game, color domain.Color) domain.PieceKind
}
