package domain

// ApplyPromotion resolves a pending promotion with the owner's chosen
// kind. Per spec.md §4.4: the pawn's nominal kind becomes choice, choice
// is added to its abilities (any ability gained during the promoting move,
// including an absorbed capture, is kept), promotion_pending clears, the
// turn switches, and the promoting side's clock gets its increment.
func (g *Game) ApplyPromotion(choice PieceKind, now int64) (*MoveRecord, error) {
	if g.PromotionPending == nil {
		return nil, ErrNoPendingPromotion
	}
	switch choice {
	case Queen, Rook, Bishop, Knight:
	default:
		return nil, ErrInvalidPromotionChoice
	}

	piece := g.Board.At(g.PromotionPending.Square)
	if piece == nil {
		return nil, ErrNoPendingPromotion
	}

	piece.Kind = choice
	piece.Abilities = piece.Abilities.Add(choice)

	// A game restored by LoadGameState has no in-memory record of the
	// promoting move; rebuild the basic one from PromotionPending.
	var rec MoveRecord
	if g.pending != nil {
		rec = g.pending.record
	} else {
		rec = MoveRecord{From: g.PromotionPending.From, To: g.PromotionPending.Square, PieceKind: Pawn}
	}
	rec.PromotedTo = &choice

	mover := g.PromotionPending.Color
	g.PromotionPending = nil
	g.pending = nil

	g.appendHistory(rec)
	g.finishTurn(mover, now)
	return &rec, nil
}

// CancelPromotion reverts the promoting move entirely: the pawn returns to
// its origin square with its pre-move abilities, any captured piece (board
// or en-passant) is restored, promotion_pending clears, and the turn
// remains with the promoting player. Only valid when the server-wide
// promotion_cancel_allowed setting is enabled.
func (g *Game) CancelPromotion() error {
	if g.PromotionPending == nil || g.pending == nil {
		return ErrNoPendingPromotion
	}
	if !g.PromotionCancelAllowed {
		return ErrPromotionCancelDisabled
	}

	undo := g.pending.undo

	pawn := g.Board.At(undo.to)
	g.Board.Clear(undo.to)
	if pawn != nil {
		pawn.Abilities = undo.prevAbilities
		pawn.HasMoved = undo.prevHasMoved
	}
	g.Board.Set(undo.from, pawn)

	if undo.enPassantCaptureSquare != nil {
		g.Board.Set(*undo.enPassantCaptureSquare, undo.enPassantCapturedPiece)
	} else if undo.captured != nil {
		g.Board.Set(undo.to, undo.captured)
	}

	g.EnPassant = undo.prevEnPassant
	g.PromotionPending = nil
	g.pending = nil
	g.recomputeCheckFlags()
	return nil
}
