package domain

// canCastle checks every precondition in spec.md §4.4: the king has never
// moved, the corresponding rook is present, of the right color and kind,
// and has never moved, the squares between them are empty, the king is not
// currently in check, and neither the square it crosses nor its
// destination is attacked. Returns nil when the castle is legal.
func (g *Game) canCastle(color Color, from, to Square) error {
	king := g.Board.At(from)
	if king == nil || king.Kind != King || king.Color != color {
		return abilityDisallows("no king at origin")
	}
	if king.HasMoved {
		return abilityDisallows("king has moved")
	}

	dc := to.Col - from.Col
	if to.Row != from.Row || (dc != 2 && dc != -2) {
		return abilityDisallows("not a castling move")
	}
	dir := signOf(dc)

	rookCol := 7
	if dir < 0 {
		rookCol = 0
	}
	rookSq := Square{from.Row, rookCol}
	rook := g.Board.At(rookSq)
	if rook == nil || rook.Kind != Rook || rook.Color != color || rook.HasMoved {
		return abilityDisallows("rook unavailable")
	}

	if !g.Board.pathClear(from, rookSq) {
		return abilityDisallows("path not clear")
	}

	if g.InCheck(color) {
		return abilityDisallows("king in check")
	}

	crossed := Square{from.Row, from.Col + dir}
	destination := Square{from.Row, from.Col + 2*dir}
	opponent := color.Opposite()
	if squareAttackedBy(g.Board, crossed, opponent) || squareAttackedBy(g.Board, destination, opponent) {
		return abilityDisallows("crossed or destination square attacked")
	}

	return nil
}

// applyCastle executes a validated castle: the king moves two squares
// toward the rook, the rook jumps to the square the king crossed, and
// king_castled[color] is recorded. Castling never triggers promotion, so
// the turn always switches.
func (g *Game) applyCastle(king *Piece, from, to Square, now int64) (*MoveRecord, error) {
	if err := g.canCastle(king.Color, from, to); err != nil {
		return nil, err
	}

	dir := signOf(to.Col - from.Col)
	rookCol := 7
	if dir < 0 {
		rookCol = 0
	}
	rookFrom := Square{from.Row, rookCol}
	rookTo := Square{from.Row, from.Col + dir}

	g.Board.Move(from, to)
	king.HasMoved = true

	g.Board.Move(rookFrom, rookTo)
	if r := g.Board.At(rookTo); r != nil {
		r.HasMoved = true
	}

	if king.Color == White {
		g.KingCastled.White = true
	} else {
		g.KingCastled.Black = true
	}

	g.EnPassant = nil
	rec := MoveRecord{From: from, To: to, PieceKind: King}
	g.appendHistory(rec)
	g.finishTurn(king.Color, now)
	return &rec, nil
}
