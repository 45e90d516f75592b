package domain

// abilityAllows reports whether, ignoring king-safety, the given ability
// permits a piece of the given color to move from `from` to `to` on this
// board. en passant target is needed only for the pawn ability.
func abilityAllows(b *Board, ability PieceKind, color Color, from, to Square, epTarget *Square) bool {
	dr := to.Row - from.Row
	dc := to.Col - from.Col

	target := b.At(to)
	if target != nil && target.Color == color {
		return false
	}

	switch ability {
	case Pawn:
		return pawnAbilityAllows(b, color, from, to, epTarget)
	case Rook:
		if dr != 0 && dc != 0 {
			return false
		}
		return b.pathClear(from, to)
	case Bishop:
		if abs(dr) != abs(dc) || dr == 0 {
			return false
		}
		return b.pathClear(from, to)
	case Queen:
		if dr != 0 && dc != 0 && abs(dr) != abs(dc) {
			return false
		}
		return b.pathClear(from, to)
	case Knight:
		return (abs(dr) == 1 && abs(dc) == 2) || (abs(dr) == 2 && abs(dc) == 1)
	case King:
		return abs(dr) <= 1 && abs(dc) <= 1 && (dr != 0 || dc != 0)
	default:
		return false
	}
}

func pawnAbilityAllows(b *Board, color Color, from, to Square, epTarget *Square) bool {
	dir := PawnDirection(color)
	dr := to.Row - from.Row
	dc := to.Col - from.Col

	// Single forward push onto an empty square.
	if dc == 0 && dr == dir && b.At(to) == nil {
		return true
	}

	// Double forward push from the start row, both squares empty.
	if dc == 0 && dr == 2*dir && from.Row == PawnStartRow(color) {
		mid := Square{from.Row + dir, from.Col}
		return b.At(mid) == nil && b.At(to) == nil
	}

	// Diagonal capture (including en passant).
	if abs(dc) == 1 && dr == dir {
		if target := b.At(to); target != nil && target.Color != color {
			return true
		}
		if epTarget != nil && *epTarget == to {
			return true
		}
	}

	return false
}

// abilityMoveTargets enumerates every square (ignoring own-king-safety) that
// a piece with the given ability set could move to from `from`, geometric
// rules only. Used for legal-move generation.
func abilityMoveTargets(b *Board, p *Piece, epTarget *Square) []Square {
	var out []Square
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			to := Square{r, c}
			if to == p.Position {
				continue
			}
			for _, ability := range p.Abilities.Kinds() {
				if abilityAllows(b, ability, p.Color, p.Position, to, epTarget) {
					out = append(out, to)
					break
				}
			}
		}
	}
	return out
}

// squareAttackedBy reports whether any piece of attacker's color has a
// geometric (ignoring king-safety) ability-move landing on sq. No en
// passant target is passed; pawn attacks never depend on it (a pawn's
// capture squares are geometric regardless of en passant).
func squareAttackedBy(b *Board, sq Square, attacker Color) bool {
	for _, p := range b.Pieces() {
		if p.Color != attacker {
			continue
		}
		for _, ability := range p.Abilities.Kinds() {
			if ability == Pawn {
				if pawnAttacks(p.Position, attacker, sq) {
					return true
				}
				continue
			}
			if abilityAllows(b, ability, attacker, p.Position, sq, nil) {
				return true
			}
		}
	}
	return false
}

// pawnAttacks reports whether a pawn at from threatens sq purely by its
// diagonal-capture geometry (used for attack/check detection, which must
// not depend on sq being currently occupied).
func pawnAttacks(from Square, color Color, sq Square) bool {
	dir := PawnDirection(color)
	return sq.Row-from.Row == dir && abs(sq.Col-from.Col) == 1
}

// InCheck reports whether color's king is currently attacked.
func (g *Game) InCheck(color Color) bool {
	king := g.Board.King(color)
	if king == nil {
		return false
	}
	return squareAttackedBy(g.Board, king.Position, color.Opposite())
}
