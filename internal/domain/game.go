package domain

// MoveRecord is a value-copy snapshot of one applied half-move, kept in
// Game.History. It never holds a pointer into the live board so history
// survives captures and promotions unchanged.
type MoveRecord struct {
	From              Square      `json:"from"`
	To                Square      `json:"to"`
	PieceKind         PieceKind   `json:"piece_kind"`
	CapturedKind      *PieceKind  `json:"captured_kind,omitempty"`
	EnPassantCaptured bool        `json:"en_passant_captured,omitempty"`
	AbilitiesGained   []PieceKind `json:"abilities_gained,omitempty"`
	PromotedTo        *PieceKind  `json:"promoted_to,omitempty"`
}

// PromotionPending names the pawn awaiting a promotion_choice/cancel from
// its owner: Square is its current (last-rank) position, From is the
// square it moved from, needed to restore on cancel_promotion.
type PromotionPending struct {
	Square Square `json:"square"`
	From   Square `json:"from"`
	Color  Color  `json:"color"`
}

// CastleStatus records, per color, whether that side has ever completed a
// castle (king_castled in the wire payload).
type CastleStatus struct {
	White bool `json:"white"`
	Black bool `json:"black"`
}

// promotionUndo is the bookkeeping cancel_promotion needs to put the board
// back exactly as it was before the promoting move, without keeping a
// second copy of the whole board (Design Notes' "record the delta, not the
// snapshot" style of undo).
type promotionUndo struct {
	from, to               Square
	captured               *Piece
	enPassantCaptureSquare *Square
	enPassantCapturedPiece *Piece
	prevAbilities          AbilitySet
	prevHasMoved           bool
	prevEnPassant          *Square
}

type pendingPromotionMove struct {
	record MoveRecord
	undo   promotionUndo
}

// Game is a live position plus the bookkeeping Design Notes §4 calls for:
// turn, terminal state, history, en-passant target, a pending promotion,
// and both sides' clocks. PromotionCancelAllowed is a per-server setting
// (§Open Questions) threaded in at construction, not a global.
type Game struct {
	Board *Board

	Turn     Color
	GameOver bool
	Winner   *Color

	History []MoveRecord

	WhiteInCheck bool
	BlackInCheck bool

	EnPassant *Square

	PromotionPending       *PromotionPending
	PromotionCancelAllowed bool
	pending                *pendingPromotionMove

	Clock Clock

	KingCastled CastleStatus
}

// NewGame returns a fresh standard-position game with the given clock
// settings. now is the creation timestamp in milliseconds, used to seed
// LastTurnStart so the first remaining_to_move computation is correct.
func NewGame(whiteMs, blackMs, incrementMs, now int64, promotionCancelAllowed bool) *Game {
	g := &Game{
		Board:                  NewStandardBoard(),
		Turn:                   White,
		PromotionCancelAllowed: promotionCancelAllowed,
		Clock: Clock{
			WhiteMs:       whiteMs,
			BlackMs:       blackMs,
			IncrementMs:   incrementMs,
			LastTurnStart: now,
		},
	}
	g.recomputeCheckFlags()
	return g
}

func (g *Game) recomputeCheckFlags() {
	g.WhiteInCheck = g.InCheck(White)
	g.BlackInCheck = g.InCheck(Black)
}

// ApplyMove validates and executes a server-received move. now is the
// caller's millisecond timestamp, used for clock bookkeeping.
func (g *Game) ApplyMove(from, to Square, now int64) (*MoveRecord, error) {
	if g.GameOver {
		return nil, ErrGameOver
	}
	if g.PromotionPending != nil {
		return nil, ErrPromotionPendingMustResolve
	}
	if !from.InBounds() || !to.InBounds() {
		return nil, ErrOutOfBounds
	}

	piece := g.Board.At(from)
	if piece == nil {
		return nil, ErrNoPiece
	}
	if piece.Color != g.Turn {
		return nil, ErrWrongTurn
	}
	if target := g.Board.At(to); target != nil && target.Color == piece.Color {
		return nil, ErrOwnPieceAtTarget
	}

	if piece.Kind == King && to.Row == from.Row && abs(to.Col-from.Col) == 2 {
		return g.applyCastle(piece, from, to, now)
	}

	if !g.moveAllowedByAnyAbility(piece, from, to) {
		return nil, abilityDisallows()
	}
	if g.wouldLeaveKingInCheck(from, to, piece.Color) {
		return nil, ErrPutsOwnKingInCheck
	}

	return g.executeOrdinaryMove(piece, from, to, now)
}

// moveAllowedByAnyAbility reports whether some ability in piece's set
// permits the from->to geometry, given the live en-passant target.
func (g *Game) moveAllowedByAnyAbility(piece *Piece, from, to Square) bool {
	for _, ability := range piece.Abilities.Kinds() {
		if abilityAllows(g.Board, ability, piece.Color, from, to, g.EnPassant) {
			return true
		}
	}
	return false
}

// wouldLeaveKingInCheck simulates from->to on a cloned board (including an
// en-passant capture, if that's what the move is) and reports whether the
// mover's own king ends up attacked.
func (g *Game) wouldLeaveKingInCheck(from, to Square, mover Color) bool {
	sim := g.Board.clone()
	simulateOrdinaryMove(sim, from, to, g.EnPassant)
	king := sim.King(mover)
	if king == nil {
		return false
	}
	return squareAttackedBy(sim, king.Position, mover.Opposite())
}

// simulateOrdinaryMove applies from->to to b, including an en-passant
// capture if applicable, without touching history/abilities/clocks. Shared
// by the king-safety simulator and, on the real board, executeOrdinaryMove.
func simulateOrdinaryMove(b *Board, from, to Square, epTarget *Square) (captured *Piece, epCaptured *Piece, epCapturedSq *Square) {
	moving := b.At(from)
	isEnPassant := epTarget != nil && to == *epTarget && moving != nil && moving.HasAbility(Pawn) &&
		to.Row-from.Row == PawnDirection(moving.Color) && abs(to.Col-from.Col) == 1 && b.At(to) == nil

	if isEnPassant {
		capSq := Square{to.Row - PawnDirection(moving.Color), to.Col}
		epCapturedSq = &capSq
		epCaptured = b.At(capSq)
		b.Clear(capSq)
	}
	captured = b.Move(from, to)
	return captured, epCaptured, epCapturedSq
}

// executeOrdinaryMove performs a legality-cleared, non-castling move on the
// live board: applies en-passant capture, absorption, has_moved, the
// en-passant target lifecycle, promotion detection, and (unless a
// promotion is now pending) the turn switch, clock advance, check-flag
// recompute, and terminal adjudication.
func (g *Game) executeOrdinaryMove(piece *Piece, from, to Square, now int64) (*MoveRecord, error) {
	prevEnPassant := g.EnPassant
	captured, epCaptured, epCapSq := simulateOrdinaryMove(g.Board, from, to, g.EnPassant)
	if epCaptured != nil {
		captured = epCaptured
	}

	rec := MoveRecord{From: from, To: to, PieceKind: piece.Kind}
	if captured != nil {
		kind := captured.Kind
		rec.CapturedKind = &kind
	}
	if epCapSq != nil {
		rec.EnPassantCaptured = true
	}

	if captured != nil && captured.Kind == King {
		piece.HasMoved = true
		g.appendHistory(rec)
		g.endGame(piece.Color)
		return &rec, nil
	}

	prevHasMoved := piece.HasMoved
	prevAbilities := piece.Abilities
	if captured != nil && !piece.Abilities.Has(captured.Kind) {
		rec.AbilitiesGained = []PieceKind{captured.Kind}
		piece.Absorb(captured.Kind)
	}
	piece.HasMoved = true

	if piece.HasAbility(Pawn) && from.Col == to.Col && abs(to.Row-from.Row) == 2 &&
		to.Row-from.Row == 2*PawnDirection(piece.Color) && from.Row == PawnStartRow(piece.Color) {
		mid := Square{(from.Row + to.Row) / 2, from.Col}
		g.EnPassant = &mid
	} else {
		g.EnPassant = nil
	}

	if piece.Kind == Pawn && to.Row == PromotionRow(piece.Color) {
		g.pending = &pendingPromotionMove{
			record: rec,
			undo: promotionUndo{
				from: from, to: to,
				captured:               captured,
				enPassantCaptureSquare: epCapSq,
				enPassantCapturedPiece: epCaptured,
				prevAbilities:          prevAbilities,
				prevHasMoved:           prevHasMoved,
				prevEnPassant:          prevEnPassant,
			},
		}
		g.PromotionPending = &PromotionPending{Square: to, From: from, Color: piece.Color}
		return &rec, nil
	}

	g.appendHistory(rec)
	g.finishTurn(piece.Color, now)
	return &rec, nil
}

func (g *Game) appendHistory(rec MoveRecord) {
	g.History = append(g.History, rec)
}

// finishTurn switches the turn, advances the outgoing mover's clock, and
// runs terminal adjudication for the incoming side. Never called while a
// promotion is pending.
func (g *Game) finishTurn(mover Color, now int64) {
	g.Clock.advance(mover, now)
	g.Turn = mover.Opposite()
	g.recomputeCheckFlags()
	g.adjudicateTerminal()
}

func (g *Game) endGame(winner Color) {
	g.GameOver = true
	w := winner
	g.Winner = &w
	g.recomputeCheckFlags()
}

// adjudicateTerminal implements spec.md §4.3: if the side to move has no
// legal move, checkmate (in check) or stalemate (not in check).
func (g *Game) adjudicateTerminal() {
	if g.GameOver {
		return
	}
	if len(g.LegalMoves(g.Turn)) > 0 {
		return
	}
	g.GameOver = true
	if g.InCheck(g.Turn) {
		winner := g.Turn.Opposite()
		g.Winner = &winner
	} else {
		g.Winner = nil
	}
}

// LegalMoves enumerates every destination square reachable by each of
// color's pieces without leaving its own king in check, including castling
// destinations. Also the source of the wire-format valid_moves payload.
func (g *Game) LegalMoves(color Color) map[Square][]Square {
	out := make(map[Square][]Square)
	for _, p := range g.Board.Pieces() {
		if p.Color != color {
			continue
		}
		var dests []Square
		for _, to := range abilityMoveTargets(g.Board, p, g.EnPassant) {
			if g.wouldLeaveKingInCheck(p.Position, to, color) {
				continue
			}
			dests = append(dests, to)
		}
		if p.Kind == King {
			for _, to := range g.castleDestinations(p) {
				dests = append(dests, to)
			}
		}
		if len(dests) > 0 {
			out[p.Position] = dests
		}
	}
	return out
}

func (g *Game) castleDestinations(king *Piece) []Square {
	var out []Square
	row := king.Position.Row
	for _, to := range []Square{{row, king.Position.Col + 2}, {row, king.Position.Col - 2}} {
		if g.canCastle(king.Color, king.Position, to) == nil {
			out = append(out, to)
		}
	}
	return out
}
