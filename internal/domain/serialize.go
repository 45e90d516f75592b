package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// MarshalJSON encodes a Square as a [row, col] pair, matching the wire
// format used throughout game_state (board coordinates, move history,
// valid_moves).
func (sq Square) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{sq.Row, sq.Col})
}

// UnmarshalJSON decodes a [row, col] pair into a Square.
func (sq *Square) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	sq.Row, sq.Col = pair[0], pair[1]
	return nil
}

// MarshalJSON encodes a PieceKind as its wire-format name ("pawn", "rook",
// ...), the same string Piece.Kind/Abilities use everywhere else on the
// wire - MoveRecord embeds PieceKind fields directly and must not leak the
// underlying int.
func (k PieceKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a wire-format kind name back into a PieceKind.
func (k *PieceKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	kind, ok := ParsePieceKind(s)
	if !ok {
		return fmt.Errorf("domain: unknown piece kind %q", s)
	}
	*k = kind
	return nil
}

// wirePiece is the JSON shape of one occupied board cell.
type wirePiece struct {
	Kind      string   `json:"kind"`
	Color     string   `json:"color"`
	Abilities []string `json:"abilities"`
	HasMoved  bool     `json:"has_moved"`
}

func (p *Piece) toWire() *wirePiece {
	if p == nil {
		return nil
	}
	kinds := p.Abilities.Kinds()
	abilities := make([]string, 0, len(kinds))
	for _, k := range kinds {
		abilities = append(abilities, k.String())
	}
	return &wirePiece{
		Kind:      p.Kind.String(),
		Color:     p.Color.String(),
		Abilities: abilities,
		HasMoved:  p.HasMoved,
	}
}

func pieceFromWire(w *wirePiece, sq Square) (*Piece, error) {
	if w == nil {
		return nil, nil
	}
	kind, ok := ParsePieceKind(w.Kind)
	if !ok {
		return nil, fmt.Errorf("domain: unknown piece kind %q", w.Kind)
	}
	color, ok := ParseColor(w.Color)
	if !ok {
		return nil, fmt.Errorf("domain: unknown color %q", w.Color)
	}
	var abilities AbilitySet
	for _, a := range w.Abilities {
		ak, ok := ParsePieceKind(a)
		if !ok {
			return nil, fmt.Errorf("domain: unknown ability %q", a)
		}
		abilities = abilities.Add(ak)
	}
	abilities = abilities.Add(kind)
	return &Piece{Kind: kind, Color: color, Abilities: abilities, Position: sq, HasMoved: w.HasMoved}, nil
}

// wirePromotionPending mirrors PromotionPending with string-encoded color.
type wirePromotionPending struct {
	Square Square `json:"square"`
	From   Square `json:"from"`
	Color  string `json:"color"`
}

// GameState is the exact shape broadcast to clients as the `game_state`
// field of several message types. ValidMoves is populated only when the
// caller asked for it via Serialize(true); get_valid_moves replies are
// built separately by app.Service.GetValidMoves.
type GameState struct {
	Board                  [8][8]*wirePiece      `json:"board"`
	CurrentTurn            string                `json:"current_turn"`
	GameOver               bool                  `json:"game_over"`
	Winner                 *string               `json:"winner"`
	MoveHistory            []MoveRecord          `json:"move_history"`
	WhiteKingInCheck       bool                  `json:"white_king_in_check"`
	BlackKingInCheck       bool                  `json:"black_king_in_check"`
	EnPassantTarget        *Square               `json:"en_passant_target"`
	PromotionPending       *wirePromotionPending `json:"promotion_pending"`
	PromotionCancelAllowed bool                  `json:"promotion_cancel_allowed"`
	Clock                  Clock                 `json:"clock"`
	ValidMoves             map[string][][2]int   `json:"valid_moves,omitempty"`
}

// Serialize builds the wire payload for the current position. When
// includeValidMoves is true, ValidMoves is populated for the side to move
// (every move_made/game_started broadcast).
func (g *Game) Serialize(includeValidMoves bool) *GameState {
	gs := &GameState{
		CurrentTurn:            g.Turn.String(),
		GameOver:               g.GameOver,
		MoveHistory:            g.History,
		WhiteKingInCheck:       g.WhiteInCheck,
		BlackKingInCheck:       g.BlackInCheck,
		EnPassantTarget:        g.EnPassant,
		PromotionCancelAllowed: g.PromotionCancelAllowed,
		Clock:                  g.Clock,
	}

	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			gs.Board[r][c] = g.Board.At(Square{r, c}).toWire()
		}
	}

	if g.Winner != nil {
		w := g.Winner.String()
		gs.Winner = &w
	}

	if g.PromotionPending != nil {
		gs.PromotionPending = &wirePromotionPending{
			Square: g.PromotionPending.Square,
			From:   g.PromotionPending.From,
			Color:  g.PromotionPending.Color.String(),
		}
	}

	if includeValidMoves {
		gs.ValidMoves = encodeValidMoves(g.LegalMoves(g.Turn))
	}

	return gs
}

// encodeValidMoves converts the domain-typed legal-move map into the
// "row,col" -> [][2]int shape the wire format specifies. Each destination
// list is sorted by row, then column; the map itself has no key order.
func encodeValidMoves(moves map[Square][]Square) map[string][][2]int {
	out := make(map[string][][2]int, len(moves))
	for from, dests := range moves {
		key := fmt.Sprintf("%d,%d", from.Row, from.Col)
		pairs := make([][2]int, len(dests))
		for i, d := range dests {
			pairs[i] = [2]int{d.Row, d.Col}
		}
		sort.Slice(pairs, func(i, j int) bool {
			if pairs[i][0] != pairs[j][0] {
				return pairs[i][0] < pairs[j][0]
			}
			return pairs[i][1] < pairs[j][1]
		})
		out[key] = pairs
	}
	return out
}

// LoadGameState reconstructs a live Game from a previously-serialized
// payload, used only on cold-start recovery from the durable snapshot
// (the server is authoritative on live state; the snapshot is a recovery
// aid, never read during normal play).
func LoadGameState(gs *GameState) (*Game, error) {
	// A game rebuilt from a snapshot loses the in-memory undo record for an
	// in-flight promotion (it is never persisted); cancel_promotion on such a
	// game fails with ErrNoPendingPromotion, and the player resolves it via
	// a promotion choice (ApplyPromotion) instead. Recovery only matters while a socket is still
	// attached to replay the outstanding choice, so this is an accepted gap.
	g := &Game{
		Board:                  &Board{},
		GameOver:               gs.GameOver,
		WhiteInCheck:           gs.WhiteKingInCheck,
		BlackInCheck:           gs.BlackKingInCheck,
		PromotionCancelAllowed: gs.PromotionCancelAllowed,
		Clock:                  gs.Clock,
		History:                gs.MoveHistory,
	}

	turn, ok := ParseColor(gs.CurrentTurn)
	if !ok {
		return nil, fmt.Errorf("domain: unknown turn color %q", gs.CurrentTurn)
	}
	g.Turn = turn

	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			p, err := pieceFromWire(gs.Board[r][c], Square{r, c})
			if err != nil {
				return nil, err
			}
			g.Board.Set(Square{r, c}, p)
		}
	}

	if gs.Winner != nil {
		w, ok := ParseColor(*gs.Winner)
		if !ok {
			return nil, fmt.Errorf("domain: unknown winner color %q", *gs.Winner)
		}
		g.Winner = &w
	}

	g.EnPassant = gs.EnPassantTarget

	if gs.PromotionPending != nil {
		color, ok := ParseColor(gs.PromotionPending.Color)
		if !ok {
			return nil, fmt.Errorf("domain: unknown promotion color %q", gs.PromotionPending.Color)
		}
		g.PromotionPending = &PromotionPending{
			Square: gs.PromotionPending.Square,
			From:   gs.PromotionPending.From,
			Color:  color,
		}
	}

	return g, nil
}
