package bot

import (
	"math/rand"

	"absorbchess/internal/domain"
)

// pieceValues mirrors the teacher's chessvariantengine-lib material table in
// spirit (simple centipawn-ish weights), scaled down since absorption chess
// bonuses stack on top of them rather than needing tuned phase weights.
var pieceValues = map[domain.PieceKind]int{
	domain.Pawn:   100,
	domain.Knight: 320,
	domain.Bishop: 330,
	domain.Rook:   500,
	domain.Queen:  900,
	domain.King:   0,
}

// MaterialBrain is the default in-process Brain: a one-ply greedy evaluator
// that values a piece's nominal kind at full weight and any absorbed
// abilities at a fraction of their value (an absorbed rook is a bonus, not
// a second rook). Ties are broken uniformly at random so the bot doesn't
// play a deterministic line against itself.
type MaterialBrain struct{}

func NewMaterialBrain() *MaterialBrain { return &MaterialBrain{} }

func pieceScore(p *domain.Piece) int {
	score := pieceValues[p.Kind]
	for _, ability := range p.Abilities.Kinds() {
		if ability == p.Kind {
			continue
		}
		score += pieceValues[ability] / 4
	}
	return score
}

// materialBalance sums pieceScore across the board from color's point of
// view (color's pieces positive, opponent's negative).
func materialBalance(b *domain.Board, color domain.Color) int {
	total := 0
	for _, p := range b.Pieces() {
		if p.Color == color {
			total += pieceScore(p)
		} else {
			total -= pieceScore(p)
		}
	}
	return total
}

// ChooseMove evaluates every legal move one ply deep on a cloned game
// (via the existing Serialize/Load round trip, so the live game is never
// touched) and picks the move with the best resulting material balance,
// breaking ties at random. depthHint and timeBudget are accepted to match
// spec.md's bestMove seam but unused by this simple evaluator; an
// out-of-process engine could honor them.
func (MaterialBrain) ChooseMove(game *domain.Game, color domain.Color, depthHint int, timeBudget int64) (Move, bool) {
	legal := game.LegalMoves(color)
	if len(legal) == 0 {
		return Move{}, false
	}

	type candidate struct {
		move  Move
		score int
	}
	var best []candidate
	bestScore := minInt

	for from, dests := range legal {
		for _, to := range dests {
			clone, err := domain.LoadGameState(game.Serialize(false))
			if err != nil {
				continue
			}
			if _, err := clone.ApplyMove(from, to, 0); err != nil {
				continue
			}
			if clone.PromotionPending != nil {
				// Auto-resolve to queen for evaluation purposes; the real
				// promotion choice is asked separately via ChoosePromotion.
				if _, err := clone.ApplyPromotion(domain.Queen, 0); err != nil {
					continue
				}
			}
			score := materialBalance(clone.Board, color)
			if clone.GameOver && clone.Winner != nil && *clone.Winner == color {
				score += 100_000
			}
			c := candidate{move: Move{From: from, To: to}, score: score}
			switch {
			case score > bestScore:
				bestScore = score
				best = []candidate{c}
			case score == bestScore:
				best = append(best, c)
			}
		}
	}

	if len(best) == 0 {
		return Move{}, false
	}
	return best[rand.Intn(len(best))].move, true
}

// ChoosePromotion always promotes to queen, the strongest absorbed ability
// a pawn can take.
func (MaterialBrain) ChoosePromotion(game *domain.Game, color domain.Color) domain.PieceKind {
	return domain.Queen
}

const minInt = -1 << 62
