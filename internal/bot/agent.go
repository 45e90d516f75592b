package bot

import (
	"math/rand"
	"time"

	"absorbchess/internal/domain"
)

// Agent adapts a Brain to the narrow (game, color) -> (from, to, ok) shape
// match.Bot expects, fixing the depth hint and time budget the Match
// Controller doesn't otherwise need to know about. Grounded on the
// teacher's bot.Agent wrapping a Strategy/Brain behind a fixed-shape Play
// method.
type Agent struct {
	Brain        Brain
	DepthHint    int
	TimeBudgetMs int64

	MinDelay time.Duration
	MaxDelay time.Duration
}

// NewAgent builds an Agent around brain with the given search parameters
// and think-time jitter bounds (original_source/server/engine/bot_engine.py's
// random delay before submitting a move, restored per SPEC_FULL §C.1).
func NewAgent(brain Brain, depthHint int, timeBudgetMs int64, minDelay, maxDelay time.Duration) *Agent {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Agent{Brain: brain, DepthHint: depthHint, TimeBudgetMs: timeBudgetMs, MinDelay: minDelay, MaxDelay: maxDelay}
}

// ChooseMove satisfies match.Bot.
func (a *Agent) ChooseMove(game *domain.Game, color domain.Color) (domain.Square, domain.Square, bool) {
	mv, ok := a.Brain.ChooseMove(game, color, a.DepthHint, a.TimeBudgetMs)
	return mv.From, mv.To, ok
}

// ChoosePromotion satisfies match.Bot.
func (a *Agent) ChoosePromotion(game *domain.Game, color domain.Color) domain.PieceKind {
	return a.Brain.ChoosePromotion(game, color)
}

// ThinkDelay picks a random delay within [MinDelay, MaxDelay] for the
// caller to wait before applying the bot's chosen move, so a bot doesn't
// respond instantly.
func (a *Agent) ThinkDelay() time.Duration {
	if a.MaxDelay <= a.MinDelay {
		return a.MinDelay
	}
	span := a.MaxDelay - a.MinDelay
	return a.MinDelay + time.Duration(rand.Int63n(int64(span)))
}
