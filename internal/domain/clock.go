package domain

// Clock holds each side's remaining time and the increment applied after a
// completed move. LastTurnStart is a monotonic-millisecond timestamp that
// the caller supplies - the domain layer never reads the wall clock itself,
// keeping ApplyMove pure and synchronous per spec.md §5.
type Clock struct {
	WhiteMs       int64 `json:"white_ms"`
	BlackMs       int64 `json:"black_ms"`
	IncrementMs   int64 `json:"increment_ms"`
	LastTurnStart int64 `json:"last_turn_start"`
}

// RemainingToMove implements spec.md §4.6's
// remaining_to_move(now) = clock[turn] - (now - last_turn_start).
// It is a pure projection; the Match Controller's move path and the Clock
// Scanner (via Match.RemainingToMoveMs) call it to detect a flag-fall
// without mutating state.
func (c *Clock) RemainingToMove(turn Color, now int64) int64 {
	return c.forColor(turn) - (now - c.LastTurnStart)
}

func (c *Clock) forColor(color Color) int64 {
	if color == White {
		return c.WhiteMs
	}
	return c.BlackMs
}

func (c *Clock) setForColor(color Color, ms int64) {
	if ms < 0 {
		ms = 0
	}
	if color == White {
		c.WhiteMs = ms
	} else {
		c.BlackMs = ms
	}
}

// advance deducts the elapsed interval from mover's clock, adds the
// increment, and resets LastTurnStart to now. Called only on a move that
// switches the turn (promotion-pending moves do not touch the clock, per
// spec.md §4.1/§4.6).
func (c *Clock) advance(mover Color, now int64) {
	elapsed := now - c.LastTurnStart
	remaining := c.forColor(mover) - elapsed
	c.setForColor(mover, remaining+c.IncrementMs)
	c.LastTurnStart = now
}
