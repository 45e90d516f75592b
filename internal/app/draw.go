package app

import "absorbchess/internal/domain"

const (
	drawOfferLimit  = 3
	drawOfferWindow = 60_000 // ms
)

// DrawOfferTracker enforces the per-offerer rate limit on offer_draw (at
// most 3 offers per rolling 60s) and holds whether an offer is currently
// outstanding. One instance lives per match, owned by the Match Controller.
type DrawOfferTracker struct {
	offerTimestamps map[domain.Color][]int64
	pendingFrom     *domain.Color
}

func NewDrawOfferTracker() *DrawOfferTracker {
	return &DrawOfferTracker{offerTimestamps: make(map[domain.Color][]int64)}
}

// allow prunes timestamps outside the rolling window and reports whether
// color may send another offer right now. Unlike a token-bucket limiter, a
// rejected attempt is never recorded - only a successful offer extends the
// window - so repeated blocked retries can't keep pushing retryAfter out
// (original_source/server/handlers/game_handler.py only appends on success).
// retryAfter is the seconds remaining until the oldest offer in the window
// ages out, computed from that offer's timestamp rather than hardcoded.
func (t *DrawOfferTracker) allow(color domain.Color, now int64) (ok bool, retryAfter int) {
	kept := t.offerTimestamps[color][:0]
	for _, ts := range t.offerTimestamps[color] {
		if now-ts < drawOfferWindow {
			kept = append(kept, ts)
		}
	}
	t.offerTimestamps[color] = kept
	if len(kept) < drawOfferLimit {
		t.offerTimestamps[color] = append(kept, now)
		return true, 0
	}
	oldest := kept[0]
	retryAfter = int(drawOfferWindow/1000) - int((now-oldest)/1000)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return false, retryAfter
}

// OfferDraw records actor's offer if under the rate limit, else returns a
// draw_offer_rate_limited event naming the retry-after window.
func (s *Service) OfferDraw(tracker *DrawOfferTracker, game *domain.Game, actor domain.Color, now int64) ([]Event, error) {
	if game.GameOver {
		return nil, domain.ErrGameOver
	}
	ok, retryAfter := tracker.allow(actor, now)
	if !ok {
		return []Event{
			{
				Kind:       EventDrawOfferRateLimited,
				Payload:    DrawOfferRateLimitedPayload{RetryAfterSeconds: retryAfter},
				Recipients: []string{}, // caller fills in the offerer's session id
			},
		}, nil
	}
	tracker.pendingFrom = &actor
	return []Event{
		{
			Kind:    EventDrawOffered,
			Payload: DrawOfferedPayload{FromColor: actor.String()},
		},
		{
			Kind:       EventDrawOfferAck,
			Recipients: []string{}, // caller fills in the offerer's session id
		},
	}, nil
}

// AcceptDraw ends the game with no winner. Valid for either color, since
// accept_draw is sent by whoever received the offer.
func (s *Service) AcceptDraw(tracker *DrawOfferTracker, game *domain.Game) ([]Event, error) {
	if game.GameOver {
		return nil, domain.ErrGameOver
	}
	if tracker.pendingFrom == nil {
		return nil, ErrNoDrawOffer
	}
	tracker.pendingFrom = nil
	game.GameOver = true
	game.Winner = nil
	return []Event{
		{
			Kind: EventGameOver,
			Payload: GameOverPayload{
				Reason: ReasonDraw,
				State:  game.Serialize(false),
			},
		},
	}, nil
}

// DeclineDraw notifies the original offerer and clears the pending state.
func (s *Service) DeclineDraw(tracker *DrawOfferTracker, game *domain.Game) ([]Event, error) {
	if game.GameOver {
		return nil, domain.ErrGameOver
	}
	if tracker.pendingFrom == nil {
		return nil, ErrNoDrawOffer
	}
	tracker.pendingFrom = nil
	return []Event{{Kind: EventDrawDeclined}}, nil
}

// ExpireDrawOffer clears any outstanding offer implicitly, per spec: an
// offer expires the moment either player's next move is applied.
func (t *DrawOfferTracker) ExpireDrawOffer() {
	t.pendingFrom = nil
}
