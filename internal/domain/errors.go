package domain

import "strings"

// Rule violations never escape this package as panics; every failure mode
// from spec.md's taxonomy is a *RuleError carrying a stable Reason plus
// optional human-readable Details, per Design Notes §9 ("convert exceptions
// to tagged-result values").
type RuleError struct {
	Reason  string
	Details []string
}

func (e *RuleError) Error() string {
	if len(e.Details) == 0 {
		return e.Reason
	}
	return e.Reason + ": " + strings.Join(e.Details, "; ")
}

// Reason constants mirror spec.md §4.2's failure-mode list verbatim, plus a
// couple that only arise on the apply_promotion/cancel_promotion path.
const (
	ReasonWrongTurn                   = "wrong_turn"
	ReasonNoPiece                     = "no_piece"
	ReasonOwnPieceAtTarget            = "own_piece_at_target"
	ReasonOutOfBounds                 = "out_of_bounds"
	ReasonAbilityDisallows            = "ability_disallows"
	ReasonPutsOwnKingInCheck          = "puts_own_king_in_check"
	ReasonPromotionPendingMustResolve = "promotion_pending_must_resolve"
	ReasonGameOver                    = "game_over"
	ReasonNoPendingPromotion          = "no_pending_promotion"
	ReasonInvalidPromotionChoice      = "invalid_promotion_choice"
	ReasonPromotionCancelDisabled     = "promotion_cancel_disabled"
)

var (
	ErrWrongTurn                   = &RuleError{Reason: ReasonWrongTurn}
	ErrNoPiece                     = &RuleError{Reason: ReasonNoPiece}
	ErrOwnPieceAtTarget            = &RuleError{Reason: ReasonOwnPieceAtTarget}
	ErrOutOfBounds                 = &RuleError{Reason: ReasonOutOfBounds}
	ErrPutsOwnKingInCheck          = &RuleError{Reason: ReasonPutsOwnKingInCheck}
	ErrPromotionPendingMustResolve = &RuleError{Reason: ReasonPromotionPendingMustResolve}
	ErrGameOver                    = &RuleError{Reason: ReasonGameOver}
	ErrNoPendingPromotion          = &RuleError{Reason: ReasonNoPendingPromotion}
	ErrInvalidPromotionChoice      = &RuleError{Reason: ReasonInvalidPromotionChoice}
	ErrPromotionCancelDisabled     = &RuleError{Reason: ReasonPromotionCancelDisabled}
)

// abilityDisallows builds a ReasonAbilityDisallows error with diagnostic
// details (e.g. which attacked square blocked a castle).
func abilityDisallows(details ...string) *RuleError {
	return &RuleError{Reason: ReasonAbilityDisallows, Details: details}
}

// Is reports reason equality so callers can use errors.Is(err, domain.ErrWrongTurn)
// even though distinct *RuleError values may carry different Details.
func (e *RuleError) Is(target error) bool {
	other, ok := target.(*RuleError)
	if !ok {
		return false
	}
	return e.Reason == other.Reason
}
