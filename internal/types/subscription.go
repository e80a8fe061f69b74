package types

import (
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/samber/lo"
)

// SubscriptionStatus is the lifecycle status of a meal subscription
type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusFrozen    SubscriptionStatus = "frozen"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCompleted SubscriptionStatus = "completed"
	SubscriptionStatusRefunded  SubscriptionStatus = "refunded"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsTerminal reports whether normal flow can no longer move the subscription
func (s SubscriptionStatus) IsTerminal() bool {
	switch s {
	case SubscriptionStatusCancelled,
		SubscriptionStatusExpired,
		SubscriptionStatusCompleted,
		SubscriptionStatusRefunded:
		return true
	}
	return false
}

func (s SubscriptionStatus) Validate() error {
	allowed := []SubscriptionStatus{
		SubscriptionStatusPending,
		SubscriptionStatusActive,
		SubscriptionStatusPaused,
		SubscriptionStatusFrozen,
		SubscriptionStatusCancelled,
		SubscriptionStatusExpired,
		SubscriptionStatusCompleted,
		SubscriptionStatusRefunded,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid subscription status").
			WithHint("Invalid subscription status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SelectionMode decides how the meal calendar is filled at creation
type SelectionMode string

const (
	// SelectionModeExplicit uses the per-day product choices supplied by the caller
	SelectionModeExplicit SelectionMode = "explicit"
	// SelectionModeAuto draws products at random from the active catalog
	SelectionModeAuto SelectionMode = "auto"
)

func (m SelectionMode) Validate() error {
	allowed := []SelectionMode{SelectionModeExplicit, SelectionModeAuto}
	if !lo.Contains(allowed, m) {
		return ierr.NewError("invalid selection mode").
			WithHint("Selection mode must be explicit or auto").
			WithReportableDetails(map[string]any{
				"selection_mode": m,
				"allowed":        allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// RefundPolicy selects the refund formula
type RefundPolicy string

const (
	// RefundPolicyFull refunds the entire price inside the grace period and
	// falls back to a partial refund after it
	RefundPolicyFull RefundPolicy = "full"
	// RefundPolicyPartial refunds the unconsumed share of the price
	RefundPolicyPartial RefundPolicy = "partial"
)

func (p RefundPolicy) Validate() error {
	allowed := []RefundPolicy{RefundPolicyFull, RefundPolicyPartial}
	if !lo.Contains(allowed, p) {
		return ierr.NewError("invalid refund policy").
			WithHint("Refund policy must be full or partial").
			WithReportableDetails(map[string]any{
				"policy":  p,
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
