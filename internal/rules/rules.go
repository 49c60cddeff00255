// Package rules holds the pure admission decision for diary generation.
package rules

import "github.com/mochikko/diary-server/internal/models"

// DenyReason explains why an event was not admitted for generation.
type DenyReason string

const (
	ReasonNotSelected      DenyReason = "not selected today"
	ReasonAlreadyCompleted DenyReason = "already completed"
	ReasonQuotaExhausted   DenyReason = "quota exhausted"
	ReasonThrottled        DenyReason = "probability throttled"

	// Produced by the engine, not Evaluate: a generation for this
	// category is already in flight.
	ReasonInFlight DenyReason = "generation in flight"

	// Produced by the engine when the category's context reader has
	// nothing to offer.
	ReasonNoContext DenyReason = "context not available"
)

// Decision is the outcome of evaluating an event against the daily plan.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func deny(r DenyReason) Decision {
	return Decision{Reason: r}
}

// Evaluate decides whether a category may generate an entry under the
// given plan. It never mutates the plan; only the plan manager's commit
// does, and only after the full pipeline succeeds, so a failed
// generation never consumes quota.
//
// roll is a uniform [0,1) draw supplied by the caller; passing it in
// keeps Evaluate pure and repeatable. Deny reasons are checked in
// priority order.
func Evaluate(plan *models.DailyPlan, category models.EventCategory, roll, genProbability float64) Decision {
	if !plan.Selected(category) {
		return deny(ReasonNotSelected)
	}
	if plan.Completed(category) {
		return deny(ReasonAlreadyCompleted)
	}
	if plan.RemainingQuota <= 0 {
		return deny(ReasonQuotaExhausted)
	}
	if roll >= genProbability {
		return deny(ReasonThrottled)
	}
	return Decision{Allowed: true}
}
