package need

import "time"

// Urgency levels.
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// Need statuses. Transitions only move forward from StatusOpen; the three
// closed states are terminal.
const (
	StatusOpen      = "open"
	StatusFulfilled = "fulfilled"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
)

// Need is a demand post: what a business is looking to buy.
type Need struct {
	ID                 string
	BusinessID         string
	NeedType           string
	Category           string
	Subcategory        string
	Title              string
	Description        string
	BudgetMin          *float64
	BudgetMax          *float64
	Urgency            string
	Quantity           string
	PreferredLocations []string
	Status             string
	ExpiresAt          *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CanTransition reports whether a need may move from its current status to
// the target. Only open needs may change state.
func CanTransition(from, to string) bool {
	if from != StatusOpen {
		return false
	}
	switch to {
	case StatusFulfilled, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// BudgetMidpoint returns the midpoint of the budget range and whether one is
// defined.
func (n Need) BudgetMidpoint() (float64, bool) {
	switch {
	case n.BudgetMin != nil && n.BudgetMax != nil:
		return (*n.BudgetMin + *n.BudgetMax) / 2, true
	case n.BudgetMin != nil:
		return *n.BudgetMin, true
	case n.BudgetMax != nil:
		return *n.BudgetMax, true
	default:
		return 0, false
	}
}

// Matchable reports whether the need is eligible for supplier matching. An
// unset status counts as open so ad-hoc query needs that were never persisted
// still match.
func (n Need) Matchable(now time.Time) bool {
	if n.Status != "" && n.Status != StatusOpen {
		return false
	}
	if n.ExpiresAt != nil && n.ExpiresAt.Before(now) {
		return false
	}
	return true
}
