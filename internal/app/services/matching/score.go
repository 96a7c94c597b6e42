package matching

import (
	"math"
	"strings"

	"github.com/localloop/marketplace/internal/app/domain/capability"
	"github.com/localloop/marketplace/internal/app/domain/need"
)

// Component weights. Category match is a hard filter applied before scoring,
// so it carries no weight here; the remaining weights sum to 100.
const (
	weightSubcategory = 15.0
	weightBudget      = 35.0
	weightLocation    = 30.0
	weightLeadTime    = 20.0

	neutralCredit = 0.5
)

// Score computes the 0-100 compatibility between a need and a capability.
// It is a pure function: identical inputs always produce identical scores.
// Callers are expected to have applied the category hard filter already.
func Score(n need.Need, c capability.Capability) float64 {
	total := weightSubcategory*subcategoryCredit(n, c) +
		weightBudget*budgetCredit(n, c) +
		weightLocation*locationCredit(n, c) +
		weightLeadTime*leadTimeCredit(n, c)

	// Round to two decimals so equal inputs compare stably across platforms.
	return math.Round(total*100) / 100
}

// subcategoryCredit gives full credit for an exact subcategory match and
// partial credit when the need's free text mentions the capability's
// subcategory. A capability without a subcategory scores neutral.
func subcategoryCredit(n need.Need, c capability.Capability) float64 {
	sub := strings.TrimSpace(c.Subcategory)
	if sub == "" {
		return neutralCredit
	}
	if strings.EqualFold(strings.TrimSpace(n.Subcategory), sub) {
		return 1.0
	}
	haystack := strings.ToLower(n.Title + " " + n.Description)
	if strings.Contains(haystack, strings.ToLower(sub)) {
		return 0.75
	}
	return 0
}

// budgetCredit decreases linearly as the capability's price midpoint diverges
// from the need's budget midpoint. Non-overlapping ranges score zero without
// excluding the candidate. Missing data on either side scores neutral.
func budgetCredit(n need.Need, c capability.Capability) float64 {
	needMid, ok := n.BudgetMidpoint()
	if !ok {
		return neutralCredit
	}
	capMid, ok := c.PriceMidpoint()
	if !ok {
		return neutralCredit
	}

	if !rangesOverlap(n.BudgetMin, n.BudgetMax, c.PriceMin, c.PriceMax) {
		return 0
	}

	denom := math.Max(needMid, capMid)
	if denom <= 0 {
		return 1.0
	}
	credit := 1.0 - math.Abs(needMid-capMid)/denom
	if credit < 0 {
		return 0
	}
	return credit
}

func rangesOverlap(aMin, aMax, bMin, bMax *float64) bool {
	lo1, hi1 := bounds(aMin, aMax)
	lo2, hi2 := bounds(bMin, bMax)
	return lo1 <= hi2 && lo2 <= hi1
}

func bounds(min, max *float64) (float64, float64) {
	switch {
	case min != nil && max != nil:
		return *min, *max
	case min != nil:
		return *min, math.Inf(1)
	case max != nil:
		return 0, *max
	default:
		return 0, math.Inf(1)
	}
}

// locationCredit is the fraction of the need's preferred locations covered by
// the capability's service area. Either list being empty means the party is
// unconstrained and scores full credit.
func locationCredit(n need.Need, c capability.Capability) float64 {
	if len(n.PreferredLocations) == 0 || len(c.ServiceArea) == 0 {
		return 1.0
	}
	area := make(map[string]struct{}, len(c.ServiceArea))
	for _, region := range c.ServiceArea {
		area[strings.ToLower(strings.TrimSpace(region))] = struct{}{}
	}
	covered := 0
	for _, loc := range n.PreferredLocations {
		if _, ok := area[strings.ToLower(strings.TrimSpace(loc))]; ok {
			covered++
		}
	}
	return float64(covered) / float64(len(n.PreferredLocations))
}

// leadTimeCredit penalises long lead times only when the need is urgent.
func leadTimeCredit(n need.Need, c capability.Capability) float64 {
	if n.Urgency != need.UrgencyHigh {
		return neutralCredit
	}
	days := float64(c.LeadTimeDays)
	if days < 0 {
		days = 0
	}
	return 1.0 / (1.0 + days/7.0)
}
