package capability

import (
	"strings"
	"time"
)

// Capability types.
const (
	TypeProduct = "product"
	TypeService = "service"
)

// Categories is the fixed set of B2B categories a capability or need may
// belong to. Matching treats category as a hard filter, so both sides of the
// marketplace share this enumeration.
var Categories = []string{
	"Catering & Food Service",
	"Construction & Trades",
	"Professional Services",
	"Marketing & Creative",
	"Technology & IT",
	"Transportation & Logistics",
	"Manufacturing & Production",
	"Wholesale & Distribution",
	"Cleaning & Maintenance",
	"Health & Wellness",
	"Education & Training",
	"Events & Entertainment",
	"Finance & Insurance",
	"Real Estate & Property",
	"Agriculture & Farming",
	"Retail Supply",
}

// ValidCategory reports whether name is one of the fixed categories. The
// comparison is case-insensitive.
func ValidCategory(name string) bool {
	for _, c := range Categories {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// Capability is a supply offer posted by a business for other businesses.
// Capabilities are never hard-deleted; deactivation preserves history for
// connections that reference them.
type Capability struct {
	ID             string
	BusinessID     string
	CapabilityType string
	Category       string
	Subcategory    string
	Title          string
	Description    string
	MinOrderValue  float64
	LeadTimeDays   int
	ServiceArea    []string
	Certifications []string
	PricingModel   string
	PriceMin       *float64
	PriceMax       *float64
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PriceMidpoint returns the midpoint of the price range and whether one is
// defined. A single bound counts as the midpoint on its own.
func (c Capability) PriceMidpoint() (float64, bool) {
	switch {
	case c.PriceMin != nil && c.PriceMax != nil:
		return (*c.PriceMin + *c.PriceMax) / 2, true
	case c.PriceMin != nil:
		return *c.PriceMin, true
	case c.PriceMax != nil:
		return *c.PriceMax, true
	default:
		return 0, false
	}
}
