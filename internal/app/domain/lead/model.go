package lead

import (
	"strings"
	"time"
	"unicode"
)

// Claim statuses. A lead becomes an ordinary directory business only after a
// separate onboarding flow moves it to claimed.
const (
	ClaimUnclaimed = "unclaimed"
	ClaimPending   = "claim_pending"
	ClaimClaimed   = "claimed"
)

// CanAdvanceClaim reports whether a claim status may move forward to the
// target. Claims never move backwards.
func CanAdvanceClaim(from, to string) bool {
	switch from {
	case ClaimUnclaimed:
		return to == ClaimPending || to == ClaimClaimed
	case ClaimPending:
		return to == ClaimClaimed
	}
	return false
}

// ContactInfo carries whatever contact details the search surfaced. All
// fields are optional.
type ContactInfo struct {
	Email   string
	Phone   string
	Address string
}

// DiscoveredBusiness is a candidate business returned by the external web
// search, before it is saved as a lead.
type DiscoveredBusiness struct {
	Name        string
	Description string
	Category    string
	Contact     ContactInfo
	WebsiteURL  string
	Location    string
	Citations   []string
	Confidence  float64
}

// ExternalLead is a persisted discovered business awaiting claim. Descriptive
// fields are immutable once saved; re-discovery creates a new row subject to
// deduplication.
type ExternalLead struct {
	ID                     string
	DiscoveredByUserID     string
	DiscoveredByBusinessID string
	SourceQuery            string
	BusinessName           string
	Description            string
	Category               string
	Contact                ContactInfo
	WebsiteURL             string
	Location               string
	SourceCitations        []string
	ConfidenceScore        float64
	VisibleInDirectory     bool
	ClaimStatus            string
	CreatedAt              time.Time
}

// NormalizeName lowercases a business name and strips punctuation and excess
// whitespace, producing the key used for duplicate detection.
func NormalizeName(name string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// SameBusiness reports whether two discovered records describe the same
// underlying business: normalized names match and either the website URLs or
// the location strings agree.
func SameBusiness(aName, aURL, aLoc, bName, bURL, bLoc string) bool {
	if NormalizeName(aName) != NormalizeName(bName) {
		return false
	}
	if aURL != "" && bURL != "" && strings.EqualFold(strings.TrimRight(aURL, "/"), strings.TrimRight(bURL, "/")) {
		return true
	}
	aLoc = strings.TrimSpace(aLoc)
	bLoc = strings.TrimSpace(bLoc)
	return aLoc != "" && strings.EqualFold(aLoc, bLoc)
}
