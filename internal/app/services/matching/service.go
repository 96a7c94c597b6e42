package matching

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/localloop/marketplace/internal/app/domain/capability"
	"github.com/localloop/marketplace/internal/app/domain/need"
	"github.com/localloop/marketplace/internal/app/metrics"
	"github.com/localloop/marketplace/internal/app/storage"
	"github.com/localloop/marketplace/pkg/logger"
)

// RankedCapability pairs a capability with its computed match score.
type RankedCapability struct {
	Capability capability.Capability
	Score      float64
}

// Filters narrows a supplier search. Zero values impose no constraint.
type Filters struct {
	Limit int
}

// Service ranks supply offers against demand posts. It is read-only over the
// catalog and safe for arbitrary concurrent use.
type Service struct {
	capabilities storage.CapabilityStore
	log          *logger.Logger
}

// New constructs a matching service.
func New(capabilities storage.CapabilityStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("matching")
	}
	return &Service{
		capabilities: capabilities,
		log:          log,
	}
}

// FindSuppliersForNeed returns active capabilities ranked by match score,
// highest first. Category mismatch excludes candidates outright; ties break
// on capability creation time, oldest first. A closed or past-expiry need
// yields an empty result, as does a need carrying neither a category nor any
// free text. Neither case is an error.
func (s *Service) FindSuppliersForNeed(ctx context.Context, n need.Need, filters Filters) ([]RankedCapability, error) {
	metrics.RecordMatchRequest()

	if !n.Matchable(time.Now()) {
		return nil, nil
	}
	if strings.TrimSpace(n.Category) == "" && strings.TrimSpace(n.Title) == "" && strings.TrimSpace(n.Description) == "" {
		return nil, nil
	}

	// The need's own category is a hard filter: mismatched candidates are
	// excluded at the read, not down-scored.
	candidates, err := s.capabilities.ListCapabilities(ctx, storage.CapabilityFilter{
		Category:   strings.TrimSpace(n.Category),
		ActiveOnly: true,
	})
	if err != nil {
		return nil, err
	}

	ranked := make([]RankedCapability, 0, len(candidates))
	for _, c := range candidates {
		// A business never appears as a supplier for its own need.
		if c.BusinessID != "" && c.BusinessID == n.BusinessID {
			continue
		}
		ranked = append(ranked, RankedCapability{Capability: c, Score: Score(n, c)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Capability.CreatedAt.Before(ranked[j].Capability.CreatedAt)
	})

	if filters.Limit > 0 && len(ranked) > filters.Limit {
		ranked = ranked[:filters.Limit]
	}
	return ranked, nil
}

// SearchCapabilities performs a free-text search over active capability
// titles and descriptions, optionally restricted to one category. An empty
// or unknown category means no category filter.
func (s *Service) SearchCapabilities(ctx context.Context, queryText, category string) ([]capability.Capability, error) {
	candidates, err := s.capabilities.ListCapabilities(ctx, storage.CapabilityFilter{
		Category:   normalizeCategory(category),
		ActiveOnly: true,
	})
	if err != nil {
		return nil, err
	}

	terms := strings.Fields(strings.ToLower(strings.TrimSpace(queryText)))
	if len(terms) == 0 {
		return candidates, nil
	}

	var result []capability.Capability
	for _, c := range candidates {
		haystack := strings.ToLower(c.Title + " " + c.Description + " " + c.Subcategory)
		matched := true
		for _, term := range terms {
			if !strings.Contains(haystack, term) {
				matched = false
				break
			}
		}
		if matched {
			result = append(result, c)
		}
	}
	return result, nil
}

// normalizeCategory treats anything outside the fixed enumeration as "no
// filter" rather than an error.
func normalizeCategory(category string) string {
	category = strings.TrimSpace(category)
	if category == "" || !capability.ValidCategory(category) {
		return ""
	}
	return category
}
