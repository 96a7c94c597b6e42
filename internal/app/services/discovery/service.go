package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/localloop/marketplace/internal/app/domain/lead"
	"github.com/localloop/marketplace/internal/app/metrics"
	"github.com/localloop/marketplace/internal/app/storage"
	"github.com/localloop/marketplace/pkg/logger"
)

// Errors surfaced by the discovery pipeline. Callers distinguish bad input
// (ErrQueryTooShort, ErrInvalidClaim) from external failures
// (ErrSearchUnavailable), which are safe to retry.
var (
	ErrQueryTooShort     = errors.New("search query needs at least 3 meaningful characters")
	ErrSearchUnavailable = errors.New("external supplier search unavailable")
	ErrInvalidClaim      = errors.New("claim status can only move forward")
	ErrNoSearchResults   = errors.New("no stored search results for query")
)

const (
	minQueryChars = 3

	defaultLimit = 6
	maxLimit     = 20

	// Confidence assigned when the external service omits one.
	defaultConfidence = 0.7
)

// SearchRequest is the structured hint set sent to the external search
// collaborator.
type SearchRequest struct {
	Query    string `json:"query"`
	Category string `json:"category,omitempty"`
	Location string `json:"location,omitempty"`
	Limit    int    `json:"limit"`
}

// SearchResult is what the collaborator returns: candidate businesses plus
// the source citations backing them.
type SearchResult struct {
	Businesses []lead.DiscoveredBusiness
	Citations  []string
}

// Searcher performs the external AI web search. Implementations may be slow
// and may fail; the service treats them as opaque.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) (SearchResult, error)
}

// SearcherFunc adapts a function to the Searcher interface.
type SearcherFunc func(ctx context.Context, req SearchRequest) (SearchResult, error)

func (f SearcherFunc) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	return f(ctx, req)
}

// Actor identifies who is searching. Leads are attributed to the actor's
// business, and duplicate detection is scoped to it.
type Actor struct {
	UserID     string
	BusinessID string
}

// SaveSummary reports the outcome of a batch save. Duplicates count toward
// neither field.
type SaveSummary struct {
	Saved  int `json:"saved"`
	Failed int `json:"failed"`
}

type searchState struct {
	query      string
	businesses []lead.DiscoveredBusiness
}

// Service runs the external discovery pipeline: web search, duplicate
// detection against the directory and prior leads, and idempotent lead saves.
type Service struct {
	businesses storage.BusinessStore
	leads      storage.LeadStore
	searcher   Searcher
	log        *logger.Logger

	mu         sync.Mutex
	lastSearch map[string]searchState
}

// New creates a configured discovery service. The searcher may be nil, in
// which case searches fail with ErrSearchUnavailable.
func New(businesses storage.BusinessStore, leads storage.LeadStore, searcher Searcher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("discovery")
	}
	return &Service{
		businesses: businesses,
		leads:      leads,
		searcher:   searcher,
		log:        log,
		lastSearch: make(map[string]searchState),
	}
}

// meaningfulChars counts letters and digits, ignoring whitespace and
// punctuation, so "a-b" does not pass as a three character query.
func meaningfulChars(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

// SearchWebSuppliers queries the external search collaborator for candidate
// suppliers. Queries with fewer than 3 meaningful characters are rejected
// before any external call. A failed search leaves the actor's previously
// stored results untouched.
func (s *Service) SearchWebSuppliers(ctx context.Context, actor Actor, query, category, location string, limit int) (SearchResult, error) {
	query = strings.TrimSpace(query)
	if meaningfulChars(query) < minQueryChars {
		return SearchResult{}, fmt.Errorf("query %q: %w", query, ErrQueryTooShort)
	}
	if s.searcher == nil {
		return SearchResult{}, fmt.Errorf("no searcher configured: %w", ErrSearchUnavailable)
	}

	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	start := time.Now()
	result, err := s.searcher.Search(ctx, SearchRequest{
		Query:    query,
		Category: strings.TrimSpace(category),
		Location: strings.TrimSpace(location),
		Limit:    limit,
	})
	if err != nil {
		metrics.RecordDiscoverySearch("error", time.Since(start))
		s.log.WithError(err).WithField("query", query).Error("external supplier search failed")
		return SearchResult{}, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}
	metrics.RecordDiscoverySearch("ok", time.Since(start))

	if len(result.Businesses) > limit {
		result.Businesses = result.Businesses[:limit]
	}
	for i := range result.Businesses {
		result.Businesses[i].Confidence = normalizeConfidence(result.Businesses[i].Confidence)
	}

	s.mu.Lock()
	s.lastSearch[actor.BusinessID] = searchState{
		query:      query,
		businesses: append([]lead.DiscoveredBusiness(nil), result.Businesses...),
	}
	s.mu.Unlock()

	s.log.WithField("query", query).
		WithField("business_id", actor.BusinessID).
		WithField("results", len(result.Businesses)).
		Info("supplier search completed")
	return result, nil
}

// normalizeConfidence clamps a reported score into [0,1]. An explicit zero is
// kept as given; defaulting an absent score is the searcher's job, since only
// it can tell absence apart from zero.
func normalizeConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

type saveOutcome int

const (
	outcomeSaved saveOutcome = iota
	outcomeDuplicate
	outcomeFailed
)

// SaveExternalLead persists one discovered business as a lead. The save is
// idempotent: if the business duplicates an existing lead or an existing
// directory entry, the call succeeds with created=false and nothing is
// written. For lead duplicates the already stored record is returned.
func (s *Service) SaveExternalLead(ctx context.Context, actor Actor, b lead.DiscoveredBusiness, sourceQuery string, visible bool) (lead.ExternalLead, bool, error) {
	saved, outcome, err := s.saveLead(ctx, actor, b, sourceQuery, visible)
	switch outcome {
	case outcomeSaved:
		return saved, true, nil
	case outcomeDuplicate:
		return saved, false, nil
	default:
		return lead.ExternalLead{}, false, err
	}
}

func (s *Service) saveLead(ctx context.Context, actor Actor, b lead.DiscoveredBusiness, sourceQuery string, visible bool) (lead.ExternalLead, saveOutcome, error) {
	if strings.TrimSpace(b.Name) == "" {
		metrics.RecordLeadSave("failed")
		return lead.ExternalLead{}, outcomeFailed, fmt.Errorf("discovered business has no name")
	}

	// A result that matches an existing directory entry is not new
	// information and must not become a lead.
	directory, err := s.businesses.ListBusinesses(ctx)
	if err != nil {
		metrics.RecordLeadSave("failed")
		return lead.ExternalLead{}, outcomeFailed, fmt.Errorf("list directory businesses: %w", err)
	}
	for _, existing := range directory {
		if lead.SameBusiness(b.Name, b.WebsiteURL, b.Location, existing.Name, existing.WebsiteURL, existing.Location) {
			metrics.RecordLeadSave("duplicate")
			return lead.ExternalLead{}, outcomeDuplicate, nil
		}
	}

	known, err := s.leads.ListLeads(ctx, actor.BusinessID)
	if err != nil {
		metrics.RecordLeadSave("failed")
		return lead.ExternalLead{}, outcomeFailed, fmt.Errorf("list existing leads: %w", err)
	}
	for _, existing := range known {
		if lead.SameBusiness(b.Name, b.WebsiteURL, b.Location, existing.BusinessName, existing.WebsiteURL, existing.Location) {
			metrics.RecordLeadSave("duplicate")
			return existing, outcomeDuplicate, nil
		}
	}

	created, err := s.leads.CreateLead(ctx, lead.ExternalLead{
		DiscoveredByUserID:     actor.UserID,
		DiscoveredByBusinessID: actor.BusinessID,
		SourceQuery:            sourceQuery,
		BusinessName:           strings.TrimSpace(b.Name),
		Description:            b.Description,
		Category:               b.Category,
		Contact:                b.Contact,
		WebsiteURL:             b.WebsiteURL,
		Location:               b.Location,
		SourceCitations:        b.Citations,
		ConfidenceScore:        normalizeConfidence(b.Confidence),
		VisibleInDirectory:     visible,
		ClaimStatus:            lead.ClaimUnclaimed,
	})
	if err != nil {
		// The store's uniqueness constraint caught a concurrent save of
		// the same business. Treat it as the duplicate it is.
		if errors.Is(err, storage.ErrDuplicateLead) {
			metrics.RecordLeadSave("duplicate")
			if existing, ok := s.findStoredLead(ctx, actor.BusinessID, b.Name); ok {
				return existing, outcomeDuplicate, nil
			}
			return lead.ExternalLead{}, outcomeDuplicate, nil
		}
		metrics.RecordLeadSave("failed")
		return lead.ExternalLead{}, outcomeFailed, fmt.Errorf("save lead %q: %w", b.Name, err)
	}

	metrics.RecordLeadSave("saved")
	s.log.WithField("lead_id", created.ID).
		WithField("business_name", created.BusinessName).
		WithField("source_query", sourceQuery).
		Info("external lead saved")
	return created, outcomeSaved, nil
}

func (s *Service) findStoredLead(ctx context.Context, businessID, name string) (lead.ExternalLead, bool) {
	known, err := s.leads.ListLeads(ctx, businessID)
	if err != nil {
		return lead.ExternalLead{}, false
	}
	want := lead.NormalizeName(name)
	for _, l := range known {
		if lead.NormalizeName(l.BusinessName) == want {
			return l, true
		}
	}
	return lead.ExternalLead{}, false
}

// SaveAllSearchResults saves every result of the actor's last search for the
// given query. Duplicates are skipped silently and counted toward neither
// total; any other failure increments Failed and the batch continues.
func (s *Service) SaveAllSearchResults(ctx context.Context, actor Actor, sourceQuery string, visible bool) (SaveSummary, error) {
	sourceQuery = strings.TrimSpace(sourceQuery)

	s.mu.Lock()
	state, ok := s.lastSearch[actor.BusinessID]
	s.mu.Unlock()
	if !ok || state.query != sourceQuery {
		return SaveSummary{}, fmt.Errorf("query %q: %w", sourceQuery, ErrNoSearchResults)
	}

	var summary SaveSummary
	for _, b := range state.businesses {
		_, outcome, err := s.saveLead(ctx, actor, b, sourceQuery, visible)
		switch outcome {
		case outcomeSaved:
			summary.Saved++
		case outcomeDuplicate:
			// Not new information.
		case outcomeFailed:
			summary.Failed++
			s.log.WithError(err).WithField("business_name", b.Name).Warn("lead save failed in batch")
		}
	}

	s.log.WithField("source_query", sourceQuery).
		WithField("saved", summary.Saved).
		WithField("failed", summary.Failed).
		Info("search results saved")
	return summary, nil
}

// AdvanceClaim moves a lead's claim status forward. Backward moves are
// rejected with ErrInvalidClaim.
func (s *Service) AdvanceClaim(ctx context.Context, leadID, target string) (lead.ExternalLead, error) {
	l, err := s.leads.GetLead(ctx, leadID)
	if err != nil {
		return lead.ExternalLead{}, err
	}
	if !lead.CanAdvanceClaim(l.ClaimStatus, target) {
		return lead.ExternalLead{}, fmt.Errorf("claim %s -> %s: %w", l.ClaimStatus, target, ErrInvalidClaim)
	}
	updated, err := s.leads.UpdateLeadStatus(ctx, leadID, target, l.VisibleInDirectory)
	if err != nil {
		return lead.ExternalLead{}, err
	}
	s.log.WithField("lead_id", leadID).WithField("claim_status", target).Info("lead claim advanced")
	return updated, nil
}

// SetLeadVisibility toggles whether a lead shows up in the public directory.
func (s *Service) SetLeadVisibility(ctx context.Context, leadID string, visible bool) (lead.ExternalLead, error) {
	l, err := s.leads.GetLead(ctx, leadID)
	if err != nil {
		return lead.ExternalLead{}, err
	}
	return s.leads.UpdateLeadStatus(ctx, leadID, l.ClaimStatus, visible)
}

// GetLead returns one stored lead.
func (s *Service) GetLead(ctx context.Context, leadID string) (lead.ExternalLead, error) {
	return s.leads.GetLead(ctx, leadID)
}

// ListLeads returns the leads discovered by a business, oldest first.
func (s *Service) ListLeads(ctx context.Context, businessID string) ([]lead.ExternalLead, error) {
	return s.leads.ListLeads(ctx, businessID)
}
