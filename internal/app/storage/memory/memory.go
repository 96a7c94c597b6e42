package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/localloop/marketplace/internal/app/domain/business"
	"github.com/localloop/marketplace/internal/app/domain/capability"
	"github.com/localloop/marketplace/internal/app/domain/connection"
	"github.com/localloop/marketplace/internal/app/domain/impact"
	"github.com/localloop/marketplace/internal/app/domain/lead"
	"github.com/localloop/marketplace/internal/app/domain/need"
	"github.com/localloop/marketplace/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu           sync.RWMutex
	nextID       int64
	lastStamp    time.Time
	businesses   map[string]business.Business
	capabilities map[string]capability.Capability
	needs        map[string]need.Need
	connections  map[string]connection.Connection
	leads        map[string]lead.ExternalLead
	leadKeys     map[string]string
}

var _ storage.BusinessStore = (*Store)(nil)
var _ storage.CapabilityStore = (*Store)(nil)
var _ storage.NeedStore = (*Store)(nil)
var _ storage.ConnectionStore = (*Store)(nil)
var _ storage.LeadStore = (*Store)(nil)
var _ storage.ImpactStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:       1,
		businesses:   make(map[string]business.Business),
		capabilities: make(map[string]capability.Capability),
		needs:        make(map[string]need.Need),
		connections:  make(map[string]connection.Connection),
		leads:        make(map[string]lead.ExternalLead),
		leadKeys:     make(map[string]string),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// nowLocked returns a strictly increasing timestamp so creation-time
// ordering is total even when the clock does not advance between writes.
func (s *Store) nowLocked() time.Time {
	now := time.Now().UTC()
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Nanosecond)
	}
	s.lastStamp = now
	return now
}

// BusinessStore implementation ------------------------------------------------

func (s *Store) CreateBusiness(_ context.Context, b business.Business) (business.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == "" {
		b.ID = s.nextIDLocked()
	} else if _, exists := s.businesses[b.ID]; exists {
		return business.Business{}, fmt.Errorf("business %s already exists", b.ID)
	}

	now := s.nowLocked()
	b.CreatedAt = now
	b.UpdatedAt = now

	s.businesses[b.ID] = b
	return b, nil
}

func (s *Store) UpdateBusiness(_ context.Context, b business.Business) (business.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.businesses[b.ID]
	if !ok {
		return business.Business{}, fmt.Errorf("business %s: %w", b.ID, storage.ErrNotFound)
	}

	b.CreatedAt = original.CreatedAt
	b.UpdatedAt = time.Now().UTC()

	s.businesses[b.ID] = b
	return b, nil
}

func (s *Store) GetBusiness(_ context.Context, id string) (business.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.businesses[id]
	if !ok {
		return business.Business{}, fmt.Errorf("business %s: %w", id, storage.ErrNotFound)
	}
	return b, nil
}

func (s *Store) ListBusinesses(_ context.Context) ([]business.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]business.Business, 0, len(s.businesses))
	for _, b := range s.businesses {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// CapabilityStore implementation ----------------------------------------------

func (s *Store) CreateCapability(_ context.Context, c capability.Capability) (capability.Capability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = s.nextIDLocked()
	} else if _, exists := s.capabilities[c.ID]; exists {
		return capability.Capability{}, fmt.Errorf("capability %s already exists", c.ID)
	}

	now := s.nowLocked()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.ServiceArea = cloneStrings(c.ServiceArea)
	c.Certifications = cloneStrings(c.Certifications)

	s.capabilities[c.ID] = c
	return cloneCapability(c), nil
}

func (s *Store) UpdateCapability(_ context.Context, c capability.Capability) (capability.Capability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.capabilities[c.ID]
	if !ok {
		return capability.Capability{}, fmt.Errorf("capability %s: %w", c.ID, storage.ErrNotFound)
	}

	c.BusinessID = original.BusinessID
	c.CreatedAt = original.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	c.ServiceArea = cloneStrings(c.ServiceArea)
	c.Certifications = cloneStrings(c.Certifications)

	s.capabilities[c.ID] = c
	return cloneCapability(c), nil
}

func (s *Store) GetCapability(_ context.Context, id string) (capability.Capability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.capabilities[id]
	if !ok {
		return capability.Capability{}, fmt.Errorf("capability %s: %w", id, storage.ErrNotFound)
	}
	return cloneCapability(c), nil
}

func (s *Store) ListCapabilities(_ context.Context, filter storage.CapabilityFilter) ([]capability.Capability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []capability.Capability
	for _, c := range s.capabilities {
		if filter.BusinessID != "" && c.BusinessID != filter.BusinessID {
			continue
		}
		if filter.Category != "" && !strings.EqualFold(c.Category, filter.Category) {
			continue
		}
		if filter.ActiveOnly && !c.Active {
			continue
		}
		result = append(result, cloneCapability(c))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// NeedStore implementation ----------------------------------------------------

func (s *Store) CreateNeed(_ context.Context, n need.Need) (need.Need, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = s.nextIDLocked()
	} else if _, exists := s.needs[n.ID]; exists {
		return need.Need{}, fmt.Errorf("need %s already exists", n.ID)
	}

	now := s.nowLocked()
	n.CreatedAt = now
	n.UpdatedAt = now
	n.PreferredLocations = cloneStrings(n.PreferredLocations)

	s.needs[n.ID] = n
	return cloneNeed(n), nil
}

func (s *Store) UpdateNeed(_ context.Context, n need.Need) (need.Need, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.needs[n.ID]
	if !ok {
		return need.Need{}, fmt.Errorf("need %s: %w", n.ID, storage.ErrNotFound)
	}

	n.BusinessID = original.BusinessID
	n.CreatedAt = original.CreatedAt
	n.UpdatedAt = time.Now().UTC()
	n.PreferredLocations = cloneStrings(n.PreferredLocations)

	s.needs[n.ID] = n
	return cloneNeed(n), nil
}

func (s *Store) GetNeed(_ context.Context, id string) (need.Need, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.needs[id]
	if !ok {
		return need.Need{}, fmt.Errorf("need %s: %w", id, storage.ErrNotFound)
	}
	return cloneNeed(n), nil
}

func (s *Store) ListNeeds(_ context.Context, filter storage.NeedFilter) ([]need.Need, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []need.Need
	for _, n := range s.needs {
		if filter.BusinessID != "" && n.BusinessID != filter.BusinessID {
			continue
		}
		if filter.Category != "" && !strings.EqualFold(n.Category, filter.Category) {
			continue
		}
		if filter.Status != "" && n.Status != filter.Status {
			continue
		}
		result = append(result, cloneNeed(n))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// ConnectionStore implementation ----------------------------------------------

func (s *Store) CreateConnection(_ context.Context, c connection.Connection) (connection.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = s.nextIDLocked()
	} else if _, exists := s.connections[c.ID]; exists {
		return connection.Connection{}, fmt.Errorf("connection %s already exists", c.ID)
	}

	now := s.nowLocked()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Version = 1

	s.connections[c.ID] = c
	return c, nil
}

func (s *Store) UpdateConnection(_ context.Context, c connection.Connection) (connection.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.connections[c.ID]
	if !ok {
		return connection.Connection{}, fmt.Errorf("connection %s: %w", c.ID, storage.ErrNotFound)
	}
	if original.Version != c.Version {
		return connection.Connection{}, fmt.Errorf("connection %s: %w", c.ID, storage.ErrConflict)
	}

	c.BuyerBusinessID = original.BuyerBusinessID
	c.SupplierBusinessID = original.SupplierBusinessID
	c.CreatedAt = original.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	c.Version = original.Version + 1

	s.connections[c.ID] = c
	return c, nil
}

func (s *Store) GetConnection(_ context.Context, id string) (connection.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.connections[id]
	if !ok {
		return connection.Connection{}, fmt.Errorf("connection %s: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

func (s *Store) ListConnectionsForBusiness(_ context.Context, businessID string) ([]connection.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []connection.Connection
	for _, c := range s.connections {
		if c.BuyerBusinessID == businessID || c.SupplierBusinessID == businessID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

// LeadStore implementation ----------------------------------------------------

func leadKey(l lead.ExternalLead) string {
	return lead.NormalizeName(l.BusinessName) + "|" + l.DiscoveredByBusinessID
}

func (s *Store) CreateLead(_ context.Context, l lead.ExternalLead) (lead.ExternalLead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := leadKey(l)
	if _, exists := s.leadKeys[key]; exists {
		return lead.ExternalLead{}, fmt.Errorf("lead %q: %w", l.BusinessName, storage.ErrDuplicateLead)
	}

	if l.ID == "" {
		l.ID = s.nextIDLocked()
	}
	if l.ClaimStatus == "" {
		l.ClaimStatus = lead.ClaimUnclaimed
	}
	l.CreatedAt = s.nowLocked()
	l.SourceCitations = cloneStrings(l.SourceCitations)

	s.leads[l.ID] = l
	s.leadKeys[key] = l.ID
	return cloneLead(l), nil
}

func (s *Store) GetLead(_ context.Context, id string) (lead.ExternalLead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.leads[id]
	if !ok {
		return lead.ExternalLead{}, fmt.Errorf("lead %s: %w", id, storage.ErrNotFound)
	}
	return cloneLead(l), nil
}

func (s *Store) ListLeads(_ context.Context, discoveredByBusinessID string) ([]lead.ExternalLead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []lead.ExternalLead
	for _, l := range s.leads {
		if discoveredByBusinessID != "" && l.DiscoveredByBusinessID != discoveredByBusinessID {
			continue
		}
		result = append(result, cloneLead(l))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) UpdateLeadStatus(_ context.Context, id, claimStatus string, visible bool) (lead.ExternalLead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leads[id]
	if !ok {
		return lead.ExternalLead{}, fmt.Errorf("lead %s: %w", id, storage.ErrNotFound)
	}

	l.ClaimStatus = claimStatus
	l.VisibleInDirectory = visible
	s.leads[id] = l
	return cloneLead(l), nil
}

// ImpactStore implementation --------------------------------------------------

// GetImpactMetrics computes the snapshot under a single read lock so every
// figure reflects the same state.
func (s *Store) GetImpactMetrics(_ context.Context) (impact.Metrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := impact.Metrics{ComputedAt: time.Now().UTC()}

	var (
		valueCount int
		scoreSum   float64
		scoreCount int
	)
	for _, c := range s.connections {
		m.TotalConnections++
		switch c.Status {
		case connection.StatusActive:
			m.ActiveConnections++
		case connection.StatusCompleted:
			m.CompletedConnections++
			if c.ActualValue != nil {
				m.TotalTransactionValue += *c.ActualValue
				valueCount++

				buyer, buyerOK := s.businesses[c.BuyerBusinessID]
				supplier, supplierOK := s.businesses[c.SupplierBusinessID]
				if buyerOK && supplierOK && buyer.Local && buyer.Verified && supplier.Local && supplier.Verified {
					m.MoneyKeptInCommunity += *c.ActualValue
				}
			}
		}
		if c.MatchScore != nil {
			scoreSum += *c.MatchScore
			scoreCount++
		}
	}
	if valueCount > 0 {
		m.AvgTransactionValue = m.TotalTransactionValue / float64(valueCount)
	}
	if scoreCount > 0 {
		m.AvgMatchScore = scoreSum / float64(scoreCount)
	}

	suppliers := make(map[string]struct{})
	for _, c := range s.capabilities {
		if c.Active {
			suppliers[c.BusinessID] = struct{}{}
		}
	}
	m.ActiveSuppliers = len(suppliers)

	for _, n := range s.needs {
		if n.Status == need.StatusOpen {
			m.OpenNeeds++
		}
	}

	return m, nil
}

// helpers ----------------------------------------------------------------------

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneCapability(c capability.Capability) capability.Capability {
	c.ServiceArea = cloneStrings(c.ServiceArea)
	c.Certifications = cloneStrings(c.Certifications)
	return c
}

func cloneNeed(n need.Need) need.Need {
	n.PreferredLocations = cloneStrings(n.PreferredLocations)
	return n
}

func cloneLead(l lead.ExternalLead) lead.ExternalLead {
	l.SourceCitations = cloneStrings(l.SourceCitations)
	return l
}
