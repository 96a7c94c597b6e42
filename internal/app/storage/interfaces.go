package storage

import (
	"context"
	"errors"

	"github.com/localloop/marketplace/internal/app/domain/business"
	"github.com/localloop/marketplace/internal/app/domain/capability"
	"github.com/localloop/marketplace/internal/app/domain/connection"
	"github.com/localloop/marketplace/internal/app/domain/impact"
	"github.com/localloop/marketplace/internal/app/domain/lead"
	"github.com/localloop/marketplace/internal/app/domain/need"
)

// Sentinel errors shared by all store implementations. Services distinguish
// benign duplicates and write conflicts from genuine failures with these.
var (
	ErrNotFound      = errors.New("record not found")
	ErrConflict      = errors.New("concurrent modification conflict")
	ErrDuplicateLead = errors.New("lead already saved")
)

// CapabilityFilter narrows capability reads. Zero values mean no constraint.
type CapabilityFilter struct {
	BusinessID string
	Category   string
	ActiveOnly bool
}

// NeedFilter narrows need reads. Zero values mean no constraint.
type NeedFilter struct {
	BusinessID string
	Category   string
	Status     string
}

// BusinessStore persists directory profiles.
type BusinessStore interface {
	CreateBusiness(ctx context.Context, b business.Business) (business.Business, error)
	UpdateBusiness(ctx context.Context, b business.Business) (business.Business, error)
	GetBusiness(ctx context.Context, id string) (business.Business, error)
	ListBusinesses(ctx context.Context) ([]business.Business, error)
}

// CapabilityStore persists supply offers.
type CapabilityStore interface {
	CreateCapability(ctx context.Context, c capability.Capability) (capability.Capability, error)
	UpdateCapability(ctx context.Context, c capability.Capability) (capability.Capability, error)
	GetCapability(ctx context.Context, id string) (capability.Capability, error)
	ListCapabilities(ctx context.Context, filter CapabilityFilter) ([]capability.Capability, error)
}

// NeedStore persists demand posts.
type NeedStore interface {
	CreateNeed(ctx context.Context, n need.Need) (need.Need, error)
	UpdateNeed(ctx context.Context, n need.Need) (need.Need, error)
	GetNeed(ctx context.Context, id string) (need.Need, error)
	ListNeeds(ctx context.Context, filter NeedFilter) ([]need.Need, error)
}

// ConnectionStore persists buyer/supplier connections. UpdateConnection uses
// optimistic concurrency: the stored version must match the version on the
// passed record or ErrConflict is returned and nothing is written.
type ConnectionStore interface {
	CreateConnection(ctx context.Context, c connection.Connection) (connection.Connection, error)
	UpdateConnection(ctx context.Context, c connection.Connection) (connection.Connection, error)
	GetConnection(ctx context.Context, id string) (connection.Connection, error)
	ListConnectionsForBusiness(ctx context.Context, businessID string) ([]connection.Connection, error)
}

// LeadStore persists externally discovered businesses. CreateLead returns
// ErrDuplicateLead when the store's uniqueness constraint (normalized name +
// discovering business) rejects the insert.
type LeadStore interface {
	CreateLead(ctx context.Context, l lead.ExternalLead) (lead.ExternalLead, error)
	GetLead(ctx context.Context, id string) (lead.ExternalLead, error)
	ListLeads(ctx context.Context, discoveredByBusinessID string) ([]lead.ExternalLead, error)
	UpdateLeadStatus(ctx context.Context, id, claimStatus string, visible bool) (lead.ExternalLead, error)
}

// ImpactStore computes the community metrics snapshot. Implementations must
// evaluate every figure against the same consistent view of the data.
type ImpactStore interface {
	GetImpactMetrics(ctx context.Context) (impact.Metrics, error)
}
