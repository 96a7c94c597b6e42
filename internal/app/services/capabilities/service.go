package capabilities

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/localloop/marketplace/internal/app/domain/capability"
	"github.com/localloop/marketplace/internal/app/storage"
	"github.com/localloop/marketplace/pkg/logger"
)

// Validation errors surfaced before any write.
var (
	ErrNotOwner        = errors.New("only the owning business may modify this capability")
	ErrUnknownCategory = errors.New("category is not in the fixed category set")
	ErrBadPriceRange   = errors.New("price range minimum exceeds maximum")
)

// Service manages supply offers. Offers are never hard-deleted, only
// deactivated, so historical connections keep a valid reference.
type Service struct {
	businesses storage.BusinessStore
	store      storage.CapabilityStore
	log        *logger.Logger
}

// New creates a configured capability service.
func New(businesses storage.BusinessStore, store storage.CapabilityStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("capabilities")
	}
	return &Service{businesses: businesses, store: store, log: log}
}

func validate(c capability.Capability) error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("capability title is required")
	}
	if !capability.ValidCategory(c.Category) {
		return fmt.Errorf("category %q: %w", c.Category, ErrUnknownCategory)
	}
	switch c.CapabilityType {
	case capability.TypeProduct, capability.TypeService:
	default:
		return fmt.Errorf("capability_type %q must be %s or %s", c.CapabilityType, capability.TypeProduct, capability.TypeService)
	}
	if c.PriceMin != nil && c.PriceMax != nil && *c.PriceMin > *c.PriceMax {
		return fmt.Errorf("price range [%v,%v]: %w", *c.PriceMin, *c.PriceMax, ErrBadPriceRange)
	}
	return nil
}

// checkOwner verifies the acting user owns the business the capability
// belongs to.
func (s *Service) checkOwner(ctx context.Context, actorUserID, businessID string) error {
	b, err := s.businesses.GetBusiness(ctx, businessID)
	if err != nil {
		return err
	}
	if b.OwnerUserID != "" && b.OwnerUserID != actorUserID {
		return fmt.Errorf("business %s: %w", businessID, ErrNotOwner)
	}
	return nil
}

// Create posts a new supply offer for the acting user's business. New offers
// start active.
func (s *Service) Create(ctx context.Context, actorUserID string, c capability.Capability) (capability.Capability, error) {
	if err := validate(c); err != nil {
		return capability.Capability{}, err
	}
	if err := s.checkOwner(ctx, actorUserID, c.BusinessID); err != nil {
		return capability.Capability{}, err
	}
	c.Active = true

	created, err := s.store.CreateCapability(ctx, c)
	if err != nil {
		return capability.Capability{}, fmt.Errorf("create capability: %w", err)
	}
	s.log.WithField("capability_id", created.ID).
		WithField("business_id", created.BusinessID).
		WithField("category", created.Category).
		Info("capability created")
	return created, nil
}

// Update rewrites an offer's descriptive fields. The owning business and
// creation time are preserved.
func (s *Service) Update(ctx context.Context, actorUserID, id string, c capability.Capability) (capability.Capability, error) {
	existing, err := s.store.GetCapability(ctx, id)
	if err != nil {
		return capability.Capability{}, err
	}
	if err := s.checkOwner(ctx, actorUserID, existing.BusinessID); err != nil {
		return capability.Capability{}, err
	}

	c.ID = existing.ID
	c.BusinessID = existing.BusinessID
	c.CreatedAt = existing.CreatedAt
	if err := validate(c); err != nil {
		return capability.Capability{}, err
	}

	updated, err := s.store.UpdateCapability(ctx, c)
	if err != nil {
		return capability.Capability{}, fmt.Errorf("update capability: %w", err)
	}
	return updated, nil
}

// SetActive activates or deactivates an offer. Deactivated offers drop out
// of matching but remain on record.
func (s *Service) SetActive(ctx context.Context, actorUserID, id string, active bool) (capability.Capability, error) {
	existing, err := s.store.GetCapability(ctx, id)
	if err != nil {
		return capability.Capability{}, err
	}
	if err := s.checkOwner(ctx, actorUserID, existing.BusinessID); err != nil {
		return capability.Capability{}, err
	}

	existing.Active = active
	updated, err := s.store.UpdateCapability(ctx, existing)
	if err != nil {
		return capability.Capability{}, fmt.Errorf("set capability active: %w", err)
	}
	s.log.WithField("capability_id", id).WithField("active", active).Info("capability activity changed")
	return updated, nil
}

// Get returns one offer.
func (s *Service) Get(ctx context.Context, id string) (capability.Capability, error) {
	return s.store.GetCapability(ctx, id)
}

// List returns offers matching the filter, oldest first.
func (s *Service) List(ctx context.Context, filter storage.CapabilityFilter) ([]capability.Capability, error) {
	return s.store.ListCapabilities(ctx, filter)
}
