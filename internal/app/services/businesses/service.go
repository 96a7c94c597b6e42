package businesses

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/localloop/marketplace/internal/app/domain/business"
	"github.com/localloop/marketplace/internal/app/storage"
	"github.com/localloop/marketplace/pkg/logger"
)

// ErrNotOwner rejects a mutation attempted by someone other than the profile
// owner.
var ErrNotOwner = errors.New("only the owning user may modify this business")

// Service manages directory business profiles.
type Service struct {
	store storage.BusinessStore
	log   *logger.Logger
}

// New creates a configured business service.
func New(store storage.BusinessStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("businesses")
	}
	return &Service{store: store, log: log}
}

// Register creates a directory profile owned by the acting user.
func (s *Service) Register(ctx context.Context, ownerUserID string, b business.Business) (business.Business, error) {
	b.Name = strings.TrimSpace(b.Name)
	if b.Name == "" {
		return business.Business{}, fmt.Errorf("business name is required")
	}
	b.OwnerUserID = strings.TrimSpace(ownerUserID)
	// Verification is granted separately, never self-asserted.
	b.Verified = false

	created, err := s.store.CreateBusiness(ctx, b)
	if err != nil {
		return business.Business{}, fmt.Errorf("register business: %w", err)
	}
	s.log.WithField("business_id", created.ID).WithField("name", created.Name).Info("business registered")
	return created, nil
}

// Update rewrites the profile's descriptive fields. Only the owner may
// update; ownership and verification are preserved.
func (s *Service) Update(ctx context.Context, actorUserID, id string, b business.Business) (business.Business, error) {
	existing, err := s.store.GetBusiness(ctx, id)
	if err != nil {
		return business.Business{}, err
	}
	if existing.OwnerUserID != "" && existing.OwnerUserID != actorUserID {
		return business.Business{}, fmt.Errorf("business %s: %w", id, ErrNotOwner)
	}

	b.Name = strings.TrimSpace(b.Name)
	if b.Name == "" {
		return business.Business{}, fmt.Errorf("business name is required")
	}
	b.ID = existing.ID
	b.OwnerUserID = existing.OwnerUserID
	b.Verified = existing.Verified
	b.CreatedAt = existing.CreatedAt

	updated, err := s.store.UpdateBusiness(ctx, b)
	if err != nil {
		return business.Business{}, fmt.Errorf("update business: %w", err)
	}
	return updated, nil
}

// SetVerified flags a profile as verified. Intended for administrative
// tooling, not end users.
func (s *Service) SetVerified(ctx context.Context, id string, verified bool) (business.Business, error) {
	existing, err := s.store.GetBusiness(ctx, id)
	if err != nil {
		return business.Business{}, err
	}
	existing.Verified = verified
	updated, err := s.store.UpdateBusiness(ctx, existing)
	if err != nil {
		return business.Business{}, fmt.Errorf("set verified: %w", err)
	}
	s.log.WithField("business_id", id).WithField("verified", verified).Info("business verification updated")
	return updated, nil
}

// Get returns one profile.
func (s *Service) Get(ctx context.Context, id string) (business.Business, error) {
	return s.store.GetBusiness(ctx, id)
}

// List returns every directory profile.
func (s *Service) List(ctx context.Context) ([]business.Business, error) {
	return s.store.ListBusinesses(ctx)
}
