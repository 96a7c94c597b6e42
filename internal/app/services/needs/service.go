package needs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/localloop/marketplace/internal/app/domain/capability"
	"github.com/localloop/marketplace/internal/app/domain/need"
	"github.com/localloop/marketplace/internal/app/storage"
	"github.com/localloop/marketplace/pkg/logger"
)

// Validation errors surfaced before any write.
var (
	ErrNotOwner         = errors.New("only the owning business may modify this need")
	ErrUnknownCategory  = errors.New("category is not in the fixed category set")
	ErrBadBudgetRange   = errors.New("budget range minimum exceeds maximum")
	ErrClosedNeed       = errors.New("need is no longer open")
	ErrUnknownUrgency   = errors.New("urgency must be low, medium, or high")
	ErrUnknownNeedState = errors.New("unknown need status")
)

// Service manages demand posts and their forward-only status transitions.
type Service struct {
	businesses storage.BusinessStore
	store      storage.NeedStore
	log        *logger.Logger
}

// New creates a configured need service.
func New(businesses storage.BusinessStore, store storage.NeedStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("needs")
	}
	return &Service{businesses: businesses, store: store, log: log}
}

func validate(n need.Need) error {
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("need title is required")
	}
	if !capability.ValidCategory(n.Category) {
		return fmt.Errorf("category %q: %w", n.Category, ErrUnknownCategory)
	}
	switch n.Urgency {
	case "", need.UrgencyLow, need.UrgencyMedium, need.UrgencyHigh:
	default:
		return fmt.Errorf("urgency %q: %w", n.Urgency, ErrUnknownUrgency)
	}
	if n.BudgetMin != nil && n.BudgetMax != nil && *n.BudgetMin > *n.BudgetMax {
		return fmt.Errorf("budget range [%v,%v]: %w", *n.BudgetMin, *n.BudgetMax, ErrBadBudgetRange)
	}
	return nil
}

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

// Create posts a new need for the acting user's business. New needs start
// open; urgency defaults to medium.
func (s *Service) Create(ctx context.Context, actorUserID string, n need.Need) (need.Need, error) {
	if err := validate(n); err != nil {
		return need.Need{}, err
	}
	if err := s.checkOwner(ctx, actorUserID, n.BusinessID); err != nil {
		return need.Need{}, err
	}
	if n.Urgency == "" {
		n.Urgency = need.UrgencyMedium
	}
	n.Status = need.StatusOpen

	created, err := s.store.CreateNeed(ctx, n)
	if err != nil {
		return need.Need{}, fmt.Errorf("create need: %w", err)
	}
	s.log.WithField("need_id", created.ID).
		WithField("business_id", created.BusinessID).
		WithField("category", created.Category).
		Info("need created")
	return created, nil
}

// Update rewrites an open need's descriptive fields. Closed needs are
// immutable.
func (s *Service) Update(ctx context.Context, actorUserID, id string, n need.Need) (need.Need, error) {
	existing, err := s.store.GetNeed(ctx, id)
	if err != nil {
		return need.Need{}, err
	}
	if err := s.checkOwner(ctx, actorUserID, existing.BusinessID); err != nil {
		return need.Need{}, err
	}
	if existing.Status != need.StatusOpen {
		return need.Need{}, fmt.Errorf("need %s: %w", id, ErrClosedNeed)
	}

	n.ID = existing.ID
	n.BusinessID = existing.BusinessID
	n.Status = existing.Status
	n.CreatedAt = existing.CreatedAt
	if err := validate(n); err != nil {
		return need.Need{}, err
	}

	updated, err := s.store.UpdateNeed(ctx, n)
	if err != nil {
		return need.Need{}, fmt.Errorf("update need: %w", err)
	}
	return updated, nil
}

// Close moves an open need to one of the terminal states. Transitions never
// reopen a need.
func (s *Service) Close(ctx context.Context, actorUserID, id, status string) (need.Need, error) {
	switch status {
	case need.StatusFulfilled, need.StatusExpired, need.StatusCancelled:
	default:
		return need.Need{}, fmt.Errorf("status %q: %w", status, ErrUnknownNeedState)
	}

	existing, err := s.store.GetNeed(ctx, id)
	if err != nil {
		return need.Need{}, err
	}
	if err := s.checkOwner(ctx, actorUserID, existing.BusinessID); err != nil {
		return need.Need{}, err
	}
	if !need.CanTransition(existing.Status, status) {
		return need.Need{}, fmt.Errorf("need %s is %s: %w", id, existing.Status, ErrClosedNeed)
	}

	existing.Status = status
	updated, err := s.store.UpdateNeed(ctx, existing)
	if err != nil {
		return need.Need{}, fmt.Errorf("close need: %w", err)
	}
	s.log.WithField("need_id", id).WithField("status", status).Info("need closed")
	return updated, nil
}

// ExpireDue sweeps open needs whose expiry has passed and marks them
// expired. It returns how many needs were closed.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	open, err := s.store.ListNeeds(ctx, storage.NeedFilter{Status: need.StatusOpen})
	if err != nil {
		return 0, fmt.Errorf("list open needs: %w", err)
	}

	expired := 0
	for _, n := range open {
		if n.ExpiresAt == nil || !n.ExpiresAt.Before(now) {
			continue
		}
		n.Status = need.StatusExpired
		if _, err := s.store.UpdateNeed(ctx, n); err != nil {
			s.log.WithError(err).WithField("need_id", n.ID).Warn("expire need failed")
			continue
		}
		expired++
	}
	if expired > 0 {
		s.log.WithField("expired", expired).Info("expired due needs")
	}
	return expired, nil
}

// Get returns one need.
func (s *Service) Get(ctx context.Context, id string) (need.Need, error) {
	return s.store.GetNeed(ctx, id)
}

// List returns needs matching the filter, oldest first.
func (s *Service) List(ctx context.Context, filter storage.NeedFilter) ([]need.Need, error) {
	return s.store.ListNeeds(ctx, filter)
}
