package connections

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/localloop/marketplace/internal/app/domain/connection"
	"github.com/localloop/marketplace/internal/app/metrics"
	"github.com/localloop/marketplace/internal/app/storage"
	"github.com/localloop/marketplace/pkg/logger"
)

// Validation errors surfaced before any write.
var (
	ErrSelfConnection    = errors.New("buyer and supplier must be different businesses")
	ErrInvalidTransition = errors.New("transition not permitted by connection state machine")
	ErrTerminalStatus    = errors.New("connection is in a terminal status")
)

// Notifier delivers a counterparty notification after a successful status
// transition. Implementations are fire-and-forget: errors are logged by the
// service and never fail the transition.
type Notifier interface {
	NotifyTransition(ctx context.Context, conn connection.Connection) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, conn connection.Connection) error

func (f NotifierFunc) NotifyTransition(ctx context.Context, conn connection.Connection) error {
	return f(ctx, conn)
}

// Service manages the buyer/supplier connection lifecycle.
type Service struct {
	businesses storage.BusinessStore
	store      storage.ConnectionStore
	notifier   Notifier
	log        *logger.Logger
}

// New creates a configured connection service.
func New(businesses storage.BusinessStore, store storage.ConnectionStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("connections")
	}
	return &Service{
		businesses: businesses,
		store:      store,
		log:        log,
	}
}

// WithNotifier attaches the counterparty notification hook.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// InitiateOptions carries the optional fields of a new connection.
type InitiateOptions struct {
	NeedID         string
	CapabilityID   string
	ConnectionType string
	Notes          string
	MatchScore     *float64
	EstimatedValue *float64
}

// Initiate creates a connection in the inquiry state. It fails before any
// write when buyer and supplier are the same business or either does not
// exist. The acting user is recorded as initiator.
func (s *Service) Initiate(ctx context.Context, buyerID, supplierID, initiatorUserID string, opts InitiateOptions) (connection.Connection, error) {
	buyerID = strings.TrimSpace(buyerID)
	supplierID = strings.TrimSpace(supplierID)

	if buyerID == "" || supplierID == "" {
		return connection.Connection{}, fmt.Errorf("buyer_business_id and supplier_business_id are required")
	}
	if buyerID == supplierID {
		return connection.Connection{}, ErrSelfConnection
	}
	if opts.MatchScore != nil && (*opts.MatchScore < 0 || *opts.MatchScore > 100) {
		return connection.Connection{}, fmt.Errorf("match_score must be within [0,100]")
	}

	if s.businesses != nil {
		if _, err := s.businesses.GetBusiness(ctx, buyerID); err != nil {
			return connection.Connection{}, fmt.Errorf("buyer validation failed: %w", err)
		}
		if _, err := s.businesses.GetBusiness(ctx, supplierID); err != nil {
			return connection.Connection{}, fmt.Errorf("supplier validation failed: %w", err)
		}
	}

	conn := connection.Connection{
		BuyerBusinessID:    buyerID,
		SupplierBusinessID: supplierID,
		NeedID:             strings.TrimSpace(opts.NeedID),
		CapabilityID:       strings.TrimSpace(opts.CapabilityID),
		ConnectionType:     strings.TrimSpace(opts.ConnectionType),
		MatchScore:         opts.MatchScore,
		Notes:              opts.Notes,
		EstimatedValue:     opts.EstimatedValue,
		Status:             connection.StatusInquiry,
		InitiatorUserID:    strings.TrimSpace(initiatorUserID),
	}
	conn, err := s.store.CreateConnection(ctx, conn)
	if err != nil {
		return connection.Connection{}, err
	}
	s.log.WithField("connection_id", conn.ID).
		WithField("buyer_business_id", buyerID).
		WithField("supplier_business_id", supplierID).
		Info("connection initiated")
	return conn, nil
}

// Transition moves a connection to a new status. Transitions outside the
// state machine are rejected without mutating the record. Completing a
// connection without an actual value is allowed but logged as a data-quality
// warning, since real-world reporting may lag.
func (s *Service) Transition(ctx context.Context, connectionID, newStatus string, actualValue *float64) (connection.Connection, error) {
	newStatus = strings.TrimSpace(newStatus)
	if !connection.ValidStatus(newStatus) {
		metrics.RecordConnectionTransition(newStatus, false)
		return connection.Connection{}, fmt.Errorf("unknown status %q", newStatus)
	}

	conn, err := s.store.GetConnection(ctx, connectionID)
	if err != nil {
		return connection.Connection{}, err
	}

	if connection.Terminal(conn.Status) {
		metrics.RecordConnectionTransition(newStatus, false)
		return connection.Connection{}, fmt.Errorf("connection %s is %s: %w", conn.ID, conn.Status, ErrTerminalStatus)
	}
	if !connection.CanTransition(conn.Status, newStatus) {
		metrics.RecordConnectionTransition(newStatus, false)
		return connection.Connection{}, fmt.Errorf("%s -> %s: %w", conn.Status, newStatus, ErrInvalidTransition)
	}

	conn.Status = newStatus
	if actualValue != nil {
		conn.ActualValue = actualValue
	}

	conn, err = s.store.UpdateConnection(ctx, conn)
	if err != nil {
		metrics.RecordConnectionTransition(newStatus, false)
		return connection.Connection{}, err
	}
	metrics.RecordConnectionTransition(newStatus, true)

	if newStatus == connection.StatusCompleted && conn.ActualValue == nil {
		s.log.WithField("connection_id", conn.ID).
			Warn("connection completed without a recorded actual value")
	}

	s.log.WithField("connection_id", conn.ID).
		WithField("status", newStatus).
		Info("connection transitioned")

	if s.notifier != nil {
		// Best-effort counterparty notification; failure never fails the
		// transition.
		if err := s.notifier.NotifyTransition(ctx, conn); err != nil {
			s.log.WithError(err).
				WithField("connection_id", conn.ID).
				Warn("counterparty notification failed")
		}
	}
	return conn, nil
}

// Get fetches a connection by identifier.
func (s *Service) Get(ctx context.Context, connectionID string) (connection.Connection, error) {
	return s.store.GetConnection(ctx, connectionID)
}

// ListForBusiness returns all connections where the business is buyer or
// supplier, newest first.
func (s *Service) ListForBusiness(ctx context.Context, businessID string) ([]connection.Connection, error) {
	businessID = strings.TrimSpace(businessID)
	if businessID == "" {
		return nil, fmt.Errorf("business_id is required")
	}
	return s.store.ListConnectionsForBusiness(ctx, businessID)
}
