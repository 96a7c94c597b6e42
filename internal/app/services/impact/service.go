package impact

import (
	"context"
	"fmt"

	domain "github.com/localloop/marketplace/internal/app/domain/impact"
	"github.com/localloop/marketplace/internal/app/metrics"
	"github.com/localloop/marketplace/internal/app/storage"
	"github.com/localloop/marketplace/pkg/logger"
)

// Service computes the community impact snapshot. Every figure in a snapshot
// comes from the same consistent view of the data; if the store cannot
// guarantee that, the computation fails rather than returning a partial mix.
type Service struct {
	store storage.ImpactStore
	log   *logger.Logger
}

// New creates a configured impact service.
func New(store storage.ImpactStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("impact")
	}
	return &Service{store: store, log: log}
}

// ComputeImpactMetrics returns a point-in-time snapshot and publishes its
// figures as gauges.
func (s *Service) ComputeImpactMetrics(ctx context.Context) (domain.Metrics, error) {
	m, err := s.store.GetImpactMetrics(ctx)
	if err != nil {
		return domain.Metrics{}, fmt.Errorf("compute impact metrics: %w", err)
	}

	metrics.SetImpactMetric("total_connections", float64(m.TotalConnections))
	metrics.SetImpactMetric("active_connections", float64(m.ActiveConnections))
	metrics.SetImpactMetric("completed_connections", float64(m.CompletedConnections))
	metrics.SetImpactMetric("total_transaction_value", m.TotalTransactionValue)
	metrics.SetImpactMetric("active_suppliers", float64(m.ActiveSuppliers))
	metrics.SetImpactMetric("open_needs", float64(m.OpenNeeds))
	metrics.SetImpactMetric("money_kept_in_community", m.MoneyKeptInCommunity)

	s.log.WithField("total_connections", m.TotalConnections).
		WithField("open_needs", m.OpenNeeds).
		Debug("impact metrics computed")
	return m, nil
}
