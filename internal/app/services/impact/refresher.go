package impact

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/localloop/marketplace/internal/app/system"
	"github.com/localloop/marketplace/pkg/logger"
)

var _ system.Service = (*Refresher)(nil)

const defaultSchedule = "@every 15m"

// Refresher recomputes the impact snapshot on a cron schedule so the
// published gauges stay current without any request traffic.
type Refresher struct {
	service  *Service
	log      *logger.Logger
	schedule cron.Schedule

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRefresher creates a lifecycle-managed impact refresher. The schedule
// uses standard cron syntax or descriptors like "@hourly" and "@every 5m";
// empty defaults to every 15 minutes.
func NewRefresher(service *Service, scheduleSpec string, log *logger.Logger) (*Refresher, error) {
	if log == nil {
		log = logger.NewDefault("impact-refresher")
	}
	scheduleSpec = strings.TrimSpace(scheduleSpec)
	if scheduleSpec == "" {
		scheduleSpec = defaultSchedule
	}
	schedule, err := cron.ParseStandard(scheduleSpec)
	if err != nil {
		return nil, fmt.Errorf("parse impact refresh schedule %q: %w", scheduleSpec, err)
	}
	return &Refresher{
		service:  service,
		log:      log,
		schedule: schedule,
	}, nil
}

func (r *Refresher) Name() string { return "impact-refresher" }

func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			next := r.schedule.Next(time.Now())
			timer := time.NewTimer(time.Until(next))
			select {
			case <-runCtx.Done():
				timer.Stop()
				return
			case <-timer.C:
				r.tick(runCtx)
			}
		}
	}()

	r.log.Info("impact refresher started")
	return nil
}

func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("impact refresher stopped")
	return nil
}

func (r *Refresher) tick(ctx context.Context) {
	if r.service == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := r.service.ComputeImpactMetrics(ctx); err != nil {
		r.log.WithError(err).Warn("impact refresh tick failed")
	}
}
