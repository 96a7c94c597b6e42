package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	businesssvc "github.com/localloop/marketplace/internal/app/services/businesses"
	capabilitysvc "github.com/localloop/marketplace/internal/app/services/capabilities"
	connectionsvc "github.com/localloop/marketplace/internal/app/services/connections"
	discoverysvc "github.com/localloop/marketplace/internal/app/services/discovery"
	impactsvc "github.com/localloop/marketplace/internal/app/services/impact"
	matchingsvc "github.com/localloop/marketplace/internal/app/services/matching"
	needsvc "github.com/localloop/marketplace/internal/app/services/needs"
	"github.com/localloop/marketplace/internal/app/storage"
	"github.com/localloop/marketplace/internal/app/storage/memory"
	"github.com/localloop/marketplace/internal/app/system"
	"github.com/localloop/marketplace/pkg/logger"
)

// Config carries the collaborator settings the services need. Empty fields
// fall back to the corresponding environment variables so .env-only
// deployments keep working.
type Config struct {
	DiscoverySearchURL string
	DiscoverySearchKey string
	DiscoveryRPS       float64
	NotifyWebhookURL   string
	NotifyWebhookKey   string
	ImpactSchedule     string
}

func (c Config) withEnvFallbacks() Config {
	if c.DiscoverySearchURL == "" {
		c.DiscoverySearchURL = os.Getenv("DISCOVERY_SEARCH_URL")
	}
	if c.DiscoverySearchKey == "" {
		c.DiscoverySearchKey = os.Getenv("DISCOVERY_SEARCH_KEY")
	}
	if c.NotifyWebhookURL == "" {
		c.NotifyWebhookURL = os.Getenv("NOTIFY_WEBHOOK_URL")
	}
	if c.NotifyWebhookKey == "" {
		c.NotifyWebhookKey = os.Getenv("NOTIFY_WEBHOOK_KEY")
	}
	if c.ImpactSchedule == "" {
		c.ImpactSchedule = os.Getenv("IMPACT_REFRESH_SCHEDULE")
	}
	if c.DiscoveryRPS <= 0 {
		c.DiscoveryRPS = 1
	}
	return c
}

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Businesses   storage.BusinessStore
	Capabilities storage.CapabilityStore
	Needs        storage.NeedStore
	Connections  storage.ConnectionStore
	Leads        storage.LeadStore
	Impact       storage.ImpactStore
}

// Application ties the marketplace services together and manages their
// lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Businesses   *businesssvc.Service
	Capabilities *capabilitysvc.Service
	Needs        *needsvc.Service
	Matching     *matchingsvc.Service
	Connections  *connectionsvc.Service
	Discovery    *discoverysvc.Service
	Impact       *impactsvc.Service
}

// New builds a fully initialised application with the provided stores and
// collaborator configuration.
func New(stores Stores, cfg Config, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	cfg = cfg.withEnvFallbacks()

	mem := memory.New()
	if stores.Businesses == nil {
		stores.Businesses = mem
	}
	if stores.Capabilities == nil {
		stores.Capabilities = mem
	}
	if stores.Needs == nil {
		stores.Needs = mem
	}
	if stores.Connections == nil {
		stores.Connections = mem
	}
	if stores.Leads == nil {
		stores.Leads = mem
	}
	if stores.Impact == nil {
		stores.Impact = mem
	}

	manager := system.NewManager()
	httpClient := &http.Client{Timeout: 15 * time.Second}

	businessService := businesssvc.New(stores.Businesses, log)
	capabilityService := capabilitysvc.New(stores.Businesses, stores.Capabilities, log)
	needService := needsvc.New(stores.Businesses, stores.Needs, log)
	matchingService := matchingsvc.New(stores.Capabilities, log)

	connectionService := connectionsvc.New(stores.Businesses, stores.Connections, log)
	if endpoint := strings.TrimSpace(cfg.NotifyWebhookURL); endpoint != "" {
		notifier, err := connectionsvc.NewHTTPNotifier(httpClient, endpoint, cfg.NotifyWebhookKey, log)
		if err != nil {
			log.WithError(err).Warn("configure transition notifier")
		} else {
			connectionService.WithNotifier(notifier)
		}
	} else {
		log.Warn("notification webhook not configured; transition notifications disabled")
	}

	var searcher discoverysvc.Searcher
	if endpoint := strings.TrimSpace(cfg.DiscoverySearchURL); endpoint != "" {
		s, err := discoverysvc.NewHTTPSearcher(httpClient, endpoint, cfg.DiscoverySearchKey, cfg.DiscoveryRPS, log)
		if err != nil {
			log.WithError(err).Warn("configure web searcher")
		} else {
			searcher = s
		}
	} else {
		log.Warn("discovery search endpoint not configured; external supplier search disabled")
	}
	discoveryService := discoverysvc.New(stores.Businesses, stores.Leads, searcher, log)

	impactService := impactsvc.New(stores.Impact, log)
	impactRunner, err := impactsvc.NewRefresher(impactService, cfg.ImpactSchedule, log)
	if err != nil {
		return nil, fmt.Errorf("configure impact refresher: %w", err)
	}

	for _, name := range []string{"businesses", "capabilities", "needs", "matching", "connections", "discovery"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}
	if err := manager.Register(impactRunner); err != nil {
		return nil, fmt.Errorf("register %s: %w", impactRunner.Name(), err)
	}

	return &Application{
		manager:      manager,
		log:          log,
		Businesses:   businessService,
		Capabilities: capabilityService,
		Needs:        needService,
		Matching:     matchingService,
		Connections:  connectionService,
		Discovery:    discoveryService,
		Impact:       impactService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
