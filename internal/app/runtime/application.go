package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	app "github.com/localloop/marketplace/internal/app"
	"github.com/localloop/marketplace/internal/app/httpapi"
	"github.com/localloop/marketplace/internal/app/metrics"
	"github.com/localloop/marketplace/internal/app/storage/postgres"
	"github.com/localloop/marketplace/internal/config"
	"github.com/localloop/marketplace/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	httpServer *http.Server
	db         *sqlx.DB
}

// NewApplication constructs a fully wired application from configuration.
// Without a database DSN the application runs on the in-memory stores.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	stores, db, err := buildStores(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	application, err := app.New(stores, app.Config{
		DiscoverySearchURL: cfg.Discovery.SearchURL,
		DiscoverySearchKey: cfg.Discovery.SearchAPIKey,
		DiscoveryRPS:       cfg.Discovery.RequestsPerSecond,
		NotifyWebhookURL:   cfg.Notify.WebhookURL,
		NotifyWebhookKey:   cfg.Notify.APIKey,
		ImpactSchedule:     cfg.Impact.RefreshSchedule,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("build application: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", httpapi.WrapWithAuth(httpapi.NewHandler(application), cfg.Auth.Tokens))

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      metrics.InstrumentHandler(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Application{
		cfg:        cfg,
		log:        log,
		app:        application,
		httpServer: httpServer,
		db:         db,
	}, nil
}

// App exposes the composed application, mainly for tests.
func (a *Application) App() *app.Application {
	return a.app
}

// Run starts the background services and the HTTP server, blocking until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the HTTP server, the background services, and the database
// connection.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("error stopping services")
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
	return nil
}

func buildStores(cfg *config.Config, log *logger.Logger) (app.Stores, *sqlx.DB, error) {
	if cfg.Database.DSN == "" {
		log.Warn("DATABASE_URL not set; using in-memory stores")
		return app.Stores{}, nil, nil
	}

	db, err := sqlx.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return app.Stores{}, nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return app.Stores{}, nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(cfg.Database); err != nil {
		db.Close()
		return app.Stores{}, nil, err
	}

	store := postgres.New(db)
	return app.Stores{
		Businesses:   store,
		Capabilities: store,
		Needs:        store,
		Connections:  store,
		Leads:        store,
		Impact:       store,
	}, db, nil
}

func runMigrations(cfg config.DatabaseConfig) error {
	m, err := migrate.New("file://"+cfg.MigrationsPath, cfg.DSN)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
