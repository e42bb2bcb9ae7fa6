package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/adminbridge/authgate/internal/gateway/http"
	"github.com/adminbridge/authgate/internal/gateway/service"
	"github.com/adminbridge/authgate/internal/gateway/store"
	"github.com/adminbridge/authgate/internal/gateway/store/drivers/sqlite"
	"github.com/adminbridge/authgate/pkg/cryptox"
	"github.com/adminbridge/authgate/pkg/jwtx"
	"github.com/adminbridge/authgate/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the gateway with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	keyManager *jwtx.KeyManager
	provider   service.Provider

	// Services
	exchangeService     *service.ExchangeService
	sessionService      *service.SessionService
	tokenCache          *service.TokenCache
	auditService        *service.AuditService
	housekeepingService *service.HousekeepingService
	pending             *service.PendingStore

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-gateway",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set master key path for sealing refresh tokens at rest
	cryptox.SetMasterKeyPath(app.cfg.MasterKeyPath)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	// Initialize session signing keys
	keyManager, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer:  app.cfg.Issuer,
		NumKeys: app.cfg.NumKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize signing keys: %w", err)
	}
	app.keyManager = keyManager

	// Discover the upstream provider
	ctx := context.Background()
	provider, err := service.NewOIDCProvider(ctx, service.ProviderConfig{
		Issuer:       app.cfg.ProviderIssuer,
		ClientID:     app.cfg.ProviderClientID,
		ClientSecret: app.cfg.ProviderClientSecret,
		RedirectURL:  app.cfg.ProviderRedirectURL,
		Scopes:       app.cfg.ProviderScopes,
		OutboundRPS:  app.cfg.ProviderOutboundRPS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider: %w", err)
	}
	app.provider = provider

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("auth gateway starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth gateway...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth gateway stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.auditService = &service.AuditService{Store: app.db}
	app.pending = service.NewPendingStore(app.cfg.PendingTTL, app.cfg.PendingCap)

	app.exchangeService = &service.ExchangeService{
		Provider: app.provider,
		Pending:  app.pending,
		Audit:    app.auditService,
	}

	app.tokenCache = service.NewTokenCache(app.provider, app.auditService)
	app.tokenCache.Buffer = app.cfg.RefreshBuffer

	app.sessionService = &service.SessionService{
		KeyManager: app.keyManager,
		Issuer:     app.cfg.Issuer,
		TTL:        app.cfg.SessionTTL,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.pending,
		app.tokenCache,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	if app.cfg.AuditRetention > 0 {
		app.housekeepingService.Retention = app.cfg.AuditRetention
	}
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager.KeySet,
		app.keyManager.Verifier,
		BuildVersion,
		app.db,
		app.logger,
	)

	// Wire services to router
	router.ExchangeService = app.exchangeService
	router.SessionService = app.sessionService
	router.TokenCache = app.tokenCache
	router.AuditService = app.auditService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
