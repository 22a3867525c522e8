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

	httpapi "github.com/nimbusops/nimbus/internal/auth/http"
	"github.com/nimbusops/nimbus/internal/auth/service"
	"github.com/nimbusops/nimbus/internal/auth/store"
	"github.com/nimbusops/nimbus/internal/auth/store/drivers/sqlite"
	"github.com/nimbusops/nimbus/pkg/cryptox"
	"github.com/nimbusops/nimbus/pkg/jwtx"
	"github.com/nimbusops/nimbus/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application wires the authorization server together: storage, key
// material, services, and the HTTP surface.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db         store.Store
	keyManager *jwtx.KeyManager

	tokenService        *service.TokenService
	clientService       *service.ClientService
	authorizeService    *service.AuthorizeService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized. Key
// material is loaded eagerly so a bad signing key fails boot rather than
// the first token request.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "nimbus-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.keyManager = jwtx.NewKeyManager(jwtx.KeyManagerOptions{
		Issuer:         cfg.Issuer,
		Audience:       cfg.Audience,
		PrivateKeyPath: cfg.SigningKeyPath,
		RSABits:        cfg.RSABits,
	})
	if err := app.keyManager.Load(); err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize signing keys: %w", err)
	}
	if cfg.SigningKeyPath == "" {
		app.logger.Warn("no signing key configured, generated an ephemeral key; tokens will not survive restarts")
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initHTTP(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully stops the HTTP server, the housekeeping worker, and
// the database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
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

func (app *Application) initServices() error {
	validator, err := service.NewRedirectValidator(app.cfg.RedirectHosts, app.cfg.RedirectHostPatterns)
	if err != nil {
		return err
	}

	identity, err := buildIdentityProvider(app.cfg.SeedUsers)
	if err != nil {
		return err
	}
	if app.cfg.SeedUsers == "" {
		app.logger.Warn("using built-in demo accounts; set AUTH_SEED_USERS for real deployments")
	}

	app.clientService = &service.ClientService{
		Store:     app.db,
		Validator: validator,
	}
	if err := app.clientService.SeedDefaults(context.Background()); err != nil {
		return fmt.Errorf("failed to seed default clients: %w", err)
	}

	app.authorizeService = &service.AuthorizeService{
		Store:    app.db,
		Clients:  app.clientService,
		Identity: identity,
		CodeTTL:  app.cfg.CodeTTL,
		LoginTTL: app.cfg.LoginTTL,
	}

	app.tokenService = &service.TokenService{
		Store:      app.db,
		Keys:       app.keyManager,
		Identity:   identity,
		Issuer:     app.cfg.Issuer,
		Audience:   app.cfg.Audience,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	return nil
}

func (app *Application) initHTTP() error {
	router := httpapi.NewRouter(
		app.keyManager,
		app.cfg.Issuer,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.TokenService = app.tokenService
	router.AuthorizeService = app.authorizeService
	router.ClientService = app.clientService
	if err := router.ApplyRoutes(); err != nil {
		return err
	}

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}
