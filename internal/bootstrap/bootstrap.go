package bootstrap

import (
	"context"
	"net/http"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/auth"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/config"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/core"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/metrics"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/store"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config
	Log    *zap.Logger

	// Core infrastructure
	DB                 *store.Store
	MetricsRecorder    metrics.Recorder
	MetricsCache       core.Cache[int64]
	MetricsCacheCloser func() error
	SessionCache       core.Cache[models.Session]
	SessionCacheCloser func() error
	Provider           *auth.GoogleProvider

	// Business layer
	Services serviceSet

	// HTTP
	HandlerSet handlerSet
	Router     *gin.Engine
	Server     *http.Server
}

// New validates cfg and builds every component without starting anything.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Application, error) {
	app := &Application{
		Config: cfg,
		Log:    log,
	}

	// Phase 1: Validate configuration
	if err := validateAllConfiguration(cfg, log); err != nil {
		return nil, err
	}

	// Phase 2: Initialize infrastructure
	if err := app.initializeInfrastructure(ctx); err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	// Phase 3: Initialize business layer
	app.initializeBusinessLayer()

	// Phase 4: Initialize HTTP layer
	app.initializeHTTPLayer()

	return app, nil
}

// Run initializes and starts the application, blocking until shutdown
func Run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	app, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}

	// Phase 5: Start server with graceful shutdown
	app.startWithGracefulShutdown()
	return nil
}

// initializeInfrastructure sets up database, metrics, caches and the provider
func (app *Application) initializeInfrastructure(ctx context.Context) error {
	var err error

	// Database
	app.DB, err = initializeDatabase(ctx, app.Config, app.Log)
	if err != nil {
		return err
	}

	// Metrics
	app.MetricsRecorder = initializeMetrics(app.Config, app.Log)
	app.MetricsCache, app.MetricsCacheCloser, err = initializeMetricsCache(ctx, app.Config, app.Log)
	if err != nil {
		return err
	}

	// Session cache
	app.SessionCache, app.SessionCacheCloser, err = initializeSessionCache(ctx, app.Config, app.Log)
	if err != nil {
		return err
	}

	// Google
	app.Provider, err = initializeGoogleProvider(app.Config, app.MetricsRecorder)
	if err != nil {
		return err
	}
	logGoogleProviderStatus(app.Config, app.Log)

	return nil
}

// closeInfrastructure releases whatever initializeInfrastructure opened
func (app *Application) closeInfrastructure() {
	for _, closer := range []func() error{app.SessionCacheCloser, app.MetricsCacheCloser} {
		if closer != nil {
			_ = closer()
		}
	}
	if app.DB != nil {
		_ = app.DB.Close()
	}
}

// initializeBusinessLayer sets up services
func (app *Application) initializeBusinessLayer() {
	app.Services = initializeServices(
		app.Config,
		app.DB,
		app.SessionCache,
		app.Provider,
		app.MetricsRecorder,
		app.Log,
	)
}

// initializeHTTPLayer sets up handlers, router, and server
func (app *Application) initializeHTTPLayer() {
	app.HandlerSet = initializeHandlers(app.Config, app.Services, app.Log)

	app.Router = setupRouter(
		app.Config,
		app.DB,
		app.HandlerSet,
		app.Services.sessions,
		app.MetricsRecorder,
		app.Log,
	)

	app.Server = createHTTPServer(app.Config, app.Router)
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown() {
	m := graceful.NewManager()

	// Add jobs
	addServerRunningJob(m, app.Server, app.Log)
	addServerShutdownJob(m, app.Server, app.Config, app.Log)
	addMetricsGaugeUpdateJob(m, app.Config, app.DB, app.MetricsRecorder, app.MetricsCache, app.Log)
	addSessionCacheSweepJob(m, app.Config, app.SessionCache, app.Log)
	addCacheCleanupJob(m, "metrics", app.MetricsCacheCloser, app.Config, app.Log)
	addCacheCleanupJob(m, "session", app.SessionCacheCloser, app.Config, app.Log)
	addDatabaseShutdownJob(m, app.DB, app.Config, app.Log)

	// Wait for graceful shutdown
	<-m.Done()
}
