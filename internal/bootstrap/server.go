package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/config"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/core"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/metrics"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/store"

	"github.com/appleboy/graceful"
	"go.uber.org/zap"
)

// minSweepInterval keeps short cache TTLs from turning the sweep into a busy loop
const minSweepInterval = time.Minute

// createHTTPServer creates the HTTP server instance
func createHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// addServerRunningJob adds the HTTP server running job
func addServerRunningJob(m *graceful.Manager, srv *http.Server, log *zap.Logger) {
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal("failed to start server", zap.Error(err))
			}
		}()
		<-ctx.Done()
		return nil
	})
}

// addServerShutdownJob adds HTTP server shutdown handler
func addServerShutdownJob(
	m *graceful.Manager,
	srv *http.Server,
	cfg *config.Config,
	log *zap.Logger,
) {
	m.AddShutdownJob(func() error {
		log.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("server forced to shutdown", zap.Error(err))
			return err
		}

		log.Info("server exited")
		return nil
	})
}

// closeWithTimeout runs closer and stops waiting for it after timeout
func closeWithTimeout(timeout time.Duration, closer func() error) error {
	if timeout <= 0 {
		return closer()
	}
	done := make(chan error, 1)
	go func() { done <- closer() }()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("close did not finish within %s", timeout)
	}
}

// addDatabaseShutdownJob closes the connection pool
func addDatabaseShutdownJob(
	m *graceful.Manager,
	db *store.Store,
	cfg *config.Config,
	log *zap.Logger,
) {
	m.AddShutdownJob(func() error {
		if err := closeWithTimeout(cfg.DBCloseTimeout, db.Close); err != nil {
			log.Error("error closing database", zap.Error(err))
			return err
		}
		log.Info("database closed")
		return nil
	})
}

// addMetricsGaugeUpdateJob adds periodic metrics gauge update job
func addMetricsGaugeUpdateJob(
	m *graceful.Manager,
	cfg *config.Config,
	db *store.Store,
	recorder metrics.Recorder,
	metricsCache core.Cache[int64],
	log *zap.Logger,
) {
	if !cfg.MetricsEnabled || !cfg.MetricsGaugeUpdateEnabled || metricsCache == nil {
		return
	}

	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(cfg.MetricsGaugeUpdateInterval)
		defer ticker.Stop()

		wrapper := metrics.NewCacheWrapper(db, metricsCache)
		errLog := newErrorLogger(log)

		// Update immediately on startup
		errLog.logAll(metrics.UpdateGauges(ctx, wrapper, recorder, cfg.MetricsGaugeUpdateInterval))

		for {
			select {
			case <-ticker.C:
				errLog.logAll(
					metrics.UpdateGauges(ctx, wrapper, recorder, cfg.MetricsGaugeUpdateInterval),
				)
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// sweeper is implemented by caches that hold expired entries until swept
type sweeper interface {
	Sweep() int
}

// addSessionCacheSweepJob drops expired entries from an in-memory session
// cache. Redis expires keys itself.
func addSessionCacheSweepJob(
	m *graceful.Manager,
	cfg *config.Config,
	sessionCache core.Cache[models.Session],
	log *zap.Logger,
) {
	s, ok := sessionCache.(sweeper)
	if !ok {
		return
	}
	interval := max(cfg.SessionCacheTTL, minSweepInterval)

	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if removed := s.Sweep(); removed > 0 {
					log.Debug("swept session cache", zap.Int("removed", removed))
				}
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// addCacheCleanupJob adds cache cleanup on shutdown
func addCacheCleanupJob(
	m *graceful.Manager,
	name string,
	closer func() error,
	cfg *config.Config,
	log *zap.Logger,
) {
	if closer == nil {
		return
	}

	m.AddShutdownJob(func() error {
		if err := closeWithTimeout(cfg.CacheCloseTimeout, closer); err != nil {
			log.Error("error closing cache", zap.String("cache", name), zap.Error(err))
		} else {
			log.Info("cache closed", zap.String("cache", name))
		}
		return nil
	})
}

// errorLogger handles rate-limited error logging
type errorLogger struct {
	mu              sync.Mutex
	log             *zap.Logger
	lastErrorTimes  map[string]time.Time
	rateLimitWindow time.Duration
	now             func() time.Time
}

// newErrorLogger creates a new error logger with rate limiting
func newErrorLogger(log *zap.Logger) *errorLogger {
	return &errorLogger{
		log:             log,
		lastErrorTimes:  make(map[string]time.Time),
		rateLimitWindow: 5 * time.Minute, // at most once per 5 minutes per operation
		now:             time.Now,
	}
}

// logIfNeeded logs an error only if rate limit allows, and reports whether it did
func (e *errorLogger) logIfNeeded(operation string, err error) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	lastTime, exists := e.lastErrorTimes[operation]
	if exists && now.Sub(lastTime) < e.rateLimitWindow {
		return false
	}

	e.log.Warn("database query failed",
		zap.String("operation", operation),
		zap.Error(err),
		zap.Duration("suppressed_for", e.rateLimitWindow),
	)
	e.lastErrorTimes[operation] = now
	return true
}

func (e *errorLogger) logAll(failed map[string]error) {
	for operation, err := range failed {
		e.logIfNeeded(operation, err)
	}
}
