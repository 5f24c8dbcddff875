package bootstrap

import (
	"context"
	"fmt"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/cache"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/config"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/core"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/metrics"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"

	"go.uber.org/zap"
)

const (
	metricsKeyPrefix = "mailauth:metrics:"
	sessionKeyPrefix = "mailauth:sessions:"
)

// initializeMetrics initializes Prometheus metrics
func initializeMetrics(cfg *config.Config, log *zap.Logger) metrics.Recorder {
	recorder := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		log.Info("prometheus metrics initialized")
	} else {
		log.Info("metrics disabled (using noop implementation)")
	}
	return recorder
}

// initializeMetricsCache initializes the gauge cache. It returns nils when
// gauges are not updated.
func initializeMetricsCache(
	ctx context.Context,
	cfg *config.Config,
	log *zap.Logger,
) (core.Cache[int64], func() error, error) {
	if !cfg.MetricsEnabled || !cfg.MetricsGaugeUpdateEnabled {
		return nil, nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.CacheInitTimeout)
	defer cancel()

	switch cfg.MetricsCacheType {
	case config.CacheTypeRedis:
		c, err := cache.NewRueidisCache[int64](ctx, rueidisOptions(cfg, metricsKeyPrefix, 0))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis metrics cache: %w", err)
		}
		log.Info("metrics cache: redis",
			zap.String("addr", cfg.RedisAddr), zap.Int("db", cfg.RedisDB))
		return c, c.Close, nil

	default: // memory
		c := cache.NewMemoryCache[int64]()
		log.Info("metrics cache: memory (single instance only)")
		return c, c.Close, nil
	}
}

// initializeSessionCache initializes the cache in front of the session
// store. It returns nils when SESSION_CACHE_TTL is zero.
func initializeSessionCache(
	ctx context.Context,
	cfg *config.Config,
	log *zap.Logger,
) (core.Cache[models.Session], func() error, error) {
	if cfg.SessionCacheTTL <= 0 {
		log.Info("session cache disabled")
		return nil, nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.CacheInitTimeout)
	defer cancel()

	switch cfg.SessionCacheType {
	case config.CacheTypeRedis:
		c, err := cache.NewRueidisCache[models.Session](
			ctx,
			rueidisOptions(cfg, sessionKeyPrefix, cfg.SessionCacheClientTTL),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis session cache: %w", err)
		}
		log.Info("session cache: redis",
			zap.String("addr", cfg.RedisAddr),
			zap.Int("db", cfg.RedisDB),
			zap.Duration("ttl", cfg.SessionCacheTTL),
			zap.Duration("client_ttl", cfg.SessionCacheClientTTL),
		)
		return c, c.Close, nil

	default: // memory
		c := cache.NewMemoryCache[models.Session]()
		log.Info("session cache: memory (single instance only)",
			zap.Duration("ttl", cfg.SessionCacheTTL))
		return c, c.Close, nil
	}
}
