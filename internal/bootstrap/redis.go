package bootstrap

import (
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/cache"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/config"
)

// rueidisOptions builds the Redis connection settings shared by every cache.
// Each cache gets its own key prefix so they can share one database.
func rueidisOptions(cfg *config.Config, prefix string, clientTTL time.Duration) cache.RueidisOptions {
	return cache.RueidisOptions{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: prefix,
		ClientTTL: clientTTL,
	}
}
