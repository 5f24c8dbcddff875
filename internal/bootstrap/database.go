package bootstrap

import (
	"context"
	"fmt"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/config"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/store"

	"go.uber.org/zap"
)

// initializeDatabase opens the store and waits for the first successful ping
func initializeDatabase(ctx context.Context, cfg *config.Config, log *zap.Logger) (*store.Store, error) {
	db, err := store.New(cfg.DatabaseDriver, cfg.DatabaseDSN, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.DBInitTimeout)
	defer cancel()

	if err := db.Health(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	log.Info("database ready", zap.String("driver", cfg.DatabaseDriver))
	return db, nil
}
