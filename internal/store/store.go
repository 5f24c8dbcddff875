package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/config"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/core"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	_ core.SessionStore    = (*Store)(nil)
	_ core.LoginWriter     = (*Store)(nil)
	_ core.UserStore       = (*Store)(nil)
	_ core.AccountRegistry = (*Store)(nil)
	_ core.MessageSink     = (*Store)(nil)
	_ core.MetricsStore    = (*Store)(nil)
)

// Store is the gorm-backed persistence for users, sessions, accounts and
// imported messages. Every call is bounded by the configured store timeout.
type Store struct {
	db      *gorm.DB
	timeout time.Duration
}

// New opens the database, applies pool settings and migrates the schema.
func New(driver, dsn string, cfg *config.Config) (*Store, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(cfg.DatabaseLogLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	if isSQLite(driver) {
		// One connection keeps :memory: databases alive and serializes writers.
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.DatabaseMaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
		}
		if cfg.DatabaseMaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
		}
		if cfg.DatabaseConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)
		}
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Account{},
		&models.ImportedMessage{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{db: db, timeout: cfg.StoreTimeout}, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// conn returns a session bound to ctx, with the store timeout applied.
func (s *Store) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if s.timeout <= 0 {
		return s.db.WithContext(ctx), func() {}
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.db.WithContext(ctx), cancel
}

// Health pings the underlying database.
func (s *Store) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}
