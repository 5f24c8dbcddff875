package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Database driver constants
const (
	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"
)

// Cache type constants
const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// DefaultGoogleScopes is the fixed capability set requested on every
// authorization: identity, read-only mailbox access and sending mail.
var DefaultGoogleScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.send",
}

type Config struct {
	// Server settings
	ServerAddr  string
	BaseURL     string
	Environment string // "production" enables secure cookies and release mode

	// Database
	DatabaseDriver          string // "sqlite" or "postgres"
	DatabaseDSN             string // Database connection string (DSN or path)
	DatabaseMaxOpenConns    int
	DatabaseMaxIdleConns    int
	DatabaseConnMaxLifetime time.Duration
	DatabaseLogLevel        string // silent, error, warn, info

	// Google OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	GoogleScopes       []string

	// Frontend redirect targets for the browser callback
	FrontendSuccessURL string
	FrontendLoginURL   string

	// Per-call timeouts
	OAuthTimeout time.Duration // provider token/profile/revoke calls (default: 10s)
	StoreTimeout time.Duration // each persistence call (default: 10s)

	// Provider retry settings (revocation endpoint)
	ProviderMaxRetries    int
	ProviderRetryDelay    time.Duration
	ProviderMaxRetryDelay time.Duration

	// Token lifecycle
	TokenRefreshThreshold time.Duration // refresh proactively below this remaining lifetime

	// Mailbox import
	ImportEnabled         bool
	ImportLimitFirstLogin int
	ImportLimitLink       int
	ImportTimeout         time.Duration

	// Browser session cookie (carries the CSRF state between login and callback)
	SessionSecret string
	SessionMaxAge int // seconds

	// Session cache in front of the session store
	SessionCacheType      string // "memory" or "redis"
	SessionCacheTTL       time.Duration
	SessionCacheClientTTL time.Duration // rueidis client-side cache TTL, 0 disables

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Metrics
	MetricsEnabled             bool
	MetricsToken               string
	MetricsGaugeUpdateEnabled  bool
	MetricsGaugeUpdateInterval time.Duration
	MetricsCacheType           string // "memory" or "redis"

	// Logging
	LogLevel string
	LogDev   bool

	// Startup / shutdown timeouts
	DBInitTimeout         time.Duration
	DBCloseTimeout        time.Duration
	CacheInitTimeout      time.Duration
	CacheCloseTimeout     time.Duration
	ServerShutdownTimeout time.Duration
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	driver := getEnv("DATABASE_DRIVER", DatabaseDriverSQLite)
	var dsn string
	if driver == DatabaseDriverSQLite {
		dsn = getEnv("DATABASE_DSN", getEnv("DATABASE_PATH", "mailassist.db"))
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	baseURL := getEnv("BASE_URL", "http://localhost:8080")

	return &Config{
		ServerAddr:  getEnv("SERVER_ADDR", ":8080"),
		BaseURL:     baseURL,
		Environment: getEnv("ENVIRONMENT", "development"),

		DatabaseDriver:          driver,
		DatabaseDSN:             dsn,
		DatabaseMaxOpenConns:    getEnvInt("DATABASE_MAX_OPEN_CONNS", 25),
		DatabaseMaxIdleConns:    getEnvInt("DATABASE_MAX_IDLE_CONNS", 10),
		DatabaseConnMaxLifetime: getEnvDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		DatabaseLogLevel:        getEnv("DATABASE_LOG_LEVEL", "warn"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL: getEnv(
			"GOOGLE_REDIRECT_URL",
			strings.TrimRight(baseURL, "/")+"/api/auth/google/callback",
		),
		GoogleScopes: slices.Clone(DefaultGoogleScopes),

		FrontendSuccessURL: getEnv("FRONTEND_SUCCESS_URL", "http://localhost:3000/auth/success"),
		FrontendLoginURL:   getEnv("FRONTEND_LOGIN_URL", "http://localhost:3000/login"),

		OAuthTimeout: getEnvDuration("OAUTH_TIMEOUT", 10*time.Second),
		StoreTimeout: getEnvDuration("STORE_TIMEOUT", 10*time.Second),

		ProviderMaxRetries:    getEnvInt("PROVIDER_MAX_RETRIES", 3),
		ProviderRetryDelay:    getEnvDuration("PROVIDER_RETRY_DELAY", 500*time.Millisecond),
		ProviderMaxRetryDelay: getEnvDuration("PROVIDER_MAX_RETRY_DELAY", 5*time.Second),

		TokenRefreshThreshold: getEnvDuration("TOKEN_REFRESH_THRESHOLD", 5*time.Minute),

		ImportEnabled:         getEnvBool("IMPORT_ENABLED", true),
		ImportLimitFirstLogin: getEnvInt("IMPORT_LIMIT_FIRST_LOGIN", 50),
		ImportLimitLink:       getEnvInt("IMPORT_LIMIT_LINK", 10),
		ImportTimeout:         getEnvDuration("IMPORT_TIMEOUT", 60*time.Second),

		SessionSecret: getEnv("SESSION_SECRET", "session-secret-change-in-production"),
		SessionMaxAge: getEnvInt("SESSION_MAX_AGE", 600), // state cookie only needs to outlive consent

		SessionCacheType:      getEnv("SESSION_CACHE_TYPE", CacheTypeMemory),
		SessionCacheTTL:       getEnvDuration("SESSION_CACHE_TTL", 5*time.Minute),
		SessionCacheClientTTL: getEnvDuration("SESSION_CACHE_CLIENT_TTL", 0),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MetricsEnabled:             getEnvBool("METRICS_ENABLED", false),
		MetricsToken:               getEnv("METRICS_TOKEN", ""),
		MetricsGaugeUpdateEnabled:  getEnvBool("METRICS_GAUGE_UPDATE_ENABLED", true),
		MetricsGaugeUpdateInterval: getEnvDuration("METRICS_GAUGE_UPDATE_INTERVAL", 30*time.Second),
		MetricsCacheType:           getEnv("METRICS_CACHE_TYPE", CacheTypeMemory),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogDev:   getEnvBool("LOG_DEV", false),

		DBInitTimeout:         getEnvDuration("DB_INIT_TIMEOUT", 30*time.Second),
		DBCloseTimeout:        getEnvDuration("DB_CLOSE_TIMEOUT", 5*time.Second),
		CacheInitTimeout:      getEnvDuration("CACHE_INIT_TIMEOUT", 5*time.Second),
		CacheCloseTimeout:     getEnvDuration("CACHE_CLOSE_TIMEOUT", 5*time.Second),
		ServerShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
	}
}

// IsProduction returns true when running with ENVIRONMENT=production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate checks settings that cannot be defaulted safely.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DatabaseDriverSQLite, DatabaseDriverPostgres:
	default:
		return fmt.Errorf(
			"invalid DATABASE_DRIVER value: %q (must be %q or %q)",
			c.DatabaseDriver, DatabaseDriverSQLite, DatabaseDriverPostgres,
		)
	}
	if c.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN is required")
	}

	for name, value := range map[string]string{
		"SESSION_CACHE_TYPE": c.SessionCacheType,
		"METRICS_CACHE_TYPE": c.MetricsCacheType,
	} {
		if value != CacheTypeMemory && value != CacheTypeRedis {
			return fmt.Errorf(
				"invalid %s value: %q (must be %q or %q)",
				name, value, CacheTypeMemory, CacheTypeRedis,
			)
		}
	}
	if (c.SessionCacheType == CacheTypeRedis || c.MetricsCacheType == CacheTypeRedis) &&
		c.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required when a cache type is redis")
	}
	if c.SessionCacheTTL < 0 {
		return fmt.Errorf("SESSION_CACHE_TTL must not be negative, got %s", c.SessionCacheTTL)
	}

	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		return errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	}
	for name, value := range map[string]string{
		"GOOGLE_REDIRECT_URL":  c.GoogleRedirectURL,
		"FRONTEND_SUCCESS_URL": c.FrontendSuccessURL,
		"FRONTEND_LOGIN_URL":   c.FrontendLoginURL,
	} {
		if err := validateAbsoluteURL(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if c.OAuthTimeout <= 0 || c.StoreTimeout <= 0 {
		return errors.New("OAUTH_TIMEOUT and STORE_TIMEOUT must be positive")
	}
	if c.TokenRefreshThreshold < 0 {
		return fmt.Errorf(
			"TOKEN_REFRESH_THRESHOLD must not be negative, got %s",
			c.TokenRefreshThreshold,
		)
	}
	if c.ImportLimitFirstLogin < 0 || c.ImportLimitLink < 0 {
		return errors.New("IMPORT_LIMIT_FIRST_LOGIN and IMPORT_LIMIT_LINK must not be negative")
	}
	if c.IsProduction() && len(c.SessionSecret) < 32 {
		return errors.New("SESSION_SECRET must be at least 32 bytes in production")
	}
	return nil
}

func validateAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute URL", raw)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

