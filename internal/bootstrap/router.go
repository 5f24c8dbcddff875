package bootstrap

import (
	"net/http"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/config"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/handlers"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/logger"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/metrics"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/middleware"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// stateSessionName is the cookie holding the pending OAuth state
const stateSessionName = "oauth_session"

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(
	cfg *config.Config,
	db handlers.HealthChecker,
	h handlerSet,
	resolver middleware.SessionResolver,
	prometheusMetrics metrics.Recorder,
	log *zap.Logger,
) *gin.Engine {
	setupGinMode(cfg, log)
	r := gin.New()

	// Setup middleware
	r.Use(metrics.HTTPMetricsMiddleware(prometheusMetrics))
	r.Use(logger.GinMiddleware(log.Named("http")), logger.GinRecovery(log))

	// Setup session middleware
	setupSessionMiddleware(r, cfg)

	// Health check endpoint
	r.GET("/health", handlers.Health(db))

	// Setup metrics endpoint
	setupMetricsEndpoint(r, cfg, log)

	// Setup all routes
	setupAllRoutes(r, h, middleware.RequireSession(resolver))

	logServerStartup(cfg, log)

	return r
}

// setupSessionMiddleware configures the signed cookie that carries the
// OAuth state between the authorize redirect and the callback
func setupSessionMiddleware(r *gin.Engine, cfg *config.Config) {
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(stateSessionName, sessionStore))
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config, log *zap.Logger) {
	switch {
	case !cfg.MetricsEnabled:
		log.Info("prometheus metrics disabled")
	case cfg.MetricsToken != "":
		log.Info("prometheus metrics enabled at /metrics with bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Info("prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// setupAllRoutes configures all application routes
func setupAllRoutes(r *gin.Engine, h handlerSet, requireSession gin.HandlerFunc) {
	api := r.Group("/api")

	// Browser and token endpoints
	authGroup := api.Group("/auth")
	{
		authGroup.GET("/google/login", h.auth.GoogleLogin)
		authGroup.GET("/google/callback", h.auth.GoogleCallback)
		authGroup.GET("/google/add-account", requireSession, h.auth.GoogleAddAccount)
		authGroup.POST("/add-account", requireSession, h.auth.AddAccount)
		authGroup.POST("/refresh", h.auth.Refresh)
		authGroup.POST("/logout", h.auth.Logout)
		authGroup.GET("/me", requireSession, h.auth.Me)
	}

	// Linked mailboxes of the session's user
	accounts := api.Group("/accounts")
	accounts.Use(requireSession)
	{
		accounts.GET("", h.account.List)
		accounts.GET("/primary", h.account.Primary)
		accounts.POST("/reconcile", h.account.Reconcile)
		accounts.GET("/:id", h.account.Get)
		accounts.PATCH("/:id", h.account.Rename)
		accounts.POST("/:id/sync", h.account.SetSync)
		accounts.POST("/:id/activate", h.account.Activate)
		accounts.POST("/:id/deactivate", h.account.Deactivate)
		accounts.DELETE("/:id", h.account.Delete)
	}
}

// setupGinMode sets Gin mode based on environment configuration
func setupGinMode(cfg *config.Config, log *zap.Logger) {
	production := cfg.IsProduction()
	gin.SetMode(ginModeMap[production])
	log.Info("gin mode", zap.String("mode", ginModeLogMessage[production]))
}

var ginModeMap = map[bool]string{
	true:  gin.ReleaseMode,
	false: gin.DebugMode,
}

var ginModeLogMessage = map[bool]string{
	true:  "Release (production)",
	false: "Debug (development)",
}

// logServerStartup logs server startup information
func logServerStartup(cfg *config.Config, log *zap.Logger) {
	log.Info("mailbox auth server starting",
		zap.String("addr", cfg.ServerAddr),
		zap.String("base_url", cfg.BaseURL),
		zap.String("login_url", cfg.BaseURL+"/api/auth/google/login?redirect=1"),
	)
}
