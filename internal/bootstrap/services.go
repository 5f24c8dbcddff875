package bootstrap

import (
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/auth"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/config"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/core"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/services"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/store"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/token"

	"go.uber.org/zap"
)

// serviceSet holds every business service the HTTP layer depends on
type serviceSet struct {
	issuer   *auth.Issuer
	auth     *services.AuthService
	sessions *services.SessionService
	accounts *services.AccountService
	imports  *services.ImportOrchestrator
	tokens   *token.Manager
}

// initializeServices wires the business layer. Session reads and writes go
// through the session cache when one is configured.
func initializeServices(
	cfg *config.Config,
	db *store.Store,
	sessionCache core.Cache[models.Session],
	provider *auth.GoogleProvider,
	m core.Recorder,
	log *zap.Logger,
) serviceSet {
	var sessionBackend services.SessionBackend = db
	if sessionCache != nil {
		sessionBackend = services.NewCachedSessionStore(
			db,
			sessionCache,
			cfg.SessionCacheTTL,
			m,
			log.Named("session_cache"),
		)
	}

	importer := initializeMailboxImporter(cfg, db, log)

	tokens := token.NewManager(
		provider,
		sessionBackend,
		cfg.TokenRefreshThreshold,
		m,
		log.Named("token"),
	)
	accounts := services.NewAccountService(db, db, db, log.Named("accounts"))
	imports := services.NewImportOrchestrator(
		importer,
		tokens,
		m,
		log.Named("import"),
		cfg.ImportTimeout,
	)

	return serviceSet{
		issuer: auth.NewIssuer(provider, m),
		auth: services.NewAuthService(
			provider,
			services.NewIdentityResolver(db),
			sessionBackend,
			db,
			sessionBackend,
			accounts,
			imports,
			services.AuthLimits{
				ImportFirstLogin: cfg.ImportLimitFirstLogin,
				ImportLink:       cfg.ImportLimitLink,
			},
			m,
			log.Named("auth"),
		),
		sessions: services.NewSessionService(
			sessionBackend,
			db,
			tokens,
			provider,
			m,
			log.Named("session"),
		),
		accounts: accounts,
		imports:  imports,
		tokens:   tokens,
	}
}
