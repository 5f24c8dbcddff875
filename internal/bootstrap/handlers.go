package bootstrap

import (
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/config"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/handlers"

	"go.uber.org/zap"
)

// handlerSet holds all HTTP handlers
type handlerSet struct {
	auth    *handlers.AuthHandler
	account *handlers.AccountHandler
}

// initializeHandlers creates all HTTP handlers
func initializeHandlers(cfg *config.Config, svc serviceSet, log *zap.Logger) handlerSet {
	return handlerSet{
		auth: handlers.NewAuthHandler(
			svc.issuer,
			svc.auth,
			svc.sessions,
			handlers.Redirects{
				SuccessURL: cfg.FrontendSuccessURL,
				LoginURL:   cfg.FrontendLoginURL,
			},
			log.Named("http"),
		),
		account: handlers.NewAccountHandler(svc.accounts),
	}
}
