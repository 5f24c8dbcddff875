package bootstrap

import (
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/auth"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/client"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/config"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/core"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/mailbox"

	"go.uber.org/zap"
)

// initializeGoogleProvider creates the Google identity provider. Token and
// profile calls share one timeout-bound client; revocation is retried.
func initializeGoogleProvider(cfg *config.Config, m core.Recorder) (*auth.GoogleProvider, error) {
	httpClient := client.CreateOAuthHTTPClient(cfg.OAuthTimeout)
	retryClient, err := client.CreateRetryClient(
		httpClient,
		cfg.ProviderMaxRetries,
		cfg.ProviderRetryDelay,
		cfg.ProviderMaxRetryDelay,
	)
	if err != nil {
		return nil, err
	}

	return auth.NewGoogleProvider(auth.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Scopes:       cfg.GoogleScopes,
	}, httpClient, retryClient, m), nil
}

// initializeMailboxImporter returns nil when imports are disabled so the
// orchestrator reports them as skipped.
func initializeMailboxImporter(
	cfg *config.Config,
	sink core.MessageSink,
	log *zap.Logger,
) core.MailboxImporter {
	if !cfg.ImportEnabled {
		log.Info("mailbox import disabled")
		return nil
	}
	httpClient := client.CreateOAuthHTTPClient(cfg.ImportTimeout)
	log.Info("mailbox import enabled",
		zap.Int("first_login_limit", cfg.ImportLimitFirstLogin),
		zap.Int("link_limit", cfg.ImportLimitLink),
	)
	return mailbox.NewGmailImporter(httpClient, sink, log.Named("gmail"))
}

// logGoogleProviderStatus logs the configured Google client
func logGoogleProviderStatus(cfg *config.Config, log *zap.Logger) {
	log.Info("google oauth configured",
		zap.String("redirect_url", cfg.GoogleRedirectURL),
		zap.Strings("scopes", cfg.GoogleScopes),
	)
}
