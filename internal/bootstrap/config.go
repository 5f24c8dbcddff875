package bootstrap

import (
	"fmt"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/config"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/util"

	"go.uber.org/zap"
)

const defaultSessionSecret = "session-secret-change-in-production"

// validateAllConfiguration validates all configuration settings
func validateAllConfiguration(cfg *config.Config, log *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := ensureSessionSecret(cfg, log); err != nil {
		return fmt.Errorf("invalid session configuration: %w", err)
	}
	return nil
}

// ensureSessionSecret replaces the placeholder cookie secret outside
// production. Cookies signed with it do not survive a restart.
func ensureSessionSecret(cfg *config.Config, log *zap.Logger) error {
	if cfg.SessionSecret != "" && cfg.SessionSecret != defaultSessionSecret {
		return nil
	}
	if cfg.IsProduction() {
		return fmt.Errorf("SESSION_SECRET must be set in production")
	}
	secret, err := util.CryptoRandomURLString(32)
	if err != nil {
		return err
	}
	cfg.SessionSecret = secret
	log.Warn("SESSION_SECRET not set, using a random secret for this process")
	return nil
}
