package cmd

import (
	"fmt"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/bootstrap"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/config"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/logger"

	"github.com/spf13/cobra"
)

func newServerCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if addr != "" {
				cfg.ServerAddr = addr
			}

			log, err := logger.New(logger.Config{Level: cfg.LogLevel, Dev: cfg.LogDev})
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			return bootstrap.Run(cmd.Context(), cfg, log)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides SERVER_ADDR")
	return cmd
}
