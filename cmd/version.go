package cmd

import (
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/version"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			version.Write(cmd.OutOrStdout())
		},
	}
}
