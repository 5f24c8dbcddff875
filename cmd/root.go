package cmd

import (
	"os"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/version"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the mailbox auth service
var rootCmd = &cobra.Command{
	Use:   "mailauth",
	Short: "Google sign-in and mailbox linking for the email agent",
	Long: `mailauth signs users in with Google, links additional Gmail mailboxes
to an existing account and imports recent inbox messages for each of them.

Configuration is read from the environment, optionally from a .env file.`,
	SilenceUsage: true,
	Version:      version.Number(),
}

// Execute is the main entry point for the CLI application
func Execute() {
	// With no subcommand the server is started
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "server")
	}

	rootCmd.SetVersionTemplate(`{{printf "mailauth version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServerCmd())
	rootCmd.AddCommand(newVersionCmd())
}
