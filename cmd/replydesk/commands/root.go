// Package commands implements the replydesk CLI with cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with every subcommand registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "replydesk",
		Short: "replydesk - webhook reply desk for messaging bots",
		Long: `replydesk receives chat platform webhooks, decides how to answer each
message, and replies, drafts a suggestion, or hands off to a human.

Examples:
  replydesk serve --config ./replydesk.yaml
  replydesk drain --url http://localhost:8080/replydesk
  replydesk keygen --passphrase "correct horse battery staple"
  replydesk config show`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newDrainCmd(),
		newKeygenCmd(),
		newConfigCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}
