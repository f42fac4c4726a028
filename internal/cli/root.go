// Package cli implements the codexpilot command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "codexpilot",
	Short: "Plan, confirm, and run file/code tasks through the Codex CLI",
	Long: `codexpilot coordinates a confirmed automation flow: it plans your request
with OpenAI, shows you the plan, and only after you approve it executes the
plan through the Codex CLI agent, streaming the agent's output as it runs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.PersistentFlags().String("config-dir", "", "Settings directory (default: ~/.codexpilot)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
