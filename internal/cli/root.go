package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "incsync",
	Short: "Keep increment specs, task lists and status caches consistent",
	Long: `incsync keeps the documents of a spec-driven project in agreement.
tasks.md is the source of truth for completion; spec.md acceptance criteria,
progress counters and the status-line cache are derived from it. Lifecycle
changes go through WIP discipline checks, and external trackers win for
status and priority.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	addGlobalFlags(rootCmd)
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log every pass step (same as INCSYNC_LOG_LEVEL=debug)")
}

func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("root", "", "Project root (overrides INCSYNC_PROJECT_ROOT)")
	cmd.PersistentFlags().String("db", "", "Path to ledger database (overrides INCSYNC_DB_PATH)")
	cmd.PersistentFlags().StringP("output", "o", "", "Output format: table, json or yaml")
	cmd.PersistentFlags().Bool("json", false, "Shorthand for --output json")
}
