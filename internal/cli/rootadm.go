package cli

import (
	"github.com/spf13/cobra"
)

var rootAdmCmd = &cobra.Command{
	Use:   "incsyncadm",
	Short: "Administrative CLI for the incsync ledger",
	Long: `incsyncadm is the administrative companion to incsync. It handles the
ledger lifecycle (migrations, sequence repair), reads the audit history and
checks resolver source for external-wins policy violations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExecuteAdmin runs the admin root command
func ExecuteAdmin() error {
	return rootAdmCmd.Execute()
}

func init() {
	addGlobalFlags(rootAdmCmd)
}
