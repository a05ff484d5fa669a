package cli

import (
	"github.com/spf13/cobra"
)

var versionAdmCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Displays version, commit, and build date information for incsyncadm.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printVersion(cmd.OutOrStdout(), "incsyncadm", wantsJSON(cmd), []string{
			"migrate", "history", "selfcheck", "doctor", "version",
		})
	},
}

func init() {
	rootAdmCmd.AddCommand(versionAdmCmd)
}
