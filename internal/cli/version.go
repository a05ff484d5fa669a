package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Displays version, commit, and build date information.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printVersion(cmd.OutOrStdout(), "incsync", wantsJSON(cmd), []string{
			"validate", "sync", "repair", "status", "new",
			"start", "pause", "resume", "complete", "abandon", "reopen", "backlog",
			"resolve", "discipline", "watch", "version",
		})
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// wantsJSON reads the global output flags for commands that run without
// the app context
func wantsJSON(cmd *cobra.Command) bool {
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return true
	}
	output, _ := cmd.Flags().GetString("output")
	return output == "json"
}

func printVersion(w io.Writer, binary string, asJSON bool, commands []string) error {
	if asJSON {
		output := map[string]interface{}{
			"binary":             binary,
			"version":            Version,
			"commit":             GitCommit,
			"build_date":         BuildDate,
			"supported_commands": commands,
			"supported_formats":  []string{"table", "json", "yaml"},
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(output)
	}

	fmt.Fprintf(w, "%s version %s\n", binary, Version)
	fmt.Fprintf(w, "  commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  built:  %s\n", BuildDate)
	return nil
}
