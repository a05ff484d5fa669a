package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/incsync/internal/external"
)

var selfcheckAdmCmd = &cobra.Command{
	Use:   "selfcheck [file...]",
	Short: "Verify that external status always wins",
	Long: `Selfcheck exercises the resolver against every mapped status of every
platform and fails if a local value ever wins. Each file argument is also
scanned for source patterns that would let a local status override an
external one.`,
	RunE: runSelfcheckAdm,
}

func init() {
	rootAdmCmd.AddCommand(selfcheckAdmCmd)
}

func runSelfcheckAdm(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := false

	resolver := external.NewResolver(log.New(io.Discard, "", 0), time.Now)
	if err := external.VerifyPolicy(resolver); err != nil {
		fmt.Fprintf(out, "✗ resolver: %v\n", err)
		failed = true
	} else {
		fmt.Fprintf(out, "✓ resolver: external wins for %d platform(s)\n", len(external.PlatformNames()))
	}

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		violations := external.SelfCheck(string(data))
		if len(violations) == 0 {
			fmt.Fprintf(out, "✓ %s\n", path)
			continue
		}
		failed = true
		fmt.Fprintf(out, "✗ %s\n", path)
		for _, v := range violations {
			fmt.Fprintf(out, "    %s\n", v)
		}
	}

	if failed {
		return exitError(1, fmt.Errorf("external-wins self-check failed"))
	}
	return nil
}
