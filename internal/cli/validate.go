package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/incsync/internal/cli/appctx"
)

var validateCmd = &cobra.Command{
	Use:   "validate [ID...]",
	Short: "Audit increments for desync without writing",
	Long: `Validate compares every increment's tasks.md, spec.md, metadata.json and
the status-line cache and reports each disagreement as a finding. Standing
WIP discipline violations are reported too. Nothing is written.

Exits 1 when any finding is CRITICAL or HIGH.

Examples:
  incsync validate                 # Audit every increment
  incsync validate 0007-checkout   # Audit one increment
  incsync validate --json          # Machine-readable findings
`,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runValidate),
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(app *appctx.App, cmd *cobra.Command, args []string) error {
	sum, err := app.Engine.Validate(args)
	if err != nil {
		return err
	}

	err = app.Out.Render(sum, func() error {
		if err := renderFindings(app.Out, sum.Findings); err != nil {
			return err
		}
		app.Out.Printf("\n%d audited: %d in sync, %d desynced, %d skipped\n", sum.Total, sum.Synced, sum.Desynced, sum.Skipped)
		return nil
	})
	if err != nil {
		return err
	}
	printErrors(cmd.ErrOrStderr(), sum.Errors)

	if sum.Failed() {
		return exitError(1, fmt.Errorf("validation failed: %s, %s",
			plural(blockingCount(sum.Findings), "blocking finding"), plural(len(sum.Errors), "error")))
	}
	return nil
}
