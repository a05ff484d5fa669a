package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/incsync/internal/cli/appctx"
	"github.com/lherron/incsync/internal/engine"
	"github.com/lherron/incsync/internal/external"
)

var repairCmd = &cobra.Command{
	Use:   "repair [ID...]",
	Short: "Show or apply the fixes that bring increments back in sync",
	Long: `Repair plans the same propagation as sync plus a spec.md status fix taken
from metadata.json, and prints the result as a unified diff. Nothing is
written unless --apply is given. Running it again after --apply prints no
changes.

With --external, tracker state recorded in each increment's external.yaml
is applied as well; the tracker wins for status and priority.

Examples:
  incsync repair 0007-checkout            # Dry run for one increment
  incsync repair --all --apply            # Fix everything
  incsync repair --all --external --apply # Also apply tracker state
`,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runRepair),
}

var (
	repairAll      bool
	repairApply    bool
	repairExternal bool
	repairPlatform string
)

func init() {
	rootCmd.AddCommand(repairCmd)
	repairCmd.Flags().BoolVar(&repairAll, "all", false, "Repair every increment")
	repairCmd.Flags().BoolVar(&repairApply, "apply", false, "Write the changes (default is a dry run)")
	repairCmd.Flags().BoolVar(&repairExternal, "external", false, "Apply tracker state from external.yaml")
	repairCmd.Flags().StringVar(&repairPlatform, "platform", "", "Platform for external.yaml files that do not name one (default from config)")
}

func runRepair(app *appctx.App, cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !repairAll {
		return exitError(2, fmt.Errorf("name an increment or pass --all"))
	}

	opts := engine.RepairOptions{Apply: repairApply}
	if repairExternal {
		platform := repairPlatform
		if platform == "" {
			platform = app.Config.DefaultPlatform
		}
		var p external.Platform
		if platform != "" {
			var err error
			if p, err = external.ParsePlatform(platform); err != nil {
				return exitError(2, err)
			}
		}
		opts.Client = external.NewFileClient(app.Engine.Workspace().Layout(), p)
	}

	sum, err := app.Engine.RepairAll(cmd.Context(), args, opts)
	if err != nil {
		return err
	}

	err = app.Out.Render(sum, func() error {
		return renderRepair(app, sum)
	})
	if err != nil {
		return err
	}
	printErrors(cmd.ErrOrStderr(), sum.Errors)

	if len(sum.Errors) > 0 {
		return exitError(1, fmt.Errorf("repair finished with %s", plural(len(sum.Errors), "error")))
	}
	return nil
}

func renderRepair(app *appctx.App, sum *engine.RepairSummary) error {
	changed := 0
	for _, plan := range sum.Plans {
		if plan.Empty() {
			continue
		}
		changed++
		for _, c := range plan.Changes {
			app.Out.Printf("%s", c.Diff)
		}
		for _, c := range plan.Conflicts {
			app.Out.Printf("conflict (left for review): %s\n", c.Message())
		}
		if len(plan.Resolutions) > 0 {
			app.Out.Printf("%s: %s from the tracker\n", plan.IncrementID, plural(len(plan.Resolutions), "resolution"))
		}
	}

	switch {
	case changed == 0:
		app.Out.Println(app.Out.OK("Everything is in sync."))
	case repairApply:
		app.Out.Printf("\nRepaired %s.\n", plural(changed, "increment"))
	default:
		app.Out.Printf("\n%s would change. Re-run with --apply to write.\n", plural(changed, "increment"))
	}
	return nil
}
