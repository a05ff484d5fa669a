package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/incsync/internal/cli/appctx"
	"github.com/lherron/incsync/internal/engine"
)

var syncCmd = &cobra.Command{
	Use:   "sync [ID...]",
	Short: "Propagate task completion into spec.md and refresh the status cache",
	Long: `Sync reads each increment's tasks.md, checks the acceptance criteria in
spec.md whose linked tasks are all complete, updates progress counters and
regenerates status-line.json. An AC that is checked while a linked task is
still open is reported as a conflict and left as is.

Examples:
  incsync sync 0007-checkout   # Sync one increment
  incsync sync --all           # Sync every increment
`,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runSync),
}

var syncAll bool

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "Sync every increment")
}

func runSync(app *appctx.App, cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !syncAll {
		return exitError(2, fmt.Errorf("name an increment or pass --all"))
	}

	sum, err := app.Engine.SyncAll(args)
	if err != nil {
		return err
	}

	err = app.Out.Render(sum, func() error {
		return renderSyncTable(app, sum)
	})
	if err != nil {
		return err
	}
	printErrors(cmd.ErrOrStderr(), sum.Errors)

	if sum.Failed() {
		return exitError(1, fmt.Errorf("sync finished with %s and %s", plural(len(sum.Errors), "error"), plural(sum.Run.Desynced, "desynced increment")))
	}
	return nil
}

func renderSyncTable(app *appctx.App, sum *engine.SyncSummary) error {
	rows := make([][]string, 0, len(sum.Results))
	for _, r := range sum.Results {
		state := "in sync"
		switch {
		case r.Skipped:
			state = "skipped"
		case r.Report != nil && r.Report.Desynced():
			state = "desynced"
		}
		updates, conflicts := 0, 0
		if r.Propagation != nil {
			updates, conflicts = len(r.Propagation.Updates), len(r.Propagation.Conflicts)
		}
		rows = append(rows, []string{
			r.IncrementID, state, fmt.Sprint(updates), fmt.Sprint(conflicts), fmt.Sprint(len(r.Written)),
		})
	}
	if err := app.Out.RenderTable([]string{"INCREMENT", "STATE", "UPDATES", "CONFLICTS", "WRITTEN"}, rows); err != nil {
		return err
	}

	for _, r := range sum.Results {
		if r.Report == nil || len(r.Report.Findings) == 0 {
			continue
		}
		app.Out.Println()
		if err := renderFindings(app.Out, r.Report.Findings); err != nil {
			return err
		}
	}
	app.Out.Printf("\n%d synced, %d desynced, %d skipped, %s written\n",
		sum.Run.Synced, sum.Run.Desynced, sum.Run.Skipped, plural(sum.Run.FilesWritten, "file"))
	return nil
}
