package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/incsync/internal/cli/appctx"
	"github.com/lherron/incsync/internal/engine"
	"github.com/lherron/incsync/internal/external"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <ID>",
	Short: "Apply tracker status and priority to an increment's spec.md",
	Long: `Resolve compares spec.md with the tracker state and lets the tracker win
for status and priority. The tracker state is taken from --status and
--priority when given, otherwise from the increment's external.yaml.

spec.md is rewritten in place, spec-sync-report.md is written next to it
and every resolution is recorded in the ledger.

Examples:
  incsync resolve 0007-checkout --platform jira --status "In Progress"
  incsync resolve 0007-checkout --platform ado --dry-run
`,
	Args: cobra.ExactArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runResolve),
}

var (
	resolvePlatform string
	resolveStatus   string
	resolvePriority string
	resolveDryRun   bool
)

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().StringVar(&resolvePlatform, "platform", "", "Tracker platform: ado, jira or github (default from config)")
	resolveCmd.Flags().StringVar(&resolveStatus, "status", "", "Tracker status, in the tracker's vocabulary")
	resolveCmd.Flags().StringVar(&resolvePriority, "priority", "", "Tracker priority (P0-P3)")
	resolveCmd.Flags().BoolVar(&resolveDryRun, "dry-run", false, "Show the change without writing")
}

func runResolve(app *appctx.App, cmd *cobra.Command, args []string) error {
	platform := resolvePlatform
	if platform == "" {
		platform = app.Config.DefaultPlatform
	}

	var client external.Client
	if resolveStatus != "" {
		p, err := external.ParsePlatform(platform)
		if err != nil {
			return exitError(2, err)
		}
		client = external.StaticClient{State: external.ExternalState{
			Platform: p,
			Status:   resolveStatus,
			Priority: resolvePriority,
		}}
	} else {
		var p external.Platform
		if platform != "" {
			var err error
			if p, err = external.ParsePlatform(platform); err != nil {
				return exitError(2, err)
			}
		}
		client = external.NewFileClient(app.Engine.Workspace().Layout(), p)
	}

	res, err := app.Engine.Resolve(cmd.Context(), args[0], client, resolveDryRun)
	if err != nil {
		return err
	}

	return app.Out.Render(res, func() error {
		return renderResolve(app, res)
	})
}

func renderResolve(app *appctx.App, res *engine.ResolveResult) error {
	if len(res.Resolutions) == 0 {
		app.Out.Println(app.Out.OK(fmt.Sprintf("%s already matches %s.", res.IncrementID, res.Platform)))
		return nil
	}

	rows := make([][]string, 0, len(res.Resolutions))
	for _, r := range res.Resolutions {
		rows = append(rows, []string{r.Field, r.LocalValue, r.ExternalValue, r.ResolvedValue, string(r.Winner)})
	}
	if err := app.Out.RenderTable([]string{"FIELD", "LOCAL", "EXTERNAL", "RESOLVED", "WINNER"}, rows); err != nil {
		return err
	}
	if res.Change != nil {
		app.Out.Printf("\n%s", res.Change.Diff)
	}
	if res.Applied {
		app.Out.Printf("\nApplied %s from %s.\n", plural(len(res.Resolutions), "resolution"), res.Platform)
	} else {
		app.Out.Println("\nDry run: nothing written.")
	}
	return nil
}
