package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/incsync/internal/cli/appctx"
	"github.com/lherron/incsync/internal/snapshot"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the cached progress of the active increment",
	Long: `Status reads status-line.json and nothing else, so it is cheap enough
for a shell prompt or editor status bar. Run sync to refresh the cache.

Examples:
  incsync status          # [0007-checkout] ████░░░░ 4/8 (50%)
  incsync status --json   # The cached snapshot
`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.ReadOnly(), runStatus),
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type statusOutput struct {
	Active     bool              `json:"active" yaml:"active"`
	Stale      bool              `json:"stale" yaml:"stale"`
	Current    *snapshot.Current `json:"current" yaml:"current"`
	OpenCount  int               `json:"openCount" yaml:"openCount"`
	LastUpdate *time.Time        `json:"lastUpdate,omitempty" yaml:"lastUpdate,omitempty"`
	Line       string            `json:"line" yaml:"line"`
}

func runStatus(app *appctx.App, cmd *cobra.Command, args []string) error {
	res, err := app.Engine.Status()
	if err != nil {
		return err
	}

	out := statusOutput{
		Active:  !res.NoActive,
		Stale:   res.Stale,
		Current: res.Progress(),
		Line:    snapshot.FormatStatusLine(res),
	}
	if res.Snapshot != nil {
		out.OpenCount = res.Snapshot.OpenCount
		out.LastUpdate = &res.Snapshot.LastUpdate
	}

	return app.Out.Render(out, func() error {
		app.Out.Println(out.Line)
		return nil
	})
}
