package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/incsync/internal/cli/appctx"
)

var historyAdmCmd = &cobra.Command{
	Use:   "history [ID]",
	Short: "Show what the engine recorded in the ledger",
	Long: `History reads the audit ledger. The ledger is never consulted to make a
decision; it only records what was decided.

Kinds:
  events        every ledger event, newest first (default)
  transitions   lifecycle changes, oldest first
  runs          validate, sync and repair passes, newest first
  resolutions   external-wins resolutions for one increment

Examples:
  incsyncadm history
  incsyncadm history 0007-checkout --kind transitions
  incsyncadm history --kind runs --limit 10
`,
	Args: cobra.MaximumNArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runHistoryAdm),
}

var (
	historyKind  string
	historyLimit int
)

func init() {
	rootAdmCmd.AddCommand(historyAdmCmd)
	historyAdmCmd.Flags().StringVar(&historyKind, "kind", "events", "events, transitions, runs or resolutions")
	historyAdmCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum number of rows")
}

func runHistoryAdm(app *appctx.App, cmd *cobra.Command, args []string) error {
	var id string
	if len(args) > 0 {
		id = args[0]
	}
	led := app.Ledger

	switch historyKind {
	case "events":
		events, err := led.Events(id, historyLimit)
		if err != nil {
			return err
		}
		return app.Out.Render(events, func() error {
			rows := make([][]string, 0, len(events))
			for _, e := range events {
				payload := ""
				if e.Payload != nil {
					payload = *e.Payload
				}
				rows = append(rows, []string{fmt.Sprint(e.ID), stamp(e.Timestamp), orDash(e.IncrementID), e.EventType, payload})
			}
			return app.Out.RenderTable([]string{"ID", "TIME", "INCREMENT", "EVENT", "PAYLOAD"}, rows)
		})

	case "transitions":
		transitions, err := led.Transitions.ListForIncrement(id, historyLimit)
		if err != nil {
			return err
		}
		return app.Out.Render(transitions, func() error {
			rows := make([][]string, 0, len(transitions))
			for _, t := range transitions {
				rows = append(rows, []string{
					stamp(t.Timestamp), t.IncrementID, t.Action, string(t.From), string(t.To), orDash(t.Reason), strings.Join(t.Warnings, "; "),
				})
			}
			return app.Out.RenderTable([]string{"TIME", "INCREMENT", "ACTION", "FROM", "TO", "REASON", "WARNINGS"}, rows)
		})

	case "runs":
		runs, err := led.Runs.Recent(historyLimit)
		if err != nil {
			return err
		}
		return app.Out.Render(runs, func() error {
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					fmt.Sprint(r.ID), stamp(r.FinishedAt), r.Command, fmt.Sprint(r.Total), fmt.Sprint(r.Synced),
					fmt.Sprint(r.Desynced), fmt.Sprint(r.Skipped), fmt.Sprint(r.Errors), fmt.Sprint(r.FilesWritten),
				})
			}
			return app.Out.RenderTable([]string{"ID", "FINISHED", "COMMAND", "TOTAL", "SYNCED", "DESYNCED", "SKIPPED", "ERRORS", "WRITTEN"}, rows)
		})

	case "resolutions":
		if id == "" {
			return exitError(2, fmt.Errorf("resolutions history needs an increment id"))
		}
		resolutions, err := led.Resolutions.ListForIncrement(id)
		if err != nil {
			return err
		}
		return app.Out.Render(resolutions, func() error {
			rows := make([][]string, 0, len(resolutions))
			for _, r := range resolutions {
				rows = append(rows, []string{stamp(r.Timestamp), string(r.Platform), r.Field, r.LocalValue, r.ExternalValue, r.ResolvedValue})
			}
			return app.Out.RenderTable([]string{"TIME", "PLATFORM", "FIELD", "LOCAL", "EXTERNAL", "RESOLVED"}, rows)
		})
	}

	return exitError(2, fmt.Errorf("unknown history kind %q", historyKind))
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
