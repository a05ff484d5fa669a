package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/incsync/internal/cli/appctx"
	"github.com/lherron/incsync/internal/domain"
	"github.com/lherron/incsync/internal/lifecycle"
)

var disciplineCmd = &cobra.Command{
	Use:   "discipline",
	Short: "Check the active increments against the WIP limits",
	Long: `Discipline reports the active increments and any standing WIP violation:
more active than the hard cap (CRITICAL, unless an interrupt type is active)
or more than the soft limit (a warning).

Exits 1 when the hard cap is exceeded.`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.ReadOnly(), runDiscipline),
}

func init() {
	rootCmd.AddCommand(disciplineCmd)
}

type disciplineOutput struct {
	Active    []string         `json:"active" yaml:"active"`
	Limits    lifecycle.Limits `json:"limits" yaml:"limits"`
	Compliant bool             `json:"compliant" yaml:"compliant"`
	Findings  []domain.Finding `json:"findings" yaml:"findings"`
}

func runDiscipline(app *appctx.App, cmd *cobra.Command, args []string) error {
	gov := app.Engine.Governor()
	metas, err := gov.Active()
	if err != nil {
		return err
	}
	violations, err := gov.CheckAll()
	if err != nil {
		return err
	}
	findings := lifecycle.DisciplineFindings(violations)

	active := make([]string, 0, len(metas))
	for _, m := range metas {
		active = append(active, fmt.Sprintf("%s (%s)", m.ID, m.Type))
	}
	out := disciplineOutput{
		Active:    active,
		Limits:    app.Engine.Limits(),
		Compliant: blockingCount(findings) == 0,
		Findings:  findings,
	}

	err = app.Out.Render(out, func() error {
		limits := out.Limits
		app.Out.Printf("Active: %d (soft limit %d, hard cap %d)\n", len(active), limits.SoftLimit, limits.HardCap)
		for _, id := range active {
			app.Out.Printf("  %s\n", id)
		}
		app.Out.Println()
		return renderFindings(app.Out, findings)
	})
	if err != nil {
		return err
	}

	if !out.Compliant {
		return exitError(1, fmt.Errorf("WIP discipline violated: %s", plural(blockingCount(findings), "blocking finding")))
	}
	return nil
}
