package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lherron/incsync/internal/cli/appctx"
	"github.com/lherron/incsync/internal/domain"
)

var newCmd = &cobra.Command{
	Use:   "new <TITLE...>",
	Short: "Create an increment in planning",
	Long: `New allocates the next NNNN-slug id and scaffolds spec.md, tasks.md and
metadata.json with status planning. Start it with 'incsync start'.

Examples:
  incsync new Dark mode
  incsync new "Fix login redirect" --type hotfix --priority P0
`,
	Args: cobra.MinimumNArgs(1),
	RunE: appctx.WithApp(appctx.ReadOnly(), runNew),
}

var (
	newType     string
	newPriority string
)

func init() {
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().StringVar(&newType, "type", string(domain.IncrementTypeFeature), "Increment type (feature, hotfix, bug, change-request, refactor, experiment, spike)")
	newCmd.Flags().StringVar(&newPriority, "priority", "", "Priority (P0-P3)")
}

func runNew(app *appctx.App, cmd *cobra.Command, args []string) error {
	if err := domain.ValidateIncrementType(newType); err != nil {
		return exitError(2, err)
	}
	if newPriority != "" {
		if err := domain.ValidatePriority(newPriority); err != nil {
			return exitError(2, err)
		}
	}

	title := strings.Join(args, " ")
	m, err := app.Engine.Create(title, domain.IncrementType(newType), newPriority)
	if err != nil {
		return err
	}

	return app.Out.Render(m, func() error {
		app.Out.Println(m.ID)
		fmt.Fprintln(cmd.ErrOrStderr(), newMessage(m.ID))
		return nil
	})
}

// newMessage goes to stderr so stdout carries only the id
func newMessage(id string) string {
	return fmt.Sprintf("Created %s. Run 'incsync start %s' to begin.", id, id)
}
