package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/incsync/internal/cli/appctx"
	"github.com/lherron/incsync/internal/lifecycle"
)

type lifecycleSpec struct {
	action  lifecycle.Action
	short   string
	long    string
	reason  bool
	confirm bool
}

var lifecycleSpecs = []lifecycleSpec{
	{
		action: lifecycle.ActionStart,
		short:  "Move a planning or backlog increment to active",
		long: `Start activates an increment after checking WIP discipline. Exceeding the
soft limit prints a warning; exceeding the hard cap is refused unless the
increment or an already active one is an interrupt type (hotfix, bug).`,
	},
	{
		action: lifecycle.ActionPause,
		short:  "Pause an active increment",
		reason: true,
	},
	{
		action: lifecycle.ActionResume,
		short:  "Resume a paused increment",
		long:   `Resume is checked against WIP discipline like start.`,
	},
	{
		action: lifecycle.ActionComplete,
		short:  "Complete an increment whose tasks and acceptance criteria are all done",
		long: `Complete is refused while any task in tasks.md is open or any acceptance
criterion in spec.md would stay unchecked after propagation.`,
	},
	{
		action: lifecycle.ActionAbandon,
		short:  "Abandon an increment",
		reason: true,
	},
	{
		action:  lifecycle.ActionReopen,
		short:   "Reopen a completed or abandoned increment",
		long:    `Reopening a completed increment needs --yes.`,
		reason:  true,
		confirm: true,
	},
	{
		action: lifecycle.ActionBacklog,
		short:  "Move an increment to the backlog",
		reason: true,
	},
}

func init() {
	for _, spec := range lifecycleSpecs {
		rootCmd.AddCommand(newLifecycleCmd(spec))
	}
}

func newLifecycleCmd(spec lifecycleSpec) *cobra.Command {
	var (
		reason    string
		confirmed bool
		dryRun    bool
	)
	cmd := &cobra.Command{
		Use:   string(spec.action) + " <ID>",
		Short: spec.short,
		Long:  spec.long,
		Args:  cobra.ExactArgs(1),
		RunE: appctx.WithApp(appctx.DefaultOptions(), func(app *appctx.App, cmd *cobra.Command, args []string) error {
			req := lifecycle.Request{ID: args[0], Action: spec.action, Reason: reason, Confirmed: confirmed}
			return runLifecycle(app, cmd, req, dryRun)
		}),
	}
	if spec.reason {
		cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded in metadata.json and the ledger")
	}
	if spec.confirm {
		cmd.Flags().BoolVarP(&confirmed, "yes", "y", false, "Confirm the change")
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Check the rules without changing anything")
	return cmd
}

func runLifecycle(app *appctx.App, cmd *cobra.Command, req lifecycle.Request, dryRun bool) error {
	var (
		d   *lifecycle.Decision
		err error
	)
	if dryRun {
		d, err = app.Engine.Governor().Evaluate(req)
	} else {
		d, err = app.Engine.Transition(req)
	}
	if err != nil {
		return err
	}

	err = app.Out.Render(d, func() error {
		switch {
		case d.Applied:
			app.Out.Println(app.Out.OK(fmt.Sprintf("%s: %s -> %s", d.IncrementID, d.From, d.To)))
		case d.Allowed:
			app.Out.Printf("%s: %s -> %s is allowed\n", d.IncrementID, d.From, d.To)
		}
		if len(d.Warnings) > 0 {
			fmt.Fprint(cmd.ErrOrStderr(), "warning:\n"+violationLines(d.Warnings))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !d.Allowed {
		fmt.Fprint(cmd.ErrOrStderr(), violationLines(d.Violations))
		return exitError(1, fmt.Errorf("cannot %s %s: %s", req.Action, req.ID, plural(len(d.Violations), "violation")))
	}
	return nil
}
