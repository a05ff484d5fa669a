package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lherron/incsync/internal/cli/appctx"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-sync increments whenever their documents change",
	Long: `Watch runs a full sync, then watches every increment directory and
re-syncs an increment once its spec.md, tasks.md or metadata.json has been
quiet for the debounce interval. Stop it with Ctrl-C.

Examples:
  incsync watch
  incsync watch --debounce 1s --log-file .specweave/logs/watch.log
`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runWatch),
}

var watchOpts WatchOptions

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchOpts.Debounce, "debounce", 0, "Quiet period before syncing (default from config, 500ms)")
	watchCmd.Flags().StringVar(&watchOpts.LogFile, "log-file", "", "Write logs to a rotating file instead of stderr")
}

func runWatch(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := watchOpts
	opts.Stderr = cmd.ErrOrStderr()
	return watchLoop(ctx, app.Config, app.Ledger, opts)
}
