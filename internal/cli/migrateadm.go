package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lherron/incsync/internal/config"
	"github.com/lherron/incsync/internal/db"
	"github.com/lherron/incsync/internal/render"
)

var migrateAdmCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run any pending ledger migrations",
	Long: `Migrate applies any pending SQL migrations to the ledger database.

Migrations are embedded in the binary and tracked via the schema_migrations
table. Each migration file (e.g., 000001_baseline.sql) is applied exactly once.

This command is safe to run multiple times - it only applies migrations that
haven't been applied yet.

Use --dry-run to see which migrations would be applied without running them.
Use --status to show the current migration status.`,
	Args: cobra.NoArgs,
	RunE: runMigrateAdm,
}

var (
	migrateDryRun bool
	migrateStatus bool
)

func init() {
	rootAdmCmd.AddCommand(migrateAdmCmd)

	migrateAdmCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Show which migrations would be applied without running them")
	migrateAdmCmd.Flags().BoolVar(&migrateStatus, "status", false, "Show current migration status")
}

// adminConfig loads config honoring --root and --db, for admin commands
// that open the ledger without the migration guard
func adminConfig(cmd *cobra.Command) (*config.Config, error) {
	root, _ := cmd.Flags().GetString("root")
	cfg, err := config.LoadAt(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath, _ := cmd.Flags().GetString("db"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

type migrationReport struct {
	DBPath  string   `json:"db_path"`
	Applied []string `json:"applied"`
	Pending []string `json:"pending"`
	Ran     []string `json:"ran,omitempty"`
}

func runMigrateAdm(cmd *cobra.Command, args []string) error {
	cfg, err := adminConfig(cmd)
	if err != nil {
		return exitError(1, err)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return exitError(1, err)
	}
	defer database.Close()

	report := &migrationReport{DBPath: cfg.DBPath}
	if !migrateStatus && !migrateDryRun {
		if report.Ran, err = database.MigrateWithInfo(); err != nil {
			return exitError(1, fmt.Errorf("failed to run migrations: %w", err))
		}
	}
	if report.Applied, report.Pending, err = database.MigrationStatus(); err != nil {
		return exitError(1, err)
	}

	out := cmd.OutOrStdout()
	if wantsJSON(cmd) {
		return render.NewRenderer(out, render.Options{Format: render.FormatJSON}).RenderJSON(report)
	}
	switch {
	case migrateStatus:
		printMigrationStatus(out, report)
	case migrateDryRun:
		printPendingMigrations(out, report.Pending)
	case len(report.Ran) == 0:
		fmt.Fprintln(out, "Ledger is up to date. No migrations to apply.")
	default:
		for _, m := range report.Ran {
			fmt.Fprintf(out, "✓ Applied migration: %s\n", m)
		}
		fmt.Fprintf(out, "\nApplied %d migration(s) to %s.\n", len(report.Ran), report.DBPath)
	}
	return nil
}

func printMigrationStatus(out io.Writer, report *migrationReport) {
	fmt.Fprintf(out, "Ledger: %s\n", report.DBPath)
	for _, m := range report.Applied {
		fmt.Fprintf(out, "  ✓ %s\n", m)
	}
	for _, m := range report.Pending {
		fmt.Fprintf(out, "  ○ %s (pending)\n", m)
	}
	if len(report.Applied)+len(report.Pending) == 0 {
		fmt.Fprintln(out, "  no migrations embedded")
	}
}

func printPendingMigrations(out io.Writer, pending []string) {
	if len(pending) == 0 {
		fmt.Fprintln(out, "No pending migrations. Ledger is up to date.")
		return
	}
	fmt.Fprintln(out, "Would apply:")
	for _, m := range pending {
		fmt.Fprintf(out, "  ○ %s\n", m)
	}
}
