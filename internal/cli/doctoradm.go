package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/incsync/internal/db"
	"github.com/lherron/incsync/internal/paths"
	"github.com/lherron/incsync/internal/render"
	"github.com/lherron/incsync/internal/snapshot"
)

var doctorAdmCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check ledger health and workspace layout",
	Long: `Doctor checks the ledger database, its schema and sequences, and the
increment workspace it audits. --fix repairs sqlite_sequence drift.`,
	Args: cobra.NoArgs,
	RunE: runDoctorAdm,
}

var (
	doctorAdmFix     bool
	doctorAdmVerbose bool
)

type checkResult struct {
	Name    string   `json:"name"`
	Status  string   `json:"status"` // ok, warning or error
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
}

type doctorReport struct {
	Version       string        `json:"version"`
	ProjectRoot   string        `json:"project_root"`
	DBPath        string        `json:"db_path"`
	Checks        []checkResult `json:"checks"`
	Fixes         []string      `json:"fixes,omitempty"`
	Warnings      int           `json:"warnings"`
	Errors        int           `json:"errors"`
	OverallStatus string        `json:"overall_status"`
}

func init() {
	rootAdmCmd.AddCommand(doctorAdmCmd)
	doctorAdmCmd.Flags().BoolVar(&doctorAdmFix, "fix", false, "Repair sequence drift")
	doctorAdmCmd.Flags().BoolVar(&doctorAdmVerbose, "verbose", false, "Show check details")
}

func runDoctorAdm(cmd *cobra.Command, args []string) error {
	cfg, err := adminConfig(cmd)
	if err != nil {
		return exitError(1, err)
	}

	report := &doctorReport{
		Version:     Version,
		ProjectRoot: cfg.ProjectRoot,
		DBPath:      cfg.DBPath,
	}
	layout := paths.NewLayout(cfg.ProjectRoot, cfg.StateDir)

	report.Checks = append(report.Checks, checkLedgerFile(cfg.DBPath))
	var database *db.DB
	if _, statErr := os.Stat(cfg.DBPath); statErr == nil {
		database, err = db.Open(cfg.DBPath)
		if err != nil {
			report.Checks = append(report.Checks, checkResult{
				Name:    "ledger_open",
				Status:  "error",
				Message: fmt.Sprintf("Failed to open ledger: %v", err),
			})
		} else {
			defer database.Close()
			report.Checks = append(report.Checks, checkLedgerHealth(database)...)
			report.Checks = append(report.Checks, checkMigrations(database))
			report.Checks = append(report.Checks, checkSequenceDrift(database))
		}
	}
	report.Checks = append(report.Checks, checkWorkspace(layout)...)

	if doctorAdmFix && database != nil {
		report.Fixes = applyFixes(database)
	}
	report.tally()

	if wantsJSON(cmd) {
		out := render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: render.FormatJSON})
		if err := out.RenderJSON(report); err != nil {
			return err
		}
	} else {
		printDoctorReport(cmd.OutOrStdout(), report, doctorAdmVerbose)
	}

	if report.Errors > 0 {
		return exitError(1, fmt.Errorf("doctor found %s", plural(report.Errors, "error")))
	}
	return nil
}

func (r *doctorReport) tally() {
	r.Warnings, r.Errors = 0, 0
	for _, c := range r.Checks {
		switch c.Status {
		case "warning":
			r.Warnings++
		case "error":
			r.Errors++
		}
	}
	switch {
	case r.Errors > 0:
		r.OverallStatus = "error"
	case r.Warnings > 0:
		r.OverallStatus = "warning"
	default:
		r.OverallStatus = "ok"
	}
}

func checkLedgerFile(path string) checkResult {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return checkResult{
			Name:    "ledger_file",
			Status:  "warning",
			Message: "Ledger does not exist yet; the first incsync command creates it",
		}
	}
	if err != nil {
		return checkResult{Name: "ledger_file", Status: "error", Message: fmt.Sprintf("Cannot stat ledger: %v", err)}
	}
	return checkResult{
		Name:    "ledger_file",
		Status:  "ok",
		Message: fmt.Sprintf("Ledger exists (%.1f KB)", float64(info.Size())/1024),
	}
}

func checkLedgerHealth(database *db.DB) []checkResult {
	var results []checkResult

	var journal string
	if err := database.QueryRow("PRAGMA journal_mode").Scan(&journal); err != nil {
		results = append(results, checkResult{Name: "wal_mode", Status: "error", Message: fmt.Sprintf("Cannot read journal mode: %v", err)})
	} else if strings.EqualFold(journal, "wal") {
		results = append(results, checkResult{Name: "wal_mode", Status: "ok", Message: "WAL journal mode enabled"})
	} else {
		results = append(results, checkResult{Name: "wal_mode", Status: "warning", Message: fmt.Sprintf("Journal mode is %s, expected wal", journal)})
	}

	var integrity string
	if err := database.QueryRow("PRAGMA integrity_check").Scan(&integrity); err != nil {
		results = append(results, checkResult{Name: "integrity_check", Status: "error", Message: fmt.Sprintf("Integrity check failed to run: %v", err)})
	} else if integrity != "ok" {
		results = append(results, checkResult{Name: "integrity_check", Status: "error", Message: "Integrity check failed", Details: []string{integrity}})
	} else {
		results = append(results, checkResult{Name: "integrity_check", Status: "ok", Message: "Integrity check passed"})
	}

	return results
}

func checkMigrations(database *db.DB) checkResult {
	applied, pending, err := database.MigrationStatus()
	if err != nil {
		return checkResult{Name: "migrations", Status: "error", Message: err.Error()}
	}
	if len(pending) > 0 {
		return checkResult{
			Name:    "migrations",
			Status:  "error",
			Message: fmt.Sprintf("%s pending; run 'incsyncadm migrate'", plural(len(pending), "migration")),
			Details: pending,
		}
	}
	return checkResult{Name: "migrations", Status: "ok", Message: fmt.Sprintf("Schema up to date (%s applied)", plural(len(applied), "migration"))}
}

func checkSequenceDrift(database *db.DB) checkResult {
	drifts, err := db.SequenceDrifts(database, db.DefaultSequenceSpecs())
	if err != nil {
		return checkResult{Name: "sequence_drift", Status: "error", Message: fmt.Sprintf("Failed to read sequences: %v", err)}
	}
	if len(drifts) == 0 {
		return checkResult{Name: "sequence_drift", Status: "ok", Message: "No sqlite_sequence drift"}
	}
	details := make([]string, 0, len(drifts))
	for _, d := range drifts {
		details = append(details, fmt.Sprintf("%s: max id %d, sequence %d", d.Table, d.MaxID, d.SeqValue))
	}
	return checkResult{
		Name:    "sequence_drift",
		Status:  "warning",
		Message: fmt.Sprintf("sqlite_sequence behind max id for %s; run with --fix", plural(len(drifts), "table")),
		Details: details,
	}
}

func checkWorkspace(layout paths.Layout) []checkResult {
	entries, err := os.ReadDir(layout.Increments())
	if os.IsNotExist(err) {
		return []checkResult{{
			Name:    "increments_dir",
			Status:  "error",
			Message: fmt.Sprintf("No increments directory at %s", layout.Increments()),
		}}
	}
	if err != nil {
		return []checkResult{{Name: "increments_dir", Status: "error", Message: err.Error()}}
	}

	results := []checkResult{}
	bySeq := make(map[int][]string)
	var ids, stray []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		seq, ok := paths.Sequence(e.Name())
		if !ok {
			stray = append(stray, e.Name())
			continue
		}
		ids = append(ids, e.Name())
		bySeq[seq] = append(bySeq[seq], e.Name())
	}
	results = append(results, checkResult{
		Name:    "increments_dir",
		Status:  "ok",
		Message: fmt.Sprintf("%s in %s", plural(len(ids), "increment"), layout.Rel(layout.Increments())),
	})
	if len(stray) > 0 {
		results = append(results, checkResult{
			Name:    "stray_dirs",
			Status:  "warning",
			Message: fmt.Sprintf("%d director(ies) without an NNNN- prefix are ignored", len(stray)),
			Details: stray,
		})
	}

	var dupes []string
	for seq, names := range bySeq {
		if len(names) > 1 {
			sort.Strings(names)
			dupes = append(dupes, fmt.Sprintf("%04d: %s", seq, strings.Join(names, ", ")))
		}
	}
	if len(dupes) > 0 {
		sort.Strings(dupes)
		results = append(results, checkResult{
			Name:    "duplicate_sequence",
			Status:  "warning",
			Message: fmt.Sprintf("%s share a sequence number", plural(len(dupes), "increment group")),
			Details: dupes,
		})
	}

	results = append(results, checkSnapshot(layout))
	return results
}

func checkSnapshot(layout paths.Layout) checkResult {
	mgr := snapshot.NewManager(layout, log.New(io.Discard, "", 0), time.Now)
	if _, err := os.Stat(mgr.Path()); os.IsNotExist(err) {
		return checkResult{Name: "snapshot", Status: "ok", Message: "No status snapshot yet"}
	}
	res := mgr.Read()
	if res.Snapshot == nil {
		return checkResult{
			Name:    "snapshot",
			Status:  "warning",
			Message: "Status snapshot is empty or corrupt; run 'incsync sync'",
		}
	}
	stale, err := mgr.IsStale(res.Snapshot)
	if err != nil {
		return checkResult{Name: "snapshot", Status: "error", Message: err.Error()}
	}
	if stale {
		return checkResult{
			Name:    "snapshot",
			Status:  "warning",
			Message: "Status snapshot is older than its sources; run 'incsync sync'",
		}
	}
	return checkResult{Name: "snapshot", Status: "ok", Message: "Status snapshot is fresh"}
}

func applyFixes(database *db.DB) []string {
	drifts, err := db.FixSequenceDrifts(database, db.DefaultSequenceSpecs())
	if err != nil {
		return []string{fmt.Sprintf("Sequence repair failed: %v", err)}
	}
	if len(drifts) == 0 {
		return []string{"No sqlite_sequence drift detected"}
	}
	return []string{fmt.Sprintf("Fixed sqlite_sequence drift for %s", plural(len(drifts), "table"))}
}

func printDoctorReport(w io.Writer, report *doctorReport, verbose bool) {
	fmt.Fprintf(w, "incsyncadm doctor %s\n\n", report.Version)
	fmt.Fprintf(w, "Project: %s\n", report.ProjectRoot)
	fmt.Fprintf(w, "Ledger:  %s\n\n", report.DBPath)

	for _, check := range report.Checks {
		icon := "✓"
		switch check.Status {
		case "warning":
			icon = "⚠"
		case "error":
			icon = "✗"
		}
		fmt.Fprintf(w, "  %s %s\n", icon, check.Message)
		if verbose {
			for _, detail := range check.Details {
				fmt.Fprintf(w, "      %s\n", detail)
			}
		}
	}

	if len(report.Fixes) > 0 {
		fmt.Fprintln(w, "\n--fix results")
		fmt.Fprintln(w, strings.Join(report.Fixes, "\n"))
	}

	fmt.Fprintln(w)
	switch {
	case report.Errors > 0:
		fmt.Fprintf(w, "Summary: %d error(s), %d warning(s)\n", report.Errors, report.Warnings)
	case report.Warnings > 0:
		fmt.Fprintf(w, "Summary: %d warning(s)\n", report.Warnings)
	default:
		fmt.Fprintln(w, "Summary: All checks passed ✓")
	}
}
