// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, ledger opening and engine construction
// to reduce boilerplate across commands.
package appctx

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/lherron/incsync/internal/config"
	"github.com/lherron/incsync/internal/db"
	"github.com/lherron/incsync/internal/engine"
	"github.com/lherron/incsync/internal/ledger"
	"github.com/lherron/incsync/internal/render"
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration
	Config *config.Config

	// Ledger is the opened audit ledger (nil if NeedsLedger is false)
	Ledger *ledger.Store

	// Engine runs the consistency passes for the project root
	Engine *engine.Engine

	// Logger writes diagnostics to stderr
	Logger *log.Logger

	// Out renders command output in the selected format
	Out *render.Renderer
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.Ledger != nil {
		a.Ledger.Close()
		a.Ledger = nil
	}
}

// Options configures the bootstrap behavior.
type Options struct {
	// NeedsLedger indicates whether to open the ledger database.
	NeedsLedger bool
}

// DefaultOptions returns default options (ledger required).
func DefaultOptions() Options {
	return Options{NeedsLedger: true}
}

// ReadOnly returns options for commands that only read increment files.
func ReadOnly() Options {
	return Options{NeedsLedger: false}
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// The ledger is closed automatically when the wrapped function returns.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	app := &App{}

	cfg, err := config.LoadAt(flagValue(cmd, "root"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	if dbPath := flagValue(cmd, "db"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if output := flagValue(cmd, "output"); output != "" {
		cfg.Output = output
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		cfg.Output = string(render.FormatJSON)
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.LogLevel = "debug"
	}

	format, err := render.ParseFormat(cfg.Output)
	if err != nil {
		return nil, err
	}
	app.Out = render.NewRenderer(cmd.OutOrStdout(), render.Options{
		Format: format,
		Color:  colorEnabled(cmd.OutOrStdout()),
	})
	app.Logger = NewLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	if opts.NeedsLedger {
		led, err := OpenLedger(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		app.Ledger = led
	}

	app.Engine = engine.New(engine.Context{
		Root:     cfg.ProjectRoot,
		StateDir: cfg.StateDir,
		Config:   cfg,
		Logger:   app.Logger,
	}, app.Ledger)

	return app, nil
}

// OpenLedger opens the ledger at path. A new ledger is migrated on the
// spot; an existing one with pending migrations is refused until
// 'incsyncadm migrate' runs.
func OpenLedger(path string) (*ledger.Store, error) {
	database, err := db.OpenOrInit(path)
	if err != nil {
		return nil, err
	}
	return ledger.New(database), nil
}

// NewLogger returns a logger for level. "quiet" and "error" discard the
// engine's progress messages.
func NewLogger(w io.Writer, level string) *log.Logger {
	switch level {
	case "quiet", "error":
		w = io.Discard
	}
	return log.New(w, "incsync: ", log.LstdFlags)
}

func flagValue(cmd *cobra.Command, name string) string {
	if f := cmd.Flag(name); f != nil {
		return f.Value.String()
	}
	return ""
}

func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
