package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lherron/incsync/internal/cli/appctx"
	"github.com/lherron/incsync/internal/config"
	"github.com/lherron/incsync/internal/engine"
	"github.com/lherron/incsync/internal/ledger"
	"github.com/lherron/incsync/internal/watch"
)

// WatchOptions configures a long-running watch loop.
type WatchOptions struct {
	Root     string
	DBPath   string
	Debounce time.Duration
	LogFile  string
	// Stderr receives log output when LogFile is empty
	Stderr io.Writer
}

// ServeWatch loads config for opts.Root and syncs every increment whose
// documents change until ctx is cancelled. It backs incsyncd.
func ServeWatch(ctx context.Context, opts WatchOptions) error {
	cfg, err := config.LoadAt(opts.Root)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}

	led, err := appctx.OpenLedger(cfg.DBPath)
	if err != nil {
		return err
	}
	defer led.Close()

	return watchLoop(ctx, cfg, led, opts)
}

// watchLoop runs one full sync, then re-syncs increments as their files
// settle.
func watchLoop(ctx context.Context, cfg *config.Config, led *ledger.Store, opts WatchOptions) error {
	logger, closeLog := watchLogger(opts, cfg.LogLevel)
	defer closeLog()

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = time.Duration(cfg.WatchDebounceMS) * time.Millisecond
	}

	eng := engine.New(engine.Context{
		Root:     cfg.ProjectRoot,
		StateDir: cfg.StateDir,
		Config:   cfg,
		Logger:   logger,
	}, led)

	w, err := watch.New(eng.Workspace().Layout(), debounce, logger)
	if err != nil {
		return err
	}

	logger.Printf("watching %s (debounce %s)", eng.Workspace().Layout().Increments(), debounce)
	syncAndLog(eng, logger, nil)

	return w.Run(ctx, func(ids []string) {
		syncAndLog(eng, logger, ids)
	})
}

func syncAndLog(eng *engine.Engine, logger *log.Logger, ids []string) {
	sum, err := eng.SyncAll(ids)
	if err != nil {
		logger.Printf("sync failed: %v", err)
		return
	}
	for _, err := range sum.Errors {
		logger.Printf("error: %v", err)
	}
	for _, r := range sum.Results {
		if r.Report == nil {
			continue
		}
		for _, f := range r.Report.Findings {
			if f.Severity.Blocking() {
				logger.Printf("%s: [%s] %s %s: %s", r.IncrementID, f.Severity, f.Kind, f.Field, f.Impact)
			}
		}
	}
	run := sum.Run
	logger.Printf("sync: %d synced, %d desynced, %d skipped, %d errors, %d files written",
		run.Synced, run.Desynced, run.Skipped, run.Errors, run.FilesWritten)
}

// watchLogger writes to a rotating file when opts.LogFile is set
func watchLogger(opts WatchOptions, level string) (*log.Logger, func()) {
	if opts.LogFile == "" {
		w := opts.Stderr
		if w == nil {
			w = os.Stderr
		}
		return appctx.NewLogger(w, level), func() {}
	}
	lj := &lumberjack.Logger{
		Filename:   opts.LogFile,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	return appctx.NewLogger(lj, level), func() { lj.Close() }
}
