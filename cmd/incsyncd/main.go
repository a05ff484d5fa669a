package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lherron/incsync/internal/cli"
)

func main() {
	root := flag.String("root", "", "Project root (defaults to INCSYNC_PROJECT_ROOT or discovery)")
	dbPath := flag.String("db", "", "Ledger path override (defaults to config)")
	debounce := flag.Duration("debounce", 0, "Quiet period before a changed increment is synced (defaults to config)")
	logFile := flag.String("log-file", os.Getenv("INCSYNC_WATCH_LOG"), "Write rotating logs to this file instead of stderr")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := cli.WatchOptions{
		Root:     *root,
		DBPath:   *dbPath,
		Debounce: *debounce,
		LogFile:  *logFile,
		Stderr:   os.Stderr,
	}

	if err := cli.ServeWatch(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
