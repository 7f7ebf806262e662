package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"dsv/pkg/cache"
	"dsv/pkg/config"
	"dsv/pkg/logging"
	"dsv/pkg/reconciler"
	"dsv/pkg/scheduler"
	"dsv/pkg/sizecache"
	"dsv/pkg/snapshot"
	"dsv/pkg/tui"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"
)

// restartPause is how long to wait before restarting the dashboard
// after an unexpected failure. The monitor is meant to run unattended
// for months; a transient fault should not end the session.
const restartPause = 30 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// 1. Parse command line flags.
	fs := flag.NewFlagSet("dsv", flag.ContinueOnError)
	verbose := fs.Bool("verbose", false, "enable debug logging")
	version := fs.Bool("version", false, "print build information and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *version {
		fmt.Println(config.GetBuildInfo())
		return nil
	}

	// 2. Resolve the cache directory layout.
	cfg, err := config.Init()
	if err != nil {
		return fmt.Errorf("error initializing config: %w", err)
	}

	// 3. Route slog to the monitor log file; stdout belongs to the TUI.
	closeLog, err := logging.Setup(cfg.GetLogPath(), *verbose)
	if err != nil {
		return fmt.Errorf("error setting up logging: %w", err)
	}
	defer closeLog()

	// 4. Single-instance lock over the cache directory.
	unlock, err := cache.Acquire(cfg.GetCacheDir())
	if err != nil {
		if errors.Is(err, cache.ErrAlreadyRunning) {
			return err
		}
		return fmt.Errorf("error acquiring cache lock: %w", err)
	}
	defer unlock()

	slog.Info("starting disk monitor",
		"build", config.GetBuildInfo(),
		"cache_dir", cfg.GetCacheDir(),
		"folder_ttl", cfg.GetFolderCacheTTL(),
		"disk_ttl", cfg.GetDiskCacheTTL(),
		"reconcile_interval", cfg.GetReconcileInterval(),
		"pid", os.Getpid())

	// 5. Run the dashboard, restarting after unexpected failures.
	for {
		err := runOnce(cfg)
		if err == nil {
			slog.Info("monitor exited cleanly")
			return nil
		}
		slog.Error("monitor exited unexpectedly, restarting",
			"err", err, "pause", restartPause)
		time.Sleep(restartPause)
	}
}

// runOnce assembles the managers and runs one dashboard session: the
// reconciler loop in the background and the TUI in the foreground.
// A clean quit from the TUI returns nil.
func runOnce(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := snapshot.NewStore(cfg)
	calc := sizecache.NewCalculator(cfg)
	builder := snapshot.NewBuilder(cfg, calc)
	sched := scheduler.New(cfg, store, builder)
	rec := reconciler.New(cfg, store)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return rec.Run(gctx)
	})

	g.Go(func() error {
		// Stopping the TUI stops the reconciler too.
		defer cancel()
		_, err := tea.NewProgram(tui.New(gctx, cfg, sched, store),
			tea.WithAltScreen(), tea.WithContext(gctx)).Run()
		return err
	})

	err := g.Wait()

	// Let in-flight snapshot rebuilds persist before returning; they
	// survive as warm cache for the next session.
	sched.Wait()

	return err
}
