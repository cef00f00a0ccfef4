package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/clanforge/internal/config"
	"github.com/udisondev/clanforge/internal/db"
	"github.com/udisondev/clanforge/internal/scheduler"
	"github.com/udisondev/clanforge/internal/territory"
)

const ConfigPath = "config/warserver.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Configure slog
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	slog.Info("clanforge war server starting")

	// Load config
	cfgPath := ConfigPath
	if p := os.Getenv("CLANFORGE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadWarServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.Info("config loaded", "grace", cfg.WarActivationGrace, "income_interval", cfg.IncomeInterval)

	// Connect to database
	database, err := db.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()
	slog.Info("database connected")

	// Run migrations
	if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// Wire repositories and services
	pool := database.Pool()
	clans := db.NewClanRepository(pool)
	tiles := db.NewTerritoryRepository(pool)
	wars := db.NewWarRepository(pool)
	perks := db.NewPerkRepository(pool)
	activity := db.NewActivityRepository(pool)

	ledger := territory.NewManager(database, clans, tiles, perks, activity)

	incomeJob := &scheduler.IncomeJob{
		Clans:    clans,
		Ledger:   ledger,
		Interval: cfg.IncomeInterval,
	}
	janitor := &scheduler.WarJanitor{
		Wars:     wars,
		Grace:    cfg.WarActivationGrace,
		Interval: cfg.JanitorInterval,
	}

	// Run the scheduled jobs in parallel
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting income job", "interval", cfg.IncomeInterval)
		if err := incomeJob.Run(gctx); err != nil && err != context.Canceled {
			return fmt.Errorf("income job: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("starting war janitor", "interval", cfg.JanitorInterval)
		if err := janitor.Run(gctx); err != nil && err != context.Canceled {
			return fmt.Errorf("war janitor: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("scheduler error: %w", err)
	}
	return nil
}
