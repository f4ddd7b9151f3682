package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "nimbus-ads/internal/adapter/http"
	"nimbus-ads/internal/adapter/postgres"
	"nimbus-ads/internal/adapter/usecase"
	"nimbus-ads/internal/allocation"
	"nimbus-ads/internal/bidding"
	"nimbus-ads/internal/config"
	"nimbus-ads/internal/coordinator"
	"nimbus-ads/internal/core/port"
	"nimbus-ads/internal/db"
	"nimbus-ads/internal/ratelimit"
	"nimbus-ads/internal/worker"
)

// main is the entry point of the nimbus-ads service. It loads
// configuration, optionally runs database migrations, wires the
// coordinator and the bid engine, then starts the HTTP server. On
// receiving a termination signal it gracefully shuts down the server and
// drains the outcome batcher.
func main() {
	exitCode := 1
	defer func() {
		if r := recover(); r != nil {
			panic(r)
		} else {
			os.Exit(exitCode)
		}
	}()

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	var logger *slog.Logger
	{
		// Initialise structured logger based on configuration.
		var handler slog.Handler
		level := cfg.Log.SlogLevel()
		switch cfg.Log.SlogFormat() {
		case "json":
			handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
		default:
			handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
		}
		logger = slog.New(handler)
	}

	// Optionally run migrations if configured. We use the Psql sub-config.
	if cfg.Psql.RunMigrations {
		if err = db.Migrate(cfg.Psql.Addr.String()); err != nil {
			logger.Error("migration error", slog.Any("error", err))
		} else {
			logger.Info("migrations applied successfully")
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.Psql)
	if err != nil {
		logger.Error("database connection error", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	repo := postgres.NewCampaignRepository(pool)

	if cfg.Psql.Seed {
		if err = db.Seed(ctx, pool); err != nil {
			logger.Error("seed error", slog.Any("error", err))
		} else {
			logger.Info("seed data applied")
		}
	}

	// Specialist workers and the coordinator over them.
	allocEngine := allocation.NewEngine(cfg.Budget)
	workers := []port.Worker{
		worker.NewCreative(logger),
		worker.NewAudience(logger),
		allocation.NewWorker(allocEngine, logger),
	}
	coord := coordinator.New(workers, repo, cfg.Coordinator.Deadline, logger)

	// Bid path: plan cache, win-rate strategies, the outcome batcher and
	// the decision engine over them.
	cache := bidding.NewPlanCache()
	strategies := bidding.NewStrategyBook(cfg.Bidding)
	batcher := bidding.NewOutcomeBatcher(cfg.Bidding, repo, coord, cache, logger)
	bidEngine := bidding.NewEngine(cfg.Bidding, cache, strategies, batcher, logger)

	batcherCtx, stopBatcher := context.WithCancel(ctx)
	batcherDone := make(chan struct{})
	go func() {
		defer close(batcherDone)
		_ = batcher.Run(batcherCtx)
	}()

	// Repository-driven cache refresh: warm-up on start, then TTL
	// refreshes so restarts and out-of-process activations show up.
	refresher := bidding.NewCacheRefresher(repo, cache, cfg.Bidding.CacheRefreshInterval, logger)
	go func() {
		_ = refresher.Run(ctx)
	}()

	limiter := ratelimit.NewSlidingWindow(cfg.Rate.Ceiling, cfg.Rate.Window)
	guard := ratelimit.NewThroughputGuard(cfg.Rate.BidPerSecond, cfg.Rate.BidBurst)

	campaignSvc := usecase.NewCampaignUseCase(limiter, coord, repo, cache)
	bidSvc := usecase.NewBidUseCase(guard, bidEngine)

	handler := httpadapter.NewHandler(campaignSvc, bidSvc, logger)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("server listening", slog.Int("port", int(cfg.HTTP.Port)))
		if err = srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	value := <-quit
	exitCode = 128 + int(value.(syscall.Signal))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	} else {
		logger.Info("server gracefully stopped")
	}

	// Stop the batcher after the server so in-flight outcomes still land
	// in the final drain.
	stopBatcher()
	<-batcherDone
}
