// Command server is the sports notification service. It polls tracked games
// on an interval, detects state transitions, and dispatches push
// notifications, while serving a small HTTP API for health checks and
// manual cycle triggers.
//
// Usage:
//
//	server
//	API_PORT=8080 POLL_INTERVAL_SECONDS=30 server
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/ankur-ag/sports-notifications/internal/api"
	"github.com/ankur-ag/sports-notifications/internal/config"
	"github.com/ankur-ag/sports-notifications/internal/db"
	"github.com/ankur-ag/sports-notifications/internal/listener"
	"github.com/ankur-ag/sports-notifications/internal/maintenance"
	"github.com/ankur-ag/sports-notifications/internal/notifications"
	"github.com/ankur-ag/sports-notifications/internal/poller"
	"github.com/ankur-ag/sports-notifications/internal/push"
	"github.com/ankur-ag/sports-notifications/internal/source"
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Debug logging is opt-in and never enabled in production.
	level := slog.LevelInfo
	if cfg.Debug && !cfg.IsProduction() {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Wire the pipeline
	store := notifications.NewPGStore(pool.Pool)
	detector := notifications.NewDetector(cfg.BlowoutThreshold, cfg.CloseGameThreshold)
	gateway := push.NewClient(cfg.PushGatewayURL, cfg.PushAccessToken, logger)
	dispatcher := notifications.NewDispatcher(gateway,
		cfg.PushBatchSize, cfg.DispatchWorkers, cfg.DispatchRetries,
		cfg.DispatchBackoff, cfg.BatchSendTimeout, logger)
	pipeline := notifications.NewPipeline(buildAdapters(cfg, logger), store, detector, dispatcher, logger)

	// Start the polling scheduler
	if cfg.ScoresAPIKey != "" {
		p := poller.New(pipeline, store, cfg.PollInterval, cfg.PollWorkers, logger)
		go p.Run(ctx)
	} else {
		logger.Info("Poller disabled (no SCORES_API_KEY); cycles available via the API only")
	}

	// Start maintenance tickers (subscriber pruning, finished-game untracking)
	go maintenance.Start(ctx, pool.Pool, maintenance.DefaultConfig(), logger)

	// Listen for on-demand poll requests (pg_notify on poll_requested)
	go listener.Start(ctx, cfg.DatabaseURL, store, pipeline, logger)

	// Create router
	router := api.NewRouter(pool, store, pipeline, cfg, logger)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting notification service",
			"addr", addr,
			"environment", cfg.Environment,
			"poll_interval", cfg.PollInterval)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}

// buildAdapters constructs one scores adapter per configured sport. The
// pipeline receives these explicitly; nothing registers itself globally.
func buildAdapters(cfg *config.Config, logger *slog.Logger) map[string]source.Adapter {
	adapters := make(map[string]source.Adapter)
	if cfg.ScoresAPIKey == "" {
		return adapters
	}
	for _, sport := range []string{"NBA", "NFL"} {
		sc := config.SportRegistry[sport]
		adapters[sport] = source.NewBDLAdapter(
			cfg.ScoresAPIURL, cfg.ScoresAPIKey, sc.ID,
			sc.TotalPeriods, cfg.ScoresRatePerMin, logger)
	}
	return adapters
}
