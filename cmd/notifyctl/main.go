// Command notifyctl is the operations CLI for the notification service.
//
// Usage:
//
//	notifyctl poll --game nba-18444
//	notifyctl poll --all
//	notifyctl games list
//	notifyctl games track --game nba-18444 --sport NBA --external 18444
//	notifyctl games untrack --game nba-18444
//	notifyctl subscribers prune
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ankur-ag/sports-notifications/internal/config"
	"github.com/ankur-ag/sports-notifications/internal/db"
	"github.com/ankur-ag/sports-notifications/internal/notifications"
	"github.com/ankur-ag/sports-notifications/internal/poller"
	"github.com/ankur-ag/sports-notifications/internal/push"
	"github.com/ankur-ag/sports-notifications/internal/source"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "notifyctl",
		Short: "Sports notification service CLI",
	}

	root.AddCommand(pollCmd())
	root.AddCommand(gamesCmd())
	root.AddCommand(subscribersCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// poll command
// --------------------------------------------------------------------------

func pollCmd() *cobra.Command {
	var (
		gameID string
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run one detection cycle for a game (or every tracked game)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if gameID == "" && !all {
				return fmt.Errorf("--game or --all is required")
			}
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				store := notifications.NewPGStore(pool.Pool)
				pipeline := buildPipeline(cfg, store)

				if all {
					p := poller.New(pipeline, store, cfg.PollInterval, cfg.PollWorkers, logger)
					start := time.Now()
					p.RunOnce(ctx)
					logger.Info("Poll finished", "duration", time.Since(start).Round(time.Millisecond))
					return nil
				}

				g, err := store.TrackedGame(ctx, gameID)
				if err != nil {
					return err
				}
				if g == nil {
					return fmt.Errorf("game %s is not tracked", gameID)
				}
				result, err := pipeline.RunCycle(ctx, *g)
				if err != nil {
					return err
				}
				for _, token := range result.InvalidTokens {
					if err := store.DeactivateToken(ctx, token); err != nil {
						logger.Warn("deactivate token failed", "error", err)
					}
				}
				logger.Info("Cycle finished", "summary", result.Summary())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&gameID, "game", "", "Game ID to poll")
	cmd.Flags().BoolVar(&all, "all", false, "Poll every tracked game once")
	return cmd
}

// --------------------------------------------------------------------------
// games command
// --------------------------------------------------------------------------

func gamesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "games",
		Short: "Manage tracked games",
	}
	cmd.AddCommand(gamesListCmd())
	cmd.AddCommand(gamesTrackCmd())
	cmd.AddCommand(gamesUntrackCmd())
	return cmd
}

func gamesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List actively tracked games",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				store := notifications.NewPGStore(pool.Pool)
				games, err := store.TrackedGames(ctx)
				if err != nil {
					return err
				}
				for _, g := range games {
					fmt.Printf("%s\t%s\t%s\n", g.GameID, g.Sport, g.ExternalID)
				}
				logger.Info("Tracked games", "count", len(games))
				return nil
			})
		},
	}
}

func gamesTrackCmd() *cobra.Command {
	var gameID, sport, externalID string
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Register a game for polling",
		RunE: func(cmd *cobra.Command, args []string) error {
			if gameID == "" || sport == "" || externalID == "" {
				return fmt.Errorf("--game, --sport, and --external are required")
			}
			if _, ok := config.SportRegistry[sport]; !ok {
				return fmt.Errorf("unknown sport %q", sport)
			}
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				store := notifications.NewPGStore(pool.Pool)
				g := notifications.TrackedGame{GameID: gameID, Sport: sport, ExternalID: externalID}
				if err := store.Track(ctx, g); err != nil {
					return err
				}
				logger.Info("Game tracked", "game", gameID, "sport", sport)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&gameID, "game", "", "Internal game ID")
	cmd.Flags().StringVar(&sport, "sport", "", "Sport tag (NBA, NFL, MLB, NHL)")
	cmd.Flags().StringVar(&externalID, "external", "", "Provider game ID")
	return cmd
}

func gamesUntrackCmd() *cobra.Command {
	var gameID string
	cmd := &cobra.Command{
		Use:   "untrack",
		Short: "Stop polling a game",
		RunE: func(cmd *cobra.Command, args []string) error {
			if gameID == "" {
				return fmt.Errorf("--game is required")
			}
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				store := notifications.NewPGStore(pool.Pool)
				if err := store.Untrack(ctx, gameID); err != nil {
					return err
				}
				logger.Info("Game untracked", "game", gameID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&gameID, "game", "", "Game ID to untrack")
	return cmd
}

// --------------------------------------------------------------------------
// subscribers command
// --------------------------------------------------------------------------

func subscribersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscribers",
		Short: "Manage subscribers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete subscribers disabled for over 30 days",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				store := notifications.NewPGStore(pool.Pool)
				removed, err := store.PruneDisabled(ctx)
				if err != nil {
					return err
				}
				logger.Info("Subscribers pruned", "removed", removed)
				return nil
			})
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

func buildPipeline(cfg *config.Config, store *notifications.PGStore) *notifications.Pipeline {
	adapters := make(map[string]source.Adapter)
	if cfg.ScoresAPIKey != "" {
		for _, sport := range []string{"NBA", "NFL"} {
			sc := config.SportRegistry[sport]
			adapters[sport] = source.NewBDLAdapter(
				cfg.ScoresAPIURL, cfg.ScoresAPIKey, sc.ID,
				sc.TotalPeriods, cfg.ScoresRatePerMin, logger)
		}
	}
	detector := notifications.NewDetector(cfg.BlowoutThreshold, cfg.CloseGameThreshold)
	gateway := push.NewClient(cfg.PushGatewayURL, cfg.PushAccessToken, logger)
	dispatcher := notifications.NewDispatcher(gateway,
		cfg.PushBatchSize, cfg.DispatchWorkers, cfg.DispatchRetries,
		cfg.DispatchBackoff, cfg.BatchSendTimeout, logger)
	return notifications.NewPipeline(adapters, store, detector, dispatcher, logger)
}

// run handles config loading, DB connection, and context cancellation.
func run(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}
