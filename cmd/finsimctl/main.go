package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/finsim/market-engine/internal/asset"
	"github.com/finsim/market-engine/internal/config"
	"github.com/finsim/market-engine/internal/db"
	"github.com/finsim/market-engine/internal/market"
	"github.com/finsim/market-engine/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:          "finsimctl",
		Short:        "Administrative commands for the market engine database",
		SilenceUsage: true,
	}

	root.AddCommand(
		newMigrateCmd(),
		newSeedCmd(),
		newTickCmd(),
		newCloseMarketsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// withPool loads config, connects and calls fn with a bounded context.
func withPool(cmd *cobra.Command, timeout time.Duration, fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd, 2*time.Minute, func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
				if err := db.Migrate(ctx, pool); err != nil {
					return err
				}
				v, err := db.Version(ctx, pool)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)
				return nil
			})
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the default asset catalogue, keeping live prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd, time.Minute, func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
				catalogue := asset.DefaultCatalogue()
				if err := asset.Seed(ctx, store.NewPostgresStore(pool), catalogue); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d assets\n", len(catalogue))
				return nil
			})
		},
	}
}

func newTickCmd() *cobra.Command {
	var volatility string
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one random-walk price tick",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd, time.Minute, func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				vol := cfg.Market.TickVolatility
				if volatility != "" {
					v, err := decimal.NewFromString(volatility)
					if err != nil {
						return fmt.Errorf("--volatility: %w", err)
					}
					vol = v
				}
				sim := market.NewSimulator(store.NewPostgresStore(pool), nil, vol, 0)
				moved, err := sim.Tick(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "moved %d prices\n", moved)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&volatility, "volatility", "", "max relative move per asset (default TICK_VOLATILITY)")
	return cmd
}

func newCloseMarketsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close-markets",
		Short: "Close prediction markets past their closing time",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd, time.Minute, func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
				sim := market.NewSimulator(store.NewPostgresStore(pool), nil, decimal.Zero, 0)
				closed, err := sim.CloseExpired(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "closed %d markets\n", closed)
				return nil
			})
		},
	}
}
