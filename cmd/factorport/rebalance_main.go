package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/factorport/internal/config"
	"github.com/sawpanic/factorport/internal/live"
	"github.com/sawpanic/factorport/internal/metrics"
	"github.com/sawpanic/factorport/internal/obs"
	"github.com/sawpanic/factorport/internal/persistence"
	"github.com/sawpanic/factorport/internal/persistence/postgres"
	"github.com/sawpanic/factorport/internal/pipeline"
)

func newRebalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebalance",
		Short: "Reconcile target weights against live positions",
		Long:  "Computes target weights for the latest observation date and emits a deadbanded trade list against the persisted portfolio snapshot. Exactly one rebalance job may run per account; a failed position fetch aborts the run loudly.",
		RunE:  runRebalance,
	}
	cmd.Flags().String("observations", "", "Observations CSV (overrides config data.csv_path)")
	cmd.Flags().Bool("dry-run", false, "Plan trades without submitting")
	return cmd
}

func runRebalance(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	csvPath, _ := cmd.Flags().GetString("observations")
	if csvPath == "" {
		csvPath = cfg.Data.CSVPath
	}
	if csvPath == "" {
		return fmt.Errorf("no observations source: set --observations or data.csv_path")
	}
	if cfg.Live.Postgres.DSN == "" {
		return fmt.Errorf("live rebalance requires a portfolio store: set live.postgres.dsn")
	}

	ctx := cmd.Context()
	table, err := obs.NewCSVSource(csvPath).Observations(ctx)
	if err != nil {
		return err
	}
	dates := table.Dates()
	if len(dates) == 0 {
		return fmt.Errorf("observation table is empty")
	}
	asOf := dates[len(dates)-1]

	collector := metrics.NewCollector()
	engine, err := pipeline.NewEngine(cfg.Strategies, cfg.Universe, collector)
	if err != nil {
		return err
	}

	var cache live.WeightCache = live.NoopWeightCache{}
	if cfg.Live.Redis.Addr != "" {
		cache = live.NewRedisWeightCache(redis.NewClient(&redis.Options{
			Addr: cfg.Live.Redis.Addr,
			DB:   cfg.Live.Redis.DB,
		}))
	}

	db, err := sqlx.Open("postgres", cfg.Live.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("open portfolio store: %w", err)
	}
	defer db.Close()

	portfolioRepo := postgres.NewPortfolioRepo(db, cfg.Live.Postgres.QueryTimeout)
	tradesRepo := postgres.NewTradesRepo(db, cfg.Live.Postgres.QueryTimeout)

	targets, err := live.NewTargetComputer(engine, cache, cfg.Live.CacheTTL(), collector).
		Targets(ctx, table, asOf)
	if err != nil {
		return err
	}

	reconciler := live.NewReconciler(
		cfg.Live.Reconciler,
		persistence.SnapshotPositionSource{Repo: portfolioRepo},
		live.LogSubmitter{},
		tradesRepo,
		collector,
	)

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		positions, capital, err := persistence.SnapshotPositionSource{Repo: portfolioRepo}.Positions(ctx)
		if err != nil {
			return fmt.Errorf("fetch positions: %w", err)
		}
		trades := reconciler.Plan(targets, positions, capital)
		for _, t := range trades {
			fmt.Printf("%-10s delta %+.2f (current %.2f -> target %.2f)\n",
				t.Asset, t.DeltaNotional, t.CurrentNotional, t.TargetNotional)
		}
		return nil
	}

	trades, err := reconciler.Run(ctx, targets)
	if err != nil {
		// Live runs must fail loudly; the non-zero exit happens in main.
		return fmt.Errorf("reconciliation aborted: %w", err)
	}

	log.Info().Time("as_of", asOf).Int("trades", len(trades)).Msg("Rebalance complete")
	return nil
}
