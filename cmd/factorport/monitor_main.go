package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/factorport/internal/config"
	"github.com/sawpanic/factorport/internal/httpapi"
	"github.com/sawpanic/factorport/internal/metrics"
	"github.com/sawpanic/factorport/internal/persistence"
	"github.com/sawpanic/factorport/internal/persistence/postgres"
)

func newMonitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Serve the read-only monitor endpoints",
		Long:  "Serves /health, /metrics (Prometheus), and /portfolio (latest persisted snapshot).",
		RunE:  runMonitor,
	}
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()

	var portfolioRepo persistence.PortfolioRepo
	if cfg.Live.Postgres.DSN != "" {
		db, err := sqlx.Open("postgres", cfg.Live.Postgres.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		portfolioRepo = postgres.NewPortfolioRepo(db, cfg.Live.Postgres.QueryTimeout)
	}

	server := httpapi.NewServer(cfg.Monitor, collector, portfolioRepo)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		log.Info().Msg("Shutting down monitor server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	return server.ListenAndServe()
}
