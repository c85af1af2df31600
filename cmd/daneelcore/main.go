// Command daneelcore runs the cognitive core's cycle driver as a standalone
// process: selection, assembly, consolidation, and continuity wired against
// either an in-memory or Redis-backed stream set and either a Postgres/soy
// or SQLite long-term store.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/zoobzio/capitan"

	"github.com/royalbit/daneel-sub001/core"
)

var (
	configPath  string
	pretty      bool
	metricsAddr string
	crashLog    string
)

func main() {
	root := &cobra.Command{
		Use:   "daneelcore",
		Short: "runs the cognitive core's five-stage cycle driver",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config overlay")
	root.PersistentFlags().BoolVar(&pretty, "pretty", false, "console-pretty log output instead of JSON")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address to serve /metrics on")
	root.PersistentFlags().StringVar(&crashLog, "crash-log", "daneelcore-crash.log", "path to the stage-panic crash log")

	root.AddCommand(newRunCmd(), newCheckConfigCmd(), newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "daneelcore (development build)")
			return nil
		},
	}
}

func newCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "load and validate the config, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := core.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config %q is valid (name=%s, max_windows=%d, speed=%s)\n", configPath, cfg.Name, cfg.MaxWindows, cfg.Speed.Mode())
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "run the cognitive core until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCore(cmd.Context())
		},
	}
}

func runCore(ctx context.Context) error {
	cfg, err := core.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := core.NewLogger(pretty, zerolog.InfoLevel)
	crashLogger, closeCrashLog, err := core.NewCrashLogger(crashLog)
	if err != nil {
		return fmt.Errorf("open crash log: %w", err)
	}
	defer closeCrashLog()

	bridge := core.NewLogBridge(logger)
	defer bridge.Close()

	crashListener := capitan.Hook(core.CyclePanicRecovered, func(_ context.Context, e *capitan.Event) {
		name, _ := core.FieldStageName.From(e)
		crashLogger.Error().Str("stage", name).Msg("stage panic recovered")
	})
	defer crashListener.Close()

	metrics := core.NewMetrics()
	go serveMetrics(metrics.Registry, logger)
	stopMetrics := core.WireMetrics(metrics)
	defer stopMetrics()

	streams, err := newStreamService(ctx, cfg)
	if err != nil {
		return fmt.Errorf("construct stream service: %w", err)
	}
	if setter, ok := streams.(interface{ SetTTL(time.Duration) }); ok {
		multiplier := cfg.Speed.Multiplier
		if multiplier <= 0 {
			multiplier = 1
		}
		setter.SetTTL(time.Duration(cfg.Streams.WorkingTTLMs/multiplier) * time.Millisecond)
	}
	for _, s := range core.WorkingStreams {
		if err := streams.CreateConsumerGroup(ctx, s, cfg.Streams.ConsumerGroup); err != nil {
			return fmt.Errorf("create consumer group for %s: %w", s, err)
		}
	}

	store, err := newLongTermStore(ctx)
	if err != nil {
		return fmt.Errorf("construct long-term store: %w", err)
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		core.SetEmbedder(core.NewOpenAIEmbedder(apiKey))
	}

	clock := core.RealClock
	forgetter := core.NewForgetter(store, streams, clock)
	graph := core.NewAssociationGraph(store, clock)
	consolidatorCfg := consolidatorConfigFrom(cfg)
	selector, err := core.NewSelector(streams, forgetter, graph, cfg.Weights, cfg.Connection.Weight, cfg.Thresholds.Forget, consolidatorCfg.CoactivationDelta, cfg.Streams.ConsumerGroup, cfg.Streams.ConsumerName)
	if err != nil {
		return fmt.Errorf("construct selector: %w", err)
	}

	gate := core.NewLawGate()
	assembler := core.NewAssembler(gate, clock)

	consolidator := core.NewConsolidator(streams, store, graph, forgetter, cfg.Weights, consolidatorCfg, clock, logger)
	go consolidator.Start(ctx)
	defer consolidator.Stop()

	continuity, err := core.NewContinuityManager(ctx, store, cfg.Continuity, clock)
	if err != nil {
		return fmt.Errorf("construct continuity manager: %w", err)
	}
	go continuity.Start(ctx)
	defer continuity.Stop()

	driver := core.NewCycleDriver(cfg, selector, assembler, consolidator, continuity, gate, clock, logger)
	driver.SetMetrics(metrics)

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	period := driver.CyclePeriod()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	logger.Info().Str("period", period.String()).Msg("cycle driver starting")

	for {
		select {
		case <-runCtx.Done():
			logger.Info().Msg("shutting down")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return driver.Shutdown(shutdownCtx)
		case <-ticker.C:
			_, err := driver.Run(runCtx)
			if err != nil {
				logger.Error().Err(err).Msg("cycle run failed")
				continue
			}
			metrics.CyclesTotal.Inc()
		}
	}
}

func serveMetrics(registry *prometheus.Registry, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.Info().Str("addr", metricsAddr).Msg("serving metrics")
	if err := http.ListenAndServe(metricsAddr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}

func newStreamService(ctx context.Context, cfg core.Config) (core.StreamService, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return core.NewInMemoryStreamService(core.RealClock), nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return core.NewRedisStreamService(rdb), nil
}

func newLongTermStore(ctx context.Context) (core.LongTermStore, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return core.NewSQLiteStore("daneelcore.db")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return core.NewSoyStore(db)
}

func consolidatorConfigFrom(cfg core.Config) core.ConsolidatorConfig {
	return core.DefaultConsolidatorConfig(cfg.Thresholds)
}
