package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nikita-mazotov/CubeSat-CRD-public/internal/artifact"
	"github.com/nikita-mazotov/CubeSat-CRD-public/internal/crd"
	"github.com/nikita-mazotov/CubeSat-CRD-public/internal/logger"
)

type runFlags struct {
	config      string
	workers     int
	events      int
	seed        int64
	out         string
	metricsAddr string
	stats       bool
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation and write the merged hits",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := crd.LoadConfig(f.config)
			if err != nil {
				return err
			}
			applyFlags(cmd, &f, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if os.Getenv("DEBUG") != "" {
				cfg.Log.Level = "debug"
			}
			logger.Init(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			_, err = runSimulation(ctx, cfg, f.stats, logger.Named("crdsim"))
			return err
		},
	}
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "run configuration (JSON or YAML)")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "worker goroutines (0 = number of CPUs)")
	cmd.Flags().IntVarP(&f.events, "events", "n", 0, "events to simulate")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "run seed")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "artifact name (default all_hits.csv)")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	cmd.Flags().BoolVar(&f.stats, "stats", false, "log worker observation counts at the end of the run")
	return cmd
}

// applyFlags overrides the loaded config with explicitly set flags.
func applyFlags(cmd *cobra.Command, f *runFlags, cfg *crd.Config) {
	if cmd.Flags().Changed("workers") {
		cfg.Workers = f.workers
	}
	if cmd.Flags().Changed("events") {
		cfg.Events = f.events
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = f.seed
	}
	if cmd.Flags().Changed("out") {
		cfg.Output.Name = f.out
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
}

// runSimulation wires the configured stores, sinks and metrics around a
// controller and executes one run.
func runSimulation(ctx context.Context, cfg *crd.Config, stats bool, log zerolog.Logger) (crd.Snapshot, error) {
	geo, err := crd.NewBoxGeometry(cfg.Geometry)
	if err != nil {
		return crd.Snapshot{}, fmt.Errorf("%w: geometry: %w", crd.ErrInvalidConfig, err)
	}
	store, err := artifact.Open(ctx, cfg.ArtifactConfig())
	if err != nil {
		return crd.Snapshot{}, fmt.Errorf("open artifact store: %w", err)
	}

	sinks := crd.MultiSink{crd.NewCSVSink(store,
		crd.WithCSVName(cfg.Output.Name),
		crd.WithCSVTimestamp(cfg.Output.Timestamp),
		crd.WithCSVOverwrite(cfg.Overwrite()),
		crd.WithCSVPrecision(cfg.Output.Precision),
		crd.WithCSVLogger(log.With().Str("sink", "csv").Logger()),
	)}
	if cfg.Output.SQLite != "" {
		db, err := crd.OpenSQLiteSink(cfg.Output.SQLite, log.With().Str("sink", "sqlite").Logger())
		if err != nil {
			return crd.Snapshot{}, err
		}
		defer db.Close()
		sinks = append(sinks, db)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := crd.NewMetrics(reg)
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, reg, log)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	observers := crd.Observers{crd.LogObserver{Log: log}}
	var rec *crd.RecordingObserver
	if stats {
		rec = crd.NewRecordingObserver()
		observers = append(observers, rec)
	}

	ctrl := crd.NewController(
		crd.WithGeometry(geo),
		crd.WithVolumes(cfg.ScoringVolume, cfg.DetectorVolume),
		crd.WithSink(sinks),
		crd.WithMetrics(metrics),
		crd.WithObserver(observers),
		crd.WithRetentionPolicies(cfg.Retention.Policies()),
		crd.WithLogger(log),
	)
	snap, err := ctrl.Run(ctx, cfg.UniformSource(geo), crd.RunOptions{
		Events:  cfg.Events,
		Workers: cfg.Workers,
		Seed:    cfg.Seed,
	})
	if rec != nil {
		rec.Stats(log)
	}
	return snap, err
}

func serveMetrics(addr string, reg *prometheus.Registry, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	return srv
}
