package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/obutuz/swarmshield-sub004/pkg/cli"
	"github.com/obutuz/swarmshield-sub004/pkg/config"
	"github.com/obutuz/swarmshield-sub004/pkg/deliberation"
	"github.com/obutuz/swarmshield-sub004/pkg/evidence"
	"github.com/obutuz/swarmshield-sub004/pkg/evidence/recorder"
	"github.com/obutuz/swarmshield-sub004/pkg/evidence/retention"
	"github.com/obutuz/swarmshield-sub004/pkg/limits/counter"
	"github.com/obutuz/swarmshield-sub004/pkg/policy/detection"
	"github.com/obutuz/swarmshield-sub004/pkg/policy/engine"
	"github.com/obutuz/swarmshield-sub004/pkg/policy/evaluators"
	"github.com/obutuz/swarmshield-sub004/pkg/policy/rulestore"
	"github.com/obutuz/swarmshield-sub004/pkg/server"
	"github.com/obutuz/swarmshield-sub004/pkg/telemetry/health"
	"github.com/obutuz/swarmshield-sub004/pkg/telemetry/metrics"
	"github.com/obutuz/swarmshield-sub004/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the SwarmShield evaluation server",
	Long: `Start the SwarmShield evaluation server.

The server loads policy and detection rules from the configured rule store,
then answers POST /v1/events/evaluate with a verdict for each event.

Examples:
  # Start with defaults (rules from ./rules, in-memory counters)
  swarmshield run

  # Start with a config file
  swarmshield run --config /etc/swarmshield/config.yaml

  # Override the listen address
  swarmshield run --listen 0.0.0.0:8080

  # Validate config without starting the server
  swarmshield run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("flags", err.Error())
	}

	logger, err := newLogger(&cfg.Telemetry.Logging)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// serve wires every component from cfg and blocks until ctx is cancelled.
// Components are closed in reverse order of construction, so in-flight
// verdicts reach the audit trail and deliberation before storage closes.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	checker := health.New(0)

	redisClient := newRedisClient(&cfg.Redis)
	if redisClient != nil {
		defer redisClient.Close()
		if cfg.RateLimit.Backend == "redis" {
			checker.RegisterCheck("redis", pingRedis(redisClient))
		} else {
			checker.RegisterOptionalCheck("redis", pingRedis(redisClient))
		}
	}

	// Rule store and detection cache.
	rules, err := openRuleStore(&cfg.Store)
	if err != nil {
		return err
	}
	defer rules.backend.Close()
	cache := detection.NewCache(rules.backend, logger, collector)

	// Rate counters.
	counters, clock, err := openCounterStore(&cfg.RateLimit, redisClient)
	if err != nil {
		return err
	}
	if mem, ok := counters.(*counter.MemoryStore); ok {
		if err := collector.RegisterRateCounters(mem.Len); err != nil {
			logger.Warn("rate counter gauge not registered", "error", err)
		}
	}

	opts := engine.StandardEvaluators(cache, counters, clock, logger,
		evaluators.WithRegexTimeout(cfg.Engine.RegexTimeout),
		evaluators.WithTimeoutRecorder(collector),
	)
	opts = append(opts, engine.WithMetrics(collector))

	// Verdict audit trail.
	var verdicts evidence.Storage
	if cfg.Evidence.Enabled {
		verdicts, err = openVerdictStorage(&cfg.Evidence)
		if err != nil {
			return fmt.Errorf("failed to open verdict storage: %w", err)
		}
		defer verdicts.Close()
		checker.RegisterOptionalCheck("verdict_store", func(ctx context.Context) error {
			_, err := verdicts.Count(ctx, &evidence.Query{Limit: 1})
			return err
		})

		rec := recorder.NewRecorder(verdicts, recorderConfig(&cfg.Evidence.Recorder), logger, recorder.WithObserver(collector))
		defer rec.Close()
		opts = append(opts, engine.WithRecorder(rec))

		pruner := retention.NewPruner(verdicts, retentionConfig(&cfg.Evidence.Retention), logger)
		if err := pruner.Start(ctx); err != nil {
			logger.Warn("failed to start retention scheduler", "error", err)
		} else {
			defer pruner.Stop()
			if next := pruner.NextPruning(); next != nil {
				logger.Debug("verdict retention scheduler started", "next_pruning", next)
			}
		}
	}

	// Deliberation handoff.
	trigger, err := newTrigger(&cfg.Deliberation, logger)
	if err != nil {
		return fmt.Errorf("failed to create deliberation trigger: %w", err)
	}
	dispatcher := deliberation.NewDispatcher(trigger, dispatcherConfig(&cfg.Deliberation), logger, deliberation.WithObserver(collector))
	defer dispatcher.Close()
	opts = append(opts, engine.WithDeliberator(dispatcher))

	eng, err := engine.New(engineConfig(&cfg.Engine), rules.backend, logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	// A full reload refreshes detection rules before policy rules, so a new
	// pattern_match rule never references a detection rule not yet cached.
	reload := func(ctx context.Context) error {
		if err := cache.Refresh(ctx); err != nil {
			return err
		}
		return eng.Reload(ctx)
	}
	if rules.mem != nil {
		dirSync := rulestore.NewDirectorySync(cfg.Store.Path, rules.mem, logger, cache.Refresh, eng.Reload)
		reload = dirSync.Sync
	}
	if err := reload(ctx); err != nil {
		return fmt.Errorf("initial rule load failed: %w", err)
	}
	checker.RegisterCheck("rules", func(context.Context) error {
		if eng.LoadedAt().IsZero() {
			return errors.New("rules not loaded")
		}
		return nil
	})

	if rules.mem != nil && cfg.Store.Watch {
		watcher, err := rulestore.NewWatcher(&rulestore.WatcherConfig{
			Path:             cfg.Store.Path,
			DebounceInterval: cfg.Store.DebounceInterval,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to watch rules: %w", err)
		}
		defer watcher.Stop()
		go func() {
			if err := watcher.Watch(ctx, reload); err != nil {
				logger.Error("rule watcher stopped", "error", err)
			}
		}()
	}

	go cache.RunPeriodic(ctx, cfg.Detection.RefreshInterval)

	if cfg.Detection.Invalidation.Enabled {
		inv := detection.NewRedisInvalidator(redisClient, cfg.Detection.Invalidation.Channel, cache, logger)
		go func() {
			if err := inv.Run(ctx); err != nil {
				logger.Error("detection invalidation stopped", "error", err)
			}
		}()
	}

	deps := server.Dependencies{
		Evaluator: eng,
		Detection: cache,
		Reload:    reload,
		Verdicts:  verdicts,
		Health:    checker,
		Version: health.VersionInfo{
			Version:   Version,
			Commit:    GitCommit,
			BuildTime: BuildDate,
		},
	}
	if cfg.Telemetry.Metrics.Enabled {
		deps.Metrics = collector.Handler(logger)
		deps.MetricsPath = cfg.Telemetry.Metrics.Path
	}
	if tracer.Enabled() {
		deps.Tracer = tracer
	}

	srv, err := server.New(&cfg.Server, deps, logger)
	if err != nil {
		return err
	}

	printBanner(cfg, eng)
	checker.SetReady(true)
	return srv.Start(ctx)
}

func printBanner(cfg *config.Config, eng *engine.Engine) {
	slog.Info("SwarmShield starting",
		"version", Version,
		"config_file", cfgFile,
		"listen_address", cfg.Server.ListenAddress,
		"rule_store", cfg.Store.Backend,
		"rate_limit_backend", cfg.RateLimit.Backend,
		"evidence_enabled", cfg.Evidence.Enabled,
		"deliberation_trigger", cfg.Deliberation.Trigger,
		"tracing_enabled", cfg.Telemetry.Tracing.Enabled,
		"rules_loaded_at", eng.LoadedAt(),
	)
}
