package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/obutuz/swarmshield-sub004/pkg/config"
	"github.com/obutuz/swarmshield-sub004/pkg/deliberation"
	"github.com/obutuz/swarmshield-sub004/pkg/evidence"
	"github.com/obutuz/swarmshield-sub004/pkg/evidence/recorder"
	"github.com/obutuz/swarmshield-sub004/pkg/evidence/retention"
	"github.com/obutuz/swarmshield-sub004/pkg/evidence/storage"
	"github.com/obutuz/swarmshield-sub004/pkg/limits/counter"
	"github.com/obutuz/swarmshield-sub004/pkg/policy/engine"
	"github.com/obutuz/swarmshield-sub004/pkg/policy/rulestore"
	"github.com/obutuz/swarmshield-sub004/pkg/telemetry/logging"
)

// newLogger builds the process logger from telemetry.logging.
func newLogger(cfg *config.LoggingConfig) (*slog.Logger, error) {
	return logging.New(logging.Config{
		Level:          cfg.Level,
		Format:         cfg.Format,
		AddSource:      cfg.AddSource,
		RedactPII:      cfg.RedactPII,
		RedactPatterns: cfg.RedactPatterns,
		Writer:         os.Stderr,
	})
}

// newRedisClient returns nil when no address is configured.
func newRedisClient(cfg *config.RedisConfig) *redis.Client {
	if cfg.Address == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// ruleStore is the configured rule backend. For the yaml backend, mem is
// the in-memory mirror DirectorySync writes into.
type ruleStore struct {
	backend rulestore.Backend
	mem     *rulestore.MemoryBackend
}

func openRuleStore(cfg *config.StoreConfig) (*ruleStore, error) {
	switch cfg.Backend {
	case "yaml":
		mem := rulestore.NewMemoryBackend()
		return &ruleStore{backend: mem, mem: mem}, nil
	case "sqlite":
		b, err := rulestore.NewSQLiteBackend(rulestore.SQLiteBackendConfig{DBPath: cfg.SQLitePath})
		if err != nil {
			return nil, err
		}
		return &ruleStore{backend: b}, nil
	default:
		return nil, fmt.Errorf("unsupported rule store backend: %s", cfg.Backend)
	}
}

// openCounterStore returns the rate counter store and the clock its windows
// are computed on. Shared Redis counters need wall-clock windows so every
// instance agrees on window boundaries.
func openCounterStore(cfg *config.RateLimitConfig, client *redis.Client) (counter.Store, counter.Clock, error) {
	switch cfg.Backend {
	case "memory":
		return counter.Initialize(), counter.NewMonotonicClock(), nil
	case "redis":
		if client == nil {
			return nil, nil, fmt.Errorf("rate_limit.backend redis requires redis.address")
		}
		return counter.NewRedisStoreWithClient(client, cfg.KeyPrefix), counter.WallClock{}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported rate limit backend: %s", cfg.Backend)
	}
}

func engineConfig(cfg *config.EngineConfig) *engine.Config {
	return engine.DefaultConfig().
		WithStopOnBlock(cfg.StopOnBlock).
		WithMaxRulesPerWorkspace(cfg.MaxRulesPerWorkspace)
}

func openVerdictStorage(cfg *config.EvidenceConfig) (evidence.Storage, error) {
	switch cfg.Backend {
	case "sqlite":
		return storage.NewSQLiteStorage(&storage.SQLiteConfig{
			Path:         cfg.SQLite.Path,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			WALMode:      cfg.SQLite.WALMode,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		})
	case "memory":
		return storage.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported evidence backend: %s", cfg.Backend)
	}
}

func recorderConfig(cfg *config.RecorderConfig) *recorder.Config {
	return &recorder.Config{
		Enabled:      true,
		AsyncBuffer:  cfg.AsyncBuffer,
		WriteTimeout: cfg.WriteTimeout,
		HashContent:  cfg.HashContent,
	}
}

func retentionConfig(cfg *config.RetentionConfig) *retention.Config {
	return &retention.Config{
		RetentionDays:       cfg.RetentionDays,
		PruneSchedule:       cfg.PruneSchedule,
		ArchiveBeforeDelete: cfg.ArchiveBeforeDelete,
		ArchivePath:         cfg.ArchivePath,
		MaxRecords:          cfg.MaxRecords,
	}
}

func newTrigger(cfg *config.DeliberationConfig, logger *slog.Logger) (deliberation.Trigger, error) {
	switch cfg.Trigger {
	case "noop", "":
		return deliberation.NoopTrigger{}, nil
	case "log":
		return deliberation.NewLogTrigger(logger), nil
	case "kafka":
		return deliberation.NewKafkaTrigger(deliberation.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.DeliveryTimeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported deliberation trigger: %s", cfg.Trigger)
	}
}

func dispatcherConfig(cfg *config.DeliberationConfig) deliberation.DispatcherConfig {
	return deliberation.DispatcherConfig{
		QueueSize:       cfg.QueueSize,
		Workers:         cfg.Workers,
		DeliveryTimeout: cfg.DeliveryTimeout,
	}
}

// pingRedis is a health check for the shared Redis connection.
func pingRedis(client *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
