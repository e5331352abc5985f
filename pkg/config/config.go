package config

import "time"

// Config is the root configuration structure for SwarmShield.
type Config struct {
	// Server contains the HTTP API server configuration.
	Server ServerConfig `yaml:"server"`

	// Engine contains policy orchestrator settings.
	Engine EngineConfig `yaml:"engine"`

	// Detection contains detection rule cache settings.
	Detection DetectionConfig `yaml:"detection"`

	// RateLimit selects the rate counter backend.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Store selects where policy and detection rules are loaded from.
	Store StoreConfig `yaml:"store"`

	// Evidence contains the verdict audit trail configuration.
	Evidence EvidenceConfig `yaml:"evidence"`

	// Deliberation configures the handoff of flag and block verdicts.
	Deliberation DeliberationConfig `yaml:"deliberation"`

	// Redis is shared by the redis counter backend and cache invalidation.
	Redis RedisConfig `yaml:"redis"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is "host:port".
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes caps request bodies.
	// Default: 1MB
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// EngineConfig contains policy orchestrator settings.
type EngineConfig struct {
	// StopOnBlock stops evaluating further rules after the first block.
	// Default: false
	StopOnBlock bool `yaml:"stop_on_block"`

	// MaxRulesPerWorkspace limits the enabled rules of a workspace. Reloads
	// that exceed it fail and keep the previous rule set.
	// Default: 500
	MaxRulesPerWorkspace int `yaml:"max_rules_per_workspace"`

	// RegexTimeout bounds a single regex detection rule match.
	// Default: 100ms
	RegexTimeout time.Duration `yaml:"regex_timeout"`
}

// DetectionConfig contains detection rule cache settings.
type DetectionConfig struct {
	// RefreshInterval reloads every workspace periodically. 0 disables it.
	// Default: 0
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	// Invalidation subscribes to a Redis channel of workspace ids.
	Invalidation InvalidationConfig `yaml:"invalidation"`
}

// InvalidationConfig configures pub/sub cache invalidation.
type InvalidationConfig struct {
	// Enabled turns the subscriber on. Requires redis.address.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Channel is the pub/sub channel.
	// Default: "swarmshield:detection:invalidate"
	Channel string `yaml:"channel"`
}

// RateLimitConfig selects the rate counter backend.
type RateLimitConfig struct {
	// Backend is "memory" or "redis".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// KeyPrefix namespaces counter keys in Redis.
	// Default: "swarmshield:rate:"
	KeyPrefix string `yaml:"key_prefix"`
}

// StoreConfig selects where rules come from.
type StoreConfig struct {
	// Backend is "yaml" (file or directory) or "sqlite".
	// Default: "yaml"
	Backend string `yaml:"backend"`

	// Path is the rules file or directory for the yaml backend.
	// Default: "./rules"
	Path string `yaml:"path"`

	// SQLitePath is the database file for the sqlite backend.
	// Default: "data/rules.db"
	SQLitePath string `yaml:"sqlite_path"`

	// Watch reloads yaml rules when files change.
	// Default: false
	Watch bool `yaml:"watch"`

	// DebounceInterval collapses bursts of file events.
	// Default: 250ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// EvidenceConfig contains the verdict audit trail configuration.
type EvidenceConfig struct {
	// Enabled records every verdict.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend is "sqlite" or "memory".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Recorder  RecorderConfig  `yaml:"recorder"`
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig contains SQLite settings for the audit store.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: "data/verdicts.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the connection pool size.
	// Default: 4
	MaxOpenConns int `yaml:"max_open_conns"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RecorderConfig contains async recorder settings.
type RecorderConfig struct {
	// AsyncBuffer is the write queue capacity.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds one storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// HashContent stores the SHA-256 of event content.
	// Default: true
	HashContent bool `yaml:"hash_content"`
}

// RetentionConfig contains audit retention settings.
type RetentionConfig struct {
	// RetentionDays is how long records are kept. 0 keeps them forever.
	// Default: 90
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a standard cron expression.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`

	// ArchiveBeforeDelete exports records before pruning them.
	// Default: false
	ArchiveBeforeDelete bool `yaml:"archive_before_delete"`

	// ArchivePath is the archive directory.
	// Default: "data/archives/"
	ArchivePath string `yaml:"archive_path"`

	// MaxRecords caps the stored record count. 0 means unlimited.
	// Default: 0
	MaxRecords int64 `yaml:"max_records"`
}

// DeliberationConfig configures the deliberation handoff.
type DeliberationConfig struct {
	// Trigger is "noop", "log" or "kafka".
	// Default: "log"
	Trigger string `yaml:"trigger"`

	// QueueSize bounds pending handoffs.
	// Default: 1000
	QueueSize int `yaml:"queue_size"`

	// Workers is the number of delivery goroutines.
	// Default: 2
	Workers int `yaml:"workers"`

	// DeliveryTimeout bounds one delivery.
	// Default: 10s
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`

	Kafka KafkaConfig `yaml:"kafka"`
}

// KafkaConfig configures the Kafka trigger.
type KafkaConfig struct {
	// Brokers is the list of "host:port" broker addresses.
	Brokers []string `yaml:"brokers"`

	// Topic receives handoffs.
	// Default: "swarmshield.deliberations"
	Topic string `yaml:"topic"`
}

// RedisConfig contains the Redis connection.
type RedisConfig struct {
	// Address is "host:port". Empty disables Redis features.
	Address string `yaml:"address"`

	// Password is the AUTH password.
	Password string `yaml:"password"`

	// DB is the database index.
	DB int `yaml:"db"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line in records.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII rewrites secrets found inside logged strings.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns adds custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction rule.
type RedactPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled exposes Prometheus metrics.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the metrics endpoint path.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes metric names.
	// Default: "swarmshield"
	Namespace string `yaml:"namespace"`

	// DurationBuckets are the evaluation latency histogram buckets in
	// seconds.
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled exports spans over OTLP/gRPC.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP collector "host:port".
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout bounds one export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// Sampler is "always", "never" or "ratio".
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the sampled fraction for the ratio sampler.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName is the service.name resource attribute.
	// Default: "swarmshield"
	ServiceName string `yaml:"service_name"`
}
