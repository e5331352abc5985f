package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxBodyBytes    = int64(1 << 20)

	// Engine defaults
	DefaultMaxRulesPerWorkspace = 500
	DefaultRegexTimeout         = 100 * time.Millisecond

	// Detection defaults
	DefaultInvalidationChannel = "swarmshield:detection:invalidate"

	// Rate limit defaults
	DefaultRateLimitBackend = "memory"
	DefaultRateKeyPrefix    = "swarmshield:rate:"

	// Store defaults
	DefaultStoreBackend     = "yaml"
	DefaultStorePath        = "./rules"
	DefaultStoreSQLitePath  = "data/rules.db"
	DefaultDebounceInterval = 250 * time.Millisecond

	// Evidence defaults
	DefaultEvidenceEnabled      = true
	DefaultEvidenceBackend      = "sqlite"
	DefaultEvidenceSQLitePath   = "data/verdicts.db"
	DefaultEvidenceMaxOpenConns = 4
	DefaultEvidenceBusyTimeout  = 5 * time.Second
	DefaultRecorderAsyncBuffer  = 1000
	DefaultRecorderWriteTimeout = 5 * time.Second
	DefaultRetentionDays        = 90
	DefaultRetentionSchedule    = "0 3 * * *"
	DefaultRetentionArchivePath = "data/archives/"

	// Deliberation defaults
	DefaultDeliberationTrigger = "log"
	DefaultDeliberationQueue   = 1000
	DefaultDeliberationWorkers = 2
	DefaultDeliveryTimeout     = 10 * time.Second
	DefaultKafkaTopic          = "swarmshield.deliberations"

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "swarmshield"
	DefaultTracingEndpoint  = "localhost:4317"
	DefaultTracingTimeout   = 10 * time.Second
	DefaultTracingSampler   = "ratio"
	DefaultTracingRatio     = 1.0
	DefaultServiceName      = "swarmshield"
)

// Default returns a configuration with every default applied, including
// the boolean defaults that ApplyDefaults cannot infer from zero values.
func Default() *Config {
	cfg := &Config{}
	cfg.Evidence.Enabled = DefaultEvidenceEnabled
	cfg.Evidence.SQLite.WALMode = true
	cfg.Evidence.Recorder.HashContent = true
	cfg.Telemetry.Logging.RedactPII = true
	cfg.Telemetry.Metrics.Enabled = true
	cfg.Telemetry.Tracing.SampleRatio = DefaultTracingRatio
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets defaults for fields that have zero values. It is
// idempotent.
func ApplyDefaults(cfg *Config) {
	// Server
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}

	// Engine
	if cfg.Engine.MaxRulesPerWorkspace == 0 {
		cfg.Engine.MaxRulesPerWorkspace = DefaultMaxRulesPerWorkspace
	}
	if cfg.Engine.RegexTimeout == 0 {
		cfg.Engine.RegexTimeout = DefaultRegexTimeout
	}

	// Detection
	if cfg.Detection.Invalidation.Channel == "" {
		cfg.Detection.Invalidation.Channel = DefaultInvalidationChannel
	}

	// Rate limit
	if cfg.RateLimit.Backend == "" {
		cfg.RateLimit.Backend = DefaultRateLimitBackend
	}
	if cfg.RateLimit.KeyPrefix == "" {
		cfg.RateLimit.KeyPrefix = DefaultRateKeyPrefix
	}

	// Store
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = DefaultStoreSQLitePath
	}
	if cfg.Store.DebounceInterval == 0 {
		cfg.Store.DebounceInterval = DefaultDebounceInterval
	}

	// Evidence
	if cfg.Evidence.Backend == "" {
		cfg.Evidence.Backend = DefaultEvidenceBackend
	}
	if cfg.Evidence.SQLite.Path == "" {
		cfg.Evidence.SQLite.Path = DefaultEvidenceSQLitePath
	}
	if cfg.Evidence.SQLite.MaxOpenConns == 0 {
		cfg.Evidence.SQLite.MaxOpenConns = DefaultEvidenceMaxOpenConns
	}
	if cfg.Evidence.SQLite.BusyTimeout == 0 {
		cfg.Evidence.SQLite.BusyTimeout = DefaultEvidenceBusyTimeout
	}
	if cfg.Evidence.Recorder.AsyncBuffer == 0 {
		cfg.Evidence.Recorder.AsyncBuffer = DefaultRecorderAsyncBuffer
	}
	if cfg.Evidence.Recorder.WriteTimeout == 0 {
		cfg.Evidence.Recorder.WriteTimeout = DefaultRecorderWriteTimeout
	}
	if cfg.Evidence.Retention.RetentionDays == 0 {
		cfg.Evidence.Retention.RetentionDays = DefaultRetentionDays
	}
	if cfg.Evidence.Retention.PruneSchedule == "" {
		cfg.Evidence.Retention.PruneSchedule = DefaultRetentionSchedule
	}
	if cfg.Evidence.Retention.ArchivePath == "" {
		cfg.Evidence.Retention.ArchivePath = DefaultRetentionArchivePath
	}

	// Deliberation
	if cfg.Deliberation.Trigger == "" {
		cfg.Deliberation.Trigger = DefaultDeliberationTrigger
	}
	if cfg.Deliberation.QueueSize == 0 {
		cfg.Deliberation.QueueSize = DefaultDeliberationQueue
	}
	if cfg.Deliberation.Workers == 0 {
		cfg.Deliberation.Workers = DefaultDeliberationWorkers
	}
	if cfg.Deliberation.DeliveryTimeout == 0 {
		cfg.Deliberation.DeliveryTimeout = DefaultDeliveryTimeout
	}
	if cfg.Deliberation.Kafka.Topic == "" {
		cfg.Deliberation.Kafka.Topic = DefaultKafkaTopic
	}

	// Telemetry
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.DurationBuckets) == 0 {
		// Evaluations are expected well under the 500ms budget.
		cfg.Telemetry.Metrics.DurationBuckets = []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultServiceName
	}
}
