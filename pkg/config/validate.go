package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateDetection(cfg)...)
	errs = append(errs, validateRateLimit(cfg)...)
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateEvidence(&cfg.Evidence)...)
	errs = append(errs, validateDeliberation(&cfg.Deliberation)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "read timeout must be positive"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "write timeout must be positive"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.idle_timeout", Message: "idle timeout must be positive"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.shutdown_timeout", Message: "shutdown timeout must be positive"})
	}
	if cfg.MaxBodyBytes <= 0 {
		errs = append(errs, FieldError{Field: "server.max_body_bytes", Message: "max body bytes must be positive"})
	}

	return errs
}

func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError

	if cfg.RegexTimeout <= 0 {
		errs = append(errs, FieldError{Field: "engine.regex_timeout", Message: "regex timeout must be positive"})
	}
	if cfg.MaxRulesPerWorkspace <= 0 {
		errs = append(errs, FieldError{Field: "engine.max_rules_per_workspace", Message: "max rules per workspace must be positive"})
	}

	return errs
}

func validateDetection(cfg *Config) []FieldError {
	var errs []FieldError

	if cfg.Detection.RefreshInterval < 0 {
		errs = append(errs, FieldError{Field: "detection.refresh_interval", Message: "refresh interval must be non-negative"})
	}
	if cfg.Detection.Invalidation.Enabled {
		if cfg.Redis.Address == "" {
			errs = append(errs, FieldError{Field: "redis.address", Message: "redis address is required when detection invalidation is enabled"})
		}
		if cfg.Detection.Invalidation.Channel == "" {
			errs = append(errs, FieldError{Field: "detection.invalidation.channel", Message: "channel is required"})
		}
	}

	return errs
}

func validateRateLimit(cfg *Config) []FieldError {
	var errs []FieldError

	switch cfg.RateLimit.Backend {
	case "memory":
	case "redis":
		if cfg.Redis.Address == "" {
			errs = append(errs, FieldError{Field: "redis.address", Message: "redis address is required for the redis rate limit backend"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "rate_limit.backend",
			Message: fmt.Sprintf("invalid backend %q (must be memory or redis)", cfg.RateLimit.Backend),
		})
	}
	if cfg.Redis.DB < 0 {
		errs = append(errs, FieldError{Field: "redis.db", Message: "db must be non-negative"})
	}

	return errs
}

func validateStore(cfg *StoreConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "yaml":
		if cfg.Path == "" {
			errs = append(errs, FieldError{Field: "store.path", Message: "path is required for the yaml backend"})
		}
	case "sqlite":
		if cfg.SQLitePath == "" {
			errs = append(errs, FieldError{Field: "store.sqlite_path", Message: "sqlite path is required for the sqlite backend"})
		}
		if cfg.Watch {
			errs = append(errs, FieldError{Field: "store.watch", Message: "watch is only supported by the yaml backend"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "store.backend",
			Message: fmt.Sprintf("invalid backend %q (must be yaml or sqlite)", cfg.Backend),
		})
	}
	if cfg.DebounceInterval < 0 {
		errs = append(errs, FieldError{Field: "store.debounce_interval", Message: "debounce interval must be non-negative"})
	}

	return errs
}

func validateEvidence(cfg *EvidenceConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "evidence.sqlite.path", Message: "path is required for the sqlite backend"})
		}
		if cfg.SQLite.MaxOpenConns <= 0 {
			errs = append(errs, FieldError{Field: "evidence.sqlite.max_open_conns", Message: "max open conns must be positive"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "evidence.backend",
			Message: fmt.Sprintf("invalid backend %q (must be sqlite or memory)", cfg.Backend),
		})
	}

	if cfg.Recorder.AsyncBuffer <= 0 {
		errs = append(errs, FieldError{Field: "evidence.recorder.async_buffer", Message: "async buffer must be positive"})
	}
	if cfg.Recorder.WriteTimeout <= 0 {
		errs = append(errs, FieldError{Field: "evidence.recorder.write_timeout", Message: "write timeout must be positive"})
	}

	if cfg.Retention.RetentionDays < 0 {
		errs = append(errs, FieldError{Field: "evidence.retention.retention_days", Message: "retention days must be non-negative"})
	}
	if cfg.Retention.MaxRecords < 0 {
		errs = append(errs, FieldError{Field: "evidence.retention.max_records", Message: "max records must be non-negative"})
	}
	if _, err := cron.ParseStandard(cfg.Retention.PruneSchedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "evidence.retention.prune_schedule",
			Message: fmt.Sprintf("invalid cron expression: %v", err),
		})
	}
	if cfg.Retention.ArchiveBeforeDelete && cfg.Retention.ArchivePath == "" {
		errs = append(errs, FieldError{Field: "evidence.retention.archive_path", Message: "archive path is required when archive_before_delete is set"})
	}

	return errs
}

func validateDeliberation(cfg *DeliberationConfig) []FieldError {
	var errs []FieldError

	switch cfg.Trigger {
	case "noop", "log":
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			errs = append(errs, FieldError{Field: "deliberation.kafka.brokers", Message: "at least one broker is required for the kafka trigger"})
		}
		if cfg.Kafka.Topic == "" {
			errs = append(errs, FieldError{Field: "deliberation.kafka.topic", Message: "topic is required for the kafka trigger"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "deliberation.trigger",
			Message: fmt.Sprintf("invalid trigger %q (must be noop, log or kafka)", cfg.Trigger),
		})
	}
	if cfg.QueueSize <= 0 {
		errs = append(errs, FieldError{Field: "deliberation.queue_size", Message: "queue size must be positive"})
	}
	if cfg.Workers <= 0 {
		errs = append(errs, FieldError{Field: "deliberation.workers", Message: "workers must be positive"})
	}
	if cfg.DeliveryTimeout <= 0 {
		errs = append(errs, FieldError{Field: "deliberation.delivery_timeout", Message: "delivery timeout must be positive"})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be debug, info, warn or error)", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be json or text)", cfg.Logging.Format),
		})
	}

	for i, p := range cfg.Logging.RedactPatterns {
		prefix := fmt.Sprintf("telemetry.logging.redact_patterns[%d]", i)
		if p.Name == "" {
			errs = append(errs, FieldError{Field: prefix + ".name", Message: "name is required"})
		}
		if _, err := regexp.Compile(p.Pattern); err != nil || p.Pattern == "" {
			errs = append(errs, FieldError{Field: prefix + ".pattern", Message: "pattern must be a valid regular expression"})
		}
	}

	if cfg.Metrics.Enabled {
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "metrics path must start with /"})
		}
		for i := 1; i < len(cfg.Metrics.DurationBuckets); i++ {
			if cfg.Metrics.DurationBuckets[i] <= cfg.Metrics.DurationBuckets[i-1] {
				errs = append(errs, FieldError{Field: "telemetry.metrics.duration_buckets", Message: "buckets must be strictly increasing"})
				break
			}
		}
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
		}
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q (must be always, never or ratio)", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "sample ratio must be between 0 and 1"})
		}
	}

	return errs
}
