package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SWARMSHIELD_"

// LoadConfig loads configuration from a YAML file, applies defaults and
// validates it. An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		// Unmarshalling over the defaults keeps boolean defaults for
		// fields the file does not mention.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
		ApplyDefaults(cfg)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration and applies environment
// overrides named SWARMSHIELD_SECTION_FIELD. A .env file in the working
// directory is loaded first; variables already set in the environment win
// over it.
//
// The loading sequence is:
//  1. Load .env (if present)
//  2. Load YAML from file over the defaults
//  3. Apply environment overrides
//  4. Validate
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

// envSetter parses a raw environment value into a field.
type envSetter func(raw string) error

func stringVar(dst *string) envSetter {
	return func(raw string) error { *dst = raw; return nil }
}

func intVar(dst *int) envSetter {
	return func(raw string) error {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func int64Var(dst *int64) envSetter {
	return func(raw string) error {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func boolVar(dst *bool) envSetter {
	return func(raw string) error {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func float64Var(dst *float64) envSetter {
	return func(raw string) error {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func durationVar(dst *time.Duration) envSetter {
	return func(raw string) error {
		v, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func listVar(dst *[]string) envSetter {
	return func(raw string) error {
		var out []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*dst = out
		return nil
	}
}

// envBindings maps variable names (without prefix) to fields.
func envBindings(cfg *Config) map[string]envSetter {
	return map[string]envSetter{
		"SERVER_LISTEN_ADDRESS":   stringVar(&cfg.Server.ListenAddress),
		"SERVER_READ_TIMEOUT":     durationVar(&cfg.Server.ReadTimeout),
		"SERVER_WRITE_TIMEOUT":    durationVar(&cfg.Server.WriteTimeout),
		"SERVER_SHUTDOWN_TIMEOUT": durationVar(&cfg.Server.ShutdownTimeout),
		"SERVER_MAX_BODY_BYTES":   int64Var(&cfg.Server.MaxBodyBytes),

		"ENGINE_STOP_ON_BLOCK":           boolVar(&cfg.Engine.StopOnBlock),
		"ENGINE_MAX_RULES_PER_WORKSPACE": intVar(&cfg.Engine.MaxRulesPerWorkspace),
		"ENGINE_REGEX_TIMEOUT":           durationVar(&cfg.Engine.RegexTimeout),

		"DETECTION_REFRESH_INTERVAL":     durationVar(&cfg.Detection.RefreshInterval),
		"DETECTION_INVALIDATION_ENABLED": boolVar(&cfg.Detection.Invalidation.Enabled),
		"DETECTION_INVALIDATION_CHANNEL": stringVar(&cfg.Detection.Invalidation.Channel),

		"RATE_LIMIT_BACKEND":    stringVar(&cfg.RateLimit.Backend),
		"RATE_LIMIT_KEY_PREFIX": stringVar(&cfg.RateLimit.KeyPrefix),

		"STORE_BACKEND":     stringVar(&cfg.Store.Backend),
		"STORE_PATH":        stringVar(&cfg.Store.Path),
		"STORE_SQLITE_PATH": stringVar(&cfg.Store.SQLitePath),
		"STORE_WATCH":       boolVar(&cfg.Store.Watch),

		"EVIDENCE_ENABLED":                  boolVar(&cfg.Evidence.Enabled),
		"EVIDENCE_BACKEND":                  stringVar(&cfg.Evidence.Backend),
		"EVIDENCE_SQLITE_PATH":              stringVar(&cfg.Evidence.SQLite.Path),
		"EVIDENCE_RECORDER_ASYNC_BUFFER":    intVar(&cfg.Evidence.Recorder.AsyncBuffer),
		"EVIDENCE_RETENTION_RETENTION_DAYS": intVar(&cfg.Evidence.Retention.RetentionDays),
		"EVIDENCE_RETENTION_PRUNE_SCHEDULE": stringVar(&cfg.Evidence.Retention.PruneSchedule),
		"EVIDENCE_RETENTION_MAX_RECORDS":    int64Var(&cfg.Evidence.Retention.MaxRecords),

		"DELIBERATION_TRIGGER":       stringVar(&cfg.Deliberation.Trigger),
		"DELIBERATION_QUEUE_SIZE":    intVar(&cfg.Deliberation.QueueSize),
		"DELIBERATION_WORKERS":       intVar(&cfg.Deliberation.Workers),
		"DELIBERATION_KAFKA_BROKERS": listVar(&cfg.Deliberation.Kafka.Brokers),
		"DELIBERATION_KAFKA_TOPIC":   stringVar(&cfg.Deliberation.Kafka.Topic),

		"REDIS_ADDRESS":  stringVar(&cfg.Redis.Address),
		"REDIS_PASSWORD": stringVar(&cfg.Redis.Password),
		"REDIS_DB":       intVar(&cfg.Redis.DB),

		"TELEMETRY_LOGGING_LEVEL":      stringVar(&cfg.Telemetry.Logging.Level),
		"TELEMETRY_LOGGING_FORMAT":     stringVar(&cfg.Telemetry.Logging.Format),
		"TELEMETRY_LOGGING_REDACT_PII": boolVar(&cfg.Telemetry.Logging.RedactPII),
		"TELEMETRY_METRICS_ENABLED":    boolVar(&cfg.Telemetry.Metrics.Enabled),

		"TELEMETRY_TRACING_ENABLED":      boolVar(&cfg.Telemetry.Tracing.Enabled),
		"TELEMETRY_TRACING_ENDPOINT":     stringVar(&cfg.Telemetry.Tracing.Endpoint),
		"TELEMETRY_TRACING_SAMPLE_RATIO": float64Var(&cfg.Telemetry.Tracing.SampleRatio),
	}
}

// applyEnvOverrides applies SWARMSHIELD_* variables. Unparseable values
// are reported instead of silently ignored.
func applyEnvOverrides(cfg *Config) error {
	var errs []FieldError
	for name, set := range envBindings(cfg) {
		raw, ok := os.LookupEnv(EnvPrefix + name)
		if !ok || raw == "" {
			continue
		}
		if err := set(raw); err != nil {
			errs = append(errs, FieldError{Field: EnvPrefix + name, Message: err.Error()})
		}
	}
	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
