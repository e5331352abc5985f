package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swarmshield.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Expected defaults to validate, got %v", err)
	}
	if !cfg.Evidence.Enabled || !cfg.Evidence.Recorder.HashContent || !cfg.Telemetry.Logging.RedactPII {
		t.Error("Expected boolean defaults to be on")
	}
	if cfg.Engine.StopOnBlock {
		t.Error("Expected stop_on_block to default to false")
	}
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("Expected %s, got %s", DefaultListenAddress, cfg.Server.ListenAddress)
	}
}

func TestLoadConfig_FileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9000"
engine:
  stop_on_block: true
  regex_timeout: 250ms
evidence:
  backend: memory
  recorder:
    hash_content: false
deliberation:
  trigger: noop
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9000" {
		t.Errorf("Expected file listen address, got %s", cfg.Server.ListenAddress)
	}
	if !cfg.Engine.StopOnBlock || cfg.Engine.RegexTimeout != 250*time.Millisecond {
		t.Errorf("Expected engine overrides, got %+v", cfg.Engine)
	}
	if cfg.Evidence.Recorder.HashContent {
		t.Error("Expected explicit hash_content: false to be kept")
	}
	if !cfg.Evidence.Enabled {
		t.Error("Expected evidence.enabled default to survive a partial file")
	}
	if cfg.Server.ReadTimeout != DefaultReadTimeout {
		t.Errorf("Expected default read timeout, got %s", cfg.Server.ReadTimeout)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
	if _, err := LoadConfig(writeConfig(t, "server: [broken")); err == nil {
		t.Error("Expected error for malformed YAML")
	}
	_, err := LoadConfig(writeConfig(t, "rate_limit:\n  backend: etcd\n"))
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"redis backend without address", func(c *Config) { c.RateLimit.Backend = "redis" }, "redis.address"},
		{"invalidation without address", func(c *Config) { c.Detection.Invalidation.Enabled = true }, "redis.address"},
		{"unknown store backend", func(c *Config) { c.Store.Backend = "git" }, "store.backend"},
		{"watch with sqlite store", func(c *Config) { c.Store.Backend = "sqlite"; c.Store.Watch = true }, "store.watch"},
		{"kafka without brokers", func(c *Config) { c.Deliberation.Trigger = "kafka" }, "deliberation.kafka.brokers"},
		{"unknown trigger", func(c *Config) { c.Deliberation.Trigger = "email" }, "deliberation.trigger"},
		{"bad cron", func(c *Config) { c.Evidence.Retention.PruneSchedule = "every day" }, "evidence.retention.prune_schedule"},
		{"negative retention", func(c *Config) { c.Evidence.Retention.RetentionDays = -1 }, "evidence.retention.retention_days"},
		{"regex timeout above budget", func(c *Config) { c.Engine.RegexTimeout = time.Second }, "engine.regex_timeout"},
		{"bad log level", func(c *Config) { c.Telemetry.Logging.Level = "verbose" }, "telemetry.logging.level"},
		{"bad redact pattern", func(c *Config) {
			c.Telemetry.Logging.RedactPatterns = []RedactPattern{{Name: "x", Pattern: "("}}
		}, "telemetry.logging.redact_patterns[0].pattern"},
		{"unsorted buckets", func(c *Config) { c.Telemetry.Metrics.DurationBuckets = []float64{0.1, 0.01} }, "telemetry.metrics.duration_buckets"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := Validate(cfg)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("Expected error on %s, got %v", tt.field, verr)
			}
		})
	}
}

func TestValidate_DisabledEvidenceSkipsChecks(t *testing.T) {
	cfg := Default()
	cfg.Evidence.Enabled = false
	cfg.Evidence.Backend = "postgres"
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected disabled evidence to skip backend checks, got %v", err)
	}
}

func TestValidationError_Message(t *testing.T) {
	err := ValidationError{Errors: []FieldError{
		{Field: "a", Message: "bad"},
		{Field: "b", Message: "worse"},
	}}
	msg := err.Error()
	if !strings.Contains(msg, "2 errors") || !strings.Contains(msg, "a: bad") {
		t.Errorf("Expected both errors in message, got %q", msg)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, "server:\n  listen_address: \"127.0.0.1:7000\"\n")

	t.Setenv("SWARMSHIELD_SERVER_LISTEN_ADDRESS", "0.0.0.0:8443")
	t.Setenv("SWARMSHIELD_ENGINE_STOP_ON_BLOCK", "true")
	t.Setenv("SWARMSHIELD_ENGINE_REGEX_TIMEOUT", "300ms")
	t.Setenv("SWARMSHIELD_DELIBERATION_TRIGGER", "kafka")
	t.Setenv("SWARMSHIELD_DELIBERATION_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("SWARMSHIELD_TELEMETRY_LOGGING_LEVEL", "debug")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides failed: %v", err)
	}
	if cfg.Server.ListenAddress != "0.0.0.0:8443" {
		t.Errorf("Expected env to win over file, got %s", cfg.Server.ListenAddress)
	}
	if !cfg.Engine.StopOnBlock || cfg.Engine.RegexTimeout != 300*time.Millisecond {
		t.Errorf("Expected engine env overrides, got %+v", cfg.Engine)
	}
	if len(cfg.Deliberation.Kafka.Brokers) != 2 || cfg.Deliberation.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Expected 2 trimmed brokers, got %v", cfg.Deliberation.Kafka.Brokers)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("Expected debug level, got %s", cfg.Telemetry.Logging.Level)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidValue(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SWARMSHIELD_DELIBERATION_WORKERS", "many")

	_, err := LoadConfigWithEnvOverrides("")
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if verr.Errors[0].Field != "SWARMSHIELD_DELIBERATION_WORKERS" {
		t.Errorf("Expected error on the variable name, got %s", verr.Errors[0].Field)
	}
}

func TestLoadConfigWithEnvOverrides_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SWARMSHIELD_STORE_PATH=/etc/swarmshield/rules\n"), 0o600); err != nil {
		t.Fatalf("Failed to write .env: %v", err)
	}
	// Registers cleanup of the variable godotenv sets.
	t.Setenv("SWARMSHIELD_STORE_PATH", "")
	os.Unsetenv("SWARMSHIELD_STORE_PATH")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides failed: %v", err)
	}
	if cfg.Store.Path != "/etc/swarmshield/rules" {
		t.Errorf("Expected store path from .env, got %s", cfg.Store.Path)
	}
}

func TestSingleton(t *testing.T) {
	defer SetConfig(nil)

	SetConfig(nil)
	if GetConfig() != nil {
		t.Fatal("Expected nil config")
	}
	defer func() {
		if recover() == nil {
			t.Error("Expected MustGetConfig to panic when uninitialized")
		}
	}()

	cfg := Default()
	SetConfig(cfg)
	if MustGetConfig() != cfg {
		t.Error("Expected MustGetConfig to return the stored config")
	}

	SetConfig(nil)
	MustGetConfig()
}

func TestReloadConfig_KeepsCurrentOnError(t *testing.T) {
	t.Chdir(t.TempDir())
	defer SetConfig(nil)

	cfg := Default()
	SetConfig(cfg)
	if err := ReloadConfig(writeConfig(t, "store:\n  backend: git\n")); err == nil {
		t.Fatal("Expected reload error")
	}
	if GetConfig() != cfg {
		t.Error("Expected previous config to be kept")
	}
}
