// Package config loads and validates SwarmShield configuration.
//
// Configuration comes from a YAML file with environment variable
// overrides:
//
//	cfg, err := config.LoadConfig("swarmshield.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("swarmshield.yaml")
//
// # Environment Variable Overrides
//
// Variables follow the convention SWARMSHIELD_SECTION_FIELD:
//
//   - SWARMSHIELD_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - SWARMSHIELD_REDIS_ADDRESS overrides redis.address
//   - SWARMSHIELD_DELIBERATION_KAFKA_BROKERS takes a comma-separated list
//   - SWARMSHIELD_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// A .env file in the working directory is loaded before overrides are
// applied. Variables already present in the environment are not replaced
// by it.
//
// # Configuration Precedence
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast, reporting every invalid field)
//
// # Singleton
//
//	if err := config.Initialize("swarmshield.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.GetConfig()
//
// Prefer passing *Config explicitly; the singleton exists for code that
// cannot reach the CLI's loaded configuration.
package config
