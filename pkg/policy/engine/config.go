package engine

import "fmt"

// Config contains configuration for the policy orchestrator.
type Config struct {
	// StopOnBlock ends evaluation at the first block violation. The verdict
	// is the same either way; evidence from lower-priority rules is lost.
	// Default: false (evaluate every rule for the fullest audit trail).
	StopOnBlock bool

	// MaxRulesPerWorkspace limits the enabled rules of one workspace. A
	// reload that finds more fails and the previous snapshot stays active.
	// Default: 500.
	MaxRulesPerWorkspace int
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() *Config {
	return &Config{
		StopOnBlock:          false,
		MaxRulesPerWorkspace: 500,
	}
}

// Validate validates the orchestrator configuration.
func (c *Config) Validate() error {
	if c.MaxRulesPerWorkspace <= 0 {
		return fmt.Errorf("%w: max rules per workspace must be positive", ErrInvalidConfig)
	}
	return nil
}

// WithStopOnBlock sets early exit on a block violation.
func (c *Config) WithStopOnBlock(enabled bool) *Config {
	c.StopOnBlock = enabled
	return c
}

// WithMaxRulesPerWorkspace sets the per-workspace rule limit.
func (c *Config) WithMaxRulesPerWorkspace(max int) *Config {
	c.MaxRulesPerWorkspace = max
	return c
}
