package policy

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownRuleType indicates a rule type no evaluator handles.
	ErrUnknownRuleType = errors.New("unknown rule type")

	// ErrMissingField indicates a required configuration field is absent.
	ErrMissingField = errors.New("missing required field")

	// ErrOutOfBounds indicates a numeric configuration value outside the accepted range.
	ErrOutOfBounds = errors.New("value out of bounds")
)

// ConfigError describes why a rule's configuration document was rejected.
// Rejected rules are never evaluated as violations.
type ConfigError struct {
	RuleType RuleType
	Field    string
	Message  string
	Cause    error
}

// Error returns the error message.
func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s config: %s", e.RuleType, e.Message)
	}
	return fmt.Sprintf("%s config field %q: %s", e.RuleType, e.Field, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

func configErr(t RuleType, field string, cause error, format string, args ...any) *ConfigError {
	return &ConfigError{
		RuleType: t,
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
		Cause:    cause,
	}
}
