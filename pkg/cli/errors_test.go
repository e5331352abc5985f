package cli

import (
	"errors"
	"testing"
)

func TestConfigError(t *testing.T) {
	err := NewConfigError("output", "unsupported format")

	expected := "config error in output: unsupported format"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}

func TestCommandError(t *testing.T) {
	underlying := errors.New("rules directory missing")
	err := NewCommandError("run", underlying)

	expected := "command run failed: rules directory missing"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
	if !errors.Is(err, underlying) {
		t.Error("Expected errors.Is to reach the wrapped error")
	}
}

func TestExitError(t *testing.T) {
	tests := []struct {
		name string
		err  *ExitError
		want string
	}{
		{"code only", NewExitError(2, nil), "exit status 2"},
		{"with cause", NewExitError(1, errors.New("blocked")), "blocked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}

	wrapped := NewCommandError("evaluate", NewExitError(2, nil))
	var exitErr *ExitError
	if !errors.As(wrapped, &exitErr) || exitErr.Code != 2 {
		t.Errorf("Expected errors.As to find exit code 2, got %v", exitErr)
	}
}
