package rulestore

import (
	"context"
	"errors"
	"log/slog"
)

// DirectorySync keeps a MemoryBackend in step with a rules file or
// directory and notifies dependents (detection cache, orchestrator) after
// every successful load. A failed load leaves the backend untouched.
type DirectorySync struct {
	path    string
	backend *MemoryBackend
	targets []func(context.Context) error
	logger  *slog.Logger
}

// NewDirectorySync creates a sync. Targets run in order after each load.
func NewDirectorySync(path string, backend *MemoryBackend, logger *slog.Logger, targets ...func(context.Context) error) *DirectorySync {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectorySync{
		path:    path,
		backend: backend,
		targets: targets,
		logger:  logger.With("component", "rulestore.sync"),
	}
}

// Sync loads the rules and refreshes every target.
func (s *DirectorySync) Sync(ctx context.Context) error {
	bundle, err := Load(s.path)
	if err != nil {
		s.logger.Error("rules not loaded, keeping previous rule set", "path", s.path, "error", err)
		return err
	}
	s.backend.Replace(bundle)
	s.logger.Info("rules loaded",
		"path", s.path,
		"files", len(bundle.Files),
		"policy_rules", len(bundle.PolicyRules),
		"detection_rules", len(bundle.DetectionRules))

	var errs []error
	for _, target := range s.targets {
		if err := target(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
