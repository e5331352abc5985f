package rulestore

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/obutuz/swarmshield-sub004/pkg/policy"
	"github.com/obutuz/swarmshield-sub004/pkg/policy/detection"
	"github.com/obutuz/swarmshield-sub004/pkg/policy/engine"
)

// ruleFile is the on-disk layout of one rules file. Each file belongs to
// exactly one workspace.
type ruleFile struct {
	Workspace      string           `yaml:"workspace"`
	PolicyRules    []policyRuleYAML `yaml:"policy_rules"`
	DetectionRules []detectionYAML  `yaml:"detection_rules"`
}

type policyRuleYAML struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	RuleType string         `yaml:"rule_type"`
	Action   string         `yaml:"action"`
	Priority *int           `yaml:"priority"`
	Enabled  *bool          `yaml:"enabled"`
	Config   map[string]any `yaml:"config"`
	Filters  policy.Filters `yaml:"filters"`
}

type detectionYAML struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	DetectionType string   `yaml:"detection_type"`
	Pattern       string   `yaml:"pattern"`
	Keywords      []string `yaml:"keywords"`
	Severity      string   `yaml:"severity"`
	Category      string   `yaml:"category"`
	Enabled       *bool    `yaml:"enabled"`
}

// Bundle is a complete set of rules loaded from files.
type Bundle struct {
	PolicyRules    []*policy.PolicyRule
	DetectionRules []*detection.Rule
	Files          []string
}

// LoadFile parses one rules file.
func LoadFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	b.Files = []string{path}
	return b, nil
}

// Parse decodes a rules document.
//
// Omitted policy rule ids are derived from workspace and name, so the id (and
// with it any rate counter keyed by it) is stable across reloads. Omitted
// enabled flags default to true and omitted priorities to the rule type's
// suggested priority.
func Parse(data []byte) (*Bundle, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if f.Workspace == "" {
		return nil, fmt.Errorf("%w: workspace is required", ErrInvalidRule)
	}

	b := &Bundle{}
	for i, y := range f.PolicyRules {
		r := &policy.PolicyRule{
			ID:          y.ID,
			WorkspaceID: f.Workspace,
			Name:        y.Name,
			RuleType:    policy.RuleType(policy.Normalize(y.RuleType)),
			Action:      policy.Action(policy.Normalize(y.Action)),
			Enabled:     y.Enabled == nil || *y.Enabled,
			Config:      y.Config,
			Filters:     y.Filters,
		}
		if r.ID == "" {
			r.ID = f.Workspace + "/" + y.Name
		}
		if y.Priority != nil {
			r.Priority = *y.Priority
		} else {
			r.Priority = engine.SuggestedPriority(r.RuleType)
		}
		if err := validatePolicyRule(r); err != nil {
			return nil, fmt.Errorf("policy_rules[%d]: %w", i, err)
		}
		b.PolicyRules = append(b.PolicyRules, r)
	}

	for i, y := range f.DetectionRules {
		r := &detection.Rule{
			ID:            y.ID,
			WorkspaceID:   f.Workspace,
			Name:          y.Name,
			DetectionType: detection.DetectionType(policy.Normalize(y.DetectionType)),
			Pattern:       y.Pattern,
			Keywords:      y.Keywords,
			Severity:      y.Severity,
			Category:      y.Category,
			Enabled:       y.Enabled == nil || *y.Enabled,
		}
		if err := validateDetectionRule(r); err != nil {
			return nil, fmt.Errorf("detection_rules[%d]: %w", i, err)
		}
		b.DetectionRules = append(b.DetectionRules, r)
	}
	return b, nil
}

// LoadDirectory loads every .yaml and .yml file under dir. Hidden files and
// directories are skipped. Policy rule names must be unique per workspace
// across all files.
func LoadDirectory(dir string) (*Bundle, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && isRuleFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(paths)

	out := &Bundle{}
	names := make(map[string]string)
	for _, p := range paths {
		b, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		for _, r := range b.PolicyRules {
			key := r.WorkspaceID + "\x00" + r.Name
			if prev, dup := names[key]; dup {
				return nil, fmt.Errorf("%w: policy rule %q in workspace %q defined in both %s and %s",
					ErrInvalidRule, r.Name, r.WorkspaceID, prev, p)
			}
			names[key] = p
		}
		out.PolicyRules = append(out.PolicyRules, b.PolicyRules...)
		out.DetectionRules = append(out.DetectionRules, b.DetectionRules...)
		out.Files = append(out.Files, p)
	}
	return out, nil
}

// Load reads a single file or a directory.
func Load(path string) (*Bundle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return LoadDirectory(path)
	}
	return LoadFile(path)
}

// Seed saves every rule of the bundle into a backend.
func Seed(ctx context.Context, backend Backend, bundle *Bundle) error {
	for _, r := range bundle.DetectionRules {
		if err := backend.SaveDetectionRule(ctx, r); err != nil {
			return fmt.Errorf("failed to save detection rule %s: %w", r.ID, err)
		}
	}
	for _, r := range bundle.PolicyRules {
		if err := backend.SavePolicyRule(ctx, r); err != nil {
			return fmt.Errorf("failed to save policy rule %s: %w", r.Name, err)
		}
	}
	return nil
}

func isRuleFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
