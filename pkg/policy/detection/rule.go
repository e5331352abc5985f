package detection

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DetectionType selects how a detection rule matches content.
type DetectionType string

const (
	TypeRegex   DetectionType = "regex"
	TypeKeyword DetectionType = "keyword"

	// TypeSemantic rules are judged by downstream deliberation and never
	// match in the synchronous path.
	TypeSemantic DetectionType = "semantic"
)

// Rule is a named matcher referenced by pattern_match policy rules.
type Rule struct {
	ID            string        `json:"id" yaml:"id"`
	WorkspaceID   string        `json:"workspace_id" yaml:"workspace_id"`
	Name          string        `json:"name" yaml:"name"`
	DetectionType DetectionType `json:"detection_type" yaml:"detection_type"`
	Pattern       string        `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Keywords      []string      `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Severity      string        `json:"severity,omitempty" yaml:"severity,omitempty"`
	Category      string        `json:"category,omitempty" yaml:"category,omitempty"`
	Enabled       bool          `json:"enabled" yaml:"enabled"`
	UpdatedAt     time.Time     `json:"updated_at,omitempty" yaml:"-"`
}

// Compiled is an immutable, ready-to-match form of a Rule held by the cache.
// Regex patterns are compiled case-insensitively once per refresh.
type Compiled struct {
	Rule

	// Regexp is set for regex rules whose pattern compiled.
	Regexp *regexp.Regexp

	// CompileErr is set for regex rules whose pattern did not compile.
	CompileErr error

	// LowerKeywords holds the non-empty keywords lower-cased.
	LowerKeywords []string
}

// Compile prepares a rule for matching. It never fails; problems are kept on
// the result so the rule evaluates as non-matching with a warning.
func Compile(r Rule) *Compiled {
	c := &Compiled{Rule: r}
	switch r.DetectionType {
	case TypeRegex:
		if r.Pattern == "" {
			c.CompileErr = fmt.Errorf("empty pattern")
			break
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			c.CompileErr = err
			break
		}
		c.Regexp = re
	case TypeKeyword:
		for _, kw := range r.Keywords {
			if kw = strings.ToLower(kw); kw != "" {
				c.LowerKeywords = append(c.LowerKeywords, kw)
			}
		}
	}
	return c
}

// TruncatePattern shortens a pattern for log output.
func TruncatePattern(p string, max int) string {
	if max <= 0 || len(p) <= max {
		return p
	}
	return p[:max] + "..."
}
