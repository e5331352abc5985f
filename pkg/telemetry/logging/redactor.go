package logging

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/obutuz/swarmshield-sub004/pkg/config"
)

// Redactor rewrites secrets found inside string values.
type Redactor struct {
	patterns []*redactPattern
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

var defaultPatterns = []config.RedactPattern{
	{Name: "bearer_token", Pattern: `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, Replacement: "Bearer ***"},
	{Name: "api_key", Pattern: `\b(sk-[a-zA-Z0-9]{8,}|AKIA[0-9A-Z]{16})\b`, Replacement: "***"},
	{Name: "password", Pattern: `(?i)(password|passwd|pwd)\s*[:=]\s*\S+`, Replacement: "$1=***"},
	{Name: "email", Pattern: `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, Replacement: "***@***"},
}

// NewRedactor compiles the built-in patterns plus custom ones.
func NewRedactor(custom []config.RedactPattern) (*Redactor, error) {
	r := &Redactor{}
	for _, p := range append(append([]config.RedactPattern(nil), defaultPatterns...), custom...) {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid redact pattern %q: %w", p.Name, err)
		}
		r.patterns = append(r.patterns, &redactPattern{name: p.Name, regex: re, replacement: p.Replacement})
	}
	return r, nil
}

// RedactString applies every pattern in order.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// sensitiveKeys are matched as substrings of lowercased attribute keys.
var sensitiveKeys = []string{
	"password", "passwd", "secret", "token", "api_key", "apikey",
	"authorization", "private_key", "content",
}

// IsSensitiveKey reports whether values under key must be masked.
// Keys ending in _hash or _bytes are metadata and are kept.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	if strings.HasSuffix(lower, "_hash") || strings.HasSuffix(lower, "_bytes") || strings.HasSuffix(lower, "_size") {
		return false
	}
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// MaskValue renders a sensitive value. Credential strings keep a four byte
// prefix when long enough that the prefix reveals little; content is
// always fully masked.
func MaskValue(key string, v slog.Value) string {
	if v.Kind() != slog.KindString || strings.Contains(strings.ToLower(key), "content") {
		return "***"
	}
	s := v.String()
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "***"
}
