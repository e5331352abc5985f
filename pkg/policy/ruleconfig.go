package policy

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

const (
	// MaxWindowSeconds is the largest accepted rate limit window (one day).
	MaxWindowSeconds = 86400

	// MaxEventsCeiling is the largest accepted max_events value.
	MaxEventsCeiling = 1_000_000
)

// RuleConfig is the validated, typed configuration of a policy rule. Exactly
// one concrete type exists per RuleType.
type RuleConfig interface {
	RuleType() RuleType
}

// PatternMatchConfig references detection rules by id.
type PatternMatchConfig struct {
	DetectionRuleIDs []string
}

// RuleType implements RuleConfig.
func (PatternMatchConfig) RuleType() RuleType { return RuleTypePatternMatch }

// ListType selects blocklist or allowlist semantics.
type ListType string

const (
	ListTypeBlocklist ListType = "blocklist"
	ListTypeAllowlist ListType = "allowlist"
)

// ListMatchConfig compares one whitelisted event field against a list.
// Values are stored normalized.
type ListMatchConfig struct {
	ListType ListType
	Field    Field
	Values   map[string]struct{}
}

// RuleType implements RuleConfig.
func (ListMatchConfig) RuleType() RuleType { return RuleTypeListMatch }

// Contains reports whether the normalized value is in the list.
func (c ListMatchConfig) Contains(v string) bool {
	_, ok := c.Values[Normalize(v)]
	return ok
}

// PayloadSizeConfig bounds content and payload byte sizes. A nil limit is absent.
type PayloadSizeConfig struct {
	MaxContentBytes *int64
	MaxPayloadBytes *int64
}

// RuleType implements RuleConfig.
func (PayloadSizeConfig) RuleType() RuleType { return RuleTypePayloadSize }

// NoOp reports whether neither limit is set, in which case the rule never violates.
func (c PayloadSizeConfig) NoOp() bool {
	return c.MaxContentBytes == nil && c.MaxPayloadBytes == nil
}

// Scope selects the rate limit counting unit.
type Scope string

const (
	ScopeAgent     Scope = "agent"
	ScopeWorkspace Scope = "workspace"
)

// RateLimitConfig caps events per fixed window.
type RateLimitConfig struct {
	MaxEvents     int64
	WindowSeconds int64
	Per           Scope
}

// RuleType implements RuleConfig.
func (RateLimitConfig) RuleType() RuleType { return RuleTypeRateLimit }

// ParseRuleConfig validates an untrusted configuration document against the
// schema of the rule type and converts it into the typed variant. It is
// called once at load time so evaluators never look at raw documents.
func ParseRuleConfig(t RuleType, raw map[string]any) (RuleConfig, error) {
	switch t {
	case RuleTypePatternMatch:
		return parsePatternMatch(raw)
	case RuleTypeListMatch:
		return parseListMatch(raw)
	case RuleTypePayloadSize:
		return parsePayloadSize(raw)
	case RuleTypeRateLimit:
		return parseRateLimit(raw)
	default:
		return nil, configErr(t, "", ErrUnknownRuleType, "no evaluator for rule type")
	}
}

func parsePatternMatch(raw map[string]any) (RuleConfig, error) {
	v, ok := raw["detection_rule_ids"]
	if !ok || v == nil {
		return nil, configErr(RuleTypePatternMatch, "detection_rule_ids", ErrMissingField, "required")
	}
	items, ok := v.([]any)
	if !ok {
		return nil, configErr(RuleTypePatternMatch, "detection_rule_ids", nil, "must be a list, got %T", v)
	}
	ids := make([]string, 0, len(items))
	for i, item := range items {
		id, ok := idString(item)
		if !ok {
			return nil, configErr(RuleTypePatternMatch, "detection_rule_ids", nil, "entry %d is not an identifier", i)
		}
		ids = append(ids, id)
	}
	return PatternMatchConfig{DetectionRuleIDs: ids}, nil
}

func parseListMatch(raw map[string]any) (RuleConfig, error) {
	lt, _ := raw["list_type"].(string)
	listType := ListType(Normalize(lt))
	if listType != ListTypeBlocklist && listType != ListTypeAllowlist {
		return nil, configErr(RuleTypeListMatch, "list_type", nil, "unrecognized list type %q", lt)
	}

	f, _ := raw["field"].(string)
	field := Field(Normalize(f))
	if !field.Valid() {
		return nil, configErr(RuleTypeListMatch, "field", nil, "field %q is not inspectable", f)
	}

	v, ok := raw["values"]
	if !ok || v == nil {
		return nil, configErr(RuleTypeListMatch, "values", ErrMissingField, "required")
	}
	items, ok := v.([]any)
	if !ok {
		return nil, configErr(RuleTypeListMatch, "values", nil, "must be a list, got %T", v)
	}
	values := make(map[string]struct{}, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, configErr(RuleTypeListMatch, "values", nil, "entry %d is not a string", i)
		}
		if n := Normalize(s); n != "" {
			values[n] = struct{}{}
		}
	}

	return ListMatchConfig{ListType: listType, Field: field, Values: values}, nil
}

func parsePayloadSize(raw map[string]any) (RuleConfig, error) {
	var cfg PayloadSizeConfig
	for _, key := range []string{"max_content_bytes", "max_payload_bytes"} {
		v, present := raw[key]
		if !present || v == nil {
			continue
		}
		n, ok := toInt64(v)
		if !ok {
			return nil, configErr(RuleTypePayloadSize, key, nil, "must be an integer, got %T", v)
		}
		if n <= 0 {
			// Non-positive limits are treated as unset.
			continue
		}
		limit := n
		if key == "max_content_bytes" {
			cfg.MaxContentBytes = &limit
		} else {
			cfg.MaxPayloadBytes = &limit
		}
	}
	return cfg, nil
}

func parseRateLimit(raw map[string]any) (RuleConfig, error) {
	maxEvents, err := requiredPositive(raw, "max_events")
	if err != nil {
		return nil, err
	}
	window, err := requiredPositive(raw, "window_seconds")
	if err != nil {
		return nil, err
	}
	if window > MaxWindowSeconds {
		return nil, configErr(RuleTypeRateLimit, "window_seconds", ErrOutOfBounds, "%d exceeds ceiling %d", window, MaxWindowSeconds)
	}
	if maxEvents > MaxEventsCeiling {
		return nil, configErr(RuleTypeRateLimit, "max_events", ErrOutOfBounds, "%d exceeds ceiling %d", maxEvents, MaxEventsCeiling)
	}

	per := ScopeAgent
	if v, ok := raw["per"]; ok && v != nil {
		s, _ := v.(string)
		switch Scope(Normalize(s)) {
		case ScopeAgent:
		case ScopeWorkspace:
			per = ScopeWorkspace
		default:
			return nil, configErr(RuleTypeRateLimit, "per", nil, "unrecognized scope %v", v)
		}
	}

	return RateLimitConfig{MaxEvents: maxEvents, WindowSeconds: window, Per: per}, nil
}

func requiredPositive(raw map[string]any, key string) (int64, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return 0, configErr(RuleTypeRateLimit, key, ErrMissingField, "required")
	}
	n, ok := toInt64(v)
	if !ok {
		return 0, configErr(RuleTypeRateLimit, key, nil, "must be an integer, got %T", v)
	}
	if n <= 0 {
		return 0, configErr(RuleTypeRateLimit, key, ErrOutOfBounds, "must be positive, got %d", n)
	}
	return n, nil
}

// toInt64 accepts the integer shapes produced by encoding/json, yaml.v3 and
// database drivers. Fractional and non-numeric values are rejected.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || n >= math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

func idString(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		if id == "" {
			return "", false
		}
		return id, true
	default:
		n, ok := toInt64(v)
		if !ok {
			return "", false
		}
		return strconv.FormatInt(n, 10), true
	}
}

// Describe renders a typed config for logs.
func Describe(c RuleConfig) string {
	switch cfg := c.(type) {
	case PatternMatchConfig:
		return fmt.Sprintf("pattern_match(%d detection rules)", len(cfg.DetectionRuleIDs))
	case ListMatchConfig:
		return fmt.Sprintf("list_match(%s on %s, %d values)", cfg.ListType, cfg.Field, len(cfg.Values))
	case PayloadSizeConfig:
		return "payload_size"
	case RateLimitConfig:
		return fmt.Sprintf("rate_limit(%d per %ds per %s)", cfg.MaxEvents, cfg.WindowSeconds, cfg.Per)
	default:
		return "unknown"
	}
}
