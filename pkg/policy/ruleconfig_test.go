package policy

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestParseRuleConfig_Valid(t *testing.T) {
	tests := []struct {
		name  string
		typ   RuleType
		raw   map[string]any
		check func(t *testing.T, c RuleConfig)
	}{
		{
			name: "pattern match with mixed ids",
			typ:  RuleTypePatternMatch,
			raw:  map[string]any{"detection_rule_ids": []any{"aws-key", float64(7), int64(9)}},
			check: func(t *testing.T, c RuleConfig) {
				ids := c.(PatternMatchConfig).DetectionRuleIDs
				if strings.Join(ids, ",") != "aws-key,7,9" {
					t.Errorf("Expected aws-key,7,9, got %v", ids)
				}
			},
		},
		{
			name: "pattern match empty list",
			typ:  RuleTypePatternMatch,
			raw:  map[string]any{"detection_rule_ids": []any{}},
			check: func(t *testing.T, c RuleConfig) {
				if len(c.(PatternMatchConfig).DetectionRuleIDs) != 0 {
					t.Error("Expected no ids")
				}
			},
		},
		{
			name: "list match normalizes",
			typ:  RuleTypeListMatch,
			raw:  map[string]any{"list_type": "Blocklist", "field": " AGENT_NAME", "values": []any{" Evil-Bot ", "", "x"}},
			check: func(t *testing.T, c RuleConfig) {
				cfg := c.(ListMatchConfig)
				if cfg.ListType != ListTypeBlocklist || cfg.Field != FieldAgentName {
					t.Errorf("Expected blocklist on agent_name, got %s on %s", cfg.ListType, cfg.Field)
				}
				if len(cfg.Values) != 2 || !cfg.Contains("EVIL-BOT") {
					t.Errorf("Expected 2 normalized values including evil-bot, got %v", cfg.Values)
				}
			},
		},
		{
			name: "payload size ignores non-positive",
			typ:  RuleTypePayloadSize,
			raw:  map[string]any{"max_content_bytes": 1024, "max_payload_bytes": 0},
			check: func(t *testing.T, c RuleConfig) {
				cfg := c.(PayloadSizeConfig)
				if cfg.MaxContentBytes == nil || *cfg.MaxContentBytes != 1024 {
					t.Errorf("Expected content limit 1024, got %v", cfg.MaxContentBytes)
				}
				if cfg.MaxPayloadBytes != nil {
					t.Error("Expected zero payload limit to be unset")
				}
			},
		},
		{
			name: "payload size without limits is a no-op",
			typ:  RuleTypePayloadSize,
			raw:  nil,
			check: func(t *testing.T, c RuleConfig) {
				if !c.(PayloadSizeConfig).NoOp() {
					t.Error("Expected NoOp")
				}
			},
		},
		{
			name: "rate limit defaults to agent scope",
			typ:  RuleTypeRateLimit,
			raw:  map[string]any{"max_events": json.Number("100"), "window_seconds": 60.0},
			check: func(t *testing.T, c RuleConfig) {
				cfg := c.(RateLimitConfig)
				if cfg.MaxEvents != 100 || cfg.WindowSeconds != 60 || cfg.Per != ScopeAgent {
					t.Errorf("Expected 100 per 60s per agent, got %+v", cfg)
				}
			},
		},
		{
			name: "rate limit at ceilings",
			typ:  RuleTypeRateLimit,
			raw:  map[string]any{"max_events": MaxEventsCeiling, "window_seconds": MaxWindowSeconds, "per": "Workspace"},
			check: func(t *testing.T, c RuleConfig) {
				if c.(RateLimitConfig).Per != ScopeWorkspace {
					t.Error("Expected workspace scope")
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseRuleConfig(tt.typ, tt.raw)
			if err != nil {
				t.Fatalf("Expected valid config, got %v", err)
			}
			if c.RuleType() != tt.typ {
				t.Errorf("Expected %s variant, got %s", tt.typ, c.RuleType())
			}
			tt.check(t, c)
		})
	}
}

func TestParseRuleConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		typ   RuleType
		raw   map[string]any
		field string
		is    error
	}{
		{"unknown type", "geo", nil, "", ErrUnknownRuleType},
		{"pattern ids missing", RuleTypePatternMatch, map[string]any{}, "detection_rule_ids", ErrMissingField},
		{"pattern ids not a list", RuleTypePatternMatch, map[string]any{"detection_rule_ids": "aws"}, "detection_rule_ids", nil},
		{"pattern empty id", RuleTypePatternMatch, map[string]any{"detection_rule_ids": []any{""}}, "detection_rule_ids", nil},
		{"list bad type", RuleTypeListMatch, map[string]any{"list_type": "greylist", "field": "content", "values": []any{}}, "list_type", nil},
		{"list field not inspectable", RuleTypeListMatch, map[string]any{"list_type": "allowlist", "field": "payload", "values": []any{}}, "field", nil},
		{"list values missing", RuleTypeListMatch, map[string]any{"list_type": "allowlist", "field": "content"}, "values", ErrMissingField},
		{"list non-string value", RuleTypeListMatch, map[string]any{"list_type": "allowlist", "field": "content", "values": []any{1}}, "values", nil},
		{"payload non-integer", RuleTypePayloadSize, map[string]any{"max_content_bytes": 1.5}, "max_content_bytes", nil},
		{"rate missing max", RuleTypeRateLimit, map[string]any{"window_seconds": 60}, "max_events", ErrMissingField},
		{"rate zero window", RuleTypeRateLimit, map[string]any{"max_events": 1, "window_seconds": 0}, "window_seconds", ErrOutOfBounds},
		{"rate window above ceiling", RuleTypeRateLimit, map[string]any{"max_events": 1, "window_seconds": MaxWindowSeconds + 1}, "window_seconds", ErrOutOfBounds},
		{"rate max above ceiling", RuleTypeRateLimit, map[string]any{"max_events": MaxEventsCeiling + 1, "window_seconds": 1}, "max_events", ErrOutOfBounds},
		{"rate string number", RuleTypeRateLimit, map[string]any{"max_events": "10", "window_seconds": 1}, "max_events", nil},
		{"rate bad scope", RuleTypeRateLimit, map[string]any{"max_events": 1, "window_seconds": 1, "per": "ip"}, "per", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRuleConfig(tt.typ, tt.raw)
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("Expected *ConfigError, got %v", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("Expected field %q, got %q", tt.field, cerr.Field)
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("Expected errors.Is(%v), got %v", tt.is, err)
			}
		})
	}
}

func TestCompileRule(t *testing.T) {
	ok := CompileRule(PolicyRule{
		RuleType: RuleTypePayloadSize,
		Action:   ActionFlag,
		Config:   map[string]any{"max_content_bytes": 10},
	})
	if ok.ConfigErr != nil || ok.Config == nil {
		t.Errorf("Expected a compiled config, got err %v", ok.ConfigErr)
	}

	badAction := CompileRule(PolicyRule{RuleType: RuleTypePayloadSize, Action: "deny"})
	var cerr *ConfigError
	if !errors.As(badAction.ConfigErr, &cerr) || cerr.Field != "action" {
		t.Errorf("Expected action config error, got %v", badAction.ConfigErr)
	}

	badConfig := CompileRule(PolicyRule{RuleType: RuleTypeRateLimit, Action: ActionBlock})
	if badConfig.ConfigErr == nil || badConfig.Config != nil {
		t.Error("Expected rejected rate_limit config to leave Config nil")
	}
}

func TestDescribe(t *testing.T) {
	c, _ := ParseRuleConfig(RuleTypeRateLimit, map[string]any{"max_events": 5, "window_seconds": 10})
	if got := Describe(c); got != "rate_limit(5 per 10s per agent)" {
		t.Errorf("Expected rate_limit(5 per 10s per agent), got %s", got)
	}
}

func TestToInt64(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   int64
		wantOK bool
	}{
		{"int", 42, 42, true},
		{"float whole", float64(60), 60, true},
		{"float fraction", 1.5, 0, false},
		{"float 2^63", math.Pow(2, 63), 0, false},
		{"float above 2^63", math.Pow(2, 64), 0, false},
		{"float -2^63", -math.Pow(2, 63), math.MinInt64, true},
		{"float below -2^63", -math.Pow(2, 64), 0, false},
		{"float inf", math.Inf(1), 0, false},
		{"uint64 max", uint64(math.MaxUint64), 0, false},
		{"json number", json.Number("7"), 7, true},
		{"string", "7", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toInt64(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Expected (%d, %v), got (%d, %v)", tt.want, tt.wantOK, got, ok)
			}
		})
	}
}
