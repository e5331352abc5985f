package policy

import (
	"encoding/json"
	"testing"
)

func TestAction_Order(t *testing.T) {
	tests := []struct {
		a, b, want Action
	}{
		{ActionAllow, ActionFlag, ActionFlag},
		{ActionFlag, ActionAllow, ActionFlag},
		{ActionFlag, ActionBlock, ActionBlock},
		{ActionBlock, ActionFlag, ActionBlock},
		{ActionAllow, ActionAllow, ActionAllow},
		{ActionAllow, "quarantine", ActionAllow},
	}
	for _, tt := range tests {
		if got := MostSevere(tt.a, tt.b); got != tt.want {
			t.Errorf("MostSevere(%s, %s): expected %s, got %s", tt.a, tt.b, tt.want, got)
		}
	}
}

func TestParseAction(t *testing.T) {
	for _, s := range []string{"allow", "flag", "block"} {
		if _, err := ParseAction(s); err != nil {
			t.Errorf("Expected %q to parse, got %v", s, err)
		}
	}
	for _, s := range []string{"", "BLOCK", "deny"} {
		if _, err := ParseAction(s); err == nil {
			t.Errorf("Expected %q to be rejected", s)
		}
	}
}

func TestRuleType_Valid(t *testing.T) {
	for _, rt := range []RuleType{RuleTypeRateLimit, RuleTypePatternMatch, RuleTypePayloadSize, RuleTypeListMatch} {
		if !rt.Valid() {
			t.Errorf("Expected %s to be valid", rt)
		}
	}
	if RuleType("geo_fence").Valid() {
		t.Error("Expected unknown rule type to be invalid")
	}
}

func TestFilters_Applies(t *testing.T) {
	event := &Event{EventType: "Tool_Call", AgentType: "autonomous"}

	tests := []struct {
		name    string
		filters Filters
		want    bool
	}{
		{"empty matches everything", Filters{}, true},
		{"event type case-insensitive", Filters{EventTypes: []string{"tool_call"}}, true},
		{"event type mismatch", Filters{EventTypes: []string{"message"}}, false},
		{"agent type match", Filters{AgentTypes: []string{"chat", " Autonomous "}}, true},
		{"both must pass", Filters{EventTypes: []string{"tool_call"}, AgentTypes: []string{"chat"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filters.Applies(event); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestField_Extract(t *testing.T) {
	event := &Event{AgentName: "  Scraper-Bot ", SourceIP: "", Content: "Hello", EventType: "   "}

	tests := []struct {
		field   Field
		want    string
		present bool
	}{
		{FieldAgentName, "scraper-bot", true},
		{FieldSourceIP, "", false},
		{FieldContent, "hello", true},
		{FieldEventType, "", false},
		{Field("payload"), "", false},
	}
	for _, tt := range tests {
		got, ok := tt.field.Extract(event)
		if got != tt.want || ok != tt.present {
			t.Errorf("Extract(%s): expected (%q, %v), got (%q, %v)", tt.field, tt.want, tt.present, got, ok)
		}
	}
	if _, ok := FieldContent.Extract(nil); ok {
		t.Error("Expected nil event to have no fields")
	}
}

func TestVerdict_RequiresDeliberation(t *testing.T) {
	tests := map[Action]bool{ActionAllow: false, ActionFlag: true, ActionBlock: true}
	for action, want := range tests {
		v := &Verdict{Action: action}
		if got := v.RequiresDeliberation(); got != want {
			t.Errorf("Expected %v for %s, got %v", want, action, got)
		}
	}
}

func TestVerdict_MarshalViolations(t *testing.T) {
	v := &Verdict{Action: ActionAllow}
	out, err := v.MarshalViolations()
	if err != nil {
		t.Fatalf("MarshalViolations failed: %v", err)
	}
	if string(out) != "[]" {
		t.Errorf("Expected [] for no violations, got %s", out)
	}

	v.Violations = []Violation{{RuleID: "r1", RuleType: RuleTypeListMatch, Action: ActionBlock}}
	out, _ = v.MarshalViolations()
	var decoded []Violation
	if err := json.Unmarshal(out, &decoded); err != nil || len(decoded) != 1 || decoded[0].RuleID != "r1" {
		t.Errorf("Expected one violation for r1, got %s (%v)", out, err)
	}
}
