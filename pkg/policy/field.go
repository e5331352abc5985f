package policy

import "strings"

// Field names an event attribute a list_match rule may inspect. Only the
// fields declared here are reachable; there is no dynamic attribute lookup.
type Field string

const (
	FieldAgentName Field = "agent_name"
	FieldSourceIP  Field = "source_ip"
	FieldContent   Field = "content"
	FieldEventType Field = "event_type"
)

var fieldAccessors = map[Field]func(*Event) string{
	FieldAgentName: func(e *Event) string { return e.AgentName },
	FieldSourceIP:  func(e *Event) string { return e.SourceIP },
	FieldContent:   func(e *Event) string { return e.Content },
	FieldEventType: func(e *Event) string { return e.EventType },
}

// Valid reports whether the field is in the whitelist.
func (f Field) Valid() bool {
	_, ok := fieldAccessors[f]
	return ok
}

// Extract returns the normalized field value and whether it is present.
// Empty and whitespace-only values count as absent.
func (f Field) Extract(e *Event) (string, bool) {
	get, ok := fieldAccessors[f]
	if !ok || e == nil {
		return "", false
	}
	v := Normalize(get(e))
	if v == "" {
		return "", false
	}
	return v, true
}

// Normalize trims surrounding whitespace and lower-cases s.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func containsFold(list []string, v string) bool {
	v = Normalize(v)
	for _, item := range list {
		if Normalize(item) == v {
			return true
		}
	}
	return false
}
