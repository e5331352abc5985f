package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/obutuz/swarmshield-sub004/pkg/config"
	"github.com/obutuz/swarmshield-sub004/pkg/policy"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracer(t *testing.T, sampler string) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	cfg := &config.TracingConfig{
		Enabled:     true,
		Sampler:     sampler,
		SampleRatio: 1,
		ServiceName: "swarmshield-test",
	}
	tr, err := newWithExporter(cfg, "test", sdktrace.WithSpanProcessor(recorder))
	if err != nil {
		t.Fatalf("Failed to create tracer: %v", err)
	}
	t.Cleanup(func() { tr.Shutdown(context.Background()) })
	return tr, recorder
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestNew_Disabled(t *testing.T) {
	if _, err := New(nil, "v"); err == nil {
		t.Error("Expected error for nil config")
	}

	tr, err := New(&config.TracingConfig{Enabled: false}, "v")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if tr.Enabled() {
		t.Error("Expected disabled tracer")
	}
	ctx, span := tr.Start(context.Background(), "noop")
	span.End()
	if TraceID(ctx) != "" {
		t.Error("Expected no trace id from a noop tracer")
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("Expected noop shutdown, got %v", err)
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{SamplerAlways, 0, false},
		{SamplerNever, 0, false},
		{SamplerRatio, 0.25, false},
		{SamplerRatio, 1.5, true},
		{"sometimes", 0, true},
	}
	for _, tt := range tests {
		_, err := createSampler(tt.strategy, tt.ratio)
		if (err != nil) != tt.wantErr {
			t.Errorf("createSampler(%s, %v): expected error %v, got %v", tt.strategy, tt.ratio, tt.wantErr, err)
		}
	}
}

func TestSpanAttributes(t *testing.T) {
	tr, recorder := newTestTracer(t, SamplerAlways)

	event := &policy.Event{ID: "e-1", WorkspaceID: "ws-1", AgentID: "a-1", EventType: "tool_call", Content: "secret text"}
	verdict := &policy.Verdict{
		Action:     policy.ActionBlock,
		Violations: []policy.Violation{{RuleID: "r-1"}, {RuleID: "r-2"}},
		Evaluated:  3,
	}

	_, span := tr.Start(context.Background(), "policy.evaluate")
	SetEventAttributes(span, event)
	SetVerdictAttributes(span, verdict)
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	attrs := spans[0].Attributes()

	if v, _ := attrValue(attrs, AttrAction); v.AsString() != "block" {
		t.Errorf("Expected action block, got %q", v.AsString())
	}
	if v, _ := attrValue(attrs, AttrRuleIDs); len(v.AsStringSlice()) != 2 {
		t.Errorf("Expected 2 rule ids, got %v", v.AsStringSlice())
	}
	if v, _ := attrValue(attrs, AttrContentBytes); v.AsInt64() != int64(len(event.Content)) {
		t.Errorf("Expected content size, got %d", v.AsInt64())
	}
	for _, kv := range attrs {
		if kv.Value.Type() == attribute.STRING && kv.Value.AsString() == event.Content {
			t.Errorf("Expected content never to be attached, found on %s", kv.Key)
		}
	}
}

func TestHTTPMiddleware_ContinuesInboundTrace(t *testing.T) {
	tr, recorder := newTestTracer(t, SamplerNever)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	mux := http.NewServeMux()
	var handlerTraceID string
	mux.HandleFunc("POST /v1/events/evaluate", func(w http.ResponseWriter, r *http.Request) {
		handlerTraceID = TraceID(r.Context())
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/events/evaluate", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	HTTPMiddleware(tr)(mux).ServeHTTP(rec, req)

	if handlerTraceID != traceID {
		t.Errorf("Expected handler to see trace %s, got %q", traceID, handlerTraceID)
	}
	if rec.Header().Get("X-Trace-ID") != traceID {
		t.Errorf("Expected X-Trace-ID %s, got %q", traceID, rec.Header().Get("X-Trace-ID"))
	}
	// The parent was sampled, so ParentBased samples despite "never".
	if len(recorder.Ended()) != 1 {
		t.Errorf("Expected the sampled parent to keep the span, got %d spans", len(recorder.Ended()))
	}
}

func TestMapPropagation(t *testing.T) {
	tr, _ := newTestTracer(t, SamplerAlways)

	ctx, span := tr.Start(context.Background(), "parent")
	defer span.End()

	carrier := map[string]string{}
	InjectToMap(ctx, carrier)
	if carrier["traceparent"] == "" {
		t.Fatal("Expected traceparent in carrier")
	}

	restored := ExtractFromMap(context.Background(), carrier)
	if TraceID(restored) != TraceID(ctx) {
		t.Errorf("Expected trace %s, got %s", TraceID(ctx), TraceID(restored))
	}
}
