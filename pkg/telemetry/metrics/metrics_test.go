package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/obutuz/swarmshield-sub004/pkg/config"
	"github.com/obutuz/swarmshield-sub004/pkg/policy"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:         true,
		Namespace:       "test",
		DurationBuckets: []float64{0.001, 0.01, 0.1},
	}
}

func TestCollector_RecordVerdict(t *testing.T) {
	c := NewCollector(testConfig(), nil)

	c.RecordVerdict(policy.ActionBlock, 2*time.Millisecond)
	c.RecordVerdict(policy.ActionBlock, 3*time.Millisecond)
	c.RecordVerdict(policy.ActionAllow, time.Millisecond)

	if got := testutil.ToFloat64(c.engineMetrics.verdictsTotal.WithLabelValues(string(policy.ActionBlock))); got != 2 {
		t.Errorf("Expected 2 block verdicts, got %v", got)
	}
	if got := testutil.CollectAndCount(c.engineMetrics.evaluationDuration); got != 2 {
		t.Errorf("Expected 2 histogram series, got %d", got)
	}
}

func TestCollector_RuleOutcomesAndPanics(t *testing.T) {
	c := NewCollector(testConfig(), nil)

	c.RecordRuleEvaluation(policy.RuleTypeRateLimit, "within_limit")
	c.RecordRuleEvaluation(policy.RuleTypeRateLimit, "violation")
	c.RecordRuleEvaluation(policy.RuleTypeRateLimit, "violation")
	c.RecordEvaluatorPanic(policy.RuleTypePatternMatch)

	if got := testutil.ToFloat64(c.engineMetrics.ruleEvaluations.WithLabelValues("rate_limit", "violation")); got != 2 {
		t.Errorf("Expected 2 violations, got %v", got)
	}
	if got := testutil.ToFloat64(c.engineMetrics.evaluatorPanics.WithLabelValues("pattern_match")); got != 1 {
		t.Errorf("Expected 1 panic, got %v", got)
	}
}

func TestCollector_RegexTimeoutCardinality(t *testing.T) {
	c := NewCollector(testConfig(), nil)
	c.workspaces = NewCardinalityLimiter(2)

	c.RecordRegexTimeout("ws-1")
	c.RecordRegexTimeout("ws-2")
	c.RecordRegexTimeout("ws-3")
	c.RecordRegexTimeout("ws-4")
	c.RecordRegexTimeout("ws-1")

	if got := testutil.ToFloat64(c.engineMetrics.regexTimeouts.WithLabelValues("ws-1")); got != 2 {
		t.Errorf("Expected 2 timeouts for ws-1, got %v", got)
	}
	if got := testutil.ToFloat64(c.engineMetrics.regexTimeouts.WithLabelValues(otherLabel)); got != 2 {
		t.Errorf("Expected 2 timeouts folded into other, got %v", got)
	}
}

func TestCollector_PipelineMetrics(t *testing.T) {
	c := NewCollector(testConfig(), nil)

	c.RecordCacheRefresh("success", 5)
	c.RecordCacheRefresh("error", 0)
	c.RecordAuditWrite("written")
	c.RecordAuditWrite("dropped")
	c.RecordDeliberationHandoff("sent")

	pm := c.pipelineMetrics
	if got := testutil.ToFloat64(pm.rulesCompiled); got != 5 {
		t.Errorf("Expected 5 compiled rules, got %v", got)
	}
	if got := testutil.ToFloat64(pm.cacheRefreshes.WithLabelValues("error")); got != 1 {
		t.Errorf("Expected 1 failed refresh, got %v", got)
	}
	if got := testutil.ToFloat64(pm.auditWrites.WithLabelValues("dropped")); got != 1 {
		t.Errorf("Expected 1 dropped audit write, got %v", got)
	}
	if got := testutil.ToFloat64(pm.handoffs.WithLabelValues("sent")); got != 1 {
		t.Errorf("Expected 1 sent handoff, got %v", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	c := NewCollector(cfg, nil)

	c.RecordVerdict(policy.ActionFlag, time.Millisecond)
	c.RecordAuditWrite("written")

	if got := testutil.CollectAndCount(c.engineMetrics.verdictsTotal); got != 0 {
		t.Errorf("Expected no series when disabled, got %d", got)
	}
}

func TestCollector_RateCountersAndHandler(t *testing.T) {
	c := NewCollector(testConfig(), nil)
	live := 3
	if err := c.RegisterRateCounters(func() int { return live }); err != nil {
		t.Fatalf("RegisterRateCounters failed: %v", err)
	}
	if err := c.RegisterRateCounters(func() int { return 0 }); err == nil {
		t.Error("Expected duplicate registration to fail")
	}
	c.RecordVerdict(policy.ActionAllow, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"test_rate_counters 3", `test_verdicts_total{action="allow"} 1`} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected %q in exposition, got:\n%s", want, body)
		}
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)
	if !cl.Allow("a") || !cl.Allow("b") || !cl.Allow("a") {
		t.Error("Expected values within the limit to be allowed")
	}
	if cl.Allow("c") {
		t.Error("Expected value past the limit to be rejected")
	}
	if cl.Count() != 2 {
		t.Errorf("Expected count 2, got %d", cl.Count())
	}
}
