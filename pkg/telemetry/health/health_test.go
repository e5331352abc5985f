package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCheckReadiness(t *testing.T) {
	failing := func(context.Context) error { return errors.New("down") }
	passing := func(context.Context) error { return nil }

	tests := []struct {
		name     string
		ready    bool
		critical CheckFunc
		optional CheckFunc
		want     string
	}{
		{"all healthy", true, passing, passing, StatusReady},
		{"optional failing", true, passing, failing, StatusDegraded},
		{"critical failing", true, failing, passing, StatusNotReady},
		{"gate closed", false, passing, passing, StatusNotReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(time.Second)
			c.SetReady(tt.ready)
			c.RegisterCheck("rules", tt.critical)
			c.RegisterOptionalCheck("redis", tt.optional)

			status := c.CheckReadiness(context.Background())
			if status.Status != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, status.Status)
			}
			if len(status.Checks) != 2 {
				t.Errorf("Expected 2 check results, got %d", len(status.Checks))
			}
			if !status.Checks["rules"].Critical || status.Checks["redis"].Critical {
				t.Error("Expected criticality to be reported per check")
			}
		})
	}
}

func TestCheckReadiness_Timeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.SetReady(true)
	c.RegisterCheck("slow", func(context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})

	start := time.Now()
	status := c.CheckReadiness(context.Background())
	if time.Since(start) > 150*time.Millisecond {
		t.Error("Expected the probe to return at the check timeout")
	}
	if status.Checks["slow"].Message != ErrCheckTimeout.Error() {
		t.Errorf("Expected timeout message, got %q", status.Checks["slow"].Message)
	}
}

func TestRegisterAndUnregister(t *testing.T) {
	c := New(0)
	c.RegisterCheck("b", func(context.Context) error { return nil })
	c.RegisterOptionalCheck("a", func(context.Context) error { return nil })
	if names := c.ListChecks(); len(names) != 2 || names[0] != "a" {
		t.Errorf("Expected sorted [a b], got %v", names)
	}
	c.UnregisterCheck("a")
	if names := c.ListChecks(); len(names) != 1 {
		t.Errorf("Expected 1 check, got %v", names)
	}
}

func TestHandlers(t *testing.T) {
	c := New(time.Second)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		method  string
		ready   bool
		want    int
	}{
		{"liveness", c.LivenessHandler(), http.MethodGet, false, http.StatusOK},
		{"liveness head", c.LivenessHandler(), http.MethodHead, false, http.StatusOK},
		{"liveness post", c.LivenessHandler(), http.MethodPost, false, http.StatusMethodNotAllowed},
		{"readiness before ready", c.ReadinessHandler(), http.MethodGet, false, http.StatusServiceUnavailable},
		{"readiness when ready", c.ReadinessHandler(), http.MethodGet, true, http.StatusOK},
		{"version", VersionHandler("1.0.0", "abc", "now"), http.MethodGet, false, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.SetReady(tt.ready)
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(tt.method, "/", nil))
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
			if tt.method == http.MethodHead && rec.Body.Len() != 0 {
				t.Error("Expected no body for HEAD")
			}
		})
	}
}

func TestReadinessHandler_Body(t *testing.T) {
	c := New(time.Second)
	c.SetReady(true)
	c.RegisterOptionalCheck("kafka", func(context.Context) error { return errors.New("no brokers") })

	rec := httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if status.Status != StatusDegraded || status.Checks["kafka"].Message != "no brokers" {
		t.Errorf("Expected degraded with kafka message, got %+v", status)
	}
}
