package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthCheckHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheckHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if status.Status != "healthy" || status.Service != "llm-gateway" {
		t.Errorf("Unexpected status %+v", status)
	}
}

func TestReadinessHandler(t *testing.T) {
	ok := func(ctx context.Context) (bool, error) { return true, nil }
	failing := func(ctx context.Context) (bool, error) { return false, errors.New("no endpoints") }

	tests := []struct {
		name       string
		checks     map[string]HealthCheckFunc
		wantCode   int
		wantStatus string
	}{
		{"no checks", nil, http.StatusOK, "ready"},
		{"all healthy", map[string]HealthCheckFunc{"endpoints": ok, "tools": ok}, http.StatusOK, "ready"},
		{"one failing", map[string]HealthCheckFunc{"endpoints": failing, "tools": ok}, http.StatusServiceUnavailable, "not_ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ReadinessHandler(tt.checks)(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("Expected %d, got %d", tt.wantCode, rec.Code)
			}
			var status HealthStatus
			if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
				t.Fatalf("Invalid JSON: %v", err)
			}
			if status.Status != tt.wantStatus {
				t.Errorf("Expected status %q, got %q", tt.wantStatus, status.Status)
			}
			if dep, found := status.Dependencies["endpoints"]; found && dep.Status == "unhealthy" && dep.Message != "no endpoints" {
				t.Errorf("Expected failure message, got %q", dep.Message)
			}
		})
	}
}

func TestGRPCHealth_Evaluate(t *testing.T) {
	healthy := true
	checks := map[string]HealthCheckFunc{
		"endpoints": func(ctx context.Context) (bool, error) { return healthy, nil },
	}
	g := NewGRPCHealth(checks, time.Second, zerolog.Nop())
	ctx := context.Background()

	if !g.Evaluate(ctx) {
		t.Fatal("Expected evaluation to pass")
	}
	if st, err := g.Check(ctx, ""); err != nil || st != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("Expected SERVING, got %v (err=%v)", st, err)
	}

	healthy = false
	if g.Evaluate(ctx) {
		t.Fatal("Expected evaluation to fail")
	}
	if st, _ := g.Check(ctx, ""); st != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("Expected NOT_SERVING overall, got %v", st)
	}
	if st, _ := g.Check(ctx, "endpoints"); st != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("Expected NOT_SERVING for endpoints, got %v", st)
	}

	if _, err := g.Check(ctx, "unknown-service"); err == nil {
		t.Error("Expected error for unregistered service")
	}
}

func TestNewLogger_CorrelationID(t *testing.T) {
	var buf bytes.Buffer
	logger := WithCorrelationID(NewLogger(&buf, "debug", false), "abc-123")
	logger.Debug().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line, got %q", buf.String())
	}
	if entry["correlation_id"] != "abc-123" {
		t.Errorf("Expected correlation_id abc-123, got %v", entry["correlation_id"])
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", false)
	logger.Info().Msg("dropped")
	logger.Warn().Msg("kept")

	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "kept") {
		t.Errorf("Unexpected log output %q", buf.String())
	}
}

func TestNewCorrelationID_Unique(t *testing.T) {
	if NewCorrelationID() == NewCorrelationID() {
		t.Error("Expected distinct correlation IDs")
	}
}
