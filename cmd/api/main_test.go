package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	appconfig "github.com/wolfman30/context-rot-monitor/internal/config"
	"github.com/wolfman30/context-rot-monitor/internal/drift"
	"github.com/wolfman30/context-rot-monitor/pkg/logging"
)

func TestSetupMetricsExposesMetrics(t *testing.T) {
	handler, m := setupMetrics(prometheus.NewRegistry())
	if handler == nil || m == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	m.ObserveEvaluation("manual", 0.2, true, false)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"context_rot_drift_evaluations_total", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s to be exported", want)
		}
	}
}

func TestBuildServerServesHealth(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := &appconfig.Config{
		Port:                     "0",
		Version:                  "test",
		DriftSimilarityThreshold: 0.7,
		DriftCheckInterval:       drift.DefaultCheckInterval,
		DriftWindowSize:          drift.DefaultWindowSize,
		DriftMaxFeatures:         drift.DefaultMaxFeatures,
		SessionIdleTTL:           time.Hour,
		SessionSweepInterval:     time.Minute,
		CORSAllowedOrigins:       []string{"*"},
		RateLimitRPS:             100,
		RateLimitBurst:           10,
	}

	srv, svc, err := buildServer(ctx, cfg, logging.Discard(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("buildServer: %v", err)
	}
	if srv.Addr != ":0" || svc == nil {
		t.Fatalf("unexpected server %q", srv.Addr)
	}

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"supervisor_provider":"heuristic"`) {
		t.Fatalf("expected heuristic provider, got %s", rr.Body.String())
	}
}
