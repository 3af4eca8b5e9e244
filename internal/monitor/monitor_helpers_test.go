package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/context-rot-monitor/internal/drift"
	"github.com/wolfman30/context-rot-monitor/internal/observability/metrics"
	"github.com/wolfman30/context-rot-monitor/internal/session"
	"github.com/wolfman30/context-rot-monitor/internal/supervisor"
	"github.com/wolfman30/context-rot-monitor/pkg/logging"
)

const (
	testGoal     = "refund order 12345"
	onTrackUser  = "refund order 12345"
	onTrackReply = "refund order 12345"
	driftUser    = "login password"
	driftReply   = "email reset"
)

type recordingAnalyst struct {
	mu       sync.Mutex
	requests []supervisor.Request
}

func (a *recordingAnalyst) Analyze(_ context.Context, req supervisor.Request) supervisor.Analysis {
	a.mu.Lock()
	a.requests = append(a.requests, req)
	a.mu.Unlock()
	return supervisor.Analysis{
		PursuingGoal:           false,
		Distraction:            "login detour",
		RealignmentInstruction: "Ask about the refund.",
		Confidence:             supervisor.ConfidenceHigh,
		Source:                 supervisor.SourceLLM,
	}
}

func (a *recordingAnalyst) calls() []supervisor.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]supervisor.Request(nil), a.requests...)
}

type testEnv struct {
	svc      *Service
	analyst  *recordingAnalyst
	redis    *miniredis.Miniredis
	registry *prometheus.Registry
}

// newTestService evaluates every turn over a one-turn window so each verdict
// depends only on the latest turn.
func newTestService(t *testing.T, mutate func(*session.Options)) *testEnv {
	t.Helper()
	cfg := drift.DefaultConfig()
	cfg.CheckInterval = 1
	cfg.WindowSize = 1
	opts := session.Options{Drift: cfg, IdleTTL: time.Hour}
	if mutate != nil {
		mutate(&opts)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.NewDriftMetrics(reg)
	analyst := &recordingAnalyst{}
	logger := logging.Discard()

	svc, err := NewService(opts, Dependencies{
		Analyst:  analyst,
		Alerts:   NewRedisAlertJournal(client, time.Hour, 2, nil),
		Hub:      NewHub(4, m, logger),
		Metrics:  m,
		Gatherer: reg,
	}, logger)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &testEnv{svc: svc, analyst: analyst, redis: mr, registry: reg}
}
