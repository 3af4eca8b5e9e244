package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wolfman30/context-rot-monitor/internal/drift"
	"github.com/wolfman30/context-rot-monitor/internal/observability/metrics"
	"github.com/wolfman30/context-rot-monitor/internal/session"
	"github.com/wolfman30/context-rot-monitor/internal/supervisor"
	"github.com/wolfman30/context-rot-monitor/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Dependencies are the optional collaborators of a Service.
type Dependencies struct {
	Analyst  supervisor.Analyst
	Alerts   AlertJournal
	Hub      *Hub
	Metrics  *metrics.DriftMetrics
	Gatherer prometheus.Gatherer
	Tracer   trace.Tracer
}

// Service runs drift evaluation for many sessions and explains drifting verdicts.
type Service struct {
	registry *session.Registry
	analyst  supervisor.Analyst
	alerts   AlertJournal
	hub      *Hub
	metrics  *metrics.DriftMetrics
	gatherer prometheus.Gatherer
	tracer   trace.Tracer
	logger   *logging.Logger
	now      func() time.Time
}

// InitResult is returned when a session gets a goal.
type InitResult struct {
	SessionID string `json:"session_id"`
	NorthStar string `json:"north_star"`
}

// NewService builds the session registry from opts and wires eviction
// bookkeeping into it.
func NewService(opts session.Options, deps Dependencies, logger *logging.Logger) (*Service, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if deps.Analyst == nil {
		deps.Analyst = supervisor.HeuristicAnalyst{}
	}
	if deps.Alerts == nil {
		deps.Alerts = NoopAlertJournal{}
	}
	if deps.Hub == nil {
		deps.Hub = NewHub(0, deps.Metrics, logger)
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("context-rot.internal.monitor")
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Service{
		analyst:  deps.Analyst,
		alerts:   deps.Alerts,
		hub:      deps.Hub,
		metrics:  deps.Metrics,
		gatherer: deps.Gatherer,
		tracer:   deps.Tracer,
		logger:   logger,
		now:      opts.Now,
	}

	onEvict := opts.OnEvict
	opts.OnEvict = func(id string, reason session.EvictReason) {
		s.handleEviction(id, reason)
		if onEvict != nil {
			onEvict(id, reason)
		}
	}
	registry, err := session.NewRegistry(opts, logger)
	if err != nil {
		return nil, err
	}
	s.registry = registry
	return s, nil
}

// Run sweeps idle sessions until ctx is done.
func (s *Service) Run(ctx context.Context) {
	s.registry.Run(ctx)
}

// Hub exposes the verdict stream.
func (s *Service) Hub() *Hub {
	return s.hub
}

// DriftConfig returns the engine configuration shared by all sessions.
func (s *Service) DriftConfig() drift.Config {
	return s.registry.DriftConfig()
}

// Sessions returns the number of live sessions.
func (s *Service) Sessions() int {
	return s.registry.Len()
}

// Stats summarizes the drift metrics.
func (s *Service) Stats() metrics.Stats {
	stats := metrics.Snapshot(s.gatherer)
	stats.ActiveSessions = s.registry.Len()
	return stats
}

// Create starts a new session, generating an ID when id is empty.
func (s *Service) Create(ctx context.Context, id, goal string) (InitResult, error) {
	_, span := s.tracer.Start(ctx, "monitor.create_session")
	defer span.End()

	id, err := s.registry.Create(id, goal)
	if err != nil {
		span.RecordError(err)
		return InitResult{}, err
	}
	span.SetAttributes(attribute.String("session.id", id))
	s.metrics.SetActiveSessions(s.registry.Len())
	s.logger.WithSession(id).Info("session created")

	return InitResult{SessionID: id, NorthStar: goal}, nil
}

// Initialize sets the goal of an existing session, wiping its history.
// Unknown sessions are created.
func (s *Service) Initialize(ctx context.Context, id, goal string) (InitResult, error) {
	ctx, span := s.tracer.Start(ctx, "monitor.initialize")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))

	var northStar string
	err := s.registry.With(id, func(e *drift.Engine) error {
		if err := e.SetGoal(goal); err != nil {
			return err
		}
		northStar = e.Goal()
		return nil
	})
	if errors.Is(err, session.ErrNotFound) {
		return s.Create(ctx, id, goal)
	}
	if err != nil {
		span.RecordError(err)
		return InitResult{}, err
	}
	s.hub.Publish(StreamMessage{Type: StreamReset, SessionID: id})
	s.logger.WithSession(id).Info("north star set")
	return InitResult{SessionID: id, NorthStar: northStar}, nil
}

// AddTurn records a turn and returns a report when the turn triggered an
// evaluation, or nil when it did not.
func (s *Service) AddTurn(ctx context.Context, id, userMessage, assistantResponse string) (*DriftReport, error) {
	ctx, span := s.tracer.Start(ctx, "monitor.add_turn")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))

	var (
		verdict *drift.Verdict
		goal    string
		state   string
	)
	err := s.registry.With(id, func(e *drift.Engine) error {
		v, err := e.AddTurn(userMessage, assistantResponse)
		if err != nil {
			return err
		}
		if v != nil && v.IsDrifting {
			goal, state = e.Goal(), e.StateSummary()
		}
		verdict = v
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if verdict == nil {
		return nil, nil
	}
	report := s.report(ctx, id, metrics.TriggerAuto, *verdict, goal, state)
	return &report, nil
}

// CheckDrift evaluates the session now, regardless of the check interval.
func (s *Service) CheckDrift(ctx context.Context, id string) (DriftReport, error) {
	ctx, span := s.tracer.Start(ctx, "monitor.check_drift")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))

	var (
		verdict drift.Verdict
		goal    string
		state   string
	)
	err := s.registry.With(id, func(e *drift.Engine) error {
		v, err := e.CheckDrift()
		if err != nil {
			return err
		}
		if v.IsDrifting {
			goal, state = e.Goal(), e.StateSummary()
		}
		verdict = v
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return DriftReport{}, err
	}
	return s.report(ctx, id, metrics.TriggerManual, verdict, goal, state), nil
}

// State returns the session summary with its most recent turns.
func (s *Service) State(ctx context.Context, id string) (StateView, error) {
	_, span := s.tracer.Start(ctx, "monitor.state")
	defer span.End()

	var summary drift.Summary
	err := s.registry.With(id, func(e *drift.Engine) error {
		summary = e.Summary()
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return StateView{}, err
	}
	return newStateView(id, summary), nil
}

// Reset replaces the session's engine with an uninitialized one. The alert
// journal is kept.
func (s *Service) Reset(ctx context.Context, id string) error {
	_, span := s.tracer.Start(ctx, "monitor.reset")
	defer span.End()

	if err := s.registry.Reset(id); err != nil {
		span.RecordError(err)
		return err
	}
	s.hub.Publish(StreamMessage{Type: StreamReset, SessionID: id})
	s.logger.WithSession(id).Info("session reset")
	return nil
}

// Delete removes the session and its alerts.
func (s *Service) Delete(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "monitor.delete")
	defer span.End()

	if err := s.registry.Delete(id); err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.alerts.Forget(ctx, id); err != nil {
		s.logger.WithSession(id).Warn("failed to delete alerts", "error", err.Error())
	}
	return nil
}

// Alerts returns journaled drift alerts for a session, newest first.
func (s *Service) Alerts(ctx context.Context, id string, limit int64) ([]Alert, error) {
	return s.alerts.List(ctx, id, limit)
}

// report runs outside the session lock.
func (s *Service) report(ctx context.Context, id, trigger string, v drift.Verdict, goal, state string) DriftReport {
	log := s.logger.WithSession(id)
	s.metrics.ObserveEvaluation(trigger, v.SimilarityScore, v.IsDrifting, v.Degraded())
	if v.Degraded() {
		log.Warn("drift score computed with lexical fallback", "reason", v.Reason)
	}

	report := DriftReport{
		SessionID: id,
		Trigger:   trigger,
		Verdict:   v,
		CheckedAt: s.now().UTC(),
	}
	if !v.IsDrifting {
		log.Debug("conversation on track", "turn", v.TurnNumber, "score", v.SimilarityScore)
		s.hub.Publish(StreamMessage{Type: StreamVerdict, SessionID: id, Report: &report})
		return report
	}

	ctx, span := s.tracer.Start(ctx, "monitor.analyze_drift")
	start := time.Now()
	analysis := s.analyst.Analyze(ctx, supervisor.Request{
		Goal:         goal,
		CurrentState: state,
		Similarity:   v.SimilarityScore,
	})
	s.metrics.ObserveSupervisor(string(analysis.Source), time.Since(start).Seconds())
	span.SetAttributes(attribute.String("supervisor.source", string(analysis.Source)))
	span.End()

	report.SupervisorAnalysis = &analysis
	report.InterventionPrompt = supervisor.InterventionPrompt(goal, analysis)
	log.Info("drift detected",
		"turn", v.TurnNumber,
		"score", v.SimilarityScore,
		"last_good_turn", v.LastGoodTurn,
		"confidence", string(analysis.Confidence),
	)

	if _, err := s.alerts.Record(ctx, report); err != nil {
		s.metrics.ObserveAlert("error")
		log.Error("failed to record drift alert", "error", err.Error())
	} else {
		s.metrics.ObserveAlert("ok")
	}
	s.hub.Publish(StreamMessage{Type: StreamVerdict, SessionID: id, Report: &report})
	return report
}

func (s *Service) handleEviction(id string, reason session.EvictReason) {
	s.metrics.ObserveEviction(string(reason))
	s.hub.Close(id)
	if s.registry != nil {
		s.metrics.SetActiveSessions(s.registry.Len())
	}
	s.logger.WithSession(id).Info("session removed", "reason", string(reason))
}
