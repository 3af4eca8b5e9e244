package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultAlertTTL = 24 * time.Hour
	DefaultAlertMax = 100
)

// Alert is one drifting report written to the journal.
type Alert struct {
	ID         string      `json:"id"`
	SessionID  string      `json:"session_id"`
	RecordedAt time.Time   `json:"recorded_at"`
	Report     DriftReport `json:"report"`
}

// AlertJournal keeps a bounded, newest-first log of drift alerts per session.
type AlertJournal interface {
	Record(ctx context.Context, report DriftReport) (Alert, error)
	List(ctx context.Context, sessionID string, limit int64) ([]Alert, error)
	Forget(ctx context.Context, sessionID string) error
}

// RedisAlertJournal stores alerts in a capped Redis list per session.
type RedisAlertJournal struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
	max    int64
	now    func() time.Time
}

func NewRedisAlertJournal(client *redis.Client, ttl time.Duration, max int64, tracer trace.Tracer) *RedisAlertJournal {
	if client == nil {
		panic("monitor: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("context-rot.internal.monitor.alerts")
	}
	if ttl <= 0 {
		ttl = DefaultAlertTTL
	}
	if max <= 0 {
		max = DefaultAlertMax
	}
	return &RedisAlertJournal{redis: client, tracer: tracer, ttl: ttl, max: max, now: time.Now}
}

func (j *RedisAlertJournal) Record(ctx context.Context, report DriftReport) (Alert, error) {
	ctx, span := j.tracer.Start(ctx, "monitor.record_alert")
	defer span.End()

	alert := Alert{
		ID:         uuid.NewString(),
		SessionID:  report.SessionID,
		RecordedAt: j.now().UTC(),
		Report:     report,
	}
	data, err := json.Marshal(alert)
	if err != nil {
		span.RecordError(err)
		return Alert{}, fmt.Errorf("monitor: failed to marshal alert: %w", err)
	}

	key := alertKey(report.SessionID)
	pipe := j.redis.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, j.max-1)
	pipe.Expire(ctx, key, j.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return Alert{}, fmt.Errorf("monitor: failed to persist alert: %w", err)
	}
	return alert, nil
}

// List returns up to limit alerts, newest first. A non-positive limit returns all.
func (j *RedisAlertJournal) List(ctx context.Context, sessionID string, limit int64) ([]Alert, error) {
	ctx, span := j.tracer.Start(ctx, "monitor.list_alerts")
	defer span.End()

	stop := int64(-1)
	if limit > 0 {
		stop = limit - 1
	}
	raw, err := j.redis.LRange(ctx, alertKey(sessionID), 0, stop).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("monitor: failed to load alerts: %w", err)
	}
	alerts := make([]Alert, 0, len(raw))
	for _, item := range raw {
		var alert Alert
		if err := json.Unmarshal([]byte(item), &alert); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("monitor: failed to decode alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func (j *RedisAlertJournal) Forget(ctx context.Context, sessionID string) error {
	ctx, span := j.tracer.Start(ctx, "monitor.forget_alerts")
	defer span.End()

	if err := j.redis.Del(ctx, alertKey(sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("monitor: failed to delete alerts: %w", err)
	}
	return nil
}

func alertKey(sessionID string) string {
	return fmt.Sprintf("drift:alerts:%s", sessionID)
}

// NoopAlertJournal is used when Redis is not configured.
type NoopAlertJournal struct{}

func (NoopAlertJournal) Record(_ context.Context, report DriftReport) (Alert, error) {
	return Alert{SessionID: report.SessionID, Report: report}, nil
}

func (NoopAlertJournal) List(context.Context, string, int64) ([]Alert, error) {
	return []Alert{}, nil
}

func (NoopAlertJournal) Forget(context.Context, string) error { return nil }
