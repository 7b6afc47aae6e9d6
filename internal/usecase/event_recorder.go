package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"AnnuityPricer/internal/domain/models"
	domrepo "AnnuityPricer/internal/domain/repository"
	applogger "AnnuityPricer/pkg/logger"
)

// CollectInput is what the HTTP layer extracts from a /collect request.
type CollectInput struct {
	Body []byte
	IP   string
	UA   string
	Ref  string
}

// EventRecorder writes telemetry events to the configured sink, retrying
// transient failures with a linear backoff.
type EventRecorder struct {
	sink     domrepo.EventSink
	backend  string
	retryMax int
	backoff  time.Duration
	metrics  domrepo.Metrics
	l        *applogger.Logger
	now      func() time.Time
}

func NewEventRecorder(sink domrepo.EventSink, backend string, retryMax int, backoff time.Duration, metrics domrepo.Metrics, l *applogger.Logger) *EventRecorder {
	if retryMax < 1 {
		retryMax = 1
	}
	return &EventRecorder{
		sink:     sink,
		backend:  backend,
		retryMax: retryMax,
		backoff:  backoff,
		metrics:  metrics,
		l:        l,
		now:      time.Now,
	}
}

// Collect builds an event from a raw request body and records it. A body
// that is not a JSON object is stored as {} under the default event name.
func (r *EventRecorder) Collect(ctx context.Context, in CollectInput) (*models.Event, error) {
	name, payload := parseBody(in.Body)
	e, err := models.NewEvent(r.now(), name, in.IP, in.UA, in.Ref, payload)
	if err != nil {
		return nil, fmt.Errorf("new event: %w", err)
	}
	return e, r.Record(ctx, e)
}

// Record writes e, making up to retryMax attempts. The wait before attempt
// n+1 is backoff*n. Context cancellation stops retrying.
func (r *EventRecorder) Record(ctx context.Context, e *models.Event) error {
	start := time.Now()
	var err error
retry:
	for attempt := 1; attempt <= r.retryMax; attempt++ {
		if err = r.sink.Record(ctx, e); err == nil {
			r.metrics.RecordEvent(r.backend, e.Name)
			r.metrics.RecordLatency("record_event", time.Since(start).Seconds())
			return nil
		}
		if attempt == r.retryMax {
			break
		}
		r.l.Warn("event record retry",
			applogger.String("backend", r.backend),
			applogger.Int("attempt", attempt),
			applogger.Error(err))
		t := time.NewTimer(r.backoff * time.Duration(attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			err = errors.Join(err, ctx.Err())
			break retry
		}
	}
	r.metrics.RecordError("record_event")
	r.l.Error("event record failed",
		applogger.String("backend", r.backend),
		applogger.String("event", e.Name),
		applogger.Error(err))
	return fmt.Errorf("record event: %w", err)
}

func parseBody(b []byte) (string, json.RawMessage) {
	var obj map[string]json.RawMessage
	if len(b) == 0 || json.Unmarshal(b, &obj) != nil || obj == nil {
		return models.EventDefault, json.RawMessage("{}")
	}
	name := models.EventDefault
	if raw, ok := obj["event"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			name = s
		}
	}
	compact, err := compactJSON(b)
	if err != nil {
		return name, json.RawMessage("{}")
	}
	return name, compact
}
