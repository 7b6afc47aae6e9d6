package repository

import (
	"context"
	"time"

	"AnnuityPricer/internal/domain/models"
)

// EventSink accepts telemetry events. Implementations may be remote and fail transiently.
type EventSink interface {
	Record(ctx context.Context, e *models.Event) error
}

// EventReader is the read model behind the dashboard and the CSV export.
type EventReader interface {
	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]*models.Event, error)
	// DailyCounts returns counts of name per UTC day ("YYYY-MM-DD") since the given time.
	DailyCounts(ctx context.Context, name string, since time.Time) (map[string]int64, error)
	// CountByEvent returns per-name counts since the given time, ordered by count desc, name asc.
	CountByEvent(ctx context.Context, since time.Time) ([]models.EventCount, error)
	// Count returns the number of events since the given time. Empty name counts all events.
	Count(ctx context.Context, name string, since time.Time) (int64, error)
	// UniqueIPs returns the number of distinct client IPs since the given time.
	UniqueIPs(ctx context.Context, since time.Time) (int64, error)
}

// EventStore is the durable side of the telemetry pipeline.
type EventStore interface {
	EventSink
	EventReader
	Health(ctx context.Context) error
	Close() error
}

// EventPublisher forwards events to a message bus.
type EventPublisher interface {
	EventSink
	Close() error
}

type Metrics interface {
	RecordQuote(currency string, retro bool)
	RecordEvent(backend, name string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
