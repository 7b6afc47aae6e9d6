package repository

import (
	"context"
	"errors"
	"time"

	"AnnuityPricer/internal/domain/models"
)

// ErrNoStore is reported by NoopEventStore.Health.
var ErrNoStore = errors.New("no event store configured")

// NoopEventStore discards events and reads as empty. Used when events.backend is "none".
type NoopEventStore struct{}

func (NoopEventStore) Record(context.Context, *models.Event) error { return nil }

func (NoopEventStore) Recent(context.Context, int) ([]*models.Event, error) { return nil, nil }

func (NoopEventStore) DailyCounts(context.Context, string, time.Time) (map[string]int64, error) {
	return map[string]int64{}, nil
}

func (NoopEventStore) CountByEvent(context.Context, time.Time) ([]models.EventCount, error) {
	return nil, nil
}

func (NoopEventStore) Count(context.Context, string, time.Time) (int64, error) { return 0, nil }

func (NoopEventStore) UniqueIPs(context.Context, time.Time) (int64, error) { return 0, nil }

func (NoopEventStore) Health(context.Context) error { return ErrNoStore }

func (NoopEventStore) Close() error { return nil }
