package usecase

import (
	"context"
	"sync"
	"time"

	"AnnuityPricer/internal/domain/models"
)

type fakeMetrics struct {
	mu     sync.Mutex
	quotes map[string]int
	events map[string]int
	errors map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{quotes: map[string]int{}, events: map[string]int{}, errors: map[string]int{}}
}

func (m *fakeMetrics) RecordQuote(currency string, retro bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if retro {
		currency += "+retro"
	}
	m.quotes[currency]++
}

func (m *fakeMetrics) RecordEvent(backend, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[backend+"/"+name]++
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *fakeMetrics) RecordLatency(string, float64) {}

// flakySink fails the first failures calls.
type flakySink struct {
	mu       sync.Mutex
	failures int
	calls    int
	events   []*models.Event
	err      error
}

func (s *flakySink) Record(_ context.Context, e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

// memReader is an in-memory EventReader with the same semantics as the
// ClickHouse queries.
type memReader struct {
	events []*models.Event
	err    error
}

func (r *memReader) Recent(_ context.Context, limit int) ([]*models.Event, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make([]*models.Event, 0, len(r.events))
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.events[i])
	}
	return out, nil
}

func (r *memReader) DailyCounts(_ context.Context, name string, since time.Time) (map[string]int64, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := map[string]int64{}
	for _, e := range r.events {
		if e.Name == name && !e.TsUTC.Before(since) {
			out[e.TsUTC.UTC().Format("2006-01-02")]++
		}
	}
	return out, nil
}

func (r *memReader) CountByEvent(_ context.Context, since time.Time) ([]models.EventCount, error) {
	if r.err != nil {
		return nil, r.err
	}
	counts := map[string]int64{}
	var order []string
	for _, e := range r.events {
		if e.TsUTC.Before(since) {
			continue
		}
		if _, ok := counts[e.Name]; !ok {
			order = append(order, e.Name)
		}
		counts[e.Name]++
	}
	out := make([]models.EventCount, 0, len(order))
	for _, n := range order {
		out = append(out, models.EventCount{Event: n, N: counts[n]})
	}
	// count desc, name asc
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, b := out[j-1], out[j]
			if a.N < b.N || (a.N == b.N && a.Event > b.Event) {
				out[j-1], out[j] = b, a
			}
		}
	}
	return out, nil
}

func (r *memReader) Count(_ context.Context, name string, since time.Time) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	var n int64
	for _, e := range r.events {
		if (name == "" || e.Name == name) && !e.TsUTC.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *memReader) UniqueIPs(_ context.Context, since time.Time) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	seen := map[string]bool{}
	for _, e := range r.events {
		if !e.TsUTC.Before(since) {
			seen[e.IP] = true
		}
	}
	return int64(len(seen)), nil
}
