package usecase

import (
	"context"
	"fmt"
	"time"

	"AnnuityPricer/internal/domain/models"
	domrepo "AnnuityPricer/internal/domain/repository"
	"AnnuityPricer/pkg/cache"
	applogger "AnnuityPricer/pkg/logger"
	"AnnuityPricer/pkg/util"
)

const (
	MinStatsDays     = 1
	MaxStatsDays     = 365
	DefaultStatsDays = 30
)

// StatsService aggregates events into the dashboard payload.
type StatsService struct {
	reader  domrepo.EventReader
	cache   cache.Service
	ttl     time.Duration
	metrics domrepo.Metrics
	l       *applogger.Logger
	now     func() time.Time
}

// NewStatsService caches results per window for ttl. A nil cache or a zero
// ttl disables caching.
func NewStatsService(reader domrepo.EventReader, c cache.Service, ttl time.Duration, metrics domrepo.Metrics, l *applogger.Logger) *StatsService {
	return &StatsService{reader: reader, cache: c, ttl: ttl, metrics: metrics, l: l, now: time.Now}
}

// Stats returns the statistics for the last days days, clamped to
// [MinStatsDays, MaxStatsDays]. When the store fails the zero payload is
// returned, so the dashboard still renders.
func (s *StatsService) Stats(ctx context.Context, days int) *models.Stats {
	days = util.Clamp(days, MinStatsDays, MaxStatsDays)
	start := time.Now()
	defer func() { s.metrics.RecordLatency("stats", time.Since(start).Seconds()) }()

	var (
		st  *models.Stats
		err error
	)
	if s.cache != nil && s.ttl > 0 {
		st, _, err = cache.GetOrLoad(ctx, s.cache, cache.Key("stats", days), s.ttl,
			func(ctx context.Context) (*models.Stats, error) { return s.compute(ctx, days) })
	} else {
		st, err = s.compute(ctx, days)
	}
	if err != nil {
		s.metrics.RecordError("stats")
		s.l.Error("stats query failed", applogger.Int("days", days), applogger.Error(err))
		return models.EmptyStats(days)
	}
	return st
}

func (s *StatsService) compute(ctx context.Context, days int) (*models.Stats, error) {
	now := s.now().UTC()
	since := now.AddDate(0, 0, -days)

	visitsByDay, err := s.reader.DailyCounts(ctx, models.EventPageView, since)
	if err != nil {
		return nil, fmt.Errorf("daily visits: %w", err)
	}
	simsByDay, err := s.reader.DailyCounts(ctx, models.EventCalculateClick, since)
	if err != nil {
		return nil, fmt.Errorf("daily sims: %w", err)
	}
	byEvent, err := s.reader.CountByEvent(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("by event: %w", err)
	}

	st := models.EmptyStats(days)
	if byEvent != nil {
		st.ByEvent = byEvent
	}
	st.Labels = util.DaySeries(since, now)
	st.VisitsByDay = make([]int64, len(st.Labels))
	st.SimsByDay = make([]int64, len(st.Labels))
	for i, day := range st.Labels {
		st.VisitsByDay[i] = visitsByDay[day]
		st.SimsByDay[i] = simsByDay[day]
	}

	counts := []struct {
		dst   *int64
		name  string
		since time.Time
	}{
		{&st.Last, "", now.Add(-24 * time.Hour)},
		{&st.VisitsTotal, models.EventPageView, since},
		{&st.AttemptsTotal, models.EventCalculateClick, since},
		{&st.AttemptsSuccess, models.EventCalculateSuccess, since},
	}
	for _, c := range counts {
		if *c.dst, err = s.reader.Count(ctx, c.name, c.since); err != nil {
			return nil, fmt.Errorf("count %q: %w", c.name, err)
		}
	}
	if st.UniqueIPs, err = s.reader.UniqueIPs(ctx, since); err != nil {
		return nil, fmt.Errorf("unique ips: %w", err)
	}
	if st.UniqueIPs > 0 {
		st.VisitsPerUser = float64(st.VisitsTotal) / float64(st.UniqueIPs)
	}
	return st, nil
}
