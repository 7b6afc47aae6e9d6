package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"AnnuityPricer/internal/domain/models"
	pkgch "AnnuityPricer/pkg/clickhouse"
	applogger "AnnuityPricer/pkg/logger"
)

// ClickHouseEventStore implements repository.EventStore on an append-only
// MergeTree table.
type ClickHouseEventStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewClickHouseEventStore(ch *pkgch.Client, l *applogger.Logger) *ClickHouseEventStore {
	return &ClickHouseEventStore{
		db:    ch.DB(),
		table: ch.Database() + ".events",
		l:     l,
	}
}

// Schema returns the idempotent DDL for database and table.
func (s *ClickHouseEventStore) Schema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id      UUID,
            ts_utc  DateTime64(3, 'UTC'),
            ip      String,
            ua      String,
            ref     String,
            event   LowCardinality(String),
            payload String
        ) ENGINE = MergeTree
        PARTITION BY toYYYYMM(ts_utc)
        ORDER BY (event, ts_utc)`, s.table),
	}
}

func (s *ClickHouseEventStore) Record(ctx context.Context, e *models.Event) error {
	q := fmt.Sprintf(`INSERT INTO %s (id, ts_utc, ip, ua, ref, event, payload) VALUES (?, ?, ?, ?, ?, ?, ?)`, s.table)
	if _, err := s.db.ExecContext(ctx, q, e.ID, e.TsUTC.UTC(), e.IP, e.UA, e.Ref, e.Name, string(e.Payload)); err != nil {
		s.l.Error("clickhouse insert event error",
			applogger.String("table", s.table),
			applogger.String("event", e.Name),
			applogger.Error(err),
		)
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *ClickHouseEventStore) Recent(ctx context.Context, limit int) ([]*models.Event, error) {
	q := fmt.Sprintf(`
        SELECT toString(id), ts_utc, ip, ua, ref, event, payload
        FROM %s
        ORDER BY ts_utc DESC
        LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, s.queryErr("recent", err)
	}
	defer rows.Close()

	out := make([]*models.Event, 0, 256)
	for rows.Next() {
		var (
			e       models.Event
			payload string
		)
		if err := rows.Scan(&e.ID, &e.TsUTC, &e.IP, &e.UA, &e.Ref, &e.Name, &payload); err != nil {
			return nil, s.queryErr("recent scan", err)
		}
		e.TsUTC = e.TsUTC.UTC()
		e.Payload = []byte(payload)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, s.queryErr("recent rows", err)
	}
	return out, nil
}

func (s *ClickHouseEventStore) DailyCounts(ctx context.Context, name string, since time.Time) (map[string]int64, error) {
	q := fmt.Sprintf(`
        SELECT toString(toDate(ts_utc)) AS d, toInt64(count()) AS n
        FROM %s
        WHERE event = ? AND ts_utc >= ?
        GROUP BY d`, s.table)
	rows, err := s.db.QueryContext(ctx, q, name, since.UTC())
	if err != nil {
		return nil, s.queryErr("daily counts", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			day string
			n   int64
		)
		if err := rows.Scan(&day, &n); err != nil {
			return nil, s.queryErr("daily counts scan", err)
		}
		out[day] = n
	}
	if err := rows.Err(); err != nil {
		return nil, s.queryErr("daily counts rows", err)
	}
	return out, nil
}

func (s *ClickHouseEventStore) CountByEvent(ctx context.Context, since time.Time) ([]models.EventCount, error) {
	q := fmt.Sprintf(`
        SELECT event, toInt64(count()) AS n
        FROM %s
        WHERE ts_utc >= ?
        GROUP BY event
        ORDER BY n DESC, event ASC`, s.table)
	rows, err := s.db.QueryContext(ctx, q, since.UTC())
	if err != nil {
		return nil, s.queryErr("count by event", err)
	}
	defer rows.Close()

	out := make([]models.EventCount, 0, 8)
	for rows.Next() {
		var c models.EventCount
		if err := rows.Scan(&c.Event, &c.N); err != nil {
			return nil, s.queryErr("count by event scan", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, s.queryErr("count by event rows", err)
	}
	return out, nil
}

func (s *ClickHouseEventStore) Count(ctx context.Context, name string, since time.Time) (int64, error) {
	var (
		n   int64
		err error
	)
	if name == "" {
		q := fmt.Sprintf(`SELECT toInt64(count()) FROM %s WHERE ts_utc >= ?`, s.table)
		err = s.db.QueryRowContext(ctx, q, since.UTC()).Scan(&n)
	} else {
		q := fmt.Sprintf(`SELECT toInt64(count()) FROM %s WHERE event = ? AND ts_utc >= ?`, s.table)
		err = s.db.QueryRowContext(ctx, q, name, since.UTC()).Scan(&n)
	}
	if err != nil {
		return 0, s.queryErr("count", err)
	}
	return n, nil
}

func (s *ClickHouseEventStore) UniqueIPs(ctx context.Context, since time.Time) (int64, error) {
	q := fmt.Sprintf(`SELECT toInt64(uniqExact(ip)) FROM %s WHERE ts_utc >= ?`, s.table)
	var n int64
	if err := s.db.QueryRowContext(ctx, q, since.UTC()).Scan(&n); err != nil {
		return 0, s.queryErr("unique ips", err)
	}
	return n, nil
}

func (s *ClickHouseEventStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseEventStore) Close() error {
	return s.db.Close()
}

func (s *ClickHouseEventStore) queryErr(op string, err error) error {
	s.l.Error("clickhouse query error",
		applogger.String("table", s.table),
		applogger.String("op", op),
		applogger.Error(err),
	)
	return fmt.Errorf("%s: %w", op, err)
}
