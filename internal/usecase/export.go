package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	domrepo "AnnuityPricer/internal/domain/repository"
	applogger "AnnuityPricer/pkg/logger"
)

const csvHeader = "id;ts_utc;ip;event;payload\n"

// ExportService renders the most recent events as ';'-separated text.
type ExportService struct {
	reader domrepo.EventReader
	limit  int
	l      *applogger.Logger
}

func NewExportService(reader domrepo.EventReader, limit int, l *applogger.Logger) *ExportService {
	return &ExportService{reader: reader, limit: limit, l: l}
}

// CSV returns the header followed by up to limit rows, newest first. On a
// store error the header alone is returned with the error.
func (s *ExportService) CSV(ctx context.Context) (string, error) {
	events, err := s.reader.Recent(ctx, s.limit)
	if err != nil {
		s.l.Error("export events failed", applogger.Error(err))
		return csvHeader, fmt.Errorf("export: %w", err)
	}
	var b strings.Builder
	b.Grow(len(csvHeader) + len(events)*128)
	b.WriteString(csvHeader)
	for _, e := range events {
		payload, err := compactJSON(e.Payload)
		if err != nil {
			payload = e.Payload
		}
		fmt.Fprintf(&b, "%s;%s;%s;%s;%s\n",
			e.ID,
			e.TsUTC.UTC().Format(time.RFC3339Nano),
			e.IP,
			e.Name,
			payload)
	}
	return b.String(), nil
}

func compactJSON(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
