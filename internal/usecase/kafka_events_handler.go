package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"AnnuityPricer/internal/domain/models"
	domrepo "AnnuityPricer/internal/domain/repository"
	pkgkafka "AnnuityPricer/pkg/kafka"
)

// KafkaEventsHandler consumes published events and persists them.
type KafkaEventsHandler struct {
	topic   string
	store   domrepo.EventSink
	metrics domrepo.Metrics
}

func NewKafkaEventsHandler(topic string, store domrepo.EventSink, metrics domrepo.Metrics) *KafkaEventsHandler {
	return &KafkaEventsHandler{topic: topic, store: store, metrics: metrics}
}

func (h *KafkaEventsHandler) Topic() string { return h.topic }

// Handle decodes one event. Undecodable messages fail every attempt and end
// up on the dead letter topic.
func (h *KafkaEventsHandler) Handle(ctx context.Context, b []byte) error {
	var e models.Event
	if err := json.Unmarshal(b, &e); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode event: %w", err)
	}
	if e.ID == "" || e.TsUTC.IsZero() {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("decode event: missing id or ts_utc")
	}
	if e.Name == "" {
		e.Name = models.EventDefault
	}
	h.metrics.RecordLatency("ingest_e2e", time.Since(e.TsUTC).Seconds())

	start := time.Now()
	err := h.store.Record(ctx, &e)
	h.metrics.RecordLatency("ch_insert", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordEvent("clickhouse", e.Name)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaEventsHandler)(nil)
