package repository

import (
	"context"

	"AnnuityPricer/internal/domain/models"
)

// publisher is satisfied by *pkg/kafka.Producer.
type publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaEventPublisher sends events as JSON keyed by event name, so one
// event type keeps its order within a partition.
type KafkaEventPublisher struct {
	p     publisher
	topic string
}

func NewKafkaEventPublisher(p publisher, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{p: p, topic: topic}
}

func (k *KafkaEventPublisher) Record(ctx context.Context, e *models.Event) error {
	return k.p.Publish(ctx, k.topic, []byte(e.Name), e)
}

func (k *KafkaEventPublisher) Close() error {
	return k.p.Close()
}
