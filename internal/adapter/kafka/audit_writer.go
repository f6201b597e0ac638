package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/YelzhanWeb/canteen/internal/config"
	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/segmentio/kafka-go"
)

// messageWriter abstracts kafka.Writer for tests.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AuditWriter mirrors audit records to a Kafka topic, keyed by actor so one actor's
// records stay ordered within a partition.
type AuditWriter struct {
	writer messageWriter
}

func NewAuditWriter(cfg config.KafkaConfig) *AuditWriter {
	return &AuditWriter{writer: &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.AuditTopic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}}
}

func newAuditWriterWith(w messageWriter) *AuditWriter {
	return &AuditWriter{writer: w}
}

func (w *AuditWriter) Append(ctx context.Context, rec *domain.AuditRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(rec.ActorID),
		Value: b,
		Time:  rec.CreatedAt,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(rec.Action)},
			{Key: "outcome", Value: []byte(rec.Outcome)},
		},
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write audit record to kafka: %w", err)
	}
	return nil
}

func (w *AuditWriter) Close() error {
	return w.writer.Close()
}
