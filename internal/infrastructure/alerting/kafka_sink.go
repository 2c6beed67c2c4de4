// Package alerting implements the AlertSink contract. The Kafka sink
// publishes alert-worthy events for downstream responders; the noop sink
// stands in when alerting is disabled.
package alerting

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/sentra-sec/sentra/internal/config"
	"github.com/sentra-sec/sentra/internal/domain/models"
	"github.com/sentra-sec/sentra/internal/domain/service"
	"github.com/sentra-sec/sentra/pkg/logger"
)

// KafkaSink publishes alerts to a Kafka topic, keyed by principal so alerts
// for the same principal stay ordered within a partition.
type KafkaSink struct {
	writer *kafka.Writer
	log    logger.Logger
}

// NewKafkaSink creates a Kafka-backed alert sink.
func NewKafkaSink(cfg config.KafkaConfig, log logger.Logger) service.AlertSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.AlertTopic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaSink{writer: writer, log: log.WithComponent("alerting")}
}

// Deliver publishes one alert-worthy event.
func (s *KafkaSink) Deliver(ctx context.Context, event *models.SecurityEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.PrincipalID),
		Value: payload,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.log.Error(ctx, "failed to publish alert", err,
			logger.String("event_id", event.ID))
		return err
	}
	return nil
}

// Close flushes and releases the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// NoopSink drops alerts. Used when alerting is disabled in configuration.
type NoopSink struct{}

// NewNoopSink creates a sink that discards every alert.
func NewNoopSink() service.AlertSink { return NoopSink{} }

// Deliver discards the event.
func (NoopSink) Deliver(context.Context, *models.SecurityEvent) error { return nil }

// Close is a no-op.
func (NoopSink) Close() error { return nil }
