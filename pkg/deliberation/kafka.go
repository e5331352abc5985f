package deliberation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the Kafka trigger.
type KafkaConfig struct {
	// Brokers is the list of broker addresses.
	Brokers []string

	// Topic receives one message per handoff.
	Topic string

	// WriteTimeout bounds a single publish.
	// Default: 10 seconds
	WriteTimeout time.Duration
}

// Validate checks the configuration.
func (c *KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required")
	}
	if c.Topic == "" {
		return fmt.Errorf("kafka topic is required")
	}
	return nil
}

// messageWriter is the part of *kafka.Writer the trigger uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaTrigger publishes handoffs as JSON messages keyed by workspace id.
type KafkaTrigger struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewKafkaTrigger creates a trigger backed by a kafka.Writer.
func NewKafkaTrigger(cfg KafkaConfig, logger *slog.Logger) (*KafkaTrigger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: cfg.WriteTimeout,
	}
	return newKafkaTrigger(w, cfg.Topic, logger), nil
}

func newKafkaTrigger(w messageWriter, topic string, logger *slog.Logger) *KafkaTrigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaTrigger{
		writer: w,
		topic:  topic,
		logger: logger.With("component", "deliberation.kafka", "topic", topic),
	}
}

// Trigger implements Trigger.
func (t *KafkaTrigger) Trigger(ctx context.Context, h Handoff) error {
	value, err := json.Marshal(h)
	if err != nil {
		return &TriggerError{Trigger: "kafka", HandoffID: h.ID, Cause: err}
	}

	headers := []kafka.Header{
		{Key: "handoff_id", Value: []byte(h.ID)},
		{Key: "action", Value: []byte(h.Action)},
	}
	for k, v := range h.TraceContext {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	msg := kafka.Message{
		Key:     []byte(h.WorkspaceID),
		Value:   value,
		Headers: headers,
		Time:    h.CreatedAt,
	}
	if err := t.writer.WriteMessages(ctx, msg); err != nil {
		return &TriggerError{Trigger: "kafka", HandoffID: h.ID, Cause: err}
	}
	t.logger.Debug("handoff published", "handoff_id", h.ID, "workspace_id", h.WorkspaceID)
	return nil
}

// Close flushes and closes the writer.
func (t *KafkaTrigger) Close() error {
	return t.writer.Close()
}
