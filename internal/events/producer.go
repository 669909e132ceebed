// Package events publishes service request lifecycle events to Kafka.
// Publishing is best-effort and never blocks or fails the API path.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// StatusEventProducer is implemented by anything that can publish a status
// change event. The no-op zero value keeps tests and broker-less
// deployments simple.
type StatusEventProducer interface {
	PublishStatusChanged(ctx context.Context, payload map[string]any)
}

// Producer writes status change events to a Kafka topic.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a producer. With empty brokers or topic every publish
// is a no-op.
func NewProducer(brokers []string, topic string) *Producer {
	if len(brokers) == 0 || topic == "" {
		return &Producer{}
	}
	return &Producer{
		topic: topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// PublishStatusChanged sends one status_changed event. Payload keys:
// service_request_id, previous_status, new_status, changed_by,
// changed_by_role. Failures are logged and dropped.
func (p *Producer) PublishStatusChanged(ctx context.Context, payload map[string]any) {
	if p.writer == nil {
		return
	}
	msg := map[string]any{"event": "status_changed"}
	for k, v := range payload {
		msg[k] = v
	}
	body, err := json.Marshal(msg)
	if err != nil {
		log.Warn().Err(err).Msg("kafka: marshal status event")
		return
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Value: body}); err != nil {
		log.Warn().Err(err).Msg("kafka: write status event")
	}
}

// Close closes the underlying writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
