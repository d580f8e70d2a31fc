package notify

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaPublisher writes events to a topic asynchronously. Delivery errors are
// reported through the logger only.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchSize:    10,
		BatchTimeout: 500 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("kafka delivery failed", zap.Int("messages", len(messages)), zap.Error(err))
			}
		},
	}
	return &KafkaPublisher{writer: writer, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	value, err := event.Encode()
	if err != nil {
		p.logger.Error("failed to encode event", zap.String("kind", string(event.Kind)), zap.Error(err))
		return
	}
	// With Async set WriteMessages only enqueues; it fails for a closed writer.
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.MessageKey()),
		Value: value,
		Time:  event.OccurredAt,
	}); err != nil {
		p.logger.Warn("failed to enqueue event", zap.String("key", event.MessageKey()), zap.Error(err))
	}
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
