package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/psds-microservice/support-service/internal/notify"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the producer needs (swapped in tests).
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes notices to a topic keyed by recipient, so one chat's
// notices stay ordered within a partition. It implements notify.Sender.
type Producer struct {
	writer MessageWriter
	topic  string
}

var ErrNotConfigured = errors.New("kafka: producer not configured")

// NewProducer returns a producer. With no brokers or topic, Send fails with ErrNotConfigured.
func NewProducer(brokers []string, topic string) *Producer {
	if len(brokers) == 0 || topic == "" {
		return &Producer{}
	}
	return &Producer{
		topic: topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// NewProducerWithWriter wires a custom writer.
func NewProducerWithWriter(w MessageWriter, topic string) *Producer {
	return &Producer{writer: w, topic: topic}
}

func (p *Producer) Enabled() bool { return p.writer != nil }

func (p *Producer) Send(ctx context.Context, n notify.Notice) error {
	if p.writer == nil {
		return ErrNotConfigured
	}
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("kafka: marshal notice: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(n.RecipientID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(n.Kind)},
			{Key: "notice_id", Value: []byte(n.ID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write notice: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
