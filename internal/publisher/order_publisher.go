// Package publisher emits order lifecycle events to Kafka.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/SalBom/app-sb-sub000/internal/domain"
)

const (
	DefaultTopic          = "orders-confirmed"
	EventOrderConfirmed   = "order.confirmed"
	defaultPublishTimeout = 5 * time.Second
)

// MessageWriter is the subset of *kafka.Writer used here.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OrderPublisher struct {
	writer  MessageWriter
	timeout time.Duration
	logger  *zap.Logger
}

// NewKafkaOrderPublisher writes to topic on brokers.
func NewKafkaOrderPublisher(topic string, logger *zap.Logger, brokers ...string) *OrderPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return NewOrderPublisher(w, logger)
}

func NewOrderPublisher(writer MessageWriter, logger *zap.Logger) *OrderPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderPublisher{writer: writer, timeout: defaultPublishTimeout, logger: logger}
}

// PublishOrderConfirmed writes one event keyed by order id so events of the
// same order stay ordered within a partition.
func (p *OrderPublisher) PublishOrderConfirmed(ctx context.Context, event domain.OrderConfirmed) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.OrderID, 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventOrderConfirmed)},
			{Key: "transaction_id", Value: []byte(event.TransactionID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish order %d: %w", event.OrderID, err)
	}
	p.logger.Debug("order event published", zap.Int64("order_id", event.OrderID))
	return nil
}

func (p *OrderPublisher) Close() error {
	return p.writer.Close()
}
