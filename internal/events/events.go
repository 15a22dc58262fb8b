package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// Event types carried in the event-type header
const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
)

const headerEventType = "event-type"

// OrderEvent is the payload published after an order is committed
type OrderEvent struct {
	Type           string             `json:"type"`
	OrderID        uuid.UUID          `json:"orderId"`
	UserID         uuid.UUID          `json:"userId"`
	ProductID      uuid.UUID          `json:"productId"`
	Quantity       int                `json:"quantity"`
	TotalPrice     decimal.Decimal    `json:"totalPrice"`
	Status         domain.OrderStatus `json:"status"`
	PreviousStatus domain.OrderStatus `json:"previousStatus,omitempty"`
	OccurredAt     time.Time          `json:"occurredAt"`
}

// NewOrderCreatedEvent describes a freshly placed order
func NewOrderCreatedEvent(o *domain.Order) OrderEvent {
	return OrderEvent{
		Type:       OrderCreated,
		OrderID:    o.ID,
		UserID:     o.UserID,
		ProductID:  o.ProductID,
		Quantity:   o.Quantity,
		TotalPrice: o.TotalPrice,
		Status:     o.Status,
		OccurredAt: o.CreatedAt,
	}
}

// NewStatusChangedEvent describes a status transition from previous to o.Status
func NewStatusChangedEvent(o *domain.Order, previous domain.OrderStatus) OrderEvent {
	return OrderEvent{
		Type:           OrderStatusChanged,
		OrderID:        o.ID,
		UserID:         o.UserID,
		ProductID:      o.ProductID,
		Quantity:       o.Quantity,
		TotalPrice:     o.TotalPrice,
		Status:         o.Status,
		PreviousStatus: previous,
		OccurredAt:     o.UpdatedAt,
	}
}

// Publisher delivers order events to downstream consumers
type Publisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
	Close() error
}

// messageWriter is the part of *kafka.Writer the publisher needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes order events to a kafka topic, keyed by order id
// so every event of one order lands on the same partition.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaWriter builds a synchronous writer for the given brokers and topic
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaPublisher creates a publisher over the given writer
func NewKafkaPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// PublishOrderEvent marshals and writes a single event
func (p *KafkaPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(event.Type)},
		},
		Time: event.OccurredAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

// Close flushes and closes the underlying writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderEvent(context.Context, OrderEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
