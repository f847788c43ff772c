package events

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

// EventType represents the type of order event.
type EventType string

const (
	EventTypeOrderCreated              EventType = "order.created"
	EventTypeOrderStatusChanged        EventType = "order.status_changed"
	EventTypeOrderPaymentStatusChanged EventType = "order.payment_status_changed"
)

// OrderEvent represents an order-related event.
type OrderEvent struct {
	ID            string            `json:"id"`
	Type          EventType         `json:"type"`
	OrderID       int64             `json:"order_id"`
	UserID        *int64            `json:"user_id,omitempty"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	CorrelationID string            `json:"correlation_id,omitempty"`
}

// StatusChangedData is the payload of both status change events.
type StatusChangedData struct {
	Order    *models.Order `json:"order"`
	Previous string        `json:"previous"`
	Current  string        `json:"current"`
}

// OrderEventPublisher is what the order service needs from the event bus.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *models.Order) error
	PublishStatusChanged(ctx context.Context, order *models.Order, change models.StatusChange) error
}

var (
	_ OrderEventPublisher = (*KafkaPublisher)(nil)
	_ OrderEventPublisher = (*MockEventPublisher)(nil)
	_ OrderEventPublisher = NopPublisher{}
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes order events to Kafka.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *logging.Logger
}

// NewKafkaPublisher creates a new Kafka-based event publisher.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *logging.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.OrdersTopic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(writer, cfg.OrdersTopic, logger)
}

func newKafkaPublisher(w messageWriter, topic string, logger *logging.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		topic:  topic,
		logger: logger,
	}
}

// PublishOrderCreated publishes an order created event.
func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	p.logger.Debug("Publishing order created event", logging.Fields{
		"order_id": order.ID,
	})

	data, err := json.Marshal(order)
	if err != nil {
		return err
	}

	event := p.createEvent(ctx, EventTypeOrderCreated, order, data)
	event.Metadata["payment_method"] = string(order.PaymentMethod)
	return p.publish(ctx, event)
}

// PublishStatusChanged publishes one event per axis that moved. An approved
// payment that also advanced fulfillment yields two events.
func (p *KafkaPublisher) PublishStatusChanged(ctx context.Context, order *models.Order, change models.StatusChange) error {
	var events []*OrderEvent

	if change.PaymentChanged {
		data, err := json.Marshal(StatusChangedData{
			Order:    order,
			Previous: string(change.PreviousPaymentStatus),
			Current:  string(order.PaymentStatus),
		})
		if err != nil {
			return err
		}
		events = append(events, p.createEvent(ctx, EventTypeOrderPaymentStatusChanged, order, data))
	}

	if change.FulfillmentChanged {
		data, err := json.Marshal(StatusChangedData{
			Order:    order,
			Previous: string(change.PreviousStatus),
			Current:  string(order.Status),
		})
		if err != nil {
			return err
		}
		events = append(events, p.createEvent(ctx, EventTypeOrderStatusChanged, order, data))
	}

	if len(events) == 0 {
		return nil
	}

	p.logger.Debug("Publishing order status events", logging.Fields{
		"order_id":       order.ID,
		"status":         order.Status,
		"payment_status": order.PaymentStatus,
		"events":         len(events),
	})
	return p.publish(ctx, events...)
}

func (p *KafkaPublisher) createEvent(ctx context.Context, eventType EventType, order *models.Order, data []byte) *OrderEvent {
	return &OrderEvent{
		ID:            uuid.NewString(),
		Type:          eventType,
		OrderID:       order.ID,
		UserID:        order.UserID,
		Data:          data,
		Metadata:      make(map[string]string),
		Timestamp:     time.Now().UTC(),
		CorrelationID: middleware.RequestIDFromContext(ctx),
	}
}

func (p *KafkaPublisher) publish(ctx context.Context, events ...*OrderEvent) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		eventData, err := json.Marshal(event)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.FormatInt(event.OrderID, 10)),
			Value: eventData,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(event.Type)},
				{Key: "event_id", Value: []byte(event.ID)},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("Failed to publish events", logging.Fields{
			"topic":    p.topic,
			"order_id": events[0].OrderID,
			"count":    len(events),
			"error":    err.Error(),
		})
		return err
	}

	for _, event := range events {
		p.logger.Info("Event published", logging.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
			"order_id":   event.OrderID,
		})
	}
	return nil
}

// Close closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info("Closing Kafka publisher")
	return p.writer.Close()
}

// NopPublisher drops every event. Used when order events are disabled.
type NopPublisher struct{}

func (NopPublisher) PublishOrderCreated(context.Context, *models.Order) error { return nil }

func (NopPublisher) PublishStatusChanged(context.Context, *models.Order, models.StatusChange) error {
	return nil
}

// MockEventPublisher records events for tests.
type MockEventPublisher struct {
	mu     sync.Mutex
	Events []*OrderEvent
	Err    error
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{
		Events: make([]*OrderEvent, 0),
	}
}

func (m *MockEventPublisher) PublishOrderCreated(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, &OrderEvent{
		Type:    EventTypeOrderCreated,
		OrderID: order.ID,
		UserID:  order.UserID,
	})
	return m.Err
}

func (m *MockEventPublisher) PublishStatusChanged(_ context.Context, order *models.Order, change models.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if change.PaymentChanged {
		m.Events = append(m.Events, &OrderEvent{Type: EventTypeOrderPaymentStatusChanged, OrderID: order.ID})
	}
	if change.FulfillmentChanged {
		m.Events = append(m.Events, &OrderEvent{Type: EventTypeOrderStatusChanged, OrderID: order.ID})
	}
	return m.Err
}

// Types returns the recorded event types in publish order.
func (m *MockEventPublisher) Types() []EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EventType, 0, len(m.Events))
	for _, e := range m.Events {
		out = append(out, e.Type)
	}
	return out
}
