package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

// NotificationHandler reconciles one gateway notification. It is the same
// path the HTTP webhook uses.
type NotificationHandler interface {
	HandleNotification(ctx context.Context, n *models.GatewayNotification) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer consumes relayed payment gateway notifications.
type KafkaConsumer struct {
	reader         messageReader
	handler        NotificationHandler
	handlerTimeout time.Duration
	logger         *logging.Logger
}

// NewKafkaConsumer creates a new Kafka-based notification consumer.
func NewKafkaConsumer(cfg config.KafkaConfig, handler NotificationHandler, handlerTimeout time.Duration, logger *logging.Logger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.PaymentNotificationTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
	return newKafkaConsumer(reader, handler, handlerTimeout, logger)
}

func newKafkaConsumer(r messageReader, handler NotificationHandler, handlerTimeout time.Duration, logger *logging.Logger) *KafkaConsumer {
	if handlerTimeout <= 0 {
		handlerTimeout = 10 * time.Second
	}
	return &KafkaConsumer{
		reader:         r,
		handler:        handler,
		handlerTimeout: handlerTimeout,
		logger:         logger,
	}
}

// Start consumes until ctx is cancelled. Every message is committed after
// handling, whatever the outcome, so a poison message cannot stall the
// partition.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting Kafka consumer")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("Kafka consumer stopped")
				return nil
			}
			c.logger.Error("Failed to read message", logging.Fields{"error": err.Error()})
			continue
		}

		c.handleMessage(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("Failed to commit message", logging.Fields{
				"partition": msg.Partition,
				"offset":    msg.Offset,
				"error":     err.Error(),
			})
		}
	}
}

// Close closes the reader.
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

func (c *KafkaConsumer) handleMessage(ctx context.Context, msg kafka.Message) {
	c.logger.Debug("Received message", logging.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	var n models.GatewayNotification
	if err := json.Unmarshal(msg.Value, &n); err != nil {
		c.logger.Error("Failed to unmarshal notification", logging.Fields{
			"offset": msg.Offset,
			"error":  err.Error(),
		})
		return
	}

	hctx, cancel := context.WithTimeout(ctx, c.handlerTimeout)
	defer cancel()

	if err := c.handler.HandleNotification(hctx, &n); err != nil {
		c.logger.Warn("Relayed notification not applied", logging.Fields{
			"payment_id": n.Data.ID.String(),
			"error":      err.Error(),
		})
	}
}
