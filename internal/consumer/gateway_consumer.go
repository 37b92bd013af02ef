package consumer

import (
	"context"
	"strings"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/safar-travel/service-booking/internal/application"
	"github.com/safar-travel/service-booking/internal/events"
	"github.com/safar-travel/service-booking/internal/kafka"
)

// GatewayEventConsumer listens to payment gateway callback events and applies
// settlement outcomes to payments.
type GatewayEventConsumer struct {
	consumer       *kafka.Consumer
	paymentService *application.PaymentService
	logger         *zap.Logger
}

// NewGatewayEventConsumer creates a new consumer for gateway events.
func NewGatewayEventConsumer(
	brokers []string,
	groupID string,
	paymentService *application.PaymentService,
	logger *zap.Logger,
) *GatewayEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, events.TopicGatewayEvents, logger)
	return &GatewayEventConsumer{
		consumer:       consumer,
		paymentService: paymentService,
		logger:         logger,
	}
}

// Start begins consuming gateway events. It blocks until the context is
// cancelled.
func (c *GatewayEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// handleMessage routes incoming Kafka messages to the appropriate handler.
func (c *GatewayEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from gateway topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return err
	}

	c.logger.Info("received gateway event",
		zap.String("type", cloudEvent.Type),
		zap.String("id", cloudEvent.ID),
	)

	switch {
	case strings.EqualFold(cloudEvent.Type, events.GatewayCallback):
		return c.handleCallback(ctx, cloudEvent)

	default:
		c.logger.Debug("ignoring unhandled gateway event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

// handleCallback processes a GatewayCallbackEvent.
func (c *GatewayEventConsumer) handleCallback(ctx context.Context, ce kafka.CloudEvent) error {
	var event events.GatewayCallbackEvent
	if err := ce.ParseData(&event); err != nil {
		c.logger.Error("failed to parse GatewayCallbackEvent data", zap.Error(err))
		return err
	}

	return c.paymentService.HandleGatewayCallback(ctx, event)
}

// Close closes the underlying Kafka consumer.
func (c *GatewayEventConsumer) Close() error {
	return c.consumer.Close()
}
