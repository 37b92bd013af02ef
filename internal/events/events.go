package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kafka topics.
const (
	TopicOrderEvents   = "order.events"
	TopicPaymentEvents = "payment.events"
	TopicGatewayEvents = "gateway.events"
)

// Event type identifiers carried in the CloudEvent envelope.
const (
	OrderCreated     = "order.created"
	OrderConfirmed   = "order.confirmed"
	OrderCancelled   = "order.cancelled"
	PaymentCompleted = "payment.completed"
	PaymentFailed    = "payment.failed"
	GatewayCallback  = "gateway.callback"
)

// Gateway callback outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// OrderCreatedEvent is published when an order is finalized.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      uuid.UUID       `json:"user_id"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// OrderConfirmedEvent is published when an order transitions to confirmed.
type OrderConfirmedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      uuid.UUID `json:"user_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// OrderCancelledEvent is published when an order is cancelled.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      uuid.UUID `json:"user_id"`
	Reason      string    `json:"reason"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// PaymentCompletedEvent is published when a payment completes.
type PaymentCompletedEvent struct {
	PaymentID        uuid.UUID       `json:"payment_id"`
	OrderID          uuid.UUID       `json:"order_id"`
	UserID           uuid.UUID       `json:"user_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	GatewayReference string          `json:"gateway_reference"`
	OccurredAt       time.Time       `json:"occurred_at"`
}

// PaymentFailedEvent is published when a payment attempt fails.
type PaymentFailedEvent struct {
	PaymentID  uuid.UUID `json:"payment_id"`
	OrderID    uuid.UUID `json:"order_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// GatewayCallbackEvent is consumed from the payment gateway integration. The
// outcome is either "success" or "failure".
type GatewayCallbackEvent struct {
	PaymentID        uuid.UUID `json:"payment_id"`
	Outcome          string    `json:"outcome"`
	GatewayReference string    `json:"gateway_reference"`
	FailureReason    string    `json:"failure_reason,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}
