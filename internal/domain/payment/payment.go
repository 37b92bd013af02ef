package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/safar-travel/service-booking/internal/domain"
)

// Status represents the state of a payment attempt.
type Status string

const (
	StatusPending           Status = "pending"
	StatusProcessing        Status = "processing"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
	StatusRefunded          Status = "refunded"
	StatusPartiallyRefunded Status = "partially_refunded"
)

// Method enumerates the supported payment methods.
type Method string

const (
	MethodCard         Method = "card"
	MethodMada         Method = "mada"
	MethodApplePay     Method = "apple_pay"
	MethodSTCPay       Method = "stc_pay"
	MethodBankTransfer Method = "bank_transfer"
)

// ValidMethod reports whether m names a supported method.
func ValidMethod(m Method) bool {
	switch m {
	case MethodCard, MethodMada, MethodApplePay, MethodSTCPay, MethodBankTransfer:
		return true
	}
	return false
}

// Payment is the aggregate root for a payment attempt against an order.
// The idempotency key is unique: one key maps to at most one payment row, so
// duplicate initiation requests never create a second charge attempt.
type Payment struct {
	id               uuid.UUID
	userID           uuid.UUID
	orderID          uuid.UUID
	amount           decimal.Decimal
	currency         string
	method           Method
	status           Status
	idempotencyKey   string
	gatewayReference string
	completedAt      *time.Time
	failedAt         *time.Time
	failureReason    string
	version          int64
	createdAt        time.Time
	updatedAt        time.Time
}

// NewPayment creates a pending payment. A missing idempotency key is
// generated so retried requests can be deduplicated by the caller.
func NewPayment(userID, orderID uuid.UUID, amount decimal.Decimal, currency string, method Method, idempotencyKey string) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, domain.NewValidationError("payment amount must be positive")
	}
	if !ValidMethod(method) {
		return nil, domain.NewValidationError("invalid payment method: " + string(method))
	}
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	now := time.Now().UTC()
	return &Payment{
		id:             uuid.New(),
		userID:         userID,
		orderID:        orderID,
		amount:         amount.Round(2),
		currency:       currency,
		method:         method,
		status:         StatusPending,
		idempotencyKey: idempotencyKey,
		version:        1,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// Reconstitute rebuilds a Payment from persisted data.
func Reconstitute(
	id, userID, orderID uuid.UUID,
	amount decimal.Decimal,
	currency string,
	method Method,
	status Status,
	idempotencyKey, gatewayReference string,
	completedAt, failedAt *time.Time,
	failureReason string,
	version int64,
	createdAt, updatedAt time.Time,
) *Payment {
	return &Payment{
		id: id, userID: userID, orderID: orderID,
		amount: amount, currency: currency, method: method, status: status,
		idempotencyKey: idempotencyKey, gatewayReference: gatewayReference,
		completedAt: completedAt, failedAt: failedAt, failureReason: failureReason,
		version: version, createdAt: createdAt, updatedAt: updatedAt,
	}
}

// MarkProcessing records that the gateway accepted the charge attempt.
func (p *Payment) MarkProcessing(gatewayReference string) error {
	if p.status != StatusPending {
		return domain.NewInvalidStateError(string(p.status), string(StatusProcessing))
	}
	p.status = StatusProcessing
	p.gatewayReference = gatewayReference
	p.updatedAt = time.Now().UTC()
	return nil
}

// Complete transitions pending or processing to completed on a success
// callback. Completed and failed are terminal for callbacks; refund is a
// distinct explicit operation, not a re-delivered callback.
func (p *Payment) Complete(gatewayReference string) error {
	if p.status != StatusPending && p.status != StatusProcessing {
		return domain.NewInvalidStateError(string(p.status), string(StatusCompleted))
	}
	now := time.Now().UTC()
	p.status = StatusCompleted
	if gatewayReference != "" {
		p.gatewayReference = gatewayReference
	}
	p.completedAt = &now
	p.updatedAt = now
	return nil
}

// Fail transitions pending or processing to failed on a failure callback.
func (p *Payment) Fail(reason string) error {
	if p.status != StatusPending && p.status != StatusProcessing {
		return domain.NewInvalidStateError(string(p.status), string(StatusFailed))
	}
	now := time.Now().UTC()
	p.status = StatusFailed
	p.failureReason = reason
	p.failedAt = &now
	p.updatedAt = now
	return nil
}

// Refund reverses a completed payment in full.
func (p *Payment) Refund() error {
	if p.status != StatusCompleted && p.status != StatusPartiallyRefunded {
		return domain.NewInvalidStateError(string(p.status), string(StatusRefunded))
	}
	p.status = StatusRefunded
	p.updatedAt = time.Now().UTC()
	return nil
}

// RefundPartially marks a completed payment as partially reversed.
func (p *Payment) RefundPartially() error {
	if p.status != StatusCompleted {
		return domain.NewInvalidStateError(string(p.status), string(StatusPartiallyRefunded))
	}
	p.status = StatusPartiallyRefunded
	p.updatedAt = time.Now().UTC()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (p *Payment) IncrementVersion() {
	p.version++
	p.updatedAt = time.Now().UTC()
}

// Getters.
func (p *Payment) ID() uuid.UUID            { return p.id }
func (p *Payment) UserID() uuid.UUID        { return p.userID }
func (p *Payment) OrderID() uuid.UUID       { return p.orderID }
func (p *Payment) Amount() decimal.Decimal  { return p.amount }
func (p *Payment) Currency() string         { return p.currency }
func (p *Payment) Method() Method           { return p.method }
func (p *Payment) Status() Status           { return p.status }
func (p *Payment) IdempotencyKey() string   { return p.idempotencyKey }
func (p *Payment) GatewayReference() string { return p.gatewayReference }
func (p *Payment) CompletedAt() *time.Time  { return p.completedAt }
func (p *Payment) FailedAt() *time.Time     { return p.failedAt }
func (p *Payment) FailureReason() string    { return p.failureReason }
func (p *Payment) Version() int64           { return p.version }
func (p *Payment) CreatedAt() time.Time     { return p.createdAt }
func (p *Payment) UpdatedAt() time.Time     { return p.updatedAt }
