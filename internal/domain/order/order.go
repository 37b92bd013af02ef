package order

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/safar-travel/service-booking/internal/domain"
	"github.com/safar-travel/service-booking/internal/domain/quote"
)

// Status represents the lifecycle state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// InitialStatus is the status intent a caller declares at creation time.
// "under_review" maps to processing: the order is accepted but held for
// manual verification (e.g. bank transfer payments).
type InitialStatus string

const (
	InitialPending     InitialStatus = "pending"
	InitialConfirmed   InitialStatus = "confirmed"
	InitialUnderReview InitialStatus = "under_review"
)

// Pricing is the monetary summary an order is created with.
type Pricing struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Taxes    decimal.Decimal
	Total    decimal.Decimal
}

// LineItem is one service to book within an order.
type LineItem struct {
	ServiceType      quote.ServiceType
	ServiceName      string
	BookingReference string // generated when empty
	Details          map[string]any
	Travelers        []quote.Traveler
	Price            decimal.Decimal
	Currency         string
	ServiceDate      *time.Time
}

// Order is the aggregate root for a confirmed purchase. It owns its
// sub-bookings exclusively; an order is never persisted without at least one.
type Order struct {
	id                 uuid.UUID
	userID             uuid.UUID
	quoteID            *uuid.UUID
	orderNumber        string
	status             Status
	subtotal           decimal.Decimal
	discount           decimal.Decimal
	taxes              decimal.Decimal
	total              decimal.Decimal
	currency           string
	paymentMethod      string
	paymentReference   string
	paidAt             *time.Time
	cancelledAt        *time.Time
	cancellationReason string
	bookings           []*SubBooking
	createdAt          time.Time
	updatedAt          time.Time
}

// NewOrder creates an order with one sub-booking per line item. Sub-bookings
// start confirmed only when the order itself is created already-confirmed.
func NewOrder(
	userID uuid.UUID,
	quoteID *uuid.UUID,
	initial InitialStatus,
	pricing Pricing,
	currency, paymentMethod string,
	items []LineItem,
) (*Order, error) {
	if len(items) == 0 {
		return nil, domain.NewValidationError("order requires at least one item")
	}
	if pricing.Subtotal.IsNegative() || pricing.Discount.IsNegative() {
		return nil, domain.NewValidationError("amounts must not be negative")
	}
	if paymentMethod == "" {
		return nil, domain.NewValidationError("payment method is required")
	}

	var status Status
	switch initial {
	case InitialPending, "":
		status = StatusPending
	case InitialConfirmed:
		status = StatusConfirmed
	case InitialUnderReview:
		status = StatusProcessing
	default:
		return nil, domain.NewValidationError("initial status must be pending, confirmed or under_review")
	}

	now := time.Now().UTC()
	o := &Order{
		id:            uuid.New(),
		userID:        userID,
		quoteID:       quoteID,
		orderNumber:   GenerateOrderNumber(),
		status:        status,
		subtotal:      pricing.Subtotal.Round(2),
		discount:      pricing.Discount.Round(2),
		taxes:         pricing.Taxes.Round(2),
		total:         pricing.Total.Round(2),
		currency:      currency,
		paymentMethod: paymentMethod,
		createdAt:     now,
		updatedAt:     now,
	}

	bookingStatus := BookingStatusPending
	if status == StatusConfirmed {
		bookingStatus = BookingStatusConfirmed
	}
	for _, item := range items {
		if !quote.ValidServiceType(item.ServiceType) {
			return nil, domain.NewValidationError("invalid service type: " + string(item.ServiceType))
		}
		if item.Price.IsNegative() {
			return nil, domain.NewValidationError("item price must not be negative")
		}
		ref := item.BookingReference
		if ref == "" {
			ref = GenerateBookingReference(item.ServiceType, now)
		}
		cur := item.Currency
		if cur == "" {
			cur = currency
		}
		o.bookings = append(o.bookings, &SubBooking{
			ID:               uuid.New(),
			OrderID:          o.id,
			ServiceType:      item.ServiceType,
			ServiceName:      item.ServiceName,
			BookingReference: ref,
			Status:           bookingStatus,
			Details:          item.Details,
			Travelers:        item.Travelers,
			Price:            item.Price.Round(2),
			Currency:         cur,
			ServiceDate:      item.ServiceDate,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}

	return o, nil
}

// Reconstruct rebuilds an Order from persistence.
func Reconstruct(
	id, userID uuid.UUID,
	quoteID *uuid.UUID,
	orderNumber string,
	status Status,
	subtotal, discount, taxes, total decimal.Decimal,
	currency, paymentMethod, paymentReference string,
	paidAt, cancelledAt *time.Time,
	cancellationReason string,
	bookings []*SubBooking,
	createdAt, updatedAt time.Time,
) *Order {
	return &Order{
		id: id, userID: userID, quoteID: quoteID, orderNumber: orderNumber,
		status: status, subtotal: subtotal, discount: discount, taxes: taxes,
		total: total, currency: currency, paymentMethod: paymentMethod,
		paymentReference: paymentReference, paidAt: paidAt,
		cancelledAt: cancelledAt, cancellationReason: cancellationReason,
		bookings: bookings, createdAt: createdAt, updatedAt: updatedAt,
	}
}

// RegenerateOrderNumber replaces the order number after a uniqueness
// collision. Callers retry the insert.
func (o *Order) RegenerateOrderNumber() {
	o.orderNumber = GenerateOrderNumber()
}

// Confirm transitions pending to confirmed.
func (o *Order) Confirm() error {
	if o.status != StatusPending {
		return domain.NewInvalidStateError(string(o.status), string(StatusConfirmed))
	}
	o.status = StatusConfirmed
	o.updatedAt = time.Now().UTC()
	return nil
}

// StartProcessing transitions pending to processing.
func (o *Order) StartProcessing() error {
	if o.status != StatusPending {
		return domain.NewInvalidStateError(string(o.status), string(StatusProcessing))
	}
	o.status = StatusProcessing
	o.updatedAt = time.Now().UTC()
	return nil
}

// Complete transitions confirmed or processing to the terminal completed state.
func (o *Order) Complete() error {
	if o.status != StatusConfirmed && o.status != StatusProcessing {
		return domain.NewInvalidStateError(string(o.status), string(StatusCompleted))
	}
	o.status = StatusCompleted
	o.updatedAt = time.Now().UTC()
	return nil
}

// Cancel transitions any non-terminal order to cancelled and cascades to
// every sub-booking. A cancelled order never retains a live sub-booking.
func (o *Order) Cancel(reason string) error {
	switch o.status {
	case StatusCancelled:
		return domain.NewBusinessRuleError("order is already cancelled")
	case StatusCompleted:
		return domain.NewBusinessRuleError("completed orders cannot be cancelled")
	case StatusRefunded:
		return domain.NewInvalidStateError(string(o.status), string(StatusCancelled))
	}
	now := time.Now().UTC()
	o.status = StatusCancelled
	o.cancelledAt = &now
	o.cancellationReason = reason
	o.updatedAt = now
	for _, b := range o.bookings {
		b.cancel(now)
	}
	return nil
}

// MarkPaid stamps the payment reference and paid time; a pending order is
// confirmed in the same step.
func (o *Order) MarkPaid(paymentReference string) error {
	switch o.status {
	case StatusCompleted, StatusCancelled, StatusRefunded:
		return domain.NewInvalidStateError(string(o.status), "paid")
	}
	now := time.Now().UTC()
	o.paymentReference = paymentReference
	o.paidAt = &now
	o.updatedAt = now
	if o.status == StatusPending {
		o.status = StatusConfirmed
		for _, b := range o.bookings {
			b.confirm(now)
		}
	}
	return nil
}

// MarkRefunded records an external payment reversal against a completed or
// cancelled order.
func (o *Order) MarkRefunded() error {
	if o.status != StatusCompleted && o.status != StatusCancelled {
		return domain.NewInvalidStateError(string(o.status), string(StatusRefunded))
	}
	o.status = StatusRefunded
	o.updatedAt = time.Now().UTC()
	for _, b := range o.bookings {
		b.refund(time.Now().UTC())
	}
	return nil
}

// Getters.
func (o *Order) ID() uuid.UUID               { return o.id }
func (o *Order) UserID() uuid.UUID           { return o.userID }
func (o *Order) QuoteID() *uuid.UUID         { return o.quoteID }
func (o *Order) OrderNumber() string         { return o.orderNumber }
func (o *Order) Status() Status              { return o.status }
func (o *Order) Subtotal() decimal.Decimal   { return o.subtotal }
func (o *Order) Discount() decimal.Decimal   { return o.discount }
func (o *Order) Taxes() decimal.Decimal      { return o.taxes }
func (o *Order) Total() decimal.Decimal      { return o.total }
func (o *Order) Currency() string            { return o.currency }
func (o *Order) PaymentMethod() string       { return o.paymentMethod }
func (o *Order) PaymentReference() string    { return o.paymentReference }
func (o *Order) PaidAt() *time.Time          { return o.paidAt }
func (o *Order) CancelledAt() *time.Time     { return o.cancelledAt }
func (o *Order) CancellationReason() string  { return o.cancellationReason }
func (o *Order) SubBookings() []*SubBooking  { return o.bookings }
func (o *Order) CreatedAt() time.Time        { return o.createdAt }
func (o *Order) UpdatedAt() time.Time        { return o.updatedAt }

// GenerateOrderNumber builds a human-readable unique order number:
// ORD-<base36 millisecond timestamp>-<4 random base36 chars>. Collisions are
// negligible but the insert path still retries on a unique violation.
func GenerateOrderNumber() string {
	ts := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
	return "ORD-" + ts + "-" + randomBase36(4)
}

const base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

func randomBase36(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(base36Alphabet))))
		if err != nil {
			// crypto/rand only fails if the OS entropy source is broken;
			// fall back to a time-derived character.
			b.WriteByte(base36Alphabet[time.Now().UnixNano()%36])
			continue
		}
		b.WriteByte(base36Alphabet[idx.Int64()])
	}
	return b.String()
}

var bookingPrefixes = map[quote.ServiceType]string{
	quote.ServiceFlight:  "FLT",
	quote.ServiceHotel:   "HTL",
	quote.ServiceVisa:    "VSA",
	quote.ServiceHajj:    "HAJ",
	quote.ServicePackage: "PKG",
}

// GenerateBookingReference builds a provider booking reference:
// <3-letter service prefix>-<6-digit time suffix>.
func GenerateBookingReference(serviceType quote.ServiceType, now time.Time) string {
	prefix, ok := bookingPrefixes[serviceType]
	if !ok {
		prefix = "BKG"
	}
	return prefix + "-" + padDigits(now.Unix()%1_000_000)
}

func padDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	for len(s) < 6 {
		s = "0" + s
	}
	return s
}
