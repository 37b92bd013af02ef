package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/safar-travel/service-booking/internal/domain/quote"
)

// BookingStatus represents the fulfillment state of a sub-booking. It is
// driven by, but not identical to, the parent order's status: a confirmed
// order can still hold a pending sub-booking awaiting ticketing.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusTicketed  BookingStatus = "ticketed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusRefunded  BookingStatus = "refunded"
)

// Document is an attachment issued against a sub-booking (ticket, voucher).
type Document struct {
	Type string `json:"type"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// SubBooking is one booked service within an order. It is owned exclusively
// by its parent and is only created and cancelled through it; ticketing and
// completion are advanced by external fulfillment events.
type SubBooking struct {
	ID               uuid.UUID
	OrderID          uuid.UUID
	ServiceType      quote.ServiceType
	ServiceName      string
	BookingReference string
	Status           BookingStatus
	Details          map[string]any
	Travelers        []quote.Traveler
	Price            decimal.Decimal
	Currency         string
	ServiceDate      *time.Time
	Documents        []Document
	ConfirmedAt      *time.Time
	CancelledAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (b *SubBooking) confirm(now time.Time) {
	if b.Status == BookingStatusPending {
		b.Status = BookingStatusConfirmed
		b.ConfirmedAt = &now
		b.UpdatedAt = now
	}
}

func (b *SubBooking) cancel(now time.Time) {
	b.Status = BookingStatusCancelled
	b.CancelledAt = &now
	b.UpdatedAt = now
}

func (b *SubBooking) refund(now time.Time) {
	b.Status = BookingStatusRefunded
	b.UpdatedAt = now
}
