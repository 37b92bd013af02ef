package quote

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/safar-travel/service-booking/internal/domain"
	"github.com/safar-travel/service-booking/internal/domain/promo"
)

// Status represents the lifecycle state of a quote.
type Status string

const (
	StatusDraft          Status = "draft"
	StatusPendingPayment Status = "pending_payment"
	StatusPaid           Status = "paid"
	StatusExpired        Status = "expired"
	StatusCancelled      Status = "cancelled"
)

// ServiceType enumerates the bookable travel services.
type ServiceType string

const (
	ServiceFlight  ServiceType = "flight"
	ServiceHotel   ServiceType = "hotel"
	ServiceVisa    ServiceType = "visa"
	ServiceHajj    ServiceType = "hajj"
	ServicePackage ServiceType = "package"
)

// ValidServiceType reports whether s names a known service.
func ValidServiceType(s ServiceType) bool {
	switch s {
	case ServiceFlight, ServiceHotel, ServiceVisa, ServiceHajj, ServicePackage:
		return true
	}
	return false
}

// Traveler is a passenger attached to a line item.
type Traveler struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Item is one line of a quote. Provider-held offers can expire independently
// of the quote, so each item carries its own optional expiry.
type Item struct {
	ID             uuid.UUID
	QuoteID        uuid.UUID
	ServiceType    ServiceType
	ServiceID      string
	ServiceName    string
	ServiceDetails map[string]any
	Travelers      []Traveler
	Price          decimal.Decimal
	Currency       string
	ExpiresAt      *time.Time
	CreatedAt      time.Time
}

// Expired reports whether the provider-held offer behind this item has lapsed.
func (i *Item) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && i.ExpiresAt.Before(now)
}

// Quote is the aggregate root for a user's draft cart. At most one draft
// exists per user; every mutation recomputes the monetary fields server-side.
type Quote struct {
	id               uuid.UUID
	userID           uuid.UUID
	status           Status
	subtotal         decimal.Decimal
	discount         decimal.Decimal
	taxes            decimal.Decimal
	total            decimal.Decimal
	currency         string
	promoCode        string // empty = no promo attached
	promoType        promo.DiscountType
	promoValue       decimal.Decimal
	promoMaxDiscount decimal.Decimal // snapshot of the code's cap, re-applied on every recompute
	expiresAt        *time.Time
	items            []*Item
	createdAt        time.Time
	updatedAt        time.Time
}

// NewQuote creates an empty draft quote for a user.
func NewQuote(userID uuid.UUID, currency string) *Quote {
	now := time.Now().UTC()
	return &Quote{
		id:        uuid.New(),
		userID:    userID,
		status:    StatusDraft,
		currency:  currency,
		createdAt: now,
		updatedAt: now,
	}
}

// Reconstruct rebuilds a Quote from persistence.
func Reconstruct(
	id, userID uuid.UUID,
	status Status,
	subtotal, discount, taxes, total decimal.Decimal,
	currency string,
	promoCode string,
	promoType promo.DiscountType,
	promoValue, promoMaxDiscount decimal.Decimal,
	expiresAt *time.Time,
	items []*Item,
	createdAt, updatedAt time.Time,
) *Quote {
	return &Quote{
		id: id, userID: userID, status: status,
		subtotal: subtotal, discount: discount, taxes: taxes, total: total,
		currency: currency, promoCode: promoCode, promoType: promoType,
		promoValue: promoValue, promoMaxDiscount: promoMaxDiscount,
		expiresAt: expiresAt, items: items,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

// AddItem appends a line item to a draft quote.
func (q *Quote) AddItem(item *Item) error {
	if q.status != StatusDraft {
		return domain.NewInvalidStateError(string(q.status), "item mutation")
	}
	if !ValidServiceType(item.ServiceType) {
		return domain.NewValidationError(fmt.Sprintf("invalid service type: %s", item.ServiceType))
	}
	if item.Price.IsNegative() {
		return domain.NewValidationError("item price must not be negative")
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.QuoteID = q.id
	if item.Currency == "" {
		item.Currency = q.currency
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	q.items = append(q.items, item)
	return nil
}

// RemoveItem deletes a line item from a draft quote.
func (q *Quote) RemoveItem(itemID uuid.UUID) error {
	if q.status != StatusDraft {
		return domain.NewInvalidStateError(string(q.status), "item mutation")
	}
	for i, item := range q.items {
		if item.ID == itemID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}
	return domain.NewNotFoundError("cart item", itemID.String())
}

// ApplyPromo attaches promo terms to the quote. Eligibility has already been
// evaluated by the caller; the terms are snapshotted so the discount tracks
// subtotal changes live as items come and go.
func (q *Quote) ApplyPromo(code string, discountType promo.DiscountType, value, maxDiscount decimal.Decimal) error {
	if q.status != StatusDraft {
		return domain.NewInvalidStateError(string(q.status), "promo mutation")
	}
	q.promoCode = promo.NormalizeCode(code)
	q.promoType = discountType
	q.promoValue = value
	q.promoMaxDiscount = maxDiscount
	return nil
}

// RemovePromo clears all promo fields. The discount is zeroed here and again
// by Recalculate, so a stale discount can never survive removal.
func (q *Quote) RemovePromo() error {
	if q.status != StatusDraft {
		return domain.NewInvalidStateError(string(q.status), "promo mutation")
	}
	q.promoCode = ""
	q.promoType = ""
	q.promoValue = decimal.Zero
	q.promoMaxDiscount = decimal.Zero
	q.discount = decimal.Zero
	return nil
}

// Recalculate recomputes subtotal, discount, taxes and total from the current
// item set. Runs after every mutation; client-supplied totals are never
// trusted.
func (q *Quote) Recalculate(taxRate decimal.Decimal) {
	subtotal := decimal.Zero
	for _, item := range q.items {
		subtotal = subtotal.Add(item.Price)
	}
	q.subtotal = subtotal.Round(2)

	if q.promoCode != "" {
		q.discount = promo.CalculateDiscount(q.promoType, q.promoValue, q.promoMaxDiscount, q.subtotal)
	} else {
		q.discount = decimal.Zero
	}

	taxable := q.subtotal.Sub(q.discount)
	q.taxes = taxable.Mul(taxRate).Round(2)
	q.total = taxable.Add(q.taxes)
	q.updatedAt = time.Now().UTC()
}

// Checkout transitions a draft to pending_payment. It is the only path into
// pending_payment. The cart must be non-empty and hold no expired items.
func (q *Quote) Checkout(now time.Time) error {
	if q.status != StatusDraft {
		return domain.NewInvalidStateError(string(q.status), string(StatusPendingPayment))
	}
	if len(q.items) == 0 {
		return domain.NewBusinessRuleError("cart is empty")
	}

	var expired []string
	for _, item := range q.items {
		if item.Expired(now) {
			expired = append(expired, item.ServiceName)
		}
	}
	if len(expired) > 0 {
		return domain.NewBusinessRuleError(fmt.Sprintf(
			"these items have expired and must be removed before checkout: %s",
			strings.Join(expired, ", ")))
	}

	q.status = StatusPendingPayment
	q.updatedAt = time.Now().UTC()
	return nil
}

// MarkPaid transitions a pending_payment quote to its terminal paid state.
func (q *Quote) MarkPaid() error {
	if q.status != StatusPendingPayment {
		return domain.NewInvalidStateError(string(q.status), string(StatusPaid))
	}
	q.status = StatusPaid
	q.updatedAt = time.Now().UTC()
	return nil
}

// Reopen returns a pending_payment quote to draft, compensating a failed
// order finalization.
func (q *Quote) Reopen() error {
	if q.status != StatusPendingPayment {
		return domain.NewInvalidStateError(string(q.status), string(StatusDraft))
	}
	q.status = StatusDraft
	q.updatedAt = time.Now().UTC()
	return nil
}

// Expire transitions a quote to its terminal expired state.
func (q *Quote) Expire() error {
	if q.status == StatusPaid || q.status == StatusCancelled || q.status == StatusExpired {
		return domain.NewInvalidStateError(string(q.status), string(StatusExpired))
	}
	q.status = StatusExpired
	q.updatedAt = time.Now().UTC()
	return nil
}

// IsExpired reports whether the quote itself (not its items) has lapsed.
func (q *Quote) IsExpired(now time.Time) bool {
	return q.expiresAt != nil && q.expiresAt.Before(now)
}

// Getters.
func (q *Quote) ID() uuid.UUID                      { return q.id }
func (q *Quote) UserID() uuid.UUID                  { return q.userID }
func (q *Quote) Status() Status                     { return q.status }
func (q *Quote) Subtotal() decimal.Decimal          { return q.subtotal }
func (q *Quote) Discount() decimal.Decimal          { return q.discount }
func (q *Quote) Taxes() decimal.Decimal             { return q.taxes }
func (q *Quote) Total() decimal.Decimal             { return q.total }
func (q *Quote) Currency() string                   { return q.currency }
func (q *Quote) PromoCode() string                  { return q.promoCode }
func (q *Quote) PromoType() promo.DiscountType      { return q.promoType }
func (q *Quote) PromoValue() decimal.Decimal        { return q.promoValue }
func (q *Quote) PromoMaxDiscount() decimal.Decimal  { return q.promoMaxDiscount }
func (q *Quote) ExpiresAt() *time.Time              { return q.expiresAt }
func (q *Quote) Items() []*Item                     { return q.items }
func (q *Quote) CreatedAt() time.Time               { return q.createdAt }
func (q *Quote) UpdatedAt() time.Time               { return q.updatedAt }
