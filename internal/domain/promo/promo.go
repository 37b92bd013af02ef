package promo

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/safar-travel/service-booking/internal/domain"
)

// DiscountType represents the type of discount.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

// Status represents the lifecycle state of a promo code.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusExpired  Status = "expired"
)

// ServiceWildcard in the applicable-services list matches every service type.
const ServiceWildcard = "all"

var oneHundred = decimal.NewFromInt(100)

// PromoCode is the aggregate root for promotional codes. Codes are normalized
// upper-case and unique; usage is tracked through an append-only ledger, never
// a counter on the user.
type PromoCode struct {
	id                   uuid.UUID
	code                 string
	name                 string
	description          string
	discountType         DiscountType
	value                decimal.Decimal
	minOrderAmount       decimal.Decimal // zero = no minimum
	maxDiscountAmount    decimal.Decimal // zero = no cap; percentage type only
	usageLimit           int             // zero = unlimited
	usageCount           int
	perUserLimit         int // zero = unlimited
	validFrom            time.Time
	validUntil           time.Time
	status               Status
	applicableServices   []string
	applicableCurrencies []string
	firstOrderOnly       bool
	createdBy            uuid.UUID
	createdAt            time.Time
	updatedAt            time.Time
}

// NormalizeCode upper-cases and trims a raw promo code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NewPromoCode creates a new promo code.
func NewPromoCode(
	code, name, description string,
	discountType DiscountType,
	value, minOrderAmount, maxDiscountAmount decimal.Decimal,
	usageLimit, perUserLimit int,
	validFrom, validUntil time.Time,
	applicableServices, applicableCurrencies []string,
	firstOrderOnly bool,
	createdBy uuid.UUID,
) (*PromoCode, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, domain.NewValidationError("promo code is required")
	}
	if discountType != DiscountTypePercentage && discountType != DiscountTypeFixed {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid discount type: %s", discountType))
	}
	if !value.IsPositive() {
		return nil, domain.NewValidationError("discount value must be positive")
	}
	if discountType == DiscountTypePercentage && value.GreaterThan(oneHundred) {
		return nil, domain.NewValidationError("percentage discount cannot exceed 100")
	}
	if discountType == DiscountTypeFixed && maxDiscountAmount.IsPositive() {
		return nil, domain.NewValidationError("max discount cap applies to percentage codes only")
	}
	if minOrderAmount.IsNegative() || maxDiscountAmount.IsNegative() {
		return nil, domain.NewValidationError("amounts must not be negative")
	}
	if usageLimit < 0 || perUserLimit < 0 {
		return nil, domain.NewValidationError("usage limits must not be negative")
	}
	if validUntil.Before(validFrom) {
		return nil, domain.NewValidationError("valid_until must be after valid_from")
	}

	now := time.Now().UTC()
	return &PromoCode{
		id:                   uuid.New(),
		code:                 code,
		name:                 name,
		description:          description,
		discountType:         discountType,
		value:                value,
		minOrderAmount:       minOrderAmount,
		maxDiscountAmount:    maxDiscountAmount,
		usageLimit:           usageLimit,
		perUserLimit:         perUserLimit,
		validFrom:            validFrom,
		validUntil:           validUntil,
		status:               StatusActive,
		applicableServices:   applicableServices,
		applicableCurrencies: applicableCurrencies,
		firstOrderOnly:       firstOrderOnly,
		createdBy:            createdBy,
		createdAt:            now,
		updatedAt:            now,
	}, nil
}

// Reconstruct rebuilds a PromoCode from persistence.
func Reconstruct(
	id uuid.UUID,
	code, name, description string,
	discountType DiscountType,
	value, minOrderAmount, maxDiscountAmount decimal.Decimal,
	usageLimit, usageCount, perUserLimit int,
	validFrom, validUntil time.Time,
	status Status,
	applicableServices, applicableCurrencies []string,
	firstOrderOnly bool,
	createdBy uuid.UUID,
	createdAt, updatedAt time.Time,
) *PromoCode {
	return &PromoCode{
		id: id, code: code, name: name, description: description,
		discountType: discountType, value: value,
		minOrderAmount: minOrderAmount, maxDiscountAmount: maxDiscountAmount,
		usageLimit: usageLimit, usageCount: usageCount, perUserLimit: perUserLimit,
		validFrom: validFrom, validUntil: validUntil, status: status,
		applicableServices: applicableServices, applicableCurrencies: applicableCurrencies,
		firstOrderOnly: firstOrderOnly, createdBy: createdBy,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

// EvaluationContext carries everything Evaluate needs. UserRedemptions is the
// caller's count of this user's ledger rows for this code; UserOrderCount the
// user's total prior orders (for first-order-only codes).
type EvaluationContext struct {
	Subtotal        decimal.Decimal
	Currency        string
	ServiceType     string
	UserRedemptions int
	UserOrderCount  int
	Now             time.Time
}

// Evaluation is the result of evaluating a promo code against an order context.
type Evaluation struct {
	Valid          bool
	Code           string
	DiscountType   DiscountType
	Value          decimal.Decimal
	DiscountAmount decimal.Decimal
	Reason         string
	MinOrderAmount decimal.Decimal
}

func invalid(code, reason string) Evaluation {
	return Evaluation{Valid: false, Code: code, Reason: reason}
}

// Evaluate validates the code against an order context and computes the
// discount. Checks short-circuit in a fixed order so user-facing messages are
// deterministic. Evaluate never mutates anything; recording a redemption is a
// separate explicit step at order finalization.
func (p *PromoCode) Evaluate(ec EvaluationContext) Evaluation {
	if p.status != StatusActive {
		return invalid(p.code, "invalid promo code")
	}
	if ec.Now.Before(p.validFrom) {
		return invalid(p.code, "this promo code is not yet active")
	}
	if ec.Now.After(p.validUntil) {
		return invalid(p.code, "this promo code has expired")
	}
	if p.usageLimit > 0 && p.usageCount >= p.usageLimit {
		return invalid(p.code, "this promo code has reached its usage limit")
	}
	if p.perUserLimit > 0 && ec.UserRedemptions >= p.perUserLimit {
		return invalid(p.code, "you have already used this promo code")
	}
	if p.firstOrderOnly && ec.UserOrderCount > 0 {
		return invalid(p.code, "this promo code is valid for first orders only")
	}
	if p.minOrderAmount.IsPositive() && ec.Subtotal.LessThan(p.minOrderAmount) {
		ev := invalid(p.code, fmt.Sprintf("minimum order amount is %s", p.minOrderAmount.StringFixed(2)))
		ev.MinOrderAmount = p.minOrderAmount
		return ev
	}
	if !p.appliesToService(ec.ServiceType) {
		return invalid(p.code, "this promo code is not valid for this service")
	}
	if !p.appliesToCurrency(ec.Currency) {
		return invalid(p.code, "this promo code is not valid for your currency")
	}

	return Evaluation{
		Valid:          true,
		Code:           p.code,
		DiscountType:   p.discountType,
		Value:          p.value,
		DiscountAmount: CalculateDiscount(p.discountType, p.value, p.maxDiscountAmount, ec.Subtotal),
	}
}

func (p *PromoCode) appliesToService(serviceType string) bool {
	if len(p.applicableServices) == 0 || serviceType == "" {
		return true
	}
	for _, s := range p.applicableServices {
		if s == ServiceWildcard || s == serviceType {
			return true
		}
	}
	return false
}

func (p *PromoCode) appliesToCurrency(currency string) bool {
	if len(p.applicableCurrencies) == 0 || currency == "" {
		return true
	}
	for _, c := range p.applicableCurrencies {
		if c == currency {
			return true
		}
	}
	return false
}

// CalculateDiscount computes the discount amount for a subtotal: percentage
// values are capped at maxDiscount when set, fixed values floored at the
// subtotal so the discount never exceeds the order amount. The result is
// rounded to 2 decimal places, half up.
func CalculateDiscount(discountType DiscountType, value, maxDiscount, subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch discountType {
	case DiscountTypePercentage:
		discount = subtotal.Mul(value).Div(oneHundred)
		if maxDiscount.IsPositive() && discount.GreaterThan(maxDiscount) {
			discount = maxDiscount
		}
	case DiscountTypeFixed:
		discount = value
		if discount.GreaterThan(subtotal) {
			discount = subtotal
		}
	}
	return discount.Round(2)
}

// Deactivate takes the code out of circulation. Already-recorded redemptions
// are unaffected.
func (p *PromoCode) Deactivate() {
	p.status = StatusInactive
	p.updatedAt = time.Now().UTC()
}

// ExtendValidity moves the end of the validity window.
func (p *PromoCode) ExtendValidity(until time.Time) error {
	if until.Before(p.validFrom) {
		return domain.NewValidationError("valid_until must be after valid_from")
	}
	p.validUntil = until
	p.updatedAt = time.Now().UTC()
	return nil
}

// Getters.
func (p *PromoCode) ID() uuid.UUID                      { return p.id }
func (p *PromoCode) Code() string                       { return p.code }
func (p *PromoCode) Name() string                       { return p.name }
func (p *PromoCode) Description() string                { return p.description }
func (p *PromoCode) DiscountType() DiscountType         { return p.discountType }
func (p *PromoCode) Value() decimal.Decimal             { return p.value }
func (p *PromoCode) MinOrderAmount() decimal.Decimal    { return p.minOrderAmount }
func (p *PromoCode) MaxDiscountAmount() decimal.Decimal { return p.maxDiscountAmount }
func (p *PromoCode) UsageLimit() int                    { return p.usageLimit }
func (p *PromoCode) UsageCount() int                    { return p.usageCount }
func (p *PromoCode) PerUserLimit() int                  { return p.perUserLimit }
func (p *PromoCode) ValidFrom() time.Time               { return p.validFrom }
func (p *PromoCode) ValidUntil() time.Time              { return p.validUntil }
func (p *PromoCode) Status() Status                     { return p.status }
func (p *PromoCode) ApplicableServices() []string       { return p.applicableServices }
func (p *PromoCode) ApplicableCurrencies() []string     { return p.applicableCurrencies }
func (p *PromoCode) FirstOrderOnly() bool               { return p.firstOrderOnly }
func (p *PromoCode) CreatedBy() uuid.UUID               { return p.createdBy }
func (p *PromoCode) CreatedAt() time.Time               { return p.createdAt }
func (p *PromoCode) UpdatedAt() time.Time               { return p.updatedAt }
