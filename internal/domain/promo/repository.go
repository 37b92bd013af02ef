package promo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Usage is one row of the append-only redemption ledger. Per-user limits are
// enforced by counting these rows, never by a mutable counter on the user.
type Usage struct {
	ID             uuid.UUID
	PromoCodeID    uuid.UUID
	UserID         uuid.UUID
	OrderID        uuid.UUID
	DiscountAmount decimal.Decimal
	OrderAmount    decimal.Decimal
	Currency       string
	UsedAt         time.Time
}

// Repository defines persistence operations for promo codes.
type Repository interface {
	Save(ctx context.Context, p *PromoCode) error
	Update(ctx context.Context, p *PromoCode) error
	FindByCode(ctx context.Context, code string) (*PromoCode, error)
	FindByID(ctx context.Context, id uuid.UUID) (*PromoCode, error)
	FindActive(ctx context.Context, now time.Time) ([]*PromoCode, error)

	// CountUserRedemptions counts this user's ledger rows for the code.
	CountUserRedemptions(ctx context.Context, promoCodeID, userID uuid.UUID) (int, error)

	// RecordRedemption appends a ledger row and increments the usage count in
	// one transaction. The promo row is locked for the duration so the
	// recount-then-insert is serialized per code: at most perUserLimit rows per
	// user can ever commit, even under concurrent redemption attempts.
	RecordRedemption(ctx context.Context, usage *Usage) error

	// RemoveRedemption deletes a ledger row and decrements the usage count.
	// Used only as saga compensation when order finalization fails downstream.
	RemoveRedemption(ctx context.Context, usageID uuid.UUID) error
}
