package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository defines the persistence contract for Payment aggregates.
type Repository interface {
	// Save persists a new payment. A duplicate idempotency key surfaces as a
	// conflict; the caller reads back the winner's row instead of erroring.
	Save(ctx context.Context, p *Payment) error

	// Update persists changes with optimistic locking on the version column.
	Update(ctx context.Context, p *Payment) error

	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*Payment, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]*Payment, error)

	// ListAll retrieves all payments with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Payment, int64, error)

	// GetRevenueStats returns completed revenue and counts by status (admin).
	GetRevenueStats(ctx context.Context) (totalRevenue decimal.Decimal, countByStatus map[string]int64, err error)
}
