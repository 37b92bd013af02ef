package order

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence operations for orders and their sub-bookings.
type Repository interface {
	// Create persists the order and all its sub-bookings in one transaction.
	// Partial creation is never observable: any failure rolls back the order
	// row too. A duplicate order number surfaces as a conflict.
	Create(ctx context.Context, o *Order) error

	// Update persists the order and the current state of its sub-bookings in
	// one transaction (used for cancellation cascades and payment stamps).
	Update(ctx context.Context, o *Order) error

	// Delete removes the order and its sub-bookings. Used only as saga
	// compensation before the order was ever observable.
	Delete(ctx context.Context, id uuid.UUID) error

	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]*Order, int64, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
}
