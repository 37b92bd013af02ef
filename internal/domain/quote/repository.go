package quote

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence operations for quotes and their items.
type Repository interface {
	// FindDraftByUser returns the user's single draft quote with its items.
	FindDraftByUser(ctx context.Context, userID uuid.UUID) (*Quote, error)

	FindByID(ctx context.Context, id uuid.UUID) (*Quote, error)

	// Save creates a quote (with any items). A partial unique index on
	// (user_id) WHERE status = 'draft' backs the one-draft-per-user invariant;
	// Save surfaces a conflict if another draft already exists.
	Save(ctx context.Context, q *Quote) error

	Update(ctx context.Context, q *Quote) error

	// Mutate loads the quote and its items under a row lock, applies fn, and
	// persists the result in the same transaction. Item mutation plus
	// recalculation run as one unit keyed by quote id, so concurrent cart
	// operations serialize and recalculation always reads the latest
	// persisted item set.
	Mutate(ctx context.Context, quoteID uuid.UUID, fn func(q *Quote) error) (*Quote, error)
}
