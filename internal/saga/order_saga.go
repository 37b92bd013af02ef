package saga

import (
	"context"

	"go.uber.org/zap"

	orderDomain "github.com/safar-travel/service-booking/internal/domain/order"
	promoDomain "github.com/safar-travel/service-booking/internal/domain/promo"
	quoteDomain "github.com/safar-travel/service-booking/internal/domain/quote"
)

// OrderSagaService orchestrates the order finalization workflow: persisting
// the order with its sub-bookings, recording the promo redemption, and
// marking the source quote as paid. Any failure rolls back the steps already
// executed so a user never ends up with a half-finalized order.
type OrderSagaService struct {
	orderRepo orderDomain.Repository
	promoRepo promoDomain.Repository
	quoteRepo quoteDomain.Repository
	logger    *zap.Logger
}

// NewOrderSagaService creates a new OrderSagaService.
func NewOrderSagaService(
	orderRepo orderDomain.Repository,
	promoRepo promoDomain.Repository,
	quoteRepo quoteDomain.Repository,
	logger *zap.Logger,
) *OrderSagaService {
	return &OrderSagaService{
		orderRepo: orderRepo,
		promoRepo: promoRepo,
		quoteRepo: quoteRepo,
		logger:    logger,
	}
}

// FinalizeOrder persists the order, the promo redemption, and the quote
// status transition as one compensable workflow. The usage and quote
// arguments are optional: orders without a promo code pass a nil usage, and
// orders created directly from items pass a nil quote.
func (s *OrderSagaService) FinalizeOrder(
	ctx context.Context,
	o *orderDomain.Order,
	usage *promoDomain.Usage,
	q *quoteDomain.Quote,
) error {
	saga := NewSaga("finalize_order", s.logger)

	saga.AddStep(Step{
		Name: "create_order",
		Execute: func(ctx context.Context) error {
			return s.orderRepo.Create(ctx, o)
		},
		Compensate: func(ctx context.Context) error {
			return s.orderRepo.Delete(ctx, o.ID())
		},
	})

	if usage != nil {
		saga.AddStep(Step{
			Name: "record_promo_redemption",
			Execute: func(ctx context.Context) error {
				return s.promoRepo.RecordRedemption(ctx, usage)
			},
			Compensate: func(ctx context.Context) error {
				return s.promoRepo.RemoveRedemption(ctx, usage.ID)
			},
		})
	}

	if q != nil {
		saga.AddStep(Step{
			Name: "mark_quote_paid",
			Execute: func(ctx context.Context) error {
				if err := q.MarkPaid(); err != nil {
					return err
				}
				return s.quoteRepo.Update(ctx, q)
			},
			Compensate: func(ctx context.Context) error {
				if err := q.Reopen(); err != nil {
					return err
				}
				return s.quoteRepo.Update(ctx, q)
			},
		})
	}

	return saga.Execute(ctx)
}
