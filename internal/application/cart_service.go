package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/safar-travel/service-booking/internal/domain"
	quoteDomain "github.com/safar-travel/service-booking/internal/domain/quote"
)

// AddItemRequest is the DTO for adding a line item to the cart.
type AddItemRequest struct {
	ServiceType    string                 `json:"service_type" binding:"required"`
	ServiceID      string                 `json:"service_id" binding:"required"`
	ServiceName    string                 `json:"service_name" binding:"required"`
	ServiceDetails map[string]any         `json:"service_details"`
	Travelers      []quoteDomain.Traveler `json:"travelers"`
	Price          decimal.Decimal        `json:"price" binding:"required"`
	Currency       string                 `json:"currency"`
	ExpiresAt      *time.Time             `json:"expires_at"`
}

// ApplyPromoRequest is the DTO for attaching a promo code to the cart.
type ApplyPromoRequest struct {
	Code        string `json:"code" binding:"required"`
	ServiceType string `json:"service_type"`
}

// QuoteItemDTO is the API response DTO for a quote line item.
type QuoteItemDTO struct {
	ID             uuid.UUID              `json:"id"`
	ServiceType    string                 `json:"service_type"`
	ServiceID      string                 `json:"service_id"`
	ServiceName    string                 `json:"service_name"`
	ServiceDetails map[string]any         `json:"service_details,omitempty"`
	Travelers      []quoteDomain.Traveler `json:"travelers,omitempty"`
	Price          decimal.Decimal        `json:"price"`
	Currency       string                 `json:"currency"`
	ExpiresAt      *time.Time             `json:"expires_at,omitempty"`
}

// QuoteDTO is the API response DTO for quote data.
type QuoteDTO struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Status    string          `json:"status"`
	Items     []QuoteItemDTO  `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	Taxes     decimal.Decimal `json:"taxes"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currency"`
	PromoCode string          `json:"promo_code,omitempty"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CartService is the application service for the quote (cart) lifecycle.
// Every mutation goes through the repository's Mutate so item changes and
// recalculation commit atomically under the quote's row lock.
type CartService struct {
	quoteRepo       quoteDomain.Repository
	promoService    *PromoService
	taxRate         decimal.Decimal
	defaultCurrency string
	logger          *zap.Logger
}

// NewCartService creates a new CartService.
func NewCartService(
	quoteRepo quoteDomain.Repository,
	promoService *PromoService,
	taxRate decimal.Decimal,
	defaultCurrency string,
	logger *zap.Logger,
) *CartService {
	return &CartService{
		quoteRepo:       quoteRepo,
		promoService:    promoService,
		taxRate:         taxRate,
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

// GetOrCreateQuote returns the user's draft quote, creating an empty one if
// none exists. A draft whose quote-level expiry has lapsed is expired and
// replaced with a fresh draft.
func (s *CartService) GetOrCreateQuote(ctx context.Context, userID uuid.UUID) (*QuoteDTO, error) {
	q, err := s.quoteRepo.FindDraftByUser(ctx, userID)
	if err != nil && !domain.IsNotFound(err) {
		return nil, err
	}

	if q != nil && q.IsExpired(time.Now().UTC()) {
		if err := q.Expire(); err != nil {
			return nil, err
		}
		if err := s.quoteRepo.Update(ctx, q); err != nil {
			return nil, err
		}
		s.logger.Info("expired stale draft quote",
			zap.String("quote_id", q.ID().String()),
			zap.String("user_id", userID.String()),
		)
		q = nil
	}

	if q == nil {
		q = quoteDomain.NewQuote(userID, s.defaultCurrency)
		q.Recalculate(s.taxRate)
		if err := s.quoteRepo.Save(ctx, q); err != nil {
			// Lost a create race: another request saved the draft first.
			if domain.IsConflict(err) {
				q, err = s.quoteRepo.FindDraftByUser(ctx, userID)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
	}

	dto := toQuoteDTO(q)
	return &dto, nil
}

// AddItem adds a line item to the user's draft quote and recalculates.
func (s *CartService) AddItem(ctx context.Context, userID uuid.UUID, req AddItemRequest) (*QuoteDTO, error) {
	draft, err := s.GetOrCreateQuote(ctx, userID)
	if err != nil {
		return nil, err
	}

	q, err := s.quoteRepo.Mutate(ctx, draft.ID, func(q *quoteDomain.Quote) error {
		if err := q.AddItem(&quoteDomain.Item{
			ServiceType:    quoteDomain.ServiceType(req.ServiceType),
			ServiceID:      req.ServiceID,
			ServiceName:    req.ServiceName,
			ServiceDetails: req.ServiceDetails,
			Travelers:      req.Travelers,
			Price:          req.Price,
			Currency:       req.Currency,
			ExpiresAt:      req.ExpiresAt,
		}); err != nil {
			return err
		}
		q.Recalculate(s.taxRate)
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto := toQuoteDTO(q)
	return &dto, nil
}

// RemoveItem removes a line item from the quote and recalculates.
func (s *CartService) RemoveItem(ctx context.Context, userID, quoteID, itemID uuid.UUID) (*QuoteDTO, error) {
	q, err := s.quoteRepo.Mutate(ctx, quoteID, func(q *quoteDomain.Quote) error {
		if q.UserID() != userID {
			return domain.NewNotFoundError("quote", quoteID.String())
		}
		if err := q.RemoveItem(itemID); err != nil {
			return err
		}
		q.Recalculate(s.taxRate)
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto := toQuoteDTO(q)
	return &dto, nil
}

// ApplyPromo evaluates a promo code against the quote and, when eligible,
// snapshots its terms onto the quote. An ineligible code returns a business
// rule error carrying the evaluation reason.
func (s *CartService) ApplyPromo(ctx context.Context, userID, quoteID uuid.UUID, req ApplyPromoRequest) (*QuoteDTO, error) {
	q, err := s.quoteRepo.Mutate(ctx, quoteID, func(q *quoteDomain.Quote) error {
		if q.UserID() != userID {
			return domain.NewNotFoundError("quote", quoteID.String())
		}

		ev, p, err := s.promoService.EvaluateCode(ctx, userID, req.Code, q.Subtotal(), q.Currency(), req.ServiceType)
		if err != nil {
			return err
		}
		if !ev.Valid {
			return domain.NewBusinessRuleError(ev.Reason)
		}

		if err := q.ApplyPromo(p.Code(), p.DiscountType(), p.Value(), p.MaxDiscountAmount()); err != nil {
			return err
		}
		q.Recalculate(s.taxRate)
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto := toQuoteDTO(q)
	return &dto, nil
}

// RemovePromo detaches the promo code from the quote and recalculates.
func (s *CartService) RemovePromo(ctx context.Context, userID, quoteID uuid.UUID) (*QuoteDTO, error) {
	q, err := s.quoteRepo.Mutate(ctx, quoteID, func(q *quoteDomain.Quote) error {
		if q.UserID() != userID {
			return domain.NewNotFoundError("quote", quoteID.String())
		}
		if err := q.RemovePromo(); err != nil {
			return err
		}
		q.Recalculate(s.taxRate)
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto := toQuoteDTO(q)
	return &dto, nil
}

// Checkout transitions the user's draft quote to pending_payment. Expired
// items abort the transition and the quote stays a mutable draft.
func (s *CartService) Checkout(ctx context.Context, userID, quoteID uuid.UUID) (*QuoteDTO, error) {
	q, err := s.quoteRepo.Mutate(ctx, quoteID, func(q *quoteDomain.Quote) error {
		if q.UserID() != userID {
			return domain.NewNotFoundError("quote", quoteID.String())
		}
		q.Recalculate(s.taxRate)
		return q.Checkout(time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("quote checked out",
		zap.String("quote_id", q.ID().String()),
		zap.String("total", q.Total().StringFixed(2)),
	)

	dto := toQuoteDTO(q)
	return &dto, nil
}

func toQuoteDTO(q *quoteDomain.Quote) QuoteDTO {
	items := make([]QuoteItemDTO, len(q.Items()))
	for i, item := range q.Items() {
		items[i] = QuoteItemDTO{
			ID:             item.ID,
			ServiceType:    string(item.ServiceType),
			ServiceID:      item.ServiceID,
			ServiceName:    item.ServiceName,
			ServiceDetails: item.ServiceDetails,
			Travelers:      item.Travelers,
			Price:          item.Price,
			Currency:       item.Currency,
			ExpiresAt:      item.ExpiresAt,
		}
	}

	return QuoteDTO{
		ID:        q.ID(),
		UserID:    q.UserID(),
		Status:    string(q.Status()),
		Items:     items,
		Subtotal:  q.Subtotal(),
		Discount:  q.Discount(),
		Taxes:     q.Taxes(),
		Total:     q.Total(),
		Currency:  q.Currency(),
		PromoCode: q.PromoCode(),
		ExpiresAt: q.ExpiresAt(),
		CreatedAt: q.CreatedAt(),
		UpdatedAt: q.UpdatedAt(),
	}
}
