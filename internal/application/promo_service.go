package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/safar-travel/service-booking/internal/domain"
	orderDomain "github.com/safar-travel/service-booking/internal/domain/order"
	promoDomain "github.com/safar-travel/service-booking/internal/domain/promo"
)

// ValidatePromoRequest is the DTO for validating a promo code against a cart.
type ValidatePromoRequest struct {
	Code        string          `json:"code" binding:"required"`
	Subtotal    decimal.Decimal `json:"subtotal" binding:"required"`
	Currency    string          `json:"currency"`
	ServiceType string          `json:"service_type"`
}

// PromoEvaluationDTO is the API response for a promo validation.
type PromoEvaluationDTO struct {
	Valid          bool             `json:"valid"`
	Code           string           `json:"code"`
	DiscountType   string           `json:"discount_type,omitempty"`
	Value          decimal.Decimal  `json:"value,omitempty"`
	DiscountAmount decimal.Decimal  `json:"discount_amount,omitempty"`
	Reason         string           `json:"reason,omitempty"`
	MinOrderAmount *decimal.Decimal `json:"min_order_amount,omitempty"`
}

// CreatePromoRequest is the DTO for creating a promo code (admin).
type CreatePromoRequest struct {
	Code                 string          `json:"code" binding:"required"`
	Name                 string          `json:"name" binding:"required"`
	Description          string          `json:"description"`
	DiscountType         string          `json:"discount_type" binding:"required,oneof=percentage fixed"`
	Value                decimal.Decimal `json:"value" binding:"required"`
	MinOrderAmount       decimal.Decimal `json:"min_order_amount"`
	MaxDiscountAmount    decimal.Decimal `json:"max_discount_amount"`
	UsageLimit           int             `json:"usage_limit"`
	PerUserLimit         int             `json:"per_user_limit"`
	ValidFrom            time.Time       `json:"valid_from" binding:"required"`
	ValidUntil           time.Time       `json:"valid_until" binding:"required"`
	ApplicableServices   []string        `json:"applicable_services"`
	ApplicableCurrencies []string        `json:"applicable_currencies"`
	FirstOrderOnly       bool            `json:"first_order_only"`
}

// PromoDTO is the API response DTO for promo code data.
type PromoDTO struct {
	ID                   uuid.UUID       `json:"id"`
	Code                 string          `json:"code"`
	Name                 string          `json:"name"`
	Description          string          `json:"description,omitempty"`
	DiscountType         string          `json:"discount_type"`
	Value                decimal.Decimal `json:"value"`
	MinOrderAmount       decimal.Decimal `json:"min_order_amount"`
	MaxDiscountAmount    decimal.Decimal `json:"max_discount_amount"`
	UsageLimit           int             `json:"usage_limit"`
	UsageCount           int             `json:"usage_count"`
	PerUserLimit         int             `json:"per_user_limit"`
	ValidFrom            time.Time       `json:"valid_from"`
	ValidUntil           time.Time       `json:"valid_until"`
	Status               string          `json:"status"`
	ApplicableServices   []string        `json:"applicable_services,omitempty"`
	ApplicableCurrencies []string        `json:"applicable_currencies,omitempty"`
	FirstOrderOnly       bool            `json:"first_order_only"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// PromoService is the application service for promo code use cases.
type PromoService struct {
	promoRepo promoDomain.Repository
	orderRepo orderDomain.Repository
	logger    *zap.Logger
}

// NewPromoService creates a new PromoService.
func NewPromoService(
	promoRepo promoDomain.Repository,
	orderRepo orderDomain.Repository,
	logger *zap.Logger,
) *PromoService {
	return &PromoService{
		promoRepo: promoRepo,
		orderRepo: orderRepo,
		logger:    logger,
	}
}

// EvaluateCode loads a promo code and evaluates it against the given cart
// context. An unknown code is not an error: it evaluates as invalid with the
// same message as an inactive one, so probing for codes reveals nothing.
func (s *PromoService) EvaluateCode(
	ctx context.Context,
	userID uuid.UUID,
	code string,
	subtotal decimal.Decimal,
	currency, serviceType string,
) (promoDomain.Evaluation, *promoDomain.PromoCode, error) {
	p, err := s.promoRepo.FindByCode(ctx, code)
	if err != nil {
		if domain.IsNotFound(err) {
			return promoDomain.Evaluation{
				Valid:  false,
				Code:   promoDomain.NormalizeCode(code),
				Reason: "invalid promo code",
			}, nil, nil
		}
		return promoDomain.Evaluation{}, nil, err
	}

	redemptions, err := s.promoRepo.CountUserRedemptions(ctx, p.ID(), userID)
	if err != nil {
		return promoDomain.Evaluation{}, nil, err
	}

	orderCount := 0
	if p.FirstOrderOnly() {
		orderCount, err = s.orderRepo.CountByUser(ctx, userID)
		if err != nil {
			return promoDomain.Evaluation{}, nil, err
		}
	}

	ev := p.Evaluate(promoDomain.EvaluationContext{
		Subtotal:        subtotal,
		Currency:        currency,
		ServiceType:     serviceType,
		UserRedemptions: redemptions,
		UserOrderCount:  orderCount,
		Now:             time.Now().UTC(),
	})
	return ev, p, nil
}

// Validate checks a promo code against a cart context without redeeming it.
func (s *PromoService) Validate(ctx context.Context, userID uuid.UUID, req ValidatePromoRequest) (*PromoEvaluationDTO, error) {
	ev, _, err := s.EvaluateCode(ctx, userID, req.Code, req.Subtotal, req.Currency, req.ServiceType)
	if err != nil {
		return nil, err
	}
	dto := toEvaluationDTO(ev)
	return &dto, nil
}

// CreatePromo creates a new promo code (admin).
func (s *PromoService) CreatePromo(ctx context.Context, adminID uuid.UUID, req CreatePromoRequest) (*PromoDTO, error) {
	p, err := promoDomain.NewPromoCode(
		req.Code, req.Name, req.Description,
		promoDomain.DiscountType(req.DiscountType),
		req.Value, req.MinOrderAmount, req.MaxDiscountAmount,
		req.UsageLimit, req.PerUserLimit,
		req.ValidFrom, req.ValidUntil,
		req.ApplicableServices, req.ApplicableCurrencies,
		req.FirstOrderOnly,
		adminID,
	)
	if err != nil {
		return nil, err
	}

	if err := s.promoRepo.Save(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("promo code created",
		zap.String("code", p.Code()),
		zap.String("created_by", adminID.String()),
	)

	dto := toPromoDTO(p)
	return &dto, nil
}

// ListActive returns promo codes currently inside their validity window (admin).
func (s *PromoService) ListActive(ctx context.Context) ([]PromoDTO, error) {
	promos, err := s.promoRepo.FindActive(ctx, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	dtos := make([]PromoDTO, len(promos))
	for i, p := range promos {
		dtos[i] = toPromoDTO(p)
	}
	return dtos, nil
}

// GetPromo returns a promo code by ID (admin).
func (s *PromoService) GetPromo(ctx context.Context, id uuid.UUID) (*PromoDTO, error) {
	p, err := s.promoRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toPromoDTO(p)
	return &dto, nil
}

// DeactivatePromo disables a promo code (admin).
func (s *PromoService) DeactivatePromo(ctx context.Context, id uuid.UUID) (*PromoDTO, error) {
	p, err := s.promoRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p.Deactivate()
	if err := s.promoRepo.Update(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("promo code deactivated", zap.String("code", p.Code()))
	dto := toPromoDTO(p)
	return &dto, nil
}

// ExtendPromoValidity moves a promo code's expiry forward (admin).
func (s *PromoService) ExtendPromoValidity(ctx context.Context, id uuid.UUID, until time.Time) (*PromoDTO, error) {
	p, err := s.promoRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := p.ExtendValidity(until); err != nil {
		return nil, err
	}
	if err := s.promoRepo.Update(ctx, p); err != nil {
		return nil, err
	}

	dto := toPromoDTO(p)
	return &dto, nil
}

func toEvaluationDTO(ev promoDomain.Evaluation) PromoEvaluationDTO {
	dto := PromoEvaluationDTO{
		Valid:          ev.Valid,
		Code:           ev.Code,
		DiscountType:   string(ev.DiscountType),
		Value:          ev.Value,
		DiscountAmount: ev.DiscountAmount,
		Reason:         ev.Reason,
	}
	if ev.MinOrderAmount.IsPositive() {
		min := ev.MinOrderAmount
		dto.MinOrderAmount = &min
	}
	return dto
}

func toPromoDTO(p *promoDomain.PromoCode) PromoDTO {
	return PromoDTO{
		ID:                   p.ID(),
		Code:                 p.Code(),
		Name:                 p.Name(),
		Description:          p.Description(),
		DiscountType:         string(p.DiscountType()),
		Value:                p.Value(),
		MinOrderAmount:       p.MinOrderAmount(),
		MaxDiscountAmount:    p.MaxDiscountAmount(),
		UsageLimit:           p.UsageLimit(),
		UsageCount:           p.UsageCount(),
		PerUserLimit:         p.PerUserLimit(),
		ValidFrom:            p.ValidFrom(),
		ValidUntil:           p.ValidUntil(),
		Status:               string(p.Status()),
		ApplicableServices:   p.ApplicableServices(),
		ApplicableCurrencies: p.ApplicableCurrencies(),
		FirstOrderOnly:       p.FirstOrderOnly(),
		CreatedAt:            p.CreatedAt(),
		UpdatedAt:            p.UpdatedAt(),
	}
}
