package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/safar-travel/service-booking/internal/adapter"
	"github.com/safar-travel/service-booking/internal/domain"
	orderDomain "github.com/safar-travel/service-booking/internal/domain/order"
	paymentDomain "github.com/safar-travel/service-booking/internal/domain/payment"
	"github.com/safar-travel/service-booking/internal/events"
	"github.com/safar-travel/service-booking/internal/kafka"
)

// InitiatePaymentRequest is the DTO for initiating a payment against an order.
// The amount, when supplied, must match the order total; it exists only so
// clients can assert what they believe they are paying.
type InitiatePaymentRequest struct {
	OrderID        uuid.UUID        `json:"order_id" binding:"required"`
	Method         string           `json:"method" binding:"required"`
	Amount         *decimal.Decimal `json:"amount"`
	IdempotencyKey string           `json:"idempotency_key"`
}

// PaymentDTO is the API response DTO for payment data.
type PaymentDTO struct {
	ID               uuid.UUID       `json:"id"`
	UserID           uuid.UUID       `json:"user_id"`
	OrderID          uuid.UUID       `json:"order_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Method           string          `json:"method"`
	Status           string          `json:"status"`
	IdempotencyKey   string          `json:"idempotency_key"`
	GatewayReference string          `json:"gateway_reference,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	FailedAt         *time.Time      `json:"failed_at,omitempty"`
	FailureReason    string          `json:"failure_reason,omitempty"`
	Version          int64           `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// PaymentListDTO is a paginated list of payments (admin).
type PaymentListDTO struct {
	Payments []PaymentDTO `json:"payments"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	Limit    int          `json:"limit"`
}

// PaymentStatsDTO summarizes revenue and payment counts by status (admin).
type PaymentStatsDTO struct {
	TotalRevenue   decimal.Decimal  `json:"total_revenue"`
	CountsByStatus map[string]int64 `json:"counts_by_status"`
}

// PaymentMethodDTO is the API response DTO for a checkout payment method.
type PaymentMethodDTO struct {
	Code                 string          `json:"code"`
	Type                 string          `json:"type"`
	Name                 string          `json:"name"`
	NameAr               string          `json:"name_ar,omitempty"`
	Description          string          `json:"description,omitempty"`
	DescriptionAr        string          `json:"description_ar,omitempty"`
	Icon                 string          `json:"icon,omitempty"`
	RequiresVerification bool            `json:"requires_verification"`
	MinAmount            decimal.Decimal `json:"min_amount"`
	MaxAmount            decimal.Decimal `json:"max_amount"`
	ProcessingFeeType    string          `json:"processing_fee_type,omitempty"`
	ProcessingFeeValue   decimal.Decimal `json:"processing_fee_value"`
}

// BankAccountDTO is the API response DTO for a bank transfer account.
type BankAccountDTO struct {
	BankName       string `json:"bank_name"`
	BankNameAr     string `json:"bank_name_ar,omitempty"`
	AccountName    string `json:"account_name"`
	AccountNameAr  string `json:"account_name_ar,omitempty"`
	IBAN           string `json:"iban"`
	SwiftCode      string `json:"swift_code,omitempty"`
	IsPrimary      bool   `json:"is_primary"`
	Instructions   string `json:"instructions,omitempty"`
	InstructionsAr string `json:"instructions_ar,omitempty"`
}

// PaymentService is the application service for payment use cases.
type PaymentService struct {
	paymentRepo paymentDomain.Repository
	catalogRepo paymentDomain.CatalogRepository
	orderRepo   orderDomain.Repository
	gateway     adapter.GatewayAdapter
	producer    *kafka.Producer
	logger      *zap.Logger
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	paymentRepo paymentDomain.Repository,
	catalogRepo paymentDomain.CatalogRepository,
	orderRepo orderDomain.Repository,
	gateway adapter.GatewayAdapter,
	producer *kafka.Producer,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		catalogRepo: catalogRepo,
		orderRepo:   orderRepo,
		gateway:     gateway,
		producer:    producer,
		logger:      logger,
	}
}

// InitiatePayment creates a payment for an order and submits the charge to
// the gateway. Initiation is idempotent on the idempotency key: a duplicate
// request returns the payment created by the first one instead of charging
// again.
func (s *PaymentService) InitiatePayment(ctx context.Context, userID uuid.UUID, req InitiatePaymentRequest) (*PaymentDTO, error) {
	o, err := s.orderRepo.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if o.UserID() != userID {
		return nil, domain.NewNotFoundError("order", req.OrderID.String())
	}
	if o.Status() == orderDomain.StatusCancelled || o.Status() == orderDomain.StatusRefunded {
		return nil, domain.NewInvalidStateError(string(o.Status()), "payment initiation")
	}
	if req.Amount != nil && !req.Amount.Equal(o.Total()) {
		return nil, domain.NewValidationError("payment amount does not match order total")
	}

	p, err := paymentDomain.NewPayment(userID, o.ID(), o.Total(), o.Currency(), paymentDomain.Method(req.Method), req.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	if err := s.paymentRepo.Save(ctx, p); err != nil {
		if domain.IsConflict(err) {
			// Duplicate initiation: hand back the winner's payment.
			existing, findErr := s.paymentRepo.FindByIdempotencyKey(ctx, p.IdempotencyKey())
			if findErr != nil {
				return nil, findErr
			}
			s.logger.Info("duplicate payment initiation deduplicated",
				zap.String("idempotency_key", p.IdempotencyKey()),
				zap.String("payment_id", existing.ID().String()),
			)
			dto := toPaymentDTO(existing)
			return &dto, nil
		}
		return nil, err
	}

	ref, err := s.gateway.CreateCharge(ctx, p.ID(), p.Amount(), p.Currency(), string(p.Method()))
	if err != nil {
		s.logger.Error("gateway charge failed", zap.String("payment_id", p.ID().String()), zap.Error(err))
		_ = p.Fail("gateway rejected the charge: " + err.Error())
		p.IncrementVersion()
		if updErr := s.paymentRepo.Update(ctx, p); updErr != nil {
			s.logger.Error("failed to record charge failure", zap.Error(updErr))
		}
		return nil, err
	}

	if err := p.MarkProcessing(ref); err != nil {
		return nil, err
	}
	p.IncrementVersion()
	if err := s.paymentRepo.Update(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("payment initiated",
		zap.String("payment_id", p.ID().String()),
		zap.String("order_id", o.ID().String()),
		zap.String("amount", p.Amount().StringFixed(2)),
	)

	dto := toPaymentDTO(p)
	return &dto, nil
}

// HandleGatewayCallback applies the gateway's asynchronous settlement outcome
// to the payment and, on success, marks the order paid. Callbacks for unknown
// payments and redeliveries against terminal payments are acknowledged and
// dropped.
func (s *PaymentService) HandleGatewayCallback(ctx context.Context, ev events.GatewayCallbackEvent) error {
	p, err := s.paymentRepo.FindByID(ctx, ev.PaymentID)
	if err != nil {
		if domain.IsNotFound(err) {
			s.logger.Warn("gateway callback for unknown payment",
				zap.String("payment_id", ev.PaymentID.String()),
				zap.String("outcome", ev.Outcome),
			)
			return nil
		}
		return err
	}

	switch ev.Outcome {
	case events.OutcomeSuccess:
		if err := p.Complete(ev.GatewayReference); err != nil {
			if domain.IsInvalidState(err) {
				s.logger.Warn("dropping callback for terminal payment",
					zap.String("payment_id", p.ID().String()),
					zap.String("status", string(p.Status())),
				)
				return nil
			}
			return err
		}
		p.IncrementVersion()
		if err := s.paymentRepo.Update(ctx, p); err != nil {
			return err
		}
		if err := s.markOrderPaid(ctx, p); err != nil {
			return err
		}
		s.publishEvent(ctx, events.TopicPaymentEvents, events.PaymentCompleted, events.PaymentCompletedEvent{
			PaymentID:        p.ID(),
			OrderID:          p.OrderID(),
			UserID:           p.UserID(),
			Amount:           p.Amount(),
			Currency:         p.Currency(),
			GatewayReference: p.GatewayReference(),
			OccurredAt:       time.Now().UTC(),
		})
		return nil

	case events.OutcomeFailure:
		if err := p.Fail(ev.FailureReason); err != nil {
			if domain.IsInvalidState(err) {
				s.logger.Warn("dropping callback for terminal payment",
					zap.String("payment_id", p.ID().String()),
					zap.String("status", string(p.Status())),
				)
				return nil
			}
			return err
		}
		p.IncrementVersion()
		if err := s.paymentRepo.Update(ctx, p); err != nil {
			return err
		}
		s.publishEvent(ctx, events.TopicPaymentEvents, events.PaymentFailed, events.PaymentFailedEvent{
			PaymentID:  p.ID(),
			OrderID:    p.OrderID(),
			Reason:     ev.FailureReason,
			OccurredAt: time.Now().UTC(),
		})
		return nil

	default:
		s.logger.Warn("gateway callback with unknown outcome",
			zap.String("payment_id", ev.PaymentID.String()),
			zap.String("outcome", ev.Outcome),
		)
		return nil
	}
}

func (s *PaymentService) markOrderPaid(ctx context.Context, p *paymentDomain.Payment) error {
	o, err := s.orderRepo.FindByID(ctx, p.OrderID())
	if err != nil {
		return err
	}
	if err := o.MarkPaid(p.GatewayReference()); err != nil {
		// A paid or cancelled order is not a callback processing failure.
		s.logger.Warn("order not payable on payment completion",
			zap.String("order_id", o.ID().String()),
			zap.String("status", string(o.Status())),
			zap.Error(err),
		)
		return nil
	}
	return s.orderRepo.Update(ctx, o)
}

// RefundPayment refunds a completed payment in full (admin).
func (s *PaymentService) RefundPayment(ctx context.Context, paymentID uuid.UUID) (*PaymentDTO, error) {
	p, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if err := s.gateway.RefundCharge(ctx, p.GatewayReference(), p.Amount()); err != nil {
		return nil, err
	}

	if err := p.Refund(); err != nil {
		return nil, err
	}
	p.IncrementVersion()
	if err := s.paymentRepo.Update(ctx, p); err != nil {
		return nil, err
	}

	// Reflect the reversal on the order when its state allows it. A refund
	// against an order that is still in flight only reverses the payment.
	if o, err := s.orderRepo.FindByID(ctx, p.OrderID()); err == nil {
		if err := o.MarkRefunded(); err == nil {
			if err := s.orderRepo.Update(ctx, o); err != nil {
				s.logger.Error("failed to mark order refunded",
					zap.String("order_id", o.ID().String()),
					zap.Error(err),
				)
			}
		}
	}

	s.logger.Info("payment refunded", zap.String("payment_id", p.ID().String()))

	dto := toPaymentDTO(p)
	return &dto, nil
}

// GetPayment retrieves one of the user's payments by ID.
func (s *PaymentService) GetPayment(ctx context.Context, userID, paymentID uuid.UUID) (*PaymentDTO, error) {
	p, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.UserID() != userID {
		return nil, domain.NewNotFoundError("payment", paymentID.String())
	}

	dto := toPaymentDTO(p)
	return &dto, nil
}

// GetPaymentsByOrder retrieves all payment attempts against one of the user's
// orders.
func (s *PaymentService) GetPaymentsByOrder(ctx context.Context, userID, orderID uuid.UUID) ([]PaymentDTO, error) {
	o, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID() != userID {
		return nil, domain.NewNotFoundError("order", orderID.String())
	}

	payments, err := s.paymentRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos, nil
}

// ListAllPayments retrieves all payments with pagination (admin).
func (s *PaymentService) ListAllPayments(ctx context.Context, page, limit int) (*PaymentListDTO, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	payments, total, err := s.paymentRepo.ListAll(ctx, page, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	return &PaymentListDTO{Payments: dtos, Total: total, Page: page, Limit: limit}, nil
}

// GetPaymentStats summarizes revenue and counts by status (admin).
func (s *PaymentService) GetPaymentStats(ctx context.Context) (*PaymentStatsDTO, error) {
	revenue, counts, err := s.paymentRepo.GetRevenueStats(ctx)
	if err != nil {
		return nil, err
	}
	return &PaymentStatsDTO{TotalRevenue: revenue, CountsByStatus: counts}, nil
}

// GetPaymentMethods returns the enabled checkout methods, falling back to the
// built-in catalog when none are configured.
func (s *PaymentService) GetPaymentMethods(ctx context.Context) ([]PaymentMethodDTO, error) {
	methods, err := s.catalogRepo.FindEnabledMethods(ctx)
	if err != nil {
		return nil, err
	}
	if len(methods) == 0 {
		methods = defaultPaymentMethods()
	}

	dtos := make([]PaymentMethodDTO, len(methods))
	for i, m := range methods {
		dtos[i] = PaymentMethodDTO{
			Code:                 m.Code,
			Type:                 string(m.Type),
			Name:                 m.Name,
			NameAr:               m.NameAr,
			Description:          m.Description,
			DescriptionAr:        m.DescriptionAr,
			Icon:                 m.Icon,
			RequiresVerification: m.RequiresVerification,
			MinAmount:            m.MinAmount,
			MaxAmount:            m.MaxAmount,
			ProcessingFeeType:    m.ProcessingFeeType,
			ProcessingFeeValue:   m.ProcessingFeeValue,
		}
	}
	return dtos, nil
}

// GetBankAccounts returns the enabled settlement accounts for bank transfer
// payments, falling back to the built-in catalog when none are configured.
func (s *PaymentService) GetBankAccounts(ctx context.Context) ([]BankAccountDTO, error) {
	accounts, err := s.catalogRepo.FindEnabledBankAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		accounts = defaultBankAccounts()
	}

	dtos := make([]BankAccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = BankAccountDTO{
			BankName:       a.BankName,
			BankNameAr:     a.BankNameAr,
			AccountName:    a.AccountName,
			AccountNameAr:  a.AccountNameAr,
			IBAN:           a.IBAN,
			SwiftCode:      a.SwiftCode,
			IsPrimary:      a.IsPrimary,
			Instructions:   a.Instructions,
			InstructionsAr: a.InstructionsAr,
		}
	}
	return dtos, nil
}

// publishEvent publishes best-effort: a broker outage is logged, never
// surfaced to the caller.
func (s *PaymentService) publishEvent(ctx context.Context, topic, eventType string, data any) {
	if s.producer == nil {
		return
	}
	ce, err := kafka.NewCloudEvent("service-booking", eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := s.producer.PublishEvent(ctx, topic, ce); err != nil {
		s.logger.Error("failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}

func defaultPaymentMethods() []paymentDomain.MethodConfig {
	return []paymentDomain.MethodConfig{
		{Code: "card", Type: paymentDomain.MethodCard, Name: "Credit / Debit Card", NameAr: "بطاقة ائتمان", Icon: "card", SortOrder: 1},
		{Code: "mada", Type: paymentDomain.MethodMada, Name: "mada", NameAr: "مدى", Icon: "mada", SortOrder: 2},
		{Code: "apple_pay", Type: paymentDomain.MethodApplePay, Name: "Apple Pay", NameAr: "آبل باي", Icon: "apple", SortOrder: 3},
		{Code: "stc_pay", Type: paymentDomain.MethodSTCPay, Name: "STC Pay", NameAr: "إس تي سي باي", Icon: "stc", SortOrder: 4},
		{Code: "bank_transfer", Type: paymentDomain.MethodBankTransfer, Name: "Bank Transfer", NameAr: "تحويل بنكي", Icon: "bank", RequiresVerification: true, SortOrder: 5},
	}
}

func defaultBankAccounts() []paymentDomain.BankAccount {
	return []paymentDomain.BankAccount{
		{
			BankName:      "Al Rajhi Bank",
			BankNameAr:    "مصرف الراجحي",
			AccountName:   "Safar Travel Co.",
			AccountNameAr: "شركة سفر للسياحة",
			IBAN:          "SA0380000000608010167519",
			SwiftCode:     "RJHISARI",
			IsPrimary:     true,
			Instructions:  "Include your order number in the transfer reference.",
		},
	}
}

func toPaymentDTO(p *paymentDomain.Payment) PaymentDTO {
	return PaymentDTO{
		ID:               p.ID(),
		UserID:           p.UserID(),
		OrderID:          p.OrderID(),
		Amount:           p.Amount(),
		Currency:         p.Currency(),
		Method:           string(p.Method()),
		Status:           string(p.Status()),
		IdempotencyKey:   p.IdempotencyKey(),
		GatewayReference: p.GatewayReference(),
		CompletedAt:      p.CompletedAt(),
		FailedAt:         p.FailedAt(),
		FailureReason:    p.FailureReason(),
		Version:          p.Version(),
		CreatedAt:        p.CreatedAt(),
		UpdatedAt:        p.UpdatedAt(),
	}
}
