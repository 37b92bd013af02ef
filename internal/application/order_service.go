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
	quoteDomain "github.com/safar-travel/service-booking/internal/domain/quote"
	"github.com/safar-travel/service-booking/internal/events"
	"github.com/safar-travel/service-booking/internal/kafka"
	"github.com/safar-travel/service-booking/internal/saga"
)

const orderNumberRetries = 3

// OrderItemRequest is one service to book when creating an order directly,
// without a quote.
type OrderItemRequest struct {
	ServiceType string                 `json:"service_type" binding:"required"`
	ServiceName string                 `json:"service_name" binding:"required"`
	Details     map[string]any         `json:"details"`
	Travelers   []quoteDomain.Traveler `json:"travelers"`
	Price       decimal.Decimal        `json:"price" binding:"required"`
	Currency    string                 `json:"currency"`
	ServiceDate *time.Time             `json:"service_date"`
}

// CreateOrderRequest is the DTO for creating an order, either from a
// checked-out quote or directly from items.
type CreateOrderRequest struct {
	QuoteID       *uuid.UUID         `json:"quote_id"`
	Items         []OrderItemRequest `json:"items"`
	PromoCode     string             `json:"promo_code"`
	Currency      string             `json:"currency"`
	PaymentMethod string             `json:"payment_method" binding:"required"`
	InitialStatus string             `json:"initial_status"`
}

// SubBookingDTO is the API response DTO for a sub-booking.
type SubBookingDTO struct {
	ID               uuid.UUID              `json:"id"`
	OrderID          uuid.UUID              `json:"order_id"`
	ServiceType      string                 `json:"service_type"`
	ServiceName      string                 `json:"service_name,omitempty"`
	BookingReference string                 `json:"booking_reference"`
	Status           string                 `json:"status"`
	Details          map[string]any         `json:"details,omitempty"`
	Travelers        []quoteDomain.Traveler `json:"travelers,omitempty"`
	Price            decimal.Decimal        `json:"price"`
	Currency         string                 `json:"currency"`
	ServiceDate      *time.Time             `json:"service_date,omitempty"`
	Documents        []orderDomain.Document `json:"documents,omitempty"`
	ConfirmedAt      *time.Time             `json:"confirmed_at,omitempty"`
	CancelledAt      *time.Time             `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

// OrderDTO is the API response DTO for order data.
type OrderDTO struct {
	ID                 uuid.UUID       `json:"id"`
	UserID             uuid.UUID       `json:"user_id"`
	QuoteID            *uuid.UUID      `json:"quote_id,omitempty"`
	OrderNumber        string          `json:"order_number"`
	Status             string          `json:"status"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	Discount           decimal.Decimal `json:"discount"`
	Taxes              decimal.Decimal `json:"taxes"`
	Total              decimal.Decimal `json:"total"`
	Currency           string          `json:"currency"`
	PaymentMethod      string          `json:"payment_method"`
	PaymentReference   string          `json:"payment_reference,omitempty"`
	SubBookings        []SubBookingDTO `json:"sub_bookings"`
	PaidAt             *time.Time      `json:"paid_at,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// OrderListDTO is a paginated list of orders.
type OrderListDTO struct {
	Orders []OrderDTO `json:"orders"`
	Total  int64      `json:"total"`
	Page   int        `json:"page"`
	Limit  int        `json:"limit"`
}

// OrderService is the application service for order use cases. Finalization
// runs through the order saga so the order insert, promo redemption, and
// quote transition commit or roll back together; domain events are published
// after the saga succeeds and are never load-bearing.
type OrderService struct {
	orderRepo       orderDomain.Repository
	quoteRepo       quoteDomain.Repository
	promoRepo       promoDomain.Repository
	promoService    *PromoService
	sagaSvc         *saga.OrderSagaService
	producer        *kafka.Producer
	taxRate         decimal.Decimal
	defaultCurrency string
	logger          *zap.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	orderRepo orderDomain.Repository,
	quoteRepo quoteDomain.Repository,
	promoRepo promoDomain.Repository,
	promoService *PromoService,
	sagaSvc *saga.OrderSagaService,
	producer *kafka.Producer,
	taxRate decimal.Decimal,
	defaultCurrency string,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orderRepo:       orderRepo,
		quoteRepo:       quoteRepo,
		promoRepo:       promoRepo,
		promoService:    promoService,
		sagaSvc:         sagaSvc,
		producer:        producer,
		taxRate:         taxRate,
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

// CreateOrder finalizes an order from a checked-out quote, or directly from a
// list of items. All monetary amounts are recomputed server-side; the request
// never supplies totals.
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, req CreateOrderRequest) (*OrderDTO, error) {
	if req.QuoteID != nil {
		return s.createFromQuote(ctx, userID, req)
	}
	return s.createFromItems(ctx, userID, req)
}

func (s *OrderService) createFromQuote(ctx context.Context, userID uuid.UUID, req CreateOrderRequest) (*OrderDTO, error) {
	q, err := s.quoteRepo.FindByID(ctx, *req.QuoteID)
	if err != nil {
		return nil, err
	}
	if q.UserID() != userID {
		return nil, domain.NewNotFoundError("quote", req.QuoteID.String())
	}
	if q.Status() != quoteDomain.StatusPendingPayment {
		return nil, domain.NewInvalidStateError(string(q.Status()), "order creation")
	}

	// Amounts are recomputed from the persisted item set, not read back from
	// the request or trusted from the stored totals.
	q.Recalculate(s.taxRate)

	items := make([]orderDomain.LineItem, len(q.Items()))
	for i, item := range q.Items() {
		items[i] = orderDomain.LineItem{
			ServiceType: item.ServiceType,
			ServiceName: item.ServiceName,
			Details:     item.ServiceDetails,
			Travelers:   item.Travelers,
			Price:       item.Price,
			Currency:    item.Currency,
		}
	}

	pricing := orderDomain.Pricing{
		Subtotal: q.Subtotal(),
		Discount: q.Discount(),
		Taxes:    q.Taxes(),
		Total:    q.Total(),
	}

	quoteID := q.ID()
	o, err := orderDomain.NewOrder(userID, &quoteID, orderDomain.InitialStatus(req.InitialStatus), pricing, q.Currency(), req.PaymentMethod, items)
	if err != nil {
		return nil, err
	}

	var usage *promoDomain.Usage
	if q.PromoCode() != "" {
		p, err := s.promoRepo.FindByCode(ctx, q.PromoCode())
		if err != nil {
			return nil, err
		}
		usage = &promoDomain.Usage{
			ID:             uuid.New(),
			PromoCodeID:    p.ID(),
			UserID:         userID,
			OrderID:        o.ID(),
			DiscountAmount: q.Discount(),
			OrderAmount:    q.Subtotal(),
			Currency:       q.Currency(),
			UsedAt:         time.Now().UTC(),
		}
	}

	return s.finalize(ctx, o, usage, q)
}

func (s *OrderService) createFromItems(ctx context.Context, userID uuid.UUID, req CreateOrderRequest) (*OrderDTO, error) {
	if len(req.Items) == 0 {
		return nil, domain.NewValidationError("order requires at least one item")
	}

	currency := req.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}

	subtotal := decimal.Zero
	items := make([]orderDomain.LineItem, len(req.Items))
	for i, item := range req.Items {
		subtotal = subtotal.Add(item.Price)
		items[i] = orderDomain.LineItem{
			ServiceType: quoteDomain.ServiceType(item.ServiceType),
			ServiceName: item.ServiceName,
			Details:     item.Details,
			Travelers:   item.Travelers,
			Price:       item.Price,
			Currency:    item.Currency,
			ServiceDate: item.ServiceDate,
		}
	}
	subtotal = subtotal.Round(2)

	discount := decimal.Zero
	var usage *promoDomain.Usage
	if req.PromoCode != "" {
		serviceType := ""
		if len(req.Items) == 1 {
			serviceType = req.Items[0].ServiceType
		}
		ev, p, err := s.promoService.EvaluateCode(ctx, userID, req.PromoCode, subtotal, currency, serviceType)
		if err != nil {
			return nil, err
		}
		if !ev.Valid {
			return nil, domain.NewBusinessRuleError(ev.Reason)
		}
		discount = ev.DiscountAmount
		usage = &promoDomain.Usage{
			ID:             uuid.New(),
			PromoCodeID:    p.ID(),
			UserID:         userID,
			DiscountAmount: discount,
			OrderAmount:    subtotal,
			Currency:       currency,
			UsedAt:         time.Now().UTC(),
		}
	}

	taxable := subtotal.Sub(discount)
	taxes := taxable.Mul(s.taxRate).Round(2)
	pricing := orderDomain.Pricing{
		Subtotal: subtotal,
		Discount: discount,
		Taxes:    taxes,
		Total:    taxable.Add(taxes),
	}

	o, err := orderDomain.NewOrder(userID, nil, orderDomain.InitialStatus(req.InitialStatus), pricing, currency, req.PaymentMethod, items)
	if err != nil {
		return nil, err
	}
	if usage != nil {
		usage.OrderID = o.ID()
	}

	return s.finalize(ctx, o, usage, nil)
}

func (s *OrderService) finalize(ctx context.Context, o *orderDomain.Order, usage *promoDomain.Usage, q *quoteDomain.Quote) (*OrderDTO, error) {
	var err error
	for attempt := 0; attempt < orderNumberRetries; attempt++ {
		err = s.sagaSvc.FinalizeOrder(ctx, o, usage, q)
		if err == nil {
			break
		}
		// Order number collisions are the only retryable failure; everything
		// else has already been compensated by the saga.
		if !domain.IsConflict(err) {
			return nil, err
		}
		o.RegenerateOrderNumber()
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.String("order_id", o.ID().String()),
		zap.String("order_number", o.OrderNumber()),
		zap.String("total", o.Total().StringFixed(2)),
	)

	s.publishOrderCreated(ctx, o)

	dto := toOrderDTO(o)
	return &dto, nil
}

// CancelOrder cancels an order and cascades the cancellation to its
// sub-bookings.
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID uuid.UUID, reason string) (*OrderDTO, error) {
	o, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID() != userID {
		return nil, domain.NewNotFoundError("order", orderID.String())
	}

	if err := o.Cancel(reason); err != nil {
		return nil, err
	}
	if err := s.orderRepo.Update(ctx, o); err != nil {
		return nil, err
	}

	s.logger.Info("order cancelled",
		zap.String("order_id", o.ID().String()),
		zap.String("reason", reason),
	)

	s.publishEvent(ctx, events.TopicOrderEvents, events.OrderCancelled, events.OrderCancelledEvent{
		OrderID:     o.ID(),
		OrderNumber: o.OrderNumber(),
		UserID:      o.UserID(),
		Reason:      reason,
		OccurredAt:  time.Now().UTC(),
	})

	dto := toOrderDTO(o)
	return &dto, nil
}

// GetOrder retrieves one of the user's orders by ID.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	o, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID() != userID {
		return nil, domain.NewNotFoundError("order", orderID.String())
	}

	dto := toOrderDTO(o)
	return &dto, nil
}

// GetOrders retrieves the user's orders, newest first.
func (s *OrderService) GetOrders(ctx context.Context, userID uuid.UUID, page, limit int) (*OrderListDTO, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	orders, total, err := s.orderRepo.FindByUser(ctx, userID, page, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]OrderDTO, len(orders))
	for i, o := range orders {
		dtos[i] = toOrderDTO(o)
	}
	return &OrderListDTO{Orders: dtos, Total: total, Page: page, Limit: limit}, nil
}

// GetSubBooking retrieves a single sub-booking of one of the user's orders.
func (s *OrderService) GetSubBooking(ctx context.Context, userID, orderID, bookingID uuid.UUID) (*SubBookingDTO, error) {
	o, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID() != userID {
		return nil, domain.NewNotFoundError("order", orderID.String())
	}

	for _, b := range o.SubBookings() {
		if b.ID == bookingID {
			dto := toSubBookingDTO(b)
			return &dto, nil
		}
	}
	return nil, domain.NewNotFoundError("booking", bookingID.String())
}

func (s *OrderService) publishOrderCreated(ctx context.Context, o *orderDomain.Order) {
	s.publishEvent(ctx, events.TopicOrderEvents, events.OrderCreated, events.OrderCreatedEvent{
		OrderID:     o.ID(),
		OrderNumber: o.OrderNumber(),
		UserID:      o.UserID(),
		Total:       o.Total(),
		Currency:    o.Currency(),
		Status:      string(o.Status()),
		OccurredAt:  time.Now().UTC(),
	})

	if o.Status() == orderDomain.StatusConfirmed {
		s.publishEvent(ctx, events.TopicOrderEvents, events.OrderConfirmed, events.OrderConfirmedEvent{
			OrderID:     o.ID(),
			OrderNumber: o.OrderNumber(),
			UserID:      o.UserID(),
			OccurredAt:  time.Now().UTC(),
		})
	}
}

// publishEvent publishes best-effort: a broker outage is logged, never
// surfaced to the caller.
func (s *OrderService) publishEvent(ctx context.Context, topic, eventType string, data any) {
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

func toSubBookingDTO(b *orderDomain.SubBooking) SubBookingDTO {
	return SubBookingDTO{
		ID:               b.ID,
		OrderID:          b.OrderID,
		ServiceType:      string(b.ServiceType),
		ServiceName:      b.ServiceName,
		BookingReference: b.BookingReference,
		Status:           string(b.Status),
		Details:          b.Details,
		Travelers:        b.Travelers,
		Price:            b.Price,
		Currency:         b.Currency,
		ServiceDate:      b.ServiceDate,
		Documents:        b.Documents,
		ConfirmedAt:      b.ConfirmedAt,
		CancelledAt:      b.CancelledAt,
		CreatedAt:        b.CreatedAt,
	}
}

func toOrderDTO(o *orderDomain.Order) OrderDTO {
	bookings := make([]SubBookingDTO, len(o.SubBookings()))
	for i, b := range o.SubBookings() {
		bookings[i] = toSubBookingDTO(b)
	}

	return OrderDTO{
		ID:                 o.ID(),
		UserID:             o.UserID(),
		QuoteID:            o.QuoteID(),
		OrderNumber:        o.OrderNumber(),
		Status:             string(o.Status()),
		Subtotal:           o.Subtotal(),
		Discount:           o.Discount(),
		Taxes:              o.Taxes(),
		Total:              o.Total(),
		Currency:           o.Currency(),
		PaymentMethod:      o.PaymentMethod(),
		PaymentReference:   o.PaymentReference(),
		SubBookings:        bookings,
		PaidAt:             o.PaidAt(),
		CancelledAt:        o.CancelledAt(),
		CancellationReason: o.CancellationReason(),
		CreatedAt:          o.CreatedAt(),
		UpdatedAt:          o.UpdatedAt(),
	}
}
