package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/safar-travel/service-booking/internal/domain"
	orderDomain "github.com/safar-travel/service-booking/internal/domain/order"
	quoteDomain "github.com/safar-travel/service-booking/internal/domain/quote"
)

// OrderModel is the GORM model for the orders table.
type OrderModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID             uuid.UUID       `gorm:"type:uuid;not null;index"`
	QuoteID            *uuid.UUID      `gorm:"type:uuid"`
	OrderNumber        string          `gorm:"type:varchar(30);uniqueIndex;not null"`
	Status             string          `gorm:"type:varchar(20);not null;default:'pending'"`
	Subtotal           decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Discount           decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Taxes              decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Total              decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Currency           string          `gorm:"type:varchar(3);not null;default:'SAR'"`
	PaymentMethod      string          `gorm:"type:varchar(50)"`
	PaymentReference   string          `gorm:"type:varchar(255)"`
	PaidAt             *time.Time      `gorm:"type:timestamptz"`
	CancelledAt        *time.Time      `gorm:"type:timestamptz"`
	CancellationReason string          `gorm:"type:text"`
	CreatedAt          time.Time       `gorm:"type:timestamptz;not null"`
	UpdatedAt          time.Time       `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (OrderModel) TableName() string { return "orders" }

// SubBookingModel is the GORM model for the sub_bookings table.
type SubBookingModel struct {
	ID               uuid.UUID              `gorm:"type:uuid;primaryKey"`
	OrderID          uuid.UUID              `gorm:"type:uuid;not null;index"`
	ServiceType      string                 `gorm:"type:varchar(20);not null"`
	ServiceName      string                 `gorm:"type:varchar(255)"`
	BookingReference string                 `gorm:"type:varchar(30);not null"`
	Status           string                 `gorm:"type:varchar(20);not null;default:'pending'"`
	Details          map[string]any         `gorm:"serializer:json;type:jsonb"`
	Travelers        []quoteDomain.Traveler `gorm:"serializer:json;type:jsonb"`
	Price            decimal.Decimal        `gorm:"type:numeric(12,2);not null"`
	Currency         string                 `gorm:"type:varchar(3);not null;default:'SAR'"`
	ServiceDate      *time.Time             `gorm:"type:date"`
	Documents        []orderDomain.Document `gorm:"serializer:json;type:jsonb"`
	ConfirmedAt      *time.Time             `gorm:"type:timestamptz"`
	CancelledAt      *time.Time             `gorm:"type:timestamptz"`
	CreatedAt        time.Time              `gorm:"type:timestamptz;not null"`
	UpdatedAt        time.Time              `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (SubBookingModel) TableName() string { return "sub_bookings" }

// GormOrderRepository implements order.Repository using GORM.
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository.
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Create persists the order and every sub-booking in one transaction.
func (r *GormOrderRepository) Create(ctx context.Context, o *orderDomain.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(toOrderModel(o)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.NewConflictError("order number collision, retry")
			}
			return err
		}
		for _, b := range o.SubBookings() {
			if err := tx.Create(toSubBookingModel(b)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Update persists the order row and all sub-booking rows in one transaction.
func (r *GormOrderRepository) Update(ctx context.Context, o *orderDomain.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(toOrderModel(o)).Error; err != nil {
			return err
		}
		for _, b := range o.SubBookings() {
			if err := tx.Save(toSubBookingModel(b)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes the order and its sub-bookings (saga compensation only).
func (r *GormOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&SubBookingModel{}, "order_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&OrderModel{}, "id = ?", id).Error
	})
}

// FindByID retrieves an order with its sub-bookings.
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*orderDomain.Order, error) {
	var model OrderModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("order", id.String())
		}
		return nil, err
	}

	bookings, err := r.loadBookings(ctx, model.ID)
	if err != nil {
		return nil, err
	}
	return toOrderDomain(&model, bookings), nil
}

// FindByUser retrieves a user's orders, newest first, with pagination.
func (r *GormOrderRepository) FindByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]*orderDomain.Order, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&OrderModel{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []OrderModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}

	orders := make([]*orderDomain.Order, len(models))
	for i := range models {
		bookings, err := r.loadBookings(ctx, models[i].ID)
		if err != nil {
			return nil, 0, err
		}
		orders[i] = toOrderDomain(&models[i], bookings)
	}
	return orders, total, nil
}

// CountByUser counts a user's orders (first-order-only promo checks).
func (r *GormOrderRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&OrderModel{}).Where("user_id = ?", userID).Count(&count).Error
	return int(count), err
}

func (r *GormOrderRepository) loadBookings(ctx context.Context, orderID uuid.UUID) ([]*orderDomain.SubBooking, error) {
	var models []SubBookingModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	bookings := make([]*orderDomain.SubBooking, len(models))
	for i := range models {
		bookings[i] = toSubBookingDomain(&models[i])
	}
	return bookings, nil
}

func toOrderModel(o *orderDomain.Order) *OrderModel {
	return &OrderModel{
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
		PaidAt:             o.PaidAt(),
		CancelledAt:        o.CancelledAt(),
		CancellationReason: o.CancellationReason(),
		CreatedAt:          o.CreatedAt(),
		UpdatedAt:          o.UpdatedAt(),
	}
}

func toSubBookingModel(b *orderDomain.SubBooking) *SubBookingModel {
	return &SubBookingModel{
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
		UpdatedAt:        b.UpdatedAt,
	}
}

func toSubBookingDomain(m *SubBookingModel) *orderDomain.SubBooking {
	return &orderDomain.SubBooking{
		ID:               m.ID,
		OrderID:          m.OrderID,
		ServiceType:      quoteDomain.ServiceType(m.ServiceType),
		ServiceName:      m.ServiceName,
		BookingReference: m.BookingReference,
		Status:           orderDomain.BookingStatus(m.Status),
		Details:          m.Details,
		Travelers:        m.Travelers,
		Price:            m.Price,
		Currency:         m.Currency,
		ServiceDate:      m.ServiceDate,
		Documents:        m.Documents,
		ConfirmedAt:      m.ConfirmedAt,
		CancelledAt:      m.CancelledAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func toOrderDomain(m *OrderModel, bookings []*orderDomain.SubBooking) *orderDomain.Order {
	return orderDomain.Reconstruct(
		m.ID, m.UserID, m.QuoteID, m.OrderNumber,
		orderDomain.Status(m.Status),
		m.Subtotal, m.Discount, m.Taxes, m.Total,
		m.Currency, m.PaymentMethod, m.PaymentReference,
		m.PaidAt, m.CancelledAt, m.CancellationReason,
		bookings,
		m.CreatedAt, m.UpdatedAt,
	)
}
