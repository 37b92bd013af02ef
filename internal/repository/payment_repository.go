package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/safar-travel/service-booking/internal/domain"
	paymentDomain "github.com/safar-travel/service-booking/internal/domain/payment"
)

// PaymentModel is the GORM model for the payments table. The unique index on
// the idempotency key guarantees at most one row per initiation key.
type PaymentModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	OrderID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount           decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Currency         string          `gorm:"type:varchar(3);not null;default:'SAR'"`
	Method           string          `gorm:"type:varchar(20);not null"`
	Status           string          `gorm:"type:varchar(20);not null;default:'pending'"`
	IdempotencyKey   string          `gorm:"type:varchar(64);uniqueIndex;not null"`
	GatewayReference string          `gorm:"type:varchar(255)"`
	CompletedAt      *time.Time      `gorm:"type:timestamptz"`
	FailedAt         *time.Time      `gorm:"type:timestamptz"`
	FailureReason    string          `gorm:"type:text"`
	Version          int64           `gorm:"not null;default:1"`
	CreatedAt        time.Time       `gorm:"type:timestamptz;not null"`
	UpdatedAt        time.Time       `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (PaymentModel) TableName() string { return "payments" }

// GormPaymentRepository implements payment.Repository using GORM.
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository.
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// Save persists a new payment. A duplicate idempotency key comes back as a
// conflict so the caller can read the winner's row.
func (r *GormPaymentRepository) Save(ctx context.Context, p *paymentDomain.Payment) error {
	if err := r.db.WithContext(ctx).Create(toPaymentModel(p)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("payment already initiated with this idempotency key")
		}
		return err
	}
	return nil
}

// Update persists changes with optimistic locking on the version column.
func (r *GormPaymentRepository) Update(ctx context.Context, p *paymentDomain.Payment) error {
	model := toPaymentModel(p)
	previousVersion := p.Version() - 1

	result := r.db.WithContext(ctx).
		Model(&PaymentModel{}).
		Where("id = ? AND version = ?", model.ID, previousVersion).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("payment was modified by another transaction")
	}
	return nil
}

// FindByID retrieves a payment by its unique ID.
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*paymentDomain.Payment, error) {
	var model PaymentModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("payment", id.String())
		}
		return nil, err
	}
	return toPaymentDomain(&model), nil
}

// FindByIdempotencyKey retrieves the single payment created under a key.
func (r *GormPaymentRepository) FindByIdempotencyKey(ctx context.Context, key string) (*paymentDomain.Payment, error) {
	var model PaymentModel
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("payment", key)
		}
		return nil, err
	}
	return toPaymentDomain(&model), nil
}

// FindByOrderID retrieves all payment attempts against an order.
func (r *GormPaymentRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]*paymentDomain.Payment, error) {
	var models []PaymentModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	payments := make([]*paymentDomain.Payment, len(models))
	for i := range models {
		payments[i] = toPaymentDomain(&models[i])
	}
	return payments, nil
}

// ListAll retrieves all payments with pagination (admin).
func (r *GormPaymentRepository) ListAll(ctx context.Context, page, limit int) ([]*paymentDomain.Payment, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&PaymentModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []PaymentModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}

	payments := make([]*paymentDomain.Payment, len(models))
	for i := range models {
		payments[i] = toPaymentDomain(&models[i])
	}
	return payments, total, nil
}

// GetRevenueStats returns completed revenue and counts by status (admin).
func (r *GormPaymentRepository) GetRevenueStats(ctx context.Context) (decimal.Decimal, map[string]int64, error) {
	var totalRevenue decimal.Decimal
	if err := r.db.WithContext(ctx).Model(&PaymentModel{}).
		Where("status = ?", string(paymentDomain.StatusCompleted)).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&totalRevenue).Error; err != nil {
		return decimal.Zero, nil, err
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&PaymentModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return decimal.Zero, nil, err
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return totalRevenue, counts, nil
}

func toPaymentModel(p *paymentDomain.Payment) *PaymentModel {
	return &PaymentModel{
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

func toPaymentDomain(m *PaymentModel) *paymentDomain.Payment {
	return paymentDomain.Reconstitute(
		m.ID, m.UserID, m.OrderID,
		m.Amount, m.Currency,
		paymentDomain.Method(m.Method),
		paymentDomain.Status(m.Status),
		m.IdempotencyKey, m.GatewayReference,
		m.CompletedAt, m.FailedAt, m.FailureReason,
		m.Version,
		m.CreatedAt, m.UpdatedAt,
	)
}
