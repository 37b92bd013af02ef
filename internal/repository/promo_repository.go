package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/safar-travel/service-booking/internal/domain"
	promoDomain "github.com/safar-travel/service-booking/internal/domain/promo"
)

// PromoCodeModel is the GORM model for the promo_codes table.
type PromoCodeModel struct {
	ID                   uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Code                 string          `gorm:"type:varchar(50);uniqueIndex;not null"`
	Name                 string          `gorm:"type:varchar(255);not null"`
	Description          string          `gorm:"type:text"`
	DiscountType         string          `gorm:"type:varchar(20);not null"`
	Value                decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	MinOrderAmount       decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	MaxDiscountAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	UsageLimit           int             `gorm:"not null;default:0"`
	UsageCount           int             `gorm:"not null;default:0"`
	PerUserLimit         int             `gorm:"not null;default:0"`
	ValidFrom            time.Time       `gorm:"type:timestamptz;not null"`
	ValidUntil           time.Time       `gorm:"type:timestamptz;not null"`
	Status               string          `gorm:"type:varchar(20);not null;default:'active'"`
	ApplicableServices   []string        `gorm:"serializer:json;type:jsonb"`
	ApplicableCurrencies []string        `gorm:"serializer:json;type:jsonb"`
	FirstOrderOnly       bool            `gorm:"not null;default:false"`
	CreatedBy            uuid.UUID       `gorm:"type:uuid;not null"`
	CreatedAt            time.Time       `gorm:"type:timestamptz;not null"`
	UpdatedAt            time.Time       `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (PromoCodeModel) TableName() string { return "promo_codes" }

// PromoUsageModel is the GORM model for the promo_code_usages ledger table.
type PromoUsageModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	PromoCodeID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_promo_usages_code_user"`
	UserID         uuid.UUID       `gorm:"type:uuid;not null;index:idx_promo_usages_code_user"`
	OrderID        uuid.UUID       `gorm:"type:uuid;not null"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	OrderAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Currency       string          `gorm:"type:varchar(3);not null"`
	UsedAt         time.Time       `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (PromoUsageModel) TableName() string { return "promo_code_usages" }

// GormPromoRepository implements promo.Repository using GORM.
type GormPromoRepository struct {
	db *gorm.DB
}

// NewGormPromoRepository creates a new GormPromoRepository.
func NewGormPromoRepository(db *gorm.DB) *GormPromoRepository {
	return &GormPromoRepository{db: db}
}

// Save persists a new promo code.
func (r *GormPromoRepository) Save(ctx context.Context, p *promoDomain.PromoCode) error {
	if err := r.db.WithContext(ctx).Create(toPromoModel(p)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("promo code already exists")
		}
		return err
	}
	return nil
}

// Update persists changes to a promo code.
func (r *GormPromoRepository) Update(ctx context.Context, p *promoDomain.PromoCode) error {
	return r.db.WithContext(ctx).Save(toPromoModel(p)).Error
}

// FindByCode returns a promo code by its normalized code string.
func (r *GormPromoRepository) FindByCode(ctx context.Context, code string) (*promoDomain.PromoCode, error) {
	var model PromoCodeModel
	if err := r.db.WithContext(ctx).Where("code = ?", promoDomain.NormalizeCode(code)).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("promo code", code)
		}
		return nil, err
	}
	return toPromoDomain(&model), nil
}

// FindByID returns a promo code by ID.
func (r *GormPromoRepository) FindByID(ctx context.Context, id uuid.UUID) (*promoDomain.PromoCode, error) {
	var model PromoCodeModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("promo code", id.String())
		}
		return nil, err
	}
	return toPromoDomain(&model), nil
}

// FindActive returns promo codes currently inside their validity window.
func (r *GormPromoRepository) FindActive(ctx context.Context, now time.Time) ([]*promoDomain.PromoCode, error) {
	var models []PromoCodeModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(promoDomain.StatusActive)).
		Where("valid_from <= ? AND valid_until >= ?", now, now).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	promos := make([]*promoDomain.PromoCode, len(models))
	for i := range models {
		promos[i] = toPromoDomain(&models[i])
	}
	return promos, nil
}

// CountUserRedemptions counts ledger rows for a (code, user) pair.
func (r *GormPromoRepository) CountUserRedemptions(ctx context.Context, promoCodeID, userID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&PromoUsageModel{}).
		Where("promo_code_id = ? AND user_id = ?", promoCodeID, userID).
		Count(&count).Error
	return int(count), err
}

// RecordRedemption appends a ledger row inside one transaction that holds a
// FOR UPDATE lock on the promo row. Both limit checks recount against
// committed state under the lock, so concurrent redemptions serialize and at
// most perUserLimit rows per user can ever commit.
func (r *GormPromoRepository) RecordRedemption(ctx context.Context, usage *promoDomain.Usage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model PromoCodeModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", usage.PromoCodeID).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("promo code", usage.PromoCodeID.String())
			}
			return err
		}

		if model.UsageLimit > 0 && model.UsageCount >= model.UsageLimit {
			return domain.NewBusinessRuleError("this promo code has reached its usage limit")
		}

		if model.PerUserLimit > 0 {
			var userCount int64
			if err := tx.Model(&PromoUsageModel{}).
				Where("promo_code_id = ? AND user_id = ?", usage.PromoCodeID, usage.UserID).
				Count(&userCount).Error; err != nil {
				return err
			}
			if int(userCount) >= model.PerUserLimit {
				return domain.NewBusinessRuleError("you have already used this promo code")
			}
		}

		if usage.ID == uuid.Nil {
			usage.ID = uuid.New()
		}
		if usage.UsedAt.IsZero() {
			usage.UsedAt = time.Now().UTC()
		}
		if err := tx.Create(toUsageModel(usage)).Error; err != nil {
			return err
		}

		return tx.Model(&PromoCodeModel{}).
			Where("id = ?", usage.PromoCodeID).
			UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error
	})
}

// RemoveRedemption deletes a ledger row and decrements the usage count.
func (r *GormPromoRepository) RemoveRedemption(ctx context.Context, usageID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var usage PromoUsageModel
		if err := tx.Where("id = ?", usageID).First(&usage).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := tx.Delete(&PromoUsageModel{}, "id = ?", usageID).Error; err != nil {
			return err
		}
		return tx.Model(&PromoCodeModel{}).
			Where("id = ? AND usage_count > 0", usage.PromoCodeID).
			UpdateColumn("usage_count", gorm.Expr("usage_count - 1")).Error
	})
}

func toPromoModel(p *promoDomain.PromoCode) *PromoCodeModel {
	return &PromoCodeModel{
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
		CreatedBy:            p.CreatedBy(),
		CreatedAt:            p.CreatedAt(),
		UpdatedAt:            p.UpdatedAt(),
	}
}

func toPromoDomain(m *PromoCodeModel) *promoDomain.PromoCode {
	return promoDomain.Reconstruct(
		m.ID, m.Code, m.Name, m.Description,
		promoDomain.DiscountType(m.DiscountType),
		m.Value, m.MinOrderAmount, m.MaxDiscountAmount,
		m.UsageLimit, m.UsageCount, m.PerUserLimit,
		m.ValidFrom, m.ValidUntil,
		promoDomain.Status(m.Status),
		m.ApplicableServices, m.ApplicableCurrencies,
		m.FirstOrderOnly, m.CreatedBy,
		m.CreatedAt, m.UpdatedAt,
	)
}

func toUsageModel(u *promoDomain.Usage) *PromoUsageModel {
	return &PromoUsageModel{
		ID:             u.ID,
		PromoCodeID:    u.PromoCodeID,
		UserID:         u.UserID,
		OrderID:        u.OrderID,
		DiscountAmount: u.DiscountAmount,
		OrderAmount:    u.OrderAmount,
		Currency:       u.Currency,
		UsedAt:         u.UsedAt,
	}
}
