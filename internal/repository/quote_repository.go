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
	"github.com/safar-travel/service-booking/internal/domain/promo"
	quoteDomain "github.com/safar-travel/service-booking/internal/domain/quote"
)

// QuoteModel is the GORM model for the quotes table. The partial unique index
// on user_id enforces at most one draft quote per user at the schema level.
type QuoteModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID           uuid.UUID       `gorm:"type:uuid;not null;index:idx_quotes_user_draft,unique,where:status = 'draft'"`
	Status           string          `gorm:"type:varchar(20);not null;default:'draft'"`
	Subtotal         decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Discount         decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Taxes            decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Total            decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Currency         string          `gorm:"type:varchar(3);not null;default:'SAR'"`
	PromoCode        string          `gorm:"type:varchar(50)"`
	PromoType        string          `gorm:"type:varchar(20)"`
	PromoValue       decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	PromoMaxDiscount decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	ExpiresAt        *time.Time      `gorm:"type:timestamptz"`
	CreatedAt        time.Time       `gorm:"type:timestamptz;not null"`
	UpdatedAt        time.Time       `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (QuoteModel) TableName() string { return "quotes" }

// QuoteItemModel is the GORM model for the quote_items table.
type QuoteItemModel struct {
	ID             uuid.UUID              `gorm:"type:uuid;primaryKey"`
	QuoteID        uuid.UUID              `gorm:"type:uuid;not null;index"`
	ServiceType    string                 `gorm:"type:varchar(20);not null"`
	ServiceID      string                 `gorm:"type:varchar(255);not null"`
	ServiceName    string                 `gorm:"type:varchar(255);not null"`
	ServiceDetails map[string]any         `gorm:"serializer:json;type:jsonb"`
	Travelers      []quoteDomain.Traveler `gorm:"serializer:json;type:jsonb"`
	Price          decimal.Decimal        `gorm:"type:numeric(12,2);not null"`
	Currency       string                 `gorm:"type:varchar(3);not null;default:'SAR'"`
	ExpiresAt      *time.Time             `gorm:"type:timestamptz"`
	CreatedAt      time.Time              `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (QuoteItemModel) TableName() string { return "quote_items" }

// GormQuoteRepository implements quote.Repository using GORM.
type GormQuoteRepository struct {
	db *gorm.DB
}

// NewGormQuoteRepository creates a new GormQuoteRepository.
func NewGormQuoteRepository(db *gorm.DB) *GormQuoteRepository {
	return &GormQuoteRepository{db: db}
}

// FindDraftByUser returns the user's draft quote with its items.
func (r *GormQuoteRepository) FindDraftByUser(ctx context.Context, userID uuid.UUID) (*quoteDomain.Quote, error) {
	return r.findOne(r.db.WithContext(ctx), "user_id = ? AND status = ?", userID, string(quoteDomain.StatusDraft))
}

// FindByID returns a quote by id with its items.
func (r *GormQuoteRepository) FindByID(ctx context.Context, id uuid.UUID) (*quoteDomain.Quote, error) {
	return r.findOne(r.db.WithContext(ctx), "id = ?", id)
}

func (r *GormQuoteRepository) findOne(tx *gorm.DB, query string, args ...any) (*quoteDomain.Quote, error) {
	var model QuoteModel
	if err := tx.Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("quote", "")
		}
		return nil, err
	}

	items, err := r.loadItems(tx, model.ID)
	if err != nil {
		return nil, err
	}
	return toQuoteDomain(&model, items), nil
}

func (r *GormQuoteRepository) loadItems(tx *gorm.DB, quoteID uuid.UUID) ([]*quoteDomain.Item, error) {
	var models []QuoteItemModel
	if err := tx.Where("quote_id = ?", quoteID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]*quoteDomain.Item, len(models))
	for i := range models {
		items[i] = toItemDomain(&models[i])
	}
	return items, nil
}

// Save creates a quote and its items. The partial unique index rejects a
// second draft for the same user.
func (r *GormQuoteRepository) Save(ctx context.Context, q *quoteDomain.Quote) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(toQuoteModel(q)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.NewConflictError("user already has an active draft quote")
			}
			return err
		}
		for _, item := range q.Items() {
			if err := tx.Create(toItemModel(item)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Update persists the quote row only (status transitions outside Mutate).
func (r *GormQuoteRepository) Update(ctx context.Context, q *quoteDomain.Quote) error {
	return r.db.WithContext(ctx).Save(toQuoteModel(q)).Error
}

// Mutate applies fn to the quote under a FOR UPDATE row lock and persists the
// quote and its full item set in the same transaction. The lock serializes
// concurrent cart mutations per quote, and items are re-read inside the
// transaction so recalculation never works from a stale snapshot.
func (r *GormQuoteRepository) Mutate(ctx context.Context, quoteID uuid.UUID, fn func(q *quoteDomain.Quote) error) (*quoteDomain.Quote, error) {
	var result *quoteDomain.Quote
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model QuoteModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", quoteID).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("quote", quoteID.String())
			}
			return err
		}

		items, err := r.loadItems(tx, model.ID)
		if err != nil {
			return err
		}
		q := toQuoteDomain(&model, items)

		if err := fn(q); err != nil {
			return err
		}

		if err := tx.Where("quote_id = ?", q.ID()).Delete(&QuoteItemModel{}).Error; err != nil {
			return err
		}
		for _, item := range q.Items() {
			if err := tx.Create(toItemModel(item)).Error; err != nil {
				return err
			}
		}
		if err := tx.Save(toQuoteModel(q)).Error; err != nil {
			return err
		}

		result = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func toQuoteModel(q *quoteDomain.Quote) *QuoteModel {
	return &QuoteModel{
		ID:               q.ID(),
		UserID:           q.UserID(),
		Status:           string(q.Status()),
		Subtotal:         q.Subtotal(),
		Discount:         q.Discount(),
		Taxes:            q.Taxes(),
		Total:            q.Total(),
		Currency:         q.Currency(),
		PromoCode:        q.PromoCode(),
		PromoType:        string(q.PromoType()),
		PromoValue:       q.PromoValue(),
		PromoMaxDiscount: q.PromoMaxDiscount(),
		ExpiresAt:        q.ExpiresAt(),
		CreatedAt:        q.CreatedAt(),
		UpdatedAt:        q.UpdatedAt(),
	}
}

func toItemModel(i *quoteDomain.Item) *QuoteItemModel {
	return &QuoteItemModel{
		ID:             i.ID,
		QuoteID:        i.QuoteID,
		ServiceType:    string(i.ServiceType),
		ServiceID:      i.ServiceID,
		ServiceName:    i.ServiceName,
		ServiceDetails: i.ServiceDetails,
		Travelers:      i.Travelers,
		Price:          i.Price,
		Currency:       i.Currency,
		ExpiresAt:      i.ExpiresAt,
		CreatedAt:      i.CreatedAt,
	}
}

func toItemDomain(m *QuoteItemModel) *quoteDomain.Item {
	return &quoteDomain.Item{
		ID:             m.ID,
		QuoteID:        m.QuoteID,
		ServiceType:    quoteDomain.ServiceType(m.ServiceType),
		ServiceID:      m.ServiceID,
		ServiceName:    m.ServiceName,
		ServiceDetails: m.ServiceDetails,
		Travelers:      m.Travelers,
		Price:          m.Price,
		Currency:       m.Currency,
		ExpiresAt:      m.ExpiresAt,
		CreatedAt:      m.CreatedAt,
	}
}

func toQuoteDomain(m *QuoteModel, items []*quoteDomain.Item) *quoteDomain.Quote {
	return quoteDomain.Reconstruct(
		m.ID, m.UserID,
		quoteDomain.Status(m.Status),
		m.Subtotal, m.Discount, m.Taxes, m.Total,
		m.Currency,
		m.PromoCode, promo.DiscountType(m.PromoType), m.PromoValue, m.PromoMaxDiscount,
		m.ExpiresAt, items,
		m.CreatedAt, m.UpdatedAt,
	)
}
