package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	paymentDomain "github.com/safar-travel/service-booking/internal/domain/payment"
)

// PaymentMethodConfigModel is the GORM model for the payment_method_configs table.
type PaymentMethodConfigModel struct {
	ID                   uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Code                 string          `gorm:"type:varchar(30);uniqueIndex;not null"`
	Type                 string          `gorm:"type:varchar(20);not null"`
	Name                 string          `gorm:"type:varchar(100);not null"`
	NameAr               string          `gorm:"type:varchar(100)"`
	Description          string          `gorm:"type:text"`
	DescriptionAr        string          `gorm:"type:text"`
	Icon                 string          `gorm:"type:varchar(50)"`
	IsEnabled            bool            `gorm:"not null;default:true"`
	RequiresVerification bool            `gorm:"not null;default:false"`
	MinAmount            decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	MaxAmount            decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	ProcessingFeeType    string          `gorm:"type:varchar(20)"`
	ProcessingFeeValue   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	SortOrder            int             `gorm:"not null;default:0"`
}

// TableName sets the table name.
func (PaymentMethodConfigModel) TableName() string { return "payment_method_configs" }

// BankAccountModel is the GORM model for the bank_accounts table.
type BankAccountModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	BankName       string    `gorm:"type:varchar(100);not null"`
	BankNameAr     string    `gorm:"type:varchar(100)"`
	AccountName    string    `gorm:"type:varchar(100);not null"`
	AccountNameAr  string    `gorm:"type:varchar(100)"`
	IBAN           string    `gorm:"type:varchar(50);not null"`
	SwiftCode      string    `gorm:"type:varchar(20)"`
	IsPrimary      bool      `gorm:"not null;default:false"`
	IsEnabled      bool      `gorm:"not null;default:true"`
	SortOrder      int       `gorm:"not null;default:0"`
	Instructions   string    `gorm:"type:text"`
	InstructionsAr string    `gorm:"type:text"`
}

// TableName sets the table name.
func (BankAccountModel) TableName() string { return "bank_accounts" }

// GormCatalogRepository implements payment.CatalogRepository using GORM.
type GormCatalogRepository struct {
	db *gorm.DB
}

// NewGormCatalogRepository creates a new GormCatalogRepository.
func NewGormCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

// FindEnabledMethods returns the enabled payment methods in display order.
func (r *GormCatalogRepository) FindEnabledMethods(ctx context.Context) ([]paymentDomain.MethodConfig, error) {
	var models []PaymentMethodConfigModel
	if err := r.db.WithContext(ctx).Where("is_enabled = ?", true).Order("sort_order ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	methods := make([]paymentDomain.MethodConfig, len(models))
	for i, m := range models {
		methods[i] = paymentDomain.MethodConfig{
			ID:                   m.ID,
			Code:                 m.Code,
			Type:                 paymentDomain.Method(m.Type),
			Name:                 m.Name,
			NameAr:               m.NameAr,
			Description:          m.Description,
			DescriptionAr:        m.DescriptionAr,
			Icon:                 m.Icon,
			Enabled:              m.IsEnabled,
			RequiresVerification: m.RequiresVerification,
			MinAmount:            m.MinAmount,
			MaxAmount:            m.MaxAmount,
			ProcessingFeeType:    m.ProcessingFeeType,
			ProcessingFeeValue:   m.ProcessingFeeValue,
			SortOrder:            m.SortOrder,
		}
	}
	return methods, nil
}

// FindEnabledBankAccounts returns the enabled settlement accounts, primary first.
func (r *GormCatalogRepository) FindEnabledBankAccounts(ctx context.Context) ([]paymentDomain.BankAccount, error) {
	var models []BankAccountModel
	if err := r.db.WithContext(ctx).Where("is_enabled = ?", true).Order("is_primary DESC, sort_order ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	accounts := make([]paymentDomain.BankAccount, len(models))
	for i, m := range models {
		accounts[i] = paymentDomain.BankAccount{
			ID:             m.ID,
			BankName:       m.BankName,
			BankNameAr:     m.BankNameAr,
			AccountName:    m.AccountName,
			AccountNameAr:  m.AccountNameAr,
			IBAN:           m.IBAN,
			SwiftCode:      m.SwiftCode,
			IsPrimary:      m.IsPrimary,
			Enabled:        m.IsEnabled,
			SortOrder:      m.SortOrder,
			Instructions:   m.Instructions,
			InstructionsAr: m.InstructionsAr,
		}
	}
	return accounts, nil
}
