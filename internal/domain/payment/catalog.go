package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MethodConfig is an admin-configured payment method offered at checkout.
type MethodConfig struct {
	ID                   uuid.UUID
	Code                 string
	Type                 Method
	Name                 string
	NameAr               string
	Description          string
	DescriptionAr        string
	Icon                 string
	Enabled              bool
	RequiresVerification bool
	MinAmount            decimal.Decimal
	MaxAmount            decimal.Decimal
	ProcessingFeeType    string
	ProcessingFeeValue   decimal.Decimal
	SortOrder            int
}

// BankAccount is a settlement account shown for manual bank transfers.
type BankAccount struct {
	ID             uuid.UUID
	BankName       string
	BankNameAr     string
	AccountName    string
	AccountNameAr  string
	IBAN           string
	SwiftCode      string
	IsPrimary      bool
	Enabled        bool
	SortOrder      int
	Instructions   string
	InstructionsAr string
}

// CatalogRepository reads the configured payment method and bank account
// catalogs. Both are admin-maintained reference data.
type CatalogRepository interface {
	FindEnabledMethods(ctx context.Context) ([]MethodConfig, error)
	FindEnabledBankAccounts(ctx context.Context) ([]BankAccount, error)
}
