package adapter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GatewayAdapter abstracts the external payment gateway. The real settlement
// outcome arrives later as an asynchronous gateway callback event.
type GatewayAdapter interface {
	// CreateCharge submits a charge attempt and returns the gateway's
	// reference for the attempt.
	CreateCharge(ctx context.Context, paymentID uuid.UUID, amount decimal.Decimal, currency string, method string) (string, error)

	// RefundCharge requests a refund of a settled charge.
	RefundCharge(ctx context.Context, gatewayReference string, amount decimal.Decimal) error
}

// MockGatewayAdapter is a stand-in gateway for development and testing. It
// accepts every charge and refund and fabricates references.
type MockGatewayAdapter struct {
	logger *zap.Logger
}

// NewMockGatewayAdapter creates a new MockGatewayAdapter.
func NewMockGatewayAdapter(logger *zap.Logger) *MockGatewayAdapter {
	return &MockGatewayAdapter{logger: logger}
}

// CreateCharge simulates submitting a charge to the gateway.
func (m *MockGatewayAdapter) CreateCharge(ctx context.Context, paymentID uuid.UUID, amount decimal.Decimal, currency string, method string) (string, error) {
	ref := fmt.Sprintf("chg_mock_%s", uuid.NewString()[:8])
	m.logger.Info("mock gateway: charge created",
		zap.String("payment_id", paymentID.String()),
		zap.String("gateway_reference", ref),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("currency", currency),
		zap.String("method", method),
	)
	return ref, nil
}

// RefundCharge simulates refunding a settled charge.
func (m *MockGatewayAdapter) RefundCharge(ctx context.Context, gatewayReference string, amount decimal.Decimal) error {
	m.logger.Info("mock gateway: refund created",
		zap.String("gateway_reference", gatewayReference),
		zap.String("amount", amount.StringFixed(2)),
	)
	return nil
}
