package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/safar-travel/service-booking/internal/domain/quote"
)

// SearchCriteria narrows an offer search against upstream inventory.
type SearchCriteria struct {
	ServiceType quote.ServiceType `json:"service_type"`
	Origin      string            `json:"origin,omitempty"`
	Destination string            `json:"destination,omitempty"`
	DateFrom    string            `json:"date_from,omitempty"`
	DateTo      string            `json:"date_to,omitempty"`
	Travelers   int               `json:"travelers,omitempty"`
	Currency    string            `json:"currency,omitempty"`
}

// Offer is a bookable item returned by an inventory provider. Its ID becomes
// the quote item's service ID when the user adds it to their cart.
type Offer struct {
	ID          string            `json:"id"`
	ServiceType quote.ServiceType `json:"service_type"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Price       decimal.Decimal   `json:"price"`
	Currency    string            `json:"currency"`
	Details     map[string]any    `json:"details,omitempty"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
}

// OfferProvider searches upstream travel inventory.
type OfferProvider interface {
	Search(ctx context.Context, criteria SearchCriteria) ([]Offer, error)
}

// FallbackOffers returns a minimal placeholder result for when the upstream
// provider is unreachable, so a search degrades instead of erroring out.
func FallbackOffers(criteria SearchCriteria) []Offer {
	expiry := time.Now().UTC().Add(10 * time.Minute)
	return []Offer{{
		ID:          fmt.Sprintf("fallback-%s-%s", criteria.ServiceType, uuid.NewString()[:8]),
		ServiceType: criteria.ServiceType,
		Name:        fmt.Sprintf("%s standard option", criteria.ServiceType),
		Description: "live inventory temporarily unavailable",
		Price:       decimal.NewFromInt(500),
		Currency:    criteria.Currency,
		ExpiresAt:   &expiry,
	}}
}

// MockOfferProvider serves fabricated inventory for development and testing.
type MockOfferProvider struct {
	logger *zap.Logger
}

// NewMockOfferProvider creates a new MockOfferProvider.
func NewMockOfferProvider(logger *zap.Logger) *MockOfferProvider {
	return &MockOfferProvider{logger: logger}
}

// Search returns a small fixed set of offers for the requested service type.
func (m *MockOfferProvider) Search(ctx context.Context, criteria SearchCriteria) ([]Offer, error) {
	m.logger.Debug("mock provider: searching offers",
		zap.String("service_type", string(criteria.ServiceType)),
		zap.String("destination", criteria.Destination),
	)

	expiry := time.Now().UTC().Add(30 * time.Minute)
	offers := make([]Offer, 0, 3)
	for i := 1; i <= 3; i++ {
		offers = append(offers, Offer{
			ID:          fmt.Sprintf("offer-%s-%s", criteria.ServiceType, uuid.NewString()[:8]),
			ServiceType: criteria.ServiceType,
			Name:        fmt.Sprintf("%s option %d", criteria.ServiceType, i),
			Price:       decimal.NewFromInt(int64(i * 500)),
			Currency:    criteria.Currency,
			Details: map[string]any{
				"origin":      criteria.Origin,
				"destination": criteria.Destination,
			},
			ExpiresAt: &expiry,
		})
	}
	return offers, nil
}
