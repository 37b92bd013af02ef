package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/safar-travel/service-booking/internal/adapter"
	"github.com/safar-travel/service-booking/internal/cache"
	"github.com/safar-travel/service-booking/internal/domain"
	quoteDomain "github.com/safar-travel/service-booking/internal/domain/quote"
)

// SearchOffersRequest is the DTO for an offer search.
type SearchOffersRequest struct {
	ServiceType string `form:"service_type" binding:"required"`
	Origin      string `form:"origin"`
	Destination string `form:"destination"`
	DateFrom    string `form:"date_from"`
	DateTo      string `form:"date_to"`
	Travelers   int    `form:"travelers"`
	Currency    string `form:"currency"`
}

// SearchResultDTO is the API response for an offer search.
type SearchResultDTO struct {
	Offers []adapter.Offer `json:"offers"`
	Cached bool            `json:"cached"`
}

// SearchService proxies offer searches to the inventory provider with a
// read-through Redis cache. A cache outage degrades to direct provider calls
// rather than failing the search.
type SearchService struct {
	provider        adapter.OfferProvider
	cache           cache.Cache
	ttl             time.Duration
	defaultCurrency string
	logger          *zap.Logger
}

// NewSearchService creates a new SearchService.
func NewSearchService(
	provider adapter.OfferProvider,
	c cache.Cache,
	ttl time.Duration,
	defaultCurrency string,
	logger *zap.Logger,
) *SearchService {
	return &SearchService{
		provider:        provider,
		cache:           c,
		ttl:             ttl,
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

// SearchOffers returns offers matching the criteria, served from cache when a
// previous identical search is still fresh.
func (s *SearchService) SearchOffers(ctx context.Context, req SearchOffersRequest) (*SearchResultDTO, error) {
	serviceType := quoteDomain.ServiceType(req.ServiceType)
	if !quoteDomain.ValidServiceType(serviceType) {
		return nil, domain.NewValidationError("invalid service type: " + req.ServiceType)
	}

	currency := req.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}

	criteria := adapter.SearchCriteria{
		ServiceType: serviceType,
		Origin:      req.Origin,
		Destination: req.Destination,
		DateFrom:    req.DateFrom,
		DateTo:      req.DateTo,
		Travelers:   req.Travelers,
		Currency:    currency,
	}

	key := cache.Key("offers", map[string]string{
		"service_type": req.ServiceType,
		"origin":       req.Origin,
		"destination":  req.Destination,
		"date_from":    req.DateFrom,
		"date_to":      req.DateTo,
		"currency":     currency,
	})

	if s.cache != nil {
		var cached []adapter.Offer
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return &SearchResultDTO{Offers: cached, Cached: true}, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("offer cache read failed, falling back to provider", zap.Error(err))
		}
	}

	offers, err := s.provider.Search(ctx, criteria)
	if err != nil {
		// A provider outage must not break the search flow. Serve
		// placeholder offers and skip the cache so the next request
		// retries the provider.
		s.logger.Warn("offer provider search failed, serving fallback offers",
			zap.String("service_type", req.ServiceType),
			zap.Error(err),
		)
		return &SearchResultDTO{Offers: adapter.FallbackOffers(criteria), Cached: false}, nil
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, offers, s.ttl); err != nil {
			s.logger.Warn("offer cache write failed", zap.Error(err))
		}
	}

	return &SearchResultDTO{Offers: offers, Cached: false}, nil
}
