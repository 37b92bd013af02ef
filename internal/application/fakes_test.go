package application

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/safar-travel/service-booking/internal/domain"
	orderDomain "github.com/safar-travel/service-booking/internal/domain/order"
	paymentDomain "github.com/safar-travel/service-booking/internal/domain/payment"
	promoDomain "github.com/safar-travel/service-booking/internal/domain/promo"
	quoteDomain "github.com/safar-travel/service-booking/internal/domain/quote"
)

// In-memory repository fakes. They mirror the conflict and not-found semantics
// of the GORM implementations so services can be exercised without a database.

type fakeQuoteRepo struct {
	mu     sync.Mutex
	quotes map[uuid.UUID]*quoteDomain.Quote
}

func newFakeQuoteRepo() *fakeQuoteRepo {
	return &fakeQuoteRepo{quotes: make(map[uuid.UUID]*quoteDomain.Quote)}
}

func (r *fakeQuoteRepo) FindDraftByUser(ctx context.Context, userID uuid.UUID) (*quoteDomain.Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.quotes {
		if q.UserID() == userID && q.Status() == quoteDomain.StatusDraft {
			return q, nil
		}
	}
	return nil, domain.NewNotFoundError("draft quote", userID.String())
}

func (r *fakeQuoteRepo) FindByID(ctx context.Context, id uuid.UUID) (*quoteDomain.Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[id]
	if !ok {
		return nil, domain.NewNotFoundError("quote", id.String())
	}
	return q, nil
}

func (r *fakeQuoteRepo) Save(ctx context.Context, q *quoteDomain.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q.Status() == quoteDomain.StatusDraft {
		for _, existing := range r.quotes {
			if existing.UserID() == q.UserID() && existing.Status() == quoteDomain.StatusDraft {
				return domain.NewConflictError("a draft quote already exists for this user")
			}
		}
	}
	r.quotes[q.ID()] = q
	return nil
}

func (r *fakeQuoteRepo) Update(ctx context.Context, q *quoteDomain.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.quotes[q.ID()]; !ok {
		return domain.NewNotFoundError("quote", q.ID().String())
	}
	r.quotes[q.ID()] = q
	return nil
}

func (r *fakeQuoteRepo) Mutate(ctx context.Context, quoteID uuid.UUID, fn func(q *quoteDomain.Quote) error) (*quoteDomain.Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[quoteID]
	if !ok {
		return nil, domain.NewNotFoundError("quote", quoteID.String())
	}
	if err := fn(q); err != nil {
		return nil, err
	}
	r.quotes[quoteID] = q
	return q, nil
}

type fakePromoRepo struct {
	mu     sync.Mutex
	promos map[uuid.UUID]*promoDomain.PromoCode
	usages map[uuid.UUID]*promoDomain.Usage

	recordErr error // injected failure for RecordRedemption
}

func newFakePromoRepo() *fakePromoRepo {
	return &fakePromoRepo{
		promos: make(map[uuid.UUID]*promoDomain.PromoCode),
		usages: make(map[uuid.UUID]*promoDomain.Usage),
	}
}

func (r *fakePromoRepo) Save(ctx context.Context, p *promoDomain.PromoCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.promos {
		if existing.Code() == p.Code() {
			return domain.NewConflictError("promo code already exists")
		}
	}
	r.promos[p.ID()] = p
	return nil
}

func (r *fakePromoRepo) Update(ctx context.Context, p *promoDomain.PromoCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.promos[p.ID()] = p
	return nil
}

func (r *fakePromoRepo) FindByCode(ctx context.Context, code string) (*promoDomain.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	normalized := promoDomain.NormalizeCode(code)
	for _, p := range r.promos {
		if p.Code() == normalized {
			return p, nil
		}
	}
	return nil, domain.NewNotFoundError("promo code", code)
}

func (r *fakePromoRepo) FindByID(ctx context.Context, id uuid.UUID) (*promoDomain.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.promos[id]
	if !ok {
		return nil, domain.NewNotFoundError("promo code", id.String())
	}
	return p, nil
}

func (r *fakePromoRepo) FindActive(ctx context.Context, now time.Time) ([]*promoDomain.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*promoDomain.PromoCode
	for _, p := range r.promos {
		if p.Status() == promoDomain.StatusActive && !now.Before(p.ValidFrom()) && !now.After(p.ValidUntil()) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePromoRepo) CountUserRedemptions(ctx context.Context, promoCodeID, userID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, u := range r.usages {
		if u.PromoCodeID == promoCodeID && u.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *fakePromoRepo) RecordRedemption(ctx context.Context, usage *promoDomain.Usage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recordErr != nil {
		return r.recordErr
	}
	r.usages[usage.ID] = usage
	return nil
}

func (r *fakePromoRepo) RemoveRedemption(ctx context.Context, usageID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.usages, usageID)
	return nil
}

func (r *fakePromoRepo) usageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.usages)
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*orderDomain.Order

	createConflicts int // number of Create calls that fail with a conflict first
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*orderDomain.Order)}
}

func (r *fakeOrderRepo) Create(ctx context.Context, o *orderDomain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createConflicts > 0 {
		r.createConflicts--
		return domain.NewConflictError("order number already exists")
	}
	for _, existing := range r.orders {
		if existing.OrderNumber() == o.OrderNumber() {
			return domain.NewConflictError("order number already exists")
		}
	}
	r.orders[o.ID()] = o
	return nil
}

func (r *fakeOrderRepo) Update(ctx context.Context, o *orderDomain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID()]; !ok {
		return domain.NewNotFoundError("order", o.ID().String())
	}
	r.orders[o.ID()] = o
	return nil
}

func (r *fakeOrderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, id)
	return nil
}

func (r *fakeOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*orderDomain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.NewNotFoundError("order", id.String())
	}
	return o, nil
}

func (r *fakeOrderRepo) FindByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]*orderDomain.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*orderDomain.Order
	for _, o := range r.orders {
		if o.UserID() == userID {
			out = append(out, o)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeOrderRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.orders {
		if o.UserID() == userID {
			n++
		}
	}
	return n, nil
}

func (r *fakeOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*paymentDomain.Payment
	byKey    map[string]uuid.UUID
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		payments: make(map[uuid.UUID]*paymentDomain.Payment),
		byKey:    make(map[string]uuid.UUID),
	}
}

func (r *fakePaymentRepo) Save(ctx context.Context, p *paymentDomain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byKey[p.IdempotencyKey()]; ok {
		return domain.NewConflictError("payment already initiated with this idempotency key")
	}
	r.payments[p.ID()] = p
	r.byKey[p.IdempotencyKey()] = p.ID()
	return nil
}

func (r *fakePaymentRepo) Update(ctx context.Context, p *paymentDomain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[p.ID()]; !ok {
		return domain.NewNotFoundError("payment", p.ID().String())
	}
	r.payments[p.ID()] = p
	return nil
}

func (r *fakePaymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*paymentDomain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, domain.NewNotFoundError("payment", id.String())
	}
	return p, nil
}

func (r *fakePaymentRepo) FindByIdempotencyKey(ctx context.Context, key string) (*paymentDomain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[key]
	if !ok {
		return nil, domain.NewNotFoundError("payment", key)
	}
	return r.payments[id], nil
}

func (r *fakePaymentRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]*paymentDomain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*paymentDomain.Payment
	for _, p := range r.payments {
		if p.OrderID() == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) ListAll(ctx context.Context, page, limit int) ([]*paymentDomain.Payment, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*paymentDomain.Payment
	for _, p := range r.payments {
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (r *fakePaymentRepo) GetRevenueStats(ctx context.Context) (decimal.Decimal, map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	counts := make(map[string]int64)
	for _, p := range r.payments {
		counts[string(p.Status())]++
		if p.Status() == paymentDomain.StatusCompleted {
			total = total.Add(p.Amount())
		}
	}
	return total, counts, nil
}

type fakeCatalogRepo struct {
	methods  []paymentDomain.MethodConfig
	accounts []paymentDomain.BankAccount
}

func (r *fakeCatalogRepo) FindEnabledMethods(ctx context.Context) ([]paymentDomain.MethodConfig, error) {
	return r.methods, nil
}

func (r *fakeCatalogRepo) FindEnabledBankAccounts(ctx context.Context) ([]paymentDomain.BankAccount, error) {
	return r.accounts, nil
}

type fakeGateway struct {
	mu        sync.Mutex
	charges   int
	refunds   int
	chargeErr error
}

func (g *fakeGateway) CreateCharge(ctx context.Context, paymentID uuid.UUID, amount decimal.Decimal, currency, method string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.chargeErr != nil {
		return "", g.chargeErr
	}
	g.charges++
	return "chg_test_" + paymentID.String()[:8], nil
}

func (g *fakeGateway) RefundCharge(ctx context.Context, gatewayReference string, amount decimal.Decimal) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds++
	return nil
}

func (g *fakeGateway) chargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.charges
}
