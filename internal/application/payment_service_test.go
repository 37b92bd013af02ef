package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/safar-travel/service-booking/internal/domain"
	orderDomain "github.com/safar-travel/service-booking/internal/domain/order"
	paymentDomain "github.com/safar-travel/service-booking/internal/domain/payment"
	quoteDomain "github.com/safar-travel/service-booking/internal/domain/quote"
	"github.com/safar-travel/service-booking/internal/events"
)

type paymentFixture struct {
	paymentRepo *fakePaymentRepo
	orderRepo   *fakeOrderRepo
	gateway     *fakeGateway
	payments    *PaymentService
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	paymentRepo := newFakePaymentRepo()
	orderRepo := newFakeOrderRepo()
	gateway := &fakeGateway{}
	payments := NewPaymentService(paymentRepo, &fakeCatalogRepo{}, orderRepo, gateway, nil, zap.NewNop())
	return &paymentFixture{paymentRepo: paymentRepo, orderRepo: orderRepo, gateway: gateway, payments: payments}
}

func (f *paymentFixture) seedOrder(t *testing.T, userID uuid.UUID, total int64) *orderDomain.Order {
	t.Helper()
	o, err := orderDomain.NewOrder(userID, nil, orderDomain.InitialPending,
		orderDomain.Pricing{
			Subtotal: decimal.NewFromInt(total),
			Total:    decimal.NewFromInt(total),
		},
		"SAR", "card",
		[]orderDomain.LineItem{{
			ServiceType: quoteDomain.ServiceFlight,
			ServiceName: "flight",
			Price:       decimal.NewFromInt(total),
		}})
	require.NoError(t, err)
	require.NoError(t, f.orderRepo.Create(context.Background(), o))
	return o
}

func TestInitiatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path moves the payment to processing", func(t *testing.T) {
		f := newPaymentFixture(t)
		userID := uuid.New()
		o := f.seedOrder(t, userID, 575)

		dto, err := f.payments.InitiatePayment(ctx, userID, InitiatePaymentRequest{
			OrderID:        o.ID(),
			Method:         "card",
			IdempotencyKey: "key-1",
		})
		require.NoError(t, err)
		assert.Equal(t, "processing", dto.Status)
		assert.Equal(t, "575", dto.Amount.String())
		assert.NotEmpty(t, dto.GatewayReference)
		assert.Equal(t, 1, f.gateway.chargeCount())
	})

	t.Run("duplicate initiation returns the winner without charging again", func(t *testing.T) {
		f := newPaymentFixture(t)
		userID := uuid.New()
		o := f.seedOrder(t, userID, 575)

		req := InitiatePaymentRequest{OrderID: o.ID(), Method: "card", IdempotencyKey: "key-dup"}
		first, err := f.payments.InitiatePayment(ctx, userID, req)
		require.NoError(t, err)

		second, err := f.payments.InitiatePayment(ctx, userID, req)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 1, f.gateway.chargeCount(), "the second request must not reach the gateway")
	})

	t.Run("amount assertion must match the order total", func(t *testing.T) {
		f := newPaymentFixture(t)
		userID := uuid.New()
		o := f.seedOrder(t, userID, 575)

		wrong := decimal.NewFromInt(500)
		_, err := f.payments.InitiatePayment(ctx, userID, InitiatePaymentRequest{
			OrderID: o.ID(),
			Method:  "card",
			Amount:  &wrong,
		})
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
		assert.Contains(t, err.Error(), "does not match order total")
	})

	t.Run("cancelled order cannot be paid", func(t *testing.T) {
		f := newPaymentFixture(t)
		userID := uuid.New()
		o := f.seedOrder(t, userID, 575)
		require.NoError(t, o.Cancel("changed my mind"))
		require.NoError(t, f.orderRepo.Update(ctx, o))

		_, err := f.payments.InitiatePayment(ctx, userID, InitiatePaymentRequest{OrderID: o.ID(), Method: "card"})
		require.Error(t, err)
		assert.True(t, domain.IsInvalidState(err))
	})

	t.Run("someone else's order is not found", func(t *testing.T) {
		f := newPaymentFixture(t)
		o := f.seedOrder(t, uuid.New(), 575)

		_, err := f.payments.InitiatePayment(ctx, uuid.New(), InitiatePaymentRequest{OrderID: o.ID(), Method: "card"})
		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("gateway rejection fails the payment but keeps the record", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.gateway.chargeErr = errors.New("issuer unavailable")
		userID := uuid.New()
		o := f.seedOrder(t, userID, 575)

		_, err := f.payments.InitiatePayment(ctx, userID, InitiatePaymentRequest{
			OrderID:        o.ID(),
			Method:         "card",
			IdempotencyKey: "key-fail",
		})
		require.Error(t, err)

		p, findErr := f.paymentRepo.FindByIdempotencyKey(ctx, "key-fail")
		require.NoError(t, findErr)
		assert.Equal(t, paymentDomain.StatusFailed, p.Status())
	})
}

func TestHandleGatewayCallback(t *testing.T) {
	ctx := context.Background()

	initiate := func(t *testing.T, f *paymentFixture, userID uuid.UUID, o *orderDomain.Order) *PaymentDTO {
		t.Helper()
		dto, err := f.payments.InitiatePayment(ctx, userID, InitiatePaymentRequest{OrderID: o.ID(), Method: "card"})
		require.NoError(t, err)
		return dto
	}

	t.Run("success completes the payment and confirms the order", func(t *testing.T) {
		f := newPaymentFixture(t)
		userID := uuid.New()
		o := f.seedOrder(t, userID, 575)
		dto := initiate(t, f, userID, o)

		err := f.payments.HandleGatewayCallback(ctx, events.GatewayCallbackEvent{
			PaymentID:        dto.ID,
			Outcome:          events.OutcomeSuccess,
			GatewayReference: "chg_final",
			OccurredAt:       time.Now(),
		})
		require.NoError(t, err)

		p, err := f.paymentRepo.FindByID(ctx, dto.ID)
		require.NoError(t, err)
		assert.Equal(t, paymentDomain.StatusCompleted, p.Status())
		assert.Equal(t, "chg_final", p.GatewayReference())

		updated, err := f.orderRepo.FindByID(ctx, o.ID())
		require.NoError(t, err)
		assert.Equal(t, orderDomain.StatusConfirmed, updated.Status())
		assert.NotNil(t, updated.PaidAt())
	})

	t.Run("failure records the reason and leaves the order unpaid", func(t *testing.T) {
		f := newPaymentFixture(t)
		userID := uuid.New()
		o := f.seedOrder(t, userID, 575)
		dto := initiate(t, f, userID, o)

		err := f.payments.HandleGatewayCallback(ctx, events.GatewayCallbackEvent{
			PaymentID:     dto.ID,
			Outcome:       events.OutcomeFailure,
			FailureReason: "insufficient funds",
		})
		require.NoError(t, err)

		p, err := f.paymentRepo.FindByID(ctx, dto.ID)
		require.NoError(t, err)
		assert.Equal(t, paymentDomain.StatusFailed, p.Status())
		assert.Equal(t, "insufficient funds", p.FailureReason())

		updated, err := f.orderRepo.FindByID(ctx, o.ID())
		require.NoError(t, err)
		assert.Equal(t, orderDomain.StatusPending, updated.Status())
	})

	t.Run("unknown payment is acknowledged, not retried", func(t *testing.T) {
		f := newPaymentFixture(t)
		err := f.payments.HandleGatewayCallback(ctx, events.GatewayCallbackEvent{
			PaymentID: uuid.New(),
			Outcome:   events.OutcomeSuccess,
		})
		assert.NoError(t, err)
	})

	t.Run("redelivery against a terminal payment is dropped", func(t *testing.T) {
		f := newPaymentFixture(t)
		userID := uuid.New()
		o := f.seedOrder(t, userID, 575)
		dto := initiate(t, f, userID, o)

		ev := events.GatewayCallbackEvent{PaymentID: dto.ID, Outcome: events.OutcomeSuccess}
		require.NoError(t, f.payments.HandleGatewayCallback(ctx, ev))
		require.NoError(t, f.payments.HandleGatewayCallback(ctx, ev), "redelivery must ack cleanly")

		err := f.payments.HandleGatewayCallback(ctx, events.GatewayCallbackEvent{
			PaymentID: dto.ID,
			Outcome:   events.OutcomeFailure,
		})
		assert.NoError(t, err, "a late failure for a completed payment is dropped")

		p, err := f.paymentRepo.FindByID(ctx, dto.ID)
		require.NoError(t, err)
		assert.Equal(t, paymentDomain.StatusCompleted, p.Status())
	})

	t.Run("unknown outcome is acknowledged", func(t *testing.T) {
		f := newPaymentFixture(t)
		userID := uuid.New()
		o := f.seedOrder(t, userID, 575)
		dto := initiate(t, f, userID, o)

		err := f.payments.HandleGatewayCallback(ctx, events.GatewayCallbackEvent{
			PaymentID: dto.ID,
			Outcome:   "maybe",
		})
		assert.NoError(t, err)
	})
}

func TestRefundPayment(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)
	userID := uuid.New()
	o := f.seedOrder(t, userID, 575)

	dto, err := f.payments.InitiatePayment(ctx, userID, InitiatePaymentRequest{OrderID: o.ID(), Method: "card"})
	require.NoError(t, err)

	require.NoError(t, f.payments.HandleGatewayCallback(ctx, events.GatewayCallbackEvent{
		PaymentID: dto.ID,
		Outcome:   events.OutcomeSuccess,
	}))

	// The callback confirmed the order; complete it so the reversal can
	// reach it.
	completed, err := f.orderRepo.FindByID(ctx, o.ID())
	require.NoError(t, err)
	require.NoError(t, completed.Complete())
	require.NoError(t, f.orderRepo.Update(ctx, completed))

	refunded, err := f.payments.RefundPayment(ctx, dto.ID)
	require.NoError(t, err)
	assert.Equal(t, "refunded", refunded.Status)
	assert.Equal(t, 1, f.gateway.refunds)

	stored, err := f.orderRepo.FindByID(ctx, o.ID())
	require.NoError(t, err)
	assert.Equal(t, "refunded", string(stored.Status()), "the reversal reaches the completed order")
	for _, b := range stored.SubBookings() {
		assert.Equal(t, "refunded", string(b.Status))
	}

	_, err = f.payments.RefundPayment(ctx, dto.ID)
	require.Error(t, err, "a refunded payment cannot be refunded again")
}

func TestPaymentCatalog_Fallbacks(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)

	methods, err := f.payments.GetPaymentMethods(ctx)
	require.NoError(t, err)
	require.Len(t, methods, 5)
	codes := make([]string, len(methods))
	for i, m := range methods {
		codes[i] = m.Code
	}
	assert.ElementsMatch(t, []string{"card", "mada", "apple_pay", "stc_pay", "bank_transfer"}, codes)

	accounts, err := f.payments.GetBankAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.True(t, accounts[0].IsPrimary)
	assert.NotEmpty(t, accounts[0].IBAN)
}

func TestGetPaymentStats(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)
	userID := uuid.New()

	for i := 0; i < 2; i++ {
		o := f.seedOrder(t, userID, 100)
		dto, err := f.payments.InitiatePayment(ctx, userID, InitiatePaymentRequest{OrderID: o.ID(), Method: "card"})
		require.NoError(t, err)
		require.NoError(t, f.payments.HandleGatewayCallback(ctx, events.GatewayCallbackEvent{
			PaymentID: dto.ID,
			Outcome:   events.OutcomeSuccess,
		}))
	}

	stats, err := f.payments.GetPaymentStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "200", stats.TotalRevenue.String())
	assert.Equal(t, int64(2), stats.CountsByStatus["completed"])
}
