//go:build integration

package main_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar-travel/service-booking/internal/application"
	"github.com/safar-travel/service-booking/internal/domain"
	"github.com/safar-travel/service-booking/internal/events"
	"github.com/safar-travel/service-booking/internal/repository"
)

// TestGatewayCallbackSuccess_CompletesPaymentAndOrder verifies the full async
// settlement path: a gateway.callback success event completes the payment,
// confirms the order, and emits a payment.completed event.
func TestGatewayCallbackSuccess_CompletesPaymentAndOrder(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()
	defer func() { _ = stack.Consumer.Close() }()

	userID := uuid.New()
	order := createTestOrder(t, stack, userID, 500, "")

	payment, err := stack.Payments.InitiatePayment(context.Background(), userID, application.InitiatePaymentRequest{
		OrderID: order.ID,
		Method:  "card",
	})
	require.NoError(t, err)
	require.Equal(t, "processing", payment.Status)

	// Start the consumer.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second) // Wait for consumer group join.

	publishTestEvent(t, infra.KafkaBrokers, events.TopicGatewayEvents,
		"payment-gateway", events.GatewayCallback, events.GatewayCallbackEvent{
			PaymentID:        payment.ID,
			Outcome:          events.OutcomeSuccess,
			GatewayReference: "chg_int_success",
			OccurredAt:       time.Now().UTC(),
		})

	// Assert: payment transitions to completed.
	model := waitForPaymentStatus(t, infra.DB, payment.ID, "completed", 15*time.Second)
	assert.Equal(t, "chg_int_success", model.GatewayReference)
	assert.NotNil(t, model.CompletedAt)

	// Assert: the order is confirmed and stamped paid.
	orderModel := waitForOrderStatus(t, infra.DB, order.ID, "confirmed", 15*time.Second)
	assert.NotNil(t, orderModel.PaidAt)
	assert.Equal(t, "chg_int_success", orderModel.PaymentReference)

	// Assert: payment.completed on payment.events.
	ce := consumeOneEvent(t, infra.KafkaBrokers, events.TopicPaymentEvents,
		events.PaymentCompleted, 15*time.Second)

	var completed events.PaymentCompletedEvent
	require.NoError(t, ce.ParseData(&completed))
	assert.Equal(t, payment.ID, completed.PaymentID)
	assert.Equal(t, order.ID, completed.OrderID)
	assert.Equal(t, "SAR", completed.Currency)
}

// TestGatewayCallbackFailure_FailsPayment verifies that a failure callback
// fails the payment, leaves the order unpaid, and emits payment.failed.
func TestGatewayCallbackFailure_FailsPayment(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()
	defer func() { _ = stack.Consumer.Close() }()

	userID := uuid.New()
	order := createTestOrder(t, stack, userID, 500, "")

	payment, err := stack.Payments.InitiatePayment(context.Background(), userID, application.InitiatePaymentRequest{
		OrderID: order.ID,
		Method:  "mada",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second)

	publishTestEvent(t, infra.KafkaBrokers, events.TopicGatewayEvents,
		"payment-gateway", events.GatewayCallback, events.GatewayCallbackEvent{
			PaymentID:     payment.ID,
			Outcome:       events.OutcomeFailure,
			FailureReason: "insufficient funds",
			OccurredAt:    time.Now().UTC(),
		})

	model := waitForPaymentStatus(t, infra.DB, payment.ID, "failed", 15*time.Second)
	assert.Equal(t, "insufficient funds", model.FailureReason)
	assert.NotNil(t, model.FailedAt)

	// The order must still be pending and unpaid.
	var orderModel repository.OrderModel
	require.NoError(t, infra.DB.Where("id = ?", order.ID).First(&orderModel).Error)
	assert.Equal(t, "pending", orderModel.Status)
	assert.Nil(t, orderModel.PaidAt)

	ce := consumeOneEvent(t, infra.KafkaBrokers, events.TopicPaymentEvents,
		events.PaymentFailed, 15*time.Second)

	var failed events.PaymentFailedEvent
	require.NoError(t, ce.ParseData(&failed))
	assert.Equal(t, payment.ID, failed.PaymentID)
	assert.Equal(t, "insufficient funds", failed.Reason)
}

// TestConcurrentPromoRedemption_PerUserLimit verifies that concurrent order
// finalizations with the same single-use promo code commit exactly one
// redemption: the losers are rejected and their orders compensated away.
func TestConcurrentPromoRedemption_PerUserLimit(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	promoID := seedPromoCode(t, stack, "ONCE20", 20, 0, 1)
	userID := uuid.New()

	const attempts = 4
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = stack.Orders.CreateOrder(context.Background(), userID, application.CreateOrderRequest{
				Items: []application.OrderItemRequest{{
					ServiceType: "hotel",
					ServiceName: "Makkah hotel",
					Price:       decimal.NewFromInt(1000),
				}},
				PromoCode:     "ONCE20",
				PaymentMethod: "card",
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, domain.IsBusinessRule(err), "loser must fail the promo rule, got: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one attempt may redeem a single-use code")

	var usageCount int64
	require.NoError(t, infra.DB.Model(&repository.PromoUsageModel{}).
		Where("promo_code_id = ? AND user_id = ?", promoID, userID).
		Count(&usageCount).Error)
	assert.Equal(t, int64(1), usageCount, "the redemption ledger holds one row")

	var orderCount int64
	require.NoError(t, infra.DB.Model(&repository.OrderModel{}).
		Where("user_id = ?", userID).
		Count(&orderCount).Error)
	assert.Equal(t, int64(1), orderCount, "compensated orders must not survive")

	var promoModel repository.PromoCodeModel
	require.NoError(t, infra.DB.Where("id = ?", promoID).First(&promoModel).Error)
	assert.Equal(t, 1, promoModel.UsageCount)
}

// TestConcurrentPaymentInitiation_Idempotent verifies that racing initiation
// requests with one idempotency key create a single payment row and that every
// caller gets that same payment back.
func TestConcurrentPaymentInitiation_Idempotent(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	userID := uuid.New()
	order := createTestOrder(t, stack, userID, 750, "")

	const attempts = 4
	var wg sync.WaitGroup
	ids := make([]uuid.UUID, attempts)
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dto, err := stack.Payments.InitiatePayment(context.Background(), userID, application.InitiatePaymentRequest{
				OrderID:        order.ID,
				Method:         "card",
				IdempotencyKey: "race-key-1",
			})
			errs[i] = err
			if err == nil {
				ids[i] = dto.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < attempts; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i], "every caller must see the same payment")
	}

	var count int64
	require.NoError(t, infra.DB.Model(&repository.PaymentModel{}).
		Where("idempotency_key = ?", "race-key-1").
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

// TestQuoteToOrder_FullFlow drives the cart from draft through checkout into a
// finalized order, then verifies the quote is terminal and unrepeatable.
func TestQuoteToOrder_FullFlow(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	seedPromoCode(t, stack, "TRAVEL20", 20, 200, 1)
	ctx := context.Background()
	userID := uuid.New()

	cart, err := stack.Cart.AddItem(ctx, userID, application.AddItemRequest{
		ServiceType: "hotel",
		ServiceID:   "offer-77",
		ServiceName: "Madinah hotel",
		Price:       decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	cart, err = stack.Cart.ApplyPromo(ctx, userID, cart.ID, application.ApplyPromoRequest{Code: "TRAVEL20"})
	require.NoError(t, err)
	assert.Equal(t, "200", cart.Discount.String())

	cart, err = stack.Cart.Checkout(ctx, userID, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending_payment", cart.Status)

	order, err := stack.Orders.CreateOrder(ctx, userID, application.CreateOrderRequest{
		QuoteID:       &cart.ID,
		PaymentMethod: "card",
	})
	require.NoError(t, err)
	assert.Equal(t, "920", order.Total.String())
	require.Len(t, order.SubBookings, 1)

	var quoteModel repository.QuoteModel
	require.NoError(t, infra.DB.Where("id = ?", cart.ID).First(&quoteModel).Error)
	assert.Equal(t, "paid", quoteModel.Status)

	_, err = stack.Orders.CreateOrder(ctx, userID, application.CreateOrderRequest{
		QuoteID:       &cart.ID,
		PaymentMethod: "card",
	})
	require.Error(t, err, "a paid quote cannot be finalized twice")
	assert.True(t, domain.IsInvalidState(err))

	// A new draft is independent of the finalized one.
	fresh, err := stack.Cart.GetOrCreateQuote(ctx, userID)
	require.NoError(t, err)
	assert.NotEqual(t, cart.ID, fresh.ID)
}

// TestCancelOrder_CascadesToSubBookings verifies cancellation reaches every
// sub-booking row.
func TestCancelOrder_CascadesToSubBookings(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	ctx := context.Background()
	userID := uuid.New()

	order, err := stack.Orders.CreateOrder(ctx, userID, application.CreateOrderRequest{
		Items: []application.OrderItemRequest{
			{ServiceType: "flight", ServiceName: "outbound", Price: decimal.NewFromInt(300)},
			{ServiceType: "hotel", ServiceName: "Makkah hotel", Price: decimal.NewFromInt(700)},
		},
		PaymentMethod: "card",
	})
	require.NoError(t, err)

	_, err = stack.Orders.CancelOrder(ctx, userID, order.ID, "integration test cancel")
	require.NoError(t, err)

	var bookings []repository.SubBookingModel
	require.NoError(t, infra.DB.Where("order_id = ?", order.ID).Find(&bookings).Error)
	require.Len(t, bookings, 2)
	for _, b := range bookings {
		assert.Equal(t, "cancelled", b.Status)
		assert.NotNil(t, b.CancelledAt)
	}
}
