package order

import (
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar-travel/service-booking/internal/domain/quote"
)

func testPricing(total int64) Pricing {
	return Pricing{
		Subtotal: decimal.NewFromInt(total),
		Discount: decimal.Zero,
		Taxes:    decimal.Zero,
		Total:    decimal.NewFromInt(total),
	}
}

func newTestOrder(t *testing.T, initial InitialStatus, items ...LineItem) *Order {
	t.Helper()
	if len(items) == 0 {
		items = []LineItem{{
			ServiceType: quote.ServiceFlight,
			ServiceName: "Jeddah flight",
			Price:       decimal.NewFromInt(500),
		}}
	}
	o, err := NewOrder(uuid.New(), nil, initial, testPricing(500), "SAR", "card", items)
	require.NoError(t, err)
	return o
}

func TestNewOrder_Validation(t *testing.T) {
	t.Run("requires at least one item", func(t *testing.T) {
		_, err := NewOrder(uuid.New(), nil, InitialPending, testPricing(0), "SAR", "card", nil)
		assert.Error(t, err)
	})

	t.Run("requires a payment method", func(t *testing.T) {
		_, err := NewOrder(uuid.New(), nil, InitialPending, testPricing(100), "SAR", "",
			[]LineItem{{ServiceType: quote.ServiceHotel, Price: decimal.NewFromInt(100)}})
		assert.Error(t, err)
	})

	t.Run("rejects unknown initial status", func(t *testing.T) {
		_, err := NewOrder(uuid.New(), nil, "shipped", testPricing(100), "SAR", "card",
			[]LineItem{{ServiceType: quote.ServiceHotel, Price: decimal.NewFromInt(100)}})
		assert.Error(t, err)
	})

	t.Run("rejects unknown service type", func(t *testing.T) {
		_, err := NewOrder(uuid.New(), nil, InitialPending, testPricing(100), "SAR", "card",
			[]LineItem{{ServiceType: "cruise", Price: decimal.NewFromInt(100)}})
		assert.Error(t, err)
	})
}

func TestNewOrder_InitialStatusMapping(t *testing.T) {
	assert.Equal(t, StatusPending, newTestOrder(t, InitialPending).Status())
	assert.Equal(t, StatusPending, newTestOrder(t, "").Status())
	assert.Equal(t, StatusConfirmed, newTestOrder(t, InitialConfirmed).Status())
	// under_review means accepted but held for manual verification
	assert.Equal(t, StatusProcessing, newTestOrder(t, InitialUnderReview).Status())
}

func TestNewOrder_BookingStatusFollowsOrder(t *testing.T) {
	pending := newTestOrder(t, InitialPending)
	require.Len(t, pending.SubBookings(), 1)
	assert.Equal(t, BookingStatusPending, pending.SubBookings()[0].Status)

	confirmed := newTestOrder(t, InitialConfirmed)
	assert.Equal(t, BookingStatusConfirmed, confirmed.SubBookings()[0].Status)

	underReview := newTestOrder(t, InitialUnderReview)
	assert.Equal(t, BookingStatusPending, underReview.SubBookings()[0].Status)
}

func TestGenerateOrderNumber_Format(t *testing.T) {
	re := regexp.MustCompile(`^ORD-[0-9A-Z]+-[0-9A-Z]{4}$`)
	for i := 0; i < 20; i++ {
		n := GenerateOrderNumber()
		assert.Regexp(t, re, n)
	}
}

func TestGenerateBookingReference_Prefixes(t *testing.T) {
	now := time.Now()
	cases := map[quote.ServiceType]string{
		quote.ServiceFlight:  "FLT",
		quote.ServiceHotel:   "HTL",
		quote.ServiceVisa:    "VSA",
		quote.ServiceHajj:    "HAJ",
		quote.ServicePackage: "PKG",
	}
	re := regexp.MustCompile(`^[A-Z]{3}-\d{6}$`)
	for st, prefix := range cases {
		ref := GenerateBookingReference(st, now)
		assert.Regexp(t, re, ref)
		assert.Equal(t, prefix, ref[:3])
	}
}

func TestCancel(t *testing.T) {
	t.Run("cascades to every sub-booking", func(t *testing.T) {
		o := newTestOrder(t, InitialConfirmed,
			LineItem{ServiceType: quote.ServiceFlight, ServiceName: "flight", Price: decimal.NewFromInt(300)},
			LineItem{ServiceType: quote.ServiceHotel, ServiceName: "hotel", Price: decimal.NewFromInt(200)},
		)
		require.NoError(t, o.Cancel("change of plans"))

		assert.Equal(t, StatusCancelled, o.Status())
		assert.Equal(t, "change of plans", o.CancellationReason())
		require.NotNil(t, o.CancelledAt())
		for _, b := range o.SubBookings() {
			assert.Equal(t, BookingStatusCancelled, b.Status)
			assert.NotNil(t, b.CancelledAt)
		}
	})

	t.Run("double cancel is rejected with a clear message", func(t *testing.T) {
		o := newTestOrder(t, InitialPending)
		require.NoError(t, o.Cancel(""))
		err := o.Cancel("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "order is already cancelled")
	})

	t.Run("completed orders cannot be cancelled", func(t *testing.T) {
		o := newTestOrder(t, InitialConfirmed)
		require.NoError(t, o.Complete())
		err := o.Cancel("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "completed orders cannot be cancelled")
	})
}

func TestMarkPaid(t *testing.T) {
	t.Run("pending order is confirmed with its bookings", func(t *testing.T) {
		o := newTestOrder(t, InitialPending)
		require.NoError(t, o.MarkPaid("pay_123"))

		assert.Equal(t, StatusConfirmed, o.Status())
		assert.Equal(t, "pay_123", o.PaymentReference())
		require.NotNil(t, o.PaidAt())
		for _, b := range o.SubBookings() {
			assert.Equal(t, BookingStatusConfirmed, b.Status)
		}
	})

	t.Run("processing order keeps its status", func(t *testing.T) {
		o := newTestOrder(t, InitialUnderReview)
		require.NoError(t, o.MarkPaid("pay_456"))
		assert.Equal(t, StatusProcessing, o.Status())
	})

	t.Run("cancelled order cannot be paid", func(t *testing.T) {
		o := newTestOrder(t, InitialPending)
		require.NoError(t, o.Cancel(""))
		assert.Error(t, o.MarkPaid("pay_789"))
	})
}

func TestStatusTransitions(t *testing.T) {
	o := newTestOrder(t, InitialPending)
	require.NoError(t, o.Confirm())
	assert.Error(t, o.Confirm(), "confirm is pending-only")
	assert.Error(t, o.StartProcessing(), "processing is pending-only")

	require.NoError(t, o.Complete())
	assert.Error(t, o.Complete())

	require.NoError(t, o.MarkRefunded())
	assert.Equal(t, StatusRefunded, o.Status())
	for _, b := range o.SubBookings() {
		assert.Equal(t, BookingStatusRefunded, b.Status)
	}
}

func TestRegenerateOrderNumber(t *testing.T) {
	o := newTestOrder(t, InitialPending)
	before := o.OrderNumber()
	o.RegenerateOrderNumber()
	assert.NotEqual(t, before, o.OrderNumber())
}
