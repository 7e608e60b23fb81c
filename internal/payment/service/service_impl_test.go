package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	paymentdomain "github.com/smallbiznis/inspectconnect/internal/payment/domain"
	subscriptiondomain "github.com/smallbiznis/inspectconnect/internal/subscription/domain"
	"github.com/smallbiznis/inspectconnect/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCheckoutSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	session, err := f.payments.CreateCheckoutSession(ctx, paymentdomain.CheckoutRequest{
		CustomerID: " cus_123 ",
		PriceID:    "price_123",
		SuccessURL: "https://app.example.com/success",
		CancelURL:  "https://app.example.com/cancel",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.NotEmpty(t, session.URL)

	require.Len(t, f.gateway.CheckoutInputs, 1)
	assert.Equal(t, "cus_123", f.gateway.CheckoutInputs[0].CustomerID)
	assert.Equal(t, "price_123", f.gateway.CheckoutInputs[0].PriceID)
}

func TestCreateCheckoutSessionValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name string
		req  paymentdomain.CheckoutRequest
		want error
	}{
		{"missing customer", paymentdomain.CheckoutRequest{PriceID: "price_1", SuccessURL: "https://a.example", CancelURL: "https://b.example"}, paymentdomain.ErrInvalidCustomer},
		{"missing price", paymentdomain.CheckoutRequest{CustomerID: "cus_1", SuccessURL: "https://a.example", CancelURL: "https://b.example"}, paymentdomain.ErrInvalidPrice},
		{"relative success url", paymentdomain.CheckoutRequest{CustomerID: "cus_1", PriceID: "price_1", SuccessURL: "/done", CancelURL: "https://b.example"}, paymentdomain.ErrInvalidURL},
		{"bad cancel scheme", paymentdomain.CheckoutRequest{CustomerID: "cus_1", PriceID: "price_1", SuccessURL: "https://a.example", CancelURL: "ftp://b.example"}, paymentdomain.ErrInvalidURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.payments.CreateCheckoutSession(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.gateway.CheckoutInputs)
}

func TestCreateCheckoutSessionGatewayFailure(t *testing.T) {
	f := newFixture(t)
	f.gateway.CheckoutErr = errors.New("boom")

	_, err := f.payments.CreateCheckoutSession(context.Background(), paymentdomain.CheckoutRequest{
		CustomerID: "cus_123",
		PriceID:    "price_123",
		SuccessURL: "https://app.example.com/success",
		CancelURL:  "https://app.example.com/cancel",
	})
	assert.ErrorIs(t, err, paymentdomain.ErrCheckoutFailed)
}

func TestCreatePaymentIntentUsesCurrentSubscription(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.seedUser(t, "cus_123", "active", nil)
	f.seedSubscription(t, user, "sub_123", subscriptiondomain.StatusActive, baseTime)

	intent, err := f.payments.CreatePaymentIntent(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, intent.ClientSecret)
	assert.Equal(t, int64(4999), intent.Amount)

	require.Len(t, f.gateway.PaymentIntents, 1)
	input := f.gateway.PaymentIntents[0]
	assert.Equal(t, "cus_123", input.CustomerID)
	assert.Equal(t, "usd", input.Currency)
	assert.Equal(t, "in_latest", input.InvoiceID)
}

func TestCreatePaymentIntentErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.payments.CreatePaymentIntent(ctx, f.node.Generate())
	assert.ErrorIs(t, err, paymentdomain.ErrUserNotFound)

	user := f.seedUser(t, "cus_123", "", nil)
	_, err = f.payments.CreatePaymentIntent(ctx, user.ID)
	assert.ErrorIs(t, err, paymentdomain.ErrSubscriptionNotFound)

	f.seedSubscription(t, user, "sub_123", subscriptiondomain.StatusActive, baseTime)
	f.gateway.PaymentIntentErr = errors.New("card_declined")
	_, err = f.payments.CreatePaymentIntent(ctx, user.ID)
	assert.ErrorIs(t, err, paymentdomain.ErrPaymentIntentFailed)
}

func TestPayInvoice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.seedUser(t, "cus_123", "active", nil)

	_, err := f.payments.PayInvoice(ctx, paymentdomain.PayInvoiceRequest{UserID: user.ID, PaymentMethodID: "pm_1"})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidInvoice)
	_, err = f.payments.PayInvoice(ctx, paymentdomain.PayInvoiceRequest{UserID: user.ID, InvoiceID: "in_1"})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPaymentMethod)

	invoice, err := f.payments.PayInvoice(ctx, paymentdomain.PayInvoiceRequest{
		UserID:          user.ID,
		InvoiceID:       "in_1",
		PaymentMethodID: "pm_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "paid", invoice.Status)
	require.Len(t, f.gateway.PaidInvoices, 1)
	assert.Equal(t, "pm_1", f.gateway.PaidInvoices[0].PaymentMethodID)
	assert.Equal(t, "cus_123", f.gateway.PaidInvoices[0].CustomerID)

	f.gateway.PayInvoiceErr = errors.New("declined")
	_, err = f.payments.PayInvoice(ctx, paymentdomain.PayInvoiceRequest{UserID: user.ID, InvoiceID: "in_2", PaymentMethodID: "pm_1"})
	assert.ErrorIs(t, err, paymentdomain.ErrPayInvoiceFailed)
}

func TestPayInvoiceRefusesInvoiceOfAnotherCustomer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.seedUser(t, "cus_123", "active", nil)
	f.gateway.InvoiceOwners["in_other"] = "cus_999"

	_, err := f.payments.PayInvoice(ctx, paymentdomain.PayInvoiceRequest{
		UserID:          user.ID,
		InvoiceID:       "in_other",
		PaymentMethodID: "pm_1",
	})
	assert.ErrorIs(t, err, paymentdomain.ErrInvoiceNotOwned)
	assert.NotErrorIs(t, err, paymentdomain.ErrPayInvoiceFailed)
	assert.Empty(t, f.gateway.PaidInvoices)
}

func TestListPaymentsPaginates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.seedUser(t, "cus_123", "active", nil)

	for i := 0; i < 3; i++ {
		at := baseTime.Add(time.Duration(i) * time.Minute)
		inserted, err := f.repo.InsertPayment(ctx, f.db, &paymentdomain.Payment{
			ID:          f.node.Generate(),
			UserID:      user.ID,
			EventID:     "evt_list_" + string(rune('a'+i)),
			EventType:   "invoice.payment_succeeded",
			CustomerID:  "cus_123",
			Amount:      int64(1000 * (i + 1)),
			Currency:    "usd",
			Status:      paymentdomain.StatusPaid,
			ProcessedAt: at,
			CreatedAt:   at,
		})
		require.NoError(t, err)
		require.True(t, inserted)
	}

	first, err := f.payments.ListPayments(ctx, user.ID, pagination.Pagination{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Payments, 2)
	assert.True(t, first.PageInfo.HasMore)
	assert.NotEmpty(t, first.PageInfo.NextPageToken)
	assert.Equal(t, int64(3000), first.Payments[0].Amount)

	second, err := f.payments.ListPayments(ctx, user.ID, pagination.Pagination{
		PageSize:  2,
		PageToken: first.PageInfo.NextPageToken,
	})
	require.NoError(t, err)
	require.Len(t, second.Payments, 1)
	assert.False(t, second.PageInfo.HasMore)
	assert.Equal(t, int64(1000), second.Payments[0].Amount)

	_, err = f.payments.ListPayments(ctx, f.node.Generate(), pagination.Pagination{})
	assert.ErrorIs(t, err, paymentdomain.ErrUserNotFound)
}
