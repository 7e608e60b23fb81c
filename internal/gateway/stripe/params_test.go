package stripe

import (
	"context"
	"testing"

	"github.com/smallbiznis/inspectconnect/internal/gateway/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSubscriptionParamsTrialDays(t *testing.T) {
	ctx := context.Background()

	params := buildSubscriptionParams(ctx, domain.SubscriptionInput{CustomerID: "cus_1", PriceID: "price_1", TrialDays: 0, IsManual: 1})
	assert.Nil(t, params.TrialPeriodDays)

	params = buildSubscriptionParams(ctx, domain.SubscriptionInput{CustomerID: "cus_1", PriceID: "price_1", TrialDays: 14, IsManual: 1})
	require.NotNil(t, params.TrialPeriodDays)
	assert.Equal(t, int64(14), *params.TrialPeriodDays)
}

func TestBuildSubscriptionParamsManualCollection(t *testing.T) {
	params := buildSubscriptionParams(context.Background(), domain.SubscriptionInput{CustomerID: "cus_1", PriceID: "price_1", IsManual: 0})

	assert.Equal(t, domain.CollectionSendInvoice, *params.CollectionMethod)
	assert.Equal(t, domain.PaymentBehaviorAllowIncomplete, *params.PaymentBehavior)
	require.NotNil(t, params.DaysUntilDue)
	assert.Equal(t, int64(7), *params.DaysUntilDue)

	params = buildSubscriptionParams(context.Background(), domain.SubscriptionInput{CustomerID: "cus_1", PriceID: "price_1", IsManual: 0, DaysUntilDue: 30})
	assert.Equal(t, int64(30), *params.DaysUntilDue)
}

func TestBuildSubscriptionParamsAutomaticCollection(t *testing.T) {
	for _, isManual := range []int{1, 2, -1} {
		params := buildSubscriptionParams(context.Background(), domain.SubscriptionInput{CustomerID: "cus_1", PriceID: "price_1", IsManual: isManual})

		assert.Equal(t, domain.CollectionChargeAutomatically, *params.CollectionMethod)
		assert.Equal(t, domain.PaymentBehaviorDefaultIncomplete, *params.PaymentBehavior)
		assert.Nil(t, params.DaysUntilDue)
	}
}

func TestBuildSubscriptionParamsExpandsPaymentIntent(t *testing.T) {
	params := buildSubscriptionParams(context.Background(), domain.SubscriptionInput{CustomerID: "cus_1", PriceID: "price_1", IsManual: 1})

	require.Len(t, params.Expand, 1)
	assert.Equal(t, "latest_invoice.payment_intent", *params.Expand[0])
	require.Len(t, params.Items, 1)
	assert.Equal(t, "price_1", *params.Items[0].Price)
	assert.Equal(t, "cus_1", *params.Customer)
}

func TestBuildPriceParams(t *testing.T) {
	params := buildPriceParams(context.Background(), "prod_1", domain.ProductInput{Name: "Pro", Amount: 49.99, Currency: "USD", Interval: 1, PlanID: "42"})

	assert.Equal(t, "prod_1", *params.Product)
	assert.Equal(t, int64(4999), *params.UnitAmount)
	assert.Equal(t, "usd", *params.Currency)
	assert.Equal(t, domain.IntervalYear, *params.Recurring.Interval)
	assert.Equal(t, int64(1), *params.Recurring.IntervalCount)
	assert.Equal(t, "42", params.Metadata["planId"])
}

func TestBuildProductParamsSkipsEmptyDescription(t *testing.T) {
	params := buildProductParams(context.Background(), domain.ProductInput{Name: " Pro ", Slug: "pro"})

	assert.Equal(t, "Pro", *params.Name)
	assert.Nil(t, params.Description)
	assert.Equal(t, "pro", params.Metadata["slug"])
}

func TestBuildCheckoutSessionParams(t *testing.T) {
	params := buildCheckoutSessionParams(context.Background(), domain.CheckoutInput{
		CustomerID: "cus_1",
		PriceID:    "price_1",
		SuccessURL: "https://app/success",
		CancelURL:  "https://app/cancel",
	})

	assert.Equal(t, "subscription", *params.Mode)
	require.Len(t, params.PaymentMethodTypes, 1)
	assert.Equal(t, "card", *params.PaymentMethodTypes[0])
	require.Len(t, params.LineItems, 1)
	assert.Equal(t, int64(1), *params.LineItems[0].Quantity)
	assert.Equal(t, "https://app/cancel", *params.CancelURL)
}

func TestBuildPaymentIntentParams(t *testing.T) {
	params := buildPaymentIntentParams(context.Background(), domain.PaymentIntentInput{Amount: 4999, Currency: "USD", CustomerID: "cus_1", InvoiceID: "in_1"})

	assert.Equal(t, int64(4999), *params.Amount)
	assert.True(t, *params.AutomaticPaymentMethods.Enabled)
	assert.Equal(t, "in_1", params.Metadata["invoice_id"])
}

func TestCustomerIdempotencyKeyIsStable(t *testing.T) {
	assert.Equal(t, customerIdempotencyKey("A@Example.com "), customerIdempotencyKey("a@example.com"))
	assert.NotEqual(t, customerIdempotencyKey("a@example.com"), customerIdempotencyKey("b@example.com"))
}
