package stripe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/smallbiznis/inspectconnect/internal/gateway/domain"
	stripego "github.com/stripe/stripe-go/v78"
)

const defaultDaysUntilDue int64 = 7

func customerIdempotencyKey(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "customer-" + hex.EncodeToString(sum[:16])
}

func buildProductParams(ctx context.Context, input domain.ProductInput) *stripego.ProductParams {
	params := &stripego.ProductParams{
		Name: stripego.String(strings.TrimSpace(input.Name)),
	}
	if description := strings.TrimSpace(input.Description); description != "" {
		params.Description = stripego.String(description)
	}
	if input.PlanID != "" {
		params.AddMetadata("planId", input.PlanID)
	}
	if input.Slug != "" {
		params.AddMetadata("slug", input.Slug)
	}
	params.Context = ctx
	return params
}

func buildPriceParams(ctx context.Context, productID string, input domain.ProductInput) *stripego.PriceParams {
	params := &stripego.PriceParams{
		Product:    stripego.String(productID),
		UnitAmount: stripego.Int64(domain.MinorUnits(input.Amount)),
		Currency:   stripego.String(domain.NormalizeCurrency(input.Currency, "")),
		Recurring: &stripego.PriceRecurringParams{
			Interval:      stripego.String(domain.IntervalFromPlan(input.Interval)),
			IntervalCount: stripego.Int64(1),
		},
	}
	if input.PlanID != "" {
		params.AddMetadata("planId", input.PlanID)
	}
	params.Context = ctx
	return params
}

// buildSubscriptionParams applies the trial and collection rules of a new subscription.
func buildSubscriptionParams(ctx context.Context, input domain.SubscriptionInput) *stripego.SubscriptionParams {
	params := &stripego.SubscriptionParams{
		Customer: stripego.String(input.CustomerID),
		Items: []*stripego.SubscriptionItemsParams{
			{Price: stripego.String(input.PriceID)},
		},
	}
	if input.TrialDays > 0 {
		params.TrialPeriodDays = stripego.Int64(input.TrialDays)
	}

	if input.IsManual == 0 {
		days := input.DaysUntilDue
		if days <= 0 {
			days = defaultDaysUntilDue
		}
		params.PaymentBehavior = stripego.String(domain.PaymentBehaviorAllowIncomplete)
		params.CollectionMethod = stripego.String(domain.CollectionSendInvoice)
		params.DaysUntilDue = stripego.Int64(days)
	} else {
		params.PaymentBehavior = stripego.String(domain.PaymentBehaviorDefaultIncomplete)
		params.CollectionMethod = stripego.String(domain.CollectionChargeAutomatically)
	}

	for key, value := range input.Metadata {
		params.AddMetadata(key, value)
	}
	params.AddExpand("latest_invoice.payment_intent")
	params.Context = ctx
	return params
}

func buildCheckoutSessionParams(ctx context.Context, input domain.CheckoutInput) *stripego.CheckoutSessionParams {
	params := &stripego.CheckoutSessionParams{
		Mode:               stripego.String(string(stripego.CheckoutSessionModeSubscription)),
		Customer:           stripego.String(input.CustomerID),
		PaymentMethodTypes: stripego.StringSlice([]string{"card"}),
		LineItems: []*stripego.CheckoutSessionLineItemParams{
			{
				Price:    stripego.String(input.PriceID),
				Quantity: stripego.Int64(1),
			},
		},
		SuccessURL: stripego.String(input.SuccessURL),
		CancelURL:  stripego.String(input.CancelURL),
	}
	params.Context = ctx
	return params
}

func buildPaymentIntentParams(ctx context.Context, input domain.PaymentIntentInput) *stripego.PaymentIntentParams {
	params := &stripego.PaymentIntentParams{
		Amount:   stripego.Int64(input.Amount),
		Currency: stripego.String(domain.NormalizeCurrency(input.Currency, "")),
		Customer: stripego.String(input.CustomerID),
		AutomaticPaymentMethods: &stripego.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripego.Bool(true),
		},
	}
	if input.InvoiceID != "" {
		params.AddMetadata("invoice_id", input.InvoiceID)
	}
	params.Context = ctx
	return params
}
