// Package gatewaytest provides an in-memory Gateway for service tests.
package gatewaytest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/smallbiznis/inspectconnect/internal/gateway/domain"
)

// Fake records every call and returns canned responses. Set the *Err fields to
// force failures.
type Fake struct {
	mu sync.Mutex

	Customers        map[string]string
	ExistingProducts map[string]string
	InvoiceOwners    map[string]string
	Subscription     *domain.Subscription
	WebhookSecret    string

	CreateCustomerErr     error
	FindProductErr        error
	CreateProductErr      error
	CreateSubscriptionErr error
	CheckoutErr           error
	PaymentIntentErr      error
	PayInvoiceErr         error

	ProductInputs      []domain.ProductInput
	SubscriptionInputs []domain.SubscriptionInput
	CheckoutInputs     []domain.CheckoutInput
	PaymentIntents     []domain.PaymentIntentInput
	PaidInvoices       []domain.PayInvoiceInput

	seq int
}

func New() *Fake {
	return &Fake{
		Customers:        map[string]string{},
		ExistingProducts: map[string]string{},
		InvoiceOwners:    map[string]string{},
		WebhookSecret:    "whsec_test",
	}
}

func (f *Fake) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s_%d", prefix, f.seq)
}

func (f *Fake) CreateCustomer(ctx context.Context, email string) (*domain.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateCustomerErr != nil {
		return nil, f.CreateCustomerErr
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if id, ok := f.Customers[email]; ok {
		return &domain.Customer{ID: id, Email: email}, nil
	}
	id := f.nextID("cus")
	f.Customers[email] = id
	return &domain.Customer{ID: id, Email: email}, nil
}

func (f *Fake) FindExistingProduct(ctx context.Context, name string) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FindProductErr != nil {
		return nil, f.FindProductErr
	}
	if id, ok := f.ExistingProducts[name]; ok {
		return &domain.Product{ID: id, Name: name}, nil
	}
	return nil, nil
}

func (f *Fake) CreateProduct(ctx context.Context, input domain.ProductInput) (*domain.ProductWithPrice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ProductInputs = append(f.ProductInputs, input)
	if f.CreateProductErr != nil {
		return nil, f.CreateProductErr
	}
	productID := f.nextID("prod")
	return &domain.ProductWithPrice{
		Product: &domain.Product{ID: productID, Name: input.Name},
		Price: &domain.Price{
			ID:            f.nextID("price"),
			ProductID:     productID,
			UnitAmount:    domain.MinorUnits(input.Amount),
			Currency:      domain.NormalizeCurrency(input.Currency, ""),
			Interval:      domain.IntervalFromPlan(input.Interval),
			IntervalCount: 1,
		},
	}, nil
}

func (f *Fake) CreateSubscription(ctx context.Context, input domain.SubscriptionInput) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SubscriptionInputs = append(f.SubscriptionInputs, input)
	if f.CreateSubscriptionErr != nil {
		return nil, f.CreateSubscriptionErr
	}
	if f.Subscription != nil {
		copied := *f.Subscription
		return &copied, nil
	}

	status := "active"
	if input.TrialDays > 0 {
		status = "trialing"
	}
	collection := domain.CollectionChargeAutomatically
	if input.IsManual == 0 {
		collection = domain.CollectionSendInvoice
	}
	sub := &domain.Subscription{
		ID:                 f.nextID("sub"),
		CustomerID:         input.CustomerID,
		Status:             status,
		CollectionMethod:   collection,
		PriceID:            input.PriceID,
		ProductID:          "prod_for_" + input.PriceID,
		StartDate:          1700000000,
		CurrentPeriodStart: 1700000000,
		CurrentPeriodEnd:   1702592000,
		Amount:             4999,
		Currency:           "usd",
		Interval:           domain.IntervalMonth,
		IntervalCount:      1,
		LatestInvoiceID:    f.nextID("in"),
		Created:            1700000000,
	}
	if input.TrialDays > 0 {
		sub.TrialStart = 1700000000
		sub.TrialEnd = 1700000000 + input.TrialDays*86400
	}
	raw, _ := json.Marshal(map[string]any{"id": sub.ID, "object": "subscription", "status": sub.Status})
	sub.Raw = raw
	return sub, nil
}

func (f *Fake) CreateCheckoutSession(ctx context.Context, input domain.CheckoutInput) (*domain.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CheckoutInputs = append(f.CheckoutInputs, input)
	if f.CheckoutErr != nil {
		return nil, f.CheckoutErr
	}
	id := f.nextID("cs")
	return &domain.CheckoutSession{ID: id, URL: "https://checkout.example/" + id}, nil
}

func (f *Fake) CreatePaymentIntent(ctx context.Context, input domain.PaymentIntentInput) (*domain.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PaymentIntents = append(f.PaymentIntents, input)
	if f.PaymentIntentErr != nil {
		return nil, f.PaymentIntentErr
	}
	id := f.nextID("pi")
	return &domain.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       "requires_payment_method",
		Amount:       input.Amount,
		Currency:     input.Currency,
	}, nil
}

func (f *Fake) PayInvoice(ctx context.Context, input domain.PayInvoiceInput) (*domain.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PayInvoiceErr != nil {
		return nil, f.PayInvoiceErr
	}
	// Invoices not registered in InvoiceOwners belong to whoever pays them.
	if owner, ok := f.InvoiceOwners[input.InvoiceID]; ok && owner != input.CustomerID {
		return nil, domain.ErrInvoiceNotOwned
	}
	f.PaidInvoices = append(f.PaidInvoices, input)
	return &domain.Invoice{ID: input.InvoiceID, Status: "paid"}, nil
}

// VerifyWebhookSignature accepts the configured secret as the signature and
// decodes the payload as a Stripe event envelope.
func (f *Fake) VerifyWebhookSignature(payload []byte, signature string) (*domain.Event, error) {
	if f.WebhookSecret == "" {
		return nil, domain.ErrMissingWebhookSecret
	}
	if signature != f.WebhookSecret {
		return nil, domain.ErrInvalidSignature
	}

	var envelope struct {
		ID         string `json:"id"`
		Type       string `json:"type"`
		Created    int64  `json:"created"`
		APIVersion string `json:"api_version"`
		Livemode   bool   `json:"livemode"`
		Data       struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, domain.ErrInvalidSignature
	}
	return &domain.Event{
		ID:         envelope.ID,
		Type:       envelope.Type,
		Created:    envelope.Created,
		APIVersion: envelope.APIVersion,
		Livemode:   envelope.Livemode,
		Object:     envelope.Data.Object,
	}, nil
}

var _ domain.Gateway = (*Fake)(nil)
