package domain

import "context"

// Gateway isolates every call made to the billing provider.
type Gateway interface {
	CreateCustomer(ctx context.Context, email string) (*Customer, error)
	FindExistingProduct(ctx context.Context, name string) (*Product, error)
	CreateProduct(ctx context.Context, input ProductInput) (*ProductWithPrice, error)
	CreateSubscription(ctx context.Context, input SubscriptionInput) (*Subscription, error)
	CreateCheckoutSession(ctx context.Context, input CheckoutInput) (*CheckoutSession, error)
	CreatePaymentIntent(ctx context.Context, input PaymentIntentInput) (*PaymentIntent, error)
	PayInvoice(ctx context.Context, input PayInvoiceInput) (*Invoice, error)
	VerifyWebhookSignature(payload []byte, signature string) (*Event, error)
}
