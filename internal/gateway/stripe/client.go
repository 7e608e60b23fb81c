package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/inspectconnect/internal/config"
	"github.com/smallbiznis/inspectconnect/internal/gateway/domain"
	obsmetrics "github.com/smallbiznis/inspectconnect/internal/observability/metrics"
	"github.com/sony/gobreaker/v2"
	stripego "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Metrics *obsmetrics.Metrics `optional:"true"`
}

// Client implements domain.Gateway on top of stripe-go. Every outbound call
// goes through one circuit breaker so a provider outage fails fast.
type Client struct {
	api           *client.API
	webhookSecret string
	apiVersion    string
	breaker       *gobreaker.CircuitBreaker[any]
	log           *zap.Logger
	metrics       *obsmetrics.Metrics
}

func New(p Params) (domain.Gateway, error) {
	return NewWithBackends(p, nil)
}

// NewWithBackends lets callers point the client at a different API host.
func NewWithBackends(p Params, backends *stripego.Backends) (*Client, error) {
	key := strings.TrimSpace(p.Cfg.Stripe.SecretKey)
	if key == "" {
		return nil, domain.ErrMissingSecretKey
	}

	log := p.Log.Named("gateway.stripe")
	api := &client.API{}
	api.Init(key, backends)

	maxFailures := p.Cfg.Stripe.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	timeout := p.Cfg.Stripe.BreakerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isProviderFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("gateway circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	apiVersion := strings.TrimSpace(p.Cfg.Stripe.APIVersion)
	if apiVersion != "" && apiVersion != stripego.APIVersion {
		log.Warn("webhook endpoint api version differs from the sdk version",
			zap.String("configured_api_version", apiVersion),
			zap.String("sdk_api_version", stripego.APIVersion),
		)
	}

	return &Client{
		api:           api,
		webhookSecret: strings.TrimSpace(p.Cfg.Stripe.WebhookSecret),
		apiVersion:    apiVersion,
		breaker:       breaker,
		log:           log,
		metrics:       p.Metrics,
	}, nil
}

// execute runs fn behind the breaker and normalizes its error.
func execute[T any](ctx context.Context, c *Client, op string, fn func() (T, error)) (T, error) {
	var zero T
	result, err := c.breaker.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.RecordGatewayCall(ctx, op, "unavailable")
			return zero, fmt.Errorf("gateway %s: %w", op, domain.ErrGatewayUnavailable)
		}
		c.metrics.RecordGatewayCall(ctx, op, "failure")
		c.log.Error("gateway call failed", zap.String("operation", op), zap.Error(err))
		return zero, wrapError(op, err)
	}

	c.metrics.RecordGatewayCall(ctx, op, "success")
	typed, ok := result.(T)
	if !ok {
		return zero, &domain.Error{Op: op, Err: errors.New("unexpected gateway response")}
	}
	return typed, nil
}

func wrapError(op string, err error) error {
	var stripeErr *stripego.Error
	if errors.As(err, &stripeErr) {
		return &domain.Error{
			Op:     op,
			Status: stripeErr.HTTPStatusCode,
			Code:   string(stripeErr.Code),
			Err:    err,
		}
	}
	return &domain.Error{Op: op, Err: err}
}

// isProviderFailure reports errors that indicate the provider itself is unhealthy.
func isProviderFailure(err error) bool {
	var stripeErr *stripego.Error
	if !errors.As(err, &stripeErr) {
		return true
	}
	return stripeErr.HTTPStatusCode >= http.StatusInternalServerError ||
		stripeErr.HTTPStatusCode == http.StatusTooManyRequests
}

func (c *Client) CreateCustomer(ctx context.Context, email string) (*domain.Customer, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, domain.ErrInvalidEmail
	}

	return execute(ctx, c, "create_customer", func() (*domain.Customer, error) {
		list := &stripego.CustomerListParams{Email: stripego.String(email)}
		list.Limit = stripego.Int64(1)
		list.Context = ctx

		iter := c.api.Customers.List(list)
		if iter.Next() {
			existing := iter.Customer()
			return &domain.Customer{ID: existing.ID, Email: existing.Email}, nil
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}

		params := &stripego.CustomerParams{Email: stripego.String(email)}
		params.SetIdempotencyKey(customerIdempotencyKey(email))
		params.Context = ctx

		created, err := c.api.Customers.New(params)
		if err != nil {
			return nil, err
		}
		return &domain.Customer{ID: created.ID, Email: created.Email}, nil
	})
}

func (c *Client) FindExistingProduct(ctx context.Context, name string) (*domain.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrInvalidInput
	}

	return execute(ctx, c, "find_product", func() (*domain.Product, error) {
		params := &stripego.ProductListParams{Active: stripego.Bool(true)}
		params.Context = ctx

		iter := c.api.Products.List(params)
		for iter.Next() {
			product := iter.Product()
			if product.Name == name {
				return &domain.Product{ID: product.ID, Name: product.Name}, nil
			}
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

func (c *Client) CreateProduct(ctx context.Context, input domain.ProductInput) (*domain.ProductWithPrice, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, domain.ErrInvalidInput
	}
	if input.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	return execute(ctx, c, "create_product", func() (*domain.ProductWithPrice, error) {
		product, err := c.api.Products.New(buildProductParams(ctx, input))
		if err != nil {
			return nil, err
		}

		price, err := c.api.Prices.New(buildPriceParams(ctx, product.ID, input))
		if err != nil {
			return nil, err
		}

		out := &domain.ProductWithPrice{
			Product: &domain.Product{ID: product.ID, Name: product.Name},
			Price: &domain.Price{
				ID:         price.ID,
				ProductID:  product.ID,
				UnitAmount: price.UnitAmount,
				Currency:   string(price.Currency),
			},
		}
		if price.Recurring != nil {
			out.Price.Interval = string(price.Recurring.Interval)
			out.Price.IntervalCount = price.Recurring.IntervalCount
		}
		return out, nil
	})
}

func (c *Client) CreateSubscription(ctx context.Context, input domain.SubscriptionInput) (*domain.Subscription, error) {
	if strings.TrimSpace(input.CustomerID) == "" || strings.TrimSpace(input.PriceID) == "" {
		return nil, domain.ErrInvalidInput
	}

	return execute(ctx, c, "create_subscription", func() (*domain.Subscription, error) {
		sub, err := c.api.Subscriptions.New(buildSubscriptionParams(ctx, input))
		if err != nil {
			return nil, err
		}
		return toSubscription(sub)
	})
}

func (c *Client) CreateCheckoutSession(ctx context.Context, input domain.CheckoutInput) (*domain.CheckoutSession, error) {
	if strings.TrimSpace(input.CustomerID) == "" || strings.TrimSpace(input.PriceID) == "" {
		return nil, domain.ErrInvalidInput
	}

	return execute(ctx, c, "create_checkout_session", func() (*domain.CheckoutSession, error) {
		session, err := c.api.CheckoutSessions.New(buildCheckoutSessionParams(ctx, input))
		if err != nil {
			return nil, err
		}
		return &domain.CheckoutSession{ID: session.ID, URL: session.URL}, nil
	})
}

func (c *Client) CreatePaymentIntent(ctx context.Context, input domain.PaymentIntentInput) (*domain.PaymentIntent, error) {
	if input.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if strings.TrimSpace(input.CustomerID) == "" {
		return nil, domain.ErrInvalidInput
	}

	return execute(ctx, c, "create_payment_intent", func() (*domain.PaymentIntent, error) {
		intent, err := c.api.PaymentIntents.New(buildPaymentIntentParams(ctx, input))
		if err != nil {
			return nil, err
		}
		return &domain.PaymentIntent{
			ID:           intent.ID,
			ClientSecret: intent.ClientSecret,
			Status:       string(intent.Status),
			Amount:       intent.Amount,
			Currency:     string(intent.Currency),
		}, nil
	})
}

func (c *Client) PayInvoice(ctx context.Context, input domain.PayInvoiceInput) (*domain.Invoice, error) {
	if strings.TrimSpace(input.InvoiceID) == "" || strings.TrimSpace(input.PaymentMethodID) == "" ||
		strings.TrimSpace(input.CustomerID) == "" {
		return nil, domain.ErrInvalidInput
	}

	owner, err := execute(ctx, c, "get_invoice", func() (string, error) {
		params := &stripego.InvoiceParams{}
		params.Context = ctx
		invoice, err := c.api.Invoices.Get(input.InvoiceID, params)
		if err != nil {
			return "", err
		}
		if invoice.Customer == nil {
			return "", nil
		}
		return invoice.Customer.ID, nil
	})
	if err != nil {
		return nil, err
	}
	if owner != input.CustomerID {
		return nil, domain.ErrInvoiceNotOwned
	}

	return execute(ctx, c, "pay_invoice", func() (*domain.Invoice, error) {
		update := &stripego.InvoiceParams{DefaultPaymentMethod: stripego.String(input.PaymentMethodID)}
		update.Context = ctx
		if _, err := c.api.Invoices.Update(input.InvoiceID, update); err != nil {
			return nil, err
		}

		pay := &stripego.InvoicePayParams{PaymentMethod: stripego.String(input.PaymentMethodID)}
		pay.Context = ctx
		paid, err := c.api.Invoices.Pay(input.InvoiceID, pay)
		if err != nil {
			return nil, err
		}
		return &domain.Invoice{
			ID:               paid.ID,
			Status:           string(paid.Status),
			HostedInvoiceURL: paid.HostedInvoiceURL,
			InvoicePDF:       paid.InvoicePDF,
		}, nil
	})
}

// VerifyWebhookSignature checks the Stripe-Signature header against the raw body.
// It never calls the provider and so bypasses the breaker.
func (c *Client) VerifyWebhookSignature(payload []byte, signature string) (*domain.Event, error) {
	if c.webhookSecret == "" {
		return nil, domain.ErrMissingWebhookSecret
	}
	if strings.TrimSpace(signature) == "" {
		return nil, domain.ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	if c.apiVersion != "" && event.APIVersion != "" && event.APIVersion != c.apiVersion {
		c.log.Warn("webhook api version differs from configured version",
			zap.String("event_id", event.ID),
			zap.String("event_api_version", event.APIVersion),
			zap.String("configured_api_version", c.apiVersion),
		)
	}

	out := &domain.Event{
		ID:         event.ID,
		Type:       string(event.Type),
		Created:    event.Created,
		APIVersion: event.APIVersion,
		Livemode:   event.Livemode,
	}
	if event.Data != nil {
		out.Object = event.Data.Raw
	}
	return out, nil
}

var _ domain.Gateway = (*Client)(nil)
