package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/inspectconnect/internal/config"
	"github.com/smallbiznis/inspectconnect/internal/gateway/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v78"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const subscriptionResponse = `{
	"id": "sub_123",
	"object": "subscription",
	"customer": "cus_123",
	"status": "trialing",
	"collection_method": "charge_automatically",
	"start_date": 1700000000,
	"current_period_start": 1700000000,
	"current_period_end": 1702592000,
	"trial_start": 1700000000,
	"trial_end": 1700604800,
	"livemode": false,
	"created": 1700000000,
	"metadata": {},
	"items": {
		"object": "list",
		"data": [{
			"id": "si_1",
			"object": "subscription_item",
			"price": {
				"id": "price_123",
				"object": "price",
				"product": "prod_123",
				"unit_amount": 4999,
				"currency": "usd",
				"recurring": {"interval": "month", "interval_count": 1}
			}
		}]
	},
	"latest_invoice": {
		"id": "in_123",
		"object": "invoice",
		"hosted_invoice_url": "https://invoice.example/in_123",
		"invoice_pdf": "https://invoice.example/in_123.pdf",
		"payment_intent": {"id": "pi_123", "object": "payment_intent", "client_secret": "pi_123_secret"}
	}
}`

type recordedRequest struct {
	Method         string
	Path           string
	Form           map[string]string
	IdempotencyKey string
}

type fakeStripe struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeStripe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	form := map[string]string{}
	if values, err := parseForm(string(body)); err == nil {
		form = values
	}
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method:         r.Method,
		Path:           r.URL.Path,
		Form:           form,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	f.handler(w, r)
}

func parseForm(body string) (map[string]string, error) {
	values, err := url.ParseQuery(body)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for key, items := range values {
		if len(items) > 0 {
			out[key] = items[0]
		}
	}
	return out, nil
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *fakeStripe) {
	t.Helper()
	fake := &fakeStripe{handler: handler}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	backend := stripego.GetBackendWithConfig(stripego.APIBackend, &stripego.BackendConfig{
		URL:               stripego.String(srv.URL),
		MaxNetworkRetries: stripego.Int64(0),
		LeveledLogger:     &stripego.LeveledLogger{Level: stripego.LevelNull},
	})

	cfg := config.Config{}
	cfg.Stripe.SecretKey = "sk_test_123"
	cfg.Stripe.WebhookSecret = "whsec_test"
	cfg.Stripe.APIVersion = config.DefaultStripeAPIVersion
	cfg.Stripe.BreakerMaxFailures = 2
	cfg.Stripe.BreakerTimeout = time.Minute

	client, err := NewWithBackends(Params{Cfg: cfg, Log: zap.NewNop()}, &stripego.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})
	require.NoError(t, err)
	return client, fake
}

func TestCreateCustomerReturnsExisting(t *testing.T) {
	client, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"object":"list","url":"/v1/customers","has_more":false,"data":[{"id":"cus_existing","object":"customer","email":"a@example.com"}]}`)
	})

	customer, err := client.CreateCustomer(context.Background(), "A@example.com")
	require.NoError(t, err)
	assert.Equal(t, "cus_existing", customer.ID)
	require.Len(t, fake.requests, 1)
	assert.Equal(t, http.MethodGet, fake.requests[0].Method)
}

func TestCreateCustomerCreatesWithIdempotencyKey(t *testing.T) {
	client, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, `{"object":"list","url":"/v1/customers","has_more":false,"data":[]}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"cus_new","object":"customer","email":"a@example.com"}`)
	})

	customer, err := client.CreateCustomer(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "cus_new", customer.ID)
	require.Len(t, fake.requests, 2)
	assert.Equal(t, customerIdempotencyKey("a@example.com"), fake.requests[1].IdempotencyKey)
	assert.Equal(t, "a@example.com", fake.requests[1].Form["email"])
}

func TestCreateSubscriptionMapsResponse(t *testing.T) {
	client, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, subscriptionResponse)
	})

	sub, err := client.CreateSubscription(context.Background(), domain.SubscriptionInput{
		CustomerID: "cus_123",
		PriceID:    "price_123",
		TrialDays:  7,
		IsManual:   1,
	})
	require.NoError(t, err)

	assert.Equal(t, "sub_123", sub.ID)
	assert.Equal(t, "cus_123", sub.CustomerID)
	assert.Equal(t, "prod_123", sub.ProductID)
	assert.Equal(t, "price_123", sub.PriceID)
	assert.Equal(t, int64(4999), sub.Amount)
	assert.Equal(t, "month", sub.Interval)
	assert.Equal(t, "in_123", sub.LatestInvoiceID)
	assert.Equal(t, "pi_123_secret", sub.ClientSecret)
	assert.NotEmpty(t, sub.Raw)

	require.Len(t, fake.requests, 1)
	form := fake.requests[0].Form
	assert.Equal(t, "/v1/subscriptions", fake.requests[0].Path)
	assert.Equal(t, "7", form["trial_period_days"])
	assert.Equal(t, "charge_automatically", form["collection_method"])
	assert.Equal(t, "default_incomplete", form["payment_behavior"])
	assert.Equal(t, "price_123", form["items[0][price]"])
	assert.Equal(t, "latest_invoice.payment_intent", form["expand[0]"])
}

func TestBreakerOpensOnProviderFailures(t *testing.T) {
	client, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"type":"api_error","message":"boom"}}`)
	})

	input := domain.SubscriptionInput{CustomerID: "cus_123", PriceID: "price_123", IsManual: 1}
	for i := 0; i < 2; i++ {
		_, err := client.CreateSubscription(context.Background(), input)
		var gwErr *domain.Error
		require.True(t, errors.As(err, &gwErr))
		assert.Equal(t, http.StatusInternalServerError, gwErr.Status)
	}

	_, err := client.CreateSubscription(context.Background(), input)
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	assert.Len(t, fake.requests, 2)
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	client, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such price"}}`)
	})

	input := domain.SubscriptionInput{CustomerID: "cus_123", PriceID: "price_missing", IsManual: 1}
	for i := 0; i < 3; i++ {
		_, err := client.CreateSubscription(context.Background(), input)
		var gwErr *domain.Error
		require.True(t, errors.As(err, &gwErr))
		assert.Equal(t, "resource_missing", gwErr.Code)
	}
	assert.Len(t, fake.requests, 3)
}

func buildStripeSignatureHeader(secret string, payload []byte, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyWebhookSignature(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	payload := []byte(`{"id":"evt_1","object":"event","type":"invoice.payment_succeeded","created":1700000000,"api_version":"2024-04-10","data":{"object":{"id":"in_1","object":"invoice","customer":"cus_123"}}}`)

	event, err := client.VerifyWebhookSignature(payload, buildStripeSignatureHeader("whsec_test", payload, time.Now().Unix()))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "invoice.payment_succeeded", event.Type)
	assert.JSONEq(t, `{"id":"in_1","object":"invoice","customer":"cus_123"}`, string(event.Object))

	_, err = client.VerifyWebhookSignature(payload, buildStripeSignatureHeader("whsec_other", payload, time.Now().Unix()))
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	_, err = client.VerifyWebhookSignature(payload, "")
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestVerifyWebhookSignatureRequiresSecret(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	client.webhookSecret = ""

	_, err := client.VerifyWebhookSignature([]byte(`{}`), "t=1,v1=abc")
	assert.ErrorIs(t, err, domain.ErrMissingWebhookSecret)
}

func invoiceHandler(customerID string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "open"
		if strings.HasSuffix(r.URL.Path, "/pay") {
			status = "paid"
		}
		_, _ = fmt.Fprintf(w, `{"id":"in_1","object":"invoice","customer":%q,"status":%q,"hosted_invoice_url":"https://invoice.example/in_1"}`, customerID, status)
	}
}

func TestPayInvoiceChecksOwnerBeforePaying(t *testing.T) {
	client, fake := newTestClient(t, invoiceHandler("cus_123"))

	invoice, err := client.PayInvoice(context.Background(), domain.PayInvoiceInput{
		InvoiceID:       "in_1",
		CustomerID:      "cus_123",
		PaymentMethodID: "pm_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "paid", invoice.Status)

	require.Len(t, fake.requests, 3)
	assert.Equal(t, http.MethodGet, fake.requests[0].Method)
	assert.Equal(t, "/v1/invoices/in_1", fake.requests[0].Path)
	assert.Equal(t, "pm_1", fake.requests[1].Form["default_payment_method"])
	assert.Equal(t, "/v1/invoices/in_1/pay", fake.requests[2].Path)
}

func TestPayInvoiceRefusesForeignInvoice(t *testing.T) {
	client, fake := newTestClient(t, invoiceHandler("cus_999"))

	for i := 0; i < 3; i++ {
		_, err := client.PayInvoice(context.Background(), domain.PayInvoiceInput{
			InvoiceID:       "in_1",
			CustomerID:      "cus_123",
			PaymentMethodID: "pm_1",
		})
		assert.ErrorIs(t, err, domain.ErrInvoiceNotOwned)
	}
	// Only lookups went out, and refusals never count against the breaker.
	require.Len(t, fake.requests, 3)
	for _, req := range fake.requests {
		assert.Equal(t, http.MethodGet, req.Method)
	}

	_, err := client.PayInvoice(context.Background(), domain.PayInvoiceInput{InvoiceID: "in_1", PaymentMethodID: "pm_1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNewWarnsWhenWebhookVersionDiffersFromSDK(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	cfg := config.Config{}
	cfg.Stripe.SecretKey = "sk_test_123"
	cfg.Stripe.APIVersion = "2025-07-30.basil"
	_, err := NewWithBackends(Params{Cfg: cfg, Log: zap.New(core)}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, logs.FilterMessage("webhook endpoint api version differs from the sdk version").Len())

	cfg.Stripe.APIVersion = config.DefaultStripeAPIVersion
	_, err = NewWithBackends(Params{Cfg: cfg, Log: zap.New(core)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, logs.Len())
}
