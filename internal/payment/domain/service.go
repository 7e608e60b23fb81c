package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	gatewaydomain "github.com/smallbiznis/inspectconnect/internal/gateway/domain"
	"github.com/smallbiznis/inspectconnect/pkg/db/pagination"
)

// Reconciler applies verified gateway webhook deliveries to local records.
type Reconciler interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error)
	// ReplayPending re-applies recorded deliveries that never finished and
	// reports how many were applied.
	ReplayPending(ctx context.Context, receivedBefore time.Time, limit int) (int, error)
}

type ListPaymentsResponse struct {
	Payments []*Payment          `json:"payments"`
	PageInfo pagination.PageInfo `json:"pageInfo"`
}

type Service interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*gatewaydomain.CheckoutSession, error)
	CreatePaymentIntent(ctx context.Context, userID snowflake.ID) (*gatewaydomain.PaymentIntent, error)
	PayInvoice(ctx context.Context, req PayInvoiceRequest) (*gatewaydomain.Invoice, error)
	ListPayments(ctx context.Context, userID snowflake.ID, page pagination.Pagination) (*ListPaymentsResponse, error)
}
