package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	StatusPaid           = "paid"
	StatusFailed         = "failed"
	StatusActionRequired = "action_required"
)

// Payment is an append-only record of one invoice or checkout lifecycle
// event. EventID is the idempotency key.
type Payment struct {
	ID                   snowflake.ID   `json:"id" gorm:"primaryKey"`
	UserID               snowflake.ID   `json:"userId" gorm:"not null;index"`
	EventID              string         `json:"eventId" gorm:"size:255;not null;uniqueIndex"`
	EventType            string         `json:"eventType" gorm:"type:text;not null"`
	InvoiceID            string         `json:"invoiceId" gorm:"size:255;index"`
	CheckoutSessionID    string         `json:"checkoutSessionId" gorm:"type:text"`
	PaymentIntentID      string         `json:"paymentIntentId" gorm:"type:text"`
	StripeSubscriptionID string         `json:"stripeSubscriptionId" gorm:"size:255;index"`
	CustomerID           string         `json:"customerId" gorm:"type:text;not null"`
	Amount               int64          `json:"amount" gorm:"not null"`
	Currency             string         `json:"currency" gorm:"type:text;not null"`
	Status               string         `json:"status" gorm:"type:text;not null"`
	PaymentStatus        string         `json:"paymentStatus" gorm:"type:text"`
	BillingReason        string         `json:"billingReason" gorm:"type:text"`
	InvoiceNumber        string         `json:"invoiceNumber" gorm:"type:text"`
	InvoicePDF           string         `json:"invoicePdf" gorm:"type:text"`
	HostedInvoiceURL     string         `json:"hostedInvoiceUrl" gorm:"type:text"`
	PeriodStart          int64          `json:"periodStart"`
	PeriodEnd            int64          `json:"periodEnd"`
	AttemptCount         int64          `json:"attemptCount"`
	FailureCode          string         `json:"failureCode" gorm:"type:text"`
	FailureMessage       string         `json:"failureMessage" gorm:"type:text"`
	ProcessedAt          time.Time      `json:"processedAt" gorm:"not null"`
	PaymentJSON          datatypes.JSON `json:"-"`
	CreatedAt            time.Time      `json:"createdAt" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

// EventRecord is the webhook delivery ledger, one row per provider event.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"size:255;not null;uniqueIndex:ux_webhook_events_provider_event"`
	ProviderEventID string         `json:"providerEventId" gorm:"size:255;not null;uniqueIndex:ux_webhook_events_provider_event"`
	EventType       string         `json:"eventType" gorm:"type:text;not null"`
	CustomerID      string         `json:"customerId" gorm:"type:text"`
	Payload         datatypes.JSON `json:"payload" gorm:"not null"`
	Outcome         string         `json:"outcome" gorm:"type:text"`
	ReceivedAt      time.Time      `json:"receivedAt" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processedAt"`
}

func (EventRecord) TableName() string { return "webhook_events" }

const (
	OutcomeApplied = "applied"
	OutcomeIgnored = "ignored"
	OutcomeSkipped = "skipped"
)

// WebhookResult is returned to the gateway once a delivery is accepted.
type WebhookResult struct {
	Received  bool   `json:"received"`
	EventType string `json:"eventType"`
	Duplicate bool   `json:"duplicate,omitempty"`
	// Deferred marks a recorded delivery that could not be applied now; the
	// replay job retries it from the ledger.
	Deferred  bool   `json:"deferred,omitempty"`
}

type CheckoutRequest struct {
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

type PayInvoiceRequest struct {
	UserID          snowflake.ID
	InvoiceID       string
	PaymentMethodID string
}
