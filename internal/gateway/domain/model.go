package domain

import "encoding/json"

const ProviderStripe = "stripe"

const (
	IntervalMonth = "month"
	IntervalYear  = "year"
)

const (
	CollectionSendInvoice         = "send_invoice"
	CollectionChargeAutomatically = "charge_automatically"

	PaymentBehaviorAllowIncomplete   = "allow_incomplete"
	PaymentBehaviorDefaultIncomplete = "default_incomplete"
)

type Customer struct {
	ID    string
	Email string
}

type Product struct {
	ID   string
	Name string
}

type Price struct {
	ID            string
	ProductID     string
	UnitAmount    int64
	Currency      string
	Interval      string
	IntervalCount int64
}

type ProductWithPrice struct {
	Product *Product
	Price   *Price
}

// ProductInput describes the catalog entry a product and recurring price are created for.
type ProductInput struct {
	PlanID      string
	Name        string
	Description string
	Slug        string
	Amount      float64
	Currency    string
	Interval    int
}

type SubscriptionInput struct {
	CustomerID   string
	PriceID      string
	TrialDays    int64
	IsManual     int
	DaysUntilDue int64
	Metadata     map[string]string
}

// Subscription is the gateway subscription flattened to the fields mirrored locally.
// Raw keeps the full gateway object.
type Subscription struct {
	ID                 string
	CustomerID         string
	Status             string
	CollectionMethod   string
	ProductID          string
	PriceID            string
	StartDate          int64
	CurrentPeriodStart int64
	CurrentPeriodEnd   int64
	TrialStart         int64
	TrialEnd           int64
	Amount             int64
	Currency           string
	Interval           string
	IntervalCount      int64
	LatestInvoiceID    string
	LatestInvoiceURL   string
	LatestInvoicePDF   string
	ClientSecret       string
	Livemode           bool
	Metadata           map[string]string
	Created            int64
	Raw                json.RawMessage
}

type CheckoutInput struct {
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type PaymentIntentInput struct {
	Amount     int64
	Currency   string
	CustomerID string
	InvoiceID  string
}

type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// PayInvoiceInput pays InvoiceID only when it was issued to CustomerID.
type PayInvoiceInput struct {
	InvoiceID       string
	CustomerID      string
	PaymentMethodID string
}

type Invoice struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	HostedInvoiceURL string `json:"hostedInvoiceUrl"`
	InvoicePDF       string `json:"invoicePdf"`
}

// Event is a verified webhook delivery. Object holds the raw data.object payload.
type Event struct {
	ID         string
	Type       string
	Created    int64
	APIVersion string
	Livemode   bool
	Object     json.RawMessage
}
