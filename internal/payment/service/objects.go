package service

import (
	"bytes"
	"encoding/json"
	"strings"

	gatewaydomain "github.com/smallbiznis/inspectconnect/internal/gateway/domain"
	paymentdomain "github.com/smallbiznis/inspectconnect/internal/payment/domain"
)

// stripeRef is an expandable reference: the API sends either the bare id or
// the expanded object.
type stripeRef string

func (r *stripeRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = stripeRef(strings.TrimSpace(id))
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*r = stripeRef(strings.TrimSpace(obj.ID))
	return nil
}

func (r stripeRef) String() string { return string(r) }

// stripeInvoiceRef keeps the hosted URL when the invoice arrives expanded.
type stripeInvoiceRef struct {
	ID               string
	HostedInvoiceURL string
}

func (r *stripeInvoiceRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = stripeInvoiceRef{}
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = stripeInvoiceRef{ID: strings.TrimSpace(id)}
		return nil
	}
	var obj struct {
		ID               string `json:"id"`
		HostedInvoiceURL string `json:"hosted_invoice_url"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*r = stripeInvoiceRef{ID: strings.TrimSpace(obj.ID), HostedInvoiceURL: obj.HostedInvoiceURL}
	return nil
}

type stripeCustomerOwned struct {
	Customer stripeRef `json:"customer"`
}

type stripePeriod struct {
	CurrentPeriodStart int64 `json:"current_period_start"`
	CurrentPeriodEnd   int64 `json:"current_period_end"`
}

type stripeCheckoutSession struct {
	ID                  string           `json:"id"`
	Customer            stripeRef        `json:"customer"`
	Subscription        stripeRef        `json:"subscription"`
	PaymentIntent       stripeRef        `json:"payment_intent"`
	Invoice             stripeInvoiceRef `json:"invoice"`
	AmountTotal         int64            `json:"amount_total"`
	Currency            string           `json:"currency"`
	PaymentStatus       string           `json:"payment_status"`
	SubscriptionDetails *stripePeriod    `json:"subscription_details"`
}

type stripeFinalizationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type stripeInvoice struct {
	ID                    string                   `json:"id"`
	Customer              stripeRef                `json:"customer"`
	Subscription          stripeRef                `json:"subscription"`
	PaymentIntent         stripeRef                `json:"payment_intent"`
	AmountPaid            int64                    `json:"amount_paid"`
	AmountDue             int64                    `json:"amount_due"`
	Currency              string                   `json:"currency"`
	BillingReason         string                   `json:"billing_reason"`
	Number                string                   `json:"number"`
	InvoicePDF            string                   `json:"invoice_pdf"`
	HostedInvoiceURL      string                   `json:"hosted_invoice_url"`
	PeriodStart           int64                    `json:"period_start"`
	PeriodEnd             int64                    `json:"period_end"`
	AttemptCount          int64                    `json:"attempt_count"`
	LastFinalizationError *stripeFinalizationError `json:"last_finalization_error"`
	Parent                *struct {
		SubscriptionDetails *struct {
			Subscription stripeRef `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// subscriptionID reads the pre-basil top-level field first, then the
// parent.subscription_details location newer API versions use.
func (i stripeInvoice) subscriptionID() string {
	if id := i.Subscription.String(); id != "" {
		return id
	}
	if i.Parent != nil && i.Parent.SubscriptionDetails != nil {
		return i.Parent.SubscriptionDetails.Subscription.String()
	}
	return ""
}

type stripeSubscription struct {
	ID                 string    `json:"id"`
	Customer           stripeRef `json:"customer"`
	Status             string    `json:"status"`
	CurrentPeriodStart int64     `json:"current_period_start"`
	CurrentPeriodEnd   int64     `json:"current_period_end"`
	Items              struct {
		Data []stripePeriod `json:"data"`
	} `json:"items"`
}

// period falls back to the first item, where newer API versions carry it.
func (s stripeSubscription) period() (int64, int64) {
	if s.CurrentPeriodStart > 0 || s.CurrentPeriodEnd > 0 {
		return s.CurrentPeriodStart, s.CurrentPeriodEnd
	}
	if len(s.Items.Data) > 0 {
		return s.Items.Data[0].CurrentPeriodStart, s.Items.Data[0].CurrentPeriodEnd
	}
	return 0, 0
}

func decodeObject(raw json.RawMessage, out any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return paymentdomain.ErrInvalidPayload
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return paymentdomain.ErrInvalidPayload
	}
	return nil
}

// stripeEventEnvelope is the delivery body as stored in the event ledger.
type stripeEventEnvelope struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Created    int64  `json:"created"`
	APIVersion string `json:"api_version"`
	Livemode   bool   `json:"livemode"`
	Data       struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

func decodeStoredEvent(raw []byte) (*gatewaydomain.Event, error) {
	var env stripeEventEnvelope
	if err := decodeObject(raw, &env); err != nil {
		return nil, err
	}
	if strings.TrimSpace(env.ID) == "" || strings.TrimSpace(env.Type) == "" {
		return nil, paymentdomain.ErrInvalidPayload
	}
	return &gatewaydomain.Event{
		ID:         env.ID,
		Type:       env.Type,
		Created:    env.Created,
		APIVersion: env.APIVersion,
		Livemode:   env.Livemode,
		Object:     env.Data.Object,
	}, nil
}
