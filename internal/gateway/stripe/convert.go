package stripe

import (
	"encoding/json"

	"github.com/smallbiznis/inspectconnect/internal/gateway/domain"
	stripego "github.com/stripe/stripe-go/v78"
)

func toSubscription(sub *stripego.Subscription) (*domain.Subscription, error) {
	if sub == nil {
		return nil, domain.ErrInvalidInput
	}

	out := &domain.Subscription{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		CollectionMethod:   string(sub.CollectionMethod),
		StartDate:          sub.StartDate,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		TrialStart:         sub.TrialStart,
		TrialEnd:           sub.TrialEnd,
		Livemode:           sub.Livemode,
		Metadata:           sub.Metadata,
		Created:            sub.Created,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}

	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0] != nil {
		if price := sub.Items.Data[0].Price; price != nil {
			out.PriceID = price.ID
			out.Amount = price.UnitAmount
			out.Currency = string(price.Currency)
			if price.Product != nil {
				out.ProductID = price.Product.ID
			}
			if price.Recurring != nil {
				out.Interval = string(price.Recurring.Interval)
				out.IntervalCount = price.Recurring.IntervalCount
			}
		}
	}

	if invoice := sub.LatestInvoice; invoice != nil {
		out.LatestInvoiceID = invoice.ID
		out.LatestInvoiceURL = invoice.HostedInvoiceURL
		out.LatestInvoicePDF = invoice.InvoicePDF
		if invoice.PaymentIntent != nil {
			out.ClientSecret = invoice.PaymentIntent.ClientSecret
		}
	}

	if sub.LastResponse != nil && len(sub.LastResponse.RawJSON) > 0 {
		out.Raw = json.RawMessage(sub.LastResponse.RawJSON)
	} else {
		raw, err := json.Marshal(sub)
		if err != nil {
			return nil, err
		}
		out.Raw = raw
	}
	return out, nil
}
