package domain

import "errors"

var (
	ErrMissingSignature      = errors.New("stripe_webhook_signature_missing")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
	ErrUserNotFound          = errors.New("user_not_found")
	ErrSubscriptionNotFound  = errors.New("subscription_not_found")
	ErrCustomerBusy          = errors.New("customer_webhook_in_progress")
	ErrInvalidCustomer       = errors.New("invalid_customer")
	ErrInvalidPrice          = errors.New("invalid_price")
	ErrInvalidURL            = errors.New("invalid_url")
	ErrInvalidInvoice        = errors.New("invalid_invoice")
	ErrInvalidPaymentMethod  = errors.New("invalid_payment_method")
	ErrInvoiceNotOwned       = errors.New("invoice_not_owned")
	ErrCheckoutFailed        = errors.New("create_checkout_session_failed")
	ErrPaymentIntentFailed   = errors.New("stripe_payment_intent_failed")
	ErrPayInvoiceFailed      = errors.New("pay_invoice_failed")
)
