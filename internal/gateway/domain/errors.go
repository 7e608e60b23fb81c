package domain

import (
	"errors"
	"fmt"
)

var (
	ErrGatewayUnavailable   = errors.New("gateway_unavailable")
	ErrMissingSecretKey     = errors.New("missing_gateway_secret_key")
	ErrMissingWebhookSecret = errors.New("missing_webhook_secret")
	ErrInvalidSignature     = errors.New("invalid_webhook_signature")
	ErrInvalidEmail         = errors.New("invalid_customer_email")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidInterval      = errors.New("invalid_interval")
	ErrInvalidInput         = errors.New("invalid_gateway_input")
	ErrInvoiceNotOwned      = errors.New("invoice_not_owned_by_customer")
)

// Error is a failed call to the billing provider.
type Error struct {
	Op     string
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway %s failed (%d %s): %v", e.Op, e.Status, e.Code, e.Err)
	}
	return fmt.Sprintf("gateway %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
