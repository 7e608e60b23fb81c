package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/inspectconnect/internal/auth/token"
	"github.com/smallbiznis/inspectconnect/internal/authorization"
	gatewaydomain "github.com/smallbiznis/inspectconnect/internal/gateway/domain"
	paymentdomain "github.com/smallbiznis/inspectconnect/internal/payment/domain"
	plandomain "github.com/smallbiznis/inspectconnect/internal/plan/domain"
	subscriptiondomain "github.com/smallbiznis/inspectconnect/internal/subscription/domain"
	userdomain "github.com/smallbiznis/inspectconnect/internal/user/domain"
)

// envelope is the body of every API response except the webhook acknowledgement.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Body    any    `json:"body"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
	ErrInternal       = errors.New("internal_error")
)

// ValidationError is a request that failed binding, rendered as its message.
type ValidationError struct {
	Field   string
	Message string
}

func (v *ValidationError) Error() string {
	return v.Message
}

func newValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

const internalErrorMessage = "Something went wrong"

// failure pairs a sentinel with the status and message shown to the caller.
type failure struct {
	err     error
	status  int
	message string
}

// failures is ordered: the first match wins for wrapped errors.
var failures = []failure{
	{ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	{token.ErrInvalidToken, http.StatusUnauthorized, "Invalid token"},
	{token.ErrExpiredToken, http.StatusUnauthorized, "Token expired"},
	{userdomain.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{ErrForbidden, http.StatusForbidden, "Forbidden"},
	{authorization.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{ErrRateLimited, http.StatusTooManyRequests, "Too many requests"},
	{paymentdomain.ErrCustomerBusy, http.StatusConflict, "Another event for this customer is being processed"},
	{gatewaydomain.ErrGatewayUnavailable, http.StatusServiceUnavailable, "Payment gateway unavailable"},

	{ErrInvalidRequest, http.StatusBadRequest, "Invalid request"},
	{userdomain.ErrInvalidEmail, http.StatusBadRequest, "Invalid email"},
	{userdomain.ErrInvalidPassword, http.StatusBadRequest, "Password must be at least 8 characters"},
	{userdomain.ErrInvalidRole, http.StatusBadRequest, "Invalid role"},
	{userdomain.ErrInvalidUserType, http.StatusBadRequest, "Invalid user type"},
	{userdomain.ErrEmailTaken, http.StatusBadRequest, "Email already registered"},
	{userdomain.ErrNotFound, http.StatusBadRequest, "User not found"},

	{plandomain.ErrInvalidName, http.StatusBadRequest, "Invalid plan name"},
	{plandomain.ErrInvalidAmount, http.StatusBadRequest, "Invalid plan amount"},
	{plandomain.ErrInvalidCurrency, http.StatusBadRequest, "Invalid currency"},
	{plandomain.ErrInvalidTrialDays, http.StatusBadRequest, "Invalid trial days"},
	{plandomain.ErrInvalidUserType, http.StatusBadRequest, "Invalid user type"},
	{plandomain.ErrInvalidInterval, http.StatusBadRequest, "Invalid interval"},
	{plandomain.ErrInvalidStatus, http.StatusBadRequest, "Invalid status"},
	{plandomain.ErrInvalidID, http.StatusBadRequest, "Invalid plan id"},
	{plandomain.ErrPlanAlreadyExists, http.StatusBadRequest, "Subscription plan already exists"},
	{plandomain.ErrCreateProduct, http.StatusBadRequest, "Failed to create product"},
	{plandomain.ErrNoPlansFound, http.StatusBadRequest, "No subscription plans found"},
	{plandomain.ErrNotFound, http.StatusBadRequest, "Subscription plan not found"},

	{subscriptiondomain.ErrInvalidCustomer, http.StatusBadRequest, "Invalid customer id"},
	{subscriptiondomain.ErrInvalidPlan, http.StatusBadRequest, "Invalid plan id"},
	{subscriptiondomain.ErrUserNotRegistered, http.StatusBadRequest, "User not registered"},
	{subscriptiondomain.ErrPlanNotFound, http.StatusBadRequest, "Subscription plan not found"},
	{subscriptiondomain.ErrCreateProductFailed, http.StatusBadRequest, "Failed to create product"},
	{subscriptiondomain.ErrCreateSubscriptionFailed, http.StatusBadRequest, "Failed to create subscription"},
	{subscriptiondomain.ErrSubscriptionNotFound, http.StatusBadRequest, "Subscription not found"},

	{paymentdomain.ErrMissingSignature, http.StatusBadRequest, "Missing webhook signature"},
	{gatewaydomain.ErrInvalidSignature, http.StatusBadRequest, "Invalid webhook signature"},
	{paymentdomain.ErrInvalidPayload, http.StatusBadRequest, "Invalid webhook payload"},
	{paymentdomain.ErrInvalidEvent, http.StatusBadRequest, "Invalid webhook event"},
	{paymentdomain.ErrUserNotFound, http.StatusBadRequest, "User not found"},
	{paymentdomain.ErrSubscriptionNotFound, http.StatusBadRequest, "Subscription not found"},
	{paymentdomain.ErrInvalidCustomer, http.StatusBadRequest, "Invalid customer id"},
	{paymentdomain.ErrInvalidPrice, http.StatusBadRequest, "Invalid price id"},
	{paymentdomain.ErrInvalidURL, http.StatusBadRequest, "Invalid redirect url"},
	{paymentdomain.ErrInvalidInvoice, http.StatusBadRequest, "Invalid invoice id"},
	{paymentdomain.ErrInvalidPaymentMethod, http.StatusBadRequest, "Invalid payment method"},
	{paymentdomain.ErrInvoiceNotOwned, http.StatusForbidden, "Invoice does not belong to this account"},
	{paymentdomain.ErrCheckoutFailed, http.StatusBadRequest, "Failed to create checkout session"},
	{paymentdomain.ErrPaymentIntentFailed, http.StatusBadRequest, "Failed to create payment intent"},
	{paymentdomain.ErrPayInvoiceFailed, http.StatusBadRequest, "Failed to pay invoice"},
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, message := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, envelope{Success: false, Message: message, Body: gin.H{}})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func respond(c *gin.Context, status int, message string, body any) {
	if body == nil {
		body = gin.H{}
	}
	c.JSON(status, envelope{Success: true, Message: message, Body: body})
}

func mapError(err error) (int, string) {
	if err == nil {
		return http.StatusInternalServerError, internalErrorMessage
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, vErr.Message
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return http.StatusBadRequest, fieldErrorMessage(fieldErrs[0])
	}

	for _, f := range failures {
		if errors.Is(err, f.err) {
			return f.status, f.message
		}
	}
	return http.StatusInternalServerError, internalErrorMessage
}

// classifyErrorForLog labels request errors for the access log.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	status, _ := mapError(err)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "auth", err.Error()
	case status == http.StatusTooManyRequests:
		return "rate_limit", err.Error()
	case status == http.StatusConflict:
		return "conflict", err.Error()
	case status == http.StatusServiceUnavailable:
		return "gateway", err.Error()
	case status >= http.StatusInternalServerError:
		return "internal", "internal_error"
	default:
		return "client", err.Error()
	}
}
