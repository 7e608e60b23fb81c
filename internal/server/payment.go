package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/inspectconnect/internal/payment/domain"
	"github.com/smallbiznis/inspectconnect/pkg/db/pagination"
)

type checkoutSessionRequest struct {
	CustomerID string `json:"customerId" binding:"required"`
	PriceID    string `json:"priceId" binding:"required"`
	SuccessURL string `json:"successUrl" binding:"required,url"`
	CancelURL  string `json:"cancelUrl" binding:"required,url"`
}

type payInvoiceRequest struct {
	InvoiceID       string `json:"invoiceId" binding:"required"`
	PaymentMethodID string `json:"paymentMethodId" binding:"required"`
}

type listPaymentsQuery struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size" binding:"omitempty,gte=1,lte=250"`
}

func (s *Server) CreateCheckoutSession(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req checkoutSessionRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}
	customerID := strings.TrimSpace(req.CustomerID)

	ctx := c.Request.Context()
	caller, err := s.userSvc.GetByID(ctx, principal.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !caller.IsAdmin() && caller.StripeCustomerID != customerID {
		AbortWithError(c, ErrForbidden)
		return
	}

	session, err := s.paymentSvc.CreateCheckoutSession(ctx, paymentdomain.CheckoutRequest{
		CustomerID: customerID,
		PriceID:    strings.TrimSpace(req.PriceID),
		SuccessURL: strings.TrimSpace(req.SuccessURL),
		CancelURL:  strings.TrimSpace(req.CancelURL),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Checkout session created", session)
}

func (s *Server) CreatePaymentIntent(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	intent, err := s.paymentSvc.CreatePaymentIntent(c.Request.Context(), principal.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Payment intent created", intent)
}

func (s *Server) PayInvoice(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req payInvoiceRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	invoice, err := s.paymentSvc.PayInvoice(c.Request.Context(), paymentdomain.PayInvoiceRequest{
		UserID:          principal.UserID,
		InvoiceID:       strings.TrimSpace(req.InvoiceID),
		PaymentMethodID: strings.TrimSpace(req.PaymentMethodID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Invoice paid", invoice)
}

func (s *Server) ListPayments(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var query listPaymentsQuery
	if err := bindQuery(c, &query); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.paymentSvc.ListPayments(c.Request.Context(), principal.UserID, pagination.Pagination{
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Payments", resp)
}
