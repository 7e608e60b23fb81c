package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/smallbiznis/inspectconnect/internal/subscription/domain"
)

type createSubscriptionRequest struct {
	CustomerID string       `json:"customerId" binding:"required"`
	PlanID     snowflake.ID `json:"planId" binding:"required"`
	IsManual   *int         `json:"isManual" binding:"required,oneof=0 1"`
}

type createSubscriptionResponse struct {
	Subscription *subscriptiondomain.Subscription `json:"subscription"`
	Gateway      json.RawMessage                  `json:"gatewaySubscription,omitempty"`
	ClientSecret string                           `json:"clientSecret,omitempty"`
}

func (s *Server) CreateSubscription(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createSubscriptionRequest
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

	resp, err := s.subscriptionSvc.CreateSubscription(ctx, subscriptiondomain.CreateSubscriptionRequest{
		CustomerID: customerID,
		PlanID:     req.PlanID,
		IsManual:   *req.IsManual,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Subscription created", createSubscriptionResponse{
		Subscription: resp.Subscription,
		Gateway:      resp.Gateway,
		ClientSecret: resp.ClientSecret,
	})
}

func (s *Server) GetCurrentSubscription(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	current, err := s.subscriptionSvc.GetCurrent(c.Request.Context(), principal.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Current subscription", current)
}
