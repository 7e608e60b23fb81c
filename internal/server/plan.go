package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	plandomain "github.com/smallbiznis/inspectconnect/internal/plan/domain"
)

type createPlanRequest struct {
	Name          string         `json:"name" binding:"required"`
	Description   string         `json:"description"`
	Amount        float64        `json:"amount" binding:"required,gt=0"`
	Currency      string         `json:"currency"`
	TrialDays     int            `json:"trialDays" binding:"gte=0"`
	UserType      int            `json:"userType" binding:"oneof=0 1"`
	Interval      int            `json:"interval" binding:"oneof=0 1"`
	IntervalCount int            `json:"intervalCount" binding:"gte=0"`
	Status        *int           `json:"status" binding:"omitempty,oneof=0 1"`
	Metadata      map[string]any `json:"metadata"`
}

type updatePlanRequest struct {
	Name          *string        `json:"name"`
	Description   *string        `json:"description"`
	Amount        *float64       `json:"amount" binding:"omitempty,gt=0"`
	Currency      *string        `json:"currency"`
	TrialDays     *int           `json:"trialDays" binding:"omitempty,gte=0"`
	UserType      *int           `json:"userType" binding:"omitempty,oneof=0 1"`
	Interval      *int           `json:"interval" binding:"omitempty,oneof=0 1"`
	IntervalCount *int           `json:"intervalCount" binding:"omitempty,gte=0"`
	Status        *int           `json:"status" binding:"omitempty,oneof=0 1"`
	Metadata      map[string]any `json:"metadata"`
}

func (s *Server) CreatePlan(c *gin.Context) {
	var req createPlanRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	plan, err := s.planSvc.Create(c.Request.Context(), plandomain.CreateRequest{
		Name:          strings.TrimSpace(req.Name),
		Description:   strings.TrimSpace(req.Description),
		Amount:        req.Amount,
		Currency:      strings.TrimSpace(req.Currency),
		TrialDays:     req.TrialDays,
		UserType:      req.UserType,
		Interval:      req.Interval,
		IntervalCount: req.IntervalCount,
		Status:        req.Status,
		Metadata:      req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusCreated, "Subscription plan created", plan)
}

func (s *Server) ListPlans(c *gin.Context) {
	plans, err := s.planSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Subscription plans", plans)
}

func (s *Server) UpdatePlan(c *gin.Context) {
	id, err := parsePlanID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updatePlanRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	plan, err := s.planSvc.Update(c.Request.Context(), plandomain.UpdateRequest{
		ID:            id,
		Name:          req.Name,
		Description:   req.Description,
		Amount:        req.Amount,
		Currency:      req.Currency,
		TrialDays:     req.TrialDays,
		UserType:      req.UserType,
		Interval:      req.Interval,
		IntervalCount: req.IntervalCount,
		Status:        req.Status,
		Metadata:      req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Subscription plan updated", plan)
}

func (s *Server) DeletePlan(c *gin.Context) {
	id, err := parsePlanID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.planSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Subscription plan deleted", nil)
}

func (s *Server) GetPlanByUserType(c *gin.Context) {
	userType, err := strconv.Atoi(strings.TrimSpace(c.Param("userType")))
	if err != nil {
		AbortWithError(c, plandomain.ErrInvalidUserType)
		return
	}

	plan, err := s.planSvc.GetByUserType(c.Request.Context(), userType)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Subscription plan", plan)
}

func parsePlanID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, plandomain.ErrInvalidID
	}
	return id, nil
}
