package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/inspectconnect/internal/cache"
	"github.com/smallbiznis/inspectconnect/internal/clock"
	gatewaydomain "github.com/smallbiznis/inspectconnect/internal/gateway/domain"
	"github.com/smallbiznis/inspectconnect/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Gateway gatewaydomain.Gateway
	Cache   cache.PlanCache
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	gateway gatewaydomain.Gateway
	cache   cache.PlanCache
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("plan.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		gateway: p.Gateway,
		cache:   p.Cache,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Plan, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if err := validateInterval(req.Interval); err != nil {
		return nil, err
	}
	if err := validateUserType(req.UserType); err != nil {
		return nil, err
	}
	if req.TrialDays < 0 {
		return nil, domain.ErrInvalidTrialDays
	}
	currency, err := normalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}
	intervalCount := req.IntervalCount
	if intervalCount <= 0 {
		intervalCount = 1
	}
	status := domain.StatusActive
	if req.Status != nil {
		if err := validateStatus(*req.Status); err != nil {
			return nil, err
		}
		status = *req.Status
	}

	existing, err := s.repo.FindDuplicate(ctx, s.db, name, req.Interval, req.Amount)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrPlanAlreadyExists
	}

	product, err := s.gateway.FindExistingProduct(ctx, name)
	if err != nil {
		s.log.Error("failed to look up gateway product", zap.String("name", name), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrCreateProduct, err)
	}
	if product != nil {
		s.log.Info("gateway product already exists", zap.String("name", name), zap.String("product_id", product.ID))
		return nil, domain.ErrPlanAlreadyExists
	}

	now := s.clock.Now()
	plan := &domain.Plan{
		ID:            s.genID.Generate(),
		Name:          name,
		Slug:          slug.Make(name),
		Description:   strings.TrimSpace(req.Description),
		Amount:        req.Amount,
		Currency:      currency,
		TrialDays:     req.TrialDays,
		UserType:      req.UserType,
		Interval:      req.Interval,
		IntervalCount: intervalCount,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.Metadata != nil {
		plan.Metadata = datatypes.JSONMap(req.Metadata)
	}

	created, err := s.gateway.CreateProduct(ctx, productInput(plan))
	if err != nil {
		s.log.Error("failed to create gateway product", zap.String("name", name), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrCreateProduct, err)
	}
	plan.StripeProductID = created.Product.ID
	plan.StripePriceID = created.Price.ID

	if err := s.repo.Insert(ctx, s.db, plan); err != nil {
		return nil, err
	}
	s.cache.Invalidate()

	s.log.Info("subscription plan created",
		zap.String("plan_id", plan.ID.String()),
		zap.String("product_id", plan.StripeProductID),
		zap.String("price_id", plan.StripePriceID),
	)
	return plan, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Plan, error) {
	if plans, ok := s.cache.GetActive(); ok {
		return plans, nil
	}

	plans, err := s.repo.ListByStatus(ctx, s.db, domain.StatusActive)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, domain.ErrNoPlansFound
	}
	s.cache.SetActive(plans)
	return plans, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Plan, error) {
	if req.ID == 0 {
		return nil, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, req.ID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	billingChanged := false
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		item.Name = name
		item.Slug = slug.Make(name)
	}
	if req.Description != nil {
		item.Description = strings.TrimSpace(*req.Description)
	}
	if req.Amount != nil {
		if *req.Amount <= 0 {
			return nil, domain.ErrInvalidAmount
		}
		billingChanged = billingChanged || *req.Amount != item.Amount
		item.Amount = *req.Amount
	}
	if req.Currency != nil {
		currency, err := normalizeCurrency(*req.Currency)
		if err != nil {
			return nil, err
		}
		billingChanged = billingChanged || currency != item.Currency
		item.Currency = currency
	}
	if req.Interval != nil {
		if err := validateInterval(*req.Interval); err != nil {
			return nil, err
		}
		billingChanged = billingChanged || *req.Interval != item.Interval
		item.Interval = *req.Interval
	}
	if req.IntervalCount != nil {
		if *req.IntervalCount <= 0 {
			return nil, domain.ErrInvalidInterval
		}
		item.IntervalCount = *req.IntervalCount
	}
	if req.TrialDays != nil {
		if *req.TrialDays < 0 {
			return nil, domain.ErrInvalidTrialDays
		}
		item.TrialDays = *req.TrialDays
	}
	if req.UserType != nil {
		if err := validateUserType(*req.UserType); err != nil {
			return nil, err
		}
		item.UserType = *req.UserType
	}
	if req.Status != nil {
		if err := validateStatus(*req.Status); err != nil {
			return nil, err
		}
		item.Status = *req.Status
	}
	if req.Metadata != nil {
		item.Metadata = datatypes.JSONMap(req.Metadata)
	}

	// Gateway prices are immutable; a billing change needs a new one.
	if billingChanged {
		item.StripeProductID = ""
		item.StripePriceID = ""
	}

	item.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return nil, err
	}
	s.cache.Invalidate()
	return item, nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if id == 0 {
		return domain.ErrInvalidID
	}
	affected, err := s.repo.Delete(ctx, s.db, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	s.cache.Invalidate()
	return nil
}

func (s *Service) GetByUserType(ctx context.Context, userType int) (*domain.Plan, error) {
	if err := validateUserType(userType); err != nil {
		return nil, err
	}
	if plan, ok := s.cache.GetByUserType(userType); ok {
		return &plan, nil
	}

	plan, err := s.repo.FindActiveByUserType(ctx, s.db, userType)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrNotFound
	}
	s.cache.SetByUserType(userType, *plan)
	return plan, nil
}

func (s *Service) GetActiveByID(ctx context.Context, id snowflake.ID) (*domain.Plan, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	plan, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive() {
		return nil, domain.ErrNotFound
	}
	return plan, nil
}

func (s *Service) EnsureGatewayPrice(ctx context.Context, plan *domain.Plan) (*domain.GatewayPrice, error) {
	if plan == nil {
		return nil, domain.ErrNotFound
	}
	if plan.StripeProductID != "" && plan.StripePriceID != "" {
		return &domain.GatewayPrice{ProductID: plan.StripeProductID, PriceID: plan.StripePriceID}, nil
	}

	created, err := s.gateway.CreateProduct(ctx, productInput(plan))
	if err != nil {
		s.log.Error("failed to provision gateway price",
			zap.String("plan_id", plan.ID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", domain.ErrCreateProduct, err)
	}

	if err := s.repo.UpdateGatewayIDs(ctx, s.db, plan.ID, created.Product.ID, created.Price.ID); err != nil {
		return nil, err
	}
	plan.StripeProductID = created.Product.ID
	plan.StripePriceID = created.Price.ID
	s.cache.Invalidate()

	return &domain.GatewayPrice{ProductID: created.Product.ID, PriceID: created.Price.ID}, nil
}

func productInput(plan *domain.Plan) gatewaydomain.ProductInput {
	return gatewaydomain.ProductInput{
		PlanID:      plan.ID.String(),
		Name:        plan.Name,
		Description: plan.Description,
		Slug:        plan.Slug,
		Amount:      plan.Amount,
		Currency:    plan.Currency,
		Interval:    plan.Interval,
	}
}

func normalizeCurrency(currency string) (string, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return domain.DefaultCurrency, nil
	}
	if len(currency) != 3 {
		return "", domain.ErrInvalidCurrency
	}
	return currency, nil
}

func validateInterval(interval int) error {
	switch interval {
	case domain.IntervalMonthly, domain.IntervalYearly:
		return nil
	default:
		return domain.ErrInvalidInterval
	}
}

func validateUserType(userType int) error {
	switch userType {
	case 0, 1:
		return nil
	default:
		return domain.ErrInvalidUserType
	}
}

func validateStatus(status int) error {
	switch status {
	case domain.StatusActive, domain.StatusInactive:
		return nil
	default:
		return domain.ErrInvalidStatus
	}
}
