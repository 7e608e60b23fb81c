package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/inspectconnect/internal/clock"
	"github.com/smallbiznis/inspectconnect/internal/config"
	"github.com/smallbiznis/inspectconnect/internal/events"
	gatewaydomain "github.com/smallbiznis/inspectconnect/internal/gateway/domain"
	obsmetrics "github.com/smallbiznis/inspectconnect/internal/observability/metrics"
	plandomain "github.com/smallbiznis/inspectconnect/internal/plan/domain"
	subscriptiondomain "github.com/smallbiznis/inspectconnect/internal/subscription/domain"
	userdomain "github.com/smallbiznis/inspectconnect/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// activeUserStatus is written onto the user once a subscription is created,
// whatever the gateway reports; webhooks refine it afterwards.
const activeUserStatus = "active"

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  subscriptiondomain.Repository

	UserRepo userdomain.Repository
	PlanSvc  plandomain.Service
	Gateway  gatewaydomain.Gateway
	Billing  *config.BillingConfigHolder

	Notifier   *events.Notifier    `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	clock    clock.Clock
	repo     subscriptiondomain.Repository
	userRepo userdomain.Repository
	planSvc  plandomain.Service
	gateway  gatewaydomain.Gateway
	billing  *config.BillingConfigHolder

	notifier   *events.Notifier
	obsMetrics *obsmetrics.Metrics
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		userRepo: p.UserRepo,
		planSvc:  p.PlanSvc,
		gateway:  p.Gateway,
		billing:  p.Billing,

		notifier:   p.Notifier,
		obsMetrics: p.ObsMetrics,
	}
}

// CreateSubscription provisions the plan's price, creates the gateway
// subscription and records the local mirror together with the user's
// current-subscription pointer.
func (s *Service) CreateSubscription(ctx context.Context, req subscriptiondomain.CreateSubscriptionRequest) (*subscriptiondomain.CreateSubscriptionResponse, error) {
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		return nil, subscriptiondomain.ErrInvalidCustomer
	}
	if req.PlanID == 0 {
		return nil, subscriptiondomain.ErrInvalidPlan
	}

	user, err := s.userRepo.FindByStripeCustomerID(ctx, s.db, customerID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, subscriptiondomain.ErrUserNotRegistered
	}

	plan, err := s.planSvc.GetActiveByID(ctx, req.PlanID)
	if err != nil {
		if errors.Is(err, plandomain.ErrNotFound) || errors.Is(err, plandomain.ErrInvalidID) {
			return nil, subscriptiondomain.ErrPlanNotFound
		}
		return nil, err
	}

	price, err := s.planSvc.EnsureGatewayPrice(ctx, plan)
	if err != nil {
		if errors.Is(err, plandomain.ErrCreateProduct) {
			return nil, fmt.Errorf("%w: %w", subscriptiondomain.ErrCreateProductFailed, err)
		}
		return nil, err
	}

	billing := s.billing.Get()
	gatewaySub, err := s.gateway.CreateSubscription(ctx, gatewaydomain.SubscriptionInput{
		CustomerID:   customerID,
		PriceID:      price.PriceID,
		TrialDays:    int64(plan.TrialDays),
		IsManual:     req.IsManual,
		DaysUntilDue: int64(billing.DaysUntilDueFallback),
		Metadata: map[string]string{
			"plan_id": plan.ID.String(),
			"user_id": user.ID.String(),
		},
	})
	if err != nil {
		s.log.Error("failed to create gateway subscription",
			zap.String("customer_id", customerID),
			zap.String("plan_id", plan.ID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", subscriptiondomain.ErrCreateSubscriptionFailed, err)
	}

	sub := s.buildMirror(user, plan, price, gatewaySub, billing.DefaultCurrency)

	trialDays := plan.TrialDays
	gatewayID := gatewaySub.ID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, sub); err != nil {
			return err
		}
		return s.userRepo.UpdateSubscriptionState(ctx, tx, user.ID, userdomain.SubscriptionState{
			CurrentSubscriptionID: &gatewayID,
			Status:                activeUserStatus,
			TrialDays:             &trialDays,
			UpdatedAt:             sub.StatusUpdatedAt,
		})
	})
	if err != nil {
		s.log.Error("failed to record subscription",
			zap.String("subscription_id", gatewayID),
			zap.String("customer_id", customerID),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Info("subscription created",
		zap.String("subscription_id", gatewayID),
		zap.String("customer_id", customerID),
		zap.String("status", string(sub.Status)),
		zap.String("collection_method", sub.CollectionMethod),
	)
	s.obsMetrics.RecordSubscriptionCreated(ctx, sub.CollectionMethod)
	s.notifier.Notify(ctx, events.BillingEvent{
		Type:                 events.RoutingSubscriptionCreated,
		UserID:               user.ID.String(),
		CustomerID:           customerID,
		StripeSubscriptionID: gatewayID,
		Status:               string(sub.Status),
		OccurredAt:           sub.StatusUpdatedAt,
	})

	return &subscriptiondomain.CreateSubscriptionResponse{
		Subscription: sub,
		Gateway:      gatewaySub.Raw,
		ClientSecret: gatewaySub.ClientSecret,
	}, nil
}

func (s *Service) GetCurrent(ctx context.Context, userID snowflake.ID) (*subscriptiondomain.CurrentSubscription, error) {
	user, err := s.userRepo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, subscriptiondomain.ErrUserNotRegistered
	}
	if strings.TrimSpace(user.CurrentSubscriptionID) == "" {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}

	sub, err := s.repo.FindByStripeID(ctx, s.db, user.CurrentSubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return &subscriptiondomain.CurrentSubscription{
		Subscription: sub,
		Active:       sub.IsActive(),
	}, nil
}

func (s *Service) buildMirror(
	user *userdomain.User,
	plan *plandomain.Plan,
	price *plandomain.GatewayPrice,
	gatewaySub *gatewaydomain.Subscription,
	defaultCurrency string,
) *subscriptiondomain.Subscription {
	now := s.clock.Now()

	status, ok := subscriptiondomain.ParseStatus(gatewaySub.Status)
	if !ok || status == subscriptiondomain.StatusNone {
		s.log.Warn("unknown gateway subscription status",
			zap.String("subscription_id", gatewaySub.ID),
			zap.String("status", gatewaySub.Status),
		)
		status = subscriptiondomain.StatusIncomplete
	}

	statusUpdatedAt := now.Truncate(time.Second)
	if gatewaySub.Created > 0 {
		statusUpdatedAt = time.Unix(gatewaySub.Created, 0).UTC()
	}

	productID := firstNonEmpty(gatewaySub.ProductID, price.ProductID)
	priceID := firstNonEmpty(gatewaySub.PriceID, price.PriceID)
	interval := firstNonEmpty(gatewaySub.Interval, gatewaydomain.IntervalFromPlan(plan.Interval))
	amount := gatewaySub.Amount
	if amount == 0 {
		amount = gatewaydomain.MinorUnits(plan.Amount)
	}
	intervalCount := gatewaySub.IntervalCount
	if intervalCount == 0 {
		intervalCount = 1
	}

	var metadata datatypes.JSONMap
	if len(gatewaySub.Metadata) > 0 {
		metadata = datatypes.JSONMap{}
		for k, v := range gatewaySub.Metadata {
			metadata[k] = v
		}
	}

	return &subscriptiondomain.Subscription{
		ID:                   s.genID.Generate(),
		UserID:               user.ID,
		PlanID:               plan.ID,
		StripeSubscriptionID: gatewaySub.ID,
		CustomerID:           firstNonEmpty(gatewaySub.CustomerID, user.StripeCustomerID),
		ProductID:            productID,
		PriceID:              priceID,
		Status:               status,
		CollectionMethod:     gatewaySub.CollectionMethod,
		StartDate:            gatewaySub.StartDate,
		CurrentPeriodStart:   gatewaySub.CurrentPeriodStart,
		CurrentPeriodEnd:     gatewaySub.CurrentPeriodEnd,
		TrialStart:           gatewaySub.TrialStart,
		TrialEnd:             gatewaySub.TrialEnd,
		Amount:               amount,
		Currency:             gatewaydomain.NormalizeCurrency(gatewaySub.Currency, firstNonEmpty(plan.Currency, defaultCurrency)),
		Interval:             interval,
		IntervalCount:        intervalCount,
		LatestInvoiceID:      gatewaySub.LatestInvoiceID,
		LatestInvoiceURL:     gatewaySub.LatestInvoiceURL,
		LatestInvoicePDF:     gatewaySub.LatestInvoicePDF,
		Livemode:             gatewaySub.Livemode,
		Metadata:             metadata,
		SubscriptionJSON:     datatypes.JSON(gatewaySub.Raw),
		StatusUpdatedAt:      statusUpdatedAt,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
