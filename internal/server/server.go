package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/inspectconnect/internal/auth"
	"github.com/smallbiznis/inspectconnect/internal/auth/token"
	"github.com/smallbiznis/inspectconnect/internal/authorization"
	"github.com/smallbiznis/inspectconnect/internal/cache"
	"github.com/smallbiznis/inspectconnect/internal/config"
	"github.com/smallbiznis/inspectconnect/internal/events"
	"github.com/smallbiznis/inspectconnect/internal/gateway"
	"github.com/smallbiznis/inspectconnect/internal/observability"
	obsmiddleware "github.com/smallbiznis/inspectconnect/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/inspectconnect/internal/observability/metrics"
	obstracing "github.com/smallbiznis/inspectconnect/internal/observability/tracing"
	"github.com/smallbiznis/inspectconnect/internal/payment"
	paymentdomain "github.com/smallbiznis/inspectconnect/internal/payment/domain"
	"github.com/smallbiznis/inspectconnect/internal/plan"
	plandomain "github.com/smallbiznis/inspectconnect/internal/plan/domain"
	"github.com/smallbiznis/inspectconnect/internal/ratelimit"
	"github.com/smallbiznis/inspectconnect/internal/subscription"
	subscriptiondomain "github.com/smallbiznis/inspectconnect/internal/subscription/domain"
	"github.com/smallbiznis/inspectconnect/internal/user"
	userdomain "github.com/smallbiznis/inspectconnect/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	auth.Module,
	authorization.Module,
	cache.Module,
	events.Module,
	gateway.Module,
	ratelimit.Module,
	user.Module,
	plan.Module,
	subscription.Module,
	payment.Module,
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	registerValidation()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}


func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Params struct {
	fx.In

	Cfg    config.Config
	Tokens *token.Manager

	AuthzSvc        authorization.Service
	UserSvc         userdomain.Service
	PlanSvc         plandomain.Service
	SubscriptionSvc subscriptiondomain.Service
	PaymentSvc      paymentdomain.Service
	Reconciler      paymentdomain.Reconciler

	Limiter    *ratelimit.BillingLimiter `optional:"true"`
	ObsMetrics *obsmetrics.Metrics       `optional:"true"`
}

type Server struct {
	cfg    config.Config
	tokens *token.Manager

	authzSvc        authorization.Service
	userSvc         userdomain.Service
	planSvc         plandomain.Service
	subscriptionSvc subscriptiondomain.Service
	paymentSvc      paymentdomain.Service
	reconciler      paymentdomain.Reconciler

	limiter    *ratelimit.BillingLimiter
	obsMetrics *obsmetrics.Metrics
}

func NewServer(p Params) *Server {
	return &Server{
		cfg:    p.Cfg,
		tokens: p.Tokens,

		authzSvc:        p.AuthzSvc,
		userSvc:         p.UserSvc,
		planSvc:         p.PlanSvc,
		subscriptionSvc: p.SubscriptionSvc,
		paymentSvc:      p.PaymentSvc,
		reconciler:      p.Reconciler,

		limiter:    p.Limiter,
		obsMetrics: p.ObsMetrics,
	}
}

func registerRoutes(r *gin.Engine, s *Server) {
	s.RegisterRoutes(r)
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.POST("/signUp", s.SignUp)
	r.POST("/signIn", s.SignIn)
	r.POST("/webhook", s.WebhookRateLimit(), s.HandleStripeWebhook)

	api := r.Group("/", s.AuthRequired(), s.APIRateLimit())
	{
		api.POST("/subscriptions",
			s.RequirePermission(authorization.ObjectSubscription, authorization.ActionSubscriptionCreate),
			s.CreateSubscription)
		api.GET("/subscriptions/current",
			s.RequirePermission(authorization.ObjectSubscription, authorization.ActionSubscriptionView),
			s.GetCurrentSubscription)
		api.POST("/createCheckoutSession",
			s.RequirePermission(authorization.ObjectPayment, authorization.ActionPaymentCreate),
			s.CreateCheckoutSession)
		api.POST("/payments",
			s.RequirePermission(authorization.ObjectPayment, authorization.ActionPaymentCreate),
			s.CreatePaymentIntent)
		api.POST("/payments/invoice",
			s.RequirePermission(authorization.ObjectPayment, authorization.ActionPaymentCreate),
			s.PayInvoice)
		api.GET("/payments",
			s.RequirePermission(authorization.ObjectPayment, authorization.ActionPaymentView),
			s.ListPayments)
		api.GET("/subscriptionPlans/:userType",
			s.RequirePermission(authorization.ObjectSubscriptionPlan, authorization.ActionPlanView),
			s.GetPlanByUserType)
	}

	admin := r.Group("/admin/subscriptionPlans", s.AuthRequired(), s.APIRateLimit())
	{
		admin.POST("",
			s.RequirePermission(authorization.ObjectSubscriptionPlan, authorization.ActionPlanCreate),
			s.CreatePlan)
		admin.GET("",
			s.RequirePermission(authorization.ObjectSubscriptionPlan, authorization.ActionPlanCreate),
			s.ListPlans)
		admin.PUT("/:id",
			s.RequirePermission(authorization.ObjectSubscriptionPlan, authorization.ActionPlanUpdate),
			s.UpdatePlan)
		admin.DELETE("/:id",
			s.RequirePermission(authorization.ObjectSubscriptionPlan, authorization.ActionPlanDelete),
			s.DeletePlan)
		admin.GET("/type/:userType",
			s.RequirePermission(authorization.ObjectSubscriptionPlan, authorization.ActionPlanCreate),
			s.GetPlanByUserType)
	}
}
