package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	gatewaydomain "github.com/smallbiznis/inspectconnect/internal/gateway/domain"
	paymentdomain "github.com/smallbiznis/inspectconnect/internal/payment/domain"
	subscriptiondomain "github.com/smallbiznis/inspectconnect/internal/subscription/domain"
	userdomain "github.com/smallbiznis/inspectconnect/internal/user/domain"
	"github.com/smallbiznis/inspectconnect/pkg/db/option"
	"github.com/smallbiznis/inspectconnect/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultPageSize = 20

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo paymentdomain.Repository

	UserRepo         userdomain.Repository
	SubscriptionRepo subscriptiondomain.Repository
	Gateway          gatewaydomain.Gateway
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	repo     paymentdomain.Repository
	userRepo userdomain.Repository
	subRepo  subscriptiondomain.Repository
	gateway  gatewaydomain.Gateway
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("payment.service"),

		repo:     p.Repo,
		userRepo: p.UserRepo,
		subRepo:  p.SubscriptionRepo,
		gateway:  p.Gateway,
	}
}

func (s *Service) CreateCheckoutSession(ctx context.Context, req paymentdomain.CheckoutRequest) (*gatewaydomain.CheckoutSession, error) {
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		return nil, paymentdomain.ErrInvalidCustomer
	}
	priceID := strings.TrimSpace(req.PriceID)
	if priceID == "" {
		return nil, paymentdomain.ErrInvalidPrice
	}
	successURL, err := normalizeRedirectURL(req.SuccessURL)
	if err != nil {
		return nil, err
	}
	cancelURL, err := normalizeRedirectURL(req.CancelURL)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, gatewaydomain.CheckoutInput{
		CustomerID: customerID,
		PriceID:    priceID,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
	if err != nil {
		s.log.Error("failed to create checkout session",
			zap.String("customer_id", customerID),
			zap.String("price_id", priceID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", paymentdomain.ErrCheckoutFailed, err)
	}
	return session, nil
}

// CreatePaymentIntent opens an intent for the amount of the user's current
// subscription, tied to its latest invoice.
func (s *Service) CreatePaymentIntent(ctx context.Context, userID snowflake.ID) (*gatewaydomain.PaymentIntent, error) {
	user, sub, err := s.currentSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, gatewaydomain.PaymentIntentInput{
		Amount:     sub.Amount,
		Currency:   sub.Currency,
		CustomerID: user.StripeCustomerID,
		InvoiceID:  sub.LatestInvoiceID,
	})
	if err != nil {
		s.log.Error("failed to create payment intent",
			zap.String("user_id", user.ID.String()),
			zap.String("subscription_id", sub.StripeSubscriptionID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", paymentdomain.ErrPaymentIntentFailed, err)
	}
	return intent, nil
}

func (s *Service) PayInvoice(ctx context.Context, req paymentdomain.PayInvoiceRequest) (*gatewaydomain.Invoice, error) {
	invoiceID := strings.TrimSpace(req.InvoiceID)
	if invoiceID == "" {
		return nil, paymentdomain.ErrInvalidInvoice
	}
	paymentMethodID := strings.TrimSpace(req.PaymentMethodID)
	if paymentMethodID == "" {
		return nil, paymentdomain.ErrInvalidPaymentMethod
	}

	user, err := s.userRepo.FindByID(ctx, s.db, req.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, paymentdomain.ErrUserNotFound
	}

	if user.StripeCustomerID == "" {
		return nil, paymentdomain.ErrInvoiceNotOwned
	}

	invoice, err := s.gateway.PayInvoice(ctx, gatewaydomain.PayInvoiceInput{
		InvoiceID:       invoiceID,
		CustomerID:      user.StripeCustomerID,
		PaymentMethodID: paymentMethodID,
	})
	if errors.Is(err, gatewaydomain.ErrInvoiceNotOwned) {
		s.log.Warn("refused to pay invoice of another customer",
			zap.String("user_id", user.ID.String()),
			zap.String("invoice_id", invoiceID),
		)
		return nil, paymentdomain.ErrInvoiceNotOwned
	}
	if err != nil {
		s.log.Error("failed to pay invoice",
			zap.String("user_id", user.ID.String()),
			zap.String("invoice_id", invoiceID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", paymentdomain.ErrPayInvoiceFailed, err)
	}
	return invoice, nil
}

func (s *Service) ListPayments(ctx context.Context, userID snowflake.ID, page pagination.Pagination) (*paymentdomain.ListPaymentsResponse, error) {
	user, err := s.userRepo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, paymentdomain.ErrUserNotFound
	}

	pageSize := page.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	items, err := s.repo.ListByUser(ctx, s.db, user.ID,
		option.OrderByNewest(),
		option.ApplyPagination(pagination.Pagination{
			PageToken: page.PageToken,
			PageSize:  pageSize,
		}),
	)
	if err != nil {
		return nil, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(item *paymentdomain.Payment) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	return &paymentdomain.ListPaymentsResponse{
		Payments: items,
		PageInfo: *pageInfo,
	}, nil
}

func (s *Service) currentSubscription(ctx context.Context, userID snowflake.ID) (*userdomain.User, *subscriptiondomain.Subscription, error) {
	user, err := s.userRepo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, paymentdomain.ErrUserNotFound
	}
	if strings.TrimSpace(user.StripeCustomerID) == "" {
		return nil, nil, paymentdomain.ErrInvalidCustomer
	}
	if strings.TrimSpace(user.CurrentSubscriptionID) == "" {
		return nil, nil, paymentdomain.ErrSubscriptionNotFound
	}

	sub, err := s.subRepo.FindByStripeID(ctx, s.db, user.CurrentSubscriptionID)
	if err != nil {
		return nil, nil, err
	}
	if sub == nil {
		return nil, nil, paymentdomain.ErrSubscriptionNotFound
	}
	return user, sub, nil
}

func normalizeRedirectURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", paymentdomain.ErrInvalidURL
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", paymentdomain.ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", paymentdomain.ErrInvalidURL
	}
	return parsed.String(), nil
}
