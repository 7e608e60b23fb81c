package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/inspectconnect/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

const subscriptionColumns = `id, user_id, plan_id, stripe_subscription_id, customer_id, product_id, price_id,
	status, collection_method, start_date, current_period_start, current_period_end,
	trial_start, trial_end, amount, currency, billing_interval, interval_count,
	latest_invoice_id, latest_invoice_url, latest_invoice_pdf, latest_session_id,
	livemode, metadata, subscription_json, status_updated_at, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, sub *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (`+subscriptionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID,
		sub.UserID,
		sub.PlanID,
		sub.StripeSubscriptionID,
		sub.CustomerID,
		sub.ProductID,
		sub.PriceID,
		sub.Status,
		sub.CollectionMethod,
		sub.StartDate,
		sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd,
		sub.TrialStart,
		sub.TrialEnd,
		sub.Amount,
		sub.Currency,
		sub.Interval,
		sub.IntervalCount,
		sub.LatestInvoiceID,
		sub.LatestInvoiceURL,
		sub.LatestInvoicePDF,
		sub.LatestSessionID,
		sub.Livemode,
		sub.Metadata,
		sub.SubscriptionJSON,
		sub.StatusUpdatedAt,
		sub.CreatedAt,
		sub.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var item subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByStripeID(ctx context.Context, db *gorm.DB, stripeSubscriptionID string) (*subscriptiondomain.Subscription, error) {
	stripeSubscriptionID = strings.TrimSpace(stripeSubscriptionID)
	if stripeSubscriptionID == "" {
		return nil, nil
	}

	var item subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE stripe_subscription_id = ?
		 LIMIT 1`,
		stripeSubscriptionID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByStripeIDForUpdate(ctx context.Context, db *gorm.DB, stripeSubscriptionID string) (*subscriptiondomain.Subscription, error) {
	stripeSubscriptionID = strings.TrimSpace(stripeSubscriptionID)
	if stripeSubscriptionID == "" {
		return nil, nil
	}

	var item subscriptiondomain.Subscription
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, update subscriptiondomain.StatusUpdate) error {
	sets := []string{"status = ?", "status_updated_at = ?", "updated_at = ?"}
	args := []any{update.Status, update.UpdatedAt, time.Now().UTC()}
	if update.CurrentPeriodStart > 0 {
		sets = append(sets, "current_period_start = ?")
		args = append(args, update.CurrentPeriodStart)
	}
	if update.CurrentPeriodEnd > 0 {
		sets = append(sets, "current_period_end = ?")
		args = append(args, update.CurrentPeriodEnd)
	}
	if update.LatestSessionID != "" {
		sets = append(sets, "latest_session_id = ?")
		args = append(args, update.LatestSessionID)
	}
	args = append(args, id)

	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET `+strings.Join(sets, ", ")+` WHERE id = ?`,
		args...,
	).Error
}
