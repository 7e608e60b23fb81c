package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/inspectconnect/internal/plan/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const planColumns = `id, name, slug, description, amount, currency, trial_days, user_type,
	billing_interval, interval_count, status, stripe_product_id, stripe_price_id, metadata,
	created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, plan *domain.Plan) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscription_plans (`+planColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.ID,
		plan.Name,
		plan.Slug,
		plan.Description,
		plan.Amount,
		plan.Currency,
		plan.TrialDays,
		plan.UserType,
		plan.Interval,
		plan.IntervalCount,
		plan.Status,
		plan.StripeProductID,
		plan.StripePriceID,
		plan.Metadata,
		plan.CreatedAt,
		plan.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Plan, error) {
	return r.findOne(ctx, db, `SELECT `+planColumns+` FROM subscription_plans WHERE id = ? LIMIT 1`, id)
}

func (r *repo) FindDuplicate(ctx context.Context, db *gorm.DB, name string, interval int, amount float64) (*domain.Plan, error) {
	return r.findOne(ctx, db,
		`SELECT `+planColumns+` FROM subscription_plans
		 WHERE name = ? AND billing_interval = ? AND amount = ?
		 LIMIT 1`,
		strings.TrimSpace(name), interval, amount,
	)
}

func (r *repo) ListByStatus(ctx context.Context, db *gorm.DB, status int) ([]domain.Plan, error) {
	var items []domain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT `+planColumns+` FROM subscription_plans
		 WHERE status = ?
		 ORDER BY created_at DESC, id DESC`,
		status,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindActiveByUserType(ctx context.Context, db *gorm.DB, userType int) (*domain.Plan, error) {
	return r.findOne(ctx, db,
		`SELECT `+planColumns+` FROM subscription_plans
		 WHERE user_type = ? AND status = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		userType, domain.StatusActive,
	)
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, plan *domain.Plan) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscription_plans
		 SET name = ?, slug = ?, description = ?, amount = ?, currency = ?, trial_days = ?,
		     user_type = ?, billing_interval = ?, interval_count = ?, status = ?,
		     stripe_product_id = ?, stripe_price_id = ?, metadata = ?, updated_at = ?
		 WHERE id = ?`,
		plan.Name,
		plan.Slug,
		plan.Description,
		plan.Amount,
		plan.Currency,
		plan.TrialDays,
		plan.UserType,
		plan.Interval,
		plan.IntervalCount,
		plan.Status,
		plan.StripeProductID,
		plan.StripePriceID,
		plan.Metadata,
		plan.UpdatedAt,
		plan.ID,
	).Error
}

func (r *repo) UpdateGatewayIDs(ctx context.Context, db *gorm.DB, id snowflake.ID, productID, priceID string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscription_plans
		 SET stripe_product_id = ?, stripe_price_id = ?, updated_at = ?
		 WHERE id = ?`,
		productID,
		priceID,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Exec(`DELETE FROM subscription_plans WHERE id = ?`, id)
	return result.RowsAffected, result.Error
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Plan, error) {
	var item domain.Plan
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}
