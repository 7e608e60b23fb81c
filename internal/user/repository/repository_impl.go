package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/inspectconnect/internal/user/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const userColumns = `id, email, password_hash, role, user_type, stripe_customer_id,
	subscription_status, current_subscription_id, current_subscription_trial_days,
	status_updated_at, is_deleted, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.UserType,
		user.StripeCustomerID,
		user.SubscriptionStatus,
		user.CurrentSubscriptionID,
		user.CurrentSubscriptionTrialDays,
		user.StatusUpdatedAt,
		user.IsDeleted,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	return r.findOne(ctx, db, `SELECT `+userColumns+` FROM users WHERE id = ? AND is_deleted = ? LIMIT 1`, id, false)
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.findOne(ctx, db, `SELECT `+userColumns+` FROM users WHERE email = ? AND is_deleted = ? LIMIT 1`, email, false)
}

func (r *repo) FindByStripeCustomerID(ctx context.Context, db *gorm.DB, customerID string) (*domain.User, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, nil
	}
	return r.findOne(ctx, db, `SELECT `+userColumns+` FROM users WHERE stripe_customer_id = ? AND is_deleted = ? LIMIT 1`, customerID, false)
}

func (r *repo) FindByStripeCustomerIDForUpdate(ctx context.Context, db *gorm.DB, customerID string) (*domain.User, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, nil
	}

	var item domain.User
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("stripe_customer_id = ? AND is_deleted = ?", customerID, false).
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) UpdateStripeCustomerID(ctx context.Context, db *gorm.DB, id snowflake.ID, customerID string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users
		 SET stripe_customer_id = ?, updated_at = ?
		 WHERE id = ?`,
		customerID,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) UpdateSubscriptionState(ctx context.Context, db *gorm.DB, id snowflake.ID, state domain.SubscriptionState) error {
	sets := []string{"subscription_status = ?", "status_updated_at = ?", "updated_at = ?"}
	args := []any{state.Status, state.UpdatedAt, time.Now().UTC()}
	if state.CurrentSubscriptionID != nil {
		sets = append(sets, "current_subscription_id = ?")
		args = append(args, *state.CurrentSubscriptionID)
	}
	if state.TrialDays != nil {
		sets = append(sets, "current_subscription_trial_days = ?")
		args = append(args, *state.TrialDays)
	}
	args = append(args, id)

	return db.WithContext(ctx).Exec(
		`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`,
		args...,
	).Error
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.User, error) {
	var item domain.User
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}
