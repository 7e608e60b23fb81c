package domain

import "errors"

var (
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidCurrency   = errors.New("invalid_currency")
	ErrInvalidTrialDays  = errors.New("invalid_trial_days")
	ErrInvalidUserType   = errors.New("invalid_user_type")
	ErrInvalidInterval   = errors.New("invalid_interval")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidID         = errors.New("invalid_id")
	ErrPlanAlreadyExists = errors.New("subscription_plan_already_exists")
	ErrCreateProduct     = errors.New("create_product_failed")
	ErrNoPlansFound      = errors.New("no_subscription_plans_found")
	ErrNotFound          = errors.New("subscription_plan_not_found")
)
