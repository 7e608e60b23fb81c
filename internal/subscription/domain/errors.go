package domain

import "errors"

var (
	ErrInvalidCustomer          = errors.New("invalid_customer")
	ErrInvalidPlan              = errors.New("invalid_plan")
	ErrUserNotRegistered        = errors.New("user_not_registered")
	ErrPlanNotFound             = errors.New("plan_not_found")
	ErrCreateProductFailed      = errors.New("create_product_failed")
	ErrCreateSubscriptionFailed = errors.New("create_subscription_failed")
	ErrSubscriptionNotFound     = errors.New("subscription_not_found")
)
