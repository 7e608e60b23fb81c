package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	StatusInactive = 0
	StatusActive   = 1
)

const (
	IntervalMonthly = 0
	IntervalYearly  = 1
)

const DefaultCurrency = "USD"

// Plan is a catalog entry. Edits mutate the row in place; the gateway ids are
// cleared whenever a billing field changes so the next subscription provisions
// a fresh price.
type Plan struct {
	ID              snowflake.ID      `json:"id" gorm:"primaryKey"`
	Name            string            `json:"name" gorm:"type:text;not null"`
	Slug            string            `json:"slug" gorm:"type:text;not null"`
	Description     string            `json:"description" gorm:"type:text"`
	Amount          float64           `json:"amount" gorm:"not null"`
	Currency        string            `json:"currency" gorm:"type:text;not null;default:USD"`
	TrialDays       int               `json:"trialDays" gorm:"not null;default:0"`
	UserType        int               `json:"userType" gorm:"not null;default:0"`
	Interval        int               `json:"interval" gorm:"column:billing_interval;not null;default:0"`
	IntervalCount   int               `json:"intervalCount" gorm:"not null;default:1"`
	Status          int               `json:"status" gorm:"not null;default:1"`
	StripeProductID string            `json:"stripeProductId" gorm:"type:text"`
	StripePriceID   string            `json:"stripePriceId" gorm:"type:text"`
	Metadata        datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"createdAt" gorm:"not null"`
	UpdatedAt       time.Time         `json:"updatedAt" gorm:"not null"`
}

func (Plan) TableName() string { return "subscription_plans" }

func (p *Plan) IsActive() bool {
	return p != nil && p.Status == StatusActive
}

type CreateRequest struct {
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Amount        float64        `json:"amount"`
	Currency      string         `json:"currency"`
	TrialDays     int            `json:"trialDays"`
	UserType      int            `json:"userType"`
	Interval      int            `json:"interval"`
	IntervalCount int            `json:"intervalCount"`
	Status        *int           `json:"status"`
	Metadata      map[string]any `json:"metadata"`
}

type UpdateRequest struct {
	ID            snowflake.ID   `json:"-"`
	Name          *string        `json:"name"`
	Description   *string        `json:"description"`
	Amount        *float64       `json:"amount"`
	Currency      *string        `json:"currency"`
	TrialDays     *int           `json:"trialDays"`
	UserType      *int           `json:"userType"`
	Interval      *int           `json:"interval"`
	IntervalCount *int           `json:"intervalCount"`
	Status        *int           `json:"status"`
	Metadata      map[string]any `json:"metadata"`
}
