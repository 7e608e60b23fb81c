// Package domain contains the local mirror of gateway subscriptions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Subscription mirrors a gateway subscription. Raw keeps the last gateway
// snapshot written by the orchestrator.
type Subscription struct {
	ID                   snowflake.ID      `json:"id" gorm:"primaryKey"`
	UserID               snowflake.ID      `json:"userId" gorm:"not null;index"`
	PlanID               snowflake.ID      `json:"planId" gorm:"not null;default:0"`
	StripeSubscriptionID string            `json:"stripeSubscriptionId" gorm:"size:255;not null;uniqueIndex"`
	CustomerID           string            `json:"customerId" gorm:"size:255;not null;index"`
	ProductID            string            `json:"productId" gorm:"type:text"`
	PriceID              string            `json:"priceId" gorm:"type:text"`
	Status               Status            `json:"stripeSubscriptionStatus" gorm:"type:text;not null"`
	CollectionMethod     string            `json:"collectionMethod" gorm:"type:text"`
	StartDate            int64             `json:"startDate"`
	CurrentPeriodStart   int64             `json:"currentPeriodStart"`
	CurrentPeriodEnd     int64             `json:"currentPeriodEnd"`
	TrialStart           int64             `json:"trialStart"`
	TrialEnd             int64             `json:"trialEnd"`
	Amount               int64             `json:"amount"`
	Currency             string            `json:"currency" gorm:"type:text"`
	Interval             string            `json:"interval" gorm:"column:billing_interval;type:text"`
	IntervalCount        int64             `json:"intervalCount"`
	LatestInvoiceID      string            `json:"latestInvoiceId" gorm:"type:text"`
	LatestInvoiceURL     string            `json:"latestInvoiceUrl" gorm:"type:text"`
	LatestInvoicePDF     string            `json:"latestInvoicePdf" gorm:"type:text"`
	LatestSessionID      string            `json:"latestSessionId" gorm:"type:text"`
	Livemode             bool              `json:"livemode" gorm:"not null;default:false"`
	Metadata             datatypes.JSONMap `json:"metadata"`
	SubscriptionJSON     datatypes.JSON    `json:"-"`
	StatusUpdatedAt      time.Time         `json:"statusUpdatedAt" gorm:"not null"`
	CreatedAt            time.Time         `json:"createdAt" gorm:"not null"`
	UpdatedAt            time.Time         `json:"updatedAt" gorm:"not null"`
}

func (Subscription) TableName() string { return "subscriptions" }

// IsActive reports whether the subscription currently grants access.
func (s *Subscription) IsActive() bool {
	if s == nil {
		return false
	}
	switch s.Status {
	case StatusActive, StatusTrialing:
		return true
	default:
		return false
	}
}

// StatusUpdate carries the fields a webhook may overwrite. Zero periods leave
// the stored values in place.
type StatusUpdate struct {
	Status             Status
	CurrentPeriodStart int64
	CurrentPeriodEnd   int64
	LatestSessionID    string
	UpdatedAt          time.Time
}
