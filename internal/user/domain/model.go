package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	UserTypeInspector = 0
	UserTypeClient    = 1
)

// User is the billing-relevant projection of an account. The subscription
// fields cache the state of the current Subscription row and are ordered by
// StatusUpdatedAt.
type User struct {
	ID                           snowflake.ID `json:"id" gorm:"primaryKey"`
	Email                        string       `json:"email" gorm:"size:255;not null;uniqueIndex"`
	PasswordHash                 string       `json:"-" gorm:"type:text;not null"`
	Role                         string       `json:"role" gorm:"type:text;not null;default:user"`
	UserType                     int          `json:"userType" gorm:"not null;default:0"`
	StripeCustomerID             string       `json:"stripeCustomerId" gorm:"size:255;index"`
	SubscriptionStatus           string       `json:"subscriptionStatus" gorm:"type:text"`
	CurrentSubscriptionID        string       `json:"currentSubscriptionId" gorm:"type:text"`
	CurrentSubscriptionTrialDays int          `json:"currentSubscriptionTrialDays" gorm:"not null;default:0"`
	StatusUpdatedAt              *time.Time   `json:"statusUpdatedAt,omitempty"`
	IsDeleted                    bool         `json:"-" gorm:"not null;default:false"`
	CreatedAt                    time.Time    `json:"createdAt" gorm:"not null"`
	UpdatedAt                    time.Time    `json:"updatedAt" gorm:"not null"`
}

func (User) TableName() string { return "users" }

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// SubscriptionState is the cached subscription projection written onto a User.
// Nil pointers leave the column unchanged.
type SubscriptionState struct {
	CurrentSubscriptionID *string
	Status                string
	TrialDays             *int
	UpdatedAt             time.Time
}
