package model

import (
	"time"

	"gorm.io/datatypes"
)

// Subscription lifecycle statuses as reported by Polar.
const (
	StatusTrialing = "trialing"
	StatusActive   = "active"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
	StatusUnpaid   = "unpaid"
	StatusRevoked  = "revoked"
	StatusPaused   = "paused"
)

// BillingSubscription mirrors one Polar subscription into the local database.
// The primary key is the provider-assigned subscription id, so webhook
// redelivery collapses into an idempotent upsert. A user can own several rows
// across re-subscriptions; the newest updated_at wins as "current".
type BillingSubscription struct {
	ID                 string         `json:"id" gorm:"primaryKey"`
	UserID             string         `json:"user_id" gorm:"index;not null"`
	ProductID          *string        `json:"product_id"`
	ProductName        *string        `json:"product_name"`
	Status             string         `json:"status" gorm:"not null"`
	StartedAt          *time.Time     `json:"started_at"`
	CurrentPeriodStart *time.Time     `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time     `json:"current_period_end"`
	CanceledAt         *time.Time     `json:"canceled_at"`
	CancelAtPeriodEnd  bool           `json:"cancel_at_period_end"`
	Metadata           datatypes.JSON `json:"metadata"`
	UpdatedAt          time.Time      `json:"updated_at" gorm:"index;autoUpdateTime:false"`
}

func (BillingSubscription) TableName() string {
	return "billing_subscriptions"
}
