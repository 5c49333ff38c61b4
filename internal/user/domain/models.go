// Package domain contains the persistence model for end users.
package domain

import (
	"time"
)

// User is an end user keyed by the externally assigned chat identifier.
// Balance is mutated only through the ledger; BalanceVersion increases
// by one on every committed mutation (optimistic concurrency).
type User struct {
	ID              int64      `gorm:"primaryKey"`
	Username        *string    `gorm:"type:varchar(255)"`
	FirstName       *string    `gorm:"type:varchar(255)"`
	LastName        *string    `gorm:"type:varchar(255)"`
	Balance         float64    `gorm:"column:token_balance;not null;default:0"`
	BalanceVersion  int64      `gorm:"not null;default:0"`
	SubscriptionEnd *time.Time `gorm:""`
	IsBlocked       bool       `gorm:"not null;default:false"`
	AutoRenew       bool       `gorm:"not null;default:true"`

	// Smallest days-before-expiry bucket already notified this cycle.
	LastSubscriptionNotification *int `gorm:""`
	// Lowest balance threshold already notified since the last credit.
	LastBalanceNotification *int `gorm:""`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// SubscriptionActive reports whether the subscription window is open at now.
func (u *User) SubscriptionActive(now time.Time) bool {
	return u.SubscriptionEnd != nil && u.SubscriptionEnd.After(now)
}
