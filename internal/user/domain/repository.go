package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Repository is the data-access contract for users. Implementations take
// the handle explicitly so callers can pass a transaction.
type Repository interface {
	GetByID(ctx context.Context, db *gorm.DB, id int64) (*User, error)
	Upsert(ctx context.Context, db *gorm.DB, user *User) error

	// UpdateBalance applies delta iff balance_version matches. Returns the
	// number of rows affected; zero means a concurrent writer won.
	UpdateBalance(ctx context.Context, db *gorm.DB, id int64, delta float64, expectedVersion int64) (int64, error)

	UpdateSubscriptionEnd(ctx context.Context, db *gorm.DB, id int64, end time.Time) error
	SetAutoRenew(ctx context.Context, db *gorm.DB, id int64, enabled bool) error

	SetSubscriptionNotification(ctx context.Context, db *gorm.DB, id int64, daysLeft int) error
	ResetSubscriptionNotification(ctx context.Context, db *gorm.DB, id int64) error
	SetBalanceNotification(ctx context.Context, db *gorm.DB, id int64, threshold int) error
	ResetBalanceNotification(ctx context.Context, db *gorm.DB, id int64) error

	// ExpiringWithin returns users whose subscription ends in (now, now+d].
	ExpiringWithin(ctx context.Context, db *gorm.DB, now time.Time, d time.Duration) ([]User, error)
	// Expired returns users whose subscription end has passed.
	Expired(ctx context.Context, db *gorm.DB, now time.Time) ([]User, error)
	// AutoRenewCandidates returns users with auto_renew on and a
	// subscription ending before the cutoff.
	AutoRenewCandidates(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]User, error)
}
