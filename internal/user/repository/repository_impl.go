package repository

import (
	"context"
	"errors"
	"time"

	userdomain "github.com/resumehub/billing/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() userdomain.Repository {
	return &repo{}
}

func (r *repo) GetByID(ctx context.Context, db *gorm.DB, id int64) (*userdomain.User, error) {
	var user userdomain.User
	err := db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, userdomain.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, user *userdomain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (
			id, username, first_name, last_name, token_balance, balance_version,
			subscription_end, is_blocked, auto_renew,
			last_subscription_notification, last_balance_notification,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			username = COALESCE(excluded.username, users.username),
			first_name = COALESCE(excluded.first_name, users.first_name),
			last_name = COALESCE(excluded.last_name, users.last_name),
			updated_at = excluded.updated_at`,
		user.ID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.Balance,
		user.BalanceVersion,
		user.SubscriptionEnd,
		user.IsBlocked,
		user.AutoRenew,
		user.LastSubscriptionNotification,
		user.LastBalanceNotification,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repo) UpdateBalance(ctx context.Context, db *gorm.DB, id int64, delta float64, expectedVersion int64) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE users
		 SET token_balance = token_balance + ?,
		     balance_version = balance_version + 1,
		     updated_at = ?
		 WHERE id = ? AND balance_version = ?`,
		delta,
		time.Now().UTC(),
		id,
		expectedVersion,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) UpdateSubscriptionEnd(ctx context.Context, db *gorm.DB, id int64, end time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET subscription_end = ?, updated_at = ? WHERE id = ?`,
		end.UTC(), time.Now().UTC(), id,
	).Error
}

func (r *repo) SetAutoRenew(ctx context.Context, db *gorm.DB, id int64, enabled bool) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET auto_renew = ?, updated_at = ? WHERE id = ?`,
		enabled, time.Now().UTC(), id,
	).Error
}

func (r *repo) SetSubscriptionNotification(ctx context.Context, db *gorm.DB, id int64, daysLeft int) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET last_subscription_notification = ?, updated_at = ? WHERE id = ?`,
		daysLeft, time.Now().UTC(), id,
	).Error
}

func (r *repo) ResetSubscriptionNotification(ctx context.Context, db *gorm.DB, id int64) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET last_subscription_notification = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	).Error
}

func (r *repo) SetBalanceNotification(ctx context.Context, db *gorm.DB, id int64, threshold int) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET last_balance_notification = ?, updated_at = ? WHERE id = ?`,
		threshold, time.Now().UTC(), id,
	).Error
}

func (r *repo) ResetBalanceNotification(ctx context.Context, db *gorm.DB, id int64) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET last_balance_notification = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	).Error
}

func (r *repo) ExpiringWithin(ctx context.Context, db *gorm.DB, now time.Time, d time.Duration) ([]userdomain.User, error) {
	var users []userdomain.User
	err := db.WithContext(ctx).
		Where("subscription_end > ? AND subscription_end <= ?", now.UTC(), now.UTC().Add(d)).
		Find(&users).Error
	return users, err
}

func (r *repo) Expired(ctx context.Context, db *gorm.DB, now time.Time) ([]userdomain.User, error) {
	var users []userdomain.User
	err := db.WithContext(ctx).
		Where("subscription_end IS NOT NULL AND subscription_end <= ?", now.UTC()).
		Find(&users).Error
	return users, err
}

func (r *repo) AutoRenewCandidates(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]userdomain.User, error) {
	var users []userdomain.User
	err := db.WithContext(ctx).
		Where("auto_renew = ? AND subscription_end IS NOT NULL AND subscription_end <= ?", true, cutoff.UTC()).
		Find(&users).Error
	return users, err
}
