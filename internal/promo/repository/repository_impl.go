package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	promodomain "github.com/resumehub/billing/internal/promo/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() promodomain.Repository {
	return &repo{}
}

func (r *repo) GetByCode(ctx context.Context, db *gorm.DB, code string) (*promodomain.PromoCode, error) {
	var promo promodomain.PromoCode
	err := db.WithContext(ctx).
		Where("UPPER(code) = ?", strings.ToUpper(code)).
		First(&promo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, promodomain.ErrNotFound
		}
		return nil, err
	}
	return &promo, nil
}

func (r *repo) GetByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*promodomain.PromoCode, error) {
	var promo promodomain.PromoCode
	err := db.WithContext(ctx).Where("id = ?", id).First(&promo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, promodomain.ErrNotFound
		}
		return nil, err
	}
	return &promo, nil
}

func (r *repo) IncrementUses(ctx context.Context, db *gorm.DB, id uuid.UUID) (int, error) {
	var count int
	err := db.WithContext(ctx).Raw(
		`UPDATE promo_codes SET uses_count = uses_count + 1 WHERE id = ? RETURNING uses_count`,
		id,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) InsertActivation(ctx context.Context, db *gorm.DB, activation *promodomain.PromoActivation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO promo_activations (
			id, user_id, tariff_id, promo_code_id,
			tokens_credited, subscription_days_added, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		activation.ID,
		activation.UserID,
		activation.TariffID,
		activation.PromoCodeID,
		activation.TokensCredited,
		activation.SubscriptionDaysAdded,
		activation.CreatedAt,
	).Error
}

func (r *repo) ActivationExists(ctx context.Context, db *gorm.DB, userID int64, tariffID uuid.UUID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Table("promo_activations").
		Where("user_id = ? AND tariff_id = ?", userID, tariffID).
		Count(&count).Error
	return count > 0, err
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, promo *promodomain.PromoCode) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO promo_codes (
			id, code, discount_type, discount_value, max_uses, uses_count,
			valid_from, valid_until, tariff_id, is_active, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		promo.ID,
		strings.ToUpper(promo.Code),
		promo.DiscountType,
		promo.DiscountValue,
		promo.MaxUses,
		promo.UsesCount,
		promo.ValidFrom,
		promo.ValidUntil,
		promo.TariffID,
		promo.IsActive,
		promo.CreatedAt,
	).Error
}
