package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	tariffdomain "github.com/resumehub/billing/internal/tariff/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() tariffdomain.Repository {
	return &repo{}
}

func (r *repo) GetByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*tariffdomain.Tariff, error) {
	var tariff tariffdomain.Tariff
	err := db.WithContext(ctx).Where("id = ?", id).First(&tariff).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tariffdomain.ErrNotFound
		}
		return nil, err
	}
	return &tariff, nil
}

func (r *repo) GetBySlug(ctx context.Context, db *gorm.DB, slug string) (*tariffdomain.Tariff, error) {
	var tariff tariffdomain.Tariff
	err := db.WithContext(ctx).Where("slug = ?", slug).First(&tariff).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tariffdomain.ErrNotFound
		}
		return nil, err
	}
	return &tariff, nil
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB) ([]tariffdomain.Tariff, error) {
	var tariffs []tariffdomain.Tariff
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order ASC, created_at ASC").
		Find(&tariffs).Error
	return tariffs, err
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tariff *tariffdomain.Tariff) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tariffs (
			id, slug, name, description, price, tokens,
			period_unit, period_value, subscription_fee, subscription_days,
			min_payment, sort_order, is_active, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tariff.ID,
		tariff.Slug,
		tariff.Name,
		tariff.Description,
		tariff.Price,
		tariff.Tokens,
		tariff.PeriodUnit,
		tariff.PeriodValue,
		tariff.SubscriptionFee,
		tariff.SubscriptionDays,
		tariff.MinPayment,
		tariff.SortOrder,
		tariff.IsActive,
		tariff.Version,
		tariff.CreatedAt,
		tariff.UpdatedAt,
	).Error
}
