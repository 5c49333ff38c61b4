package domain

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	GetByCode(ctx context.Context, db *gorm.DB, code string) (*PromoCode, error)
	GetByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*PromoCode, error)
	// IncrementUses bumps uses_count in one statement and returns the
	// new value.
	IncrementUses(ctx context.Context, db *gorm.DB, id uuid.UUID) (int, error)
	InsertActivation(ctx context.Context, db *gorm.DB, activation *PromoActivation) error
	ActivationExists(ctx context.Context, db *gorm.DB, userID int64, tariffID uuid.UUID) (bool, error)
	Insert(ctx context.Context, db *gorm.DB, promo *PromoCode) error
}
