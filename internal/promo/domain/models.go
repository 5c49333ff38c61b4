// Package domain contains promo code models and the discount calculus.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountType selects the discount calculus for a promo code.
type DiscountType string

const (
	DiscountPercent     DiscountType = "percent"
	DiscountFixed       DiscountType = "fixed"
	DiscountBonusTokens DiscountType = "bonus_tokens"
)

// PromoCode is a reusable discount voucher. Code matching is
// case-insensitive; codes are stored uppercased.
type PromoCode struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Code          string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	DiscountType  DiscountType    `gorm:"type:varchar(20);not null"`
	DiscountValue decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	MaxUses       *int            `gorm:""`
	UsesCount     int             `gorm:"not null;default:0"`
	ValidFrom     time.Time       `gorm:"not null"`
	ValidUntil    *time.Time      `gorm:""`
	TariffID      *uuid.UUID      `gorm:"type:uuid"`
	IsActive      bool            `gorm:"not null;default:true"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PromoCode) TableName() string { return "promo_codes" }

// PromoActivation records a promo applied for a (user, tariff) pair.
// The pair is unique: one promo per tariff per user, ever.
type PromoActivation struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID                int64     `gorm:"not null;uniqueIndex:ux_promo_activation_user_tariff"`
	TariffID              uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_promo_activation_user_tariff"`
	PromoCodeID           uuid.UUID `gorm:"type:uuid;not null"`
	TokensCredited        int       `gorm:"not null;default:0"`
	SubscriptionDaysAdded int       `gorm:"not null;default:0"`
	CreatedAt             time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PromoActivation) TableName() string { return "promo_activations" }
