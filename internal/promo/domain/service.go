package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Discount is the outcome of applying a valid promo to an amount.
type Discount struct {
	Original       decimal.Decimal
	Final          decimal.Decimal
	DiscountAmount decimal.Decimal
	BonusTokens    int
	Description    string
}

type Service interface {
	// Validate runs the rule chain against a code and returns the promo
	// when every rule passes. Rules run in a fixed order; the first
	// failure wins.
	Validate(ctx context.Context, code string, tariffID *uuid.UUID, userID *int64) (*PromoCode, error)
	// Apply computes the discount of a validated promo on an amount.
	Apply(promo *PromoCode, original decimal.Decimal) Discount
	// IncrementUses atomically bumps the usage counter. Called once per
	// issued invoice that bound the promo, not at validation time.
	IncrementUses(ctx context.Context, promoID uuid.UUID) (int, error)
	// RecordActivation persists the (user, tariff, promo) activation.
	RecordActivation(ctx context.Context, activation *PromoActivation) error
}

var (
	ErrNotFound    = errors.New("promo_not_found")
	ErrInactive    = errors.New("promo_inactive")
	ErrNotStarted  = errors.New("promo_not_started")
	ErrExpired     = errors.New("promo_expired")
	ErrExhausted   = errors.New("promo_exhausted")
	ErrWrongTariff = errors.New("promo_wrong_tariff")
	ErrAlreadyUsed = errors.New("promo_already_used")
)
