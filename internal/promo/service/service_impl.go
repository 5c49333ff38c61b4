package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/resumehub/billing/internal/clock"
	promodomain "github.com/resumehub/billing/internal/promo/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var minFinalAmount = decimal.NewFromInt(1)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  promodomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  promodomain.Repository
}

func NewService(p Params) promodomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("promo.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Validate(ctx context.Context, code string, tariffID *uuid.UUID, userID *int64) (*promodomain.PromoCode, error) {
	promo, err := s.repo.GetByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if !promo.IsActive {
		return nil, promodomain.ErrInactive
	}
	if now.Before(promo.ValidFrom) {
		return nil, promodomain.ErrNotStarted
	}
	if promo.ValidUntil != nil && now.After(*promo.ValidUntil) {
		return nil, promodomain.ErrExpired
	}
	if promo.MaxUses != nil && promo.UsesCount >= *promo.MaxUses {
		return nil, promodomain.ErrExhausted
	}
	if promo.TariffID != nil && tariffID != nil && *promo.TariffID != *tariffID {
		return nil, promodomain.ErrWrongTariff
	}
	if userID != nil && tariffID != nil {
		used, err := s.repo.ActivationExists(ctx, s.db, *userID, *tariffID)
		if err != nil {
			return nil, err
		}
		if used {
			return nil, promodomain.ErrAlreadyUsed
		}
	}
	return promo, nil
}

func (s *Service) Apply(promo *promodomain.PromoCode, original decimal.Decimal) promodomain.Discount {
	switch promo.DiscountType {
	case promodomain.DiscountPercent:
		factor := decimal.NewFromInt(1).Sub(promo.DiscountValue.Div(decimal.NewFromInt(100)))
		final := original.Mul(factor).Round(2)
		return promodomain.Discount{
			Original:       original,
			Final:          final,
			DiscountAmount: original.Sub(final),
			Description:    fmt.Sprintf("Скидка %s%%", trimZeros(promo.DiscountValue)),
		}
	case promodomain.DiscountFixed:
		final := original.Sub(promo.DiscountValue)
		if final.LessThan(minFinalAmount) {
			final = minFinalAmount
		}
		return promodomain.Discount{
			Original:       original,
			Final:          final,
			DiscountAmount: original.Sub(final),
			Description:    fmt.Sprintf("Скидка %s ₽", trimZeros(promo.DiscountValue)),
		}
	case promodomain.DiscountBonusTokens:
		return promodomain.Discount{
			Original:    original,
			Final:       original,
			BonusTokens: int(promo.DiscountValue.IntPart()),
			Description: fmt.Sprintf("+%d бонусных токенов", int(promo.DiscountValue.IntPart())),
		}
	default:
		return promodomain.Discount{Original: original, Final: original}
	}
}

func (s *Service) IncrementUses(ctx context.Context, promoID uuid.UUID) (int, error) {
	return s.repo.IncrementUses(ctx, s.db, promoID)
}

func (s *Service) RecordActivation(ctx context.Context, activation *promodomain.PromoActivation) error {
	if activation.ID == uuid.Nil {
		activation.ID = uuid.New()
	}
	if activation.CreatedAt.IsZero() {
		activation.CreatedAt = s.clock.Now()
	}
	return s.repo.InsertActivation(ctx, s.db, activation)
}

// trimZeros renders "20.00" as "20" and "12.50" as "12.5".
func trimZeros(d decimal.Decimal) string {
	s := d.String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}
