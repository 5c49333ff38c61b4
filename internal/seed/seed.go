// Package seed provisions the default tariff catalog and starter promo
// codes on an empty store.
package seed

import (
	"context"

	"github.com/google/uuid"
	"github.com/resumehub/billing/internal/clock"
	promodomain "github.com/resumehub/billing/internal/promo/domain"
	tariffdomain "github.com/resumehub/billing/internal/tariff/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	TariffRepo tariffdomain.Repository
	PromoRepo  promodomain.Repository
}

func Run(p Params) error {
	ctx := context.Background()
	log := p.Log.Named("seed")
	now := p.Clock.Now()

	existing, err := p.TariffRepo.ListActive(ctx, p.DB)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	desc := "Ежемесячная подписка: 200 токенов и 30 дней доступа"
	tariffs := []tariffdomain.Tariff{
		{
			ID:               uuid.New(),
			Slug:             "monthly",
			Name:             "Месячный",
			Description:      &desc,
			Price:            decimal.NewFromInt(200),
			Tokens:           200,
			PeriodUnit:       tariffdomain.PeriodUnitDay,
			PeriodValue:      30,
			SubscriptionFee:  100,
			SubscriptionDays: 0,
			MinPayment:       decimal.NewFromInt(100),
			SortOrder:        1,
			IsActive:         true,
			Version:          1,
			CreatedAt:        now,
			UpdatedAt:        now,
		},
		{
			ID:          uuid.New(),
			Slug:        "tokens-500",
			Name:        "Пакет 500 токенов",
			Price:       decimal.NewFromInt(500),
			Tokens:      500,
			PeriodUnit:  tariffdomain.PeriodUnitDay,
			PeriodValue: 30,
			SubscriptionDays: 30,
			MinPayment:  decimal.NewFromInt(100),
			SortOrder:   2,
			IsActive:    true,
			Version:     1,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	for i := range tariffs {
		if err := p.TariffRepo.Insert(ctx, p.DB, &tariffs[i]); err != nil {
			return err
		}
	}

	maxUses := 100
	promos := []promodomain.PromoCode{
		{
			ID:            uuid.New(),
			Code:          "SALE20",
			DiscountType:  promodomain.DiscountPercent,
			DiscountValue: decimal.NewFromInt(20),
			ValidFrom:     now,
			IsActive:      true,
			CreatedAt:     now,
		},
		{
			ID:            uuid.New(),
			Code:          "PLUS50",
			DiscountType:  promodomain.DiscountBonusTokens,
			DiscountValue: decimal.NewFromInt(50),
			MaxUses:       &maxUses,
			ValidFrom:     now,
			IsActive:      true,
			CreatedAt:     now,
		},
	}
	for i := range promos {
		if err := p.PromoRepo.Insert(ctx, p.DB, &promos[i]); err != nil {
			return err
		}
	}

	log.Info("seeded default catalog",
		zap.Int("tariffs", len(tariffs)),
		zap.Int("promo_codes", len(promos)),
	)
	return nil
}

var Module = fx.Module("seed",
	fx.Invoke(Run),
)
