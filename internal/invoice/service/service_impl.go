package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	auditdomain "github.com/resumehub/billing/internal/audit/domain"
	"github.com/resumehub/billing/internal/clock"
	"github.com/resumehub/billing/internal/config"
	invoicedomain "github.com/resumehub/billing/internal/invoice/domain"
	"github.com/resumehub/billing/internal/observability/metrics"
	paymentdomain "github.com/resumehub/billing/internal/payment/domain"
	promodomain "github.com/resumehub/billing/internal/promo/domain"
	tariffdomain "github.com/resumehub/billing/internal/tariff/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Config     config.Config
	Repo       invoicedomain.Repository
	TariffRepo tariffdomain.Repository
	PromoSvc   promodomain.Service
	Provider   paymentdomain.Provider
	AuditSvc   auditdomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	cfg        config.Config
	repo       invoicedomain.Repository
	tariffRepo tariffdomain.Repository
	promoSvc   promodomain.Service
	provider   paymentdomain.Provider
	audit      auditdomain.Service
}

func NewService(p Params) invoicedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("invoice.service"),
		clock:      p.Clock,
		cfg:        p.Config,
		repo:       p.Repo,
		tariffRepo: p.TariffRepo,
		promoSvc:   p.PromoSvc,
		provider:   p.Provider,
		audit:      p.AuditSvc,
	}
}

func (s *Service) Preview(ctx context.Context, req invoicedomain.CreateRequest) (*invoicedomain.Preview, error) {
	tariff, err := s.tariffRepo.GetByID(ctx, s.db, req.TariffID)
	if err != nil {
		return nil, err
	}
	if !tariff.IsActive {
		return nil, tariffdomain.ErrInactive
	}

	preview := &invoicedomain.Preview{
		TariffID:         tariff.ID,
		TariffName:       tariff.Name,
		OriginalAmount:   tariff.Price,
		Amount:           tariff.Price,
		Tokens:           tariff.Tokens,
		SubscriptionDays: tariff.SubscriptionDays,
	}
	if req.PromoCode != nil && *req.PromoCode != "" {
		promo, err := s.promoSvc.Validate(ctx, *req.PromoCode, &tariff.ID, &req.UserID)
		if err == nil {
			discount := s.promoSvc.Apply(promo, tariff.Price)
			preview.Amount = discount.Final
			preview.DiscountAmount = discount.DiscountAmount
			preview.Tokens += discount.BonusTokens
			preview.PromoApplied = true
			preview.PromoDescription = discount.Description
		}
	}
	return preview, nil
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateRequest) (*invoicedomain.Invoice, error) {
	tariff, err := s.tariffRepo.GetByID(ctx, s.db, req.TariffID)
	if err != nil {
		return nil, err
	}
	if !tariff.IsActive {
		return nil, tariffdomain.ErrInactive
	}

	var promo *promodomain.PromoCode
	if req.PromoCode != nil && *req.PromoCode != "" {
		promo, err = s.promoSvc.Validate(ctx, *req.PromoCode, &tariff.ID, &req.UserID)
		if err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	key := s.idempotencyKey(req, now)

	var result *invoicedomain.Invoice
	err = s.db.Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.GetByIdempotencyKey(ctx, tx, key)
		if err != nil {
			return err
		}
		if existing != nil && existing.Status == invoicedomain.StatusPending {
			result = existing
			return nil
		}
		// A terminal invoice occupies the key; disambiguate until free.
		for i := 1; existing != nil; i++ {
			key = fmt.Sprintf("%s:%d", s.idempotencyKey(req, now), i)
			existing, err = s.repo.GetByIdempotencyKey(ctx, tx, key)
			if err != nil {
				return err
			}
			if existing != nil && existing.Status == invoicedomain.StatusPending {
				result = existing
				return nil
			}
		}

		amount := tariff.Price
		tokens := tariff.Tokens
		var promoID *uuid.UUID
		if promo != nil {
			discount := s.promoSvc.Apply(promo, tariff.Price)
			amount = discount.Final
			tokens += discount.BonusTokens
			promoID = &promo.ID
		}

		ref, err := s.repo.NextGatewayRef(ctx, tx)
		if err != nil {
			return err
		}

		inv := &invoicedomain.Invoice{
			ID:               uuid.New(),
			GatewayRef:       ref,
			UserID:           req.UserID,
			TariffID:         tariff.ID,
			PromoCodeID:      promoID,
			Amount:           amount,
			OriginalAmount:   tariff.Price,
			Tokens:           tokens,
			SubscriptionDays: tariff.SubscriptionDays,
			Status:           invoicedomain.StatusPending,
			IdempotencyKey:   key,
			ExpiresAt:        now.Add(time.Duration(s.cfg.InvoiceTTLHours) * time.Hour),
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		url, err := s.provider.BuildPaymentURL(inv)
		if err != nil {
			return err
		}
		inv.PaymentURL = &url

		if err := s.repo.Insert(ctx, tx, inv); err != nil {
			return err
		}
		if promo != nil {
			if _, err := s.promoSvc.IncrementUses(ctx, promo.ID); err != nil {
				return err
			}
		}
		result = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.InvoicesCreatedTotal.WithLabelValues(s.provider.Name()).Inc()
	s.audit.Record(ctx, auditdomain.Entry{
		Action:     "invoice.created",
		EntityType: "invoice",
		EntityID:   result.ID.String(),
		UserID:     &req.UserID,
		NewValue: map[string]interface{}{
			"gateway_ref": result.GatewayRef,
			"amount":      result.Amount.String(),
			"tokens":      result.Tokens,
			"status":      string(result.Status),
		},
	})
	return result, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*invoicedomain.Invoice, error) {
	return s.repo.GetByID(ctx, s.db, id)
}

func (s *Service) GetByGatewayRef(ctx context.Context, ref int64) (*invoicedomain.Invoice, error) {
	return s.repo.GetByGatewayRef(ctx, s.db, ref)
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*invoicedomain.Invoice, error) {
	now := s.clock.Now()
	affected, err := s.repo.MarkCancelled(ctx, s.db, id, now)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		if _, err := s.repo.GetByID(ctx, s.db, id); err != nil {
			return nil, err
		}
		return nil, invoicedomain.ErrNotPending
	}
	return s.repo.GetByID(ctx, s.db, id)
}

func (s *Service) ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	count, err := s.repo.ExpireBefore(ctx, s.db, cutoff, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		metrics.InvoicesExpiredTotal.Add(float64(count))
		s.audit.Record(ctx, auditdomain.Entry{
			Action:     "invoices.expired",
			EntityType: "invoice",
			Metadata:   map[string]interface{}{"count": count, "cutoff": cutoff},
		})
		s.log.Info("expired pending invoices", zap.Int64("count", count))
	}
	return count, nil
}

// idempotencyKey collapses repeated purchase attempts within the same
// hour onto one key.
func (s *Service) idempotencyKey(req invoicedomain.CreateRequest, now time.Time) string {
	window := now.UTC().Truncate(time.Hour)
	promoCode := ""
	if req.PromoCode != nil {
		promoCode = *req.PromoCode
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s:%s:%d", req.UserID, req.TariffID, promoCode, window.Unix())))
	return fmt.Sprintf("%d:%s:%s", req.UserID, req.TariffID, hex.EncodeToString(sum[:])[:16])
}
