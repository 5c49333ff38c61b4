package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	auditdomain "github.com/resumehub/billing/internal/audit/domain"
	"github.com/resumehub/billing/internal/clock"
	invoicedomain "github.com/resumehub/billing/internal/invoice/domain"
	ledgerdomain "github.com/resumehub/billing/internal/ledger/domain"
	notifierdomain "github.com/resumehub/billing/internal/notifier/domain"
	"github.com/resumehub/billing/internal/observability/metrics"
	paymentdomain "github.com/resumehub/billing/internal/payment/domain"
	promodomain "github.com/resumehub/billing/internal/promo/domain"
	tariffdomain "github.com/resumehub/billing/internal/tariff/domain"
	userdomain "github.com/resumehub/billing/internal/user/domain"
	"github.com/resumehub/billing/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxAttempts = 3

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Provider    paymentdomain.Provider
	InvoiceRepo invoicedomain.Repository
	TariffRepo  tariffdomain.Repository
	UserRepo    userdomain.Repository
	PromoRepo   promodomain.Repository
	LedgerRepo  ledgerdomain.Repository
	LedgerSvc   ledgerdomain.Service
	NotifierSvc notifierdomain.Service
	AuditSvc    auditdomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	provider    paymentdomain.Provider
	invoiceRepo invoicedomain.Repository
	tariffRepo  tariffdomain.Repository
	userRepo    userdomain.Repository
	promoRepo   promodomain.Repository
	ledgerRepo  ledgerdomain.Repository
	ledger      ledgerdomain.Service
	notifier    notifierdomain.Service
	audit       auditdomain.Service
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		clock:       p.Clock,
		provider:    p.Provider,
		invoiceRepo: p.InvoiceRepo,
		tariffRepo:  p.TariffRepo,
		userRepo:    p.UserRepo,
		promoRepo:   p.PromoRepo,
		ledgerRepo:  p.LedgerRepo,
		ledger:      p.LedgerSvc,
		notifier:    p.NotifierSvc,
		audit:       p.AuditSvc,
	}
}

type paidOutcome struct {
	invoice        *invoicedomain.Invoice
	replay         bool
	balanceBefore  float64
	balanceAfter   float64
	subEndBefore   interface{}
	subEndAfter    interface{}
	tokensCredited float64
	description    string
}

func (s *Service) ProcessWebhook(ctx context.Context, w paymentdomain.Webhook) (*invoicedomain.Invoice, error) {
	var outcome *paidOutcome
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		outcome, err = s.processOnce(ctx, w)
		if err == nil || !errors.Is(err, ledgerdomain.ErrConcurrentModification) {
			break
		}
	}
	if err != nil {
		metrics.PaymentsTotal.WithLabelValues(s.provider.Name(), "error").Inc()
		return nil, err
	}
	if outcome.replay {
		metrics.PaymentsTotal.WithLabelValues(s.provider.Name(), "replay").Inc()
		return outcome.invoice, nil
	}

	metrics.PaymentsTotal.WithLabelValues(s.provider.Name(), "paid").Inc()
	amount, _ := outcome.invoice.Amount.Float64()
	metrics.PaymentAmount.WithLabelValues(s.provider.Name()).Observe(amount)

	s.audit.Record(ctx, auditdomain.Entry{
		Action:     "payment.processed",
		EntityType: "invoice",
		EntityID:   outcome.invoice.ID.String(),
		UserID:     &outcome.invoice.UserID,
		OldValue: map[string]interface{}{
			"balance":          outcome.balanceBefore,
			"subscription_end": outcome.subEndBefore,
		},
		NewValue: map[string]interface{}{
			"balance":          outcome.balanceAfter,
			"subscription_end": outcome.subEndAfter,
		},
		Metadata: map[string]interface{}{
			"gateway_ref":     outcome.invoice.GatewayRef,
			"amount":          outcome.invoice.Amount.String(),
			"tokens_credited": outcome.tokensCredited,
		},
	})
	s.notifier.Notify(ctx, notifierdomain.Notification{
		UserID:  outcome.invoice.UserID,
		Kind:    notifierdomain.KindPaymentSuccess,
		Message: outcome.description,
		Payload: map[string]interface{}{
			"invoice_id":    outcome.invoice.ID.String(),
			"amount":        outcome.invoice.Amount.String(),
			"balance_after": outcome.balanceAfter,
		},
	})
	return outcome.invoice, nil
}

func (s *Service) processOnce(ctx context.Context, w paymentdomain.Webhook) (*paidOutcome, error) {
	now := s.clock.Now()
	var outcome *paidOutcome
	err := s.db.Transaction(func(tx *gorm.DB) error {
		inv, err := s.invoiceRepo.GetByIDForUpdate(ctx, tx, w.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Terminal() {
			outcome = &paidOutcome{invoice: inv, replay: true}
			return nil
		}
		if !s.provider.Verify(w) {
			return paymentdomain.ErrBadSignature
		}
		if w.InvID != inv.GatewayRef {
			s.log.Error("gateway_ref mismatch",
				zap.Int64("webhook_inv_id", w.InvID),
				zap.Int64("invoice_gateway_ref", inv.GatewayRef),
			)
			return paymentdomain.ErrGatewayRefMismatch
		}
		if !w.OutSum.Equal(inv.Amount) {
			s.log.Error("amount mismatch",
				zap.String("webhook_out_sum", w.OutSum.String()),
				zap.String("invoice_amount", inv.Amount.String()),
			)
			return paymentdomain.ErrAmountMismatch
		}

		user, err := s.userRepo.GetByID(ctx, tx, inv.UserID)
		if err != nil {
			return err
		}
		tariff, err := s.tariffRepo.GetByID(ctx, tx, inv.TariffID)
		if err != nil {
			return err
		}

		o := &paidOutcome{
			invoice:       inv,
			balanceBefore: user.Balance,
			subEndBefore:  user.SubscriptionEnd,
		}
		if tariff.SubscriptionFee > 0 {
			err = s.creditFeeFirst(ctx, tx, now, user, tariff, inv, o)
		} else {
			err = s.creditClassic(ctx, tx, now, user, inv, o)
		}
		if err != nil {
			return err
		}

		if inv.PromoCodeID != nil {
			activation := &promodomain.PromoActivation{
				ID:                    uuid.New(),
				UserID:                user.ID,
				TariffID:              tariff.ID,
				PromoCodeID:           *inv.PromoCodeID,
				TokensCredited:        int(o.tokensCredited),
				SubscriptionDaysAdded: inv.SubscriptionDays,
				CreatedAt:             now,
			}
			if err := s.promoRepo.InsertActivation(ctx, tx, activation); err != nil && !db.IsDuplicateKeyErr(err) {
				return err
			}
		}

		affected, err := s.invoiceRepo.MarkPaid(ctx, tx, inv.ID, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ledgerdomain.ErrConcurrentModification
		}
		inv.Status = invoicedomain.StatusPaid
		inv.PaidAt = &now
		outcome = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// creditFeeFirst deducts the subscription fee from the paid amount
// (1 RUB = 1 token), activates the subscription for one tariff period
// and credits the remainder. An already active subscription gets the
// whole amount.
func (s *Service) creditFeeFirst(
	ctx context.Context,
	tx *gorm.DB,
	now time.Time,
	user *userdomain.User,
	tariff *tariffdomain.Tariff,
	inv *invoicedomain.Invoice,
	o *paidOutcome,
) error {
	amountTokens, _ := inv.Amount.Float64()
	creditTokens := amountTokens
	description := fmt.Sprintf("Пополнение баланса: +%.2f токенов", creditTokens)

	if !user.SubscriptionActive(now) {
		fee := float64(tariff.SubscriptionFee)
		creditTokens = amountTokens - fee
		newEnd := tariff.Period(now)
		if err := s.userRepo.UpdateSubscriptionEnd(ctx, tx, user.ID, newEnd); err != nil {
			return err
		}
		if err := s.userRepo.ResetSubscriptionNotification(ctx, tx, user.ID); err != nil {
			return err
		}
		o.subEndAfter = newEnd
		description = fmt.Sprintf(
			"Пополнение на %.2f ₽: абонентская плата −%.0f токенов, зачислено +%.2f токенов",
			amountTokens, fee, creditTokens,
		)
	} else {
		o.subEndAfter = user.SubscriptionEnd
	}

	o.description = description
	key := "invoice:" + inv.ID.String()

	// Fee may consume the whole payment. The balance stays put, but the
	// paid invoice still gets its ledger trace.
	if creditTokens <= 0 {
		txn := &ledgerdomain.Transaction{
			ID:             uuid.New(),
			UserID:         user.ID,
			Type:           ledgerdomain.TypeTopup,
			TokensDelta:    0,
			BalanceAfter:   user.Balance,
			Description:    description,
			IdempotencyKey: &key,
			InvoiceID:      &inv.ID,
			CreatedAt:      now,
		}
		if err := s.ledgerRepo.Insert(ctx, tx, txn); err != nil {
			if !db.IsDuplicateKeyErr(err) {
				return err
			}
			return nil
		}
		metrics.LedgerTransactionsTotal.WithLabelValues(string(ledgerdomain.TypeTopup)).Inc()
		o.balanceAfter = user.Balance
		return nil
	}

	txn, err := s.ledger.CreditIn(ctx, tx, ledgerdomain.CreditRequest{
		UserID:         user.ID,
		Amount:         creditTokens,
		Type:           ledgerdomain.TypeTopup,
		Description:    description,
		IdempotencyKey: &key,
		InvoiceID:      &inv.ID,
	})
	if err != nil {
		return err
	}
	o.tokensCredited = creditTokens
	o.balanceAfter = txn.BalanceAfter
	return nil
}

// creditClassic credits the invoice's token bundle and extends the
// subscription additively when the tariff carries subscription days.
func (s *Service) creditClassic(
	ctx context.Context,
	tx *gorm.DB,
	now time.Time,
	user *userdomain.User,
	inv *invoicedomain.Invoice,
	o *paidOutcome,
) error {
	description := fmt.Sprintf("Пополнение баланса: +%d токенов", inv.Tokens)
	key := "invoice:" + inv.ID.String()
	txn, err := s.ledger.CreditIn(ctx, tx, ledgerdomain.CreditRequest{
		UserID:         user.ID,
		Amount:         float64(inv.Tokens),
		Type:           ledgerdomain.TypeTopup,
		Description:    description,
		IdempotencyKey: &key,
		InvoiceID:      &inv.ID,
	})
	if err != nil {
		return err
	}
	o.tokensCredited = float64(inv.Tokens)
	o.balanceAfter = txn.BalanceAfter
	o.description = description
	o.subEndAfter = user.SubscriptionEnd

	if inv.SubscriptionDays > 0 {
		base := now
		if user.SubscriptionEnd != nil && user.SubscriptionEnd.After(now) {
			base = *user.SubscriptionEnd
		}
		newEnd := base.AddDate(0, 0, inv.SubscriptionDays)
		if err := s.userRepo.UpdateSubscriptionEnd(ctx, tx, user.ID, newEnd); err != nil {
			return err
		}
		if err := s.userRepo.ResetSubscriptionNotification(ctx, tx, user.ID); err != nil {
			return err
		}
		o.subEndAfter = newEnd
	}
	return nil
}
