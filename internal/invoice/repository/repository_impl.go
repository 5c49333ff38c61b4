package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	invoicedomain "github.com/resumehub/billing/internal/invoice/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() invoicedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, inv *invoicedomain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoices (
			id, gateway_ref, user_id, tariff_id, promo_code_id,
			amount, original_amount, tokens, subscription_days,
			status, idempotency_key, payment_url, paid_at, expires_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID,
		inv.GatewayRef,
		inv.UserID,
		inv.TariffID,
		inv.PromoCodeID,
		inv.Amount,
		inv.OriginalAmount,
		inv.Tokens,
		inv.SubscriptionDays,
		inv.Status,
		inv.IdempotencyKey,
		inv.PaymentURL,
		inv.PaidAt,
		inv.ExpiresAt,
		inv.CreatedAt,
		inv.UpdatedAt,
	).Error
}

func (r *repo) GetByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*invoicedomain.Invoice, error) {
	var inv invoicedomain.Invoice
	err := db.WithContext(ctx).Where("id = ?", id).First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invoicedomain.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *repo) GetByIDForUpdate(ctx context.Context, db *gorm.DB, id uuid.UUID) (*invoicedomain.Invoice, error) {
	query := db.WithContext(ctx)
	if db.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var inv invoicedomain.Invoice
	err := query.Where("id = ?", id).First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invoicedomain.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *repo) GetByGatewayRef(ctx context.Context, db *gorm.DB, ref int64) (*invoicedomain.Invoice, error) {
	var inv invoicedomain.Invoice
	err := db.WithContext(ctx).Where("gateway_ref = ?", ref).First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invoicedomain.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *repo) GetByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*invoicedomain.Invoice, error) {
	var inv invoicedomain.Invoice
	err := db.WithContext(ctx).Where("idempotency_key = ?", key).First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &inv, nil
}

func (r *repo) NextGatewayRef(ctx context.Context, db *gorm.DB) (int64, error) {
	var ref int64
	err := db.WithContext(ctx).
		Raw(`SELECT COALESCE(MAX(gateway_ref), 0) + 1 FROM invoices`).
		Scan(&ref).Error
	return ref, err
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, id uuid.UUID, paidAt time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoices SET status = 'paid', paid_at = ?, updated_at = ? WHERE id = ? AND status = 'pending'`,
		paidAt, paidAt, id,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) MarkCancelled(ctx context.Context, db *gorm.DB, id uuid.UUID, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoices SET status = 'cancelled', updated_at = ? WHERE id = ? AND status = 'pending'`,
		now, id,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) ExpireBefore(ctx context.Context, db *gorm.DB, cutoff, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoices SET status = 'expired', updated_at = ? WHERE status = 'pending' AND expires_at < ?`,
		now, cutoff,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) SetPaymentURL(ctx context.Context, db *gorm.DB, id uuid.UUID, url string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET payment_url = ? WHERE id = ?`,
		url, id,
	).Error
}
