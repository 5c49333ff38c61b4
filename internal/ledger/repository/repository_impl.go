package repository

import (
	"context"
	"errors"

	ledgerdomain "github.com/resumehub/billing/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() ledgerdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, txn *ledgerdomain.Transaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO transactions (
			id, user_id, type, tokens_delta, balance_after, description,
			idempotency_key, invoice_id, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID,
		txn.UserID,
		txn.Type,
		txn.TokensDelta,
		txn.BalanceAfter,
		txn.Description,
		txn.IdempotencyKey,
		txn.InvoiceID,
		txn.Metadata,
		txn.CreatedAt,
	).Error
}

func (r *repo) GetByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*ledgerdomain.Transaction, error) {
	var txn ledgerdomain.Transaction
	err := db.WithContext(ctx).Where("idempotency_key = ?", key).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID int64, limit, offset int) ([]ledgerdomain.Transaction, error) {
	var txns []ledgerdomain.Transaction
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&txns).Error
	return txns, err
}
