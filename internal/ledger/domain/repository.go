package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, txn *Transaction) error
	GetByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*Transaction, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID int64, limit, offset int) ([]Transaction, error)
}
