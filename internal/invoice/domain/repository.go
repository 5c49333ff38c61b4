package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, inv *Invoice) error
	GetByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*Invoice, error)
	// GetByIDForUpdate locks the invoice row for the enclosing
	// transaction.
	GetByIDForUpdate(ctx context.Context, db *gorm.DB, id uuid.UUID) (*Invoice, error)
	GetByGatewayRef(ctx context.Context, db *gorm.DB, ref int64) (*Invoice, error)
	GetByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*Invoice, error)
	// NextGatewayRef allocates max(gateway_ref)+1 under the current
	// transaction's isolation.
	NextGatewayRef(ctx context.Context, db *gorm.DB) (int64, error)
	// MarkPaid transitions pending to paid; returns rows affected.
	MarkPaid(ctx context.Context, db *gorm.DB, id uuid.UUID, paidAt time.Time) (int64, error)
	// MarkCancelled transitions pending to cancelled; returns rows
	// affected.
	MarkCancelled(ctx context.Context, db *gorm.DB, id uuid.UUID, now time.Time) (int64, error)
	// ExpireBefore bulk-transitions pending invoices past the cutoff.
	ExpireBefore(ctx context.Context, db *gorm.DB, cutoff, now time.Time) (int64, error)
	SetPaymentURL(ctx context.Context, db *gorm.DB, id uuid.UUID, url string) error
}
