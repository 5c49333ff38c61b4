package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Preview is the computed result of a purchase before any write.
type Preview struct {
	TariffID         uuid.UUID
	TariffName       string
	OriginalAmount   decimal.Decimal
	Amount           decimal.Decimal
	DiscountAmount   decimal.Decimal
	Tokens           int
	SubscriptionDays int
	PromoApplied     bool
	PromoDescription string
}

// CreateRequest issues an invoice for a user buying a tariff.
type CreateRequest struct {
	UserID    int64
	TariffID  uuid.UUID
	PromoCode *string
}

type Service interface {
	// Preview computes amounts and benefits without touching the store.
	// An invalid promo is ignored rather than surfaced.
	Preview(ctx context.Context, req CreateRequest) (*Preview, error)
	// Create issues an invoice, collapsing repeated attempts within the
	// same idempotency window onto one pending invoice.
	Create(ctx context.Context, req CreateRequest) (*Invoice, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetByGatewayRef(ctx context.Context, ref int64) (*Invoice, error)
	// Cancel transitions a pending invoice to cancelled.
	Cancel(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// ExpireBefore transitions every pending invoice whose expires_at
	// precedes the cutoff to expired and returns the count.
	ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

var (
	ErrNotFound   = errors.New("invoice_not_found")
	ErrNotPending = errors.New("invoice_not_pending")
)
