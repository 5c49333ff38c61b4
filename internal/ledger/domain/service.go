package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CreditRequest credits tokens to a user's balance.
type CreditRequest struct {
	UserID         int64
	Amount         float64
	Type           TransactionType
	Description    string
	IdempotencyKey *string
	InvoiceID      *uuid.UUID
	Metadata       datatypes.JSONMap
}

// DebitRequest deducts tokens from a user's balance. The balance may go
// negative down to the configured floor.
type DebitRequest struct {
	UserID         int64
	Amount         float64
	Type           TransactionType
	Description    string
	IdempotencyKey *string
	InvoiceID      *uuid.UUID
	Metadata       datatypes.JSONMap

	// RequireActiveSubscription refuses the debit when the user's
	// subscription has lapsed.
	RequireActiveSubscription bool
}

type Service interface {
	// Credit applies a positive balance change. When the idempotency key
	// matches an existing transaction the stored row is returned and the
	// balance is untouched.
	Credit(ctx context.Context, req CreditRequest) (*Transaction, error)
	// Debit applies a negative balance change, allowing the balance to
	// drop to the floor but no further.
	Debit(ctx context.Context, req DebitRequest) (*Transaction, error)
	// CreditIn is Credit running inside the caller's transaction. No
	// retry is performed; ErrConcurrentModification surfaces so the
	// caller can restart its unit of work.
	CreditIn(ctx context.Context, tx *gorm.DB, req CreditRequest) (*Transaction, error)
	// DebitIn is Debit running inside the caller's transaction.
	DebitIn(ctx context.Context, tx *gorm.DB, req DebitRequest) (*Transaction, error)
	// History returns the user's ledger entries, newest first.
	History(ctx context.Context, userID int64, limit, offset int) ([]Transaction, error)
}

var (
	ErrInvalidAmount          = errors.New("invalid_amount")
	ErrInsufficientBalance    = errors.New("insufficient_balance")
	ErrSubscriptionExpired    = errors.New("subscription_expired")
	ErrUserBlocked            = errors.New("user_blocked")
	ErrConcurrentModification = errors.New("concurrent_modification")
)

// InsufficientBalanceError carries the shortfall details alongside the
// ErrInsufficientBalance sentinel.
type InsufficientBalanceError struct {
	Required  float64
	Available float64
}

func (e *InsufficientBalanceError) Error() string { return ErrInsufficientBalance.Error() }

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }
