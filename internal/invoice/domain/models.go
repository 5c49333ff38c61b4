// Package domain contains the invoice model and status lattice.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the invoice lifecycle state. Transitions happen only out of
// pending; the other states are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

// Invoice is a payment request handed to the gateway. GatewayRef is the
// monotonically increasing integer the provider correlates on.
type Invoice struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	GatewayRef       int64           `gorm:"not null;uniqueIndex"`
	UserID           int64           `gorm:"not null;index"`
	TariffID         uuid.UUID       `gorm:"type:uuid;not null"`
	PromoCodeID      *uuid.UUID      `gorm:"type:uuid"`
	Amount           decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	OriginalAmount   decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Tokens           int             `gorm:"not null"`
	SubscriptionDays int             `gorm:"not null;default:0"`
	Status           Status          `gorm:"type:varchar(20);not null;default:'pending';index"`
	IdempotencyKey   string          `gorm:"type:varchar(120);not null;uniqueIndex"`
	PaymentURL       *string         `gorm:"type:text"`
	PaidAt           *time.Time      `gorm:""`
	ExpiresAt        time.Time       `gorm:"not null"`
	CreatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Terminal reports whether the invoice can no longer change state.
func (i *Invoice) Terminal() bool { return i.Status != StatusPending }
