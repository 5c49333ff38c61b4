// Package domain contains the token ledger model: every balance change
// is recorded as an immutable transaction row.
package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TypeTopup        TransactionType = "topup"
	TypeSpend        TransactionType = "spend"
	TypeRefund       TransactionType = "refund"
	TypeAdjustment   TransactionType = "adjustment"
	TypeSubscription TransactionType = "subscription"
)

// Transaction is an immutable ledger row. TokensDelta is signed;
// BalanceAfter snapshots the user balance at commit time.
type Transaction struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey"`
	UserID         int64             `gorm:"not null;index"`
	Type           TransactionType   `gorm:"type:varchar(20);not null"`
	TokensDelta    float64           `gorm:"not null"`
	BalanceAfter   float64           `gorm:"not null"`
	Description    string            `gorm:"type:varchar(255);not null"`
	IdempotencyKey *string           `gorm:"type:varchar(120);uniqueIndex"`
	InvoiceID      *uuid.UUID        `gorm:"type:uuid"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "transactions" }
