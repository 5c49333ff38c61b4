// Package domain contains the append-only audit trail model.
package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditLog records a state-changing decision with before/after snapshots.
// UserID carries no foreign key so the trail survives entity deletion.
type AuditLog struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Action     string            `gorm:"type:varchar(100);not null;index"`
	EntityType string            `gorm:"type:varchar(50);not null"`
	EntityID   *string           `gorm:"type:varchar(255)"`
	UserID     *int64            `gorm:"index"`
	OldValue   datatypes.JSONMap `gorm:"type:jsonb"`
	NewValue   datatypes.JSONMap `gorm:"type:jsonb"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }
