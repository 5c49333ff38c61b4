package repository

import (
	"context"

	auditdomain "github.com/resumehub/billing/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() auditdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, row *auditdomain.AuditLog) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO audit_logs (
			id, action, entity_type, entity_id, user_id,
			old_value, new_value, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID,
		row.Action,
		row.EntityType,
		row.EntityID,
		row.UserID,
		row.OldValue,
		row.NewValue,
		row.Metadata,
		row.CreatedAt,
	).Error
}
