package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	auditdomain "github.com/resumehub/billing/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo auditdomain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("audit.service"),
		repo: p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, entry auditdomain.Entry) {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		s.log.Warn("audit entry dropped: empty action")
		return
	}

	entityType := strings.TrimSpace(entry.EntityType)
	if entityType == "" {
		entityType = "unknown"
	}

	row := auditdomain.AuditLog{
		ID:         uuid.New(),
		Action:     action,
		EntityType: entityType,
		UserID:     entry.UserID,
		OldValue:   datatypes.JSONMap(orEmpty(entry.OldValue)),
		NewValue:   datatypes.JSONMap(orEmpty(entry.NewValue)),
		Metadata:   datatypes.JSONMap(orEmpty(entry.Metadata)),
		CreatedAt:  time.Now().UTC(),
	}
	if id := strings.TrimSpace(entry.EntityID); id != "" {
		row.EntityID = &id
	}

	if err := s.repo.Insert(ctx, s.db, &row); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
