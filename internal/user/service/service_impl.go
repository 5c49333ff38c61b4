package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	auditdomain "github.com/resumehub/billing/internal/audit/domain"
	userdomain "github.com/resumehub/billing/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     userdomain.Repository
	AuditSvc auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     userdomain.Repository
	auditSvc auditdomain.Service
}

func NewService(p Params) userdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("user.service"),
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) EnsureUser(ctx context.Context, id int64, username, firstName, lastName string) (*userdomain.User, error) {
	if id == 0 {
		return nil, userdomain.ErrInvalidID
	}

	_, err := s.repo.GetByID(ctx, s.db, id)
	created := false
	if err != nil {
		if !errors.Is(err, userdomain.ErrNotFound) {
			return nil, err
		}
		created = true
	}

	now := time.Now().UTC()
	user := userdomain.User{
		ID:        id,
		Username:  optional(username),
		FirstName: optional(firstName),
		LastName:  optional(lastName),
		AutoRenew: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Upsert(ctx, s.db, &user); err != nil {
		return nil, err
	}

	if created {
		s.auditSvc.Record(ctx, auditdomain.Entry{
			Action:     "user.created",
			EntityType: "user",
			EntityID:   strconv.FormatInt(user.ID, 10),
			UserID:     &user.ID,
			NewValue:   map[string]any{"username": username},
		})
		s.log.Info("user created", zap.Int64("user_id", id))
		return &user, nil
	}
	return s.repo.GetByID(ctx, s.db, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*userdomain.User, error) {
	return s.repo.GetByID(ctx, s.db, id)
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
