package service

import (
	"context"

	"github.com/google/uuid"
	tariffdomain "github.com/resumehub/billing/internal/tariff/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo tariffdomain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo tariffdomain.Repository
}

func NewService(p Params) tariffdomain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("tariff.service"),
		repo: p.Repo,
	}
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*tariffdomain.Tariff, error) {
	return s.repo.GetByID(ctx, s.db, id)
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (*tariffdomain.Tariff, error) {
	return s.repo.GetBySlug(ctx, s.db, slug)
}

func (s *Service) ListActive(ctx context.Context) ([]tariffdomain.Tariff, error) {
	return s.repo.ListActive(ctx, s.db)
}

func (s *Service) Default(ctx context.Context) (*tariffdomain.Tariff, error) {
	tariffs, err := s.repo.ListActive(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if len(tariffs) == 0 {
		return nil, tariffdomain.ErrNotFound
	}
	return &tariffs[0], nil
}
