package domain

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	GetByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*Tariff, error)
	GetBySlug(ctx context.Context, db *gorm.DB, slug string) (*Tariff, error)
	ListActive(ctx context.Context, db *gorm.DB) ([]Tariff, error)
	Insert(ctx context.Context, db *gorm.DB, tariff *Tariff) error
}
