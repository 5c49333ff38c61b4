package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

type Service interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Tariff, error)
	GetBySlug(ctx context.Context, slug string) (*Tariff, error)
	// ListActive returns selectable tariffs ordered by sort_order.
	ListActive(ctx context.Context) ([]Tariff, error)
	// Default returns the tariff used for renewal pricing: the cheapest
	// active tariff by sort order.
	Default(ctx context.Context) (*Tariff, error)
}

var (
	ErrNotFound = errors.New("tariff_not_found")
	ErrInactive = errors.New("tariff_inactive")
)
