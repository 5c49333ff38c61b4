package domain

import (
	"context"
	"errors"
)

// Entry is one auditable decision. Values are snapshotted maps; nil maps
// are stored as empty objects.
type Entry struct {
	Action     string
	EntityType string
	EntityID   string
	UserID     *int64
	OldValue   map[string]any
	NewValue   map[string]any
	Metadata   map[string]any
}

// Service appends audit rows. Recording is best-effort on the hot path:
// implementations log failures instead of failing the caller's unit of work.
type Service interface {
	Record(ctx context.Context, entry Entry)
}

var ErrInvalidAction = errors.New("invalid_action")
