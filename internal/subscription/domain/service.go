// Package domain defines the subscription lifecycle read model and
// sweep operations.
package domain

import (
	"context"
	"errors"
	"time"
)

// State is the subscription read-model state.
type State string

const (
	StateNone    State = "none"
	StateExpired State = "expired"
	StateActive  State = "active"
)

// Status is the per-user subscription read model.
type Status struct {
	State        State
	End          *time.Time
	DaysLeft     int
	AutoRenew    bool
	RenewalPrice int
	CanAutoRenew bool
}

type Service interface {
	Status(ctx context.Context, userID int64) (*Status, error)
	// ManualRenew debits the renewal fee and advances the subscription
	// by the renewal period.
	ManualRenew(ctx context.Context, userID int64) (*Status, error)
	ToggleAutoRenew(ctx context.Context, userID int64) (bool, error)

	// NotifyExpiring runs the tiered expiry-notification sweep.
	NotifyExpiring(ctx context.Context) (int, error)
	// AutoRenew runs the auto-renewal sweep; returns renewed count.
	AutoRenew(ctx context.Context) (int, error)
	// SweepExpired announces lapsed subscriptions once per cycle.
	SweepExpired(ctx context.Context) (int, error)
}

var ErrNoSubscription = errors.New("subscription_none")
