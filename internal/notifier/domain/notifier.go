// Package domain defines the outbound notification contract:
// at-most-once, best-effort, never retried.
package domain

import (
	"context"
	"errors"
)

// Kind names a notification category for metrics and dedupe.
const (
	KindPaymentSuccess      = "payment_success"
	KindLowBalance          = "low_balance"
	KindSubscriptionExpiry  = "subscription_expiry"
	KindSubscriptionExpired = "subscription_expired"
	KindRenewalSuccess      = "renewal_success"
	KindRenewalFailed       = "renewal_failed"
)

// Notification is one outbound message to a user.
type Notification struct {
	UserID  int64
	Kind    string
	Message string
	Payload map[string]interface{}
}

// Sender is the outbound-channel primitive (chat transport, webhook,
// log sink in tests).
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Service delivers notifications, swallowing every failure mode.
type Service interface {
	// Notify never returns an error: blocked recipients, malformed
	// payloads and unexpected transport failures are logged and dropped.
	Notify(ctx context.Context, n Notification)
	// ShouldNotifyLowBalance returns the threshold to announce for the
	// given post-debit balance, or nil when no notification is due.
	ShouldNotifyLowBalance(balanceAfter float64, lastNotified *int) *int
	// NotifyLowBalance applies threshold dedupe, sends at most one
	// notification and persists the marker.
	NotifyLowBalance(ctx context.Context, userID int64, balanceAfter float64)
}

var (
	// ErrBlocked means the user has blocked the outbound channel.
	ErrBlocked = errors.New("notify_blocked")
	// ErrMalformed means the payload was rejected by the channel.
	ErrMalformed = errors.New("notify_malformed")
)
