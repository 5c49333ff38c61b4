package domain

import (
	"context"

	invoicedomain "github.com/resumehub/billing/internal/invoice/domain"
)

type Service interface {
	// ProcessWebhook applies a verified paid event exactly once. A
	// replay on a terminal invoice is a successful no-op returning the
	// invoice as-is.
	ProcessWebhook(ctx context.Context, w Webhook) (*invoicedomain.Invoice, error)
}
