// Package domain defines the payment webhook contract and the pluggable
// provider interface.
package domain

import (
	"errors"

	"github.com/google/uuid"
	invoicedomain "github.com/resumehub/billing/internal/invoice/domain"
	"github.com/shopspring/decimal"
)

// Webhook is the parsed form payload delivered by the payment gateway.
type Webhook struct {
	OutSum         decimal.Decimal
	// OutSumRaw is the amount exactly as posted; signatures are
	// computed over this form, not a re-rendering.
	OutSumRaw      string
	InvID          int64
	SignatureValue string
	InvoiceID      uuid.UUID
	UserID         int64

	// Custom Shp_* parameters in their original form, signature order
	// matters for verification.
	ShpParams map[string]string
}

// Provider abstracts one payment gateway: signature verification plus
// payment URL construction. Implementations are selected by
// configuration at startup.
type Provider interface {
	Name() string
	Verify(w Webhook) bool
	BuildPaymentURL(inv *invoicedomain.Invoice) (string, error)
}

var (
	ErrBadSignature       = errors.New("payment_bad_signature")
	ErrGatewayRefMismatch = errors.New("payment_gateway_ref_mismatch")
	ErrAmountMismatch     = errors.New("payment_amount_mismatch")
)
