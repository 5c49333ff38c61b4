// Package mock implements a local payment provider for development and
// tests. It signs with the same MD5 scheme as the real gateway so that
// the test-payment page can post an authentic-looking webhook.
package mock

import (
	"fmt"

	"github.com/resumehub/billing/internal/config"
	invoicedomain "github.com/resumehub/billing/internal/invoice/domain"
	paymentdomain "github.com/resumehub/billing/internal/payment/domain"
	"github.com/resumehub/billing/internal/payment/providers/robokassa"
	"go.uber.org/zap"
)

type Provider struct {
	baseURL   string
	password2 string
	log       *zap.Logger
}

func New(cfg config.Config, log *zap.Logger) *Provider {
	return &Provider{
		baseURL:   cfg.WebhookBaseURL,
		password2: cfg.Password2,
		log:       log.Named("payment.mock"),
	}
}

func (p *Provider) Name() string { return "mock" }

func (p *Provider) Verify(w paymentdomain.Webhook) bool {
	expected := robokassa.ResultSignature(w.OutSumRaw, w.InvID, p.password2, w.ShpParams)
	if !robokassa.SignatureEqual(expected, w.SignatureValue) {
		p.log.Warn("mock webhook signature mismatch", zap.Int64("inv_id", w.InvID))
		return false
	}
	return true
}

// BuildPaymentURL points at the local test-payment page instead of a
// real gateway.
func (p *Provider) BuildPaymentURL(inv *invoicedomain.Invoice) (string, error) {
	return fmt.Sprintf("%s/pay/%s", p.baseURL, inv.ID), nil
}
