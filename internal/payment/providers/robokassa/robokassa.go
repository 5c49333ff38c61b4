// Package robokassa implements the Robokassa payment provider: MD5
// request signing and result-webhook verification.
package robokassa

import (
	"fmt"
	"net/url"

	"github.com/resumehub/billing/internal/config"
	invoicedomain "github.com/resumehub/billing/internal/invoice/domain"
	paymentdomain "github.com/resumehub/billing/internal/payment/domain"
	"go.uber.org/zap"
)

const paymentBaseURL = "https://auth.robokassa.ru/Merchant/Index.aspx"

type Provider struct {
	merchantLogin string
	password1     string
	password2     string
	isTest        bool
	log           *zap.Logger
}

func New(cfg config.Config, log *zap.Logger) *Provider {
	return &Provider{
		merchantLogin: cfg.MerchantLogin,
		password1:     cfg.Password1,
		password2:     cfg.Password2,
		isTest:        cfg.IsTestMode,
		log:           log.Named("payment.robokassa"),
	}
}

func (p *Provider) Name() string { return "robokassa" }

func (p *Provider) Verify(w paymentdomain.Webhook) bool {
	expected := ResultSignature(w.OutSumRaw, w.InvID, p.password2, w.ShpParams)
	if !SignatureEqual(expected, w.SignatureValue) {
		p.log.Warn("webhook signature mismatch", zap.Int64("inv_id", w.InvID))
		return false
	}
	return true
}

func (p *Provider) BuildPaymentURL(inv *invoicedomain.Invoice) (string, error) {
	outSum := FormatSum(inv.Amount)
	shp := map[string]string{
		"Shp_invoice_id": inv.ID.String(),
		"Shp_user_id":    fmt.Sprintf("%d", inv.UserID),
	}
	signature := InitSignature(p.merchantLogin, outSum, inv.GatewayRef, p.password1, shp)

	q := url.Values{}
	q.Set("MerchantLogin", p.merchantLogin)
	q.Set("OutSum", outSum)
	q.Set("InvId", fmt.Sprintf("%d", inv.GatewayRef))
	q.Set("Description", fmt.Sprintf("Invoice %d", inv.GatewayRef))
	q.Set("SignatureValue", signature)
	if p.isTest {
		q.Set("IsTest", "1")
	}
	for k, v := range shp {
		q.Set(k, v)
	}
	return paymentBaseURL + "?" + q.Encode(), nil
}
