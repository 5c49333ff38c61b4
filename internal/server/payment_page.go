package server

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/resumehub/billing/internal/payment/providers/robokassa"
)

// paymentPageTmpl is the local test-payment page: it posts the same
// form shape as the real gateway back into the webhook endpoint.
var paymentPageTmpl = template.Must(template.New("pay").Parse(`<!DOCTYPE html>
<html lang="ru">
<head><meta charset="utf-8"><title>Тестовая оплата</title></head>
<body>
<h1>Тестовая оплата</h1>
<p>Счёт №{{.InvID}} на сумму {{.OutSum}} ₽</p>
<form method="post" action="{{.Action}}">
  <input type="hidden" name="OutSum" value="{{.OutSum}}">
  <input type="hidden" name="InvId" value="{{.InvID}}">
  <input type="hidden" name="SignatureValue" value="{{.Signature}}">
  <input type="hidden" name="Shp_invoice_id" value="{{.InvoiceID}}">
  <input type="hidden" name="Shp_user_id" value="{{.UserID}}">
  <button type="submit">Оплатить</button>
</form>
</body>
</html>`))

// handlePaymentPage renders the mock gateway's checkout page.
func (s *Server) handlePaymentPage(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("invoice_id"))
	if err != nil {
		c.String(http.StatusBadRequest, "invalid invoice id")
		return
	}
	inv, err := s.invoices.GetByID(c.Request.Context(), invoiceID)
	if err != nil {
		respondError(c, err)
		return
	}

	outSum := robokassa.FormatSum(inv.Amount)
	shp := map[string]string{
		"Shp_invoice_id": inv.ID.String(),
		"Shp_user_id":    fmt.Sprintf("%d", inv.UserID),
	}
	signature := robokassa.ResultSignature(outSum, inv.GatewayRef, s.cfg.Password2, shp)

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	_ = paymentPageTmpl.Execute(c.Writer, gin.H{
		"Action":    s.cfg.WebhookBaseURL + "/webhook/mock",
		"OutSum":    outSum,
		"InvID":     inv.GatewayRef,
		"Signature": signature,
		"InvoiceID": inv.ID.String(),
		"UserID":    inv.UserID,
	})
}
