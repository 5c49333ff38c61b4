package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	paymentdomain "github.com/resumehub/billing/internal/payment/domain"
	"github.com/shopspring/decimal"
)

// handleWebhook ingests the gateway's payment result callback. The
// gateway retries on any non-2xx, so validation failures answer 400 and
// uncertain ledger outcomes answer 5xx.
func (s *Server) handleWebhook(c *gin.Context) {
	webhook, err := parseWebhook(c)
	if err != nil {
		c.String(http.StatusBadRequest, "bad request")
		return
	}

	inv, err := s.payment.ProcessWebhook(c.Request.Context(), webhook)
	if err != nil {
		respondError(c, err)
		return
	}
	c.String(http.StatusOK, "OK%d", inv.GatewayRef)
}

func parseWebhook(c *gin.Context) (paymentdomain.Webhook, error) {
	var w paymentdomain.Webhook

	outSumRaw := c.PostForm("OutSum")
	outSum, err := decimal.NewFromString(outSumRaw)
	if err != nil {
		return w, err
	}
	invID, err := strconv.ParseInt(c.PostForm("InvId"), 10, 64)
	if err != nil {
		return w, err
	}
	invoiceID, err := uuid.Parse(c.PostForm("Shp_invoice_id"))
	if err != nil {
		return w, err
	}
	userID, err := strconv.ParseInt(c.PostForm("Shp_user_id"), 10, 64)
	if err != nil {
		return w, err
	}

	if err := c.Request.ParseForm(); err != nil {
		return w, err
	}
	shp := make(map[string]string)
	for key, values := range c.Request.PostForm {
		if strings.HasPrefix(key, "Shp_") && len(values) > 0 {
			shp[key] = values[0]
		}
	}

	return paymentdomain.Webhook{
		OutSum:         outSum,
		OutSumRaw:      outSumRaw,
		InvID:          invID,
		SignatureValue: c.PostForm("SignatureValue"),
		InvoiceID:      invoiceID,
		UserID:         userID,
		ShpParams:      shp,
	}, nil
}
