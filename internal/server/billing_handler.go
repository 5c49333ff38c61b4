package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	invoicedomain "github.com/resumehub/billing/internal/invoice/domain"
)

func (s *Server) handleTariffs(c *gin.Context) {
	tariffs, err := s.tariffs.ListActive(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tariffs": tariffs})
}

type invoiceRequest struct {
	TariffID  string  `json:"tariff_id" binding:"required"`
	PromoCode *string `json:"promo_code"`
}

func (r *invoiceRequest) toDomain(userID int64) (invoicedomain.CreateRequest, error) {
	tariffID, err := uuid.Parse(r.TariffID)
	if err != nil {
		return invoicedomain.CreateRequest{}, err
	}
	return invoicedomain.CreateRequest{
		UserID:    userID,
		TariffID:  tariffID,
		PromoCode: r.PromoCode,
	}, nil
}

func (s *Server) handleInvoicePreview(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	var req invoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "validation_error", Message: err.Error()})
		return
	}
	domainReq, err := req.toDomain(userID)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "validation_error", Message: "invalid tariff id"})
		return
	}
	preview, err := s.invoices.Preview(c.Request.Context(), domainReq)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

func (s *Server) handleInvoiceCreate(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	var req invoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "validation_error", Message: err.Error()})
		return
	}
	domainReq, err := req.toDomain(userID)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "validation_error", Message: "invalid tariff id"})
		return
	}

	// First contact may arrive through the purchase flow.
	if _, err := s.users.EnsureUser(c.Request.Context(), userID, "", "", ""); err != nil {
		respondError(c, err)
		return
	}

	inv, err := s.invoices.Create(c.Request.Context(), domainReq)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

func (s *Server) handleInvoiceCancel(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("invoice_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "validation_error", Message: "invalid invoice id"})
		return
	}
	inv, err := s.invoices.Cancel(c.Request.Context(), invoiceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (s *Server) handleSubscriptionStatus(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	status, err := s.subscriptions.Status(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleSubscriptionRenew(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	status, err := s.subscriptions.ManualRenew(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleToggleAutoRenew(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	enabled, err := s.subscriptions.ToggleAutoRenew(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"auto_renew": enabled})
}
