package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/resumehub/billing/internal/invoice/domain"
	ledgerdomain "github.com/resumehub/billing/internal/ledger/domain"
	paymentdomain "github.com/resumehub/billing/internal/payment/domain"
	promodomain "github.com/resumehub/billing/internal/promo/domain"
	tariffdomain "github.com/resumehub/billing/internal/tariff/domain"
	taskdomain "github.com/resumehub/billing/internal/taskbill/domain"
	userdomain "github.com/resumehub/billing/internal/user/domain"
)

// errorResponse is the stable error envelope of the Token API.
type errorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// respondError translates a domain error to its stable code and HTTP
// status.
func respondError(c *gin.Context, err error) {
	var insufficient *ledgerdomain.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		c.JSON(http.StatusConflict, errorResponse{
			Error:   "insufficient_balance",
			Message: "not enough tokens on balance",
			Details: map[string]interface{}{
				"required":  insufficient.Required,
				"available": insufficient.Available,
			},
		})
		return
	}

	switch {
	case errors.Is(err, userdomain.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "user_not_found", Message: "user not found"})
	case errors.Is(err, tariffdomain.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "tariff_not_found", Message: "tariff not found"})
	case errors.Is(err, invoicedomain.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "invoice_not_found", Message: "invoice not found"})
	case errors.Is(err, promodomain.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "promo_not_found", Message: "promo code not found"})
	case errors.Is(err, taskdomain.ErrNoTask):
		c.JSON(http.StatusNotFound, errorResponse{Error: "task_not_found", Message: "no task in flight"})

	case errors.Is(err, ledgerdomain.ErrInsufficientBalance):
		c.JSON(http.StatusConflict, errorResponse{Error: "insufficient_balance", Message: "not enough tokens on balance"})
	case errors.Is(err, ledgerdomain.ErrConcurrentModification):
		c.JSON(http.StatusConflict, errorResponse{Error: "concurrent_modification", Message: "balance changed concurrently, retry"})
	case errors.Is(err, taskdomain.ErrTaskInFlight):
		c.JSON(http.StatusConflict, errorResponse{Error: "task_in_flight", Message: "a task is already running for this user"})

	case errors.Is(err, ledgerdomain.ErrSubscriptionExpired):
		c.JSON(http.StatusForbidden, errorResponse{Error: "subscription_expired", Message: "subscription is not active"})
	case errors.Is(err, ledgerdomain.ErrUserBlocked):
		c.JSON(http.StatusForbidden, errorResponse{Error: "user_blocked", Message: "user is blocked"})

	case errors.Is(err, ledgerdomain.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid_amount", Message: "amount must be positive"})
	case errors.Is(err, invoicedomain.ErrNotPending),
		errors.Is(err, tariffdomain.ErrInactive),
		errors.Is(err, promodomain.ErrInactive),
		errors.Is(err, promodomain.ErrNotStarted),
		errors.Is(err, promodomain.ErrExpired),
		errors.Is(err, promodomain.ErrExhausted),
		errors.Is(err, promodomain.ErrWrongTariff),
		errors.Is(err, promodomain.ErrAlreadyUsed):
		c.JSON(http.StatusBadRequest, errorResponse{Error: "validation_error", Message: err.Error()})
	case errors.Is(err, paymentdomain.ErrBadSignature):
		c.JSON(http.StatusBadRequest, errorResponse{Error: "bad_signature", Message: "signature verification failed"})
	case errors.Is(err, paymentdomain.ErrGatewayRefMismatch),
		errors.Is(err, paymentdomain.ErrAmountMismatch):
		c.JSON(http.StatusBadRequest, errorResponse{Error: "payment_error", Message: err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal_error", Message: "internal server error"})
	}
}
