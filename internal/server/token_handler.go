package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/resumehub/billing/internal/ledger/domain"
	"gorm.io/datatypes"
)

func parseUserID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "validation_error",
			Message: "invalid user id",
		})
		return 0, false
	}
	return id, true
}

func (s *Server) handleBalance(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	user, err := s.users.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	active := user.SubscriptionActive(s.clock.Now())

	canSpend := true
	var reason string
	switch {
	case user.IsBlocked:
		canSpend, reason = false, "User is blocked"
	case !active:
		canSpend, reason = false, "Subscription expired"
	case user.Balance < 0:
		canSpend, reason = false, "Insufficient balance (negative)"
	}

	resp := gin.H{
		"user_id":             user.ID,
		"token_balance":       user.Balance,
		"subscription_active": active,
		"subscription_end":    user.SubscriptionEnd,
		"can_spend":           canSpend,
	}
	if reason != "" {
		resp["reason"] = reason
	}
	c.JSON(http.StatusOK, resp)
}

type spendRequest struct {
	Amount         float64                `json:"amount"`
	Description    string                 `json:"description" binding:"required"`
	IdempotencyKey *string                `json:"idempotency_key"`
	Metadata       map[string]interface{} `json:"metadata"`
}

func (s *Server) handleSpend(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	var req spendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}
	if req.Amount <= 0 {
		respondError(c, ledgerdomain.ErrInvalidAmount)
		return
	}

	txn, err := s.ledger.Debit(c.Request.Context(), ledgerdomain.DebitRequest{
		UserID:                    userID,
		Amount:                    req.Amount,
		Type:                      ledgerdomain.TypeSpend,
		Description:               req.Description,
		IdempotencyKey:            req.IdempotencyKey,
		Metadata:                  datatypes.JSONMap(req.Metadata),
		RequireActiveSubscription: true,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	s.notifier.NotifyLowBalance(c.Request.Context(), userID, txn.BalanceAfter)
	c.JSON(http.StatusOK, gin.H{
		"transaction_id": txn.ID,
		"tokens_spent":   -txn.TokensDelta,
		"balance_before": txn.BalanceAfter - txn.TokensDelta,
		"balance_after":  txn.BalanceAfter,
	})
}

func (s *Server) handleTransactions(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	if _, err := s.users.Get(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	txns, err := s.ledger.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}

type ensureUserRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// handleEnsureUser upserts a user on first contact from the chat layer.
func (s *Server) handleEnsureUser(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	var req ensureUserRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}
	user, err := s.users.EnsureUser(c.Request.Context(), userID, req.Username, req.FirstName, req.LastName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":          user.ID,
		"balance":          user.Balance,
		"subscription_end": user.SubscriptionEnd,
	})
}
