// internal/handlers/payout/payout_handler.go
package payout

import (
	"net/http"
	"strconv"

	"cargolink-service/internal/domain/ledger"
	"cargolink-service/internal/middleware"
	"cargolink-service/internal/pkg/response"
	service "cargolink-service/internal/service/payout"

	"github.com/gin-gonic/gin"
)

type PayoutHandler struct {
	payoutService *service.Service
}

func NewPayoutHandler(payoutService *service.Service) *PayoutHandler {
	return &PayoutHandler{
		payoutService: payoutService,
	}
}

type payoutRequest struct {
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	AccountName   string `json:"account_name" binding:"required"`
	AccountNumber string `json:"account_number" binding:"required"`
	BankCode      string `json:"bank_code" binding:"required"`
	BankName      string `json:"bank_name"`
	PIN           string `json:"pin" binding:"required"`
}

// RequestPayout initiates a driver payout to a bank account
func (h *PayoutHandler) RequestPayout(c *gin.Context) {
	driverID := middleware.MustGetIdentityID(c)

	var req payoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request body", err)
		return
	}

	result, err := h.payoutService.RequestPayout(c.Request.Context(), driverID, req.Amount, ledger.BankDetails{
		AccountName:   req.AccountName,
		AccountNumber: req.AccountNumber,
		BankCode:      req.BankCode,
		BankName:      req.BankName,
	}, req.PIN)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "payout initiated", result)
}

// ReconcilePayouts re-verifies the driver's in-flight transfers against the
// gateway
func (h *PayoutHandler) ReconcilePayouts(c *gin.Context) {
	driverID := middleware.MustGetIdentityID(c)

	report, err := h.payoutService.ReconcilePendingTransfers(c.Request.Context(), driverID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "reconciliation completed", report)
}

// ReconcileStalePayouts sweeps stale pending transfers across all drivers.
// Admin only.
func (h *PayoutHandler) ReconcileStalePayouts(c *gin.Context) {
	report, err := h.payoutService.ReconcileStaleTransfers(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "stale transfer sweep completed", report)
}

type setPINRequest struct {
	PIN string `json:"pin" binding:"required"`
}

// SetPayoutPIN sets or replaces the driver's payout PIN
func (h *PayoutHandler) SetPayoutPIN(c *gin.Context) {
	driverID := middleware.MustGetIdentityID(c)

	var req setPINRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request body", err)
		return
	}

	if err := h.payoutService.SetPayoutPIN(c.Request.Context(), driverID, req.PIN); err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "payout pin set", nil)
}

// GetEarnings returns the driver's earnings summary
func (h *PayoutHandler) GetEarnings(c *gin.Context) {
	driverID := middleware.MustGetIdentityID(c)

	summary, err := h.payoutService.Summary(c.Request.Context(), driverID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "earnings retrieved", summary)
}

// GetRecentEarnings returns the driver's latest earning entries
func (h *PayoutHandler) GetRecentEarnings(c *gin.Context) {
	driverID := middleware.MustGetIdentityID(c)

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 50 {
		limit = 20
	}

	entries, err := h.payoutService.RecentEarnings(c.Request.Context(), driverID, limit)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "earnings retrieved", gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}
