// internal/handlers/wallet/wallet_handler.go
package wallet

import (
	"net/http"
	"strconv"

	"cargolink-service/internal/middleware"
	"cargolink-service/internal/pkg/response"
	service "cargolink-service/internal/service/wallet"

	"github.com/gin-gonic/gin"
)

type WalletHandler struct {
	walletService *service.Service
}

func NewWalletHandler(walletService *service.Service) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
	}
}

type depositRequest struct {
	Amount int64  `json:"amount" binding:"required,gt=0"`
	Email  string `json:"email" binding:"required,email"`
}

// InitiateDeposit starts hosted checkout for a wallet top-up
func (h *WalletHandler) InitiateDeposit(c *gin.Context) {
	clientID := middleware.MustGetIdentityID(c)

	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request body", err)
		return
	}

	result, err := h.walletService.InitiateDeposit(c.Request.Context(), clientID, req.Amount, req.Email)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "deposit initiated", result)
}

type depositStatusRequest struct {
	Reference string `json:"reference" binding:"required"`
}

// CheckDepositStatus settles a deposit reference if the gateway confirms it
func (h *WalletHandler) CheckDepositStatus(c *gin.Context) {
	var req depositStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request body", err)
		return
	}

	if err := h.walletService.SettleDeposit(c.Request.Context(), req.Reference); err != nil {
		response.FromError(c, err)
		return
	}

	summary, err := h.walletService.Summary(c.Request.Context(), middleware.MustGetIdentityID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "deposit status retrieved", summary)
}

// GetWallet returns the client's wallet summary
func (h *WalletHandler) GetWallet(c *gin.Context) {
	clientID := middleware.MustGetIdentityID(c)

	summary, err := h.walletService.Summary(c.Request.Context(), clientID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "wallet retrieved", summary)
}

// GetRecentTransactions returns the client's latest ledger entries
func (h *WalletHandler) GetRecentTransactions(c *gin.Context) {
	clientID := middleware.MustGetIdentityID(c)

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 50 {
		limit = 20
	}

	transactions, err := h.walletService.RecentTransactions(c.Request.Context(), clientID, limit)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "transactions retrieved", gin.H{
		"transactions": transactions,
		"count":        len(transactions),
	})
}
