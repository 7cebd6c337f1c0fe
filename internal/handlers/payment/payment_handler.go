// internal/handlers/payment/payment_handler.go
package payment

import (
	"net/http"
	"strconv"

	"cargolink-service/internal/middleware"
	"cargolink-service/internal/pkg/response"
	service "cargolink-service/internal/service/payment"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	paymentService *service.Service
	logger         *zap.Logger
}

func NewPaymentHandler(paymentService *service.Service, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

type initiateRequest struct {
	OrderID int64  `json:"order_id" binding:"required"`
	Amount  int64  `json:"amount" binding:"required,gt=0"`
	Email   string `json:"email" binding:"required,email"`
}

// InitiatePayment starts hosted checkout for a draft order
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	clientID := middleware.MustGetIdentityID(c)

	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request body", err)
		return
	}

	result, err := h.paymentService.InitiatePayment(c.Request.Context(), clientID, req.OrderID, req.Amount, req.Email)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "payment initiated", result)
}

// PaymentCallback handles the gateway's browser redirect after checkout.
// Always redirects to the app deep link; never surfaces raw errors to the
// webview.
func (h *PaymentHandler) PaymentCallback(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Query("order_id"), 10, 64)
	reference := c.Query("reference")
	if err != nil || reference == "" {
		h.logger.Warn("malformed payment callback",
			zap.String("order_id", c.Query("order_id")),
			zap.String("reference", reference))
		c.Redirect(http.StatusFound, h.paymentService.HandleCallback(c.Request.Context(), 0, ""))
		return
	}

	deepLink := h.paymentService.HandleCallback(c.Request.Context(), orderID, reference)
	c.Redirect(http.StatusFound, deepLink)
}

type statusRequest struct {
	OrderID   int64  `json:"order_id" binding:"required"`
	Reference string `json:"reference" binding:"required"`
}

// CheckPaymentStatus is the client poll endpoint
func (h *PaymentHandler) CheckPaymentStatus(c *gin.Context) {
	clientID := middleware.MustGetIdentityID(c)

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request body", err)
		return
	}

	result, err := h.paymentService.CheckPaymentStatus(c.Request.Context(), clientID, req.OrderID, req.Reference)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "payment status retrieved", result)
}

type refundRequest struct {
	OrderID int64  `json:"order_id" binding:"required"`
	Reason  string `json:"reason" binding:"required"`
}

// RequestRefund flips a recently paid order to refund_requested
func (h *PaymentHandler) RequestRefund(c *gin.Context) {
	clientID := middleware.MustGetIdentityID(c)

	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request body", err)
		return
	}

	if err := h.paymentService.RequestRefund(c.Request.Context(), clientID, req.OrderID, req.Reason); err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "refund requested", nil)
}
