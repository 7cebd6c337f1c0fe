// internal/app/router.go
package app

import (
	notifHandler "cargolink-service/internal/handlers/notification"
	orderHandler "cargolink-service/internal/handlers/order"
	paymentHandler "cargolink-service/internal/handlers/payment"
	payoutHandler "cargolink-service/internal/handlers/payout"
	walletHandler "cargolink-service/internal/handlers/wallet"
	webhookHandler "cargolink-service/internal/handlers/webhook"
	wsHandler "cargolink-service/internal/handlers/ws"
	"cargolink-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	PaymentHandler *paymentHandler.PaymentHandler
	PayoutHandler  *payoutHandler.PayoutHandler
	WalletHandler  *walletHandler.WalletHandler
	OrderHandler   *orderHandler.OrderHandler
	NotifHandler   *notifHandler.NotificationHandler
	WebhookHandler *webhookHandler.WebhookHandler
	WSHandler      *wsHandler.WebSocketHandler
	AuthMiddleware *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)

	// ==================== Gateway Webhook (signature-gated) ====================
	api.POST("/order/webhook", h.WebhookHandler.HandleGatewayEvent)

	// ==================== Payment Callback (browser redirect) ====================
	api.GET("/order/payment-callback", h.PaymentHandler.PaymentCallback)
	api.POST("/order/payment-callback", h.PaymentHandler.PaymentCallback)

	// ==================== Client Payment Routes ====================
	payments := api.Group("/order/payment")
	payments.Use(h.AuthMiddleware.ClientOnly()...)
	{
		payments.POST("/initiate", h.PaymentHandler.InitiatePayment)
		payments.POST("/status", h.PaymentHandler.CheckPaymentStatus)
		payments.POST("/refund", h.PaymentHandler.RequestRefund)
	}

	// ==================== Client Wallet Routes ====================
	wallets := api.Group("/wallet")
	wallets.Use(h.AuthMiddleware.ClientOnly()...)
	{
		wallets.GET("", h.WalletHandler.GetWallet)
		wallets.GET("/transactions", h.WalletHandler.GetRecentTransactions)
		wallets.POST("/deposit", h.WalletHandler.InitiateDeposit)
		wallets.POST("/deposit/status", h.WalletHandler.CheckDepositStatus)
	}

	// ==================== Driver Routes ====================
	drivers := api.Group("/driver")
	drivers.Use(h.AuthMiddleware.DriverOnly()...)
	{
		drivers.GET("/earnings", h.PayoutHandler.GetEarnings)
		drivers.GET("/earnings/recent", h.PayoutHandler.GetRecentEarnings)
		drivers.POST("/payout/request", h.PayoutHandler.RequestPayout)
		drivers.POST("/payout/reconcile", h.PayoutHandler.ReconcilePayouts)
		drivers.PUT("/payout/pin", h.PayoutHandler.SetPayoutPIN)
		drivers.POST("/orders/:id/deliver", h.OrderHandler.CompleteDelivery)
	}

	// ==================== Notifications ====================
	notifications := api.Group("/notifications")
	notifications.Use(h.AuthMiddleware.Auth())
	{
		notifications.GET("", h.NotifHandler.GetNotifications)
		notifications.GET("/count/unread", h.NotifHandler.GetUnreadCount)
		notifications.PUT("/:id/read", h.NotifHandler.MarkAsRead)
	}

	// ==================== Admin Routes ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.AdminOnly()...)
	{
		admin.POST("/payouts/reconcile-stale", h.PayoutHandler.ReconcileStalePayouts)
		admin.GET("/ws/stats", h.WSHandler.GetStats)
	}
}
