// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"

	"cargolink-service/internal/config"
	"cargolink-service/internal/db"
	"cargolink-service/internal/gateway/paystack"
	notifHandler "cargolink-service/internal/handlers/notification"
	orderHandler "cargolink-service/internal/handlers/order"
	paymentHandler "cargolink-service/internal/handlers/payment"
	payoutHandler "cargolink-service/internal/handlers/payout"
	walletHandler "cargolink-service/internal/handlers/wallet"
	webhookHandler "cargolink-service/internal/handlers/webhook"
	wsHandler "cargolink-service/internal/handlers/ws"
	"cargolink-service/internal/middleware"
	"cargolink-service/internal/pkg/jwt"
	"cargolink-service/internal/repository/postgres"
	"cargolink-service/internal/repository/rediscache"
	notifUsecase "cargolink-service/internal/service/notification"
	paymentUsecase "cargolink-service/internal/service/payment"
	payoutUsecase "cargolink-service/internal/service/payout"
	revenueUsecase "cargolink-service/internal/service/revenue"
	walletUsecase "cargolink-service/internal/service/wallet"
	"cargolink-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addresses: []string{s.cfg.RedisAddr},
		Password:  s.cfg.RedisPass,
		DB:        0,
		PoolSize:  10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// ----- JWT Verifier -----
	verifier, err := jwt.LoadVerifier(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT verifier: %w", err)
	}

	// ----- Gateway -----
	gateway := paystack.NewClient(s.cfg.PaystackBaseURL, s.cfg.PaystackSecretKey, s.cfg.GatewayTimeout, logger)
	webhookVerifier := paystack.NewWebhookVerifier(s.cfg.PaystackWebhookSecret)

	// ----- Repositories -----
	ledgerRepo := postgres.NewLedgerRepository(pool, "paystack", s.cfg.Currency)
	orderRepo := postgres.NewOrderRepository(pool)
	walletRepo := postgres.NewWalletRepository(pool)
	earningsRepo := postgres.NewEarningsRepository(pool)
	notifRepo := postgres.NewNotificationRepository(pool)
	recipientRepo := postgres.NewRecipientRepository(pool)
	recipientCache := rediscache.NewRecipientCache(redisClient, recipientRepo, logger)

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	// ----- Services -----
	notifService := notifUsecase.NewService(notifRepo, hub, logger)

	paymentService := paymentUsecase.NewService(paymentUsecase.Config{
		Currency:        s.cfg.Currency,
		CallbackBaseURL: s.cfg.CallbackBaseURL,
		DeepLinkBase:    s.cfg.ClientDeepLinkBase,
		Cooldown:        s.cfg.PaymentCooldown,
		CheckoutExpiry:  s.cfg.CheckoutExpiry,
		RefundWindow:    s.cfg.RefundWindow,
	}, orderRepo, ledgerRepo, gateway, notifService, logger)

	payoutService := payoutUsecase.NewService(payoutUsecase.Config{
		Currency:   s.cfg.Currency,
		StaleAfter: s.cfg.StalePendingTransfer,
	}, ledgerRepo, earningsRepo, recipientCache, gateway, notifService, logger)

	revenueService := revenueUsecase.NewService(s.cfg.Currency, orderRepo, ledgerRepo, notifService, logger)

	walletService := walletUsecase.NewService(walletUsecase.Config{
		Currency:        s.cfg.Currency,
		CallbackBaseURL: s.cfg.CallbackBaseURL,
	}, walletRepo, ledgerRepo, gateway, notifService, logger)

	// ----- Handlers -----
	paymentHandlerInst := paymentHandler.NewPaymentHandler(paymentService, logger)
	payoutHandlerInst := payoutHandler.NewPayoutHandler(payoutService)
	walletHandlerInst := walletHandler.NewWalletHandler(walletService)
	orderHandlerInst := orderHandler.NewOrderHandler(revenueService)
	notifHandlerInst := notifHandler.NewNotificationHandler(notifService)
	webhookHandlerInst := webhookHandler.NewWebhookHandler(webhookVerifier, paymentService, payoutService, walletService, logger)
	wsHandlerInst := wsHandler.NewWebSocketHandler(hub, verifier, logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(verifier)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		PaymentHandler: paymentHandlerInst,
		PayoutHandler:  payoutHandlerInst,
		WalletHandler:  walletHandlerInst,
		OrderHandler:   orderHandlerInst,
		NotifHandler:   notifHandlerInst,
		WebhookHandler: webhookHandlerInst,
		WSHandler:      wsHandlerInst,
		AuthMiddleware: authMiddleware,
	}
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	log.Printf("server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}
