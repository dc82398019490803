package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vay-dev/swift-wallet-be/internal/command"
	"github.com/vay-dev/swift-wallet-be/internal/config"
	"github.com/vay-dev/swift-wallet-be/internal/gateway"
	"github.com/vay-dev/swift-wallet-be/internal/handler"
	"github.com/vay-dev/swift-wallet-be/internal/logging"
	"github.com/vay-dev/swift-wallet-be/internal/query"
	"github.com/vay-dev/swift-wallet-be/internal/repository"
	"github.com/vay-dev/swift-wallet-be/shared/events"
	"github.com/vay-dev/swift-wallet-be/shared/middleware"
	redisClient "github.com/vay-dev/swift-wallet-be/shared/redis"
	"go.uber.org/zap"
)

type handlers struct {
	wallets      *handler.WalletHandler
	transactions *handler.TransactionHandler
	cards        *handler.CardHandler
	webhooks     *handler.WebhookHandler
	internal     *handler.InternalHandler
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger is not configured yet.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database connection
	db, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := repository.Migrate(ctx, db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	// Redis connection
	redis, err := redisClient.NewClient(ctx, redisClient.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redis.Close()

	publisher := events.NewPublisher(redis.Client)

	// CQRS: write stores, read repositories
	walletRepo := repository.NewWalletRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	readRepo := repository.NewTransactionReadRepository(db, redis.Client, cfg.ViewCacheTTL, logger)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	beneficiaryRepo := repository.NewBeneficiaryRepository(db)
	cardRepo := repository.NewCardRepository(db)
	pinRepo := repository.NewPINRepository(db)
	identityRepo := repository.NewIdentityRepository(db)

	stores := command.Stores{
		Tx:            repository.NewTxManager(db, logger),
		Wallets:       walletRepo,
		Transactions:  txRepo,
		Analytics:     analyticsRepo,
		Beneficiaries: beneficiaryRepo,
		Cards:         cardRepo,
		PINs:          pinRepo,
		Identities:    identityRepo,
	}

	provider := gateway.NewPaystackClient(cfg.Paystack, logger)

	// Command + Query services
	pinSvc := command.NewPINService(pinRepo, cfg.Ledger, logger)
	ledgerSvc := command.NewLedgerCommandService(stores, pinSvc, publisher, cfg.Ledger, logger)
	paymentSvc := command.NewPaymentCommandService(ledgerSvc, stores, pinSvc, provider, cfg.Ledger, cfg.Paystack, logger)
	identitySvc := command.NewIdentityCommandService(ledgerSvc, stores, logger)

	walletQueries := query.NewWalletQueryService(walletRepo, readRepo, analyticsRepo, beneficiaryRepo, cardRepo)
	txQueries := query.NewTransactionQueryService(readRepo, readRepo, logger)

	// Read-model projector
	subscriber := events.NewSubscriber(redis.Client, events.SubscriberConfig{
		Group:    "wallet-view-projector",
		Consumer: cfg.ConsumerName,
		Stream:   events.WalletEventsStream,
		Handler:  txQueries.HandleWalletEvent,
	}, logger)
	go func() {
		if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("projector stopped", zap.Error(err))
		}
	}()

	health := func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		return redis.Healthy(ctx)
	}

	router := newRouter(cfg, logger, health, handlers{
		wallets:      handler.NewWalletHandler(ledgerSvc, pinSvc, walletQueries),
		transactions: handler.NewTransactionHandler(ledgerSvc, paymentSvc, txQueries),
		cards:        handler.NewCardHandler(paymentSvc, walletQueries),
		webhooks:     handler.NewWebhookHandler(paymentSvc, cfg.Paystack.WebhookSecret, logger),
		internal:     handler.NewInternalHandler(identitySvc, ledgerSvc),
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		logger.Info("wallet service starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newRouter(cfg *config.Config, logger *zap.Logger, health func(context.Context) error, h handlers) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery(logger), middleware.LoggingMiddleware(logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		if err := health(c.Request.Context()); err != nil {
			logger.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Provider notifications authenticate by signature.
	router.POST("/v1/webhooks/paystack", h.webhooks.Paystack)

	internal := router.Group("/v1/internal", middleware.ServiceTokenMiddleware(cfg.ServiceToken))
	{
		internal.POST("/identities", h.internal.RegisterIdentity)
		internal.PATCH("/wallets/:userId/status", h.internal.SetWalletStatus)
	}

	v1 := router.Group("/v1", middleware.AuthMiddleware([]byte(cfg.JWTSecret)))
	{
		v1.GET("/wallet", h.wallets.GetWallet)
		v1.GET("/dashboard", h.wallets.Dashboard)
		v1.GET("/analytics", h.wallets.Analytics)
		v1.GET("/beneficiaries", h.wallets.ListBeneficiaries)
		v1.POST("/beneficiaries", h.wallets.AddBeneficiary)
		v1.POST("/security/pin", h.wallets.SetPIN)

		v1.POST("/transactions/send", h.transactions.SendMoney)
		v1.POST("/transactions/add-money", h.transactions.AddMoney)
		v1.POST("/transactions/bill-payment", h.transactions.PayBill)
		v1.GET("/transactions/verify/:reference", h.transactions.VerifyPayment)
		v1.GET("/transactions", h.transactions.ListTransactions)
		v1.GET("/transactions/:reference", h.transactions.GetTransaction)

		v1.GET("/cards", h.cards.ListCards)
		v1.POST("/cards/charge", h.cards.ChargeCard)
		v1.PATCH("/cards/:cardId/default", h.cards.SetDefaultCard)
		v1.DELETE("/cards/:cardId", h.cards.DeleteCard)
	}

	return router
}
