package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pay2mail/backend/docs"
	"github.com/pay2mail/backend/internal/audit"
	"github.com/pay2mail/backend/internal/config"
	"github.com/pay2mail/backend/internal/database"
	"github.com/pay2mail/backend/internal/handlers"
	"github.com/pay2mail/backend/internal/logging"
	mW "github.com/pay2mail/backend/internal/middleware"
	"github.com/pay2mail/backend/internal/services"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// @title pay2mail Backend API
// @version 1.0
// @description Balance and payment reconciliation for pay-per-email delivery
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("stripe.webhook_secret", "STRIPE_WEBHOOK_SECRET")
	viper.BindEnv("ingest.token", "INGEST_TOKEN")
	viper.BindEnv("log.level", "LOG_LEVEL")
	viper.BindEnv("log.format", "LOG_FORMAT")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")

	configErr := viper.ReadInConfig()

	logger := logging.Must(viper.GetString("log.level"), viper.GetString("log.format"))
	defer logger.Sync()

	if configErr != nil {
		logger.Info("Config file not found, using environment", zap.Error(configErr))
	}

	billing := config.LoadBillingConfig()
	if billing.DeliveryURL == "" {
		logger.Warn("DELIVERY_URL is not set; held mail cannot be released")
	}

	docs.SwaggerInfo.Title = "pay2mail Backend API"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.BasePath = "/api/v1"

	// Initialize services
	db := database.InitDatabase(logger)
	defer db.Close()

	redisClient := database.InitRedis(logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	auditLogger := audit.NewAuditLogger(logger)
	notifier := services.NewBalanceNotifier(redisClient, logger)
	runner := services.NewTxRunner(db, billing.TxMaxAttempts, billing.TxRetryBaseDelay, logger)

	ledgerService := services.NewLedgerService(db)
	recorder := services.NewTransactionRecorder(runner, ledgerService, auditLogger, notifier, logger)
	pendingService := services.NewPendingMailService(db, runner, ledgerService)
	deductionPolicy := services.NewDeductionPolicy(runner, ledgerService, pendingService, auditLogger, notifier, logger)
	deliveryClient := services.NewDeliveryClient(billing.DeliveryURL, billing.DeliveryTimeout, logger)
	reconciler := services.NewReconciler(pendingService, ledgerService, deliveryClient, auditLogger, notifier, logger)

	paymentService := services.NewPaymentService(recorder, reconciler, billing.PaymentEventType, logger)
	mailService := services.NewMailService(deductionPolicy, pendingService, reconciler, billing.MailFee, logger)
	qrService := services.NewQRService(pendingService, billing.PaymentDomain)

	webhookHandler := handlers.NewWebhookHandler(paymentService, logger)
	mailHandler := handlers.NewMailHandler(mailService, logger)
	balanceHandler := handlers.NewBalanceHandler(ledgerService, paymentService, billing.Currency, logger)
	pendingHandler := handlers.NewPendingHandler(pendingService, qrService, logger)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Payment provider webhooks
	r.With(mW.StripeSignature(viper.GetString("stripe.webhook_secret"))).
		Post("/webhooks/stripe", webhookHandler.HandleStripe)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Called by the mail ingestion server
		r.With(mW.IngestToken(viper.GetString("ingest.token"))).
			Post("/mail/arrived", mailHandler.MailArrived)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/accounts", balanceHandler.CreateAccount)
			r.Get("/balance", balanceHandler.GetBalance)
			r.Get("/balance/transactions", balanceHandler.ListTransactions)

			r.Get("/pending", pendingHandler.ListPending)
			r.Get("/pending/{mailboxId}/{mailId}/payment-link", pendingHandler.PaymentLink)

			r.With(mW.RequireRole("admin")).
				Post("/admin/adjustments", balanceHandler.CreateAdjustment)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15*time.Second + billing.DeliveryTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.Info("Server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
