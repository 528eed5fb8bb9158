package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/streadway/amqp"

	"coach/internal/app"
	"coach/internal/config"
	"coach/internal/events"
	"coach/internal/gateway"
	"coach/internal/handler"
	internalRedis "coach/internal/redis"
	"coach/internal/repository/postgres"
	"coach/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s (with DB instrumentation)", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	if err := app.RunMigrations(db, cfg.Database.DBName, cfg.Database.MigrationsDir); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Payment events go to the broker when configured, logs otherwise.
	var publisher events.Publisher = events.NewLogPublisher()
	if cfg.AMQP.Enabled {
		amqpConn, err := amqp.Dial(cfg.AMQP.URL)
		if err != nil {
			log.Fatalf("failed to connect to amqp: %v", err)
		}
		defer amqpConn.Close()
		amqpPublisher, err := events.NewAMQPPublisher(amqpConn)
		if err != nil {
			log.Fatalf("failed to set up amqp publisher: %v", err)
		}
		publisher = amqpPublisher
		log.Println("Connected to AMQP broker")
	}

	// Wire dependencies.
	server := wireServer(db, redisClient, nrApp, publisher, cfg)

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, publisher events.Publisher, cfg *config.Config) *http.Server {
	// Initialize Redis stores.
	draftStore := internalRedis.NewDraftStore(redisClient, cfg.Checkout.DraftTTL)
	sagaStore := internalRedis.NewSagaStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Initialize repositories.
	tripRepo := postgres.NewTripRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)

	// Initialize payment rails.
	cardGateway := gateway.NewCardClient(cfg.Gateway.PayURL, cfg.Gateway.ReturnURL, cfg.Gateway.Secret)
	qrBuilder := gateway.NewBankQRBuilder(cfg.BankQR.BankCode, cfg.BankQR.Account)

	// Initialize services.
	bookingService := service.NewBookingService(tripRepo, bookingRepo, cacheStore)
	dispatcher := service.NewPaymentDispatcher(paymentRepo, cardGateway, qrBuilder)
	receiptService := service.NewReceiptService(draftStore, bookingRepo, paymentRepo, tripRepo)
	orchestrator := service.NewCheckoutOrchestrator(
		draftStore, sagaStore, lockStore,
		bookingService, dispatcher, receiptService, publisher,
	)
	reconciler := service.NewRedirectReconciler(
		sagaStore, lockStore, bookingService, paymentRepo, receiptService, publisher,
	)

	// Initialize handlers.
	checkoutHandler := handler.NewCheckoutHandler(orchestrator)
	bookingHandler := handler.NewBookingHandler(bookingService, receiptService)
	paymentResultHandler := handler.NewPaymentResultHandler(reconciler, cfg.Gateway.Secret)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		CheckoutHandler:      checkoutHandler,
		BookingHandler:       bookingHandler,
		PaymentResultHandler: paymentResultHandler,
		RedisClient:          redisClient,
		NewRelicApp:          nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
