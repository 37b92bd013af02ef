package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/safar-travel/service-booking/internal/adapter"
	"github.com/safar-travel/service-booking/internal/application"
	"github.com/safar-travel/service-booking/internal/auth"
	"github.com/safar-travel/service-booking/internal/cache"
	"github.com/safar-travel/service-booking/internal/config"
	"github.com/safar-travel/service-booking/internal/consumer"
	"github.com/safar-travel/service-booking/internal/database"
	"github.com/safar-travel/service-booking/internal/handler"
	"github.com/safar-travel/service-booking/internal/health"
	"github.com/safar-travel/service-booking/internal/kafka"
	"github.com/safar-travel/service-booking/internal/logger"
	"github.com/safar-travel/service-booking/internal/middleware"
	"github.com/safar-travel/service-booking/internal/repository"
	"github.com/safar-travel/service-booking/internal/saga"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewNamed(cfg.AppEnv, "service-booking")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting service-booking",
		zap.String("port", cfg.Port),
	)

	// Connect to database
	db, err := database.Connect(cfg.DB, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(
			&repository.QuoteModel{},
			&repository.QuoteItemModel{},
			&repository.PromoCodeModel{},
			&repository.PromoUsageModel{},
			&repository.OrderModel{},
			&repository.SubBookingModel{},
			&repository.PaymentModel{},
			&repository.PaymentMethodConfigModel{},
			&repository.BankAccountModel{},
		); err != nil {
			zapLogger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		zapLogger.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DB.URL(), "migrations", zapLogger); err != nil {
			zapLogger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, 15*time.Minute)

	// Initialize Redis cache for offer searches
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	searchCache := cache.NewRedisCache(redisClient)

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers, zapLogger)
	defer kafkaProducer.Close()

	// Initialize adapters (mocks until the real integrations land)
	gatewayAdapter := adapter.NewMockGatewayAdapter(zapLogger)
	offerProvider := adapter.NewMockOfferProvider(zapLogger)

	// Initialize repositories
	quoteRepo := repository.NewGormQuoteRepository(db)
	promoRepo := repository.NewGormPromoRepository(db)
	orderRepo := repository.NewGormOrderRepository(db)
	paymentRepo := repository.NewGormPaymentRepository(db)
	catalogRepo := repository.NewGormCatalogRepository(db)

	// Initialize saga service
	orderSaga := saga.NewOrderSagaService(orderRepo, promoRepo, quoteRepo, zapLogger)

	// Initialize application services
	promoService := application.NewPromoService(promoRepo, orderRepo, zapLogger)
	cartService := application.NewCartService(quoteRepo, promoService, cfg.TaxRate, cfg.DefaultCurrency, zapLogger)
	orderService := application.NewOrderService(orderRepo, quoteRepo, promoRepo, promoService, orderSaga, kafkaProducer, cfg.TaxRate, cfg.DefaultCurrency, zapLogger)
	paymentService := application.NewPaymentService(paymentRepo, catalogRepo, orderRepo, gatewayAdapter, kafkaProducer, zapLogger)
	searchService := application.NewSearchService(offerProvider, searchCache, cfg.SearchCacheTTL, cfg.DefaultCurrency, zapLogger)

	// Initialize Kafka consumer for gateway callback events
	consumerGroupID := cfg.Kafka.GroupPrefix + "booking-service"
	gatewayConsumer := consumer.NewGatewayEventConsumer(
		cfg.Kafka.Brokers,
		consumerGroupID,
		paymentService,
		zapLogger,
	)
	defer gatewayConsumer.Close()

	// Start Kafka consumer in a goroutine
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()

	go func() {
		zapLogger.Info("starting gateway event consumer")
		if err := gatewayConsumer.Start(consumerCtx); err != nil {
			if consumerCtx.Err() == nil {
				zapLogger.Error("gateway event consumer failed", zap.Error(err))
			}
		}
	}()

	// Initialize HTTP handlers
	cartHandler := handler.NewCartHandler(cartService)
	orderHandler := handler.NewOrderHandler(orderService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	promoHandler := handler.NewPromoHandler(promoService)
	searchHandler := handler.NewSearchHandler(searchService)
	adminHandler := handler.NewAdminHandler(promoService, paymentService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.LoggerMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, "service-booking")
	healthHandler.RegisterRoutes(router)

	// Register API routes
	apiV1 := router.Group("/api/v1")
	cartHandler.RegisterRoutes(apiV1, jwtManager)
	orderHandler.RegisterRoutes(apiV1, jwtManager)
	paymentHandler.RegisterRoutes(apiV1, jwtManager)
	promoHandler.RegisterRoutes(apiV1, jwtManager)
	searchHandler.RegisterRoutes(apiV1)
	adminHandler.RegisterRoutes(apiV1, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down service-booking...")

	// Cancel Kafka consumer
	consumerCancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server forced to shutdown", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		zapLogger.Error("failed to close redis client", zap.Error(err))
	}

	zapLogger.Info("service-booking stopped")
}
