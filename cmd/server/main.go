package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/auth"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handlers"
	"storefront/internal/kafka"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/redis"
	"storefront/internal/repository"
	"storefront/internal/retry"
	"storefront/internal/services"
	"storefront/internal/storage"
	"storefront/internal/tracking"
)

const (
	accessTokenTTL  = 24 * time.Hour
	shutdownTimeout = 30 * time.Second
	schemaTimeout   = 30 * time.Second
	storageTimeout  = 10 * time.Second
)

// Фабричные функции для подключения внешних сервисов (подменяемые в тестах).
var (
	dbConnect        = database.Connect
	redisConnect     = redis.Connect
	storageConnect   = storage.Connect
	newKafkaProducer = kafka.NewProducer
	newKafkaConsumer = kafka.NewConsumer
	kafkaHealthCheck = handlers.CheckKafkaHealth
	loadConfig       = config.Load
	newLogger        = logger.New
)

// application агрегирует собранные зависимости.
type application struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	redis    *redis.Client
	producer *kafka.Producer
	consumer *kafka.Consumer
	mux      *http.ServeMux
	server   *http.Server
}

func main() {
	app, err := buildApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build app: %v\n", err)
		os.Exit(1)
	}
	app.log.Info("Starting storefront server...")

	go func() {
		app.log.WithField("address", app.server.Addr).Info("HTTP server starting")
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	app.shutdown(ctx)
	app.log.Info("Server exited")
}

// shutdown останавливает приём запросов, затем освобождает соединения
func (a *application) shutdown(ctx context.Context) {
	if err := a.consumer.Stop(); err != nil {
		a.log.WithError(err).Warn("Kafka consumer stop failed")
	}
	if err := a.server.Shutdown(ctx); err != nil {
		a.log.WithError(err).Error("Server forced to shutdown")
	}
	_ = a.producer.Close()
	_ = a.redis.Close()
	_ = a.db.Close()
}

// buildApplication создает все зависимости (подменяемые в тестах).
func buildApplication() (*application, error) {
	cfg := loadConfig()
	log := newLogger(&cfg.Logger)

	db, err := dbConnect(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), schemaTimeout)
	err = db.EnsureSchema(schemaCtx)
	cancelSchema()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db schema: %w", err)
	}

	redisClient, err := redisConnect(&cfg.Redis, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}

	producer, err := newKafkaProducer(&cfg.Kafka, log)
	if err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	// каждый экземпляр читает статусы своей группой, чтобы будить всех своих подписчиков
	trackingCfg := cfg.Kafka
	trackingCfg.GroupID = consumerGroupID(cfg.Kafka.GroupID)
	consumer, err := newKafkaConsumer(&trackingCfg, log)
	if err != nil {
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	var images services.ImageStore
	storageCtx, cancelStorage := context.WithTimeout(context.Background(), storageTimeout)
	store, err := storageConnect(storageCtx, &cfg.Storage, log)
	cancelStorage()
	if err != nil {
		log.WithError(err).Warn("Object storage unavailable, image uploads disabled")
	} else {
		images = store
	}

	gateway := payment.NewStripeGateway(&cfg.Payment, log)
	tokens := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, accessTokenTTL)
	hub := tracking.NewHub(log)
	retryPolicy := retry.FromConfig(&cfg.Retry)

	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	favoriteRepo := repository.NewFavoriteRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)
	spinRepo := repository.NewSpinRepository(db)

	couponService := services.NewCouponService(couponRepo, log)
	catalogService := services.NewCatalogService(productRepo, images, log, retryPolicy)
	reviewService := services.NewReviewService(reviewRepo, productRepo, images, log, cfg.Storage.MaxUploadMB)
	cartService := services.NewCartService(redisClient, productRepo, log)
	analyticsService := services.NewAnalyticsService(orderRepo, customerRepo, redisClient, log, &cfg.Analytics, &cfg.Retry)
	notificationService := services.NewNotificationService(deviceRepo, producer, log)
	orderService := services.NewOrderService(orderRepo, producer, hub, notificationService, log)
	checkoutService := services.NewCheckoutService(cartService, redisClient, productRepo, couponService, locationRepo, orderRepo, gateway, producer, log, &cfg.Checkout, &cfg.Payment)
	checkoutService.SetAnalytics(analyticsService)
	orderService.SetAnalytics(analyticsService)
	customerService := services.NewCustomerService(customerRepo, locationRepo, log)
	favoriteService := services.NewFavoriteService(favoriteRepo, productRepo, log)
	gamificationService := services.NewGamificationService(redisClient, customerRepo, spinRepo, couponService, log, &cfg.Gamification)
	rateLimiter := services.NewRateLimiter(redisClient, log, &cfg.RateLimit)

	routes := &routeHandlers{
		products:     handlers.NewProductHandler(catalogService, reviewService, log, cfg.Storage.MaxUploadMB),
		cart:         handlers.NewCartHandler(cartService, log),
		checkout:     handlers.NewCheckoutHandler(checkoutService, log),
		orders:       handlers.NewOrderHandler(orderService, hub, log),
		coupons:      handlers.NewCouponHandler(couponService, log),
		analytics:    handlers.NewAnalyticsHandler(analyticsService, log, &cfg.Analytics),
		customers:    handlers.NewCustomerHandler(customerService, favoriteService, notificationService, tokens, log),
		gamification: handlers.NewGamificationHandler(gamificationService, log, cfg.Gamification.LeaderboardSize),
		health:       handlers.NewHealthHandler(db, redisClient, cfg.Kafka.Brokers, kafkaHealthCheck),
		rateLimit:    handlers.NewRateLimitHandler(rateLimiter, log, &cfg.RateLimit),
	}

	registerEventHandlers(consumer, hub, log)
	if err := consumer.Start(); err != nil {
		_ = consumer.Stop()
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer start: %w", err)
	}

	mux := setupRoutes(routes, tokens, rateLimiter, log)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return &application{
		cfg:      cfg,
		log:      log,
		db:       db,
		redis:    redisClient,
		producer: producer,
		consumer: consumer,
		mux:      mux,
		server:   server,
	}, nil
}

func consumerGroupID(base string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return base + "-tracking-" + host
}

// registerEventHandlers регистрирует обработчики событий Kafka
func registerEventHandlers(consumer *kafka.Consumer, hub *tracking.Hub, log *logger.Logger) {
	consumer.RegisterHandler(models.EventTypeOrderStatusChanged, hub.HandleStatusChanged)

	logOnly := func(ctx context.Context, event *models.Event) error {
		log.WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Info("Processing event")
		return nil
	}
	consumer.RegisterHandler(models.EventTypeOrderCreated, logOnly)
	consumer.RegisterHandler(models.EventTypePaymentSucceeded, logOnly)
	consumer.RegisterHandler(models.EventTypePaymentFailed, logOnly)
}
