package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/clients"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/events"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/repository"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/server"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/service"
)

const shutdownTimeout = 30 * time.Second

// orderStore is what the services need from the cache layer.
type orderStore interface {
	repository.OrderCache
	repository.NotificationDeduper
}

func main() {
	cfg := config.Load()

	if err := logging.Init(cfg.ServiceName, cfg.LogLevel); err != nil {
		panic(err)
	}
	defer logging.Sync()

	logger := logging.NewLogger("main")
	logging.Infof("Starting %s on port %d", cfg.ServiceName, cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.OpenPostgres(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", logging.Fields{"error": err})
	}
	if cfg.Features.AutoMigrate {
		if err := repository.AutoMigrate(db); err != nil {
			logger.Fatal("Failed to migrate schema", logging.Fields{"error": err})
		}
	}

	m := metrics.New()
	checks := []handlers.ReadinessCheck{{
		Name:  "postgres",
		Check: func(ctx context.Context) error { return repository.Ping(ctx, db) },
	}}

	store, closeStore := initCache(ctx, cfg, logger)
	defer closeStore()
	if redisCache, ok := store.(*repository.RedisOrderCache); ok {
		checks = append(checks, handlers.ReadinessCheck{Name: "redis", Check: redisCache.Ping})
	}

	orderRepo := repository.NewGormOrderRepository(db, logging.NewLogger("order-repository"))
	productRepo := repository.NewGormProductRepository(db, logging.NewLogger("product-repository"))
	cartRepo := repository.NewGormCartRepository(db, logging.NewLogger("cart-repository"))
	userRepo := repository.NewGormUserRepository(db)

	var publisher events.OrderEventPublisher = events.NopPublisher{}
	if cfg.Features.EnableOrderEvents {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka, logging.NewLogger("event-publisher"))
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	gateway := clients.NewMercadoPagoClient(cfg.Gateway, m, logging.NewLogger("mercadopago"))
	if !gateway.Configured() {
		logger.Warn("MP_ACCESS_TOKEN is not set; checkout will offer offline payment methods only")
	}
	notifier := clients.NewHTTPNotificationClient(cfg.NotificationService, logging.NewLogger("notification-client"))

	resolver := service.NewCartResolver(productRepo, cartRepo, cfg.Features.StrictGuestCart, logging.NewLogger("cart-resolver"))
	orderService := service.NewOrderService(
		orderRepo,
		orderRepo,
		userRepo,
		cartRepo,
		resolver,
		store,
		publisher,
		notifier,
		m,
		cfg,
	)
	paymentService := service.NewPaymentService(
		gateway,
		orderRepo,
		userRepo,
		orderService,
		store,
		m,
		cfg,
	)

	auth := middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.CookieName)
	h := handlers.NewHandlers(orderService, paymentService, m, cfg, checks...)
	srv := server.New(h, auth, m, cfg)

	logger.Info("Server configured", logging.Fields{
		"port":                  cfg.Server.Port,
		"enable_order_events":   cfg.Features.EnableOrderEvents,
		"enable_order_caching":  cfg.Features.EnableOrderCaching,
		"notification_consumer": cfg.Features.EnableNotificationConsumer,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)

	if cfg.Features.EnableNotificationConsumer {
		consumer := events.NewKafkaConsumer(cfg.Kafka, paymentService, cfg.Gateway.NotificationTimeout, logging.NewLogger("notification-consumer"))
		defer consumer.Close()
		g.Go(func() error { return consumer.Start(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", logging.Fields{"error": err})
		closeDB(db)
		os.Exit(1)
	}
	closeDB(db)
	logger.Info("Server exited")
}

// initCache prefers Redis and falls back to an in-process cache when Redis
// is unreachable at startup.
func initCache(ctx context.Context, cfg *config.Config, logger *logging.Logger) (orderStore, func()) {
	redisCache := repository.NewRedisOrderCache(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := redisCache.Ping(pingCtx); err != nil {
		logger.Warn("Redis unavailable, using in-memory order cache", logging.Fields{"error": err})
		_ = redisCache.Close()
		return repository.NewMemoryOrderCache(cfg.Redis.TTL), func() {}
	}
	return redisCache, func() { _ = redisCache.Close() }
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
