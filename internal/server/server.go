package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/middleware"
)

type Server struct {
	config   *config.Config
	router   *gin.Engine
	http     *http.Server
	handlers *handlers.Handlers
	auth     *middleware.Authenticator
	logger   *logging.Logger
}

func New(h *handlers.Handlers, auth *middleware.Authenticator, m *metrics.Metrics, cfg *config.Config) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := logging.NewLogger("http")
	router := gin.New()
	router.Use(gin.Recovery(), middleware.Observability(logger, m))

	s := &Server{
		config:   cfg,
		router:   router,
		handlers: h,
		auth:     auth,
		logger:   logger,
	}
	s.setupRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Router exposes the engine for in-process tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.Health)
	s.router.GET("/ready", h.Ready)
	s.router.GET("/live", h.Live)
	s.router.GET("/version", h.Version)
	s.router.GET("/metrics", h.Metrics)

	api := s.router.Group("/api")

	orders := api.Group("/orders")
	{
		orders.POST("", s.auth.OptionalAuth(), h.CreateOrder)
		orders.GET("/track/:id", h.TrackOrder)
		orders.GET("/admin/all", s.auth.RequireAuth(), s.auth.RequireAdmin(), h.ListAllOrders)
		orders.GET("", s.auth.RequireAuth(), h.ListOrders)
		orders.GET("/:id", s.auth.RequireAuth(), h.GetOrder)
		orders.PUT("/:id/status", s.auth.RequireAuth(), s.auth.RequireAdmin(), h.UpdateOrderStatus)
		orders.PUT("/:id/payment-status", s.auth.RequireAuth(), s.auth.RequireAdmin(), h.UpdatePaymentStatus)
	}

	payments := api.Group("/payments")
	{
		payments.POST("/create-preference", s.auth.OptionalAuth(), h.CreatePreference)
		payments.POST("/webhook", h.PaymentWebhook)
	}

	cart := api.Group("/cart", s.auth.RequireAuth())
	{
		cart.GET("", h.GetCart)
		cart.POST("", h.AddToCart)
		cart.PUT("/:itemId", h.UpdateCartItem)
		cart.DELETE("/:itemId", h.RemoveCartItem)
		cart.DELETE("", h.ClearCart)
	}

	admin := api.Group("/admin", s.auth.RequireAuth(), s.auth.RequireAdmin())
	{
		admin.GET("/stats", h.Stats)
		admin.GET("/sales-chart", h.SalesChart)
		admin.GET("/top-products", h.TopProducts)
		admin.GET("/debug", h.Debug)
	}
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Server starting", logging.Fields{"addr": s.http.Addr})
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
