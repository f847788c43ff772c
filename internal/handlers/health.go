package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
)

const readinessTimeout = 2 * time.Second

var (
	startTime = time.Now()

	// BuildVersion is overridden at link time with -X.
	BuildVersion = "dev"
)

// Health handles GET /health
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.config.ServiceName,
	})
}

// Ready handles GET /ready. Every registered dependency is probed in
// parallel; any failure reports 503.
func (h *Handlers) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	results := make([]string, len(h.checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, check := range h.checks {
		i, check := i, check
		g.Go(func() error {
			if err := check.Check(gctx); err != nil {
				results[i] = err.Error()
				return err
			}
			results[i] = "ok"
			return nil
		})
	}

	status, code := "ready", http.StatusOK
	if err := g.Wait(); err != nil {
		status, code = "not_ready", http.StatusServiceUnavailable
		h.log(c).Warn("Readiness check failed", logging.Fields{"error": err})
	}

	deps := make(gin.H, len(h.checks))
	for i, check := range h.checks {
		if results[i] == "" {
			results[i] = "skipped"
		}
		deps[check.Name] = results[i]
	}

	c.JSON(code, gin.H{
		"status":       status,
		"service":      h.config.ServiceName,
		"dependencies": deps,
	})
}

// Live handles GET /live
func (h *Handlers) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

// Metrics handles GET /metrics (Prometheus format)
func (h *Handlers) Metrics(c *gin.Context) {
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Version handles GET /version
func (h *Handlers) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":        BuildVersion,
		"service":        h.config.ServiceName,
		"go_version":     runtime.Version(),
		"started_at":     startTime.UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(startTime).Seconds()),
	})
}

// Debug handles GET /api/admin/debug
func (h *Handlers) Debug(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"features": gin.H{
			"enable_order_caching":         h.config.Features.EnableOrderCaching,
			"enable_order_events":          h.config.Features.EnableOrderEvents,
			"enable_notification_consumer": h.config.Features.EnableNotificationConsumer,
			"enable_notification_dedupe":   h.config.Features.EnableNotificationDedupe,
			"strict_guest_cart":            h.config.Features.StrictGuestCart,
		},
		"config": gin.H{
			"environment":      h.config.Environment,
			"server_port":      h.config.Server.Port,
			"database_host":    h.config.Database.Host,
			"redis_host":       h.config.Redis.Host,
			"gateway_base_url": h.config.Gateway.BaseURL,
			"gateway_ready":    h.config.Gateway.AccessToken != "",
			"currency":         h.config.Gateway.Currency,
		},
	})
}
