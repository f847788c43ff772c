package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.GatewayNotification("applied")
	m.GatewayNotification("applied")
	m.GatewayNotification("duplicate")
	m.OrderCreated("guest", "efectivo")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.gatewayNotifications.WithLabelValues("applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gatewayNotifications.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersCreated.WithLabelValues("guest", "efectivo")))
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveHTTP("GET", "/health", 200, time.Millisecond)
		m.StatusTransition("payment", "approved")
		m.GatewayRequest("get_payment", "ok", time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveHTTP("POST", "/api/orders", 201, 5*time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "storefront_orders_http_requests_total"))
}
