// Package metrics holds the Prometheus collectors for the orders service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront_orders"

// Metrics owns its registry so tests can build independent instances.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests         *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	ordersCreated        *prometheus.CounterVec
	orderCreateFailures  *prometheus.CounterVec
	statusTransitions    *prometheus.CounterVec
	gatewayNotifications *prometheus.CounterVec
	gatewayRequests      *prometheus.CounterVec
	gatewayDuration      *prometheus.HistogramVec
	notificationsSent    *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_created_total",
			Help: "Orders committed, by cart source and payment method.",
		}, []string{"source", "payment_method"}),
		orderCreateFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "order_create_failures_total",
			Help: "Rejected or failed checkouts by reason.",
		}, []string{"reason"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "status_transitions_total",
			Help: "Applied status transitions by axis and target state.",
		}, []string{"axis", "to"}),
		gatewayNotifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "gateway_notifications_total",
			Help: "Payment gateway notifications by outcome.",
		}, []string{"outcome"}),
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "gateway_requests_total",
			Help: "Outbound payment gateway calls.",
		}, []string{"operation", "outcome"}),
		gatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "gateway_request_duration_seconds",
			Help:    "Outbound payment gateway latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "customer_notifications_total",
			Help: "Customer e-mails requested from the notification service.",
		}, []string{"kind", "outcome"}),
	}

	reg.MustRegister(
		m.httpRequests,
		m.httpRequestDuration,
		m.ordersCreated,
		m.orderCreateFailures,
		m.statusTransitions,
		m.gatewayNotifications,
		m.gatewayRequests,
		m.gatewayDuration,
		m.notificationsSent,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) OrderCreated(source, paymentMethod string) {
	if m == nil {
		return
	}
	m.ordersCreated.WithLabelValues(source, paymentMethod).Inc()
}

func (m *Metrics) OrderCreateFailed(reason string) {
	if m == nil {
		return
	}
	m.orderCreateFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) StatusTransition(axis, to string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(axis, to).Inc()
}

func (m *Metrics) GatewayNotification(outcome string) {
	if m == nil {
		return
	}
	m.gatewayNotifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GatewayRequest(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(operation, outcome).Inc()
	m.gatewayDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) CustomerNotification(kind, outcome string) {
	if m == nil {
		return
	}
	m.notificationsSent.WithLabelValues(kind, outcome).Inc()
}
