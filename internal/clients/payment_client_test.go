package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/metrics"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *MercadoPagoClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewMercadoPagoClient(config.GatewayConfig{
		BaseURL:     srv.URL,
		AccessToken: "TEST-token",
		Timeout:     2 * time.Second,
	}, metrics.New(), logging.NewNop())
	c.backoff = time.Millisecond
	return c
}

func TestCreatePreference_SendsPreferenceAndDecodesResponse(t *testing.T) {
	var got PreferenceRequest
	c := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/preferences", r.URL.Path)
		assert.Equal(t, "Bearer TEST-token", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"pref-1","init_point":"https://mp/init","sandbox_init_point":"https://mp/sandbox"}`))
	})

	pref, err := c.CreatePreference(context.Background(), &PreferenceRequest{
		Items: []PreferenceItem{{
			ID: "7", Title: "Mate", Quantity: 2, UnitPrice: json.Number("12.50"), CurrencyID: "ARS",
		}},
		ExternalReference: "42",
		Payer:             Payer{Name: "Ana", Email: "ana@example.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, "pref-1", pref.ID)
	assert.Equal(t, "https://mp/init", pref.InitPoint)
	assert.Equal(t, "https://mp/sandbox", pref.SandboxInitPoint)
	assert.Equal(t, "42", got.ExternalReference)
	require.Len(t, got.Items, 1)
	assert.Equal(t, json.Number("12.50"), got.Items[0].UnitPrice)
}

func TestCreatePreference_RetriesServerErrorsWithSameKey(t *testing.T) {
	var calls int32
	keys := make(chan string, 3)
	c := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		keys <- r.Header.Get("X-Idempotency-Key")
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"pref-2"}`))
	})

	pref, err := c.CreatePreference(context.Background(), &PreferenceRequest{ExternalReference: "1"})
	require.NoError(t, err)
	assert.Equal(t, "pref-2", pref.ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	first := <-keys
	assert.Equal(t, first, <-keys)
	assert.Equal(t, first, <-keys)
}

func TestCreatePreference_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid items"}`))
	})

	_, err := c.CreatePreference(context.Background(), &PreferenceRequest{ExternalReference: "1"})
	require.Error(t, err)

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusBadRequest, gwErr.StatusCode)
	assert.Contains(t, gwErr.Body, "invalid items")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCreatePreference_RequiresAccessToken(t *testing.T) {
	c := NewMercadoPagoClient(config.GatewayConfig{BaseURL: "http://127.0.0.1:1"}, nil, logging.NewNop())

	assert.False(t, c.Configured())
	_, err := c.CreatePreference(context.Background(), &PreferenceRequest{})
	assert.Error(t, err)
}

func TestGetPayment_DecodesNumericID(t *testing.T) {
	c := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payments/123456", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":123456,"status":"approved","status_detail":"accredited","external_reference":"42"}`))
	})

	p, err := c.GetPayment(context.Background(), "123456")
	require.NoError(t, err)

	assert.Equal(t, "123456", p.ID.String())
	assert.Equal(t, "approved", p.Status)
	assert.Equal(t, "42", p.ExternalReference)
}

func TestGetPayment_HonoursCancelledContext(t *testing.T) {
	c := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c.backoff = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GetPayment(ctx, "1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
