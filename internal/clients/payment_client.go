package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

const (
	defaultGatewayAttempts = 3
	defaultGatewayBackoff  = 100 * time.Millisecond
)

// PreferenceRequest is the MercadoPago checkout preference body.
type PreferenceRequest struct {
	Items               []PreferenceItem `json:"items"`
	BackURLs            BackURLs         `json:"back_urls"`
	AutoReturn          string           `json:"auto_return,omitempty"`
	ExternalReference   string           `json:"external_reference"`
	NotificationURL     string           `json:"notification_url,omitempty"`
	StatementDescriptor string           `json:"statement_descriptor,omitempty"`
	Payer               Payer            `json:"payer"`
}

// PreferenceItem prices one line in major currency units.
type PreferenceItem struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	PictureURL  string      `json:"picture_url,omitempty"`
	Quantity    int64       `json:"quantity"`
	UnitPrice   json.Number `json:"unit_price"`
	CurrencyID  string      `json:"currency_id"`
}

type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type Payer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// GatewayError is a non-retryable or exhausted gateway response.
type GatewayError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s returned status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// MercadoPagoClient talks to the MercadoPago REST API.
type MercadoPagoClient struct {
	baseURL     string
	httpClient  *http.Client
	accessToken string
	attempts    int
	backoff     time.Duration
	metrics     *metrics.Metrics
	logger      *logging.Logger
}

// NewMercadoPagoClient creates a new gateway client.
func NewMercadoPagoClient(cfg config.GatewayConfig, m *metrics.Metrics, logger *logging.Logger) *MercadoPagoClient {
	return &MercadoPagoClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		accessToken: cfg.AccessToken,
		attempts:    defaultGatewayAttempts,
		backoff:     defaultGatewayBackoff,
		metrics:     m,
		logger:      logger,
	}
}

// Configured reports whether an access token is present.
func (c *MercadoPagoClient) Configured() bool {
	return c.accessToken != ""
}

// CreatePreference registers a checkout preference. Retries reuse one
// idempotency key so the gateway never creates two preferences.
func (c *MercadoPagoClient) CreatePreference(ctx context.Context, req *PreferenceRequest) (*models.PaymentPreference, error) {
	if !c.Configured() {
		return nil, errors.New("gateway access token is not configured")
	}

	c.logger.Debug("Creating payment preference", logging.Fields{
		"external_reference": req.ExternalReference,
		"items":              len(req.Items),
	})

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	idempotencyKey := uuid.NewString()
	var pref models.PaymentPreference
	err = c.doWithRetry(ctx, "create_preference", func() (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/checkout/preferences", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("X-Idempotency-Key", idempotencyKey)
		return httpReq, nil
	}, &pref)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Payment preference created", logging.Fields{
		"external_reference": req.ExternalReference,
		"preference_id":      pref.ID,
	})
	return &pref, nil
}

// GetPayment fetches the authoritative payment record.
func (c *MercadoPagoClient) GetPayment(ctx context.Context, paymentID string) (*models.GatewayPayment, error) {
	if !c.Configured() {
		return nil, errors.New("gateway access token is not configured")
	}

	var payment models.GatewayPayment
	err := c.doWithRetry(ctx, "get_payment", func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+url.PathEscape(paymentID), nil)
	}, &payment)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// doWithRetry retries network failures and 5xx responses with a linear
// backoff. Other statuses fail immediately.
func (c *MercadoPagoClient) doWithRetry(ctx context.Context, op string, build func() (*http.Request, error), out interface{}) error {
	var lastErr error
	start := time.Now()

	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying gateway request", logging.Fields{
				"operation": op,
				"attempt":   attempt + 1,
				"error":     lastErr,
			})
			select {
			case <-ctx.Done():
				c.metrics.GatewayRequest(op, "cancelled", time.Since(start))
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}

		httpReq, err := build()
		if err != nil {
			return err
		}
		c.setHeaders(ctx, httpReq)

		retry, err := c.do(httpReq, op, out)
		if err == nil {
			c.metrics.GatewayRequest(op, "ok", time.Since(start))
			return nil
		}
		lastErr = err
		if !retry {
			break
		}
	}

	c.metrics.GatewayRequest(op, "error", time.Since(start))
	c.logger.Error("Gateway request failed", logging.Fields{
		"operation": op,
		"error":     lastErr,
	})
	return lastErr
}

func (c *MercadoPagoClient) do(req *http.Request, op string, out interface{}) (bool, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return req.Context().Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode >= 500, &GatewayError{Operation: op, StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode %s response: %w", op, err)
	}
	return false, nil
}

func (c *MercadoPagoClient) setHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	if rid := middleware.RequestIDFromContext(ctx); rid != "" {
		req.Header.Set(middleware.RequestIDHeader, rid)
	}
}
