package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/middleware"
)

// Email templates understood by the notification service.
const (
	TemplateOrderConfirmation = "order_confirmation"
	TemplatePaymentApproved   = "payment_approved"
)

// EmailRequest is a templated customer email.
type EmailRequest struct {
	To       string                 `json:"to"`
	Template string                 `json:"template"`
	Subject  string                 `json:"subject"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// NotificationSender delivers customer emails. Delivery is best-effort.
type NotificationSender interface {
	SendEmail(ctx context.Context, req *EmailRequest) error
}

var (
	_ NotificationSender = (*HTTPNotificationClient)(nil)
	_ NotificationSender = (*MockNotificationClient)(nil)
)

// HTTPNotificationClient implements NotificationSender over HTTP.
type HTTPNotificationClient struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	logger     *logging.Logger
}

// NewHTTPNotificationClient creates a new HTTP-based notification client.
func NewHTTPNotificationClient(cfg config.ServiceConfig, logger *logging.Logger) *HTTPNotificationClient {
	return &HTTPNotificationClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiKey: cfg.APIKey,
		logger: logger,
	}
}

// SendEmail sends an email notification.
func (c *HTTPNotificationClient) SendEmail(ctx context.Context, req *EmailRequest) error {
	c.logger.Debug("Sending email", logging.Fields{
		"to":       req.To,
		"template": req.Template,
	})

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/v2/notifications/email", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	c.setHeaders(ctx, httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("Failed to send email", logging.Fields{
			"to":    req.To,
			"error": err.Error(),
		})
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	c.logger.Info("Email sent", logging.Fields{
		"to":       req.To,
		"template": req.Template,
	})
	return nil
}

func (c *HTTPNotificationClient) setHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	if rid := middleware.RequestIDFromContext(ctx); rid != "" {
		req.Header.Set(middleware.RequestIDHeader, rid)
	}
}

// MockNotificationClient records emails instead of sending them.
type MockNotificationClient struct {
	mu     sync.Mutex
	emails []*EmailRequest
	err    error
}

// NewMockNotificationClient creates a mock notification client. A non-nil
// err is returned from every send.
func NewMockNotificationClient(err error) *MockNotificationClient {
	return &MockNotificationClient{err: err}
}

func (m *MockNotificationClient) SendEmail(_ context.Context, req *EmailRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = append(m.emails, req)
	return m.err
}

// Sent returns a copy of the recorded emails.
func (m *MockNotificationClient) Sent() []*EmailRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*EmailRequest, len(m.emails))
	copy(out, m.emails)
	return out
}
