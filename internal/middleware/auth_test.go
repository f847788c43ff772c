package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

func newRouter(a *Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Observability(logging.NewNop(), metrics.New()))

	whoami := func(c *gin.Context) {
		p := PrincipalFrom(c)
		if p == nil {
			c.JSON(http.StatusOK, gin.H{"guest": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": p.UserID, "role": p.Role})
	}

	r.GET("/optional", a.OptionalAuth(), whoami)
	r.GET("/private", a.RequireAuth(), whoami)
	r.GET("/admin", a.RequireAuth(), a.RequireAdmin(), whoami)
	return r
}

func TestOptionalAuth_GuestWithoutToken(t *testing.T) {
	r := newRouter(NewAuthenticator([]byte("secret"), "token"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/optional", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"guest":true`)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestRequireAuth_BearerAndCookie(t *testing.T) {
	a := NewAuthenticator([]byte("secret"), "token")
	r := newRouter(a)
	tok, err := a.IssueToken(&models.Principal{UserID: 42, Email: "ana@example.com", Role: models.RoleUser}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":42`)

	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: tok})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAuth_RejectsBadTokens(t *testing.T) {
	a := NewAuthenticator([]byte("secret"), "token")
	r := newRouter(a)
	other := NewAuthenticator([]byte("other-secret"), "token")
	forged, err := other.IssueToken(&models.Principal{UserID: 1, Role: models.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	expired, err := a.IssueToken(&models.Principal{UserID: 1, Role: models.RoleUser}, -time.Minute)
	require.NoError(t, err)

	for _, tok := range []string{"", "garbage", forged, expired} {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	a := NewAuthenticator([]byte("secret"), "token")
	r := newRouter(a)
	userTok, _ := a.IssueToken(&models.Principal{UserID: 2, Role: models.RoleUser}, time.Hour)
	adminTok, _ := a.IssueToken(&models.Principal{UserID: 1, Role: models.RoleAdmin}, time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+userTok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminTok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestObservability_EchoesRequestID(t *testing.T) {
	r := newRouter(NewAuthenticator([]byte("secret"), ""))

	req := httptest.NewRequest(http.MethodGet, "/optional", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}
