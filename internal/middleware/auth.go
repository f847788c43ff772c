package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

const principalKey = "principal"

// Claims is the session token payload issued by the storefront auth service.
type Claims struct {
	UserID int64  `json:"id,omitempty"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) principal() (*models.Principal, error) {
	id := c.UserID
	if id == 0 && c.Subject != "" {
		parsed, err := strconv.ParseInt(c.Subject, 10, 64)
		if err != nil {
			return nil, errors.New("subject is not a user id")
		}
		id = parsed
	}
	if id <= 0 {
		return nil, errors.New("token carries no user id")
	}
	role := c.Role
	if role == "" {
		role = models.RoleUser
	}
	return &models.Principal{UserID: id, Email: c.Email, Role: role}, nil
}

// Authenticator validates HS256 session tokens from a bearer header or cookie.
type Authenticator struct {
	secret     []byte
	cookieName string
}

func NewAuthenticator(secret []byte, cookieName string) *Authenticator {
	if cookieName == "" {
		cookieName = "token"
	}
	return &Authenticator{secret: secret, cookieName: cookieName}
}

// OptionalAuth attaches the principal when a valid token is present and
// otherwise lets the request through as a guest.
func (a *Authenticator) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if p, err := a.authenticate(c); err == nil {
			c.Set(principalKey, p)
		}
		c.Next()
	}
}

func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := a.authenticate(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func (a *Authenticator) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !PrincipalFrom(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

func (a *Authenticator) authenticate(c *gin.Context) (*models.Principal, error) {
	raw := bearerToken(c.GetHeader("Authorization"))
	if raw == "" {
		if cookie, err := c.Cookie(a.cookieName); err == nil {
			raw = cookie
		}
	}
	if raw == "" {
		return nil, errors.New("missing token")
	}

	var claims Claims
	tkn, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return a.secret, nil
	})
	if err != nil || !tkn.Valid {
		return nil, errors.New("invalid or expired token")
	}
	return claims.principal()
}

// IssueToken signs a session token for p. Real sessions come from the
// storefront auth service; this is for tests and local tooling.
func (a *Authenticator) IssueToken(p *models.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: p.UserID,
		Email:  p.Email,
		Role:   p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// PrincipalFrom returns the authenticated caller, or nil for guests.
func PrincipalFrom(c *gin.Context) *models.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*models.Principal)
	return p
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
