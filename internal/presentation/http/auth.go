package httppresentation

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	dombasket "github.com/ThierryFotabong/feeya/internal/domain/basket"
	"github.com/ThierryFotabong/feeya/internal/observability"
	"github.com/ThierryFotabong/feeya/internal/observability/logctx"
)

const (
	headerSessionID = "X-Session-ID"
	ctxCustomerID   = "feeya.customer_id"
	ctxPerms        = "feeya.perms"

	PermOrdersWrite  = "orders:write"
	PermCatalogWrite = "catalog:write"
)

type AuthConfig struct {
	Secret   string
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// Authz validates HS256 bearer tokens. The subject is the customer id; "perms"
// carries operator permissions.
type Authz struct {
	cfg AuthConfig
}

func NewAuthz(cfg AuthConfig) *Authz {
	if cfg.Leeway <= 0 {
		cfg.Leeway = 30 * time.Second
	}
	return &Authz{cfg: cfg}
}

// Identify accepts anonymous callers. A present but invalid token is still rejected.
func (a *Authz) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		if !a.authenticate(c) {
			return
		}
		c.Next()
	}
}

// RequireCustomer rejects callers without a signed-in subject.
func (a *Authz) RequireCustomer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.authenticate(c) {
			return
		}
		c.Next()
	}
}

// Require checks JWT and ensures all required permissions are present.
func (a *Authz) Require(requiredPerms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.authenticate(c) {
			return
		}
		perms, _ := c.Get(ctxPerms)
		if !hasAll(perms.(map[string]struct{}), requiredPerms) {
			forbidden(c, "insufficient_scope", "missing required permissions")
			return
		}
		c.Next()
	}
}

func (a *Authz) authenticate(c *gin.Context) bool {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		unauth(c, "invalid_request", "missing bearer token")
		return false
	}

	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.cfg.Leeway),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), claims, func(t *jwt.Token) (any, error) {
		return []byte(a.cfg.Secret), nil
	}, opts...)
	if err != nil || !token.Valid {
		unauth(c, "invalid_token", "invalid jwt")
		return false
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		unauth(c, "invalid_token", "missing subject")
		return false
	}
	c.Set(ctxCustomerID, sub)
	c.Set(ctxPerms, extractPerms(claims))
	c.Request = c.Request.WithContext(logctx.Enrich(c.Request.Context(), nil, observability.F("customer_id", sub)))
	return true
}

func customerID(c *gin.Context) string {
	return c.GetString(ctxCustomerID)
}

// basketOwner prefers the signed-in customer and falls back to the guest session header.
func basketOwner(c *gin.Context) dombasket.Owner {
	if id := customerID(c); id != "" {
		return dombasket.Owner{CustomerID: id}
	}
	return dombasket.Owner{SessionID: c.GetHeader(headerSessionID)}
}

func extractPerms(claims jwt.MapClaims) map[string]struct{} {
	out := map[string]struct{}{}
	if arr, ok := claims["perms"].([]any); ok {
		for _, v := range arr {
			if s, ok := v.(string); ok && s != "" {
				out[s] = struct{}{}
			}
		}
	}
	return out
}

func hasAll(have map[string]struct{}, req []string) bool {
	for _, r := range req {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return true
}

func unauth(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code, "error_description": desc})
}

func forbidden(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": code, "error_description": desc})
}
