package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/visitorpass/desk/internal/auth"
	"github.com/visitorpass/desk/internal/models"
	"github.com/visitorpass/desk/pkg/response"
)

const (
	// ContextClaims is the key for the decoded *auth.Claims in gin context.
	ContextClaims = "claims"
	// ContextToken is the key for the raw bearer token, forwarded to the backend.
	ContextToken = "token"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
	// ContextTenantID is the key for the tenant id in gin context.
	ContextTenantID = "tenant_id"
)

// JWT returns a middleware that validates the backend bearer token and sets its claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			if errors.Is(err, auth.ErrNoTenant) {
				response.Forbidden(c, "account is not assigned to a tenant")
			} else {
				response.Unauthorized(c, "invalid or expired token")
			}
			c.Abort()
			return
		}
		c.Set(ContextClaims, claims)
		c.Set(ContextToken, parts[1])
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUserEmail, claims.Email())
		c.Set(ContextTenantID, claims.TenantID)
		c.Next()
	}
}

// Claims returns the claims set by JWT.
func Claims(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

// Token returns the bearer token set by JWT.
func Token(c *gin.Context) string {
	return c.GetString(ContextToken)
}

// role reads the role set by JWT.
func role(c *gin.Context) (models.Role, bool) {
	v, ok := c.Get(ContextUserRole)
	if !ok {
		return "", false
	}
	r, ok := v.(models.Role)
	return r, ok
}
