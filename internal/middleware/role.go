package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/visitorpass/desk/internal/models"
	"github.com/visitorpass/desk/pkg/response"
)

// RequireRole returns a middleware that allows only the given roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		r, ok := role(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if _, ok := allowed[r]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
