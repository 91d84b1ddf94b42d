package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/visitorpass/desk/internal/desk"
)

const (
	// HeaderRequestID carries the request id in both directions.
	HeaderRequestID = "X-Request-ID"
	// ContextRequestID is the key for the request id in gin context.
	ContextRequestID = "request_id"
)

// Logger logs each request once it completes, with the desk session it ran for when the
// token was accepted. Paths in quiet are logged at debug level.
func Logger(logger *zap.Logger, quiet ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(quiet))
	for _, p := range quiet {
		skip[p] = true
	}
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(ContextRequestID, id)
		c.Header(HeaderRequestID, id)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", id),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("client_ip", c.ClientIP()),
		}
		if claims, ok := Claims(c); ok {
			fields = append(fields,
				zap.String("desk_id", desk.SessionKey(Token(c))),
				zap.Int64("tenant_id", claims.TenantID),
				zap.String("role", string(claims.Role)),
			)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		level := zapcore.InfoLevel
		switch {
		case status >= 500:
			level = zapcore.ErrorLevel
		case status >= 400:
			level = zapcore.WarnLevel
		case skip[c.Request.URL.Path]:
			level = zapcore.DebugLevel
		}
		if ce := logger.Check(level, "request"); ce != nil {
			ce.Write(fields...)
		}
	}
}
