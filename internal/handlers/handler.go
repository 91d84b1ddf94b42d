// Package handlers exposes desk components over HTTP. Every route resolves the caller's desk
// from the bearer token, then reads a component snapshot or runs one of its actions.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/visitorpass/desk/internal/api"
	"github.com/visitorpass/desk/internal/auth"
	"github.com/visitorpass/desk/internal/desk"
	"github.com/visitorpass/desk/internal/forms"
	"github.com/visitorpass/desk/internal/middleware"
	"github.com/visitorpass/desk/internal/models"
	"github.com/visitorpass/desk/internal/realtime"
	"github.com/visitorpass/desk/pkg/response"
)

// Checker reports whether a dependency is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// Handler serves the desk routes.
type Handler struct {
	desks  *desk.Registry
	jwt    *auth.JWTService
	logger *zap.Logger
	redis  Checker
}

// NewHandler creates a desk handler.
func NewHandler(desks *desk.Registry, jwt *auth.JWTService, logger *zap.Logger) *Handler {
	return &Handler{desks: desks, jwt: jwt, logger: logger}
}

// Register mounts the desk routes under r.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/desk", middleware.JWT(h.jwt))
	g.DELETE("/session", h.CloseSession)

	approvers := g.Group("", middleware.RequireRole(models.RoleApprover, models.RoleTenantAdmin))
	approvers.GET("/approvals", h.Approvals)
	approvers.POST("/approvals/page", h.ApprovalsPage)
	approvers.POST("/approvals/:id/approve", h.Approve)
	approvers.POST("/approvals/:id/reject", h.Reject)
	approvers.GET("/pending", h.Pending)

	guards := g.Group("/security", middleware.RequireRole(models.RoleSecurity, models.RoleTenantAdmin))
	guards.GET("", h.Security)
	guards.POST("/page", h.SecurityPage)
	guards.GET("/search", h.Search)
	guards.POST("/:id/check-in", h.CheckIn)
	guards.POST("/:id/check-out", h.CheckOut)

	admins := g.Group("", middleware.RequireRole(models.RoleTenantAdmin))
	admins.GET("/users", h.Users)
	admins.POST("/users/page", h.UsersPage)
	admins.POST("/users", h.CreateUser)
	admins.PUT("/users/:id/status", h.SetUserStatus)
	admins.GET("/summary", h.Summary)

	members := g.Group("/passes", middleware.RequireRole(models.RoleEmployee, models.RoleApprover, models.RoleTenantAdmin))
	members.GET("", h.Passes)
	members.POST("/page", h.PassesPage)
	members.POST("", h.CreatePass)
}

// WebsocketSession validates a websocket token and opens its desk, so view events start
// flowing as soon as the browser connects.
func (h *Handler) WebsocketSession(token string) (realtime.Session, error) {
	claims, err := h.jwt.Validate(token)
	if err != nil {
		return realtime.Session{}, err
	}
	dk := h.desks.Open(token, claims)
	return realtime.Session{Room: dk.ID, Email: dk.Email}, nil
}

// SetRedis makes Health report on the shared Redis instance.
func (h *Handler) SetRedis(r Checker) {
	h.redis = r
}

// Health handles GET /health. A lost Redis degrades the console but does not fail it.
func (h *Handler) Health(c *gin.Context) {
	body := gin.H{"status": "ok", "desks": h.desks.Len()}
	if h.redis != nil {
		body["redis"] = "ok"
		if err := h.redis.Check(c.Request.Context()); err != nil {
			body["status"] = "degraded"
			body["redis"] = "unreachable"
		}
	}
	response.OK(c, body)
}

// CloseSession handles DELETE /desk/session.
func (h *Handler) CloseSession(c *gin.Context) {
	h.desks.Close(desk.SessionKey(middleware.Token(c)))
	response.NoContent(c)
}

// desk returns the caller's desk, opening it on first use.
func (h *Handler) desk(c *gin.Context) (*desk.Desk, bool) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return nil, false
	}
	return h.desks.Open(middleware.Token(c), claims), true
}

// PageRequest selects a page of a list component.
type PageRequest struct {
	Page int `json:"page"`
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

func unavailable(c *gin.Context) {
	response.Forbidden(c, "not available for your role")
}

// fail maps component and backend errors to responses.
func (h *Handler) fail(c *gin.Context, err error) {
	var ferr *forms.Errors
	var apiErr *api.Error
	switch {
	case errors.As(err, &ferr):
		response.ValidationFailed(c, "validation failed", ferr.Map())
	case errors.Is(err, desk.ErrReasonRequired),
		errors.Is(err, api.ErrPassCodeRequired),
		errors.Is(err, api.ErrInvalidPage):
		response.BadRequest(c, err.Error())
	case errors.As(err, &apiErr):
		status := apiErr.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		response.Error(c, status, apiErr.Message)
	case errors.Is(err, desk.ErrNotStarted):
		response.ServiceUnavailable(c, "desk is closing")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		response.Error(c, http.StatusGatewayTimeout, "request timed out")
	default:
		h.logger.Warn("desk request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Error(c, http.StatusBadGateway, "backend unavailable")
	}
}
