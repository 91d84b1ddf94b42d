package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/visitorpass/desk/internal/models"
	"github.com/visitorpass/desk/pkg/response"
)

// Users handles GET /desk/users.
func (h *Handler) Users(c *gin.Context) {
	dk, ok := h.desk(c)
	if !ok {
		return
	}
	if dk.Users == nil {
		unavailable(c)
		return
	}
	if err := dk.Users.Sync(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, dk.Users.Snapshot())
}

// UsersPage handles POST /desk/users/page.
func (h *Handler) UsersPage(c *gin.Context) {
	dk, ok := h.desk(c)
	if !ok {
		return
	}
	if dk.Users == nil {
		unavailable(c)
		return
	}
	var req PageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := dk.Users.SetPage(c.Request.Context(), req.Page); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, dk.Users.Snapshot())
}

// CreateUser handles POST /desk/users.
func (h *Handler) CreateUser(c *gin.Context) {
	dk, ok := h.desk(c)
	if !ok {
		return
	}
	if dk.Users == nil {
		unavailable(c)
		return
	}
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := dk.Users.CreateUser(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, user)
}

// SetUserStatus handles PUT /desk/users/:id/status.
func (h *Handler) SetUserStatus(c *gin.Context) {
	dk, ok := h.desk(c)
	if !ok {
		return
	}
	if dk.Users == nil {
		unavailable(c)
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req models.UpdateUserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := dk.Users.SetActive(c.Request.Context(), id, req.IsActive)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, user)
}

// Summary handles GET /desk/summary, the tenant admin overview.
func (h *Handler) Summary(c *gin.Context) {
	dk, ok := h.desk(c)
	if !ok {
		return
	}
	summary, err := dk.Deps.Client.Users.Dashboard(c.Request.Context(), dk.TenantID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, summary)
}
