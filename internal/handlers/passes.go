package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/visitorpass/desk/internal/models"
	"github.com/visitorpass/desk/pkg/response"
)

// Passes handles GET /desk/passes, the caller's own requests.
func (h *Handler) Passes(c *gin.Context) {
	dk, ok := h.desk(c)
	if !ok {
		return
	}
	if dk.History == nil {
		unavailable(c)
		return
	}
	if err := dk.History.Sync(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, dk.History.Snapshot())
}

// PassesPage handles POST /desk/passes/page.
func (h *Handler) PassesPage(c *gin.Context) {
	dk, ok := h.desk(c)
	if !ok {
		return
	}
	if dk.History == nil {
		unavailable(c)
		return
	}
	var req PageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := dk.History.SetPage(c.Request.Context(), req.Page); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, dk.History.Snapshot())
}

// CreatePass handles POST /desk/passes.
func (h *Handler) CreatePass(c *gin.Context) {
	dk, ok := h.desk(c)
	if !ok {
		return
	}
	if dk.History == nil {
		unavailable(c)
		return
	}
	var req models.CreatePassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	pass, err := dk.History.CreatePass(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, pass)
}
