package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/visitorpass/desk/internal/models"
	"github.com/visitorpass/desk/pkg/response"
)

// Approvals handles GET /desk/approvals.
func (h *Handler) Approvals(c *gin.Context) {
	dk, ok := h.desk(c)
	if !ok {
		return
	}
	if dk.Approvals == nil {
		unavailable(c)
		return
	}
	if err := dk.Approvals.Sync(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, dk.Approvals.Snapshot())
}

// ApprovalsPage handles POST /desk/approvals/page.
func (h *Handler) ApprovalsPage(c *gin.Context) {
	dk, ok := h.desk(c)
	if !ok {
		return
	}
	if dk.Approvals == nil {
		unavailable(c)
		return
	}
	var req PageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := dk.Approvals.SetPage(c.Request.Context(), req.Page); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, dk.Approvals.Snapshot())
}

// Approve handles POST /desk/approvals/:id/approve.
func (h *Handler) Approve(c *gin.Context) {
	dk, ok := h.desk(c)
	if !ok {
		return
	}
	if dk.Approvals == nil {
		unavailable(c)
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := dk.Approvals.Approve(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, dk.Approvals.Snapshot())
}

// Reject handles POST /desk/approvals/:id/reject.
func (h *Handler) Reject(c *gin.Context) {
	dk, ok := h.desk(c)
	if !ok {
		return
	}
	if dk.Approvals == nil {
		unavailable(c)
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req models.RejectPassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := dk.Approvals.Reject(c.Request.Context(), id, req.Reason); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, dk.Approvals.Snapshot())
}

// Pending handles GET /desk/pending.
func (h *Handler) Pending(c *gin.Context) {
	dk, ok := h.desk(c)
	if !ok {
		return
	}
	if dk.Pending == nil {
		unavailable(c)
		return
	}
	if err := dk.Pending.Sync(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, dk.Pending.Snapshot())
}
