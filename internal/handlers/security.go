package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/visitorpass/desk/internal/desk"
	"github.com/visitorpass/desk/pkg/response"
)

// SecurityPageRequest moves either list of the security dashboard. Absent fields keep their page.
type SecurityPageRequest struct {
	ApprovedPage *int `json:"approvedPage"`
	OnSitePage   *int `json:"onSitePage"`
}

func (h *Handler) security(c *gin.Context) (*desk.SecurityDashboard, bool) {
	dk, ok := h.desk(c)
	if !ok {
		return nil, false
	}
	if dk.Security == nil {
		unavailable(c)
		return nil, false
	}
	return dk.Security, true
}

// Security handles GET /desk/security.
func (h *Handler) Security(c *gin.Context) {
	s, ok := h.security(c)
	if !ok {
		return
	}
	if err := s.Sync(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, s.Snapshot())
}

// SecurityPage handles POST /desk/security/page.
func (h *Handler) SecurityPage(c *gin.Context) {
	s, ok := h.security(c)
	if !ok {
		return
	}
	var req SecurityPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	if req.ApprovedPage != nil {
		if err := s.SetApprovedPage(ctx, *req.ApprovedPage); err != nil {
			h.fail(c, err)
			return
		}
	}
	if req.OnSitePage != nil {
		if err := s.SetOnSitePage(ctx, *req.OnSitePage); err != nil {
			h.fail(c, err)
			return
		}
	}
	response.OK(c, s.Snapshot())
}

// Search handles GET /desk/security/search?passCode=.
func (h *Handler) Search(c *gin.Context) {
	s, ok := h.security(c)
	if !ok {
		return
	}
	pass, err := s.Search(c.Request.Context(), c.Query("passCode"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, pass)
}

// CheckIn handles POST /desk/security/:id/check-in.
func (h *Handler) CheckIn(c *gin.Context) {
	s, ok := h.security(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := s.CheckIn(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, s.Snapshot())
}

// CheckOut handles POST /desk/security/:id/check-out.
func (h *Handler) CheckOut(c *gin.Context) {
	s, ok := h.security(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := s.CheckOut(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, s.Snapshot())
}
