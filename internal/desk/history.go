package desk

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/visitorpass/desk/internal/api"
	"github.com/visitorpass/desk/internal/forms"
	"github.com/visitorpass/desk/internal/models"
)

// PassHistory pages through the passes the signed-in employee requested.
type PassHistory struct {
	*view[models.Page[models.Pass]]
	d Deps

	pageMu sync.Mutex
	page   int
}

// NewPassHistory creates a stopped history.
func NewPassHistory(d Deps) *PassHistory {
	d = d.withDefaults()
	h := &PassHistory{d: d}
	h.view = newView("history", d, "Failed to load your pass history.", h.fetch)
	h.watchChanges = true
	return h
}

func (h *PassHistory) fetch(ctx context.Context) (models.Page[models.Pass], error) {
	h.pageMu.Lock()
	page := h.page
	h.pageMu.Unlock()
	p, err := h.d.Client.Passes.History(ctx, h.d.TenantID, page, h.d.PageSize)
	if err != nil {
		return models.Page[models.Pass]{}, err
	}
	return *p, nil
}

// SetPage shows page n and waits for it to load.
func (h *PassHistory) SetPage(ctx context.Context, n int) error {
	if n < 0 {
		return api.ErrInvalidPage
	}
	return h.do(ctx, func(lctx context.Context) error {
		h.pageMu.Lock()
		h.page = n
		h.pageMu.Unlock()
		h.load(lctx)
		return nil
	})
}

// CreatePass validates req and submits the pass. The new pass is PENDING, so approvers are
// told that pass data changed.
func (h *PassHistory) CreatePass(ctx context.Context, req models.CreatePassRequest) (*models.Pass, error) {
	if err := forms.Validate(req); err != nil {
		var ferr *forms.Errors
		if errors.As(err, &ferr) {
			h.toasts.Warning("Please correct the highlighted fields.", "Validation Error")
		}
		return nil, err
	}
	var created *models.Pass
	err := h.do(ctx, func(lctx context.Context) error {
		pass, err := h.d.Client.Passes.Create(lctx, h.d.TenantID, req)
		if err != nil {
			if lctx.Err() == nil {
				h.toasts.Error(api.Message(err, "Failed to create pass."), "Error")
			}
			return err
		}
		created = pass
		h.toasts.Success("Pass request submitted successfully!", "Success")
		h.logger.Info("pass created", zap.Int64("pass_id", pass.ID))
		h.pageMu.Lock()
		h.page = 0
		h.pageMu.Unlock()
		h.load(lctx)
		h.notifyChanges()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
