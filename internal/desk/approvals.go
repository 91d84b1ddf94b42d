package desk

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/visitorpass/desk/internal/api"
	"github.com/visitorpass/desk/internal/models"
)

// ApprovalQueue lists every pass of the tenant for approvers, one page at a time.
type ApprovalQueue struct {
	*view[models.Page[models.Pass]]
	d Deps

	pageMu sync.Mutex
	page   int
}

// NewApprovalQueue creates a stopped queue.
func NewApprovalQueue(d Deps) *ApprovalQueue {
	d = d.withDefaults()
	q := &ApprovalQueue{d: d}
	q.view = newView("approvals", d, "Failed to load pass data for approval.", q.fetch)
	q.watchChanges = true
	return q
}

func (q *ApprovalQueue) fetch(ctx context.Context) (models.Page[models.Pass], error) {
	q.pageMu.Lock()
	page := q.page
	q.pageMu.Unlock()
	p, err := q.d.Client.Passes.ForTenant(ctx, q.d.TenantID, page, q.d.PageSize)
	if err != nil {
		return models.Page[models.Pass]{}, err
	}
	for i := range p.Content {
		p.Content[i].Actions = models.Allowed(p.Content[i].Status, models.ActionApprove, models.ActionReject)
	}
	return *p, nil
}

func (q *ApprovalQueue) setPage(n int) {
	q.pageMu.Lock()
	q.page = n
	q.pageMu.Unlock()
}

// SetPage shows page n and waits for it to load.
func (q *ApprovalQueue) SetPage(ctx context.Context, n int) error {
	if n < 0 {
		return api.ErrInvalidPage
	}
	return q.do(ctx, func(lctx context.Context) error {
		q.setPage(n)
		q.load(lctx)
		return nil
	})
}

// Approve approves a pending pass. On success the queue returns to the first page, reloads
// and tells the rest of the tenant that pass data changed.
func (q *ApprovalQueue) Approve(ctx context.Context, passID int64) error {
	return q.do(ctx, func(lctx context.Context) error {
		if err := q.d.Client.Passes.Approve(lctx, q.d.TenantID, passID); err != nil {
			if lctx.Err() == nil {
				q.toasts.Error(api.Message(err, "Failed to approve pass."), "Error")
			}
			return err
		}
		q.toasts.Success("Pass approved successfully!", "Success")
		q.logger.Info("pass approved", zap.Int64("pass_id", passID))
		q.afterMutation(lctx)
		return nil
	})
}

// Reject rejects a pending pass. A blank reason is refused locally with ErrReasonRequired.
func (q *ApprovalQueue) Reject(ctx context.Context, passID int64, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		q.toasts.Warning("A reason is required to reject a pass.", "Validation Error")
		return ErrReasonRequired
	}
	return q.do(ctx, func(lctx context.Context) error {
		if err := q.d.Client.Passes.Reject(lctx, q.d.TenantID, passID, reason); err != nil {
			if lctx.Err() == nil {
				q.toasts.Error(api.Message(err, "Failed to reject pass."), "Error")
			}
			return err
		}
		q.toasts.Info("Pass has been rejected.", "Rejected")
		q.logger.Info("pass rejected", zap.Int64("pass_id", passID))
		q.afterMutation(lctx)
		return nil
	})
}

func (q *ApprovalQueue) afterMutation(ctx context.Context) {
	q.setPage(0)
	q.load(ctx)
	q.notifyChanges()
}

// PendingPanel shows the tenant's pending passes without paging.
type PendingPanel struct {
	*view[[]models.Pass]
}

// NewPendingPanel creates a stopped panel.
func NewPendingPanel(d Deps) *PendingPanel {
	d = d.withDefaults()
	p := &PendingPanel{}
	p.view = newView("pending", d, "Failed to load pending passes.", func(ctx context.Context) ([]models.Pass, error) {
		return d.Client.Passes.Pending(ctx, d.TenantID)
	})
	p.watchChanges = true
	return p
}

// Has reports whether pass id is in the panel.
func (p *PendingPanel) Has(id int64) bool {
	for _, pass := range p.Snapshot().Data {
		if pass.ID == id {
			return true
		}
	}
	return false
}
