package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/visitorpass/desk/internal/models"
)

// PassService wraps the pass and approval endpoints.
type PassService struct {
	c *Client
}

// Create submits a new pass request on behalf of the signed-in employee.
func (s *PassService) Create(ctx context.Context, tenantID int64, req models.CreatePassRequest) (*models.Pass, error) {
	path, err := tenantPath(tenantID, "/passes")
	if err != nil {
		return nil, err
	}
	var pass models.Pass
	if err := s.c.do(ctx, http.MethodPost, path, nil, req, &pass); err != nil {
		return nil, err
	}
	return &pass, nil
}

// History returns one page of the signed-in user's own passes.
func (s *PassService) History(ctx context.Context, tenantID int64, page, size int) (*models.Page[models.Pass], error) {
	return s.list(ctx, tenantID, "/passes/history", page, size)
}

// ForTenant returns one page of every pass in the tenant.
func (s *PassService) ForTenant(ctx context.Context, tenantID int64, page, size int) (*models.Page[models.Pass], error) {
	return s.list(ctx, tenantID, "/passes", page, size)
}

func (s *PassService) list(ctx context.Context, tenantID int64, suffix string, page, size int) (*models.Page[models.Pass], error) {
	path, err := tenantPath(tenantID, suffix)
	if err != nil {
		return nil, err
	}
	q, err := pageQuery(page, size)
	if err != nil {
		return nil, err
	}
	var out models.Page[models.Pass]
	if err := s.c.do(ctx, http.MethodGet, path, q, nil, &out); err != nil {
		return nil, err
	}
	if err := checkPage(out, size); err != nil {
		return nil, err
	}
	return &out, nil
}

// Pending fetches the tenant's pass list with the backend's default paging and keeps
// only PENDING passes.
func (s *PassService) Pending(ctx context.Context, tenantID int64) ([]models.Pass, error) {
	path, err := tenantPath(tenantID, "/passes")
	if err != nil {
		return nil, err
	}
	var out models.Page[models.Pass]
	if err := s.c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	pending := make([]models.Pass, 0, len(out.Content))
	for _, p := range out.Content {
		if p.Status == models.PassPending {
			pending = append(pending, p)
		}
	}
	return pending, nil
}

// Approve moves a pending pass to APPROVED.
func (s *PassService) Approve(ctx context.Context, tenantID, passID int64) error {
	path, err := tenantPath(tenantID, "/approvals/"+strconv.FormatInt(passID, 10)+"/approve")
	if err != nil {
		return err
	}
	return s.c.do(ctx, http.MethodPost, path, nil, struct{}{}, nil)
}

// Reject moves a pending pass to REJECTED with reason.
func (s *PassService) Reject(ctx context.Context, tenantID, passID int64, reason string) error {
	path, err := tenantPath(tenantID, "/approvals/"+strconv.FormatInt(passID, 10)+"/reject")
	if err != nil {
		return err
	}
	return s.c.do(ctx, http.MethodPost, path, nil, models.RejectPassRequest{Reason: reason}, nil)
}
