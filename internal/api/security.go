package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/visitorpass/desk/internal/models"
)

// ErrPassCodeRequired is returned before any request for a blank pass code.
var ErrPassCodeRequired = errors.New("pass code required")

// SecurityService wraps the security desk endpoints.
type SecurityService struct {
	c *Client
}

// TodaysDashboard returns today's approved and on-site visitors. The two lists page
// independently; the backend reads them from the approved_ and onSite_ prefixed params.
func (s *SecurityService) TodaysDashboard(ctx context.Context, tenantID int64, approvedPage, onSitePage, size int) (*models.SecurityDashboard, error) {
	path, err := tenantPath(tenantID, "/security/dashboard/today")
	if err != nil {
		return nil, err
	}
	if approvedPage < 0 || onSitePage < 0 || size < 1 {
		return nil, fmt.Errorf("%w: approved_page=%d onSite_page=%d size=%d", ErrInvalidPage, approvedPage, onSitePage, size)
	}
	q := url.Values{}
	q.Set("approved_page", strconv.Itoa(approvedPage))
	q.Set("approved_size", strconv.Itoa(size))
	q.Set("onSite_page", strconv.Itoa(onSitePage))
	q.Set("onSite_size", strconv.Itoa(size))

	var out models.SecurityDashboard
	if err := s.c.do(ctx, http.MethodGet, path, q, nil, &out); err != nil {
		return nil, err
	}
	if err := checkPage(out.ApprovedForEntry, size); err != nil {
		return nil, fmt.Errorf("approved for entry: %w", err)
	}
	if err := checkPage(out.CurrentlyOnSite, size); err != nil {
		return nil, fmt.Errorf("currently on site: %w", err)
	}
	return &out, nil
}

// SearchByCode looks up a pass by its 8-character code.
func (s *SecurityService) SearchByCode(ctx context.Context, tenantID int64, passCode string) (*models.Pass, error) {
	path, err := tenantPath(tenantID, "/security/passes/search")
	if err != nil {
		return nil, err
	}
	passCode = strings.TrimSpace(passCode)
	if passCode == "" {
		return nil, ErrPassCodeRequired
	}
	q := url.Values{}
	q.Set("passCode", passCode)
	var pass models.Pass
	if err := s.c.do(ctx, http.MethodGet, path, q, nil, &pass); err != nil {
		return nil, err
	}
	return &pass, nil
}

// CheckIn moves an approved pass to CHECKED_IN.
func (s *SecurityService) CheckIn(ctx context.Context, tenantID, passID int64) error {
	return s.post(ctx, tenantID, "/security/check-in/", passID)
}

// CheckOut moves a checked-in pass to CHECKED_OUT.
func (s *SecurityService) CheckOut(ctx context.Context, tenantID, passID int64) error {
	return s.post(ctx, tenantID, "/security/check-out/", passID)
}

func (s *SecurityService) post(ctx context.Context, tenantID int64, prefix string, passID int64) error {
	path, err := tenantPath(tenantID, prefix+strconv.FormatInt(passID, 10))
	if err != nil {
		return err
	}
	return s.c.do(ctx, http.MethodPost, path, nil, struct{}{}, nil)
}
