package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/visitorpass/desk/internal/models"
)

// UserService wraps the tenant admin endpoints.
type UserService struct {
	c *Client
}

// List returns one page of tenant members.
func (s *UserService) List(ctx context.Context, tenantID int64, page, size int) (*models.Page[models.User], error) {
	path, err := tenantPath(tenantID, "/admin/users")
	if err != nil {
		return nil, err
	}
	q, err := pageQuery(page, size)
	if err != nil {
		return nil, err
	}
	var out models.Page[models.User]
	if err := s.c.do(ctx, http.MethodGet, path, q, nil, &out); err != nil {
		return nil, err
	}
	if err := checkPage(out, size); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create adds a tenant member.
func (s *UserService) Create(ctx context.Context, tenantID int64, req models.CreateUserRequest) (*models.User, error) {
	path, err := tenantPath(tenantID, "/admin/users")
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := s.c.do(ctx, http.MethodPost, path, nil, req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SetActive activates or deactivates a member and returns the updated record.
func (s *UserService) SetActive(ctx context.Context, tenantID, userID int64, active bool) (*models.User, error) {
	path, err := tenantPath(tenantID, "/admin/users/"+strconv.FormatInt(userID, 10)+"/status")
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := s.c.do(ctx, http.MethodPut, path, nil, models.UpdateUserStatusRequest{IsActive: active}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Dashboard returns the tenant admin summary as the backend shapes it.
func (s *UserService) Dashboard(ctx context.Context, tenantID int64) (map[string]json.RawMessage, error) {
	path, err := tenantPath(tenantID, "/admin/dashboard")
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage)
	if err := s.c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
