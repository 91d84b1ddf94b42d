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

// UserList pages through tenant members for tenant admins. Every change reloads the list from
// the first page; the server copy is the only one shown.
type UserList struct {
	*view[models.Page[models.User]]
	d Deps

	pageMu sync.Mutex
	page   int
}

// NewUserList creates a stopped list.
func NewUserList(d Deps) *UserList {
	d = d.withDefaults()
	u := &UserList{d: d}
	u.view = newView("users", d, "Failed to load users.", u.fetch)
	return u
}

func (u *UserList) fetch(ctx context.Context) (models.Page[models.User], error) {
	u.pageMu.Lock()
	page := u.page
	u.pageMu.Unlock()
	p, err := u.d.Client.Users.List(ctx, u.d.TenantID, page, u.d.PageSize)
	if err != nil {
		return models.Page[models.User]{}, err
	}
	return *p, nil
}

// SetPage shows page n and waits for it to load.
func (u *UserList) SetPage(ctx context.Context, n int) error {
	if n < 0 {
		return api.ErrInvalidPage
	}
	return u.do(ctx, func(lctx context.Context) error {
		u.setPage(n)
		u.load(lctx)
		return nil
	})
}

func (u *UserList) setPage(n int) {
	u.pageMu.Lock()
	u.page = n
	u.pageMu.Unlock()
}

// CreateUser validates req and adds the member. Invalid forms return *forms.Errors and send
// nothing to the backend.
func (u *UserList) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	if err := forms.Validate(req); err != nil {
		var ferr *forms.Errors
		if errors.As(err, &ferr) {
			u.toasts.Warning("Please correct the highlighted fields.", "Validation Error")
		}
		return nil, err
	}
	var created *models.User
	err := u.do(ctx, func(lctx context.Context) error {
		user, err := u.d.Client.Users.Create(lctx, u.d.TenantID, req)
		if err != nil {
			if lctx.Err() == nil {
				u.toasts.Error(api.Message(err, "Failed to create user."), "Error")
			}
			return err
		}
		created = user
		u.toasts.Success("User created successfully!", "Success")
		u.logger.Info("user created", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
		u.setPage(0)
		u.load(lctx)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SetActive activates or deactivates a member.
func (u *UserList) SetActive(ctx context.Context, userID int64, active bool) (*models.User, error) {
	var updated *models.User
	err := u.do(ctx, func(lctx context.Context) error {
		user, err := u.d.Client.Users.SetActive(lctx, u.d.TenantID, userID, active)
		if err != nil {
			if lctx.Err() == nil {
				u.toasts.Error(api.Message(err, "Failed to update user status."), "Error")
			}
			return err
		}
		updated = user
		action := "deactivated"
		if active {
			action = "activated"
		}
		u.toasts.Success("User has been "+action+".", "Success")
		u.logger.Info("user status changed", zap.Int64("user_id", userID), zap.Bool("active", active))
		u.setPage(0)
		u.load(lctx)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
