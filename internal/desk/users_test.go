package desk_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visitorpass/desk/internal/desk"
	"github.com/visitorpass/desk/internal/forms"
	"github.com/visitorpass/desk/internal/models"
	"github.com/visitorpass/desk/internal/toast"
)

const usersPath = "/api/tenants/7/admin/users"

func seedUsers(f *fixture) {
	f.backend.AddUsers(
		models.User{ID: 1, Name: "Alice", Email: "alice@acme.test", Role: models.RoleTenantAdmin, IsActive: true, TenantID: tenant},
		models.User{ID: 2, Name: "Bob", Email: "bob@acme.test", Role: models.RoleApprover, IsActive: true, TenantID: tenant},
		models.User{ID: 3, Name: "Carol", Email: "carol@acme.test", Role: models.RoleSecurity, IsActive: true, TenantID: tenant},
	)
}

func TestUserListCreate(t *testing.T) {
	f := newFixture(t)
	seedUsers(f)
	ctx := context.Background()

	list := desk.NewUserList(f.deps(2))
	start(t, list, func() uint64 { return list.Snapshot().Version })
	require.NoError(t, list.SetPage(ctx, 1))

	_, err := list.CreateUser(ctx, models.CreateUserRequest{Name: "Dan", Email: "nope"})
	var ferr *forms.Errors
	require.True(t, errors.As(err, &ferr))
	assert.NotEmpty(t, ferr.Get("email"))
	assert.NotEmpty(t, ferr.Get("password"))
	assert.Zero(t, f.backend.Count(http.MethodPost, usersPath))
	assert.Equal(t, 1, f.toasts.Count(toast.LevelWarning))

	user, err := list.CreateUser(ctx, models.CreateUserRequest{
		Name: "Dan", Email: "dan@acme.test", Password: "password1", Role: models.RoleEmployee,
	})
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	snap := list.Snapshot()
	assert.Equal(t, 0, snap.Data.Number)
	assert.EqualValues(t, 4, snap.Data.TotalElements)

	_, err = list.CreateUser(ctx, models.CreateUserRequest{
		Name: "Dan again", Email: "dan@acme.test", Password: "password1", Role: models.RoleEmployee,
	})
	require.Error(t, err)
	last, _ := f.toasts.Last()
	assert.Equal(t, "Email already in use", last.Message)
}

func TestUserListSetActiveReloads(t *testing.T) {
	f := newFixture(t)
	seedUsers(f)
	ctx := context.Background()

	list := desk.NewUserList(f.deps(10))
	start(t, list, func() uint64 { return list.Snapshot().Version })
	before := list.Snapshot().Version

	updated, err := list.SetActive(ctx, 2, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	snap := list.Snapshot()
	assert.Equal(t, before+1, snap.Version, "the list is reloaded, not patched")
	for _, u := range snap.Data.Content {
		if u.ID == 2 {
			assert.False(t, u.IsActive)
		}
	}
	last, _ := f.toasts.Last()
	assert.Equal(t, "User has been deactivated.", last.Message)

	_, err = list.SetActive(ctx, 99, true)
	require.Error(t, err)
	last, _ = f.toasts.Last()
	assert.Equal(t, "User not found", last.Message)
}

func TestPassHistoryCreateNotifiesApprovers(t *testing.T) {
	f := newFixture(t)
	f.backend.SeedPasses(tenant, 1, 2, models.PassApproved)
	ctx := context.Background()

	history := desk.NewPassHistory(f.deps(10))
	panel := desk.NewPendingPanel(f.deps(10))
	start(t, history, func() uint64 { return history.Snapshot().Version })
	start(t, panel, func() uint64 { return panel.Snapshot().Version })
	require.Empty(t, panel.Snapshot().Data)

	_, err := history.CreatePass(ctx, models.CreatePassRequest{VisitorName: "Eve"})
	require.Error(t, err)
	assert.Zero(t, f.backend.Count(http.MethodPost, "/api/tenants/7/passes"))

	pass, err := history.CreatePass(ctx, models.CreatePassRequest{
		VisitorName:   "Eve",
		VisitorEmail:  "eve@example.com",
		Purpose:       "Audit",
		VisitDateTime: models.Timestamp{Time: time.Now().Add(24 * time.Hour)},
	})
	require.NoError(t, err)
	assert.Equal(t, models.PassPending, pass.Status)
	assert.EqualValues(t, 3, history.Snapshot().Data.TotalElements)

	require.Eventually(t, func() bool { return panel.Has(pass.ID) }, waitFor, tick)
}
