package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/visitorpass/desk/internal/api"
	"github.com/visitorpass/desk/internal/api/apitest"
	"github.com/visitorpass/desk/internal/models"
)

func TestPassPagination(t *testing.T) {
	t.Parallel()

	backend := apitest.NewBackend(t)
	backend.SeedPasses(7, 1, 23, models.PassPending)
	client := api.NewClient(backend.URL(), "token")
	ctx := context.Background()

	t.Run("content never exceeds the requested size", func(t *testing.T) {
		for _, size := range []int{1, 5, 10, 50} {
			page, err := client.Passes.ForTenant(ctx, 7, 0, size)
			require.NoError(t, err)
			require.LessOrEqual(t, len(page.Content), size)
			require.True(t, page.Valid())
		}
	})

	t.Run("consecutive pages are disjoint", func(t *testing.T) {
		first, err := client.Passes.ForTenant(ctx, 7, 0, 10)
		require.NoError(t, err)
		second, err := client.Passes.ForTenant(ctx, 7, 1, 10)
		require.NoError(t, err)

		seen := make(map[int64]bool)
		for _, p := range first.Content {
			seen[p.ID] = true
		}
		for _, p := range second.Content {
			require.False(t, seen[p.ID], "pass %d on both pages", p.ID)
		}
		require.Equal(t, 0, first.Number)
		require.Equal(t, 1, second.Number)
		require.EqualValues(t, 23, second.TotalElements)
	})

	t.Run("history uses its own endpoint", func(t *testing.T) {
		_, err := client.Passes.History(ctx, 7, 2, 10)
		require.NoError(t, err)
		require.Equal(t, 1, backend.Count(http.MethodGet, "/api/tenants/7/passes/history"))
	})
}

func TestRequestGuards(t *testing.T) {
	t.Parallel()

	backend := apitest.NewBackend(t)
	client := api.NewClient(backend.URL(), "")
	ctx := context.Background()

	_, err := client.Passes.ForTenant(ctx, 0, 0, 10)
	require.ErrorIs(t, err, api.ErrTenantRequired)

	_, err = client.Passes.ForTenant(ctx, 7, -1, 10)
	require.ErrorIs(t, err, api.ErrInvalidPage)

	_, err = client.Users.List(ctx, 7, 0, 0)
	require.ErrorIs(t, err, api.ErrInvalidPage)

	_, err = client.Security.SearchByCode(ctx, 7, "   ")
	require.ErrorIs(t, err, api.ErrPassCodeRequired)

	_, err = client.Security.TodaysDashboard(ctx, 7, 0, -2, 5)
	require.ErrorIs(t, err, api.ErrInvalidPage)
	require.Contains(t, err.Error(), "onSite_page=-2")

	require.Empty(t, backend.Requests())
}

func TestOversizedPageRejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"id":1},{"id":2},{"id":3}],"number":0,"size":2,"totalElements":3,"totalPages":2}`))
	}))
	t.Cleanup(srv.Close)
	client := api.NewClient(srv.URL, "token")

	_, err := client.Passes.ForTenant(context.Background(), 7, 0, 2)
	require.ErrorIs(t, err, api.ErrPageOverflow)

	_, err = client.Users.List(context.Background(), 7, 0, 2)
	require.ErrorIs(t, err, api.ErrPageOverflow)
}

func TestApproveAndReject(t *testing.T) {
	t.Parallel()

	backend := apitest.NewBackend(t)
	backend.SeedPasses(7, 41, 2, models.PassPending)
	client := api.NewClient(backend.URL(), "token")
	ctx := context.Background()

	require.NoError(t, client.Passes.Approve(ctx, 7, 41))
	require.NoError(t, client.Passes.Reject(ctx, 7, 42, "no host available"))

	p41, _ := backend.Pass(41)
	p42, _ := backend.Pass(42)
	require.Equal(t, models.PassApproved, p41.Status)
	require.Equal(t, models.PassRejected, p42.Status)
	require.Equal(t, "no host available", p42.RejectionReason)

	require.Equal(t, 1, backend.Count(http.MethodPost, "/api/tenants/7/approvals/41/approve"))
	require.Equal(t, 1, backend.Count(http.MethodPost, "/api/tenants/7/approvals/42/reject"))

	pending, err := client.Passes.Pending(ctx, 7)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestErrorsPropagateUnchanged(t *testing.T) {
	t.Parallel()

	backend := apitest.NewBackend(t)
	backend.SeedPasses(7, 1, 1, models.PassPending)
	client := api.NewClient(backend.URL(), "token")
	ctx := context.Background()

	err := client.Security.CheckIn(ctx, 7, 1)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, "Pass must be approved before check-in.", api.Message(err, "fallback"))

	backend.Fail(http.MethodGet, "/api/tenants/7/admin/users", http.StatusInternalServerError, "")
	_, err = client.Users.List(ctx, 7, 0, 10)
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Failed to load users.", api.Message(err, "Failed to load users."))

	_, err = client.Security.SearchByCode(ctx, 7, "NOPE1234")
	require.True(t, api.IsNotFound(err))

	// Exactly one request per call, failures included.
	require.Equal(t, 1, backend.Count(http.MethodPost, "/api/tenants/7/security/check-in/1"))
	require.Equal(t, 1, backend.Count(http.MethodGet, "/api/tenants/7/admin/users"))
}

func TestRequestShape(t *testing.T) {
	t.Parallel()

	reqs := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs <- r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"approvedForEntry":{"content":[],"number":1,"size":5},"currentlyOnSite":{"content":[],"number":2,"size":5}}`))
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL+"/api/", "abc.def.ghi")
	dash, err := client.Security.TodaysDashboard(context.Background(), 7, 1, 2, 5)
	require.NoError(t, err)
	require.Equal(t, 1, dash.ApprovedForEntry.Number)
	require.Equal(t, 2, dash.CurrentlyOnSite.Number)

	got := <-reqs
	require.Equal(t, "/api/tenants/7/security/dashboard/today", got.URL.Path)
	require.Equal(t, "1", got.URL.Query().Get("approved_page"))
	require.Equal(t, "5", got.URL.Query().Get("approved_size"))
	require.Equal(t, "2", got.URL.Query().Get("onSite_page"))
	require.Equal(t, "5", got.URL.Query().Get("onSite_size"))
	require.Equal(t, "Bearer abc.def.ghi", got.Header.Get("Authorization"))
}

func TestUsers(t *testing.T) {
	t.Parallel()

	backend := apitest.NewBackend(t)
	client := api.NewClient(backend.URL(), "token")
	ctx := context.Background()

	u, err := client.Users.Create(ctx, 7, models.CreateUserRequest{
		Name: "Dana", Email: "dana@example.com", Password: "s3cretpass", Role: models.RoleSecurity,
	})
	require.NoError(t, err)
	require.True(t, u.IsActive)

	updated, err := client.Users.SetActive(ctx, 7, u.ID, false)
	require.NoError(t, err)
	require.False(t, updated.IsActive)

	page, err := client.Users.List(ctx, 7, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	require.False(t, page.Content[0].IsActive)

	dash, err := client.Users.Dashboard(ctx, 7)
	require.NoError(t, err)
	require.Contains(t, dash, "totalUsers")
}
