package desk_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/visitorpass/desk/internal/api/apitest"
	"github.com/visitorpass/desk/internal/auth"
	"github.com/visitorpass/desk/internal/desk"
	"github.com/visitorpass/desk/internal/events"
	"github.com/visitorpass/desk/internal/models"
	"github.com/visitorpass/desk/internal/toast"
)

func claims(email string, role models.Role) *auth.Claims {
	return &auth.Claims{
		TenantID:         tenant,
		Role:             role,
		RegisteredClaims: jwt.RegisteredClaims{Subject: email},
	}
}

func newRegistry(t *testing.T, backend *apitest.Backend) *desk.Registry {
	t.Helper()
	changes := events.NewTenants(func(int64) events.Broadcaster { return events.NewChangeBus(nil) })
	reg := desk.NewRegistry(desk.RegistryConfig{
		APIBaseURL:  backend.URL(),
		PageSize:    10,
		IdleTimeout: time.Minute,
	}, changes, nil, zap.NewNop())
	t.Cleanup(reg.Shutdown)
	return reg
}

func TestRegistryBuildsDeskForRole(t *testing.T) {
	backend := apitest.NewBackend(t)
	reg := newRegistry(t, backend)

	cases := map[models.Role][5]bool{
		//                      approvals pending security users history
		models.RoleEmployee:    {false, false, false, false, true},
		models.RoleApprover:    {true, true, false, false, true},
		models.RoleSecurity:    {false, false, true, false, false},
		models.RoleTenantAdmin: {true, true, true, true, true},
	}
	for role, want := range cases {
		dk := reg.Open("token-"+string(role), claims(string(role)+"@acme.test", role))
		got := [5]bool{dk.Approvals != nil, dk.Pending != nil, dk.Security != nil, dk.Users != nil, dk.History != nil}
		assert.Equal(t, want, got, role)
		assert.Equal(t, tenant, dk.TenantID)
	}
	assert.Equal(t, 4, reg.Len())
}

func TestRegistryReusesAndReapsDesks(t *testing.T) {
	backend := apitest.NewBackend(t)
	reg := newRegistry(t, backend)

	a := reg.Open("token-a", claims("a@acme.test", models.RoleApprover))
	assert.Same(t, a, reg.Open("token-a", claims("a@acme.test", models.RoleApprover)))
	assert.Equal(t, desk.SessionKey("token-a"), a.ID)
	got, ok := reg.Get(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)

	assert.Zero(t, reg.Reap(time.Now()))
	assert.Equal(t, 1, reg.Reap(time.Now().Add(2*time.Minute)))
	assert.Zero(t, reg.Len())
	assert.False(t, a.Approvals.Running())

	b := reg.Open("token-b", claims("b@acme.test", models.RoleEmployee))
	assert.True(t, reg.Close(b.ID))
	assert.False(t, reg.Close(b.ID))
	assert.False(t, b.History.Running())
}

func TestRegistryKeepsConnectedDesks(t *testing.T) {
	backend := apitest.NewBackend(t)
	reg := newRegistry(t, backend)

	connected := reg.Open("token-ws", claims("ws@acme.test", models.RoleApprover))
	idle := reg.Open("token-idle", claims("idle@acme.test", models.RoleApprover))
	var mu sync.Mutex
	attached := map[string]bool{connected.ID: true}
	reg.SetActive(func(id string) bool {
		mu.Lock()
		defer mu.Unlock()
		return attached[id]
	})

	reaped := time.Now().Add(2 * time.Minute)
	assert.Equal(t, 1, reg.Reap(reaped))
	_, ok := reg.Get(connected.ID)
	require.True(t, ok)
	_, ok = reg.Get(idle.ID)
	assert.False(t, ok)
	assert.True(t, connected.Approvals.Running())

	mu.Lock()
	attached[connected.ID] = false
	mu.Unlock()
	assert.True(t, connected.LastSeen().Equal(reaped), "an attached desk is touched on each reap")
	assert.Zero(t, reg.Reap(reaped.Add(30*time.Second)))
	assert.Equal(t, 1, reg.Reap(reaped.Add(2*time.Minute)))
	assert.Zero(t, reg.Len())
}

func TestRegistryDesksShareTenantChanges(t *testing.T) {
	backend := apitest.NewBackend(t)
	backend.SeedPasses(tenant, 40, 3, models.PassPending)
	reg := newRegistry(t, backend)

	var mu sync.Mutex
	sinks := make(map[string]*toast.Recorder)
	views := make(map[string][]desk.State)
	reg.SetSinks(func(id string) toast.Notifier {
		mu.Lock()
		defer mu.Unlock()
		sinks[id] = &toast.Recorder{}
		return sinks[id]
	}, func(id string) desk.ViewFunc {
		return func(component string, state desk.State) {
			mu.Lock()
			defer mu.Unlock()
			views[id] = append(views[id], state)
		}
	})

	approver := reg.Open("token-approver", claims("approver@acme.test", models.RoleApprover))
	admin := reg.Open("token-admin", claims("admin@acme.test", models.RoleTenantAdmin))
	require.NoError(t, approver.Approvals.Sync(context.Background()))
	require.NoError(t, admin.Pending.Sync(context.Background()))
	require.True(t, admin.Pending.Has(41))

	require.NoError(t, approver.Approvals.Approve(context.Background(), 41))
	require.Eventually(t, func() bool { return !admin.Pending.Has(41) }, waitFor, tick)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, sinks[approver.ID].Count(toast.LevelSuccess))
	assert.Zero(t, sinks[admin.ID].Count(toast.LevelSuccess))
	assert.Contains(t, views[admin.ID], desk.StateLoading)
	assert.Contains(t, views[admin.ID], desk.StateLoaded)
}
