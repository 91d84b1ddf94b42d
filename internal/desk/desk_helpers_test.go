package desk_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/visitorpass/desk/internal/api"
	"github.com/visitorpass/desk/internal/api/apitest"
	"github.com/visitorpass/desk/internal/desk"
	"github.com/visitorpass/desk/internal/events"
	"github.com/visitorpass/desk/internal/toast"
)

const (
	tenant  = int64(7)
	waitFor = 3 * time.Second
	tick    = 5 * time.Millisecond
)

type fixture struct {
	backend *apitest.Backend
	changes *events.ChangeBus
	toasts  *toast.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		backend: apitest.NewBackend(t),
		changes: events.NewChangeBus(zap.NewNop()),
		toasts:  &toast.Recorder{},
	}
}

func (f *fixture) deps(pageSize int) desk.Deps {
	return desk.Deps{
		Client:            api.NewClient(f.backend.URL(), "token"),
		TenantID:          tenant,
		Changes:           f.changes,
		Toasts:            f.toasts,
		Logger:            zap.NewNop(),
		PageSize:          pageSize,
		DashboardPageSize: pageSize,
	}
}

type lifecycle interface {
	Start()
	Stop()
}

// start runs c until the test ends and waits for its first load.
func start(t *testing.T, c lifecycle, version func() uint64) {
	t.Helper()
	c.Start()
	t.Cleanup(c.Stop)
	require.Eventually(t, func() bool { return version() >= 1 }, waitFor, tick)
}
