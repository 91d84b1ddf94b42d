package desk_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visitorpass/desk/internal/api"
	"github.com/visitorpass/desk/internal/desk"
	"github.com/visitorpass/desk/internal/models"
	"github.com/visitorpass/desk/internal/toast"
)

const (
	passesPath  = "/api/tenants/7/passes"
	approvePath = "/api/tenants/7/approvals/42/approve"
	rejectPath  = "/api/tenants/7/approvals/42/reject"
)

func TestApprovingUpdatesEveryDashboard(t *testing.T) {
	f := newFixture(t)
	f.backend.SeedPasses(tenant, 40, 6, models.PassPending)
	ctx := context.Background()

	queue := desk.NewApprovalQueue(f.deps(2))
	panel := desk.NewPendingPanel(f.deps(2))
	start(t, queue, func() uint64 { return queue.Snapshot().Version })
	start(t, panel, func() uint64 { return panel.Snapshot().Version })
	require.True(t, panel.Has(42))

	require.NoError(t, queue.SetPage(ctx, 1))
	require.Equal(t, 1, queue.Snapshot().Data.Number)

	require.NoError(t, queue.Approve(ctx, 42))

	snap := queue.Snapshot()
	assert.Equal(t, desk.StateLoaded, snap.State)
	assert.Equal(t, 0, snap.Data.Number, "queue returns to the first page")
	assert.Equal(t, 1, f.backend.Count(http.MethodPost, approvePath))
	pass, _ := f.backend.Pass(42)
	assert.Equal(t, models.PassApproved, pass.Status)

	require.Eventually(t, func() bool { return !panel.Has(42) }, waitFor, tick)
	assert.Len(t, panel.Snapshot().Data, 5)

	last, ok := f.toasts.Last()
	require.True(t, ok)
	assert.Equal(t, toast.LevelSuccess, last.Level)
	assert.Equal(t, "Pass approved successfully!", last.Message)
}

func TestApproveReloadsOwnQueueOnce(t *testing.T) {
	f := newFixture(t)
	f.backend.SeedPasses(tenant, 40, 3, models.PassPending)

	queue := desk.NewApprovalQueue(f.deps(10))
	start(t, queue, func() uint64 { return queue.Snapshot().Version })
	require.Equal(t, 1, f.backend.Count(http.MethodGet, passesPath))
	for _, p := range queue.Snapshot().Data.Content {
		assert.Equal(t, []models.Action{models.ActionApprove, models.ActionReject}, p.Actions)
	}

	require.NoError(t, queue.Approve(context.Background(), 42))
	assert.Equal(t, desk.StateLoaded, queue.Snapshot().State)
	assert.Equal(t, 2, f.backend.Count(http.MethodGet, passesPath))
	assert.Never(t, func() bool {
		return f.backend.Count(http.MethodGet, passesPath) > 2
	}, 100*time.Millisecond, tick, "the queue must not reload again on its own broadcast")
	for _, p := range queue.Snapshot().Data.Content {
		if p.ID == 42 {
			assert.Empty(t, p.Actions, "an approved pass offers no approval actions")
		}
	}
}

func TestBlankRejectReasonSendsNothing(t *testing.T) {
	f := newFixture(t)
	f.backend.SeedPasses(tenant, 40, 3, models.PassPending)

	queue := desk.NewApprovalQueue(f.deps(10))
	start(t, queue, func() uint64 { return queue.Snapshot().Version })

	for _, reason := range []string{"", "   ", "\t\n"} {
		err := queue.Reject(context.Background(), 42, reason)
		assert.ErrorIs(t, err, desk.ErrReasonRequired)
	}
	assert.Zero(t, f.backend.Count(http.MethodPost, rejectPath))
	assert.Equal(t, 3, f.toasts.Count(toast.LevelWarning))
}

func TestRejectReloadShowsNewStatus(t *testing.T) {
	f := newFixture(t)
	f.backend.SeedPasses(tenant, 40, 3, models.PassPending)

	queue := desk.NewApprovalQueue(f.deps(10))
	start(t, queue, func() uint64 { return queue.Snapshot().Version })

	require.NoError(t, queue.Reject(context.Background(), 42, "  No host available  "))

	pass, _ := f.backend.Pass(42)
	assert.Equal(t, "No host available", pass.RejectionReason)

	var shown models.PassStatus
	for _, p := range queue.Snapshot().Data.Content {
		if p.ID == 42 {
			shown = p.Status
		}
	}
	assert.Equal(t, models.PassRejected, shown)
	assert.Equal(t, 1, f.toasts.Count(toast.LevelInfo))
}

func TestFailedActionIsToastedAndReturned(t *testing.T) {
	f := newFixture(t)
	f.backend.SeedPasses(tenant, 42, 1, models.PassApproved)

	queue := desk.NewApprovalQueue(f.deps(10))
	start(t, queue, func() uint64 { return queue.Snapshot().Version })
	before := queue.Snapshot().Version

	err := queue.Approve(context.Background(), 42)
	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	last, ok := f.toasts.Last()
	require.True(t, ok)
	assert.Equal(t, toast.LevelError, last.Level)
	assert.Equal(t, "Pass must be pending to approve.", last.Message)
	assert.Equal(t, desk.StateLoaded, queue.Snapshot().State, "a failed action leaves the view alone")
	assert.Equal(t, before, queue.Snapshot().Version)
}

func TestLoadFailureEntersErrorState(t *testing.T) {
	f := newFixture(t)
	f.backend.Fail(http.MethodGet, passesPath, http.StatusInternalServerError, "database down")

	queue := desk.NewApprovalQueue(f.deps(10))
	queue.Start()
	t.Cleanup(queue.Stop)

	require.Eventually(t, func() bool { return queue.Snapshot().State == desk.StateError }, waitFor, tick)
	snap := queue.Snapshot()
	assert.Contains(t, snap.Error, "database down")
	assert.Zero(t, snap.Version)

	last, ok := f.toasts.Last()
	require.True(t, ok)
	assert.Equal(t, "Failed to load pass data for approval.", last.Message)
}

func TestStoppedComponentIgnoresBroadcasts(t *testing.T) {
	f := newFixture(t)
	f.backend.SeedPasses(tenant, 40, 3, models.PassPending)

	panel := desk.NewPendingPanel(f.deps(10))
	start(t, panel, func() uint64 { return panel.Snapshot().Version })
	require.Equal(t, 1, f.changes.Listeners())

	panel.Stop()
	assert.Zero(t, f.changes.Listeners())
	requests := f.backend.Count(http.MethodGet, passesPath)

	f.changes.Notify()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, requests, f.backend.Count(http.MethodGet, passesPath))
	assert.ErrorIs(t, panel.Sync(context.Background()), desk.ErrNotStarted)
}

func TestStopDropsInFlightResult(t *testing.T) {
	f := newFixture(t)
	f.backend.SeedPasses(tenant, 40, 3, models.PassPending)

	queue := desk.NewApprovalQueue(f.deps(10))
	start(t, queue, func() uint64 { return queue.Snapshot().Version })
	before := queue.Snapshot()

	release := f.backend.Hold(http.MethodGet, passesPath)
	defer release()
	f.backend.SeedPasses(tenant, 50, 1, models.PassPending)
	queue.Trigger()
	require.Eventually(t, func() bool { return f.backend.Count(http.MethodGet, passesPath) == 2 }, waitFor, tick)

	stopped := make(chan struct{})
	go func() {
		queue.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(waitFor):
		t.Fatal("Stop did not cancel the in-flight request")
	}
	release()
	time.Sleep(20 * time.Millisecond)

	after := queue.Snapshot()
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.Data, after.Data)
	assert.ErrorIs(t, queue.Approve(context.Background(), 40), desk.ErrNotStarted)
	assert.Zero(t, f.backend.Count(http.MethodPost, "/api/tenants/7/approvals/40/approve"))
}

func TestConcurrentTriggersCollapse(t *testing.T) {
	f := newFixture(t)
	f.backend.SeedPasses(tenant, 40, 3, models.PassPending)
	release := f.backend.Hold(http.MethodGet, passesPath)
	defer release()

	queue := desk.NewApprovalQueue(f.deps(10))
	queue.Start()
	t.Cleanup(queue.Stop)
	require.Eventually(t, func() bool { return f.backend.Count(http.MethodGet, passesPath) == 1 }, waitFor, tick)

	for i := 0; i < 5; i++ {
		queue.Trigger()
		f.changes.Notify()
	}
	release()

	require.Eventually(t, func() bool { return queue.Snapshot().Version == 2 }, waitFor, tick)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, f.backend.Count(http.MethodGet, passesPath))
	assert.EqualValues(t, 2, queue.Snapshot().Version)
}

func TestSetPageRejectsNegative(t *testing.T) {
	f := newFixture(t)
	queue := desk.NewApprovalQueue(f.deps(10))
	start(t, queue, func() uint64 { return queue.Snapshot().Version })

	assert.ErrorIs(t, queue.SetPage(context.Background(), -1), api.ErrInvalidPage)
}
