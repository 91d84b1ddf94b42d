package desk

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/visitorpass/desk/internal/api"
	"github.com/visitorpass/desk/internal/events"
	"github.com/visitorpass/desk/internal/live"
	"github.com/visitorpass/desk/internal/models"
)

// SecurityDashboard shows today's approved and on-site visitors to the security desk and
// follows the tenant's live dashboard updates.
type SecurityDashboard struct {
	*view[models.SecurityDashboard]
	d Deps

	pageMu       sync.Mutex
	approvedPage int
	onSitePage   int
}

// NewSecurityDashboard creates a stopped dashboard.
func NewSecurityDashboard(d Deps) *SecurityDashboard {
	d = d.withDefaults()
	s := &SecurityDashboard{d: d}
	s.view = newView("security", d, "Failed to load dashboard data.", s.fetch)
	s.watchChanges = true
	s.attach = s.subscribe
	return s
}

func (s *SecurityDashboard) subscribe(trigger func()) []*events.Subscription {
	if s.d.Live == nil {
		return nil
	}
	ch := s.d.Live.Acquire(s.d.TenantID)
	liveSub := ch.Subscribe(func(live.Update) {
		// a publish already under way when Stop ran may still get here
		if !s.Running() {
			return
		}
		s.toasts.Info("The dashboard has been updated with new data.", "Live Update")
		trigger()
	})
	// Releasing the channel is part of unsubscribing so it follows the component's lifetime.
	release := events.NewSubscription(func() {
		liveSub.Unsubscribe()
		s.d.Live.Release(s.d.TenantID)
	})
	return []*events.Subscription{release}
}

func (s *SecurityDashboard) fetch(ctx context.Context) (models.SecurityDashboard, error) {
	s.pageMu.Lock()
	approved, onSite := s.approvedPage, s.onSitePage
	s.pageMu.Unlock()
	out, err := s.d.Client.Security.TodaysDashboard(ctx, s.d.TenantID, approved, onSite, s.d.DashboardPageSize)
	if err != nil {
		return models.SecurityDashboard{}, err
	}
	for _, list := range [][]models.SecurityPassInfo{out.ApprovedForEntry.Content, out.CurrentlyOnSite.Content} {
		for i := range list {
			list[i].Actions = models.Allowed(list[i].Status, models.ActionCheckIn, models.ActionCheckOut)
		}
	}
	return *out, nil
}

// SetApprovedPage shows page n of the approved-for-entry list.
func (s *SecurityDashboard) SetApprovedPage(ctx context.Context, n int) error {
	return s.setPages(ctx, &n, nil)
}

// SetOnSitePage shows page n of the currently-on-site list.
func (s *SecurityDashboard) SetOnSitePage(ctx context.Context, n int) error {
	return s.setPages(ctx, nil, &n)
}

func (s *SecurityDashboard) setPages(ctx context.Context, approved, onSite *int) error {
	if (approved != nil && *approved < 0) || (onSite != nil && *onSite < 0) {
		return api.ErrInvalidPage
	}
	return s.do(ctx, func(lctx context.Context) error {
		s.pageMu.Lock()
		if approved != nil {
			s.approvedPage = *approved
		}
		if onSite != nil {
			s.onSitePage = *onSite
		}
		s.pageMu.Unlock()
		s.load(lctx)
		return nil
	})
}

// Search looks a pass up by code. A blank code returns api.ErrPassCodeRequired without a request.
func (s *SecurityDashboard) Search(ctx context.Context, passCode string) (*models.Pass, error) {
	pass, err := s.d.Client.Security.SearchByCode(ctx, s.d.TenantID, passCode)
	switch {
	case err == nil:
		pass.Actions = models.Allowed(pass.Status, models.ActionCheckIn, models.ActionCheckOut)
		return pass, nil
	case errors.Is(err, api.ErrPassCodeRequired):
		return nil, err
	case api.IsNotFound(err):
		s.toasts.Error("No valid pass found with code: "+passCode, "Not Found")
		return nil, err
	default:
		s.toasts.Error(api.Message(err, "Pass search failed."), "Error")
		return nil, err
	}
}

// CheckIn admits an approved visitor.
func (s *SecurityDashboard) CheckIn(ctx context.Context, passID int64) error {
	return s.mutate(ctx, passID, "check-in", s.d.Client.Security.CheckIn, func() {
		s.toasts.Success("Visitor checked in successfully.", "Checked In")
	}, "Failed to check-in visitor.")
}

// CheckOut records that an on-site visitor left.
func (s *SecurityDashboard) CheckOut(ctx context.Context, passID int64) error {
	return s.mutate(ctx, passID, "check-out", s.d.Client.Security.CheckOut, func() {
		s.toasts.Info("Visitor checked out successfully.", "Checked Out")
	}, "Failed to check-out visitor.")
}

func (s *SecurityDashboard) mutate(ctx context.Context, passID int64, action string,
	call func(ctx context.Context, tenantID, passID int64) error, ok func(), failMsg string) error {
	return s.do(ctx, func(lctx context.Context) error {
		if err := call(lctx, s.d.TenantID, passID); err != nil {
			if lctx.Err() == nil {
				s.toasts.Error(api.Message(err, failMsg), "Error")
			}
			return err
		}
		ok()
		s.logger.Info("pass "+action, zap.Int64("pass_id", passID))
		s.pageMu.Lock()
		s.approvedPage, s.onSitePage = 0, 0
		s.pageMu.Unlock()
		s.load(lctx)
		s.notifyChanges()
		return nil
	})
}
