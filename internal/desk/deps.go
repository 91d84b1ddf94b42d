package desk

import (
	"go.uber.org/zap"

	"github.com/visitorpass/desk/internal/api"
	"github.com/visitorpass/desk/internal/events"
	"github.com/visitorpass/desk/internal/live"
	"github.com/visitorpass/desk/internal/toast"
)

const (
	// DefaultPageSize is the page size of list components.
	DefaultPageSize = 10
	// DefaultDashboardPageSize is the page size of each security dashboard list.
	DefaultDashboardPageSize = 5
)

// Deps is what a component needs from its desk.
type Deps struct {
	Client   *api.Client
	TenantID int64
	Changes  events.Broadcaster
	// Live is optional; without it the security dashboard gets no push updates.
	Live     *live.Registry
	Toasts   toast.Notifier
	Logger   *zap.Logger
	OnView   ViewFunc
	PageSize int
	// DashboardPageSize applies to both security dashboard lists.
	DashboardPageSize int
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Toasts == nil {
		d.Toasts = toast.Discard
	}
	if d.Changes == nil {
		d.Changes = events.NewChangeBus(d.Logger)
	}
	if d.PageSize < 1 {
		d.PageSize = DefaultPageSize
	}
	if d.DashboardPageSize < 1 {
		d.DashboardPageSize = DefaultDashboardPageSize
	}
	return d
}
