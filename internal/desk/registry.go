package desk

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/visitorpass/desk/internal/api"
	"github.com/visitorpass/desk/internal/auth"
	"github.com/visitorpass/desk/internal/events"
	"github.com/visitorpass/desk/internal/live"
	"github.com/visitorpass/desk/internal/toast"
)

// DefaultIdleTimeout is how long an unused desk is kept.
const DefaultIdleTimeout = 30 * time.Minute

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	APIBaseURL        string
	HTTPClient        *http.Client
	PageSize          int
	DashboardPageSize int
	IdleTimeout       time.Duration
}

// Registry keeps one Desk per signed-in session (thread-safe).
type Registry struct {
	cfg     RegistryConfig
	logger  *zap.Logger
	changes *events.Tenants
	live    *live.Registry
	// toasts and views build the per-desk sinks; either may be nil.
	toasts func(deskID string) toast.Notifier
	views  func(deskID string) ViewFunc
	// active reports whether a browser is still attached to a desk.
	active func(deskID string) bool

	mu    sync.Mutex
	desks map[string]*Desk
}

// NewRegistry creates an empty registry. liveReg may be nil.
func NewRegistry(cfg RegistryConfig, changes *events.Tenants, liveReg *live.Registry, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Registry{
		cfg:     cfg,
		logger:  logger,
		changes: changes,
		live:    liveReg,
		desks:   make(map[string]*Desk),
	}
}

// SetSinks sets how toasts and view changes of each desk leave the process.
func (r *Registry) SetSinks(toasts func(deskID string) toast.Notifier, views func(deskID string) ViewFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = toasts
	r.views = views
}

// SetActive sets the check Reap uses to keep desks with a connected browser.
func (r *Registry) SetActive(active func(deskID string) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = active
}

// Open returns the desk of token, starting one on first use.
func (r *Registry) Open(token string, claims *auth.Claims) *Desk {
	id := SessionKey(token)
	r.mu.Lock()
	if dk, ok := r.desks[id]; ok {
		r.mu.Unlock()
		dk.touch()
		return dk
	}

	log := r.logger.With(zap.String("desk_id", id), zap.String("email", claims.Email()))
	notifier := toast.Logger(log)
	if r.toasts != nil {
		notifier = toast.Fanout(notifier, r.toasts(id))
	}
	d := Deps{
		Client:            api.NewClientWithHTTP(r.cfg.APIBaseURL, token, r.cfg.HTTPClient),
		TenantID:          claims.TenantID,
		Changes:           r.changes.For(claims.TenantID),
		Live:              r.live,
		Toasts:            notifier,
		Logger:            log,
		PageSize:          r.cfg.PageSize,
		DashboardPageSize: r.cfg.DashboardPageSize,
	}
	if r.views != nil {
		d.OnView = r.views(id)
	}
	dk := newDesk(id, claims, d)
	dk.Start()
	r.desks[id] = dk
	r.mu.Unlock()

	log.Info("desk opened", zap.String("role", string(claims.Role)), zap.Int64("tenant_id", claims.TenantID))
	return dk
}

// Get returns the desk with id, if open.
func (r *Registry) Get(id string) (*Desk, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dk, ok := r.desks[id]
	return dk, ok
}

// Len returns the number of open desks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.desks)
}

// Close stops and forgets the desk with id.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	dk, ok := r.desks[id]
	delete(r.desks, id)
	r.mu.Unlock()
	if ok {
		dk.Stop()
		r.logger.Info("desk closed", zap.String("desk_id", id))
	}
	return ok
}

// Reap closes desks unused since before now minus the idle timeout and returns how many.
// A desk reported active is touched instead.
func (r *Registry) Reap(now time.Time) int {
	cutoff := now.Add(-r.cfg.IdleTimeout)
	r.mu.Lock()
	var idle []*Desk
	for id, dk := range r.desks {
		if r.active != nil && r.active(id) {
			dk.touchAt(now)
			continue
		}
		if dk.LastSeen().Before(cutoff) {
			idle = append(idle, dk)
			delete(r.desks, id)
		}
	}
	r.mu.Unlock()
	for _, dk := range idle {
		dk.Stop()
		r.logger.Info("idle desk reaped", zap.String("desk_id", dk.ID), zap.Time("last_seen", dk.LastSeen()))
	}
	return len(idle)
}

// Run reaps idle desks every interval until ctx ends.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Reap(now)
		}
	}
}

// Shutdown stops every desk.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	all := r.desks
	r.desks = make(map[string]*Desk)
	r.mu.Unlock()
	for _, dk := range all {
		dk.Stop()
	}
}
