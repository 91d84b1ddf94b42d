package live

import (
	"sync"

	"go.uber.org/zap"
)

type entry struct {
	ch   *Channel
	refs int
}

// Registry holds one Channel per tenant, shared by every component of that tenant.
type Registry struct {
	mu       sync.Mutex
	cfg      Config
	logger   *zap.Logger
	channels map[int64]*entry
}

// NewRegistry creates a registry whose channels use cfg.
func NewRegistry(cfg Config, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{cfg: cfg, logger: logger, channels: make(map[int64]*entry)}
}

// Acquire returns the tenant's channel, connecting it on first use. Pair with Release.
func (r *Registry) Acquire(tenantID int64) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.channels[tenantID]
	if e == nil {
		e = &entry{ch: NewChannel(r.cfg, r.logger)}
		r.channels[tenantID] = e
	}
	e.refs++
	e.ch.Connect(tenantID)
	return e.ch
}

// Release drops one reference; the last release disconnects the channel.
func (r *Registry) Release(tenantID int64) {
	r.mu.Lock()
	e := r.channels[tenantID]
	if e == nil {
		r.mu.Unlock()
		return
	}
	e.refs--
	if e.refs > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.channels, tenantID)
	r.mu.Unlock()
	e.ch.Disconnect()
}

// Tenants returns how many tenants currently hold a channel.
func (r *Registry) Tenants() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

// Close disconnects every channel.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.channels
	r.channels = make(map[int64]*entry)
	r.mu.Unlock()
	for _, e := range all {
		e.ch.Disconnect()
	}
}
