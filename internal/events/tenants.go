package events

import "sync"

// Tenants keeps one Broadcaster per tenant so every desk of a tenant hears the same changes.
type Tenants struct {
	mu    sync.Mutex
	m     map[int64]*tenantEntry
	newFn func(tenantID int64) Broadcaster
}

type tenantEntry struct {
	once sync.Once
	b    Broadcaster
}

// NewTenants creates a set whose broadcasters are built by newFn on first use. newFn runs
// outside the set's lock, so a slow build only holds up callers asking for the same tenant.
func NewTenants(newFn func(tenantID int64) Broadcaster) *Tenants {
	return &Tenants{m: make(map[int64]*tenantEntry), newFn: newFn}
}

// For returns the tenant's broadcaster.
func (t *Tenants) For(tenantID int64) Broadcaster {
	for {
		t.mu.Lock()
		e, ok := t.m[tenantID]
		if !ok {
			e = &tenantEntry{}
			t.m[tenantID] = e
		}
		t.mu.Unlock()

		e.once.Do(func() {
			if e.b = t.newFn(tenantID); e.b == nil {
				e.b = NewChangeBus(nil)
			}
		})
		if e.b != nil {
			return e.b
		}
		// closed before it was built; the entry is gone, build a fresh one
	}
}

// Close releases broadcasters that hold resources, such as Redis relays.
func (t *Tenants) Close() {
	t.mu.Lock()
	all := t.m
	t.m = make(map[int64]*tenantEntry)
	t.mu.Unlock()
	for _, e := range all {
		e.once.Do(func() {})
		if c, ok := e.b.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
