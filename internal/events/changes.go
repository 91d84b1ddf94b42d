package events

import "go.uber.org/zap"

// PassChanged signals that visitor pass data changed on the backend. It carries no payload.
type PassChanged struct{}

// Broadcaster is the "pass data changed" contract injected into components.
type Broadcaster interface {
	// Notify tells every current subscriber that pass data changed.
	Notify()
	// NotifyExcept is Notify for a sender that is itself subscribed: the listener behind own
	// is not called, here or on other replicas.
	NotifyExcept(own *Subscription)
	// Subscribe registers fn for notifications sent after this call.
	Subscribe(fn func()) *Subscription
}

// ChangeBus is the in-process Broadcaster.
type ChangeBus struct {
	bus    *Bus[PassChanged]
	logger *zap.Logger
}

// NewChangeBus creates an in-process broadcaster.
func NewChangeBus(logger *zap.Logger) *ChangeBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChangeBus{bus: NewBus[PassChanged](logger), logger: logger}
}

// Notify implements Broadcaster.
func (c *ChangeBus) Notify() {
	c.NotifyExcept(nil)
}

// NotifyExcept implements Broadcaster.
func (c *ChangeBus) NotifyExcept(own *Subscription) {
	c.logger.Debug("notifying pass change", zap.Int("listeners", c.bus.Len()))
	c.bus.PublishExcept(PassChanged{}, own)
}

func (c *ChangeBus) notifySkipping(listenerID uint64) {
	c.bus.publish(PassChanged{}, listenerID)
}

// Subscribe implements Broadcaster.
func (c *ChangeBus) Subscribe(fn func()) *Subscription {
	return c.bus.Subscribe(func(PassChanged) { fn() })
}

// Listeners returns the number of attached subscribers.
func (c *ChangeBus) Listeners() int {
	return c.bus.Len()
}

var (
	_ Broadcaster = (*ChangeBus)(nil)
	_ Broadcaster = (*RedisRelay)(nil)
)
