// Package events carries in-process notifications between desk components.
package events

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Subscription is the handle returned by Subscribe. Release it when the subscriber is torn down.
type Subscription struct {
	once   sync.Once
	cancel func()
	id     uint64
}

// Unsubscribe detaches the listener. Publishes that start after Unsubscribe returns never
// reach it. Safe to call more than once and on a nil handle.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.cancel == nil {
		return
	}
	s.once.Do(s.cancel)
}

// NewSubscription returns a handle that runs cancel once on Unsubscribe.
func NewSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

type listener[T any] struct {
	id uint64
	fn func(T)
}

// Bus fans a value out to every attached listener. It keeps no history: a listener only sees
// values published after it subscribed, and a publish with no listeners is dropped.
type Bus[T any] struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners []listener[T]
	logger    *zap.Logger
}

// NewBus creates an empty bus.
func NewBus[T any](logger *zap.Logger) *Bus[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus[T]{logger: logger}
}

// Subscribe attaches fn. Listeners run synchronously on the publisher's goroutine, so fn
// should hand work off rather than block.
func (b *Bus[T]) Subscribe(fn func(T)) *Subscription {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, listener[T]{id: id, fn: fn})
	b.mu.Unlock()
	return &Subscription{cancel: func() { b.remove(id) }, id: id}
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, l := range b.listeners {
		if l.id == id {
			// copy so snapshots held by in-flight publishes stay intact
			next := make([]listener[T], 0, len(b.listeners)-1)
			next = append(next, b.listeners[:i]...)
			b.listeners = append(next, b.listeners[i+1:]...)
			return
		}
	}
}

// Publish delivers v to the listeners attached at the time of the call, in attachment order.
// A panicking listener is logged and does not stop delivery to the others.
func (b *Bus[T]) Publish(v T) {
	b.publish(v, 0)
}

// PublishExcept is Publish without the listener behind skip. A nil skip skips nobody.
func (b *Bus[T]) PublishExcept(v T, skip *Subscription) {
	var id uint64
	if skip != nil {
		id = skip.id
	}
	b.publish(v, id)
}

// publish delivers v to every listener but skipID; listener ids start at 1.
func (b *Bus[T]) publish(v T, skipID uint64) {
	b.mu.RLock()
	snapshot := b.listeners
	b.mu.RUnlock()
	for _, l := range snapshot {
		if l.id == skipID {
			continue
		}
		b.deliver(l, v)
	}
}

func (b *Bus[T]) deliver(l listener[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event listener panicked", zap.Uint64("listener_id", l.id), zap.String("panic", fmt.Sprint(r)))
		}
	}()
	l.fn(v)
}

// Len returns the number of attached listeners.
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
