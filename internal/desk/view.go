// Package desk holds the dashboard components of signed-in operators. Each component owns one
// goroutine that performs every backend call for it, so reloads never race and results that
// arrive after Stop are dropped.
package desk

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/visitorpass/desk/internal/events"
	"github.com/visitorpass/desk/internal/toast"
)

// State is where a component is in its load cycle.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateLoaded  State = "loaded"
	StateError   State = "error"
)

var (
	// ErrNotStarted is returned by actions on a component that is not running.
	ErrNotStarted = errors.New("component not started")
	// ErrReasonRequired is returned, without any request, when a rejection has a blank reason.
	ErrReasonRequired = errors.New("a reason is required to reject a pass")
)

// ViewFunc is told about every state change of a component.
type ViewFunc func(component string, state State)

// Snapshot is a read-only copy of a component's view.
type Snapshot[T any] struct {
	Component string `json:"component"`
	State     State  `json:"state"`
	Data      T      `json:"data"`
	Error     string `json:"error,omitempty"`
	// Version counts successful loads.
	Version uint64 `json:"version"`
}

type job struct {
	fn  func(ctx context.Context) error
	err chan error
}

// view is the lifecycle shared by every component: a cached value, a load state and one loop
// goroutine that serializes loads and actions.
type view[T any] struct {
	name    string
	logger  *zap.Logger
	toasts  toast.Notifier
	onView  ViewFunc
	fetch   func(ctx context.Context) (T, error)
	failMsg string
	// changes is the pass change broadcaster; watchChanges reloads the view on its signals.
	changes      events.Broadcaster
	watchChanges bool
	// attach subscribes the component to any other triggers when it starts.
	attach func(trigger func()) []*events.Subscription

	mu      sync.RWMutex
	state   State
	data    T
	err     error
	version uint64

	lifeMu    sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	reload    chan struct{}
	jobs      chan job
	subs      []*events.Subscription
	changeSub *events.Subscription
}

func newView[T any](name string, d Deps, failMsg string, fetch func(ctx context.Context) (T, error)) *view[T] {
	d = d.withDefaults()
	return &view[T]{
		name:    name,
		logger:  d.Logger.With(zap.String("component", name), zap.Int64("tenant_id", d.TenantID)),
		toasts:  d.Toasts,
		onView:  d.OnView,
		fetch:   fetch,
		failMsg: failMsg,
		changes: d.Changes,
		state:   StateIdle,
	}
}

// Start loads the view and attaches its triggers. It is a no-op while running.
func (v *view[T]) Start() {
	v.lifeMu.Lock()
	defer v.lifeMu.Unlock()
	if v.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel
	v.done = make(chan struct{})
	v.reload = make(chan struct{}, 1)
	v.jobs = make(chan job)
	go v.run(ctx, v.done, v.reload, v.jobs)
	if v.watchChanges {
		v.changeSub = v.changes.Subscribe(v.Trigger)
		v.subs = append(v.subs, v.changeSub)
	}
	if v.attach != nil {
		v.subs = append(v.subs, v.attach(v.Trigger)...)
	}
	v.logger.Debug("component started")
}

// Stop detaches triggers, cancels in-flight calls and waits for the loop to exit. Nothing
// changes in the view after Stop returns.
func (v *view[T]) Stop() {
	v.lifeMu.Lock()
	cancel, done, subs := v.cancel, v.done, v.subs
	v.cancel, v.subs, v.changeSub = nil, nil, nil
	v.lifeMu.Unlock()
	if cancel == nil {
		return
	}
	for _, s := range subs {
		s.Unsubscribe()
	}
	cancel()
	<-done
	v.logger.Debug("component stopped")
}

// Running reports whether the loop is active.
func (v *view[T]) Running() bool {
	v.lifeMu.Lock()
	defer v.lifeMu.Unlock()
	return v.cancel != nil
}

// Trigger asks for a reload. Triggers that arrive while one is pending collapse into it.
func (v *view[T]) Trigger() {
	v.lifeMu.Lock()
	reload := v.reload
	running := v.cancel != nil
	v.lifeMu.Unlock()
	if !running {
		return
	}
	select {
	case reload <- struct{}{}:
	default:
	}
}

// Sync waits until every load and action queued before it has finished.
func (v *view[T]) Sync(ctx context.Context) error {
	return v.do(ctx, func(context.Context) error { return nil })
}

// Reload loads the view now and waits for the result.
func (v *view[T]) Reload(ctx context.Context) error {
	return v.do(ctx, func(lctx context.Context) error {
		v.load(lctx)
		return nil
	})
}

// notifyChanges tells the rest of the tenant that pass data changed. The component has just
// reloaded itself, so its own subscription is left out.
func (v *view[T]) notifyChanges() {
	v.lifeMu.Lock()
	own := v.changeSub
	v.lifeMu.Unlock()
	v.changes.NotifyExcept(own)
}

// Snapshot returns the current view.
func (v *view[T]) Snapshot() Snapshot[T] {
	v.mu.RLock()
	defer v.mu.RUnlock()
	s := Snapshot[T]{Component: v.name, State: v.state, Data: v.data, Version: v.version}
	if v.err != nil {
		s.Error = v.err.Error()
	}
	return s
}

// do runs fn on the loop goroutine with the component's context and waits for it.
func (v *view[T]) do(ctx context.Context, fn func(ctx context.Context) error) error {
	v.lifeMu.Lock()
	jobs, done := v.jobs, v.done
	running := v.cancel != nil
	v.lifeMu.Unlock()
	if !running {
		return ErrNotStarted
	}

	j := job{fn: fn, err: make(chan error, 1)}
	select {
	case jobs <- j:
	case <-done:
		return ErrNotStarted
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-j.err:
		return err
	case <-done:
		return ErrNotStarted
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (v *view[T]) run(ctx context.Context, done chan struct{}, reload chan struct{}, jobs chan job) {
	defer close(done)
	v.load(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-reload:
			v.load(ctx)
		case j := <-jobs:
			if ctx.Err() != nil {
				j.err <- ErrNotStarted
				return
			}
			j.err <- j.fn(ctx)
		}
	}
}

// load fetches and stores the view. Results are dropped once ctx is cancelled.
func (v *view[T]) load(ctx context.Context) {
	v.setState(StateLoading)

	data, err := v.fetch(ctx)
	if ctx.Err() != nil {
		return
	}

	v.mu.Lock()
	if err != nil {
		v.state, v.err = StateError, err
	} else {
		v.state, v.err, v.data = StateLoaded, nil, data
		v.version++
	}
	v.mu.Unlock()

	if err != nil {
		v.logger.Warn("load failed", zap.Error(err))
		v.toasts.Error(v.failMsg, "Error")
		v.emit(StateError)
		return
	}
	v.emit(StateLoaded)
}

func (v *view[T]) setState(s State) {
	v.mu.Lock()
	v.state = s
	v.mu.Unlock()
	v.emit(s)
}

func (v *view[T]) emit(s State) {
	if v.onView != nil {
		v.onView(v.name, s)
	}
}
