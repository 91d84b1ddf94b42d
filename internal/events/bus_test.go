package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBusDeliversInAttachmentOrder(t *testing.T) {
	t.Parallel()

	bus := NewBus[int](zap.NewNop())
	var got []string
	bus.Subscribe(func(v int) { got = append(got, "a") })
	bus.Subscribe(func(v int) { got = append(got, "b") })
	bus.Subscribe(func(v int) { got = append(got, "c") })

	bus.Publish(1)
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestBusHasNoReplay(t *testing.T) {
	t.Parallel()

	bus := NewBus[string](nil)
	bus.Publish("dropped")

	var got []string
	bus.Subscribe(func(v string) { got = append(got, v) })
	bus.Publish("seen")
	require.Equal(t, []string{"seen"}, got)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	changes := NewChangeBus(zap.NewNop())
	calls := 0
	sub := changes.Subscribe(func() { calls++ })

	changes.Notify()
	require.Equal(t, 1, calls)

	sub.Unsubscribe()
	sub.Unsubscribe()
	changes.Notify()
	require.Equal(t, 1, calls)
	require.Zero(t, changes.Listeners())

	var nilSub *Subscription
	require.NotPanics(t, nilSub.Unsubscribe)
}

func TestUnsubscribeDuringPublish(t *testing.T) {
	t.Parallel()

	bus := NewBus[struct{}](nil)
	var second int
	var sub *Subscription
	bus.Subscribe(func(struct{}) { sub.Unsubscribe() })
	sub = bus.Subscribe(func(struct{}) { second++ })

	// The in-flight publish still holds its snapshot.
	bus.Publish(struct{}{})
	require.Equal(t, 1, second)

	bus.Publish(struct{}{})
	require.Equal(t, 1, second)
}

func TestPanickingListenerIsIsolated(t *testing.T) {
	t.Parallel()

	bus := NewBus[int](zap.NewNop())
	reached := false
	bus.Subscribe(func(int) { panic("boom") })
	bus.Subscribe(func(int) { reached = true })

	require.NotPanics(t, func() { bus.Publish(1) })
	require.True(t, reached)
}

func TestBusConcurrentUse(t *testing.T) {
	t.Parallel()

	bus := NewBus[int](nil)
	var mu sync.Mutex
	total := 0
	bus.Subscribe(func(v int) {
		mu.Lock()
		total += v
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			bus.Publish(1)
		}()
		go func() {
			defer wg.Done()
			bus.Subscribe(func(int) {}).Unsubscribe()
		}()
	}
	wg.Wait()
	require.Equal(t, 20, total)
	require.Equal(t, 1, bus.Len())
}

func TestRedisRelayFallsBackToLocal(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()

	relay := NewRedisRelay(client, 7, zap.NewNop())
	calls := 0
	relay.Subscribe(func() { calls++ })

	// Not started: local delivery.
	relay.Notify()
	require.Equal(t, 1, calls)
	relay.Close()
}

func TestTenantsShareBroadcasterPerTenant(t *testing.T) {
	built := 0
	tenants := NewTenants(func(int64) Broadcaster {
		built++
		return NewChangeBus(nil)
	})

	a, b := tenants.For(7), tenants.For(7)
	require.Same(t, a, b)
	require.NotSame(t, a, tenants.For(8))
	require.Equal(t, 2, built)

	hits := 0
	a.Subscribe(func() { hits++ })
	tenants.For(8).Notify()
	require.Zero(t, hits, "tenants are isolated")
	b.Notify()
	require.Equal(t, 1, hits)

	tenants.Close()
	require.NotSame(t, a, tenants.For(7))
}

func TestTenantsBuildOutsideLock(t *testing.T) {
	release := make(chan struct{})
	building := make(chan struct{})
	tenants := NewTenants(func(id int64) Broadcaster {
		if id == 1 {
			close(building)
			<-release
		}
		return NewChangeBus(nil)
	})

	slow := make(chan Broadcaster)
	go func() { slow <- tenants.For(1) }()
	<-building

	got := make(chan Broadcaster)
	go func() { got <- tenants.For(2) }()
	select {
	case b := <-got:
		require.NotNil(t, b)
	case <-time.After(2 * time.Second):
		t.Fatal("tenant 2 waited for tenant 1's broadcaster")
	}

	close(release)
	first := <-slow
	require.Same(t, first, tenants.For(1))
}

func TestNotifyExceptSkipsOwnListener(t *testing.T) {
	changes := NewChangeBus(nil)
	var own, other int
	mine := changes.Subscribe(func() { own++ })
	changes.Subscribe(func() { other++ })

	changes.NotifyExcept(mine)
	require.Zero(t, own)
	require.Equal(t, 1, other)

	changes.NotifyExcept(nil)
	require.Equal(t, 1, own)
	require.Equal(t, 2, other)
}

func TestRedisRelayEchoSkipsSender(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()

	relay := NewRedisRelay(client, 7, zap.NewNop())
	var own, other int
	mine := relay.Subscribe(func() { own++ })
	relay.Subscribe(func() { other++ })

	echo, err := json.Marshal(relayPayload{Event: "pass_changed", TenantID: 7, Origin: relay.origin, Skip: mine.id})
	require.NoError(t, err)
	relay.receive(string(echo))
	require.Zero(t, own)
	require.Equal(t, 1, other)

	remote, err := json.Marshal(relayPayload{Event: "pass_changed", TenantID: 7, Origin: "another-replica", Skip: mine.id})
	require.NoError(t, err)
	relay.receive(string(remote))
	require.Equal(t, 1, own)
	require.Equal(t, 2, other)

	relay.receive("not json")
	require.Equal(t, 2, other)
}
