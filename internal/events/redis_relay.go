package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// ChannelPrefix prefixes the per-tenant Redis channel for pass change notifications.
	ChannelPrefix  = "desk:passes:"
	publishTimeout = 5 * time.Second
)

type relayPayload struct {
	Event    string `json:"event"`
	TenantID int64  `json:"tenant_id"`
	At       int64  `json:"at"`
	// Origin names the publishing relay and Skip its subscriber that must not hear the echo.
	Origin string `json:"origin,omitempty"`
	Skip   uint64 `json:"skip,omitempty"`
}

// RedisRelay is a Broadcaster shared by every console replica serving a tenant.
// Notify publishes to Redis only; the subscription started by Start performs the single
// local fan-out, so local subscribers are not notified twice.
type RedisRelay struct {
	local    *ChangeBus
	client   *redis.Client
	tenantID int64
	channel  string
	origin   string
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewRedisRelay creates a relay for tenantID. Call Start before relying on remote delivery.
func NewRedisRelay(client *redis.Client, tenantID int64, logger *zap.Logger) *RedisRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{
		local:    NewChangeBus(logger),
		client:   client,
		tenantID: tenantID,
		channel:  fmt.Sprintf("%s%d", ChannelPrefix, tenantID),
		origin:   uuid.NewString(),
		logger:   logger,
	}
}

// Start subscribes to the tenant channel and relays every message to local subscribers.
func (r *RedisRelay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	subCtx, cancel := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(subCtx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.cancel = cancel
	r.done = make(chan struct{})
	r.started = true

	go func() {
		defer close(r.done)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				r.receive(msg.Payload)
			}
		}
	}()
	r.logger.Info("pass change relay started", zap.String("channel", r.channel))
	return nil
}

// receive fans one Redis message out locally, leaving out the sender's own subscriber when
// the message came from this relay.
func (r *RedisRelay) receive(payload string) {
	var p relayPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		r.logger.Warn("invalid relay payload", zap.String("channel", r.channel), zap.Error(err))
		return
	}
	if p.Origin == r.origin {
		r.local.notifySkipping(p.Skip)
		return
	}
	r.local.Notify()
}

// Notify implements Broadcaster.
func (r *RedisRelay) Notify() {
	r.NotifyExcept(nil)
}

// NotifyExcept implements Broadcaster. When Redis is unreachable or the relay is not started
// the notification is delivered locally so this replica stays consistent.
func (r *RedisRelay) NotifyExcept(own *Subscription) {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		r.local.NotifyExcept(own)
		return
	}

	p := relayPayload{Event: "pass_changed", TenantID: r.tenantID, At: time.Now().Unix(), Origin: r.origin}
	if own != nil {
		p.Skip = own.id
	}
	body, err := json.Marshal(p)
	if err != nil {
		r.local.NotifyExcept(own)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, body).Err(); err != nil {
		r.logger.Warn("relay publish failed, notifying locally", zap.String("channel", r.channel), zap.Error(err))
		r.local.NotifyExcept(own)
	}
}

// Subscribe implements Broadcaster.
func (r *RedisRelay) Subscribe(fn func()) *Subscription {
	return r.local.Subscribe(fn)
}

// Close stops the Redis subscription.
func (r *RedisRelay) Close() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.started = nil, false
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
