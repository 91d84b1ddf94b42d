package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	roomChannelPrefix = "desk:room:"
	relayTimeout      = 5 * time.Second
)

// ErrRelayNotStarted is returned by SubscribeRoom before Start succeeded.
var ErrRelayNotStarted = errors.New("room relay not started")

// roomEnvelope is what travels over Redis for one room event.
type roomEnvelope struct {
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	SentAt time.Time       `json:"sent_at"`
}

// RoomRelay carries room events between console instances. One pattern subscription
// serves every room; SubscribeRoom only routes.
type RoomRelay struct {
	client *redis.Client
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[string]func(event string, payload []byte)
	started  bool
}

// NewRoomRelay creates a relay over client. Call Start before use.
func NewRoomRelay(client *redis.Client, logger *zap.Logger) *RoomRelay {
	return &RoomRelay{
		client:   client,
		logger:   logger,
		handlers: make(map[string]func(string, []byte)),
	}
}

// Start subscribes to every room channel and routes messages until ctx ends.
func (r *RoomRelay) Start(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, roomChannelPrefix+"*")
	rctx, cancel := context.WithTimeout(ctx, relayTimeout)
	defer cancel()
	if _, err := pubsub.Receive(rctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("psubscribe %s*: %w", roomChannelPrefix, err)
	}
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				r.route(msg.Channel, msg.Payload)
			}
		}
	}()
	return nil
}

func (r *RoomRelay) route(channel, payload string) {
	room := strings.TrimPrefix(channel, roomChannelPrefix)
	r.mu.RLock()
	handler := r.handlers[room]
	r.mu.RUnlock()
	if handler == nil {
		return
	}
	var env roomEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.logger.Warn("invalid room payload", zap.String("room", room), zap.Error(err))
		return
	}
	if lag := time.Since(env.SentAt); !env.SentAt.IsZero() && lag > relayTimeout {
		r.logger.Debug("late room event", zap.String("room", room), zap.String("event", env.Event), zap.Duration("lag", lag))
	}
	handler(env.Event, env.Data)
}

// PublishRoomEvent sends event to the room on every instance, this one included.
func (r *RoomRelay) PublishRoomEvent(room string, event string, payload []byte) error {
	body, err := json.Marshal(roomEnvelope{Event: event, Data: payload, SentAt: time.Now()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
	defer cancel()
	return r.client.Publish(ctx, roomChannelPrefix+room, body).Err()
}

// SubscribeRoom routes the room's events to handler until cancel is called.
func (r *RoomRelay) SubscribeRoom(room string, handler func(event string, payload []byte)) (cancel func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return nil, ErrRelayNotStarted
	}
	r.handlers[room] = handler
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.handlers, room)
			r.mu.Unlock()
		})
	}, nil
}
