package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Events pushed to browsers.
const (
	EventToast       = "toast"
	EventViewUpdated = "view_updated"
	EventPong        = "pong"
)

// Hub maintains room -> set of connections and pushes messages to them. A room is one desk
// session; a user with several tabs open has several connections in it.
// Uses Redis pub/sub for horizontal scaling so a desk on one replica reaches a browser
// connected to another.
type Hub struct {
	// room -> map[clientID]*Client
	rooms    map[string]map[string]*Client
	subs     map[string]func() // cancel Redis subscription per room
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance delivery).
type RedisPublisher interface {
	PublishRoomEvent(room string, event string, payload []byte) error
}

// RedisSubscriber subscribes to room channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeRoom(room string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. Both Redis arguments may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		rooms:    make(map[string]map[string]*Client),
		subs:     make(map[string]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to its room. Starts the Redis subscription for the room if first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.Room] == nil {
		h.rooms[c.Room] = make(map[string]*Client)
		if h.redisSub != nil {
			room := c.Room
			cancel, err := h.redisSub.SubscribeRoom(room, func(event string, payload []byte) {
				h.Broadcast(room, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[room] = cancel
			} else {
				h.logger.Warn("room subscription failed", zap.String("room", room), zap.Error(err))
			}
		}
	}
	h.rooms[c.Room][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined room", zap.String("client_id", c.ID), zap.String("room", c.Room))
}

// Unregister removes a client from its room. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.Room]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, c.Room)
			if cancel, ok := h.subs[c.Room]; ok {
				cancel()
				delete(h.subs, c.Room)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left room", zap.String("client_id", c.ID), zap.String("room", c.Room))
}

// Broadcast sends a message to all clients in a room (local only).
func (h *Hub) Broadcast(room string, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[room] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish delivers to the room wherever its clients are connected. With Redis it publishes
// only, and the Redis subscriber performs the single broadcast on every instance (including
// this one); without Redis it broadcasts locally.
func (h *Hub) Publish(room string, event string, payload interface{}) {
	if h.redis == nil {
		h.Broadcast(room, event, payload)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := h.redis.PublishRoomEvent(room, event, data); err != nil {
		h.logger.Warn("room publish failed, delivering locally", zap.String("room", room), zap.Error(err))
		h.Broadcast(room, event, json.RawMessage(data))
	}
}

// Count returns the number of connected clients in a room.
func (h *Hub) Count(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// SendToClient sends a message to a single client in a room.
func (h *Hub) SendToClient(room, clientID string, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	c, ok := h.rooms[room][clientID]
	if ok {
		select {
		case c.send <- msg:
		default:
		}
	}
	h.mu.RUnlock()
}
