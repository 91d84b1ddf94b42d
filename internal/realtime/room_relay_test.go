package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRoomRelayRoutesByRoom(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	relay := NewRoomRelay(client, zap.NewNop())

	_, err := relay.SubscribeRoom("desk-a", func(string, []byte) {})
	require.ErrorIs(t, err, ErrRelayNotStarted)

	relay.started = true
	var got []string
	cancel, err := relay.SubscribeRoom("desk-a", func(event string, payload []byte) {
		got = append(got, event+" "+string(payload))
	})
	require.NoError(t, err)

	body, err := json.Marshal(roomEnvelope{Event: EventToast, Data: json.RawMessage(`{"message":"hi"}`), SentAt: time.Now()})
	require.NoError(t, err)
	relay.route(roomChannelPrefix+"desk-a", string(body))
	relay.route(roomChannelPrefix+"desk-b", string(body))
	relay.route(roomChannelPrefix+"desk-a", "not json")
	assert.Equal(t, []string{`toast {"message":"hi"}`}, got)

	cancel()
	cancel()
	relay.route(roomChannelPrefix+"desk-a", string(body))
	assert.Len(t, got, 1)
}

func TestRoomRelayStartFailsWithoutRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })
	relay := NewRoomRelay(client, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.Error(t, relay.Start(ctx))
	_, err := relay.SubscribeRoom("desk-a", func(string, []byte) {})
	assert.ErrorIs(t, err, ErrRelayNotStarted)
}
