package live

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	f := NewFrame(CmdMessage, "destination", "/topic/dashboard/7", "note", "a:b\nc")
	f.Body = []byte(`{"message":"A pass has been updated. Please refresh."}`)

	data, err := Encode(f)
	require.NoError(t, err)
	got, err := ParseFrame(data)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, CmdMessage, got.Command)
	assert.Equal(t, "/topic/dashboard/7", got.Header.Get("destination"))
	assert.Equal(t, "a:b\nc", got.Header.Get("note"))
	assert.Equal(t, strconv.Itoa(len(f.Body)), got.Header.Get("content-length"))
	assert.Equal(t, f.Body, got.Body)
}

func TestEncodeEscapesHeaders(t *testing.T) {
	data, err := Encode(NewFrame(CmdSubscribe, "destination", "a:b"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "destination:a\\cb\n")
	assert.NotContains(t, string(data), "content-length")
}

func TestParseFrame(t *testing.T) {
	t.Run("heart-beat", func(t *testing.T) {
		f, err := ParseFrame([]byte("\n"))
		require.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("crlf and NUL terminated", func(t *testing.T) {
		f, err := ParseFrame([]byte("CONNECTED\r\nversion:1.2\r\nheart-beat:0,0\r\n\r\n\x00"))
		require.NoError(t, err)
		assert.Equal(t, CmdConnected, f.Command)
		assert.Equal(t, "1.2", f.Header.Get("version"))
		assert.Empty(t, f.Body)
	})

	t.Run("first header wins", func(t *testing.T) {
		f, err := ParseFrame([]byte("MESSAGE\nfoo:1\nfoo:2\n\nhi\x00"))
		require.NoError(t, err)
		assert.Equal(t, "1", f.Header.Get("foo"))
		assert.Equal(t, "hi", string(f.Body))
	})

	t.Run("content-length allows NUL in body", func(t *testing.T) {
		f, err := ParseFrame([]byte("MESSAGE\ncontent-length:3\n\na\x00b\x00"))
		require.NoError(t, err)
		assert.Equal(t, []byte("a\x00b"), f.Body)
	})

	for name, data := range map[string]string{
		"no header terminator": "MESSAGE\nfoo:1",
		"no NUL":               "MESSAGE\n\nbody",
		"bad content-length":   "MESSAGE\ncontent-length:99\n\nab\x00",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFrame([]byte(data))
			assert.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}

func TestHeartBeat(t *testing.T) {
	x, y := heartBeat("10000, 5000")
	assert.Equal(t, 10000, x)
	assert.Equal(t, 5000, y)

	x, y = heartBeat("junk")
	assert.Zero(t, x)
	assert.Zero(t, y)
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}.withDefaults()
	assert.Equal(t, DefaultReconnectDelay, c.ReconnectDelay)
	assert.Equal(t, DefaultReconnectDelay, c.MaxReconnectDelay, "the delay is fixed unless a cap is set")
	assert.Equal(t, DefaultHeartBeat, c.HeartBeat)
	assert.NotNil(t, c.Dialer)

	c = Config{HeartBeat: -1, ReconnectDelay: time.Second, MaxReconnectDelay: time.Minute}.withDefaults()
	assert.Zero(t, c.HeartBeat)
	assert.Equal(t, time.Minute, c.MaxReconnectDelay)
}
