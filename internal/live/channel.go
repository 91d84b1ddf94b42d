// Package live maintains the per-tenant push connection to the backend's STOMP broker and
// republishes dashboard updates to in-process subscribers.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/visitorpass/desk/internal/events"
)

const (
	// DefaultReconnectDelay is the wait after an unexpected drop.
	DefaultReconnectDelay = 5 * time.Second
	// DefaultHeartBeat is the heart-beat interval offered to the broker.
	DefaultHeartBeat = 10 * time.Second

	handshakeTimeout = 10 * time.Second
	writeWait        = 10 * time.Second
)

// TopicPrefix is the destination prefix for tenant dashboard updates.
const TopicPrefix = "/topic/dashboard/"

// ErrBroker wraps ERROR frames received before the session was established.
var ErrBroker = errors.New("broker error")

// Config configures a Channel.
type Config struct {
	// URL is the broker websocket endpoint, e.g. ws://localhost:8080/ws/websocket.
	URL string
	// Header is sent with the websocket handshake (e.g. Authorization).
	Header http.Header
	// ReconnectDelay is the first wait after a drop. Later waits grow up to MaxReconnectDelay,
	// which defaults to ReconnectDelay for a fixed delay.
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	// MaxRetries bounds consecutive failed attempts; 0 retries forever.
	MaxRetries int
	HeartBeat  time.Duration
	Dialer     *websocket.Dialer
}

func (c Config) withDefaults() Config {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.MaxReconnectDelay < c.ReconnectDelay {
		c.MaxReconnectDelay = c.ReconnectDelay
	}
	if c.HeartBeat < 0 {
		c.HeartBeat = 0
	} else if c.HeartBeat == 0 {
		c.HeartBeat = DefaultHeartBeat
	}
	if c.Dialer == nil {
		c.Dialer = &websocket.Dialer{HandshakeTimeout: handshakeTimeout, Proxy: http.ProxyFromEnvironment}
	}
	return c
}

// EndpointFromAPI derives the broker endpoint from the REST base URL: the trailing /api is
// dropped, the scheme becomes ws or wss, and the SockJS raw websocket path is appended.
func EndpointFromAPI(apiBase string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(apiBase))
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported api url scheme %q", u.Scheme)
	}
	p := strings.TrimSuffix(u.Path, "/")
	p = strings.TrimSuffix(p, "/api")
	u.Path = p + "/ws/websocket"
	u.RawQuery, u.Fragment = "", ""
	return u.String(), nil
}

// Update is one dashboard-update event pushed by the backend. Consumers treat its arrival
// as a reload trigger; the payload is opaque.
type Update struct {
	TenantID   int64
	Payload    json.RawMessage
	ReceivedAt time.Time
}

// Channel is one long-lived, reconnecting broker connection for a tenant.
type Channel struct {
	cfg     Config
	logger  *zap.Logger
	updates *events.Bus[Update]

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	tenantID int64

	connected atomic.Bool
	sessions  atomic.Int64
}

// NewChannel creates a disconnected channel.
func NewChannel(cfg Config, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		cfg:     cfg.withDefaults(),
		logger:  logger,
		updates: events.NewBus[Update](logger),
	}
}

// Subscribe registers fn for every update received after this call.
func (c *Channel) Subscribe(fn func(Update)) *events.Subscription {
	return c.updates.Subscribe(fn)
}

// Connected reports whether a broker session is currently established.
func (c *Channel) Connected() bool {
	return c.connected.Load()
}

// Sessions returns how many broker sessions have been established so far.
func (c *Channel) Sessions() int64 {
	return c.sessions.Load()
}

// Connect starts the connection loop for tenantID. It is a no-op while the loop is running.
func (c *Channel) Connect(tenantID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.tenantID = tenantID
	go c.run(ctx, cancel, c.done, tenantID)
}

// Disconnect stops the connection loop, closing the session if one is open. It is a no-op
// when the channel is not running.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	cancel, done, tenantID := c.cancel, c.done, c.tenantID
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.logger.Info("live channel disconnected", zap.Int64("tenant_id", tenantID))
}

func (c *Channel) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}, tenantID int64) {
	defer close(done)

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.cfg.ReconnectDelay
	expo.MaxInterval = c.cfg.MaxReconnectDelay
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0
	var bo backoff.BackOff = expo
	if c.cfg.MaxRetries > 0 {
		bo = backoff.WithMaxRetries(expo, uint64(c.cfg.MaxRetries))
	}
	bo.Reset()

	log := c.logger.With(zap.Int64("tenant_id", tenantID))
	for {
		established, err := c.session(ctx, tenantID, log)
		if ctx.Err() != nil {
			return
		}
		if established {
			bo.Reset()
		}
		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			log.Error("live channel giving up", zap.Error(err), zap.Int("max_retries", c.cfg.MaxRetries))
			c.mu.Lock()
			if c.done == done {
				c.cancel, c.done = nil, nil
			}
			c.mu.Unlock()
			cancel()
			return
		}
		log.Warn("live channel dropped, reconnecting", zap.Error(err), zap.Duration("delay", wait))
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// session runs one broker connection until it fails or ctx ends. established reports whether
// the CONNECTED handshake completed.
func (c *Channel) session(ctx context.Context, tenantID int64, log *zap.Logger) (established bool, err error) {
	conn, resp, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	write := func(f *Frame) error {
		data, err := Encode(f)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, data)
	}
	writeEOL := func() error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, []byte("\n"))
	}

	// Teardown: say goodbye, then unblock the reader.
	stop := context.AfterFunc(ctx, func() {
		if c.connected.Load() {
			_ = write(NewFrame(CmdDisconnect, "receipt", uuid.NewString()))
		}
		_ = conn.Close()
	})
	defer stop()

	hbMillis := int(c.cfg.HeartBeat / time.Millisecond)
	host := conn.RemoteAddr().String()
	if u, perr := url.Parse(c.cfg.URL); perr == nil {
		host = u.Hostname()
	}
	if err := write(NewFrame(CmdConnect,
		"accept-version", "1.2,1.1",
		"host", host,
		"heart-beat", strconv.Itoa(hbMillis)+","+strconv.Itoa(hbMillis),
	)); err != nil {
		return false, fmt.Errorf("send connect: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	var connected *Frame
	for connected == nil {
		if connected, err = readFrame(conn); err != nil {
			return false, fmt.Errorf("await connected: %w", err)
		}
	}
	if connected.Command == CmdError {
		log.Error("broker reported error", zap.String("message", connected.Header.Get("message")), zap.ByteString("details", connected.Body))
		return false, fmt.Errorf("%w: %s", ErrBroker, connected.Header.Get("message"))
	}
	if connected.Command != CmdConnected {
		return false, fmt.Errorf("%w: expected CONNECTED, got %s", ErrMalformedFrame, connected.Command)
	}

	c.connected.Store(true)
	c.sessions.Add(1)
	defer c.connected.Store(false)

	topic := TopicPrefix + strconv.FormatInt(tenantID, 10)
	if err := write(NewFrame(CmdSubscribe, "id", "sub-0", "destination", topic, "ack", "auto")); err != nil {
		return true, fmt.Errorf("send subscribe: %w", err)
	}
	log.Info("live channel connected", zap.String("topic", topic), zap.String("server", connected.Header.Get("server")))

	// Heart-beats per STOMP: send every max(ours, theirs-wanted), expect within max(ours, theirs-offered).
	sx, sy := heartBeat(connected.Header.Get("heart-beat"))
	var outgoing, incoming time.Duration
	if hbMillis > 0 && sy > 0 {
		outgoing = time.Duration(max(hbMillis, sy)) * time.Millisecond
	}
	if hbMillis > 0 && sx > 0 {
		incoming = time.Duration(max(hbMillis, sx)) * time.Millisecond
	}

	sessionDone := make(chan struct{})
	defer close(sessionDone)
	if outgoing > 0 {
		go func() {
			ticker := time.NewTicker(outgoing)
			defer ticker.Stop()
			for {
				select {
				case <-sessionDone:
					return
				case <-ticker.C:
					if err := writeEOL(); err != nil {
						return
					}
				}
			}
		}()
	}

	for {
		if incoming > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(2 * incoming))
		} else {
			_ = conn.SetReadDeadline(time.Time{})
		}
		f, err := readFrame(conn)
		if err != nil {
			if errors.Is(err, ErrMalformedFrame) {
				log.Warn("skipping malformed frame", zap.Error(err))
				continue
			}
			return true, fmt.Errorf("read: %w", err)
		}
		if f == nil {
			continue
		}
		switch f.Command {
		case CmdMessage:
			c.handleMessage(tenantID, f, log)
		case CmdError:
			log.Error("broker reported error", zap.String("message", f.Header.Get("message")), zap.ByteString("details", f.Body))
		case CmdReceipt:
		default:
			log.Debug("ignoring frame", zap.String("command", f.Command))
		}
	}
}

func (c *Channel) handleMessage(tenantID int64, f *Frame, log *zap.Logger) {
	if !json.Valid(f.Body) {
		log.Warn("undecodable dashboard update", zap.String("destination", f.Header.Get("destination")), zap.Int("bytes", len(f.Body)))
		return
	}
	payload := make(json.RawMessage, len(f.Body))
	copy(payload, f.Body)
	c.updates.Publish(Update{TenantID: tenantID, Payload: payload, ReceivedAt: time.Now()})
}

// readFrame reads one websocket message and parses it; heart-beats yield a nil frame.
func readFrame(conn *websocket.Conn) (*Frame, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return ParseFrame(data)
}
