// Package stomptest provides a minimal STOMP-over-websocket broker for tests.
package stomptest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/visitorpass/desk/internal/live"
)

type brokerConn struct {
	ws  *websocket.Conn
	wmu sync.Mutex
	mu  sync.Mutex
	// destination -> subscription id
	subs map[string]string
}

func (c *brokerConn) write(f *live.Frame) error {
	data, err := live.Encode(f)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Broker accepts STOMP sessions on /ws/websocket and records what clients do.
type Broker struct {
	mu          sync.Mutex
	conns       map[*brokerConn]struct{}
	connects    int
	disconnects int
	refuse      string
	server      *httptest.Server
	upgrader    websocket.Upgrader
}

// NewBroker starts a broker that is closed when t finishes.
func NewBroker(t testing.TB) *Broker {
	t.Helper()
	b := &Broker{conns: make(map[*brokerConn]struct{})}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/websocket", b.serve)
	b.server = httptest.NewServer(mux)
	t.Cleanup(func() {
		b.DropAll()
		b.server.Close()
	})
	return b
}

// URL is the websocket endpoint.
func (b *Broker) URL() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http") + "/ws/websocket"
}

// APIURL is a REST base URL from which live.EndpointFromAPI derives URL.
func (b *Broker) APIURL() string {
	return b.server.URL + "/api"
}

// Refuse makes following CONNECT frames answer with an ERROR frame carrying message.
// An empty message accepts sessions again.
func (b *Broker) Refuse(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refuse = message
}

// Connects returns how many CONNECT frames were accepted.
func (b *Broker) Connects() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connects
}

// Disconnects returns how many DISCONNECT frames were received.
func (b *Broker) Disconnects() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disconnects
}

// Subscribers returns how many live sessions subscribe to destination.
func (b *Broker) Subscribers(destination string) int {
	n := 0
	for _, c := range b.snapshot() {
		c.mu.Lock()
		if _, ok := c.subs[destination]; ok {
			n++
		}
		c.mu.Unlock()
	}
	return n
}

// Send delivers body as a MESSAGE to every subscriber of destination and returns how many got it.
func (b *Broker) Send(destination, body string) int {
	n := 0
	for _, c := range b.snapshot() {
		c.mu.Lock()
		id, ok := c.subs[destination]
		c.mu.Unlock()
		if !ok {
			continue
		}
		f := live.NewFrame(live.CmdMessage,
			"destination", destination,
			"subscription", id,
			"message-id", "m-1",
			"content-type", "application/json",
		)
		f.Body = []byte(body)
		if c.write(f) == nil {
			n++
		}
	}
	return n
}

// SendError sends an ERROR frame to every session without closing it.
func (b *Broker) SendError(message string) {
	for _, c := range b.snapshot() {
		f := live.NewFrame(live.CmdError, "message", message)
		f.Body = []byte("details")
		_ = c.write(f)
	}
}

// DropAll closes every session abruptly.
func (b *Broker) DropAll() {
	for _, c := range b.snapshot() {
		_ = c.ws.Close()
	}
}

func (b *Broker) snapshot() []*brokerConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*brokerConn, 0, len(b.conns))
	for c := range b.conns {
		out = append(out, c)
	}
	return out
}

func (b *Broker) serve(w http.ResponseWriter, r *http.Request) {
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &brokerConn{ws: ws, subs: make(map[string]string)}
	b.mu.Lock()
	b.conns[c] = struct{}{}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.conns, c)
		b.mu.Unlock()
		_ = ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		f, err := live.ParseFrame(data)
		if err != nil || f == nil {
			continue
		}
		switch f.Command {
		case live.CmdConnect, "STOMP":
			b.mu.Lock()
			refuse := b.refuse
			if refuse == "" {
				b.connects++
			}
			b.mu.Unlock()
			if refuse != "" {
				_ = c.write(live.NewFrame(live.CmdError, "message", refuse))
				return
			}
			_ = c.write(live.NewFrame(live.CmdConnected, "version", "1.2", "heart-beat", "0,0", "server", "stomptest"))
		case live.CmdSubscribe:
			c.mu.Lock()
			c.subs[f.Header.Get("destination")] = f.Header.Get("id")
			c.mu.Unlock()
		case live.CmdDisconnect:
			b.mu.Lock()
			b.disconnects++
			b.mu.Unlock()
			if receipt := f.Header.Get("receipt"); receipt != "" {
				_ = c.write(live.NewFrame(live.CmdReceipt, "receipt-id", receipt))
			}
			return
		}
	}
}
