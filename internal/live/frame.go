package live

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-stomp/stomp/v3/frame"
)

// STOMP commands used by the channel.
const (
	CmdConnect    = frame.CONNECT
	CmdConnected  = frame.CONNECTED
	CmdSubscribe  = frame.SUBSCRIBE
	CmdMessage    = frame.MESSAGE
	CmdError      = frame.ERROR
	CmdReceipt    = frame.RECEIPT
	CmdDisconnect = frame.DISCONNECT
)

// ErrMalformedFrame is returned by ParseFrame for data that is not a STOMP frame.
var ErrMalformedFrame = errors.New("malformed stomp frame")

// Frame is a STOMP 1.2 frame.
type Frame = frame.Frame

// NewFrame builds a frame from command and key/value pairs.
func NewFrame(command string, kv ...string) *Frame {
	return frame.New(command, kv...)
}

// Encode renders f as one websocket message, adding content-length when the body is set.
func Encode(f *Frame) ([]byte, error) {
	if len(f.Body) > 0 {
		if _, ok := f.Header.Contains(frame.ContentLength); !ok {
			f.Header.Add(frame.ContentLength, strconv.Itoa(len(f.Body)))
		}
	}
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return nil, fmt.Errorf("encode %s: %w", f.Command, err)
	}
	return buf.Bytes(), nil
}

// ParseFrame decodes the frame in one websocket message. A heart-beat yields a nil frame.
func ParseFrame(data []byte) (*Frame, error) {
	if len(bytes.TrimLeft(data, "\r\n")) == 0 {
		return nil, nil
	}
	f, err := frame.NewReader(bytes.NewReader(bytes.TrimLeft(data, "\r\n"))).Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f == nil {
		return nil, fmt.Errorf("%w: no frame", ErrMalformedFrame)
	}
	return f, nil
}

// heartBeat parses a "cx,cy" heart-beat header value into milliseconds.
func heartBeat(v string) (int, int) {
	a, b, ok := strings.Cut(v, ",")
	if !ok {
		return 0, 0
	}
	x, err1 := strconv.Atoi(strings.TrimSpace(a))
	y, err2 := strconv.Atoi(strings.TrimSpace(b))
	if err1 != nil || err2 != nil || x < 0 || y < 0 {
		return 0, 0
	}
	return x, y
}
