package server

import (
	"context"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/versehub/internal/stats"
	"github.com/npezzotti/versehub/internal/testutil"
)

// fakeConn is an in-memory Conn. Frames pushed on in are returned by
// ReadMessage; text frames written by the client land on out.
type fakeConn struct {
	in  chan []byte
	out chan []byte

	mu          sync.Mutex
	pings       int
	closeFrame  []byte
	pongHandler func(string) error

	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case b := <-f.in:
		return websocket.TextMessage, b, nil
	case <-f.closed:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-f.closed:
		return websocket.ErrCloseSent
	case f.out <- data:
		return nil
	}
}

func (f *fakeConn) WriteControl(messageType int, data []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch messageType {
	case websocket.PingMessage:
		f.pings++
	case websocket.CloseMessage:
		f.closeFrame = data
	}
	return nil
}

func (f *fakeConn) SetReadLimit(int64)               {}
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) SetPongHandler(h func(string) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pongHandler = h
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeConn) pingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

// pong delivers a pong frame if the read loop has installed its handler.
func (f *fakeConn) pong() bool {
	f.mu.Lock()
	h := f.pongHandler
	f.mu.Unlock()

	if h == nil {
		return false
	}
	h("")
	return true
}

type recordingRouter struct {
	msgs chan *ClientMessage
}

func newRecordingRouter() *recordingRouter {
	return &recordingRouter{msgs: make(chan *ClientMessage, 16)}
}

func (r *recordingRouter) Route(_ context.Context, msg *ClientMessage) {
	r.msgs <- msg
}

func newTestRegistry(t *testing.T) *Registry {
	r := NewRegistry(testutil.TestLogger(t), stats.NopStats{}, 5)
	r.afterFunc = func(time.Duration, func()) *time.Timer { return nil }
	return r
}

// newTestClient builds a client whose pumps are not running, so queued
// envelopes stay on c.send for inspection.
func newTestClient(t *testing.T, r *Registry, userId int) (*Client, *fakeConn) {
	fc := newFakeConn()
	return NewClient(User{Id: userId, Name: "user"}, fc, r, newRecordingRouter(), testLogger(t)), fc
}

func testLogger(t *testing.T) *log.Logger {
	return testutil.TestLogger(t)
}

// nextEnvelope returns the next queued envelope of type typ, skipping
// presence snapshots unless they were asked for.
func nextEnvelope(c *Client, typ EnvelopeType) *ServerMessage {
	for {
		select {
		case msg := <-c.send:
			if msg.Type == typ {
				return msg
			}
		default:
			return nil
		}
	}
}
