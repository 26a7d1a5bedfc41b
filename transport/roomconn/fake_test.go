package roomconn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type frame struct {
	messageType int
	data        []byte
}

// fakeConn is a scripted socket. The test decides when a dial succeeds or
// fails, what the server sends and when the server hangs up.
type fakeConn struct {
	addr string

	accept chan struct{}
	reject chan error

	inbound chan frame
	closed  chan struct{}
	once    sync.Once

	mu     sync.Mutex
	opened bool
	writes []string
}

func newFakeConn(addr string) *fakeConn {
	return &fakeConn{
		addr:    addr,
		accept:  make(chan struct{}),
		reject:  make(chan error, 1),
		inbound: make(chan frame, 16),
		closed:  make(chan struct{}),
	}
}

func (f *fakeConn) Open()          { close(f.accept) }
func (f *fakeConn) Fail(err error) { f.reject <- err }

func (f *fakeConn) Deliver(text string) {
	f.inbound <- frame{websocket.TextMessage, []byte(text)}
}

// Drop simulates the server closing the socket.
func (f *fakeConn) Drop() { f.Close() }

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case fr := <-f.inbound:
		return fr.messageType, fr.data, nil
	case <-f.closed:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseAbnormalClosure}
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("write on closed socket")
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, string(data))
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) IsClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeConn) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

type fakeDialer struct {
	dials chan *fakeConn

	mu    sync.Mutex
	conns []*fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dials: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	fc := newFakeConn(addr)
	d.mu.Lock()
	d.conns = append(d.conns, fc)
	d.mu.Unlock()
	d.dials <- fc

	select {
	case <-fc.accept:
		fc.mu.Lock()
		fc.opened = true
		fc.mu.Unlock()
		return fc, nil
	case err := <-fc.reject:
		fc.Close()
		return nil, err
	case <-ctx.Done():
		fc.Close()
		return nil, ctx.Err()
	}
}

// next waits for the next dial attempt.
func (d *fakeDialer) next(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case fc := <-d.dials:
		return fc
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a dial")
		return nil
	}
}

// expectNoDial fails if a dial attempt shows up within a short window.
func (d *fakeDialer) expectNoDial(t *testing.T) {
	t.Helper()
	select {
	case fc := <-d.dials:
		t.Fatalf("unexpected dial to %s", fc.addr)
	case <-time.After(50 * time.Millisecond):
	}
}

func (d *fakeDialer) attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// live counts sockets that are dialing or open.
func (d *fakeDialer) live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, fc := range d.conns {
		if !fc.IsClosed() {
			n++
		}
	}
	return n
}

// recorder is a Handler that keeps every event it sees.
type recorder struct {
	mu      sync.Mutex
	events  []Event
	onEvent func(Event)
}

func (r *recorder) HandleEvent(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	hook := r.onEvent
	r.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
}

func (r *recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		types = append(types, ev.Type)
	}
	return types
}

func (r *recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

type blocker interface {
	BlockUntil(n int)
}

// waitTimers waits until exactly n timers are pending on the fake clock.
func waitTimers(t *testing.T, clock blocker, n int) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		clock.BlockUntil(n)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %d pending timers", n)
	}
}
