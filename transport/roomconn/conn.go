package roomconn

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Handler consumes decoded room events.
type Handler interface {
	HandleEvent(Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(Event)

// HandleEvent calls f(ev).
func (f HandlerFunc) HandleEvent(ev Event) { f(ev) }

// RoomConnection is a self-healing subscription to one room's event stream.
type RoomConnection struct {
	roomID  string
	cfg     Config
	handler Handler
	log     zerolog.Logger

	mu sync.Mutex
	// generation allocates instance ids; active is the id the pending retry
	// timer or the current socket belongs to, 0 after Close.
	generation uint64
	active     uint64
	destroyed  bool
	sock       *socket
	retry      clockwork.Timer
	heartbeat  clockwork.Timer

	state atomic.Int32

	// dispatchMu serializes handler invocations across instances.
	dispatchMu sync.Mutex
}

// socket is one connection instance. conn is nil until the dial succeeds.
type socket struct {
	id     uint64
	addr   string
	cancel context.CancelFunc
	conn   Conn
	send   chan []byte
	done   chan struct{}
}

// New creates a RoomConnection for roomID and starts connecting right away.
// It never blocks on the network and never fails; connection problems are
// retried in the background until Close.
func New(roomID string, handler Handler, cfg Config) *RoomConnection {
	if handler == nil {
		handler = HandlerFunc(func(Event) {})
	}
	cfg = cfg.withDefaults()
	c := &RoomConnection{
		roomID:  roomID,
		cfg:     cfg,
		handler: handler,
		log:     cfg.logger(roomID),
	}

	c.mu.Lock()
	c.connectLocked()
	c.mu.Unlock()
	return c
}

// RoomID returns the room this connection subscribes to.
func (c *RoomConnection) RoomID() string { return c.roomID }

// Address returns the push-channel address, or "" if it cannot be built.
func (c *RoomConnection) Address() string {
	addr, _ := Address(c.cfg.BaseURL, c.roomID, c.cfg.ParticipantID)
	return addr
}

// State returns the current lifecycle state.
func (c *RoomConnection) State() State {
	return State(c.state.Load())
}

// Ready reports whether the socket is open and sends will be transmitted.
func (c *RoomConnection) Ready() bool {
	return c.State() == StateOpen
}

// Send JSON-encodes v and queues it for transmission. Byte slices and
// strings are sent as-is. When the connection is not open, or the queue is
// full, the frame is discarded. The result reports whether it was queued.
func (c *RoomConnection) Send(v any) bool {
	data, err := encodeOutbound(v)
	if err != nil {
		c.log.Warn().Err(err).Msg("encode outbound frame")
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sock
	if c.destroyed || s == nil || s.conn == nil {
		c.log.Debug().Stringer("state", c.State()).Msg("not open, dropping send")
		return false
	}
	return c.enqueueLocked(s, data)
}

// Close stops the connection for good: the socket is closed, timers are
// cancelled and no later frame reaches the handler or the typed callbacks.
// Close does not wait for a dispatch already under way on the read
// goroutine, so when called from another goroutine it may return while
// that single event is still being delivered. Calling Close more than once
// is harmless, and it is safe to call from inside the handler. It always
// returns nil.
func (c *RoomConnection) Close() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.destroyed = true
	c.active = 0
	c.stopTimersLocked()
	conn := c.dropSocketLocked()
	c.setState(StateDestroyed)
	c.mu.Unlock()

	closeConn(conn)
	return nil
}

// Reconnect drops the current socket, if any, and dials afresh. It also
// revives a closed connection. State goes straight to Connecting, or to
// Retrying when the address cannot be built.
func (c *RoomConnection) Reconnect() {
	c.mu.Lock()
	c.destroyed = false
	c.active = 0
	c.stopTimersLocked()
	conn := c.dropSocketLocked()
	c.connectLocked()
	c.mu.Unlock()

	closeConn(conn)
}

// connectLocked starts a new connection instance unless one exists.
func (c *RoomConnection) connectLocked() {
	if c.destroyed || c.sock != nil {
		return
	}

	c.generation++
	id := c.generation
	c.active = id

	addr, err := Address(c.cfg.BaseURL, c.roomID, c.cfg.ParticipantID)
	if err != nil {
		c.log.Warn().Err(err).Msg("cannot build address")
		c.scheduleRetryLocked(id)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &socket{
		id:     id,
		addr:   addr,
		cancel: cancel,
		send:   make(chan []byte, c.cfg.SendQueueSize),
		done:   make(chan struct{}),
	}
	c.sock = s
	c.setState(StateConnecting)
	c.log.Debug().Uint64("instance", id).Str("addr", addr).Msg("connecting")

	go c.run(ctx, s)
}

// run dials the socket and then becomes its reader.
func (c *RoomConnection) run(ctx context.Context, s *socket) {
	conn, err := c.cfg.Dialer.Dial(ctx, s.addr)
	if err != nil {
		c.handleClose(s.id, err)
		return
	}
	if !c.attach(s, conn) {
		closeConn(conn)
		return
	}

	go c.writePump(s, conn)
	c.readPump(s, conn)
}

// attach records a successful dial. It returns false when the instance was
// abandoned while dialing.
func (c *RoomConnection) attach(s *socket, conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.liveLocked(s.id) {
		c.log.Debug().Uint64("instance", s.id).Msg("dial finished for stale instance")
		return false
	}
	s.conn = conn
	c.startHeartbeatLocked(s.id)
	c.setState(StateOpen)
	return true
}

func (c *RoomConnection) readPump(s *socket, conn Conn) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(s.id, err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.handleFrame(s.id, data)
	}
}

func (c *RoomConnection) writePump(s *socket, conn Conn) {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		select {
		case <-s.done:
			return
		case msg := <-s.send:
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				select {
				case <-s.done:
				default:
					c.log.Warn().Err(err).Uint64("instance", s.id).Msg("write failed")
				}
				// The reader notices the closed socket and takes the retry path.
				closeConn(conn)
				return
			}
		}
	}
}

func (c *RoomConnection) handleFrame(id uint64, data []byte) {
	if isPong(data) {
		return
	}
	ev, err := DecodeEvent(data)
	if err != nil {
		c.log.Debug().Err(err).Bytes("frame", data).Msg("dropping frame")
		return
	}
	if ev.Type == pongToken {
		return
	}

	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	if !c.isLive(id) {
		return
	}
	c.handler.HandleEvent(ev)

	var typed func(Event)
	switch ev.Type {
	case TypeTeamUpdate:
		typed = c.cfg.OnTeamUpdate
	case TypeScoreUpdate:
		typed = c.cfg.OnScoreUpdate
	}
	if typed != nil && c.isLive(id) {
		typed(ev)
	}
}

// handleClose reacts to a socket closing or a dial failing. Unless the
// instance is stale it schedules the next attempt.
func (c *RoomConnection) handleClose(id uint64, err error) {
	c.mu.Lock()
	if !c.liveLocked(id) {
		c.mu.Unlock()
		return
	}
	c.stopTimersLocked()
	conn := c.dropSocketLocked()
	c.scheduleRetryLocked(id)
	c.mu.Unlock()

	closeConn(conn)
	c.log.Info().Err(err).Uint64("instance", id).Dur("retry_in", c.cfg.ReconnectDelay).Msg("connection lost")
}

func (c *RoomConnection) scheduleRetryLocked(id uint64) {
	c.retry = c.cfg.Clock.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.retryFired(id)
	})
	c.setState(StateRetrying)
}

func (c *RoomConnection) retryFired(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed || c.active != id || c.sock != nil {
		return
	}
	c.retry = nil
	c.connectLocked()
}

func (c *RoomConnection) startHeartbeatLocked(id uint64) {
	c.heartbeat = c.cfg.Clock.AfterFunc(c.cfg.HeartbeatInterval, func() {
		c.beat(id)
	})
}

func (c *RoomConnection) beat(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.liveLocked(id) || c.sock.conn == nil {
		return
	}
	c.enqueueLocked(c.sock, []byte(pingToken))
	c.startHeartbeatLocked(id)
}

func (c *RoomConnection) enqueueLocked(s *socket, data []byte) bool {
	select {
	case s.send <- data:
		return true
	default:
		c.log.Warn().Uint64("instance", s.id).Msg("send queue full, dropping frame")
		return false
	}
}

func (c *RoomConnection) stopTimersLocked() {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	if c.heartbeat != nil {
		c.heartbeat.Stop()
		c.heartbeat = nil
	}
}

// dropSocketLocked detaches the current socket and returns its Conn for the
// caller to close once the lock is released.
func (c *RoomConnection) dropSocketLocked() Conn {
	s := c.sock
	if s == nil {
		return nil
	}
	c.sock = nil
	s.cancel()
	close(s.done)
	return s.conn
}

func (c *RoomConnection) liveLocked(id uint64) bool {
	return !c.destroyed && c.sock != nil && c.sock.id == id
}

func (c *RoomConnection) isLive(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked(id)
}

func (c *RoomConnection) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	if prev != s {
		c.log.Debug().Stringer("from", prev).Stringer("to", s).Msg("state")
	}
}

func closeConn(conn Conn) {
	if conn != nil {
		_ = conn.Close()
	}
}
