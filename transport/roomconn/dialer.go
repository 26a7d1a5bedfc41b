package roomconn

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the server.
	writeWait = 10 * time.Second

	// Maximum inbound frame size. Room snapshots can be large.
	maxMessageSize = 1 << 20
)

// Conn is one physical socket. ReadMessage is only called from a single
// reader goroutine and WriteMessage from a single writer goroutine; Close
// may be called from anywhere and more than once.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens physical sockets. Dial must return promptly once ctx is
// cancelled.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Conn, error)
}

// GorillaDialer dials with gorilla/websocket.
type GorillaDialer struct {
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
	// Header is sent with the upgrade request.
	Header http.Header
}

// Dial implements Dialer.
func (d GorillaDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ws, resp, err := dialer.DialContext(ctx, addr, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	ws.SetReadLimit(maxMessageSize)
	return &gorillaConn{ws: ws}, nil
}

type gorillaConn struct {
	ws *websocket.Conn
}

func (c *gorillaConn) ReadMessage() (int, []byte, error) {
	return c.ws.ReadMessage()
}

func (c *gorillaConn) WriteMessage(messageType int, data []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(messageType, data)
}

// Close sends a normal-closure control frame, best effort, then drops the
// TCP connection. WriteControl is safe alongside the writer goroutine.
func (c *gorillaConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.ws.Close()
}
