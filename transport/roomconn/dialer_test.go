package roomconn

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer answers "ping" with "pong", pushes a greeting on connect and
// records every other frame it receives.
type echoServer struct {
	mu       sync.Mutex
	received []string
	paths    []string
	conns    []*websocket.Conn
}

func (s *echoServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.paths = append(s.paths, r.URL.RequestURI())
	s.conns = append(s.conns, ws)
	s.mu.Unlock()

	ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"team_update","teams":{"red":["Ana"]}}`))
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if string(data) == pingToken {
			ws.WriteMessage(websocket.TextMessage, []byte(pongToken))
			continue
		}
		s.mu.Lock()
		s.received = append(s.received, string(data))
		s.mu.Unlock()
	}
}

func (s *echoServer) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

func (s *echoServer) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// kick drops every server-side socket.
func (s *echoServer) kick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ws := range s.conns {
		ws.Close()
	}
	s.conns = nil
}

func TestGorillaRoundTrip(t *testing.T) {
	srv := &echoServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	rec := &recorder{}
	teamUpdates := make(chan Event, 4)
	c := New("ROOM", rec, Config{
		BaseURL:           ts.URL,
		ParticipantID:     "p7",
		HeartbeatInterval: 20 * time.Millisecond,
		ReconnectDelay:    20 * time.Millisecond,
		OnTeamUpdate:      func(ev Event) { teamUpdates <- ev },
	})
	defer c.Close()

	require.Eventually(t, c.Ready, eventually, tick)
	assert.Equal(t, []string{"/ws/ROOM?participant_id=p7"}, srv.Paths())

	select {
	case ev := <-teamUpdates:
		assert.Equal(t, TypeTeamUpdate, ev.Type)
	case <-time.After(eventually):
		t.Fatal("no team_update")
	}

	require.True(t, c.Send(NewIntent("ready", map[string]any{"player_id": "p7"})))
	require.Eventually(t, func() bool { return len(srv.Received()) == 1 }, eventually, tick)
	assert.JSONEq(t, `{"type":"ready","player_id":"p7"}`, srv.Received()[0])

	// Heartbeats flow and their pong replies never reach the handler.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{TypeTeamUpdate}, rec.Types())

	srv.kick()
	require.Eventually(t, func() bool { return len(srv.Paths()) == 2 }, eventually, tick)
	require.Eventually(t, c.Ready, eventually, tick)
	require.Eventually(t, func() bool { return len(rec.Types()) == 2 }, eventually, tick)
}

func TestGorillaDialRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()

	c := New("ROOM", nil, Config{BaseURL: addr, ReconnectDelay: 10 * time.Millisecond})
	defer c.Close()

	require.Eventually(t, func() bool { return c.State() == StateRetrying }, eventually, tick)
	assert.False(t, c.Ready())
	assert.False(t, c.Send("hello"))
}
