package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/festival-lobby/game/config"
	"github.com/wricardo/festival-lobby/game/room"
	"github.com/wricardo/festival-lobby/game/service"
	"github.com/wricardo/festival-lobby/game/session"
	wshub "github.com/wricardo/festival-lobby/transport/websocket"
)

// MockLobbyService implements service.LobbyService for testing
type MockLobbyService struct {
	CreateRoomFunc  func(ctx context.Context, req service.CreateRoomRequest) (*service.JoinResult, error)
	JoinRoomFunc    func(ctx context.Context, code, name string) (*service.JoinResult, error)
	ListRoomsFunc   func(ctx context.Context) ([]*service.RoomInfo, error)
	GetRoomFunc     func(ctx context.Context, code string) (*service.RoomInfo, error)
	StartGameFunc   func(ctx context.Context, code string) (*service.RoomInfo, error)
	StartRoundFunc  func(ctx context.Context, code string) (*service.RoundInfo, error)
	SubmitScoreFunc func(ctx context.Context, roundID, playerID string, score int, meta json.RawMessage) (*service.ScoreResult, error)
	EndRoundFunc    func(ctx context.Context, roundID string) (*service.EndRoundResult, error)
	SummaryFunc     func(ctx context.Context, code string) (*room.Summary, error)
	ListGamesFunc   func(ctx context.Context) ([]config.Game, error)
}

func (m *MockLobbyService) CreateRoom(ctx context.Context, req service.CreateRoomRequest) (*service.JoinResult, error) {
	if m.CreateRoomFunc != nil {
		return m.CreateRoomFunc(ctx, req)
	}
	return &service.JoinResult{RoomCode: "ABCD", PlayerID: "host", Name: req.HostName, IsHost: true}, nil
}

func (m *MockLobbyService) JoinRoom(ctx context.Context, code, name string) (*service.JoinResult, error) {
	if m.JoinRoomFunc != nil {
		return m.JoinRoomFunc(ctx, code, name)
	}
	return &service.JoinResult{RoomCode: code, PlayerID: "p1", Name: name}, nil
}

func (m *MockLobbyService) ListRooms(ctx context.Context) ([]*service.RoomInfo, error) {
	if m.ListRoomsFunc != nil {
		return m.ListRoomsFunc(ctx)
	}
	return []*service.RoomInfo{}, nil
}

func (m *MockLobbyService) GetRoom(ctx context.Context, code string) (*service.RoomInfo, error) {
	if m.GetRoomFunc != nil {
		return m.GetRoomFunc(ctx, code)
	}
	return &service.RoomInfo{Code: code, Status: room.StatusWaiting, CreatedAt: time.Now()}, nil
}

func (m *MockLobbyService) StartGame(ctx context.Context, code string) (*service.RoomInfo, error) {
	if m.StartGameFunc != nil {
		return m.StartGameFunc(ctx, code)
	}
	return &service.RoomInfo{Code: code, Status: room.StatusPlaying}, nil
}

func (m *MockLobbyService) StartRound(ctx context.Context, code string) (*service.RoundInfo, error) {
	if m.StartRoundFunc != nil {
		return m.StartRoundFunc(ctx, code)
	}
	return &service.RoundInfo{RoomCode: code, RoundID: "r1", Round: 1, GameKey: "fishing", Duration: 60}, nil
}

func (m *MockLobbyService) SubmitScore(ctx context.Context, roundID, playerID string, score int, meta json.RawMessage) (*service.ScoreResult, error) {
	if m.SubmitScoreFunc != nil {
		return m.SubmitScoreFunc(ctx, roundID, playerID, score, meta)
	}
	return &service.ScoreResult{OK: true, RoundID: roundID, PlayerID: playerID, Score: score, TotalScore: score}, nil
}

func (m *MockLobbyService) EndRound(ctx context.Context, roundID string) (*service.EndRoundResult, error) {
	if m.EndRoundFunc != nil {
		return m.EndRoundFunc(ctx, roundID)
	}
	return &service.EndRoundResult{OK: true, RoundID: roundID, RoundIndex: 1}, nil
}

func (m *MockLobbyService) Summary(ctx context.Context, code string) (*room.Summary, error) {
	if m.SummaryFunc != nil {
		return m.SummaryFunc(ctx, code)
	}
	return &room.Summary{RoomCode: code}, nil
}

func (m *MockLobbyService) ListGames(ctx context.Context) ([]config.Game, error) {
	if m.ListGamesFunc != nil {
		return m.ListGamesFunc(ctx)
	}
	return config.DefaultGames(), nil
}

func (m *MockLobbyService) ParticipantConnected(ctx context.Context, code, playerID string) error {
	return nil
}

func (m *MockLobbyService) ParticipantDisconnected(ctx context.Context, code, playerID string) error {
	return nil
}

func newTestServer(t *testing.T, svc service.LobbyService) (*Server, *wshub.Hub) {
	t.Helper()
	hub := wshub.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return NewServer(svc, hub), hub
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	return resp["error"]
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, &MockLobbyService{})

	rr := doRequest(t, s, "GET", "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var resp map[string]interface{}
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp["status"] != "healthy" {
		t.Errorf("Expected healthy, got %v", resp["status"])
	}
}

func TestHandleCreateRoom(t *testing.T) {
	var got service.CreateRoomRequest
	mock := &MockLobbyService{
		CreateRoomFunc: func(ctx context.Context, req service.CreateRoomRequest) (*service.JoinResult, error) {
			got = req
			return &service.JoinResult{RoomCode: "WXYZ", PlayerID: "h1", Name: req.HostName, IsHost: true}, nil
		},
	}
	s, _ := newTestServer(t, mock)

	rr := doRequest(t, s, "POST", "/rooms", map[string]interface{}{
		"name": "Night Market", "mode": "team", "host_name": "Mai", "max_players": 6,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.Name != "Night Market" || got.Mode != room.ModeTeam || got.HostName != "Mai" || got.MaxPlayers != 6 {
		t.Errorf("request not decoded: %+v", got)
	}

	var resp service.JoinResult
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.RoomCode != "WXYZ" || !resp.IsHost {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandleCreateRoom_InvalidBody(t *testing.T) {
	s, _ := newTestServer(t, &MockLobbyService{})

	req := httptest.NewRequest("POST", "/rooms", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestHandleListRooms(t *testing.T) {
	mock := &MockLobbyService{
		ListRoomsFunc: func(ctx context.Context) ([]*service.RoomInfo, error) {
			return []*service.RoomInfo{
				{Code: "AAAA", Status: room.StatusWaiting},
				{Code: "BBBB", Status: room.StatusPlaying},
				{Code: "CCCC", Status: room.StatusWaiting},
			}, nil
		},
	}
	s, _ := newTestServer(t, mock)

	tests := []struct {
		path string
		want int
	}{
		{"/rooms", 3},
		{"/rooms?status=waiting", 2},
		{"/rooms?status=finished", 0},
	}
	for _, tt := range tests {
		rr := doRequest(t, s, "GET", tt.path, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status %d", tt.path, rr.Code)
		}
		var resp RoomList
		json.NewDecoder(rr.Body).Decode(&resp)
		if resp.Count != tt.want || len(resp.Rooms) != tt.want {
			t.Errorf("%s: got %d rooms, want %d", tt.path, resp.Count, tt.want)
		}
	}
}

func TestHandleJoinRoom(t *testing.T) {
	s, _ := newTestServer(t, &MockLobbyService{})

	rr := doRequest(t, s, "POST", "/rooms/join", map[string]string{"room_code": "ABCD", "name": "Ana"})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var resp service.JoinResult
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.RoomCode != "ABCD" || resp.Name != "Ana" {
		t.Errorf("unexpected response %+v", resp)
	}

	rr = doRequest(t, s, "POST", "/rooms/join", map[string]string{"name": "Ana"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing room_code: expected 400, got %d", rr.Code)
	}
}

func TestHandleSubmitScore(t *testing.T) {
	var gotMeta json.RawMessage
	mock := &MockLobbyService{
		SubmitScoreFunc: func(ctx context.Context, roundID, playerID string, score int, meta json.RawMessage) (*service.ScoreResult, error) {
			gotMeta = meta
			return &service.ScoreResult{OK: true, RoundID: roundID, PlayerID: playerID, Score: score, TotalScore: 40 + score}, nil
		},
	}
	s, _ := newTestServer(t, mock)

	rr := doRequest(t, s, "POST", "/rounds/r-1/submit", map[string]interface{}{
		"player_id": "p1", "score": 0, "meta": map[string]int{"fish": 3},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp service.ScoreResult
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.RoundID != "r-1" || resp.Score != 0 || resp.TotalScore != 40 {
		t.Errorf("unexpected response %+v", resp)
	}
	if string(gotMeta) != `{"fish":3}` {
		t.Errorf("meta = %s", gotMeta)
	}

	rr = doRequest(t, s, "POST", "/rounds/r-1/submit", map[string]interface{}{"player_id": "p1"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing score: expected 400, got %d", rr.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"room not found", session.ErrRoomNotFound, http.StatusNotFound},
		{"round not found", room.ErrRoundNotFound, http.StatusNotFound},
		{"wrapped player", fmt.Errorf("submit: %w", room.ErrPlayerNotFound), http.StatusNotFound},
		{"empty name", fmt.Errorf("host %w", room.ErrEmptyName), http.StatusBadRequest},
		{"invalid score", room.ErrInvalidScore, http.StatusBadRequest},
		{"host scoring", room.ErrHostCannotScore, http.StatusBadRequest},
		{"room full", room.ErrRoomFull, http.StatusConflict},
		{"already started", room.ErrAlreadyStarted, http.StatusConflict},
		{"round not active", room.ErrRoundNotActive, http.StatusConflict},
		{"duplicate score", room.ErrAlreadySubmitted, http.StatusConflict},
		{"no more rounds", room.ErrNoMoreRounds, http.StatusConflict},
		{"storage", fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockLobbyService{
				StartGameFunc: func(ctx context.Context, code string) (*service.RoomInfo, error) {
					return nil, tt.err
				},
			}
			s, _ := newTestServer(t, mock)

			rr := doRequest(t, s, "POST", "/rooms/ABCD/start", nil)
			if rr.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, rr.Code)
			}
			if msg := decodeError(t, rr); msg != tt.err.Error() {
				t.Errorf("error = %q, want %q", msg, tt.err.Error())
			}
		})
	}
}

func TestRoutes(t *testing.T) {
	s, _ := newTestServer(t, &MockLobbyService{})

	tests := []struct {
		method, path string
		status       int
	}{
		{"GET", "/games", http.StatusOK},
		{"GET", "/rooms/ABCD", http.StatusOK},
		{"POST", "/rooms/ABCD/start", http.StatusOK},
		{"POST", "/rooms/ABCD/round/start", http.StatusOK},
		{"GET", "/rooms/ABCD/summary", http.StatusOK},
		{"POST", "/rounds/r1/end", http.StatusOK},
		{"DELETE", "/rooms/ABCD", http.StatusMethodNotAllowed},
		{"GET", "/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		rr := doRequest(t, s, tt.method, tt.path, nil)
		if rr.Code != tt.status {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.status, rr.Code)
		}
	}
}

func TestRoomSocketRequiresRoom(t *testing.T) {
	mock := &MockLobbyService{
		GetRoomFunc: func(ctx context.Context, code string) (*service.RoomInfo, error) {
			if code != "ABCD" {
				return nil, session.ErrRoomNotFound
			}
			return &service.RoomInfo{Code: code}, nil
		},
	}
	s, hub := newTestServer(t, mock)
	ts := httptest.NewServer(s)
	defer ts.Close()
	wsBase := "ws" + strings.TrimPrefix(ts.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(wsBase+"/ws/ZZZZ", nil)
	if err == nil {
		t.Fatal("Expected dial to unknown room to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown room, got %v", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsBase+"/ws/ABCD?participant_id=p1", nil)
	if err != nil {
		t.Fatalf("Failed to connect to room socket: %v", err)
	}
	defer conn.Close()

	global, _, err := websocket.DefaultDialer.Dial(wsBase+"/ws/global", nil)
	if err != nil {
		t.Fatalf("Failed to connect to global socket: %v", err)
	}
	defer global.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 clients, have %d", hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.PublishRoom("abcd", map[string]string{"type": "team_update"})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "team_update") {
		t.Errorf("unexpected frame %s", data)
	}
}
