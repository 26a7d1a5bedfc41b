package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wricardo/festival-lobby/game/config"
	"github.com/wricardo/festival-lobby/game/service"
	"github.com/wricardo/festival-lobby/game/session"
	wshub "github.com/wricardo/festival-lobby/transport/websocket"
)

func newLiveServer(t *testing.T) *Client {
	t.Helper()
	games, err := config.NewManager("")
	if err != nil {
		t.Fatal(err)
	}
	hub := wshub.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	lobby := service.NewLobbyService(session.NewManager(), games, hub)
	ts := httptest.NewServer(NewServer(lobby, hub))
	t.Cleanup(ts.Close)
	return NewClient(ts.URL + "/")
}

func TestClient_FullFestival(t *testing.T) {
	ctx := context.Background()
	c := newLiveServer(t)

	games, err := c.ListGames(ctx)
	if err != nil {
		t.Fatalf("ListGames: %v", err)
	}
	if games.Count != len(config.DefaultGames()) {
		t.Fatalf("expected %d games, got %d", len(config.DefaultGames()), games.Count)
	}

	created, err := c.CreateRoom(ctx, service.CreateRoomRequest{Name: "Lantern Night", HostName: "Mai"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if !created.IsHost || created.RoomCode == "" {
		t.Fatalf("unexpected create result %+v", created)
	}

	ana, err := c.JoinRoom(ctx, created.RoomCode, "Ana")
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if _, err := c.StartGame(ctx, created.RoomCode); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	for i := 0; i < games.Count; i++ {
		round, err := c.StartRound(ctx, created.RoomCode)
		if err != nil {
			t.Fatalf("StartRound %d: %v", i+1, err)
		}
		if round.Round != i+1 {
			t.Errorf("round = %d, want %d", round.Round, i+1)
		}
		if _, err := c.SubmitScore(ctx, round.RoundID, ana.PlayerID, 10, json.RawMessage(`{"hits":2}`)); err != nil {
			t.Fatalf("SubmitScore: %v", err)
		}
		ended, err := c.EndRound(ctx, round.RoundID)
		if err != nil {
			t.Fatalf("EndRound: %v", err)
		}
		if last := i == games.Count-1; ended.LastRound != last {
			t.Errorf("round %d: LastRound = %v", i+1, ended.LastRound)
		}
	}

	summary, err := c.Summary(ctx, created.RoomCode)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Winner != "Ana" {
		t.Errorf("winner = %q, want Ana", summary.Winner)
	}
	if len(summary.Standings) == 0 || summary.Standings[0].Score != 10*games.Count {
		t.Errorf("unexpected standings %+v", summary.Standings)
	}

	info, err := c.GetRoom(ctx, created.RoomCode)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if info.RoundsPlayed != games.Count {
		t.Errorf("rounds played = %d", info.RoundsPlayed)
	}
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()
	c := newLiveServer(t)

	_, err := c.GetRoom(ctx, "ZZZZ")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", apiErr.Status)
	}
	if apiErr.Message != session.ErrRoomNotFound.Error() {
		t.Errorf("message = %q", apiErr.Message)
	}

	created, err := c.CreateRoom(ctx, service.CreateRoomRequest{Name: "Solo", HostName: "Mai"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.StartGame(ctx, created.RoomCode)
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict {
		t.Errorf("starting an empty room: got %v", err)
	}
}

func TestClient_Unreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	if _, err := c.Health(context.Background()); err == nil {
		t.Error("Expected error for unreachable server")
	}
}

func TestClient_HTTPErrorWithoutBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).ListRooms(context.Background())
	if err == nil || err.Error() != "API error: 502" {
		t.Errorf("unexpected error %v", err)
	}
}
