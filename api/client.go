package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wricardo/festival-lobby/game/config"
	"github.com/wricardo/festival-lobby/game/room"
	"github.com/wricardo/festival-lobby/game/service"
)

// Error is a non-2xx answer from the server
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error: %d", e.Status)
	}
	return e.Message
}

// Client calls the lobby REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// BaseURL returns the server address the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RoomList is the body of GET /rooms
type RoomList struct {
	Count int                 `json:"count"`
	Rooms []*service.RoomInfo `json:"rooms"`
}

// GameList is the body of GET /games
type GameList struct {
	Count int           `json:"count"`
	Games []config.Game `json:"games"`
}

// Health is the body of GET /health
type Health struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Clients int    `json:"clients"`
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) ListGames(ctx context.Context) (*GameList, error) {
	var games GameList
	if err := c.do(ctx, http.MethodGet, "/games", nil, &games); err != nil {
		return nil, err
	}
	return &games, nil
}

func (c *Client) CreateRoom(ctx context.Context, req service.CreateRoomRequest) (*service.JoinResult, error) {
	var created service.JoinResult
	if err := c.do(ctx, http.MethodPost, "/rooms", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) ListRooms(ctx context.Context) (*RoomList, error) {
	var rooms RoomList
	if err := c.do(ctx, http.MethodGet, "/rooms", nil, &rooms); err != nil {
		return nil, err
	}
	return &rooms, nil
}

func (c *Client) GetRoom(ctx context.Context, code string) (*service.RoomInfo, error) {
	var info service.RoomInfo
	if err := c.do(ctx, http.MethodGet, "/rooms/"+url.PathEscape(code), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) JoinRoom(ctx context.Context, code, name string) (*service.JoinResult, error) {
	body := map[string]string{"room_code": code, "name": name}
	var joined service.JoinResult
	if err := c.do(ctx, http.MethodPost, "/rooms/join", body, &joined); err != nil {
		return nil, err
	}
	return &joined, nil
}

func (c *Client) StartGame(ctx context.Context, code string) (*service.RoomInfo, error) {
	var info service.RoomInfo
	if err := c.do(ctx, http.MethodPost, "/rooms/"+url.PathEscape(code)+"/start", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) StartRound(ctx context.Context, code string) (*service.RoundInfo, error) {
	var round service.RoundInfo
	if err := c.do(ctx, http.MethodPost, "/rooms/"+url.PathEscape(code)+"/round/start", nil, &round); err != nil {
		return nil, err
	}
	return &round, nil
}

func (c *Client) Summary(ctx context.Context, code string) (*room.Summary, error) {
	var summary room.Summary
	if err := c.do(ctx, http.MethodGet, "/rooms/"+url.PathEscape(code)+"/summary", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// SubmitScore posts a player's result. meta may be nil.
func (c *Client) SubmitScore(ctx context.Context, roundID, playerID string, score int, meta json.RawMessage) (*service.ScoreResult, error) {
	body := map[string]interface{}{"player_id": playerID, "score": score}
	if len(meta) > 0 {
		body["meta"] = meta
	}
	var result service.ScoreResult
	if err := c.do(ctx, http.MethodPost, "/rounds/"+url.PathEscape(roundID)+"/submit", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) EndRound(ctx context.Context, roundID string) (*service.EndRoundResult, error) {
	var result service.EndRoundResult
	if err := c.do(ctx, http.MethodPost, "/rounds/"+url.PathEscape(roundID)+"/end", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		return &Error{Status: resp.StatusCode, Message: errResp["error"]}
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}
