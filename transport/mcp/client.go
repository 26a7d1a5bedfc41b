package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/festival-lobby/api"
	"github.com/wricardo/festival-lobby/game/room"
	"github.com/wricardo/festival-lobby/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	api       *api.Client
	mcpServer *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{api: api.NewClient(baseURL)}
	c.initMCPServer()
	return c
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Festival Lobby",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Festival Lobby - MCP Interface

Drive a party-game room through the REST API: create a room (you become the
host), let players join, start the game, then run each mini-game round:
start_round, submit_score for every contestant, end_round. After the last
round game_summary shows the final standings.

The host runs the room and never scores. Room codes are four characters and
case-insensitive.`),
	)

	c.registerTools()
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func roomCodeSchema() mcp.ToolInputSchema {
	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: map[string]interface{}{"room_code": stringProp("Four-character room code")},
		Required:   []string{"room_code"},
	}
}

func (c *Client) registerTools() {
	// Rooms
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_room",
		Description: "Create a new room. The caller becomes its host.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name":      stringProp("Room name"),
				"host_name": stringProp("Display name of the host"),
				"mode": map[string]interface{}{
					"type":        "string",
					"enum":        []string{string(room.ModeSolo), string(room.ModeTeam)},
					"description": "solo (default) or red/blue teams",
				},
				"max_players": map[string]interface{}{
					"type":        "integer",
					"description": "Contestant limit (default 8)",
				},
			},
			Required: []string{"name", "host_name"},
		},
	}, c.handleCreateRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "join_room",
		Description: "Join a waiting room as a contestant",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_code": stringProp("Four-character room code"),
				"name":      stringProp("Player display name"),
			},
			Required: []string{"room_code", "name"},
		},
	}, c.handleJoinRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List all rooms",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_room",
		Description: "Get a room's players, status and current round",
		InputSchema: roomCodeSchema(),
	}, c.handleGetRoom)

	// Game flow
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "start_game",
		Description: "Close the lobby and start play",
		InputSchema: roomCodeSchema(),
	}, c.handleStartGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "start_round",
		Description: "Open the next mini-game round",
		InputSchema: roomCodeSchema(),
	}, c.handleStartRound)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "submit_score",
		Description: "Record a contestant's score for a running round",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"round_id":  stringProp("Round ID from start_round"),
				"player_id": stringProp("Contestant's player ID"),
				"score": map[string]interface{}{
					"type":        "integer",
					"description": "Non-negative score",
				},
				"meta": map[string]interface{}{
					"type":        "object",
					"description": "Optional mini-game details (catches, hits, ...)",
				},
			},
			Required: []string{"round_id", "player_id", "score"},
		},
	}, c.handleSubmitScore)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "end_round",
		Description: "Close a running round",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"round_id": stringProp("Round ID from start_round")},
			Required:   []string{"round_id"},
		},
	}, c.handleEndRound)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_summary",
		Description: "Show the scoreboard",
		InputSchema: roomCodeSchema(),
	}, c.handleSummary)

	// Catalog
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_games",
		Description: "List the mini-games in festival order",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListGames)
}

// arguments returns the call's argument object; missing arguments read as empty
func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return args
}

func requireString(args map[string]interface{}, key string) (string, error) {
	v, _ := args[key].(string)
	if strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

// Tool handlers

func (c *Client) handleCreateRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	req := service.CreateRoomRequest{}
	req.Name, _ = args["name"].(string)
	req.HostName, _ = args["host_name"].(string)
	if mode, ok := args["mode"].(string); ok {
		req.Mode = room.Mode(mode)
	}
	if maxPlayers, ok := args["max_players"].(float64); ok {
		req.MaxPlayers = int(maxPlayers)
	}

	created, err := c.api.CreateRoom(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created room %s (%s)\nHost: %s (player_id %s)\n",
		created.RoomCode, created.Room.Mode, created.Name, created.PlayerID)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleJoinRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	code, err := requireString(args, "room_code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, _ := args["name"].(string)

	joined, err := c.api.JoinRoom(ctx, code, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Joined room %s as %s (player_id %s)", joined.RoomCode, joined.Name, joined.PlayerID)
	if joined.Team != "" {
		result += fmt.Sprintf(", team %s", joined.Team)
	}
	return mcp.NewToolResultText(result + "\n"), nil
}

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rooms, err := c.api.ListRooms(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Rooms (%d):\n\n", rooms.Count)
	for _, r := range rooms.Rooms {
		fmt.Fprintf(&b, "- %s %q %s, %d players, round %d/%d (Created: %s)\n",
			r.Code, r.Name, r.Status, r.PlayerCount, r.RoundsPlayed, r.TotalRounds, r.CreatedAt.Format("15:04:05"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := requireString(arguments(request), "room_code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	info, err := c.api.GetRoom(ctx, code)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatRoom(info)), nil
}

func (c *Client) handleStartGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := requireString(arguments(request), "room_code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	info, err := c.api.StartGame(ctx, code)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Game started in room %s with %d rounds\n", info.Code, info.TotalRounds)), nil
}

func (c *Client) handleStartRound(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := requireString(arguments(request), "room_code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	round, err := c.api.StartRound(ctx, code)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Round %d/%d started: %s (%ds)\nround_id: %s\n",
		round.Round, round.TotalRounds, round.GameKey, round.Duration, round.RoundID)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleSubmitScore(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	roundID, err := requireString(args, "round_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	playerID, err := requireString(args, "player_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	score, ok := args["score"].(float64)
	if !ok {
		return mcp.NewToolResultError("score is required"), nil
	}

	var meta json.RawMessage
	if m, ok := args["meta"]; ok && m != nil {
		if meta, err = json.Marshal(m); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid meta: %v", err)), nil
		}
	}

	res, err := c.api.SubmitScore(ctx, roundID, playerID, int(score), meta)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Scored %d for %s (total %d)\n", res.Score, res.PlayerID, res.TotalScore)), nil
}

func (c *Client) handleEndRound(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roundID, err := requireString(arguments(request), "round_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := c.api.EndRound(ctx, roundID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Round %d ended in room %s\n", res.RoundIndex, res.RoomCode)
	if res.LastRound && res.Summary != nil {
		result += "\nThat was the last round.\n\n" + formatSummary(res.Summary)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := requireString(arguments(request), "room_code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	summary, err := c.api.Summary(ctx, code)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSummary(summary)), nil
}

func (c *Client) handleListGames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	games, err := c.api.ListGames(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Mini-games (%d):\n\n", games.Count)
	for _, g := range games.Games {
		state := ""
		if !g.Enabled {
			state = " [disabled]"
		}
		fmt.Fprintf(&b, "%d. %s %s (%s, %ds)%s\n", g.Order, g.Icon, g.Name, g.Key, g.DurationSeconds, state)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func formatRoom(info *service.RoomInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room %s %q\n", info.Code, info.Name)
	fmt.Fprintf(&b, "Mode: %s  Status: %s  Rounds: %d/%d\n", info.Mode, info.Status, info.RoundsPlayed, info.TotalRounds)
	fmt.Fprintf(&b, "Players (%d/%d):\n", info.PlayerCount, info.MaxPlayers)
	for _, p := range info.Players {
		var tags []string
		if p.IsHost {
			tags = append(tags, "host")
		}
		if p.Team != "" {
			tags = append(tags, p.Team)
		}
		if !p.Connected {
			tags = append(tags, "offline")
		}
		line := fmt.Sprintf("- %s (%s) %d pts", p.Name, p.ID, p.Score)
		if len(tags) > 0 {
			line += " [" + strings.Join(tags, ", ") + "]"
		}
		b.WriteString(line + "\n")
	}
	if r := info.CurrentRound; r != nil {
		fmt.Fprintf(&b, "Current round: %d %s (round_id %s, %d results)\n", r.Index, r.GameKey, r.ID, len(r.Results))
	}
	return b.String()
}

func formatSummary(s *room.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scoreboard for %s (%d/%d rounds, %s)\n", s.RoomCode, s.RoundsPlayed, s.TotalRounds, s.Status)
	for _, st := range s.Standings {
		team := ""
		if st.Team != "" {
			team = " [" + st.Team + "]"
		}
		fmt.Fprintf(&b, "%d. %s%s %d\n", st.Rank, st.Name, team, st.Score)
	}
	for _, t := range s.Teams {
		fmt.Fprintf(&b, "Team %s: %d (%d players)\n", t.Team, t.Score, t.Players)
	}
	if s.Winner != "" {
		fmt.Fprintf(&b, "Winner: %s\n", s.Winner)
	} else {
		b.WriteString("No winner yet\n")
	}
	return b.String()
}
