package service

import (
	"time"

	"github.com/wricardo/festival-lobby/game/room"
)

// CreateRoomRequest opens a new room
type CreateRoomRequest struct {
	Name       string    `json:"name"`
	Mode       room.Mode `json:"mode"`
	HostName   string    `json:"host_name"`
	MaxPlayers int       `json:"max_players"`
}

// RoomInfo is the public view of a room
type RoomInfo struct {
	Code         string         `json:"code"`
	Name         string         `json:"name"`
	Mode         room.Mode      `json:"mode"`
	HostName     string         `json:"host_name"`
	MaxPlayers   int            `json:"max_players"`
	Status       room.Status    `json:"status"`
	PlayerCount  int            `json:"player_count"`
	RoundsPlayed int            `json:"rounds_played"`
	TotalRounds  int            `json:"total_rounds"`
	Players      []*room.Player `json:"players"`
	CurrentRound *room.Round    `json:"current_round,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// JoinResult identifies the caller's player inside a room
type JoinResult struct {
	RoomCode string    `json:"room_code"`
	PlayerID string    `json:"player_id"`
	Name     string    `json:"name"`
	Team     string    `json:"team,omitempty"`
	IsHost   bool      `json:"is_host"`
	Room     *RoomInfo `json:"room"`
}

// RoundInfo describes a round that just started
type RoundInfo struct {
	RoomCode    string `json:"room_code"`
	RoundID     string `json:"round_id"`
	Round       int    `json:"round"`
	GameKey     string `json:"game_key"`
	Duration    int    `json:"duration"`
	TotalRounds int    `json:"total_rounds"`
}

// ScoreResult acknowledges a submitted score
type ScoreResult struct {
	OK         bool   `json:"ok"`
	RoundID    string `json:"round_id"`
	PlayerID   string `json:"player_id"`
	Score      int    `json:"score"`
	TotalScore int    `json:"total_score"`
}

// EndRoundResult reports a closed round. Summary is set after the last one.
type EndRoundResult struct {
	OK         bool          `json:"ok"`
	RoomCode   string        `json:"room_code"`
	RoundID    string        `json:"round_id"`
	RoundIndex int           `json:"round_index"`
	LastRound  bool          `json:"last_round"`
	Summary    *room.Summary `json:"summary,omitempty"`
}

// Push event types
const (
	EventPlayerJoin       = "player_join"
	EventPlayerDisconnect = "player_disconnect"
	EventHostTransfer     = "host_transfer"
	EventTeamUpdate       = "team_update"
	EventGameStart        = "game_start"
	EventRoundStart       = "round_start"
	EventEnterGame        = "enter_game"
	EventScoreUpdate      = "score_update"
	EventRoundEnd         = "round_end"
	EventGameSummary      = "game_summary"
	EventRoomUpdate       = "room_update"
)

// PlayerEvent carries player_join, player_disconnect and host_transfer
type PlayerEvent struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name,omitempty"`
	Team     string `json:"team,omitempty"`
	Room     string `json:"room,omitempty"`
}

type TeamUpdateEvent struct {
	Type  string            `json:"type"`
	Teams []room.TeamMember `json:"teams"`
}

type GameStartEvent struct {
	Type        string `json:"type"`
	Room        string `json:"room"`
	TotalRounds int    `json:"total_rounds"`
}

type RoundStartEvent struct {
	Type        string `json:"type"`
	Round       int    `json:"round"`
	RoundID     string `json:"round_id"`
	GameKey     string `json:"game_key"`
	Duration    int    `json:"duration"`
	TotalRounds int    `json:"total_rounds"`
}

type EnterGameEvent struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id"`
	GameKey  string `json:"game_key"`
	RoundID  string `json:"round_id"`
}

// ScoreUpdateEvent carries the points of one submission, not the total
type ScoreUpdateEvent struct {
	Type       string `json:"type"`
	PlayerID   string `json:"player_id"`
	Score      int    `json:"score"`
	TotalScore int    `json:"total_score"`
	RoundID    string `json:"round_id"`
}

type RoundEndEvent struct {
	Type       string `json:"type"`
	RoundID    string `json:"round_id"`
	RoundIndex int    `json:"round_index"`
}

type GameSummaryEvent struct {
	Type    string       `json:"type"`
	Summary room.Summary `json:"summary"`
}

// RoomUpdateEvent goes to the global channel so room lists can refresh
type RoomUpdateEvent struct {
	Type   string      `json:"type"`
	Action string      `json:"action"`
	Room   string      `json:"room"`
	Status room.Status `json:"status"`
}

func toRoomInfo(r *room.Room) *RoomInfo {
	info := &RoomInfo{
		Code:         r.Code,
		Name:         r.Name,
		Mode:         r.Mode,
		HostName:     r.HostName,
		MaxPlayers:   r.MaxPlayers,
		Status:       r.Status,
		PlayerCount:  len(r.Contestants()),
		RoundsPlayed: finishedRounds(r),
		TotalRounds:  r.TotalRounds,
		Players:      r.Players,
		CurrentRound: r.ActiveRound(),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if info.Players == nil {
		info.Players = []*room.Player{}
	}
	return info
}

func finishedRounds(r *room.Room) int {
	n := 0
	for _, round := range r.Rounds {
		if round.Status == room.RoundFinished {
			n++
		}
	}
	return n
}
