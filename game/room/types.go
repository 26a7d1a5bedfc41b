package room

import (
	"encoding/json"
	"time"
)

// Mode decides whether players compete alone or in red/blue teams.
type Mode string

const (
	ModeSolo Mode = "solo"
	ModeTeam Mode = "team"
)

// Status is the room lifecycle.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// RoundStatus is the lifecycle of a single mini-game round.
type RoundStatus string

const (
	RoundPlaying  RoundStatus = "playing"
	RoundFinished RoundStatus = "finished"
)

const (
	TeamRed  = "red"
	TeamBlue = "blue"

	// Validation constants
	DefaultMaxPlayers = 8
	MaxPlayersLimit   = 32
	MaxNameLength     = 32
)

// Player is a room member. The host drives the room; the room's creator
// is a spectator and never scores.
type Player struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Team       string    `json:"team,omitempty"`
	Score      int       `json:"total_score"`
	IsHost     bool      `json:"is_host"`
	Spectator  bool      `json:"spectator,omitempty"`
	Connected  bool      `json:"connected"`
	JoinedAt   time.Time `json:"joined_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// Result is one player's score for one round.
type Result struct {
	PlayerID    string          `json:"player_id"`
	Score       int             `json:"score"`
	Meta        json.RawMessage `json:"meta,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// Round is one mini-game played by the whole room.
type Round struct {
	ID              string      `json:"id"`
	Index           int         `json:"index"`
	GameKey         string      `json:"game_key"`
	DurationSeconds int         `json:"duration"`
	Status          RoundStatus `json:"status"`
	Results         []Result    `json:"results"`
	StartedAt       time.Time   `json:"started_at"`
	EndedAt         *time.Time  `json:"ended_at,omitempty"`
}

// Stage is one slot of the festival sequence handed to StartRound.
type Stage struct {
	GameKey         string
	DurationSeconds int
}

// Room is the persisted state of one lobby.
type Room struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Mode        Mode      `json:"mode"`
	HostName    string    `json:"host_name"`
	MaxPlayers  int       `json:"max_players"`
	Status      Status    `json:"status"`
	TotalRounds int       `json:"total_rounds"`
	Players     []*Player `json:"players"`
	Rounds      []*Round  `json:"rounds"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TeamMember is one row of the roster pushed in team_update events.
type TeamMember struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Team   string `json:"team"`
	Score  int    `json:"score"`
	IsHost bool   `json:"is_host"`
}

// Standing is a player's final placement.
type Standing struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Team     string `json:"team,omitempty"`
	Score    int    `json:"score"`
}

// TeamTotal sums a team's scores.
type TeamTotal struct {
	Team    string `json:"team"`
	Score   int    `json:"score"`
	Players int    `json:"players"`
}

// Summary is the end-of-festival scoreboard.
type Summary struct {
	RoomCode     string      `json:"room_code"`
	Mode         Mode        `json:"mode"`
	Status       Status      `json:"status"`
	RoundsPlayed int         `json:"rounds_played"`
	TotalRounds  int         `json:"total_rounds"`
	Standings    []Standing  `json:"standings"`
	Teams        []TeamTotal `json:"teams,omitempty"`
	// Winner is a player name in solo mode or a team in team mode; empty
	// while nobody has scored or on a tie.
	Winner string `json:"winner,omitempty"`
}
