package service

import (
	"context"
	"encoding/json"

	"github.com/wricardo/festival-lobby/game/config"
	"github.com/wricardo/festival-lobby/game/room"
)

// LobbyService defines all lobby operations
type LobbyService interface {
	// Rooms
	CreateRoom(ctx context.Context, req CreateRoomRequest) (*JoinResult, error)
	JoinRoom(ctx context.Context, code, name string) (*JoinResult, error)
	ListRooms(ctx context.Context) ([]*RoomInfo, error)
	GetRoom(ctx context.Context, code string) (*RoomInfo, error)

	// Game flow
	StartGame(ctx context.Context, code string) (*RoomInfo, error)
	StartRound(ctx context.Context, code string) (*RoundInfo, error)
	SubmitScore(ctx context.Context, roundID, playerID string, score int, meta json.RawMessage) (*ScoreResult, error)
	EndRound(ctx context.Context, roundID string) (*EndRoundResult, error)
	Summary(ctx context.Context, code string) (*room.Summary, error)

	// Catalog
	ListGames(ctx context.Context) ([]config.Game, error)

	// Presence, driven by the push channel
	ParticipantConnected(ctx context.Context, code, playerID string) error
	ParticipantDisconnected(ctx context.Context, code, playerID string) error
}

// RoomStore defines room storage operations
type RoomStore interface {
	Create(ctx context.Context, opts room.Options) (*room.Room, error)
	Get(ctx context.Context, code string) (*room.Room, error)
	Update(ctx context.Context, code string, fn func(*room.Room) error) (*room.Room, error)
	RoomForRound(roundID string) (string, error)
	List() []*room.Room
}

// Catalog supplies the mini-games a room plays
type Catalog interface {
	List() []config.Game
	Stages() []room.Stage
}

// Publisher pushes events to room channels and to the global lobby channel
type Publisher interface {
	PublishRoom(code string, event any)
	PublishGlobal(event any)
}

type nopPublisher struct{}

func (nopPublisher) PublishRoom(string, any) {}
func (nopPublisher) PublishGlobal(any)       {}
