package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wricardo/festival-lobby/game/room"
)

// Persistence stores room snapshots outside the process
type Persistence interface {
	// Save writes the room, replacing any previous snapshot
	Save(ctx context.Context, r *room.Room) error

	// Load reads a room by code. Missing rooms return ErrRoomNotFound.
	Load(ctx context.Context, code string) (*room.Room, error)

	// Delete removes a room. Missing rooms return ErrRoomNotFound.
	Delete(ctx context.Context, code string) error

	// ListAll returns every stored room code
	ListAll(ctx context.Context) ([]string, error)

	// Exists reports whether a snapshot is stored for code
	Exists(ctx context.Context, code string) bool
}

const snapshotVersion = 1

// PersistedRoomData is the stored representation shared by every backend
type PersistedRoomData struct {
	Version int        `json:"version"`
	SavedAt time.Time  `json:"saved_at"`
	Room    *room.Room `json:"room"`
}

func encodeSnapshot(r *room.Room) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("room cannot be nil")
	}
	data, err := json.MarshalIndent(PersistedRoomData{
		Version: snapshotVersion,
		SavedAt: time.Now().UTC(),
		Room:    r,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal room data: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (*room.Room, error) {
	var snap PersistedRoomData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room data: %w", err)
	}
	if snap.Room == nil {
		return nil, fmt.Errorf("snapshot has no room")
	}
	if snap.Version > snapshotVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than supported %d", snap.Version, snapshotVersion)
	}
	return snap.Room, nil
}
