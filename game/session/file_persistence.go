package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/festival-lobby/game/room"
)

// FilePersistence implements Persistence with one JSON file per room
type FilePersistence struct {
	roomsDir string
}

// NewFilePersistence creates the rooms directory if needed
func NewFilePersistence(roomsDir string) (*FilePersistence, error) {
	if err := os.MkdirAll(roomsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create rooms directory: %w", err)
	}
	return &FilePersistence{roomsDir: roomsDir}, nil
}

// Save writes <CODE>.json
func (fp *FilePersistence) Save(_ context.Context, r *room.Room) error {
	data, err := encodeSnapshot(r)
	if err != nil {
		return err
	}

	// Write then rename so readers never see half a file.
	path := fp.getFilePath(r.Code)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write room file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write room file: %w", err)
	}
	return nil
}

func (fp *FilePersistence) Load(_ context.Context, code string) (*room.Room, error) {
	data, err := os.ReadFile(fp.getFilePath(code))
	if os.IsNotExist(err) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read room file: %w", err)
	}
	return decodeSnapshot(data)
}

func (fp *FilePersistence) Delete(ctx context.Context, code string) error {
	if !fp.Exists(ctx, code) {
		return ErrRoomNotFound
	}
	if err := os.Remove(fp.getFilePath(code)); err != nil {
		return fmt.Errorf("failed to remove room file: %w", err)
	}
	return nil
}

func (fp *FilePersistence) ListAll(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(fp.roomsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read rooms directory: %w", err)
	}

	var codes []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name := entry.Name(); strings.HasSuffix(name, ".json") {
			codes = append(codes, strings.TrimSuffix(name, ".json"))
		}
	}
	sort.Strings(codes)
	return codes, nil
}

func (fp *FilePersistence) Exists(_ context.Context, code string) bool {
	_, err := os.Stat(fp.getFilePath(code))
	return err == nil
}

func (fp *FilePersistence) getFilePath(code string) string {
	return filepath.Join(fp.roomsDir, normalizeCode(code)+".json")
}
