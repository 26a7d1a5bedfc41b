package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/festival-lobby/game/room"
)

var (
	ErrGameNotFound  = errors.New("mini-game not found")
	ErrInvalidGame   = errors.New("invalid mini-game")
	ErrEmptySequence = errors.New("no enabled mini-games")
)

// DefaultRoundSeconds is a round's length when a game does not set one.
const DefaultRoundSeconds = 60

// Game is one booth of the festival.
type Game struct {
	Key             string `json:"key"`
	Name            string `json:"name"`
	Order           int    `json:"order"`
	Icon            string `json:"icon,omitempty"`
	Description     string `json:"description,omitempty"`
	Scene           string `json:"scene,omitempty"`
	DurationSeconds int    `json:"duration,omitempty"`
	Enabled         bool   `json:"enabled"`
}

// DefaultGames is the festival played when no catalog directory is given.
func DefaultGames() []Game {
	return []Game{
		{Key: "fishing", Name: "Fish Scooping", Order: 1, Icon: "🐟", Description: "Scoop as many fish as you can before time runs out", Scene: "FishingScene", DurationSeconds: 60, Enabled: true},
		{Key: "horse", Name: "Carousel Horse", Order: 2, Icon: "🐎", Description: "Stop the spinning horse at the right spot", Scene: "HorseScene", DurationSeconds: 60, Enabled: true},
		{Key: "shooting", Name: "Doll Shooting", Order: 3, Icon: "🎯", Description: "Hit the targets to collect points", Scene: "DollShootScene", DurationSeconds: 60, Enabled: true},
		{Key: "cotton", Name: "Cotton Candy", Order: 4, Icon: "🍭", Description: "Spin the prettiest cotton candy, fast", Scene: "CottonCandyScene", DurationSeconds: 60, Enabled: true},
		{Key: "pray", Name: "Temple Blessing", Order: 5, Icon: "🙏", Description: "Shake the fortune sticks for bonus points", Scene: "PrayScene", DurationSeconds: 60, Enabled: true},
	}
}

// Manager serves the mini-game catalog. Games from JSON files in the
// catalog directory override defaults with the same key and add new ones.
type Manager struct {
	dir   string
	games map[string]Game
	mu    sync.RWMutex
}

// NewManager loads the catalog. An empty dir means defaults only; a dir
// that does not exist is an error.
func NewManager(dir string) (*Manager, error) {
	m := &Manager{dir: dir}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload rebuilds the catalog from defaults and the catalog directory.
func (m *Manager) Reload() error {
	games := make(map[string]Game)
	for _, g := range DefaultGames() {
		games[g.Key] = g
	}

	if m.dir != "" {
		overrides, err := loadDir(m.dir)
		if err != nil {
			return err
		}
		for _, g := range overrides {
			games[g.Key] = g
		}
	}

	if err := Validate(values(games)); err != nil {
		return err
	}

	m.mu.Lock()
	m.games = games
	m.mu.Unlock()
	return nil
}

// List returns every game, enabled or not, in play order.
func (m *Manager) List() []Game {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sorted(values(m.games))
}

// Sequence returns the enabled games in play order.
func (m *Manager) Sequence() []Game {
	var seq []Game
	for _, g := range m.List() {
		if g.Enabled {
			seq = append(seq, g)
		}
	}
	return seq
}

// Stages converts the sequence into round stages.
func (m *Manager) Stages() []room.Stage {
	seq := m.Sequence()
	stages := make([]room.Stage, 0, len(seq))
	for _, g := range seq {
		d := g.DurationSeconds
		if d == 0 {
			d = DefaultRoundSeconds
		}
		stages = append(stages, room.Stage{GameKey: g.Key, DurationSeconds: d})
	}
	return stages
}

// Get returns a game by key.
func (m *Manager) Get(key string) (Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[key]
	if !ok {
		return Game{}, fmt.Errorf("%w: %s", ErrGameNotFound, key)
	}
	return g, nil
}

// First returns the opening game.
func (m *Manager) First() (Game, error) {
	seq := m.Sequence()
	if len(seq) == 0 {
		return Game{}, ErrEmptySequence
	}
	return seq[0], nil
}

// Next returns the game played after key. ok is false after the last one.
func (m *Manager) Next(key string) (next Game, ok bool, err error) {
	seq := m.Sequence()
	for i, g := range seq {
		if g.Key != key {
			continue
		}
		if i+1 < len(seq) {
			return seq[i+1], true, nil
		}
		return Game{}, false, nil
	}
	return Game{}, false, fmt.Errorf("%w: %s", ErrGameNotFound, key)
}

// Save writes a game to the catalog directory and reloads.
func (m *Manager) Save(g Game) error {
	if m.dir == "" {
		return fmt.Errorf("%w: no catalog directory configured", ErrInvalidGame)
	}
	if err := ValidateGame(g); err != nil {
		return err
	}

	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal game: %w", err)
	}
	path := filepath.Join(m.dir, g.Key+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write game file: %w", err)
	}
	return m.Reload()
}

// Validate checks a whole catalog.
func Validate(games []Game) error {
	seen := make(map[string]bool, len(games))
	enabled := 0
	for _, g := range games {
		if err := ValidateGame(g); err != nil {
			return err
		}
		if seen[g.Key] {
			return fmt.Errorf("%w: duplicate key %q", ErrInvalidGame, g.Key)
		}
		seen[g.Key] = true
		if g.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return ErrEmptySequence
	}
	return nil
}

// ValidateGame checks a single game's fields.
func ValidateGame(g Game) error {
	switch {
	case strings.TrimSpace(g.Key) == "":
		return fmt.Errorf("%w: key is required", ErrInvalidGame)
	case strings.ContainsAny(g.Key, `/\ `):
		return fmt.Errorf("%w: key %q contains separators", ErrInvalidGame, g.Key)
	case g.Order <= 0:
		return fmt.Errorf("%w: %s: order must be positive", ErrInvalidGame, g.Key)
	case g.DurationSeconds < 0:
		return fmt.Errorf("%w: %s: duration must not be negative", ErrInvalidGame, g.Key)
	}
	return nil
}

// loadDir reads every *.json file in dir.
func loadDir(dir string) ([]Game, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("catalog directory does not exist: %s", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog directory: %w", err)
	}

	var games []Game
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		loaded, err := LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		games = append(games, loaded...)
	}
	return games, nil
}

// LoadFile parses one catalog file holding a game or an array of games. A
// single game without a key takes the file name.
func LoadFile(path string) ([]Game, error) {
	name := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var many []Game
		if err := json.Unmarshal(data, &many); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidGame, name, err)
		}
		return many, nil
	}

	var g Game
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidGame, name, err)
	}
	if g.Key == "" {
		g.Key = strings.TrimSuffix(name, ".json")
	}
	return []Game{g}, nil
}

func values(games map[string]Game) []Game {
	out := make([]Game, 0, len(games))
	for _, g := range games {
		out = append(out, g)
	}
	return out
}

func sorted(games []Game) []Game {
	sort.Slice(games, func(i, j int) bool {
		if games[i].Order != games[j].Order {
			return games[i].Order < games[j].Order
		}
		return games[i].Key < games[j].Key
	})
	return games
}
