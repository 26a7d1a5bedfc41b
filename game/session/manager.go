package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/festival-lobby/game/room"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomAlreadyExists = errors.New("room already exists")
	ErrCodeSpaceFull     = errors.New("could not allocate a free room code")
)

const (
	// codeAlphabet leaves out characters that are easy to misread aloud.
	codeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength      = 4
	maxCodeAttempts = 32
)

// lobby guards one room. Mutations of different rooms run in parallel.
type lobby struct {
	mu   sync.Mutex
	room *room.Room
}

// Manager owns every live room
type Manager struct {
	rooms       map[string]*lobby
	rounds      map[string]string // round id -> room code
	persistence Persistence
	clock       clockwork.Clock
	mu          sync.RWMutex
}

// Option configures a Manager
type Option func(*Manager)

// WithPersistence saves every change through p
func WithPersistence(p Persistence) Option {
	return func(m *Manager) { m.persistence = p }
}

// WithClock replaces the wall clock
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// NewManager creates an in-memory room manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		rooms:  make(map[string]*lobby),
		rounds: make(map[string]string),
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewManagerWithPersistence creates a manager backed by p
func NewManagerWithPersistence(p Persistence, opts ...Option) *Manager {
	return NewManager(append([]Option{WithPersistence(p)}, opts...)...)
}

// Create opens a room under a fresh code. The returned room is a snapshot.
func (m *Manager) Create(ctx context.Context, opts room.Options) (*room.Room, error) {
	m.mu.Lock()
	code, err := m.freeCodeLocked(ctx)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	r, err := room.New(code, opts, m.clock.Now())
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.rooms[code] = &lobby{room: r}
	snapshot := r.Clone()
	m.mu.Unlock()

	m.persist(ctx, snapshot)
	return snapshot, nil
}

// Insert adds an existing room under its own code
func (m *Manager) Insert(ctx context.Context, r *room.Room) error {
	code := normalizeCode(r.Code)
	m.mu.Lock()
	if _, exists := m.rooms[code]; exists {
		m.mu.Unlock()
		return ErrRoomAlreadyExists
	}
	r.Code = code
	m.rooms[code] = &lobby{room: r}
	m.indexRoundsLocked(r)
	snapshot := r.Clone()
	m.mu.Unlock()

	m.persist(ctx, snapshot)
	return nil
}

// Get returns a snapshot of the room (case-insensitive). Rooms only present
// in persistence are loaded into memory.
func (m *Manager) Get(ctx context.Context, code string) (*room.Room, error) {
	l, err := m.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.room.Clone(), nil
}

// Update runs fn with exclusive access to the room, then persists the
// result. fn must not keep the pointer it is given.
func (m *Manager) Update(ctx context.Context, code string, fn func(*room.Room) error) (*room.Room, error) {
	l, err := m.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	if err := fn(l.room); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	l.room.UpdatedAt = m.clock.Now()
	snapshot := l.room.Clone()
	l.mu.Unlock()

	m.mu.Lock()
	m.indexRoundsLocked(snapshot)
	m.mu.Unlock()

	m.persist(ctx, snapshot)
	return snapshot, nil
}

// RoomForRound returns the code of the room that owns roundID
func (m *Manager) RoomForRound(roundID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	code, ok := m.rounds[roundID]
	if !ok {
		return "", room.ErrRoundNotFound
	}
	return code, nil
}

// List returns snapshots of every room in memory, oldest first
func (m *Manager) List() []*room.Room {
	m.mu.RLock()
	lobbies := make([]*lobby, 0, len(m.rooms))
	for _, l := range m.rooms {
		lobbies = append(lobbies, l)
	}
	m.mu.RUnlock()

	result := make([]*room.Room, 0, len(lobbies))
	for _, l := range lobbies {
		l.mu.Lock()
		result = append(result, l.room.Clone())
		l.mu.Unlock()
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].Code < result[j].Code
	})
	return result
}

// Delete removes a room from memory and persistence
func (m *Manager) Delete(ctx context.Context, code string) error {
	code = normalizeCode(code)

	m.mu.Lock()
	_, inMemory := m.rooms[code]
	m.forgetLocked(code)
	m.mu.Unlock()

	if m.persistence != nil && m.persistence.Exists(ctx, code) {
		if err := m.persistence.Delete(ctx, code); err != nil {
			return fmt.Errorf("failed to delete persisted room: %w", err)
		}
		return nil
	}
	if !inMemory {
		return ErrRoomNotFound
	}
	return nil
}

// Save writes one room to persistence
func (m *Manager) Save(ctx context.Context, code string) error {
	if m.persistence == nil {
		return nil
	}
	m.mu.RLock()
	l, ok := m.rooms[normalizeCode(code)]
	m.mu.RUnlock()
	if !ok {
		return ErrRoomNotFound
	}

	l.mu.Lock()
	snapshot := l.room.Clone()
	l.mu.Unlock()
	return m.persistence.Save(ctx, snapshot)
}

// Count returns the number of rooms in memory
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// CleanupFinished drops rooms untouched for longer than maxAge from memory
// when they are finished or nobody is connected. Persisted snapshots are
// kept for history.
func (m *Manager) CleanupFinished(maxAge time.Duration) int {
	cutoff := m.clock.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for code, l := range m.rooms {
		l.mu.Lock()
		stale := l.room.UpdatedAt.Before(cutoff)
		done := l.room.Status == room.StatusFinished || !anyConnected(l.room)
		l.mu.Unlock()

		if stale && done {
			m.forgetLocked(code)
			removed++
		}
	}
	return removed
}

// LoadPersisted reads every stored room that is not already in memory
func (m *Manager) LoadPersisted(ctx context.Context) error {
	if m.persistence == nil {
		return nil
	}

	codes, err := m.persistence.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list persisted rooms: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loaded := 0
	for _, code := range codes {
		code = normalizeCode(code)
		if _, exists := m.rooms[code]; exists {
			continue
		}
		r, err := m.persistence.Load(ctx, code)
		if err != nil {
			log.Warn().Err(err).Str("room_code", code).Msg("Failed to load persisted room")
			continue
		}
		if r.Status == room.StatusFinished {
			continue
		}
		resetPresence(r)
		m.rooms[code] = &lobby{room: r}
		m.indexRoundsLocked(r)
		loaded++
	}

	if loaded > 0 {
		log.Info().Int("rooms", loaded).Msg("Loaded persisted rooms from storage")
	}
	return nil
}

// SaveAll writes every room in memory
func (m *Manager) SaveAll(ctx context.Context) error {
	if m.persistence == nil {
		return nil
	}

	failed := 0
	for _, r := range m.List() {
		if err := m.persistence.Save(ctx, r); err != nil {
			log.Warn().Err(err).Str("room_code", r.Code).Msg("Failed to save room")
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to save %d rooms", failed)
	}
	return nil
}

func (m *Manager) lookup(ctx context.Context, code string) (*lobby, error) {
	code = normalizeCode(code)

	m.mu.RLock()
	l, ok := m.rooms[code]
	m.mu.RUnlock()
	if ok {
		return l, nil
	}

	if m.persistence == nil || !m.persistence.Exists(ctx, code) {
		return nil, ErrRoomNotFound
	}
	r, err := m.persistence.Load(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted room: %w", err)
	}

	resetPresence(r)

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another caller may have loaded it meanwhile.
	if l, ok := m.rooms[code]; ok {
		return l, nil
	}
	l = &lobby{room: r}
	m.rooms[code] = l
	m.indexRoundsLocked(r)
	return l, nil
}

func (m *Manager) persist(ctx context.Context, r *room.Room) {
	if m.persistence == nil {
		return
	}
	if err := m.persistence.Save(ctx, r); err != nil {
		log.Warn().Err(err).Str("room_code", r.Code).Msg("Failed to persist room")
	}
}

func (m *Manager) indexRoundsLocked(r *room.Room) {
	for _, round := range r.Rounds {
		m.rounds[round.ID] = r.Code
	}
}

func (m *Manager) forgetLocked(code string) {
	if _, ok := m.rooms[code]; !ok {
		return
	}
	delete(m.rooms, code)
	for id, owner := range m.rounds {
		if owner == code {
			delete(m.rounds, id)
		}
	}
}

// freeCodeLocked picks a code that is neither live nor persisted
func (m *Manager) freeCodeLocked(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := generateRoomCode()
		if err != nil {
			return "", err
		}
		if _, exists := m.rooms[code]; exists {
			continue
		}
		if m.persistence != nil && m.persistence.Exists(ctx, code) {
			continue
		}
		return code, nil
	}
	return "", ErrCodeSpaceFull
}

// generateRoomCode returns a random 4-character code
func generateRoomCode() (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate room code: %w", err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// resetPresence marks everyone offline. Sockets never survive a restart.
func resetPresence(r *room.Room) {
	for _, p := range r.Players {
		p.Connected = false
	}
}

func anyConnected(r *room.Room) bool {
	for _, p := range r.Players {
		if p.Connected {
			return true
		}
	}
	return false
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
