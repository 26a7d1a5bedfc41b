package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wricardo/festival-lobby/game/room"
)

const roomsSchema = `
CREATE TABLE IF NOT EXISTS rooms (
	code       TEXT PRIMARY KEY,
	snapshot   JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresPersistence implements Persistence on a rooms table
type PostgresPersistence struct {
	pool *pgxpool.Pool
}

// NewPostgresPersistence connects to dsn and creates the rooms table if it
// is missing.
func NewPostgresPersistence(ctx context.Context, dsn string) (*PostgresPersistence, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	p, err := NewPostgresPersistenceFromPool(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgresPersistenceFromPool uses an existing pool. The caller keeps
// ownership of the pool.
func NewPostgresPersistenceFromPool(ctx context.Context, pool *pgxpool.Pool) (*PostgresPersistence, error) {
	if _, err := pool.Exec(ctx, roomsSchema); err != nil {
		return nil, fmt.Errorf("failed to create rooms table: %w", err)
	}
	return &PostgresPersistence{pool: pool}, nil
}

func (p *PostgresPersistence) Save(ctx context.Context, r *room.Room) error {
	data, err := encodeSnapshot(r)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO rooms (code, snapshot, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (code) DO UPDATE
		SET snapshot = EXCLUDED.snapshot, updated_at = EXCLUDED.updated_at`,
		normalizeCode(r.Code), data)
	if err != nil {
		return fmt.Errorf("failed to save room %s: %w", r.Code, err)
	}
	return nil
}

func (p *PostgresPersistence) Load(ctx context.Context, code string) (*room.Room, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT snapshot FROM rooms WHERE code = $1`, normalizeCode(code)).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load room %s: %w", code, err)
	}
	return decodeSnapshot(data)
}

func (p *PostgresPersistence) Delete(ctx context.Context, code string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM rooms WHERE code = $1`, normalizeCode(code))
	if err != nil {
		return fmt.Errorf("failed to delete room %s: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (p *PostgresPersistence) ListAll(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT code FROM rooms ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return codes, nil
}

func (p *PostgresPersistence) Exists(ctx context.Context, code string) bool {
	var exists bool
	err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE code = $1)`, normalizeCode(code)).Scan(&exists)
	return err == nil && exists
}

// Close releases the pool
func (p *PostgresPersistence) Close() {
	p.pool.Close()
}
