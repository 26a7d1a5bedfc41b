package session

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/wricardo/festival-lobby/game/room"
)

// DefaultRedisPrefix namespaces every key written by RedisPersistence
const DefaultRedisPrefix = "festival:"

// RedisPersistence implements Persistence with one string key per room and
// a set holding every stored code.
type RedisPersistence struct {
	client *redis.Client
	prefix string
}

// NewRedisPersistence pings the server before returning
func NewRedisPersistence(ctx context.Context, client *redis.Client, prefix string) (*RedisPersistence, error) {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisPersistence{client: client, prefix: prefix}, nil
}

func (rp *RedisPersistence) roomKey(code string) string {
	return rp.prefix + "room:" + normalizeCode(code)
}

func (rp *RedisPersistence) indexKey() string {
	return rp.prefix + "rooms"
}

func (rp *RedisPersistence) Save(ctx context.Context, r *room.Room) error {
	data, err := encodeSnapshot(r)
	if err != nil {
		return err
	}
	_, err = rp.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, rp.roomKey(r.Code), data, 0)
		pipe.SAdd(ctx, rp.indexKey(), normalizeCode(r.Code))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save room %s: %w", r.Code, err)
	}
	return nil
}

func (rp *RedisPersistence) Load(ctx context.Context, code string) (*room.Room, error) {
	data, err := rp.client.Get(ctx, rp.roomKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load room %s: %w", code, err)
	}
	return decodeSnapshot(data)
}

func (rp *RedisPersistence) Delete(ctx context.Context, code string) error {
	var del *redis.IntCmd
	_, err := rp.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, rp.roomKey(code))
		pipe.SRem(ctx, rp.indexKey(), normalizeCode(code))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete room %s: %w", code, err)
	}
	if del.Val() == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (rp *RedisPersistence) ListAll(ctx context.Context) ([]string, error) {
	codes, err := rp.client.SMembers(ctx, rp.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	sort.Strings(codes)
	return codes, nil
}

func (rp *RedisPersistence) Exists(ctx context.Context, code string) bool {
	n, err := rp.client.Exists(ctx, rp.roomKey(code)).Result()
	return err == nil && n == 1
}
