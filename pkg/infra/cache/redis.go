package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"

	"github.com/docpack/docpack/pkg/domain/interfaces"
	"github.com/docpack/docpack/pkg/domain/model"
)

// Redis is a RosterCache backed by a Redis server. Values are stored as an
// 8-byte big-endian unix-nano timestamp followed by the payload.
type Redis struct {
	client *redis.Client
}

var _ interfaces.RosterCache = (*Redis)(nil)

// NewRedis connects to redis with short timeouts
func NewRedis(addr, password string, db int) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	return &Redis{client: client}
}

// Ping verifies connectivity
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return goerr.Wrap(err, "failed to ping redis", goerr.V("addr", r.client.Options().Addr))
	}
	return nil
}

// Close closes the underlying client
func (r *Redis) Close() error {
	return r.client.Close()
}

// Get returns nil without error when key is missing
func (r *Redis) Get(ctx context.Context, key string) (*model.CacheItem, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get cache entry", goerr.V("key", key))
	}
	if len(raw) < 8 {
		return nil, goerr.New("corrupt cache entry", goerr.V("key", key), goerr.V("size", len(raw)))
	}

	storedAt := time.Unix(0, int64(binary.BigEndian.Uint64(raw[:8])))
	return &model.CacheItem{Data: raw[8:], StoredAt: storedAt}, nil
}

// Set stores item with ttl; ttl <= 0 stores without expiry
func (r *Redis) Set(ctx context.Context, key string, item *model.CacheItem, ttl time.Duration) error {
	buf := make([]byte, 8+len(item.Data))
	binary.BigEndian.PutUint64(buf[:8], uint64(item.StoredAt.UnixNano()))
	copy(buf[8:], item.Data)

	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, buf, ttl).Err(); err != nil {
		return goerr.Wrap(err, "failed to set cache entry", goerr.V("key", key))
	}
	return nil
}

// Delete removes key
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return goerr.Wrap(err, "failed to delete cache entry", goerr.V("key", key))
	}
	return nil
}
