package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mallocator/domain-mon/pkg/logger"
)

// redisClient is the subset of the go-redis client the backend needs
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// Redis keeps the store as a JSON document and the cursor as a plain string
// under two keys sharing a prefix.
type Redis struct {
	client redisClient
	prefix string
	log    *logger.Logger
}

// NewRedis creates a Redis backed state store
func NewRedis(client redisClient, prefix string, log *logger.Logger) *Redis {
	return &Redis{client: client, prefix: prefix, log: log}
}

func (r *Redis) storeKey() string  { return r.prefix + "expiries" }
func (r *Redis) cursorKey() string { return r.prefix + "head" }

// LoadStore reads the expiry store, returning an empty store when the key is absent
func (r *Redis) LoadStore(ctx context.Context) (*Store, error) {
	data, err := r.client.Get(ctx, r.storeKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		r.log.Debugf("No expiry store under %s yet", r.storeKey())
		return NewStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", r.storeKey(), err)
	}

	store := NewStore()
	if err := json.Unmarshal(data, store); err != nil {
		return nil, fmt.Errorf("key '%s' holds an invalid expiry store: %w", r.storeKey(), err)
	}
	return store, nil
}

// SaveStore writes the expiry store
func (r *Redis) SaveStore(ctx context.Context, store *Store) error {
	data, err := json.Marshal(store)
	if err != nil {
		return fmt.Errorf("encoding expiry store: %w", err)
	}
	if err := r.client.Set(ctx, r.storeKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("writing %s: %w", r.storeKey(), err)
	}
	return nil
}

// LoadCursor reads the cursor domain name
func (r *Redis) LoadCursor(ctx context.Context) (string, error) {
	v, err := r.client.Get(ctx, r.cursorKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", r.cursorKey(), err)
	}
	return v, nil
}

// SaveCursor writes the cursor domain name
func (r *Redis) SaveCursor(ctx context.Context, domain string) error {
	if err := r.client.Set(ctx, r.cursorKey(), domain, 0).Err(); err != nil {
		return fmt.Errorf("writing %s: %w", r.cursorKey(), err)
	}
	return nil
}

// Close releases the connection pool
func (r *Redis) Close() error {
	return r.client.Close()
}
