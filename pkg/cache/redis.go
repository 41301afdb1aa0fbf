package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/stockwatch/stockwatch-backend/pkg/config"
	"github.com/stockwatch/stockwatch-backend/pkg/logger"
)

// Client wraps a Redis connection used for cached report projections and
// for short-lived distributed locks. Every method is safe on a nil *Client,
// which behaves as a cache that always misses and a lock that is always free.
type Client struct {
	rdb    *redis.Client
	locker *redislock.Client
	prefix string
	logger *logger.Logger
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg *config.RedisConfig, prefix string, log *logger.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info().Str("address", cfg.Address).Msg("connected to Redis")

	return &Client{
		rdb:    rdb,
		locker: redislock.New(rdb),
		prefix: prefix,
		logger: log,
	}, nil
}

func (c *Client) key(parts ...string) string {
	k := c.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// generation returns the current version of a namespace. Keys embed it, so
// bumping it orphans every cached entry of that namespace at once.
func (c *Client) generation(ctx context.Context, namespace string) (int64, error) {
	gen, err := c.rdb.Get(ctx, c.key(namespace, "gen")).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Slot is the key a value was looked up under. It pins the namespace
// generation seen by the read, so a value loaded before an Invalidate is
// written to the orphaned generation and never served.
type Slot struct {
	key string
}

// GetJSON loads a cached value into dest. It reports false on a miss. The
// returned Slot is where a freshly loaded value should be stored; it is
// empty when the generation could not be read.
func (c *Client) GetJSON(ctx context.Context, namespace, name string, dest interface{}) (Slot, bool, error) {
	if c == nil {
		return Slot{}, false, nil
	}
	gen, err := c.generation(ctx, namespace)
	if err != nil {
		return Slot{}, false, err
	}
	slot := Slot{key: c.key(namespace, fmt.Sprintf("g%d", gen), name)}

	val, err := c.rdb.Get(ctx, slot.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return slot, false, nil
	}
	if err != nil {
		return slot, false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return slot, false, err
	}
	return slot, true, nil
}

// SetJSON stores v in a slot returned by GetJSON. An empty slot is ignored.
func (c *Client) SetJSON(ctx context.Context, slot Slot, v interface{}, ttl time.Duration) error {
	if c == nil || slot.key == "" {
		return nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, slot.key, body, ttl).Err()
}

// Invalidate drops every entry of a namespace.
func (c *Client) Invalidate(ctx context.Context, namespace string) error {
	if c == nil {
		return nil
	}
	return c.rdb.Incr(ctx, c.key(namespace, "gen")).Err()
}

// TryLock obtains a lock without waiting. ok is false when another holder
// owns it. The returned release func is never nil.
func (c *Client) TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error) {
	noop := func() {}
	if c == nil {
		return noop, true, nil
	}

	lock, err := c.locker.Obtain(ctx, c.key("lock", name), ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return noop, false, nil
	}
	if err != nil {
		return noop, false, err
	}

	return func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			c.logger.Warn().Err(err).Str("lock", name).Msg("failed to release lock")
		}
	}, true, nil
}

// Health returns the health status of Redis
func (c *Client) Health(ctx context.Context) map[string]string {
	status := map[string]string{"status": "up"}
	if c == nil {
		status["status"] = "disabled"
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
	}
	return status
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
