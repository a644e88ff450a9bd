// Package redis provides a thin wrapper around go-redis/v9 exposing the set,
// sorted-set and hash primitives the geo index is built on, plus a pipelined
// batch mode for deferring writes to a single flush.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/config"
	"github.com/redis/go-redis/v9"
)

const scanCount = 100

// Client wraps a go-redis client.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a Redis client and verifies the connection with a PING.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// SAdd adds members to the set at key.
func (c *Client) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return c.rdb.SAdd(ctx, key, toArgs(members)...).Err()
}

// SRem removes members from the set at key.
func (c *Client) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return c.rdb.SRem(ctx, key, toArgs(members)...).Err()
}

// ZAdd upserts member with score into the sorted set at key.
func (c *Client) ZAdd(ctx context.Context, key, member string, score float64) error {
	return c.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

// ZRem removes member from the sorted set at key.
func (c *Client) ZRem(ctx context.Context, key, member string) error {
	return c.rdb.ZRem(ctx, key, member).Err()
}

// ZInterCount stores the intersection of the sorted sets at keys into dest,
// deletes dest and returns the intersection cardinality.
func (c *Client) ZInterCount(ctx context.Context, dest string, keys ...string) (int64, error) {
	n, err := c.rdb.ZInterStore(ctx, dest, &redis.ZStore{Keys: keys}).Result()
	if err != nil {
		return 0, err
	}
	if err := c.rdb.Del(ctx, dest).Err(); err != nil {
		return n, err
	}
	return n, nil
}

// Exists reports whether key holds a value.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// HSet writes fields into the hash at key.
func (c *Client) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return c.rdb.HSet(ctx, key, hashArgs(fields)...).Err()
}

// HGetAll returns every field of the hash at key. A missing key yields an
// empty map.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.rdb.HGetAll(ctx, key).Result()
}

// Del deletes one or more keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// ScanKeys walks the keyspace with SCAN and calls fn for every key matching
// the glob pattern. Keys written during the walk may or may not be seen.
func (c *Client) ScanKeys(ctx context.Context, pattern string, fn func(key string) error) error {
	iter := c.rdb.Scan(ctx, 0, pattern, scanCount).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning pattern %s: %w", pattern, err)
	}
	return nil
}

// FlushByPattern deletes every key matching the glob pattern, returning the
// number of keys removed.
func (c *Client) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	err := c.ScanKeys(ctx, pattern, func(key string) error {
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("deleting key %s: %w", key, err)
		}
		deleted++
		return nil
	})
	return deleted, err
}

// Pipeline starts a batch whose writes are sent on Exec.
func (c *Client) Pipeline() *Pipeline {
	return &Pipeline{pipe: c.rdb.Pipeline()}
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping sends a PING to Redis and returns any error.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func toArgs(members []string) []interface{} {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return args
}

func hashArgs(fields map[string]string) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}
