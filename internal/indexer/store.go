package indexer

import (
	"context"

	pkgredis "github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/redis"
)

// Writer is the set of mutating primitives shared by the store and by a
// batch. Each call is atomic on its own; nothing spans calls.
type Writer interface {
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	ZAdd(ctx context.Context, key, member string, score float64) error
	ZRem(ctx context.Context, key, member string) error
	HSet(ctx context.Context, key string, fields map[string]string) error
	Del(ctx context.Context, keys ...string) error
}

// Batch defers writes until Exec. It does not provide atomicity across the
// queued writes.
type Batch interface {
	Writer
	Exec(ctx context.Context) error
}

// Store is the storage backend of every index structure. Writes made through
// the Store itself are visible immediately.
type Store interface {
	Writer
	Exists(ctx context.Context, key string) (bool, error)
	// ZInterCount returns the cardinality of the intersection of the sorted
	// sets at keys, using dest as scratch space and removing it afterwards.
	ZInterCount(ctx context.Context, dest string, keys ...string) (int64, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// ScanKeys calls fn for every key matching the glob pattern, stopping at
	// the first error fn returns.
	ScanKeys(ctx context.Context, pattern string, fn func(key string) error) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
	NewBatch() Batch
}

type redisStore struct {
	*pkgredis.Client
}

// NewRedisStore adapts a Redis client to Store, using pipelines as batches.
func NewRedisStore(c *pkgredis.Client) Store {
	return redisStore{Client: c}
}

func (s redisStore) NewBatch() Batch {
	return s.Client.Pipeline()
}
