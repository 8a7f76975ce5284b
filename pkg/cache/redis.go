package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key the Redis store writes.
const DefaultRedisPrefix = "gateway:"

// RedisStore keeps each partition in a Redis hash (field = entry key,
// value = JSON entry) and tracks partition names in a sorted set scored
// by creation sequence.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

type redisPartition struct {
	store *RedisStore
	name  string

	// seq is the index score of the partition when it was opened
	seq int64
}

// putScript writes a hash field only while the partition is still
// registered with the score the handle was opened with.
//
//	KEYS[1] index, KEYS[2] partition hash
//	ARGV[1] partition name, ARGV[2] score, ARGV[3] field, ARGV[4] entry
var putScript = redis.NewScript(`
local score = redis.call('ZSCORE', KEYS[1], ARGV[1])
if not score or tonumber(score) ~= tonumber(ARGV[2]) then
	return 0
end
redis.call('HSET', KEYS[2], ARGV[3], ARGV[4])
return 1
`)

// NewRedisStore creates a store backed by redisClient. An empty prefix
// selects DefaultRedisPrefix.
func NewRedisStore(redisClient *redis.Client, prefix string) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "partitions"
}

func (s *RedisStore) sequenceKey() string {
	return s.prefix + "partition-seq"
}

func (s *RedisStore) partitionKey(name string) string {
	return s.prefix + "partition:" + name
}

// Open returns the named partition, registering it when missing.
func (s *RedisStore) Open(ctx context.Context, name string) (Partition, error) {
	if err := validatePartitionName(name); err != nil {
		return nil, err
	}

	seq, err := s.partitionSeq(ctx, name)
	if err != nil {
		return nil, err
	}
	if seq == 0 {
		// Scores come from a counter so no two partitions share one
		next, err := s.redis.Incr(ctx, s.sequenceKey()).Result()
		if err != nil {
			CacheErrors.WithLabelValues(BackendRedis, "open").Inc()
			return nil, fmt.Errorf("redis incr: %w", err)
		}
		member := redis.Z{Score: float64(next), Member: name}
		if err := s.redis.ZAddNX(ctx, s.indexKey(), member).Err(); err != nil {
			CacheErrors.WithLabelValues(BackendRedis, "open").Inc()
			return nil, fmt.Errorf("redis zadd: %w", err)
		}
		// A concurrent Open may have registered the name first
		if seq, err = s.partitionSeq(ctx, name); err != nil {
			return nil, err
		}
	}

	return &redisPartition{store: s, name: name, seq: seq}, nil
}

// partitionSeq returns the index score of the named partition, or 0 when
// it is not registered.
func (s *RedisStore) partitionSeq(ctx context.Context, name string) (int64, error) {
	score, err := s.redis.ZScore(ctx, s.indexKey(), name).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		CacheErrors.WithLabelValues(BackendRedis, "names").Inc()
		return 0, fmt.Errorf("redis zscore: %w", err)
	}
	return int64(score), nil
}

// Has reports whether the named partition is registered.
func (s *RedisStore) Has(ctx context.Context, name string) (bool, error) {
	err := s.redis.ZScore(ctx, s.indexKey(), name).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		CacheErrors.WithLabelValues(BackendRedis, "names").Inc()
		return false, fmt.Errorf("redis zscore: %w", err)
	}
	return true, nil
}

// Names lists partitions in creation order.
func (s *RedisStore) Names(ctx context.Context) ([]string, error) {
	names, err := s.redis.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		CacheErrors.WithLabelValues(BackendRedis, "names").Inc()
		return nil, fmt.Errorf("redis zrange: %w", err)
	}
	return names, nil
}

// Delete removes the partition hash and its index entry in one transaction.
func (s *RedisStore) Delete(ctx context.Context, name string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.partitionKey(name))
		removed = pipe.ZRem(ctx, s.indexKey(), name)
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues(BackendRedis, "delete").Inc()
		return false, fmt.Errorf("redis delete partition: %w", err)
	}

	if removed.Val() == 0 {
		return false, nil
	}
	PartitionsDeleted.WithLabelValues(BackendRedis).Inc()
	return true, nil
}

// Match returns the first entry for key across all partitions.
func (s *RedisStore) Match(ctx context.Context, key Key) (*Entry, error) {
	names, err := s.Names(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		p := &redisPartition{store: s, name: name}
		entry, err := p.Match(ctx, key)
		if err == nil {
			return entry, nil
		}
		if err != ErrCacheMiss {
			return nil, err
		}
	}
	return nil, ErrCacheMiss
}

// Close is a no-op; the Redis client belongs to the caller.
func (s *RedisStore) Close() error {
	return nil
}

func (p *redisPartition) Name() string {
	return p.name
}

// Match retrieves an entry by key.
// Returns ErrCacheMiss if the key doesn't exist.
func (p *redisPartition) Match(ctx context.Context, key Key) (*Entry, error) {
	data, err := p.store.redis.HGet(ctx, p.store.partitionKey(p.name), key.String()).Bytes()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.WithLabelValues(BackendRedis).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues(BackendRedis, "match").Inc()
		return nil, fmt.Errorf("redis hget: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues(BackendRedis, "match").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	CacheHits.WithLabelValues(BackendRedis).Inc()
	return &entry, nil
}

// Put stores an entry. The index check and the HSET run as one script, so
// a write never lands in a partition that Delete has already removed.
func (p *redisPartition) Put(ctx context.Context, key Key, entry *Entry) error {
	if err := validatePut(key, entry); err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues(BackendRedis, "put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	keys := []string{p.store.indexKey(), p.store.partitionKey(p.name)}
	written, err := putScript.Run(ctx, p.store.redis, keys, p.name, p.seq, key.String(), data).Int()
	if err != nil {
		CacheErrors.WithLabelValues(BackendRedis, "put").Inc()
		return fmt.Errorf("redis put: %w", err)
	}
	if written == 0 {
		return ErrPartitionDeleted
	}

	CacheWrittenBytes.WithLabelValues(BackendRedis).Add(float64(len(data)))
	return nil
}

func (p *redisPartition) Delete(ctx context.Context, key Key) (bool, error) {
	n, err := p.store.redis.HDel(ctx, p.store.partitionKey(p.name), key.String()).Result()
	if err != nil {
		CacheErrors.WithLabelValues(BackendRedis, "delete").Inc()
		return false, fmt.Errorf("redis hdel: %w", err)
	}
	return n > 0, nil
}

func (p *redisPartition) Keys(ctx context.Context) ([]string, error) {
	keys, err := p.store.redis.HKeys(ctx, p.store.partitionKey(p.name)).Result()
	if err != nil {
		CacheErrors.WithLabelValues(BackendRedis, "keys").Inc()
		return nil, fmt.Errorf("redis hkeys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
