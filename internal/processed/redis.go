package processed

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// RedisSet keeps ids in a single Redis set.
type RedisSet struct {
	rdb *redis.Client
	key string
}

// OpenRedis connects and pings Redis.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*RedisSet, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address not configured")
	}
	if cfg.Key == "" {
		cfg.Key = DefaultRedisKey
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisSet{rdb: rdb, key: cfg.Key}, nil
}

// Contains implements Set.
func (s *RedisSet) Contains(ctx context.Context, id string) (bool, error) {
	ok, err := s.rdb.SIsMember(ctx, s.key, id).Result()
	if err != nil {
		return false, fmt.Errorf("checking processed id: %w", err)
	}
	return ok, nil
}

// MarkProcessed implements Set.
func (s *RedisSet) MarkProcessed(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "processed.redis.mark",
		trace.WithAttributes(attribute.String("comment.id", id)))
	defer span.End()

	if id == "" {
		return ErrEmptyID
	}
	if err := s.rdb.SAdd(ctx, s.key, id).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("adding processed id: %w", err)
	}
	return nil
}

// Count returns the number of stored ids.
func (s *RedisSet) Count(ctx context.Context) (int64, error) {
	return s.rdb.SCard(ctx, s.key).Result()
}

// Close closes the connection pool.
func (s *RedisSet) Close() error {
	return s.rdb.Close()
}
