package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type (
	RedisService struct {
		rdb *redis.Client
	}

	// ScoreRange selects sorted set members by score. Empty Min and Max mean
	// unbounded; Count <= 0 means no limit.
	ScoreRange struct {
		Min     string
		Max     string
		Offset  int64
		Count   int64
		Reverse bool
	}
)

var Nil = redis.Nil

func NewRedis(rdb *redis.Client) *RedisService {
	return &RedisService{
		rdb: rdb,
	}
}

func (r *RedisService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

func (r *RedisService) Get(ctx context.Context, key string) (string, error) {
	return r.rdb.Get(ctx, key).Result()
}

// ZAddPublish adds member to the sorted set at key and publishes it on
// channel in one transaction.
func (r *RedisService) ZAddPublish(ctx context.Context, key string, score float64, member string, channel string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: member})
		pipe.Publish(ctx, channel, member)
		return nil
	})
	return err
}

func (r *RedisService) ZRange(ctx context.Context, key string, rng ScoreRange) ([]string, error) {
	by := &redis.ZRangeBy{
		Min:    rng.Min,
		Max:    rng.Max,
		Offset: rng.Offset,
		Count:  rng.Count,
	}
	if by.Min == "" {
		by.Min = "-inf"
	}
	if by.Max == "" {
		by.Max = "+inf"
	}
	if by.Count <= 0 {
		by.Count = 0
		if by.Offset > 0 {
			by.Count = -1
		}
	}
	if rng.Reverse {
		return r.rdb.ZRevRangeByScore(ctx, key, by).Result()
	}
	return r.rdb.ZRangeByScore(ctx, key, by).Result()
}

// Subscribe returns a subscription whose first Receive confirms it.
func (r *RedisService) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return r.rdb.Subscribe(ctx, channels...)
}
