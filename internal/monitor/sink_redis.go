package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/objectfs/tiercache/internal/config"
	"github.com/objectfs/tiercache/pkg/types"
)

// RedisSink stores the latest stats of each cache as a Redis hash at
// <prefix>:<cache>, plus the snapshot time at <prefix>:last_snapshot.
type RedisSink struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisSink creates a sink writing through client. A ttl of 0 keeps keys forever.
func NewRedisSink(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisSink {
	if prefix == "" {
		prefix = "tiercache:stats"
	}
	return &RedisSink{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// NewRedisClient builds a client from configuration and checks connectivity
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}
	return client, nil
}

// Name implements types.Sink
func (s *RedisSink) Name() string {
	return "redis"
}

// Key returns the hash key used for cache
func (s *RedisSink) Key(cache string) string {
	return s.prefix + ":" + cache
}

// Emit implements types.Sink
func (s *RedisSink) Emit(ctx context.Context, snapshot types.Snapshot) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for name, st := range snapshot.Caches {
			key := s.Key(name)
			pipe.HSet(ctx, key, map[string]interface{}{
				"hot_size":         st.Hot.Size,
				"hot_max":          st.Hot.MaxSize,
				"hot_avg_hits":     st.Hot.AvgHits,
				"warm_size":        st.Warm.Size,
				"warm_max":         st.Warm.MaxSize,
				"warm_avg_hits":    st.Warm.AvgHits,
				"entries":          st.Total.Entries,
				"estimated_memory": st.Total.EstimatedMemory,
				"hits":             st.Hits,
				"misses":           st.Misses,
				"evictions":        st.Evictions,
				"promotions":       st.Promotions,
				"demotions":        st.Demotions,
				"expirations":      st.Expirations,
				"hit_rate":         st.HitRate,
				"taken":            snapshot.Taken.Unix(),
			})
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
			}
		}
		pipe.Set(ctx, s.prefix+":last_snapshot", snapshot.Taken.Unix(), s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}
