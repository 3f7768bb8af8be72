package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pressgen/pressgen/config"
)

const (
	redisTagPrefix  = "cachetag:"
	redisMetaPrefix = "cachemeta:"
)

// RedisTier is the optional distributed middle tier. Tag membership is
// tracked in per-tag sets so invalidation stays selective, and each key
// carries a sidecar metadata key listing its own tags so a faster tier can
// back-fill the entry without losing them.
type RedisTier struct {
	client *redis.Client
}

// NewRedisTier connects to Redis and verifies the connection with a ping.
func NewRedisTier(ctx context.Context, cfg config.RedisConfig) (*RedisTier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed (%s:%s): %w", cfg.Host, cfg.Port, err)
	}
	return &RedisTier{client: client}, nil
}

func (r *RedisTier) Get(ctx context.Context, key string) (Entry, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}

	entry := Entry{Value: val}

	if ttl, err := r.client.TTL(ctx, key).Result(); err == nil && ttl > 0 {
		t := time.Now().Add(ttl)
		entry.ExpiresAt = &t
	}

	meta, err := r.client.Get(ctx, redisMetaPrefix+key).Bytes()
	if err == nil {
		var tags []string
		if err := json.Unmarshal(meta, &tags); err == nil {
			entry.Tags = tags
		}
	} else if !errors.Is(err, redis.Nil) {
		return Entry{}, false, err
	}

	return entry, true, nil
}

func (r *RedisTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return err
	}
	if len(tags) > 0 {
		meta, err := json.Marshal(tags)
		if err != nil {
			return err
		}
		if err := r.client.Set(ctx, redisMetaPrefix+key, meta, ttl).Err(); err != nil {
			return err
		}
	} else if err := r.client.Del(ctx, redisMetaPrefix+key).Err(); err != nil {
		return err
	}
	for _, tag := range tags {
		tagKey := redisTagPrefix + tag
		if err := r.client.SAdd(ctx, tagKey, key).Err(); err != nil {
			return err
		}
		// The tag set must not outlive the longest-lived member by much;
		// refresh its expiry alongside every write.
		if err := r.client.Expire(ctx, tagKey, ttl).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (r *RedisTier) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key, redisMetaPrefix+key).Err()
}

// InvalidateByTags deletes every member of each tag set, their sidecar
// metadata keys, then the sets.
func (r *RedisTier) InvalidateByTags(ctx context.Context, tags []string) error {
	for _, tag := range tags {
		tagKey := redisTagPrefix + tag
		keys, err := r.client.SMembers(ctx, tagKey).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			doomed := make([]string, 0, len(keys)*2)
			for _, k := range keys {
				doomed = append(doomed, k, redisMetaPrefix+k)
			}
			if err := r.client.Del(ctx, doomed...).Err(); err != nil {
				return err
			}
		}
		if err := r.client.Del(ctx, tagKey).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Client exposes the underlying connection for shared uses such as the
// cleanup scheduler lock.
func (r *RedisTier) Client() *redis.Client { return r.client }
