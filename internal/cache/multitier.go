package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"
)

// Options carries per-entry write settings.
type Options struct {
	TTL  time.Duration
	Tags []string
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Sets    int64   `json:"sets"`
	Deletes int64   `json:"deletes"`
	HitRate float64 `json:"hit_rate"`
}

// Entry is a cached payload plus the metadata a faster tier needs to
// back-fill it without losing tags or expiry. A nil ExpiresAt means the
// entry does not expire.
type Entry struct {
	Value     []byte
	Tags      []string
	ExpiresAt *time.Time
}

// Tier is the contract shared by the Redis and database tiers.
type Tier interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error
	Delete(ctx context.Context, key string) error
	InvalidateByTags(ctx context.Context, tags []string) error
}

// Cleaner is satisfied by tiers that support an expiry sweep.
type Cleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// Recorder receives per-tier hit/miss events. *telemetry.Metrics satisfies
// it.
type Recorder interface {
	CacheHit(tier string)
	CacheMiss(tier string)
}

// MultiTierCache layers a memory LRU over optional Redis and database tiers.
// Reads check the fastest tier first and back-fill faster tiers on a lower
// hit, carrying the entry's tags and remaining TTL so tag invalidation still
// reaches the back-filled copy. Writes go to every configured tier; a
// lower-tier failure is logged and swallowed so the memory tier always has
// the entry.
type MultiTierCache struct {
	memory   *MemoryTier
	middle   Tier
	durable  Tier
	logger   *log.Logger
	recorder Recorder

	mu      sync.Mutex
	hits    int64
	misses  int64
	sets    int64
	deletes int64
}

// New builds a multi-tier cache. middle and durable may be nil.
func New(memory *MemoryTier, middle, durable Tier, logger *log.Logger) *MultiTierCache {
	if logger == nil {
		logger = log.New(log.Writer(), "[CACHE] ", log.LstdFlags)
	}
	return &MultiTierCache{memory: memory, middle: middle, durable: durable, logger: logger}
}

// SetRecorder attaches a per-tier hit/miss sink.
func (c *MultiTierCache) SetRecorder(r Recorder) { c.recorder = r }

// Get unmarshals the cached payload for key into out and reports whether it
// was found in any tier.
func (c *MultiTierCache) Get(ctx context.Context, key string, out any) (bool, error) {
	if raw, ok := c.memory.Get(key); ok {
		c.tierHit("memory")
		c.recordHit()
		return true, json.Unmarshal(raw, out)
	}
	c.tierMiss("memory")

	if c.middle != nil {
		entry, ok, err := c.middle.Get(ctx, key)
		if err != nil {
			c.logger.Printf("middle tier get %q: %v", key, err)
		} else if ok {
			c.tierHit("redis")
			c.memory.Set(key, entry.Value, backfillTTL(entry), entry.Tags)
			c.recordHit()
			return true, json.Unmarshal(entry.Value, out)
		} else {
			c.tierMiss("redis")
		}
	}

	if c.durable != nil {
		entry, ok, err := c.durable.Get(ctx, key)
		if err != nil {
			c.logger.Printf("durable tier get %q: %v", key, err)
		} else if ok {
			c.tierHit("database")
			c.memory.Set(key, entry.Value, backfillTTL(entry), entry.Tags)
			if c.middle != nil {
				ttl := backfillTTL(entry)
				if ttl <= 0 {
					ttl = 15 * time.Minute
				}
				if err := c.middle.Set(ctx, key, entry.Value, ttl, entry.Tags); err != nil {
					c.logger.Printf("middle tier backfill %q: %v", key, err)
				}
			}
			c.recordHit()
			return true, json.Unmarshal(entry.Value, out)
		} else {
			c.tierMiss("database")
		}
	}

	c.recordMiss()
	return false, nil
}

// Set writes the value through every configured tier.
func (c *MultiTierCache) Set(ctx context.Context, key string, value any, opts Options) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.memory.Set(key, raw, opts.TTL, opts.Tags)

	if c.middle != nil {
		if err := c.middle.Set(ctx, key, raw, opts.TTL, opts.Tags); err != nil {
			c.logger.Printf("middle tier set %q: %v", key, err)
		}
	}
	if c.durable != nil {
		if err := c.durable.Set(ctx, key, raw, opts.TTL, opts.Tags); err != nil {
			c.logger.Printf("durable tier set %q: %v", key, err)
		}
	}

	c.mu.Lock()
	c.sets++
	c.mu.Unlock()
	return nil
}

// Delete removes the key from every tier.
func (c *MultiTierCache) Delete(ctx context.Context, key string) {
	c.memory.Delete(key)
	if c.middle != nil {
		if err := c.middle.Delete(ctx, key); err != nil {
			c.logger.Printf("middle tier delete %q: %v", key, err)
		}
	}
	if c.durable != nil {
		if err := c.durable.Delete(ctx, key); err != nil {
			c.logger.Printf("durable tier delete %q: %v", key, err)
		}
	}
	c.mu.Lock()
	c.deletes++
	c.mu.Unlock()
}

// InvalidateByTags removes tagged entries from every tier. All tiers
// invalidate selectively by tag.
func (c *MultiTierCache) InvalidateByTags(ctx context.Context, tags []string) {
	c.memory.InvalidateByTags(tags)
	if c.middle != nil {
		if err := c.middle.InvalidateByTags(ctx, tags); err != nil {
			c.logger.Printf("middle tier invalidate %v: %v", tags, err)
		}
	}
	if c.durable != nil {
		if err := c.durable.InvalidateByTags(ctx, tags); err != nil {
			c.logger.Printf("durable tier invalidate %v: %v", tags, err)
		}
	}
	c.logger.Printf("invalidated tags %v", tags)
}

// Cleanup sweeps expired entries from tiers that support it. Redis expires
// keys natively and the memory tier drops expired entries on read.
func (c *MultiTierCache) Cleanup(ctx context.Context) (int64, error) {
	if c.durable != nil {
		if cl, ok := c.durable.(Cleaner); ok {
			return cl.Cleanup(ctx)
		}
	}
	return 0, nil
}

// GetStats returns a snapshot of counters since process start.
func (c *MultiTierCache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{Hits: c.hits, Misses: c.misses, Sets: c.sets, Deletes: c.deletes}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// backfillTTL converts an entry's absolute expiry back into a TTL for the
// receiving tier. Zero means no expiry.
func backfillTTL(e Entry) time.Duration {
	if e.ExpiresAt == nil {
		return 0
	}
	return time.Until(*e.ExpiresAt)
}

func (c *MultiTierCache) tierHit(tier string) {
	if c.recorder != nil {
		c.recorder.CacheHit(tier)
	}
}

func (c *MultiTierCache) tierMiss(tier string) {
	if c.recorder != nil {
		c.recorder.CacheMiss(tier)
	}
}

func (c *MultiTierCache) recordHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *MultiTierCache) recordMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

// Cache key builders. Keeping them in one place prevents key drift between
// writers and readers.
var Keys = struct {
	Research func(topic string) string
	Analysis func(sourcesHash string) string
	Post     func(slug string) string
	PostList func(page, limit int) string
}{
	Research: func(topic string) string { return "research:" + url.QueryEscape(topic) },
	Analysis: func(sourcesHash string) string { return "analysis:" + sourcesHash },
	Post:     func(slug string) string { return "post:" + slug },
	PostList: func(page, limit int) string {
		return fmt.Sprintf("posts:list:%d:%d", page, limit)
	},
}

// Tags used for bulk invalidation.
const (
	TagResearch = "research"
	TagAnalysis = "analysis"
	TagPosts    = "posts"
	TagPost     = "post"
)
