package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/pressgen/pressgen/internal/cache"
)

// Scheduler sweeps expired cache entries on a cron schedule. The redis lock
// keeps concurrent instances from running the same sweep.
type Scheduler struct {
	Cache  *cache.MultiTierCache
	Rdb    *redis.Client
	Cron   string
	Logger *log.Logger
	Stop   chan struct{}

	lastRun *time.Time
}

func (s *Scheduler) Start() {
	if s.Logger == nil {
		s.Logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	ticker := time.NewTicker(1 * time.Minute)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) Shutdown() {
	close(s.Stop)
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	if !isDue(s.Cron, s.lastRun) {
		return
	}

	if s.Rdb != nil {
		lockKey := "sched:lock:cache-cleanup"
		ok, _ := s.Rdb.SetNX(ctx, lockKey, "1", 2*time.Minute).Result()
		if !ok {
			return
		}
		defer s.Rdb.Del(ctx, lockKey)
	}

	now := time.Now()
	s.lastRun = &now
	removed, err := s.Cache.Cleanup(ctx)
	if err != nil {
		s.Logger.Printf("cache cleanup failed: %v", err)
		return
	}
	if removed > 0 {
		s.Logger.Printf("cache cleanup removed %d expired entries", removed)
	}
}

// isDue determines if a sweep with cronSpec should run now based on the last
// run time. Supports "@daily", "@hourly", and standard 5-field cron
// expressions; invalid expressions fall back to hourly.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
