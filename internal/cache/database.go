package cache

import (
	"context"
	"time"
)

// DurableStore is the slice of the persistence layer the durable tier needs.
// *store.Store satisfies it.
type DurableStore interface {
	GetCacheEntry(ctx context.Context, key string) (value []byte, tags []string, expiresAt *time.Time, found bool, err error)
	UpsertCacheEntry(ctx context.Context, key string, value []byte, tags []string, expiresAt *time.Time) error
	DeleteCacheEntry(ctx context.Context, key string) error
	DeleteCacheEntriesByTags(ctx context.Context, tags []string) (int64, error)
	DeleteExpiredCacheEntries(ctx context.Context) (int64, error)
}

// DatabaseTier persists cache entries in Postgres so they survive restarts.
type DatabaseTier struct {
	store DurableStore
	now   func() time.Time
}

func NewDatabaseTier(store DurableStore) *DatabaseTier {
	return &DatabaseTier{store: store, now: time.Now}
}

// Get treats an expired row as absent and deletes it on the way out.
func (d *DatabaseTier) Get(ctx context.Context, key string) (Entry, bool, error) {
	value, tags, expiresAt, found, err := d.store.GetCacheEntry(ctx, key)
	if err != nil || !found {
		return Entry{}, false, err
	}
	if expiresAt != nil && d.now().After(*expiresAt) {
		_ = d.store.DeleteCacheEntry(ctx, key)
		return Entry{}, false, nil
	}
	return Entry{Value: value, Tags: tags, ExpiresAt: expiresAt}, true, nil
}

func (d *DatabaseTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := d.now().Add(ttl)
		expiresAt = &t
	}
	return d.store.UpsertCacheEntry(ctx, key, value, tags, expiresAt)
}

func (d *DatabaseTier) Delete(ctx context.Context, key string) error {
	return d.store.DeleteCacheEntry(ctx, key)
}

func (d *DatabaseTier) InvalidateByTags(ctx context.Context, tags []string) error {
	_, err := d.store.DeleteCacheEntriesByTags(ctx, tags)
	return err
}

// Cleanup removes rows whose expiry has passed.
func (d *DatabaseTier) Cleanup(ctx context.Context) (int64, error) {
	return d.store.DeleteExpiredCacheEntries(ctx)
}
