package cache

import (
	"context"
	"testing"
	"time"
)

type fakeDurableStore struct {
	value     []byte
	tags      []string
	expiresAt *time.Time
	deleted   []string
	swept     bool
}

func (f *fakeDurableStore) GetCacheEntry(context.Context, string) ([]byte, []string, *time.Time, bool, error) {
	if f.value == nil {
		return nil, nil, nil, false, nil
	}
	return f.value, f.tags, f.expiresAt, true, nil
}

func (f *fakeDurableStore) UpsertCacheEntry(_ context.Context, key string, value []byte, tags []string, expiresAt *time.Time) error {
	f.value = value
	f.tags = tags
	f.expiresAt = expiresAt
	return nil
}

func (f *fakeDurableStore) DeleteCacheEntry(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	f.value = nil
	return nil
}

func (f *fakeDurableStore) DeleteCacheEntriesByTags(context.Context, []string) (int64, error) {
	return 0, nil
}

func (f *fakeDurableStore) DeleteExpiredCacheEntries(context.Context) (int64, error) {
	f.swept = true
	return 3, nil
}

func TestDatabaseTierExpiredEntryDeletedOnRead(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	fs := &fakeDurableStore{value: []byte("stale"), expiresAt: &past}
	tier := NewDatabaseTier(fs)

	_, found, err := tier.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Fatal("expired entry must read as absent")
	}
	if len(fs.deleted) != 1 || fs.deleted[0] != "k" {
		t.Fatalf("expired entry must be deleted on read, got %v", fs.deleted)
	}
}

func TestDatabaseTierLiveEntry(t *testing.T) {
	future := time.Now().Add(time.Hour)
	fs := &fakeDurableStore{value: []byte("fresh"), tags: []string{TagResearch}, expiresAt: &future}
	tier := NewDatabaseTier(fs)

	entry, found, err := tier.Get(context.Background(), "k")
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if string(entry.Value) != "fresh" {
		t.Fatalf("unexpected value %q", entry.Value)
	}
	if len(entry.Tags) != 1 || entry.Tags[0] != TagResearch {
		t.Fatalf("tags lost on read: %v", entry.Tags)
	}
	if entry.ExpiresAt == nil || !entry.ExpiresAt.Equal(future) {
		t.Fatalf("expiry lost on read: %v", entry.ExpiresAt)
	}
}

func TestDatabaseTierCleanup(t *testing.T) {
	fs := &fakeDurableStore{}
	tier := NewDatabaseTier(fs)
	n, err := tier.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if !fs.swept || n != 3 {
		t.Fatalf("sweep not delegated: swept=%v n=%d", fs.swept, n)
	}
}
