package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeTier is an in-memory Tier used in place of Redis/Postgres.
type fakeTier struct {
	mu      sync.Mutex
	data    map[string][]byte
	tags    map[string][]string
	expiry  map[string]time.Time
	failSet bool
	gets    int
}

func newFakeTier() *fakeTier {
	return &fakeTier{
		data:   make(map[string][]byte),
		tags:   make(map[string][]string),
		expiry: make(map[string]time.Time),
	}
}

func (f *fakeTier) Get(_ context.Context, key string) (Entry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if exp, ok := f.expiry[key]; ok && time.Now().After(exp) {
		delete(f.data, key)
		return Entry{}, false, nil
	}
	v, ok := f.data[key]
	if !ok {
		return Entry{}, false, nil
	}
	entry := Entry{Value: v, Tags: f.tags[key]}
	if exp, ok := f.expiry[key]; ok {
		t := exp
		entry.ExpiresAt = &t
	}
	return entry, true, nil
}

func (f *fakeTier) Set(_ context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return errors.New("tier down")
	}
	f.data[key] = value
	f.tags[key] = tags
	if ttl > 0 {
		f.expiry[key] = time.Now().Add(ttl)
	}
	return nil
}

func (f *fakeTier) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	delete(f.tags, key)
	return nil
}

func (f *fakeTier) InvalidateByTags(_ context.Context, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, keyTags := range f.tags {
		for _, want := range tags {
			for _, have := range keyTags {
				if want == have {
					delete(f.data, key)
					delete(f.tags, key)
				}
			}
		}
	}
	return nil
}

type payload struct {
	Value string `json:"value"`
}

func TestMultiTierRoundTrip(t *testing.T) {
	c := New(NewMemoryTier(10, time.Minute), nil, nil, nil)
	ctx := context.Background()

	if err := c.Set(ctx, "k", payload{Value: "hello"}, Options{TTL: time.Minute}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var out payload
	found, err := c.Get(ctx, "k", &out)
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if out.Value != "hello" {
		t.Fatalf("round trip mismatch: %+v", out)
	}

	stats := c.GetStats()
	if stats.Hits != 1 || stats.Sets != 1 || stats.Misses != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestMultiTierMissCountsAndStats(t *testing.T) {
	c := New(NewMemoryTier(10, time.Minute), nil, nil, nil)
	var out payload
	found, err := c.Get(context.Background(), "absent", &out)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Fatal("absent key reported found")
	}
	stats := c.GetStats()
	if stats.Misses != 1 || stats.HitRate != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestMultiTierBackfillFromLowerTier(t *testing.T) {
	mem := NewMemoryTier(10, time.Minute)
	middle := newFakeTier()
	durable := newFakeTier()
	c := New(mem, middle, durable, nil)
	ctx := context.Background()

	// Seed only the durable tier, as if the process restarted.
	if err := durable.Set(ctx, "k", []byte(`{"value":"deep"}`), time.Hour, nil); err != nil {
		t.Fatal(err)
	}

	var out payload
	found, err := c.Get(ctx, "k", &out)
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if out.Value != "deep" {
		t.Fatalf("unexpected value: %+v", out)
	}

	// Both faster tiers must now hold the entry.
	if _, ok := mem.Get("k"); !ok {
		t.Fatal("memory tier not back-filled")
	}
	if _, ok, _ := middle.Get(ctx, "k"); !ok {
		t.Fatal("middle tier not back-filled")
	}

	// Second read must be served from memory without touching lower tiers.
	before := middle.gets
	if found, _ := c.Get(ctx, "k", &out); !found {
		t.Fatal("second read missed")
	}
	if middle.gets != before {
		t.Fatal("second read should not reach the middle tier")
	}
}

func TestMultiTierLowerTierWriteFailureIsSwallowed(t *testing.T) {
	middle := newFakeTier()
	middle.failSet = true
	c := New(NewMemoryTier(10, time.Minute), middle, nil, nil)
	ctx := context.Background()

	if err := c.Set(ctx, "k", payload{Value: "v"}, Options{TTL: time.Minute}); err != nil {
		t.Fatalf("lower tier failure must not surface: %v", err)
	}
	var out payload
	if found, _ := c.Get(ctx, "k", &out); !found {
		t.Fatal("memory tier must still hold the entry")
	}
}

func TestMultiTierInvalidateByTagsAcrossTiers(t *testing.T) {
	mem := NewMemoryTier(10, time.Minute)
	middle := newFakeTier()
	durable := newFakeTier()
	c := New(mem, middle, durable, nil)
	ctx := context.Background()

	if err := c.Set(ctx, Keys.Research("go"), payload{Value: "r"}, Options{TTL: time.Hour, Tags: []string{TagResearch}}); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, Keys.Post("my-post"), payload{Value: "p"}, Options{TTL: time.Hour, Tags: []string{TagPost}}); err != nil {
		t.Fatal(err)
	}

	c.InvalidateByTags(ctx, []string{TagResearch})

	var out payload
	if found, _ := c.Get(ctx, Keys.Research("go"), &out); found {
		t.Fatal("research-tagged entry must be gone from all tiers")
	}
	if found, _ := c.Get(ctx, Keys.Post("my-post"), &out); !found {
		t.Fatal("post-tagged entry must survive research invalidation")
	}
}

func TestMultiTierBackfillKeepsTags(t *testing.T) {
	mem := NewMemoryTier(10, time.Minute)
	durable := newFakeTier()
	c := New(mem, nil, durable, nil)
	ctx := context.Background()

	// Only the durable tier has the entry, as after a restart.
	key := Keys.Research("go generics")
	if err := durable.Set(ctx, key, []byte(`{"value":"r"}`), time.Hour, []string{TagResearch}); err != nil {
		t.Fatal(err)
	}

	var out payload
	if found, err := c.Get(ctx, key, &out); err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}

	// The back-filled memory copy must still answer to its tags.
	c.InvalidateByTags(ctx, []string{TagResearch})
	if found, _ := c.Get(ctx, key, &out); found {
		t.Fatal("invalidated entry still served from the back-filled memory copy")
	}
}

type fakeRecorder struct {
	hits   []string
	misses []string
}

func (r *fakeRecorder) CacheHit(tier string)  { r.hits = append(r.hits, tier) }
func (r *fakeRecorder) CacheMiss(tier string) { r.misses = append(r.misses, tier) }

func TestMultiTierRecordsPerTierHitsAndMisses(t *testing.T) {
	mem := NewMemoryTier(10, time.Minute)
	middle := newFakeTier()
	rec := &fakeRecorder{}
	c := New(mem, middle, nil, nil)
	c.SetRecorder(rec)
	ctx := context.Background()

	if err := middle.Set(ctx, "k", []byte(`{"value":"v"}`), time.Hour, nil); err != nil {
		t.Fatal(err)
	}

	var out payload
	if found, _ := c.Get(ctx, "k", &out); !found {
		t.Fatal("middle tier entry not found")
	}
	if found, _ := c.Get(ctx, "k", &out); !found {
		t.Fatal("back-filled entry not found")
	}
	c.Get(ctx, "absent", &out)

	wantHits := []string{"redis", "memory"}
	wantMisses := []string{"memory", "memory", "redis"}
	if len(rec.hits) != len(wantHits) {
		t.Fatalf("hits = %v, want %v", rec.hits, wantHits)
	}
	for i, tier := range wantHits {
		if rec.hits[i] != tier {
			t.Fatalf("hits = %v, want %v", rec.hits, wantHits)
		}
	}
	if len(rec.misses) != len(wantMisses) {
		t.Fatalf("misses = %v, want %v", rec.misses, wantMisses)
	}
	for i, tier := range wantMisses {
		if rec.misses[i] != tier {
			t.Fatalf("misses = %v, want %v", rec.misses, wantMisses)
		}
	}
}
