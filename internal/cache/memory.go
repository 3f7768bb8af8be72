package cache

import (
	"container/list"
	"sync"
	"time"
)

// memoryEntry is one cached payload plus its expiry and tags.
type memoryEntry struct {
	key       string
	value     []byte
	tags      []string
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryTier is a bounded in-process cache with least-recently-used eviction.
// Reads refresh recency. All operations are safe for concurrent use.
type MemoryTier struct {
	mu         sync.Mutex
	maxEntries int
	defaultTTL time.Duration
	entries    map[string]*list.Element
	lru        *list.List
	byTag      map[string]map[string]struct{}
	now        func() time.Time
}

// NewMemoryTier creates a memory tier. maxEntries and defaultTTL fall back
// to 1000 entries and 15 minutes.
func NewMemoryTier(maxEntries int, defaultTTL time.Duration) *MemoryTier {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if defaultTTL <= 0 {
		defaultTTL = 15 * time.Minute
	}
	return &MemoryTier{
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		byTag:      make(map[string]map[string]struct{}),
		now:        time.Now,
	}
}

// Get returns the cached payload and refreshes its recency. An expired entry
// is removed and reported as absent.
func (m *MemoryTier) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*memoryEntry)
	if entry.expired(m.now()) {
		m.removeLocked(elem)
		return nil, false
	}
	m.lru.MoveToFront(elem)
	return entry.value, true
}

// Set stores a payload, evicting the least recently used entry when full.
// A non-positive ttl uses the tier default.
func (m *MemoryTier) Set(key string, value []byte, ttl time.Duration, tags []string) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.entries[key]; ok {
		m.removeLocked(elem)
	}
	entry := &memoryEntry{
		key:       key,
		value:     value,
		tags:      tags,
		expiresAt: m.now().Add(ttl),
	}
	elem := m.lru.PushFront(entry)
	m.entries[key] = elem
	for _, tag := range tags {
		set, ok := m.byTag[tag]
		if !ok {
			set = make(map[string]struct{})
			m.byTag[tag] = set
		}
		set[key] = struct{}{}
	}

	for m.lru.Len() > m.maxEntries {
		m.removeLocked(m.lru.Back())
	}
}

// Delete removes one key.
func (m *MemoryTier) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if elem, ok := m.entries[key]; ok {
		m.removeLocked(elem)
	}
}

// InvalidateByTags removes every entry carrying any of the given tags.
func (m *MemoryTier) InvalidateByTags(tags []string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, tag := range tags {
		for key := range m.byTag[tag] {
			if elem, ok := m.entries[key]; ok {
				m.removeLocked(elem)
				removed++
			}
		}
	}
	return removed
}

// Len reports the current entry count.
func (m *MemoryTier) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

func (m *MemoryTier) removeLocked(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	m.lru.Remove(elem)
	delete(m.entries, entry.key)
	for _, tag := range entry.tags {
		if set, ok := m.byTag[tag]; ok {
			delete(set, entry.key)
			if len(set) == 0 {
				delete(m.byTag, tag)
			}
		}
	}
}
