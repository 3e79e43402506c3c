package cache

import (
	"sync"
	"time"
)

type lfuItem struct {
	entry    Entry
	hits     int
	storedAt time.Time
}

// lfuStore is the in-process fallback used while the key/value backend
// is unreachable. Bounded by a least-hit-count eviction policy.
type lfuStore struct {
	mu    sync.Mutex
	cap   int
	ttl   time.Duration
	items map[string]*lfuItem
}

func newLFUStore(capacity int, ttl time.Duration) *lfuStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &lfuStore{
		cap:   capacity,
		ttl:   ttl,
		items: map[string]*lfuItem{},
	}
}

func (s *lfuStore) Get(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key]
	if !ok {
		return Entry{}, false
	}
	if s.ttl > 0 && time.Since(item.storedAt) > s.ttl {
		delete(s.items, key)
		return Entry{}, false
	}
	item.hits++
	item.entry.HitCount++
	return item.entry, true
}

func (s *lfuStore) Set(key string, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.items[key]; ok {
		existing.entry = entry
		existing.storedAt = time.Now()
		return
	}
	if len(s.items) >= s.cap {
		s.evictLocked()
	}
	s.items[key] = &lfuItem{entry: entry, storedAt: time.Now()}
}

// evictLocked removes the least-hit item; ties broken by age.
func (s *lfuStore) evictLocked() {
	var victim string
	var victimItem *lfuItem
	for key, item := range s.items {
		if victimItem == nil ||
			item.hits < victimItem.hits ||
			(item.hits == victimItem.hits && item.storedAt.Before(victimItem.storedAt)) {
			victim = key
			victimItem = item
		}
	}
	if victimItem != nil {
		delete(s.items, victim)
	}
}

func (s *lfuStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
