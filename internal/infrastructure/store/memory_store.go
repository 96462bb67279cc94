package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is a process-local Store for development and tests. It honors
// the same atomicity and TTL semantics as the Redis implementation but has no
// cross-process visibility.
type MemoryStore struct {
	mu      sync.Mutex
	values  map[string]memoryValue
	sets    map[string]map[string]struct{}
	lists   map[string][]string
	expires map[string]time.Time

	// now is swappable in tests.
	now func() time.Time
}

type memoryValue struct {
	value string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:  make(map[string]memoryValue),
		sets:    make(map[string]map[string]struct{}),
		lists:   make(map[string][]string),
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// expired must be called with the lock held.
func (s *MemoryStore) expired(key string) bool {
	deadline, ok := s.expires[key]
	if !ok {
		return false
	}
	if s.now().Before(deadline) {
		return false
	}
	delete(s.values, key)
	delete(s.sets, key)
	delete(s.lists, key)
	delete(s.expires, key)
	return true
}

func (s *MemoryStore) setExpiry(key string, ttl time.Duration) {
	if ttl > 0 {
		s.expires[key] = s.now().Add(ttl)
	} else {
		delete(s.expires, key)
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expired(key) {
		return "", false, nil
	}
	v, ok := s.values[key]
	return v.value, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = memoryValue{value: value}
	s.setExpiry(key, ttl)
	return nil
}

func (s *MemoryStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expired(key)
	if _, exists := s.values[key]; exists {
		return false, nil
	}
	s.values[key] = memoryValue{value: value}
	s.setExpiry(key, ttl)
	return true, nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.values, key)
		delete(s.sets, key)
		delete(s.lists, key)
		delete(s.expires, key)
	}
	return nil
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expired(key) {
		return nil
	}
	s.setExpiry(key, ttl)
	return nil
}

func (s *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expired(key)
	n, _ := strconv.ParseInt(s.values[key].value, 10, 64)
	n++
	s.values[key] = memoryValue{value: strconv.FormatInt(n, 10)}
	return n, nil
}

func (s *MemoryStore) DecrFloor(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expired(key)
	n, _ := strconv.ParseInt(s.values[key].value, 10, 64)
	n--
	if n < 0 {
		n = 0
	}
	s.values[key] = memoryValue{value: strconv.FormatInt(n, 10)}
	return n, nil
}

func (s *MemoryStore) SetMax(_ context.Context, key string, value int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expired(key)
	cur, _ := strconv.ParseInt(s.values[key].value, 10, 64)
	if value > cur {
		cur = value
		s.values[key] = memoryValue{value: strconv.FormatInt(cur, 10)}
	}
	return cur, nil
}

func (s *MemoryStore) GetInt(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expired(key) {
		return 0, nil
	}
	n, _ := strconv.ParseInt(s.values[key].value, 10, 64)
	return n, nil
}

func (s *MemoryStore) SAdd(_ context.Context, key, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expired(key)
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	if _, exists := set[member]; exists {
		return false, nil
	}
	set[member] = struct{}{}
	return true, nil
}

func (s *MemoryStore) SRem(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expired(key)
	if set, ok := s.sets[key]; ok {
		delete(set, member)
	}
	return nil
}

func (s *MemoryStore) SCard(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expired(key) {
		return 0, nil
	}
	return int64(len(s.sets[key])), nil
}

func (s *MemoryStore) SMembers(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expired(key) {
		return nil, nil
	}
	members := make([]string, 0, len(s.sets[key]))
	for member := range s.sets[key] {
		members = append(members, member)
	}
	return members, nil
}

func (s *MemoryStore) LPushTrim(_ context.Context, key, value string, maxLen int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expired(key)
	list := append([]string{value}, s.lists[key]...)
	if int64(len(list)) > maxLen {
		list = list[:maxLen]
	}
	s.lists[key] = list
	return nil
}

func (s *MemoryStore) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expired(key) {
		return nil, nil
	}
	list := s.lists[key]
	n := int64(len(list))
	if start < 0 {
		start = n + start
	}
	if stop < 0 {
		stop = n + stop
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || n == 0 {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}
