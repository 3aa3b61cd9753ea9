package cachestore

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const numShards = 16

// MemoryStore is a sharded in-process Store. Keys hash to one of a fixed
// number of shards so concurrent callers on distinct keys rarely contend.
type MemoryStore struct {
	shards [numShards]*memoryShard
}

type memoryShard struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	entry  *Entry
	expiry time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i] = &memoryShard{entries: make(map[string]memoryEntry)}
	}
	return s
}

func (s *MemoryStore) shard(key string) *memoryShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%numShards]
}

// Get returns the entry for key, or absent once its store TTL elapsed.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	shard := s.shard(key)
	shard.mu.RLock()
	me, ok := shard.entries[key]
	shard.mu.RUnlock()

	if !ok || time.Now().After(me.expiry) {
		return nil, false, nil
	}
	return me.entry, true, nil
}

// Set stores an entry under key for the given TTL, replacing any previous
// entry wholesale.
func (s *MemoryStore) Set(_ context.Context, key string, entry *Entry, ttl time.Duration) error {
	shard := s.shard(key)
	shard.mu.Lock()
	shard.entries[key] = memoryEntry{entry: entry, expiry: time.Now().Add(ttl)}
	shard.mu.Unlock()
	return nil
}

// Delete removes the entry for key, if present.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	shard := s.shard(key)
	shard.mu.Lock()
	delete(shard.entries, key)
	shard.mu.Unlock()
	return nil
}

// Compile-time check.
var _ Store = (*MemoryStore)(nil)
