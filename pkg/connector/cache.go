// Copyright 2024-2026 Aiku AI

package connector

import (
	"sync"

	"github.com/golang/groupcache/lru"

	"github.com/aiku/chatkit-stream-sync/pkg/connector/chatkit"
)

// DefaultCacheCapacity is used when a configured capacity is not positive.
const DefaultCacheCapacity = 5000

// LRU is a fixed-capacity, least-recently-used key-value store that is safe
// for concurrent use. Get counts as a use.
type LRU[V any] struct {
	mu    sync.Mutex
	cache *lru.Cache
}

// NewLRU creates a store holding at most capacity entries.
func NewLRU[V any](capacity int) *LRU[V] {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &LRU[V]{cache: lru.New(capacity)}
}

// Get returns the value for key and marks it as most recently used.
func (l *LRU[V]) Get(key string) (V, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.cache.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// Set stores value under key, evicting the least recently used entry when
// the store is full.
func (l *LRU[V]) Set(key string, value V) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.Add(key, value)
}

// Len returns the number of stored entries.
func (l *LRU[V]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache.Len()
}

// EntityCache holds the rooms and users already materialized at the
// destination. It is an optimization only: every miss is answered by a
// fresh remote lookup and nothing outlives the process.
type EntityCache struct {
	Rooms *LRU[*chatkit.Room]
	Users *LRU[*User]
}

// NewEntityCache creates the room and user stores with the given capacities.
func NewEntityCache(roomCapacity, userCapacity int) *EntityCache {
	return &EntityCache{
		Rooms: NewLRU[*chatkit.Room](roomCapacity),
		Users: NewLRU[*User](userCapacity),
	}
}
