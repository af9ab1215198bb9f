// Package l1 provides a sharded, concurrent in-memory identity map with TTL
// expiry and LRU or FIFO eviction.
package l1

import (
	"container/list"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AndrewDonelson/ormpack/internal/clock"
)

const numShards = 64

// EvictionPolicy determines which entry is removed when a shard is full.
type EvictionPolicy int

const (
	LRU  EvictionPolicy = iota // Least Recently Used
	FIFO                       // First In, First Out
)

// Options configures a Map.
type Options struct {
	TTL        time.Duration // 0 keeps entries until evicted
	MaxEntries int           // per shard; 0 is unbounded
	Eviction   EvictionPolicy
	Clock      clock.Clock
	OnEvict    func(key string, value any)
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
	elem      *list.Element
}

type shard[V any] struct {
	mu    sync.Mutex
	items map[string]*entry[V]
	order *list.List // front = newest
}

// Map is a sharded key/value identity map.
type Map[V any] struct {
	shards [numShards]*shard[V]
	opts   Options
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates an empty Map.
func New[V any](opts Options) *Map[V] {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	m := &Map[V]{opts: opts}
	for i := range m.shards {
		m.shards[i] = &shard[V]{items: make(map[string]*entry[V]), order: list.New()}
	}
	return m
}

func (m *Map[V]) shard(key string) *shard[V] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return m.shards[h.Sum32()%numShards]
}

// Put stores value under key, replacing any previous entry.
func (m *Map[V]) Put(key string, value V) {
	sh := m.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	var expiresAt time.Time
	if m.opts.TTL > 0 {
		expiresAt = m.opts.Clock.Now().Add(m.opts.TTL)
	}
	if e, ok := sh.items[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		if m.opts.Eviction == LRU {
			sh.order.MoveToFront(e.elem)
		}
		return
	}
	if m.opts.MaxEntries > 0 && len(sh.items) >= m.opts.MaxEntries {
		if back := sh.order.Back(); back != nil {
			m.remove(sh, back.Value.(*entry[V]))
		}
	}
	e := &entry[V]{key: key, value: value, expiresAt: expiresAt}
	e.elem = sh.order.PushFront(e)
	sh.items[key] = e
}

// Get returns the live value stored under key.
func (m *Map[V]) Get(key string) (V, bool) {
	sh := m.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	var zero V
	e, ok := sh.items[key]
	if !ok {
		m.misses.Add(1)
		return zero, false
	}
	if !e.expiresAt.IsZero() && m.opts.Clock.Now().After(e.expiresAt) {
		m.remove(sh, e)
		m.misses.Add(1)
		return zero, false
	}
	if m.opts.Eviction == LRU {
		sh.order.MoveToFront(e.elem)
	}
	m.hits.Add(1)
	return e.value, true
}

// Delete removes key.
func (m *Map[V]) Delete(key string) {
	sh := m.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e, ok := sh.items[key]; ok {
		m.remove(sh, e)
	}
}

// DeletePrefix removes every key starting with prefix.
func (m *Map[V]) DeletePrefix(prefix string) {
	for _, sh := range m.shards {
		sh.mu.Lock()
		for k, e := range sh.items {
			if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
				m.remove(sh, e)
			}
		}
		sh.mu.Unlock()
	}
}

// Sweep drops expired entries and returns how many were removed.
func (m *Map[V]) Sweep() int {
	now := m.opts.Clock.Now()
	removed := 0
	for _, sh := range m.shards {
		sh.mu.Lock()
		for _, e := range sh.items {
			if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
				m.remove(sh, e)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Stats holds hit/miss/entry counts.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int64
}

// Stats returns current statistics.
func (m *Map[V]) Stats() Stats {
	var total int64
	for _, sh := range m.shards {
		sh.mu.Lock()
		total += int64(len(sh.items))
		sh.mu.Unlock()
	}
	return Stats{Hits: m.hits.Load(), Misses: m.misses.Load(), Entries: total}
}

func (m *Map[V]) remove(sh *shard[V], e *entry[V]) {
	delete(sh.items, e.key)
	sh.order.Remove(e.elem)
	if m.opts.OnEvict != nil {
		m.opts.OnEvict(e.key, e.value)
	}
}
