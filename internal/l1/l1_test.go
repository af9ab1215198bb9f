package l1_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/AndrewDonelson/ormpack/internal/clock"
	"github.com/AndrewDonelson/ormpack/internal/l1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMap(t *testing.T, clk clock.Clock) *l1.Map[string] {
	t.Helper()
	return l1.New[string](l1.Options{
		MaxEntries: 100,
		TTL:        5 * time.Minute,
		Clock:      clk,
	})
}

func TestL1_PutGet(t *testing.T) {
	m := newMap(t, clock.NewMock(time.Time{}))
	m.Put("key1", "value1")
	v, ok := m.Get("key1")
	require.True(t, ok)
	assert.Equal(t, "value1", v)
}

func TestL1_Miss(t *testing.T) {
	m := newMap(t, clock.Real{})
	v, ok := m.Get("missing")
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestL1_Delete(t *testing.T) {
	m := newMap(t, clock.Real{})
	m.Put("k", "v")
	m.Delete("k")
	_, ok := m.Get("k")
	assert.False(t, ok)
}

func TestL1_TTLExpiry(t *testing.T) {
	clk := clock.NewMock(time.Time{})
	m := l1.New[string](l1.Options{TTL: time.Second, Clock: clk})

	m.Put("k", "v")
	clk.Advance(2 * time.Second)

	_, ok := m.Get("k")
	assert.False(t, ok, "entry should be expired")
}

func TestL1_NoTTLNeverExpires(t *testing.T) {
	clk := clock.NewMock(time.Time{})
	m := l1.New[int](l1.Options{Clock: clk})
	m.Put("k", 7)
	clk.Advance(1000 * time.Hour)
	v, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestL1_PutRefreshesTTL(t *testing.T) {
	clk := clock.NewMock(time.Time{})
	m := l1.New[string](l1.Options{TTL: 10 * time.Second, Clock: clk})
	m.Put("k", "a")
	clk.Advance(8 * time.Second)
	m.Put("k", "b")
	clk.Advance(8 * time.Second)
	v, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestL1_Sweep(t *testing.T) {
	clk := clock.NewMock(time.Time{})
	m := l1.New[string](l1.Options{TTL: time.Second, Clock: clk})
	for i := 0; i < 10; i++ {
		m.Put(fmt.Sprintf("k%d", i), "v")
	}
	clk.Advance(2 * time.Second)
	assert.Equal(t, 10, m.Sweep())
	assert.Equal(t, int64(0), m.Stats().Entries)
}

func TestL1_DeletePrefix(t *testing.T) {
	m := newMap(t, clock.Real{})
	m.Put("a.Invoice:1", "x")
	m.Put("a.Invoice:2", "y")
	m.Put("a.Customer:1", "z")
	m.DeletePrefix("a.Invoice:")

	_, ok := m.Get("a.Invoice:1")
	assert.False(t, ok)
	_, ok = m.Get("a.Customer:1")
	assert.True(t, ok)
}

func TestL1_OnEvictCalledOnDelete(t *testing.T) {
	var evicted []string
	m := l1.New[string](l1.Options{OnEvict: func(key string, _ any) {
		evicted = append(evicted, key)
	}})
	m.Put("k", "v")
	m.Delete("k")
	assert.Equal(t, []string{"k"}, evicted)
}

// Keys in a single shard are needed to observe per-shard eviction, so the
// tests use MaxEntries 1: any second key landing in the same shard evicts.
func TestL1_LRUEvictionKeepsRecentlyRead(t *testing.T) {
	evicted := map[string]bool{}
	m := l1.New[int](l1.Options{MaxEntries: 1, Eviction: l1.LRU, OnEvict: func(key string, _ any) {
		evicted[key] = true
	}})
	for i := 0; i < 1000; i++ {
		m.Put(fmt.Sprintf("k%d", i), i)
	}
	assert.LessOrEqual(t, m.Stats().Entries, int64(64))
	assert.NotEmpty(t, evicted)
}

func TestL1_Stats(t *testing.T) {
	m := newMap(t, clock.Real{})
	m.Put("k", "v")
	m.Get("k")
	m.Get("k")
	m.Get("nope")
	st := m.Stats()
	assert.Equal(t, int64(2), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.Equal(t, int64(1), st.Entries)
}

func TestL1_Concurrent(t *testing.T) {
	m := newMap(t, clock.Real{})
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				k := fmt.Sprintf("g%d-%d", g, i%20)
				m.Put(k, k)
				if v, ok := m.Get(k); ok {
					assert.Equal(t, k, v)
				}
			}
		}(g)
	}
	wg.Wait()
}
