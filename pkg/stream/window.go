package stream

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultWindowSize bounds how many identity keys a connection remembers.
const DefaultWindowSize = 2000

// EvictionPolicy selects what a Window does once it is full.
type EvictionPolicy string

const (
	// EvictClear drops every key once the window overflows. Up to capacity
	// identities may be emitted one more time after a clear.
	EvictClear EvictionPolicy = "clear"

	// EvictLRU drops the least recently seen key on overflow.
	EvictLRU EvictionPolicy = "lru"
)

// Window remembers which identity keys were already emitted on a connection.
// Implementations are used by a single poll loop and are not safe for
// concurrent use.
type Window interface {
	// Seen reports whether key was emitted before and records it if not.
	Seen(key string) bool

	// Len is the number of keys currently remembered.
	Len() int

	// Dropped is the number of keys forgotten through eviction so far.
	Dropped() int
}

// NewWindow builds a Window for the given policy. A capacity <= 0 uses
// DefaultWindowSize; an empty policy uses EvictClear.
func NewWindow(policy EvictionPolicy, capacity int) (Window, error) {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}

	switch policy {
	case "", EvictClear:
		return NewClearWindow(capacity), nil
	case EvictLRU:
		return NewLRUWindow(capacity)
	default:
		return nil, fmt.Errorf("unknown eviction policy: %q", policy)
	}
}

// ClearWindow is a set that empties itself entirely when it grows past
// capacity.
type ClearWindow struct {
	capacity int
	keys     map[string]struct{}
	clears   int
	dropped  int
}

// NewClearWindow returns an empty ClearWindow.
func NewClearWindow(capacity int) *ClearWindow {
	return &ClearWindow{
		capacity: capacity,
		keys:     make(map[string]struct{}, capacity+1),
	}
}

func (w *ClearWindow) Seen(key string) bool {
	if _, ok := w.keys[key]; ok {
		return true
	}

	w.keys[key] = struct{}{}
	if len(w.keys) > w.capacity {
		w.dropped += len(w.keys) - 1
		clear(w.keys)
		// The row that overflowed the window is being emitted right now;
		// keep it so the next poll does not repeat it.
		w.keys[key] = struct{}{}
		w.clears++
	}

	return false
}

func (w *ClearWindow) Len() int { return len(w.keys) }

func (w *ClearWindow) Dropped() int { return w.dropped }

// Clears is the number of times the window was emptied.
func (w *ClearWindow) Clears() int { return w.clears }

// LRUWindow evicts the least recently seen key once full.
type LRUWindow struct {
	cache   *lru.Cache[string, struct{}]
	dropped int
}

// NewLRUWindow returns an empty LRUWindow.
func NewLRUWindow(capacity int) (*LRUWindow, error) {
	cache, err := lru.New[string, struct{}](capacity)
	if err != nil {
		return nil, fmt.Errorf("creating lru window: %w", err)
	}
	return &LRUWindow{cache: cache}, nil
}

func (w *LRUWindow) Seen(key string) bool {
	// Get refreshes recency so keys the source keeps returning stay resident.
	if _, ok := w.cache.Get(key); ok {
		return true
	}

	if evicted := w.cache.Add(key, struct{}{}); evicted {
		w.dropped++
	}
	return false
}

func (w *LRUWindow) Len() int { return w.cache.Len() }

func (w *LRUWindow) Dropped() int { return w.dropped }
