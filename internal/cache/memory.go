package cache

import (
	"container/list"
	"encoding/json"
	"sync"
)

// DefaultMemoryCapacity is used when no capacity is configured.
const DefaultMemoryCapacity = 5000

type memoryEntry struct {
	key     string
	payload json.RawMessage
}

// MemoryTier is the hot in-process tier: a capacity-bounded LRU map.
//
// There is no TTL here on purpose. Staleness is bounded by the capacity
// limit and the lifetime of the process; expiry enforcement lives in the
// persistent tier, which is the only tier that outlives a restart.
type MemoryTier struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	items    map[string]*list.Element
}

// NewMemoryTier creates a memory tier holding at most capacity entries.
// Non-positive capacity falls back to DefaultMemoryCapacity.
func NewMemoryTier(capacity int) *MemoryTier {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryTier{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// Get returns the payload for key and marks it most recently used.
func (t *MemoryTier) Get(key string) (json.RawMessage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	el, ok := t.items[key]
	if !ok {
		return nil, false
	}
	t.order.MoveToFront(el)
	return el.Value.(*memoryEntry).payload, true
}

// Put stores the payload under key, overwriting any previous value.
// When the tier grows past capacity, least-recently-used entries are
// evicted one at a time until size equals capacity.
func (t *MemoryTier) Put(key string, payload json.RawMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.items[key]; ok {
		el.Value.(*memoryEntry).payload = payload
		t.order.MoveToFront(el)
		return
	}

	t.items[key] = t.order.PushFront(&memoryEntry{key: key, payload: payload})

	for t.order.Len() > t.capacity {
		oldest := t.order.Back()
		if oldest == nil {
			break
		}
		t.order.Remove(oldest)
		delete(t.items, oldest.Value.(*memoryEntry).key)
	}
}

// Len returns the number of entries currently held.
func (t *MemoryTier) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.order.Len()
}

// Clear removes all entries. Useful for tests and administrative resets.
func (t *MemoryTier) Clear() {
	t.mu.Lock()
	t.order.Init()
	t.items = make(map[string]*list.Element, t.capacity)
	t.mu.Unlock()
}
