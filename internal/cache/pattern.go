package cache

import (
	"encoding/json"
	"strings"
	"sync"
)

const (
	// DefaultPatternCapacity is used when no capacity is configured.
	DefaultPatternCapacity = 1000

	// patternPrefixLen bounds the stored prefix of the normalized text.
	patternPrefixLen = 64
)

type patternEntry struct {
	prefix  string
	payload json.RawMessage
}

// PatternTier catches near-duplicate phrasing with cheap substring
// containment. Keys are truncated, normalized text prefixes rather than
// fingerprints, so "I have a headache" and "i have a headache today"
// can land on the same entry.
//
// Lookup is deliberately O(n) over the tier: capacity is small and a
// scan over a thousand short strings is far cheaper than the analysis
// call it saves.
type PatternTier struct {
	mu       sync.Mutex
	capacity int
	entries  []patternEntry // insertion order, oldest first
	index    map[string]int
}

// NewPatternTier creates a pattern tier holding at most capacity
// entries. Non-positive capacity falls back to DefaultPatternCapacity.
func NewPatternTier(capacity int) *PatternTier {
	if capacity <= 0 {
		capacity = DefaultPatternCapacity
	}
	return &PatternTier{
		capacity: capacity,
		index:    make(map[string]int, capacity),
	}
}

// Get scans stored prefixes in insertion order and returns the first
// entry whose prefix contains the query or is contained by it.
func (t *PatternTier) Get(text string) (json.RawMessage, bool) {
	query := patternKey(text)
	if query == "" {
		return nil, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.entries {
		if strings.Contains(query, e.prefix) || strings.Contains(e.prefix, query) {
			return e.payload, true
		}
	}
	return nil, false
}

// Put stores the payload under the text's prefix, overwriting an
// existing entry in place. When the tier grows past capacity, the
// oldest ~20% of entries are trimmed in one batch so cleanup cost is
// amortized rather than paid on every insert.
func (t *PatternTier) Put(text string, payload json.RawMessage) {
	prefix := patternKey(text)
	if prefix == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if i, ok := t.index[prefix]; ok {
		t.entries[i].payload = payload
		return
	}

	t.entries = append(t.entries, patternEntry{prefix: prefix, payload: payload})
	t.index[prefix] = len(t.entries) - 1

	if len(t.entries) > t.capacity {
		drop := t.capacity / 5
		if drop < 1 {
			drop = 1
		}
		t.entries = t.entries[drop:]
		t.index = make(map[string]int, t.capacity)
		for i, e := range t.entries {
			t.index[e.prefix] = i
		}
	}
}

// Len returns the number of entries currently held.
func (t *PatternTier) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Clear removes all entries.
func (t *PatternTier) Clear() {
	t.mu.Lock()
	t.entries = nil
	t.index = make(map[string]int, t.capacity)
	t.mu.Unlock()
}

func patternKey(text string) string {
	s := NormalizeText(text)
	if len(s) > patternPrefixLen {
		s = s[:patternPrefixLen]
	}
	return s
}
