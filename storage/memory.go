package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryEntry records one completed agent turn: what was asked, how it
// went, and what the agent concluded about its own performance.
type MemoryEntry struct {
	ID         string    `json:"id"`
	Request    string    `json:"request"`
	Timestamp  time.Time `json:"timestamp"`
	Outcome    string    `json:"outcome"`
	Reflection string    `json:"reflection,omitempty"`
}

// DefaultRingCapacity bounds the short-term memory window.
const DefaultRingCapacity = 64

// EntrySink receives entries for durable storage. SqliteStore
// implements it; a nil sink keeps the log purely in-memory.
type EntrySink interface {
	AppendEntry(ctx context.Context, entry MemoryEntry) error
}

// Log is the agent memory: a fixed-capacity ring of recent entries
// consulted on every turn, plus an unbounded long-term map keyed by
// entry ID that is never evicted. Entries are optionally mirrored to a
// durable sink.
type Log struct {
	mu       sync.RWMutex
	ring     []MemoryEntry
	longTerm map[string]MemoryEntry
	capacity int
	sink     EntrySink
}

// NewLog creates a memory log. Capacity <= 0 falls back to
// DefaultRingCapacity.
func NewLog(capacity int, sink EntrySink) *Log {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &Log{
		longTerm: make(map[string]MemoryEntry),
		capacity: capacity,
		sink:     sink,
	}
}

// StoreExecution records a completed turn. The entry is assigned an ID
// and timestamp if missing, appended to the ring (evicting the oldest
// entry when full), kept long-term, and forwarded to the sink.
func (l *Log) StoreExecution(ctx context.Context, entry MemoryEntry) (MemoryEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	l.ring = append(l.ring, entry)
	if len(l.ring) > l.capacity {
		l.ring = l.ring[len(l.ring)-l.capacity:]
	}
	l.longTerm[entry.ID] = entry
	l.mu.Unlock()

	if l.sink != nil {
		if err := l.sink.AppendEntry(ctx, entry); err != nil {
			return entry, err
		}
	}
	return entry, nil
}

// Get returns a long-term entry by ID. Entries stay retrievable after
// the ring has evicted them.
func (l *Log) Get(id string) (MemoryEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.longTerm[id]
	return entry, ok
}

// Recent returns up to n entries, newest first.
func (l *Log) Recent(n int) []MemoryEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > len(l.ring) {
		n = len(l.ring)
	}
	out := make([]MemoryEntry, 0, n)
	for i := len(l.ring) - 1; i >= len(l.ring)-n; i-- {
		out = append(out, l.ring[i])
	}
	return out
}

// Len returns the number of entries currently held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ring)
}

// RetrieveRelevantContext ranks the ring by token overlap with the
// query and returns up to limit entries, best match first. Entries
// with no overlap are omitted; ties break toward recency.
func (l *Log) RetrieveRelevantContext(query string, limit int) []MemoryEntry {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	l.mu.RLock()
	type scored struct {
		entry MemoryEntry
		score int
		index int
	}
	var candidates []scored
	for i, entry := range l.ring {
		score := overlap(queryTokens, tokenize(entry.Request+" "+entry.Outcome))
		if score > 0 {
			candidates = append(candidates, scored{entry: entry, score: score, index: i})
		}
	}
	l.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].index > candidates[j].index
	})

	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}
	out := make([]MemoryEntry, 0, limit)
	for _, c := range candidates[:limit] {
		out = append(out, c.entry)
	}
	return out
}

// tokenize lowercases and splits on non-alphanumeric runs, dropping
// tokens shorter than three characters.
func tokenize(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, field := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if len(field) >= 3 {
			tokens[field] = struct{}{}
		}
	}
	return tokens
}

func overlap(a, b map[string]struct{}) int {
	count := 0
	for token := range a {
		if _, ok := b[token]; ok {
			count++
		}
	}
	return count
}
