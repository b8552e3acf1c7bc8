// Package dedup remembers which trade identifiers, whisper tokens and attempt keys
// have been handled during this process lifetime. Entries are never evicted.
package dedup

import "sync"

// Namespace separates independent sets of identifiers.
type Namespace string

const (
	TradeIDs    Namespace = "trade_id"
	Tokens      Namespace = "whisper_token"
	AttemptKeys Namespace = "attempt_key"
)

// Filter is a set of seen identifiers per namespace, safe for concurrent use.
type Filter struct {
	seen map[Namespace]map[string]struct{}
	mu   sync.RWMutex
}

// NewFilter creates an empty filter.
func NewFilter() *Filter {
	return &Filter{
		seen: make(map[Namespace]map[string]struct{}),
	}
}

// Seen reports whether id was marked in ns.
func (f *Filter) Seen(ns Namespace, id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if ids, exists := f.seen[ns]; exists {
		_, ok := ids[id]
		return ok
	}
	return false
}

// MarkSeen records id in ns.
func (f *Filter) MarkSeen(ns Namespace, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markLocked(ns, id)
}

// TryMark marks id and reports true only if it was not seen before.
// Check and mark happen under one lock, so concurrent callers can never both win.
func (f *Filter) TryMark(ns Namespace, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ids, exists := f.seen[ns]; exists {
		if _, ok := ids[id]; ok {
			return false
		}
	}
	f.markLocked(ns, id)
	return true
}

// Unmark forgets id in ns, giving back a claim that was never used.
func (f *Filter) Unmark(ns Namespace, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seen[ns], id)
}

// Len returns the number of identifiers recorded in ns.
func (f *Filter) Len(ns Namespace) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.seen[ns])
}

func (f *Filter) markLocked(ns Namespace, id string) {
	if f.seen[ns] == nil {
		f.seen[ns] = make(map[string]struct{})
	}
	f.seen[ns][id] = struct{}{}
}
