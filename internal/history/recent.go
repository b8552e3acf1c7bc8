// Package history keeps finished purchase attempts: a bounded in-memory view
// for the control API and a batching recorder for the durable store.
package history

import (
	"sync"

	"github.com/navid-fn/tradesniper/internal/models"
)

// DefaultRecentSize is how many attempts the in-memory view keeps.
const DefaultRecentSize = 100

// Recent is a fixed-size ring of the latest attempts.
type Recent struct {
	mu        sync.RWMutex
	buf       []models.AttemptRecord
	next      int
	full      bool
	succeeded int
	failed    int
}

func NewRecent(size int) *Recent {
	if size <= 0 {
		size = DefaultRecentSize
	}
	return &Recent{buf: make([]models.AttemptRecord, size)}
}

// Report implements teleport.Reporter.
func (r *Recent) Report(rec models.AttemptRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = rec
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
	if rec.Succeeded() {
		r.succeeded++
	} else {
		r.failed++
	}
}

// List returns up to limit records, newest first. limit <= 0 means all.
func (r *Recent) List(limit int) []models.AttemptRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.next
	if r.full {
		n = len(r.buf)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]models.AttemptRecord, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

// Totals counts every attempt reported since start, not only the retained ones.
type Totals struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

func (r *Recent) Totals() Totals {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Totals{Succeeded: r.succeeded, Failed: r.failed}
}
