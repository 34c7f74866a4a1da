package collab

import (
	"sync"
	"time"
)

// Window remembers broadcast ids for a sliding span of time.
type Window struct {
	mu   sync.Mutex
	span time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

// NewWindow creates a Window. A nil now uses time.Now.
func NewWindow(span time.Duration, now func() time.Time) *Window {
	if now == nil {
		now = time.Now
	}
	return &Window{span: span, now: now, seen: make(map[string]time.Time)}
}

// Seen records id and reports whether it was already recorded within the
// span. A repeat does not extend the original entry.
func (w *Window) Seen(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	for k, at := range w.seen {
		if now.Sub(at) >= w.span {
			delete(w.seen, k)
		}
	}
	if _, ok := w.seen[id]; ok {
		return true
	}
	w.seen[id] = now
	return false
}

// Len is the number of ids currently remembered.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}
