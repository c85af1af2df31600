package core

import (
	"fmt"
	"sync"
)

// Window is the bounded set of active StreamEntry candidates a stream is
// allowed to hold at once (I1: at most MAX_WINDOWS per stream). It mirrors
// the concurrency discipline the core uses elsewhere: a mutex-guarded slice
// plus an index for O(1) lookup by entry id, and a Clone() so a branch (for
// example the Selector scoring pass) can snapshot without holding the lock.
type Window struct {
	mu      sync.RWMutex
	max     int
	order   []int64
	entries map[int64]StreamEntry
}

// NewWindow creates an empty Window bounded at max entries.
func NewWindow(max int) *Window {
	if max <= 0 {
		max = 7
	}
	return &Window{
		max:     max,
		entries: make(map[int64]StreamEntry),
	}
}

// Add inserts an entry, enforcing I1. Returns ErrMaxWindows if the window
// is already at capacity; the caller (the cycle driver's Autoflow stage) is
// responsible for evicting or rejecting before retrying.
func (w *Window) Add(e StreamEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.entries[e.ID]; exists {
		return &InvariantViolation{Invariant: "I1", Detail: fmt.Sprintf("entry %d already present in window", e.ID)}
	}
	if len(w.order) >= w.max {
		return ErrMaxWindows
	}
	w.order = append(w.order, e.ID)
	w.entries[e.ID] = e
	return nil
}

// SyncWith reconciles the window against a freshly peeked view of its
// stream: entries no longer present (acked, forgotten, expired) are
// dropped, and entries present but not yet tracked are added, subject to
// I1's capacity bound. It returns the number of live entries that could not
// be added because the window was already full, so Autoflow can surface
// genuine I1 pressure instead of silently dropping candidates.
func (w *Window) SyncWith(live []StreamEntry) (overflow int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	liveIDs := make(map[int64]struct{}, len(live))
	for _, e := range live {
		liveIDs[e.ID] = struct{}{}
	}
	for id := range w.entries {
		if _, ok := liveIDs[id]; !ok {
			delete(w.entries, id)
			for i, oid := range w.order {
				if oid == id {
					w.order = append(w.order[:i], w.order[i+1:]...)
					break
				}
			}
		}
	}

	for _, e := range live {
		if _, tracked := w.entries[e.ID]; tracked {
			continue
		}
		if len(w.order) >= w.max {
			overflow++
			continue
		}
		w.order = append(w.order, e.ID)
		w.entries[e.ID] = e
	}
	return overflow
}

// Remove evicts an entry by id, e.g. after the Selector acks or forgets it.
func (w *Window) Remove(id int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.entries[id]; !ok {
		return false
	}
	delete(w.entries, id)
	for i, oid := range w.order {
		if oid == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the current occupancy.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.order)
}

// Full reports whether the window is at MAX_WINDOWS capacity.
func (w *Window) Full() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.order) >= w.max
}

// Entries returns the window's entries in insertion order. The returned
// slice is a copy; mutating it does not affect the Window.
func (w *Window) Entries() []StreamEntry {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]StreamEntry, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.entries[id])
	}
	return out
}

// Clone returns an independent copy of the window suitable for read-only
// branches, such as the Selector's scoring pass running concurrently with
// Autoflow appends to the same stream.
func (w *Window) Clone() *Window {
	w.mu.RLock()
	defer w.mu.RUnlock()

	clone := &Window{
		max:     w.max,
		order:   append([]int64(nil), w.order...),
		entries: make(map[int64]StreamEntry, len(w.entries)),
	}
	for k, v := range w.entries {
		clone.entries[k] = v
	}
	return clone
}

// WindowSet holds one Window per working stream.
type WindowSet struct {
	mu      sync.RWMutex
	windows map[StreamName]*Window
	max     int
}

// NewWindowSet creates a WindowSet with a Window for every working stream.
func NewWindowSet(max int) *WindowSet {
	ws := &WindowSet{
		windows: make(map[StreamName]*Window, len(WorkingStreams)),
		max:     max,
	}
	for _, name := range WorkingStreams {
		ws.windows[name] = NewWindow(max)
	}
	return ws
}

// ActiveCount sums occupancy across every registered window, the figure
// the Law gate checks against MAX_WINDOWS (I1).
func (ws *WindowSet) ActiveCount() int {
	ws.mu.RLock()
	windows := make([]*Window, 0, len(ws.windows))
	for _, w := range ws.windows {
		windows = append(windows, w)
	}
	ws.mu.RUnlock()

	total := 0
	for _, w := range windows {
		total += w.Len()
	}
	return total
}

// For returns the Window for a stream, creating one if the stream was not
// pre-registered (e.g. a future stream added at runtime).
func (ws *WindowSet) For(name StreamName) *Window {
	ws.mu.RLock()
	w, ok := ws.windows[name]
	ws.mu.RUnlock()
	if ok {
		return w
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if w, ok := ws.windows[name]; ok {
		return w
	}
	w = NewWindow(ws.max)
	ws.windows[name] = w
	return w
}
