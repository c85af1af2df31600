package core

import "testing"

func TestWindowAddEnforcesMaxWindows(t *testing.T) {
	w := NewWindow(2)

	if err := w.Add(StreamEntry{ID: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Add(StreamEntry{ID: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Add(StreamEntry{ID: 3}); err != ErrMaxWindows {
		t.Fatalf("expected ErrMaxWindows, got %v", err)
	}
	if w.Len() != 2 {
		t.Fatalf("expected len 2, got %d", w.Len())
	}
}

func TestWindowAddRejectsDuplicate(t *testing.T) {
	w := NewWindow(5)
	if err := w.Add(StreamEntry{ID: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := w.Add(StreamEntry{ID: 1})
	if _, ok := err.(*InvariantViolation); !ok {
		t.Fatalf("expected InvariantViolation, got %v (%T)", err, err)
	}
}

func TestWindowRemove(t *testing.T) {
	w := NewWindow(5)
	_ = w.Add(StreamEntry{ID: 1})
	_ = w.Add(StreamEntry{ID: 2})

	if !w.Remove(1) {
		t.Fatal("expected Remove to report true for an existing entry")
	}
	if w.Remove(1) {
		t.Fatal("expected Remove to report false for an already-removed entry")
	}
	if w.Len() != 1 {
		t.Fatalf("expected len 1 after remove, got %d", w.Len())
	}
}

func TestWindowFull(t *testing.T) {
	w := NewWindow(1)
	if w.Full() {
		t.Fatal("expected empty window to not be full")
	}
	_ = w.Add(StreamEntry{ID: 1})
	if !w.Full() {
		t.Fatal("expected window at capacity to be full")
	}
}

func TestWindowEntriesOrderAndIsolation(t *testing.T) {
	w := NewWindow(5)
	_ = w.Add(StreamEntry{ID: 1})
	_ = w.Add(StreamEntry{ID: 2})
	_ = w.Add(StreamEntry{ID: 3})

	entries := w.Entries()
	if len(entries) != 3 || entries[0].ID != 1 || entries[2].ID != 3 {
		t.Fatalf("expected entries in insertion order, got %+v", entries)
	}

	entries[0].ID = 999
	if w.Entries()[0].ID != 1 {
		t.Fatal("expected Entries() to return a copy, not a live view")
	}
}

func TestWindowCloneIsIndependent(t *testing.T) {
	w := NewWindow(5)
	_ = w.Add(StreamEntry{ID: 1})

	clone := w.Clone()
	_ = w.Add(StreamEntry{ID: 2})

	if clone.Len() != 1 {
		t.Fatalf("expected clone to be unaffected by later writes, got len %d", clone.Len())
	}
}

func TestWindowSetForCreatesAndReuses(t *testing.T) {
	ws := NewWindowSet(5)

	w1 := ws.For(StreamSensory)
	w2 := ws.For(StreamSensory)
	if w1 != w2 {
		t.Fatal("expected For to return the same *Window for a repeated stream name")
	}

	custom := ws.For(StreamName("future-stream"))
	if custom == nil {
		t.Fatal("expected For to create a window for an unregistered stream")
	}
}

func TestWindowSetActiveCount(t *testing.T) {
	ws := NewWindowSet(5)

	if ws.ActiveCount() != 0 {
		t.Fatalf("expected 0 active entries for a fresh set, got %d", ws.ActiveCount())
	}

	_ = ws.For(StreamSensory).Add(StreamEntry{ID: 1})
	_ = ws.For(StreamEmotion).Add(StreamEntry{ID: 2})
	_ = ws.For(StreamEmotion).Add(StreamEntry{ID: 3})

	if ws.ActiveCount() != 3 {
		t.Fatalf("expected 3 active entries across streams, got %d", ws.ActiveCount())
	}
}
