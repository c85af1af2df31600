package core

import "testing"

func TestNewThought(t *testing.T) {
	salience := SalienceScore{Importance: 0.5, ConnectionRelevance: 0.2}
	thought := NewThought(nil, Raw{Data: []byte("out")}, salience, 7, fixedTestTime)

	if thought.ID.String() == "" {
		t.Fatal("expected a generated id")
	}
	if thought.CycleNumber != 7 {
		t.Fatalf("expected cycle number 7, got %d", thought.CycleNumber)
	}
	if thought.Suppressed {
		t.Fatal("expected a freshly-constructed thought to not be suppressed")
	}
	if !thought.CreatedAt.Equal(fixedTestTime) {
		t.Fatalf("expected created_at %v, got %v", fixedTestTime, thought.CreatedAt)
	}
}

func TestThoughtWithParent(t *testing.T) {
	parent := NewThought(nil, Raw{}, SalienceScore{}, 1, fixedTestTime)
	child := NewThought(nil, Raw{}, SalienceScore{}, 2, fixedTestTime).WithParent(parent.ID)

	if child.ParentID == nil || *child.ParentID != parent.ID {
		t.Fatalf("expected parent id %v, got %v", parent.ID, child.ParentID)
	}
}
