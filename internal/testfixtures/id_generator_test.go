package testfixtures

import (
	"testing"

	"github.com/google/uuid"
)

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	gen := NewIDGenerator("entity")

	first := gen.Next()
	second := gen.Next()

	if first != "entity-1" || second != "entity-2" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
}

func TestIDGeneratorCanReset(t *testing.T) {
	gen := NewIDGenerator("resource")
	_ = gen.Next()
	gen.SetCounter(0)
	gen.SetPrefix("res")

	if next := gen.Next(); next != "res-1" {
		t.Fatalf("expected res-1 after reset, got %q", next)
	}
}

func TestIDGeneratorUUIDIsDeterministic(t *testing.T) {
	first := NewIDGenerator("paper")
	second := NewIDGenerator("paper")

	a, b := first.UUID(), second.UUID()
	if a != b {
		t.Fatalf("expected identical UUIDs for identical sequences, got %q and %q", a, b)
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Fatalf("expected a valid UUID, got %q: %v", a, err)
	}
	if next := first.UUID(); next == a {
		t.Fatalf("expected a fresh UUID on the second call")
	}
}
