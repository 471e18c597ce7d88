package testfixtures

import "testing"

func TestIDGeneratorSequence(t *testing.T) {
	gen := NewIDGenerator("booking")

	if first, second := gen.Next(), gen.Next(); first != "booking-1" || second != "booking-2" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
}

func TestIDGeneratorRewind(t *testing.T) {
	gen := NewIDGenerator("room")
	_ = gen.Next()

	gen.SetCounter(0)
	gen.SetPrefix("space")
	if next := gen.Next(); next != "space-1" {
		t.Fatalf("expected space-1 after rewind, got %q", next)
	}
}
