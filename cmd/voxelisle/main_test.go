package main

import "testing"

func TestWalkPositionMovesAlongX(t *testing.T) {
	start := walkPosition(0, 4)
	later := walkPosition(2, 4)
	if later.X()-start.X() != 8 {
		t.Fatalf("expected to walk 8 blocks, got %v", later.X()-start.X())
	}
	if later.Z() != start.Z() || later.Y() != start.Y() {
		t.Fatalf("walk drifted off the x axis: %v -> %v", start, later)
	}
}
