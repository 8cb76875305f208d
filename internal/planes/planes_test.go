package planes

import (
	"testing"

	"github.com/lczerogo/engine/internal/board"
)

func TestGenerateStartingPosition(t *testing.T) {
	pos := board.NewPosition()
	ps := Generate(pos)
	if len(ps) != NumChannels {
		t.Fatalf("Generate() returned %d planes, want %d", len(ps), NumChannels)
	}

	// White pawns occupy rank 2 (8 bits set).
	if popcount(ps[0].Mask) != 8 {
		t.Errorf("white pawn plane has %d bits set, want 8", popcount(ps[0].Mask))
	}
	// Side-to-move plane is empty (White to move at game start).
	if ps[12].Mask != 0 {
		t.Errorf("side-to-move plane should be empty at game start, got mask %x", ps[12].Mask)
	}
	// All four castling rights are available at game start.
	for i := 13; i <= 16; i++ {
		if ps[i].Mask == 0 {
			t.Errorf("castling plane %d should be set at game start", i)
		}
	}
}

func TestMaterializeExpandsMask(t *testing.T) {
	ps := []Plane{{Mask: 0b101, Value: 3}}
	dense := Materialize(ps)
	if len(dense) != BoardSize*BoardSize {
		t.Fatalf("Materialize() len = %d, want %d", len(dense), BoardSize*BoardSize)
	}
	if dense[0] != 3 || dense[2] != 3 {
		t.Fatalf("Materialize() did not set expected squares: %v", dense[:4])
	}
	if dense[1] != 0 {
		t.Fatalf("Materialize() set an unexpected square: %v", dense[:4])
	}
}

func popcount(x uint64) int {
	n := 0
	for x != 0 {
		x &= x - 1
		n++
	}
	return n
}
